// Package selftest exercises known abuse scenarios against a running
// instance over plain HTTP. It is meant to run at startup behind a config
// flag: every scenario that regresses is a security hole, so failures are
// loud.
package selftest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type Runner struct {
	baseURL string
	client  *http.Client
}

func NewRunner(baseURL string) *Runner {
	return &Runner{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type scenario struct {
	name string
	run  func(ctx context.Context) error
}

// Run executes every scenario and returns an error if any failed. Fixture
// usernames are random, so repeated runs do not collide with each other or
// with real users.
func (r *Runner) Run(ctx context.Context) error {
	scenarios := []scenario{
		{"duplicate registration rejected", r.duplicateRegistration},
		{"wrong password rejected", r.wrongPassword},
		{"negative transfer rejected", r.negativeTransfer},
		{"overdraft transfer rejected", r.overdraftTransfer},
		{"token round trip", r.tokenRoundTrip},
		{"bogus request token rejected", r.bogusExchange},
	}

	failed := 0
	for _, sc := range scenarios {
		if err := sc.run(ctx); err != nil {
			failed++
			log.Printf("[SELFTEST] FAIL %s: %v", sc.name, err)
			continue
		}
		log.Printf("[SELFTEST] ok   %s", sc.name)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d self-test scenarios failed", failed, len(scenarios))
	}
	return nil
}

func (r *Runner) duplicateRegistration(ctx context.Context) error {
	username := fixtureUsername()
	if status, err := r.register(ctx, username, "hunter2secret"); err != nil {
		return err
	} else if status != http.StatusOK {
		return fmt.Errorf("first registration returned %d", status)
	}
	status, err := r.register(ctx, username, "anotherpassword")
	if err != nil {
		return err
	}
	if status != http.StatusConflict {
		return fmt.Errorf("second registration returned %d, want %d", status, http.StatusConflict)
	}
	return nil
}

func (r *Runner) wrongPassword(ctx context.Context) error {
	username := fixtureUsername()
	if _, err := r.register(ctx, username, "hunter2secret"); err != nil {
		return err
	}
	status, _, err := r.login(ctx, username, "not-the-password")
	if err != nil {
		return err
	}
	if status != http.StatusUnauthorized {
		return fmt.Errorf("login with wrong password returned %d, want %d", status, http.StatusUnauthorized)
	}
	return nil
}

func (r *Runner) negativeTransfer(ctx context.Context) error {
	accessToken, err := r.provisionSession(ctx)
	if err != nil {
		return err
	}
	status, err := r.transfer(ctx, accessToken, 0, -25)
	if err != nil {
		return err
	}
	if status != http.StatusBadRequest {
		return fmt.Errorf("negative transfer returned %d, want %d", status, http.StatusBadRequest)
	}
	return nil
}

func (r *Runner) overdraftTransfer(ctx context.Context) error {
	accessToken, err := r.provisionSession(ctx)
	if err != nil {
		return err
	}
	// Fresh users have a zero balance, so any positive amount overdraws.
	status, err := r.transfer(ctx, accessToken, 0, 1000)
	if err != nil {
		return err
	}
	if status != http.StatusBadRequest {
		return fmt.Errorf("overdraft transfer returned %d, want %d", status, http.StatusBadRequest)
	}
	return nil
}

func (r *Runner) tokenRoundTrip(ctx context.Context) error {
	accessToken, err := r.provisionSession(ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/api/v1/transactions", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("protected call with exchanged token returned %d", resp.StatusCode)
	}
	return nil
}

func (r *Runner) bogusExchange(ctx context.Context) error {
	status, _, err := r.exchange(ctx, "not-a-real-request-token")
	if err != nil {
		return err
	}
	if status != http.StatusBadRequest {
		return fmt.Errorf("bogus exchange returned %d, want %d", status, http.StatusBadRequest)
	}
	return nil
}

// provisionSession registers a fresh user, logs in and exchanges the request
// token, returning a usable access token.
func (r *Runner) provisionSession(ctx context.Context) (string, error) {
	username := fixtureUsername()
	if status, err := r.register(ctx, username, "hunter2secret"); err != nil {
		return "", err
	} else if status != http.StatusOK {
		return "", fmt.Errorf("registration returned %d", status)
	}

	status, requestToken, err := r.login(ctx, username, "hunter2secret")
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("login returned %d", status)
	}

	status, accessToken, err := r.exchange(ctx, requestToken)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("exchange returned %d", status)
	}
	return accessToken, nil
}

func (r *Runner) register(ctx context.Context, username, password string) (int, error) {
	status, _, err := r.postJSON(ctx, "/api/v1/auth/register",
		map[string]string{"username": username, "password": password})
	return status, err
}

func (r *Runner) login(ctx context.Context, username, password string) (int, string, error) {
	status, body, err := r.postJSON(ctx, "/api/v1/auth/login",
		map[string]string{"username": username, "password": password})
	if err != nil || status != http.StatusOK {
		return status, "", err
	}
	var resp struct {
		RequestToken string `json:"request_token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return status, "", err
	}
	return status, resp.RequestToken, nil
}

func (r *Runner) exchange(ctx context.Context, requestToken string) (int, string, error) {
	status, body, err := r.postJSON(ctx, "/api/v1/oauth/exchange",
		map[string]string{"token": requestToken})
	if err != nil || status != http.StatusOK {
		return status, "", err
	}
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return status, "", err
	}
	return status, resp.AccessToken, nil
}

func (r *Runner) transfer(ctx context.Context, accessToken string, recipient int, amount float64) (int, error) {
	payload, err := json.Marshal(map[string]any{
		"recipient":   recipient,
		"description": "selftest " + uuid.NewString(),
		"amount":      amount,
	})
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/v1/transactions", bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := r.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func (r *Runner) postJSON(ctx context.Context, path string, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, buf.Bytes(), nil
}

func fixtureUsername() string {
	return "selftest-" + uuid.NewString()
}
