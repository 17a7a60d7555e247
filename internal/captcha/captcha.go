package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultEndpoint is the reCAPTCHA siteverify URL.
const DefaultEndpoint = "https://www.google.com/recaptcha/api/siteverify"

// Verifier checks captcha responses against the verification service. An
// empty secret disables verification, so local setups work without a captcha
// account.
type Verifier struct {
	secret   string
	endpoint string
	client   *http.Client
}

func NewVerifier(secret, endpoint string) *Verifier {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Verifier{
		secret:   secret,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether a secret is configured.
func (v *Verifier) Enabled() bool {
	return v.secret != ""
}

// Verify posts the captcha response to the verification service and returns
// its verdict. Transport or decode failures are errors, not verdicts.
func (v *Verifier) Verify(ctx context.Context, response string) (bool, error) {
	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", response)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("building captcha request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("verifying captcha: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("captcha service returned status %d", resp.StatusCode)
	}

	var verdict struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return false, fmt.Errorf("decoding captcha response: %w", err)
	}
	return verdict.Success, nil
}
