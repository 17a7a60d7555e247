package services

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/viper"

	"github.com/wondough/bank/internal/captcha"
	"github.com/wondough/bank/internal/security"
)

// AuthService is the session facade: it registers users, authenticates login
// requests against the credential store, migrates stale password hashes and
// turns a successful login into a token issuance.
type AuthService struct {
	users     *UserService
	tokens    *TokenService
	policy    *security.Policy
	captcha   *captcha.Verifier
	validator *ValidationHelper
}

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3" example:"alice"`
	Password string `json:"password" validate:"required,min=6" example:"password123"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Username        string `json:"username" validate:"required" example:"alice"`
	Password        string `json:"password" validate:"required" example:"password123"`
	CaptchaResponse string `json:"captchaResponse,omitempty"`
	Target          string `json:"target,omitempty"`
}

// LoginResponse carries the request token issued for a successful login. The
// token is returned exactly once and only its digest is kept server-side.
type LoginResponse struct {
	RequestToken string `json:"request_token"`
	Redirect     string `json:"redirect,omitempty"`
}

// ExchangeRequest represents the token exchange payload
type ExchangeRequest struct {
	Token string `json:"token" validate:"required"`
}

func NewAuthService(users *UserService, tokens *TokenService, policy *security.Policy, captchaVerifier *captcha.Verifier) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		policy:    policy,
		captcha:   captchaVerifier,
		validator: NewValidationHelper(),
	}
}

// Register handles user registration
func (s *AuthService) Register(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Registration attempt from IP: %s", r.RemoteAddr)

	var req RegisterRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		log.Printf("[AUTH] Registration validation failed: %v", err)
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	salt, err := s.policy.GenerateSalt()
	if err != nil {
		log.Printf("[AUTH] Salt generation failed for %s: %v", req.Username, err)
		SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
		return
	}
	hash := s.policy.DerivePasswordHash(req.Password, salt, s.policy.Iterations, s.policy.KeySize)

	id, created, err := s.users.CreateUser(r.Context(), req.Username, hash, salt, s.policy.Iterations, s.policy.KeySize)
	if err != nil {
		log.Printf("[AUTH] User creation failed for %s: %v", req.Username, err)
		SendErrorResponse(w, "Failed to create user", http.StatusInternalServerError, nil)
		return
	}
	if !created {
		log.Printf("[AUTH] Username already taken: %s", req.Username)
		SendErrorResponse(w, "Username Already Exists", http.StatusConflict, nil)
		return
	}

	log.Printf("[AUTH] User created successfully - ID: %d, Username: %s", id, req.Username)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"id": id, "username": req.Username})
}

// Login authenticates a user and issues a request token. A stale password
// hash is migrated to the current policy parameters before issuance.
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Login attempt from IP: %s", r.RemoteAddr)

	var req LoginRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		log.Printf("[AUTH] Login validation failed: %v", err)
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if s.captcha.Enabled() {
		if req.CaptchaResponse == "" {
			SendErrorResponse(w, "Captcha was not completed", http.StatusBadRequest, nil)
			return
		}
		ok, err := s.captcha.Verify(r.Context(), req.CaptchaResponse)
		if err != nil {
			log.Printf("[AUTH] Captcha verification failed: %v", err)
			SendErrorResponse(w, "Captcha verification failed", http.StatusInternalServerError, nil)
			return
		}
		if !ok {
			SendErrorResponse(w, "Please complete the captcha", http.StatusBadRequest, nil)
			return
		}
	}

	user, err := s.users.LookupUser(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Printf("[AUTH] User not found: %s", req.Username)
			SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
			return
		}
		log.Printf("[AUTH] User lookup failed for %s: %v", req.Username, err)
		SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
		return
	}

	// The presented password is hashed with the parameters stored for this
	// user, which may trail the current policy.
	hash := s.policy.DerivePasswordHash(req.Password, user.Salt, user.Iterations, user.KeySize)
	if subtle.ConstantTimeCompare([]byte(hash), []byte(user.Password)) != 1 {
		log.Printf("[AUTH] Invalid password for user: %s", req.Username)
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	if user.Iterations != s.policy.Iterations || user.KeySize != s.policy.KeySize {
		rehash := s.policy.DerivePasswordHash(req.Password, user.Salt, s.policy.Iterations, s.policy.KeySize)
		if err := s.users.UpdateCredentials(r.Context(), user.Username, s.policy.Iterations, s.policy.KeySize, rehash); err != nil {
			log.Printf("[AUTH] Rehash failed for %s: %v", req.Username, err)
			SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
			return
		}
		log.Printf("[AUTH] Rehashed credentials for user %d to current policy", user.ID)
	}

	requestToken, _, err := s.tokens.Issue(r.Context(), user.ID)
	if err != nil {
		log.Printf("[AUTH] Token issuance failed for user %d: %v", user.ID, err)
		SendErrorResponse(w, "Couldn't authorise application", http.StatusInternalServerError, nil)
		return
	}

	response := LoginResponse{RequestToken: requestToken}
	if req.Target != "" {
		trusted := viper.GetString("auth.trusted_redirect")
		if req.Target != trusted {
			log.Printf("[AUTH] Untrusted redirect target rejected: %s", req.Target)
			SendErrorResponse(w, "Redirect target not trusted", http.StatusBadRequest, nil)
			return
		}
		response.Redirect = trusted + "?token=" + url.QueryEscape(requestToken)
	}

	log.Printf("[AUTH] Login successful for user %d", user.ID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// Exchange swaps a request token for its paired access token.
func (s *AuthService) Exchange(w http.ResponseWriter, r *http.Request) {
	var req ExchangeRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	accessToken, err := s.tokens.Exchange(r.Context(), req.Token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			SendErrorResponse(w, "Invalid request token", http.StatusBadRequest, nil)
			return
		}
		log.Printf("[AUTH] Token exchange failed: %v", err)
		SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"access_token": accessToken})
}

// GetApp returns the display name for an application ID, consumed by the
// authorization page.
func (s *AuthService) GetApp(w http.ResponseWriter, r *http.Request) {
	appID, err := strconv.Atoi(r.URL.Query().Get("app"))
	if err != nil {
		SendErrorResponse(w, "Invalid appid", http.StatusBadRequest, nil)
		return
	}

	name, err := s.users.LookupAppDisplayName(r.Context(), appID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			SendErrorResponse(w, "Invalid appid", http.StatusBadRequest, nil)
			return
		}
		log.Printf("[AUTH] App lookup failed for %d: %v", appID, err)
		SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"app_id": appID, "name": name})
}

// decodeJSONBody applies the shared body-size limit and strict decoding
// rules. It writes the error response itself and reports whether decoding
// succeeded.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return false
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	return true
}
