package syncengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Credentials are the operator credentials the terminal logs in with.
type Credentials struct {
	TenantID string
	Code     string
	PIN      string
}

// LoginTokenSource exchanges terminal credentials for a session token on
// first use and again whenever the cached token is invalidated. A login
// failure surfaces as an error from Token, leaving the caller free to
// retry on the next cycle; nothing is cached on failure.
type LoginTokenSource struct {
	loginURL string
	creds    Credentials
	http     *http.Client

	mu    sync.Mutex
	token string
}

func NewLoginTokenSource(serverURL string, creds Credentials) *LoginTokenSource {
	return &LoginTokenSource{
		loginURL: serverURL + "/api/v1/auth/login",
		creds:    creds,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *LoginTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" {
		return s.token, nil
	}

	payload, err := json.Marshal(map[string]string{
		"tenant_id": s.creds.TenantID,
		"code":      s.creds.Code,
		"pin":       s.creds.PIN,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.loginURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login returned %d", resp.StatusCode)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if body.Token == "" {
		return "", fmt.Errorf("login returned an empty token")
	}
	s.token = body.Token
	return s.token, nil
}

func (s *LoginTokenSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

// StaticTokenSource serves a fixed token and never refreshes it.
type StaticTokenSource string

func (s StaticTokenSource) Token(ctx context.Context) (string, error) { return string(s), nil }
func (s StaticTokenSource) Invalidate()                               {}
