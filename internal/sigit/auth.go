package sigit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/banktl/atmwatch/internal/config"
)

// Credentials is one vendor username/password pair.
type Credentials struct {
	Username string
	Password string
}

// AuthManager owns the login lifecycle: which credential pair is
// current, token extraction and refresh, and best-effort logout.
type AuthManager struct {
	session  *Session
	primary  Credentials
	fallback Credentials

	// usedFallback records which pair produced the current token.
	usedFallback bool
}

// NewAuthManager wires the auth manager to a session and the
// configured credential pairs.
func NewAuthManager(session *Session, cfg config.VendorConfig) *AuthManager {
	return &AuthManager{
		session: session,
		primary: Credentials{Username: cfg.Username, Password: cfg.Password},
		fallback: Credentials{
			Username: cfg.FallbackUser,
			Password: cfg.FallbackPass,
		},
	}
}

// UsedFallback reports whether the current token came from the
// fallback credential pair.
func (a *AuthManager) UsedFallback() bool { return a.usedFallback }

// Login authenticates against the vendor, trying the primary
// credentials and then the fallback pair once. On success the token is
// stored on the session.
func (a *AuthManager) Login(ctx context.Context) error {
	if err := a.loginWith(ctx, a.primary); err == nil {
		a.usedFallback = false
		return nil
	} else {
		log.Warn().Err(err).Str("user", a.primary.Username).
			Msg("Primary credentials rejected, trying fallback")
	}

	if a.fallback.Username == "" {
		return fmt.Errorf("%w: primary credentials rejected and no fallback configured", ErrAuthenticationFailed)
	}
	if err := a.loginWith(ctx, a.fallback); err != nil {
		return fmt.Errorf("%w: both credential sets rejected: %v", ErrAuthenticationFailed, err)
	}
	a.usedFallback = true
	log.Info().Str("user", a.fallback.Username).Msg("Authenticated with fallback credentials")
	return nil
}

// Refresh re-logs-in with whichever credential pair last worked.
func (a *AuthManager) Refresh(ctx context.Context) error {
	creds := a.primary
	if a.usedFallback {
		creds = a.fallback
	}
	if err := a.loginWith(ctx, creds); err != nil {
		return fmt.Errorf("token refresh: %w", err)
	}
	log.Debug().Str("user", creds.Username).Msg("User token refreshed")
	return nil
}

func (a *AuthManager) loginWith(ctx context.Context, creds Credentials) error {
	payload := map[string]interface{}{
		"header": map[string]interface{}{
			"logged_user": creds.Username,
			"password":    creds.Password,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal login payload: %w", err)
	}

	url := a.session.baseURL + "/sigit/user/login?language=EN"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create login request: %w", err)
	}
	a.session.prepare(req)

	resp, err := a.session.client.Do(req)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login rejected: HTTP %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read login response: %w", err)
	}

	token, where, err := extractToken(raw)
	if err != nil {
		return err
	}
	a.session.setAuth(creds.Username, token)
	log.Debug().Str("token_location", where).Msg("User token extracted")
	return nil
}

// extractToken probes the three positions the vendor is known to put
// the token in: top-level user_token, top-level token, and
// header.user_token.
func extractToken(raw []byte) (token, location string, err error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", "", fmt.Errorf("login response is not an object: %w", err)
	}

	if tok, ok := doc["user_token"].(string); ok && tok != "" {
		return tok, "user_token", nil
	}
	if tok, ok := doc["token"].(string); ok && tok != "" {
		return tok, "token", nil
	}
	if header, ok := doc["header"].(map[string]interface{}); ok {
		if tok, ok := header["user_token"].(string); ok && tok != "" {
			return tok, "header.user_token", nil
		}
	}
	return "", "", fmt.Errorf("no user token in login response")
}

// Logout PUTs the current token to the logout endpoint. Non-200
// responses are tolerated; the token is cleared locally regardless and
// logout never fails a cycle.
func (a *AuthManager) Logout(ctx context.Context) {
	token := a.session.Token()
	defer a.session.clearToken()
	if token == "" {
		return
	}

	payload := RequestEnvelope{Header: RequestHeader{
		LoggedUser: a.session.LoggedUser(),
		UserToken:  token,
	}}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to marshal logout payload")
		return
	}

	url := a.session.baseURL + "/sigit/user/logout"
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create logout request")
		return
	}
	a.session.prepare(req)

	resp, err := a.session.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("Logout request failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Msg("Logout returned non-200")
		return
	}
	log.Debug().Msg("Logged out")
}
