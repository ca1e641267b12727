// Package sigit talks to the vendor ATM monitoring API: session and
// token lifecycle, typed endpoint operations with retry and refresh,
// and the reachability probe that gates every cycle.
package sigit

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/banktl/atmwatch/internal/config"
)

const contentType = "application/json;charset=UTF-8"

// Session is the pooled TLS client plus the current user token. The
// vendor fronts the API with a self-signed certificate, so
// verification is disabled for this host.
type Session struct {
	baseURL   string
	userAgent string
	client    *http.Client

	mu         sync.RWMutex
	token      string
	loggedUser string
}

// NewSession builds a session from vendor configuration. No network
// I/O happens until the first request.
func NewSession(cfg config.VendorConfig) *Session {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Session{
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.ReadTimeout,
		},
	}
}

// Token returns the current user token, empty when logged out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// LoggedUser returns the username the current token belongs to.
func (s *Session) LoggedUser() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loggedUser
}

// setAuth stores a freshly issued token.
func (s *Session) setAuth(user, token string) {
	s.mu.Lock()
	s.loggedUser = user
	s.token = token
	s.mu.Unlock()
}

// adoptToken silently replaces the token when a successful response
// carries a refreshed one in header.user_token.
func (s *Session) adoptToken(token string) {
	if token == "" {
		return
	}
	s.mu.Lock()
	if token != s.token {
		s.token = token
	}
	s.mu.Unlock()
}

// clearToken drops the token locally. Used by logout regardless of
// whether the vendor acknowledged it.
func (s *Session) clearToken() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

// prepare sets the fixed headers every vendor request carries.
func (s *Session) prepare(req *http.Request) {
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Content-Type", contentType)
}
