package sigit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/banktl/atmwatch/internal/config"
)

const (
	pathDashboards      = "/sigit/reports/dashboards"
	pathSearchDashboard = "/sigit/terminal/searchTerminalDashBoard"
	pathSearchTerminal  = "/sigit/terminal/searchTerminal"
)

// Client exposes one typed operation per vendor endpoint. Every call
// runs the shared retry policy: 401 refreshes the token without
// consuming a retry, 404 and non-000 result codes are terminal, and
// 5xx, network and parse failures are retried with a fixed delay.
type Client struct {
	session    *Session
	auth       *AuthManager
	maxRetries int
	retryDelay time.Duration
	breaker    *gobreaker.CircuitBreaker
}

// NewClient builds the vendor client over an authenticated session.
func NewClient(session *Session, auth *AuthManager, cfg config.VendorConfig) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "sigit",
		MaxRequests: 1,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("Vendor circuit breaker state change")
		},
	})
	return &Client{
		session:    session,
		auth:       auth,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		breaker:    breaker,
	}
}

// FetchDashboard retrieves the reports dashboard; the regional
// aggregate lives in the fifth_graphic key of the body object.
func (c *Client) FetchDashboard(ctx context.Context) (map[string]interface{}, error) {
	query := url.Values{}
	query.Set("terminal_type", "ATM")
	query.Set("status_filter", "Status")

	env, err := c.call(ctx, pathDashboards, query, nil)
	if err != nil {
		return nil, err
	}
	obj, ok := env.Body.Object()
	if !ok {
		log.Warn().Str("endpoint", pathDashboards).Msg("Dashboard body is not an object")
		return nil, fmt.Errorf("%w: dashboard body", ErrMalformedResponse)
	}
	return obj, nil
}

// SearchTerminalsByStatus lists the terminals currently matching one
// vendor issueStateName filter.
func (c *Client) SearchTerminalsByStatus(ctx context.Context, status string) ([]map[string]interface{}, error) {
	query := url.Values{}
	query.Set("number_of_occurrences", "30")
	query.Set("terminal_type", "ATM")

	body := map[string]interface{}{
		"parameters_list": []SearchParameter{{
			ParameterName:   "issueStateName",
			ParameterValues: []string{status},
		}},
	}

	env, err := c.call(ctx, pathSearchDashboard, query, body)
	if err != nil {
		return nil, err
	}
	return bodyAsList(env, pathSearchDashboard)
}

// FetchTerminalDetails retrieves the detail records for one terminal,
// filtered by its own issueStateCode.
func (c *Client) FetchTerminalDetails(ctx context.Context, terminalID, issueStateCode string) ([]map[string]interface{}, error) {
	query := url.Values{}
	query.Set("number_of_occurrences", "30")
	query.Set("terminal_type", "ATM")
	query.Set("terminal_id", terminalID)

	body := map[string]interface{}{
		"parameters_list": []SearchParameter{{
			ParameterName:   "issueStateCode",
			ParameterValues: []string{issueStateCode},
		}},
	}

	env, err := c.call(ctx, pathSearchDashboard, query, body)
	if err != nil {
		return nil, err
	}
	return bodyAsList(env, pathSearchDashboard)
}

// FetchTerminalCashInfo retrieves the cash-cassette snapshot for one
// terminal.
func (c *Client) FetchTerminalCashInfo(ctx context.Context, terminalID string) ([]map[string]interface{}, error) {
	query := url.Values{}
	query.Set("number_of_occurrences", "30")
	query.Set("terminal_type", "ATM")
	query.Set("terminal_id", terminalID)
	query.Set("language", "EN")

	env, err := c.call(ctx, pathSearchTerminal, query, nil)
	if err != nil {
		return nil, err
	}
	return bodyAsList(env, pathSearchTerminal)
}

func bodyAsList(env Envelope, endpoint string) ([]map[string]interface{}, error) {
	list, ok := env.Body.List()
	if !ok {
		if env.Body.Kind() == BodyAbsent {
			return nil, nil
		}
		log.Warn().Str("endpoint", endpoint).Msg("Expected list body")
		return nil, fmt.Errorf("%w: expected list body", ErrMalformedResponse)
	}
	return list, nil
}

// call runs one enveloped PUT against the vendor with the full retry
// and refresh policy.
func (c *Client) call(ctx context.Context, path string, query url.Values, body interface{}) (Envelope, error) {
	var lastErr error
	refreshed := false

	for attempt := 0; attempt <= c.maxRetries; {
		if attempt > 0 {
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return Envelope{}, ctx.Err()
			}
			log.Debug().Str("path", path).Int("attempt", attempt).Msg("Retrying vendor call")
		}

		status, raw, err := c.execute(ctx, path, query, body)
		if err != nil {
			if ctx.Err() != nil {
				return Envelope{}, ctx.Err()
			}
			lastErr = fmt.Errorf("%w: %v", ErrTransientAPI, err)
			attempt++
			continue
		}

		switch {
		case status == http.StatusUnauthorized:
			if refreshed {
				return Envelope{}, fmt.Errorf("%w: still unauthorized after refresh", ErrTransientAPI)
			}
			refreshed = true
			log.Info().Str("path", path).Msg("Token expired, refreshing")
			if err := c.auth.Refresh(ctx); err != nil {
				return Envelope{}, fmt.Errorf("%w: %v", ErrTransientAPI, err)
			}
			// The refresh does not consume a retry.
			continue
		case status == http.StatusNotFound:
			return Envelope{}, fmt.Errorf("%w: HTTP 404 for %s", ErrTerminalAPI, path)
		case status >= 500:
			lastErr = fmt.Errorf("%w: HTTP %d from %s", ErrTransientAPI, status, path)
			attempt++
			continue
		case status != http.StatusOK:
			return Envelope{}, fmt.Errorf("%w: HTTP %d from %s", ErrTerminalAPI, status, path)
		}

		env, err := parseEnvelope(raw)
		if err != nil {
			if errors.Is(err, ErrMalformedResponse) {
				log.Warn().Err(err).Str("path", path).Msg("Malformed vendor response")
				return Envelope{}, fmt.Errorf("%w: %v", ErrTerminalAPI, err)
			}
			lastErr = err
			attempt++
			continue
		}

		if !env.OK() {
			return env, fmt.Errorf("%w: result_code %q from %s",
				ErrTerminalAPI, env.Header.ResultCode, path)
		}

		// Rotated tokens are only adopted from successful envelopes.
		c.session.adoptToken(env.Header.UserToken)
		return env, nil
	}

	return Envelope{}, lastErr
}

// execute performs one HTTP round trip through the circuit breaker and
// returns the status code plus the raw body.
func (c *Client) execute(ctx context.Context, path string, query url.Values, body interface{}) (int, []byte, error) {
	envelope := RequestEnvelope{
		Header: RequestHeader{
			LoggedUser: c.session.LoggedUser(),
			UserToken:  c.session.Token(),
		},
		Body: body,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request envelope: %w", err)
	}

	fullURL := c.session.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	type roundTrip struct {
		status int
		body   []byte
	}
	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, fullURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		c.session.prepare(req)

		resp, err := c.session.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		return roundTrip{status: resp.StatusCode, body: raw}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return 0, nil, fmt.Errorf("vendor circuit open: %w", err)
		}
		return 0, nil, err
	}

	rt := result.(roundTrip)
	return rt.status, rt.body, nil
}
