package sigit

import "errors"

// Error kinds the orchestrator matches on. Everything the client
// returns wraps one of these.
var (
	// ErrNetworkUnreachable means the vendor host did not answer the
	// reachability probe. Triggers failover synthesis.
	ErrNetworkUnreachable = errors.New("vendor host unreachable")

	// ErrAuthenticationFailed means login failed with both the primary
	// and the fallback credential set. Triggers failover synthesis.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrTransientAPI covers 5xx, network I/O errors and JSON parse
	// failures. Retried up to max_retries with fixed backoff.
	ErrTransientAPI = errors.New("transient vendor API error")

	// ErrTerminalAPI covers 404 and result_code != "000". Not retried;
	// treated as "no data" for the affected terminal or status.
	ErrTerminalAPI = errors.New("vendor API returned no data")

	// ErrMalformedResponse means the response shape was not the
	// expected dict or list. Logged once, then treated like
	// ErrTerminalAPI for that call.
	ErrMalformedResponse = errors.New("malformed vendor response")
)
