package sigit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os/exec"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/banktl/atmwatch/internal/config"
)

// Probe distinguishes "network down" from "auth broken" before a cycle
// spends time on login. Three ICMP echoes against the vendor host,
// capped by an overall timeout; platforms without a ping binary fall
// back to a single HTTPS HEAD.
type Probe struct {
	host    string
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// NewProbe builds a reachability probe for the vendor host. The HTTP
// fallback shares the session's TLS settings so the self-signed
// certificate is accepted there too.
func NewProbe(session *Session, cfg config.VendorConfig) (*Probe, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid vendor base URL: %w", err)
	}
	return &Probe{
		host:    u.Hostname(),
		baseURL: cfg.BaseURL,
		timeout: cfg.PingTimeout,
		client:  session.client,
	}, nil
}

// Check returns nil when the vendor host answers, and
// ErrNetworkUnreachable otherwise.
func (p *Probe) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	if err := p.ping(ctx); err == nil {
		log.Debug().Str("host", p.host).
			Dur("elapsed", time.Since(start)).
			Msg("Vendor host answered ICMP")
		return nil
	} else if ctx.Err() != nil {
		log.Warn().Str("host", p.host).Err(err).Msg("Ping timed out")
		return fmt.Errorf("%w: ping timeout for %s", ErrNetworkUnreachable, p.host)
	} else if !isPingUnavailable(err) {
		log.Warn().Str("host", p.host).Err(err).Msg("Ping failed")
		return fmt.Errorf("%w: ping failed for %s", ErrNetworkUnreachable, p.host)
	}

	// No usable ping binary on this platform; one HTTPS HEAD decides.
	log.Debug().Str("host", p.host).Msg("Ping unavailable, probing with HTTPS HEAD")
	if err := p.head(ctx); err != nil {
		log.Warn().Str("host", p.host).Err(err).Msg("HTTP reachability probe failed")
		return fmt.Errorf("%w: %v", ErrNetworkUnreachable, err)
	}
	return nil
}

// ping sends three ICMP echoes via the system ping binary.
func (p *Probe) ping(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "ping", "-c", "3", p.host)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ping %s: %w (%s)", p.host, err, firstLine(out))
	}
	return nil
}

// head performs one HTTPS HEAD against the vendor base URL. Any HTTP
// response, whatever the status, proves the host is reachable.
func (p *Probe) head(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.baseURL, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// isPingUnavailable reports whether the error means the ping binary
// itself could not run, as opposed to the host not answering.
func isPingUnavailable(err error) bool {
	var execErr *exec.Error
	return errors.As(err, &execErr)
}

func firstLine(out []byte) string {
	for i, b := range out {
		if b == '\n' {
			return string(out[:i])
		}
	}
	return string(out)
}
