// Package collector implements the per-cycle harvest pipeline:
// reachability, authentication, regional fetch, terminal search,
// terminal details, optional cash info, persistence and logout, with
// failover synthesis when the vendor cannot be reached or logged into.
package collector

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/banktl/atmwatch/internal/clock"
	"github.com/banktl/atmwatch/internal/failover"
	"github.com/banktl/atmwatch/internal/metrics"
	"github.com/banktl/atmwatch/internal/models"
	"github.com/banktl/atmwatch/internal/persistence"
	"github.com/banktl/atmwatch/internal/processor"
	"github.com/banktl/atmwatch/internal/registry"
)

// API is the slice of the vendor client the pipeline consumes.
type API interface {
	FetchDashboard(ctx context.Context) (map[string]interface{}, error)
	SearchTerminalsByStatus(ctx context.Context, status string) ([]map[string]interface{}, error)
	FetchTerminalDetails(ctx context.Context, terminalID, issueStateCode string) ([]map[string]interface{}, error)
	FetchTerminalCashInfo(ctx context.Context, terminalID string) ([]map[string]interface{}, error)
}

// Authenticator is the auth lifecycle the pipeline drives.
type Authenticator interface {
	Login(ctx context.Context) error
	Logout(ctx context.Context)
}

// Prober answers whether the vendor host is reachable at all.
type Prober interface {
	Check(ctx context.Context) error
}

// Persister writes one cycle across the independent streams.
type Persister interface {
	PersistCycle(ctx context.Context, snap models.CycleSnapshot) ([]persistence.StreamResult, error)
}

// ArtifactWriter dumps one cycle to a JSON file.
type ArtifactWriter interface {
	WriteCycle(snap models.CycleSnapshot) (string, error)
}

// Options tunes one collector instance.
type Options struct {
	RegionCode      string
	TotalATMs       int
	IncludeCashInfo bool
	DemoMode        bool
	// Pacing is the minimum spacing between per-terminal requests in
	// the detail and cash phases.
	Pacing time.Duration
}

// Collector runs the eight-phase pipeline. One instance serves one
// process; cycles never overlap.
type Collector struct {
	opts      Options
	clk       clock.Clock
	probe     Prober
	auth      Authenticator
	api       API
	proc      *processor.Processor
	synth     *failover.Synthesiser
	reg       *registry.Registry
	store     Persister
	artifacts ArtifactWriter
	metrics   *metrics.Registry
	limiter   *rate.Limiter
	demo      *demoFeed
}

// New assembles a collector. store and artifacts may be nil when
// persistence or JSON dumps are disabled; probe, auth and api may be
// nil only in demo mode.
func New(opts Options, clk clock.Clock, probe Prober, auth Authenticator, api API,
	reg *registry.Registry, store Persister, artifacts ArtifactWriter, m *metrics.Registry) *Collector {

	pacing := opts.Pacing
	if pacing <= 0 {
		pacing = 200 * time.Millisecond
	}
	c := &Collector{
		opts:      opts,
		clk:       clk,
		probe:     probe,
		auth:      auth,
		api:       api,
		proc:      processor.New(clk, opts.RegionCode, opts.TotalATMs, opts.DemoMode),
		synth:     failover.New(clk, opts.RegionCode, opts.TotalATMs, opts.DemoMode),
		reg:       reg,
		store:     store,
		artifacts: artifacts,
		metrics:   m,
		limiter:   rate.NewLimiter(rate.Every(pacing), 1),
	}
	if opts.DemoMode {
		c.demo = newDemoFeed(reg, opts.TotalATMs)
	}
	return c
}

// RunCycle executes one complete cycle and returns its snapshot. The
// error is non-nil only for unhandled failures; failover cycles return
// nil because the failover acted as designed.
func (c *Collector) RunCycle(ctx context.Context) (models.CycleSnapshot, error) {
	snap := models.CycleSnapshot{
		CycleID:            uuid.NewString(),
		StartedAt:          c.clk.Now(),
		DemoMode:           c.opts.DemoMode,
		PerformanceMetrics: make(map[string]float64),
	}
	log.Info().Str("cycle_id", snap.CycleID).Bool("demo", c.opts.DemoMode).Msg("Cycle started")

	if c.opts.DemoMode {
		c.runDemo(ctx, &snap)
	} else {
		if done := c.runHarvest(ctx, &snap); done != nil {
			if c.metrics != nil {
				c.metrics.Cycles.WithLabelValues("error").Inc()
			}
			return snap, done
		}
	}

	c.persist(ctx, &snap)

	if !snap.Failover && !c.opts.DemoMode {
		c.phase(&snap, "p8_logout", func() error {
			c.auth.Logout(ctx)
			return nil
		})
	}

	if err := c.reg.Save(c.clk); err != nil {
		log.Error().Err(err).Msg("Failed to save terminal registry")
	}
	if c.metrics != nil {
		c.metrics.RegistrySize.Set(float64(c.reg.Len()))
		c.metrics.TerminalsObserved.Set(float64(len(snap.Terminals)))
		outcome := "harvest"
		if snap.Failover {
			outcome = "failover"
		}
		c.metrics.Cycles.WithLabelValues(outcome).Inc()
	}

	log.Info().Str("cycle_id", snap.CycleID).
		Bool("failover", snap.Failover).
		Int("terminals", len(snap.Terminals)).
		Int("cash_records", len(snap.Cash)).
		Msg("Cycle finished")
	return snap, nil
}

// runHarvest performs phases P1 through P6. A non-nil return means the
// cycle itself failed in an unhandled way (currently only context
// cancellation); P1/P2 failures branch into failover instead.
func (c *Collector) runHarvest(ctx context.Context, snap *models.CycleSnapshot) error {
	// P1: reachability. Failure means a confirmed network outage, not
	// a broken collector.
	var probeErr error
	c.phase(snap, "p1_reachability", func() error {
		probeErr = c.probe.Check(ctx)
		return probeErr
	})
	if probeErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.failover(snap, failover.ConnectionFailed, probeErr)
		return nil
	}

	// P2: authentication, primary then fallback credentials.
	var authErr error
	c.phase(snap, "p2_authenticate", func() error {
		authErr = c.auth.Login(ctx)
		return authErr
	})
	if authErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.failover(snap, failover.AuthFailed, authErr)
		return nil
	}

	// P3: regional aggregates. Failure here does not stop the cycle;
	// the terminal phases can still harvest.
	c.phase(snap, "p3_regional", func() error {
		dashboard, err := c.api.FetchDashboard(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Regional fetch yielded no data")
			return err
		}
		regional, err := c.proc.RegionalSnapshot(dashboard)
		if err != nil {
			log.Warn().Err(err).Msg("Regional payload not usable")
			return err
		}
		snap.Regional = regional
		return nil
	})

	// P4: terminal search across all vendor status filters.
	var observations []processor.TerminalObservation
	c.phase(snap, "p4_terminal_search", func() error {
		observations = c.searchTerminals(ctx)
		return nil
	})

	// P5: per-terminal details.
	c.phase(snap, "p5_terminal_details", func() error {
		snap.Terminals = c.fetchDetails(ctx, observations)
		return nil
	})

	// P6: optional cash info.
	if c.opts.IncludeCashInfo {
		c.phase(snap, "p6_cash_info", func() error {
			snap.Cash = c.fetchCash(ctx, observations)
			return nil
		})
	}
	return ctx.Err()
}

// searchTerminals runs the eight status filters and merges the results
// by terminal ID, first occurrence winning. New IDs go straight into
// the registry.
func (c *Collector) searchTerminals(ctx context.Context) []processor.TerminalObservation {
	seen := make(map[string]bool)
	var observations []processor.TerminalObservation

	for _, status := range models.VendorStatuses {
		if ctx.Err() != nil {
			break
		}
		items, err := c.api.SearchTerminalsByStatus(ctx, status)
		if err != nil {
			log.Warn().Err(err).Str("status", status).
				Msg("Terminal search yielded no data for status")
			continue
		}
		for _, item := range items {
			obs := processor.ObservationFromSearch(item, status)
			if obs.TerminalID == "" || seen[obs.TerminalID] {
				continue
			}
			seen[obs.TerminalID] = true
			if !c.reg.Known(obs.TerminalID) {
				location, _ := item["location"].(string)
				c.reg.Add(obs.TerminalID, location, c.clk.Now())
				obs.NewlyFound = true
			}
			observations = append(observations, obs)
		}
	}
	log.Info().Int("terminals", len(observations)).Msg("Terminal search merged")
	return observations
}

// fetchDetails retrieves detail records terminal by terminal, paced so
// the vendor never sees concurrent load from this client.
func (c *Collector) fetchDetails(ctx context.Context, observations []processor.TerminalObservation) []models.TerminalStatusRecord {
	var records []models.TerminalStatusRecord
	for _, obs := range observations {
		if err := c.limiter.Wait(ctx); err != nil {
			break
		}
		items, err := c.api.FetchTerminalDetails(ctx, obs.TerminalID, obs.IssueStateCode)
		if err != nil {
			log.Warn().Err(err).Str("terminal_id", obs.TerminalID).
				Msg("Terminal details yielded no data")
			continue
		}
		for _, item := range items {
			records = append(records, c.proc.TerminalRecord(item, obs))
		}
	}
	return records
}

// fetchCash retrieves the cash position terminal by terminal. A failed
// query still yields a null record so the cycle stays complete.
func (c *Collector) fetchCash(ctx context.Context, observations []processor.TerminalObservation) []models.CashRecord {
	var records []models.CashRecord
	for _, obs := range observations {
		if err := c.limiter.Wait(ctx); err != nil {
			break
		}
		body, err := c.api.FetchTerminalCashInfo(ctx, obs.TerminalID)
		if err != nil {
			log.Warn().Err(err).Str("terminal_id", obs.TerminalID).
				Msg("Cash info yielded no data")
			records = append(records, c.proc.NullCashRecord(obs.TerminalID, err))
			continue
		}
		records = append(records, c.proc.CashRecord(obs.TerminalID, body))
	}
	return records
}

// failover replaces the harvest with a synthetic OUT_OF_SERVICE
// snapshot for the whole known fleet.
func (c *Collector) failover(snap *models.CycleSnapshot, mode failover.Mode, cause error) {
	c.phase(snap, "failover_synthesis", func() error {
		regional, terminals := c.synth.Snapshot(mode, cause, c.reg)
		snap.Regional = regional
		snap.Terminals = terminals
		snap.Failover = true
		snap.FailoverReason = cause.Error()
		return nil
	})
	if c.metrics != nil {
		marker := "CONNECTION_FAILED"
		if mode == failover.AuthFailed {
			marker = "AUTH_FAILED"
		}
		c.metrics.FailoverCycles.WithLabelValues(marker).Inc()
	}
}

// persist runs P7 and the optional JSON artifact. Demo cycles skip the
// database entirely; the flag is checked once at entry.
func (c *Collector) persist(ctx context.Context, snap *models.CycleSnapshot) {
	c.phase(snap, "p7_persist", func() error {
		if c.opts.DemoMode || c.store == nil {
			log.Debug().Msg("Persistence skipped")
			return nil
		}
		results, err := c.store.PersistCycle(ctx, *snap)
		for _, r := range results {
			if c.metrics == nil {
				continue
			}
			if r.Err != nil {
				c.metrics.PersistenceErrors.WithLabelValues(r.Stream).Inc()
			} else {
				c.metrics.PersistedRows.WithLabelValues(r.Stream).Add(float64(r.Rows))
			}
		}
		if err != nil {
			log.Error().Err(err).Msg("Persistence failed across all streams")
		}
		return err
	})

	if c.artifacts != nil {
		path, err := c.artifacts.WriteCycle(*snap)
		if err != nil {
			log.Error().Err(err).Msg("Failed to write cycle artifact")
		} else {
			log.Debug().Str("path", path).Msg("Cycle artifact written")
		}
	}
}

// phase times one pipeline phase into the cycle's performance metrics
// and the Prometheus histogram.
func (c *Collector) phase(snap *models.CycleSnapshot, name string, fn func() error) {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	snap.PerformanceMetrics[name] = elapsed.Seconds()
	result := "ok"
	if err != nil {
		result = "error"
	}
	if c.metrics != nil {
		c.metrics.PhaseDuration.WithLabelValues(name, result).Observe(elapsed.Seconds())
	}
	log.Debug().Str("phase", name).Dur("elapsed", elapsed).Str("result", result).Msg("Phase complete")
}
