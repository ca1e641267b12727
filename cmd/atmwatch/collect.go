package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/banktl/atmwatch/internal/artifacts"
	"github.com/banktl/atmwatch/internal/clock"
	"github.com/banktl/atmwatch/internal/collector"
	"github.com/banktl/atmwatch/internal/config"
	"github.com/banktl/atmwatch/internal/metrics"
	"github.com/banktl/atmwatch/internal/ops"
	"github.com/banktl/atmwatch/internal/persistence"
	"github.com/banktl/atmwatch/internal/persistence/postgres"
	"github.com/banktl/atmwatch/internal/registry"
	"github.com/banktl/atmwatch/internal/scheduler"
	"github.com/banktl/atmwatch/internal/sigit"
)

func runCollect(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()

	configPath, _ := flags.GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Flag overrides on top of file and environment. Demo mode implies
	// no vendor traffic and no database.
	demo, _ := flags.GetBool("demo")
	if saveToDB, _ := flags.GetBool("save-to-db"); flags.Changed("save-to-db") {
		cfg.Persistence.Enabled = saveToDB
	}
	if v, _ := flags.GetBool("use-new-tables"); flags.Changed("use-new-tables") {
		cfg.Persistence.UseNewTables = v
	}
	if v, _ := flags.GetBool("legacy-tables"); flags.Changed("legacy-tables") {
		cfg.Persistence.LegacyTables = v
	}
	if v, _ := flags.GetInt("total-atms"); v > 0 {
		cfg.Fleet.TotalATMs = v
	}
	if v, _ := flags.GetString("region"); v != "" {
		cfg.Fleet.RegionCode = v
	}
	if v, _ := flags.GetDuration("interval"); v > 0 {
		cfg.Scheduler.Interval = v
	}
	if v, _ := flags.GetString("registry"); v != "" {
		cfg.Registry.Path = v
	}

	if err := setupLogging(cfg.Logging); err != nil {
		return err
	}

	clk := clock.System{}
	ctx, stop := signalContext()
	defer stop()

	reg, err := registry.Load(cfg.Registry.Path, clk)
	if err != nil {
		return err
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	// Vendor session, probe and client are only needed outside demo
	// mode.
	var (
		probe collector.Prober
		auth  collector.Authenticator
		api   collector.API
	)
	if !demo {
		if cfg.Vendor.BaseURL == "" {
			return fmt.Errorf("vendor base_url is required outside demo mode")
		}
		session := sigit.NewSession(cfg.Vendor)
		p, err := sigit.NewProbe(session, cfg.Vendor)
		if err != nil {
			return err
		}
		authMgr := sigit.NewAuthManager(session, cfg.Vendor)
		probe = p
		auth = authMgr
		api = sigit.NewClient(session, authMgr, cfg.Vendor)
	}

	// Persistence is opt-in and never enabled for demo cycles.
	var store collector.Persister
	if cfg.Persistence.Enabled && !demo {
		manager, err := postgres.NewManager(cfg.Database)
		if err != nil {
			return err
		}
		defer manager.Close()
		store = persistence.NewStore(manager.Repository(), persistence.Options{
			UseNewTables: cfg.Persistence.UseNewTables,
			LegacyTables: cfg.Persistence.LegacyTables,
		})
	}

	var artifactWriter collector.ArtifactWriter
	if saveJSON, _ := flags.GetBool("save-json"); saveJSON {
		outputDir, _ := flags.GetString("output-dir")
		w, err := artifacts.NewWriter(outputDir, clk)
		if err != nil {
			return err
		}
		artifactWriter = w
	}

	includeCash, _ := flags.GetBool("include-cash-info")
	coll := collector.New(collector.Options{
		RegionCode:      cfg.Fleet.RegionCode,
		TotalATMs:       cfg.Fleet.TotalATMs,
		IncludeCashInfo: includeCash,
		DemoMode:        demo,
		Pacing:          cfg.Vendor.RequestPacing,
	}, clk, probe, auth, api, reg, store, artifactWriter, m)

	history := scheduler.NewHistory(0)
	sched := scheduler.New(coll, cfg.Scheduler.Interval, history)

	if addr, _ := flags.GetString("metrics-addr"); addr != "" {
		srv := ops.NewServer(addr, history, prometheus.DefaultGatherer)
		srv.Start()
		defer srv.Shutdown()
	}

	continuous, _ := flags.GetBool("continuous")
	if continuous {
		log.Info().Dur("interval", cfg.Scheduler.Interval).Msg("Continuous collection starting")
		if err := sched.RunContinuous(ctx); err != nil {
			if ctx.Err() != nil {
				log.Info().Msg("Shutdown requested, stopping")
				return context.Canceled
			}
			return err
		}
		return nil
	}

	if err := sched.RunOnce(ctx); err != nil {
		if ctx.Err() != nil {
			return context.Canceled
		}
		return err
	}
	return nil
}
