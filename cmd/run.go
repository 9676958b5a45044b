package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	gcstorage "cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/voyantlabs/advisory-pipeline/internal/advisory"
	"github.com/voyantlabs/advisory-pipeline/internal/archive"
	archivegcs "github.com/voyantlabs/advisory-pipeline/internal/archive/gcs"
	archivelocal "github.com/voyantlabs/advisory-pipeline/internal/archive/local"
	"github.com/voyantlabs/advisory-pipeline/internal/clock/system"
	"github.com/voyantlabs/advisory-pipeline/internal/config"
	"github.com/voyantlabs/advisory-pipeline/internal/fetch"
	collyfetch "github.com/voyantlabs/advisory-pipeline/internal/fetch/colly"
	"github.com/voyantlabs/advisory-pipeline/internal/fetch/headless"
	"github.com/voyantlabs/advisory-pipeline/internal/logging"
	"github.com/voyantlabs/advisory-pipeline/internal/pipeline"
	"github.com/voyantlabs/advisory-pipeline/internal/proxy"
	"github.com/voyantlabs/advisory-pipeline/internal/report"
	"github.com/voyantlabs/advisory-pipeline/internal/report/sinks"
	"github.com/voyantlabs/advisory-pipeline/internal/server"
	"github.com/voyantlabs/advisory-pipeline/internal/store"
	"github.com/voyantlabs/advisory-pipeline/internal/store/memory"
	"github.com/voyantlabs/advisory-pipeline/internal/store/postgres"
)

// newRunCmd creates the 'run' subcommand, which executes the ingestion
// pipeline once or on an interval.
func newRunCmd() *cobra.Command {
	var intervalFlag time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the advisory ingestion pipeline",
		Long: `Fetches every configured source, extracts and normalizes its
advisories, and upserts them into the store. With --interval (or
pipeline.interval_seconds in config) the pipeline repeats until
interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd.Context(), intervalFlag)
		},
	}

	cmd.Flags().DurationVar(&intervalFlag, "interval", 0, "re-run interval (overrides config; 0 runs once)")
	return cmd
}

func runPipeline(parent context.Context, intervalFlag time.Duration) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	fetcher, fetcherCleanup, err := buildFetcher(cfg, logger)
	if err != nil {
		return err
	}
	defer fetcherCleanup()

	archiver, err := buildArchiver(ctx, cfg)
	if err != nil {
		return err
	}

	ops := server.New(logger)
	sink, err := buildSink(ctx, cfg, ops, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := sink.Close(closeCtx); err != nil {
			logger.Warn("sink close failed", zap.Error(err))
		}
	}()

	opsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Ops.Port),
		Handler:           ops.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := opsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server failed", zap.Error(err))
		}
	}()
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = opsSrv.Shutdown(shutCtx)
	}()

	p := pipeline.New(
		cfg.ToSources(),
		fetcher,
		st,
		sink,
		archiver,
		system.New(),
		pipeline.Config{
			Concurrency:    cfg.Pipeline.Concurrency,
			PersistTimeout: time.Duration(cfg.Pipeline.PersistTimeout) * time.Second,
		},
		logger,
	)

	interval := cfg.Interval()
	if intervalFlag > 0 {
		interval = intervalFlag
	}

	rep, err := pipeline.NewScheduler(p, interval, logger).Run(ctx)
	if err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}

	// Partial failure with some data landed is still a success for cron
	// purposes; total failure is not.
	if rep.AnyFailed() && rep.TotalPersisted() == 0 {
		return fmt.Errorf("all failing: no records persisted and at least one source failed")
	}
	return nil
}

func buildStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Store, error) {
	if cfg.DB.DSN == "" {
		logger.Warn("db.dsn not set, using in-memory store")
		return memory.New(), nil
	}
	st, err := postgres.New(ctx, postgres.Config{
		DSN:             cfg.DB.DSN,
		Table:           cfg.DB.Table,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: time.Duration(cfg.DB.ConnLifetimeSec) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	return st, nil
}

// buildFetcher assembles the retrying fetch client. The returned cleanup
// releases the headless browser allocator and must run on shutdown.
func buildFetcher(cfg config.Config, logger *zap.Logger) (advisory.Fetcher, func(), error) {
	cleanup := func() {}

	pool, err := proxy.New(proxy.Config{
		Entries:          cfg.Proxy.Entries,
		Strategy:         proxy.Strategy(cfg.Proxy.Strategy),
		FailureThreshold: cfg.Proxy.FailureThreshold,
		Cooldown:         time.Duration(cfg.Proxy.CooldownSeconds) * time.Second,
	})
	if err != nil {
		return nil, cleanup, fmt.Errorf("init proxy pool: %w", err)
	}

	plain := collyfetch.New(collyfetch.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})

	var rendered advisory.Fetcher
	if cfg.Headless.Enabled {
		hf, err := headless.New(headless.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.HTTP.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
		})
		if err != nil {
			return nil, cleanup, fmt.Errorf("init headless fetcher: %w", err)
		}
		rendered = hf
		cleanup = hf.Close
	}

	return fetch.NewClient(plain, rendered, pool, fetch.Config{
		MaxRetries:     cfg.HTTP.MaxRetries,
		BackoffInitial: time.Duration(cfg.HTTP.BackoffInitialMs) * time.Millisecond,
		BackoffMax:     time.Duration(cfg.HTTP.BackoffMaxMs) * time.Millisecond,
		PerHostRPS:     cfg.HTTP.PerHostRPS,
	}, logger), cleanup, nil
}

func buildArchiver(ctx context.Context, cfg config.Config) (*archive.Archiver, error) {
	switch {
	case cfg.Archive.GCSBucket != "":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		bs, err := archivegcs.New(client, archivegcs.Config{Bucket: cfg.Archive.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs archive: %w", err)
		}
		return archive.New(bs, cfg.Archive.Prefix)
	case cfg.Archive.Dir != "":
		bs, err := archivelocal.New(archivelocal.Config{BaseDir: cfg.Archive.Dir})
		if err != nil {
			return nil, fmt.Errorf("init local archive: %w", err)
		}
		return archive.New(bs, cfg.Archive.Prefix)
	default:
		return nil, nil
	}
}

func buildSink(ctx context.Context, cfg config.Config, ops *server.Server, logger *zap.Logger) (report.Sink, error) {
	all := []report.Sink{
		sinks.NewLogSink(logger),
		sinks.NewMetricsSink(),
		ops,
	}
	if cfg.Report.ProjectID != "" && cfg.Report.TopicName != "" {
		ps, err := sinks.NewPubSubSink(ctx, cfg.Report.ProjectID, cfg.Report.TopicName)
		if err != nil {
			return nil, fmt.Errorf("init pubsub sink: %w", err)
		}
		all = append(all, ps)
	}
	return report.NewFanout(all...), nil
}
