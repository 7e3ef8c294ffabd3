package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"FearGreedTracker/internal/collector"
	"FearGreedTracker/internal/config"
	"FearGreedTracker/internal/logging"
	"FearGreedTracker/internal/metrics"
	"FearGreedTracker/internal/notifier"
	"FearGreedTracker/internal/reconciler"
	"FearGreedTracker/internal/recorder"
	"FearGreedTracker/internal/scheduler"
	"FearGreedTracker/internal/store"
	"FearGreedTracker/internal/version"
)

// app holds the components shared by every command.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	loc      *time.Location
	store    store.Store
	sqlite   *store.SQLiteStore
	runs     recorder.Recorder
	fetcher  collector.Fetcher
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	closers []io.Closer
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	log, logCloser := logging.New(logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	a := &app{cfg: cfg, log: log, loc: loc, closers: []io.Closer{logCloser}}

	if dryRun {
		a.store = store.NewMemoryStore()
		a.runs = recorder.NewNoopRecorder()
		log.Warn().Msg("dry run: using in-memory store")
	} else {
		s, err := store.NewSQLiteStore(cfg.Database.SQLitePath, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store, a.sqlite = s, s
		runs, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			log.Warn().Err(err).Msg("run history disabled")
			a.runs = recorder.NewNoopRecorder()
		} else {
			a.runs = runs
		}
	}
	a.closers = append([]io.Closer{a.runs, a.store}, a.closers...)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	if mockSource {
		a.fetcher = newMockFetcher(time.Now(), loc)
		log.Warn().Int("days", mockDays).Msg("mock source: serving generated data")
		return a, nil
	}
	cnn := collector.NewCNNFetcher(collector.CNNOptions{
		BaseURL:         cfg.Source.BaseURL,
		Timeout:         cfg.Source.Timeout,
		MaxRetries:      cfg.Source.MaxRetries,
		RetryDelay:      cfg.Source.RetryDelay,
		BreakerFailures: uint32(cfg.Source.BreakerFailures),
		BreakerTimeout:  cfg.Source.BreakerTimeout,
		Proxy:           cfg.Proxy,
	}, logging.Component(log, "collector"))
	cnn.Metrics = a.metrics
	a.fetcher = cnn
	return a, nil
}

// mockDays is the length of the --mock series.
const mockDays = 400

// newMockFetcher returns an offline source with mockDays of generated
// history ending at now.
func newMockFetcher(now time.Time, loc *time.Location) *collector.MockFetcher {
	return &collector.MockFetcher{Data: collector.GenerateMockSeries(now, mockDays), Loc: loc}
}

// reconciler builds a Reconciler; lookback overrides the configured value when positive.
func (a *app) reconciler(lookback int) *reconciler.Reconciler {
	if lookback <= 0 {
		lookback = a.cfg.Sync.LookbackDays
	}
	return reconciler.New(a.store, a.fetcher,
		reconciler.WithLocation(a.loc),
		reconciler.WithLookback(lookback),
		reconciler.WithPoliteness(a.cfg.Sync.PolitenessDelay),
		reconciler.WithLogger(a.log),
		reconciler.WithMetrics(a.metrics),
	)
}

func (a *app) versionManager() *version.Manager {
	var git version.Committer = version.NoopCommitter{}
	if a.cfg.Version.GitEnabled && !noGit && !dryRun {
		git = version.NewGitCommitter(a.cfg.Version.RepoDir, a.cfg.Version.GitPush, a.log)
	}
	m := version.NewManager(version.NewBackuper(a.cfg.Output.BackupsDir, a.cfg.Output.MaxBackups), git, a.log)
	if a.sqlite != nil {
		m.Snapshot(a.sqlite.Path(), a.sqlite)
	}
	return m
}

// telegram returns nil when Telegram is not configured.
func (a *app) telegram() *notifier.TelegramNotifier {
	if !a.cfg.TelegramEnabled() {
		return nil
	}
	return notifier.NewTelegramNotifier(a.cfg.Telegram.BotToken, a.cfg.Telegram.ChatID, a.cfg.Proxy, a.log)
}

func (a *app) scheduler(ctx context.Context, tn *notifier.TelegramNotifier) *scheduler.Scheduler {
	deps := scheduler.Deps{
		Reconciler: a.reconciler(0),
		Store:      a.store,
		Recorder:   a.runs,
		Metrics:    a.metrics,
		ReadmePath: a.cfg.Output.ReadmePath,
		GapDays:    a.cfg.Sync.GapDays,
	}
	if !dryRun {
		deps.Version = a.versionManager()
		deps.BackupFiles = []string{a.cfg.Database.SQLitePath, a.cfg.Output.ReadmePath}
	}
	if tn != nil {
		deps.Notifier = tn
	}
	return scheduler.NewScheduler(ctx, deps, a.loc, a.log)
}

// Close releases the store and the log file.
func (a *app) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close failed")
		}
	}
}
