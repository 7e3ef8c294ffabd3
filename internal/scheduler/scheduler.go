package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"FearGreedTracker/internal/calculator"
	"FearGreedTracker/internal/metrics"
	"FearGreedTracker/internal/model"
	"FearGreedTracker/internal/notifier"
	"FearGreedTracker/internal/reconciler"
	"FearGreedTracker/internal/recorder"
	"FearGreedTracker/internal/report"
	"FearGreedTracker/internal/store"
	"FearGreedTracker/internal/version"
)

// ErrAlreadyRunning is returned when an update is requested while one runs.
var ErrAlreadyRunning = errors.New("skipped: update already running")

// Notifier delivers update reports.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Deps are the collaborators of the update pipeline. Version, Notifier,
// Recorder and Metrics may be nil.
type Deps struct {
	Reconciler  *reconciler.Reconciler
	Store       store.Store
	Version     *version.Manager
	Notifier    Notifier
	Recorder    recorder.Recorder
	Metrics     *metrics.Metrics
	ReadmePath  string
	BackupFiles []string
	GapDays     int
}

// Scheduler runs the update pipeline on a cron schedule and on demand.
type Scheduler struct {
	Cron *cron.Cron
	Ctx  context.Context

	deps Deps
	log  zerolog.Logger
	mu   sync.Mutex
	now  func() time.Time
}

// NewScheduler creates a Scheduler whose cron specs include seconds.
// Overlapping cron runs are skipped.
func NewScheduler(ctx context.Context, deps Deps, loc *time.Location, log zerolog.Logger) *Scheduler {
	log = log.With().Str("component", "scheduler").Logger()
	if loc == nil {
		loc = time.Local
	}
	cl := cronLogger{log: log}
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		Ctx:  ctx,
		deps: deps,
		log:  log,
		now:  time.Now,
	}
}

// Register schedules the update pipeline.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.updateTask); err != nil {
		return fmt.Errorf("register update task: %w", err)
	}
	s.log.Info().Str("cron", spec).Msg("update task registered")
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running update.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// Next returns the next scheduled run, zero when nothing is registered.
func (s *Scheduler) Next() time.Time {
	entries := s.Cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) updateTask() {
	if _, err := s.RunUpdate(s.Ctx); err != nil {
		s.log.Error().Err(err).Msg("scheduled update failed")
	}
}

// RunUpdate runs sync, README regeneration, versioning and notification.
// Only one update runs at a time; a concurrent call gets ErrAlreadyRunning.
// Later stages still run after a failed stage when they can.
func (s *Scheduler) RunUpdate(ctx context.Context) (*model.UpdateResult, error) {
	if !s.mu.TryLock() {
		s.log.Warn().Msg(ErrAlreadyRunning.Error())
		return nil, ErrAlreadyRunning
	}
	defer s.mu.Unlock()

	res := &model.UpdateResult{RunID: uuid.NewString(), StartedAt: s.now()}
	log := s.log.With().Str("run_id", res.RunID).Logger()
	log.Info().Msg("update started")

	fail := func(err error) {
		if res.Err == nil {
			res.Err = err
		}
	}

	sr, err := s.deps.Reconciler.Incremental(ctx)
	if err != nil {
		log.Error().Err(err).Msg("sync failed")
		fail(fmt.Errorf("sync: %w", err))
	} else {
		res.Sync = &sr
		log.Info().Str("status", sr.StatusMessage).Int64("affected", sr.Affected).Msg("sync done")
	}

	summary, dist, err := calculator.Stats(ctx, s.deps.Store)
	if err != nil {
		log.Error().Err(err).Msg("stats failed")
		fail(err)
	} else if latest, ok := summary.Latest(); ok {
		s.deps.Metrics.Latest(latest.Value)
	}

	if err == nil && s.deps.ReadmePath != "" {
		data := report.Data{Summary: summary, Distribution: dist, GeneratedAt: s.now()}
		if err := report.WriteReadme(s.deps.ReadmePath, data); err != nil {
			log.Error().Err(err).Msg("readme generation failed")
			fail(err)
		} else {
			res.ReadmePath = s.deps.ReadmePath
		}
	}

	if s.deps.Version != nil && res.Err == nil {
		v, err := s.deps.Version.CreateVersion(ctx, s.deps.BackupFiles, "")
		res.Backups, res.Committed, res.Pushed = v.Backups, v.Committed, v.Pushed
		if err != nil {
			log.Error().Err(err).Msg("versioning failed")
			fail(fmt.Errorf("version: %w", err))
		}
	}

	res.FinishedAt = s.now()
	s.deps.Metrics.Update(res.FinishedAt.Sub(res.StartedAt), res.Err)
	if s.deps.Recorder != nil {
		if err := s.deps.Recorder.RecordUpdate(ctx, res); err != nil {
			log.Warn().Err(err).Msg("record run failed")
		}
	}
	s.trySend(ctx, notifier.FormatUpdateReport(res, summary))

	log.Info().Dur("took", res.FinishedAt.Sub(res.StartedAt)).Bool("ok", res.Err == nil).Msg("update finished")
	return res, res.Err
}

// HandleCommand processes a bot command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	switch strings.ToLower(command) {
	case "/update", "更新":
		if _, err := s.RunUpdate(ctx); errors.Is(err, ErrAlreadyRunning) {
			return "⏳ 更新正在进行中"
		}
		// RunUpdate already sent the report.
		return ""
	case "/status", "状态":
		summary, dist, err := calculator.Stats(ctx, s.deps.Store)
		if err != nil {
			return fmt.Sprintf("❌ 读取数据失败: %v", err)
		}
		return notifier.FormatStatusMessage(summary, dist)
	case "/gaps", "缺失":
		gaps, err := s.deps.Reconciler.Gaps(ctx, s.deps.GapDays)
		if err != nil {
			return fmt.Sprintf("❌ 缺失分析失败: %v", err)
		}
		return report.FormatGaps(gaps)
	default:
		return "可用命令:\n• /status 当前状态\n• /update 立即更新\n• /gaps 缺失数据分析"
	}
}

func (s *Scheduler) trySend(ctx context.Context, text string) {
	if s.deps.Notifier == nil {
		return
	}
	if err := s.deps.Notifier.SendWithRetry(ctx, text, 3); err != nil {
		s.log.Error().Err(err).Msg("send notification failed")
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
