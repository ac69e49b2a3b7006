// workers/quest_retention_worker.go
package workers

import (
	"context"
	"sync"
	"time"

	"finance-gamification/logger"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

// QuestPruner deletes quest sets dated before a cutoff.
type QuestPruner interface {
	PruneQuestSets(ctx context.Context, cutoff time.Time) (int64, error)
}

// QuestRetentionWorker periodically drops daily quest sets older than the retention window.
type QuestRetentionWorker struct {
	pruner    QuestPruner
	retention int // days
	interval  time.Duration
	clock     clockwork.Clock
	log       *logger.Logger
	scheduler gocron.Scheduler
	stopOnce  sync.Once
}

func NewQuestRetentionWorker(pruner QuestPruner, retentionDays int, interval time.Duration, clock clockwork.Clock, log *logger.Logger) *QuestRetentionWorker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &QuestRetentionWorker{
		pruner:    pruner,
		retention: retentionDays,
		interval:  interval,
		clock:     clock,
		log:       log,
	}
}

// Cutoff is the oldest quest date that is kept.
func (w *QuestRetentionWorker) Cutoff() time.Time {
	y, m, d := w.clock.Now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -w.retention)
}

// RunOnce prunes immediately.
func (w *QuestRetentionWorker) RunOnce(ctx context.Context) (int64, error) {
	cutoff := w.Cutoff()
	n, err := w.pruner.PruneQuestSets(ctx, cutoff)
	if err != nil {
		w.log.Error("❌ Quest retention run failed", "cutoff", cutoff.Format(time.DateOnly), "error", err)
		return 0, err
	}
	if n > 0 {
		w.log.Info("🧹 Pruned old daily quest sets", "deleted", n, "cutoff", cutoff.Format(time.DateOnly))
	}
	return n, nil
}

// Start schedules the job until ctx is cancelled. A zero retention disables the worker.
func (w *QuestRetentionWorker) Start(ctx context.Context) error {
	if w.retention <= 0 {
		w.log.Info("⏸️ Quest retention disabled")
		return nil
	}

	s, err := gocron.NewScheduler(gocron.WithClock(w.clock))
	if err != nil {
		return err
	}
	_, err = s.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(func() {
			_, _ = w.RunOnce(ctx)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return err
	}
	w.scheduler = s
	s.Start()
	w.log.Info("✅ Quest retention worker started", "retention_days", w.retention, "interval", w.interval.String())

	go func() {
		<-ctx.Done()
		w.Stop()
	}()
	return nil
}

// Stop shuts the scheduler down; safe to call more than once.
func (w *QuestRetentionWorker) Stop() {
	if w.scheduler == nil {
		return
	}
	w.stopOnce.Do(func() {
		if err := w.scheduler.Shutdown(); err != nil {
			w.log.Warn("⚠️ Quest retention scheduler shutdown", "error", err)
		}
	})
}
