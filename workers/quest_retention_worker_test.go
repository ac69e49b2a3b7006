package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"finance-gamification/logger"

	"github.com/jonboulle/clockwork"
)

type fakePruner struct {
	cutoffs chan time.Time
	deleted int64
	err     error
}

func (f *fakePruner) PruneQuestSets(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoffs <- cutoff
	return f.deleted, f.err
}

func TestRunOnceUsesRetentionCutoff(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, time.March, 10, 15, 0, 0, 0, time.UTC))
	pruner := &fakePruner{cutoffs: make(chan time.Time, 1), deleted: 4}
	w := NewQuestRetentionWorker(pruner, 30, time.Hour, clock, logger.Nop())

	n, err := w.RunOnce(context.Background())
	if err != nil || n != 4 {
		t.Fatalf("RunOnce = %d, %v", n, err)
	}
	want := time.Date(2026, time.February, 8, 0, 0, 0, 0, time.UTC)
	if got := <-pruner.cutoffs; !got.Equal(want) {
		t.Fatalf("cutoff = %v, want %v", got, want)
	}
}

func TestRunOnceReturnsErrors(t *testing.T) {
	pruner := &fakePruner{cutoffs: make(chan time.Time, 1), err: errors.New("db down")}
	w := NewQuestRetentionWorker(pruner, 30, time.Hour, clockwork.NewFakeClock(), logger.Nop())
	if _, err := w.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestStartRunsImmediately(t *testing.T) {
	pruner := &fakePruner{cutoffs: make(chan time.Time, 4)}
	w := NewQuestRetentionWorker(pruner, 7, time.Hour, clockwork.NewRealClock(), logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	select {
	case <-pruner.cutoffs:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run on start")
	}
}

func TestStartDisabled(t *testing.T) {
	pruner := &fakePruner{cutoffs: make(chan time.Time, 1)}
	w := NewQuestRetentionWorker(pruner, 0, time.Hour, clockwork.NewFakeClock(), logger.Nop())
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	w.Stop()
	select {
	case <-pruner.cutoffs:
		t.Fatal("disabled worker ran")
	default:
	}
}
