package services

import (
	"testing"
	"time"

	"finance-gamification/models"
)

func day(offset int) time.Time {
	return dateOf(testNow, time.UTC).AddDate(0, 0, offset)
}

func TestStreakConsecutiveDays(t *testing.T) {
	var tracker StreakTracker
	prog := &models.UserProgressionProfile{}

	res := tracker.Touch(prog, day(0))
	if !res.Started || prog.CurrentStreak != 1 {
		t.Fatalf("first touch = %+v, streak %d", res, prog.CurrentStreak)
	}
	for i := 1; i < 5; i++ {
		res = tracker.Touch(prog, day(i))
		if !res.Continued || prog.CurrentStreak != i+1 {
			t.Fatalf("day %d: %+v, streak %d", i, res, prog.CurrentStreak)
		}
	}
	if prog.MaxStreak != 5 {
		t.Fatalf("max streak = %d, want 5", prog.MaxStreak)
	}
}

func TestStreakSameDayIsNoop(t *testing.T) {
	var tracker StreakTracker
	prog := &models.UserProgressionProfile{}
	tracker.Touch(prog, day(0))

	res := tracker.Touch(prog, day(0))
	if res.Started || res.Continued || prog.CurrentStreak != 1 {
		t.Fatalf("same day touch = %+v, streak %d", res, prog.CurrentStreak)
	}
}

func TestStreakGapResets(t *testing.T) {
	var tracker StreakTracker
	prog := &models.UserProgressionProfile{CurrentStreak: 9, MaxStreak: 9}
	prog.SetLastActivity(day(-2))

	res := tracker.Touch(prog, day(0))
	if !res.Started || prog.CurrentStreak != 1 {
		t.Fatalf("after gap = %+v, streak %d", res, prog.CurrentStreak)
	}
	if prog.MaxStreak != 9 {
		t.Fatalf("max streak dropped to %d", prog.MaxStreak)
	}
	if prog.CurrentStreak > prog.MaxStreak {
		t.Fatal("current streak exceeds max streak")
	}
}

func TestStreakMilestones(t *testing.T) {
	tests := []struct {
		before    int
		milestone int
		bonus     int64
	}{
		{before: 5, milestone: 0, bonus: 0},
		{before: 6, milestone: 7, bonus: 50},
		{before: 13, milestone: 14, bonus: 100},
		{before: 29, milestone: 30, bonus: 200},
		{before: 59, milestone: 60, bonus: 300},
		{before: 89, milestone: 90, bonus: 500},
		{before: 179, milestone: 180, bonus: 1000},
		{before: 364, milestone: 365, bonus: 2000},
		{before: 365, milestone: 0, bonus: 0},
	}
	var tracker StreakTracker
	for _, tc := range tests {
		prog := &models.UserProgressionProfile{CurrentStreak: tc.before, MaxStreak: tc.before}
		prog.SetLastActivity(day(-1))
		res := tracker.Touch(prog, day(0))
		if res.Milestone != tc.milestone || res.BonusXP != tc.bonus {
			t.Errorf("streak %d -> %d: milestone %d bonus %d, want %d/%d",
				tc.before, prog.CurrentStreak, res.Milestone, res.BonusXP, tc.milestone, tc.bonus)
		}
	}
}

func TestDateOfUsesLocation(t *testing.T) {
	bishkek := time.FixedZone("KGT", 6*60*60)
	late := time.Date(2026, time.March, 10, 20, 30, 0, 0, time.UTC) // 02:30 next day in UTC+6

	if got := dateOf(late, time.UTC); !sameDay(got, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("UTC date = %v", got)
	}
	if got := dateOf(late, bishkek); !sameDay(got, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("local date = %v", got)
	}
}
