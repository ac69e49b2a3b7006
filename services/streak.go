package services

import (
	"time"

	"finance-gamification/models"
)

// streakMilestoneBonus maps a milestone streak length to its fixed bonus XP.
var streakMilestoneBonus = map[int]int64{
	7:   50,
	14:  100,
	30:  200,
	60:  300,
	90:  500,
	180: 1000,
	365: 2000,
}

// StreakResult reports what a touch did to the streak.
type StreakResult struct {
	Continued bool  `json:"streak_continued"`
	Started   bool  `json:"streak_started"`
	Milestone int   `json:"streak_milestone,omitempty"`
	BonusXP   int64 `json:"bonus_xp"`
	Current   int   `json:"current_streak"`
}

// StreakTracker updates day streaks. It only mutates the profile in memory.
type StreakTracker struct{}

// Touch registers activity on today (a calendar date). A milestone is only reported on the
// exact day the streak reaches it; the caller grants BonusXP.
func (StreakTracker) Touch(prog *models.UserProgressionProfile, today time.Time) StreakResult {
	var res StreakResult
	last, ok := prog.LastActivity()
	switch {
	case !ok:
		prog.CurrentStreak = 1
		prog.SetLastActivity(today)
		res.Started = true
	case sameDay(last, today):
		// already counted today
	case sameDay(last, today.AddDate(0, 0, -1)):
		prog.CurrentStreak++
		prog.SetLastActivity(today)
		res.Continued = true
		if bonus, hit := streakMilestoneBonus[prog.CurrentStreak]; hit {
			res.Milestone = prog.CurrentStreak
			res.BonusXP = bonus
		}
	default:
		prog.CurrentStreak = 1
		prog.SetLastActivity(today)
		res.Started = true
	}

	if prog.CurrentStreak > prog.MaxStreak {
		prog.MaxStreak = prog.CurrentStreak
	}
	res.Current = prog.CurrentStreak
	return res
}

// dateOf returns the calendar date of t in loc, as midnight UTC.
func dateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
