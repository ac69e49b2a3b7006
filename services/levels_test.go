package services

import "testing"

func TestLevelForIsMonotonic(t *testing.T) {
	table := MustDefaultLevelTable()
	prev := table.LevelFor(0)
	for xp := int64(0); xp <= 30000; xp += 7 {
		lvl := table.LevelFor(xp)
		if lvl < prev {
			t.Fatalf("LevelFor(%d) = %d, dropped below %d", xp, lvl, prev)
		}
		prev = lvl
	}
}

func TestLevelForThresholds(t *testing.T) {
	table := MustDefaultLevelTable()
	for lvl := 1; lvl <= table.MaxLevel(); lvl++ {
		th := table.Threshold(lvl)
		if got := table.LevelFor(th); got != lvl {
			t.Fatalf("LevelFor(threshold(%d)=%d) = %d", lvl, th, got)
		}
		if lvl > 1 {
			if got := table.LevelFor(th - 1); got != lvl-1 {
				t.Fatalf("LevelFor(%d) = %d, want %d", th-1, got, lvl-1)
			}
		}
	}
	if got := table.LevelFor(1_000_000); got != 15 {
		t.Fatalf("LevelFor(1e6) = %d, want 15", got)
	}
	if got := table.LevelFor(-5); got != 1 {
		t.Fatalf("LevelFor(-5) = %d, want 1", got)
	}
}

func TestLevelProgress(t *testing.T) {
	table := MustDefaultLevelTable()
	tests := []struct {
		xp   int64
		want LevelProgress
	}{
		{xp: 0, want: LevelProgress{Level: 1, XPProgress: 0, XPForNextLevel: 100, Percentage: 0}},
		{xp: 50, want: LevelProgress{Level: 1, XPProgress: 50, XPForNextLevel: 100, Percentage: 50}},
		{xp: 175, want: LevelProgress{Level: 2, XPProgress: 75, XPForNextLevel: 150, Percentage: 50}},
		{xp: 25000, want: LevelProgress{Level: 15, XPProgress: 0, XPForNextLevel: 0, Percentage: 0}},
		{xp: 40000, want: LevelProgress{Level: 15, XPProgress: 15000, XPForNextLevel: 0, Percentage: 0}},
	}
	for _, tc := range tests {
		if got := table.Progress(tc.xp); got != tc.want {
			t.Errorf("Progress(%d) = %+v, want %+v", tc.xp, got, tc.want)
		}
	}
}

func TestLevelNames(t *testing.T) {
	table := MustDefaultLevelTable()
	if got := table.Name(1, "en-US"); got != "Novice" {
		t.Fatalf("Name(1, en-US) = %q", got)
	}
	if got := table.Name(15, "ky"); got != "Финансы кудайы" {
		t.Fatalf("Name(15, ky) = %q", got)
	}
	if got := table.Name(2, "de"); got != "Ученик" {
		t.Fatalf("Name(2, de) = %q, want russian fallback", got)
	}
}

func TestNewLevelTableValidation(t *testing.T) {
	tests := map[string][]LevelEntry{
		"empty":          nil,
		"gap":            {{Level: 1, MinXP: 0}, {Level: 3, MinXP: 100}},
		"nonzero start":  {{Level: 1, MinXP: 10}, {Level: 2, MinXP: 100}},
		"not increasing": {{Level: 1, MinXP: 0}, {Level: 2, MinXP: 100}, {Level: 3, MinXP: 100}},
	}
	for name, entries := range tests {
		if _, err := NewLevelTable(entries); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestPercentOfGuardsDenominator(t *testing.T) {
	if got := percentOf(10, 0); got != 0 {
		t.Fatalf("percentOf(10, 0) = %d", got)
	}
	if got := percentOf(10, -4); got != 0 {
		t.Fatalf("percentOf(10, -4) = %d", got)
	}
	if got := percentOf(300, 100); got != 100 {
		t.Fatalf("percentOf(300, 100) = %d", got)
	}
}
