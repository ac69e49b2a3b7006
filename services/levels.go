package services

import (
	"fmt"
	"sort"
)

// LevelEntry is one row of the level table.
type LevelEntry struct {
	Level int               `yaml:"level"`
	MinXP int64             `yaml:"min_xp"`
	Names map[string]string `yaml:"names"` // lang -> display name
}

// LevelTable maps cumulative XP to a level. It is immutable once built.
type LevelTable struct {
	entries []LevelEntry // sorted by Level, MinXP strictly increasing
}

// LevelProgress is the position of a total XP value inside its level.
type LevelProgress struct {
	Level          int
	XPProgress     int64
	XPForNextLevel int64
	Percentage     int
}

// DefaultLevelEntries are the stock thresholds and names.
func DefaultLevelEntries() []LevelEntry {
	return []LevelEntry{
		{Level: 1, MinXP: 0, Names: map[string]string{LangRU: "Новичок", LangEN: "Novice", LangKY: "Жаңы баштаган"}},
		{Level: 2, MinXP: 100, Names: map[string]string{LangRU: "Ученик", LangEN: "Apprentice", LangKY: "Окуучу"}},
		{Level: 3, MinXP: 250, Names: map[string]string{LangRU: "Практикант", LangEN: "Trainee", LangKY: "Стажер"}},
		{Level: 4, MinXP: 450, Names: map[string]string{LangRU: "Помощник", LangEN: "Assistant", LangKY: "Жардамчы"}},
		{Level: 5, MinXP: 750, Names: map[string]string{LangRU: "Бухгалтер", LangEN: "Accountant", LangKY: "Бухгалтер"}},
		{Level: 6, MinXP: 1150, Names: map[string]string{LangRU: "Экономист", LangEN: "Economist", LangKY: "Экономист"}},
		{Level: 7, MinXP: 1650, Names: map[string]string{LangRU: "Финансист", LangEN: "Financier", LangKY: "Финансист"}},
		{Level: 8, MinXP: 2250, Names: map[string]string{LangRU: "Аналитик", LangEN: "Analyst", LangKY: "Аналитик"}},
		{Level: 9, MinXP: 3000, Names: map[string]string{LangRU: "Эксперт", LangEN: "Expert", LangKY: "Эксперт"}},
		{Level: 10, MinXP: 4000, Names: map[string]string{LangRU: "Мастер", LangEN: "Master", LangKY: "Устат"}},
		{Level: 11, MinXP: 5500, Names: map[string]string{LangRU: "Гуру", LangEN: "Guru", LangKY: "Гуру"}},
		{Level: 12, MinXP: 7500, Names: map[string]string{LangRU: "Магистр", LangEN: "Magister", LangKY: "Магистр"}},
		{Level: 13, MinXP: 10000, Names: map[string]string{LangRU: "Грандмастер", LangEN: "Grandmaster", LangKY: "Грандмастер"}},
		{Level: 14, MinXP: 15000, Names: map[string]string{LangRU: "Легенда", LangEN: "Legend", LangKY: "Легенда"}},
		{Level: 15, MinXP: 25000, Names: map[string]string{LangRU: "Финансовый бог", LangEN: "Financial God", LangKY: "Финансы кудайы"}},
	}
}

// NewLevelTable validates entries and returns an immutable table.
// Levels must be consecutive from 1, level 1 must start at 0 XP and thresholds must strictly increase.
func NewLevelTable(entries []LevelEntry) (*LevelTable, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("level table is empty")
	}
	sorted := make([]LevelEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Level < sorted[j].Level })

	for i, e := range sorted {
		if e.Level != i+1 {
			return nil, fmt.Errorf("level table: expected level %d, got %d", i+1, e.Level)
		}
		if i == 0 && e.MinXP != 0 {
			return nil, fmt.Errorf("level table: level 1 must start at 0 xp, got %d", e.MinXP)
		}
		if i > 0 && e.MinXP <= sorted[i-1].MinXP {
			return nil, fmt.Errorf("level table: threshold of level %d (%d) must exceed level %d (%d)",
				e.Level, e.MinXP, sorted[i-1].Level, sorted[i-1].MinXP)
		}
	}
	return &LevelTable{entries: sorted}, nil
}

// MustDefaultLevelTable returns the stock table.
func MustDefaultLevelTable() *LevelTable {
	t, err := NewLevelTable(DefaultLevelEntries())
	if err != nil {
		panic(err)
	}
	return t
}

// MaxLevel is the highest defined level.
func (t *LevelTable) MaxLevel() int {
	return t.entries[len(t.entries)-1].Level
}

// LevelFor returns the highest level whose threshold is <= totalXP.
func (t *LevelTable) LevelFor(totalXP int64) int {
	// first entry whose threshold exceeds totalXP; the level before it wins
	i := sort.Search(len(t.entries), func(i int) bool { return t.entries[i].MinXP > totalXP })
	if i == 0 {
		return 1
	}
	return t.entries[i-1].Level
}

// Threshold returns the minimum total XP of level. Out-of-range levels are clamped.
func (t *LevelTable) Threshold(level int) int64 {
	if level < 1 {
		level = 1
	}
	if level > t.MaxLevel() {
		level = t.MaxLevel()
	}
	return t.entries[level-1].MinXP
}

// Name returns the display name of level in lang (Russian fallback).
func (t *LevelTable) Name(level int, lang string) string {
	if level < 1 {
		level = 1
	}
	if level > t.MaxLevel() {
		level = t.MaxLevel()
	}
	names := t.entries[level-1].Names
	if n := names[ResolveLang(lang)]; n != "" {
		return n
	}
	return names[LangRU]
}

// Progress computes the bar inside the current level. At the top level there is no next
// threshold, XPForNextLevel is 0 and the percentage guard reports 0.
func (t *LevelTable) Progress(totalXP int64) LevelProgress {
	level := t.LevelFor(totalXP)
	current := t.Threshold(level)
	var forNext int64
	if level < t.MaxLevel() {
		forNext = t.Threshold(level+1) - current
	}
	return LevelProgress{
		Level:          level,
		XPProgress:     totalXP - current,
		XPForNextLevel: forNext,
		Percentage:     percentOf(totalXP-current, forNext),
	}
}

// percentOf returns min(100, 100*part/whole), 0 for a non-positive denominator.
func percentOf(part, whole int64) int {
	if whole <= 0 || part <= 0 {
		return 0
	}
	p := part * 100 / whole
	if p > 100 {
		return 100
	}
	return int(p)
}
