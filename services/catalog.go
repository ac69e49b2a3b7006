package services

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"finance-gamification/models"

	"github.com/gosimple/slug"
	"gopkg.in/yaml.v3"
)

// QuestTemplate is one entry of the daily quest pool.
type QuestTemplate struct {
	ID     string            `yaml:"id"`
	Type   models.QuestType  `yaml:"type"`
	Target int               `yaml:"target"`
	XP     int64             `yaml:"xp"`
	Titles map[string]string `yaml:"titles"` // lang -> title
}

// Title returns the quest title in lang (Russian fallback).
func (q QuestTemplate) Title(lang string) string {
	return pickLocalized(lang, q.Titles[LangRU], q.Titles[LangEN], q.Titles[LangKY])
}

// Catalog is the static reference data of the engine. It is read-only after Load.
type Catalog struct {
	Levels       *LevelTable
	Achievements []models.AchievementDefinition // sorted by SortOrder
	Quests       []QuestTemplate

	conditions map[string]Condition
	byID       map[string]models.AchievementDefinition
	questsByID map[string]QuestTemplate
}

// catalogFile is the YAML layout. Missing sections keep the defaults.
type catalogFile struct {
	Levels       []LevelEntry       `yaml:"levels"`
	Achievements []achievementEntry `yaml:"achievements"`
	Quests       []QuestTemplate    `yaml:"quests"`
}

// achievementEntry lets is_active default to true when omitted.
type achievementEntry struct {
	models.AchievementDefinition `yaml:",inline"`
	Active                       *bool `yaml:"is_active"`
}

// DefaultCatalog returns the stock catalog.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultLevelEntries(), DefaultAchievements(), DefaultQuestPool())
	if err != nil {
		panic(err)
	}
	return c
}

// LoadCatalogFile reads a YAML catalog from disk.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML catalog, filling omitted sections with defaults.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	levels := f.Levels
	if len(levels) == 0 {
		levels = DefaultLevelEntries()
	}
	achievements := DefaultAchievements()
	if f.Achievements != nil {
		achievements = make([]models.AchievementDefinition, 0, len(f.Achievements))
		for _, e := range f.Achievements {
			def := e.AchievementDefinition
			def.IsActive = e.Active == nil || *e.Active
			achievements = append(achievements, def)
		}
	}
	quests := f.Quests
	if quests == nil {
		quests = DefaultQuestPool()
	}
	return NewCatalog(levels, achievements, quests)
}

// NewCatalog validates and indexes the reference data.
func NewCatalog(levels []LevelEntry, achievements []models.AchievementDefinition, quests []QuestTemplate) (*Catalog, error) {
	table, err := NewLevelTable(levels)
	if err != nil {
		return nil, err
	}

	c := &Catalog{
		Levels:     table,
		conditions: make(map[string]Condition, len(achievements)),
		byID:       make(map[string]models.AchievementDefinition, len(achievements)),
		questsByID: make(map[string]QuestTemplate, len(quests)),
	}

	for _, def := range achievements {
		if def.ID == "" {
			def.ID = catalogID(firstNonEmpty(def.NameEN, def.Name))
		}
		if def.ID == "" {
			return nil, fmt.Errorf("achievement without id or name")
		}
		if _, dup := c.byID[def.ID]; dup {
			return nil, fmt.Errorf("duplicate achievement id %q", def.ID)
		}
		if def.ConditionValue <= 0 {
			return nil, fmt.Errorf("achievement %s: condition_value must be positive", def.ID)
		}
		if def.ConditionType == models.ConditionCombo && int(def.ConditionValue) != len(def.Parts) {
			return nil, fmt.Errorf("achievement %s: combo condition_value must equal the number of parts", def.ID)
		}
		cond, err := ConditionFor(def)
		if err != nil {
			return nil, err
		}
		if def.Icon == "" {
			def.Icon = "🏆"
		}
		if def.Rarity == "" {
			def.Rarity = "common"
		}
		c.conditions[def.ID] = cond
		c.byID[def.ID] = def
		c.Achievements = append(c.Achievements, def)
	}
	sort.SliceStable(c.Achievements, func(i, j int) bool {
		return c.Achievements[i].SortOrder < c.Achievements[j].SortOrder
	})

	for _, q := range quests {
		if q.ID == "" {
			q.ID = catalogID(firstNonEmpty(q.Titles[LangEN], q.Titles[LangRU]))
		}
		if q.ID == "" {
			return nil, fmt.Errorf("quest without id or title")
		}
		if _, dup := c.questsByID[q.ID]; dup {
			return nil, fmt.Errorf("duplicate quest id %q", q.ID)
		}
		switch q.Type {
		case models.QuestTypeExpense, models.QuestTypeIncome, models.QuestTypeTransaction, models.QuestTypeDescription:
		default:
			return nil, fmt.Errorf("quest %s: unknown type %q", q.ID, q.Type)
		}
		if q.Target < 1 {
			return nil, fmt.Errorf("quest %s: target must be at least 1", q.ID)
		}
		c.questsByID[q.ID] = q
		c.Quests = append(c.Quests, q)
	}
	return c, nil
}

// Achievement looks up a catalog entry by id.
func (c *Catalog) Achievement(id string) (models.AchievementDefinition, bool) {
	def, ok := c.byID[id]
	return def, ok
}

// Condition returns the strategy for an achievement id.
func (c *Catalog) Condition(id string) (Condition, bool) {
	cond, ok := c.conditions[id]
	return cond, ok
}

// Quest looks up a quest template by id.
func (c *Catalog) Quest(id string) (QuestTemplate, bool) {
	q, ok := c.questsByID[id]
	return q, ok
}

// ActiveAchievements returns the entries new users get progress rows for.
func (c *Catalog) ActiveAchievements() []models.AchievementDefinition {
	out := make([]models.AchievementDefinition, 0, len(c.Achievements))
	for _, def := range c.Achievements {
		if def.IsActive {
			out = append(out, def)
		}
	}
	return out
}

// catalogID turns a display name into a snake_case id ("First Expense" -> "first_expense").
func catalogID(name string) string {
	return strings.ReplaceAll(slug.Make(name), "-", "_")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// DefaultQuestPool is the stock daily quest pool.
func DefaultQuestPool() []QuestTemplate {
	return []QuestTemplate{
		{ID: "add_expense", Type: models.QuestTypeExpense, Target: 1, XP: 5,
			Titles: map[string]string{LangRU: "Добавь расход", LangEN: "Add expense", LangKY: "Чыгым кош"}},
		{ID: "add_3_transactions", Type: models.QuestTypeTransaction, Target: 3, XP: 15,
			Titles: map[string]string{LangRU: "Добавь 3 транзакции", LangEN: "Add 3 transactions", LangKY: "3 транзакция кош"}},
		{ID: "add_description", Type: models.QuestTypeDescription, Target: 1, XP: 5,
			Titles: map[string]string{LangRU: "Добавь описание", LangEN: "Add description", LangKY: "Сүрөттөмө кош"}},
		{ID: "add_income", Type: models.QuestTypeIncome, Target: 1, XP: 5,
			Titles: map[string]string{LangRU: "Добавь доход", LangEN: "Add income", LangKY: "Кирешеңди кош"}},
		{ID: "add_5_transactions", Type: models.QuestTypeTransaction, Target: 5, XP: 25,
			Titles: map[string]string{LangRU: "Добавь 5 транзакций", LangEN: "Add 5 transactions", LangKY: "5 транзакция кош"}},
	}
}

// DefaultAchievements is the stock achievement catalog.
func DefaultAchievements() []models.AchievementDefinition {
	return []models.AchievementDefinition{
		{ID: "first_expense", Name: "Первый расход", NameEN: "First expense", NameKY: "Биринчи чыгым",
			Description: "Добавь свой первый расход", DescriptionEN: "Record your first expense",
			Category: "tracking", Icon: "📝", XPReward: 10, Rarity: "common",
			ConditionType: models.ConditionCount, ConditionValue: 1, Aggregate: models.AggregateExpenseCount,
			SortOrder: 10, IsActive: true},
		{ID: "first_income", Name: "Первый доход", NameEN: "First income", NameKY: "Биринчи киреше",
			Description: "Добавь свой первый доход", DescriptionEN: "Record your first income",
			Category: "tracking", Icon: "💰", XPReward: 10, Rarity: "common",
			ConditionType: models.ConditionCount, ConditionValue: 1, Aggregate: models.AggregateIncomeCount,
			SortOrder: 20, IsActive: true},
		{ID: "ten_expenses", Name: "Десять расходов", NameEN: "Ten expenses", NameKY: "Он чыгым",
			Description: "Добавь 10 расходов", DescriptionEN: "Record 10 expenses",
			Category: "tracking", Icon: "🧾", XPReward: 25, Rarity: "common",
			ConditionType: models.ConditionCount, ConditionValue: 10, Aggregate: models.AggregateExpenseCount,
			SortOrder: 30, IsActive: true},
		{ID: "fifty_expenses", Name: "Пятьдесят расходов", NameEN: "Fifty expenses", NameKY: "Элүү чыгым",
			Description: "Добавь 50 расходов", DescriptionEN: "Record 50 expenses",
			Category: "tracking", Icon: "📚", XPReward: 50, Rarity: "rare",
			ConditionType: models.ConditionCount, ConditionValue: 50, Aggregate: models.AggregateExpenseCount,
			SortOrder: 40, IsActive: true},
		{ID: "century", Name: "Сотня", NameEN: "Century", NameKY: "Жүздүк",
			Description: "Добавь 100 транзакций", DescriptionEN: "Record 100 transactions",
			Category: "tracking", Icon: "💯", XPReward: 100, Rarity: "rare",
			ConditionType: models.ConditionCount, ConditionValue: 100, Aggregate: models.AggregateTransactionCount,
			SortOrder: 50, IsActive: true},
		{ID: "thousand", Name: "Тысяча", NameEN: "Thousand", NameKY: "Миң",
			Description: "Добавь 1000 транзакций", DescriptionEN: "Record 1000 transactions",
			Category: "rare", Icon: "👑", XPReward: 500, Rarity: "legendary",
			ConditionType: models.ConditionCount, ConditionValue: 1000, Aggregate: models.AggregateTransactionCount,
			SortOrder: 60, IsActive: true},
		{ID: "detailed_tracker", Name: "Дотошный учёт", NameEN: "Detailed tracker", NameKY: "Так эсеп",
			Description: "Добавь описание к 50 транзакциям", DescriptionEN: "Describe 50 transactions",
			Category: "tracking", Icon: "🔍", XPReward: 50, Rarity: "rare",
			ConditionType: models.ConditionCount, ConditionValue: 50, Aggregate: models.AggregateDescribedCount,
			SortOrder: 70, IsActive: true},
		{ID: "multi_currency", Name: "Полиглот валют", NameEN: "Multi-currency", NameKY: "Көп валюта",
			Description: "Используй 3 разные валюты", DescriptionEN: "Use 3 different currencies",
			Category: "special", Icon: "💱", XPReward: 30, Rarity: "rare",
			ConditionType: models.ConditionCount, ConditionValue: 3, Aggregate: models.AggregateDistinctCurrencies,
			SortOrder: 80, IsActive: true},
		{ID: "week_streak", Name: "Неделя подряд", NameEN: "Week streak", NameKY: "Бир жума катары менен",
			Description: "Веди учёт 7 дней подряд", DescriptionEN: "Track 7 days in a row",
			Category: "streaks", Icon: "🔥", XPReward: 50, Rarity: "common",
			ConditionType: models.ConditionStreak, ConditionValue: 7, SortOrder: 90, IsActive: true},
		{ID: "two_week_streak", Name: "Две недели подряд", NameEN: "Two week streak", NameKY: "Эки жума катары менен",
			Description: "Веди учёт 14 дней подряд", DescriptionEN: "Track 14 days in a row",
			Category: "streaks", Icon: "⚡", XPReward: 100, Rarity: "rare",
			ConditionType: models.ConditionStreak, ConditionValue: 14, SortOrder: 100, IsActive: true},
		{ID: "month_streak", Name: "Месяц подряд", NameEN: "Month streak", NameKY: "Бир ай катары менен",
			Description: "Веди учёт 30 дней подряд", DescriptionEN: "Track 30 days in a row",
			Category: "streaks", Icon: "🌟", XPReward: 200, Rarity: "epic",
			ConditionType: models.ConditionStreak, ConditionValue: 30, SortOrder: 110, IsActive: true},
		{ID: "hundred_days", Name: "Сто дней", NameEN: "Hundred days", NameKY: "Жүз күн",
			Description: "Веди учёт 100 дней подряд", DescriptionEN: "Track 100 days in a row",
			Category: "rare", Icon: "🏅", XPReward: 1000, Rarity: "legendary",
			ConditionType: models.ConditionStreak, ConditionValue: 100, SortOrder: 120, IsActive: true},
		{ID: "saver_10", Name: "Копилка", NameEN: "Saver", NameKY: "Топтоочу",
			Description: "Сэкономь 10% дохода за месяц", DescriptionEN: "Save 10% of this month's income",
			Category: "savings", Icon: "🐷", XPReward: 50, Rarity: "common",
			ConditionType: models.ConditionPercentage, ConditionValue: 10, SortOrder: 130, IsActive: true},
		{ID: "saver_30", Name: "Бережливый", NameEN: "Thrifty", NameKY: "Үнөмдүү",
			Description: "Сэкономь 30% дохода за месяц", DescriptionEN: "Save 30% of this month's income",
			Category: "savings", Icon: "💎", XPReward: 150, Rarity: "epic",
			ConditionType: models.ConditionPercentage, ConditionValue: 30, SortOrder: 140, IsActive: true},
		{ID: "all_rounder", Name: "Универсал", NameEN: "All-rounder", NameKY: "Ар тараптуу",
			Description: "Добавь расход, доход и описание", DescriptionEN: "Record an expense, an income and a description",
			Category: "special", Icon: "🎯", XPReward: 20, Rarity: "common",
			ConditionType: models.ConditionCombo, ConditionValue: 3,
			Parts: []models.ComboPart{
				{Aggregate: models.AggregateExpenseCount, Min: 1},
				{Aggregate: models.AggregateIncomeCount, Min: 1},
				{Aggregate: models.AggregateDescribedCount, Min: 1},
			},
			SortOrder: 150, IsActive: true},
	}
}
