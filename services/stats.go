package services

import (
	"context"
	"fmt"
	"time"

	"finance-gamification/models"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// UserStats are the aggregates achievements are measured against.
type UserStats struct {
	ExpenseCount       int64
	IncomeCount        int64
	DescribedCount     int64 // expenses + income with a non-empty description
	DistinctCurrencies int64
	MonthIncome        decimal.Decimal
	MonthExpense       decimal.Decimal
}

// Aggregate returns the named count. Unknown names yield 0.
func (s UserStats) Aggregate(name models.Aggregate) int64 {
	switch name {
	case models.AggregateExpenseCount:
		return s.ExpenseCount
	case models.AggregateIncomeCount:
		return s.IncomeCount
	case models.AggregateTransactionCount:
		return s.ExpenseCount + s.IncomeCount
	case models.AggregateDescribedCount:
		return s.DescribedCount
	case models.AggregateDistinctCurrencies:
		return s.DistinctCurrencies
	}
	return 0
}

// SavingsRate is round(100*(income-expense)/income) for the month, never negative.
// A zero or negative income yields 0.
func (s UserStats) SavingsRate() int64 {
	if !s.MonthIncome.IsPositive() {
		return 0
	}
	rate := s.MonthIncome.Sub(s.MonthExpense).
		Mul(decimal.NewFromInt(100)).
		Div(s.MonthIncome).
		Round(0).
		IntPart()
	if rate < 0 {
		return 0
	}
	return rate
}

// UserStatsProvider supplies aggregates for one user. monthStart is the first day of the
// month used for the income/expense totals.
type UserStatsProvider interface {
	Stats(ctx context.Context, userID string, monthStart time.Time) (UserStats, error)
}

// StaticStats always returns the same aggregates.
type StaticStats UserStats

func (s StaticStats) Stats(context.Context, string, time.Time) (UserStats, error) {
	return UserStats(s), nil
}

// defaultStatsConcurrency bounds the aggregate queries one Stats call has in flight.
// Each activity holds its transaction connection while Stats runs, so the pool
// needs at least 1+Concurrency connections per concurrent activity.
const defaultStatsConcurrency = 3

// GormStatsProvider computes aggregates from the expenses and income tables.
type GormStatsProvider struct {
	DB          *gorm.DB
	Concurrency int
}

func NewGormStatsProvider(db *gorm.DB) *GormStatsProvider {
	return &GormStatsProvider{DB: db, Concurrency: defaultStatsConcurrency}
}

// Stats runs the aggregate queries concurrently. Soft-deleted rows are ignored.
func (p *GormStatsProvider) Stats(ctx context.Context, userID string, monthStart time.Time) (UserStats, error) {
	var (
		out                                UserStats
		describedExpenses, describedIncome int64
	)
	db := p.DB.WithContext(ctx)
	live := func(model any) *gorm.DB {
		return db.Model(model).Where("user_id = ? AND deleted_at IS NULL", userID)
	}
	described := "description IS NOT NULL AND description <> ''"

	g, _ := errgroup.WithContext(ctx)
	limit := p.Concurrency
	if limit <= 0 {
		limit = defaultStatsConcurrency
	}
	g.SetLimit(limit)
	g.Go(func() error {
		return live(&models.Expense{}).Count(&out.ExpenseCount).Error
	})
	g.Go(func() error {
		return live(&models.Income{}).Count(&out.IncomeCount).Error
	})
	g.Go(func() error {
		return live(&models.Expense{}).Where(described).Count(&describedExpenses).Error
	})
	g.Go(func() error {
		return live(&models.Income{}).Where(described).Count(&describedIncome).Error
	})
	g.Go(func() error {
		return live(&models.Expense{}).Distinct("currency").Count(&out.DistinctCurrencies).Error
	})
	g.Go(func() error {
		return sumSince(live(&models.Income{}), monthStart, &out.MonthIncome)
	})
	g.Go(func() error {
		return sumSince(live(&models.Expense{}), monthStart, &out.MonthExpense)
	})
	if err := g.Wait(); err != nil {
		return UserStats{}, fmt.Errorf("load stats for %s: %w", userID, err)
	}
	out.DescribedCount = describedExpenses + describedIncome
	return out, nil
}

func sumSince(q *gorm.DB, since time.Time, dst *decimal.Decimal) error {
	row := q.Select("COALESCE(SUM(amount), 0)").Where("date >= ?", since).Row()
	if err := row.Err(); err != nil {
		return err
	}
	return row.Scan(dst)
}
