/*
Package snapshot maintains the per-branch, per-day sales aggregate cache.

PURPOSE:
  Re-scanning raw journals for every dashboard request is wasteful, so the
  day's aggregate (totals, tickets, cashiers, per-shift sales, target and
  achievement) is materialized as a BranchDailySales row.

STALENESS CONTRACT:
  A snapshot is a cache, not a ledger. It is recomputed wholesale from the
  sales facts every time Refresh runs and is never updated incrementally.
  Nothing invalidates it automatically: callers refresh after posting new
  journals for a day, or read through Get with a MaxAge so rows older than
  that are recomputed on the way out. ComputedAt records when a row was built.

UPSERT:
  Rows are keyed by (branch, date); a refresh overwrites the previous row.
*/
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/ovenline/sales-targets/model"
	"github.com/ovenline/sales-targets/sales"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Store is what the cache reads and writes.
type Store interface {
	model.SnapshotStore
	FindTarget(ctx context.Context, branchID model.BranchID, ym model.YearMonth) (*model.MonthlyTarget, error)
	ListAllocations(ctx context.Context, targetID model.TargetID) ([]model.DailyAllocation, error)
}

type Cache struct {
	Store       Store
	Sales       sales.Adapter
	Parallelism int
	Log         logrus.FieldLogger
	Now         func() time.Time
}

func NewCache(store Store, facts sales.Adapter, parallelism int, log logrus.FieldLogger) *Cache {
	if parallelism <= 0 {
		parallelism = 4
	}
	return &Cache{
		Store:       store,
		Sales:       facts,
		Parallelism: parallelism,
		Log:         model.LoggerOrDiscard(log),
		Now:         model.ClockOrNow(nil),
	}
}

// =============================================================================
// AGGREGATION
// =============================================================================

// Aggregate folds one day's eligible facts into a snapshot without target
// figures.
func Aggregate(branchID model.BranchID, date model.Date, facts []model.SalesFact) model.BranchDailySales {
	s := model.BranchDailySales{
		BranchID:      branchID,
		SalesDate:     date,
		TotalSales:    decimal.Zero,
		AverageTicket: decimal.Zero,
		MorningSales:  decimal.Zero,
		EveningSales:  decimal.Zero,
		NightSales:    decimal.Zero,
		SourceFactIDs: make([]model.FactID, 0, len(facts)),
	}
	cashiers := make(map[model.CashierID]struct{})
	for _, f := range facts {
		s.TotalSales = s.TotalSales.Add(f.TotalSales)
		s.TransactionsCount += f.TransactionCount
		cashiers[f.CashierID] = struct{}{}
		s.SourceFactIDs = append(s.SourceFactIDs, f.ID)
		switch f.Shift {
		case model.ShiftMorning:
			s.MorningSales = s.MorningSales.Add(f.TotalSales)
		case model.ShiftEvening:
			s.EveningSales = s.EveningSales.Add(f.TotalSales)
		case model.ShiftNight:
			s.NightSales = s.NightSales.Add(f.TotalSales)
		}
	}
	s.CashierCount = len(cashiers)
	if s.TransactionsCount > 0 {
		s.AverageTicket = model.Money(s.TotalSales.Div(decimal.NewFromInt(int64(s.TransactionsCount))))
	}
	s.TotalSales = model.Money(s.TotalSales)
	return s
}

// =============================================================================
// CACHE OPERATIONS
// =============================================================================

// Refresh recomputes the snapshot for (branchID, date) and upserts it.
func (c *Cache) Refresh(ctx context.Context, branchID model.BranchID, date model.Date) (*model.BranchDailySales, error) {
	if branchID == "" {
		return nil, &model.InputError{Field: "branchId", Reason: "is required"}
	}
	if date.IsZero() {
		return nil, &model.InputError{Field: "salesDate", Reason: "is required"}
	}

	facts, err := sales.EligibleFacts(ctx, c.Sales, sales.Query{
		BranchID: branchID,
		Range:    model.DateRange{From: date, To: date},
	})
	if err != nil {
		return nil, fmt.Errorf("load sales: %w", err)
	}
	s := Aggregate(branchID, date, facts)

	target, err := c.dailyTarget(ctx, branchID, date)
	if err != nil {
		return nil, err
	}
	s.TargetAmount = target
	s.AchievementAmount = s.TotalSales.Sub(target)
	s.AchievementPercent = model.Percent(s.TotalSales, target)
	s.ComputedAt = c.Now()

	if err := c.Store.UpsertSnapshot(ctx, s); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	c.Log.WithFields(logrus.Fields{
		"branch_id": branchID, "date": date.String(), "facts": len(facts),
	}).Debug("daily sales snapshot refreshed")
	return &s, nil
}

// dailyTarget is the allocation for date under the branch's active target,
// or zero.
func (c *Cache) dailyTarget(ctx context.Context, branchID model.BranchID, date model.Date) (decimal.Decimal, error) {
	t, err := c.Store.FindTarget(ctx, branchID, date.YearMonth())
	if err != nil {
		return decimal.Zero, fmt.Errorf("load target: %w", err)
	}
	if t == nil || t.Status != model.TargetActive {
		return decimal.Zero, nil
	}
	allocations, err := c.Store.ListAllocations(ctx, t.ID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load allocations: %w", err)
	}
	for _, a := range allocations {
		if a.TargetDate.Equal(date) {
			return a.DailyTarget, nil
		}
	}
	return decimal.Zero, nil
}

// Get returns the stored snapshot, recomputing it first when it is missing
// or older than maxAge. A non-positive maxAge accepts any stored row.
func (c *Cache) Get(ctx context.Context, branchID model.BranchID, date model.Date, maxAge time.Duration) (*model.BranchDailySales, error) {
	s, err := c.Store.GetSnapshot(ctx, branchID, date)
	if err != nil {
		return nil, err
	}
	if s != nil && !s.IsStale(c.Now(), maxAge) {
		return s, nil
	}
	return c.Refresh(ctx, branchID, date)
}

// RefreshRange recomputes every day of period, in parallel, and returns the
// snapshots in date order.
func (c *Cache) RefreshRange(ctx context.Context, branchID model.BranchID, period model.DateRange) ([]model.BranchDailySales, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	days := period.Days()
	out := make([]model.BranchDailySales, len(days))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.Parallelism)
	for i, day := range days {
		i, day := i, day
		g.Go(func() error {
			s, err := c.Refresh(gctx, branchID, day)
			if err != nil {
				return fmt.Errorf("%s: %w", day, err)
			}
			out[i] = *s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.Log.WithFields(logrus.Fields{"branch_id": branchID, "period": period.String()}).Info("daily sales snapshots refreshed")
	return out, nil
}

// List returns stored snapshots without recomputing anything.
func (c *Cache) List(ctx context.Context, branchID model.BranchID, period model.DateRange) ([]model.BranchDailySales, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	return c.Store.ListSnapshots(ctx, branchID, period)
}
