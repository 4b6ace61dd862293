package leaderboard

import (
	"context"
	"fmt"

	"github.com/ovenline/sales-targets/incentives"
	"github.com/ovenline/sales-targets/model"
	"github.com/ovenline/sales-targets/performance"
	"github.com/ovenline/sales-targets/sales"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const defaultParallelism = 4

type TierLister interface {
	ListTiers(ctx context.Context) ([]model.IncentiveTier, error)
}

type Service struct {
	Performance incentives.Performer
	Sales       sales.Adapter
	Directory   sales.Directory
	Tiers       TierLister
	Parallelism int
	Log         logrus.FieldLogger
}

func NewService(perf incentives.Performer, facts sales.Adapter, dir sales.Directory, tiers TierLister, parallelism int, log logrus.FieldLogger) *Service {
	if parallelism <= 0 {
		parallelism = defaultParallelism
	}
	return &Service{
		Performance: perf,
		Sales:       facts,
		Directory:   dir,
		Tiers:       tiers,
		Parallelism: parallelism,
		Log:         model.LoggerOrDiscard(log),
	}
}

// =============================================================================
// BRANCH PERFORMANCE FAN-OUT
// =============================================================================

type branchResult struct {
	branch model.Branch
	perf   *performance.MonthlyPerformance
}

// monthly evaluates every directory branch that has an active target for ym,
// in directory order.
func (s *Service) monthly(ctx context.Context, ym model.YearMonth, asOf model.Date) ([]branchResult, error) {
	branches, err := s.Directory.ListBranches(ctx)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}

	results := make([]branchResult, len(branches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Parallelism)
	for i, b := range branches {
		i, b := i, b
		g.Go(func() error {
			perf, err := s.Performance.Monthly(gctx, b.ID, ym, asOf)
			if err != nil {
				return fmt.Errorf("branch %s: %w", b.ID, err)
			}
			results[i] = branchResult{branch: b, perf: perf}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := results[:0]
	for _, r := range results {
		if r.perf.HasTarget {
			out = append(out, r)
		}
	}
	s.Log.WithFields(logrus.Fields{
		"year_month": ym.String(), "branches": len(branches), "with_target": len(out),
	}).Debug("branch performance evaluated")
	return out, nil
}

// =============================================================================
// BOARDS
// =============================================================================

// Branches ranks branches with an active target by achievement percent and
// shows the incentive tier each currently qualifies for.
func (s *Service) Branches(ctx context.Context, ym model.YearMonth, asOf model.Date) ([]Entry, error) {
	results, err := s.monthly(ctx, ym, asOf)
	if err != nil {
		return nil, err
	}
	tiers, err := s.Tiers.ListTiers(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tiers: %w", err)
	}

	entries := make([]Entry, 0, len(results))
	for _, r := range results {
		e := Entry{
			BranchID:                    r.branch.ID,
			BranchName:                  r.branch.Name,
			TargetAmount:                r.perf.TargetAmount,
			AchievedAmount:              r.perf.AchievedAmount,
			AchievementPercent:          r.perf.AchievementPercent,
			ProjectedAchievementPercent: r.perf.Projection.ProjectedAchievementPercent,
		}
		if tier, ok := incentives.Match(tiers, e.AchievementPercent, model.ScopeBranch); ok {
			e.TierID, e.TierName = tier.ID, tier.Name
		}
		entries = append(entries, e)
	}
	return Rank(entries, ByAchievement), nil
}

// Competition ranks every branch by raw eligible sales over period.
func (s *Service) Competition(ctx context.Context, period model.DateRange) ([]Entry, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	branches, err := s.Directory.ListBranches(ctx)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	facts, err := sales.EligibleFacts(ctx, s.Sales, sales.Query{Range: period})
	if err != nil {
		return nil, fmt.Errorf("load sales: %w", err)
	}

	totals := make(map[model.BranchID]decimal.Decimal)
	txns := make(map[model.BranchID]int)
	for _, f := range facts {
		totals[f.BranchID] = totals[f.BranchID].Add(f.TotalSales)
		txns[f.BranchID] += f.TransactionCount
	}

	entries := make([]Entry, 0, len(branches))
	for _, b := range branches {
		entries = append(entries, Entry{
			BranchID:       b.ID,
			BranchName:     b.Name,
			AchievedAmount: model.Money(totals[b.ID]),
			Transactions:   txns[b.ID],
		})
	}
	return Rank(entries, BySales), nil
}

// Cashiers ranks a branch's cashiers (every cashier when branchID is empty)
// by raw eligible sales over period.
func (s *Service) Cashiers(ctx context.Context, branchID model.BranchID, period model.DateRange) ([]Entry, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	cashiers, err := s.Directory.ListCashiers(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("list cashiers: %w", err)
	}
	facts, err := sales.EligibleFacts(ctx, s.Sales, sales.Query{BranchID: branchID, Range: period})
	if err != nil {
		return nil, fmt.Errorf("load sales: %w", err)
	}

	byCashier := make(map[model.CashierID]sales.CashierTotal)
	for _, ct := range sales.ByCashier(facts) {
		byCashier[ct.CashierID] = ct
	}

	entries := make([]Entry, 0, len(cashiers))
	for _, c := range cashiers {
		ct := byCashier[c.ID]
		entries = append(entries, Entry{
			BranchID:       c.BranchID,
			CashierID:      c.ID,
			CashierName:    c.Name,
			AchievedAmount: model.Money(ct.TotalSales),
			Transactions:   ct.Transactions,
		})
	}
	return Rank(entries, BySales), nil
}

// Alerts classifies every branch with an active target for ym.
func (s *Service) Alerts(ctx context.Context, ym model.YearMonth, asOf model.Date) ([]Alert, error) {
	results, err := s.monthly(ctx, ym, asOf)
	if err != nil {
		return nil, err
	}
	alerts := make([]Alert, 0, len(results))
	for _, r := range results {
		a := Classify(*r.perf)
		a.BranchName = r.branch.Name
		alerts = append(alerts, a)
	}
	return alerts, nil
}
