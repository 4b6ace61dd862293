/*
Package performance measures a branch's sales against its monthly target.

PURPOSE:
  Joins the daily allocations of a branch's active target with posted sales
  to produce a per-day series, running (cumulative) totals and a linear
  projection of where the month will end.

PROJECTION:
  averageDailySales = achieved / daysPassed
  projectedTotal    = averageDailySales * daysInMonth
  daysPassed is 0 before the month starts, the whole month after it ends, and
  the day-of-month of asOf otherwise.

PERCENTAGES:
  Every percent in a result is exact (part*100/whole, unrounded) so tier and
  alert thresholds compare against the true ratio. Round with
  model.RoundPercent when displaying or storing.

ZERO RESULTS:
  A branch without an active target for the month gets a zero-valued result
  (HasTarget=false), never an error, so leaderboards and alerts degrade to 0%.

CONSISTENCY:
  Allocations carry the AllocationVersion they were generated under. If a
  read observes allocations whose version differs from the target's, the
  allocations were regenerated mid-read and Monthly returns
  ErrConcurrentModification. Retrying is safe.
*/
package performance

import (
	"context"
	"fmt"

	"github.com/ovenline/sales-targets/model"
	"github.com/ovenline/sales-targets/sales"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// RESULT TYPES
// =============================================================================

type DayPerformance struct {
	Date               model.Date
	Target             decimal.Decimal
	Achieved           decimal.Decimal
	Percent            decimal.Decimal
	CumulativeTarget   decimal.Decimal
	CumulativeAchieved decimal.Decimal
	CumulativePercent  decimal.Decimal
	IsHoliday          bool
	IsManualOverride   bool
}

type Projection struct {
	DaysInMonth                 int
	DaysPassed                  int
	AverageDailySales           decimal.Decimal
	ProjectedTotal              decimal.Decimal
	ProjectedAchievementPercent decimal.Decimal

	// RemainingTarget is what is still needed to hit the target, never negative.
	RemainingTarget decimal.Decimal

	// RequiredDailyRate spreads RemainingTarget over the days left in the
	// month. Zero when the month is over or the target is met.
	RequiredDailyRate decimal.Decimal
}

type MonthlyPerformance struct {
	BranchID           model.BranchID
	YearMonth          model.YearMonth
	AsOf               model.Date
	HasTarget          bool
	TargetID           model.TargetID
	TargetAmount       decimal.Decimal
	AchievedAmount     decimal.Decimal
	AchievementPercent decimal.Decimal
	Days               []DayPerformance
	Projection         Projection
}

// =============================================================================
// PROJECTION
// =============================================================================

// Project extrapolates the month-to-date average over the whole month.
func Project(achieved, target decimal.Decimal, ym model.YearMonth, asOf model.Date) Projection {
	p := Projection{
		DaysInMonth:                 ym.DaysInMonth(),
		DaysPassed:                  ym.DaysPassed(asOf),
		AverageDailySales:           decimal.Zero,
		ProjectedTotal:              decimal.Zero,
		ProjectedAchievementPercent: decimal.Zero,
		RemainingTarget:             decimal.Zero,
		RequiredDailyRate:           decimal.Zero,
	}
	if p.DaysPassed > 0 {
		passed, days := decimal.NewFromInt(int64(p.DaysPassed)), decimal.NewFromInt(int64(p.DaysInMonth))
		// multiply before dividing so a month that ends on target projects exactly 100
		projected := achieved.Mul(days).Div(passed)
		p.AverageDailySales = model.Money(achieved.Div(passed))
		p.ProjectedTotal = model.Money(projected)
		p.ProjectedAchievementPercent = model.Ratio(projected, target)
	}
	if remaining := target.Sub(achieved); remaining.IsPositive() {
		p.RemainingTarget = model.Money(remaining)
		if left := p.DaysInMonth - p.DaysPassed; left > 0 {
			p.RequiredDailyRate = model.Money(remaining.Div(decimal.NewFromInt(int64(left))))
		}
	}
	return p
}

// =============================================================================
// CALCULATOR
// =============================================================================

// TargetReader is the slice of the store the calculator reads.
type TargetReader interface {
	FindTarget(ctx context.Context, branchID model.BranchID, ym model.YearMonth) (*model.MonthlyTarget, error)
	ListAllocations(ctx context.Context, targetID model.TargetID) ([]model.DailyAllocation, error)
}

type Calculator struct {
	Targets TargetReader
	Sales   sales.Adapter
	Log     logrus.FieldLogger
}

func NewCalculator(targets TargetReader, facts sales.Adapter, log logrus.FieldLogger) *Calculator {
	return &Calculator{Targets: targets, Sales: facts, Log: model.LoggerOrDiscard(log)}
}

// Monthly computes the branch's performance for ym as of the given day.
func (c *Calculator) Monthly(ctx context.Context, branchID model.BranchID, ym model.YearMonth, asOf model.Date) (*MonthlyPerformance, error) {
	if branchID == "" {
		return nil, &model.InputError{Field: "branchId", Reason: "is required"}
	}
	if ym.IsZero() {
		return nil, &model.InputError{Field: "yearMonth", Reason: "is required"}
	}

	out := &MonthlyPerformance{
		BranchID:           branchID,
		YearMonth:          ym,
		AsOf:               asOf,
		TargetAmount:       decimal.Zero,
		AchievedAmount:     decimal.Zero,
		AchievementPercent: decimal.Zero,
		Projection:         Project(decimal.Zero, decimal.Zero, ym, asOf),
	}

	t, err := c.Targets.FindTarget(ctx, branchID, ym)
	if err != nil {
		return nil, fmt.Errorf("load target: %w", err)
	}
	if t == nil || t.Status != model.TargetActive {
		return out, nil
	}

	allocations, err := c.Targets.ListAllocations(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("load allocations: %w", err)
	}
	for _, a := range allocations {
		if a.Version != t.AllocationVersion {
			c.Log.WithFields(logrus.Fields{
				"target_id": t.ID, "target_version": t.AllocationVersion, "allocation_version": a.Version,
			}).Warn("allocations changed during read")
			return nil, fmt.Errorf("target %s: %w", t.ID, model.ErrConcurrentModification)
		}
	}

	facts, err := sales.EligibleFacts(ctx, c.Sales, sales.Query{BranchID: branchID, Range: ym.Range()})
	if err != nil {
		return nil, fmt.Errorf("load sales: %w", err)
	}
	achievedByDate := sales.ByDate(facts)

	out.HasTarget = true
	out.TargetID = t.ID
	out.TargetAmount = t.TargetAmount
	out.Days = Series(allocations, achievedByDate)

	achieved, _ := sales.Total(facts)
	out.AchievedAmount = model.Money(achieved)
	out.AchievementPercent = model.Ratio(achieved, t.TargetAmount)
	out.Projection = Project(achieved, t.TargetAmount, ym, asOf)
	return out, nil
}

// Series builds the per-day rows with running totals. Sales on days without
// an allocation are not part of the series but still count toward the month.
func Series(allocations []model.DailyAllocation, achievedByDate map[string]decimal.Decimal) []DayPerformance {
	days := make([]DayPerformance, 0, len(allocations))
	cumTarget, cumAchieved := decimal.Zero, decimal.Zero
	for _, a := range allocations {
		achieved := achievedByDate[a.TargetDate.String()]
		cumTarget = cumTarget.Add(a.DailyTarget)
		cumAchieved = cumAchieved.Add(achieved)
		days = append(days, DayPerformance{
			Date:               a.TargetDate,
			Target:             a.DailyTarget,
			Achieved:           model.Money(achieved),
			Percent:            model.Ratio(achieved, a.DailyTarget),
			CumulativeTarget:   model.Money(cumTarget),
			CumulativeAchieved: model.Money(cumAchieved),
			CumulativePercent:  model.Ratio(cumAchieved, cumTarget),
			IsHoliday:          a.IsHoliday,
			IsManualOverride:   a.IsManualOverride,
		})
	}
	return days
}
