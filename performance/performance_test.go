package performance_test

import (
	"context"
	"testing"
	"time"

	"github.com/ovenline/sales-targets/model"
	"github.com/ovenline/sales-targets/model/store"
	"github.com/ovenline/sales-targets/performance"
	"github.com/ovenline/sales-targets/sales"
	"github.com/ovenline/sales-targets/targets"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var feb2025 = model.YearMonth{Year: 2025, Month: time.February}

func feb(day int) model.Date { return model.NewDate(2025, time.February, day) }

func fact(id string, day int, amount string, status model.JournalStatus) model.SalesFact {
	return model.SalesFact{
		ID:               model.FactID(id),
		BranchID:         "branch-1",
		CashierID:        "cashier-1",
		Date:             feb(day),
		Shift:            model.ShiftMorning,
		TotalSales:       model.MustDecimal(amount),
		TransactionCount: 10,
		Status:           status,
	}
}

// setup creates branch-1 with a generated 30,000 target for February 2025.
func setup(t *testing.T) (*performance.Calculator, *store.Memory, *sales.Memory, *model.MonthlyTarget) {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()
	facts := sales.NewMemory()

	_, err := targets.NewProfileService(st, nil).Create(ctx, targets.ProfileInput{
		Name: "Weekend heavy", Weights: targets.Weights(1, 1, 1, 1, 1, 2, 2), IsDefault: true,
	})
	require.NoError(t, err)
	tg, err := targets.NewManager(st, nil).Create(ctx, targets.TargetInput{
		BranchID: "branch-1", YearMonth: "2025-02", TargetAmount: decimal.NewFromInt(30000),
	})
	require.NoError(t, err)
	_, err = targets.NewGenerator(st, targets.RegenerateReplace, nil).Generate(ctx, tg.ID)
	require.NoError(t, err)

	return performance.NewCalculator(st, facts, nil), st, facts, tg
}

// =============================================================================
// MONTHLY TESTS
// =============================================================================

func TestMonthly_OnlyEligibleSalesCount(t *testing.T) {
	// GIVEN: Posted and approved sales plus draft and rejected ones
	// WHEN: Computing performance as of Feb 2
	// THEN: Only posted/approved sales count; projection uses 2 elapsed days

	calc, _, facts, tg := setup(t)
	facts.AddFacts(
		fact("f1", 1, "2000", model.JournalPosted),
		fact("f2", 1, "500", model.JournalDraft),
		fact("f3", 2, "1000", model.JournalApproved),
		fact("f4", 3, "700", model.JournalRejected),
		fact("f5", 3, "300", model.JournalSubmitted),
	)

	perf, err := calc.Monthly(context.Background(), "branch-1", feb2025, feb(2))
	require.NoError(t, err)

	assert.True(t, perf.HasTarget)
	assert.Equal(t, tg.ID, perf.TargetID)
	assert.Equal(t, "30000.00", perf.TargetAmount.StringFixed(2))
	assert.Equal(t, "3000.00", perf.AchievedAmount.StringFixed(2))
	assert.Equal(t, "10.00", perf.AchievementPercent.StringFixed(2))

	require.Len(t, perf.Days, 28)
	day1 := perf.Days[0]
	assert.Equal(t, "1666.67", day1.Target.StringFixed(2))
	assert.Equal(t, "2000.00", day1.Achieved.StringFixed(2))
	assert.Equal(t, "120.00", day1.Percent.StringFixed(2))

	day2 := perf.Days[1]
	assert.Equal(t, "2500.00", day2.CumulativeTarget.StringFixed(2))
	assert.Equal(t, "3000.00", day2.CumulativeAchieved.StringFixed(2))
	assert.Equal(t, "120.00", day2.CumulativePercent.StringFixed(2))

	day3 := perf.Days[2]
	assert.True(t, day3.Achieved.IsZero())
	assert.True(t, day3.Percent.IsZero())

	p := perf.Projection
	assert.Equal(t, 2, p.DaysPassed)
	assert.Equal(t, "1500.00", p.AverageDailySales.StringFixed(2))
	assert.Equal(t, "42000.00", p.ProjectedTotal.StringFixed(2))
	assert.Equal(t, "140.00", p.ProjectedAchievementPercent.StringFixed(2))
	assert.Equal(t, "27000.00", p.RemainingTarget.StringFixed(2))
	assert.Equal(t, "1038.46", p.RequiredDailyRate.StringFixed(2))
}

func TestMonthly_NoTarget_IsZeroResult(t *testing.T) {
	// GIVEN: A branch with sales but no target
	// WHEN: Computing performance
	// THEN: A zero result, not an error

	calc, _, facts, _ := setup(t)
	f := fact("f1", 1, "2000", model.JournalPosted)
	f.BranchID = "branch-2"
	facts.AddFacts(f)

	perf, err := calc.Monthly(context.Background(), "branch-2", feb2025, feb(10))
	require.NoError(t, err)

	assert.False(t, perf.HasTarget)
	assert.True(t, perf.TargetAmount.IsZero())
	assert.True(t, perf.AchievedAmount.IsZero())
	assert.True(t, perf.AchievementPercent.IsZero())
	assert.True(t, perf.Projection.ProjectedAchievementPercent.IsZero())
	assert.Empty(t, perf.Days)
}

func TestMonthly_DraftTarget_IsZeroResult(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	tg, err := targets.NewManager(st, nil).Create(ctx, targets.TargetInput{
		BranchID: "branch-1", YearMonth: "2025-02", TargetAmount: decimal.NewFromInt(1000),
	})
	require.NoError(t, err)
	require.Equal(t, model.TargetDraft, tg.Status)

	calc := performance.NewCalculator(st, sales.NewMemory(), nil)
	perf, err := calc.Monthly(ctx, "branch-1", feb2025, feb(10))
	require.NoError(t, err)
	assert.False(t, perf.HasTarget)
}

func TestMonthly_VersionMismatch_IsRetryable(t *testing.T) {
	// GIVEN: A target whose version moved past its allocations
	// WHEN: Computing performance
	// THEN: ErrConcurrentModification, which is retryable

	calc, st, _, tg := setup(t)
	ctx := context.Background()
	stored, err := st.GetTarget(ctx, tg.ID)
	require.NoError(t, err)
	stored.AllocationVersion++
	require.NoError(t, st.SaveTarget(ctx, *stored))

	_, err = calc.Monthly(ctx, "branch-1", feb2025, feb(10))
	assert.ErrorIs(t, err, model.ErrConcurrentModification)
	assert.True(t, model.IsRetryable(err))
}

func TestMonthly_ReportsOverridesAndHolidays(t *testing.T) {
	calc, st, _, tg := setup(t)
	ctx := context.Background()
	gen := targets.NewGenerator(st, targets.RegenerateReplace, nil)
	allocs, err := gen.List(ctx, tg.ID)
	require.NoError(t, err)

	holiday := true
	_, err = gen.Override(ctx, targets.OverrideInput{AllocationID: allocs[4].ID, IsHoliday: &holiday, DailyTarget: model.DecimalPtr(decimal.Zero)})
	require.NoError(t, err)

	perf, err := calc.Monthly(ctx, "branch-1", feb2025, feb(10))
	require.NoError(t, err)
	assert.True(t, perf.Days[4].IsHoliday)
	assert.True(t, perf.Days[4].IsManualOverride)
	assert.True(t, perf.Days[4].Percent.IsZero())
}

func TestMonthly_Validation(t *testing.T) {
	calc, _, _, _ := setup(t)
	_, err := calc.Monthly(context.Background(), "", feb2025, feb(1))
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = calc.Monthly(context.Background(), "branch-1", model.YearMonth{}, feb(1))
	assert.ErrorIs(t, err, model.ErrValidation)
}

// =============================================================================
// PROJECTION TESTS
// =============================================================================

func TestProject(t *testing.T) {
	target := decimal.NewFromInt(30000)

	cases := []struct {
		name                          string
		achieved                      string
		asOf                          model.Date
		daysPassed                    int
		avg, projected, percent, rate string
	}{
		{"before month", "0", model.NewDate(2025, time.January, 20), 0, "0.00", "0.00", "0.00", "1071.43"},
		{"mid month", "10000", feb(10), 10, "1000.00", "28000.00", "93.33", "1111.11"},
		{"after month", "30000", model.NewDate(2025, time.March, 5), 28, "1071.43", "30000.00", "100.00", "0.00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := performance.Project(model.MustDecimal(tc.achieved), target, feb2025, tc.asOf)
			assert.Equal(t, 28, p.DaysInMonth)
			assert.Equal(t, tc.daysPassed, p.DaysPassed)
			assert.Equal(t, tc.avg, p.AverageDailySales.StringFixed(2))
			assert.Equal(t, tc.projected, p.ProjectedTotal.StringFixed(2))
			assert.Equal(t, tc.percent, p.ProjectedAchievementPercent.StringFixed(2))
			assert.Equal(t, tc.rate, p.RequiredDailyRate.StringFixed(2))
		})
	}
}

func TestMonthly_PercentsAreExact(t *testing.T) {
	// GIVEN: 29,999.99 posted against a 30,000 target
	// WHEN: Computing performance at month end
	// THEN: Achievement and projection stay below 100 even though they
	//       display as 100.00

	calc, _, facts, _ := setup(t)
	facts.AddFacts(fact("f1", 28, "29999.99", model.JournalPosted))

	perf, err := calc.Monthly(context.Background(), "branch-1", feb2025, model.NewDate(2025, time.March, 1))
	require.NoError(t, err)

	hundred := decimal.NewFromInt(100)
	assert.True(t, perf.AchievementPercent.LessThan(hundred), perf.AchievementPercent.String())
	assert.True(t, perf.Projection.ProjectedAchievementPercent.LessThan(hundred))
	assert.Equal(t, "100.00", model.RoundPercent(perf.AchievementPercent).StringFixed(2))
}

func TestProject_MonthEndingOnTargetIsExactlyHundred(t *testing.T) {
	// 30,000 over 28 days averages 1071.428571...; the projection must not
	// inherit that truncation
	p := performance.Project(decimal.NewFromInt(30000), decimal.NewFromInt(30000), feb2025, model.NewDate(2025, time.March, 1))
	assert.True(t, p.ProjectedAchievementPercent.Equal(decimal.NewFromInt(100)), p.ProjectedAchievementPercent.String())

	p = performance.Project(decimal.NewFromInt(10000), decimal.NewFromInt(30000), feb2025, feb(21))
	assert.True(t, p.ProjectedAchievementPercent.LessThan(decimal.NewFromInt(45)))
	assert.Equal(t, "44.44", model.RoundPercent(p.ProjectedAchievementPercent).StringFixed(2))
}

func TestProject_ZeroTarget(t *testing.T) {
	p := performance.Project(decimal.NewFromInt(500), decimal.Zero, feb2025, feb(5))
	assert.True(t, p.ProjectedAchievementPercent.IsZero())
	assert.True(t, p.RemainingTarget.IsZero())
	assert.Equal(t, "2800.00", p.ProjectedTotal.StringFixed(2))
}
