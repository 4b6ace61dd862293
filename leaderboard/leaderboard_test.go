package leaderboard_test

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/ovenline/sales-targets/leaderboard"
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

func d(s string) decimal.Decimal { return model.MustDecimal(s) }

var feb2025 = model.YearMonth{Year: 2025, Month: time.February}

func perf(achieved, projected string) performance.MonthlyPerformance {
	return performance.MonthlyPerformance{
		BranchID:           "branch-1",
		HasTarget:          true,
		AchievementPercent: d(achieved),
		Projection:         performance.Projection{ProjectedAchievementPercent: d(projected)},
	}
}

type fixture struct {
	store   *store.Memory
	facts   *sales.Memory
	service *leaderboard.Service
}

// newFixture creates three branches; branch-1 and branch-2 have 10,000
// targets for February 2025, branch-3 has none.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()
	facts := sales.NewMemory()

	_, err := targets.NewProfileService(st, nil).Create(ctx, targets.ProfileInput{
		Name: "Flat", Weights: targets.Weights(1, 1, 1, 1, 1, 1, 1), IsDefault: true,
	})
	require.NoError(t, err)
	manager := targets.NewManager(st, nil)
	gen := targets.NewGenerator(st, targets.RegenerateReplace, nil)

	for _, b := range []model.Branch{{ID: "branch-1", Name: "Central"}, {ID: "branch-2", Name: "Harbor"}, {ID: "branch-3", Name: "Airport"}} {
		facts.AddBranch(b)
		facts.AddCashier(model.Cashier{ID: model.CashierID("cashier-" + string(b.ID)), BranchID: b.ID, Name: "Cashier " + b.Name})
		if b.ID == "branch-3" {
			continue
		}
		tg, err := manager.Create(ctx, targets.TargetInput{BranchID: b.ID, YearMonth: "2025-02", TargetAmount: d("10000")})
		require.NoError(t, err)
		_, err = gen.Generate(ctx, tg.ID)
		require.NoError(t, err)
	}

	require.NoError(t, st.SaveTier(ctx, model.IncentiveTier{
		ID: "gold", Name: "Gold", MinAchievementPercent: d("100"), RewardType: model.RewardFixed,
		FixedAmount: d("500"), ApplicableTo: model.ScopeAll, IsActive: true,
	}))

	calc := performance.NewCalculator(st, facts, nil)
	return &fixture{store: st, facts: facts, service: leaderboard.NewService(calc, facts, facts, st, 2, nil)}
}

func (f *fixture) sale(id string, branch model.BranchID, day int, amount string) {
	f.facts.AddFacts(model.SalesFact{
		ID: model.FactID(id), BranchID: branch, CashierID: model.CashierID("cashier-" + string(branch)),
		Date: model.NewDate(2025, time.February, day), Shift: model.ShiftMorning,
		TotalSales: d(amount), TransactionCount: 3, Status: model.JournalPosted,
	})
}

// =============================================================================
// RANK TESTS
// =============================================================================

func TestRank_PermutationWithoutGaps(t *testing.T) {
	// GIVEN: N entries with distinct achievement
	// WHEN: Ranking them
	// THEN: Ranks are exactly 1..N, highest achievement first

	entries := []leaderboard.Entry{
		{BranchID: "a", AchievementPercent: d("55.5")},
		{BranchID: "b", AchievementPercent: d("120")},
		{BranchID: "c", AchievementPercent: d("0")},
		{BranchID: "d", AchievementPercent: d("99.99")},
		{BranchID: "e", AchievementPercent: d("100")},
	}

	ranked := leaderboard.Rank(entries, leaderboard.ByAchievement)

	ranks := make([]int, len(ranked))
	for i, e := range ranked {
		ranks[i] = e.Rank
	}
	sort.Ints(ranks)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, ranks)

	order := make([]model.BranchID, len(ranked))
	for i, e := range ranked {
		order[i] = e.BranchID
	}
	assert.Equal(t, []model.BranchID{"b", "e", "d", "a", "c"}, order)
	assert.Equal(t, 0, entries[0].Rank, "input is not modified")
}

func TestRank_TiesKeepInputOrder(t *testing.T) {
	entries := []leaderboard.Entry{
		{BranchID: "x", AchievedAmount: d("100")},
		{BranchID: "y", AchievedAmount: d("200")},
		{BranchID: "z", AchievedAmount: d("100")},
	}
	ranked := leaderboard.Rank(entries, leaderboard.BySales)
	assert.Equal(t, model.BranchID("y"), ranked[0].BranchID)
	assert.Equal(t, model.BranchID("x"), ranked[1].BranchID)
	assert.Equal(t, model.BranchID("z"), ranked[2].BranchID)
	assert.Equal(t, 3, ranked[2].Rank)
}

// =============================================================================
// CLASSIFY TESTS
// =============================================================================

func TestClassify_Buckets(t *testing.T) {
	cases := []struct {
		name      string
		achieved  string
		projected string
		level     leaderboard.Level
		message   string
	}{
		{"exceeding at exactly 100", "100", "100", leaderboard.LevelExceeding, "Target exceeded: 100.00% achieved"},
		{"exceeding wins over projection", "105", "50", leaderboard.LevelExceeding, "Target exceeded: 105.00% achieved"},
		{"on track at 90", "40", "90", leaderboard.LevelOnTrack, "On track: projected 90.00% of target"},
		{"warning at 70", "40", "70", leaderboard.LevelWarning, "Behind target: projected 70.00% of target"},
		{"warning just under 90", "40", "89.99", leaderboard.LevelWarning, "Behind target: projected 89.99% of target"},
		{"critical", "10", "69.99", leaderboard.LevelCritical, "Critical: projected 69.99% of target, 10.00% achieved so far"},
		{"a hair under 100 is not exceeding", "99.9999", "99.9999", leaderboard.LevelOnTrack, "On track: projected 100.00% of target"},
		{"99.995 is not exceeding", "99.995", "50", leaderboard.LevelCritical, "Critical: projected 50.00% of target, 100.00% achieved so far"},
		{"projection a hair under 90", "40", "89.999", leaderboard.LevelWarning, "Behind target: projected 90.00% of target"},
		{"projection a hair under 70", "40", "69.996", leaderboard.LevelCritical, "Critical: projected 70.00% of target, 40.00% achieved so far"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := leaderboard.Classify(perf(tc.achieved, tc.projected))
			assert.Equal(t, tc.level, a.Level)
			assert.Equal(t, tc.message, a.Message)
		})
	}
}

// =============================================================================
// SERVICE TESTS
// =============================================================================

func TestBranches_RankedWithTier(t *testing.T) {
	// GIVEN: branch-1 at 105%, branch-2 at 60%, branch-3 without target
	// WHEN: Building the February leaderboard at month end
	// THEN: Two entries, branch-1 first in the Gold tier

	f := newFixture(t)
	f.sale("f1", "branch-1", 5, "10500")
	f.sale("f2", "branch-2", 5, "6000")
	f.sale("f3", "branch-3", 5, "90000")

	entries, err := f.service.Branches(context.Background(), feb2025, model.NewDate(2025, time.March, 1))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, model.BranchID("branch-1"), entries[0].BranchID)
	assert.Equal(t, "Central", entries[0].BranchName)
	assert.Equal(t, "105.00", entries[0].AchievementPercent.StringFixed(2))
	assert.Equal(t, model.TierID("gold"), entries[0].TierID)

	assert.Equal(t, 2, entries[1].Rank)
	assert.Empty(t, entries[1].TierID)
}

func TestBranchesAndAlerts_OneCentShortOfTarget(t *testing.T) {
	// GIVEN: branch-1 closed February at 9,999.99 of 10,000, branch-2 at 10,000
	// WHEN: Building the leaderboard and alerts at month end
	// THEN: branch-1 misses Gold and is not exceeding; it ranks below branch-2
	//       even though both display 100.00

	f := newFixture(t)
	f.sale("f1", "branch-1", 5, "9999.99")
	f.sale("f2", "branch-2", 5, "10000")
	asOf := model.NewDate(2025, time.March, 1)

	entries, err := f.service.Branches(context.Background(), feb2025, asOf)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.BranchID("branch-2"), entries[0].BranchID)
	assert.Equal(t, model.TierID("gold"), entries[0].TierID)
	assert.Equal(t, model.BranchID("branch-1"), entries[1].BranchID)
	assert.Empty(t, entries[1].TierID)
	assert.Equal(t, "100.00", model.RoundPercent(entries[1].AchievementPercent).StringFixed(2))

	alerts, err := f.service.Alerts(context.Background(), feb2025, asOf)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, leaderboard.LevelOnTrack, alerts[0].Level)
	assert.Equal(t, leaderboard.LevelExceeding, alerts[1].Level)
}

func TestCompetition_RanksAllBranchesBySales(t *testing.T) {
	f := newFixture(t)
	f.sale("f1", "branch-1", 5, "10500")
	f.sale("f2", "branch-2", 5, "6000")
	f.sale("f3", "branch-3", 5, "90000")

	entries, err := f.service.Competition(context.Background(), feb2025.Range())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, model.BranchID("branch-3"), entries[0].BranchID)
	assert.Equal(t, "90000.00", entries[0].AchievedAmount.StringFixed(2))
	assert.Equal(t, 3, entries[0].Transactions)
	assert.Equal(t, model.BranchID("branch-2"), entries[2].BranchID)

	_, err = f.service.Competition(context.Background(), model.DateRange{})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestCashiers_IncludesIdleCashiers(t *testing.T) {
	f := newFixture(t)
	f.facts.AddCashier(model.Cashier{ID: "cashier-idle", BranchID: "branch-1", Name: "Idle"})
	f.sale("f1", "branch-1", 5, "700")

	entries, err := f.service.Cashiers(context.Background(), "branch-1", feb2025.Range())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.CashierID("cashier-branch-1"), entries[0].CashierID)
	assert.Equal(t, "700.00", entries[0].AchievedAmount.StringFixed(2))
	assert.Equal(t, model.CashierID("cashier-idle"), entries[1].CashierID)
	assert.True(t, entries[1].AchievedAmount.IsZero())
}

func TestAlerts_OnlyBranchesWithTargets(t *testing.T) {
	// GIVEN: As of Feb 14, branch-1 sold 9,000 and branch-2 sold 2,000
	// WHEN: Computing alerts
	// THEN: branch-1 is on track (projected 180%), branch-2 critical (40%)

	f := newFixture(t)
	f.sale("f1", "branch-1", 5, "9000")
	f.sale("f2", "branch-2", 5, "2000")

	alerts, err := f.service.Alerts(context.Background(), feb2025, model.NewDate(2025, time.February, 14))
	require.NoError(t, err)
	require.Len(t, alerts, 2)

	assert.Equal(t, model.BranchID("branch-1"), alerts[0].BranchID)
	assert.Equal(t, leaderboard.LevelOnTrack, alerts[0].Level)
	assert.Equal(t, "180.00", alerts[0].ProjectedAchievementPercent.StringFixed(2))

	assert.Equal(t, leaderboard.LevelCritical, alerts[1].Level)
	assert.Equal(t, "Harbor", alerts[1].BranchName)
}

type failingPerformer struct{}

func (failingPerformer) Monthly(context.Context, model.BranchID, model.YearMonth, model.Date) (*performance.MonthlyPerformance, error) {
	return nil, errors.New("db down")
}

func TestAlerts_PropagatesErrors(t *testing.T) {
	f := newFixture(t)
	svc := leaderboard.NewService(failingPerformer{}, f.facts, f.facts, f.store, 0, nil)
	_, err := svc.Alerts(context.Background(), feb2025, model.NewDate(2025, time.February, 14))
	assert.ErrorContains(t, err, "db down")
}
