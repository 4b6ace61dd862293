package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ovenline/sales-targets/model"
	"github.com/ovenline/sales-targets/sales"
	"github.com/ovenline/sales-targets/store/sqlite"
	"github.com/ovenline/sales-targets/targets"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func d(s string) decimal.Decimal { return model.MustDecimal(s) }

var (
	feb2025 = model.YearMonth{Year: 2025, Month: time.February}
	created = time.Date(2025, time.January, 20, 9, 30, 0, 0, time.UTC)
)

func profile(id string, isDefault bool) model.WeightProfile {
	return model.WeightProfile{
		ID:        model.ProfileID(id),
		Name:      "Profile " + id,
		Weights:   model.Weekdays{d("2"), d("1"), d("1"), d("1"), d("1"), d("1.5"), d("2")},
		IsDefault: isDefault,
		CreatedAt: created,
	}
}

func target(id, branch string) model.MonthlyTarget {
	return model.MonthlyTarget{
		ID: model.TargetID(id), BranchID: model.BranchID(branch), YearMonth: feb2025,
		TargetAmount: d("30000"), Status: model.TargetDraft, CreatedAt: created, UpdatedAt: created,
	}
}

// =============================================================================
// PROFILE TESTS
// =============================================================================

func TestProfiles_RoundTripAndDefault(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveProfile(ctx, profile("p1", true)))
	require.NoError(t, store.SaveProfile(ctx, profile("p2", false)))

	got, err := store.GetProfile(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "1.5", got.Weights[time.Friday].String())
	assert.True(t, got.CreatedAt.Equal(created))

	def, err := store.GetDefaultProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.ProfileID("p1"), def.ID)

	missing, err := store.GetProfile(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestProfiles_SecondDefaultRejectedByIndex(t *testing.T) {
	// GIVEN: A default profile
	// WHEN: Saving a second default without clearing the first
	// THEN: The partial unique index refuses it
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveProfile(ctx, profile("p1", true)))
	assert.Error(t, store.SaveProfile(ctx, profile("p2", true)))

	require.NoError(t, store.ClearDefaultProfile(ctx))
	require.NoError(t, store.SaveProfile(ctx, profile("p2", true)))

	def, err := store.GetDefaultProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.ProfileID("p2"), def.ID)
}

// =============================================================================
// TARGET AND ALLOCATION TESTS
// =============================================================================

func TestTargets_UniquePerBranchMonth(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveTarget(ctx, target("t1", "branch-1")))
	err := store.SaveTarget(ctx, target("t2", "branch-1"))
	assert.ErrorIs(t, err, model.ErrDuplicate)

	// Updating the same id is not a duplicate
	updated := target("t1", "branch-1")
	updated.TargetAmount = d("31000")
	updated.AllocationVersion = 3
	require.NoError(t, store.SaveTarget(ctx, updated))

	got, err := store.FindTarget(ctx, "branch-1", feb2025)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "31000", got.TargetAmount.String())
	assert.Equal(t, 3, got.AllocationVersion)
	assert.Equal(t, feb2025, got.YearMonth)
	assert.Empty(t, got.ProfileID)
}

func TestAllocations_ReplaceAndCascade(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveTarget(ctx, target("t1", "branch-1")))

	rows := []model.DailyAllocation{
		{ID: "a2", TargetDate: model.NewDate(2025, time.February, 2), WeightPercent: d("60"), DailyTarget: d("600"), Version: 1, UpdatedAt: created},
		{ID: "a1", TargetDate: model.NewDate(2025, time.February, 1), WeightPercent: d("40"), DailyTarget: d("400"), Version: 1, UpdatedAt: created},
	}
	require.NoError(t, store.ReplaceAllocations(ctx, "t1", rows))

	got, err := store.ListAllocations(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.AllocationID("a1"), got[0].ID, "ordered by date")
	assert.Equal(t, model.TargetID("t1"), got[0].TargetID)

	// Replace wipes the previous set
	require.NoError(t, store.ReplaceAllocations(ctx, "t1", rows[:1]))
	got, err = store.ListAllocations(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, got, 1)

	// Deleting the target removes its allocations
	require.NoError(t, store.DeleteTarget(ctx, "t1"))
	got, err = store.ListAllocations(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A transaction that saves a target and then fails
	// WHEN: WithTx returns
	// THEN: The target was never committed
	store := newStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx model.Store) error {
		if err := tx.SaveTarget(ctx, target("t1", "branch-1")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.GetTarget(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGenerator_OverSQLite(t *testing.T) {
	// GIVEN: The February example on the SQLite store
	// WHEN: Generating allocations twice
	// THEN: 28 rows summing to the target, version bumped each time
	store := newStore(t)
	ctx := context.Background()

	_, err := targets.NewProfileService(store, nil).Create(ctx, targets.ProfileInput{
		Name: "Weekend heavy", Weights: targets.Weights(2, 1, 1, 1, 1, 1.5, 2), IsDefault: true,
	})
	require.NoError(t, err)
	tg, err := targets.NewManager(store, nil).Create(ctx, targets.TargetInput{
		BranchID: "branch-1", YearMonth: "2025-02", TargetAmount: d("30000"),
	})
	require.NoError(t, err)

	gen := targets.NewGenerator(store, targets.RegenerateReplace, nil)
	_, err = gen.Generate(ctx, tg.ID)
	require.NoError(t, err)
	rows, err := gen.Generate(ctx, tg.ID)
	require.NoError(t, err)
	require.Len(t, rows, 28)

	stored, err := store.ListAllocations(ctx, tg.ID)
	require.NoError(t, err)
	require.Len(t, stored, 28)
	_, daily := targets.Totals(stored)
	assert.Equal(t, "30000.00", daily.StringFixed(2))
	assert.Equal(t, 2, stored[0].Version)

	saved, err := store.GetTarget(ctx, tg.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TargetActive, saved.Status)
	assert.Equal(t, 2, saved.AllocationVersion)
}

// =============================================================================
// REFERENCE DATA TESTS
// =============================================================================

func TestRates_OrderedByNumericMinimum(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	from := model.NewDate(2025, time.January, 1)
	ceiling := d("100000")
	for _, r := range []model.CommissionRate{
		{ID: "r3", Name: "High", MinSalesAmount: d("100000"), CommissionType: model.CommissionPercentage, PercentageRate: d("3"), ApplicableTo: model.ScopeAll, IsActive: true},
		{ID: "r1", Name: "Low", MinSalesAmount: d("0"), MaxSalesAmount: model.DecimalPtr(d("50000")), CommissionType: model.CommissionFixed, FixedAmount: d("100"), ApplicableTo: model.ScopeCashier, IsActive: true},
		{ID: "r2", Name: "Mid", MinSalesAmount: d("50000"), MaxSalesAmount: &ceiling, CommissionType: model.CommissionPercentage, PercentageRate: d("2"), ApplicableTo: model.ScopeAll, ValidFrom: &from, IsActive: false},
	} {
		require.NoError(t, store.SaveRate(ctx, r))
	}

	rates, err := store.ListRates(ctx)
	require.NoError(t, err)
	require.Len(t, rates, 3)
	assert.Equal(t, []model.RateID{"r1", "r2", "r3"}, []model.RateID{rates[0].ID, rates[1].ID, rates[2].ID})
	assert.Nil(t, rates[2].MaxSalesAmount)
	require.NotNil(t, rates[1].MaxSalesAmount)
	assert.Equal(t, "100000", rates[1].MaxSalesAmount.String())
	require.NotNil(t, rates[1].ValidFrom)
	assert.True(t, rates[1].ValidFrom.Equal(from))
	assert.Nil(t, rates[1].ValidTo)
	assert.False(t, rates[1].IsActive)

	require.NoError(t, store.DeleteRate(ctx, "r2"))
	gone, err := store.GetRate(ctx, "r2")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestTiers_OrderedBySortOrder(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveTier(ctx, model.IncentiveTier{ID: "b", Name: "Gold", MinAchievementPercent: d("100"), RewardType: model.RewardFixed, FixedAmount: d("500"), ApplicableTo: model.ScopeAll, SortOrder: 2, IsActive: true}))
	require.NoError(t, store.SaveTier(ctx, model.IncentiveTier{ID: "a", Name: "Silver", MinAchievementPercent: d("80"), MaxAchievementPercent: model.DecimalPtr(d("100")), RewardType: model.RewardFixed, FixedAmount: d("200"), ApplicableTo: model.ScopeAll, SortOrder: 1, IsActive: true}))

	tiers, err := store.ListTiers(ctx)
	require.NoError(t, err)
	require.Len(t, tiers, 2)
	assert.Equal(t, model.TierID("a"), tiers[0].ID)
	assert.Equal(t, "100", tiers[0].MaxAchievementPercent.String())
	assert.Nil(t, tiers[1].MaxAchievementPercent)
}

// =============================================================================
// PAYOUT TESTS
// =============================================================================

func TestAwards_FilterAndLifecycleFields(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	feb := feb2025.Range()
	mar := model.YearMonth{Year: 2025, Month: time.March}.Range()
	approvedAt := created.Add(time.Hour)

	a1 := model.IncentiveAward{
		ID: "a1", Scope: model.ScopeBranch, BranchID: "branch-1", Period: feb,
		TargetAmount: d("10000"), AchievedAmount: d("10500"), AchievementPercent: d("105"),
		TierID: "gold", CalculatedReward: d("500"), FinalReward: d("500"),
		Payout: model.NewPayout(), CreatedAt: created,
	}
	a2 := a1
	a2.ID, a2.Period, a2.CreatedAt = "a2", mar, created.Add(time.Minute)
	a2.Payout = model.Payout{Status: model.PayoutApproved, ApprovedBy: "manager", ApprovedAt: &approvedAt}
	require.NoError(t, store.SaveAward(ctx, a1))
	require.NoError(t, store.SaveAward(ctx, a2))

	all, err := store.ListAwards(ctx, model.AwardFilter{BranchID: "branch-1"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, model.AwardID("a1"), all[0].ID, "ordered by creation")

	approved, err := store.ListAwards(ctx, model.AwardFilter{Status: model.PayoutApproved})
	require.NoError(t, err)
	require.Len(t, approved, 1)
	require.NotNil(t, approved[0].ApprovedAt)
	assert.True(t, approved[0].ApprovedAt.Equal(approvedAt))
	assert.Nil(t, approved[0].PaidAt)

	inFeb, err := store.ListAwards(ctx, model.AwardFilter{Period: &feb})
	require.NoError(t, err)
	require.Len(t, inFeb, 1)
	assert.Equal(t, model.AwardID("a1"), inFeb[0].ID)
	assert.True(t, inFeb[0].Period.To.Equal(feb.To))
}

func TestCalculations_KeepSourceFacts(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	c := model.CommissionCalculation{
		ID: "c1", Scope: model.ScopeCashier, CashierID: "cashier-1", BranchID: "branch-1",
		Period: feb2025.Range(), TotalSales: d("60000"), RateID: "r2",
		CalculatedCommission: d("1200"), FinalCommission: d("1200"), AchievementPercent: d("60"),
		SourceFactIDs: []model.FactID{"f1", "f2"}, Payout: model.NewPayout(), CreatedAt: created,
	}
	require.NoError(t, store.SaveCalculation(ctx, c))

	got, err := store.GetCalculation(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []model.FactID{"f1", "f2"}, got.SourceFactIDs)
	assert.Equal(t, model.PayoutPending, got.Status)

	list, err := store.ListCalculations(ctx, model.CalculationFilter{CashierID: "cashier-2"})
	require.NoError(t, err)
	assert.Empty(t, list)
}

// =============================================================================
// SNAPSHOT TESTS
// =============================================================================

func TestSnapshots_UpsertOverwrites(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	day := model.NewDate(2025, time.February, 5)

	s := model.BranchDailySales{
		BranchID: "branch-1", SalesDate: day, TotalSales: d("1200"), TransactionsCount: 25,
		AverageTicket: d("48"), CashierCount: 2, MorningSales: d("400"), EveningSales: d("500"),
		NightSales: d("300"), TargetAmount: d("1000"), AchievementAmount: d("200"),
		AchievementPercent: d("120"), SourceFactIDs: []model.FactID{"f1"}, ComputedAt: created,
	}
	require.NoError(t, store.UpsertSnapshot(ctx, s))

	s.TotalSales = d("1300")
	s.ComputedAt = created.Add(time.Hour)
	require.NoError(t, store.UpsertSnapshot(ctx, s))

	got, err := store.GetSnapshot(ctx, "branch-1", day)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "1300", got.TotalSales.String())
	assert.True(t, got.ComputedAt.Equal(created.Add(time.Hour)))

	list, err := store.ListSnapshots(ctx, "branch-1", feb2025.Range())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// =============================================================================
// SALES READ MODEL TESTS
// =============================================================================

func TestFacts_EligibleByDefault(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	for i, st := range []model.JournalStatus{model.JournalDraft, model.JournalPosted, model.JournalApproved, model.JournalRejected} {
		require.NoError(t, store.SaveFact(ctx, model.SalesFact{
			ID: model.FactID(string(rune('a' + i))), BranchID: "branch-1", CashierID: "cashier-1",
			Date: model.NewDate(2025, time.February, i+1), Shift: model.ShiftMorning,
			TotalSales: d("100"), TransactionCount: 2, Status: st,
		}))
	}

	got, err := store.Facts(ctx, sales.Query{BranchID: "branch-1", Range: feb2025.Range()})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.FactID("b"), got[0].ID)
	assert.True(t, got[0].Date.Equal(model.NewDate(2025, time.February, 2)))

	drafts, err := store.Facts(ctx, sales.Query{Range: feb2025.Range(), Statuses: []model.JournalStatus{model.JournalDraft}})
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, model.FactID("a"), drafts[0].ID)
}

func TestDirectory(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveBranch(ctx, model.Branch{ID: "branch-2", Name: "Harbor"}))
	require.NoError(t, store.SaveBranch(ctx, model.Branch{ID: "branch-1", Name: "Central"}))
	require.NoError(t, store.SaveCashier(ctx, model.Cashier{ID: "cashier-1", BranchID: "branch-1", Name: "Ana"}))

	branches, err := store.ListBranches(ctx)
	require.NoError(t, err)
	require.Len(t, branches, 2)
	assert.Equal(t, "Central", branches[0].Name)

	cashiers, err := store.ListCashiers(ctx, "branch-2")
	require.NoError(t, err)
	assert.Empty(t, cashiers)

	c, err := store.GetCashier(ctx, "cashier-1")
	require.NoError(t, err)
	assert.Equal(t, model.BranchID("branch-1"), c.BranchID)

	b, err := store.GetBranch(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, b)
}
