package sales_test

import (
	"context"
	"testing"
	"time"

	"github.com/ovenline/sales-targets/model"
	"github.com/ovenline/sales-targets/sales"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fact(id, branch, cashier string, day int, amount string, status model.JournalStatus) model.SalesFact {
	return model.SalesFact{
		ID: model.FactID(id), BranchID: model.BranchID(branch), CashierID: model.CashierID(cashier),
		Date: model.NewDate(2025, time.March, day), Shift: model.ShiftMorning,
		TotalSales: model.MustDecimal(amount), TransactionCount: 2, Status: status,
	}
}

var march = model.DateRange{From: model.NewDate(2025, time.March, 1), To: model.NewDate(2025, time.March, 31)}

// statusIgnoringAdapter returns everything, whatever the query says.
type statusIgnoringAdapter struct{ facts []model.SalesFact }

func (a statusIgnoringAdapter) Facts(context.Context, sales.Query) ([]model.SalesFact, error) {
	return a.facts, nil
}

func TestEligibleFacts_DropsIneligibleStatuses(t *testing.T) {
	// GIVEN: An adapter that ignores the status filter
	// WHEN: Reading eligible facts
	// THEN: Only posted and approved journals come back

	a := statusIgnoringAdapter{facts: []model.SalesFact{
		fact("1", "b1", "c1", 1, "10", model.JournalDraft),
		fact("2", "b1", "c1", 1, "20", model.JournalSubmitted),
		fact("3", "b1", "c1", 1, "30", model.JournalPosted),
		fact("4", "b1", "c1", 1, "40", model.JournalApproved),
		fact("5", "b1", "c1", 1, "50", model.JournalRejected),
	}}

	got, err := sales.EligibleFacts(context.Background(), a, sales.Query{Range: march})
	require.NoError(t, err)

	total, ids := sales.Total(got)
	assert.Equal(t, "70", total.String())
	assert.Equal(t, []model.FactID{"3", "4"}, ids)
}

func TestMemory_QueryFilters(t *testing.T) {
	m := sales.NewMemory()
	m.AddFacts(
		fact("1", "b1", "c1", 3, "10", model.JournalPosted),
		fact("2", "b1", "c2", 1, "20", model.JournalPosted),
		fact("3", "b2", "c3", 2, "30", model.JournalPosted),
		fact("4", "b1", "c1", 2, "40", model.JournalDraft),
	)
	ctx := context.Background()

	got, err := m.Facts(ctx, sales.Query{BranchID: "b1", Range: march})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.FactID("2"), got[0].ID, "ordered by date")

	got, err = m.Facts(ctx, sales.Query{CashierID: "c1", Range: march, Statuses: []model.JournalStatus{model.JournalDraft}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.FactID("4"), got[0].ID)

	got, err = m.Facts(ctx, sales.Query{Range: model.DateRange{From: model.NewDate(2025, time.March, 2), To: model.NewDate(2025, time.March, 2)}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.FactID("3"), got[0].ID)

	// Re-adding an id replaces the fact
	m.AddFacts(fact("1", "b1", "c1", 3, "15", model.JournalPosted))
	got, err = m.Facts(ctx, sales.Query{CashierID: "c1", Range: march})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "15", got[0].TotalSales.String())
}

func TestByDateAndByCashier(t *testing.T) {
	facts := []model.SalesFact{
		fact("1", "b1", "c2", 1, "10", model.JournalPosted),
		fact("2", "b1", "c1", 1, "20", model.JournalPosted),
		fact("3", "b1", "c2", 2, "30", model.JournalPosted),
	}

	byDate := sales.ByDate(facts)
	assert.Equal(t, "30", byDate["2025-03-01"].String())
	assert.Equal(t, "30", byDate["2025-03-02"].String())

	byCashier := sales.ByCashier(facts)
	require.Len(t, byCashier, 2)
	assert.Equal(t, model.CashierID("c1"), byCashier[0].CashierID)
	assert.Equal(t, "40", byCashier[1].TotalSales.String())
	assert.Equal(t, 4, byCashier[1].Transactions)
}

func TestMemory_Directory(t *testing.T) {
	m := sales.NewMemory()
	m.AddBranch(model.Branch{ID: "b2", Name: "Harbor"})
	m.AddBranch(model.Branch{ID: "b1", Name: "Central"})
	m.AddCashier(model.Cashier{ID: "c1", BranchID: "b1", Name: "Ana"})
	m.AddCashier(model.Cashier{ID: "c2", BranchID: "b2", Name: "Budi"})
	ctx := context.Background()

	branches, err := m.ListBranches(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.BranchID("b1"), branches[0].ID)

	cashiers, err := m.ListCashiers(ctx, "b2")
	require.NoError(t, err)
	require.Len(t, cashiers, 1)
	assert.Equal(t, "Budi", cashiers[0].Name)

	missing, err := m.GetCashier(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
