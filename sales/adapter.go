/*
Package sales is the engine's read contract over the cashier journal subsystem.

PURPOSE:
  Journals (one per cashier, shift and day) are created, submitted and
  approved elsewhere. The engine only reads them: totals per branch, per
  cashier, per day and per shift. Only posted and approved journals count.

KEY INTERFACES:
  Adapter:   fact query by branch/cashier/date range/status
  Directory: id -> display name lookups for branches and cashiers

SEE ALSO:
  - memory.go: In-memory source for tests and demos
  - store/sqlite: SQLite-backed source over the sales_facts table
*/
package sales

import (
	"context"
	"sort"

	"github.com/ovenline/sales-targets/model"
	"github.com/shopspring/decimal"
)

// Query selects sales facts. Empty BranchID/CashierID match all.
// An empty Statuses list means the eligible statuses (posted, approved).
type Query struct {
	BranchID  model.BranchID
	CashierID model.CashierID
	Range     model.DateRange
	Statuses  []model.JournalStatus
}

// EligibleStatuses are the only journal statuses any calculation may read.
var EligibleStatuses = []model.JournalStatus{model.JournalPosted, model.JournalApproved}

// Adapter reads sales facts.
type Adapter interface {
	Facts(ctx context.Context, q Query) ([]model.SalesFact, error)
}

// Directory resolves branches and cashiers.
type Directory interface {
	ListBranches(ctx context.Context) ([]model.Branch, error)
	GetBranch(ctx context.Context, id model.BranchID) (*model.Branch, error)
	ListCashiers(ctx context.Context, branchID model.BranchID) ([]model.Cashier, error)
	GetCashier(ctx context.Context, id model.CashierID) (*model.Cashier, error)
}

// Matches reports whether f satisfies q.
func (q Query) Matches(f model.SalesFact) bool {
	if q.BranchID != "" && f.BranchID != q.BranchID {
		return false
	}
	if q.CashierID != "" && f.CashierID != q.CashierID {
		return false
	}
	if !q.Range.Contains(f.Date) {
		return false
	}
	statuses := q.Statuses
	if len(statuses) == 0 {
		statuses = EligibleStatuses
	}
	for _, s := range statuses {
		if f.Status == s {
			return true
		}
	}
	return false
}

// EligibleFacts queries the adapter and drops anything not posted or approved,
// whatever the adapter's own filtering did.
func EligibleFacts(ctx context.Context, a Adapter, q Query) ([]model.SalesFact, error) {
	q.Statuses = EligibleStatuses
	facts, err := a.Facts(ctx, q)
	if err != nil {
		return nil, err
	}
	out := facts[:0:0]
	for _, f := range facts {
		if f.Status.Eligible() {
			out = append(out, f)
		}
	}
	return out, nil
}

// =============================================================================
// AGGREGATION HELPERS
// =============================================================================

// Total sums TotalSales and returns the contributing fact ids.
func Total(facts []model.SalesFact) (decimal.Decimal, []model.FactID) {
	total := decimal.Zero
	ids := make([]model.FactID, 0, len(facts))
	for _, f := range facts {
		total = total.Add(f.TotalSales)
		ids = append(ids, f.ID)
	}
	return total, ids
}

// ByDate sums TotalSales per calendar day, keyed by the YYYY-MM-DD form.
func ByDate(facts []model.SalesFact) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, f := range facts {
		k := f.Date.String()
		out[k] = out[k].Add(f.TotalSales)
	}
	return out
}

// CashierTotal is one cashier's sales over a period.
type CashierTotal struct {
	CashierID    model.CashierID
	BranchID     model.BranchID
	TotalSales   decimal.Decimal
	Transactions int
}

// ByCashier sums facts per cashier, ordered by cashier id.
func ByCashier(facts []model.SalesFact) []CashierTotal {
	idx := make(map[model.CashierID]int)
	var out []CashierTotal
	for _, f := range facts {
		i, ok := idx[f.CashierID]
		if !ok {
			i = len(out)
			idx[f.CashierID] = i
			out = append(out, CashierTotal{CashierID: f.CashierID, BranchID: f.BranchID, TotalSales: decimal.Zero})
		}
		out[i].TotalSales = out[i].TotalSales.Add(f.TotalSales)
		out[i].Transactions += f.TransactionCount
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CashierID < out[j].CashierID })
	return out
}
