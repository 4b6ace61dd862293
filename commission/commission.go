/*
Package commission pays cashiers (or whole branches) on raw sales volume.

PURPOSE:
  Unlike incentives, commission ignores targets: the period's posted sales
  total selects a rate bracket [minSalesAmount, maxSalesAmount) and the
  bracket's formula gives the amount. Achievement against the branch's
  monthly target is recorded next to it for context only.

BRACKET SELECTION:
  Candidates are active rates whose scope is "all" or the subject's scope and
  whose validity window contains the period end date. Brackets are expected
  not to overlap; when they do, the one with the lowest minimum wins. No
  qualifying bracket is a configuration error: nothing is persisted.

FORMULAS:
  fixed:      fixedAmount
  percentage: totalSales * rate / 100
  tiered:     fixedAmount + totalSales * rate / 100
*/
package commission

import (
	"github.com/ovenline/sales-targets/model"
	"github.com/shopspring/decimal"
)

// MatchRate returns the bracket that applies to total on the given day.
func MatchRate(rates []model.CommissionRate, total decimal.Decimal, scope model.Scope, on model.Date) (*model.CommissionRate, bool) {
	candidates := make([]model.CommissionRate, 0, len(rates))
	for _, r := range rates {
		if r.IsActive && r.ApplicableTo.Covers(scope) && r.ValidOn(on) {
			candidates = append(candidates, r)
		}
	}
	rate, ok := model.LowestContaining(candidates, total)
	if !ok {
		return nil, false
	}
	return &rate, true
}

// Compute applies the rate's formula to total. An unknown commission type
// yields zero; rates are validated on save.
func Compute(rate model.CommissionRate, total decimal.Decimal) decimal.Decimal {
	switch rate.CommissionType {
	case model.CommissionFixed:
		return model.Money(rate.FixedAmount)
	case model.CommissionPercentage:
		return model.ApplyRate(total, rate.PercentageRate)
	case model.CommissionTiered:
		return model.Money(rate.FixedAmount).Add(model.ApplyRate(total, rate.PercentageRate))
	default:
		return decimal.Zero
	}
}
