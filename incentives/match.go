/*
Package incentives turns monthly achievement into reward awards.

PURPOSE:
  An incentive tier is an achievement-percent bracket [min, max) mapped to a
  reward formula. The matcher selects the tier for a branch's or cashier's
  achievement percent, computes the reward and records it as an award that
  moves through pending -> approved -> paid.

TIER SELECTION:
  Candidates are active tiers whose scope is "all" or the subject's scope and
  whose bracket contains the percent. Tiers may overlap; the candidate with
  the HIGHEST minimum wins. A percent exactly on a tier's minimum selects that
  tier. No candidate means no reward, not an error. The percent must be the
  exact ratio: 99.999% is below a 100% minimum even though it displays as
  100.00.

REWARD FORMULAS:
  excess = max(0, achieved - target)

  fixed:      fixedAmount
  percentage: excess * rate / 100
  both:       fixedAmount + excess * rate / 100

SEE ALSO:
  - model/bracket.go: Half-open bracket lookup
  - model/lifecycle.go: Payout transitions
*/
package incentives

import (
	"github.com/ovenline/sales-targets/model"
	"github.com/shopspring/decimal"
)

// =============================================================================
// MATCHING
// =============================================================================

// Match returns the tier that applies to percent for a subject of scope.
func Match(tiers []model.IncentiveTier, percent decimal.Decimal, scope model.Scope) (*model.IncentiveTier, bool) {
	candidates := make([]model.IncentiveTier, 0, len(tiers))
	for _, t := range tiers {
		if t.IsActive && t.ApplicableTo.Covers(scope) {
			candidates = append(candidates, t)
		}
	}
	best, ok := model.HighestContaining(candidates, percent)
	if !ok {
		return nil, false
	}
	return &best, true
}

// Excess is achieved sales beyond target, never negative.
func Excess(target, achieved decimal.Decimal) decimal.Decimal {
	if achieved.GreaterThan(target) {
		return achieved.Sub(target)
	}
	return decimal.Zero
}

// Reward computes the tier's reward. An unknown reward type yields zero;
// tiers are validated on save so stored tiers never carry one.
func Reward(tier model.IncentiveTier, target, achieved decimal.Decimal) decimal.Decimal {
	excess := Excess(target, achieved)
	switch tier.RewardType {
	case model.RewardFixed:
		return model.Money(tier.FixedAmount)
	case model.RewardPercentage:
		return model.ApplyRate(excess, tier.PercentageRate)
	case model.RewardBoth:
		return model.Money(tier.FixedAmount).Add(model.ApplyRate(excess, tier.PercentageRate))
	default:
		return decimal.Zero
	}
}
