package targets

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ovenline/sales-targets/model"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// REGENERATION MODE
// =============================================================================

// RegenerateMode decides what happens to manual overrides when a target's
// allocations are generated again.
type RegenerateMode string

const (
	// RegenerateReplace deletes every prior allocation, overrides included.
	RegenerateReplace RegenerateMode = "replace"

	// RegeneratePreserveOverrides keeps the daily target, holiday flag and
	// reason of rows flagged IsManualOverride. Other days share the rest of
	// the target amount.
	RegeneratePreserveOverrides RegenerateMode = "preserve_overrides"
)

func ParseRegenerateMode(s string) (RegenerateMode, error) {
	switch RegenerateMode(s) {
	case "", RegenerateReplace:
		return RegenerateReplace, nil
	case RegeneratePreserveOverrides:
		return RegeneratePreserveOverrides, nil
	}
	return "", &model.InputError{Field: "mode", Reason: fmt.Sprintf("unknown regenerate mode %q", s)}
}

// =============================================================================
// ALLOCATION ALGORITHM
// =============================================================================

const weightPlaces = 4

var hundred = decimal.NewFromInt(100)

// Allocate spreads t.TargetAmount over every day of t.YearMonth in proportion
// to the profile's weekday weights.
//
// weightPercent is rounded to 4 dp and dailyTarget to cents. The rounding
// residual of each column is added to the last day with a non-zero weight, so
// a fresh set sums to exactly 100 and exactly TargetAmount.
//
// existing is consulted only in RegeneratePreserveOverrides mode: an existing
// override row keeps its id, daily target, holiday flag and reason while its
// weightPercent is refreshed. The rest of the amount (TargetAmount minus the
// kept daily targets) is spread over the other days by weight, so the month
// still sums to TargetAmount. It cannot when the kept rows alone reach the
// amount (the other days get zero) or when every weighted day is overridden.
// Returned rows carry t.AllocationVersion and have no id unless one was
// preserved.
func Allocate(t model.MonthlyTarget, p model.WeightProfile, existing []model.DailyAllocation, mode RegenerateMode) ([]model.DailyAllocation, error) {
	days := t.YearMonth.Range().Days()

	raw := make([]decimal.Decimal, len(days))
	total := decimal.Zero
	last := -1
	for i, d := range days {
		raw[i] = p.WeightFor(d.Weekday())
		total = total.Add(raw[i])
		if raw[i].IsPositive() {
			last = i
		}
	}
	if !total.IsPositive() {
		return nil, &model.DegenerateProfileError{ProfileID: p.ID, YearMonth: t.YearMonth}
	}

	var kept map[string]model.DailyAllocation
	if mode == RegeneratePreserveOverrides {
		kept = make(map[string]model.DailyAllocation)
		for _, a := range existing {
			if a.IsManualOverride {
				kept[a.TargetDate.String()] = a
			}
		}
	}

	// amount is split across the non-override days by weight; free is their weight total.
	amount, free := t.TargetAmount, decimal.Zero
	lastFree := -1
	for i, d := range days {
		if prev, ok := kept[d.String()]; ok {
			amount = amount.Sub(prev.DailyTarget)
			continue
		}
		free = free.Add(raw[i])
		if raw[i].IsPositive() {
			lastFree = i
		}
	}
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	out := make([]model.DailyAllocation, len(days))
	sumWeight, sumDaily := decimal.Zero, decimal.Zero
	for i, d := range days {
		wp := raw[i].Mul(hundred).Div(total).Round(weightPlaces)
		sumWeight = sumWeight.Add(wp)
		out[i] = model.DailyAllocation{
			TargetID:      t.ID,
			TargetDate:    d,
			WeightPercent: wp,
			DailyTarget:   decimal.Zero,
			Version:       t.AllocationVersion,
		}
		if prev, ok := kept[d.String()]; ok {
			out[i].ID = prev.ID
			out[i].DailyTarget = prev.DailyTarget
			out[i].IsHoliday = prev.IsHoliday
			out[i].IsManualOverride = true
			out[i].OverrideReason = prev.OverrideReason
			continue
		}
		if free.IsPositive() {
			dt := model.Money(amount.Mul(raw[i]).Div(free))
			out[i].DailyTarget = dt
			sumDaily = sumDaily.Add(dt)
		}
	}
	out[last].WeightPercent = out[last].WeightPercent.Add(hundred.Sub(sumWeight))
	if lastFree >= 0 {
		out[lastFree].DailyTarget = out[lastFree].DailyTarget.Add(model.Money(amount).Sub(sumDaily))
	}
	return out, nil
}

// Totals sums weightPercent and dailyTarget over a set of allocations.
func Totals(allocations []model.DailyAllocation) (weight, daily decimal.Decimal) {
	for _, a := range allocations {
		weight = weight.Add(a.WeightPercent)
		daily = daily.Add(a.DailyTarget)
	}
	return weight, daily
}

// =============================================================================
// GENERATOR
// =============================================================================

// Generator persists allocations for a target. Regeneration runs in one store
// transaction: the target's AllocationVersion is bumped, the allocation set is
// swapped and the target is marked active together, so a reader sees either
// the old complete set or the new complete set.
type Generator struct {
	Store model.TxStore
	Mode  RegenerateMode
	Log   logrus.FieldLogger
	Now   func() time.Time
}

func NewGenerator(store model.TxStore, mode RegenerateMode, log logrus.FieldLogger) *Generator {
	if mode == "" {
		mode = RegenerateReplace
	}
	return &Generator{Store: store, Mode: mode, Log: model.LoggerOrDiscard(log), Now: model.ClockOrNow(nil)}
}

// Generate regenerates the target's allocations using the generator's mode.
func (g *Generator) Generate(ctx context.Context, id model.TargetID) ([]model.DailyAllocation, error) {
	return g.Regenerate(ctx, id, g.Mode)
}

// Regenerate is Generate with an explicit mode.
func (g *Generator) Regenerate(ctx context.Context, id model.TargetID, mode RegenerateMode) ([]model.DailyAllocation, error) {
	var (
		out     []model.DailyAllocation
		target  model.MonthlyTarget
		profile *model.WeightProfile
	)
	err := g.Store.WithTx(ctx, func(tx model.Store) error {
		t, err := tx.GetTarget(ctx, id)
		if err != nil {
			return err
		}
		if t == nil {
			return &model.NotFoundError{Kind: "monthly target", ID: string(id)}
		}
		profile, err = resolveProfile(ctx, tx, *t)
		if err != nil {
			return err
		}

		var existing []model.DailyAllocation
		if mode == RegeneratePreserveOverrides {
			if existing, err = tx.ListAllocations(ctx, t.ID); err != nil {
				return err
			}
		}

		now := g.Now()
		t.AllocationVersion++
		out, err = Allocate(*t, *profile, existing, mode)
		if err != nil {
			return err
		}
		for i := range out {
			if out[i].ID == "" {
				out[i].ID = model.AllocationID(uuid.NewString())
			}
			out[i].UpdatedAt = now
		}
		if err := tx.ReplaceAllocations(ctx, t.ID, out); err != nil {
			return err
		}

		t.Status = model.TargetActive
		t.UpdatedAt = now
		target = *t
		return tx.SaveTarget(ctx, *t)
	})
	if err != nil {
		if model.IsConfigError(err) {
			g.Log.WithError(err).WithField("target_id", id).Warn("allocation generation rejected")
		}
		return nil, err
	}

	g.Log.WithFields(logrus.Fields{
		"target_id":  target.ID,
		"branch_id":  target.BranchID,
		"year_month": target.YearMonth.String(),
		"profile_id": profile.ID,
		"version":    target.AllocationVersion,
		"mode":       mode,
		"days":       len(out),
	}).Info("daily allocations generated")
	return out, nil
}

// =============================================================================
// OVERRIDE
// =============================================================================

// OverrideInput edits one allocation. Nil fields are left unchanged.
type OverrideInput struct {
	AllocationID model.AllocationID `validate:"required"`
	DailyTarget  *decimal.Decimal
	IsHoliday    *bool
	Reason       string
}

// Override applies a manual edit. The row is always flagged IsManualOverride,
// even when no value changes. Sibling days are not renormalized, so the
// month's daily targets may no longer sum to the target amount.
func (g *Generator) Override(ctx context.Context, in OverrideInput) (*model.DailyAllocation, error) {
	if err := model.Validate(in); err != nil {
		return nil, err
	}
	if in.DailyTarget != nil && in.DailyTarget.IsNegative() {
		return nil, &model.InputError{Field: "dailyTarget", Reason: "must be at least 0"}
	}

	var out model.DailyAllocation
	err := g.Store.WithTx(ctx, func(tx model.Store) error {
		a, err := tx.GetAllocation(ctx, in.AllocationID)
		if err != nil {
			return err
		}
		if a == nil {
			return &model.NotFoundError{Kind: "daily allocation", ID: string(in.AllocationID)}
		}
		if in.DailyTarget != nil {
			a.DailyTarget = model.Money(*in.DailyTarget)
		}
		if in.IsHoliday != nil {
			a.IsHoliday = *in.IsHoliday
		}
		a.IsManualOverride = true
		a.OverrideReason = in.Reason
		a.UpdatedAt = g.Now()
		out = *a
		return tx.SaveAllocation(ctx, *a)
	})
	if err != nil {
		return nil, err
	}

	g.Log.WithFields(logrus.Fields{
		"allocation_id": out.ID,
		"target_id":     out.TargetID,
		"date":          out.TargetDate.String(),
	}).Info("daily allocation overridden")
	return &out, nil
}

// List returns a target's allocations ordered by date.
func (g *Generator) List(ctx context.Context, id model.TargetID) ([]model.DailyAllocation, error) {
	return g.Store.ListAllocations(ctx, id)
}
