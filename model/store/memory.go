// Package store provides the in-memory model.TxStore.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/ovenline/sales-targets/model"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex
	state
}

type state struct {
	profiles     map[model.ProfileID]model.WeightProfile
	targets      map[model.TargetID]model.MonthlyTarget
	allocations  map[model.TargetID][]model.DailyAllocation
	tiers        map[model.TierID]model.IncentiveTier
	rates        map[model.RateID]model.CommissionRate
	awards       map[model.AwardID]model.IncentiveAward
	calculations map[model.CalculationID]model.CommissionCalculation
	snapshots    map[snapshotKey]model.BranchDailySales
}

type snapshotKey struct {
	BranchID model.BranchID
	Date     string
}

func newState() state {
	return state{
		profiles:     make(map[model.ProfileID]model.WeightProfile),
		targets:      make(map[model.TargetID]model.MonthlyTarget),
		allocations:  make(map[model.TargetID][]model.DailyAllocation),
		tiers:        make(map[model.TierID]model.IncentiveTier),
		rates:        make(map[model.RateID]model.CommissionRate),
		awards:       make(map[model.AwardID]model.IncentiveAward),
		calculations: make(map[model.CalculationID]model.CommissionCalculation),
		snapshots:    make(map[snapshotKey]model.BranchDailySales),
	}
}

func NewMemory() *Memory {
	return &Memory{state: newState()}
}

// clone deep-copies every map so a failed WithTx can roll back.
func (s *state) clone() state {
	c := newState()
	for k, v := range s.profiles {
		c.profiles[k] = v
	}
	for k, v := range s.targets {
		c.targets[k] = v
	}
	for k, v := range s.allocations {
		c.allocations[k] = append([]model.DailyAllocation(nil), v...)
	}
	for k, v := range s.tiers {
		c.tiers[k] = v
	}
	for k, v := range s.rates {
		c.rates[k] = v
	}
	for k, v := range s.awards {
		c.awards[k] = v
	}
	for k, v := range s.calculations {
		c.calculations[k] = v
	}
	for k, v := range s.snapshots {
		c.snapshots[k] = v
	}
	return c
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn while holding the write lock.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(model.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	if err := fn(&txView{s: &m.state}); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

// txView runs the same operations against the locked state without re-locking.
type txView struct {
	s *state
}

// read and write run fn under the matching lock.
func (m *Memory) read(fn func(v *txView)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn(&txView{s: &m.state})
}

func (m *Memory) write(fn func(v *txView) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&txView{s: &m.state})
}

// =============================================================================
// PROFILES
// =============================================================================

func (v *txView) SaveProfile(_ context.Context, p model.WeightProfile) error {
	v.s.profiles[p.ID] = p
	return nil
}

func (v *txView) GetProfile(_ context.Context, id model.ProfileID) (*model.WeightProfile, error) {
	p, ok := v.s.profiles[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (v *txView) GetDefaultProfile(_ context.Context) (*model.WeightProfile, error) {
	for _, p := range v.s.profiles {
		if p.IsDefault {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (v *txView) ListProfiles(_ context.Context) ([]model.WeightProfile, error) {
	out := make([]model.WeightProfile, 0, len(v.s.profiles))
	for _, p := range v.s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (v *txView) ClearDefaultProfile(_ context.Context) error {
	for id, p := range v.s.profiles {
		p.IsDefault = false
		v.s.profiles[id] = p
	}
	return nil
}

// =============================================================================
// TIERS AND RATES
// =============================================================================

func (v *txView) SaveTier(_ context.Context, t model.IncentiveTier) error {
	v.s.tiers[t.ID] = t
	return nil
}

func (v *txView) GetTier(_ context.Context, id model.TierID) (*model.IncentiveTier, error) {
	t, ok := v.s.tiers[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (v *txView) ListTiers(_ context.Context) ([]model.IncentiveTier, error) {
	out := make([]model.IncentiveTier, 0, len(v.s.tiers))
	for _, t := range v.s.tiers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v *txView) DeleteTier(_ context.Context, id model.TierID) error {
	delete(v.s.tiers, id)
	return nil
}

func (v *txView) SaveRate(_ context.Context, r model.CommissionRate) error {
	v.s.rates[r.ID] = r
	return nil
}

func (v *txView) GetRate(_ context.Context, id model.RateID) (*model.CommissionRate, error) {
	r, ok := v.s.rates[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (v *txView) ListRates(_ context.Context) ([]model.CommissionRate, error) {
	out := make([]model.CommissionRate, 0, len(v.s.rates))
	for _, r := range v.s.rates {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].MinSalesAmount.Equal(out[j].MinSalesAmount) {
			return out[i].MinSalesAmount.LessThan(out[j].MinSalesAmount)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v *txView) DeleteRate(_ context.Context, id model.RateID) error {
	delete(v.s.rates, id)
	return nil
}

// =============================================================================
// TARGETS AND ALLOCATIONS
// =============================================================================

func (v *txView) SaveTarget(_ context.Context, t model.MonthlyTarget) error {
	for _, existing := range v.s.targets {
		if existing.ID != t.ID && existing.BranchID == t.BranchID && existing.YearMonth == t.YearMonth {
			return model.ErrDuplicate
		}
	}
	v.s.targets[t.ID] = t
	return nil
}

func (v *txView) GetTarget(_ context.Context, id model.TargetID) (*model.MonthlyTarget, error) {
	t, ok := v.s.targets[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (v *txView) FindTarget(_ context.Context, branchID model.BranchID, ym model.YearMonth) (*model.MonthlyTarget, error) {
	for _, t := range v.s.targets {
		if t.BranchID == branchID && t.YearMonth == ym {
			t := t
			return &t, nil
		}
	}
	return nil, nil
}

func (v *txView) ListTargets(_ context.Context, ym model.YearMonth) ([]model.MonthlyTarget, error) {
	var out []model.MonthlyTarget
	for _, t := range v.s.targets {
		if t.YearMonth == ym {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BranchID < out[j].BranchID })
	return out, nil
}

func (v *txView) DeleteTarget(_ context.Context, id model.TargetID) error {
	delete(v.s.targets, id)
	delete(v.s.allocations, id)
	return nil
}

func (v *txView) ListAllocations(_ context.Context, targetID model.TargetID) ([]model.DailyAllocation, error) {
	out := append([]model.DailyAllocation(nil), v.s.allocations[targetID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].TargetDate.Before(out[j].TargetDate) })
	return out, nil
}

func (v *txView) GetAllocation(_ context.Context, id model.AllocationID) (*model.DailyAllocation, error) {
	for _, list := range v.s.allocations {
		for _, a := range list {
			if a.ID == id {
				a := a
				return &a, nil
			}
		}
	}
	return nil, nil
}

func (v *txView) SaveAllocation(_ context.Context, a model.DailyAllocation) error {
	list := v.s.allocations[a.TargetID]
	for i := range list {
		if list[i].ID == a.ID {
			list[i] = a
			return nil
		}
	}
	v.s.allocations[a.TargetID] = append(list, a)
	return nil
}

func (v *txView) ReplaceAllocations(_ context.Context, targetID model.TargetID, allocations []model.DailyAllocation) error {
	v.s.allocations[targetID] = append([]model.DailyAllocation(nil), allocations...)
	return nil
}

// =============================================================================
// AWARDS AND COMMISSION CALCULATIONS
// =============================================================================

func (v *txView) SaveAward(_ context.Context, a model.IncentiveAward) error {
	v.s.awards[a.ID] = a
	return nil
}

func (v *txView) GetAward(_ context.Context, id model.AwardID) (*model.IncentiveAward, error) {
	a, ok := v.s.awards[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (v *txView) ListAwards(_ context.Context, f model.AwardFilter) ([]model.IncentiveAward, error) {
	var out []model.IncentiveAward
	for _, a := range v.s.awards {
		if f.BranchID != "" && a.BranchID != f.BranchID {
			continue
		}
		if f.CashierID != "" && a.CashierID != f.CashierID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.Period != nil && !f.Period.Contains(a.Period.From) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (v *txView) SaveCalculation(_ context.Context, c model.CommissionCalculation) error {
	v.s.calculations[c.ID] = c
	return nil
}

func (v *txView) GetCalculation(_ context.Context, id model.CalculationID) (*model.CommissionCalculation, error) {
	c, ok := v.s.calculations[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (v *txView) ListCalculations(_ context.Context, f model.CalculationFilter) ([]model.CommissionCalculation, error) {
	var out []model.CommissionCalculation
	for _, c := range v.s.calculations {
		if f.BranchID != "" && c.BranchID != f.BranchID {
			continue
		}
		if f.CashierID != "" && c.CashierID != f.CashierID {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.Period != nil && !f.Period.Contains(c.Period.From) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

func (v *txView) UpsertSnapshot(_ context.Context, s model.BranchDailySales) error {
	v.s.snapshots[snapshotKey{BranchID: s.BranchID, Date: s.SalesDate.String()}] = s
	return nil
}

func (v *txView) GetSnapshot(_ context.Context, branchID model.BranchID, date model.Date) (*model.BranchDailySales, error) {
	s, ok := v.s.snapshots[snapshotKey{BranchID: branchID, Date: date.String()}]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (v *txView) ListSnapshots(_ context.Context, branchID model.BranchID, r model.DateRange) ([]model.BranchDailySales, error) {
	var out []model.BranchDailySales
	for k, s := range v.s.snapshots {
		if k.BranchID == branchID && r.Contains(s.SalesDate) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SalesDate.Before(out[j].SalesDate) })
	return out, nil
}

var _ model.Store = (*txView)(nil)

// =============================================================================
// LOCKED ENTRY POINTS
// =============================================================================

func (m *Memory) SaveProfile(ctx context.Context, p model.WeightProfile) error {
	return m.write(func(v *txView) error { return v.SaveProfile(ctx, p) })
}

func (m *Memory) GetProfile(ctx context.Context, id model.ProfileID) (p *model.WeightProfile, err error) {
	m.read(func(v *txView) { p, err = v.GetProfile(ctx, id) })
	return
}

func (m *Memory) GetDefaultProfile(ctx context.Context) (p *model.WeightProfile, err error) {
	m.read(func(v *txView) { p, err = v.GetDefaultProfile(ctx) })
	return
}

func (m *Memory) ListProfiles(ctx context.Context) (out []model.WeightProfile, err error) {
	m.read(func(v *txView) { out, err = v.ListProfiles(ctx) })
	return
}

func (m *Memory) ClearDefaultProfile(ctx context.Context) error {
	return m.write(func(v *txView) error { return v.ClearDefaultProfile(ctx) })
}

func (m *Memory) SaveTier(ctx context.Context, t model.IncentiveTier) error {
	return m.write(func(v *txView) error { return v.SaveTier(ctx, t) })
}

func (m *Memory) GetTier(ctx context.Context, id model.TierID) (t *model.IncentiveTier, err error) {
	m.read(func(v *txView) { t, err = v.GetTier(ctx, id) })
	return
}

func (m *Memory) ListTiers(ctx context.Context) (out []model.IncentiveTier, err error) {
	m.read(func(v *txView) { out, err = v.ListTiers(ctx) })
	return
}

func (m *Memory) DeleteTier(ctx context.Context, id model.TierID) error {
	return m.write(func(v *txView) error { return v.DeleteTier(ctx, id) })
}

func (m *Memory) SaveRate(ctx context.Context, r model.CommissionRate) error {
	return m.write(func(v *txView) error { return v.SaveRate(ctx, r) })
}

func (m *Memory) GetRate(ctx context.Context, id model.RateID) (r *model.CommissionRate, err error) {
	m.read(func(v *txView) { r, err = v.GetRate(ctx, id) })
	return
}

func (m *Memory) ListRates(ctx context.Context) (out []model.CommissionRate, err error) {
	m.read(func(v *txView) { out, err = v.ListRates(ctx) })
	return
}

func (m *Memory) DeleteRate(ctx context.Context, id model.RateID) error {
	return m.write(func(v *txView) error { return v.DeleteRate(ctx, id) })
}

func (m *Memory) SaveTarget(ctx context.Context, t model.MonthlyTarget) error {
	return m.write(func(v *txView) error { return v.SaveTarget(ctx, t) })
}

func (m *Memory) GetTarget(ctx context.Context, id model.TargetID) (t *model.MonthlyTarget, err error) {
	m.read(func(v *txView) { t, err = v.GetTarget(ctx, id) })
	return
}

func (m *Memory) FindTarget(ctx context.Context, branchID model.BranchID, ym model.YearMonth) (t *model.MonthlyTarget, err error) {
	m.read(func(v *txView) { t, err = v.FindTarget(ctx, branchID, ym) })
	return
}

func (m *Memory) ListTargets(ctx context.Context, ym model.YearMonth) (out []model.MonthlyTarget, err error) {
	m.read(func(v *txView) { out, err = v.ListTargets(ctx, ym) })
	return
}

func (m *Memory) DeleteTarget(ctx context.Context, id model.TargetID) error {
	return m.write(func(v *txView) error { return v.DeleteTarget(ctx, id) })
}

func (m *Memory) ListAllocations(ctx context.Context, targetID model.TargetID) (out []model.DailyAllocation, err error) {
	m.read(func(v *txView) { out, err = v.ListAllocations(ctx, targetID) })
	return
}

func (m *Memory) GetAllocation(ctx context.Context, id model.AllocationID) (a *model.DailyAllocation, err error) {
	m.read(func(v *txView) { a, err = v.GetAllocation(ctx, id) })
	return
}

func (m *Memory) SaveAllocation(ctx context.Context, a model.DailyAllocation) error {
	return m.write(func(v *txView) error { return v.SaveAllocation(ctx, a) })
}

func (m *Memory) ReplaceAllocations(ctx context.Context, targetID model.TargetID, allocations []model.DailyAllocation) error {
	return m.write(func(v *txView) error { return v.ReplaceAllocations(ctx, targetID, allocations) })
}

func (m *Memory) SaveAward(ctx context.Context, a model.IncentiveAward) error {
	return m.write(func(v *txView) error { return v.SaveAward(ctx, a) })
}

func (m *Memory) GetAward(ctx context.Context, id model.AwardID) (a *model.IncentiveAward, err error) {
	m.read(func(v *txView) { a, err = v.GetAward(ctx, id) })
	return
}

func (m *Memory) ListAwards(ctx context.Context, f model.AwardFilter) (out []model.IncentiveAward, err error) {
	m.read(func(v *txView) { out, err = v.ListAwards(ctx, f) })
	return
}

func (m *Memory) SaveCalculation(ctx context.Context, c model.CommissionCalculation) error {
	return m.write(func(v *txView) error { return v.SaveCalculation(ctx, c) })
}

func (m *Memory) GetCalculation(ctx context.Context, id model.CalculationID) (c *model.CommissionCalculation, err error) {
	m.read(func(v *txView) { c, err = v.GetCalculation(ctx, id) })
	return
}

func (m *Memory) ListCalculations(ctx context.Context, f model.CalculationFilter) (out []model.CommissionCalculation, err error) {
	m.read(func(v *txView) { out, err = v.ListCalculations(ctx, f) })
	return
}

func (m *Memory) UpsertSnapshot(ctx context.Context, s model.BranchDailySales) error {
	return m.write(func(v *txView) error { return v.UpsertSnapshot(ctx, s) })
}

func (m *Memory) GetSnapshot(ctx context.Context, branchID model.BranchID, date model.Date) (s *model.BranchDailySales, err error) {
	m.read(func(v *txView) { s, err = v.GetSnapshot(ctx, branchID, date) })
	return
}

func (m *Memory) ListSnapshots(ctx context.Context, branchID model.BranchID, r model.DateRange) (out []model.BranchDailySales, err error) {
	m.read(func(v *txView) { out, err = v.ListSnapshots(ctx, branchID, r) })
	return
}

var _ model.TxStore = (*Memory)(nil)
