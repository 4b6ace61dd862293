package sales

import (
	"context"
	"sort"
	"sync"

	"github.com/ovenline/sales-targets/model"
)

// Memory is an in-memory Adapter and Directory.
type Memory struct {
	mu       sync.RWMutex
	facts    []model.SalesFact
	branches map[model.BranchID]model.Branch
	cashiers map[model.CashierID]model.Cashier
}

func NewMemory() *Memory {
	return &Memory{
		branches: make(map[model.BranchID]model.Branch),
		cashiers: make(map[model.CashierID]model.Cashier),
	}
}

// AddFacts records facts; a fact with an existing id replaces the old one.
func (m *Memory) AddFacts(facts ...model.SalesFact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range facts {
		replaced := false
		for i := range m.facts {
			if m.facts[i].ID == f.ID {
				m.facts[i] = f
				replaced = true
				break
			}
		}
		if !replaced {
			m.facts = append(m.facts, f)
		}
	}
}

func (m *Memory) AddBranch(b model.Branch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.branches[b.ID] = b
}

func (m *Memory) AddCashier(c model.Cashier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cashiers[c.ID] = c
}

func (m *Memory) Facts(_ context.Context, q Query) ([]model.SalesFact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.SalesFact
	for _, f := range m.facts {
		if q.Matches(f) {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *Memory) ListBranches(_ context.Context) ([]model.Branch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Branch, 0, len(m.branches))
	for _, b := range m.branches {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetBranch(_ context.Context, id model.BranchID) (*model.Branch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.branches[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *Memory) ListCashiers(_ context.Context, branchID model.BranchID) ([]model.Cashier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Cashier
	for _, c := range m.cashiers {
		if branchID == "" || c.BranchID == branchID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetCashier(_ context.Context, id model.CashierID) (*model.Cashier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cashiers[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

var (
	_ Adapter   = (*Memory)(nil)
	_ Directory = (*Memory)(nil)
)
