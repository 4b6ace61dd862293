package targets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ovenline/sales-targets/model"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// MONTHLY TARGET MANAGER
// =============================================================================

// Manager is CRUD over monthly targets. A target starts as draft and turns
// active when its allocations are generated.
type Manager struct {
	Store model.TxStore
	Log   logrus.FieldLogger
	Now   func() time.Time
}

func NewManager(store model.TxStore, log logrus.FieldLogger) *Manager {
	return &Manager{Store: store, Log: model.LoggerOrDiscard(log), Now: model.ClockOrNow(nil)}
}

type TargetInput struct {
	BranchID     model.BranchID  `validate:"required"`
	YearMonth    string          `validate:"required"`
	TargetAmount decimal.Decimal `validate:"gt=0"`
	ProfileID    model.ProfileID
	Notes        string
	CreatedBy    string
}

// TargetUpdate changes amount and/or profile. Allocations are not touched;
// regenerate them to apply the change.
type TargetUpdate struct {
	TargetAmount *decimal.Decimal
	ProfileID    *model.ProfileID
	Notes        *string
}

func (m *Manager) Create(ctx context.Context, in TargetInput) (*model.MonthlyTarget, error) {
	if err := model.Validate(in); err != nil {
		return nil, err
	}
	ym, err := model.ParseYearMonth(in.YearMonth)
	if err != nil {
		return nil, err
	}

	now := m.Now()
	t := model.MonthlyTarget{
		ID:           model.TargetID(uuid.NewString()),
		BranchID:     in.BranchID,
		YearMonth:    ym,
		TargetAmount: model.Money(in.TargetAmount),
		ProfileID:    in.ProfileID,
		Status:       model.TargetDraft,
		Notes:        in.Notes,
		CreatedBy:    in.CreatedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = m.Store.WithTx(ctx, func(tx model.Store) error {
		existing, err := tx.FindTarget(ctx, t.BranchID, t.YearMonth)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("target for branch %s in %s: %w", t.BranchID, ym, model.ErrDuplicate)
		}
		if t.ProfileID != "" {
			p, err := tx.GetProfile(ctx, t.ProfileID)
			if err != nil {
				return err
			}
			if p == nil {
				return &model.NotFoundError{Kind: "weight profile", ID: string(t.ProfileID)}
			}
		}
		return tx.SaveTarget(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	m.Log.WithFields(logrus.Fields{
		"target_id": t.ID, "branch_id": t.BranchID, "year_month": ym.String(),
	}).Info("monthly target created")
	return &t, nil
}

func (m *Manager) Update(ctx context.Context, id model.TargetID, upd TargetUpdate) (*model.MonthlyTarget, error) {
	if upd.TargetAmount != nil && !upd.TargetAmount.IsPositive() {
		return nil, &model.InputError{Field: "targetAmount", Reason: "must be greater than 0"}
	}

	var out model.MonthlyTarget
	err := m.Store.WithTx(ctx, func(tx model.Store) error {
		t, err := tx.GetTarget(ctx, id)
		if err != nil {
			return err
		}
		if t == nil {
			return &model.NotFoundError{Kind: "monthly target", ID: string(id)}
		}
		if upd.TargetAmount != nil {
			t.TargetAmount = model.Money(*upd.TargetAmount)
		}
		if upd.ProfileID != nil {
			t.ProfileID = *upd.ProfileID
		}
		if upd.Notes != nil {
			t.Notes = *upd.Notes
		}
		t.UpdatedAt = m.Now()
		out = *t
		return tx.SaveTarget(ctx, *t)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *Manager) Get(ctx context.Context, id model.TargetID) (*model.MonthlyTarget, error) {
	t, err := m.Store.GetTarget(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, &model.NotFoundError{Kind: "monthly target", ID: string(id)}
	}
	return t, nil
}

// Find returns the branch's target for the month, or nil when none exists.
func (m *Manager) Find(ctx context.Context, branchID model.BranchID, ym model.YearMonth) (*model.MonthlyTarget, error) {
	return m.Store.FindTarget(ctx, branchID, ym)
}

func (m *Manager) List(ctx context.Context, ym model.YearMonth) ([]model.MonthlyTarget, error) {
	return m.Store.ListTargets(ctx, ym)
}

// Delete removes the target together with its allocations.
func (m *Manager) Delete(ctx context.Context, id model.TargetID) error {
	if _, err := m.Get(ctx, id); err != nil {
		return err
	}
	if err := m.Store.DeleteTarget(ctx, id); err != nil {
		return err
	}
	m.Log.WithField("target_id", id).Info("monthly target deleted")
	return nil
}

// IsDuplicate reports whether err is a (branch, month) uniqueness violation.
func IsDuplicate(err error) bool { return errors.Is(err, model.ErrDuplicate) }
