package commission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ovenline/sales-targets/model"
	"github.com/ovenline/sales-targets/sales"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Service struct {
	Store     model.TxStore
	Sales     sales.Adapter
	Directory sales.Directory
	Log       logrus.FieldLogger
	Now       func() time.Time
}

func NewService(store model.TxStore, facts sales.Adapter, dir sales.Directory, log logrus.FieldLogger) *Service {
	return &Service{
		Store:     store,
		Sales:     facts,
		Directory: dir,
		Log:       model.LoggerOrDiscard(log),
		Now:       model.ClockOrNow(nil),
	}
}

// =============================================================================
// RATES
// =============================================================================

type RateInput struct {
	ID             model.RateID    // empty gets a generated id
	Name           string          `validate:"required"`
	MinSalesAmount decimal.Decimal `validate:"gte=0"`
	MaxSalesAmount *decimal.Decimal
	CommissionType model.CommissionType `validate:"required,oneof=fixed percentage tiered"`
	FixedAmount    decimal.Decimal      `validate:"gte=0"`
	PercentageRate decimal.Decimal      `validate:"gte=0"`
	ApplicableTo   model.Scope          `validate:"required,oneof=all branch cashier"`
	ValidFrom      *model.Date
	ValidTo        *model.Date
	IsActive       bool
}

func (in RateInput) validate() error {
	if err := model.Validate(in); err != nil {
		return err
	}
	if in.MaxSalesAmount != nil && !in.MaxSalesAmount.GreaterThan(in.MinSalesAmount) {
		return &model.InputError{Field: "maxSalesAmount", Reason: "must be greater than minSalesAmount"}
	}
	if in.ValidFrom != nil && in.ValidTo != nil && in.ValidTo.Before(*in.ValidFrom) {
		return &model.InputError{Field: "validTo", Reason: "must not be before validFrom"}
	}
	return nil
}

func (in RateInput) rate(id model.RateID) model.CommissionRate {
	return model.CommissionRate{
		ID:             id,
		Name:           in.Name,
		MinSalesAmount: in.MinSalesAmount,
		MaxSalesAmount: in.MaxSalesAmount,
		CommissionType: in.CommissionType,
		FixedAmount:    in.FixedAmount,
		PercentageRate: in.PercentageRate,
		ApplicableTo:   in.ApplicableTo,
		ValidFrom:      in.ValidFrom,
		ValidTo:        in.ValidTo,
		IsActive:       in.IsActive,
	}
}

func (s *Service) CreateRate(ctx context.Context, in RateInput) (*model.CommissionRate, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	id := in.ID
	if id == "" {
		id = model.RateID(uuid.NewString())
	}
	r := in.rate(id)
	if err := s.Store.SaveRate(ctx, r); err != nil {
		return nil, fmt.Errorf("save rate: %w", err)
	}
	return &r, nil
}

func (s *Service) UpdateRate(ctx context.Context, id model.RateID, in RateInput) (*model.CommissionRate, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	existing, err := s.Store.GetRate(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, &model.NotFoundError{Kind: "commission rate", ID: string(id)}
	}
	r := in.rate(id)
	if err := s.Store.SaveRate(ctx, r); err != nil {
		return nil, fmt.Errorf("save rate: %w", err)
	}
	return &r, nil
}

func (s *Service) ListRates(ctx context.Context) ([]model.CommissionRate, error) {
	return s.Store.ListRates(ctx)
}

func (s *Service) DeleteRate(ctx context.Context, id model.RateID) error {
	return s.Store.DeleteRate(ctx, id)
}

// =============================================================================
// CALCULATION
// =============================================================================

// CalculateCashier computes and records a cashier's commission for period.
func (s *Service) CalculateCashier(ctx context.Context, cashierID model.CashierID, period model.DateRange) (*model.CommissionCalculation, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	cashier, err := s.Directory.GetCashier(ctx, cashierID)
	if err != nil {
		return nil, err
	}
	if cashier == nil {
		return nil, &model.NotFoundError{Kind: "cashier", ID: string(cashierID)}
	}
	calc := model.CommissionCalculation{
		Scope:     model.ScopeCashier,
		CashierID: cashierID,
		BranchID:  cashier.BranchID,
		Period:    period,
	}
	return s.calculate(ctx, calc, sales.Query{CashierID: cashierID, Range: period})
}

// CalculateBranch computes and records a whole branch's commission for period.
func (s *Service) CalculateBranch(ctx context.Context, branchID model.BranchID, period model.DateRange) (*model.CommissionCalculation, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	branch, err := s.Directory.GetBranch(ctx, branchID)
	if err != nil {
		return nil, err
	}
	if branch == nil {
		return nil, &model.NotFoundError{Kind: "branch", ID: string(branchID)}
	}
	calc := model.CommissionCalculation{
		Scope:    model.ScopeBranch,
		BranchID: branchID,
		Period:   period,
	}
	return s.calculate(ctx, calc, sales.Query{BranchID: branchID, Range: period})
}

func (s *Service) calculate(ctx context.Context, c model.CommissionCalculation, q sales.Query) (*model.CommissionCalculation, error) {
	facts, err := sales.EligibleFacts(ctx, s.Sales, q)
	if err != nil {
		return nil, fmt.Errorf("load sales: %w", err)
	}
	total, ids := sales.Total(facts)

	rates, err := s.Store.ListRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rates: %w", err)
	}
	rate, ok := MatchRate(rates, total, c.Scope, c.Period.To)
	if !ok {
		err := &model.NoBracketError{Scope: c.Scope, TotalSales: total}
		s.Log.WithFields(logrus.Fields{
			"branch_id": c.BranchID, "cashier_id": c.CashierID, "total_sales": total.StringFixed(2),
		}).Warn(err.Error())
		return nil, err
	}

	achievement, err := s.branchAchievement(ctx, c.BranchID, c.Period, total)
	if err != nil {
		return nil, err
	}

	c.ID = model.CalculationID(uuid.NewString())
	c.TotalSales = model.Money(total)
	c.RateID = rate.ID
	c.CalculatedCommission = Compute(*rate, total)
	c.FinalCommission = c.CalculatedCommission
	c.AchievementPercent = achievement
	c.SourceFactIDs = ids
	c.Payout = model.NewPayout()
	c.CreatedAt = s.Now()

	if err := s.Store.SaveCalculation(ctx, c); err != nil {
		return nil, fmt.Errorf("save calculation: %w", err)
	}

	s.Log.WithFields(logrus.Fields{
		"calculation_id": c.ID,
		"scope":          c.Scope,
		"branch_id":      c.BranchID,
		"cashier_id":     c.CashierID,
		"total_sales":    c.TotalSales.StringFixed(2),
		"rate_id":        c.RateID,
		"commission":     c.CalculatedCommission.StringFixed(2),
	}).Info("commission calculated")
	return &c, nil
}

// branchAchievement relates total to the branch's target for the month the
// period starts in. Zero when the branch has no active target.
func (s *Service) branchAchievement(ctx context.Context, branchID model.BranchID, period model.DateRange, total decimal.Decimal) (decimal.Decimal, error) {
	t, err := s.Store.FindTarget(ctx, branchID, period.From.YearMonth())
	if err != nil {
		return decimal.Zero, fmt.Errorf("load target: %w", err)
	}
	if t == nil || t.Status != model.TargetActive {
		return decimal.Zero, nil
	}
	return model.Percent(total, t.TargetAmount), nil
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func (s *Service) Get(ctx context.Context, id model.CalculationID) (*model.CommissionCalculation, error) {
	c, err := s.Store.GetCalculation(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, &model.NotFoundError{Kind: "commission calculation", ID: string(id)}
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, f model.CalculationFilter) ([]model.CommissionCalculation, error) {
	return s.Store.ListCalculations(ctx, f)
}

// Adjust edits the final commission of a pending calculation.
func (s *Service) Adjust(ctx context.Context, id model.CalculationID, finalCommission decimal.Decimal) (*model.CommissionCalculation, error) {
	if finalCommission.IsNegative() {
		return nil, &model.InputError{Field: "finalCommission", Reason: "must be at least 0"}
	}
	return s.mutate(ctx, id, func(c *model.CommissionCalculation) error {
		if !c.Editable() {
			return fmt.Errorf("calculation %s is %s: %w", id, c.Status, model.ErrInvalidTransition)
		}
		c.FinalCommission = model.Money(finalCommission)
		return nil
	})
}

func (s *Service) Approve(ctx context.Context, id model.CalculationID, approvedBy string) (*model.CommissionCalculation, error) {
	c, err := s.mutate(ctx, id, func(c *model.CommissionCalculation) error {
		return c.Approve(approvedBy, s.Now())
	})
	if err != nil {
		return nil, err
	}
	s.Log.WithFields(logrus.Fields{"calculation_id": id, "approved_by": approvedBy}).Info("commission approved")
	return c, nil
}

func (s *Service) Pay(ctx context.Context, id model.CalculationID) (*model.CommissionCalculation, error) {
	c, err := s.mutate(ctx, id, func(c *model.CommissionCalculation) error {
		return c.Pay(s.Now())
	})
	if err != nil {
		return nil, err
	}
	s.Log.WithFields(logrus.Fields{"calculation_id": id, "amount": c.FinalCommission.StringFixed(2)}).Info("commission paid")
	return c, nil
}

func (s *Service) mutate(ctx context.Context, id model.CalculationID, fn func(c *model.CommissionCalculation) error) (*model.CommissionCalculation, error) {
	var out model.CommissionCalculation
	err := s.Store.WithTx(ctx, func(tx model.Store) error {
		c, err := tx.GetCalculation(ctx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return &model.NotFoundError{Kind: "commission calculation", ID: string(id)}
		}
		if err := fn(c); err != nil {
			return err
		}
		out = *c
		return tx.SaveCalculation(ctx, *c)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
