package incentives

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ovenline/sales-targets/model"
	"github.com/ovenline/sales-targets/performance"
	"github.com/ovenline/sales-targets/sales"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Performer is the performance source for branch awards.
type Performer interface {
	Monthly(ctx context.Context, branchID model.BranchID, ym model.YearMonth, asOf model.Date) (*performance.MonthlyPerformance, error)
}

type Service struct {
	Store       model.TxStore
	Performance Performer
	Sales       sales.Adapter
	Directory   sales.Directory
	Log         logrus.FieldLogger
	Now         func() time.Time
}

func NewService(store model.TxStore, perf Performer, facts sales.Adapter, dir sales.Directory, log logrus.FieldLogger) *Service {
	return &Service{
		Store:       store,
		Performance: perf,
		Sales:       facts,
		Directory:   dir,
		Log:         model.LoggerOrDiscard(log),
		Now:         model.ClockOrNow(nil),
	}
}

// =============================================================================
// TIERS
// =============================================================================

type TierInput struct {
	ID                    model.TierID    // empty gets a generated id
	Name                  string          `validate:"required"`
	MinAchievementPercent decimal.Decimal `validate:"gte=0"`
	MaxAchievementPercent *decimal.Decimal
	RewardType            model.RewardType `validate:"required,oneof=fixed percentage both"`
	FixedAmount           decimal.Decimal  `validate:"gte=0"`
	PercentageRate        decimal.Decimal  `validate:"gte=0"`
	ApplicableTo          model.Scope      `validate:"required,oneof=all branch cashier"`
	SortOrder             int
	IsActive              bool
}

func (in TierInput) validate() error {
	if err := model.Validate(in); err != nil {
		return err
	}
	if in.MaxAchievementPercent != nil && !in.MaxAchievementPercent.GreaterThan(in.MinAchievementPercent) {
		return &model.InputError{Field: "maxAchievementPercent", Reason: "must be greater than minAchievementPercent"}
	}
	return nil
}

func (in TierInput) tier(id model.TierID) model.IncentiveTier {
	return model.IncentiveTier{
		ID:                    id,
		Name:                  in.Name,
		MinAchievementPercent: in.MinAchievementPercent,
		MaxAchievementPercent: in.MaxAchievementPercent,
		RewardType:            in.RewardType,
		FixedAmount:           in.FixedAmount,
		PercentageRate:        in.PercentageRate,
		ApplicableTo:          in.ApplicableTo,
		SortOrder:             in.SortOrder,
		IsActive:              in.IsActive,
	}
}

func (s *Service) CreateTier(ctx context.Context, in TierInput) (*model.IncentiveTier, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	id := in.ID
	if id == "" {
		id = model.TierID(uuid.NewString())
	}
	t := in.tier(id)
	if err := s.Store.SaveTier(ctx, t); err != nil {
		return nil, fmt.Errorf("save tier: %w", err)
	}
	return &t, nil
}

func (s *Service) UpdateTier(ctx context.Context, id model.TierID, in TierInput) (*model.IncentiveTier, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	existing, err := s.Store.GetTier(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, &model.NotFoundError{Kind: "incentive tier", ID: string(id)}
	}
	t := in.tier(id)
	if err := s.Store.SaveTier(ctx, t); err != nil {
		return nil, fmt.Errorf("save tier: %w", err)
	}
	return &t, nil
}

func (s *Service) ListTiers(ctx context.Context) ([]model.IncentiveTier, error) {
	return s.Store.ListTiers(ctx)
}

// DeleteTier removes the tier. Awards that reference it keep the stale id.
func (s *Service) DeleteTier(ctx context.Context, id model.TierID) error {
	return s.Store.DeleteTier(ctx, id)
}

// =============================================================================
// EVALUATION
// =============================================================================

// EvaluateBranch awards branchID for ym based on its achievement as of asOf.
// A branch without an active target has nothing to be rewarded against and
// gets a NotFoundError.
func (s *Service) EvaluateBranch(ctx context.Context, branchID model.BranchID, ym model.YearMonth, asOf model.Date) (*model.IncentiveAward, error) {
	perf, err := s.Performance.Monthly(ctx, branchID, ym, asOf)
	if err != nil {
		return nil, err
	}
	if !perf.HasTarget {
		return nil, &model.NotFoundError{Kind: "active monthly target", ID: fmt.Sprintf("%s/%s", branchID, ym)}
	}

	award := model.IncentiveAward{
		Scope:              model.ScopeBranch,
		BranchID:           branchID,
		Period:             ym.Range(),
		TargetAmount:       perf.TargetAmount,
		AchievedAmount:     perf.AchievedAmount,
		AchievementPercent: perf.AchievementPercent,
	}
	return s.award(ctx, award)
}

// EvaluateCashier awards a cashier against a caller-supplied monthly target.
func (s *Service) EvaluateCashier(ctx context.Context, cashierID model.CashierID, ym model.YearMonth, targetAmount decimal.Decimal) (*model.IncentiveAward, error) {
	if !targetAmount.IsPositive() {
		return nil, &model.InputError{Field: "targetAmount", Reason: "must be greater than 0"}
	}
	if ym.IsZero() {
		return nil, &model.InputError{Field: "yearMonth", Reason: "is required"}
	}
	cashier, err := s.Directory.GetCashier(ctx, cashierID)
	if err != nil {
		return nil, err
	}
	if cashier == nil {
		return nil, &model.NotFoundError{Kind: "cashier", ID: string(cashierID)}
	}

	facts, err := sales.EligibleFacts(ctx, s.Sales, sales.Query{CashierID: cashierID, Range: ym.Range()})
	if err != nil {
		return nil, fmt.Errorf("load sales: %w", err)
	}
	achieved, _ := sales.Total(facts)

	award := model.IncentiveAward{
		Scope:              model.ScopeCashier,
		BranchID:           cashier.BranchID,
		CashierID:          cashierID,
		Period:             ym.Range(),
		TargetAmount:       model.Money(targetAmount),
		AchievedAmount:     model.Money(achieved),
		AchievementPercent: model.Ratio(achieved, targetAmount),
	}
	return s.award(ctx, award)
}

// award matches a tier, computes the reward and persists a pending award.
// a.AchievementPercent arrives exact and is rounded only after matching.
func (s *Service) award(ctx context.Context, a model.IncentiveAward) (*model.IncentiveAward, error) {
	tiers, err := s.Store.ListTiers(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tiers: %w", err)
	}

	a.ID = model.AwardID(uuid.NewString())
	a.CalculatedReward = decimal.Zero
	if tier, ok := Match(tiers, a.AchievementPercent, a.Scope); ok {
		a.TierID = tier.ID
		a.CalculatedReward = Reward(*tier, a.TargetAmount, a.AchievedAmount)
	}
	a.AchievementPercent = model.RoundPercent(a.AchievementPercent)
	a.FinalReward = a.CalculatedReward
	a.Payout = model.NewPayout()
	a.CreatedAt = s.Now()

	if err := s.Store.SaveAward(ctx, a); err != nil {
		return nil, fmt.Errorf("save award: %w", err)
	}

	s.Log.WithFields(logrus.Fields{
		"award_id":    a.ID,
		"scope":       a.Scope,
		"branch_id":   a.BranchID,
		"cashier_id":  a.CashierID,
		"achievement": a.AchievementPercent.StringFixed(2),
		"tier_id":     a.TierID,
		"reward":      a.CalculatedReward.StringFixed(2),
	}).Info("incentive award calculated")
	return &a, nil
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func (s *Service) Get(ctx context.Context, id model.AwardID) (*model.IncentiveAward, error) {
	a, err := s.Store.GetAward(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, &model.NotFoundError{Kind: "incentive award", ID: string(id)}
	}
	return a, nil
}

func (s *Service) List(ctx context.Context, f model.AwardFilter) ([]model.IncentiveAward, error) {
	return s.Store.ListAwards(ctx, f)
}

// Adjust edits the final reward of a pending award.
func (s *Service) Adjust(ctx context.Context, id model.AwardID, finalReward decimal.Decimal, notes string) (*model.IncentiveAward, error) {
	if finalReward.IsNegative() {
		return nil, &model.InputError{Field: "finalReward", Reason: "must be at least 0"}
	}
	return s.mutate(ctx, id, func(a *model.IncentiveAward) error {
		if !a.Editable() {
			return fmt.Errorf("award %s is %s: %w", id, a.Status, model.ErrInvalidTransition)
		}
		a.FinalReward = model.Money(finalReward)
		if notes != "" {
			a.Notes = notes
		}
		return nil
	})
}

func (s *Service) Approve(ctx context.Context, id model.AwardID, approvedBy string) (*model.IncentiveAward, error) {
	a, err := s.mutate(ctx, id, func(a *model.IncentiveAward) error {
		return a.Approve(approvedBy, s.Now())
	})
	if err != nil {
		return nil, err
	}
	s.Log.WithFields(logrus.Fields{"award_id": id, "approved_by": approvedBy}).Info("incentive award approved")
	return a, nil
}

func (s *Service) Pay(ctx context.Context, id model.AwardID) (*model.IncentiveAward, error) {
	a, err := s.mutate(ctx, id, func(a *model.IncentiveAward) error {
		return a.Pay(s.Now())
	})
	if err != nil {
		return nil, err
	}
	s.Log.WithFields(logrus.Fields{"award_id": id, "amount": a.FinalReward.StringFixed(2)}).Info("incentive award paid")
	return a, nil
}

func (s *Service) mutate(ctx context.Context, id model.AwardID, fn func(a *model.IncentiveAward) error) (*model.IncentiveAward, error) {
	var out model.IncentiveAward
	err := s.Store.WithTx(ctx, func(tx model.Store) error {
		a, err := tx.GetAward(ctx, id)
		if err != nil {
			return err
		}
		if a == nil {
			return &model.NotFoundError{Kind: "incentive award", ID: string(id)}
		}
		if err := fn(a); err != nil {
			return err
		}
		out = *a
		return tx.SaveAward(ctx, *a)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
