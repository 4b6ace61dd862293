/*
Package targets plans monthly sales targets and spreads them across days.

PURPOSE:
  A planner sets one target amount per branch per month. A weight profile
  (seven weekday weights, e.g. weekends heavier) decides how that amount is
  split into daily targets. This package owns the three records involved:

  WeightProfile   -> profiles.go  (ProfileService)
  MonthlyTarget   -> targets.go   (Manager)
  DailyAllocation -> allocation.go (Allocate, Generator)

DEFAULT PROFILE:
  At most one profile is the default. SetDefault clears the previous default
  and marks the new one inside a single store transaction, so readers see
  exactly one default or, before the first designation, none.

EXAMPLE:
  profiles := targets.NewProfileService(store, logger)
  p, _ := profiles.Create(ctx, targets.ProfileInput{
      Name:      "Weekend heavy",
      Weights:   targets.Weights(1, 1, 1, 1, 1, 2, 2),
      IsDefault: true,
  })

SEE ALSO:
  - model/types.go: WeightProfile, MonthlyTarget, DailyAllocation
  - performance/: reads allocations to measure achievement
*/
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
// PROFILE SERVICE
// =============================================================================

type ProfileService struct {
	Store model.TxStore
	Log   logrus.FieldLogger
	Now   func() time.Time
}

func NewProfileService(store model.TxStore, log logrus.FieldLogger) *ProfileService {
	return &ProfileService{Store: store, Log: model.LoggerOrDiscard(log), Now: model.ClockOrNow(nil)}
}

// ProfileInput creates a profile. Weights are Sunday..Saturday.
type ProfileInput struct {
	ID          model.ProfileID
	Name        string            `validate:"required"`
	Description string
	Weights     []decimal.Decimal `validate:"len=7,dive,gte=0"`
	IsDefault   bool
}

// Weights builds a Sunday..Saturday weight list from plain numbers.
func Weights(sun, mon, tue, wed, thu, fri, sat float64) []decimal.Decimal {
	return []decimal.Decimal{
		decimal.NewFromFloat(sun), decimal.NewFromFloat(mon), decimal.NewFromFloat(tue),
		decimal.NewFromFloat(wed), decimal.NewFromFloat(thu), decimal.NewFromFloat(fri),
		decimal.NewFromFloat(sat),
	}
}

// Create validates and stores a profile. When IsDefault is set the new profile
// replaces the current default atomically.
func (s *ProfileService) Create(ctx context.Context, in ProfileInput) (*model.WeightProfile, error) {
	if err := model.Validate(in); err != nil {
		return nil, err
	}

	p := model.WeightProfile{
		ID:          in.ID,
		Name:        in.Name,
		Description: in.Description,
		IsDefault:   in.IsDefault,
		CreatedAt:   s.Now(),
	}
	if p.ID == "" {
		p.ID = model.ProfileID(uuid.NewString())
	}
	copy(p.Weights[:], in.Weights)

	err := s.Store.WithTx(ctx, func(tx model.Store) error {
		if p.IsDefault {
			if err := tx.ClearDefaultProfile(ctx); err != nil {
				return err
			}
		}
		return tx.SaveProfile(ctx, p)
	})
	if err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}

	s.Log.WithFields(logrus.Fields{"profile_id": p.ID, "default": p.IsDefault}).Info("weight profile created")
	return &p, nil
}

// SetDefault designates id as the only default profile.
func (s *ProfileService) SetDefault(ctx context.Context, id model.ProfileID) error {
	err := s.Store.WithTx(ctx, func(tx model.Store) error {
		p, err := tx.GetProfile(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return &model.NotFoundError{Kind: "weight profile", ID: string(id)}
		}
		if err := tx.ClearDefaultProfile(ctx); err != nil {
			return err
		}
		p.IsDefault = true
		return tx.SaveProfile(ctx, *p)
	})
	if err != nil {
		return err
	}
	s.Log.WithField("profile_id", id).Info("default weight profile changed")
	return nil
}

func (s *ProfileService) Get(ctx context.Context, id model.ProfileID) (*model.WeightProfile, error) {
	p, err := s.Store.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &model.NotFoundError{Kind: "weight profile", ID: string(id)}
	}
	return p, nil
}

func (s *ProfileService) List(ctx context.Context) ([]model.WeightProfile, error) {
	return s.Store.ListProfiles(ctx)
}

// Resolve returns the target's explicit profile, or the default when the
// target names none.
func (s *ProfileService) Resolve(ctx context.Context, t model.MonthlyTarget) (*model.WeightProfile, error) {
	return resolveProfile(ctx, s.Store, t)
}

func resolveProfile(ctx context.Context, store model.ProfileStore, t model.MonthlyTarget) (*model.WeightProfile, error) {
	var (
		p   *model.WeightProfile
		err error
	)
	if t.ProfileID != "" {
		p, err = store.GetProfile(ctx, t.ProfileID)
	} else {
		p, err = store.GetDefaultProfile(ctx)
	}
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &model.NoProfileError{TargetID: t.ID, ProfileID: t.ProfileID}
	}
	return p, nil
}
