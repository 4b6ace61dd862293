/*
Package factory provides JSON to Go reference-data conversion.

PURPOSE:
  Converts JSON documents listing weight profiles, incentive tiers and
  commission rates (plus, optionally, the branch/cashier directory) into
  engine inputs and applies them through the services. Planners can keep
  reference data in version control and load it at startup without code
  changes.

JSON SCHEMA:
  {
    "profiles": [
      {
        "id": "weekend-heavy",
        "name": "Weekend heavy",
        "is_default": true,
        "weights": {"sunday": 1, "monday": 1, "tuesday": 1, "wednesday": 1,
                    "thursday": 1, "friday": 2, "saturday": 2}
      }
    ],
    "incentive_tiers": [
      {"id": "gold", "name": "Gold", "min_achievement_percent": 100,
       "reward_type": "fixed", "fixed_amount": 500, "applicable_to": "all"}
    ],
    "commission_rates": [
      {"id": "base", "name": "Base", "min_sales_amount": 0, "max_sales_amount": 50000,
       "commission_type": "fixed", "fixed_amount": 200, "applicable_to": "cashier",
       "valid_from": "2025-01-01"}
    ],
    "branches": [{"id": "branch-1", "name": "Central"}],
    "cashiers": [{"id": "cashier-1", "branch_id": "branch-1", "name": "Ana"}]
  }

KEY FEATURES:
  - Rejects unknown fields and more than one default profile at parse time
  - Numbers may be JSON numbers or strings; both decode to exact decimals
  - Apply is idempotent: records with an id are updated in place
  - Field validation is left to the services so rules live in one place

USAGE:
  data, err := factory.Parse([]byte(factory.BakeryDefaultsJSON()))
  summary, err := factory.Apply(ctx, factory.Services{...}, data)

SEE ALSO:
  - presets.go: Ready-made reference documents
  - targets/profiles.go, incentives/service.go, commission/service.go
*/
package factory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/ovenline/sales-targets/commission"
	"github.com/ovenline/sales-targets/incentives"
	"github.com/ovenline/sales-targets/model"
	"github.com/ovenline/sales-targets/targets"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ReferenceData is one reference-data document.
type ReferenceData struct {
	Profiles []ProfileJSON `json:"profiles,omitempty"`
	Tiers    []TierJSON    `json:"incentive_tiers,omitempty"`
	Rates    []RateJSON    `json:"commission_rates,omitempty"`
	Branches []BranchJSON  `json:"branches,omitempty"`
	Cashiers []CashierJSON `json:"cashiers,omitempty"`
}

// ProfileJSON is the JSON representation of a weight profile.
type ProfileJSON struct {
	ID          string      `json:"id,omitempty"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	IsDefault   bool        `json:"is_default,omitempty"`
	Weights     WeightsJSON `json:"weights"`
}

// WeightsJSON names each weekday; a missing day weighs zero.
type WeightsJSON struct {
	Sunday    decimal.Decimal `json:"sunday"`
	Monday    decimal.Decimal `json:"monday"`
	Tuesday   decimal.Decimal `json:"tuesday"`
	Wednesday decimal.Decimal `json:"wednesday"`
	Thursday  decimal.Decimal `json:"thursday"`
	Friday    decimal.Decimal `json:"friday"`
	Saturday  decimal.Decimal `json:"saturday"`
}

// TierJSON is the JSON representation of an incentive tier.
type TierJSON struct {
	ID                    string           `json:"id,omitempty"`
	Name                  string           `json:"name"`
	MinAchievementPercent decimal.Decimal  `json:"min_achievement_percent"`
	MaxAchievementPercent *decimal.Decimal `json:"max_achievement_percent,omitempty"`
	RewardType            string           `json:"reward_type"`
	FixedAmount           decimal.Decimal  `json:"fixed_amount"`
	PercentageRate        decimal.Decimal  `json:"percentage_rate"`
	ApplicableTo          string           `json:"applicable_to"`
	SortOrder             int              `json:"sort_order,omitempty"`
	IsActive              *bool            `json:"is_active,omitempty"` // nil = active
}

// RateJSON is the JSON representation of a commission rate.
type RateJSON struct {
	ID             string           `json:"id,omitempty"`
	Name           string           `json:"name"`
	MinSalesAmount decimal.Decimal  `json:"min_sales_amount"`
	MaxSalesAmount *decimal.Decimal `json:"max_sales_amount,omitempty"`
	CommissionType string           `json:"commission_type"`
	FixedAmount    decimal.Decimal  `json:"fixed_amount"`
	PercentageRate decimal.Decimal  `json:"percentage_rate"`
	ApplicableTo   string           `json:"applicable_to"`
	ValidFrom      *model.Date      `json:"valid_from,omitempty"`
	ValidTo        *model.Date      `json:"valid_to,omitempty"`
	IsActive       *bool            `json:"is_active,omitempty"`
}

type BranchJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CashierJSON struct {
	ID       string `json:"id"`
	BranchID string `json:"branch_id"`
	Name     string `json:"name"`
}

// =============================================================================
// PARSING
// =============================================================================

// Parse decodes a reference-data document.
func Parse(data []byte) (*ReferenceData, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var rd ReferenceData
	if err := dec.Decode(&rd); err != nil {
		return nil, fmt.Errorf("failed to parse reference data JSON: %w", err)
	}

	defaults := 0
	for _, p := range rd.Profiles {
		if p.IsDefault {
			defaults++
		}
	}
	if defaults > 1 {
		return nil, &model.InputError{Field: "profiles", Reason: fmt.Sprintf("%d profiles are marked default, at most one may be", defaults)}
	}
	for _, c := range rd.Cashiers {
		if c.BranchID == "" {
			return nil, &model.InputError{Field: "cashiers", Reason: fmt.Sprintf("cashier %q has no branch_id", c.ID)}
		}
	}
	return &rd, nil
}

// ProfileInput converts to the profile service input.
func (pj ProfileJSON) ProfileInput() targets.ProfileInput {
	w := pj.Weights
	return targets.ProfileInput{
		ID:          model.ProfileID(pj.ID),
		Name:        pj.Name,
		Description: pj.Description,
		Weights:     []decimal.Decimal{w.Sunday, w.Monday, w.Tuesday, w.Wednesday, w.Thursday, w.Friday, w.Saturday},
		IsDefault:   pj.IsDefault,
	}
}

// TierInput converts to the incentive service input.
func (tj TierJSON) TierInput() incentives.TierInput {
	return incentives.TierInput{
		ID:                    model.TierID(tj.ID),
		Name:                  tj.Name,
		MinAchievementPercent: tj.MinAchievementPercent,
		MaxAchievementPercent: tj.MaxAchievementPercent,
		RewardType:            model.RewardType(tj.RewardType),
		FixedAmount:           tj.FixedAmount,
		PercentageRate:        tj.PercentageRate,
		ApplicableTo:          model.Scope(tj.ApplicableTo),
		SortOrder:             tj.SortOrder,
		IsActive:              active(tj.IsActive),
	}
}

// RateInput converts to the commission service input.
func (rj RateJSON) RateInput() commission.RateInput {
	return commission.RateInput{
		ID:             model.RateID(rj.ID),
		Name:           rj.Name,
		MinSalesAmount: rj.MinSalesAmount,
		MaxSalesAmount: rj.MaxSalesAmount,
		CommissionType: model.CommissionType(rj.CommissionType),
		FixedAmount:    rj.FixedAmount,
		PercentageRate: rj.PercentageRate,
		ApplicableTo:   model.Scope(rj.ApplicableTo),
		ValidFrom:      rj.ValidFrom,
		ValidTo:        rj.ValidTo,
		IsActive:       active(rj.IsActive),
	}
}

func active(b *bool) bool { return b == nil || *b }

// =============================================================================
// APPLY
// =============================================================================

// DirectoryWriter accepts branch and cashier records. The SQLite store
// implements it.
type DirectoryWriter interface {
	SaveBranch(ctx context.Context, b model.Branch) error
	SaveCashier(ctx context.Context, c model.Cashier) error
}

// Services are the sinks Apply writes through. Directory may be nil, in which
// case branches and cashiers in the document are ignored.
type Services struct {
	Profiles   *targets.ProfileService
	Incentives *incentives.Service
	Commission *commission.Service
	Directory  DirectoryWriter
	Log        logrus.FieldLogger
}

// Summary counts what Apply wrote.
type Summary struct {
	Profiles int
	Tiers    int
	Rates    int
	Branches int
	Cashiers int
}

// Apply writes every record of rd. It stops at the first failure; records
// written before it stay written.
func Apply(ctx context.Context, svc Services, rd *ReferenceData) (Summary, error) {
	var sum Summary
	log := model.LoggerOrDiscard(svc.Log)

	if svc.Directory != nil {
		for _, b := range rd.Branches {
			if err := svc.Directory.SaveBranch(ctx, model.Branch{ID: model.BranchID(b.ID), Name: b.Name}); err != nil {
				return sum, fmt.Errorf("branch %s: %w", b.ID, err)
			}
			sum.Branches++
		}
		for _, c := range rd.Cashiers {
			cashier := model.Cashier{ID: model.CashierID(c.ID), BranchID: model.BranchID(c.BranchID), Name: c.Name}
			if err := svc.Directory.SaveCashier(ctx, cashier); err != nil {
				return sum, fmt.Errorf("cashier %s: %w", c.ID, err)
			}
			sum.Cashiers++
		}
	}

	for _, pj := range rd.Profiles {
		if _, err := svc.Profiles.Create(ctx, pj.ProfileInput()); err != nil {
			return sum, fmt.Errorf("profile %q: %w", pj.Name, err)
		}
		sum.Profiles++
	}

	for _, tj := range rd.Tiers {
		in := tj.TierInput()
		var err error
		if in.ID != "" {
			_, err = svc.Incentives.UpdateTier(ctx, in.ID, in)
		}
		if in.ID == "" || model.IsNotFound(err) {
			_, err = svc.Incentives.CreateTier(ctx, in)
		}
		if err != nil {
			return sum, fmt.Errorf("tier %q: %w", tj.Name, err)
		}
		sum.Tiers++
	}

	for _, rj := range rd.Rates {
		in := rj.RateInput()
		var err error
		if in.ID != "" {
			_, err = svc.Commission.UpdateRate(ctx, in.ID, in)
		}
		if in.ID == "" || model.IsNotFound(err) {
			_, err = svc.Commission.CreateRate(ctx, in)
		}
		if err != nil {
			return sum, fmt.Errorf("rate %q: %w", rj.Name, err)
		}
		sum.Rates++
	}

	log.WithFields(logrus.Fields{
		"profiles": sum.Profiles,
		"tiers":    sum.Tiers,
		"rates":    sum.Rates,
		"branches": sum.Branches,
		"cashiers": sum.Cashiers,
	}).Info("reference data applied")
	return sum, nil
}
