/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine records from the external API contract, allowing:
  - snake_case field names without tagging the model package
  - API-specific validation tags
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Reference data:
    ProfileDTO, TierDTO, RateDTO (requests reuse factory.ProfileJSON,
    factory.TierJSON and factory.RateJSON so a seed file and an API call
    share one schema)

  Targets:
    TargetDTO, CreateTargetRequest, UpdateTargetRequest, GenerateRequest,
    AllocationDTO, OverrideRequest

  Analytics:
    PerformanceDTO, DayDTO, ProjectionDTO, EntryDTO, AlertDTO, SnapshotDTO

  Payouts:
    AwardDTO, EvaluateBranchRequest, EvaluateCashierRequest,
    CalculationDTO, CalculateRequest, AdjustRequest, ApproveRequest

  Sales journal:
    SalesFactRequest, BranchDTO, CashierDTO

VALIDATION:
  Request types carry validator tags checked by decode(). Engine services
  validate again, so the tags only reject malformed bodies early.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/reference.go: ProfileJSON, TierJSON, RateJSON
*/
package api

import (
	"time"

	"github.com/ovenline/sales-targets/leaderboard"
	"github.com/ovenline/sales-targets/model"
	"github.com/ovenline/sales-targets/performance"
	"github.com/shopspring/decimal"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

type ProfileDTO struct {
	ID          string                     `json:"id"`
	Name        string                     `json:"name"`
	Description string                     `json:"description,omitempty"`
	IsDefault   bool                       `json:"is_default"`
	Weights     map[string]decimal.Decimal `json:"weights"`
	CreatedAt   string                     `json:"created_at,omitempty"`
}

func toProfileDTO(p model.WeightProfile) ProfileDTO {
	weights := make(map[string]decimal.Decimal, 7)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		weights[dayKey(wd)] = p.WeightFor(wd)
	}
	return ProfileDTO{
		ID:          string(p.ID),
		Name:        p.Name,
		Description: p.Description,
		IsDefault:   p.IsDefault,
		Weights:     weights,
		CreatedAt:   formatTime(p.CreatedAt),
	}
}

type TierDTO struct {
	ID                    string           `json:"id"`
	Name                  string           `json:"name"`
	MinAchievementPercent decimal.Decimal  `json:"min_achievement_percent"`
	MaxAchievementPercent *decimal.Decimal `json:"max_achievement_percent,omitempty"`
	RewardType            string           `json:"reward_type"`
	FixedAmount           decimal.Decimal  `json:"fixed_amount"`
	PercentageRate        decimal.Decimal  `json:"percentage_rate"`
	ApplicableTo          string           `json:"applicable_to"`
	SortOrder             int              `json:"sort_order"`
	IsActive              bool             `json:"is_active"`
}

func toTierDTO(t model.IncentiveTier) TierDTO {
	return TierDTO{
		ID:                    string(t.ID),
		Name:                  t.Name,
		MinAchievementPercent: t.MinAchievementPercent,
		MaxAchievementPercent: t.MaxAchievementPercent,
		RewardType:            string(t.RewardType),
		FixedAmount:           t.FixedAmount,
		PercentageRate:        t.PercentageRate,
		ApplicableTo:          string(t.ApplicableTo),
		SortOrder:             t.SortOrder,
		IsActive:              t.IsActive,
	}
}

type RateDTO struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	MinSalesAmount decimal.Decimal  `json:"min_sales_amount"`
	MaxSalesAmount *decimal.Decimal `json:"max_sales_amount,omitempty"`
	CommissionType string           `json:"commission_type"`
	FixedAmount    decimal.Decimal  `json:"fixed_amount"`
	PercentageRate decimal.Decimal  `json:"percentage_rate"`
	ApplicableTo   string           `json:"applicable_to"`
	ValidFrom      *model.Date      `json:"valid_from,omitempty"`
	ValidTo        *model.Date      `json:"valid_to,omitempty"`
	IsActive       bool             `json:"is_active"`
}

func toRateDTO(r model.CommissionRate) RateDTO {
	return RateDTO{
		ID:             string(r.ID),
		Name:           r.Name,
		MinSalesAmount: r.MinSalesAmount,
		MaxSalesAmount: r.MaxSalesAmount,
		CommissionType: string(r.CommissionType),
		FixedAmount:    r.FixedAmount,
		PercentageRate: r.PercentageRate,
		ApplicableTo:   string(r.ApplicableTo),
		ValidFrom:      r.ValidFrom,
		ValidTo:        r.ValidTo,
		IsActive:       r.IsActive,
	}
}

// =============================================================================
// TARGETS AND ALLOCATIONS
// =============================================================================

type CreateTargetRequest struct {
	BranchID     string          `json:"branch_id" validate:"required"`
	YearMonth    string          `json:"year_month" validate:"required"`
	TargetAmount decimal.Decimal `json:"target_amount"`
	ProfileID    string          `json:"profile_id,omitempty"`
	Notes        string          `json:"notes,omitempty"`
	CreatedBy    string          `json:"created_by,omitempty"`

	// Generate allocations right away.
	Generate bool `json:"generate,omitempty"`
}

type UpdateTargetRequest struct {
	TargetAmount *decimal.Decimal `json:"target_amount,omitempty"`
	ProfileID    *string          `json:"profile_id,omitempty"`
	Notes        *string          `json:"notes,omitempty"`
}

type GenerateRequest struct {
	// Empty uses the server's configured mode.
	Mode string `json:"mode,omitempty" validate:"omitempty,oneof=replace preserve_overrides"`
}

type TargetDTO struct {
	ID                string          `json:"id"`
	BranchID          string          `json:"branch_id"`
	YearMonth         string          `json:"year_month"`
	TargetAmount      decimal.Decimal `json:"target_amount"`
	ProfileID         string          `json:"profile_id,omitempty"`
	Status            string          `json:"status"`
	Notes             string          `json:"notes,omitempty"`
	CreatedBy         string          `json:"created_by,omitempty"`
	AllocationVersion int             `json:"allocation_version"`
	CreatedAt         string          `json:"created_at"`
	UpdatedAt         string          `json:"updated_at"`
}

func toTargetDTO(t model.MonthlyTarget) TargetDTO {
	return TargetDTO{
		ID:                string(t.ID),
		BranchID:          string(t.BranchID),
		YearMonth:         t.YearMonth.String(),
		TargetAmount:      t.TargetAmount,
		ProfileID:         string(t.ProfileID),
		Status:            string(t.Status),
		Notes:             t.Notes,
		CreatedBy:         t.CreatedBy,
		AllocationVersion: t.AllocationVersion,
		CreatedAt:         formatTime(t.CreatedAt),
		UpdatedAt:         formatTime(t.UpdatedAt),
	}
}

type AllocationDTO struct {
	ID               string          `json:"id"`
	TargetID         string          `json:"target_id"`
	TargetDate       model.Date      `json:"target_date"`
	Weekday          string          `json:"weekday"`
	WeightPercent    decimal.Decimal `json:"weight_percent"`
	DailyTarget      decimal.Decimal `json:"daily_target"`
	IsHoliday        bool            `json:"is_holiday"`
	IsManualOverride bool            `json:"is_manual_override"`
	OverrideReason   string          `json:"override_reason,omitempty"`
	Version          int             `json:"version"`
}

func toAllocationDTOs(rows []model.DailyAllocation) []AllocationDTO {
	dtos := make([]AllocationDTO, len(rows))
	for i, a := range rows {
		dtos[i] = AllocationDTO{
			ID:               string(a.ID),
			TargetID:         string(a.TargetID),
			TargetDate:       a.TargetDate,
			Weekday:          dayKey(a.TargetDate.Weekday()),
			WeightPercent:    a.WeightPercent,
			DailyTarget:      a.DailyTarget,
			IsHoliday:        a.IsHoliday,
			IsManualOverride: a.IsManualOverride,
			OverrideReason:   a.OverrideReason,
			Version:          a.Version,
		}
	}
	return dtos
}

// OverrideRequest edits one allocation. Omitted fields stay unchanged.
type OverrideRequest struct {
	DailyTarget *decimal.Decimal `json:"daily_target,omitempty"`
	IsHoliday   *bool            `json:"is_holiday,omitempty"`
	Reason      string           `json:"reason,omitempty"`
}

// =============================================================================
// PERFORMANCE, LEADERBOARD, ALERTS
// =============================================================================

type DayDTO struct {
	Date               model.Date      `json:"date"`
	Target             decimal.Decimal `json:"target"`
	Achieved           decimal.Decimal `json:"achieved"`
	Percent            decimal.Decimal `json:"percent"`
	CumulativeTarget   decimal.Decimal `json:"cumulative_target"`
	CumulativeAchieved decimal.Decimal `json:"cumulative_achieved"`
	CumulativePercent  decimal.Decimal `json:"cumulative_percent"`
	IsHoliday          bool            `json:"is_holiday"`
	IsManualOverride   bool            `json:"is_manual_override"`
}

type ProjectionDTO struct {
	DaysInMonth                 int             `json:"days_in_month"`
	DaysPassed                  int             `json:"days_passed"`
	AverageDailySales           decimal.Decimal `json:"average_daily_sales"`
	ProjectedTotal              decimal.Decimal `json:"projected_total"`
	ProjectedAchievementPercent decimal.Decimal `json:"projected_achievement_percent"`
	RemainingTarget             decimal.Decimal `json:"remaining_target"`
	RequiredDailyRate           decimal.Decimal `json:"required_daily_rate"`
}

type PerformanceDTO struct {
	BranchID           string          `json:"branch_id"`
	YearMonth          string          `json:"year_month"`
	AsOf               model.Date      `json:"as_of"`
	HasTarget          bool            `json:"has_target"`
	TargetID           string          `json:"target_id,omitempty"`
	TargetAmount       decimal.Decimal `json:"target_amount"`
	AchievedAmount     decimal.Decimal `json:"achieved_amount"`
	AchievementPercent decimal.Decimal `json:"achievement_percent"`
	Days               []DayDTO        `json:"days"`
	Projection         ProjectionDTO   `json:"projection"`
}

func toPerformanceDTO(p performance.MonthlyPerformance) PerformanceDTO {
	days := make([]DayDTO, len(p.Days))
	for i, d := range p.Days {
		days[i] = DayDTO{
			Date:               d.Date,
			Target:             d.Target,
			Achieved:           d.Achieved,
			Percent:            model.RoundPercent(d.Percent),
			CumulativeTarget:   d.CumulativeTarget,
			CumulativeAchieved: d.CumulativeAchieved,
			CumulativePercent:  model.RoundPercent(d.CumulativePercent),
			IsHoliday:          d.IsHoliday,
			IsManualOverride:   d.IsManualOverride,
		}
	}
	return PerformanceDTO{
		BranchID:           string(p.BranchID),
		YearMonth:          p.YearMonth.String(),
		AsOf:               p.AsOf,
		HasTarget:          p.HasTarget,
		TargetID:           string(p.TargetID),
		TargetAmount:       p.TargetAmount,
		AchievedAmount:     p.AchievedAmount,
		AchievementPercent: model.RoundPercent(p.AchievementPercent),
		Days:               days,
		Projection: ProjectionDTO{
			DaysInMonth:                 p.Projection.DaysInMonth,
			DaysPassed:                  p.Projection.DaysPassed,
			AverageDailySales:           p.Projection.AverageDailySales,
			ProjectedTotal:              p.Projection.ProjectedTotal,
			ProjectedAchievementPercent: model.RoundPercent(p.Projection.ProjectedAchievementPercent),
			RemainingTarget:             p.Projection.RemainingTarget,
			RequiredDailyRate:           p.Projection.RequiredDailyRate,
		},
	}
}

type EntryDTO struct {
	Rank                        int             `json:"rank"`
	BranchID                    string          `json:"branch_id"`
	BranchName                  string          `json:"branch_name,omitempty"`
	CashierID                   string          `json:"cashier_id,omitempty"`
	CashierName                 string          `json:"cashier_name,omitempty"`
	TargetAmount                decimal.Decimal `json:"target_amount"`
	AchievedAmount              decimal.Decimal `json:"achieved_amount"`
	AchievementPercent          decimal.Decimal `json:"achievement_percent"`
	ProjectedAchievementPercent decimal.Decimal `json:"projected_achievement_percent"`
	Transactions                int             `json:"transactions"`
	TierID                      string          `json:"tier_id,omitempty"`
	TierName                    string          `json:"tier_name,omitempty"`
}

func toEntryDTOs(entries []leaderboard.Entry) []EntryDTO {
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = EntryDTO{
			Rank:                        e.Rank,
			BranchID:                    string(e.BranchID),
			BranchName:                  e.BranchName,
			CashierID:                   string(e.CashierID),
			CashierName:                 e.CashierName,
			TargetAmount:                e.TargetAmount,
			AchievedAmount:              e.AchievedAmount,
			AchievementPercent:          model.RoundPercent(e.AchievementPercent),
			ProjectedAchievementPercent: model.RoundPercent(e.ProjectedAchievementPercent),
			Transactions:                e.Transactions,
			TierID:                      string(e.TierID),
			TierName:                    e.TierName,
		}
	}
	return dtos
}

type AlertDTO struct {
	BranchID                    string          `json:"branch_id"`
	BranchName                  string          `json:"branch_name,omitempty"`
	Level                       string          `json:"level"`
	AchievementPercent          decimal.Decimal `json:"achievement_percent"`
	ProjectedAchievementPercent decimal.Decimal `json:"projected_achievement_percent"`
	Message                     string          `json:"message"`
}

func toAlertDTOs(alerts []leaderboard.Alert) []AlertDTO {
	dtos := make([]AlertDTO, len(alerts))
	for i, a := range alerts {
		dtos[i] = AlertDTO{
			BranchID:                    string(a.BranchID),
			BranchName:                  a.BranchName,
			Level:                       string(a.Level),
			AchievementPercent:          model.RoundPercent(a.AchievementPercent),
			ProjectedAchievementPercent: model.RoundPercent(a.ProjectedAchievementPercent),
			Message:                     a.Message,
		}
	}
	return dtos
}

type SnapshotDTO struct {
	BranchID           string          `json:"branch_id"`
	SalesDate          model.Date      `json:"sales_date"`
	TotalSales         decimal.Decimal `json:"total_sales"`
	TransactionsCount  int             `json:"transactions_count"`
	AverageTicket      decimal.Decimal `json:"average_ticket"`
	CashierCount       int             `json:"cashier_count"`
	MorningSales       decimal.Decimal `json:"morning_sales"`
	EveningSales       decimal.Decimal `json:"evening_sales"`
	NightSales         decimal.Decimal `json:"night_sales"`
	TargetAmount       decimal.Decimal `json:"target_amount"`
	AchievementAmount  decimal.Decimal `json:"achievement_amount"`
	AchievementPercent decimal.Decimal `json:"achievement_percent"`
	ComputedAt         string          `json:"computed_at"`
}

func toSnapshotDTO(s model.BranchDailySales) SnapshotDTO {
	return SnapshotDTO{
		BranchID:           string(s.BranchID),
		SalesDate:          s.SalesDate,
		TotalSales:         s.TotalSales,
		TransactionsCount:  s.TransactionsCount,
		AverageTicket:      s.AverageTicket,
		CashierCount:       s.CashierCount,
		MorningSales:       s.MorningSales,
		EveningSales:       s.EveningSales,
		NightSales:         s.NightSales,
		TargetAmount:       s.TargetAmount,
		AchievementAmount:  s.AchievementAmount,
		AchievementPercent: s.AchievementPercent,
		ComputedAt:         formatTime(s.ComputedAt),
	}
}

func toSnapshotDTOs(rows []model.BranchDailySales) []SnapshotDTO {
	dtos := make([]SnapshotDTO, len(rows))
	for i, s := range rows {
		dtos[i] = toSnapshotDTO(s)
	}
	return dtos
}

// =============================================================================
// PAYOUTS
// =============================================================================

// PayoutDTO is embedded by awards and calculations.
type PayoutDTO struct {
	Status     string `json:"status"`
	ApprovedBy string `json:"approved_by,omitempty"`
	ApprovedAt string `json:"approved_at,omitempty"`
	PaidAt     string `json:"paid_at,omitempty"`
}

func toPayoutDTO(p model.Payout) PayoutDTO {
	return PayoutDTO{
		Status:     string(p.Status),
		ApprovedBy: p.ApprovedBy,
		ApprovedAt: formatTimePtr(p.ApprovedAt),
		PaidAt:     formatTimePtr(p.PaidAt),
	}
}

type AwardDTO struct {
	ID                 string          `json:"id"`
	Scope              string          `json:"scope"`
	BranchID           string          `json:"branch_id"`
	CashierID          string          `json:"cashier_id,omitempty"`
	PeriodStart        model.Date      `json:"period_start"`
	PeriodEnd          model.Date      `json:"period_end"`
	TargetAmount       decimal.Decimal `json:"target_amount"`
	AchievedAmount     decimal.Decimal `json:"achieved_amount"`
	AchievementPercent decimal.Decimal `json:"achievement_percent"`
	TierID             string          `json:"tier_id,omitempty"`
	CalculatedReward   decimal.Decimal `json:"calculated_reward"`
	FinalReward        decimal.Decimal `json:"final_reward"`
	Notes              string          `json:"notes,omitempty"`
	PayoutDTO
	CreatedAt string `json:"created_at"`
}

func toAwardDTO(a model.IncentiveAward) AwardDTO {
	return AwardDTO{
		ID:                 string(a.ID),
		Scope:              string(a.Scope),
		BranchID:           string(a.BranchID),
		CashierID:          string(a.CashierID),
		PeriodStart:        a.Period.From,
		PeriodEnd:          a.Period.To,
		TargetAmount:       a.TargetAmount,
		AchievedAmount:     a.AchievedAmount,
		AchievementPercent: a.AchievementPercent,
		TierID:             string(a.TierID),
		CalculatedReward:   a.CalculatedReward,
		FinalReward:        a.FinalReward,
		Notes:              a.Notes,
		PayoutDTO:          toPayoutDTO(a.Payout),
		CreatedAt:          formatTime(a.CreatedAt),
	}
}

type EvaluateBranchRequest struct {
	BranchID  string `json:"branch_id" validate:"required"`
	YearMonth string `json:"year_month" validate:"required"`
	AsOf      string `json:"as_of,omitempty"` // default today
}

type EvaluateCashierRequest struct {
	CashierID    string          `json:"cashier_id" validate:"required"`
	YearMonth    string          `json:"year_month" validate:"required"`
	TargetAmount decimal.Decimal `json:"target_amount"`
}

type CalculationDTO struct {
	ID                   string          `json:"id"`
	Scope                string          `json:"scope"`
	BranchID             string          `json:"branch_id"`
	CashierID            string          `json:"cashier_id,omitempty"`
	PeriodStart          model.Date      `json:"period_start"`
	PeriodEnd            model.Date      `json:"period_end"`
	TotalSales           decimal.Decimal `json:"total_sales"`
	RateID               string          `json:"rate_id"`
	CalculatedCommission decimal.Decimal `json:"calculated_commission"`
	FinalCommission      decimal.Decimal `json:"final_commission"`
	AchievementPercent   decimal.Decimal `json:"achievement_percent"`
	SourceFactIDs        []model.FactID  `json:"source_fact_ids"`
	PayoutDTO
	CreatedAt string `json:"created_at"`
}

func toCalculationDTO(c model.CommissionCalculation) CalculationDTO {
	ids := c.SourceFactIDs
	if ids == nil {
		ids = []model.FactID{}
	}
	return CalculationDTO{
		ID:                   string(c.ID),
		Scope:                string(c.Scope),
		BranchID:             string(c.BranchID),
		CashierID:            string(c.CashierID),
		PeriodStart:          c.Period.From,
		PeriodEnd:            c.Period.To,
		TotalSales:           c.TotalSales,
		RateID:               string(c.RateID),
		CalculatedCommission: c.CalculatedCommission,
		FinalCommission:      c.FinalCommission,
		AchievementPercent:   c.AchievementPercent,
		SourceFactIDs:        ids,
		PayoutDTO:            toPayoutDTO(c.Payout),
		CreatedAt:            formatTime(c.CreatedAt),
	}
}

// CalculateRequest selects whom to calculate commission for. Exactly one of
// CashierID and BranchID is set.
type CalculateRequest struct {
	CashierID   string `json:"cashier_id,omitempty" validate:"required_without=BranchID"`
	BranchID    string `json:"branch_id,omitempty" validate:"required_without=CashierID"`
	PeriodStart string `json:"period_start" validate:"required"`
	PeriodEnd   string `json:"period_end" validate:"required"`
}

// AdjustRequest sets the final amount of a pending award or calculation.
type AdjustRequest struct {
	FinalAmount decimal.Decimal `json:"final_amount"`
	Notes       string          `json:"notes,omitempty"`
}

type ApproveRequest struct {
	ApprovedBy string `json:"approved_by" validate:"required"`
}

// =============================================================================
// SALES JOURNAL AND DIRECTORY
// =============================================================================

// SalesFactRequest records one cashier journal. The journal subsystem owns
// these rows; this endpoint exists so the engine can be fed without it.
type SalesFactRequest struct {
	ID               string          `json:"id" validate:"required"`
	BranchID         string          `json:"branch_id" validate:"required"`
	CashierID        string          `json:"cashier_id" validate:"required"`
	Date             string          `json:"date" validate:"required"`
	Shift            string          `json:"shift" validate:"required,oneof=morning evening night"`
	TotalSales       decimal.Decimal `json:"total_sales"`
	TransactionCount int             `json:"transaction_count" validate:"gte=0"`
	Status           string          `json:"status" validate:"required,oneof=draft submitted posted approved rejected"`
}

type BranchDTO struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
}

type CashierDTO struct {
	ID       string `json:"id" validate:"required"`
	BranchID string `json:"branch_id" validate:"required"`
	Name     string `json:"name" validate:"required"`
}

// =============================================================================
// FORMATTING
// =============================================================================

func dayKey(wd time.Weekday) string {
	return [...]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}[wd]
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
