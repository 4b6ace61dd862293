/*
Package model provides the data model and contracts of the sales target engine.

PURPOSE:
  This package holds the records the engine owns (weight profiles, monthly
  targets, daily allocations, incentive tiers and awards, commission rates and
  calculations, daily sales snapshots), the read model it consumes (sales
  facts), and the persistence contracts that storage implementations satisfy.
  The calculators live in their own packages and only speak these types.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money / Percent: decimal helpers with fixed rounding rules
  - Identifiers: typed string IDs so a branch id is never passed as a cashier id
  - Records: one struct per persisted record set

DESIGN PRINCIPLES:
  1. Precision: every amount, weight and rate is a decimal.Decimal
  2. Type Safety: typed identifiers and enumerations
  3. Recomputability: everything the engine writes can be recomputed from
     reference data plus posted sales facts

SEE ALSO:
  - time.go: Date, YearMonth and DateRange
  - errors.go: Error taxonomy
  - store.go: Persistence contracts
  - lifecycle.go: pending -> approved -> paid transitions
*/
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY AND PERCENT
// =============================================================================

var hundred = decimal.NewFromInt(100)

// Money rounds an amount to cents.
func Money(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// Ratio returns part/whole*100 unrounded, or zero when whole is not
// positive. Thresholds (tier minimums, alert levels) compare against Ratio;
// a rounded value would put 99.999% on the 100% side.
func Ratio(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Mul(hundred).Div(whole)
}

// Percent is Ratio rounded to 2 dp, for display and storage.
func Percent(part, whole decimal.Decimal) decimal.Decimal { return RoundPercent(Ratio(part, whole)) }

// RoundPercent rounds an exact percentage to 2 dp.
func RoundPercent(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// ApplyRate returns amount*rate/100 rounded to cents.
func ApplyRate(amount, rate decimal.Decimal) decimal.Decimal {
	return Money(amount.Mul(rate).Div(hundred))
}

// MustDecimal parses s and panics when it is not a decimal. For literals.
func MustDecimal(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func DecimalPtr(d decimal.Decimal) *decimal.Decimal { return &d }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type BranchID string
type CashierID string
type ProfileID string
type TargetID string
type AllocationID string
type TierID string
type AwardID string
type RateID string
type CalculationID string
type FactID string

// Scope says whom a tier, rate or payout applies to.
type Scope string

const (
	ScopeAll     Scope = "all"
	ScopeBranch  Scope = "branch"
	ScopeCashier Scope = "cashier"
)

// Covers reports whether a rule scoped s applies to a subject of scope subject.
func (s Scope) Covers(subject Scope) bool { return s == ScopeAll || s == subject }

// =============================================================================
// WEIGHT PROFILE
// =============================================================================

// Weekdays is indexed by time.Weekday: Sunday=0 ... Saturday=6.
type Weekdays [7]decimal.Decimal

// WeightProfile spreads a month's target unevenly across weekdays.
type WeightProfile struct {
	ID          ProfileID
	Name        string
	Description string
	Weights     Weekdays
	IsDefault   bool
	CreatedAt   time.Time
}

// WeightFor returns the relative weight of the given weekday.
func (p WeightProfile) WeightFor(wd time.Weekday) decimal.Decimal { return p.Weights[wd] }

// =============================================================================
// MONTHLY TARGET AND DAILY ALLOCATION
// =============================================================================

type TargetStatus string

const (
	TargetDraft  TargetStatus = "draft"
	TargetActive TargetStatus = "active"
)

type MonthlyTarget struct {
	ID           TargetID
	BranchID     BranchID
	YearMonth    YearMonth
	TargetAmount decimal.Decimal
	ProfileID    ProfileID // empty = system default profile
	Status       TargetStatus
	Notes        string
	CreatedBy    string

	// AllocationVersion increments every time allocations are regenerated.
	// Allocations carry the version they were generated under.
	AllocationVersion int

	CreatedAt time.Time
	UpdatedAt time.Time
}

type DailyAllocation struct {
	ID               AllocationID
	TargetID         TargetID
	TargetDate       Date
	WeightPercent    decimal.Decimal // share of the month, 0-100
	DailyTarget      decimal.Decimal
	IsHoliday        bool
	IsManualOverride bool
	OverrideReason   string
	Version          int
	UpdatedAt        time.Time
}

// =============================================================================
// INCENTIVES
// =============================================================================

type RewardType string

const (
	RewardFixed      RewardType = "fixed"
	RewardPercentage RewardType = "percentage"
	RewardBoth       RewardType = "both"
)

type IncentiveTier struct {
	ID                    TierID
	Name                  string
	MinAchievementPercent decimal.Decimal
	MaxAchievementPercent *decimal.Decimal // exclusive; nil = unbounded
	RewardType            RewardType
	FixedAmount           decimal.Decimal
	PercentageRate        decimal.Decimal
	ApplicableTo          Scope
	SortOrder             int
	IsActive              bool
}

// Bounds implements Bracketed.
func (t IncentiveTier) Bounds() Bracket {
	return Bracket{Min: t.MinAchievementPercent, Max: t.MaxAchievementPercent}
}

type IncentiveAward struct {
	ID                 AwardID
	Scope              Scope
	BranchID           BranchID
	CashierID          CashierID // empty for branch awards
	Period             DateRange
	TargetAmount       decimal.Decimal
	AchievedAmount     decimal.Decimal
	AchievementPercent decimal.Decimal
	TierID             TierID // empty when no tier matched
	CalculatedReward   decimal.Decimal
	FinalReward        decimal.Decimal
	Notes              string
	Payout
	CreatedAt time.Time
}

// =============================================================================
// COMMISSIONS
// =============================================================================

type CommissionType string

const (
	CommissionFixed      CommissionType = "fixed"
	CommissionPercentage CommissionType = "percentage"
	CommissionTiered     CommissionType = "tiered"
)

type CommissionRate struct {
	ID             RateID
	Name           string
	MinSalesAmount decimal.Decimal
	MaxSalesAmount *decimal.Decimal // exclusive; nil = unbounded
	CommissionType CommissionType
	FixedAmount    decimal.Decimal
	PercentageRate decimal.Decimal
	ApplicableTo   Scope
	ValidFrom      *Date
	ValidTo        *Date
	IsActive       bool
}

// Bounds implements Bracketed.
func (r CommissionRate) Bounds() Bracket {
	return Bracket{Min: r.MinSalesAmount, Max: r.MaxSalesAmount}
}

// ValidOn reports whether d falls within the rate's validity window.
func (r CommissionRate) ValidOn(d Date) bool {
	if r.ValidFrom != nil && d.Before(*r.ValidFrom) {
		return false
	}
	if r.ValidTo != nil && d.After(*r.ValidTo) {
		return false
	}
	return true
}

type CommissionCalculation struct {
	ID                   CalculationID
	Scope                Scope
	CashierID            CashierID // empty for branch calculations
	BranchID             BranchID
	Period               DateRange
	TotalSales           decimal.Decimal
	RateID               RateID
	CalculatedCommission decimal.Decimal
	FinalCommission      decimal.Decimal
	AchievementPercent   decimal.Decimal // context only, never feeds the amount
	SourceFactIDs        []FactID
	Payout
	CreatedAt time.Time
}

// =============================================================================
// SALES FACTS (read model owned by the journal subsystem)
// =============================================================================

type JournalStatus string

const (
	JournalDraft     JournalStatus = "draft"
	JournalSubmitted JournalStatus = "submitted"
	JournalPosted    JournalStatus = "posted"
	JournalApproved  JournalStatus = "approved"
	JournalRejected  JournalStatus = "rejected"
)

// Eligible reports whether a journal in this status may feed a calculation.
func (s JournalStatus) Eligible() bool { return s == JournalPosted || s == JournalApproved }

type ShiftType string

const (
	ShiftMorning ShiftType = "morning"
	ShiftEvening ShiftType = "evening"
	ShiftNight   ShiftType = "night"
)

// SalesFact is one cashier journal for one shift on one day.
type SalesFact struct {
	ID               FactID
	BranchID         BranchID
	CashierID        CashierID
	Date             Date
	Shift            ShiftType
	TotalSales       decimal.Decimal
	TransactionCount int
	Status           JournalStatus
}

// Branch and Cashier are directory entries owned by external collaborators.
type Branch struct {
	ID   BranchID
	Name string
}

type Cashier struct {
	ID       CashierID
	BranchID BranchID
	Name     string
}

// =============================================================================
// BRANCH DAILY SALES SNAPSHOT
// =============================================================================

// BranchDailySales is a cache row. It is recomputed wholesale from sales facts
// and may be stale between recomputes; ComputedAt says how stale.
type BranchDailySales struct {
	BranchID           BranchID
	SalesDate          Date
	TotalSales         decimal.Decimal
	TransactionsCount  int
	AverageTicket      decimal.Decimal
	CashierCount       int
	MorningSales       decimal.Decimal
	EveningSales       decimal.Decimal
	NightSales         decimal.Decimal
	TargetAmount       decimal.Decimal
	AchievementAmount  decimal.Decimal // achieved - target
	AchievementPercent decimal.Decimal
	SourceFactIDs      []FactID
	ComputedAt         time.Time
}

// IsStale reports whether the snapshot is older than maxAge at now.
// A non-positive maxAge never expires.
func (s BranchDailySales) IsStale(now time.Time, maxAge time.Duration) bool {
	return maxAge > 0 && now.Sub(s.ComputedAt) > maxAge
}
