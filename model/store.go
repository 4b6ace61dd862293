/*
store.go - Persistence contracts for engine-owned records

PURPOSE:
  Defines the interface between the calculators and the database. The engine
  owns eight record sets (profiles, targets, allocations, tiers, awards,
  rates, commission calculations, snapshots); each gets a narrow interface so
  a calculator declares exactly what it reads and writes.

LOOKUP CONVENTION:
  Get* methods return (nil, nil) when the record does not exist. Callers that
  need the record turn that into a *NotFoundError; callers that can degrade to
  a zero result (performance, alerts) do so.

ATOMIC REGENERATION:
  ReplaceAllocations deletes every allocation of a target and inserts the new
  set. Implementations must make the swap atomic, and callers wrap it in
  WithTx together with the target's version bump so a concurrent reader never
  sees a target with zero allocations.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - model/store/memory.go: In-memory for tests and demos

SEE ALSO:
  - sales/adapter.go: Read contract for sales facts (owned elsewhere)
*/
package model

import "context"

// =============================================================================
// REFERENCE DATA
// =============================================================================

type ProfileStore interface {
	SaveProfile(ctx context.Context, p WeightProfile) error
	GetProfile(ctx context.Context, id ProfileID) (*WeightProfile, error)
	GetDefaultProfile(ctx context.Context) (*WeightProfile, error)
	ListProfiles(ctx context.Context) ([]WeightProfile, error)

	// ClearDefaultProfile unsets IsDefault on every profile.
	ClearDefaultProfile(ctx context.Context) error
}

type TierStore interface {
	SaveTier(ctx context.Context, t IncentiveTier) error
	GetTier(ctx context.Context, id TierID) (*IncentiveTier, error)
	ListTiers(ctx context.Context) ([]IncentiveTier, error)
	DeleteTier(ctx context.Context, id TierID) error
}

type RateStore interface {
	SaveRate(ctx context.Context, r CommissionRate) error
	GetRate(ctx context.Context, id RateID) (*CommissionRate, error)
	ListRates(ctx context.Context) ([]CommissionRate, error)
	DeleteRate(ctx context.Context, id RateID) error
}

// =============================================================================
// TARGETS AND ALLOCATIONS
// =============================================================================

type TargetStore interface {
	SaveTarget(ctx context.Context, t MonthlyTarget) error
	GetTarget(ctx context.Context, id TargetID) (*MonthlyTarget, error)
	FindTarget(ctx context.Context, branchID BranchID, ym YearMonth) (*MonthlyTarget, error)

	// ListTargets returns every target of a month, ordered by branch.
	ListTargets(ctx context.Context, ym YearMonth) ([]MonthlyTarget, error)

	// DeleteTarget removes the target and all of its allocations.
	DeleteTarget(ctx context.Context, id TargetID) error
}

type AllocationStore interface {
	// ListAllocations returns a target's allocations ordered by date.
	ListAllocations(ctx context.Context, targetID TargetID) ([]DailyAllocation, error)
	GetAllocation(ctx context.Context, id AllocationID) (*DailyAllocation, error)
	SaveAllocation(ctx context.Context, a DailyAllocation) error
	ReplaceAllocations(ctx context.Context, targetID TargetID, allocations []DailyAllocation) error
}

// =============================================================================
// PAYOUTS
// =============================================================================

type AwardFilter struct {
	BranchID  BranchID
	CashierID CashierID
	Status    PayoutStatus
	Period    *DateRange // awards whose period starts inside this range
}

type AwardStore interface {
	SaveAward(ctx context.Context, a IncentiveAward) error
	GetAward(ctx context.Context, id AwardID) (*IncentiveAward, error)
	ListAwards(ctx context.Context, f AwardFilter) ([]IncentiveAward, error)
}

type CalculationFilter struct {
	BranchID  BranchID
	CashierID CashierID
	Status    PayoutStatus
	Period    *DateRange
}

type CalculationStore interface {
	SaveCalculation(ctx context.Context, c CommissionCalculation) error
	GetCalculation(ctx context.Context, id CalculationID) (*CommissionCalculation, error)
	ListCalculations(ctx context.Context, f CalculationFilter) ([]CommissionCalculation, error)
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

type SnapshotStore interface {
	// UpsertSnapshot overwrites the row for (BranchID, SalesDate) or inserts it.
	UpsertSnapshot(ctx context.Context, s BranchDailySales) error
	GetSnapshot(ctx context.Context, branchID BranchID, date Date) (*BranchDailySales, error)
	ListSnapshots(ctx context.Context, branchID BranchID, r DateRange) ([]BranchDailySales, error)
}

// =============================================================================
// AGGREGATE STORE
// =============================================================================

// Store is every engine-owned record set.
type Store interface {
	ProfileStore
	TierStore
	RateStore
	TargetStore
	AllocationStore
	AwardStore
	CalculationStore
	SnapshotStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
