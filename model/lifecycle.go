package model

import "time"

// =============================================================================
// PAYOUT LIFECYCLE - pending -> approved -> paid, no skips, no reversal
// =============================================================================

type PayoutStatus string

const (
	PayoutPending  PayoutStatus = "pending"
	PayoutApproved PayoutStatus = "approved"
	PayoutPaid     PayoutStatus = "paid"
)

// next is the only legal successor of each status.
var next = map[PayoutStatus]PayoutStatus{
	PayoutPending:  PayoutApproved,
	PayoutApproved: PayoutPaid,
}

// CanTransitionTo reports whether to is the immediate successor of s.
func (s PayoutStatus) CanTransitionTo(to PayoutStatus) bool {
	succ, ok := next[s]
	return ok && succ == to
}

// Payout is embedded by awards and commission calculations.
type Payout struct {
	Status     PayoutStatus
	ApprovedBy string
	ApprovedAt *time.Time
	PaidAt     *time.Time
}

// NewPayout starts a payout in pending.
func NewPayout() Payout { return Payout{Status: PayoutPending} }

// Approve stamps the approver and time.
func (p *Payout) Approve(by string, at time.Time) error {
	if by == "" {
		return &InputError{Field: "approvedBy", Reason: "approver is required"}
	}
	if !p.Status.CanTransitionTo(PayoutApproved) {
		return &TransitionError{From: p.Status, To: PayoutApproved}
	}
	p.Status = PayoutApproved
	p.ApprovedBy = by
	p.ApprovedAt = &at
	return nil
}

// Pay stamps the payment time.
func (p *Payout) Pay(at time.Time) error {
	if !p.Status.CanTransitionTo(PayoutPaid) {
		return &TransitionError{From: p.Status, To: PayoutPaid}
	}
	p.Status = PayoutPaid
	p.PaidAt = &at
	return nil
}

// Editable reports whether final amounts may still be adjusted.
func (p Payout) Editable() bool { return p.Status == PayoutPending }
