package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ovenline/sales-targets/model"
)

// =============================================================================
// INCENTIVE AWARDS (model.AwardStore interface)
// =============================================================================

const awardColumns = `id, scope, branch_id, cashier_id, period_start, period_end, target_amount,
	achieved_amount, achievement_percent, tier_id, calculated_reward, final_reward, notes,
	status, approved_by, approved_at, paid_at, created_at`

func (q *queries) SaveAward(ctx context.Context, a model.IncentiveAward) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO incentive_awards (`+awardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			final_reward = excluded.final_reward,
			notes = excluded.notes,
			status = excluded.status,
			approved_by = excluded.approved_by,
			approved_at = excluded.approved_at,
			paid_at = excluded.paid_at
	`, a.ID, a.Scope, a.BranchID, a.CashierID, a.Period.From.String(), a.Period.To.String(),
		a.TargetAmount, a.AchievedAmount, a.AchievementPercent, a.TierID, a.CalculatedReward,
		a.FinalReward, a.Notes, a.Status, a.ApprovedBy, formatTimePtr(a.ApprovedAt),
		formatTimePtr(a.PaidAt), formatTime(a.CreatedAt))
	return err
}

func (q *queries) GetAward(ctx context.Context, id model.AwardID) (*model.IncentiveAward, error) {
	a, err := scanAward(q.db.QueryRowContext(ctx, `SELECT `+awardColumns+` FROM incentive_awards WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

func (q *queries) ListAwards(ctx context.Context, f model.AwardFilter) ([]model.IncentiveAward, error) {
	conds, args := payoutFilter(f.BranchID, f.CashierID, f.Status, f.Period)
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+awardColumns+` FROM incentive_awards`+where(conds)+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.IncentiveAward
	for rows.Next() {
		a, err := scanAward(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func scanAward(s scanner) (*model.IncentiveAward, error) {
	var (
		a                  model.IncentiveAward
		from, to           string
		approvedAt, paidAt sql.NullString
		createdAt          string
	)
	err := s.Scan(&a.ID, &a.Scope, &a.BranchID, &a.CashierID, &from, &to, &a.TargetAmount,
		&a.AchievedAmount, &a.AchievementPercent, &a.TierID, &a.CalculatedReward, &a.FinalReward,
		&a.Notes, &a.Status, &a.ApprovedBy, &approvedAt, &paidAt, &createdAt)
	if err != nil {
		return nil, err
	}
	a.Period = model.DateRange{From: parseDate(from), To: parseDate(to)}
	a.ApprovedAt = parseTimePtr(approvedAt)
	a.PaidAt = parseTimePtr(paidAt)
	a.CreatedAt = parseTime(createdAt)
	return &a, nil
}

// =============================================================================
// COMMISSION CALCULATIONS (model.CalculationStore interface)
// =============================================================================

const calculationColumns = `id, scope, cashier_id, branch_id, period_start, period_end, total_sales,
	rate_id, calculated_commission, final_commission, achievement_percent, source_fact_ids_json,
	status, approved_by, approved_at, paid_at, created_at`

func (q *queries) SaveCalculation(ctx context.Context, c model.CommissionCalculation) error {
	factIDs, err := encodeFactIDs(c.SourceFactIDs)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO commission_calculations (`+calculationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			final_commission = excluded.final_commission,
			status = excluded.status,
			approved_by = excluded.approved_by,
			approved_at = excluded.approved_at,
			paid_at = excluded.paid_at
	`, c.ID, c.Scope, c.CashierID, c.BranchID, c.Period.From.String(), c.Period.To.String(),
		c.TotalSales, c.RateID, c.CalculatedCommission, c.FinalCommission, c.AchievementPercent,
		factIDs, c.Status, c.ApprovedBy, formatTimePtr(c.ApprovedAt), formatTimePtr(c.PaidAt),
		formatTime(c.CreatedAt))
	return err
}

func (q *queries) GetCalculation(ctx context.Context, id model.CalculationID) (*model.CommissionCalculation, error) {
	c, err := scanCalculation(q.db.QueryRowContext(ctx,
		`SELECT `+calculationColumns+` FROM commission_calculations WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func (q *queries) ListCalculations(ctx context.Context, f model.CalculationFilter) ([]model.CommissionCalculation, error) {
	conds, args := payoutFilter(f.BranchID, f.CashierID, f.Status, f.Period)
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+calculationColumns+` FROM commission_calculations`+where(conds)+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CommissionCalculation
	for rows.Next() {
		c, err := scanCalculation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanCalculation(s scanner) (*model.CommissionCalculation, error) {
	var (
		c                  model.CommissionCalculation
		from, to           string
		factIDs            string
		approvedAt, paidAt sql.NullString
		createdAt          string
	)
	err := s.Scan(&c.ID, &c.Scope, &c.CashierID, &c.BranchID, &from, &to, &c.TotalSales,
		&c.RateID, &c.CalculatedCommission, &c.FinalCommission, &c.AchievementPercent, &factIDs,
		&c.Status, &c.ApprovedBy, &approvedAt, &paidAt, &createdAt)
	if err != nil {
		return nil, err
	}
	if c.SourceFactIDs, err = decodeFactIDs(factIDs); err != nil {
		return nil, fmt.Errorf("calculation %s: %w", c.ID, err)
	}
	c.Period = model.DateRange{From: parseDate(from), To: parseDate(to)}
	c.ApprovedAt = parseTimePtr(approvedAt)
	c.PaidAt = parseTimePtr(paidAt)
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

// =============================================================================
// SHARED
// =============================================================================

// payoutFilter builds the WHERE conditions shared by awards and calculations.
// A period matches payouts whose period starts inside it.
func payoutFilter(branchID model.BranchID, cashierID model.CashierID, status model.PayoutStatus, period *model.DateRange) ([]string, []any) {
	var (
		conds []string
		args  []any
	)
	if branchID != "" {
		conds = append(conds, "branch_id = ?")
		args = append(args, branchID)
	}
	if cashierID != "" {
		conds = append(conds, "cashier_id = ?")
		args = append(args, cashierID)
	}
	if status != "" {
		conds = append(conds, "status = ?")
		args = append(args, status)
	}
	if period != nil {
		conds = append(conds, "period_start >= ? AND period_start <= ?")
		args = append(args, period.From.String(), period.To.String())
	}
	return conds, args
}

func encodeFactIDs(ids []model.FactID) (string, error) {
	if ids == nil {
		ids = []model.FactID{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("failed to encode source facts: %w", err)
	}
	return string(b), nil
}

func decodeFactIDs(s string) ([]model.FactID, error) {
	var ids []model.FactID
	if s == "" {
		return ids, nil
	}
	if err := json.Unmarshal([]byte(s), &ids); err != nil {
		return nil, fmt.Errorf("failed to decode source facts: %w", err)
	}
	return ids, nil
}
