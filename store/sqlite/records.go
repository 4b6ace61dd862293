package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ovenline/sales-targets/model"
	"github.com/shopspring/decimal"
)

// =============================================================================
// WEIGHT PROFILES (model.ProfileStore interface)
// =============================================================================

const profileColumns = `id, name, description, weights_json, is_default, created_at`

func (q *queries) SaveProfile(ctx context.Context, p model.WeightProfile) error {
	weights, err := json.Marshal(p.Weights)
	if err != nil {
		return fmt.Errorf("failed to encode weights: %w", err)
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO weight_profiles (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			weights_json = excluded.weights_json,
			is_default = excluded.is_default
	`, p.ID, p.Name, p.Description, string(weights), p.IsDefault, formatTime(p.CreatedAt))
	return err
}

func (q *queries) GetProfile(ctx context.Context, id model.ProfileID) (*model.WeightProfile, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM weight_profiles WHERE id = ?`, id)
	return scanProfileRow(row)
}

func (q *queries) GetDefaultProfile(ctx context.Context) (*model.WeightProfile, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM weight_profiles WHERE is_default = 1 LIMIT 1`)
	return scanProfileRow(row)
}

func (q *queries) ListProfiles(ctx context.Context) ([]model.WeightProfile, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+profileColumns+` FROM weight_profiles ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WeightProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (q *queries) ClearDefaultProfile(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `UPDATE weight_profiles SET is_default = 0 WHERE is_default = 1`)
	return err
}

func scanProfileRow(row *sql.Row) (*model.WeightProfile, error) {
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func scanProfile(s scanner) (*model.WeightProfile, error) {
	var (
		p         model.WeightProfile
		weights   string
		createdAt string
	)
	if err := s.Scan(&p.ID, &p.Name, &p.Description, &weights, &p.IsDefault, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(weights), &p.Weights); err != nil {
		return nil, fmt.Errorf("failed to decode weights of profile %s: %w", p.ID, err)
	}
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

// =============================================================================
// INCENTIVE TIERS (model.TierStore interface)
// =============================================================================

const tierColumns = `id, name, min_achievement_percent, max_achievement_percent, reward_type,
	fixed_amount, percentage_rate, applicable_to, sort_order, is_active`

func (q *queries) SaveTier(ctx context.Context, t model.IncentiveTier) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO incentive_tiers (`+tierColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			min_achievement_percent = excluded.min_achievement_percent,
			max_achievement_percent = excluded.max_achievement_percent,
			reward_type = excluded.reward_type,
			fixed_amount = excluded.fixed_amount,
			percentage_rate = excluded.percentage_rate,
			applicable_to = excluded.applicable_to,
			sort_order = excluded.sort_order,
			is_active = excluded.is_active
	`, t.ID, t.Name, t.MinAchievementPercent, nullDecimal(t.MaxAchievementPercent), t.RewardType,
		t.FixedAmount, t.PercentageRate, t.ApplicableTo, t.SortOrder, t.IsActive)
	return err
}

func (q *queries) GetTier(ctx context.Context, id model.TierID) (*model.IncentiveTier, error) {
	t, err := scanTier(q.db.QueryRowContext(ctx, `SELECT `+tierColumns+` FROM incentive_tiers WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

func (q *queries) ListTiers(ctx context.Context) ([]model.IncentiveTier, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+tierColumns+` FROM incentive_tiers ORDER BY sort_order, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.IncentiveTier
	for rows.Next() {
		t, err := scanTier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (q *queries) DeleteTier(ctx context.Context, id model.TierID) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM incentive_tiers WHERE id = ?`, id)
	return err
}

func scanTier(s scanner) (*model.IncentiveTier, error) {
	var (
		t     model.IncentiveTier
		upper decimal.NullDecimal
	)
	err := s.Scan(&t.ID, &t.Name, &t.MinAchievementPercent, &upper, &t.RewardType,
		&t.FixedAmount, &t.PercentageRate, &t.ApplicableTo, &t.SortOrder, &t.IsActive)
	if err != nil {
		return nil, err
	}
	t.MaxAchievementPercent = decimalPtr(upper)
	return &t, nil
}

// =============================================================================
// COMMISSION RATES (model.RateStore interface)
// =============================================================================

const rateColumns = `id, name, min_sales_amount, max_sales_amount, commission_type,
	fixed_amount, percentage_rate, applicable_to, valid_from, valid_to, is_active`

func (q *queries) SaveRate(ctx context.Context, r model.CommissionRate) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO commission_rates (`+rateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			min_sales_amount = excluded.min_sales_amount,
			max_sales_amount = excluded.max_sales_amount,
			commission_type = excluded.commission_type,
			fixed_amount = excluded.fixed_amount,
			percentage_rate = excluded.percentage_rate,
			applicable_to = excluded.applicable_to,
			valid_from = excluded.valid_from,
			valid_to = excluded.valid_to,
			is_active = excluded.is_active
	`, r.ID, r.Name, r.MinSalesAmount, nullDecimal(r.MaxSalesAmount), r.CommissionType,
		r.FixedAmount, r.PercentageRate, r.ApplicableTo,
		formatDatePtr(r.ValidFrom), formatDatePtr(r.ValidTo), r.IsActive)
	return err
}

func (q *queries) GetRate(ctx context.Context, id model.RateID) (*model.CommissionRate, error) {
	r, err := scanRate(q.db.QueryRowContext(ctx, `SELECT `+rateColumns+` FROM commission_rates WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

func (q *queries) ListRates(ctx context.Context) ([]model.CommissionRate, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+rateColumns+` FROM commission_rates
		ORDER BY CAST(min_sales_amount AS REAL), id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CommissionRate
	for rows.Next() {
		r, err := scanRate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (q *queries) DeleteRate(ctx context.Context, id model.RateID) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM commission_rates WHERE id = ?`, id)
	return err
}

func scanRate(s scanner) (*model.CommissionRate, error) {
	var (
		r                  model.CommissionRate
		upper              decimal.NullDecimal
		validFrom, validTo sql.NullString
	)
	err := s.Scan(&r.ID, &r.Name, &r.MinSalesAmount, &upper, &r.CommissionType,
		&r.FixedAmount, &r.PercentageRate, &r.ApplicableTo, &validFrom, &validTo, &r.IsActive)
	if err != nil {
		return nil, err
	}
	r.MaxSalesAmount = decimalPtr(upper)
	r.ValidFrom = parseDatePtr(validFrom)
	r.ValidTo = parseDatePtr(validTo)
	return &r, nil
}

// =============================================================================
// MONTHLY TARGETS (model.TargetStore interface)
// =============================================================================

const targetColumns = `id, branch_id, year_month, target_amount, profile_id, status, notes,
	created_by, allocation_version, created_at, updated_at`

func (q *queries) SaveTarget(ctx context.Context, t model.MonthlyTarget) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO monthly_targets (`+targetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			branch_id = excluded.branch_id,
			year_month = excluded.year_month,
			target_amount = excluded.target_amount,
			profile_id = excluded.profile_id,
			status = excluded.status,
			notes = excluded.notes,
			allocation_version = excluded.allocation_version,
			updated_at = excluded.updated_at
	`, t.ID, t.BranchID, t.YearMonth.String(), t.TargetAmount, nullString(string(t.ProfileID)),
		t.Status, t.Notes, t.CreatedBy, t.AllocationVersion, formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if isUniqueConstraintError(err) {
		return fmt.Errorf("branch %s already has a target for %s: %w", t.BranchID, t.YearMonth, model.ErrDuplicate)
	}
	return err
}

func (q *queries) GetTarget(ctx context.Context, id model.TargetID) (*model.MonthlyTarget, error) {
	t, err := scanTarget(q.db.QueryRowContext(ctx, `SELECT `+targetColumns+` FROM monthly_targets WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

func (q *queries) FindTarget(ctx context.Context, branchID model.BranchID, ym model.YearMonth) (*model.MonthlyTarget, error) {
	t, err := scanTarget(q.db.QueryRowContext(ctx, `
		SELECT `+targetColumns+` FROM monthly_targets WHERE branch_id = ? AND year_month = ?
	`, branchID, ym.String()))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

func (q *queries) ListTargets(ctx context.Context, ym model.YearMonth) ([]model.MonthlyTarget, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+targetColumns+` FROM monthly_targets WHERE year_month = ? ORDER BY branch_id
	`, ym.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MonthlyTarget
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// DeleteTarget relies on ON DELETE CASCADE for the allocations.
func (q *queries) DeleteTarget(ctx context.Context, id model.TargetID) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM monthly_targets WHERE id = ?`, id)
	return err
}

func scanTarget(s scanner) (*model.MonthlyTarget, error) {
	var (
		t                    model.MonthlyTarget
		ym                   string
		profileID            sql.NullString
		createdAt, updatedAt string
	)
	err := s.Scan(&t.ID, &t.BranchID, &ym, &t.TargetAmount, &profileID, &t.Status, &t.Notes,
		&t.CreatedBy, &t.AllocationVersion, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	parsed, err := model.ParseYearMonth(ym)
	if err != nil {
		return nil, fmt.Errorf("target %s: %w", t.ID, err)
	}
	t.YearMonth = parsed
	t.ProfileID = model.ProfileID(profileID.String)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}

// =============================================================================
// DAILY ALLOCATIONS (model.AllocationStore interface)
// =============================================================================

const allocationColumns = `id, target_id, target_date, weight_percent, daily_target, is_holiday,
	is_manual_override, override_reason, version, updated_at`

func (q *queries) ListAllocations(ctx context.Context, targetID model.TargetID) ([]model.DailyAllocation, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+allocationColumns+` FROM daily_allocations WHERE target_id = ? ORDER BY target_date
	`, targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.DailyAllocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (q *queries) GetAllocation(ctx context.Context, id model.AllocationID) (*model.DailyAllocation, error) {
	a, err := scanAllocation(q.db.QueryRowContext(ctx, `SELECT `+allocationColumns+` FROM daily_allocations WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

func (q *queries) SaveAllocation(ctx context.Context, a model.DailyAllocation) error {
	return q.insertAllocation(ctx, a, true)
}

// ReplaceAllocations deletes and reinserts. Atomicity comes from the
// surrounding transaction; see Store.ReplaceAllocations.
func (q *queries) ReplaceAllocations(ctx context.Context, targetID model.TargetID, allocations []model.DailyAllocation) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM daily_allocations WHERE target_id = ?`, targetID); err != nil {
		return fmt.Errorf("failed to clear allocations: %w", err)
	}
	for _, a := range allocations {
		a.TargetID = targetID
		if err := q.insertAllocation(ctx, a, false); err != nil {
			return fmt.Errorf("failed to insert allocation for %s: %w", a.TargetDate, err)
		}
	}
	return nil
}

func (q *queries) insertAllocation(ctx context.Context, a model.DailyAllocation, upsert bool) error {
	query := `
		INSERT INTO daily_allocations (` + allocationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if upsert {
		query += `
		ON CONFLICT(id) DO UPDATE SET
			weight_percent = excluded.weight_percent,
			daily_target = excluded.daily_target,
			is_holiday = excluded.is_holiday,
			is_manual_override = excluded.is_manual_override,
			override_reason = excluded.override_reason,
			version = excluded.version,
			updated_at = excluded.updated_at`
	}
	_, err := q.db.ExecContext(ctx, query,
		a.ID, a.TargetID, a.TargetDate.String(), a.WeightPercent, a.DailyTarget, a.IsHoliday,
		a.IsManualOverride, a.OverrideReason, a.Version, formatTime(a.UpdatedAt))
	return err
}

func scanAllocation(s scanner) (*model.DailyAllocation, error) {
	var (
		a               model.DailyAllocation
		date, updatedAt string
	)
	err := s.Scan(&a.ID, &a.TargetID, &date, &a.WeightPercent, &a.DailyTarget, &a.IsHoliday,
		&a.IsManualOverride, &a.OverrideReason, &a.Version, &updatedAt)
	if err != nil {
		return nil, err
	}
	a.TargetDate = parseDate(date)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}

// =============================================================================
// DECIMAL HELPERS
// =============================================================================

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func decimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}
