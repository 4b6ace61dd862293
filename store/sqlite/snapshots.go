package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ovenline/sales-targets/model"
)

// =============================================================================
// DAILY SALES SNAPSHOTS (model.SnapshotStore interface)
// =============================================================================

const snapshotColumns = `branch_id, sales_date, total_sales, transactions_count, average_ticket,
	cashier_count, morning_sales, evening_sales, night_sales, target_amount, achievement_amount,
	achievement_percent, source_fact_ids_json, computed_at`

// UpsertSnapshot overwrites every column; snapshots are never merged.
func (q *queries) UpsertSnapshot(ctx context.Context, s model.BranchDailySales) error {
	factIDs, err := encodeFactIDs(s.SourceFactIDs)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO branch_daily_sales (`+snapshotColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(branch_id, sales_date) DO UPDATE SET
			total_sales = excluded.total_sales,
			transactions_count = excluded.transactions_count,
			average_ticket = excluded.average_ticket,
			cashier_count = excluded.cashier_count,
			morning_sales = excluded.morning_sales,
			evening_sales = excluded.evening_sales,
			night_sales = excluded.night_sales,
			target_amount = excluded.target_amount,
			achievement_amount = excluded.achievement_amount,
			achievement_percent = excluded.achievement_percent,
			source_fact_ids_json = excluded.source_fact_ids_json,
			computed_at = excluded.computed_at
	`, s.BranchID, s.SalesDate.String(), s.TotalSales, s.TransactionsCount, s.AverageTicket,
		s.CashierCount, s.MorningSales, s.EveningSales, s.NightSales, s.TargetAmount,
		s.AchievementAmount, s.AchievementPercent, factIDs, formatTime(s.ComputedAt))
	return err
}

func (q *queries) GetSnapshot(ctx context.Context, branchID model.BranchID, date model.Date) (*model.BranchDailySales, error) {
	s, err := scanSnapshot(q.db.QueryRowContext(ctx, `
		SELECT `+snapshotColumns+` FROM branch_daily_sales WHERE branch_id = ? AND sales_date = ?
	`, branchID, date.String()))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

func (q *queries) ListSnapshots(ctx context.Context, branchID model.BranchID, r model.DateRange) ([]model.BranchDailySales, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+snapshotColumns+` FROM branch_daily_sales
		WHERE branch_id = ? AND sales_date >= ? AND sales_date <= ?
		ORDER BY sales_date
	`, branchID, r.From.String(), r.To.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BranchDailySales
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func scanSnapshot(sc scanner) (*model.BranchDailySales, error) {
	var (
		s                   model.BranchDailySales
		date, factIDs, comp string
	)
	err := sc.Scan(&s.BranchID, &date, &s.TotalSales, &s.TransactionsCount, &s.AverageTicket,
		&s.CashierCount, &s.MorningSales, &s.EveningSales, &s.NightSales, &s.TargetAmount,
		&s.AchievementAmount, &s.AchievementPercent, &factIDs, &comp)
	if err != nil {
		return nil, err
	}
	if s.SourceFactIDs, err = decodeFactIDs(factIDs); err != nil {
		return nil, fmt.Errorf("snapshot %s/%s: %w", s.BranchID, date, err)
	}
	s.SalesDate = parseDate(date)
	s.ComputedAt = parseTime(comp)
	return &s, nil
}
