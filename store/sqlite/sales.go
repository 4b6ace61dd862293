package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/ovenline/sales-targets/model"
	"github.com/ovenline/sales-targets/sales"
)

// =============================================================================
// SALES FACTS (sales.Adapter interface)
// =============================================================================

const factColumns = `id, branch_id, cashier_id, sales_date, shift, total_sales, transaction_count, status`

// SaveFact records a journal; a fact with an existing id replaces the old one.
// The journal subsystem owns these rows. This entry point exists for seeding
// and for the ingest endpoint.
func (s *Store) SaveFact(ctx context.Context, f model.SalesFact) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sales_facts (`+factColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			branch_id = excluded.branch_id,
			cashier_id = excluded.cashier_id,
			sales_date = excluded.sales_date,
			shift = excluded.shift,
			total_sales = excluded.total_sales,
			transaction_count = excluded.transaction_count,
			status = excluded.status
	`, f.ID, f.BranchID, f.CashierID, f.Date.String(), f.Shift, f.TotalSales, f.TransactionCount, f.Status)
	return err
}

func (s *Store) Facts(ctx context.Context, q sales.Query) ([]model.SalesFact, error) {
	conds := []string{"sales_date >= ?", "sales_date <= ?"}
	args := []any{q.Range.From.String(), q.Range.To.String()}
	if q.BranchID != "" {
		conds = append(conds, "branch_id = ?")
		args = append(args, q.BranchID)
	}
	if q.CashierID != "" {
		conds = append(conds, "cashier_id = ?")
		args = append(args, q.CashierID)
	}
	statuses := q.Statuses
	if len(statuses) == 0 {
		statuses = sales.EligibleStatuses
	}
	marks := make([]string, len(statuses))
	for i, st := range statuses {
		marks[i] = "?"
		args = append(args, st)
	}
	conds = append(conds, "status IN ("+strings.Join(marks, ", ")+")")

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+factColumns+` FROM sales_facts`+where(conds)+` ORDER BY sales_date, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SalesFact
	for rows.Next() {
		var (
			f    model.SalesFact
			date string
		)
		if err := rows.Scan(&f.ID, &f.BranchID, &f.CashierID, &date, &f.Shift, &f.TotalSales, &f.TransactionCount, &f.Status); err != nil {
			return nil, err
		}
		f.Date = parseDate(date)
		out = append(out, f)
	}
	return out, rows.Err()
}

// =============================================================================
// DIRECTORY (sales.Directory interface)
// =============================================================================

func (s *Store) SaveBranch(ctx context.Context, b model.Branch) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO branches (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, b.ID, b.Name)
	return err
}

func (s *Store) SaveCashier(ctx context.Context, c model.Cashier) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cashiers (id, branch_id, name) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET branch_id = excluded.branch_id, name = excluded.name
	`, c.ID, c.BranchID, c.Name)
	return err
}

func (s *Store) ListBranches(ctx context.Context) ([]model.Branch, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM branches ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Branch
	for rows.Next() {
		var b model.Branch
		if err := rows.Scan(&b.ID, &b.Name); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) GetBranch(ctx context.Context, id model.BranchID) (*model.Branch, error) {
	var b model.Branch
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM branches WHERE id = ?`, id).Scan(&b.ID, &b.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListCashiers returns every cashier when branchID is empty.
func (s *Store) ListCashiers(ctx context.Context, branchID model.BranchID) ([]model.Cashier, error) {
	query := `SELECT id, branch_id, name FROM cashiers`
	var args []any
	if branchID != "" {
		query += ` WHERE branch_id = ?`
		args = append(args, branchID)
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Cashier
	for rows.Next() {
		var c model.Cashier
		if err := rows.Scan(&c.ID, &c.BranchID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetCashier(ctx context.Context, id model.CashierID) (*model.Cashier, error) {
	var c model.Cashier
	err := s.db.QueryRowContext(ctx, `SELECT id, branch_id, name FROM cashiers WHERE id = ?`, id).
		Scan(&c.ID, &c.BranchID, &c.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
