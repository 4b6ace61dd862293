/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every engine persistence contract (model.TxStore) plus the
  sales read model (sales.Adapter, sales.Directory) using SQLite. In
  production the same patterns apply to PostgreSQL with minor SQL dialect
  differences.

INTERFACES IMPLEMENTED:
  model.TxStore:    profiles, targets, allocations, tiers, rates, awards,
                    commission calculations, daily sales snapshots
  sales.Adapter:    posted journal facts
  sales.Directory:  branches and cashiers

KEY TABLES:
  weight_profiles:         Weekday weights; partial unique index keeps one default
  monthly_targets:         UNIQUE(branch_id, year_month)
  daily_allocations:       Children of a target, ON DELETE CASCADE
  incentive_tiers / commission_rates: Reference brackets
  incentive_awards / commission_calculations: Payout records
  branch_daily_sales:      Snapshot cache, PRIMARY KEY(branch_id, sales_date)
  sales_facts, branches, cashiers: Read model fed by the journal subsystem

NUMBERS AND TIMES:
  Decimals are stored as TEXT so no precision is lost. Dates are YYYY-MM-DD;
  timestamps use a fixed-width UTC layout so they sort as text.

CONCURRENCY:
  WithTx serializes write transactions with a mutex. Plain reads go straight
  to the pool. An in-memory database is limited to one connection, since
  every new connection would open a fresh empty database.

USAGE:
  store, err := sqlite.New("./data/targets.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - model/store.go: Interface definitions
  - model/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/ovenline/sales-targets/model"
	"github.com/ovenline/sales-targets/sales"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	queries
	db *sql.DB
	mu sync.Mutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{queries: queries{db: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Weight profiles
	CREATE TABLE IF NOT EXISTS weight_profiles (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		weights_json TEXT NOT NULL,
		is_default INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	-- At most one default profile
	CREATE UNIQUE INDEX IF NOT EXISTS idx_weight_profiles_default
		ON weight_profiles(is_default) WHERE is_default = 1;

	-- Monthly targets
	CREATE TABLE IF NOT EXISTS monthly_targets (
		id TEXT PRIMARY KEY,
		branch_id TEXT NOT NULL,
		year_month TEXT NOT NULL,
		target_amount TEXT NOT NULL,
		profile_id TEXT,
		status TEXT NOT NULL DEFAULT 'draft',
		notes TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT '',
		allocation_version INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(branch_id, year_month)
	);

	CREATE INDEX IF NOT EXISTS idx_monthly_targets_month
		ON monthly_targets(year_month);

	-- Daily allocations (owned by a target)
	CREATE TABLE IF NOT EXISTS daily_allocations (
		id TEXT PRIMARY KEY,
		target_id TEXT NOT NULL REFERENCES monthly_targets(id) ON DELETE CASCADE,
		target_date TEXT NOT NULL,
		weight_percent TEXT NOT NULL,
		daily_target TEXT NOT NULL,
		is_holiday INTEGER NOT NULL DEFAULT 0,
		is_manual_override INTEGER NOT NULL DEFAULT 0,
		override_reason TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(target_id, target_date)
	);

	-- Incentive tiers
	CREATE TABLE IF NOT EXISTS incentive_tiers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		min_achievement_percent TEXT NOT NULL,
		max_achievement_percent TEXT,
		reward_type TEXT NOT NULL,
		fixed_amount TEXT NOT NULL,
		percentage_rate TEXT NOT NULL,
		applicable_to TEXT NOT NULL,
		sort_order INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	-- Incentive awards
	CREATE TABLE IF NOT EXISTS incentive_awards (
		id TEXT PRIMARY KEY,
		scope TEXT NOT NULL,
		branch_id TEXT NOT NULL,
		cashier_id TEXT NOT NULL DEFAULT '',
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		target_amount TEXT NOT NULL,
		achieved_amount TEXT NOT NULL,
		achievement_percent TEXT NOT NULL,
		tier_id TEXT NOT NULL DEFAULT '',
		calculated_reward TEXT NOT NULL,
		final_reward TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		approved_by TEXT NOT NULL DEFAULT '',
		approved_at TEXT,
		paid_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_incentive_awards_branch
		ON incentive_awards(branch_id, period_start);
	CREATE INDEX IF NOT EXISTS idx_incentive_awards_status
		ON incentive_awards(status);

	-- Commission rates
	CREATE TABLE IF NOT EXISTS commission_rates (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		min_sales_amount TEXT NOT NULL,
		max_sales_amount TEXT,
		commission_type TEXT NOT NULL,
		fixed_amount TEXT NOT NULL,
		percentage_rate TEXT NOT NULL,
		applicable_to TEXT NOT NULL,
		valid_from TEXT,
		valid_to TEXT,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	-- Commission calculations
	CREATE TABLE IF NOT EXISTS commission_calculations (
		id TEXT PRIMARY KEY,
		scope TEXT NOT NULL,
		cashier_id TEXT NOT NULL DEFAULT '',
		branch_id TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		total_sales TEXT NOT NULL,
		rate_id TEXT NOT NULL,
		calculated_commission TEXT NOT NULL,
		final_commission TEXT NOT NULL,
		achievement_percent TEXT NOT NULL,
		source_fact_ids_json TEXT NOT NULL DEFAULT '[]',
		status TEXT NOT NULL,
		approved_by TEXT NOT NULL DEFAULT '',
		approved_at TEXT,
		paid_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_commission_calculations_cashier
		ON commission_calculations(cashier_id, period_start);
	CREATE INDEX IF NOT EXISTS idx_commission_calculations_branch
		ON commission_calculations(branch_id, period_start);

	-- Daily sales snapshot cache
	CREATE TABLE IF NOT EXISTS branch_daily_sales (
		branch_id TEXT NOT NULL,
		sales_date TEXT NOT NULL,
		total_sales TEXT NOT NULL,
		transactions_count INTEGER NOT NULL,
		average_ticket TEXT NOT NULL,
		cashier_count INTEGER NOT NULL,
		morning_sales TEXT NOT NULL,
		evening_sales TEXT NOT NULL,
		night_sales TEXT NOT NULL,
		target_amount TEXT NOT NULL,
		achievement_amount TEXT NOT NULL,
		achievement_percent TEXT NOT NULL,
		source_fact_ids_json TEXT NOT NULL DEFAULT '[]',
		computed_at TEXT NOT NULL,
		PRIMARY KEY (branch_id, sales_date)
	);

	-- Read model fed by the journal subsystem
	CREATE TABLE IF NOT EXISTS branches (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cashiers (
		id TEXT PRIMARY KEY,
		branch_id TEXT NOT NULL,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sales_facts (
		id TEXT PRIMARY KEY,
		branch_id TEXT NOT NULL,
		cashier_id TEXT NOT NULL,
		sales_date TEXT NOT NULL,
		shift TEXT NOT NULL,
		total_sales TEXT NOT NULL,
		transaction_count INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL
	);

	-- Hot paths: branch month scans and cashier period scans
	CREATE INDEX IF NOT EXISTS idx_sales_facts_branch_date
		ON sales_facts(branch_id, sales_date);
	CREATE INDEX IF NOT EXISTS idx_sales_facts_cashier_date
		ON sales_facts(cashier_id, sales_date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (model.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store model.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{db: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// ReplaceAllocations runs the delete-then-insert swap in its own transaction
// when called outside WithTx.
func (s *Store) ReplaceAllocations(ctx context.Context, targetID model.TargetID, allocations []model.DailyAllocation) error {
	return s.WithTx(ctx, func(tx model.Store) error {
		return tx.ReplaceAllocations(ctx, targetID, allocations)
	})
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"daily_allocations", "monthly_targets", "weight_profiles", "incentive_tiers",
		"incentive_awards", "commission_rates", "commission_calculations",
		"branch_daily_sales", "sales_facts", "cashiers", "branches",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

var (
	_ model.TxStore   = (*Store)(nil)
	_ model.Store     = (*queries)(nil)
	_ sales.Adapter   = (*Store)(nil)
	_ sales.Directory = (*Store)(nil)
)

// =============================================================================
// QUERIES - shared by the pool and by open transactions
// =============================================================================

// conn is satisfied by both *sql.DB and *sql.Tx.
type conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db conn
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// =============================================================================
// HELPERS
// =============================================================================

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func parseDate(s string) model.Date {
	d, _ := model.ParseDate(s)
	return d
}

func formatDatePtr(d *model.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseDatePtr(s sql.NullString) *model.Date {
	if !s.Valid || s.String == "" {
		return nil
	}
	d := parseDate(s.String)
	return &d
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

// where joins non-empty conditions into a WHERE clause.
func where(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}
