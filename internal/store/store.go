// Package store provides the local SQLite store for synchronized records.
//
// The database runs embedded (ncruces/go-sqlite3) with WAL mode so readers
// are never blocked by a sync round's writes. Three collections live here:
// expenses, per-week budget overrides, and the default-budget singleton
// (kept in the metadata table alongside the last-sync timestamp).
//
// The sync engine only ever mutates collections through the Replace*
// methods, each of which swaps an entire collection inside one
// transaction. Readers outside a sync round can therefore never observe a
// partially replaced collection.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/seihin-app/seihin/internal/record"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Metadata keys.
const (
	metaLastSync                   = "lastSync"
	metaDefaultWeekBudget          = "defaultWeekBudget"
	metaDefaultWeekBudgetUpdatedAt = "defaultWeekBudgetUpdatedAt"
)

// Store wraps the SQLite connection with record-collection operations.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates a database connection at the specified path.
//
// The parent directory is created if needed. The caller MUST call Close()
// when done.
//
// Example:
//
//	st, err := store.Open("~/.local/share/seihin/seihin.db")
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	st := &Store{conn: conn, path: path}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := st.conn.Exec(pragma); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return st, nil
}

// Close closes the database connection, checkpointing the WAL first.
func (st *Store) Close() error {
	if st.conn == nil {
		return nil
	}
	if _, err := st.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}
	if err := st.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	st.conn = nil
	return nil
}

// InitSchema creates tables and indexes if they don't exist. Idempotent.
func (st *Store) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		amount INTEGER NOT NULL,
		memo TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL,
		is_special INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		deleted INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS week_budgets (
		week_start TEXT PRIMARY KEY,
		budget INTEGER NOT NULL,
		updated_at TEXT NOT NULL,
		deleted INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_expenses_date ON expenses(date);
	CREATE INDEX IF NOT EXISTS idx_expenses_category ON expenses(category);
	CREATE INDEX IF NOT EXISTS idx_expenses_deleted ON expenses(deleted);
	`

	if _, err := st.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Expenses
// ---------------------------------------------------------------------------

// AddExpense inserts a new expense record.
func (st *Store) AddExpense(ctx context.Context, e record.Expense) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid expense: %w", err)
	}

	query := `
	INSERT INTO expenses (id, date, amount, memo, category, is_special, created_at, updated_at, deleted)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := st.conn.ExecContext(ctx, query,
		e.ID, e.Date, e.Amount, e.Memo, e.Category,
		boolToInt(e.IsSpecial), e.CreatedAt, e.UpdatedAt, boolToInt(e.Deleted))
	if err != nil {
		return fmt.Errorf("failed to insert expense %s: %w", e.ID, err)
	}
	return nil
}

// UpdateExpense replaces the mutable fields of an expense and refreshes
// its updatedAt. Identity and createdAt never change.
func (st *Store) UpdateExpense(ctx context.Context, id string, amount int64, memo, category string, isSpecial bool) error {
	if amount < 0 {
		return fmt.Errorf("amount must be non-negative (got %d)", amount)
	}
	if !record.ValidCategory(category) {
		return fmt.Errorf("unknown category %q", category)
	}

	query := `
	UPDATE expenses SET amount = ?, memo = ?, category = ?, is_special = ?, updated_at = ?
	WHERE id = ? AND deleted = 0
	`
	res, err := st.conn.ExecContext(ctx, query, amount, memo, category, boolToInt(isSpecial), record.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update expense %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("expense %s not found", id)
	}
	return nil
}

// DeleteExpense soft-deletes an expense. The tombstone stays in the
// collection until a sync round has carried it into an outgoing snapshot.
func (st *Store) DeleteExpense(ctx context.Context, id string) error {
	res, err := st.conn.ExecContext(ctx,
		`UPDATE expenses SET deleted = 1, updated_at = ? WHERE id = ?`,
		record.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete expense %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("expense %s not found", id)
	}
	return nil
}

// GetExpense reads a single expense by ID, tombstoned or not.
// Returns (nil, nil) if no such record exists.
func (st *Store) GetExpense(ctx context.Context, id string) (*record.Expense, error) {
	row := st.conn.QueryRowContext(ctx, expenseColumns+` WHERE id = ?`, id)
	e, err := scanExpense(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read expense %s: %w", id, err)
	}
	return &e, nil
}

// ListExpenses returns every expense. Tombstones are included only when
// includeDeleted is set; sync rounds always read with it on.
func (st *Store) ListExpenses(ctx context.Context, includeDeleted bool) ([]record.Expense, error) {
	query := expenseColumns
	if !includeDeleted {
		query += ` WHERE deleted = 0`
	}
	query += ` ORDER BY date, created_at`

	rows, err := st.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()
	return collectExpenses(rows)
}

// ExpensesByDateRange returns live (non-tombstoned) expenses with
// start <= date <= end.
func (st *Store) ExpensesByDateRange(ctx context.Context, start, end string) ([]record.Expense, error) {
	rows, err := st.conn.QueryContext(ctx,
		expenseColumns+` WHERE deleted = 0 AND date >= ? AND date <= ? ORDER BY date, created_at`,
		start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses %s..%s: %w", start, end, err)
	}
	defer rows.Close()
	return collectExpenses(rows)
}

// ReplaceExpenses atomically swaps the entire expense collection for the
// given records. Used by sync rounds to persist a merge result.
func (st *Store) ReplaceExpenses(ctx context.Context, expenses []record.Expense) error {
	tx, err := st.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM expenses`); err != nil {
		return fmt.Errorf("failed to clear expenses: %w", err)
	}

	insert := `
	INSERT INTO expenses (id, date, amount, memo, category, is_special, created_at, updated_at, deleted)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, e := range expenses {
		if _, err := tx.ExecContext(ctx, insert,
			e.ID, e.Date, e.Amount, e.Memo, e.Category,
			boolToInt(e.IsSpecial), e.CreatedAt, e.UpdatedAt, boolToInt(e.Deleted)); err != nil {
			return fmt.Errorf("failed to insert expense %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit expense replace: %w", err)
	}
	return nil
}

const expenseColumns = `SELECT id, date, amount, memo, category, is_special, created_at, updated_at, deleted FROM expenses`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (record.Expense, error) {
	var e record.Expense
	var isSpecial, deleted int
	err := row.Scan(&e.ID, &e.Date, &e.Amount, &e.Memo, &e.Category,
		&isSpecial, &e.CreatedAt, &e.UpdatedAt, &deleted)
	if err != nil {
		return record.Expense{}, err
	}
	e.IsSpecial = isSpecial != 0
	e.Deleted = deleted != 0
	return e, nil
}

func collectExpenses(rows *sql.Rows) ([]record.Expense, error) {
	expenses := []record.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}
	return expenses, nil
}

// ---------------------------------------------------------------------------
// Week budgets
// ---------------------------------------------------------------------------

// SetWeekBudget creates or overwrites a per-week budget override.
func (st *Store) SetWeekBudget(ctx context.Context, weekStart string, budget int64) error {
	wb := record.WeekBudget{WeekStart: weekStart, Budget: budget, UpdatedAt: record.Now()}
	if err := wb.Validate(); err != nil {
		return fmt.Errorf("invalid week budget: %w", err)
	}

	query := `
	INSERT INTO week_budgets (week_start, budget, updated_at, deleted)
	VALUES (?, ?, ?, 0)
	ON CONFLICT(week_start) DO UPDATE SET
		budget = excluded.budget,
		updated_at = excluded.updated_at,
		deleted = 0
	`
	if _, err := st.conn.ExecContext(ctx, query, wb.WeekStart, wb.Budget, wb.UpdatedAt); err != nil {
		return fmt.Errorf("failed to set week budget %s: %w", weekStart, err)
	}
	return nil
}

// DeleteWeekBudget soft-deletes an override so the week falls back to the
// default budget. A no-op if no override exists.
func (st *Store) DeleteWeekBudget(ctx context.Context, weekStart string) error {
	_, err := st.conn.ExecContext(ctx,
		`UPDATE week_budgets SET deleted = 1, updated_at = ? WHERE week_start = ?`,
		record.Now(), weekStart)
	if err != nil {
		return fmt.Errorf("failed to delete week budget %s: %w", weekStart, err)
	}
	return nil
}

// ListWeekBudgets returns every override, tombstones included only when
// includeDeleted is set.
func (st *Store) ListWeekBudgets(ctx context.Context, includeDeleted bool) ([]record.WeekBudget, error) {
	query := `SELECT week_start, budget, updated_at, deleted FROM week_budgets`
	if !includeDeleted {
		query += ` WHERE deleted = 0`
	}
	query += ` ORDER BY week_start`

	rows, err := st.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list week budgets: %w", err)
	}
	defer rows.Close()

	budgets := []record.WeekBudget{}
	for rows.Next() {
		var wb record.WeekBudget
		var deleted int
		if err := rows.Scan(&wb.WeekStart, &wb.Budget, &wb.UpdatedAt, &deleted); err != nil {
			return nil, fmt.Errorf("failed to scan week budget: %w", err)
		}
		wb.Deleted = deleted != 0
		budgets = append(budgets, wb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate week budgets: %w", err)
	}
	return budgets, nil
}

// ReplaceWeekBudgets atomically swaps the entire override collection.
func (st *Store) ReplaceWeekBudgets(ctx context.Context, budgets []record.WeekBudget) error {
	tx, err := st.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM week_budgets`); err != nil {
		return fmt.Errorf("failed to clear week budgets: %w", err)
	}

	insert := `INSERT INTO week_budgets (week_start, budget, updated_at, deleted) VALUES (?, ?, ?, ?)`
	for _, wb := range budgets {
		if _, err := tx.ExecContext(ctx, insert, wb.WeekStart, wb.Budget, wb.UpdatedAt, boolToInt(wb.Deleted)); err != nil {
			return fmt.Errorf("failed to insert week budget %s: %w", wb.WeekStart, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit week budget replace: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Default week budget (singleton, kept in metadata)
// ---------------------------------------------------------------------------

// DefaultWeekBudget reads the singleton. Returns (nil, nil) when unset.
func (st *Store) DefaultWeekBudget(ctx context.Context) (*record.DefaultWeekBudget, error) {
	value, err := st.getMeta(ctx, metaDefaultWeekBudget)
	if err != nil || value == "" {
		return nil, err
	}
	budget, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt default week budget %q: %w", value, err)
	}
	updatedAt, err := st.getMeta(ctx, metaDefaultWeekBudgetUpdatedAt)
	if err != nil {
		return nil, err
	}
	if updatedAt == "" {
		updatedAt = record.EpochTimestamp
	}
	return &record.DefaultWeekBudget{Budget: budget, UpdatedAt: updatedAt}, nil
}

// SetDefaultWeekBudget writes the singleton with a fresh timestamp.
func (st *Store) SetDefaultWeekBudget(ctx context.Context, budget int64) error {
	if budget < 0 {
		return fmt.Errorf("budget must be non-negative (got %d)", budget)
	}
	return st.ReplaceDefaultWeekBudget(ctx, &record.DefaultWeekBudget{
		Budget:    budget,
		UpdatedAt: record.Now(),
	})
}

// ReplaceDefaultWeekBudget persists a merged singleton verbatim.
// A nil value leaves the stored singleton untouched (absent stays absent).
func (st *Store) ReplaceDefaultWeekBudget(ctx context.Context, d *record.DefaultWeekBudget) error {
	if d == nil {
		return nil
	}
	if err := st.setMeta(ctx, metaDefaultWeekBudget, strconv.FormatInt(d.Budget, 10)); err != nil {
		return err
	}
	return st.setMeta(ctx, metaDefaultWeekBudgetUpdatedAt, d.UpdatedAt)
}

// BudgetForWeek resolves the effective budget for a week: the override if
// present and not tombstoned, else the default, else absent.
func (st *Store) BudgetForWeek(ctx context.Context, weekStart string) (int64, bool, error) {
	row := st.conn.QueryRowContext(ctx,
		`SELECT budget, deleted FROM week_budgets WHERE week_start = ?`, weekStart)

	var budget int64
	var deleted int
	err := row.Scan(&budget, &deleted)
	switch {
	case err == sql.ErrNoRows:
		// fall through to default
	case err != nil:
		return 0, false, fmt.Errorf("failed to read week budget %s: %w", weekStart, err)
	case deleted == 0:
		return budget, true, nil
	}

	d, err := st.DefaultWeekBudget(ctx)
	if err != nil {
		return 0, false, err
	}
	if d == nil {
		return 0, false, nil
	}
	return d.Budget, true, nil
}

// ---------------------------------------------------------------------------
// Sync bookkeeping
// ---------------------------------------------------------------------------

// LastSync returns the timestamp of the last completed sync round, or ""
// if no round has completed yet.
func (st *Store) LastSync(ctx context.Context) (string, error) {
	return st.getMeta(ctx, metaLastSync)
}

// SetLastSync records the wall-clock time of a completed round.
func (st *Store) SetLastSync(ctx context.Context, ts string) error {
	return st.setMeta(ctx, metaLastSync, ts)
}

// PurgeDeleted physically removes every tombstoned record from local
// storage. Called at the end of a sync round, after the tombstones have
// been represented in an outgoing snapshot attempt.
func (st *Store) PurgeDeleted(ctx context.Context) (int64, error) {
	var purged int64

	res, err := st.conn.ExecContext(ctx, `DELETE FROM expenses WHERE deleted = 1`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expenses: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		purged += n
	}

	res, err = st.conn.ExecContext(ctx, `DELETE FROM week_budgets WHERE deleted = 1`)
	if err != nil {
		return purged, fmt.Errorf("failed to purge week budgets: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		purged += n
	}

	return purged, nil
}

// ---------------------------------------------------------------------------
// Metadata helpers
// ---------------------------------------------------------------------------

func (st *Store) getMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := st.conn.QueryRowContext(ctx,
		`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read metadata %s: %w", key, err)
	}
	return value, nil
}

func (st *Store) setMeta(ctx context.Context, key, value string) error {
	query := `
	INSERT INTO metadata (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := st.conn.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to write metadata %s: %w", key, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
