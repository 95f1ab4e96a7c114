// Package record defines the synchronized value model: itemized expenses,
// per-week budget overrides, the default-budget singleton, and the snapshot
// envelope exchanged with the remote store.
//
// All timestamps are carried as ISO-8601 strings and compared
// lexicographically. The string form is the sole ordering signal used for
// merge conflict resolution, so it is never parsed into time.Time on the
// sync path.
package record

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EpochTimestamp is the sentinel assigned to records that predate
// per-record timestamps. It loses ties against any real timestamp.
const EpochTimestamp = "1970-01-01T00:00:00.000Z"

// Now returns the current wall-clock time in the canonical wire format
// (UTC, millisecond precision).
func Now() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}

// NewID returns a fresh opaque record identifier, stable across devices.
func NewID() string {
	return uuid.NewString()
}

// Expense is a single itemized expense record.
//
// Identity (ID) is immutable once created; edits replace the mutable
// fields and refresh UpdatedAt. A soft delete sets Deleted and refreshes
// UpdatedAt so the tombstone can propagate through merges before the
// record is physically purged.
type Expense struct {
	ID        string `json:"id"`
	Date      string `json:"date"`   // calendar date, YYYY-MM-DD
	Amount    int64  `json:"amount"` // smallest currency unit, non-negative
	Memo      string `json:"memo"`
	Category  string `json:"category"`
	IsSpecial bool   `json:"isSpecial"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
	Deleted   bool   `json:"deleted,omitempty"`
}

// Key implements merge.Record.
func (e Expense) Key() string { return e.ID }

// Modified implements merge.Record.
func (e Expense) Modified() string { return e.UpdatedAt }

// Validate checks field values before the record enters local storage.
func (e *Expense) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("id is required")
	}
	if _, err := time.Parse("2006-01-02", e.Date); err != nil {
		return fmt.Errorf("date must be YYYY-MM-DD (got %q)", e.Date)
	}
	if e.Amount < 0 {
		return fmt.Errorf("amount must be non-negative (got %d)", e.Amount)
	}
	if !ValidCategory(e.Category) {
		return fmt.Errorf("unknown category %q", e.Category)
	}
	if e.CreatedAt == "" {
		return fmt.Errorf("createdAt is required")
	}
	if e.UpdatedAt == "" {
		return fmt.Errorf("updatedAt is required")
	}
	return nil
}

// NewExpense creates an expense with a fresh ID and createdAt == updatedAt.
func NewExpense(date string, amount int64, memo, category string) Expense {
	if category == "" {
		category = DefaultCategory
	}
	now := Now()
	return Expense{
		ID:        NewID(),
		Date:      date,
		Amount:    amount,
		Memo:      memo,
		Category:  category,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch refreshes UpdatedAt. Call on every local mutation.
func (e *Expense) Touch() { e.UpdatedAt = Now() }

// WeekBudget is a per-week budget override, keyed by the Monday that
// starts the ISO week.
type WeekBudget struct {
	WeekStart string `json:"weekStart"` // Monday, YYYY-MM-DD
	Budget    int64  `json:"budget"`
	UpdatedAt string `json:"updatedAt"`
	Deleted   bool   `json:"deleted,omitempty"`
}

// Key implements merge.Record.
func (w WeekBudget) Key() string { return w.WeekStart }

// Modified implements merge.Record.
func (w WeekBudget) Modified() string { return w.UpdatedAt }

// Validate checks field values before the record enters local storage.
func (w *WeekBudget) Validate() error {
	if _, err := time.Parse("2006-01-02", w.WeekStart); err != nil {
		return fmt.Errorf("weekStart must be YYYY-MM-DD (got %q)", w.WeekStart)
	}
	if w.Budget < 0 {
		return fmt.Errorf("budget must be non-negative (got %d)", w.Budget)
	}
	if w.UpdatedAt == "" {
		return fmt.Errorf("updatedAt is required")
	}
	return nil
}

// DefaultWeekBudget is the singleton fallback used for weeks without a
// live override. It has no tombstone: clearing it is expressed by writing
// a zero budget, and resolution order is a read-time concern.
type DefaultWeekBudget struct {
	Budget    int64  `json:"budget"`
	UpdatedAt string `json:"updatedAt"`
}

// Modified implements merge.Singleton's timestamp accessor.
func (d DefaultWeekBudget) Modified() string { return d.UpdatedAt }

// WeekStartOf returns the Monday (YYYY-MM-DD) of the ISO week containing
// the given calendar date.
func WeekStartOf(date string) (string, error) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", date, err)
	}
	// time.Weekday counts Sunday as 0.
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset).Format("2006-01-02"), nil
}
