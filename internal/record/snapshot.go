package record

import (
	"encoding/json"
	"fmt"
)

// SchemaVersion is the highest snapshot version this build writes.
//
// Version history:
//   - v1: expenses only, no category/isSpecial fields
//   - v2: per-expense category
//   - v3: weekBudgets, defaultWeekBudget, isSpecial
//
// Readers accept every version seen — including versions newer than this
// build, decoded best-effort so an updated device cannot strand older
// ones — and backfill missing fields via Normalize; writers always emit
// the current version.
const SchemaVersion = 3

// Snapshot is the single serialized object exchanged wholesale with the
// remote store. This is the durable wire format: field names and shapes
// must stay compatible across versions.
type Snapshot struct {
	SchemaVersion     int                `json:"schemaVersion"`
	UpdatedAt         string             `json:"updatedAt"`
	Expenses          []Expense          `json:"expenses"`
	WeekBudgets       []WeekBudget       `json:"weekBudgets,omitempty"`
	DefaultWeekBudget *DefaultWeekBudget `json:"defaultWeekBudget,omitempty"`
}

// MalformedSnapshotError reports a fetched snapshot that cannot be
// normalized: invalid JSON or a shape no known schema version produced.
// It is a non-recoverable round failure, never silently dropped.
type MalformedSnapshotError struct {
	Reason string
	Err    error
}

func (e *MalformedSnapshotError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed snapshot: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed snapshot: %s", e.Reason)
}

func (e *MalformedSnapshotError) Unwrap() error { return e.Err }

// DecodeSnapshot parses and normalizes remote snapshot bytes.
//
// Decoding and normalization happen in one place so that version-specific
// defaulting is not scattered across read sites. Any snapshot returned by
// this function is fully populated for the current schema.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, &MalformedSnapshotError{Reason: "invalid JSON", Err: err}
	}
	if snap.SchemaVersion < 1 {
		return nil, &MalformedSnapshotError{
			Reason: fmt.Sprintf("unsupported schemaVersion %d", snap.SchemaVersion),
		}
	}
	snap.Normalize()
	return &snap, nil
}

// Normalize backfills fields that older schema versions omit, keyed by
// missing field:
//
//	expense.category      -> DefaultCategory
//	expense.isSpecial     -> false (zero value)
//	weekBudgets           -> empty list
//	weekBudget.updatedAt  -> EpochTimestamp (loses every tie)
//	defaultWeekBudget     -> absent (nil)
//
// Normalize is idempotent.
func (s *Snapshot) Normalize() {
	for i := range s.Expenses {
		if s.Expenses[i].Category == "" {
			s.Expenses[i].Category = DefaultCategory
		}
	}
	if s.WeekBudgets == nil {
		s.WeekBudgets = []WeekBudget{}
	}
	for i := range s.WeekBudgets {
		if s.WeekBudgets[i].UpdatedAt == "" {
			s.WeekBudgets[i].UpdatedAt = EpochTimestamp
		}
	}
	if s.Expenses == nil {
		s.Expenses = []Expense{}
	}
}

// Encode serializes the snapshot for upload or export.
func (s *Snapshot) Encode() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}
