package record

import "testing"

func TestNewExpenseDefaults(t *testing.T) {
	e := NewExpense("2026-02-14", 500, "coffee", "")
	if e.ID == "" {
		t.Error("expected a generated ID")
	}
	if e.Category != DefaultCategory {
		t.Errorf("empty category should default to %q, got %q", DefaultCategory, e.Category)
	}
	if e.CreatedAt != e.UpdatedAt {
		t.Errorf("createdAt (%s) should equal updatedAt (%s) on creation", e.CreatedAt, e.UpdatedAt)
	}
	if err := e.Validate(); err != nil {
		t.Errorf("fresh expense should validate: %v", err)
	}
}

func TestExpenseValidate(t *testing.T) {
	valid := NewExpense("2026-02-14", 500, "", "food")

	tests := []struct {
		name   string
		mutate func(*Expense)
	}{
		{"missing id", func(e *Expense) { e.ID = "" }},
		{"bad date", func(e *Expense) { e.Date = "14/02/2026" }},
		{"negative amount", func(e *Expense) { e.Amount = -1 }},
		{"unknown category", func(e *Expense) { e.Category = "gadgets" }},
		{"missing createdAt", func(e *Expense) { e.CreatedAt = "" }},
		{"missing updatedAt", func(e *Expense) { e.UpdatedAt = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid
			tt.mutate(&e)
			if err := e.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestWeekBudgetValidate(t *testing.T) {
	wb := WeekBudget{WeekStart: "2026-02-09", Budget: 5000, UpdatedAt: Now()}
	if err := wb.Validate(); err != nil {
		t.Errorf("valid budget rejected: %v", err)
	}

	bad := wb
	bad.WeekStart = "next monday"
	if err := bad.Validate(); err == nil {
		t.Error("bad weekStart should be rejected")
	}

	bad = wb
	bad.Budget = -1
	if err := bad.Validate(); err == nil {
		t.Error("negative budget should be rejected")
	}
}

func TestWeekStartOf(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{"2026-02-09", "2026-02-09"}, // Monday maps to itself
		{"2026-02-11", "2026-02-09"}, // midweek
		{"2026-02-15", "2026-02-09"}, // Sunday belongs to the preceding Monday
		{"2026-02-16", "2026-02-16"}, // next Monday starts a new week
		{"2026-01-01", "2025-12-29"}, // week spans a year boundary
	}
	for _, tt := range tests {
		got, err := WeekStartOf(tt.date)
		if err != nil {
			t.Errorf("WeekStartOf(%s) failed: %v", tt.date, err)
			continue
		}
		if got != tt.want {
			t.Errorf("WeekStartOf(%s) = %s, want %s", tt.date, got, tt.want)
		}
	}

	if _, err := WeekStartOf("not-a-date"); err == nil {
		t.Error("invalid date should be rejected")
	}
}

func TestNowFormat(t *testing.T) {
	ts := Now()
	// 2006-01-02T15:04:05.000Z is 24 characters.
	if len(ts) != 24 || ts[23] != 'Z' || ts[10] != 'T' {
		t.Errorf("unexpected timestamp shape: %q", ts)
	}
	// The epoch sentinel must lose lexicographically to any current stamp.
	if ts <= EpochTimestamp {
		t.Errorf("current time %q does not order after the epoch sentinel", ts)
	}
}

func TestCategoryLookup(t *testing.T) {
	if !ValidCategory("food") || !ValidCategory("books") {
		t.Error("known categories rejected")
	}
	if ValidCategory("gadgets") {
		t.Error("unknown category accepted")
	}
	if c := CategoryByID("gadgets"); c.ID != "other" {
		t.Errorf("unknown category should map to other, got %q", c.ID)
	}
	if c := CategoryByID("transport"); c.Label == "" {
		t.Error("category labels should be populated")
	}
}
