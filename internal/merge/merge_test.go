package merge

import (
	"fmt"
	"testing"

	"github.com/seihin-app/seihin/internal/record"
)

// testExpense builds an expense with sensible defaults for merge tests.
func testExpense(id string, amount int64, updatedAt string) record.Expense {
	return record.Expense{
		ID:        id,
		Date:      "2026-02-14",
		Amount:    amount,
		Category:  record.DefaultCategory,
		CreatedAt: "2026-02-14T00:00:00Z",
		UpdatedAt: updatedAt,
	}
}

func findExpense(t *testing.T, list []record.Expense, id string) record.Expense {
	t.Helper()
	for _, e := range list {
		if e.ID == id {
			return e
		}
	}
	t.Fatalf("expense %q not in merge result", id)
	return record.Expense{}
}

func TestCollections_EmptyBothSides(t *testing.T) {
	result := Collections[record.Expense](nil, nil)
	if len(result) != 0 {
		t.Errorf("expected empty result, got %d records", len(result))
	}
}

func TestCollections_OneSideEmpty(t *testing.T) {
	local := []record.Expense{testExpense("1", 500, "2026-02-14T10:00:00Z")}

	result := Collections(local, nil)
	if len(result) != 1 || result[0].ID != "1" {
		t.Errorf("merge(local, []) should return local verbatim, got %+v", result)
	}

	result = Collections(nil, local)
	if len(result) != 1 || result[0].ID != "1" {
		t.Errorf("merge([], remote) should return remote verbatim, got %+v", result)
	}
}

func TestCollections_RemoteNewerWins(t *testing.T) {
	local := []record.Expense{testExpense("1", 500, "2026-02-14T10:00:00Z")}
	remote := []record.Expense{testExpense("1", 800, "2026-02-14T11:00:00Z")}

	result := Collections(local, remote)
	if len(result) != 1 {
		t.Fatalf("expected 1 record, got %d", len(result))
	}
	if result[0].Amount != 800 {
		t.Errorf("remote is newer, expected amount 800, got %d", result[0].Amount)
	}
}

func TestCollections_LocalNewerWins(t *testing.T) {
	local := []record.Expense{testExpense("1", 500, "2026-02-14T12:00:00Z")}
	remote := []record.Expense{testExpense("1", 800, "2026-02-14T11:00:00Z")}

	result := Collections(local, remote)
	if result[0].Amount != 500 {
		t.Errorf("local is newer, expected amount 500, got %d", result[0].Amount)
	}
}

func TestCollections_TieKeepsLocal(t *testing.T) {
	local := []record.Expense{testExpense("1", 500, "2026-02-14T10:00:00Z")}
	remote := []record.Expense{testExpense("1", 800, "2026-02-14T10:00:00Z")}

	result := Collections(local, remote)
	if len(result) != 1 {
		t.Fatalf("expected 1 record, got %d", len(result))
	}
	if result[0].Amount != 500 {
		t.Errorf("equal updatedAt must keep local, expected amount 500, got %d", result[0].Amount)
	}
}

func TestCollections_KeyUnion(t *testing.T) {
	local := []record.Expense{
		testExpense("1", 100, "2026-02-14T10:00:00Z"),
		testExpense("2", 200, "2026-02-14T10:00:00Z"),
		testExpense("3", 300, "2026-02-14T10:00:00Z"),
	}
	remote := []record.Expense{
		testExpense("2", 250, "2026-02-14T11:00:00Z"),
		testExpense("4", 400, "2026-02-14T10:00:00Z"),
	}

	result := Collections(local, remote)
	if len(result) != 4 {
		t.Fatalf("expected union of 4 keys, got %d", len(result))
	}
	seen := make(map[string]int)
	for _, e := range result {
		seen[e.ID]++
	}
	for _, id := range []string{"1", "2", "3", "4"} {
		if seen[id] != 1 {
			t.Errorf("key %q appears %d times, want exactly once", id, seen[id])
		}
	}
	if got := findExpense(t, result, "2").Amount; got != 250 {
		t.Errorf("id=2: remote is newer, expected 250, got %d", got)
	}
	if got := findExpense(t, result, "4").Amount; got != 400 {
		t.Errorf("id=4: expected remote-only record with 400, got %d", got)
	}
}

func TestCollections_TombstonesFlowThrough(t *testing.T) {
	local := []record.Expense{testExpense("1", 100, "2026-02-14T10:00:00Z")}
	local[0].Deleted = true
	remote := []record.Expense{testExpense("2", 200, "2026-02-14T10:00:00Z")}

	result := Collections(local, remote)
	if len(result) != 2 {
		t.Fatalf("tombstones must not be filtered, expected 2 records, got %d", len(result))
	}
	if !findExpense(t, result, "1").Deleted {
		t.Error("tombstone flag lost in merge")
	}
}

func TestCollections_NewerRemoteDeleteWins(t *testing.T) {
	local := []record.Expense{testExpense("1", 100, "2026-02-14T10:00:00Z")}
	remote := []record.Expense{testExpense("1", 100, "2026-02-14T11:00:00Z")}
	remote[0].Deleted = true

	result := Collections(local, remote)
	if len(result) != 1 {
		t.Fatalf("expected 1 record, got %d", len(result))
	}
	if !result[0].Deleted {
		t.Error("remote delete is newer and must win")
	}
}

func TestCollections_Remergeable(t *testing.T) {
	// The retry path merges a prior merge output against a fresh remote
	// fetch; the per-key timestamp rule must still hold.
	local := []record.Expense{testExpense("1", 100, "2026-02-14T10:00:00Z")}
	remote1 := []record.Expense{testExpense("1", 150, "2026-02-14T11:00:00Z")}
	remote2 := []record.Expense{
		testExpense("1", 175, "2026-02-14T12:00:00Z"),
		testExpense("2", 200, "2026-02-14T10:00:00Z"),
	}

	first := Collections(local, remote1)
	second := Collections(first, remote2)

	if len(second) != 2 {
		t.Fatalf("expected 2 records, got %d", len(second))
	}
	if got := findExpense(t, second, "1").Amount; got != 175 {
		t.Errorf("latest write must win across re-merge, expected 175, got %d", got)
	}

	// A stale second fetch must not resurrect old values.
	stale := []record.Expense{testExpense("1", 100, "2026-02-14T09:00:00Z")}
	third := Collections(second, stale)
	if got := findExpense(t, third, "1").Amount; got != 175 {
		t.Errorf("stale remote must lose on re-merge, expected 175, got %d", got)
	}
}

func TestCollections_WeekBudgets(t *testing.T) {
	local := []record.WeekBudget{
		{WeekStart: "2026-02-09", Budget: 5000, UpdatedAt: "2026-02-14T10:00:00Z"},
	}
	remote := []record.WeekBudget{
		{WeekStart: "2026-02-09", Budget: 7000, UpdatedAt: "2026-02-14T11:00:00Z"},
		{WeekStart: "2026-02-16", Budget: 6000, UpdatedAt: record.EpochTimestamp},
	}

	result := Collections(local, remote)
	if len(result) != 2 {
		t.Fatalf("expected 2 week budgets, got %d", len(result))
	}
	if result[0].Budget != 7000 {
		t.Errorf("newer remote budget must win, got %d", result[0].Budget)
	}
}

func TestCollections_EpochSentinelLosesTies(t *testing.T) {
	local := []record.WeekBudget{
		{WeekStart: "2026-02-09", Budget: 5000, UpdatedAt: "2026-02-14T10:00:00.000Z"},
	}
	remote := []record.WeekBudget{
		{WeekStart: "2026-02-09", Budget: 9999, UpdatedAt: record.EpochTimestamp},
	}

	result := Collections(local, remote)
	if result[0].Budget != 5000 {
		t.Errorf("epoch-stamped remote must lose to any real timestamp, got %d", result[0].Budget)
	}
}

func TestSingleton(t *testing.T) {
	older := &record.DefaultWeekBudget{Budget: 4000, UpdatedAt: "2026-02-14T10:00:00Z"}
	newer := &record.DefaultWeekBudget{Budget: 5000, UpdatedAt: "2026-02-14T11:00:00Z"}
	tied := &record.DefaultWeekBudget{Budget: 6000, UpdatedAt: "2026-02-14T10:00:00Z"}

	cases := []struct {
		name          string
		local, remote *record.DefaultWeekBudget
		want          *record.DefaultWeekBudget
	}{
		{"both absent", nil, nil, nil},
		{"local only", older, nil, older},
		{"remote only", nil, older, older},
		{"remote newer", older, newer, newer},
		{"local newer", newer, older, newer},
		{"tie keeps local", older, tied, older},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Singleton(tc.local, tc.remote)
			if got != tc.want {
				t.Errorf("Singleton() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func benchExpenses(n int, prefix string) []record.Expense {
	list := make([]record.Expense, n)
	for i := range list {
		list[i] = testExpense(fmt.Sprintf("%s-%d", prefix, i), int64(i), "2026-02-14T10:00:00.000Z")
	}
	return list
}

func BenchmarkCollections_1000Records(b *testing.B) {
	local := benchExpenses(1000, "a")
	remote := benchExpenses(1000, "b")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Collections(local, remote)
	}
}

func BenchmarkCollections_FullOverlap(b *testing.B) {
	local := benchExpenses(1000, "a")
	remote := benchExpenses(1000, "a")
	for i := range remote {
		remote[i].UpdatedAt = "2026-02-14T11:00:00.000Z"
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Collections(local, remote)
	}
}
