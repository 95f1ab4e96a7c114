package remote

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func setupDir(t *testing.T) *Dir {
	t.Helper()
	d, err := NewDir(filepath.Join(t.TempDir(), "remote"))
	if err != nil {
		t.Fatalf("failed to create dir remote: %v", err)
	}
	return d
}

func TestDir_FetchAbsent(t *testing.T) {
	d := setupDir(t)
	got, err := d.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected absent blob, got %+v", got)
	}
}

func TestDir_CreateThenFetch(t *testing.T) {
	d := setupDir(t)
	ctx := context.Background()

	rev, err := d.Put(ctx, []byte(`{"v":1}`), "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if rev == "" {
		t.Fatal("create must return a revision token")
	}

	got, err := d.Fetch(ctx)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if got == nil {
		t.Fatal("blob absent after create")
	}
	if string(got.Data) != `{"v":1}` {
		t.Errorf("data = %q", got.Data)
	}
	if got.Rev != rev {
		t.Errorf("fetch rev %q != put rev %q", got.Rev, rev)
	}
}

func TestDir_UpdateUnderRevision(t *testing.T) {
	d := setupDir(t)
	ctx := context.Background()

	rev1, err := d.Put(ctx, []byte("one"), "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	rev2, err := d.Put(ctx, []byte("two"), rev1)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if rev2 == rev1 {
		t.Error("revision must change when contents change")
	}

	got, err := d.Fetch(ctx)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if string(got.Data) != "two" {
		t.Errorf("data = %q", got.Data)
	}
}

func TestDir_ConflictCases(t *testing.T) {
	d := setupDir(t)
	ctx := context.Background()

	// Create with a revision against an absent blob.
	if _, err := d.Put(ctx, []byte("x"), "deadbeef"); !errors.Is(err, ErrConflict) {
		t.Errorf("expected conflict for revision against absent blob, got %v", err)
	}

	rev, err := d.Put(ctx, []byte("one"), "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Create against an existing blob.
	if _, err := d.Put(ctx, []byte("x"), ""); !errors.Is(err, ErrConflict) {
		t.Errorf("expected conflict for create against existing blob, got %v", err)
	}

	// Out-of-band change (another device wrote through the shared folder).
	if err := os.WriteFile(d.BlobPath(), []byte("theirs"), 0644); err != nil {
		t.Fatalf("failed to simulate external write: %v", err)
	}
	if _, err := d.Put(ctx, []byte("mine"), rev); !errors.Is(err, ErrConflict) {
		t.Errorf("expected conflict for stale revision, got %v", err)
	}

	// The losing write must not have clobbered the winner.
	got, err := d.Fetch(ctx)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if string(got.Data) != "theirs" {
		t.Errorf("conflicting write clobbered the blob: %q", got.Data)
	}

	// Retrying under the observed revision succeeds.
	if _, err := d.Put(ctx, []byte("merged"), got.Rev); err != nil {
		t.Errorf("retry under fresh revision failed: %v", err)
	}
}
