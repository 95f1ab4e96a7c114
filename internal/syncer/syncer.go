// Package syncer drives offline-first synchronization rounds between the
// local store and the single-file remote blob.
//
// A round is: read full local state (tombstones included), fetch the
// remote snapshot, merge per collection, persist the merged state
// locally, upload a new snapshot under the fetched revision, recover from
// a write conflict exactly once, purge tombstones, and stamp the
// last-sync time. At most one round runs per process; concurrent
// invocations fail fast with ErrAlreadySyncing rather than queue.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/seihin-app/seihin/internal/merge"
	"github.com/seihin-app/seihin/internal/record"
	"github.com/seihin-app/seihin/internal/remote"
	"github.com/seihin-app/seihin/internal/store"
)

// ErrAlreadySyncing is returned by Sync when a round is in flight. The
// rejected call performs no work; the caller may retry later.
var ErrAlreadySyncing = errors.New("sync already in progress")

// ErrNotConfigured is returned by Sync when no remote is configured.
var ErrNotConfigured = errors.New("no remote configured")

// Status is the orchestrator's externally visible state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Event describes the outcome of one completed round, for status displays
// and the dashboard broadcast. Err is nil on success.
type Event struct {
	Status      Status        `json:"status"`
	Err         error         `json:"-"`
	Message     string        `json:"message,omitempty"`
	Purged      int64         `json:"purged"`
	Retried     bool          `json:"retried"`
	Duration    time.Duration `json:"duration"`
	CompletedAt string        `json:"completedAt"`
}

// Syncer coordinates sync rounds over a local store and a remote client.
//
// The zero logger defaults to stderr. A nil remote client marks sync as
// disabled: Sync fails with ErrNotConfigured and Notify is a no-op.
type Syncer struct {
	store  *store.Store
	remote remote.Client
	logger *log.Logger

	// now is the wall clock, swappable in tests.
	now func() string

	// syncing is the single-flight guard: a fail-fast gate, not a queue.
	syncing atomic.Bool

	mu      sync.Mutex
	status  Status
	lastErr error
	onEvent []func(Event)
}

// New creates a Syncer. The store must be open with its schema
// initialized. remote may be nil when no remote is configured.
func New(st *store.Store, rc remote.Client, logger *log.Logger) *Syncer {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Syncer{
		store:  st,
		remote: rc,
		logger: logger,
		now:    record.Now,
		status: StatusIdle,
	}
}

// Enabled reports whether a remote is configured.
func (s *Syncer) Enabled() bool { return s.remote != nil }

// Status returns the orchestrator's current state.
func (s *Syncer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// LastError returns the error of the most recent failed round, if any.
func (s *Syncer) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// LastSync returns the persisted timestamp of the last completed round.
func (s *Syncer) LastSync(ctx context.Context) (string, error) {
	return s.store.LastSync(ctx)
}

// OnEvent registers a callback invoked after every completed round,
// success or failure. Multiple callbacks may be registered; register
// before the first Sync.
func (s *Syncer) OnEvent(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEvent = append(s.onEvent, fn)
}

// mergedState holds the three merged collections of a round.
type mergedState struct {
	expenses    []record.Expense
	weekBudgets []record.WeekBudget
	defaultWB   *record.DefaultWeekBudget
}

// Sync performs one end-to-end synchronization round.
//
// Errors from any step abort the round and surface to the caller; the
// single-flight guard is released on every exit path. The only internal
// recovery is the one-shot conflict retry on the remote write.
func (s *Syncer) Sync(ctx context.Context) error {
	if s.remote == nil {
		return ErrNotConfigured
	}
	if !s.syncing.CompareAndSwap(false, true) {
		return ErrAlreadySyncing
	}
	defer s.syncing.Store(false)

	s.setStatus(StatusSyncing, nil)
	start := time.Now()

	purged, retried, err := s.run(ctx)

	event := Event{
		Purged:      purged,
		Retried:     retried,
		Duration:    time.Since(start),
		CompletedAt: s.now(),
	}
	if err != nil {
		s.setStatus(StatusError, err)
		event.Status = StatusError
		event.Err = err
		event.Message = err.Error()
		s.logger.Printf("Sync failed after %v: %v", event.Duration.Round(time.Millisecond), err)
	} else {
		s.setStatus(StatusSuccess, nil)
		event.Status = StatusSuccess
		s.logger.Printf("Sync complete in %v (purged=%d retried=%v)",
			event.Duration.Round(time.Millisecond), purged, retried)
	}
	s.emit(event)
	return err
}

// run executes the round protocol. It reports how many tombstones were
// purged and whether the conflict retry path was taken.
func (s *Syncer) run(ctx context.Context) (purged int64, retried bool, err error) {
	// 1. Read the complete local state, tombstones included.
	local, err := s.readLocal(ctx)
	if err != nil {
		return 0, false, err
	}

	// 2. Fetch the remote snapshot. Absent is not an error: the upcoming
	// write will be an unconditional create.
	fetched, err := s.remote.Fetch(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("remote fetch failed: %w", err)
	}

	// 3. Merge each collection against the normalized remote snapshot.
	merged := local
	rev := ""
	if fetched != nil {
		snap, err := record.DecodeSnapshot(fetched.Data)
		if err != nil {
			return 0, false, err
		}
		merged = mergeAgainst(local, snap)
		rev = fetched.Rev
	}

	// 4. Persist the merged state: one atomic replace per collection.
	if err := s.persist(ctx, merged); err != nil {
		return 0, false, err
	}

	// 5. Upload a fresh snapshot under the fetched revision.
	_, err = s.remote.Put(ctx, s.encodeSnapshot(merged), rev)

	// 6. On a write conflict, exactly one retry: re-fetch, merge the new
	// remote against the already-merged state (never the pre-round local
	// state), persist, and write under the newly observed revision. If
	// the re-fetch finds the file gone, the second write is skipped and
	// the round proceeds.
	if errors.Is(err, remote.ErrConflict) {
		retried = true
		refetched, ferr := s.remote.Fetch(ctx)
		if ferr != nil {
			return 0, retried, fmt.Errorf("remote re-fetch after conflict failed: %w", ferr)
		}
		err = nil
		if refetched != nil {
			snap, derr := record.DecodeSnapshot(refetched.Data)
			if derr != nil {
				return 0, retried, derr
			}
			merged = mergeAgainst(merged, snap)
			if perr := s.persist(ctx, merged); perr != nil {
				return 0, retried, perr
			}
			if _, werr := s.remote.Put(ctx, s.encodeSnapshot(merged), refetched.Rev); werr != nil {
				return 0, retried, fmt.Errorf("remote write retry failed: %w", werr)
			}
		}
	}
	if err != nil {
		return 0, retried, fmt.Errorf("remote write failed: %w", err)
	}

	// 7. Physically purge tombstones now that they have been represented
	// in an outgoing snapshot attempt.
	purged, err = s.store.PurgeDeleted(ctx)
	if err != nil {
		return purged, retried, err
	}

	// 8. Stamp the round.
	if err := s.store.SetLastSync(ctx, s.now()); err != nil {
		return purged, retried, err
	}

	return purged, retried, nil
}

func (s *Syncer) readLocal(ctx context.Context) (mergedState, error) {
	expenses, err := s.store.ListExpenses(ctx, true)
	if err != nil {
		return mergedState{}, err
	}
	budgets, err := s.store.ListWeekBudgets(ctx, true)
	if err != nil {
		return mergedState{}, err
	}
	defaultWB, err := s.store.DefaultWeekBudget(ctx)
	if err != nil {
		return mergedState{}, err
	}
	return mergedState{expenses: expenses, weekBudgets: budgets, defaultWB: defaultWB}, nil
}

func mergeAgainst(local mergedState, snap *record.Snapshot) mergedState {
	return mergedState{
		expenses:    merge.Collections(local.expenses, snap.Expenses),
		weekBudgets: merge.Collections(local.weekBudgets, snap.WeekBudgets),
		defaultWB:   merge.Singleton(local.defaultWB, snap.DefaultWeekBudget),
	}
}

func (s *Syncer) persist(ctx context.Context, m mergedState) error {
	if err := s.store.ReplaceExpenses(ctx, m.expenses); err != nil {
		return err
	}
	if err := s.store.ReplaceWeekBudgets(ctx, m.weekBudgets); err != nil {
		return err
	}
	return s.store.ReplaceDefaultWeekBudget(ctx, m.defaultWB)
}

func (s *Syncer) encodeSnapshot(m mergedState) []byte {
	snap := record.Snapshot{
		SchemaVersion:     record.SchemaVersion,
		UpdatedAt:         s.now(),
		Expenses:          m.expenses,
		WeekBudgets:       m.weekBudgets,
		DefaultWeekBudget: m.defaultWB,
	}
	// Marshal cannot fail for this shape.
	data, _ := snap.Encode()
	return data
}

func (s *Syncer) setStatus(status Status, err error) {
	s.mu.Lock()
	s.status = status
	if status == StatusSyncing || err != nil {
		s.lastErr = err
	}
	s.mu.Unlock()
}

func (s *Syncer) emit(event Event) {
	s.mu.Lock()
	sinks := make([]func(Event), len(s.onEvent))
	copy(sinks, s.onEvent)
	s.mu.Unlock()
	for _, fn := range sinks {
		fn(event)
	}
}
