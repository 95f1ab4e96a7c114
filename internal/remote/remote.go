// Package remote defines the single-file remote blob store the sync
// engine mirrors into, together with its optimistic-concurrency write
// primitive.
//
// A remote holds exactly one blob (the serialized snapshot) addressed by
// an opaque revision token. Writes are compare-and-swap: supplying a
// stale expected revision fails with ErrConflict, which the sync
// orchestrator recovers from exactly once per round.
//
// Two backends are provided: Dir, a local directory blob (a folder
// mirrored by Dropbox/Syncthing or shared over the network), and Dropbox,
// which talks to the Dropbox content API directly.
package remote

import (
	"context"
	"errors"
)

// ErrConflict is returned by Put when the expected revision no longer
// matches the stored revision. Check with errors.Is.
var ErrConflict = errors.New("remote revision conflict")

// ErrUnavailable marks transport, filesystem, and auth failures talking
// to the remote. Rounds abort on it without retrying; the next round
// re-attempts with then-current local state. Check with errors.Is.
var ErrUnavailable = errors.New("remote unavailable")

// Fetched is the result of a successful Fetch: raw snapshot bytes plus
// the revision token to use as the expected revision of the next Put.
type Fetched struct {
	Data []byte
	Rev  string
}

// Client is the remote blob store contract.
type Client interface {
	// Fetch downloads the current blob and its revision token.
	// Returns (nil, nil) when no remote file exists yet; that is not an
	// error. Transport and auth failures match ErrUnavailable.
	Fetch(ctx context.Context) (*Fetched, error)

	// Put uploads a new blob. An empty rev means "create if absent"; a
	// non-empty rev means "replace only if the stored revision still
	// matches". Returns the new revision token on success, or an error
	// matching ErrConflict when the write loses the race.
	Put(ctx context.Context, data []byte, rev string) (string, error)
}
