package remote

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// blobName is the single file a Dir remote manages.
const blobName = "data.json"

// Dir is a remote backed by a single file in a local directory, intended
// for folders that some other agent mirrors across devices (a Dropbox or
// Syncthing folder, a network share). The revision token is the SHA-256
// of the blob contents, so any out-of-band change to the file invalidates
// a stale expected revision exactly like a server-side CAS would.
type Dir struct {
	path string
}

// NewDir creates a Dir remote rooted at the given directory, creating the
// directory if needed.
func NewDir(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create remote directory: %w", err)
	}
	return &Dir{path: path}, nil
}

func (d *Dir) blobPath() string { return filepath.Join(d.path, blobName) }

// Fetch implements Client.Fetch.
func (d *Dir) Fetch(ctx context.Context) (*Fetched, error) {
	data, err := os.ReadFile(d.blobPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read remote blob: %v: %w", err, ErrUnavailable)
	}
	return &Fetched{Data: data, Rev: contentRev(data)}, nil
}

// Put implements Client.Put. The write is a temp-file rename so a reader
// never observes a half-written blob.
func (d *Dir) Put(ctx context.Context, data []byte, rev string) (string, error) {
	current, err := os.ReadFile(d.blobPath())
	switch {
	case os.IsNotExist(err):
		if rev != "" {
			return "", fmt.Errorf("remote blob vanished under expected revision %s: %w", rev, ErrConflict)
		}
	case err != nil:
		return "", fmt.Errorf("failed to read remote blob: %v: %w", err, ErrUnavailable)
	default:
		if rev == "" {
			return "", fmt.Errorf("remote blob already exists: %w", ErrConflict)
		}
		if contentRev(current) != rev {
			return "", fmt.Errorf("expected revision %s is stale: %w", rev, ErrConflict)
		}
	}

	tmp, err := os.CreateTemp(d.path, blobName+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp blob: %v: %w", err, ErrUnavailable)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write temp blob: %v: %w", err, ErrUnavailable)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close temp blob: %v: %w", err, ErrUnavailable)
	}
	if err := os.Rename(tmpPath, d.blobPath()); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to publish remote blob: %v: %w", err, ErrUnavailable)
	}

	return contentRev(data), nil
}

// BlobPath returns the path of the managed blob, for file watchers.
func (d *Dir) BlobPath() string { return d.blobPath() }

func contentRev(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
