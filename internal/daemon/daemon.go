// Package daemon runs synchronization in the background.
//
// The daemon:
// 1. Performs one sync round on startup
// 2. Watches the local database files for out-of-process mutations
// 3. Watches a directory remote's blob for changes from other devices
// 4. Feeds every observed change into the debounced notifier
// 5. Runs a periodic fallback round and handles graceful shutdown
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/seihin-app/seihin/internal/syncer"
)

// Config holds configuration for the daemon.
type Config struct {
	// DebounceInterval is the quiet period after a local change before a
	// sync round runs. Batches rapid edits together.
	DebounceInterval time.Duration

	// PeriodicInterval is the fallback cadence for rounds when no file
	// events arrive. Zero disables periodic rounds.
	PeriodicInterval time.Duration

	// QuietWindow suppresses file events for this long after a round
	// completes. A round's own writes to the database and the remote
	// blob arrive as watcher events; without the window every round
	// would schedule the next one. Zero means the default.
	QuietWindow time.Duration

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: syncer.DefaultDebounce,
		PeriodicInterval: 15 * time.Minute,
		QuietWindow:      2 * time.Second,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon wires file watching, debouncing, and periodic rounds around one
// Syncer.
type Daemon struct {
	syncer   *syncer.Syncer
	notifier *syncer.Notifier
	config   *Config

	// dbPath is the local database file; events for it and its WAL
	// sidecars count as local mutations.
	dbPath string

	// remoteBlob, when non-empty, is a directory remote's blob file;
	// events for it mean another device pushed a snapshot.
	remoteBlob string

	watcher *fsnotify.Watcher

	// quietUntil (unix nanos) gates file events after a round completes.
	quietUntil atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a daemon around an existing syncer.
//
// dbPath is the local database file to watch. remoteBlob may be empty
// when the remote is not a watchable local file (e.g. Dropbox).
func New(s *syncer.Syncer, dbPath, remoteBlob string, config *Config) (*Daemon, error) {
	if s == nil {
		return nil, fmt.Errorf("syncer cannot be nil")
	}
	if dbPath == "" {
		return nil, fmt.Errorf("dbPath cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.QuietWindow <= 0 {
		config.QuietWindow = DefaultConfig().QuietWindow
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		syncer:     s,
		notifier:   syncer.NewNotifier(s, config.DebounceInterval, config.Logger),
		config:     config,
		dbPath:     dbPath,
		remoteBlob: remoteBlob,
		watcher:    watcher,
		ctx:        ctx,
		cancel:     cancel,
	}
	s.OnEvent(func(syncer.Event) {
		d.quietUntil.Store(time.Now().Add(config.QuietWindow).UnixNano())
	})
	return d, nil
}

// Notifier exposes the daemon's debounced trigger so in-process writers
// can report mutations directly instead of going through the filesystem.
func (d *Daemon) Notifier() *syncer.Notifier { return d.notifier }

// Start begins the daemon's operation.
//
// One round runs immediately, then file events and the periodic ticker
// drive further rounds. Blocks until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	// Startup round. A failure here is logged, not fatal: the remote may
	// simply be unreachable right now and later rounds can succeed.
	if err := d.notifier.SyncNow(ctx); err != nil {
		d.config.Logger.Printf("Startup sync failed: %v", err)
	}

	// Watch the directories, not the files: SQLite and the directory
	// remote both publish by rename, which drops a file-level watch.
	watchDirs := map[string]bool{filepath.Dir(d.dbPath): true}
	if d.remoteBlob != "" {
		watchDirs[filepath.Dir(d.remoteBlob)] = true
	}
	for dir := range watchDirs {
		if err := d.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		d.config.Logger.Printf("Watching: %s", dir)
	}

	d.wg.Add(1)
	go d.watchFileEvents()

	if d.config.PeriodicInterval > 0 {
		d.wg.Add(1)
		go d.periodicSync()
	}

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon. A round already in flight is
// not interrupted; pending debounced rounds are cancelled.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")

	d.cancel()

	if err := d.watcher.Close(); err != nil {
		d.config.Logger.Printf("Error closing watcher: %v", err)
	}

	d.notifier.Stop()
	d.wg.Wait()

	d.config.Logger.Println("Daemon stopped")
	return nil
}

// watchFileEvents monitors filesystem events and feeds the notifier.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if !d.relevant(event.Name) {
				continue
			}
			// A round's own writes arrive back as events, during the
			// round and for a moment after; they must not schedule the
			// next one.
			if d.syncer.Status() == syncer.StatusSyncing {
				continue
			}
			if time.Now().UnixNano() < d.quietUntil.Load() {
				continue
			}
			d.config.Logger.Printf("File event: %s %s", event.Op, event.Name)
			d.notifier.Notify()

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// relevant reports whether a changed path should trigger a round: the
// database file (including its -wal and -shm sidecars) or the remote
// blob. Temp files from atomic publishes are ignored.
func (d *Daemon) relevant(path string) bool {
	if strings.HasPrefix(path, d.dbPath) {
		return true
	}
	return d.remoteBlob != "" && path == d.remoteBlob
}

// periodicSync runs fallback rounds so devices converge even when no
// watched file changes (e.g. the remote is Dropbox and another device
// pushed).
func (d *Daemon) periodicSync() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.PeriodicInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			if err := d.notifier.SyncNow(d.ctx); err != nil {
				d.config.Logger.Printf("Periodic sync failed: %v", err)
			}
		}
	}
}
