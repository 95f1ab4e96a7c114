package syncer

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"time"
)

// DefaultDebounce is the inactivity window before a burst of local
// mutations triggers one sync round.
const DefaultDebounce = 30 * time.Second

// Notifier collapses bursts of local mutations into at most one sync
// invocation per quiet period (trailing-edge debounce, no leading call,
// no queue of pending rounds).
//
// Notify (re)starts the inactivity timer; if it elapses without another
// Notify, one round runs. SyncNow bypasses the timer and runs a round
// immediately, subject to the same single-flight guard. When the syncer
// has no remote configured, Notify is a no-op.
type Notifier struct {
	syncer *Syncer
	delay  time.Duration
	logger *log.Logger

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewNotifier creates a Notifier with the given quiet period; delay <= 0
// falls back to DefaultDebounce.
func NewNotifier(s *Syncer, delay time.Duration, logger *log.Logger) *Notifier {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[notify] ", log.LstdFlags)
	}
	return &Notifier{syncer: s, delay: delay, logger: logger}
}

// Notify records a local mutation, restarting the inactivity timer.
func (n *Notifier) Notify() {
	if !n.syncer.Enabled() {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stopped {
		return
	}
	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = time.AfterFunc(n.delay, n.fire)
}

// SyncNow runs a round immediately, bypassing the timer.
func (n *Notifier) SyncNow(ctx context.Context) error {
	return n.syncer.Sync(ctx)
}

// Stop cancels any pending deferred round. Further Notify calls are
// no-ops. A round already started is not interrupted.
func (n *Notifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopped = true
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}

// fire runs on the timer goroutine after a full quiet period.
func (n *Notifier) fire() {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return
	}
	n.timer = nil
	n.mu.Unlock()

	if err := n.syncer.Sync(context.Background()); err != nil {
		if errors.Is(err, ErrAlreadySyncing) {
			n.logger.Printf("Debounced sync skipped: %v", err)
			return
		}
		n.logger.Printf("Debounced sync failed: %v", err)
	}
}
