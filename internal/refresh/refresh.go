// Package refresh batches "these groups are dirty" notifications and delivers
// them to a redraw callback on a debounce interval, so rapid bursts of record
// changes collapse into one refresh.
package refresh

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/auditfront/triagesync/internal/logging"
	"go.uber.org/zap"
)

// Kind classifies a dirty-group delta.
type Kind int

const (
	// KindAdded marks a group that gained members.
	KindAdded Kind = iota
	// KindRemoved marks a group whose members went away. Removed deltas are
	// flushed first so the callback can prune before it redraws.
	KindRemoved
)

// Delta names one dirty group.
type Delta struct {
	Group string
	Kind  Kind
}

// Config wires the refresher.
type Config struct {
	// Interval is how long to wait before flushing accumulated deltas.
	Interval time.Duration
	// Flush receives each batch, removed deltas first.
	Flush  func(deltas []Delta)
	Logger *zap.Logger
}

// DefaultInterval is the debounce window used when none is configured.
const DefaultInterval = 250 * time.Millisecond

// Refresher collects dirty-group deltas and flushes them in debounced batches.
type Refresher struct {
	interval time.Duration
	flush    func([]Delta)
	logger   *zap.Logger

	mu      sync.Mutex
	pending []Delta
}

// New constructs a refresher.
func New(cfg Config) *Refresher {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	flush := cfg.Flush
	if flush == nil {
		flush = func([]Delta) {}
	}
	return &Refresher{
		interval: interval,
		flush:    flush,
		logger:   logging.OrNop(cfg.Logger),
	}
}

// MarkDirty queues a delta for the next flush. Duplicate deltas are dropped;
// it reports whether the delta was queued.
func (r *Refresher) MarkDirty(delta Delta) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if slices.Contains(r.pending, delta) {
		return false
	}
	r.pending = append(r.pending, delta)
	return true
}

// Run flushes pending deltas every interval until the context is cancelled.
// A final flush drains whatever is still pending at shutdown.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.flushPending()
			return
		case <-ticker.C:
			r.flushPending()
		}
	}
}

func (r *Refresher) flushPending() {
	r.mu.Lock()
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	// Removed groups first allows the redraw to prune cheaply.
	slices.SortStableFunc(batch, func(a, b Delta) int {
		switch {
		case a.Kind == b.Kind:
			return 0
		case a.Kind == KindRemoved:
			return -1
		default:
			return 1
		}
	})

	r.logger.Debug("flushing dirty groups", zap.Int("count", len(batch)))
	r.flush(batch)
}
