package engine

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/auditfront/triagesync/internal/filing"
	"github.com/auditfront/triagesync/internal/findings"
	"github.com/auditfront/triagesync/internal/logging"
	"github.com/auditfront/triagesync/internal/review"
	"github.com/auditfront/triagesync/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	shutdownRetries = 100
	shutdownPoll    = 30 * time.Millisecond
	reportDayFormat = "01/02"

	// workerRestartLimit bounds how many times a failed worker is restarted
	// before the engine degrades to send-only.
	workerRestartLimit   = 5
	workerRestartBackoff = time.Second
	workerBackoffCeiling = 30 * time.Second
)

var (
	// ErrMissingDial indicates that no backing-store connection factory was configured.
	ErrMissingDial = errors.New("engine: backing store dial function is required")
	// ErrMissingReviewer indicates that no reviewer identity was configured.
	ErrMissingReviewer = errors.New("engine: reviewer identity is required")
	// ErrNotPersisted rejects filing a finding that has no server-side identity yet.
	ErrNotPersisted = errors.New("engine: finding is not persisted yet")
)

// Config wires the engine's collaborators. Dial is invoked lazily whenever the
// worker (or the reconciliation pass) needs a backing-store connection.
type Config struct {
	Reviewer    string
	Mode        review.Mode
	Dial        func() (*gorm.DB, error)
	Reports     *filing.Builder
	Logger      *zap.Logger
	Clock       func() time.Time
	IdleTimeout time.Duration
}

// Engine is the synchronization core. All mutations apply to the in-memory
// record store immediately and are persisted asynchronously; no method blocks
// the caller on backing-store I/O.
type Engine struct {
	records  *store.RecordStore
	queue    *opQueue
	board    *statusBoard
	reports  *filing.Builder
	reviewer string
	mode     review.Mode
	dial     func() (*gorm.DB, error)
	logger   *zap.Logger
	clock    func() time.Time
	idle     time.Duration

	cancel     context.CancelFunc
	workerDone chan struct{}
}

// New constructs an engine. Configuration errors fail cleanly: no worker is
// started and the engine stays disabled.
func New(cfg Config) (*Engine, error) {
	if cfg.Dial == nil {
		return nil, ErrMissingDial
	}
	if strings.TrimSpace(cfg.Reviewer) == "" {
		return nil, ErrMissingReviewer
	}

	mode := cfg.Mode
	if mode == "" {
		mode = review.ModeVoting
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	idle := cfg.IdleTimeout
	if idle <= 0 {
		idle = defaultIdleTimeout
	}
	reports := cfg.Reports
	if reports == nil {
		reports = filing.NewBuilder(filing.BuilderConfig{})
	}

	return &Engine{
		records:  store.NewRecordStore(),
		queue:    newOpQueue(),
		board:    newStatusBoard(clock),
		reports:  reports,
		reviewer: cfg.Reviewer,
		mode:     mode,
		dial:     cfg.Dial,
		logger:   logging.OrNop(cfg.Logger),
		clock:    clock,
		idle:     idle,
	}, nil
}

// Start runs the reconciliation pass synchronously, then starts the
// persistence worker. A failed bulk load degrades the engine (logged and
// surfaced on the status line) but does not prevent the worker from starting;
// queued operations still apply.
func (e *Engine) Start(ctx context.Context, local []findings.Finding) {
	if err := e.reconcile(ctx, local); err != nil {
		e.logger.Error("bulk load from backing store failed", zap.Error(err))
		e.board.setError("problem bulk loading from backing store")
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.workerDone = make(chan struct{})

	go e.superviseWorker(workerCtx)
}

// superviseWorker runs the persistence worker and restarts it after an
// escaping operation error, with exponential backoff up to a bounded number of
// attempts. A worker that spends its restart budget leaves the engine
// send-only: the queue keeps accepting mutations, nothing applies.
func (e *Engine) superviseWorker(ctx context.Context) {
	defer close(e.workerDone)

	backoff := workerRestartBackoff
	for attempt := 0; ; attempt++ {
		w := &worker{
			queue:       e.queue,
			records:     e.records,
			dial:        e.dial,
			board:       e.board,
			logger:      e.logger,
			idleTimeout: e.idle,
			reviewer:    e.reviewer,
		}
		err := w.run(ctx)
		if err == nil {
			return
		}
		if attempt+1 >= workerRestartLimit {
			e.logger.Error("persistence worker stopped after repeated failures",
				zap.Int("attempts", attempt+1), zap.Error(err))
			e.board.setError("synchronization disabled after repeated backing store failures")
			return
		}

		e.logger.Warn("restarting persistence worker",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > workerBackoffCeiling {
			backoff = workerBackoffCeiling
		}
	}
}

// Shutdown waits briefly for the queue to drain so in-flight writes are not
// lost, then stops the worker.
func (e *Engine) Shutdown() {
	if e.cancel == nil {
		return
	}
	if e.queue.len() > 0 && !e.workerStopped() {
		e.board.setError("waiting for synchronization to complete before shutdown")
		for i := 0; i < shutdownRetries; i++ {
			if e.queue.len() == 0 || e.workerStopped() {
				break
			}
			time.Sleep(shutdownPoll)
		}
	}
	e.cancel()
	select {
	case <-e.workerDone:
	case <-time.After(shutdownPoll * 10):
	}
}

func (e *Engine) workerStopped() bool {
	select {
	case <-e.workerDone:
		return true
	default:
		return false
	}
}

// Observe registers a locally observed finding and schedules its insertion
// when the backing store does not know it yet. Noise-category and dead
// findings are ignored entirely.
func (e *Engine) Observe(finding findings.Finding) {
	if finding.Skip() {
		return
	}
	e.records.Observe(finding)
	snapshot, ok := e.records.Snapshot(finding.Hash)
	if ok && !snapshot.InStore {
		e.queue.enqueue(operation{kind: opStoreFinding, hash: finding.Hash, finding: finding})
	}
}

// SetDesignation applies the reviewer's classification to the finding. The
// mutation is persisted only when it is dirty: an unchanged key enqueues
// nothing, and a first-ever "unclassified" is a no-op.
func (e *Engine) SetDesignation(hash findings.ContentHash, key review.Key, timestampSeconds int64) {
	e.records.GetOrCreate(hash)

	draft, ok := e.records.WorkingDesignation(hash, e.reviewer)
	if !ok {
		if key == review.KeyUnclassified {
			return
		}
		draft = review.Designation{User: e.reviewer, Key: review.KeyUnclassified}
	}
	if draft.Key == key {
		return
	}

	draft.User = e.reviewer
	draft.Key = key
	draft.TimestampSeconds = timestampSeconds
	e.records.SetWorkingDesignation(hash, draft)
	e.queue.enqueue(operation{kind: opStoreEvaluation, hash: hash, designation: draft})
}

// SetAnnotationText applies the reviewer's free-form comment to the finding,
// with the same dirty rules as SetDesignation.
func (e *Engine) SetAnnotationText(hash findings.ContentHash, text string, timestampSeconds int64) {
	e.records.GetOrCreate(hash)

	draft, ok := e.records.WorkingDesignation(hash, e.reviewer)
	if !ok {
		if text == "" {
			return
		}
		draft = review.Designation{User: e.reviewer, Key: review.KeyUnclassified}
	}
	if draft.Text == text {
		return
	}

	draft.User = e.reviewer
	draft.Text = text
	draft.TimestampSeconds = timestampSeconds
	e.records.SetWorkingDesignation(hash, draft)
	e.queue.enqueue(operation{kind: opStoreEvaluation, hash: hash, designation: draft})
}

// PrimaryDesignation returns the single designation visible to the viewer as
// authoritative under the engine's review mode.
func (e *Engine) PrimaryDesignation(hash findings.ContentHash, viewer string) (review.Designation, bool) {
	snapshot, ok := e.records.Snapshot(hash)
	if !ok {
		return review.Designation{}, false
	}
	return review.PrimaryDesignation(e.mode, viewer, snapshot.History)
}

// Reviewers returns the distinct users that have ever designated the finding.
func (e *Engine) Reviewers(hash findings.ContentHash) []string {
	snapshot, ok := e.records.Snapshot(hash)
	if !ok {
		return nil
	}
	return snapshot.History.Reviewers()
}

// IsClaimed reports whether any reviewer's current designation is "I will fix".
func (e *Engine) IsClaimed(hash findings.ContentHash) bool {
	snapshot, ok := e.records.Snapshot(hash)
	if !ok {
		return false
	}
	return snapshot.History.Claimed()
}

// FirstSeen returns the earliest observation timestamp known for the finding.
func (e *Engine) FirstSeen(hash findings.ContentHash) int64 {
	snapshot, ok := e.records.Snapshot(hash)
	if !ok {
		return 0
	}
	return snapshot.FirstSeenSeconds
}

// FilingStatus derives the finding's filing state for the engine's reviewer.
func (e *Engine) FilingStatus(hash findings.ContentHash) filing.Status {
	snapshot, ok := e.records.Snapshot(hash)
	if !ok {
		return filing.StatusFileBug
	}
	filedAt := snapshot.FiledAtSeconds
	if filedAt == store.NeverFiledSeconds {
		filedAt = 0
	}
	return filing.StatusOf(snapshot.FilingKey, snapshot.FiledBy, filedAt, e.reviewer, e.clock())
}

// FileLink builds the outbound tracker link for filing the finding.
func (e *Engine) FileLink(finding findings.Finding) (*url.URL, error) {
	return e.reports.FileLink(finding)
}

// ViewLink builds the tracker link for a durably filed finding.
func (e *Engine) ViewLink(hash findings.ContentHash) (*url.URL, error) {
	snapshot, ok := e.records.Snapshot(hash)
	if !ok || !filing.Filed(snapshot.FilingKey) {
		return nil, filing.ErrNoViewLinkTemplate
	}
	return e.reports.ViewLink(snapshot.FilingKey)
}

// FileFinding transitions the finding to the pending filing state and
// schedules persistence of the marker. Filing an already durably filed
// finding is a caller error and is rejected before anything is enqueued;
// callers must consult FilingStatus first.
func (e *Engine) FileFinding(finding findings.Finding) error {
	snapshot, ok := e.records.Snapshot(finding.Hash)
	if !ok || !snapshot.InStore {
		return ErrNotPersisted
	}
	if filing.Filed(snapshot.FilingKey) {
		return filing.ErrAlreadyFiled
	}

	e.records.MarkFiled(finding.Hash, filing.KeyPending, e.reviewer, e.clock().Unix())
	e.queue.enqueue(operation{kind: opFileFinding, hash: finding.Hash})
	return nil
}

// Report renders the review summary for a finding: first-seen date plus every
// non-primary designation the viewer is allowed to read under the mode's
// comment-visibility rule.
func (e *Engine) Report(hash findings.ContentHash, viewer string) string {
	snapshot, ok := e.records.Snapshot(hash)
	if !ok {
		return ""
	}

	var builder strings.Builder
	if snapshot.FirstSeenSeconds > 0 && snapshot.FirstSeenSeconds < store.NeverFiledSeconds {
		fmt.Fprintf(&builder, "First seen %s\n",
			time.Unix(snapshot.FirstSeenSeconds, 0).UTC().Format(reportDayFormat))
	}

	primary, hasPrimary := review.PrimaryDesignation(e.mode, viewer, snapshot.History)
	for _, d := range review.VisibleDesignations(e.mode, viewer, snapshot.History) {
		if hasPrimary && d == primary {
			continue
		}
		fmt.Fprintf(&builder, "%s @ %s: %s\n", d.User,
			time.Unix(d.TimestampSeconds, 0).UTC().Format(reportDayFormat), d.Key)
		if d.Text != "" {
			builder.WriteString(d.Text)
			builder.WriteString("\n\n")
		}
	}
	return builder.String()
}

// Record returns a detached copy of the in-memory record for the hash.
func (e *Engine) Record(hash findings.ContentHash) (store.Record, bool) {
	return e.records.Snapshot(hash)
}

// Status renders the poll surface: synchronized counts plus any unexpired
// error message.
func (e *Engine) Status() string {
	return e.board.status(e.queue.len())
}

// Pending returns the number of queued, not yet applied operations.
func (e *Engine) Pending() int {
	return e.queue.len()
}

// Handled returns the number of completed persistence operations.
func (e *Engine) Handled() int {
	return e.board.handledCount()
}

// Mode returns the engine's review mode.
func (e *Engine) Mode() review.Mode {
	return e.mode
}

// Reviewer returns the configured local reviewer identity.
func (e *Engine) Reviewer() string {
	return e.reviewer
}
