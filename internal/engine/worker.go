package engine

import (
	"context"
	"time"

	"github.com/auditfront/triagesync/internal/filing"
	"github.com/auditfront/triagesync/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// defaultIdleTimeout is how long the worker waits on an empty queue before
	// shedding its backing-store connection.
	defaultIdleTimeout = 10 * time.Second
	// statusLogEvery batches the worker's progress logging.
	statusLogEvery = 100
)

// worker is the single sequential execution context that drains the operation
// queue against the backing store. Its connection is opened lazily on the
// first operation after an idle period and released again when the queue
// stays empty.
type worker struct {
	queue       *opQueue
	records     *store.RecordStore
	dial        func() (*gorm.DB, error)
	board       *statusBoard
	logger      *zap.Logger
	idleTimeout time.Duration
	reviewer    string

	db *gorm.DB
}

// run drains the queue until the context is cancelled or an operation fails.
// An escaping operation error is returned to the supervisor; the failing
// operation is put back at the head of the queue for the next attempt.
func (w *worker) run(ctx context.Context) error {
	defer w.closeConnection()

	handled := 0
	for {
		op, ok := w.queue.tryDequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-w.queue.signal:
				continue
			case <-time.After(w.idleTimeout):
				w.closeConnection()
				continue
			}
		}

		if err := w.establishConnection(); err != nil {
			w.queue.requeueFront(op)
			w.fail("backing store connection failed", err)
			return err
		}
		if err := w.apply(ctx, op); err != nil {
			w.queue.requeueFront(op)
			w.fail("backing store operation failed", err)
			return err
		}

		handled++
		w.board.addHandled(1)
		if handled%statusLogEvery == 0 || w.queue.len() == 0 {
			w.logger.Debug("synchronization progress",
				zap.Int("handled", w.board.handledCount()),
				zap.Int("pending", w.queue.len()))
		}
	}
}

func (w *worker) establishConnection() error {
	if w.db != nil {
		return nil
	}
	db, err := w.dial()
	if err != nil {
		return err
	}
	w.db = db
	return nil
}

func (w *worker) closeConnection() {
	if w.db == nil {
		return
	}
	if err := closeDB(w.db); err != nil {
		w.logger.Warn("closing backing store connection failed", zap.Error(err))
	}
	w.db = nil
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// fail surfaces a non-fatal, user-visible error and leaves the engine
// send-only-degraded.
func (w *worker) fail(msg string, err error) {
	w.logger.Error(msg, zap.Error(err))
	w.board.setError(msg)
}

func (w *worker) apply(ctx context.Context, op operation) error {
	switch op.kind {
	case opStoreFinding:
		return w.storeFinding(ctx, op)
	case opStoreEvaluation:
		return w.storeEvaluation(ctx, op)
	case opUpdateFirstSeen:
		return w.updateFirstSeen(ctx, op)
	case opFileFinding:
		return w.fileFinding(ctx, op)
	}
	return nil
}

// storeFinding inserts a new row for the finding and binds the generated
// identity back into the record store. Duplicate enqueues are harmless: a
// record already in the store is left untouched.
func (w *worker) storeFinding(ctx context.Context, op operation) error {
	snapshot, ok := w.records.Snapshot(op.hash)
	if !ok || snapshot.InStore {
		return nil
	}

	firstSeen := snapshot.FirstSeenSeconds
	if firstSeen == 0 {
		firstSeen = op.finding.FirstSeenSeconds
	}

	row := store.FindingRow{
		Hash:             op.hash.String(),
		FirstSeenSeconds: firstSeen,
		LastSeenSeconds:  firstSeen,
		Pattern:          op.finding.Pattern,
		Severity:         op.finding.Severity,
		Subject:          op.finding.Subject,
		FilingKey:        filing.KeyNone,
	}
	if err := w.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}

	w.records.BindStoreID(op.hash, row.ID, firstSeen, filing.KeyNone, nil, "")
	return nil
}

// storeEvaluation appends the designation to the record's history and
// persists it. Designations on findings that have no server-side identity yet
// are dropped; they stay memory-only until the finding itself is persisted.
func (w *worker) storeEvaluation(ctx context.Context, op operation) error {
	snapshot, ok := w.records.Snapshot(op.hash)
	if !ok || !snapshot.InStore {
		return nil
	}

	designation := op.designation
	if designation.User == "" {
		designation.User = w.reviewer
	}

	row := store.EvaluationRow{
		FindingID:        snapshot.StoreID,
		Reviewer:         designation.User,
		Designation:      designation.Key.String(),
		Comment:          designation.Text,
		TimestampSeconds: designation.TimestampSeconds,
	}
	if err := w.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}

	w.records.AppendDesignation(op.hash, row.ID, designation)
	return nil
}

func (w *worker) updateFirstSeen(ctx context.Context, op operation) error {
	snapshot, ok := w.records.Snapshot(op.hash)
	if !ok || !snapshot.InStore {
		return nil
	}
	return w.db.WithContext(ctx).
		Model(&store.FindingRow{}).
		Where("id = ?", snapshot.StoreID).
		Update("first_seen_s", op.firstSeenSeconds).Error
}

func (w *worker) fileFinding(ctx context.Context, op operation) error {
	snapshot, ok := w.records.Snapshot(op.hash)
	if !ok || !snapshot.InStore {
		return nil
	}
	return w.db.WithContext(ctx).
		Model(&store.FindingRow{}).
		Where("id = ?", snapshot.StoreID).
		Updates(map[string]any{
			"filing_key": snapshot.FilingKey,
			"filed_at_s": snapshot.FiledAtSeconds,
			"filed_by":   snapshot.FiledBy,
		}).Error
}
