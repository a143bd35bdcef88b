package engine

import (
	"context"
	"fmt"

	"github.com/auditfront/triagesync/internal/findings"
	"github.com/auditfront/triagesync/internal/review"
	"github.com/auditfront/triagesync/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// minimumTimestampSeconds is the sanity floor for first-seen corrections.
// Anything below it (before 2001-09-09) is an implausible clock artifact.
const minimumTimestampSeconds int64 = 1_000_000_000

// reconcile performs the one-time bulk load: bind every stored finding and its
// designation history into the record store, then schedule inserts for local
// findings the store does not know yet. Runs synchronously before the worker
// starts; it uses its own short-lived connection.
func (e *Engine) reconcile(ctx context.Context, local []findings.Finding) error {
	for _, finding := range local {
		if finding.Skip() {
			continue
		}
		e.records.Observe(finding)
	}

	db, err := e.dial()
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	defer closeDB(db) //nolint:errcheck

	if err := e.loadStoredFindings(ctx, db); err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	if err := e.loadStoredEvaluations(ctx, db); err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	for _, finding := range local {
		if finding.Skip() {
			continue
		}
		e.reconcileFinding(finding)
	}
	return nil
}

func (e *Engine) loadStoredFindings(ctx context.Context, db *gorm.DB) error {
	var rows []store.FindingRow
	if err := db.WithContext(ctx).Find(&rows).Error; err != nil {
		return err
	}
	for _, row := range rows {
		hash, err := findings.NewContentHash(row.Hash)
		if err != nil {
			e.logger.Warn("skipping stored finding with invalid hash",
				zap.Int64("id", row.ID), zap.Error(err))
			continue
		}
		e.records.BindStoreID(hash, row.ID, row.FirstSeenSeconds, row.FilingKey, row.FiledAtSeconds, row.FiledBy)
	}
	return nil
}

func (e *Engine) loadStoredEvaluations(ctx context.Context, db *gorm.DB) error {
	var rows []store.EvaluationRow
	if err := db.WithContext(ctx).Order("time_s ASC, id ASC").Find(&rows).Error; err != nil {
		return err
	}
	dropped := 0
	for _, row := range rows {
		key, err := review.ParseKey(row.Designation)
		if err != nil {
			key = review.KeyUnclassified
		}
		attached := e.records.AttachEvaluation(row.ID, row.FindingID, review.Designation{
			User:             row.Reviewer,
			Key:              key,
			Text:             row.Comment,
			TimestampSeconds: row.TimestampSeconds,
		})
		if !attached {
			dropped++
		}
	}
	if dropped > 0 {
		e.logger.Debug("evaluations not attached during bulk load", zap.Int("count", dropped))
	}
	return nil
}

// reconcileFinding settles one local finding against the loaded store state:
// unknown findings are scheduled for insertion; known ones get a first-seen
// correction when the local observation is materially earlier and plausible,
// and the stored primary designation is copied down as the reviewer's local
// draft so the last-known classification is visible without a round trip.
func (e *Engine) reconcileFinding(finding findings.Finding) {
	snapshot, ok := e.records.Snapshot(finding.Hash)
	if !ok {
		return
	}

	if !snapshot.InStore {
		e.queue.enqueue(operation{kind: opStoreFinding, hash: finding.Hash, finding: finding})
		return
	}

	e.board.addHandled(1)

	firstSeen := finding.FirstSeenSeconds
	if firstSeen > 0 && firstSeen < minimumTimestampSeconds {
		e.logger.Warn("rejecting implausible first-seen timestamp",
			zap.String("hash", finding.Hash.String()),
			zap.Int64("first_seen_s", firstSeen))
	} else if firstSeen > 0 && firstSeen < snapshot.FirstSeenSeconds {
		if e.records.LowerFirstSeen(finding.Hash, firstSeen) {
			e.queue.enqueue(operation{kind: opUpdateFirstSeen, hash: finding.Hash, firstSeenSeconds: firstSeen})
		}
	}

	if primary, ok := review.PrimaryDesignation(e.mode, e.reviewer, snapshot.History); ok {
		e.records.SetWorkingDesignation(finding.Hash, primary)
	}
}
