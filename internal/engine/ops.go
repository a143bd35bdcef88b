// Package engine is the collaborative finding-triage synchronization core: it
// reconciles locally observed findings against the shared backing store,
// merges multi-reviewer designations, and persists local mutations through a
// single write-behind worker without ever blocking the caller.
package engine

import (
	"github.com/auditfront/triagesync/internal/findings"
	"github.com/auditfront/triagesync/internal/review"
)

// opKind tags the persistence operation variants carried on the work queue.
// Operations are plain data interpreted by the worker; they never capture
// mutable state.
type opKind int

const (
	// opStoreFinding inserts a new finding row and binds its generated
	// identity back into the record store.
	opStoreFinding opKind = iota
	// opStoreEvaluation appends one reviewer designation to a persisted
	// finding. Dropped when the finding is not in the store yet.
	opStoreEvaluation
	// opUpdateFirstSeen corrects the first-seen timestamp of an existing row.
	opUpdateFirstSeen
	// opFileFinding persists the pending filing marker.
	opFileFinding
)

type operation struct {
	kind             opKind
	hash             findings.ContentHash
	finding          findings.Finding
	designation      review.Designation
	firstSeenSeconds int64
}
