// Package store holds the in-memory finding record arena and the GORM row
// models for the shared backing store.
package store

import (
	"math"

	"github.com/auditfront/triagesync/internal/findings"
	"github.com/auditfront/triagesync/internal/review"
)

// NeverFiledSeconds is the sentinel "filed at" value for records that have no
// filing on record.
const NeverFiledSeconds int64 = math.MaxInt64

// FindingRow models one persisted finding, keyed by store identity with a
// unique content-hash column.
type FindingRow struct {
	ID               int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Hash             string `gorm:"column:hash;size:190;not null;uniqueIndex:idx_findings_hash"`
	FirstSeenSeconds int64  `gorm:"column:first_seen_s;not null"`
	LastSeenSeconds  int64  `gorm:"column:last_seen_s;not null"`
	Pattern          string `gorm:"column:pattern;size:190;not null"`
	Severity         int    `gorm:"column:severity;not null"`
	Subject          string `gorm:"column:subject;size:320;not null"`
	FilingKey        string `gorm:"column:filing_key;size:190;not null;default:''"`
	FiledAtSeconds   *int64 `gorm:"column:filed_at_s"`
	FiledBy          string `gorm:"column:filed_by;size:190;not null;default:''"`
}

// TableName provides the explicit table binding for GORM.
func (FindingRow) TableName() string {
	return "findings"
}

// EvaluationRow models one persisted designation, attached to its finding by
// foreign identity.
type EvaluationRow struct {
	ID               int64  `gorm:"column:id;primaryKey;autoIncrement"`
	FindingID        int64  `gorm:"column:finding_id;not null;index:idx_evaluations_finding"`
	Reviewer         string `gorm:"column:reviewer;size:190;not null"`
	Designation      string `gorm:"column:designation;size:64;not null"`
	Comment          string `gorm:"column:comment;type:text;not null"`
	TimestampSeconds int64  `gorm:"column:time_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (EvaluationRow) TableName() string {
	return "evaluations"
}

// Record is the in-memory state for one distinct finding content hash. Fields
// are mutated only through RecordStore methods so that the caller and the
// persistence worker never race on them.
type Record struct {
	Hash             findings.ContentHash
	StoreID          int64
	InStore          bool
	FirstSeenSeconds int64
	FilingKey        string
	FiledBy          string
	FiledAtSeconds   int64
	History          review.History
	Instances        []findings.Finding

	// working is the local reviewer's designation draft, used for dirty
	// detection before an annotation is enqueued.
	working    review.Designation
	workingSet bool
}
