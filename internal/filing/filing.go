// Package filing tracks whether a finding has been submitted to the external
// issue tracker and builds the bounded-length report payloads for outbound
// filing links.
package filing

import (
	"errors"
	"strconv"
	"time"
)

const (
	// KeyNone marks a record with no filing on record.
	KeyNone = "none"
	// KeyPending marks a filing that has been requested but has no durable
	// tracker reference yet.
	KeyPending = "-- pending --"

	// PendingTimeout is how long a pending filing is honored before it ages
	// out and the finding becomes filable again.
	PendingTimeout = 2 * time.Hour
)

// ErrAlreadyFiled rejects filing a finding that already has a durable tracker
// reference. Callers must check the filing status before filing.
var ErrAlreadyFiled = errors.New("filing: finding already filed")

// Status enumerates the filing states of a finding record.
type Status int

const (
	// StatusFileBug: no filing on record, or a prior pending filing aged out.
	StatusFileBug Status = iota
	// StatusFileAgain: pending, and the viewer is the one who filed it.
	StatusFileAgain
	// StatusBugPending: pending, filed recently by someone else.
	StatusBugPending
	// StatusViewBug: a durable external tracker reference exists.
	StatusViewBug
	// StatusNA: the filing key is opaque and no external linkage applies.
	StatusNA
)

// String returns a short label for the status.
func (s Status) String() string {
	switch s {
	case StatusFileBug:
		return "file"
	case StatusFileAgain:
		return "file-again"
	case StatusBugPending:
		return "pending"
	case StatusViewBug:
		return "view"
	case StatusNA:
		return "n/a"
	}
	return "unknown"
}

// Filed reports whether the filing key references a durable filing: anything
// other than empty, the unfiled sentinel, or the pending sentinel.
func Filed(filingKey string) bool {
	return filingKey != "" && filingKey != KeyNone && filingKey != KeyPending
}

// StatusOf derives the filing status for a viewer from the record's filing
// linkage. A pending filing ages out after PendingTimeout measured from the
// filing timestamp; an un-aged pending filing belongs to its filer
// (StatusFileAgain) and blocks everyone else (StatusBugPending). A durable key
// is viewable when it parses as an external tracker identifier.
func StatusOf(filingKey, filedBy string, filedAtSeconds int64, viewer string, now time.Time) Status {
	if filingKey == "" || filingKey == KeyNone {
		return StatusFileBug
	}
	if filingKey == KeyPending {
		if filedAtSeconds != 0 && now.Unix()-filedAtSeconds > int64(PendingTimeout/time.Second) {
			return StatusFileBug
		}
		if viewer == filedBy {
			return StatusFileAgain
		}
		return StatusBugPending
	}
	if _, err := strconv.Atoi(filingKey); err == nil {
		return StatusViewBug
	}
	return StatusNA
}
