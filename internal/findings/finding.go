// Package findings models the locally observed analysis findings that the
// synchronization engine reconciles against the shared backing store.
package findings

import (
	"errors"
	"fmt"
	"strings"
)

const maxIdentifierLength = 190

// CategoryNoise marks findings that must never reach the backing store.
const CategoryNoise = "NOISE"

var (
	// ErrInvalidContentHash indicates that a content hash is empty or exceeds storage bounds.
	ErrInvalidContentHash = errors.New("findings: invalid content hash")
)

// ContentHash is the stable identity of a finding, derived from its semantic
// content rather than from run-specific metadata such as line numbers.
type ContentHash string

// NewContentHash validates raw input and returns a ContentHash.
func NewContentHash(rawInput string) (ContentHash, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidContentHash)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidContentHash, maxIdentifierLength)
	}
	return ContentHash(trimmed), nil
}

// String returns the underlying hash value.
func (h ContentHash) String() string {
	return string(h)
}

// Finding is one locally observed finding occurrence. Distinct scans may
// produce several Finding values sharing one content hash; the record store
// collapses them onto a single record.
type Finding struct {
	Hash             ContentHash
	Pattern          string
	Category         string
	Severity         int
	Subject          string
	SourceFile       string
	StartLine        int
	EndLine          int
	Message          string
	Details          string
	FirstSeenSeconds int64
	Dead             bool
}

// Skip reports whether the finding is excluded from synchronization entirely.
// Noise-category and dead findings never reach the backing store.
func (f Finding) Skip() bool {
	return f.Dead || f.Category == CategoryNoise
}
