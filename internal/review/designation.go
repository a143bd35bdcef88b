// Package review models per-user designations on findings and the
// mode-dependent policy that merges many reviewers' opinions into the single
// designation visible to a given viewer.
package review

import (
	"errors"
	"fmt"
	"strings"
)

// Key enumerates the designation classifications a reviewer can apply.
type Key string

const (
	KeyUnclassified   Key = "UNCLASSIFIED"
	KeyNeedsStudy     Key = "NEEDS_STUDY"
	KeyBadAnalysis    Key = "BAD_ANALYSIS"
	KeyNotABug        Key = "NOT_A_BUG"
	KeyMostlyHarmless Key = "MOSTLY_HARMLESS"
	KeyShouldFix      Key = "SHOULD_FIX"
	KeyMustFix        Key = "MUST_FIX"
	KeyWillFix        Key = "I_WILL_FIX"
	KeyObsoleteCode   Key = "OBSOLETE_CODE"
)

// ErrInvalidKey indicates an unknown designation classification.
var ErrInvalidKey = errors.New("review: invalid designation key")

var knownKeys = map[Key]struct{}{
	KeyUnclassified:   {},
	KeyNeedsStudy:     {},
	KeyBadAnalysis:    {},
	KeyNotABug:        {},
	KeyMostlyHarmless: {},
	KeyShouldFix:      {},
	KeyMustFix:        {},
	KeyWillFix:        {},
	KeyObsoleteCode:   {},
}

// ParseKey validates raw input and returns a Key.
func ParseKey(rawInput string) (Key, error) {
	candidate := Key(strings.ToUpper(strings.TrimSpace(rawInput)))
	if _, ok := knownKeys[candidate]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, rawInput)
	}
	return candidate, nil
}

// String returns the wire form of the key.
func (k Key) String() string {
	return string(k)
}

// Designation is one reviewer's opinion about one finding record: a
// classification plus an optional free-form comment, timestamped with its last
// modification. The timestamp doubles as the dirty marker — a designation is
// worth persisting only when its timestamp advances.
type Designation struct {
	User             string
	Key              Key
	Text             string
	TimestampSeconds int64
}
