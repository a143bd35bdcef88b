package review

import (
	"errors"
	"fmt"
	"strings"
)

// Mode controls how reviewers' designations are merged and who may see whose
// comments.
type Mode string

const (
	// ModeSecret hides every reviewer's designation and comment from everyone
	// else; each viewer sees only their own opinion.
	ModeSecret Mode = "SECRET"
	// ModeCommunal shares all designations and comments with everyone.
	ModeCommunal Mode = "COMMUNAL"
	// ModeVoting shares other reviewers' comments only after the viewer has
	// cast a designation of their own.
	ModeVoting Mode = "VOTING"
)

// ErrInvalidMode indicates an unknown review mode.
var ErrInvalidMode = errors.New("review: invalid mode")

// ParseMode validates raw input and returns a Mode.
func ParseMode(rawInput string) (Mode, error) {
	candidate := Mode(strings.ToUpper(strings.TrimSpace(rawInput)))
	switch candidate {
	case ModeSecret, ModeCommunal, ModeVoting:
		return candidate, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, rawInput)
}

// History is a record's designation history, ordered by timestamp ascending.
// Entries are appended as mutations arrive; the full history is retained so
// that "who reviewed this" stays answerable.
type History []Designation

// LatestBy returns the most recent designation cast by the given user, or
// false when the user has never designated the record. Later entries win ties.
func (h History) LatestBy(user string) (Designation, bool) {
	var found Designation
	var ok bool
	for _, d := range h {
		if d.User == user {
			found = d
			ok = true
		}
	}
	return found, ok
}

// Latest returns the most recent designation overall, or false for an empty
// history. Timestamps decide; history order breaks ties with the later entry
// winning.
func (h History) Latest() (Designation, bool) {
	var found Designation
	var ok bool
	for _, d := range h {
		if !ok || d.TimestampSeconds >= found.TimestampSeconds {
			found = d
			ok = true
		}
	}
	return found, ok
}

// HasVoted reports whether the viewer has cast any designation on the record.
func (h History) HasVoted(viewer string) bool {
	_, ok := h.LatestBy(viewer)
	return ok
}

// Reviewers returns the distinct non-empty user identities that have ever
// designated the record.
func (h History) Reviewers() []string {
	seen := make(map[string]struct{}, len(h))
	reviewers := make([]string, 0, len(h))
	for _, d := range h {
		if d.User == "" {
			continue
		}
		if _, ok := seen[d.User]; ok {
			continue
		}
		seen[d.User] = struct{}{}
		reviewers = append(reviewers, d.User)
	}
	return reviewers
}

// Claimed reports whether any distinct user's most recent designation is
// "I will fix". The first matching user in history order wins.
func (h History) Claimed() bool {
	checked := make(map[string]struct{}, len(h))
	for _, d := range h {
		if d.User == "" {
			continue
		}
		if _, ok := checked[d.User]; ok {
			continue
		}
		checked[d.User] = struct{}{}
		if latest, ok := h.LatestBy(d.User); ok && latest.Key == KeyWillFix {
			return true
		}
	}
	return false
}

// PrimaryDesignation selects the single designation visible to the viewer as
// authoritative under the given mode:
//
//   - SECRET: the viewer's own most recent designation, else none.
//   - COMMUNAL: the viewer's own most recent designation if present, else the
//     most recent designation overall.
//   - VOTING: the viewer's own most recent designation if present, else none —
//     a viewer who has not voted has no visible opinion.
func PrimaryDesignation(mode Mode, viewer string, history History) (Designation, bool) {
	if own, ok := history.LatestBy(viewer); ok {
		return own, true
	}
	switch mode {
	case ModeCommunal:
		return history.Latest()
	case ModeSecret, ModeVoting:
		return Designation{}, false
	}
	return Designation{}, false
}

// CanSeeOthersComments reports whether the viewer may read designations and
// comments left by other reviewers.
func CanSeeOthersComments(mode Mode, viewer string, history History) bool {
	switch mode {
	case ModeSecret:
		return false
	case ModeCommunal:
		return true
	case ModeVoting:
		return history.HasVoted(viewer)
	}
	return false
}

// VisibleDesignations returns the history entries the viewer may read, in
// history order: their own always, others' only when the mode allows it.
func VisibleDesignations(mode Mode, viewer string, history History) []Designation {
	seeOthers := CanSeeOthersComments(mode, viewer, history)
	visible := make([]Designation, 0, len(history))
	for _, d := range history {
		if seeOthers || d.User == viewer {
			visible = append(visible, d)
		}
	}
	return visible
}
