package review

import (
	"testing"
)

func designationAt(user string, key Key, seconds int64) Designation {
	return Designation{User: user, Key: key, TimestampSeconds: seconds}
}

func TestParseModeAcceptsKnownModes(testContext *testing.T) {
	cases := []struct {
		raw  string
		want Mode
	}{
		{raw: "secret", want: ModeSecret},
		{raw: "COMMUNAL", want: ModeCommunal},
		{raw: " Voting ", want: ModeVoting},
	}
	for _, testCase := range cases {
		mode, err := ParseMode(testCase.raw)
		if err != nil {
			testContext.Fatalf("ParseMode(%q) returned error: %v", testCase.raw, err)
		}
		if mode != testCase.want {
			testContext.Fatalf("ParseMode(%q) = %q, want %q", testCase.raw, mode, testCase.want)
		}
	}
}

func TestParseModeRejectsUnknownMode(testContext *testing.T) {
	if _, err := ParseMode("public"); err == nil {
		testContext.Fatalf("expected error for unknown mode")
	}
}

func TestParseKeyRejectsUnknownKey(testContext *testing.T) {
	if _, err := ParseKey("MAYBE_FIX"); err == nil {
		testContext.Fatalf("expected error for unknown key")
	}
	key, err := ParseKey("i_will_fix")
	if err != nil {
		testContext.Fatalf("ParseKey returned error: %v", err)
	}
	if key != KeyWillFix {
		testContext.Fatalf("ParseKey = %q, want %q", key, KeyWillFix)
	}
}

func TestLatestByPrefersLaterEntries(testContext *testing.T) {
	history := History{
		designationAt("alice", KeyNeedsStudy, 100),
		designationAt("bob", KeyNotABug, 150),
		designationAt("alice", KeyMustFix, 200),
	}

	latest, ok := history.LatestBy("alice")
	if !ok {
		testContext.Fatalf("expected a designation for alice")
	}
	if latest.Key != KeyMustFix {
		testContext.Fatalf("expected latest key %q, got %q", KeyMustFix, latest.Key)
	}

	if _, ok := history.LatestBy("carol"); ok {
		testContext.Fatalf("expected no designation for carol")
	}
}

func TestLatestBreaksTimestampTiesWithLaterEntry(testContext *testing.T) {
	history := History{
		designationAt("alice", KeyShouldFix, 300),
		designationAt("bob", KeyNotABug, 300),
	}

	latest, ok := history.Latest()
	if !ok {
		testContext.Fatalf("expected a latest designation")
	}
	if latest.User != "bob" {
		testContext.Fatalf("expected later entry to win the tie, got user %q", latest.User)
	}
}

func TestReviewersAreDistinctAndOrdered(testContext *testing.T) {
	history := History{
		designationAt("alice", KeyNeedsStudy, 100),
		designationAt("", KeyNotABug, 110),
		designationAt("bob", KeyShouldFix, 120),
		designationAt("alice", KeyMustFix, 130),
	}

	reviewers := history.Reviewers()
	if len(reviewers) != 2 || reviewers[0] != "alice" || reviewers[1] != "bob" {
		testContext.Fatalf("unexpected reviewers: %v", reviewers)
	}
}

func TestClaimedRequiresCurrentWillFix(testContext *testing.T) {
	history := History{
		designationAt("alice", KeyWillFix, 100),
		designationAt("alice", KeyNotABug, 200),
	}
	if history.Claimed() {
		testContext.Fatalf("superseded claim should not count")
	}

	history = append(history, designationAt("bob", KeyWillFix, 300))
	if !history.Claimed() {
		testContext.Fatalf("expected record to be claimed by bob")
	}
}

func TestPrimaryDesignationSecretHidesOthers(testContext *testing.T) {
	history := History{
		designationAt("alice", KeyMustFix, 100),
	}

	if _, ok := PrimaryDesignation(ModeSecret, "bob", history); ok {
		testContext.Fatalf("secret mode must not surface another reviewer's opinion")
	}

	own, ok := PrimaryDesignation(ModeSecret, "alice", history)
	if !ok || own.Key != KeyMustFix {
		testContext.Fatalf("expected alice to see her own designation, got %v ok=%v", own, ok)
	}
}

func TestPrimaryDesignationCommunalFallsBackToLatest(testContext *testing.T) {
	history := History{
		designationAt("alice", KeyShouldFix, 100),
		designationAt("carol", KeyNotABug, 200),
	}

	primary, ok := PrimaryDesignation(ModeCommunal, "bob", history)
	if !ok {
		testContext.Fatalf("communal mode should fall back to the most recent designation")
	}
	if primary.User != "carol" {
		testContext.Fatalf("expected carol's designation, got %q", primary.User)
	}

	own, ok := PrimaryDesignation(ModeCommunal, "alice", history)
	if !ok || own.User != "alice" {
		testContext.Fatalf("a reviewer's own designation takes precedence, got %v ok=%v", own, ok)
	}
}

func TestPrimaryDesignationVotingRequiresOwnVote(testContext *testing.T) {
	history := History{
		designationAt("alice", KeyMustFix, 100),
	}

	if _, ok := PrimaryDesignation(ModeVoting, "bob", history); ok {
		testContext.Fatalf("voting mode must not surface opinions before the viewer votes")
	}
}

func TestVisibleDesignationsVotingGate(testContext *testing.T) {
	history := History{
		designationAt("alice", KeyMustFix, 100),
		designationAt("bob", KeyNotABug, 200),
	}

	beforeVote := VisibleDesignations(ModeVoting, "carol", history)
	if len(beforeVote) != 0 {
		testContext.Fatalf("expected no visible designations before voting, got %d", len(beforeVote))
	}

	voted := append(History(nil), history...)
	voted = append(voted, designationAt("carol", KeyNeedsStudy, 300))
	afterVote := VisibleDesignations(ModeVoting, "carol", voted)
	if len(afterVote) != 3 {
		testContext.Fatalf("expected full visibility after voting, got %d", len(afterVote))
	}
}

func TestVisibleDesignationsSecretShowsOnlyOwn(testContext *testing.T) {
	history := History{
		designationAt("alice", KeyMustFix, 100),
		designationAt("bob", KeyNotABug, 200),
	}

	visible := VisibleDesignations(ModeSecret, "bob", history)
	if len(visible) != 1 || visible[0].User != "bob" {
		testContext.Fatalf("secret mode should show only the viewer's own entries, got %v", visible)
	}
}
