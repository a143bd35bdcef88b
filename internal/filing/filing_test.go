package filing

import (
	"testing"
	"time"
)

func TestFiledRecognizesDurableKeysOnly(testContext *testing.T) {
	cases := []struct {
		key  string
		want bool
	}{
		{key: "", want: false},
		{key: KeyNone, want: false},
		{key: KeyPending, want: false},
		{key: "12345", want: true},
		{key: "TRIAGE-42", want: true},
	}
	for _, testCase := range cases {
		if got := Filed(testCase.key); got != testCase.want {
			testContext.Fatalf("Filed(%q) = %v, want %v", testCase.key, got, testCase.want)
		}
	}
}

func TestStatusOfUnfiledRecord(testContext *testing.T) {
	now := time.Unix(1700000000, 0)
	if got := StatusOf("", "", 0, "alice", now); got != StatusFileBug {
		testContext.Fatalf("empty key: got %v, want %v", got, StatusFileBug)
	}
	if got := StatusOf(KeyNone, "", 0, "alice", now); got != StatusFileBug {
		testContext.Fatalf("none sentinel: got %v, want %v", got, StatusFileBug)
	}
}

func TestStatusOfPendingFiling(testContext *testing.T) {
	filedAt := int64(1700000000)
	fresh := time.Unix(filedAt+60, 0)

	if got := StatusOf(KeyPending, "alice", filedAt, "alice", fresh); got != StatusFileAgain {
		testContext.Fatalf("filer sees %v, want %v", got, StatusFileAgain)
	}
	if got := StatusOf(KeyPending, "alice", filedAt, "bob", fresh); got != StatusBugPending {
		testContext.Fatalf("other viewer sees %v, want %v", got, StatusBugPending)
	}
}

func TestStatusOfPendingFilingAgesOut(testContext *testing.T) {
	filedAt := int64(1700000000)
	aged := time.Unix(filedAt+int64(PendingTimeout/time.Second)+1, 0)

	// Age-out applies to the filer as well as everyone else.
	if got := StatusOf(KeyPending, "alice", filedAt, "alice", aged); got != StatusFileBug {
		testContext.Fatalf("aged pending for filer: got %v, want %v", got, StatusFileBug)
	}
	if got := StatusOf(KeyPending, "alice", filedAt, "bob", aged); got != StatusFileBug {
		testContext.Fatalf("aged pending for other viewer: got %v, want %v", got, StatusFileBug)
	}

	edge := time.Unix(filedAt+int64(PendingTimeout/time.Second), 0)
	if got := StatusOf(KeyPending, "alice", filedAt, "bob", edge); got != StatusBugPending {
		testContext.Fatalf("pending exactly at the timeout still blocks, got %v", got)
	}
}

func TestStatusOfDurableKey(testContext *testing.T) {
	now := time.Unix(1700000000, 0)
	if got := StatusOf("12345", "alice", 1690000000, "bob", now); got != StatusViewBug {
		testContext.Fatalf("numeric key: got %v, want %v", got, StatusViewBug)
	}
	if got := StatusOf("TRIAGE-42", "alice", 1690000000, "bob", now); got != StatusNA {
		testContext.Fatalf("opaque key: got %v, want %v", got, StatusNA)
	}
}

func TestStatusStringLabels(testContext *testing.T) {
	cases := map[Status]string{
		StatusFileBug:    "file",
		StatusFileAgain:  "file-again",
		StatusBugPending: "pending",
		StatusViewBug:    "view",
		StatusNA:         "n/a",
		Status(99):       "unknown",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			testContext.Fatalf("Status(%d).String() = %q, want %q", status, got, want)
		}
	}
}
