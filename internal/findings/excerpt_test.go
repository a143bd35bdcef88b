package findings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSourceFile(testContext *testing.T, lines []string) string {
	testContext.Helper()
	path := filepath.Join(testContext.TempDir(), "source.go")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		testContext.Fatalf("failed to write source file: %v", err)
	}
	return path
}

func TestLoadExcerptIncludesContextLines(testContext *testing.T) {
	lines := make([]string, 0, 20)
	for lineNumber := 1; lineNumber <= 20; lineNumber++ {
		lines = append(lines, fmt.Sprintf("line %d", lineNumber))
	}
	path := writeSourceFile(testContext, lines)

	excerpt := LoadExcerpt(path, 10, 11)
	if !strings.HasPrefix(excerpt, "\nRelevant source code:\n") {
		testContext.Fatalf("excerpt missing header: %q", excerpt)
	}
	if !strings.Contains(excerpt, "   6: line 6") {
		testContext.Fatalf("expected leading context at line 6, got %q", excerpt)
	}
	if !strings.Contains(excerpt, "  15: line 15") {
		testContext.Fatalf("expected trailing context at line 15, got %q", excerpt)
	}
	if strings.Contains(excerpt, "  16: line 16") {
		testContext.Fatalf("context should stop at line 15, got %q", excerpt)
	}
}

func TestLoadExcerptStopsAtTrailingBlankLine(testContext *testing.T) {
	lines := []string{"alpha", "beta", "gamma", "", "delta"}
	path := writeSourceFile(testContext, lines)

	excerpt := LoadExcerpt(path, 2, 3)
	if !strings.Contains(excerpt, "   3: gamma") {
		testContext.Fatalf("expected the range itself, got %q", excerpt)
	}
	if strings.Contains(excerpt, "delta") {
		testContext.Fatalf("blank line after the range should end the excerpt, got %q", excerpt)
	}
}

func TestLoadExcerptRejectsUnusableRanges(testContext *testing.T) {
	path := writeSourceFile(testContext, []string{"only line"})

	if got := LoadExcerpt("", 1, 2); got != "" {
		testContext.Fatalf("expected empty excerpt for missing path, got %q", got)
	}
	if got := LoadExcerpt(path, 0, 2); got != "" {
		testContext.Fatalf("expected empty excerpt for invalid start line, got %q", got)
	}
	if got := LoadExcerpt(path, 5, 3); got != "" {
		testContext.Fatalf("expected empty excerpt for inverted range, got %q", got)
	}
	if got := LoadExcerpt(path, 1, 1+maxExcerptSpan); got != "" {
		testContext.Fatalf("expected empty excerpt for oversized span, got %q", got)
	}
	if got := LoadExcerpt(filepath.Join(testContext.TempDir(), "missing.go"), 1, 2); got != "" {
		testContext.Fatalf("expected empty excerpt for unreadable file, got %q", got)
	}
}
