package findings

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

const (
	excerptContextLines = 4
	maxExcerptSpan      = 50
)

// LoadExcerpt reads the finding's source range plus a few lines of context and
// renders it as numbered text suitable for a filing report. The excerpt is
// empty when the source file is unknown, the range is invalid, or the span is
// too large to be useful in a report.
func LoadExcerpt(path string, startLine, endLine int) string {
	if path == "" || startLine < 1 || endLine < startLine || endLine-startLine >= maxExcerptSpan {
		return ""
	}

	file, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer file.Close()

	var builder strings.Builder
	builder.WriteString("\nRelevant source code:\n")

	scanner := bufio.NewScanner(file)
	lineNumber := 1
	for scanner.Scan() {
		if lineNumber > endLine+excerptContextLines {
			break
		}
		text := scanner.Text()
		if lineNumber >= startLine-excerptContextLines {
			// Trailing blank line after the range ends the excerpt early.
			if lineNumber > endLine && strings.TrimSpace(text) == "" {
				break
			}
			fmt.Fprintf(&builder, "%4d: %s\n", lineNumber, text)
		}
		lineNumber++
	}
	if err := scanner.Err(); err != nil {
		return ""
	}

	builder.WriteString("\n")
	return builder.String()
}
