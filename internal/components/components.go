// Package components maps code locations to issue-tracker components via a
// static longest-prefix lookup table.
package components

import (
	"bufio"
	"io"
	"strings"
)

// Table maps subject prefixes to tracker component names. The empty prefix,
// when present, acts as the catch-all component.
type Table struct {
	byPrefix map[string]string
}

// NewTable builds a table from an explicit prefix mapping.
func NewTable(byPrefix map[string]string) *Table {
	copied := make(map[string]string, len(byPrefix))
	for prefix, component := range byPrefix {
		copied[prefix] = component
	}
	return &Table{byPrefix: copied}
}

// Load parses a table from its line format: one "component prefix" pair per
// line, a bare component naming the catch-all. Blank lines are skipped.
func Load(reader io.Reader) (*Table, error) {
	byPrefix := make(map[string]string)
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		component, prefix, found := strings.Cut(line, " ")
		if !found {
			byPrefix[""] = line
			continue
		}
		byPrefix[prefix] = component
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return &Table{byPrefix: byPrefix}, nil
}

// Lookup returns the component whose prefix is the longest match for the
// subject, or the empty string when nothing matches.
func (t *Table) Lookup(subject string) string {
	if t == nil {
		return ""
	}
	longest := -1
	component := ""
	for prefix, candidate := range t.byPrefix {
		if strings.HasPrefix(subject, prefix) && len(prefix) > longest {
			longest = len(prefix)
			component = candidate
		}
	}
	return component
}
