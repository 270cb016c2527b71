// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/phobologic/c3complete/internal/complete"
	"github.com/phobologic/c3complete/internal/index"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Summary describes the snapshot a listing was taken from.
type Summary struct {
	Snapshot    string
	Root        string
	Entries     int
	ObjectTypes int
	Conflicts   int
	Cutoffs     int
}

// EncodeCompletion renders the candidates for token.
func EncodeCompletion(token string, candidates []complete.Candidate) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("token: %s", encodeValue(token)))

	rows := make([][]string, 0, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		rows = append(rows, []string{c.Label, c.InsertText, string(c.Kind), c.Detail})
	}
	parts = append(parts, formatTabular("candidates", []string{"label", "insert", "kind", "detail"}, rows))
	return strings.Join(parts, "\n")
}

// EncodeIndex renders a summary line block followed by the flattened paths.
func EncodeIndex(s Summary, entries []index.Entry) string {
	var parts []string
	if s.Snapshot != "" {
		parts = append(parts, fmt.Sprintf("snapshot: %s", encodeValue(s.Snapshot)))
	}
	parts = append(parts, fmt.Sprintf("root: %s", encodeValue(s.Root)))
	parts = append(parts, fmt.Sprintf("entries: %d", s.Entries))
	parts = append(parts, fmt.Sprintf("objectTypes: %d", s.ObjectTypes))
	parts = append(parts, fmt.Sprintf("conflicts: %d", s.Conflicts))
	parts = append(parts, fmt.Sprintf("cutoffs: %d", s.Cutoffs))

	rows := make([][]string, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		rows = append(rows, []string{e.Path, string(e.Kind), fmt.Sprintf("%d", e.Depth), e.Detail})
	}
	parts = append(parts, formatTabular("paths", []string{"path", "kind", "depth", "detail"}, rows))
	return strings.Join(parts, "\n")
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
