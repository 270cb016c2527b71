// Package complete answers prefix completion queries against a path index.
package complete

import (
	"regexp"
	"strings"

	"github.com/phobologic/c3complete/internal/index"
	"github.com/phobologic/c3complete/internal/ranking"
)

// Kind is the editor-facing completion kind.
type Kind string

const (
	KindMethod   Kind = "method"
	KindField    Kind = "field"
	KindProperty Kind = "property"
)

// Candidate is one completion suggestion.
type Candidate struct {
	Label      string `json:"label"`
	InsertText string `json:"insertText"`
	Kind       Kind   `json:"kind"`
	Detail     string `json:"detail,omitempty"`
}

var startsWithDigit = regexp.MustCompile(`^\d`)

// Query normalizes raw, descends ix along every segment but the last and
// returns the children of the reached node whose key starts with the last
// segment. maxResults <= 0 means unlimited.
func Query(ix *index.Index, raw string, maxResults int) []Candidate {
	if ix == nil {
		return nil
	}
	segments := strings.Split(Normalize(raw), ".")
	prefix := segments[len(segments)-1]
	descend := segments[:len(segments)-1]

	node, ok := ix.Lookup(descend)
	if !ok || node.Len() == 0 {
		node, ok = reanchor(ix, descend)
	}
	if !ok {
		return nil
	}

	var out []Candidate
	for _, key := range node.Keys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		child, _ := node.Child(key)
		out = append(out, Candidate{
			Label:      key,
			InsertText: FormatProperty(key),
			Kind:       kindOf(child.Kind),
			Detail:     child.Detail,
		})
	}
	ranking.Order(out, prefix, func(c Candidate) string { return c.Label })
	return ranking.Select(out, maxResults)
}

// reanchor restarts the descent at the last occurrence of the root symbol or
// a synthetic namespace inside path, so `this.runtime.la` and
// `inst.instVars.he` still resolve.
func reanchor(ix *index.Index, path []string) (*index.Node, bool) {
	anchors := map[string]struct{}{ix.RootSymbol(): {}}
	for _, ns := range ix.Namespaces() {
		anchors[ns] = struct{}{}
	}
	for i := len(path) - 1; i > 0; i-- {
		if _, ok := anchors[path[i]]; !ok {
			continue
		}
		if n, ok := ix.Lookup(path[i:]); ok {
			return n, true
		}
	}
	return nil, false
}

func kindOf(k index.Kind) Kind {
	switch k {
	case index.Method:
		return KindMethod
	case index.Field:
		return KindField
	default:
		return KindProperty
	}
}

// FormatProperty re-escapes a label that is not a bare identifier into
// bracket-string form.
func FormatProperty(key string) string {
	if startsWithDigit.MatchString(key) || strings.Contains(key, " ") {
		return "['" + key + "']"
	}
	return key
}

// Normalize rewrites bracket indexing as dotted access, drops quotes and
// strips enclosing paren/brace decoration: `(a['b'].c` becomes `a.b.c`.
func Normalize(raw string) string {
	s := strings.TrimLeft(strings.TrimSpace(raw), "({")
	s = trimUnbalanced(s, '(', ')')
	s = trimUnbalanced(s, '{', '}')

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '[':
			if b.Len() > 0 && !strings.HasSuffix(b.String(), ".") {
				b.WriteByte('.')
			}
		case ']', '\'', '"':
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// trimUnbalanced drops trailing close characters while they outnumber opens.
func trimUnbalanced(s string, open, close byte) string {
	for strings.HasSuffix(s, string(close)) &&
		strings.Count(s, string(close)) > strings.Count(s, string(open)) {
		s = s[:len(s)-1]
	}
	return s
}
