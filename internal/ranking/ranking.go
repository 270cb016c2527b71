// Package ranking orders and trims completion candidates.
package ranking

import (
	"sort"

	"github.com/hbollon/go-edlib"
)

// Score returns how close label is to the typed prefix, in [0,1].
// An empty prefix scores every label equally.
func Score(prefix, label string) float32 {
	if prefix == "" {
		return 0
	}
	score, err := edlib.StringsSimilarity(prefix, label, edlib.JaroWinkler)
	if err != nil {
		return 0
	}
	return score
}

// Order sorts items by descending similarity of their label to prefix,
// breaking ties by label so the result is deterministic.
func Order[T any](items []T, prefix string, label func(T) string) {
	scores := make(map[string]float32, len(items))
	for _, it := range items {
		l := label(it)
		if _, ok := scores[l]; !ok {
			scores[l] = Score(prefix, l)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		li, lj := label(items[i]), label(items[j])
		if scores[li] != scores[lj] {
			return scores[li] > scores[lj]
		}
		return li < lj
	})
}

// Select returns the first max items. If max is <= 0 or >= len(items), all
// items are returned.
func Select[T any](items []T, max int) []T {
	if max <= 0 || max >= len(items) {
		return items
	}
	return items[:max]
}
