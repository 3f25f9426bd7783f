// Package match narrows collections by field predicates. The same
// filter drives exact-match alarm edits and fuzzy task or stop lookups;
// only the predicate changes.
package match

import (
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Predicate reports whether a stored value satisfies the wanted one.
type Predicate func(have, want string) bool

// Equal is the exact-equality predicate.
func Equal(have, want string) bool {
	return have == want
}

// Similar returns a predicate that accepts values whose similarity
// ratio with the wanted value is strictly greater than threshold.
func Similar(threshold float64) Predicate {
	return func(have, want string) bool {
		return Ratio(have, want) > threshold
	}
}

// Ratio returns the case-insensitive SequenceMatcher similarity of a
// and b in [0, 1]. Two empty strings are identical.
func Ratio(a, b string) float64 {
	m := difflib.NewMatcher(runes(strings.ToLower(a)), runes(strings.ToLower(b)))
	return m.Ratio()
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// Field selects one string field of T together with the wanted value.
type Field[T any] struct {
	Want  string
	Value func(T) string
}

// On builds a Field. An empty want leaves the field unconstrained.
func On[T any](want string, value func(T) string) Field[T] {
	return Field[T]{Want: want, Value: value}
}

// Filter returns the items for which pred holds on every constrained
// field. With no constrained fields every item is returned.
func Filter[T any](items []T, pred Predicate, fields ...Field[T]) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if matches(item, pred, fields) {
			out = append(out, item)
		}
	}
	return out
}

func matches[T any](item T, pred Predicate, fields []Field[T]) bool {
	for _, f := range fields {
		if f.Want == "" {
			continue
		}
		if !pred(f.Value(item), f.Want) {
			return false
		}
	}
	return true
}

// Closest returns up to n candidates whose ratio with word is at least
// cutoff, best first. Ties keep candidate order.
func Closest(word string, candidates []string, n int, cutoff float64) []string {
	type scored struct {
		value string
		score float64
	}
	var hits []scored
	for _, c := range candidates {
		if s := Ratio(word, c); s >= cutoff {
			hits = append(hits, scored{c, s})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	if n > 0 && len(hits) > n {
		hits = hits[:n]
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.value
	}
	return out
}
