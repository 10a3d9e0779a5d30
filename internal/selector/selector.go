// Package selector narrows an ordered list of migration names with a
// filter parsed from command line tokens.
//
// A single token containing ".." exactly once is a range, a single positive integer is
// a count, any other non-empty token list is an explicit set of names and
// no token selects everything. A migration literally named like a positive
// integer therefore cannot be selected alone by name: that token is always
// read as a count.
package selector

import (
	"strconv"
	"strings"
)

// Kind identifies the shape of a Filter.
type Kind int

const (
	// All keeps every candidate.
	All Kind = iota
	// Range keeps candidates between Start and End, inclusive.
	Range
	// Names keeps the listed candidates.
	Names
	// Count keeps the first N candidates.
	Count
)

// String returns the lowercase label of the kind.
func (k Kind) String() string {
	switch k {
	case All:
		return "all"
	case Range:
		return "range"
	case Names:
		return "names"
	case Count:
		return "count"
	default:
		return "unknown"
	}
}

const rangeSeparator = ".."

// Filter selects migration names. The zero value keeps everything.
type Filter struct {
	Kind  Kind
	Start string // Range lower bound, empty means unbounded
	End   string // Range upper bound, empty means unbounded
	Set   map[string]struct{}
	N     int
}

// Parse builds a Filter from command line tokens.
func Parse(tokens []string) Filter {
	if len(tokens) == 0 {
		return Filter{Kind: All}
	}

	if len(tokens) == 1 {
		if strings.Count(tokens[0], rangeSeparator) == 1 {
			start, end, _ := strings.Cut(tokens[0], rangeSeparator)
			return Filter{Kind: Range, Start: start, End: end}
		}

		if n, err := strconv.Atoi(tokens[0]); err == nil && n > 0 {
			return Filter{Kind: Count, N: n}
		}
	}

	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}

	return Filter{Kind: Names, Set: set}
}

// Match reports whether name passes a Range, Names or All filter.
// Count filters depend on position and always match here.
func (f Filter) Match(name string) bool {
	switch f.Kind {
	case Range:
		return (f.Start == "" || name >= f.Start) && (f.End == "" || name <= f.End)
	case Names:
		_, ok := f.Set[name]
		return ok
	default:
		return true
	}
}

// Apply returns the candidates kept by the filter, in candidate order.
func (f Filter) Apply(candidates []string) []string {
	kept := make([]string, 0, len(candidates))

	for _, name := range candidates {
		if f.Kind == Count && len(kept) >= f.N {
			break
		}

		if f.Match(name) {
			kept = append(kept, name)
		}
	}

	return kept
}
