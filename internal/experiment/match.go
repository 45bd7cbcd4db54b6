package experiment

import "slices"

// Match is one filter dimension: either every value passes, or only the
// listed ones do. The zero value matches everything.
type Match struct {
	restricted bool
	values     []string
}

// MatchAll returns a Match that lets every value pass
func MatchAll() Match {
	return Match{}
}

// Subset returns a Match restricted to values
func Subset(values ...string) Match {
	return Match{restricted: true, values: slices.Clone(values)}
}

// All reports whether the dimension is unconstrained
func (m Match) All() bool {
	return !m.restricted
}

// Values returns a copy of the allowed values; nil when unconstrained
func (m Match) Values() []string {
	if !m.restricted {
		return nil
	}
	return slices.Clone(m.values)
}

// Contains reports whether v passes the filter
func (m Match) Contains(v string) bool {
	return !m.restricted || slices.Contains(m.values, v)
}

// GroupFilter holds the per-group constraints used when groups is an
// explicit list.
type GroupFilter struct {
	Group    string
	JobTypes Match
	Runs     Match
	Tags     Match
}

// FlatFilter holds the constraints applied to every run when groups is
// "all" or absent.
type FlatFilter struct {
	JobTypes Match
	Runs     Match
	Tags     Match
}

// RunFilter selects runs. Exactly one of Groups and Flat is set.
type RunFilter struct {
	Groups []GroupFilter
	Flat   *FlatFilter
}

// ByGroup reports whether the filter is the per-group variant
func (f RunFilter) ByGroup() bool {
	return f.Flat == nil
}
