package domain

import "slices"

// Filter restricts search candidates by metadata. Each populated field
// is a list of accepted values; a document matches only when, for every
// populated field, its corresponding metadata value is a member of that
// list.
type Filter struct {
	// Tags is the list of accepted tag orderings. A document's stored
	// tag list must equal one of these orderings exactly; this is not a
	// subset or superset test. The strictness is deliberate and load-
	// bearing for search recall: candidates are generated by expanding
	// the query tags into permutations (see Tags.ToFilter).
	Tags [][]string

	// IDs is the list of accepted content-level identifiers.
	IDs []string

	// Splitters is the list of accepted splitter names.
	Splitters []string
}

// ToFilter expands the tag list into a Filter. With powerset true the
// full powerset-with-permutations expansion is used; otherwise the
// priority-based strategy. An empty tag list yields nil, meaning no
// filtering at all.
func (t Tags) ToFilter(powerset bool) *Filter {
	if len(t) == 0 {
		return nil
	}
	if powerset {
		return &Filter{Tags: t.GeneratePowersetWithPermutations()}
	}
	return &Filter{Tags: t.PriorityBasedPermutations()}
}

// ToFilter expands the metadata's tags into a Filter.
func (m Metadata) ToFilter(powerset bool) *Filter {
	return m.Tags.ToFilter(powerset)
}

// Matches reports whether the metadata satisfies every populated
// filter field.
func (f *Filter) Matches(m Metadata) bool {
	if f == nil {
		return true
	}
	if len(f.Tags) > 0 {
		ok := false
		for _, candidate := range f.Tags {
			if slices.Equal(candidate, []string(m.Tags)) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, m.IDs) {
		return false
	}
	if len(f.Splitters) > 0 && !slices.Contains(f.Splitters, m.Splitter) {
		return false
	}
	return true
}
