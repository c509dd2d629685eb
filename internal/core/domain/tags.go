package domain

import "slices"

// Tags is an ordered set of tag strings. Insertion order is preserved
// and significant: the filter generators treat the first and second
// entries as the two highest-priority tags. That priority ordering is
// caller-determined and never re-derived here.
type Tags []string

// Add appends a tag, rejecting duplicates.
// It reports whether the tag was added.
func (t *Tags) Add(tag string) bool {
	if t.Has(tag) {
		return false
	}
	*t = append(*t, tag)
	return true
}

// AddAll appends each tag in order, dropping duplicates.
func (t *Tags) AddAll(tags []string) {
	for _, tag := range tags {
		t.Add(tag)
	}
}

// Remove deletes a tag. Removing an absent tag is a no-op.
func (t *Tags) Remove(tag string) {
	for i, have := range *t {
		if have == tag {
			*t = append((*t)[:i], (*t)[i+1:]...)
			return
		}
	}
}

// Has reports whether the tag is present.
func (t Tags) Has(tag string) bool {
	return slices.Contains(t, tag)
}

// GeneratePowersetWithPermutations enumerates every subset of the tag
// list (the empty subset included) and every permutation of each
// subset, deduplicated and sorted by (length, lexicographic order).
// The result is the complete candidate set of tag orderings a matching
// document's stored tag list may equal.
func (t Tags) GeneratePowersetWithPermutations() [][]string {
	subsets := [][]string{{}}
	for _, tag := range t {
		grown := make([][]string, 0, len(subsets))
		for _, subset := range subsets {
			next := make([]string, len(subset), len(subset)+1)
			copy(next, subset)
			grown = append(grown, append(next, tag))
		}
		subsets = append(subsets, grown...)
	}

	var result [][]string
	seen := make(map[string]struct{})
	for _, subset := range subsets {
		for _, perm := range permutations(subset) {
			key := permKey(perm)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			result = append(result, perm)
		}
	}

	slices.SortFunc(result, func(a, b []string) int {
		if len(a) != len(b) {
			return len(a) - len(b)
		}
		return slices.Compare(a, b)
	})
	return result
}

// PriorityBasedPermutations generates permutations of the full tag
// list and, for more than two tags, of every combination one tag
// smaller, keeping only orderings that start with the first or second
// tag of the original list. When more than one tag exists, each
// individual tag is appended as a singleton candidate. The trade-off
// against the powerset strategy is fewer candidates, weighted toward
// the caller's priority ordering.
func (t Tags) PriorityBasedPermutations() [][]string {
	n := len(t)
	if n == 0 {
		return nil
	}

	low := n
	if n > 2 {
		low = n - 1
	}

	var result [][]string
	seen := make(map[string]struct{})
	for size := n; size >= low; size-- {
		for _, combo := range combinations(t, size) {
			for _, perm := range permutations(combo) {
				if perm[0] != t[0] && (n < 2 || perm[0] != t[1]) {
					continue
				}
				key := permKey(perm)
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				result = append(result, perm)
			}
		}
	}

	if n > 1 {
		for _, tag := range t {
			result = append(result, []string{tag})
		}
	}
	return result
}

// permutations returns every ordering of the given elements.
// The empty input yields a single empty permutation.
func permutations(elems []string) [][]string {
	if len(elems) == 0 {
		return [][]string{{}}
	}
	var result [][]string
	for i := range elems {
		rest := make([]string, 0, len(elems)-1)
		rest = append(rest, elems[:i]...)
		rest = append(rest, elems[i+1:]...)
		for _, tail := range permutations(rest) {
			perm := make([]string, 0, len(elems))
			perm = append(perm, elems[i])
			perm = append(perm, tail...)
			result = append(result, perm)
		}
	}
	return result
}

// combinations returns every size-k selection of elems in input order.
func combinations(elems []string, k int) [][]string {
	if k == 0 {
		return [][]string{{}}
	}
	if k > len(elems) {
		return nil
	}
	var result [][]string
	for i := 0; i+k <= len(elems); i++ {
		for _, tail := range combinations(elems[i+1:], k-1) {
			combo := make([]string, 0, k)
			combo = append(combo, elems[i])
			combo = append(combo, tail...)
			result = append(result, combo)
		}
	}
	return result
}

// permKey builds a map key for a permutation. Tags never contain the
// NUL byte in practice; the separator keeps distinct lists distinct.
func permKey(perm []string) string {
	key := ""
	for _, tag := range perm {
		key += tag + "\x00"
	}
	return key
}
