package uid

import "sort"

// Set is a domain letter -> boolean bitmap indexed by number, used for the
// all_program_ids / latest_program_ids / supports_inceval / supports_logeval
// corpus-wide sets (spec section 4.12) and for the protect/deny/overwrite
// lists (spec section 6).
type Set struct {
	domains map[byte]map[int64]bool
}

// NewSet creates an empty Set.
func NewSet() *Set {
	return &Set{domains: make(map[byte]map[int64]bool)}
}

// Insert adds u to the set.
func (s *Set) Insert(u UID) {
	m, ok := s.domains[u.Domain()]
	if !ok {
		m = make(map[int64]bool)
		s.domains[u.Domain()] = m
	}
	m[u.Number()] = true
}

// Remove deletes u from the set.
func (s *Set) Remove(u UID) {
	if m, ok := s.domains[u.Domain()]; ok {
		delete(m, u.Number())
	}
}

// Exists reports whether u is in the set.
func (s *Set) Exists(u UID) bool {
	m, ok := s.domains[u.Domain()]
	if !ok {
		return false
	}
	return m[u.Number()]
}

// Len returns the total number of ids in the set.
func (s *Set) Len() int {
	n := 0
	for _, m := range s.domains {
		n += len(m)
	}
	return n
}

// Each iterates in (domain, number) order, matching the ordering guarantee
// in spec section 3.
func (s *Set) Each(fn func(UID)) {
	domains := make([]byte, 0, len(s.domains))
	for d := range s.domains {
		domains = append(domains, d)
	}
	sort.Slice(domains, func(i, j int) bool { return domains[i] < domains[j] })
	for _, d := range domains {
		numbers := make([]int64, 0, len(s.domains[d]))
		for n := range s.domains[d] {
			numbers = append(numbers, n)
		}
		sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
		for _, n := range numbers {
			fn(MustNew(d, n))
		}
	}
}

// ToSlice materializes the set as a sorted slice of UIDs.
func (s *Set) ToSlice() []UID {
	out := make([]UID, 0, s.Len())
	s.Each(func(u UID) { out = append(out, u) })
	return out
}
