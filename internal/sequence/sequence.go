// Package sequence implements the finite ordered list of Numbers described
// in spec section 3, with the alignment, delta and linearity helpers the
// matcher pipeline and finder depend on.
package sequence

import (
	"fmt"
	"strings"

	"loda/internal/number"
)

// Sequence is a finite ordered list of Numbers.
type Sequence []number.Number

// New builds a Sequence from native ints, for tests and small literals.
func New(vals ...int64) Sequence {
	s := make(Sequence, len(vals))
	for i, v := range vals {
		s[i] = number.FromInt64(v)
	}
	return s
}

// Subsequence returns s[start:start+length], clamped to the available
// range.
func (s Sequence) Subsequence(start, length int) Sequence {
	if start < 0 {
		start = 0
	}
	if start > len(s) {
		return Sequence{}
	}
	end := start + length
	if end > len(s) {
		end = len(s)
	}
	out := make(Sequence, end-start)
	copy(out, s[start:end])
	return out
}

// Equal reports element-wise equality.
func (s Sequence) Equal(t Sequence) bool {
	if len(s) != len(t) {
		return false
	}
	for i := range s {
		if !s[i].Equal(t[i]) {
			return false
		}
	}
	return true
}

// Align shifts other so that it overlaps s on a common prefix of at least
// minCommon equal terms, returning the shift amount (other[0] lines up
// with s[shift]) and whether an alignment was found. A zero shift
// with ok=true means the sequences already agree from index 0.
func (s Sequence) Align(other Sequence, minCommon int) (shift int, ok bool) {
	maxShift := len(s) + len(other)
	for shift = 0; shift <= maxShift; shift++ {
		if commonPrefix(s, other, shift) >= minCommon {
			return shift, true
		}
	}
	return 0, false
}

// commonPrefix counts how many terms agree between s and other when other
// is shifted right by `shift` positions (i.e. other[i] aligns with
// s[i+shift]).
func commonPrefix(s, other Sequence, shift int) int {
	n := 0
	for i := 0; i+shift < len(s) && i < len(other); i++ {
		if !s[i+shift].Equal(other[i]) {
			break
		}
		n++
	}
	return n
}

// IsLinear reports whether the sequence (skipping the first `offset` terms)
// has a constant first difference.
func (s Sequence) IsLinear(offset int) bool {
	rest := s.Subsequence(offset, len(s)-offset)
	if len(rest) < 3 {
		return false
	}
	d := number.Sub(rest[1], rest[0])
	for i := 2; i < len(rest); i++ {
		if !number.Sub(rest[i], rest[i-1]).Equal(d) {
			return false
		}
	}
	return true
}

// Delta returns the sequence of first differences: out[i] = s[i+1]-s[i].
func (s Sequence) Delta() Sequence {
	if len(s) == 0 {
		return Sequence{}
	}
	out := make(Sequence, len(s)-1)
	for i := 0; i < len(out); i++ {
		out[i] = number.Sub(s[i+1], s[i])
	}
	return out
}

// GetFirstDeltaLT returns the index i (into s) of the first term where
// s[i+1]-s[i] < threshold, or -1 if none. Used by the finder to detect
// "fake better" candidates that go flat or decrease past the visible
// window (spec section 4.8).
func (s Sequence) GetFirstDeltaLT(threshold number.Number) int {
	for i := 0; i+1 < len(s); i++ {
		if number.Sub(s[i+1], s[i]).Less(threshold) {
			return i
		}
	}
	return -1
}

// Min returns the minimum term, or Zero for an empty sequence.
func (s Sequence) Min() number.Number {
	if len(s) == 0 {
		return number.Zero
	}
	m := s[0]
	for _, v := range s[1:] {
		if v.Less(m) {
			m = v
		}
	}
	return m
}

// Sum returns the sum of all terms.
func (s Sequence) Sum() number.Number {
	total := number.Zero
	for _, v := range s {
		total = number.Add(total, v)
	}
	return total
}

// String renders the CSV textual form (as used by the stripped index and
// by log messages showing a "terms preview").
func (s Sequence) String() string {
	parts := make([]string, len(s))
	for i, v := range s {
		parts[i] = v.String()
	}
	return strings.Join(parts, ",")
}

// ToBFile renders `<index> <value>\n` lines starting at offset.
func (s Sequence) ToBFile(offset int64) string {
	var sb strings.Builder
	for i, v := range s {
		fmt.Fprintf(&sb, "%d %s\n", offset+int64(i), v.String())
	}
	return sb.String()
}
