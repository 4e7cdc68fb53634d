// Package memory implements the sparse cell -> Number mapping the
// interpreter executes programs against (spec section 3). Reading an
// undefined cell yields 0. The package also implements the "fragment"
// windowed-copy and lexicographic ordering the interpreter uses to decide
// whether a loop body is still making progress.
//
// Adapted from the teacher's internal/memory package, which modeled a flat
// process-memory address space for forensics; here the same "sparse
// addressable space with bounded views" shape models program cells instead.
package memory

import (
	"sort"

	"loda/internal/number"
)

// Memory is a sparse map from nonnegative cell index to Number.
type Memory struct {
	cells map[int64]number.Number
}

// New returns an empty memory (all cells read as 0).
func New() Memory {
	return Memory{cells: make(map[int64]number.Number)}
}

// Get returns the value at index, or 0 if never written.
func (m Memory) Get(index int64) number.Number {
	if m.cells == nil {
		return number.Zero
	}
	if v, ok := m.cells[index]; ok {
		return v
	}
	return number.Zero
}

// Set writes value at index. Writing the zero value removes the entry so
// the sparse map does not grow unboundedly for cells that return to 0,
// while Get still observes the same semantics either way.
func (m *Memory) Set(index int64, value number.Number) {
	if m.cells == nil {
		m.cells = make(map[int64]number.Number)
	}
	if value.Equal(number.Zero) {
		delete(m.cells, index)
		return
	}
	m.cells[index] = value
}

// Clone returns an independent copy of m, used to snapshot memory before
// entering a loop body (spec section 4.2).
func (m Memory) Clone() Memory {
	out := make(map[int64]number.Number, len(m.cells))
	for k, v := range m.cells {
		out[k] = v
	}
	return Memory{cells: out}
}

// MaxDefinedIndex returns the largest cell index with a non-zero value, or
// -1 if memory is entirely zero. Used by the finder to bound the scan for
// largest memory cell referenced by a program (spec section 4.8, capped at
// 100 there).
func (m Memory) MaxDefinedIndex() int64 {
	max := int64(-1)
	for k := range m.cells {
		if k > max {
			max = k
		}
	}
	return max
}

// Fragment copies the window [start, start+length) into a fresh Memory
// starting at index 0; cells outside the original range read as 0. This is
// the "fragment" used to detect strict lexicographic decrease across loop
// iterations (spec sections 3 and 4.2, GLOSSARY).
func (m Memory) Fragment(start, length int64) Memory {
	out := New()
	if length <= 0 {
		return out
	}
	for i := int64(0); i < length; i++ {
		v := m.Get(start + i)
		if !v.Equal(number.Zero) {
			out.Set(i, v)
		}
	}
	return out
}

// definedIndices returns the sorted list of cell indices holding a
// non-zero value.
func (m Memory) definedIndices() []int64 {
	idx := make([]int64, 0, len(m.cells))
	for k := range m.cells {
		idx = append(idx, k)
	}
	sort.Slice(idx, func(i, j int) bool { return idx[i] < idx[j] })
	return idx
}

// Less implements the lexicographic ordering over (cell_index, value) pairs
// for defined cells, used by the interpreter's loop-progress check: a
// fragment "decreases" relative to a previous snapshot iff Less is true.
func (m Memory) Less(other Memory) bool {
	ai, bi := m.definedIndices(), other.definedIndices()
	i, j := 0, 0
	for i < len(ai) && j < len(bi) {
		switch {
		case ai[i] < bi[j]:
			// m has a defined cell earlier than other; treat the missing
			// cell in other as implicitly 0 and compare values.
			if m.Get(ai[i]).Less(number.Zero) {
				return true
			}
			if number.Zero.Less(m.Get(ai[i])) {
				return false
			}
			i++
		case bi[j] < ai[i]:
			if number.Zero.Less(other.Get(bi[j])) {
				return true
			}
			if other.Get(bi[j]).Less(number.Zero) {
				return false
			}
			j++
		default:
			av, bv := m.Get(ai[i]), other.Get(bi[j])
			if !av.Equal(bv) {
				return av.Less(bv)
			}
			i++
			j++
		}
	}
	// A side with remaining (necessarily nonzero) defined cells is compared
	// against an implicit 0 in the other side, the same way as the
	// mismatched-index cases above; equal memories are not less.
	if i < len(ai) {
		return m.Get(ai[i]).Less(number.Zero)
	}
	if j < len(bi) {
		return number.Zero.Less(other.Get(bi[j]))
	}
	return false
}

// Equal reports whether both memories agree on every defined cell.
func (m Memory) Equal(other Memory) bool {
	ai := m.definedIndices()
	bi := other.definedIndices()
	if len(ai) != len(bi) {
		return false
	}
	for i := range ai {
		if ai[i] != bi[i] || !m.Get(ai[i]).Equal(other.Get(bi[i])) {
			return false
		}
	}
	return true
}
