package memory

import (
	"testing"

	"loda/internal/number"
)

func TestUndefinedCellReadsZero(t *testing.T) {
	m := New()
	if !m.Get(7).Equal(number.Zero) {
		t.Fatalf("expected 0, got %v", m.Get(7))
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	m := New()
	m.Set(3, number.FromInt64(42))
	if !m.Get(3).Equal(number.FromInt64(42)) {
		t.Fatalf("got %v, want 42", m.Get(3))
	}
}

func TestSetZeroClearsEntry(t *testing.T) {
	m := New()
	m.Set(2, number.FromInt64(5))
	m.Set(2, number.Zero)
	if m.MaxDefinedIndex() != -1 {
		t.Fatalf("expected no defined cells, got max index %d", m.MaxDefinedIndex())
	}
}

func TestCloneIsIndependent(t *testing.T) {
	m := New()
	m.Set(0, number.FromInt64(1))
	c := m.Clone()
	c.Set(0, number.FromInt64(2))
	if !m.Get(0).Equal(number.FromInt64(1)) {
		t.Fatalf("mutating clone affected original: %v", m.Get(0))
	}
}

func TestFragmentWindow(t *testing.T) {
	m := New()
	m.Set(5, number.FromInt64(10))
	m.Set(6, number.FromInt64(20))
	m.Set(7, number.FromInt64(30))
	f := m.Fragment(5, 2)
	if !f.Get(0).Equal(number.FromInt64(10)) || !f.Get(1).Equal(number.FromInt64(20)) {
		t.Fatalf("fragment mismatch: %v, %v", f.Get(0), f.Get(1))
	}
	if !f.Get(2).Equal(number.Zero) {
		t.Fatalf("fragment should not include index 7, got %v", f.Get(2))
	}
}

func TestLessStrictDecrease(t *testing.T) {
	prev := New()
	prev.Set(0, number.FromInt64(10))
	cur := New()
	cur.Set(0, number.FromInt64(9))
	if !cur.Less(prev) {
		t.Error("expected cur < prev")
	}
	if prev.Less(cur) {
		t.Error("did not expect prev < cur")
	}
}

func TestLessEqualIsNotLess(t *testing.T) {
	a := New()
	a.Set(1, number.FromInt64(5))
	b := New()
	b.Set(1, number.FromInt64(5))
	if a.Less(b) || b.Less(a) {
		t.Error("equal memories must not be less than each other")
	}
}

func TestEqual(t *testing.T) {
	a := New()
	a.Set(1, number.FromInt64(5))
	b := New()
	b.Set(1, number.FromInt64(5))
	if !a.Equal(b) {
		t.Error("expected equal")
	}
	b.Set(2, number.FromInt64(1))
	if a.Equal(b) {
		t.Error("expected not equal after extra cell")
	}
}
