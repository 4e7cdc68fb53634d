package uid

import "testing"

func TestRoundTripString(t *testing.T) {
	u := MustNew('A', 45)
	s := u.String()
	if s != "A000045" {
		t.Fatalf("String() = %q, want A000045", s)
	}
	got, err := Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	if got != u {
		t.Fatalf("Parse(String()) = %v, want %v", got, u)
	}
}

func TestRoundTripInt(t *testing.T) {
	u := MustNew('U', 123456)
	if got := FromInt64(u.Int64()); got != u {
		t.Fatalf("FromInt64(Int64()) = %v, want %v", got, u)
	}
}

func TestTotalOrder(t *testing.T) {
	a := MustNew('A', 1)
	b := MustNew('A', 2)
	c := MustNew('U', 0)
	if !a.Less(b) {
		t.Error("A000001 should be < A000002")
	}
	if !b.Less(c) {
		t.Error("A000002 should be < U000000")
	}
}

func TestSet(t *testing.T) {
	s := NewSet()
	u1 := MustNew('A', 1)
	u2 := MustNew('A', 2)
	s.Insert(u1)
	if !s.Exists(u1) {
		t.Error("expected u1 to exist")
	}
	if s.Exists(u2) {
		t.Error("did not expect u2 to exist")
	}
	s.Remove(u1)
	if s.Exists(u1) {
		t.Error("expected u1 to be removed")
	}
}
