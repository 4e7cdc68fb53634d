package sequence

import "testing"

func TestSubsequenceFullRoundTrip(t *testing.T) {
	s := New(1, 2, 3, 4, 5)
	if got := s.Subsequence(0, len(s)); !got.Equal(s) {
		t.Errorf("subsequence(0,len) = %v, want %v", got, s)
	}
}

func TestAlignSelfIsIdentity(t *testing.T) {
	s := New(1, 2, 3, 4, 5)
	shift, ok := s.Align(s, 3)
	if !ok || shift != 0 {
		t.Errorf("align(s,s,3) = (%d,%v), want (0,true)", shift, ok)
	}
}

func TestIsLinear(t *testing.T) {
	s := New(0, 2, 4, 6, 8, 10)
	if !s.IsLinear(0) {
		t.Error("expected linear sequence")
	}
	s2 := New(0, 1, 4, 9, 16)
	if s2.IsLinear(0) {
		t.Error("squares should not be linear")
	}
}

func TestDelta(t *testing.T) {
	s := New(1, 3, 6, 10)
	d := s.Delta()
	want := New(2, 3, 4)
	if !d.Equal(want) {
		t.Errorf("delta = %v, want %v", d, want)
	}
}

func TestToBFile(t *testing.T) {
	s := New(1, 2, 3)
	got := s.ToBFile(5)
	want := "5 1\n6 2\n7 3\n"
	if got != want {
		t.Errorf("to_b_file = %q, want %q", got, want)
	}
}
