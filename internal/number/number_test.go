package number

import (
	"math"
	"testing"
)

func TestAddNegateIdentity(t *testing.T) {
	vals := []Number{FromInt64(0), FromInt64(1), FromInt64(-7), FromInt64(math.MaxInt64)}
	for _, a := range vals {
		if got := Add(a, a.Neg()); !got.Equal(Zero) {
			t.Errorf("%v + (-%v) = %v, want 0", a, a, got)
		}
	}
}

func TestSmallBigEquality(t *testing.T) {
	small := FromInt64(42)
	big, err := Parse("42")
	if err != nil {
		t.Fatal(err)
	}
	if !small.Equal(big) {
		t.Fatalf("small and parsed representations of 42 should be equal")
	}
	if small.Hash() != big.Hash() {
		t.Fatalf("equal numbers must hash identically")
	}
}

func TestOverflowPromotesToBig(t *testing.T) {
	max := FromInt64(math.MaxInt64)
	r := Mul(max, Two)
	if r.IsInf() {
		t.Fatalf("MaxInt64*2 should promote to big, not saturate (within default 50-word cap)")
	}
	if r.FitsInt64() {
		t.Fatalf("MaxInt64*2 should not fit in int64 anymore")
	}
}

func TestDivideMinByMinusOne(t *testing.T) {
	min := FromInt64(math.MinInt64)
	r := Div(min, MinusOne)
	if r.IsInf() {
		t.Fatalf("MinInt64 / -1 should promote to big, not be an exception/INF")
	}
}

func TestDivModZero(t *testing.T) {
	if !Div(FromInt64(5), Zero).IsInf() {
		t.Error("div by zero should yield INF")
	}
	if !Mod(FromInt64(5), Zero).IsInf() {
		t.Error("mod by zero should yield INF")
	}
}

func TestInfAbsorbs(t *testing.T) {
	inf := Inf()
	ops := []Number{Add(inf, One), Mul(inf, Zero), Sub(One, inf), Div(inf, Two)}
	for _, r := range ops {
		if !r.IsInf() {
			t.Errorf("expected INF, got %v", r)
		}
	}
}

func TestPowBoundary(t *testing.T) {
	if !Pow(Zero, Zero).Equal(One) {
		t.Error("0^0 should be 1")
	}
	if !Pow(Zero, MinusOne).IsInf() {
		t.Error("0^-1 should be INF")
	}
	if !Pow(MinusOne, Inf()).IsInf() {
		t.Error("(-1)^INF should be INF")
	}
}

func TestBinBoundary(t *testing.T) {
	cases := []struct {
		n, k, want int64
	}{
		{5, 2, 10},
		{5, 10, 0},
	}
	for _, c := range cases {
		got := Bin(FromInt64(c.n), FromInt64(c.k))
		if want := FromInt64(c.want); !got.Equal(want) {
			t.Errorf("bin(%d,%d) = %v, want %d", c.n, c.k, got, c.want)
		}
	}
	if got := Bin(FromInt64(-3), FromInt64(2)); !got.Equal(FromInt64(6)) {
		t.Errorf("bin(-3,2) = %v, want 6", got)
	}
}

func TestGcd(t *testing.T) {
	if !Gcd(Zero, Zero).Equal(Zero) {
		t.Error("gcd(0,0) should be 0")
	}
	if !Gcd(Inf(), FromInt64(4)).IsInf() {
		t.Error("gcd(INF,*) should be INF")
	}
	if !Gcd(FromInt64(12), FromInt64(18)).Equal(FromInt64(6)) {
		t.Error("gcd(12,18) should be 6")
	}
}

func TestBitwiseSignRules(t *testing.T) {
	if got := And(FromInt64(-3), FromInt64(-5)); got.Sign() >= 0 {
		t.Errorf("AND of two negatives should be negative, got %v", got)
	}
	if got := Or(FromInt64(-3), FromInt64(5)); got.Sign() >= 0 {
		t.Errorf("OR with one negative should be negative, got %v", got)
	}
	if got := Xor(FromInt64(3), FromInt64(5)); got.Sign() < 0 {
		t.Errorf("XOR of same-signed values should be non-negative, got %v", got)
	}
}

func TestGetPowerOf(t *testing.T) {
	if got := GetPowerOf(FromInt64(8), FromInt64(2)); !got.Equal(FromInt64(3)) {
		t.Errorf("getPowerOf(8,2) = %v, want 3", got)
	}
	if got := GetPowerOf(FromInt64(12), FromInt64(2)); !got.Equal(Zero) {
		t.Errorf("getPowerOf(12,2) = %v, want 0 (not a pure power)", got)
	}
}

func TestDigitalRoot(t *testing.T) {
	if got := DigitalRoot(FromInt64(9875), FromInt64(10)); !got.Equal(FromInt64(2)) {
		t.Errorf("digital root of 9875 base 10 = %v, want 2", got)
	}
}
