package semantics

import (
	"testing"

	"loda/internal/number"
	"loda/internal/program"
)

func n(v int64) number.Number { return number.FromInt64(v) }

func TestCalcAdd(t *testing.T) {
	if got := Calc(program.Add, n(2), n(3)); !got.Equal(n(5)) {
		t.Fatalf("add(2,3) = %v, want 5", got)
	}
}

func TestCalcCmp(t *testing.T) {
	if got := Calc(program.Cmp, n(4), n(4)); !got.Equal(n(1)) {
		t.Fatalf("cmp(4,4) = %v, want 1", got)
	}
	if got := Calc(program.Cmp, n(4), n(5)); !got.Equal(n(0)) {
		t.Fatalf("cmp(4,5) = %v, want 0", got)
	}
	if got := Calc(program.Cmp, number.Inf(), n(5)); !got.IsInf() {
		t.Fatalf("cmp(inf,5) should be inf, got %v", got)
	}
}

func TestCalcMov(t *testing.T) {
	if got := Calc(program.Mov, n(9), n(7)); !got.Equal(n(7)) {
		t.Fatalf("mov should yield the source value, got %v", got)
	}
}

func TestCalcDivByZeroIsInf(t *testing.T) {
	if got := Calc(program.Div, n(5), n(0)); !got.IsInf() {
		t.Fatalf("div by zero should be inf, got %v", got)
	}
}

func TestIsValueOp(t *testing.T) {
	if IsValueOp(program.Lpb) || IsValueOp(program.Clr) {
		t.Fatal("loop/region ops should not be value ops")
	}
	if !IsValueOp(program.Add) {
		t.Fatal("add should be a value op")
	}
}

func TestCalcPanicsOnNonValueOp(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic for non-value op")
		}
	}()
	Calc(program.Lpb, n(0), n(0))
}
