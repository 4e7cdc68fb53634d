package matcher

import (
	"testing"

	"loda/internal/interp"
	"loda/internal/memory"
	"loda/internal/number"
	"loda/internal/program"
	"loda/internal/sequence"
	"loda/internal/uid"
)

func mustUID(t *testing.T, s string) uid.UID {
	t.Helper()
	id, err := uid.Parse(s)
	if err != nil {
		t.Fatalf("parse uid %q: %v", s, err)
	}
	return id
}

func runOnInputs(t *testing.T, p *program.Program, n int) sequence.Sequence {
	t.Helper()
	ip := interp.New(nil)
	out := make(sequence.Sequence, n)
	for i := 0; i < n; i++ {
		mem := memory.New()
		mem.Set(program.InputCell, number.FromInt64(int64(i)))
		if _, err := ip.Run(p, &mem, interp.Options{MaxCycles: 100000, MaxMemory: 1000}); err != nil {
			t.Fatalf("run: %v", err)
		}
		out[i] = mem.Get(program.InputCell)
	}
	return out
}

func identityProgram() *program.Program {
	p := program.New()
	p.Ops = []program.Operation{
		program.NewOperation(program.Mov, program.NewDirect(0), program.NewDirect(0)),
	}
	return p
}

// affineProgram computes $0*step+offset in place.
func affineProgram(step, offset int64) *program.Program {
	p := program.New()
	c := func(v int64) program.Operand { return program.NewConstant(number.FromInt64(v)) }
	d := program.NewDirect(0)
	p.Ops = []program.Operation{
		program.NewOperation(program.Mul, d, c(step)),
		program.NewOperation(program.Add, d, c(offset)),
	}
	return p
}

func TestDirectMatcher(t *testing.T) {
	m := NewDirectMatcher(nil)
	target := sequence.New(0, 1, 2, 3, 4)
	id := mustUID(t, "A000001")
	m.Insert(target, id)

	candidate := identityProgram()
	produced := sequence.New(0, 1, 2, 3, 4) // what the identity candidate actually computes
	matches := m.Match(candidate, produced)
	if len(matches) != 1 || matches[0].TargetID != id {
		t.Fatalf("expected one match on %v, got %v", id, matches)
	}
}

// TestLinearMatcherWorkedExample reproduces spec section 4.7's worked
// example: target T = 2,4,6,8,10 and candidate s = 0,1,2,3,4 (produced
// by mov $0,$0) reduce to the same 0,1,2,3,4 with params (0,1) and
// (2,2); match emits an extension equivalent to mul $0,2; add $0,2,
// reconstructing 2,4,6,8,10 from 0,1,2,3,4.
func TestLinearMatcherWorkedExample(t *testing.T) {
	m := NewLinear1Matcher(nil)
	target := sequence.New(2, 4, 6, 8, 10)
	id := mustUID(t, "A000002")
	m.Insert(target, id)

	candidate := identityProgram()
	produced := sequence.New(0, 1, 2, 3, 4)
	matches := m.Match(candidate, produced)
	if len(matches) != 1 || matches[0].TargetID != id {
		t.Fatalf("expected one match on %v, got %v", id, matches)
	}
	got := runOnInputs(t, matches[0].Program, 5)
	if !got.Equal(target) {
		t.Fatalf("extended program produced %v, want %v", got, target)
	}
}

func TestLinear2Matcher(t *testing.T) {
	m := NewLinear2Matcher(nil)
	target := sequence.New(4, 8, 12, 16, 20)
	id := mustUID(t, "A000003")
	m.Insert(target, id)

	candidate := identityProgram()
	produced := sequence.New(0, 1, 2, 3, 4)
	matches := m.Match(candidate, produced)
	if len(matches) != 1 {
		t.Fatalf("expected one match, got %d", len(matches))
	}
	got := runOnInputs(t, matches[0].Program, 5)
	if !got.Equal(target) {
		t.Fatalf("extended program produced %v, want %v", got, target)
	}
}

func TestDeltaMatcherSameDepthMatches(t *testing.T) {
	m := NewDeltaMatcher(nil)
	target := sequence.New(1, 3, 6, 10, 15) // triangular numbers, one delta level to 2,3,4,5
	id := mustUID(t, "A000004")
	m.Insert(target, id)

	produced := sequence.New(1, 3, 6, 10, 15)
	candidate := identityProgram()
	matches := m.Match(candidate, produced)
	if len(matches) != 1 || matches[0].TargetID != id {
		t.Fatalf("expected a same-depth match, got %v", matches)
	}
}

func TestDeltaMatcherDifferentDepthDoesNotMatch(t *testing.T) {
	m := NewDeltaMatcher(nil)
	target := sequence.New(1, 3, 6, 10, 15)
	id := mustUID(t, "A000005")
	m.Insert(target, id)

	produced := sequence.New(2, 3, 4, 5, 6) // flatter: one fewer delta level
	candidate := identityProgram()
	matches := m.Match(candidate, produced)
	if len(matches) != 0 {
		t.Fatalf("expected no match across differing delta depth, got %v", matches)
	}
}

func TestPolynomialMatcherSquares(t *testing.T) {
	m := NewPolynomialMatcher(nil)
	target := sequence.New(0, 2, 6, 12, 20) // x^2+x
	id := mustUID(t, "A000006")
	m.Insert(target, id)

	candidate := identityProgram()
	produced := sequence.New(0, 1, 2, 3, 4) // what the identity candidate actually computes
	matches := m.Match(candidate, produced)
	if len(matches) != 1 || matches[0].TargetID != id {
		t.Fatalf("expected one match, got %v", matches)
	}
	got := runOnInputs(t, matches[0].Program, 5)
	if !got.Equal(target) {
		t.Fatalf("extended program produced %v, want %v", got, target)
	}
}

func TestDigitMatcherReversal(t *testing.T) {
	m := NewDigitMatcher(nil)
	produced := sequence.New(12, 34, 56) // affineProgram(22,12) run on 0,1,2
	targetBase := number.FromInt64(16)
	canonical := reduceDigit(produced, number.FromInt64(10))
	target := reduceDigit(canonical, targetBase)
	id := mustUID(t, "A000007")
	m.Insert(target, id)

	candidate := affineProgram(22, 12)
	matches := m.Match(candidate, produced)
	if len(matches) != 1 || matches[0].TargetID != id {
		t.Fatalf("expected one reversal match, got %v", matches)
	}
	got := runOnInputs(t, matches[0].Program, len(produced))
	if !got.Equal(target) {
		t.Fatalf("extended program produced %v, want %v", got, target)
	}
}
