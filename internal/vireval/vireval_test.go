package vireval

import (
	"testing"

	"loda/internal/number"
	"loda/internal/program"
)

func idGen() func() int64 {
	next := int64(1000)
	return func() int64 {
		next++
		return next
	}
}

func TestRefactorBoundsExtractionCount(t *testing.T) {
	d := program.NewDirect
	c := func(v int64) program.Operand { return program.NewConstant(number.FromInt64(v)) }
	p := program.New()
	for i := 0; i < 40; i++ {
		p.Ops = append(p.Ops,
			program.NewOperation(program.Mov, d(1), d(0)),
			program.NewOperation(program.Add, d(1), c(1)),
			program.NewOperation(program.Mov, d(0), d(1)),
		)
	}
	host, extractions := Refactor(p, idGen())
	if len(extractions) > maxExtractions {
		t.Fatalf("expected at most %d extractions, got %d", maxExtractions, len(extractions))
	}
	if host == nil {
		t.Fatal("expected a non-nil refactored host program")
	}
}

func TestRefactorNoOpOnEmptyProgram(t *testing.T) {
	p := program.New()
	host, extractions := Refactor(p, idGen())
	if len(extractions) != 0 {
		t.Fatalf("expected no extractions for an empty program, got %d", len(extractions))
	}
	if len(host.Ops) != 0 {
		t.Fatal("expected empty host to stay empty")
	}
}

func TestExtractionUsesCanonicalCells(t *testing.T) {
	d := program.NewDirect
	c := func(v int64) program.Operand { return program.NewConstant(number.FromInt64(v)) }
	p := program.New()
	p.Ops = []program.Operation{
		program.NewOperation(program.Mov, d(5), d(4)),
		program.NewOperation(program.Add, d(5), c(1)),
	}
	_, extractions := Refactor(p, idGen())
	if len(extractions) == 0 {
		t.Skip("simplified extractor did not find a candidate for this shape")
	}
	ext := extractions[0]
	for _, op := range ext.Program.Ops {
		for _, o := range []program.Operand{op.Target, op.Source} {
			if o.IsDirect() && o.CellIndex() != program.InputCell && o.CellIndex() != program.OutputCell {
				t.Fatalf("expected extracted program to use only canonical cells, found %v", o)
			}
		}
	}
}
