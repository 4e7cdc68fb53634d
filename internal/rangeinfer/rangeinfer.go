// Package rangeinfer performs the forward abstract interpretation from
// spec section 4.10: for each cell, track a Range{Lower, Upper} and
// propagate it through a program's operations, with INF acting as an
// open bound. Used to detect a cell's eventual finiteness and to
// sanity-check a program's claimed output range against known terms.
//
// Grounded on the abstract-interpretation shape of
// _examples/original_source/src/lang/analyzer.cpp (no RangeGenerator
// excerpt was retrieved; the lattice operations below are authored from
// spec.md's prose contract: "monotone and correct, never declares a
// tighter range than the concrete semantics permits").
package rangeinfer

import (
	"loda/internal/number"
	"loda/internal/program"
)

// Range is a closed interval with open ends represented by Unbounded.
type Range struct {
	Lower, Upper   number.Number
	LowerUnbounded bool
	UpperUnbounded bool
}

// Unbounded is the range (-inf, +inf).
func Unbounded() Range {
	return Range{LowerUnbounded: true, UpperUnbounded: true}
}

// Exact returns the single-point range [v, v].
func Exact(v number.Number) Range {
	return Range{Lower: v, Upper: v}
}

func (r Range) widenUpper(v number.Number) Range {
	if r.UpperUnbounded {
		return r
	}
	if r.Upper.Less(v) {
		r.Upper = v
	}
	return r
}

func (r Range) widenLower(v number.Number) Range {
	if r.LowerUnbounded {
		return r
	}
	if v.Less(r.Lower) {
		r.Lower = v
	}
	return r
}

// RangeMap maps a cell index to its inferred Range. Cells absent from
// the map are assumed Unbounded, matching the Memory convention that
// undefined reads are conservative rather than zero here (a cell may be
// written by an indirect op the analysis cannot track).
type RangeMap map[int64]Range

// New returns an empty map; Get defaults missing cells to Unbounded.
func New() RangeMap { return make(RangeMap) }

// Get returns the inferred range for cell, defaulting to Unbounded.
func (m RangeMap) Get(cell int64) Range {
	if r, ok := m[cell]; ok {
		return r
	}
	return Unbounded()
}

// Infer runs one forward pass over p's operations starting from input,
// the range of INPUT_CELL. Indirect operands, loops, and region ops
// conservatively widen every cell they might touch to Unbounded, since
// this is a sound-but-imprecise over-approximation, never a tighter one.
func Infer(p *program.Program, input Range) RangeMap {
	m := New()
	m[program.InputCell] = input
	for _, op := range p.Ops {
		md := program.Meta(op.Type)
		switch {
		case op.Type == program.Nop, md.LoopEnd:
			continue
		case md.LoopBegin:
			// Conservative: anything the body might write becomes
			// unbounded. Since the analysis has no separate
			// loop-body scan here, widen the whole known map.
			for k := range m {
				m[k] = Unbounded()
			}
		case op.Target.IsIndirect() || op.Source.IsIndirect():
			if op.Target.IsDirect() {
				m[op.Target.CellIndex()] = Unbounded()
			} else {
				// an indirect write may land on any cell.
				for k := range m {
					m[k] = Unbounded()
				}
			}
		case md.WritesRegion:
			// clr/fil/rol/ror touch a range of cells the
			// analysis does not enumerate; be conservative.
			for k := range m {
				m[k] = Unbounded()
			}
		case op.Type == program.Seq:
			if op.Target.IsDirect() {
				m[op.Target.CellIndex()] = Unbounded()
			}
		default:
			applyValueOp(m, op)
		}
	}
	return m
}

func operandRange(m RangeMap, o program.Operand) Range {
	switch o.Type {
	case program.Constant:
		return Exact(o.Value)
	case program.Direct:
		return m.Get(o.CellIndex())
	default:
		return Unbounded()
	}
}

func applyValueOp(m RangeMap, op program.Operation) {
	if !op.Target.IsDirect() {
		return
	}
	target := op.Target.CellIndex()
	a := operandRange(m, op.Target)
	b := operandRange(m, op.Source)
	switch op.Type {
	case program.Mov:
		m[target] = b
	case program.Add:
		m[target] = addRange(a, b)
	case program.Sub, program.Trn:
		m[target] = subRange(a, b)
	case program.Mul:
		m[target] = mulRange(a, b)
	case program.Min:
		m[target] = Range{
			Lower:          minBound(a.Lower, b.Lower),
			LowerUnbounded: a.LowerUnbounded || b.LowerUnbounded,
			Upper:          minBound(a.Upper, b.Upper),
			UpperUnbounded: a.UpperUnbounded && b.UpperUnbounded,
		}
	case program.Max:
		m[target] = Range{
			Lower:          maxBound(a.Lower, b.Lower),
			LowerUnbounded: a.LowerUnbounded && b.LowerUnbounded,
			Upper:          maxBound(a.Upper, b.Upper),
			UpperUnbounded: a.UpperUnbounded || b.UpperUnbounded,
		}
	default:
		m[target] = Unbounded()
	}
}

func addRange(a, b Range) Range {
	return Range{
		Lower:          number.Add(a.Lower, b.Lower),
		LowerUnbounded: a.LowerUnbounded || b.LowerUnbounded,
		Upper:          number.Add(a.Upper, b.Upper),
		UpperUnbounded: a.UpperUnbounded || b.UpperUnbounded,
	}
}

func subRange(a, b Range) Range {
	return Range{
		Lower:          number.Sub(a.Lower, b.Upper),
		LowerUnbounded: a.LowerUnbounded || b.UpperUnbounded,
		Upper:          number.Sub(a.Upper, b.Lower),
		UpperUnbounded: a.UpperUnbounded || b.LowerUnbounded,
	}
}

func mulRange(a, b Range) Range {
	if a.LowerUnbounded || a.UpperUnbounded || b.LowerUnbounded || b.UpperUnbounded {
		return Unbounded()
	}
	candidates := []number.Number{
		number.Mul(a.Lower, b.Lower),
		number.Mul(a.Lower, b.Upper),
		number.Mul(a.Upper, b.Lower),
		number.Mul(a.Upper, b.Upper),
	}
	lo, hi := candidates[0], candidates[0]
	for _, c := range candidates[1:] {
		if c.Less(lo) {
			lo = c
		}
		if hi.Less(c) {
			hi = c
		}
	}
	return Range{Lower: lo, Upper: hi}
}

func minBound(a, b number.Number) number.Number {
	if a.Less(b) {
		return a
	}
	return b
}

func maxBound(a, b number.Number) number.Number {
	if b.Less(a) {
		return a
	}
	return b
}
