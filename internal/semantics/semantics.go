// Package semantics implements Calc, the pure per-operation value
// function shared by the interpreter and the partial evaluator (spec
// section 4.2): same inputs always produce the same Number, with no
// side effects, so both callers stay in lockstep with a single
// definition of truth.
//
// Grounded on _examples/original_source/src/semantics.cpp/.hpp, already
// ported into loda/internal/number's arithmetic file; this package just
// binds OpType to the right number.* function.
package semantics

import (
	"loda/internal/number"
	"loda/internal/program"
)

// Calc evaluates the two-operand arithmetic/comparison ops, plus mov
// (which yields b). It panics for an OpType with no value semantics (nop,
// clr/fil/rol/ror, lpb/lpe, seq/prg, dbg) — those are handled by the
// interpreter directly since they act on memory, not just values.
func Calc(op program.OpType, a, b number.Number) number.Number {
	switch op {
	case program.Add:
		return number.Add(a, b)
	case program.Sub:
		return number.Sub(a, b)
	case program.Trn:
		return number.Trn(a, b)
	case program.Mul:
		return number.Mul(a, b)
	case program.Div:
		return number.Div(a, b)
	case program.Dif:
		return number.Dif(a, b)
	case program.Mod:
		return number.Mod(a, b)
	case program.Pow:
		return number.Pow(a, b)
	case program.Bin:
		return number.Bin(a, b)
	case program.Gcd:
		return number.Gcd(a, b)
	case program.Lex:
		return number.Cmp01(a, b)
	case program.Min:
		return number.Min(a, b)
	case program.Max:
		return number.Max(a, b)
	case program.Equ:
		return number.Equ(a, b)
	case program.Neq:
		return number.Neq(a, b)
	case program.Leq:
		return number.Leq(a, b)
	case program.Geq:
		return number.Geq(a, b)
	case program.Log:
		return number.Log(a, b)
	case program.Nrt:
		return number.Nrt(a, b)
	case program.Dgs:
		return number.DigitSum(a, b)
	case program.Dgr:
		return number.DigitalRoot(a, b)
	case program.Cmp:
		return cmp(a, b)
	case program.Mov:
		return b
	default:
		panic("semantics: Calc called on an op with no value semantics: " + op.String())
	}
}

// cmp implements the spec's `cmp(a,b) = 1 if a==b else 0`, with INF
// absorbing like every other binary op.
func cmp(a, b number.Number) number.Number {
	if a.IsInf() || b.IsInf() {
		return number.Inf()
	}
	if a.Equal(b) {
		return number.One
	}
	return number.Zero
}

// IsValueOp reports whether op has pure value semantics handled by Calc,
// as opposed to a memory-region or control-flow op the interpreter must
// special-case.
func IsValueOp(op program.OpType) bool {
	switch op {
	case program.Nop, program.Clr, program.Fil, program.Rol, program.Ror,
		program.Lpb, program.Lpe, program.Seq, program.Prg, program.Dbg:
		return false
	default:
		return true
	}
}
