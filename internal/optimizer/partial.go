// Package optimizer implements the semantics-preserving rewrite battery
// from spec section 4.6: removing empty loops, peephole constant
// folding, dead-store elimination, and nop removal, driven by a partial
// evaluator that tracks a best-effort map of known cell values/aliases.
package optimizer

import (
	"loda/internal/program"
	"loda/internal/semantics"
)

// PartialEvaluator tracks cell -> Operand knowledge (either a concrete
// constant or an alias to another cell/constant) as it walks a program
// linearly, conservatively erasing knowledge it cannot prove safe.
type PartialEvaluator struct {
	known map[int64]program.Operand
}

// NewPartialEvaluator starts with no knowledge.
func NewPartialEvaluator() *PartialEvaluator {
	return &PartialEvaluator{known: make(map[int64]program.Operand)}
}

// Resolve returns the best-known operand for o: if o is Direct and its
// cell has known knowledge, return that; otherwise return o unchanged.
func (pe *PartialEvaluator) Resolve(o program.Operand) program.Operand {
	if !o.IsDirect() {
		return o
	}
	if v, ok := pe.known[o.CellIndex()]; ok {
		return v
	}
	return o
}

// Forget erases any knowledge mentioning cell, either as the owning
// cell or as an alias target.
func (pe *PartialEvaluator) Forget(cell int64) {
	delete(pe.known, cell)
	for k, v := range pe.known {
		if v.IsDirect() && v.CellIndex() == cell {
			delete(pe.known, k)
		}
	}
}

// ForgetAll drops all knowledge, used before entering a loop body or an
// indirect write whose target cannot be resolved statically.
func (pe *PartialEvaluator) ForgetAll() {
	pe.known = make(map[int64]program.Operand)
}

// Apply processes one operation, updating pe's knowledge and returning
// a possibly-simplified replacement operation. The replacement should
// be used in place of op in the output program; when no simplification
// applies, it returns op unchanged.
func (pe *PartialEvaluator) Apply(op program.Operation) program.Operation {
	md := program.Meta(op.Type)

	if md.LoopBegin || md.WritesRegion || op.Type == program.Seq || op.Type == program.Prg {
		pe.ForgetAll()
		return op
	}
	if md.LoopEnd {
		pe.ForgetAll()
		return op
	}
	if op.Type == program.Nop || op.Type == program.Dbg {
		return op
	}

	resolvedTarget := pe.Resolve(op.Target)
	resolvedSource := pe.Resolve(op.Source)
	out := op
	if op.Target.IsIndirect() {
		pe.ForgetAll()
		return op
	}
	if resolvedSource.IsConstant() {
		out.Source = resolvedSource
	}
	if md.ReadsTarget && resolvedTarget.IsConstant() {
		out.Target = resolvedTarget
	}

	if !md.WritesTarget {
		return out
	}
	targetCell := op.Target.CellIndex()

	switch {
	case op.Type == program.Mov:
		pe.known[targetCell] = resolvedSource
	case semantics.IsValueOp(op.Type) && (!md.ReadsTarget || resolvedTarget.IsConstant()) && resolvedSource.IsConstant():
		result := semantics.Calc(op.Type, resolvedTarget.Value, resolvedSource.Value)
		pe.known[targetCell] = program.NewConstant(result)
		out = program.NewOperation(program.Mov, program.NewDirect(targetCell), program.NewConstant(result))
		out.Comment = op.Comment
	default:
		pe.Forget(targetCell)
	}
	return out
}
