package optimizer

import "loda/internal/program"

// Optimize applies one pass of the rewrite battery: partial evaluation
// (constant folding via PartialEvaluator.Apply), empty-loop removal,
// dead-store elimination, and nop removal. Callers that want a fixed
// point should call Optimize repeatedly until the result stops
// changing (see loda/internal/minimizer.OptimizeAndMinimize).
func Optimize(p *program.Program) *program.Program {
	out := foldConstants(p)
	out = removeEmptyLoops(out)
	out = eliminateDeadStores(out)
	out.RemoveOps(program.Nop)
	return out
}

func foldConstants(p *program.Program) *program.Program {
	pe := NewPartialEvaluator()
	out := program.New()
	out.Directives = p.Directives
	for _, op := range p.Ops {
		out.Ops = append(out.Ops, pe.Apply(op))
	}
	return out
}

// removeEmptyLoops drops any lpb/lpe pair with nothing but nops between
// them, since such a loop either runs once (decreasing to non-positive
// immediately) or never affects memory.
func removeEmptyLoops(p *program.Program) *program.Program {
	out := program.New()
	out.Directives = p.Directives
	i := 0
	for i < len(p.Ops) {
		op := p.Ops[i]
		if program.Meta(op.Type).LoopBegin {
			j := i + 1
			empty := true
			for j < len(p.Ops) && !program.Meta(p.Ops[j].Type).LoopEnd {
				if p.Ops[j].Type != program.Nop {
					empty = false
				}
				j++
			}
			if j < len(p.Ops) && empty {
				i = j + 1
				continue
			}
		}
		out.Ops = append(out.Ops, op)
		i++
	}
	return out
}

// eliminateDeadStores removes a write to a direct cell when no
// subsequent operation reads that cell before it is next written and
// the cell is neither cell 0 (where the evaluator reads each term) nor
// OUTPUT_CELL (whose value is always observable) — a
// single linear backward scan, conservative across loop boundaries
// (a write inside or before a loop is never considered dead, since the
// loop may read it on a later iteration).
func eliminateDeadStores(p *program.Program) *program.Program {
	n := len(p.Ops)
	alive := make([]bool, n)
	liveCells := map[int64]bool{program.InputCell: true, program.OutputCell: true}
	insideLoop := 0
	for i := n - 1; i >= 0; i-- {
		op := p.Ops[i]
		md := program.Meta(op.Type)
		if md.LoopEnd {
			insideLoop++
		}
		if md.LoopBegin {
			insideLoop--
		}
		dead := false
		if md.WritesTarget && !md.ReadsTarget && op.Target.IsDirect() && insideLoop == 0 {
			if !liveCells[op.Target.CellIndex()] {
				dead = true
			}
		}
		alive[i] = !dead
		if !dead {
			if op.Source.IsDirect() {
				liveCells[op.Source.CellIndex()] = true
			}
			if md.ReadsTarget && op.Target.IsDirect() {
				liveCells[op.Target.CellIndex()] = true
			}
			if op.Target.IsIndirect() || op.Source.IsIndirect() {
				// indirect operands may reference any cell; be
				// conservative and mark everything live from here back.
				for c := range liveCells {
					liveCells[c] = true
				}
			}
			if md.WritesTarget && op.Target.IsDirect() && !md.ReadsTarget {
				delete(liveCells, op.Target.CellIndex())
			}
		}
	}
	out := program.New()
	out.Directives = p.Directives
	for i, op := range p.Ops {
		if alive[i] {
			out.Ops = append(out.Ops, op)
		}
	}
	return out
}
