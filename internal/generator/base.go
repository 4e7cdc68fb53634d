package generator

import (
	"loda/internal/number"
	"loda/internal/program"
	"loda/internal/random"
	"loda/internal/stats"
	"loda/internal/uid"
)

// base holds the collaborators and shared postprocessing pipeline every
// concrete generator embeds. Ported from Generator's protected members
// and methods in mine/generator.cpp.
type base struct {
	config Config
	stats  *stats.Stats
	store  ProgramStore
	rng    *random.Rng
}

// genOpFunc draws one synthesized operation, used by ensureMeaningfulLoops
// to fill a loop body; in the original this calls the subclass's virtual
// generateOperation(), which Go expresses as an explicit callback since
// there is no dispatch through an embedded struct.
type genOpFunc func() (program.Operation, float64)

// generateStateless fills p with random operations (via genOp) up to
// numOperations total, skipping Nop/Lpe from the generator and inserting
// a balancing Lpe whenever an Lpb is emitted. Ported from
// Generator::generateStateless.
func (b *base) generateStateless(p *program.Program, numOperations int, genOp genOpFunc) {
	for p.NumOps(false) < numOperations {
		op, frac := genOp()
		if op.Type == program.Nop || op.Type == program.Lpe {
			continue
		}
		pos := int(frac * float64(len(p.Ops)+1))
		if pos < 0 {
			pos = 0
		}
		if pos > len(p.Ops) {
			pos = len(p.Ops)
		}
		p.Ops = insertOps(p.Ops, pos, op)
		if op.Type == program.Lpb {
			lpe := program.NewOperation(program.Lpe, program.Operand{}, program.Operand{})
			p.Ops = insertOps(p.Ops, pos+1, lpe)
		}
	}
}

// insertOps inserts op at index pos in ops, preserving order.
func insertOps(ops []program.Operation, pos int, op program.Operation) []program.Operation {
	ops = append(ops, program.Operation{})
	copy(ops[pos+1:], ops[pos:])
	ops[pos] = op
	return ops
}

// fixCausality rewrites operands that reference cells not yet written,
// redirecting them to a previously written cell (or the input cell, which
// is always considered written). Returns the final written-cell list.
// Ported from Generator::fixCausality.
func (b *base) fixCausality(p *program.Program) []int64 {
	written := []int64{program.InputCell}
	for i := range p.Ops {
		op := &p.Ops[i]
		md := program.Meta(op.Type)
		if md.Arity > 1 && op.Source.IsDirect() && !containsInt64(written, op.Source.CellIndex()) {
			op.Source = program.NewDirect(written[b.rng.Intn(len(written))])
		}
		if md.Arity > 0 && op.Target.IsDirect() {
			if (md.ReadsTarget) && !containsInt64(written, op.Target.CellIndex()) {
				op.Target = program.NewDirect(written[b.rng.Intn(len(written))])
			}
			if (md.WritesTarget || md.WritesRegion) && !containsInt64(written, op.Target.CellIndex()) {
				written = append(written, op.Target.CellIndex())
			}
		}
	}
	return written
}

// fixSingularitiesScratchCell is the scratch cell used to guard div-like
// operations against a zero divisor.
const fixSingularitiesScratchCell = 26

// fixSingularities rewrites div/dif/mod to guard a zero source, clamps
// pow's exponent into a safe range, and wraps seq's target with max(_,0).
// Ported from Generator::fixSingularities.
func (b *base) fixSingularities(p *program.Program) {
	var out []program.Operation
	for _, op := range p.Ops {
		switch op.Type {
		case program.Div, program.Dif, program.Mod:
			if op.Source.IsConstant() && op.Source.Value.IsZero() {
				op.Source = program.NewConstant(number.One)
			} else if op.Source.IsDirect() {
				scratch := program.NewDirect(fixSingularitiesScratchCell)
				out = append(out,
					program.NewOperation(program.Mov, scratch, op.Source),
					program.NewOperation(program.Max, scratch, program.NewConstant(number.One)),
				)
				op.Source = scratch
			}
		case program.Pow:
			if op.Source.IsConstant() {
				v := op.Source.Value.AsInt64()
				if v < 2 {
					v = 2
				}
				if v > 5 {
					v = 5
				}
				op.Source = program.NewConstant(number.FromInt64(v))
			}
		case program.Seq:
			out = append(out, op)
			out = append(out, program.NewOperation(program.Max, op.Target, program.NewConstant(number.Zero)))
			continue
		}
		out = append(out, op)
	}
	p.Ops = out
}

// fixCalls rewrites any seq whose source id is not in the known program
// set to a randomly chosen known id. Ported from Generator::fixCalls.
func (b *base) fixCalls(p *program.Program) {
	if b.stats == nil {
		return
	}
	for i := range p.Ops {
		op := &p.Ops[i]
		if op.Type != program.Seq {
			continue
		}
		if op.Source.IsConstant() && b.programIDExists(op.Source.Value.AsInt64()) {
			continue
		}
		if id, ok := b.randomProgramID(); ok {
			op.Source = program.NewConstant(number.FromInt64(id.Number()))
		}
	}
}

// ensureSourceNotOverwritten prevents the input cell from being reset
// before its first read, by rewriting an early write to it into a write
// to cell InputCell+2. Ported from Generator::ensureSourceNotOverwritten.
func (b *base) ensureSourceNotOverwritten(p *program.Program) {
	readInput := false
	for i := range p.Ops {
		op := &p.Ops[i]
		md := program.Meta(op.Type)
		if md.Arity > 1 && op.Source.IsDirect() && op.Source.CellIndex() == program.InputCell {
			readInput = true
		}
		if !readInput && md.Arity > 0 && op.Target.IsDirect() && op.Target.CellIndex() == program.InputCell &&
			(md.WritesTarget || md.WritesRegion) {
			op.Target = program.NewDirect(program.InputCell + 2)
		}
	}
}

// ensureTargetWritten appends a mov into the output cell from the last
// written cell if the output cell is never written. Ported from
// Generator::ensureTargetWritten.
func (b *base) ensureTargetWritten(p *program.Program, written []int64) {
	for _, op := range p.Ops {
		md := program.Meta(op.Type)
		if op.Target.IsDirect() && op.Target.CellIndex() == program.OutputCell &&
			(md.WritesTarget || md.WritesRegion) {
			return
		}
	}
	src := int64(program.InputCell)
	if len(written) > 0 {
		src = written[len(written)-1]
	}
	p.Ops = append(p.Ops, program.NewOperation(program.Mov, program.NewDirect(program.OutputCell), program.NewDirect(src)))
}

// ensureMeaningfulLoops inserts a decrement before each lpe if its loop
// body has no cell-descending operation, and pads short loop bodies with
// filler operations drawn from genOp. Ported from
// Generator::ensureMeaningfulLoops.
func (b *base) ensureMeaningfulLoops(p *program.Program, genOp genOpFunc) {
	var out []program.Operation
	i := 0
	for i < len(p.Ops) {
		op := p.Ops[i]
		if op.Type != program.Lpb {
			out = append(out, op)
			i++
			continue
		}
		depth := 1
		j := i + 1
		var body []program.Operation
		for j < len(p.Ops) && depth > 0 {
			if p.Ops[j].Type == program.Lpb {
				depth++
			}
			if p.Ops[j].Type == program.Lpe {
				depth--
				if depth == 0 {
					break
				}
			}
			body = append(body, p.Ops[j])
			j++
		}
		descends := false
		for _, bop := range body {
			if (bop.Type == program.Sub || bop.Type == program.Trn) && bop.Target.Equal(op.Target) {
				descends = true
				break
			}
		}
		if !descends {
			body = append(body, program.NewOperation(program.Sub, op.Target, program.NewConstant(number.One)))
		}
		real := 0
		for _, bop := range body {
			if !bop.IsNop() {
				real++
			}
		}
		for real < 2 {
			extra, _ := genOp()
			if extra.Type == program.Nop || extra.Type == program.Lpe || extra.Type == program.Lpb {
				continue
			}
			body = append(body, extra)
			real++
		}
		out = append(out, op)
		out = append(out, body...)
		if j < len(p.Ops) {
			out = append(out, p.Ops[j])
		}
		i = j + 1
	}
	p.Ops = out
}

// applyPostprocessing runs the full pipeline in the original's exact
// order. Ported from Generator::applyPostprocessing.
func (b *base) applyPostprocessing(p *program.Program, genOp genOpFunc) {
	written := b.fixCausality(p)
	b.fixSingularities(p)
	b.fixCalls(p)
	b.ensureSourceNotOverwritten(p)
	b.ensureTargetWritten(p, written)
	b.ensureMeaningfulLoops(p, genOp)
}

func containsInt64(xs []int64, v int64) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// weightedPick returns a weighted-random index into weights, falling back
// to a uniform pick when every weight is non-positive.
func weightedPick(rng *random.Rng, weights []float64) int {
	var total float64
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return rng.Intn(len(weights))
	}
	r := rng.Float64() * total
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		r -= w
		if r <= 0 {
			return i
		}
	}
	return len(weights) - 1
}

// programIDExists reports whether n is a known program id, used by
// fixCalls to decide whether a seq source needs rewriting.
func (b *base) programIDExists(n int64) bool {
	if b.stats == nil {
		return false
	}
	id, err := uid.New(uid.DomainCurated, n)
	if err != nil {
		return false
	}
	return b.stats.AllProgramIDs.Exists(id)
}

// randomProgramID picks a uniformly random known program id, preferring
// LatestProgramID half the time the way RandomProgramIds::getFromAll's
// callers bias toward recent programs. Never ported as a distinct
// collaborator type: exercised directly against Stats here instead.
func (b *base) randomProgramID() (uid.UID, bool) {
	if b.stats == nil {
		return uid.UID{}, false
	}
	pool := b.stats.AllProgramIDs
	if b.stats.LatestProgramID.Len() > 0 && b.rng.Intn(2) == 0 {
		pool = b.stats.LatestProgramID
	}
	ids := pool.ToSlice()
	if len(ids) == 0 {
		ids = b.stats.AllProgramIDs.ToSlice()
	}
	if len(ids) == 0 {
		return uid.UID{}, false
	}
	return ids[b.rng.Intn(len(ids))], true
}
