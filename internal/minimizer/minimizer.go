// Package minimizer implements the minimization pass from spec section
// 4.6: it removes or weakens operations while preserving the produced
// sequence on a required prefix, and alternates with the optimizer
// until neither makes further progress.
package minimizer

import (
	"loda/internal/number"
	"loda/internal/optimizer"
	"loda/internal/program"
)

// Eval runs p on successive inputs 0..numTerms-1 and returns the
// resulting output sequence plus the total step count across all runs,
// or an error from the first failing evaluation.
type Eval func(p *program.Program, numTerms int) ([]number.Number, int64, error)

// Minimize repeatedly tries small weakenings at each operation index,
// reverting any trial that changes the snapshot sequence or increases
// total steps.
func Minimize(p *program.Program, eval Eval, numTerms int) (*program.Program, error) {
	snapshot, originalSteps, err := eval(p, numTerms)
	if err != nil {
		return p, err
	}
	cur := p.Clone()
	for i := 0; i < len(cur.Ops); i++ {
		for _, weaken := range weakenings(cur, i) {
			trial := cur.Clone()
			if !weaken(trial, i) {
				continue
			}
			seq, steps, err := eval(trial, numTerms)
			if err != nil {
				continue
			}
			if !sameSequence(seq, snapshot) || steps > originalSteps {
				continue
			}
			cur = trial
			originalSteps = steps
			break
		}
	}
	cur = unrollSmallClears(cur)
	return cur, nil
}

// OptimizeAndMinimize alternates Optimize and Minimize until a full
// round produces no change in hash, per spec section 4.6.
func OptimizeAndMinimize(p *program.Program, eval Eval, numTerms int) (*program.Program, error) {
	cur := p
	for {
		opt := optimizer.Optimize(cur)
		min, err := Minimize(opt, eval, numTerms)
		if err != nil {
			return cur, err
		}
		if min.Hash() == cur.Hash() {
			return min, nil
		}
		cur = min
	}
}

type weakenFn func(p *program.Program, i int) bool

// weakenings returns, in priority order, the trial edits to attempt at
// operation index i: trn->sub, lpb source->Constant(1), delete.
func weakenings(p *program.Program, i int) []weakenFn {
	return []weakenFn{trnToSub, lpbSourceToOne, deleteOp}
}

func trnToSub(p *program.Program, i int) bool {
	if p.Ops[i].Type != program.Trn {
		return false
	}
	p.Ops[i].Type = program.Sub
	return true
}

func lpbSourceToOne(p *program.Program, i int) bool {
	op := p.Ops[i]
	if !program.Meta(op.Type).LoopBegin {
		return false
	}
	if op.Source.IsConstant() && op.Source.Value.Equal(number.One) {
		return false
	}
	p.Ops[i].Source = program.NewConstant(number.One)
	return true
}

func deleteOp(p *program.Program, i int) bool {
	if i >= len(p.Ops) {
		return false
	}
	p.Ops = append(p.Ops[:i], p.Ops[i+1:]...)
	return true
}

func sameSequence(a, b []number.Number) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// maxUnrollLength is the constant region-length ceiling for unrolling a
// clr into a block of movs to zero (spec section 4.6).
const maxUnrollLength = 100

func unrollSmallClears(p *program.Program) *program.Program {
	out := program.New()
	out.Directives = p.Directives
	for _, op := range p.Ops {
		if op.Type == program.Clr && op.Target.IsDirect() && op.Source.IsConstant() {
			length := op.Source.Value.AsInt64()
			if length > 0 && length <= maxUnrollLength {
				start := op.Target.CellIndex()
				for i := int64(0); i < length; i++ {
					out.Ops = append(out.Ops, program.NewOperation(program.Mov, program.NewDirect(start+i), program.NewConstant(number.Zero)))
				}
				continue
			}
		}
		out.Ops = append(out.Ops, op)
	}
	return out
}
