// Package mutator implements the program-level mutation operators used by
// generator V6/V7 and by the miner's post-success exploration (spec
// section 4.13): mutateRandom perturbs a single operation, mutateConstants
// perturbs constant operands, and the copies variants produce a batch of
// independently mutated clones.
//
// Mutator's own header/source were not among the retrieved files; only its
// call shapes were (_examples/original_source/src/mine/miner.cpp,
// generator_v7.cpp), so this package is authored from those call sites,
// in the same spirit as internal/random.
package mutator

import (
	"loda/internal/number"
	"loda/internal/program"
	"loda/internal/random"
	"loda/internal/stats"
)

// Mutator perturbs programs, optionally biasing constant choices by a
// corpus-wide Stats.
type Mutator struct {
	stats          *stats.Stats
	mutationRate   float64
	mutateComments bool
	rng            *random.Rng
}

// New creates a Mutator with the default mutation rate, matching the
// Mutator(stats) constructor call shape used by the miner and generator V6.
func New(st *stats.Stats) *Mutator {
	return NewWithRate(st, 0.3, false)
}

// NewWithRate creates a Mutator with an explicit mutation rate and comment
// policy, matching generator V7's Mutator(stats, mutation_rate, true)
// constructor call.
func NewWithRate(st *stats.Stats, mutationRate float64, mutateComments bool) *Mutator {
	return &Mutator{stats: st, mutationRate: mutationRate, mutateComments: mutateComments, rng: random.Get()}
}

// MutateRandom edits p in place: picks one eligible operation and perturbs
// either its target, its source, or its type.
func (m *Mutator) MutateRandom(p *program.Program) {
	var idx []int
	for i, op := range p.Ops {
		if op.IsNop() {
			continue
		}
		if m.mutateComments || op.Comment == "" {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return
	}
	i := idx[m.rng.Intn(len(idx))]
	op := &p.Ops[i]
	switch m.rng.Intn(3) {
	case 0:
		op.Target = m.mutateOperand(op.Target)
	case 1:
		op.Source = m.mutateOperand(op.Source)
	default:
		op.Type = m.mutateType(op.Type)
	}
}

func (m *Mutator) mutateOperand(o program.Operand) program.Operand {
	delta := int64(m.rng.Intn(5)) - 2
	v := o.Value.AsInt64() + delta
	if o.IsConstant() {
		return program.NewConstant(number.FromInt64(v))
	}
	if v < 0 {
		v = 0
	}
	return program.Operand{Type: o.Type, Value: number.FromInt64(v)}
}

// mutateType swaps op.Type for another public operation of the same
// arity, never introducing a loop boundary (which would unbalance p).
func (m *Mutator) mutateType(t program.OpType) program.OpType {
	md := program.Meta(t)
	for tries := 0; tries < 10; tries++ {
		cand := program.OpType(m.rng.Intn(int(program.Dbg) + 1))
		cmd := program.Meta(cand)
		if cmd.Public && cmd.Arity == md.Arity && cand != program.Lpb && cand != program.Lpe {
			return cand
		}
	}
	return t
}

// MutateConstants perturbs every constant source operand in p in place;
// each one is resampled with probability mutationRate.
func (m *Mutator) MutateConstants(p *program.Program) {
	for i := range p.Ops {
		op := &p.Ops[i]
		if op.Source.IsConstant() && m.rng.Float64() < m.mutationRate {
			op.Source = program.NewConstant(m.randomConstant(op.Source.Value))
		}
	}
}

func (m *Mutator) randomConstant(current number.Number) number.Number {
	if m.stats == nil {
		delta := int64(m.rng.Intn(5)) - 2
		return number.FromInt64(current.AsInt64() + delta)
	}
	counts := m.stats.ConstantCounts()
	if len(counts) == 0 {
		delta := int64(m.rng.Intn(5)) - 2
		return number.FromInt64(current.AsInt64() + delta)
	}
	var total float64
	for _, c := range counts {
		total += float64(c)
	}
	r := m.rng.Float64() * total
	for k, c := range counts {
		r -= float64(c)
		if r <= 0 {
			if n, err := number.Parse(k); err == nil {
				return n
			}
		}
	}
	return current
}

// MutateCopiesRandom returns n independently MutateRandom-mutated clones
// of base, matching Mutator::mutateCopiesRandom's out-parameter shape.
func (m *Mutator) MutateCopiesRandom(base *program.Program, n int) []*program.Program {
	out := make([]*program.Program, 0, n)
	for i := 0; i < n; i++ {
		c := base.Clone()
		m.MutateRandom(c)
		out = append(out, c)
	}
	return out
}

// MutateCopiesConstants returns n independently MutateConstants-mutated
// clones of base, matching Mutator::mutateCopiesConstants.
func (m *Mutator) MutateCopiesConstants(base *program.Program, n int) []*program.Program {
	out := make([]*program.Program, 0, n)
	for i := 0; i < n; i++ {
		c := base.Clone()
		m.MutateConstants(c)
		out = append(out, c)
	}
	return out
}
