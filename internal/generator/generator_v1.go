package generator

import (
	"loda/internal/asm"
	"loda/internal/number"
	"loda/internal/program"
)

// generatorV1 synthesizes operations from independent per-field
// distributions (operation type, operand type, operand value, position)
// derived from Stats. Ported from generator_v1.cpp.
type generatorV1 struct {
	base

	opTypes   []program.OpType
	opWeights []float64

	targetTypes   []program.OperandType
	targetWeights []float64
	sourceTypes   []program.OperandType
	sourceWeights []float64

	constants   []number.Number
	constWeight []float64

	template []program.Operation
}

func newGeneratorV1(b base) (*generatorV1, error) {
	g := &generatorV1{base: b}

	for t := program.Nop; t <= program.Dbg; t++ {
		md := program.Meta(t)
		var include bool
		switch t {
		case program.Lpb, program.Lpe:
			include = b.config.Loops
		case program.Seq:
			include = b.config.Calls && md.Public
		default:
			include = md.Public && t != program.Nop
		}
		if !include {
			continue
		}
		rate := float64(1)
		if b.stats != nil && int(t) < len(b.stats.NumOpsPerType) {
			r := b.stats.NumOpsPerType[t] / 1000
			if r > 1 {
				rate = float64(r)
			}
		}
		g.opTypes = append(g.opTypes, t)
		g.opWeights = append(g.opWeights, rate)
	}

	g.targetTypes = []program.OperandType{program.Direct}
	g.targetWeights = []float64{4}
	if b.config.IndirectAccess {
		g.targetTypes = append(g.targetTypes, program.Indirect)
		g.targetWeights = append(g.targetWeights, 1)
	}
	g.sourceTypes = []program.OperandType{program.Constant, program.Direct}
	g.sourceWeights = []float64{4, 4}
	if b.config.IndirectAccess {
		g.sourceTypes = append(g.sourceTypes, program.Indirect)
		g.sourceWeights = append(g.sourceWeights, 1)
	}

	if b.stats != nil {
		for k, v := range b.stats.ConstantCounts() {
			n, err := number.Parse(k)
			if err != nil || v <= 0 {
				continue
			}
			g.constants = append(g.constants, n)
			g.constWeight = append(g.constWeight, float64(v))
		}
	}

	if b.config.ProgramTemplate != "" {
		p, err := asm.Parse(b.config.ProgramTemplate)
		if err != nil {
			return nil, err
		}
		for _, op := range p.Ops {
			if !op.IsNop() {
				op.Comment = ""
				g.template = append(g.template, op)
			}
		}
	}

	return g, nil
}

func (g *generatorV1) maxIndex() int64 {
	if g.config.MaxIndex > 0 {
		return g.config.MaxIndex
	}
	return 4
}

func (g *generatorV1) maxConstant() int64 {
	if g.config.MaxConstant > 0 {
		return g.config.MaxConstant
	}
	return 4
}

// GenerateOperation draws one synthesized operation, including the
// "avoid meaningless zeros/singularities" operand adjustments. Ported
// from GeneratorV1::generateOperation.
func (g *generatorV1) GenerateOperation() (program.Operation, float64, error) {
	t := g.opTypes[weightedPick(g.rng, g.opWeights)]
	md := program.Meta(t)

	var target, source program.Operand
	if md.Arity > 0 {
		target = g.randomOperand(g.targetTypes, g.targetWeights)
	}
	if md.Arity > 1 {
		if t == program.Lpb && g.rng.Float64() < 0.9 {
			source = program.NewConstant(g.randomConstant())
		} else {
			source = g.randomOperand(g.sourceTypes, g.sourceWeights)
		}
	}

	if t == program.Lpb || t == program.Clr {
		if source.IsConstant() {
			v := source.Value.AsInt64()
			if v < 1 {
				v = 1
			}
			if v > 9 {
				v = 9
			}
			source = program.NewConstant(number.FromInt64(v))
		}
	}

	switch t {
	case program.Add, program.Sub, program.Lpb:
		if source.IsConstant() && source.Value.IsZero() {
			source = program.NewConstant(number.One)
		}
	case program.Mul, program.Div, program.Dif, program.Mod, program.Pow, program.Gcd, program.Bin:
		if source.IsConstant() {
			v := source.Value.AsInt64()
			if v == 0 || v == 1 {
				source = program.NewConstant(number.Two)
			}
		}
	}
	switch t {
	case program.Mov, program.Div, program.Dif, program.Mod, program.Gcd, program.Bin:
		if target.IsDirect() && source.IsDirect() && target.CellIndex() == source.CellIndex() {
			target = program.NewDirect(target.CellIndex() + 1)
		}
	}

	return program.NewOperation(t, target, source), g.rng.Float64(), nil
}

func (g *generatorV1) randomOperand(types []program.OperandType, weights []float64) program.Operand {
	ot := types[weightedPick(g.rng, weights)]
	switch ot {
	case program.Constant:
		return program.NewConstant(g.randomConstant())
	case program.Indirect:
		return program.NewIndirect(int64(g.rng.Intn(int(g.maxIndex()) + 1)))
	default:
		return program.NewDirect(int64(g.rng.Intn(int(g.maxIndex()) + 1)))
	}
}

func (g *generatorV1) randomConstant() number.Number {
	if len(g.constants) == 0 {
		return number.FromInt64(int64(g.rng.Intn(int(g.maxConstant()) + 1)))
	}
	return g.constants[weightedPick(g.rng, g.constWeight)]
}

func (g *generatorV1) GenerateProgram() (*program.Program, error) {
	p := program.New()
	p.Ops = append(p.Ops, g.template...)
	numOps := int(g.config.Length / 2)
	if numOps < 1 {
		numOps = 1
	}
	genOp := func() (program.Operation, float64) {
		op, frac, _ := g.GenerateOperation()
		return op, frac
	}
	g.generateStateless(p, numOps, genOp)
	g.applyPostprocessing(p, genOp)
	return p, nil
}

func (g *generatorV1) SupportsRestart() bool { return true }
func (g *generatorV1) IsFinished() bool      { return false }
