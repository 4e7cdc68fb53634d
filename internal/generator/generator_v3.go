package generator

import (
	"loda/internal/program"
	"loda/internal/stats"
)

// generatorV3 samples operations from a per-(position, length)
// distribution rather than a single flat one, so a program's shape
// reflects where each operation typically occurs (e.g. bootstrap moves
// near position 0, loop bodies in the middle). generator_v3.cpp's own
// generateProgram body is a literal upstream TODO that builds these
// distributions and then never samples from them; this is a working
// completion of that stub, built on the same per-position counts the
// original intended to use.
type generatorV3 struct {
	base

	lengths       []int
	lengthWeights []float64

	byPosition map[[2]int]*posDist
}

type posDist struct {
	ops     []program.Operation
	weights []float64
}

func newGeneratorV3(b base) (*generatorV3, error) {
	g := &generatorV3{base: b, byPosition: make(map[[2]int]*posDist)}
	fillLengthDist(&g.lengths, &g.lengthWeights, b.stats)

	if b.stats != nil {
		for k, v := range b.stats.OperationPositionCounts() {
			pos, length, op, err := stats.ParsePositionKey(k)
			if err != nil || v <= 0 {
				continue
			}
			key := [2]int{pos, length}
			d, ok := g.byPosition[key]
			if !ok {
				d = &posDist{}
				g.byPosition[key] = d
			}
			d.ops = append(d.ops, op)
			d.weights = append(d.weights, float64(v))
		}
	}
	return g, nil
}

// GenerateOperation is unsupported standalone: V3's draws are always
// relative to a (position, length) pair known only while building a whole
// program.
func (g *generatorV3) GenerateOperation() (program.Operation, float64, error) {
	return program.Operation{}, 0, errUnsupportedOperation
}

func (g *generatorV3) GenerateProgram() (*program.Program, error) {
	length := g.lengths[weightedPick(g.rng, g.lengthWeights)]
	p := program.New()
	for pos := 0; pos < length; pos++ {
		d, ok := g.byPosition[[2]int{pos, length}]
		if !ok || len(d.ops) == 0 {
			continue
		}
		p.Ops = append(p.Ops, d.ops[weightedPick(g.rng, d.weights)])
	}
	genOp := func() (program.Operation, float64) {
		if len(p.Ops) == 0 {
			return program.NewOperation(program.Mov, program.NewDirect(1), program.NewDirect(0)), 0.5
		}
		d := g.byPosition[[2]int{g.rng.Intn(length), length}]
		if d == nil || len(d.ops) == 0 {
			return program.NewOperation(program.Mov, program.NewDirect(1), program.NewDirect(0)), 0.5
		}
		return d.ops[weightedPick(g.rng, d.weights)], g.rng.Float64()
	}
	g.applyPostprocessing(p, genOp)
	return p, nil
}

func (g *generatorV3) SupportsRestart() bool { return true }
func (g *generatorV3) IsFinished() bool      { return false }
