package generator

import (
	"loda/internal/program"
	"loda/internal/stats"
)

// generatorV2 samples whole pre-existing operations (type, target, and
// source together) from the corpus frequency table, and program lengths
// from the per-length distribution. Ported from generator_v2.cpp.
type generatorV2 struct {
	base

	lengths       []int
	lengthWeights []float64

	ops       []program.Operation
	opWeights []float64
}

func newGeneratorV2(b base) (*generatorV2, error) {
	g := &generatorV2{base: b}
	fillLengthDist(&g.lengths, &g.lengthWeights, b.stats)

	if b.stats != nil {
		for k, v := range b.stats.OperationCounts() {
			op, err := stats.ParseOperationKey(k)
			if err != nil || v <= 0 {
				continue
			}
			g.ops = append(g.ops, op)
			g.opWeights = append(g.opWeights, float64(v))
		}
	}
	if len(g.ops) == 0 {
		g.ops = []program.Operation{program.NewOperation(program.Mov, program.NewDirect(1), program.NewDirect(0))}
		g.opWeights = []float64{1}
	}
	return g, nil
}

func fillLengthDist(lengths *[]int, weights *[]float64, st *stats.Stats) {
	if st != nil {
		for l, c := range st.NumProgramsPerLength {
			if c <= 0 {
				continue
			}
			*lengths = append(*lengths, l)
			*weights = append(*weights, float64(c))
		}
	}
	if len(*lengths) == 0 {
		*lengths = []int{5}
		*weights = []float64{1}
	}
}

func (g *generatorV2) GenerateOperation() (program.Operation, float64, error) {
	i := weightedPick(g.rng, g.opWeights)
	return g.ops[i], g.rng.Float64(), nil
}

func (g *generatorV2) GenerateProgram() (*program.Program, error) {
	length := g.lengths[weightedPick(g.rng, g.lengthWeights)]
	p := program.New()
	genOp := func() (program.Operation, float64) {
		op, frac, _ := g.GenerateOperation()
		return op, frac
	}
	g.generateStateless(p, length, genOp)
	g.applyPostprocessing(p, genOp)
	return p, nil
}

func (g *generatorV2) SupportsRestart() bool { return true }
func (g *generatorV2) IsFinished() bool      { return false }
