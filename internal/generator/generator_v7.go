package generator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"loda/internal/asm"
	"loda/internal/mutator"
	"loda/internal/program"
)

const patternDummyComment = "dummy"

// generatorV7 mutates a randomly chosen annotated pattern program.
// Ported from mine/generator_v7.cpp.
type generatorV7 struct {
	base
	mut      *mutator.Mutator
	patterns []*program.Program
}

func newGeneratorV7(b base) (*generatorV7, error) {
	if b.config.PatternsDir == "" {
		return nil, fmt.Errorf("generator: V7 requires PatternsDir")
	}
	entries, err := os.ReadDir(b.config.PatternsDir)
	if err != nil {
		return nil, err
	}
	g := &generatorV7{base: b, mut: mutator.NewWithRate(b.stats, b.config.MutationRate, true)}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".asm") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(b.config.PatternsDir, e.Name()))
		if err != nil {
			continue
		}
		p, err := asm.Parse(string(data))
		if err != nil {
			continue
		}
		if !hasAnnotation(p) {
			continue
		}
		g.patterns = append(g.patterns, wrapWithDummies(p))
	}
	if len(g.patterns) == 0 {
		return nil, fmt.Errorf("generator: V7 found no annotated patterns in %s", b.config.PatternsDir)
	}
	return g, nil
}

func hasAnnotation(p *program.Program) bool {
	for _, op := range p.Ops {
		if op.Comment != "" {
			return true
		}
	}
	return false
}

func wrapWithDummies(p *program.Program) *program.Program {
	dummy := program.NewOperation(program.Nop, program.Operand{}, program.Operand{})
	dummy.Comment = patternDummyComment
	out := program.New()
	out.Ops = append(out.Ops, dummy)
	out.Ops = append(out.Ops, p.Ops...)
	out.Ops = append(out.Ops, dummy)
	return out
}

func (g *generatorV7) GenerateProgram() (*program.Program, error) {
	pattern := g.patterns[g.rng.Intn(len(g.patterns))]
	result := pattern.Clone()
	g.mut.MutateRandom(result)
	result.RemoveOps(program.Nop)
	for i := range result.Ops {
		result.Ops[i].Comment = ""
	}
	return result, nil
}

func (g *generatorV7) GenerateOperation() (program.Operation, float64, error) {
	return program.Operation{}, 0, errUnsupportedOperation
}

func (g *generatorV7) SupportsRestart() bool { return true }
func (g *generatorV7) IsFinished() bool      { return false }
