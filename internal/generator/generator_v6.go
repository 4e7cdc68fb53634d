package generator

import (
	"time"

	"loda/internal/mutator"
	"loda/internal/program"
)

// reloadInterval is how often GeneratorV6 swaps in a freshly chosen
// template program, matching the 2-minute scheduler in generator_v6.cpp.
const reloadInterval = 2 * time.Minute

// generatorV6 periodically reloads a random known program as a template
// and mutates a clone of it on every call. Ported from generator_v6.cpp.
type generatorV6 struct {
	base
	mut        *mutator.Mutator
	template   *program.Program
	lastReload time.Time
}

func newGeneratorV6(b base) (*generatorV6, error) {
	g := &generatorV6{base: b, mut: mutator.New(b.stats)}
	if err := g.reload(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *generatorV6) reload() error {
	for tries := 0; tries < 10; tries++ {
		id, ok := g.randomProgramID()
		if !ok {
			break
		}
		if g.store == nil {
			break
		}
		p, err := g.store.LoadProgram(id)
		if err == nil {
			g.template = p
			g.lastReload = time.Now()
			return nil
		}
	}
	g.template = program.New()
	g.lastReload = time.Now()
	return nil
}

func (g *generatorV6) GenerateProgram() (*program.Program, error) {
	if time.Since(g.lastReload) >= reloadInterval {
		_ = g.reload()
	}
	result := g.template.Clone()
	g.mut.MutateRandom(result)
	return result, nil
}

func (g *generatorV6) GenerateOperation() (program.Operation, float64, error) {
	return program.Operation{}, 0, errUnsupportedOperation
}

func (g *generatorV6) SupportsRestart() bool { return true }
func (g *generatorV6) IsFinished() bool      { return false }
