package generator

import (
	"fmt"

	"loda/internal/logsink"
	"loda/internal/program"
	"loda/internal/random"
	"loda/internal/stats"
)

// MultiGenerator round-robins across several sub-generators, skipping
// (with a warning) any sub-config that fails to construct. Ported from
// MultiGenerator in mine/generator.cpp.
type MultiGenerator struct {
	generators []Generator
	current    int
}

func newMultiGenerator(config Config, st *stats.Stats, store ProgramStore, rng *random.Rng) (*MultiGenerator, error) {
	if rng == nil {
		rng = random.Get()
	}
	var log logsink.Logger
	if st != nil {
		log = st.Log
	}
	var gens []Generator
	for _, sub := range config.Generators {
		g, err := NewGenerator(sub, st, store, rng)
		if err != nil {
			if log != nil {
				log.Warn("skipping generator version %d: %v", sub.Version, err)
			}
			continue
		}
		gens = append(gens, g)
	}
	if len(gens) == 0 {
		return nil, fmt.Errorf("generator: no usable sub-generators in MultiGenerator config")
	}
	return &MultiGenerator{generators: gens, current: rng.Intn(len(gens))}, nil
}

// GenerateProgram advances to the next sub-generator and delegates.
func (m *MultiGenerator) GenerateProgram() (*program.Program, error) {
	m.current = (m.current + 1) % len(m.generators)
	return m.generators[m.current].GenerateProgram()
}

// GenerateOperation delegates to the current sub-generator without
// advancing it.
func (m *MultiGenerator) GenerateOperation() (program.Operation, float64, error) {
	return m.generators[m.current].GenerateOperation()
}

// SupportsRestart is true only if every sub-generator supports restart.
func (m *MultiGenerator) SupportsRestart() bool {
	for _, g := range m.generators {
		if !g.SupportsRestart() {
			return false
		}
	}
	return true
}

// IsFinished is true only once every sub-generator reports finished.
func (m *MultiGenerator) IsFinished() bool {
	for _, g := range m.generators {
		if !g.IsFinished() {
			return false
		}
	}
	return true
}
