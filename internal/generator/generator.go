// Package generator implements random program generation for the miner's
// generate-and-test search (spec section 4.13): eight generator variants
// ranging from pure operand-distribution sampling (V1) through mutation of
// existing programs (V6/V7) to batch replay (V8), sharing one
// causality/safety postprocessing pipeline.
//
// Grounded primarily on
// _examples/original_source/src/mine/generator.cpp (the Generator base
// class, MultiGenerator, and the postprocessing pipeline), with the
// per-version distribution logic ported from the older
// _examples/original_source/src/generator_v{1,2,3,4,6}.cpp and the
// pattern/batch variants from src/mine/generator_v{7,8}.{cpp,hpp}.
package generator

import (
	"fmt"

	"loda/internal/program"
	"loda/internal/random"
	"loda/internal/stats"
	"loda/internal/uid"
)

// errUnsupportedOperation is returned by GenerateOperation on variants
// that only know how to produce whole programs (V3, V4, V6, V7, V8),
// matching the original's throw("unsupported operation") at those call
// sites.
var errUnsupportedOperation = fmt.Errorf("generator: unsupported operation")

// Config configures a single generator instance. Its own header
// (config.hpp) was never among the retrieved files, only its field usages
// at call sites across generator_v1/v4/v7/v8.cpp and mine/generator.cpp,
// so it is authored from those call sites rather than ported.
type Config struct {
	Version int // 1..8, selects the concrete generator

	Length         int64   // target program length (half becomes the stateless fill count, V1/V4)
	MaxConstant    int64   // inclusive upper bound for synthesized constants (V1)
	MaxIndex       int64   // inclusive upper bound for synthesized cell indices (V1)
	Loops          bool    // allow lpb/lpe in generated operations
	Calls          bool    // allow seq in generated operations
	IndirectAccess bool    // allow indirect operands
	MutationRate   float64 // V6/V7: probability an eligible operand/op mutates

	// ProgramTemplate is already-parsed starting-point asm text (V1/V4): the
	// generator treats it as text to parse itself, leaving file loading to
	// the caller rather than ambiguously owning a path.
	ProgramTemplate string

	BatchFile     string // V8: path to a ';'-joined program-per-line file
	PatternsDir   string // V7: directory of annotated .asm pattern files
	CheckpointDir string // V4: directory for the restart counter file

	Generators []Config // non-empty selects MultiGenerator, round-robining over these
}

// Generator produces candidate programs for the miner's search loop.
type Generator interface {
	// GenerateProgram returns one complete candidate program.
	GenerateProgram() (*program.Program, error)
	// GenerateOperation returns one operation plus the position fraction
	// (in [0,1)) it was drawn for, used by callers building programs
	// operation-by-operation. Not every variant supports this; those
	// return an error.
	GenerateOperation() (program.Operation, float64, error)
	// SupportsRestart reports whether this generator can resume progress
	// after a process restart (persisted state, or none needed).
	SupportsRestart() bool
	// IsFinished reports whether the generator has exhausted its space
	// (batch/enumerative variants) and will not produce further programs.
	IsFinished() bool
}

// ProgramStore resolves a known program id to its stored program, used by
// V6/V7 to seed their starting templates from the existing corpus.
type ProgramStore interface {
	LoadProgram(id uid.UID) (*program.Program, error)
}

// NewGenerator builds the concrete Generator selected by config.Version,
// matching Generator::Factory::createGenerator's dispatch. rng defaults
// to the process-wide default if nil.
func NewGenerator(config Config, st *stats.Stats, store ProgramStore, rng *random.Rng) (Generator, error) {
	if len(config.Generators) > 0 {
		return newMultiGenerator(config, st, store, rng)
	}
	if rng == nil {
		rng = random.Get()
	}
	b := base{config: config, stats: st, store: store, rng: rng}
	switch config.Version {
	case 1:
		return newGeneratorV1(b)
	case 2:
		return newGeneratorV2(b)
	case 3:
		return newGeneratorV3(b)
	case 4:
		return newGeneratorV4(b)
	case 5:
		return &generatorV5{}, nil
	case 6:
		return newGeneratorV6(b)
	case 7:
		return newGeneratorV7(b)
	case 8:
		return newGeneratorV8(b)
	default:
		return nil, fmt.Errorf("generator: unsupported version %d", config.Version)
	}
}
