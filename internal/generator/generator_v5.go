package generator

import (
	"fmt"

	"loda/internal/program"
)

// generatorV5 is an explicit placeholder: the distilled specification
// reserves version 5 without defining its behavior. It reports itself as
// already finished, and both of its generate methods return an error on
// every call; MultiGenerator still rotates through it like any other
// sub-generator.
type generatorV5 struct{}

var errGeneratorV5NotImplemented = fmt.Errorf("generator: V5 is a placeholder, not implemented")

func (g *generatorV5) GenerateProgram() (*program.Program, error) {
	return nil, errGeneratorV5NotImplemented
}

func (g *generatorV5) GenerateOperation() (program.Operation, float64, error) {
	return program.Operation{}, 0, errGeneratorV5NotImplemented
}

func (g *generatorV5) SupportsRestart() bool { return false }
func (g *generatorV5) IsFinished() bool      { return true }
