package generator

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"loda/internal/asm"
	"loda/internal/program"
)

// generatorV8 replays programs from a batch file, one ';'-joined program
// per line. Ported from mine/generator_v8.hpp/.cpp.
type generatorV8 struct {
	base
	file      *os.File
	scanner   *bufio.Scanner
	finished  bool
	numSkipped int64
}

func newGeneratorV8(b base) (*generatorV8, error) {
	if b.config.BatchFile == "" {
		return nil, fmt.Errorf("generator: V8 requires BatchFile")
	}
	f, err := os.Open(b.config.BatchFile)
	if err != nil {
		return nil, err
	}
	return &generatorV8{base: b, file: f, scanner: bufio.NewScanner(f)}, nil
}

func (g *generatorV8) GenerateProgram() (*program.Program, error) {
	if g.finished {
		return nil, fmt.Errorf("generator: V8 batch file exhausted")
	}
	for g.scanner.Scan() {
		line := strings.TrimSpace(g.scanner.Text())
		if line == "" {
			continue
		}
		src := strings.ReplaceAll(line, ";", "\n")
		p, err := asm.Parse(src)
		if err != nil {
			g.numSkipped++
			continue
		}
		p.RemoveOps(program.Nop)
		if err := p.Validate(); err != nil {
			g.numSkipped++
			continue
		}
		return p, nil
	}
	g.finished = true
	g.file.Close()
	return nil, fmt.Errorf("generator: V8 batch file exhausted")
}

func (g *generatorV8) GenerateOperation() (program.Operation, float64, error) {
	return program.Operation{}, 0, errUnsupportedOperation
}

func (g *generatorV8) SupportsRestart() bool { return false }
func (g *generatorV8) IsFinished() bool      { return g.finished }
