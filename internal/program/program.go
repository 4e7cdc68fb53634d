package program

import (
	"github.com/pkg/errors"

	lodaerrors "loda/internal/errors"
)

// INPUT_CELL and OUTPUT_CELL are the canonical cell indices used by the
// virtual evaluator when extracting an embedded sequence program (spec
// section 4.5): input arrives in INPUT_CELL, output is read from
// OUTPUT_CELL.
const (
	InputCell  int64 = 0
	OutputCell int64 = 1
)

// Operation is one instruction: a mnemonic plus its target and source
// operands and an optional human comment (ignored by Hash and by
// semantic equality).
type Operation struct {
	Type    OpType
	Target  Operand
	Source  Operand
	Comment string
}

// NewOperation builds an Operation with no comment.
func NewOperation(t OpType, target, source Operand) Operation {
	return Operation{Type: t, Target: target, Source: source}
}

// IsNop reports whether op is a no-op (spec: hashing and minimization
// both ignore nops).
func (op Operation) IsNop() bool { return op.Type == Nop }

// Program is an ordered list of operations plus integer-valued
// directives (e.g. "#maxmem" style pragmas recognized by the miner).
type Program struct {
	Ops        []Operation
	Directives map[string]int64
}

// New returns an empty program.
func New() *Program {
	return &Program{Directives: make(map[string]int64)}
}

// Clone returns a deep copy, used whenever a rewrite pass must keep the
// original intact for comparison (optimizer, minimizer, matcher).
func (p *Program) Clone() *Program {
	out := &Program{
		Ops:        make([]Operation, len(p.Ops)),
		Directives: make(map[string]int64, len(p.Directives)),
	}
	copy(out.Ops, p.Ops)
	for k, v := range p.Directives {
		out.Directives[k] = v
	}
	return out
}

// NumOps counts operations, optionally excluding nops.
func (p *Program) NumOps(withNops bool) int {
	if withNops {
		return len(p.Ops)
	}
	n := 0
	for _, op := range p.Ops {
		if !op.IsNop() {
			n++
		}
	}
	return n
}

// NumOpsOfOperandType counts operations that use the given operand type
// in either target or source.
func (p *Program) NumOpsOfOperandType(t OperandType) int {
	n := 0
	for _, op := range p.Ops {
		if op.Target.Type == t || op.Source.Type == t {
			n++
		}
	}
	return n
}

// RemoveOps deletes every operation of the given type in place.
func (p *Program) RemoveOps(t OpType) {
	out := p.Ops[:0]
	for _, op := range p.Ops {
		if op.Type != t {
			out = append(out, op)
		}
	}
	p.Ops = out
}

// Validate checks the structural well-formedness rules from spec
// section 3: balanced loops, matching operand arity, nonnegative cell
// indices, and a constrained lpb shape.
func (p *Program) Validate() error {
	depth := 0
	for i, op := range p.Ops {
		md := Meta(op.Type)
		if err := checkCellIndices(op); err != nil {
			return lodaerrors.New(lodaerrors.InvalidProgram, "operation %d: %v", i, err)
		}
		switch {
		case md.LoopBegin:
			if !op.Target.IsDirect() || !validLoopSource(op.Source) {
				return lodaerrors.New(lodaerrors.InvalidProgram, "operation %d: lpb target must be direct, source must be a positive constant or direct cell", i)
			}
			depth++
		case md.LoopEnd:
			depth--
			if depth < 0 {
				return lodaerrors.New(lodaerrors.InvalidProgram, "operation %d: lpe without matching lpb", i)
			}
		}
	}
	if depth != 0 {
		return lodaerrors.New(lodaerrors.InvalidProgram, "unbalanced loops: %d unclosed lpb", depth)
	}
	return nil
}

func validLoopSource(src Operand) bool {
	if src.IsConstant() {
		return src.Value.AsInt64() > 0
	}
	return src.IsDirect()
}

func checkCellIndices(op Operation) error {
	for _, o := range []Operand{op.Target, op.Source} {
		if (o.IsDirect() || o.IsIndirect()) && o.Value.AsInt64() < 0 {
			return errors.Errorf("negative cell index in operand %s", o)
		}
	}
	return nil
}
