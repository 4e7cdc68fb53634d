// Package program implements the Operand/Operation/Program model (spec
// section 3): a program is an ordered list of operations over cell
// operands, plus directive metadata. The OpType table is a pure function
// of the mnemonic, implemented once here rather than duplicated across
// the interpreter, analyzer, optimizer, and matchers.
//
// Grounded on _examples/original_source/src/program.hpp/.cpp and
// program_util.hpp/.cpp, generalized to the full op set spec.md requires.
package program

import (
	"fmt"

	"loda/internal/number"
)

// OperandType distinguishes the three operand kinds.
type OperandType int

const (
	Constant OperandType = iota
	Direct
	Indirect
)

func (t OperandType) String() string {
	switch t {
	case Constant:
		return "constant"
	case Direct:
		return "direct"
	case Indirect:
		return "indirect"
	default:
		return "unknown"
	}
}

// Operand is a constant value, a direct cell reference, or an indirect
// cell reference (the cell index is itself read from another cell).
type Operand struct {
	Type  OperandType
	Value number.Number
}

// NewConstant builds a Constant operand.
func NewConstant(v number.Number) Operand { return Operand{Type: Constant, Value: v} }

// NewDirect builds a Direct cell operand.
func NewDirect(cell int64) Operand { return Operand{Type: Direct, Value: number.FromInt64(cell)} }

// NewIndirect builds an Indirect cell operand.
func NewIndirect(cell int64) Operand { return Operand{Type: Indirect, Value: number.FromInt64(cell)} }

// IsConstant, IsDirect, IsIndirect are convenience predicates.
func (o Operand) IsConstant() bool { return o.Type == Constant }
func (o Operand) IsDirect() bool   { return o.Type == Direct }
func (o Operand) IsIndirect() bool { return o.Type == Indirect }

// CellIndex returns the cell index for Direct/Indirect operands. It
// panics for Constant operands; callers must check Type first.
func (o Operand) CellIndex() int64 {
	if o.Type == Constant {
		panic("program: CellIndex called on constant operand")
	}
	return o.Value.AsInt64()
}

func (o Operand) String() string {
	switch o.Type {
	case Constant:
		return o.Value.String()
	case Direct:
		return fmt.Sprintf("$%d", o.Value.AsInt64())
	case Indirect:
		return fmt.Sprintf("$$%d", o.Value.AsInt64())
	default:
		return "?"
	}
}

// Equal reports structural equality between two operands.
func (o Operand) Equal(other Operand) bool {
	return o.Type == other.Type && o.Value.Equal(other.Value)
}
