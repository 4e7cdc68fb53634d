// Package analyzer extracts the simple-loop skeleton from a program and
// classifies its asymptotic complexity (spec section 4.3).
//
// Ported from _examples/original_source/src/lang/analyzer.cpp.
package analyzer

import (
	"loda/internal/number"
	"loda/internal/program"
)

// SimpleLoop is the pre-loop/body/post-loop decomposition of a program
// with exactly one lpb/lpe pair.
type SimpleLoop struct {
	IsSimpleLoop bool
	Counter      int64
	PreLoop      *program.Program
	Body         *program.Program
	PostLoop     *program.Program
}

// ExtractSimpleLoop splits p into pre-loop/body/post-loop if it has
// exactly one lpb/lpe pair with a direct target and Constant(1) source,
// and no indirect operands anywhere. Otherwise IsSimpleLoop is false.
func ExtractSimpleLoop(p *program.Program) SimpleLoop {
	result := SimpleLoop{PreLoop: program.New(), Body: program.New(), PostLoop: program.New()}
	phase := 0
	for _, op := range p.Ops {
		if op.Type == program.Nop {
			continue
		}
		if hasIndirectOperand(op) {
			result.IsSimpleLoop = false
			return result
		}
		if op.Type == program.Lpb {
			if phase != 0 || !op.Target.IsDirect() || !isConstantOne(op.Source) {
				result.IsSimpleLoop = false
				return result
			}
			result.Counter = op.Target.CellIndex()
			phase = 1
			continue
		}
		if op.Type == program.Lpe {
			if phase != 1 {
				result.IsSimpleLoop = false
				return result
			}
			phase = 2
			continue
		}
		switch phase {
		case 0:
			result.PreLoop.Ops = append(result.PreLoop.Ops, op)
		case 1:
			result.Body.Ops = append(result.Body.Ops, op)
		case 2:
			result.PostLoop.Ops = append(result.PostLoop.Ops, op)
		}
	}
	result.IsSimpleLoop = phase == 2
	return result
}

func hasIndirectOperand(op program.Operation) bool {
	return op.Target.IsIndirect() || op.Source.IsIndirect()
}

func isConstantOne(o program.Operand) bool {
	return o.IsConstant() && o.Value.Equal(number.One)
}

func isConstantGreaterOne(o program.Operand) bool {
	return o.IsConstant() && number.One.Less(o.Value)
}

// HasLogarithmicComplexity reports whether p is a simple loop with no
// seq calls, no non-constant pow in the pre-loop, and whose every write
// to the counter cell in the body is a div/dif by a constant.
func HasLogarithmicComplexity(p *program.Program) bool {
	for _, op := range p.Ops {
		if op.Type == program.Seq {
			return false
		}
	}
	sl := ExtractSimpleLoop(p)
	if !sl.IsSimpleLoop {
		return false
	}
	for _, op := range sl.PreLoop.Ops {
		if op.Type == program.Pow && !op.Source.IsConstant() {
			return false
		}
	}
	loopCounterUpdated := false
	for _, op := range sl.Body.Ops {
		if !op.Target.IsDirect() || op.Target.CellIndex() != sl.Counter {
			continue
		}
		if op.Type == program.Div || op.Type == program.Dif {
			loopCounterUpdated = true
		} else {
			return false
		}
		if !op.Source.IsConstant() {
			return false
		}
	}
	return loopCounterUpdated
}

// isExponentialPreLoop checks the shape:
//
//	mov counter, <const>1  (required, phase 0->1)
//	add/mul INPUT_CELL, <const>1  (optional, repeatable)
//	pow counter, INPUT_CELL  (required, phase 1->2)
func isExponentialPreLoop(preLoop *program.Program, counter int64) bool {
	if counter == program.InputCell {
		return false
	}
	phase := 0
	for _, op := range preLoop.Ops {
		if !op.Target.IsDirect() {
			continue
		}
		target := op.Target.CellIndex()
		switch {
		case target == counter:
			switch {
			case phase == 0 && op.Type == program.Mov && isConstantGreaterOne(op.Source):
				phase = 1
			case phase == 1 && op.Type == program.Pow && op.Source.IsDirect() && op.Source.CellIndex() == program.InputCell:
				phase = 2
			default:
				return false
			}
		case target == program.InputCell:
			if op.Type != program.Add && op.Type != program.Mul {
				return false
			}
			if !isConstantGreaterOne(op.Source) {
				return false
			}
		}
	}
	return phase == 2
}

// isLinearBody checks that every write to counter in body is a sub/trn
// by a constant greater than one, and that it is written at least once.
func isLinearBody(body *program.Program, counter int64) bool {
	updated := false
	for _, op := range body.Ops {
		if !op.Target.IsDirect() || op.Target.CellIndex() != counter {
			continue
		}
		updated = true
		if op.Type != program.Sub && op.Type != program.Trn {
			return false
		}
		if !isConstantGreaterOne(op.Source) {
			return false
		}
	}
	return updated
}

// HasExponentialComplexity reports whether p is a simple loop whose
// pre-loop raises a constant-initialized counter to the input cell's
// power, and whose body decreases the counter linearly.
func HasExponentialComplexity(p *program.Program) bool {
	sl := ExtractSimpleLoop(p)
	if !sl.IsSimpleLoop {
		return false
	}
	if !isExponentialPreLoop(sl.PreLoop, sl.Counter) {
		return false
	}
	return isLinearBody(sl.Body, sl.Counter)
}
