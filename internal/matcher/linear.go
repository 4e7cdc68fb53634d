package matcher

import (
	"fmt"

	"loda/internal/number"
	"loda/internal/program"
	"loda/internal/sequence"
	"loda/internal/uid"
)

// LinearParam is the (offset, factor) pair both linear matchers store.
type LinearParam struct {
	Offset, Factor number.Number
}

func gcdOfSequence(seq sequence.Sequence) number.Number {
	g := number.Zero
	for _, v := range seq {
		g = number.Gcd(g, v)
	}
	if g.IsZero() {
		return number.One
	}
	return g
}

// Linear1Matcher reduces by subtracting the minimum, then dividing by
// the gcd of the shifted values.
type Linear1Matcher struct {
	baseIndex
}

func NewLinear1Matcher(hasMemory HasMemory) *Linear1Matcher {
	return &Linear1Matcher{baseIndex: newBaseIndex(hasMemory)}
}

func (m *Linear1Matcher) Name() string { return "linear1" }

func reduceLinear1(seq sequence.Sequence) (sequence.Sequence, LinearParam) {
	offset := seq.Min()
	shifted := make(sequence.Sequence, len(seq))
	for i, v := range seq {
		shifted[i] = number.Sub(v, offset)
	}
	factor := gcdOfSequence(shifted)
	reduced := make(sequence.Sequence, len(shifted))
	for i, v := range shifted {
		reduced[i] = number.Div(v, factor)
	}
	return reduced, LinearParam{Offset: offset, Factor: factor}
}

func (m *Linear1Matcher) Insert(seq sequence.Sequence, id uid.UID) {
	reduced, p := reduceLinear1(seq)
	m.insert(reduced.String(), id, p)
}

func (m *Linear1Matcher) Remove(seq sequence.Sequence, id uid.UID) {
	reduced, _ := reduceLinear1(seq)
	m.remove(reduced.String(), id)
}

func (m *Linear1Matcher) Match(candidate *program.Program, produced sequence.Sequence) []Match {
	reduced, candidateParam := reduceLinear1(produced)
	var out []Match
	for _, cand := range m.lookup(reduced.String()) {
		target := cand.Param.(LinearParam)
		ext := candidate.Clone()
		appendLinear1Extension(ext, candidateParam, target)
		out = append(out, Match{TargetID: cand.ID, Program: ext})
	}
	return out
}

func (m *Linear1Matcher) CompactionRatio() float64 { return m.compactionRatio() }

// appendLinear1Extension appends sub/div/mul/add to the result cell: invert
// the candidate's own reduction, then apply the target's forward.
func appendLinear1Extension(p *program.Program, candidateParam, targetParam LinearParam) {
	out := program.NewDirect(program.InputCell)
	p.Ops = append(p.Ops,
		program.NewOperation(program.Sub, out, program.NewConstant(candidateParam.Offset)),
		program.NewOperation(program.Div, out, program.NewConstant(candidateParam.Factor)),
		program.NewOperation(program.Mul, out, program.NewConstant(targetParam.Factor)),
		program.NewOperation(program.Add, out, program.NewConstant(targetParam.Offset)),
	)
}

// Linear2Matcher reduces by dividing by the gcd first, then subtracting
// the minimum of the divided values.
type Linear2Matcher struct {
	baseIndex
}

func NewLinear2Matcher(hasMemory HasMemory) *Linear2Matcher {
	return &Linear2Matcher{baseIndex: newBaseIndex(hasMemory)}
}

func (m *Linear2Matcher) Name() string { return "linear2" }

func reduceLinear2(seq sequence.Sequence) (sequence.Sequence, LinearParam) {
	factor := gcdOfSequence(seq)
	divided := make(sequence.Sequence, len(seq))
	for i, v := range seq {
		divided[i] = number.Div(v, factor)
	}
	offset := divided.Min()
	reduced := make(sequence.Sequence, len(divided))
	for i, v := range divided {
		reduced[i] = number.Sub(v, offset)
	}
	return reduced, LinearParam{Offset: offset, Factor: factor}
}

func (m *Linear2Matcher) Insert(seq sequence.Sequence, id uid.UID) {
	reduced, p := reduceLinear2(seq)
	m.insert(reduced.String(), id, p)
}

func (m *Linear2Matcher) Remove(seq sequence.Sequence, id uid.UID) {
	reduced, _ := reduceLinear2(seq)
	m.remove(reduced.String(), id)
}

func (m *Linear2Matcher) Match(candidate *program.Program, produced sequence.Sequence) []Match {
	reduced, candidateParam := reduceLinear2(produced)
	var out []Match
	for _, cand := range m.lookup(reduced.String()) {
		target := cand.Param.(LinearParam)
		ext := candidate.Clone()
		appendLinear2Extension(ext, candidateParam, target)
		out = append(out, Match{TargetID: cand.ID, Program: ext})
	}
	return out
}

func (m *Linear2Matcher) CompactionRatio() float64 { return m.compactionRatio() }

func appendLinear2Extension(p *program.Program, candidateParam, targetParam LinearParam) {
	out := program.NewDirect(program.InputCell)
	p.Ops = append(p.Ops,
		program.NewOperation(program.Div, out, program.NewConstant(candidateParam.Factor)),
		program.NewOperation(program.Sub, out, program.NewConstant(candidateParam.Offset)),
		program.NewOperation(program.Add, out, program.NewConstant(targetParam.Offset)),
		program.NewOperation(program.Mul, out, program.NewConstant(targetParam.Factor)),
	)
}

func (p LinearParam) String() string {
	return fmt.Sprintf("(%s,%s)", p.Offset.String(), p.Factor.String())
}
