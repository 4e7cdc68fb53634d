package matcher

import (
	"loda/internal/number"
	"loda/internal/program"
	"loda/internal/sequence"
	"loda/internal/uid"
)

// digitReversalWidth is the number of base-b digits the reversal
// considers; values with more significant digits than this keep their
// low digitReversalWidth digits reversed and lose the rest, which is an
// accepted approximation for the sequence ranges this matcher targets.
const digitReversalWidth = 12

// digitBaseCandidates are the bases DigitMatcher tries at both insert
// and match time. Nothing in original_source covers this matcher (it
// is not present in matcher.cpp), so this is authored from spec.md
// section 4.7's "param = base" entry: a target is indexed once per
// candidate base instead of a single fixed base, so a candidate whose
// produced sequence reverses cleanly under one base can still be
// matched against a target that was easiest to index under another.
var digitBaseCandidates = []number.Number{
	number.FromInt64(2), number.FromInt64(4), number.FromInt64(8),
	number.FromInt64(10), number.FromInt64(16),
}

// DigitMatcher reduces a sequence by reversing the base-b digits of
// every term, trying each of digitBaseCandidates. Reversal is its own
// inverse under a fixed base and fixed width, so reconstructing a
// target from a produced value is two digit-reversal passes: one
// undoing the produced side's base, one applying the target side's.
type DigitMatcher struct {
	baseIndex
}

func NewDigitMatcher(hasMemory HasMemory) *DigitMatcher {
	return &DigitMatcher{baseIndex: newBaseIndex(hasMemory)}
}

func (m *DigitMatcher) Name() string { return "digit" }

func digitReverse(v, base number.Number) number.Number {
	if v.IsInf() || v.Sign() < 0 {
		return v
	}
	tmp := v
	acc := number.Zero
	for i := 0; i < digitReversalWidth; i++ {
		d := number.Mod(tmp, base)
		tmp = number.Div(tmp, base)
		acc = number.Add(number.Mul(acc, base), d)
	}
	return acc
}

func reduceDigit(seq sequence.Sequence, base number.Number) sequence.Sequence {
	reduced := make(sequence.Sequence, len(seq))
	for i, v := range seq {
		reduced[i] = digitReverse(v, base)
	}
	return reduced
}

func (m *DigitMatcher) Insert(seq sequence.Sequence, id uid.UID) {
	for _, base := range digitBaseCandidates {
		m.insert(reduceDigit(seq, base).String(), id, base)
	}
}

func (m *DigitMatcher) Remove(seq sequence.Sequence, id uid.UID) {
	for _, base := range digitBaseCandidates {
		m.remove(reduceDigit(seq, base).String(), id)
	}
}

func (m *DigitMatcher) Match(candidate *program.Program, produced sequence.Sequence) []Match {
	seen := make(map[uid.UID]bool)
	var out []Match
	for _, producedBase := range digitBaseCandidates {
		key := reduceDigit(produced, producedBase).String()
		for _, cand := range m.lookup(key) {
			if seen[cand.ID] {
				continue
			}
			seen[cand.ID] = true
			targetBase := cand.Param.(number.Number)
			ext := candidate.Clone()
			appendDigitReversal(ext, producedBase)
			appendDigitReversal(ext, targetBase)
			out = append(out, Match{TargetID: cand.ID, Program: ext})
		}
	}
	return out
}

func (m *DigitMatcher) CompactionRatio() float64 { return m.compactionRatio() }

// appendDigitReversal appends an unrolled mod/div/mul/add loop that
// reverses the result cell's base-b digits in place, using three
// scratch cells above the program's current highest used cell.
func appendDigitReversal(p *program.Program, base number.Number) {
	maxCell := maxUsedCell(p)
	tmpCell := maxCell + 1
	accCell := maxCell + 2
	digitCell := maxCell + 3
	out := program.NewDirect(program.InputCell)
	tmp := program.NewDirect(tmpCell)
	acc := program.NewDirect(accCell)
	digit := program.NewDirect(digitCell)
	baseConst := program.NewConstant(base)

	p.Ops = append(p.Ops,
		program.NewOperation(program.Mov, tmp, out),
		program.NewOperation(program.Mov, acc, program.NewConstant(number.Zero)),
	)
	for i := 0; i < digitReversalWidth; i++ {
		p.Ops = append(p.Ops,
			program.NewOperation(program.Mov, digit, tmp),
			program.NewOperation(program.Mod, digit, baseConst),
			program.NewOperation(program.Div, tmp, baseConst),
			program.NewOperation(program.Mul, acc, baseConst),
			program.NewOperation(program.Add, acc, digit),
		)
	}
	p.Ops = append(p.Ops, program.NewOperation(program.Mov, out, acc))
}
