package matcher

import (
	"loda/internal/number"
	"loda/internal/program"
	"loda/internal/sequence"
	"loda/internal/uid"
)

// polynomialDegree is the fixed degree bound PolynomialMatcher reduces
// against, matching PolynomialMatcher::DEGREE upstream.
const polynomialDegree = 3

// polynomialFactorWindow bounds how far below the greedy maximum factor
// the search backs off looking for a lower-cost reduction, matching the
// "magic number" window in PolynomialMatcher::reduce upstream.
const polynomialFactorWindow = 8

// Polynomial holds one coefficient per degree, index i is the
// coefficient of x^i, index 0 is the constant term.
type Polynomial []number.Number

// PolynomialMatcher reduces a sequence by greedily subtracting the
// largest c*x^d term (d counting down from polynomialDegree) that keeps
// the remainder non-negative, backing off by up to
// polynomialFactorWindow when a smaller factor leaves a smaller-sum
// remainder. Grounded on PolynomialMatcher::reduce/extend in
// _examples/original_source/src/matcher.cpp.
type PolynomialMatcher struct {
	baseIndex
}

func NewPolynomialMatcher(hasMemory HasMemory) *PolynomialMatcher {
	return &PolynomialMatcher{baseIndex: newBaseIndex(hasMemory)}
}

func (m *PolynomialMatcher) Name() string { return "polynomial" }

func subPoly(seq sequence.Sequence, factor, exp number.Number) sequence.Sequence {
	out := make(sequence.Sequence, len(seq))
	for x, v := range seq {
		xExp := number.Pow(number.FromInt64(int64(x)), exp)
		out[x] = number.Sub(v, number.Mul(factor, xExp))
	}
	return out
}

func reducePoly(seq sequence.Sequence, degree int) (sequence.Sequence, Polynomial) {
	if degree < 0 {
		return seq, Polynomial{}
	}
	sentinel := number.FromInt64(-1)
	maxFactor := sentinel
	for x, v := range seq {
		xExp := number.Pow(number.FromInt64(int64(x)), number.FromInt64(int64(degree)))
		var newFactor number.Number
		if xExp.IsZero() {
			newFactor = sentinel
		} else {
			newFactor = number.Div(v, xExp)
		}
		// Matches PolynomialMatcher::reduce upstream exactly: -1 doubles
		// as both "no candidate yet" and a legitimate factor value, so a
		// later x can still overwrite a prior non-sentinel max_factor
		// once it drops back to -1.
		if maxFactor.Equal(sentinel) {
			maxFactor = newFactor
		} else if newFactor.Less(maxFactor) {
			maxFactor = newFactor
		}
		if maxFactor.IsZero() {
			break
		}
	}
	factor := maxFactor
	reduced := subPoly(seq, factor, number.FromInt64(int64(degree)))
	remainder, poly := reducePoly(reduced, degree-1)
	cost := remainder.Sum()

	minFactor := number.Sub(factor, number.FromInt64(polynomialFactorWindow))
	if minFactor.Less(number.Zero) {
		minFactor = number.Zero
	}
	for minFactor.Less(factor) {
		trialFactor := number.Sub(factor, number.One)
		trialReduced := subPoly(seq, trialFactor, number.FromInt64(int64(degree)))
		trialRemainder, trialPoly := reducePoly(trialReduced, degree-1)
		trialCost := trialRemainder.Sum()
		if trialCost.Less(cost) {
			factor = trialFactor
			reduced = trialReduced
			remainder = trialRemainder
			poly = trialPoly
			cost = trialCost
		} else {
			break
		}
	}
	poly = append(poly, factor)
	return remainder, poly
}

func reducePolynomial(seq sequence.Sequence) (sequence.Sequence, Polynomial) {
	return reducePoly(seq, polynomialDegree)
}

func (m *PolynomialMatcher) Insert(seq sequence.Sequence, id uid.UID) {
	reduced, poly := reducePolynomial(seq)
	m.insert(reduced.String(), id, poly)
}

func (m *PolynomialMatcher) Remove(seq sequence.Sequence, id uid.UID) {
	reduced, _ := reducePolynomial(seq)
	m.remove(reduced.String(), id)
}

func (m *PolynomialMatcher) Match(candidate *program.Program, produced sequence.Sequence) []Match {
	reduced, producedPoly := reducePolynomial(produced)
	var out []Match
	for _, cand := range m.lookup(reduced.String()) {
		target := cand.Param.(Polynomial)
		diff := subtractPoly(target, producedPoly)
		ext := candidate.Clone()
		if !appendPolynomialExtension(ext, diff) {
			continue
		}
		out = append(out, Match{TargetID: cand.ID, Program: ext})
	}
	return out
}

func (m *PolynomialMatcher) CompactionRatio() float64 { return m.compactionRatio() }

func subtractPoly(a, b Polynomial) Polynomial {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make(Polynomial, n)
	for i := 0; i < n; i++ {
		av, bv := number.Zero, number.Zero
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		out[i] = number.Sub(av, bv)
	}
	return out
}

// appendPolynomialExtension appends code evaluating the polynomial diff
// at the saved input argument and adding it to the result cell. It returns
// false when diff has a negative coefficient above degree 0, matching
// addPostPolynomial's refusal upstream (it only knows how to add
// positive multiples of x^exp for exp >= 1).
func appendPolynomialExtension(p *program.Program, diff Polynomial) bool {
	if len(diff) == 0 {
		return true
	}
	out := program.NewDirect(program.InputCell)
	constant := diff[0]
	switch constant.Sign() {
	case 1:
		p.Ops = append(p.Ops, program.NewOperation(program.Add, out, program.NewConstant(constant)))
	case -1:
		p.Ops = append(p.Ops, program.NewOperation(program.Sub, out, program.NewConstant(constant.Neg())))
	}
	if len(diff) <= 1 {
		return true
	}
	maxCell := maxUsedCell(p)
	if maxCell < 1 {
		maxCell = 1
	}
	savedArg := maxCell + 1
	xCell := maxCell + 2
	termCell := maxCell + 3

	saveOp := program.NewOperation(program.Mov, program.NewDirect(savedArg), program.NewDirect(program.InputCell))
	p.Ops = append([]program.Operation{saveOp}, p.Ops...)

	for exp := 1; exp < len(diff); exp++ {
		if exp == 1 {
			p.Ops = append(p.Ops, program.NewOperation(program.Mov, program.NewDirect(xCell), program.NewDirect(savedArg)))
		} else {
			p.Ops = append(p.Ops, program.NewOperation(program.Mul, program.NewDirect(xCell), program.NewDirect(savedArg)))
		}
		factor := diff[exp]
		switch factor.Sign() {
		case 1:
			p.Ops = append(p.Ops,
				program.NewOperation(program.Mov, program.NewDirect(termCell), program.NewDirect(xCell)),
				program.NewOperation(program.Mul, program.NewDirect(termCell), program.NewConstant(factor)),
				program.NewOperation(program.Add, out, program.NewDirect(termCell)),
			)
		case -1:
			return false
		}
	}
	return true
}
