package matcher

import (
	"loda/internal/number"
	"loda/internal/program"
	"loda/internal/sequence"
	"loda/internal/uid"
)

// maxDeltaDepth bounds how many successive first-differences DeltaMatcher
// will take before giving up, mirroring DeltaMatcher::MAX_DELTA upstream.
const maxDeltaDepth = 5

// DeltaMatcher reduces a sequence by repeatedly taking its first
// difference, as long as the difference stays strictly positive, up to
// maxDeltaDepth levels; the depth reached is the match parameter.
//
// Upstream's extend_delta (matcher.cpp) is left as a stub that always
// returns false once the stored and produced depths disagree, so a
// match there can only ever succeed when both sides reduced to the same
// depth. That is the behavior ported here: a successful match is a
// parity check on delta depth, not a constructed sum/delta loop.
type DeltaMatcher struct {
	baseIndex
}

func NewDeltaMatcher(hasMemory HasMemory) *DeltaMatcher {
	return &DeltaMatcher{baseIndex: newBaseIndex(hasMemory)}
}

func (m *DeltaMatcher) Name() string { return "delta" }

func reduceDelta(seq sequence.Sequence) (sequence.Sequence, int) {
	cur := seq
	depth := 0
	for i := 0; i < maxDeltaDepth; i++ {
		if len(cur) < 2 {
			break
		}
		next := make(sequence.Sequence, len(cur)-1)
		ok := true
		for j := range next {
			if cur[j].Less(cur[j+1]) {
				next[j] = number.Sub(cur[j+1], cur[j])
			} else {
				ok = false
				break
			}
		}
		if !ok {
			break
		}
		cur = next
		depth++
	}
	target := len(seq) - maxDeltaDepth
	if target < 0 {
		target = 0
	}
	if len(cur) > target {
		cur = cur[:target]
	}
	return cur, depth
}

func (m *DeltaMatcher) Insert(seq sequence.Sequence, id uid.UID) {
	reduced, depth := reduceDelta(seq)
	m.insert(reduced.String(), id, depth)
}

func (m *DeltaMatcher) Remove(seq sequence.Sequence, id uid.UID) {
	reduced, _ := reduceDelta(seq)
	m.remove(reduced.String(), id)
}

func (m *DeltaMatcher) Match(candidate *program.Program, produced sequence.Sequence) []Match {
	reduced, producedDepth := reduceDelta(produced)
	var out []Match
	for _, cand := range m.lookup(reduced.String()) {
		if cand.Param.(int) != producedDepth {
			continue
		}
		out = append(out, Match{TargetID: cand.ID, Program: candidate.Clone()})
	}
	return out
}

func (m *DeltaMatcher) CompactionRatio() float64 { return m.compactionRatio() }
