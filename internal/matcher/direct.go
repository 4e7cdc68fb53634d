package matcher

import (
	"loda/internal/program"
	"loda/internal/sequence"
	"loda/internal/uid"
)

// DirectMatcher reduces a sequence to itself: no transformation needed
// to turn a produced sequence into a matching target.
type DirectMatcher struct {
	baseIndex
}

// NewDirectMatcher creates a DirectMatcher.
func NewDirectMatcher(hasMemory HasMemory) *DirectMatcher {
	return &DirectMatcher{baseIndex: newBaseIndex(hasMemory)}
}

func (m *DirectMatcher) Name() string { return "direct" }

func (m *DirectMatcher) Insert(seq sequence.Sequence, id uid.UID) {
	m.insert(seq.String(), id, nil)
}

func (m *DirectMatcher) Remove(seq sequence.Sequence, id uid.UID) {
	m.remove(seq.String(), id)
}

func (m *DirectMatcher) Match(candidate *program.Program, produced sequence.Sequence) []Match {
	var out []Match
	for _, c := range m.lookup(produced.String()) {
		out = append(out, Match{TargetID: c.ID, Program: candidate.Clone()})
	}
	return out
}

func (m *DirectMatcher) CompactionRatio() float64 { return m.compactionRatio() }
