// Package matcher implements the matcher pipeline from spec section
// 4.7: each matcher indexes target sequences by a reduction and, given
// a candidate program's produced sequence, proposes program edits that
// turn the candidate into one reproducing the original target.
//
// Grounded on the AbstractMatcher<T>::insert/remove/match template in
// _examples/original_source/src/matcher.cpp (Direct, Linear, Polynomial
// read there); Delta and Digit are authored from spec.md section 4.7's
// reduction/extension table since that excerpt did not include them.
package matcher

import (
	"loda/internal/number"
	"loda/internal/program"
	"loda/internal/sequence"
	"loda/internal/uid"
)

// Candidate is a (target id, reduction parameter) pair stored in a
// matcher's bucket.
type Candidate struct {
	ID    uid.UID
	Param interface{}
}

// Match is a proposed extended program for one candidate target.
type Match struct {
	TargetID uid.UID
	Program  *program.Program
}

// Matcher is the common interface every reduction/extension strategy
// implements.
type Matcher interface {
	Name() string
	Insert(seq sequence.Sequence, id uid.UID)
	Remove(seq sequence.Sequence, id uid.UID)
	Match(candidate *program.Program, produced sequence.Sequence) []Match
	// CompactionRatio is distinct reduced keys / total inserted targets.
	CompactionRatio() float64
}

// HasMemory reports whether the process has enough memory to keep
// growing the matcher indexes; matchers that would explode under
// memory pressure consult this before inserting.
type HasMemory func() bool

func alwaysHasMemory() bool { return true }

// bucket is a reduced-sequence key to candidate list.
type bucket struct {
	key        string
	candidates []Candidate
}

type baseIndex struct {
	buckets     map[string]*bucket
	numInserted int
	hasMemory   HasMemory
}

func newBaseIndex(hasMemory HasMemory) baseIndex {
	if hasMemory == nil {
		hasMemory = alwaysHasMemory
	}
	return baseIndex{buckets: make(map[string]*bucket), hasMemory: hasMemory}
}

func (b *baseIndex) insert(key string, id uid.UID, param interface{}) {
	if !b.hasMemory() && len(b.buckets) > 10000 {
		return
	}
	bk, ok := b.buckets[key]
	if !ok {
		bk = &bucket{key: key}
		b.buckets[key] = bk
	}
	bk.candidates = append(bk.candidates, Candidate{ID: id, Param: param})
	b.numInserted++
}

func (b *baseIndex) remove(key string, id uid.UID) {
	bk, ok := b.buckets[key]
	if !ok {
		return
	}
	out := bk.candidates[:0]
	for _, c := range bk.candidates {
		if c.ID != id {
			out = append(out, c)
		}
	}
	bk.candidates = out
}

func (b *baseIndex) lookup(key string) []Candidate {
	if bk, ok := b.buckets[key]; ok {
		return bk.candidates
	}
	return nil
}

func (b *baseIndex) compactionRatio() float64 {
	if b.numInserted == 0 {
		return 0
	}
	return float64(len(b.buckets)) / float64(b.numInserted)
}

func toInts(seq sequence.Sequence) []number.Number { return []number.Number(seq) }

// maxUsedCell scans every operand of p and returns the largest direct or
// indirect cell index referenced, or 1 if p references none above it.
// Used by matchers that append scratch-cell arithmetic to a candidate
// program and must not clobber cells the candidate already uses.
func maxUsedCell(p *program.Program) int64 {
	max := int64(1)
	scan := func(o program.Operand) {
		if !o.IsConstant() {
			if c := o.CellIndex(); c > max {
				max = c
			}
		}
	}
	for _, op := range p.Ops {
		scan(op.Target)
		scan(op.Source)
	}
	return max
}
