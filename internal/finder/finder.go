// Package finder implements the matcher-driven sequence search and the
// new-vs-existing program comparison from spec section 4.8: given a
// candidate program, find every indexed target sequence it could be
// turned into, validate each proposed rewrite against the target's known
// terms, and decide whether a validated rewrite should replace whatever
// program is already on file.
//
// Grounded on the Finder class in
// _examples/original_source/src/mine/finder.cpp (the maintained, fuller
// sibling of the older src/finder.cpp: it adds auto-unfold, hash-based
// update shortcuts, and the richer isOptimizedBetter static checks, so it
// is the one this package follows). checkProgramBasic's "change_type"
// fast path and auto-unfolding of seq operations (OeisProgram::autoUnfold)
// are not ported: both depend on a corpus-wide program database this
// package does not have a dependency on, and are noted as dropped in the
// design ledger rather than faked.
package finder

import (
	"fmt"
	"sync"

	"loda/internal/analyzer"
	"loda/internal/evaluator"
	"loda/internal/logsink"
	"loda/internal/matcher"
	"loda/internal/minimizer"
	"loda/internal/number"
	"loda/internal/program"
	"loda/internal/sequence"
	"loda/internal/uid"
)

// Sequence lengths, ported from the OeisSequence/SequenceUtil constants
// referenced throughout finder.cpp.
const (
	DefaultSeqLength  = 100
	ExtendedSeqLength = 2000
	FullSeqLength     = 100000
)

// candidateScanTerms bounds how many terms FindSequence computes while
// probing a freshly generated candidate program across every memory
// cell, before any matcher has narrowed things down. The upstream
// overload of evaluator.eval used here (taking a vector of per-cell
// sequences) was not present in the retrieved sources, so this is an
// authored choice rather than a ported constant.
const candidateScanTerms = 16

// thresholdBetter and thresholdFaster gate isOptimizedBetter's "Better"
// and "Faster" verdicts: an optimized program must clear the existing one
// by more than this margin, not just nominally, to avoid chasing
// measurement noise. The exact values (THRESHOLD_BETTER/THRESHOLD_FASTER)
// were referenced but not defined in the retrieved finder.cpp; 1.05 is an
// authored choice of "5% better, not just technically better".
const (
	thresholdBetter = 1.05
	thresholdFaster = 1.05
)

// ExpectedSequence is the target-side collaborator a Finder checks
// candidate programs against: spec section 6's corpus entry, narrowed to
// what this package needs.
type ExpectedSequence interface {
	UID() uid.UID
	IDString() string
	GetTerms(numTerms int) (sequence.Sequence, error)
	ExistingNumTerms() int
}

// SequenceLookup resolves a matcher's target id back to its corpus entry.
type SequenceLookup interface {
	Lookup(id uid.UID) (ExpectedSequence, bool)
}

// Hit is a validated candidate rewrite for one target sequence.
type Hit struct {
	TargetID uid.UID
	Program  *program.Program
}

// Finder runs the matcher pipeline over candidate programs and validates
// what it finds.
type Finder struct {
	Matchers  []matcher.Matcher
	Evaluator *evaluator.Evaluator
	Log       logsink.Logger
	MaxMemory int64

	mu              sync.Mutex
	numFindAttempts int64
	invalidMatches  map[uid.UID]int64
}

// New builds a Finder. log may be nil to discard log output.
func New(matchers []matcher.Matcher, ev *evaluator.Evaluator, maxMemory int64, log logsink.Logger) *Finder {
	return &Finder{
		Matchers:       matchers,
		Evaluator:      ev,
		Log:            log,
		MaxMemory:      maxMemory,
		invalidMatches: make(map[uid.UID]int64),
	}
}

// Insert adds a newly indexed target sequence to every matcher.
func (f *Finder) Insert(normSeq sequence.Sequence, id uid.UID) {
	for _, m := range f.Matchers {
		m.Insert(normSeq, id)
	}
}

// Remove deletes a target sequence from every matcher.
func (f *Finder) Remove(normSeq sequence.Sequence, id uid.UID) {
	for _, m := range f.Matchers {
		m.Remove(normSeq, id)
	}
}

// NumFindAttempts returns how many times FindSequence has run, the
// counter upstream used to throttle re-checking Setup::hasMemory(); this
// port's matchers consult their HasMemory closure on every insert
// instead of on a periodic cadence, so the counter is kept only as an
// exposed stat rather than a throttle.
func (f *Finder) NumFindAttempts() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.numFindAttempts
}

// FindSequence interprets p across every memory cell a program of its
// shape could plausibly expose a result in, and runs the matcher pipeline
// against each of those cell sequences. It returns the normalized
// sequence produced at the canonical output cell and every validated hit
// found across all scanned cells, mirroring Finder::findSequence's loop
// over tmp_seqs with a relocated MOV appended for cells other than
// OutputCell.
func (f *Finder) FindSequence(p *program.Program, sequences SequenceLookup) (sequence.Sequence, []Hit) {
	f.mu.Lock()
	f.numFindAttempts++
	f.mu.Unlock()

	maxIndex := int64(20) // magic number, matches the upstream fallback
	if used, ok := usedCellsUpperBound(p, f.MaxMemory); ok && used <= 100 {
		maxIndex = used
	}
	if maxIndex < 1 {
		maxIndex = 1
	}

	seqs, _, err := f.Evaluator.EvalMultiCell(p, maxIndex, candidateScanTerms)
	if err != nil {
		return nil, nil
	}

	normSeq := seqs[program.OutputCell]
	var hits []Hit
	relocated := p.Clone()
	relocated.Ops = append(relocated.Ops,
		program.NewOperation(program.Mov, program.NewDirect(program.OutputCell), program.NewDirect(0)))

	for cell, s := range seqs {
		if int64(cell) == program.OutputCell {
			hits = append(hits, f.findAll(p, s, sequences)...)
			continue
		}
		relocated.Ops[len(relocated.Ops)-1].Source = program.NewDirect(int64(cell))
		hits = append(hits, f.findAll(relocated, s, sequences)...)
	}
	return normSeq, hits
}

// findAll runs every matcher against normSeq and validates the matches
// it proposes, skipping exact repeats of the immediately preceding hit
// the way Finder::findAll's `last` dedup does.
func (f *Finder) findAll(p *program.Program, normSeq sequence.Sequence, sequences SequenceLookup) []Hit {
	var hits []Hit
	haveLast := false
	var lastID uid.UID
	var lastHash uint64

	for _, m := range f.Matchers {
		for _, match := range m.Match(p, normSeq) {
			h := match.Program.Hash()
			if haveLast && match.TargetID == lastID && h == lastHash {
				continue
			}
			lastID, lastHash, haveLast = match.TargetID, h, true

			target, ok := sequences.Lookup(match.TargetID)
			if !ok {
				continue
			}
			expected, err := target.GetTerms(target.ExistingNumTerms())
			if err != nil {
				continue
			}
			status, _ := f.Evaluator.Check(match.Program, expected, DefaultSeqLength, match.TargetID)
			if status == evaluator.Error {
				f.notifyInvalidMatch(match.TargetID)
				continue
			}
			hits = append(hits, Hit{TargetID: match.TargetID, Program: match.Program})
		}
	}
	return hits
}

func getNumCheckTerms(fullCheck bool) int {
	if fullCheck {
		return FullSeqLength
	}
	return ExtendedSeqLength
}

// getNumRequiredTerms ports OeisProgram::getNumRequiredTerms, which
// unconditionally returns DEFAULT_SEQ_LENGTH upstream (the
// complexity-aware variant is commented out there).
func getNumRequiredTerms(p *program.Program) int {
	_ = p
	return DefaultSeqLength
}

// CheckProgramBasic validates a newly proposed program against a
// sequence's default-length terms. Update handling (the change_type/
// previous_hash fast path from checkProgramBasic upstream) depends on a
// corpus-wide program database this package has no dependency on, so
// non-new programs fall straight through to CheckProgramExtended here,
// matching upstream's own fallback path for missing metadata.
func (f *Finder) CheckProgramBasic(p, existing *program.Program, isNew bool, seq ExpectedSequence, fullCheck bool, numUsages int) (string, *program.Program) {
	if !isNew {
		return f.CheckProgramExtended(p, existing, isNew, seq, fullCheck, numUsages)
	}

	terms, err := seq.GetTerms(DefaultSeqLength)
	if err != nil {
		return "", nil
	}
	status, _ := f.Evaluator.Check(p, terms, DefaultSeqLength, seq.UID())
	if status == evaluator.Error {
		f.notifyInvalidMatch(seq.UID())
		return "", nil
	}
	return "Found", p
}

// CheckProgramExtended validates p against the extended-length terms,
// minimizes it, re-validates the minimized form, and (for updates) runs
// it through IsOptimizedBetter against the existing program. Mirrors
// Finder::checkProgramExtended, minus OeisProgram::autoUnfold (see the
// package doc comment).
func (f *Finder) CheckProgramExtended(p, existing *program.Program, isNew bool, seq ExpectedSequence, fullCheck bool, numUsages int) (string, *program.Program) {
	numCheck := getNumCheckTerms(fullCheck)
	numRequired := getNumRequiredTerms(p)
	extendedSeq, err := seq.GetTerms(numCheck)
	if err != nil {
		return "", nil
	}

	vanilla, _ := f.Evaluator.Check(p, extendedSeq, numRequired, seq.UID())
	if vanilla == evaluator.Error {
		f.notifyInvalidMatch(seq.UID())
		return "", nil
	}

	original := p
	minimized, err := minimizer.OptimizeAndMinimize(p, f.Evaluator.MinimizerEval(), numRequired)
	if err != nil {
		minimized = p
	}

	if minimized.Hash() != original.Hash() {
		numRequired = getNumRequiredTerms(minimized)
		check, _ := f.Evaluator.Check(minimized, extendedSeq, numRequired, seq.UID())
		if check == evaluator.Error {
			if vanilla == evaluator.OK {
				f.notifyMinimizerProblem(original, seq.IDString())
			}
			return "", nil
		}
	}

	if isNew {
		return "Found", minimized
	}

	verdict := f.IsOptimizedBetter(existing, minimized, seq, fullCheck, numUsages)
	if verdict == "" {
		return "", nil
	}
	return verdict, minimized
}

func (f *Finder) notifyMinimizerProblem(p *program.Program, idStr string) {
	if f.Log != nil {
		f.Log.Warn("program for %s generates wrong result after minimization", idStr)
	}
}

// hasBadConstant reports whether p contains a constant operand that is a
// bare power of a small base or larger than 100000, both signs the
// program is a degenerate fit rather than a meaningful one. Ported from
// hasBadConstant in mine/finder.cpp; program_util.cpp's getAllConstants
// was not in the retrieved sources, so the constant scan is done directly
// over the operands here.
func hasBadConstant(p *program.Program) bool {
	const badConstantCeiling = 100000
	for _, op := range p.Ops {
		for _, o := range []program.Operand{op.Target, op.Source} {
			if !o.IsConstant() || o.Value.IsZero() {
				continue
			}
			if !number.GetPowerOf(o.Value, number.FromInt64(2)).IsZero() ||
				!number.GetPowerOf(o.Value, number.FromInt64(10)).IsZero() {
				return true
			}
			if number.FromInt64(badConstantCeiling).Less(o.Value) {
				return true
			}
		}
	}
	return false
}

// hasBadLoop reports whether p has an lpb whose iteration count is not a
// constant 1, ported from hasBadLoop upstream.
func hasBadLoop(p *program.Program) bool {
	for _, op := range p.Ops {
		if program.Meta(op.Type).LoopBegin &&
			(!op.Source.IsConstant() || !op.Source.Value.Equal(number.One)) {
			return true
		}
	}
	return false
}

// hasConstantLoop reports whether p has any lpb whose iteration count is
// a compile-time constant at all (whether or not it's exactly 1), the
// has_constant_loop half of ProgramUtil::findConstantLoop upstream.
func hasConstantLoop(p *program.Program) bool {
	for _, op := range p.Ops {
		if program.Meta(op.Type).LoopBegin && op.Source.IsConstant() {
			return true
		}
	}
	return false
}

func hasIndirectOperand(p *program.Program) bool {
	for _, op := range p.Ops {
		if op.Target.IsIndirect() || op.Source.IsIndirect() {
			return true
		}
	}
	return false
}

func hasOp(p *program.Program, t program.OpType) bool {
	for _, op := range p.Ops {
		if op.Type == t {
			return true
		}
	}
	return false
}

// isSimpler reports whether optimized drops a structural wart that
// existing has (a bad constant, a bad loop, a constant loop, or an
// indirect operand) without introducing a seq call, ported from isSimpler
// upstream.
func isSimpler(existing, optimized *program.Program) bool {
	optimizedHasSeq := hasOp(optimized, program.Seq)
	if hasBadConstant(existing) && !hasBadConstant(optimized) && !optimizedHasSeq {
		return true
	}
	if hasBadLoop(existing) && !hasBadLoop(optimized) && !optimizedHasSeq {
		return true
	}
	if hasConstantLoop(existing) && !hasConstantLoop(optimized) && !optimizedHasSeq {
		return true
	}
	if hasIndirectOperand(existing) && !hasIndirectOperand(optimized) && !optimizedHasSeq {
		return true
	}
	return false
}

func (f *Finder) isBetterIncEval(existing, optimized *program.Program) bool {
	if !hasOp(existing, program.Lpb) && !hasOp(existing, program.Seq) {
		return false
	}
	optimizedHasSeq := hasOp(optimized, program.Seq)
	return !f.Evaluator.SupportsIncEval(existing) && f.Evaluator.SupportsIncEval(optimized) && !optimizedHasSeq
}

// isBetterLogEval reports whether optimized gained logarithmic complexity
// that existing lacks, grounded on analyzer.HasLogarithmicComplexity.
func isBetterLogEval(existing, optimized *program.Program) bool {
	return hasOp(existing, program.Lpb) &&
		!analyzer.HasLogarithmicComplexity(existing) &&
		analyzer.HasLogarithmicComplexity(optimized)
}

// IsOptimizedBetter decides whether optimized should replace existing for
// seq, returning a short verdict label ("Simpler", "Faster (log)",
// "Faster (IE)", "Better", "Faster") or "" if optimized is no
// improvement. Ported from Finder::isOptimizedBetter in mine/finder.cpp,
// including its static-check-before-evaluation ordering.
func (f *Finder) IsOptimizedBetter(existing, optimized *program.Program, seq ExpectedSequence, fullCheck bool, numUsages int) string {
	for _, op := range optimized.Ops {
		if op.Type == program.Seq && (!op.Source.IsConstant() || op.Source.Value.Equal(number.FromInt64(seq.UID().Number()))) {
			return ""
		}
	}

	existing = stripNops(existing)
	optimized = stripNops(optimized)

	if len(optimized.Ops) == 0 {
		return ""
	}
	if optimized.Hash() == existing.Hash() {
		return ""
	}

	if isSimpler(existing, optimized) {
		return "Simpler"
	} else if isSimpler(optimized, existing) {
		return ""
	}

	if isBetterLogEval(existing, optimized) {
		return "Faster (log)"
	} else if isBetterLogEval(optimized, existing) {
		return ""
	}

	if !fullCheck && numUsages < 5 { // magic number, matches upstream
		if f.isBetterIncEval(existing, optimized) {
			return "Faster (IE)"
		} else if f.isBetterIncEval(optimized, existing) {
			return ""
		}
	}

	numCheck := getNumCheckTerms(fullCheck)
	terms, err := seq.GetTerms(numCheck)
	if err != nil || len(terms) == 0 {
		if f.Log != nil {
			f.Log.Error("error fetching terms for %s", seq.IDString())
		}
		return ""
	}
	if numCheck > len(terms) {
		numCheck = len(terms)
	}
	if numCheck < ExtendedSeqLength {
		numCheck = ExtendedSeqLength
	}

	f.Evaluator.ClearCaches()
	optimizedSeq, optimizedSteps, _ := f.Evaluator.Eval(optimized, numCheck)

	s := len(terms)
	if i := optimizedSeq.GetFirstDeltaLT(number.Zero); i >= 0 && i >= s {
		return ""
	}
	if i := optimizedSeq.GetFirstDeltaLT(number.One); i >= 0 && i >= s {
		return ""
	}

	f.Evaluator.ClearCaches()
	_, existingSteps, _ := f.Evaluator.Eval(existing, numCheck)

	existingTerms := float64(existingSteps.Runs)
	optimizedTerms := float64(optimizedSteps.Runs)
	if optimizedTerms > existingTerms*thresholdBetter {
		return "Better"
	} else if existingSteps.Runs > optimizedSteps.Runs {
		return ""
	}

	existingTotal := float64(existingSteps.Total)
	optimizedTotal := float64(optimizedSteps.Total)
	if existingTotal > optimizedTotal*thresholdFaster {
		return "Faster"
	} else if optimizedSteps.Total > existingSteps.Total {
		return ""
	}

	return ""
}

func stripNops(p *program.Program) *program.Program {
	out := p.Clone()
	out.RemoveOps(program.Nop)
	return out
}

func (f *Finder) notifyInvalidMatch(id uid.UID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidMatches[id]++
}

// InvalidMatchCounts returns a copy of the accumulated invalid-match
// tally, the in-memory equivalent of Finder::notifyInvalidMatch's
// invalid_matches map (persistence to invalid_matches.txt is the seqindex
// package's concern, not this one's).
func (f *Finder) InvalidMatchCounts() map[uid.UID]int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uid.UID]int64, len(f.invalidMatches))
	for k, v := range f.invalidMatches {
		out[k] = v
	}
	return out
}

// usedCellsUpperBound scans p for the largest direct cell index it
// references, reporting ok=false if that bound cannot be trusted: an
// indirect operand can touch any cell at runtime, or the program
// statically reaches past maxMemory. Ported from the call-site semantics
// of ProgramUtil::getUsedMemoryCells in finder.cpp (its own
// implementation was not in the retrieved sources).
func usedCellsUpperBound(p *program.Program, maxMemory int64) (int64, bool) {
	var maxCell int64
	for _, op := range p.Ops {
		for _, o := range []program.Operand{op.Target, op.Source} {
			if o.IsIndirect() {
				return 0, false
			}
			if o.IsDirect() {
				if c := o.CellIndex(); c > maxCell {
					maxCell = c
				}
			}
		}
	}
	if maxMemory > 0 && maxCell > maxMemory {
		return 0, false
	}
	return maxCell, true
}

// LogSummary logs each matcher's compaction ratio, ported from
// Finder::logSummary.
func (f *Finder) LogSummary() {
	if f.Log == nil {
		return
	}
	buf := "Matcher compaction ratios: "
	for i, m := range f.Matchers {
		if i > 0 {
			buf += ", "
		}
		buf += fmt.Sprintf("%s: %.3g%%", m.Name(), m.CompactionRatio()*100)
	}
	f.Log.Debug(buf)
}
