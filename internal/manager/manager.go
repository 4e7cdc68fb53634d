// Package manager implements the overwrite-policy manager from spec
// section 4.14 step 4 and section 6: given a matched candidate program for
// a target sequence, decide (consulting the protect/deny/overwrite lists
// and the configured overwrite mode) whether it should replace whatever is
// already on file, then persist the decision atomically under a folder
// lock.
//
// Grounded on OeisManager::updateProgram/maintainProgram/shouldMatch in
// _examples/original_source/src/mine/mine_manager.cpp (the maintained,
// fuller sibling package consulted elsewhere in this repo for the same
// reason: it is the version with the richer overwrite-mode decision table
// and the hash-shortcut in updateProgram).
package manager

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"loda/internal/asm"
	"loda/internal/comments"
	"loda/internal/config"
	"loda/internal/evaluator"
	lodaerrors "loda/internal/errors"
	"loda/internal/finder"
	"loda/internal/logsink"
	"loda/internal/optimizer"
	"loda/internal/program"
	"loda/internal/random"
	"loda/internal/seqindex"
	"loda/internal/stats"
	"loda/internal/uid"
)

// tooManyInvalidMatches is the per-target invalid-match count past which
// shouldMatch backs off a sequence, an authored threshold: the retrieved
// mine/finder.cpp references InvalidMatches::hasTooMany but not its
// constant.
const tooManyInvalidMatches = 1000

// complexProgramLength is the transitive-length threshold past which an
// auto-overwrite candidate must prove itself "better" rather than just
// different, matching OverwriteMode::AUTO's "magic number" 10 in
// shouldMatch.
const complexProgramLength = 10

// Config bundles the on-disk layout and policy a Manager enforces.
type Config struct {
	ProgramsDir string // curated + local programs root
	Overwrite   config.OverwriteMode
	Domains     string
	IsServer    bool
}

// Locker acquires an exclusive lock on a folder for the duration of a
// critical section, matching seqindex.Locker's shape so internal/lock.Locker
// satisfies this directly.
type Locker interface {
	Lock(folder string) (unlock func(), err error)
}

// Manager applies the overwrite policy and persists matched candidates,
// the Go analogue of OeisManager's update/maintain surface.
type Manager struct {
	cfg    Config
	Index  *seqindex.SequenceIndex
	Finder *finder.Finder
	Stats  *stats.Stats
	Log    logsink.Logger
	Locker Locker // nil skips cross-process locking (single-process/tests)

	ProtectIDs   *uid.Set
	DenyIDs      *uid.Set
	OverwriteIDs *uid.Set
	FullCheckIDs *uid.Set

	mu        sync.Mutex
	ignoreIDs *uid.Set
}

// New builds a Manager. Any of the *uid.Set fields may be left nil by the
// caller and are treated as empty.
func New(cfg Config, idx *seqindex.SequenceIndex, f *finder.Finder, st *stats.Stats, log logsink.Logger, locker Locker) *Manager {
	return &Manager{
		cfg:       cfg,
		Index:     idx,
		Finder:    f,
		Stats:     st,
		Log:       log,
		Locker:    locker,
		ignoreIDs: uid.NewSet(),
	}
}

func (m *Manager) withLock(folder string, fn func() error) error {
	if m.Locker == nil {
		return fn()
	}
	unlock, err := m.Locker.Lock(folder)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

// RandomID returns a uniformly random indexed sequence id via reservoir
// sampling over the index, used by the miner's server-mode maintenance
// step (Miner::runMineLoop's manager->maintainProgram(random_id) branch,
// fed upstream by OeisSequence's own random-access container; that
// container wasn't among the retrieved sources, so reservoir sampling
// over SequenceIndex.Each is the authored substitute). ok is false if the
// index is empty.
func (m *Manager) RandomID(rng *random.Rng) (uid.UID, bool) {
	count := 0
	var picked uid.UID
	m.Index.Each(func(s *seqindex.ManagedSequence) {
		count++
		if rng.Intn(count) == 0 {
			picked = s.ID
		}
	})
	return picked, count > 0
}

// ShouldMatch decides whether seq should be indexed in the finder's
// matchers at all, applying the domain scope, deny/protect lists,
// invalid-match backoff, and overwrite-mode policy. Ported from
// MineManager::shouldMatch.
func (m *Manager) ShouldMatch(seq *seqindex.ManagedSequence) bool {
	id := seq.ID
	if id.Number() == 0 {
		return false
	}
	if m.cfg.Domains != "" {
		found := false
		for i := 0; i < len(m.cfg.Domains); i++ {
			if m.cfg.Domains[i] == id.Domain() {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if setExists(m.DenyIDs, id) {
		return false
	}

	tooMany := false
	if m.Finder != nil {
		tooMany = m.Finder.InvalidMatchCounts()[id] >= tooManyInvalidMatches
	}
	progExists := m.Stats != nil && m.Stats.AllProgramIDs.Exists(id)

	if progExists && setExists(m.ProtectIDs, id) {
		return false
	}

	switch m.cfg.Overwrite {
	case config.OverwriteNone:
		return !progExists && !tooMany
	case config.OverwriteAll:
		return true
	default: // Auto
		if tooMany {
			return false
		}
		if !progExists {
			return true
		}
		shouldOverwrite := setExists(m.OverwriteIDs, id)
		isComplex := m.Stats != nil && m.Stats.GetTransitiveLength(id) > complexProgramLength
		return isComplex || shouldOverwrite
	}
}

func setExists(s *uid.Set, id uid.UID) bool {
	return s != nil && s.Exists(id)
}

func dirBucket(id uid.UID) string {
	return fmt.Sprintf("%03d", id.Number()/1000)
}

// ProgramPath returns where id's program is (or would be) stored, bucketed
// by thousands the way the corpus shards its programs directories. Not
// ported: ProgramUtil::getProgramPath's own body was not among the
// retrieved sources, so this bucketing scheme is authored from the path
// shape in spec.md section 6 ("<programs_home>/<domain>/<bucket>/<uid>.asm").
func (m *Manager) ProgramPath(id uid.UID, local bool) string {
	if local {
		return filepath.Join(m.cfg.ProgramsDir, "local", id.String()+".asm")
	}
	return filepath.Join(m.cfg.ProgramsDir, string(id.Domain()), dirBucket(id), id.String()+".asm")
}

// LoadProgram implements the manager's own ProgramStore surface (used by
// TransitiveHash to resolve seq-call dependencies): it prefers a local
// override over the curated copy, matching getExistingProgram's
// has_local-wins precedence.
func (m *Manager) LoadProgram(id uid.UID) (*program.Program, error) {
	local := m.ProgramPath(id, true)
	if data, err := os.ReadFile(local); err == nil {
		return asm.Parse(string(data))
	}
	data, err := os.ReadFile(m.ProgramPath(id, false))
	if err != nil {
		return nil, err
	}
	return asm.Parse(string(data))
}

// UpdateResult mirrors update_program_result_t.
type UpdateResult struct {
	Updated      bool
	IsNew        bool
	PreviousHash uint64
	ChangeType   string
	Program      *program.Program
}

// UpdateProgram validates a matched candidate p for target id and, if it
// is new or an improvement over whatever is on file, persists it. Ported
// from MineManager::updateProgram, minus the offset-adjustment and
// dependent-offset propagation machinery (ProgramUtil::setOffset's own
// body and the formula/PARI export pipeline were not among the retrieved
// sources; this is noted as a documented simplification, not a silent
// drop, in the design ledger).
func (m *Manager) UpdateProgram(id uid.UID, p *program.Program, mode config.ValidationMode) (UpdateResult, error) {
	var result UpdateResult

	seq, ok := m.Index.Get(id)
	if id.Number() == 0 || !ok {
		return result, nil
	}
	m.mu.Lock()
	ignored := m.ignoreIDs.Exists(id)
	m.mu.Unlock()
	if ignored {
		return result, nil
	}

	submitter := comments.Submitter(p)

	existing, _ := m.LoadProgram(id)
	isNew := existing == nil || len(existing.Ops) == 0

	if !isNew {
		strippedExisting := stripForCompare(existing)
		strippedP := stripForCompare(p)
		if strippedP.Hash() == strippedExisting.Hash() {
			return result, nil
		}
	}

	fullCheck := setExists(m.FullCheckIDs, id)
	numUsages := 0
	if m.Stats != nil {
		numUsages = int(m.Stats.NumUsages(id))
	}

	var status string
	var resultProgram *program.Program
	switch mode {
	case config.ValidationBasic:
		status, resultProgram = m.Finder.CheckProgramBasic(p, existing, isNew, seq, fullCheck, numUsages)
	default:
		status, resultProgram = m.Finder.CheckProgramExtended(p, existing, isNew, seq, fullCheck, numUsages)
	}
	if status == "" || resultProgram == nil {
		return result, nil
	}
	if !isNew && resultProgram.Hash() == existing.Hash() {
		return result, nil
	}

	result.Updated = true
	result.IsNew = isNew
	result.ChangeType = status
	result.Program = resultProgram
	if !isNew {
		result.PreviousHash = TransitiveHash(existing, m.LoadProgram)
	}

	if err := m.persist(id, resultProgram, submitter); err != nil {
		return UpdateResult{}, err
	}

	if isNew && m.cfg.Overwrite == config.OverwriteNone {
		m.mu.Lock()
		m.ignoreIDs.Insert(id)
		m.mu.Unlock()
	}

	color := "warning"
	if isNew {
		color = "good"
	}
	if m.Log != nil {
		m.Log.Alert(fmt.Sprintf("%s program for %s", status, seq.IDString()), "", color, "")
	}
	return result, nil
}

func stripForCompare(p *program.Program) *program.Program {
	out := p.Clone()
	out.RemoveOps(program.Nop)
	return out
}

// persist writes p for id to its canonical location, stripped of nops and
// re-annotated with a leading sequence-identity comment, using a
// write-to-temp-then-rename under a folder lock (spec section 5: "file
// writes use write-to-temp-then-rename"; "cross-process updates...
// coordinated by folder locks").
func (m *Manager) persist(id uid.UID, p *program.Program, submitter string) error {
	target := p.Clone()
	target.RemoveOps(program.Nop)
	comments.RemoveAll(target)
	optimized := optimizeForPersist(target)
	header := program.New()
	if seq, ok := m.Index.Get(id); ok {
		comments.Add(header, seq.String())
	}
	if submitter != "" {
		comments.Add(header, comments.PrefixSubmittedBy+" "+submitter)
	}
	optimized.Ops = append(header.Ops, optimized.Ops...)

	path := m.ProgramPath(id, !m.cfg.IsServer)
	return m.withLock(filepath.Dir(path), func() error {
		return writeAtomic(path, asm.Print(optimized))
	})
}

// writeAtomic writes content to path via a same-directory temp file and an
// atomic rename, matching spec section 5's "write-to-temp-then-rename"
// rule for any corpus/stats mutation.
func writeAtomic(path, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return lodaerrors.Wrap(lodaerrors.IOError, err, "creating directory %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return lodaerrors.Wrap(lodaerrors.IOError, err, "creating temp file in %s", dir)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return lodaerrors.Wrap(lodaerrors.IOError, err, "writing %s", tmpPath)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return lodaerrors.Wrap(lodaerrors.IOError, err, "closing %s", tmpPath)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return lodaerrors.Wrap(lodaerrors.IOError, err, "renaming %s to %s", tmpPath, path)
	}
	return nil
}

// MaintainProgram re-validates an on-disk program during the miner's
// server-mode maintenance step, removing it if it is now invalid. Returns
// false if the program was removed, matching maintainProgram's bool
// return. Simplified from OeisManager::maintainProgram: auto-unfold and
// minimization (Fold::autoUnfold, Minimizer::optimizeAndMinimize) are not
// ported (their dependency, lang/subprogram.cpp's Fold, was not among the
// retrieved sources); a kept program is re-optimized with
// internal/optimizer instead of unfolded+minimized, a documented
// simplification rather than a silent drop.
func (m *Manager) MaintainProgram(id uid.UID, eval bool) (bool, error) {
	if id.Number() == 0 {
		return true, nil
	}
	seq, ok := m.Index.Get(id)
	if !ok {
		return true, nil
	}

	path := m.ProgramPath(id, false)
	data, err := os.ReadFile(path)
	if err != nil {
		path = m.ProgramPath(id, true)
		data, err = os.ReadFile(path)
		if err != nil {
			return true, nil // no program on file
		}
	}

	okay := !setExists(m.DenyIDs, id)
	var p *program.Program
	if okay {
		if m.Log != nil {
			m.Log.Info("checking program for %s", seq.String())
		}
		p, err = asm.Parse(string(data))
		if err != nil {
			okay = false
		}
	}

	if okay && eval && m.Finder != nil {
		terms, err := seq.GetTerms(finder.FullSeqLength)
		if err != nil {
			okay = false
		} else {
			status, _ := m.Finder.Evaluator.Check(p, terms, finder.DefaultSeqLength, id)
			if status == evaluator.Error {
				okay = false
			}
		}
	}

	isProtected := setExists(m.ProtectIDs, id)
	if okay && !isProtected && !comments.IsCodedManually(p) {
		submitter := comments.Submitter(p)
		updated := optimizeForPersist(p)
		if err := m.persist(id, updated, submitter); err != nil {
			return true, err
		}
	}

	if !okay {
		if m.Log != nil {
			m.Log.Alert("Removed invalid program", "", "danger", seq.String())
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func optimizeForPersist(p *program.Program) *program.Program {
	return optimizer.Optimize(p)
}
