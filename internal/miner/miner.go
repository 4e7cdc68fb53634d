// Package miner implements the steady-state mining loop from spec
// section 4.14 and section 1 ("the core"): a generate-or-fetch, match,
// validate, and (in client mode) mutate-and-requeue cycle, driven to
// completion by a progress target and a cooperative halt flag.
//
// Grounded on Miner::mine/runMineLoop/checkRegularTasks in
// _examples/original_source/src/mine/miner.cpp.
package miner

import (
	"time"

	"golang.org/x/sync/errgroup"

	"loda/internal/comments"
	"loda/internal/config"
	"loda/internal/finder"
	"loda/internal/generator"
	"loda/internal/logsink"
	"loda/internal/manager"
	"loda/internal/mutator"
	"loda/internal/program"
	"loda/internal/progress"
	"loda/internal/random"
	"loda/internal/uid"
)

// AnonymousSubmitter attributes a new/updated program to no known user,
// matching Miner::ANONYMOUS.
const AnonymousSubmitter = "anonymous"

// ProgramsToFetch is how many candidates a server-mode miner tries to
// keep queued from the fetch collaborator, matching
// Miner::PROGRAMS_TO_FETCH.
const ProgramsToFetch = 2000

// MaxBacklog caps how many mutated copies a client-mode miner keeps
// queued before it stops requeuing and falls back to fresh generation,
// matching Miner::MAX_BACKLOG.
const MaxBacklog = 1000

// NumMutations is how many mutated copies of a successful candidate are
// pushed back onto the queue, split evenly between constant-only and
// fully random mutation, matching Miner::NUM_MUTATIONS.
const NumMutations = 100

// FetchClient is the server-mode collaborator that exchanges candidate
// programs and usage telemetry with the upstream service, matching
// ApiClient::getNextProgram/postProgram/reportCPUHour's call sites in
// miner.cpp. A client-mode (or submit-mode) Miner may leave this nil.
type FetchClient interface {
	GetNextProgram() (*program.Program, error)
	PostProgram(p *program.Program) error
	ReportCPUHour() error
}

// Config selects a Miner's run mode and policy, the Go analogue of the
// constructor arguments and reload()-loaded fields in Miner::Miner.
type Config struct {
	Profile    config.MinerConfig
	ServerMode bool
	SubmitMode bool
}

// scheduler fires its owning task at most once per interval, matching
// the Scheduler helper miner.cpp constructs per recurring task
// (log/metrics/cpuhours/api/reload).
type scheduler struct {
	interval time.Duration
	last     time.Time
}

func newScheduler(interval time.Duration) *scheduler {
	return &scheduler{interval: interval, last: time.Now()}
}

func (s *scheduler) ready(now time.Time) bool {
	if now.Sub(s.last) < s.interval {
		return false
	}
	s.last = now
	return true
}

// Miner drives the generate/fetch -> match -> validate -> requeue cycle
// against one Manager. Construct with New; the zero value is not usable.
type Miner struct {
	cfg       Config
	manager   *manager.Manager
	generator generator.Generator
	mutator   *mutator.Mutator
	base      *program.Program // user-supplied seed program for a one-shot mutate run; nil selects fresh generation
	fetch     FetchClient
	progress  *progress.Monitor
	log       logsink.Logger
	rng       *random.Rng

	logSched      *scheduler
	metricsSched  *scheduler
	cpuHoursSched *scheduler
	apiSched      *scheduler

	progs        []*program.Program
	currentFetch int

	numProcessed  int64
	numRemoved    int64
	numNewPerUser map[string]int64
	numUpdPerUser map[string]int64
}

// New builds a Miner. gen and mut may be nil in server mode, where
// candidates arrive exclusively via fetch. prog may be nil to run without
// a progress target (the loop then only stops via stop/Halt or, in
// client mode, generator exhaustion).
func New(cfg Config, mgr *manager.Manager, gen generator.Generator, mut *mutator.Mutator, fetch FetchClient, prog *progress.Monitor, log logsink.Logger) *Miner {
	return &Miner{
		cfg:           cfg,
		manager:       mgr,
		generator:     gen,
		mutator:       mut,
		fetch:         fetch,
		progress:      prog,
		log:           log,
		rng:           random.Get(),
		logSched:      newScheduler(36 * time.Second),
		metricsSched:  newScheduler(36 * time.Second),
		cpuHoursSched: newScheduler(time.Hour),
		apiSched:      newScheduler(5 * time.Minute),
		numNewPerUser: make(map[string]int64),
		numUpdPerUser: make(map[string]int64),
		currentFetch:  ProgramsToFetch,
	}
}

// SetBaseProgram switches the miner into one-shot mutate mode: instead of
// generating fresh candidates, it explores random mutations of base,
// matching the mutator->mutateCopiesRandom(base, ...) branch
// runMineLoop takes when the user supplied a program on the command
// line.
func (m *Miner) SetBaseProgram(base *program.Program) {
	m.base = base
}

// Run drives the mining loop until stop fires, the progress target (if
// any) is reached, or (client mode) the generator is exhausted. It starts
// the background progress thread itself when a Monitor was supplied,
// matching Miner::mine's conditional thread spawn.
func (m *Miner) Run(stop <-chan struct{}) error {
	if m.progress != nil {
		go m.progress.Run(stop)
	}
	return m.runMineLoop(stop)
}

// RunParallel runs several independently constructed Miner workers
// concurrently and waits for all of them, the Go analogue of the
// fork-and-supervise parallel mining mode in spec section 5: each worker
// forked its own generator/mutator/backlog state (process-level isolation
// upstream; independent Miner values here) and only the shared Manager's
// folder lock serializes disk writes across them. Only one worker should
// carry a non-nil progress Monitor, or duplicate checkpoint writers will
// race.
func RunParallel(stop <-chan struct{}, workers ...*Miner) error {
	var g errgroup.Group
	for _, w := range workers {
		w := w
		g.Go(func() error {
			return w.Run(stop)
		})
	}
	return g.Wait()
}

func (m *Miner) pop() *program.Program {
	n := len(m.progs)
	p := m.progs[n-1]
	m.progs = m.progs[:n-1]
	return p
}

// runMineLoop is the steady-state cycle, ported from Miner::runMineLoop:
// refill the backlog (fetch in server mode, generate or mutate otherwise,
// or run one maintenance step if the server has nothing queued), pop one
// candidate, and process it.
func (m *Miner) runMineLoop(stop <-chan struct{}) error {
	for {
		if progress.Halt.Load() {
			return nil
		}
		select {
		case <-stop:
			return nil
		default:
		}
		if err := m.checkRegularTasks(); err != nil {
			return err
		}

		if len(m.progs) == 0 {
			switch {
			case m.cfg.ServerMode:
				m.fetchMore()
				if len(m.progs) == 0 {
					m.maintainOne()
					continue
				}
			case m.base != nil:
				m.progs = m.mutator.MutateCopiesRandom(m.base, NumMutations)
				if len(m.progs) == 0 {
					return nil
				}
			default:
				p, err := m.generator.GenerateProgram()
				if err != nil {
					return err
				}
				if p == nil {
					if m.generator.IsFinished() {
						return nil
					}
					continue
				}
				m.progs = append(m.progs, p)
			}
		}

		p := m.pop()
		if err := m.processProgram(p); err != nil {
			return err
		}
	}
}

// fetchMore tops the backlog up to currentFetch candidates from the
// server-mode fetch collaborator, stopping early once it returns nothing,
// matching the getNextProgram() loop in runMineLoop's server branch.
func (m *Miner) fetchMore() {
	if m.fetch == nil {
		return
	}
	for len(m.progs) < m.currentFetch {
		p, err := m.fetch.GetNextProgram()
		if err != nil {
			if m.log != nil {
				m.log.Warn("fetching next program: %v", err)
			}
			return
		}
		if p == nil {
			return
		}
		m.progs = append(m.progs, p)
	}
}

// maintainOne re-validates one randomly chosen indexed program, the
// server's maintenance step when it has nothing left to fetch, matching
// runMineLoop's manager->maintainProgram(random_id) branch.
func (m *Miner) maintainOne() {
	id, ok := m.manager.RandomID(m.rng)
	if !ok {
		return
	}
	kept, err := m.manager.MaintainProgram(id, true)
	if err != nil {
		if m.log != nil {
			m.log.Warn("maintaining program for %s: %v", id, err)
		}
		return
	}
	if !kept {
		m.numRemoved++
	}
}

// processProgram resolves one popped candidate against its target
// sequence(s) (via an embedded id comment, or the full matcher sweep),
// applies the overwrite policy through Manager.UpdateProgram, and, in
// client mode, requeues mutated copies of anything that was accepted.
// Ported from the body of runMineLoop's per-program handling.
func (m *Miner) processProgram(p *program.Program) error {
	m.numProcessed++

	var hits []finder.Hit
	if idStr := comments.SequenceIDFromProgram(p); idStr != "" {
		if id, err := uid.Parse(idStr); err == nil {
			if _, ok := m.manager.Index.Get(id); ok {
				hits = []finder.Hit{{TargetID: id, Program: p}}
			}
		}
	}
	if hits == nil {
		_, hits = m.manager.Finder.FindSequence(p, m.manager.Index)
	}

	for _, h := range hits {
		result, err := m.manager.UpdateProgram(h.TargetID, h.Program, m.cfg.Profile.Validation)
		if err != nil {
			if m.log != nil {
				m.log.Warn("updating program for %s: %v", h.TargetID, err)
			}
			continue
		}
		if !result.Updated {
			continue
		}
		m.recordSubmitter(h.Program, result.IsNew)
		if m.cfg.ServerMode {
			continue
		}
		if m.fetch != nil {
			if err := m.fetch.PostProgram(result.Program); err != nil && m.log != nil {
				m.log.Warn("submitting program for %s: %v", h.TargetID, err)
			}
		}
		if len(m.progs) < MaxBacklog {
			m.progs = append(m.progs, m.mutator.MutateCopiesConstants(result.Program, NumMutations/2)...)
			m.progs = append(m.progs, m.mutator.MutateCopiesRandom(result.Program, NumMutations/2)...)
		}
	}
	return nil
}

func (m *Miner) recordSubmitter(p *program.Program, isNew bool) {
	submitter := comments.Submitter(p)
	if submitter == "" {
		submitter = AnonymousSubmitter
	}
	if isNew {
		m.numNewPerUser[submitter]++
	} else {
		m.numUpdPerUser[submitter]++
	}
}

// checkRegularTasks fires any scheduler whose interval has elapsed,
// matching Miner::checkRegularTasks (which checks Signals::HALT first and
// returns early; the Halt check here happens in the caller's loop head).
func (m *Miner) checkRegularTasks() error {
	now := time.Now()
	if m.logSched.ready(now) {
		m.logProgress()
	}
	if m.metricsSched.ready(now) {
		m.manager.Finder.LogSummary()
	}
	if m.cfg.ServerMode && m.apiSched.ready(now) {
		m.currentFetch = ProgramsToFetch
	}
	if !m.cfg.ServerMode && !m.cfg.SubmitMode && m.fetch != nil && m.cpuHoursSched.ready(now) {
		if err := m.fetch.ReportCPUHour(); err != nil && m.log != nil {
			m.log.Warn("reporting cpu hour: %v", err)
		}
	}
	return nil
}

func (m *Miner) logProgress() {
	if m.log == nil {
		return
	}
	progressPct := ""
	if m.progress != nil {
		progressPct = " " + logsink.FormatCount(int64(100*m.progress.GetProgress())) + "%"
	}
	m.log.Info("processed %s programs, removed %s, backlog %d%s",
		logsink.FormatCount(m.numProcessed), logsink.FormatCount(m.numRemoved), len(m.progs), progressPct)
}

// NumProcessed returns how many candidates have been popped and
// evaluated so far.
func (m *Miner) NumProcessed() int64 { return m.numProcessed }

// NumRemoved returns how many indexed programs the maintenance step has
// deleted so far.
func (m *Miner) NumRemoved() int64 { return m.numRemoved }

// Submit validates and persists a single user-supplied program against
// its embedded or matched target sequence, the one-off path Miner::submit
// covers for manual submissions outside the mining loop.
func (m *Miner) Submit(p *program.Program) (manager.UpdateResult, error) {
	var hits []finder.Hit
	if idStr := comments.SequenceIDFromProgram(p); idStr != "" {
		if id, err := uid.Parse(idStr); err == nil {
			if _, ok := m.manager.Index.Get(id); ok {
				hits = []finder.Hit{{TargetID: id, Program: p}}
			}
		}
	}
	if hits == nil {
		_, hits = m.manager.Finder.FindSequence(p, m.manager.Index)
	}
	if len(hits) == 0 {
		return manager.UpdateResult{}, nil
	}
	return m.manager.UpdateProgram(hits[0].TargetID, hits[0].Program, m.cfg.Profile.Validation)
}
