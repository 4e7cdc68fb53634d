// Command loda is the CLI entrypoint for the miner: it loads the on-disk
// corpus (programs, sequence index, stats, lists), builds the generator/
// matcher/manager pipeline from miners.json, and drives either the
// steady-state mining loop or a one-off program submission.
//
// Grounded on the flag/dispatch shape of
// _examples/sentra-language-sentra/cmd/sentra's command set, built with
// kong (the pack's CLI library, also used in
// _examples/FocuswithJustin-JuniperBible/cmd/capsule) rather than that
// teacher's hand-rolled os.Args switch.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/alecthomas/kong"

	"loda/internal/asm"
	"loda/internal/config"
	"loda/internal/evaluator"
	"loda/internal/finder"
	"loda/internal/generator"
	"loda/internal/lock"
	"loda/internal/logsink"
	"loda/internal/manager"
	"loda/internal/matcher"
	"loda/internal/miner"
	"loda/internal/mutator"
	"loda/internal/program"
	"loda/internal/progress"
	"loda/internal/random"
	"loda/internal/seqindex"
	"loda/internal/stats"
	"loda/internal/uid"
)

const versionString = "0.1.0"

// CLI is the top-level flag/command tree, following the
// directory-of-globals + cmd-struct shape kong's own examples and
// cmd/capsule use.
var CLI struct {
	ProgramsDir string `name:"programs-dir" help:"Root directory of the programs corpus." default:"programs"`
	SequencesDir string `name:"sequences-dir" help:"Root directory of the sequence index (stripped/names/offsets, b-files)." default:"oeis"`
	StatsDir    string `name:"stats-dir" help:"Directory holding the generated corpus statistics." default:"stats"`
	ListsDir    string `name:"lists-dir" help:"Directory holding the overwrite/protect/deny/fullcheck lists." default:"lists"`
	ConfigPath  string `name:"config" help:"Path to miners.json." default:"miners.json"`

	Mine     MineCmd     `cmd:"" help:"Run the mining loop."`
	Submit   SubmitCmd   `cmd:"" help:"Validate and persist a single program file."`
	Maintain MaintainCmd `cmd:"" help:"Re-validate one indexed program."`
	Stats    StatsCmd    `cmd:"" help:"Regenerate the corpus statistics files."`
	Version  VersionCmd  `cmd:"" help:"Print version information."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("loda"),
		kong.Description("Miner and program-synthesis engine for a mini assembly language."),
		kong.UsageOnError(),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}

// VersionCmd prints the build version, matching cmd/sentra's "version"
// command.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("loda %s\n", versionString)
	return nil
}

// MineCmd runs the steady-state mining loop.
type MineCmd struct {
	Profile  string `help:"Named miners.json profile to run (default: the first entry)."`
	Server   bool   `help:"Run in server (fetch-and-maintain) mode instead of client (generate-and-mutate) mode."`
	Seconds  int64  `help:"Wall-clock target in seconds; 0 runs until stopped or (client mode) the generator is exhausted."`
	Parallel int    `help:"Number of independent mining workers to run concurrently." default:"1"`
	Seed     int64  `help:"Seed the process-wide random source for a reproducible run."`
}

func (c *MineCmd) Run() error {
	if c.Seed != 0 {
		random.Seed(c.Seed)
	}
	log := logsink.NewStderrLogger(false)

	env, err := loadEnvironment(log)
	if err != nil {
		return err
	}
	profile, ok := env.configFile.Profile(c.Profile)
	if !ok {
		return fmt.Errorf("loda: unknown profile %q", c.Profile)
	}

	mgr := newManager(env, profile, log, c.Server)

	var workers []*miner.Miner
	for i := 0; i < max(c.Parallel, 1); i++ {
		gen, err := generator.NewGenerator(profile.Generator, env.st, mgr, nil)
		if err != nil && !c.Server {
			return fmt.Errorf("loda: building generator: %w", err)
		}
		mut := mutator.New(env.st)
		var mon *progress.Monitor
		if i == 0 {
			mon = progress.New(c.Seconds, filepath.Join(env.statsDir, "progress.txt"), filepath.Join(env.statsDir, "checkpoint.txt"), uint32(c.Seconds))
		}
		workers = append(workers, miner.New(miner.Config{
			Profile:    profile,
			ServerMode: c.Server,
		}, mgr, gen, mut, nil, mon, log))
	}

	stop := make(chan struct{})
	if len(workers) == 1 {
		return workers[0].Run(stop)
	}
	return miner.RunParallel(stop, workers...)
}

// SubmitCmd validates and persists a single program file outside the
// mining loop, matching Miner::submit's one-off path.
type SubmitCmd struct {
	File    string `arg:"" help:"Path to the program (.asm) file to submit."`
	Profile string `help:"Named miners.json profile whose validation mode applies."`
}

func (c *SubmitCmd) Run() error {
	log := logsink.NewStderrLogger(false)
	env, err := loadEnvironment(log)
	if err != nil {
		return err
	}
	profile, ok := env.configFile.Profile(c.Profile)
	if !ok {
		return fmt.Errorf("loda: unknown profile %q", c.Profile)
	}
	mgr := newManager(env, profile, log, false)

	data, err := os.ReadFile(c.File)
	if err != nil {
		return fmt.Errorf("loda: reading %s: %w", c.File, err)
	}
	p, err := asm.Parse(string(data))
	if err != nil {
		return fmt.Errorf("loda: parsing %s: %w", c.File, err)
	}

	m := miner.New(miner.Config{Profile: profile, SubmitMode: true}, mgr, nil, nil, nil, nil, log)
	result, err := m.Submit(p)
	if err != nil {
		return err
	}
	if !result.Updated {
		fmt.Println("no improvement found, nothing submitted")
		return nil
	}
	fmt.Printf("%s program accepted\n", result.ChangeType)
	return nil
}

// MaintainCmd re-validates one indexed program by id, matching the
// maintenance step the server-mode miner runs automatically when its
// backlog is empty.
type MaintainCmd struct {
	ID string `arg:"" help:"Sequence id to re-validate, e.g. A000045."`
}

func (c *MaintainCmd) Run() error {
	log := logsink.NewStderrLogger(false)
	env, err := loadEnvironment(log)
	if err != nil {
		return err
	}
	profile, _ := env.configFile.Profile("")
	mgr := newManager(env, profile, log, true)

	id, err := uid.Parse(c.ID)
	if err != nil {
		return fmt.Errorf("loda: parsing id %q: %w", c.ID, err)
	}
	kept, err := mgr.MaintainProgram(id, true)
	if err != nil {
		return err
	}
	if kept {
		fmt.Printf("%s kept\n", id)
	} else {
		fmt.Printf("%s removed\n", id)
	}
	return nil
}

// StatsCmd loads the corpus statistics from the stats directory and saves
// them back under that directory's folder lock; it does not rescan the
// programs directory.
type StatsCmd struct{}

func (c *StatsCmd) Run() error {
	log := logsink.NewStderrLogger(false)
	env, err := loadEnvironment(log)
	if err != nil {
		return err
	}
	fl, err := lock.New(env.statsDir, log)
	if err != nil {
		return err
	}
	defer fl.Release()
	return env.st.Save(env.statsDir)
}

// environment bundles everything loaded from disk that every subcommand
// needs, so each Run method stays a thin pipeline over the shared state.
type environment struct {
	programsDir  string
	statsDir     string
	listsDir     string
	configFile   config.File
	index        *seqindex.SequenceIndex
	st           *stats.Stats
	protectIDs   *uid.Set
	denyIDs      *uid.Set
	overwriteIDs *uid.Set
	fullCheckIDs *uid.Set
}

func loadEnvironment(log logsink.Logger) (*environment, error) {
	cfgFile, err := config.Load(CLI.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loda: loading %s: %w", CLI.ConfigPath, err)
	}

	index := seqindex.NewSequenceIndex()
	loader := seqindex.NewSequenceLoader(index, 4, nil, log)
	if err := loader.Load(CLI.SequencesDir, uid.DomainCurated); err != nil && log != nil {
		log.Warn("loading sequences from %s: %v", CLI.SequencesDir, err)
	}

	st, err := stats.Load(CLI.StatsDir, log)
	if err != nil {
		st = stats.New(log)
		if log != nil {
			log.Warn("loading stats from %s: %v", CLI.StatsDir, err)
		}
	}

	protect, _ := seqindex.LoadList(filepath.Join(CLI.ListsDir, "protect.txt"), log)
	deny, _ := seqindex.LoadList(filepath.Join(CLI.ListsDir, "deny.txt"), log)
	overwrite, _ := seqindex.LoadList(filepath.Join(CLI.ListsDir, "overwrite.txt"), log)
	fullCheck, _ := seqindex.LoadList(filepath.Join(CLI.ListsDir, "full_check.txt"), log)

	return &environment{
		programsDir:  CLI.ProgramsDir,
		statsDir:     CLI.StatsDir,
		listsDir:     CLI.ListsDir,
		configFile:   cfgFile,
		index:        index,
		st:           st,
		protectIDs:   protect,
		denyIDs:      deny,
		overwriteIDs: overwrite,
		fullCheckIDs: fullCheck,
	}, nil
}

// programLoader adapts Manager.LoadProgram to interp.Loader's int64-id
// shape for the evaluator's seq-call resolution, matching the
// call-cache's Loader collaborator in spec section 6.
type programLoader struct {
	mgr *manager.Manager
}

func (l programLoader) Load(id int64) (*program.Program, error) {
	u, err := uid.New(uid.DomainCurated, id)
	if err != nil {
		return nil, err
	}
	return l.mgr.LoadProgram(u)
}

func newManager(env *environment, profile config.MinerConfig, log logsink.Logger, isServer bool) *manager.Manager {
	mgrCfg := manager.Config{
		ProgramsDir: env.programsDir,
		Overwrite:   profile.Overwrite,
		Domains:     profile.Domains,
		IsServer:    isServer,
	}
	mgr := manager.New(mgrCfg, env.index, nil, env.st, log, lock.Locker{Log: log})
	mgr.ProtectIDs = env.protectIDs
	mgr.DenyIDs = env.denyIDs
	mgr.OverwriteIDs = env.overwriteIDs
	mgr.FullCheckIDs = env.fullCheckIDs

	ev := evaluator.New(programLoader{mgr: mgr}, evaluator.AllModes, 10_000_000, 1_000_000)
	matchers := buildMatchers(profile.Matchers)
	mgr.Finder = finder.New(matchers, ev, 1_000_000, log)

	env.index.Each(func(s *seqindex.ManagedSequence) {
		if !mgr.ShouldMatch(s) {
			return
		}
		terms, err := s.GetTerms(finder.DefaultSeqLength)
		if err != nil {
			return
		}
		mgr.Finder.Insert(terms, s.ID)
	})

	return mgr
}

// buildMatchers constructs the matcher pipeline named by a profile's
// miners.json entry. A matcher whose Backoff flag is set consults
// hasEnoughMemory, the authored process-memory-pressure probe described
// in DESIGN.md (Memory::get().isOutOfMemory()'s own body was not among
// the retrieved sources).
func buildMatchers(cfgs []config.MatcherConfig) []matcher.Matcher {
	var out []matcher.Matcher
	for _, mc := range cfgs {
		var hasMemory matcher.HasMemory
		if mc.Backoff {
			hasMemory = hasEnoughMemory
		}
		switch mc.Type {
		case "direct":
			out = append(out, matcher.NewDirectMatcher(hasMemory))
		case "linear1":
			out = append(out, matcher.NewLinear1Matcher(hasMemory))
		case "linear2":
			out = append(out, matcher.NewLinear2Matcher(hasMemory))
		case "polynomial":
			out = append(out, matcher.NewPolynomialMatcher(hasMemory))
		case "delta":
			out = append(out, matcher.NewDeltaMatcher(hasMemory))
		case "digit":
			out = append(out, matcher.NewDigitMatcher(hasMemory))
		}
	}
	return out
}

// maxBackoffHeapBytes is the resident heap size past which a
// Backoff-flagged matcher stops growing its index, an authored threshold
// (see buildMatchers).
const maxBackoffHeapBytes = 2 << 30

func hasEnoughMemory() bool {
	var mstats runtime.MemStats
	runtime.ReadMemStats(&mstats)
	return mstats.Alloc < maxBackoffHeapBytes
}

