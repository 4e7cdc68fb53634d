package generator

import (
	"fmt"
	"testing"

	"loda/internal/number"
	"loda/internal/program"
	"loda/internal/random"
	"loda/internal/stats"
	"loda/internal/uid"
)

func newTestStats() *stats.Stats {
	s := stats.New(nil)
	id := uid.MustNew('A', 1)
	p := program.New()
	p.Ops = []program.Operation{
		program.NewOperation(program.Mov, program.NewDirect(1), program.NewDirect(0)),
		program.NewOperation(program.Add, program.NewDirect(1), program.NewConstant(number.FromInt64(2))),
	}
	s.UpdateProgramStats(id, p, "tester")
	s.UpdateSequenceStats(id, true, false)
	s.Finalize()
	return s
}

func TestGeneratorV1ProducesValidProgram(t *testing.T) {
	st := newTestStats()
	cfg := Config{Version: 1, Length: 10, MaxConstant: 5, MaxIndex: 3, Loops: true}
	g, err := NewGenerator(cfg, st, nil, random.New(1))
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	p, err := g.GenerateProgram()
	if err != nil {
		t.Fatalf("GenerateProgram: %v", err)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("expected a valid program, got: %v", err)
	}
	if !g.SupportsRestart() || g.IsFinished() {
		t.Fatalf("expected V1 to support restart and never report finished")
	}
}

func TestGeneratorV2SamplesFromStats(t *testing.T) {
	st := newTestStats()
	g, err := NewGenerator(Config{Version: 2}, st, nil, random.New(2))
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	p, err := g.GenerateProgram()
	if err != nil {
		t.Fatalf("GenerateProgram: %v", err)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("expected a valid program, got: %v", err)
	}
}

func TestGeneratorV3BuildsPerPositionDistribution(t *testing.T) {
	st := newTestStats()
	g, err := NewGenerator(Config{Version: 3}, st, nil, random.New(3))
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	p, err := g.GenerateProgram()
	if err != nil {
		t.Fatalf("GenerateProgram: %v", err)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("expected a valid program, got: %v", err)
	}
	if _, _, err := g.GenerateOperation(); err == nil {
		t.Fatalf("expected GenerateOperation to be unsupported on V3")
	}
}

func TestGeneratorV4PersistsCheckpoint(t *testing.T) {
	dir := t.TempDir()
	st := newTestStats()
	cfg := Config{Version: 4, Length: 6, CheckpointDir: dir}
	g, err := NewGenerator(cfg, st, nil, random.New(4))
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	v4 := g.(*generatorV4)
	v4.checkpointEvery = 1
	if _, err := g.GenerateProgram(); err != nil {
		t.Fatalf("GenerateProgram: %v", err)
	}
	if v4.count != 1 {
		t.Fatalf("expected counter to advance, got %d", v4.count)
	}

	g2, err := NewGenerator(cfg, st, nil, random.New(5))
	if err != nil {
		t.Fatalf("NewGenerator (resume): %v", err)
	}
	if g2.(*generatorV4).count != 1 {
		t.Fatalf("expected resumed generator to reload the persisted counter")
	}
}

func TestGeneratorV5IsPlaceholder(t *testing.T) {
	g, err := NewGenerator(Config{Version: 5}, nil, nil, random.New(1))
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	if !g.IsFinished() || g.SupportsRestart() {
		t.Fatalf("expected V5 to report finished and not support restart")
	}
	if _, err := g.GenerateProgram(); err == nil {
		t.Fatalf("expected V5 GenerateProgram to error")
	}
}

func TestNewGeneratorUnknownVersion(t *testing.T) {
	if _, err := NewGenerator(Config{Version: 99}, nil, nil, random.New(1)); err == nil {
		t.Fatalf("expected an error for an unknown generator version")
	}
}

type fakeStore struct{ programs map[uid.UID]*program.Program }

func (f *fakeStore) LoadProgram(id uid.UID) (*program.Program, error) {
	if p, ok := f.programs[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("fakeStore: no program for %s", id)
}

func TestGeneratorV6MutatesLoadedTemplate(t *testing.T) {
	st := newTestStats()
	id := uid.MustNew('A', 1)
	template := program.New()
	template.Ops = []program.Operation{
		program.NewOperation(program.Mov, program.NewDirect(1), program.NewDirect(0)),
	}
	store := &fakeStore{programs: map[uid.UID]*program.Program{id: template}}

	g, err := NewGenerator(Config{Version: 6}, st, store, random.New(6))
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	if _, err := g.GenerateProgram(); err != nil {
		t.Fatalf("GenerateProgram: %v", err)
	}
}

func TestMultiGeneratorRoundRobinsAndSkipsBadSubconfigs(t *testing.T) {
	st := newTestStats()
	cfg := Config{Generators: []Config{
		{Version: 1, Length: 6},
		{Version: 7}, // no PatternsDir: fails to construct, should be skipped with a warning
		{Version: 2},
	}}
	g, err := NewGenerator(cfg, st, nil, random.New(7))
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	mg := g.(*MultiGenerator)
	if len(mg.generators) != 2 {
		t.Fatalf("expected the invalid V7 sub-config to be skipped, got %d generators", len(mg.generators))
	}
	for i := 0; i < 4; i++ {
		if _, err := g.GenerateProgram(); err != nil {
			t.Fatalf("GenerateProgram: %v", err)
		}
	}
}

func TestMultiGeneratorAllSubConfigsInvalid(t *testing.T) {
	cfg := Config{Generators: []Config{{Version: 7}, {Version: 8}}}
	if _, err := NewGenerator(cfg, nil, nil, random.New(8)); err == nil {
		t.Fatalf("expected an error when every sub-generator fails to construct")
	}
}
