package engine

import (
	"errors"
	"testing"

	"github.com/parsa83KH/virus/internal/entropy"
	"github.com/parsa83KH/virus/internal/sim"
)

func testSessionConfig() SessionConfig {
	cfg := DefaultSessionConfig()
	cfg.Population.Size = 40
	cfg.Population.SeedInfected = 3
	cfg.MaxStageTicks = 20 // spreading completes at tick 12
	cfg.MinStageTicks = 2
	cfg.SampleInterval = 1
	return cfg
}

func TestSessionRunsSpreadingToCompletion(t *testing.T) {
	s, err := NewSession(testSessionConfig(), entropy.NewPRNG(1), nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	if s.CurrentStage() != StageSpreading {
		t.Fatalf("fresh session stage = %s, want %s", s.CurrentStage(), StageSpreading)
	}
	if s.Parameters().VaccinationRate != 0 {
		t.Errorf("spreading-stage vaccination rate = %g, want 0", s.Parameters().VaccinationRate)
	}

	for i := 0; i < 100; i++ {
		s.Step()
	}
	if !s.IsComplete() {
		t.Fatal("spreading never completed within its tick budget")
	}

	// Ticks past the completion latch are no-ops.
	tick := s.CurrentTick()
	s.Step()
	if s.CurrentTick() != tick {
		t.Errorf("tick advanced past the completion latch: %d -> %d", tick, s.CurrentTick())
	}

	if len(s.OverallSeries()) == 0 {
		t.Error("no statistics samples recorded during the run")
	}
}

func TestSessionCensusInvariant(t *testing.T) {
	cfg := testSessionConfig()
	s, err := NewSession(cfg, entropy.NewPRNG(2), nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	for i := 0; i < 15; i++ {
		s.Step()
		total := 0
		for _, n := range s.Counts() {
			total += n
		}
		if total != cfg.Population.Size {
			t.Fatalf("tick %d: census sums to %d, want %d", i+1, total, cfg.Population.Size)
		}
	}
}

func TestAdvanceRejectedWhileSpreading(t *testing.T) {
	s, err := NewSession(testSessionConfig(), entropy.NewPRNG(3), nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := s.AdvanceStage(); !errors.Is(err, ErrStageNotComplete) {
		t.Errorf("premature advance: err = %v, want %v", err, ErrStageNotComplete)
	}
	if s.CurrentStage() != StageSpreading {
		t.Errorf("rejected advance changed stage to %s", s.CurrentStage())
	}
}

func TestAdvanceThroughAllStages(t *testing.T) {
	cfg := testSessionConfig()
	s, err := NewSession(cfg, entropy.NewPRNG(4), nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	for !s.IsComplete() {
		s.Step()
	}
	spreadParams := s.Parameters()

	if err := s.AdvanceStage(); err != nil {
		t.Fatalf("advance to development: %v", err)
	}
	if s.CurrentStage() != StageVaccineDeveloping {
		t.Fatalf("stage = %s, want %s", s.CurrentStage(), StageVaccineDeveloping)
	}

	// The pause swaps in improved parameters and a re-seeded population.
	improved := s.Parameters()
	if improved.InfectionRate >= spreadParams.InfectionRate {
		t.Errorf("improved rate %g not below %g", improved.InfectionRate, spreadParams.InfectionRate)
	}
	if improved.VaccinationRate <= 0 {
		t.Errorf("improved vaccination rate = %g, want positive", improved.VaccinationRate)
	}
	counts := s.Counts()
	if counts[sim.Infected] != cfg.Population.SeedInfected {
		t.Errorf("re-seeded infected = %d, want %d", counts[sim.Infected], cfg.Population.SeedInfected)
	}
	if len(s.StageSeries()) != 0 {
		t.Error("stage series not reset for the new sub-simulation")
	}

	// Stepping during the pause is a no-op.
	tick := s.CurrentTick()
	s.Step()
	if s.CurrentTick() != tick {
		t.Errorf("tick advanced during the development pause: %d -> %d", tick, s.CurrentTick())
	}

	if err := s.AdvanceStage(); err != nil {
		t.Fatalf("advance to distribution: %v", err)
	}
	if s.CurrentStage() != StageDistributing {
		t.Fatalf("stage = %s, want %s", s.CurrentStage(), StageDistributing)
	}

	// Distribution ticks run, vaccinate, and eventually complete.
	for !s.IsComplete() {
		s.Step()
	}
	if err := s.AdvanceStage(); !errors.Is(err, ErrTerminalStage) {
		t.Errorf("advance past distribution: err = %v, want %v", err, ErrTerminalStage)
	}
}

func TestSessionReset(t *testing.T) {
	s, err := NewSession(testSessionConfig(), entropy.NewPRNG(5), nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	for i := 0; i < 15; i++ {
		s.Step()
	}
	oldID := s.ID

	if err := s.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if s.ID == oldID {
		t.Error("reset kept the old run ID")
	}
	if s.CurrentTick() != 0 {
		t.Errorf("tick after reset = %d, want 0", s.CurrentTick())
	}
	if s.CurrentStage() != StageSpreading {
		t.Errorf("stage after reset = %s, want %s", s.CurrentStage(), StageSpreading)
	}
	if len(s.OverallSeries()) != 0 {
		t.Error("statistics survived the reset")
	}
}

func TestSessionReportShape(t *testing.T) {
	cfg := testSessionConfig()
	s, err := NewSession(cfg, entropy.NewPRNG(6), nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	for !s.IsComplete() {
		s.Step()
	}

	report := s.Report()
	if report.Stage != StageSpreading.String() {
		t.Errorf("report stage = %q, want %q", report.Stage, StageSpreading.String())
	}
	if report.Population != cfg.Population.Size {
		t.Errorf("report population = %d, want %d", report.Population, cfg.Population.Size)
	}
	if report.PeakInfected < cfg.Population.SeedInfected {
		t.Errorf("peak infected %d below the seeded count %d", report.PeakInfected, cfg.Population.SeedInfected)
	}
}

func TestNewSessionRejectsBadConfig(t *testing.T) {
	src := entropy.NewPRNG(1)
	cfg := testSessionConfig()
	cfg.SampleInterval = 0
	if _, err := NewSession(cfg, src, nil); err == nil {
		t.Error("zero sample interval accepted")
	}

	cfg = testSessionConfig()
	cfg.TickDT = 0
	if _, err := NewSession(cfg, src, nil); err == nil {
		t.Error("zero tick dt accepted")
	}

	cfg = testSessionConfig()
	cfg.Population.Size = 0
	if _, err := NewSession(cfg, src, nil); err == nil {
		t.Error("zero population accepted")
	}
}
