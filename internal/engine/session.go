package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/parsa83KH/virus/internal/entropy"
	"github.com/parsa83KH/virus/internal/llm"
	"github.com/parsa83KH/virus/internal/persistence"
	"github.com/parsa83KH/virus/internal/sim"
	"github.com/parsa83KH/virus/internal/stats"
)

// SessionConfig holds everything a run needs up front.
type SessionConfig struct {
	Population     sim.Config
	MaxStageTicks  uint64  // full tick budget per simulated stage
	MinStageTicks  uint64  // die-out completion ignored before this
	SampleInterval uint64  // statistics sampling cadence in ticks
	RampDuration   int     // vaccination ramp length in ticks
	TickDT         float64 // kinematics step per tick
}

// DefaultSessionConfig matches the pacing of the page frontend.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Population:     sim.DefaultConfig(),
		MaxStageTicks:  1200,
		MinStageTicks:  120,
		SampleInterval: 10,
		RampDuration:   100,
		TickDT:         1.0,
	}
}

// SimulationSession owns one run: population, transmission engine, stage
// controller, statistics aggregator, and parameters. A single mutex enforces
// the one-writer-per-tick discipline; the tick driver is the only caller of
// Step.
type SimulationSession struct {
	ID uuid.UUID

	mu     sync.Mutex
	cfg    SessionConfig
	src    entropy.Source
	pop    *sim.Population
	eng    *sim.Engine
	params sim.SimulationParameters
	stages *StageController
	agg    *stats.Aggregator
	store  *persistence.Store // optional
	tick   uint64             // monotonic across the whole run
}

// NewSession builds a fresh run in the Spreading stage with randomly drawn
// parameters. store may be nil when no history endpoint is served.
func NewSession(cfg SessionConfig, src entropy.Source, store *persistence.Store) (*SimulationSession, error) {
	if cfg.SampleInterval == 0 {
		return nil, fmt.Errorf("sample interval must be positive")
	}
	if cfg.TickDT <= 0 {
		return nil, fmt.Errorf("tick dt must be positive, got %g", cfg.TickDT)
	}
	if cfg.RampDuration <= 0 {
		return nil, fmt.Errorf("ramp duration must be positive, got %d", cfg.RampDuration)
	}

	s := &SimulationSession{
		ID:    uuid.New(),
		cfg:   cfg,
		src:   src,
		store: store,
	}
	if err := s.start(); err != nil {
		return nil, err
	}
	return s, nil
}

// start (re)initializes all per-run state. Caller holds no lock on the
// NewSession path; Reset locks before calling.
func (s *SimulationSession) start() error {
	params := sim.GenerateParameters(s.src)
	if err := params.Validate(); err != nil {
		return fmt.Errorf("generated parameters: %w", err)
	}

	pop, err := sim.NewPopulation(s.cfg.Population, s.src)
	if err != nil {
		return err
	}

	stages, err := NewStageController(s.cfg.MaxStageTicks, s.cfg.MinStageTicks)
	if err != nil {
		return err
	}

	agg, err := stats.NewAggregator(s.cfg.Population.Size, s.cfg.SampleInterval)
	if err != nil {
		return err
	}

	s.pop = pop
	s.eng = sim.NewEngine(s.src)
	s.params = params
	s.stages = stages
	s.agg = agg
	s.tick = 0

	slog.Info("simulation session ready",
		"run", s.ID,
		"population", s.cfg.Population.Size,
		"seed_infected", s.cfg.Population.SeedInfected,
		"infection_radius", fmt.Sprintf("%.1f", params.InfectionRadius),
		"infection_rate", fmt.Sprintf("%.3f", params.InfectionRate),
		"infection_duration", params.InfectionDuration,
		"mortality_rate", fmt.Sprintf("%.3f", params.MortalityRate),
	)
	return nil
}

// Step advances the simulation by exactly one tick: vaccination,
// transmission, illness progression, movement, then sampling. It runs to
// completion under the session lock, so samples never observe a half-applied
// tick. No-op during the vaccine-development pause and while a completed
// stage waits for its advance trigger.
func (s *SimulationSession) Step() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stages.Current() == StageVaccineDeveloping || s.stages.Complete() {
		return
	}

	s.tick++
	ticksInStage := int(s.stages.TicksInStage())

	if s.params.VaccinationRate > 0 {
		s.eng.ApplyVaccination(s.pop, s.params, ticksInStage, s.cfg.RampDuration)
	}
	s.eng.ApplyTransmission(s.pop, s.params)
	s.eng.ProgressIllness(s.pop, s.params)
	s.pop.Tick(s.cfg.TickDT)

	counts := s.pop.CountsByStatus()
	active := counts[sim.Infected] + counts[sim.Sick]
	s.stages.Observe(active)
	s.agg.ObserveActive(active)

	if s.agg.Record(s.tick, counts) && s.store != nil {
		sample, _ := s.agg.Latest()
		if err := s.store.RecordSample(s.ID.String(), int(s.stages.Current()), sample); err != nil {
			slog.Warn("sample persist failed", "tick", s.tick, "error", err)
		}
	}

	if s.stages.Complete() {
		s.recordEvent(fmt.Sprintf("%s stage complete after %d ticks (%d active infections)",
			s.stages.Current(), s.stages.TicksInStage(), active), "stage")
		slog.Info("stage complete",
			"run", s.ID,
			"stage", s.stages.Current().String(),
			"tick", s.tick,
			"active_infections", active,
		)
	}
}

// recordEvent persists a run event; failures are logged, never propagated.
// Caller holds the session lock.
func (s *SimulationSession) recordEvent(description, category string) {
	if s.store == nil {
		return
	}
	if err := s.store.RecordEvent(s.ID.String(), s.tick, description, category); err != nil {
		slog.Warn("event persist failed", "error", err)
	}
}

// AdvanceStage moves the run to its next stage. Spreading→VaccineDeveloping
// computes the improved parameters, re-seeds a fresh population identical in
// shape to the initial seeding, and resets the per-stage statistics series.
// VaccineDeveloping→Distributing begins ticking under the improved
// parameters with vaccination active. Advancing an incomplete or terminal
// stage returns the controller's error with no state change.
func (s *SimulationSession) AdvanceStage() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.stages.Current()
	if err := s.stages.Advance(); err != nil {
		return err
	}

	switch from {
	case StageSpreading:
		s.params = s.params.Improved()
		pop, err := sim.NewPopulation(s.cfg.Population, s.src)
		if err != nil {
			// Config was valid at session start; a failure here is a bug.
			return fmt.Errorf("reseed population: %w", err)
		}
		s.pop = pop
		s.agg.ResetStage()
		s.recordEvent("vaccine developed, population re-seeded for distribution", "stage")
		slog.Info("vaccine developed",
			"run", s.ID,
			"infection_radius", fmt.Sprintf("%.1f", s.params.InfectionRadius),
			"infection_rate", fmt.Sprintf("%.3f", s.params.InfectionRate),
			"mortality_rate", fmt.Sprintf("%.3f", s.params.MortalityRate),
			"vaccination_rate", fmt.Sprintf("%.3f", s.params.VaccinationRate),
		)
	case StageVaccineDeveloping:
		s.recordEvent("vaccine distribution started", "stage")
		slog.Info("vaccine distribution started", "run", s.ID)
	}
	return nil
}

// Reset throws away all run state and begins a new Spreading stage with
// freshly drawn parameters. The caller must stop the tick driver first.
func (s *SimulationSession) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ID = uuid.New()
	return s.start()
}

// CurrentStage returns the active stage.
func (s *SimulationSession) CurrentStage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stages.Current()
}

// IsComplete reports whether the active stage has latched completion.
func (s *SimulationSession) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stages.Complete()
}

// CurrentTick returns the monotonic run tick.
func (s *SimulationSession) CurrentTick() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// Parameters returns the active stage's parameter set.
func (s *SimulationSession) Parameters() sim.SimulationParameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// Counts returns the current census.
func (s *SimulationSession) Counts() map[sim.Status]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pop.CountsByStatus()
}

// AgentSnapshot returns a read-only agent view for rendering.
func (s *SimulationSession) AgentSnapshot() []sim.AgentView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pop.Snapshot()
}

// OverallSeries returns the whole-run statistics series.
func (s *SimulationSession) OverallSeries() []stats.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agg.Overall()
}

// StageSeries returns the current stage's statistics series.
func (s *SimulationSession) StageSeries() []stats.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agg.StageSeries()
}

// Report exports the data the narrative collaborator receives: final
// statistics of the run so far plus current stage parameters.
func (s *SimulationSession) Report() llm.StageReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := s.pop.CountsByStatus()
	return llm.StageReport{
		Stage:           s.stages.Current().String(),
		Population:      s.pop.Size(),
		PeakInfected:    s.agg.PeakInfected(),
		TotalDeaths:     counts[sim.Dead],
		TotalRecovered:  counts[sim.Recovered],
		TotalVaccinated: counts[sim.Vaccinated],
		InfectionRadius: s.params.InfectionRadius,
		InfectionRate:   s.params.InfectionRate,
		MortalityRate:   s.params.MortalityRate,
		VaccinationRate: s.params.VaccinationRate,
	}
}
