// Package stats aggregates per-tick status censuses into time series for
// charting and stage reports.
package stats

import (
	"fmt"

	"github.com/parsa83KH/virus/internal/sim"
)

// Sample is one census taken at a tick boundary. Counts always sum to the
// fixed population size.
type Sample struct {
	Tick   uint64             `json:"tick"`
	Counts map[sim.Status]int `json:"counts"`
}

// Aggregator keeps two independent series: the overall series spanning the
// whole run (main chart) and a per-stage series reset whenever a stage
// restarts its sub-simulation (mini chart comparing stages side by side).
type Aggregator struct {
	population int
	interval   uint64

	overall []Sample
	stage   []Sample

	peakInfected int
}

// NewAggregator creates an aggregator sampling every interval ticks for a
// population of the given fixed size.
func NewAggregator(population int, interval uint64) (*Aggregator, error) {
	if population <= 0 {
		return nil, fmt.Errorf("population size must be positive, got %d", population)
	}
	if interval == 0 {
		return nil, fmt.Errorf("sample interval must be positive")
	}
	return &Aggregator{population: population, interval: interval}, nil
}

// Interval returns the configured sampling interval in ticks.
func (a *Aggregator) Interval() uint64 { return a.interval }

// Record appends a sample to both series when tick falls on the sampling
// interval and is strictly greater than the last recorded tick. Returns true
// when a sample was taken.
func (a *Aggregator) Record(tick uint64, counts map[sim.Status]int) bool {
	if tick%a.interval != 0 {
		return false
	}
	if n := len(a.overall); n > 0 && tick <= a.overall[n-1].Tick {
		return false
	}

	copied := make(map[sim.Status]int, len(counts))
	for s, c := range counts {
		copied[s] = c
	}
	sample := Sample{Tick: tick, Counts: copied}
	a.overall = append(a.overall, sample)
	a.stage = append(a.stage, sample)
	return true
}

// ObserveActive folds one tick's active case count into the peak tracker.
// Called every tick, so peaks between samples are never missed.
func (a *Aggregator) ObserveActive(active int) {
	if active > a.peakInfected {
		a.peakInfected = active
	}
}

// ResetStage clears the per-stage series for a restarted sub-simulation. The
// overall series is retained.
func (a *Aggregator) ResetStage() {
	a.stage = nil
}

// Overall returns a copy of the whole-run series.
func (a *Aggregator) Overall() []Sample {
	out := make([]Sample, len(a.overall))
	copy(out, a.overall)
	return out
}

// StageSeries returns a copy of the current stage's series.
func (a *Aggregator) StageSeries() []Sample {
	out := make([]Sample, len(a.stage))
	copy(out, a.stage)
	return out
}

// Latest returns the most recent overall sample, if any.
func (a *Aggregator) Latest() (Sample, bool) {
	if len(a.overall) == 0 {
		return Sample{}, false
	}
	return a.overall[len(a.overall)-1], true
}

// PeakInfected returns the highest concurrent Infected+Sick count observed
// across the run.
func (a *Aggregator) PeakInfected() int { return a.peakInfected }

// Population returns the fixed population size samples must sum to.
func (a *Aggregator) Population() int { return a.population }
