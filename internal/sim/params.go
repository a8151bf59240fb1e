package sim

import (
	"fmt"

	"github.com/parsa83KH/virus/internal/entropy"
)

// Bounds for randomly generated spreading-stage parameters. Tuned for
// on-screen pacing, not epidemiological realism.
const (
	minInfectionRadius   = 25.0
	maxInfectionRadius   = 60.0
	minInfectionRate     = 0.2
	maxInfectionRate     = 0.5
	minInfectionDuration = 80
	maxInfectionDuration = 160
	minMortalityRate     = 0.1
	maxMortalityRate     = 0.3
)

// Deterministic improvement factors applied by Improved. All strictly below 1
// so the post-vaccine parameters always dominate the originals.
const (
	improveRadiusFactor    = 0.6
	improveRateFactor      = 0.5
	improveDurationFactor  = 0.6
	improveMortalityFactor = 0.4

	// Per-tick vaccination probability during distribution, before ramping.
	distributionVaccinationRate = 0.015

	// Vaccinated agents catch the infection at a tenth of the healthy rate.
	vaccinatedSusceptibility = 0.1
)

// SimulationParameters configure one stage of the simulation. Generated once
// at stage entry and held immutable for the stage's duration.
type SimulationParameters struct {
	InfectionRadius   float64 `json:"infection_radius"`   // spatial transmission threshold
	InfectionRate     float64 `json:"infection_rate"`     // per tick per qualifying pair
	InfectionDuration int     `json:"infection_duration"` // ticks; Infected resolves at 40% of it, Sick at 100%
	MortalityRate     float64 `json:"mortality_rate"`
	VaccinationRate   float64 `json:"vaccination_rate"` // zero outside the distribution stage
}

// GenerateParameters draws fresh spreading-stage parameters within the fixed
// bounds. VaccinationRate is zero; it only turns on during distribution.
func GenerateParameters(src entropy.Source) SimulationParameters {
	return SimulationParameters{
		InfectionRadius:   minInfectionRadius + src.Float64()*(maxInfectionRadius-minInfectionRadius),
		InfectionRate:     minInfectionRate + src.Float64()*(maxInfectionRate-minInfectionRate),
		InfectionDuration: minInfectionDuration + src.Intn(maxInfectionDuration-minInfectionDuration+1),
		MortalityRate:     minMortalityRate + src.Float64()*(maxMortalityRate-minMortalityRate),
		VaccinationRate:   0,
	}
}

// Improved derives the post-vaccine parameter set: a deterministic, bounded
// reduction of radius, rate, duration, and mortality, with vaccination
// enabled. Never independently random.
func (p SimulationParameters) Improved() SimulationParameters {
	duration := int(float64(p.InfectionDuration) * improveDurationFactor)
	if duration < 1 {
		duration = 1
	}
	return SimulationParameters{
		InfectionRadius:   p.InfectionRadius * improveRadiusFactor,
		InfectionRate:     p.InfectionRate * improveRateFactor,
		InfectionDuration: duration,
		MortalityRate:     p.MortalityRate * improveMortalityFactor,
		VaccinationRate:   distributionVaccinationRate,
	}
}

// Validate rejects illegal parameter sets at configuration time. Invalid
// parameters are a programming error, never checked per tick.
func (p SimulationParameters) Validate() error {
	if p.InfectionRadius <= 0 {
		return fmt.Errorf("infection radius must be positive, got %g", p.InfectionRadius)
	}
	if p.InfectionDuration <= 0 {
		return fmt.Errorf("infection duration must be positive, got %d", p.InfectionDuration)
	}
	for _, r := range []struct {
		name string
		v    float64
	}{
		{"infection rate", p.InfectionRate},
		{"mortality rate", p.MortalityRate},
		{"vaccination rate", p.VaccinationRate},
	} {
		if r.v < 0 || r.v > 1 {
			return fmt.Errorf("%s must be within [0,1], got %g", r.name, r.v)
		}
	}
	return nil
}
