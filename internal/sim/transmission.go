package sim

import (
	"github.com/parsa83KH/virus/internal/entropy"
)

// Engine applies per-tick status transitions to a population: vaccination,
// proximity transmission, and illness progression. It is the sole mutator of
// agent statuses during a tick.
type Engine struct {
	src entropy.Source
}

// NewEngine creates a transmission engine drawing randomness from src.
func NewEngine(src entropy.Source) *Engine {
	return &Engine{src: src}
}

// RampFactor rises linearly from 0.5 to 1.0 over the first rampDuration ticks
// of the distribution stage, then holds at 1.0.
func RampFactor(tick, rampDuration int) float64 {
	if rampDuration <= 0 || tick >= rampDuration {
		return 1.0
	}
	if tick < 0 {
		tick = 0
	}
	return 0.5 + 0.5*float64(tick)/float64(rampDuration)
}

// ApplyVaccination transitions Healthy agents to Vaccinated with probability
// vaccinationRate scaled by the ramp factor. Only active when the rate is
// positive, i.e. during the distribution stage.
func (e *Engine) ApplyVaccination(p *Population, params SimulationParameters, ticksSinceStageStart, rampDuration int) {
	if params.VaccinationRate <= 0 {
		return
	}
	prob := params.VaccinationRate * RampFactor(ticksSinceStageStart, rampDuration)
	for i := range p.agents {
		a := &p.agents[i]
		if a.Status != Healthy {
			continue
		}
		if e.src.Float64() < prob {
			a.Status = Vaccinated
		}
	}
}

// ApplyTransmission infects susceptible agents within infectionRadius of an
// infectious one. Statuses are snapshotted at tick start and transitions
// applied against that snapshot, so an agent flips at most once per tick and
// pair evaluation order cannot double-transition anyone.
func (e *Engine) ApplyTransmission(p *Population, params SimulationParameters) {
	statuses := make([]Status, len(p.agents))
	for i := range p.agents {
		statuses[i] = p.agents[i].Status
	}

	var infectious []int
	for i, s := range statuses {
		if s.Infectious() {
			infectious = append(infectious, i)
		}
	}
	if len(infectious) == 0 {
		return
	}

	radiusSq := params.InfectionRadius * params.InfectionRadius
	for i, s := range statuses {
		if !s.Susceptible() {
			continue
		}
		prob := params.InfectionRate
		if s == Vaccinated {
			prob *= vaccinatedSusceptibility
		}
		for _, j := range infectious {
			dx := p.agents[i].Position.X - p.agents[j].Position.X
			dy := p.agents[i].Position.Y - p.agents[j].Position.Y
			if dx*dx+dy*dy >= radiusSq {
				continue
			}
			if e.src.Float64() < prob {
				p.agents[i].Status = Infected
				p.agents[i].InfectionAge = 0
				break
			}
		}
	}
}

// ProgressIllness ages every Infected and Sick agent one tick and resolves
// the two checkpoints: Infected past 40% of the infection duration become
// Dead with probability mortality*0.5, otherwise Sick; Sick past the full
// duration become Dead with probability mortality, otherwise Recovered.
func (e *Engine) ProgressIllness(p *Population, params SimulationParameters) {
	sickThreshold := 0.4 * float64(params.InfectionDuration)
	for i := range p.agents {
		a := &p.agents[i]
		switch a.Status {
		case Infected:
			a.InfectionAge++
			if float64(a.InfectionAge) > sickThreshold {
				if e.src.Float64() < params.MortalityRate*0.5 {
					a.Status = Dead
				} else {
					a.Status = Sick
				}
			}
		case Sick:
			a.InfectionAge++
			if a.InfectionAge > params.InfectionDuration {
				if e.src.Float64() < params.MortalityRate {
					a.Status = Dead
				} else {
					a.Status = Recovered
				}
			}
		}
	}
}
