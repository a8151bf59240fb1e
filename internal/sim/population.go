package sim

import (
	"fmt"
	"math"

	"github.com/parsa83KH/virus/internal/entropy"
)

// Config holds population construction parameters.
type Config struct {
	Size         int     // total agents; invariant for the whole run
	SeedInfected int     // agents starting out Infected
	ArenaWidth   float64 // arena bounds; reflection, not torus
	ArenaHeight  float64
	Speed        float64 // constant velocity magnitude
	DeadFriction float64 // per-tick velocity decay for dead agents, < 1
}

// DefaultConfig matches the on-screen arena of the presentation.
func DefaultConfig() Config {
	return Config{
		Size:         300,
		SeedInfected: 5,
		ArenaWidth:   800,
		ArenaHeight:  500,
		Speed:        1.5,
		DeadFriction: 0.9,
	}
}

// Validate fails fast on configuration errors instead of clamping them.
func (c Config) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("population size must be positive, got %d", c.Size)
	}
	if c.SeedInfected < 0 || c.SeedInfected > c.Size {
		return fmt.Errorf("seed infected count %d outside [0, %d]", c.SeedInfected, c.Size)
	}
	if c.ArenaWidth <= 0 || c.ArenaHeight <= 0 {
		return fmt.Errorf("arena dimensions must be positive, got %gx%g", c.ArenaWidth, c.ArenaHeight)
	}
	if c.Speed <= 0 {
		return fmt.Errorf("agent speed must be positive, got %g", c.Speed)
	}
	if c.DeadFriction <= 0 || c.DeadFriction >= 1 {
		return fmt.Errorf("dead friction must be within (0,1), got %g", c.DeadFriction)
	}
	return nil
}

// Population owns the agent collection and basic kinematics. The transmission
// engine is the only component that mutates agent statuses; everything else
// reads through CountsByStatus and Snapshot.
type Population struct {
	cfg    Config
	agents []Agent
}

// NewPopulation creates cfg.Size agents at uniformly random positions with
// random unit-direction velocities at cfg.Speed. cfg.SeedInfected agents,
// chosen uniformly at random, start Infected with infection age zero.
func NewPopulation(cfg Config, src entropy.Source) (*Population, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("population config: %w", err)
	}

	agents := make([]Agent, cfg.Size)
	for i := range agents {
		angle := src.Float64() * 2 * math.Pi
		agents[i] = Agent{
			Position: Vec2{X: src.Float64() * cfg.ArenaWidth, Y: src.Float64() * cfg.ArenaHeight},
			Velocity: Vec2{X: math.Cos(angle) * cfg.Speed, Y: math.Sin(angle) * cfg.Speed},
			Status:   Healthy,
		}
	}

	// Seed infections without replacement via a partial shuffle.
	perm := make([]int, cfg.Size)
	for i := range perm {
		perm[i] = i
	}
	for i := 0; i < cfg.SeedInfected; i++ {
		j := i + src.Intn(cfg.Size-i)
		perm[i], perm[j] = perm[j], perm[i]
		agents[perm[i]].Status = Infected
		agents[perm[i]].InfectionAge = 0
	}

	return &Population{cfg: cfg, agents: agents}, nil
}

// Size returns the fixed population size.
func (p *Population) Size() int { return len(p.agents) }

// Config returns the configuration the population was built with.
func (p *Population) Config() Config { return p.cfg }

// Tick advances every agent's position by velocity*dt, reflecting off arena
// boundaries. Dead agents keep drifting at a decaying velocity so they
// visually settle rather than freeze in place.
func (p *Population) Tick(dt float64) {
	for i := range p.agents {
		a := &p.agents[i]
		if a.Status == Dead {
			a.Velocity.X *= p.cfg.DeadFriction
			a.Velocity.Y *= p.cfg.DeadFriction
		}
		a.Position.X += a.Velocity.X * dt
		a.Position.Y += a.Velocity.Y * dt

		if a.Position.X < 0 {
			a.Position.X = 0
			a.Velocity.X = -a.Velocity.X
		} else if a.Position.X > p.cfg.ArenaWidth {
			a.Position.X = p.cfg.ArenaWidth
			a.Velocity.X = -a.Velocity.X
		}
		if a.Position.Y < 0 {
			a.Position.Y = 0
			a.Velocity.Y = -a.Velocity.Y
		} else if a.Position.Y > p.cfg.ArenaHeight {
			a.Position.Y = p.cfg.ArenaHeight
			a.Velocity.Y = -a.Velocity.Y
		}
	}
}

// CountsByStatus returns the current census. Every status key is present and
// the counts always sum to the population size.
func (p *Population) CountsByStatus() map[Status]int {
	counts := make(map[Status]int, statusCount)
	for s := Status(0); s < statusCount; s++ {
		counts[s] = 0
	}
	for i := range p.agents {
		counts[p.agents[i].Status]++
	}
	return counts
}

// Snapshot returns a read-only view of agent positions and statuses for the
// renderer and API.
func (p *Population) Snapshot() []AgentView {
	views := make([]AgentView, len(p.agents))
	for i := range p.agents {
		views[i] = AgentView{
			X:      p.agents[i].Position.X,
			Y:      p.agents[i].Position.Y,
			Status: p.agents[i].Status,
		}
	}
	return views
}
