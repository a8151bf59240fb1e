// Package sim provides the agent population model and the transmission engine
// for the staged pandemic simulation.
package sim

import "fmt"

// Status is an agent's health state. Exactly one holds at any time.
type Status uint8

const (
	Healthy Status = iota
	Infected
	Sick
	Recovered
	Vaccinated
	Dead

	statusCount = 6
)

var statusNames = [statusCount]string{
	"healthy", "infected", "sick", "recovered", "vaccinated", "dead",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// MarshalJSON encodes the status as its lowercase name.
func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", s.String())), nil
}

// Infectious reports whether an agent in this state can transmit.
func (s Status) Infectious() bool { return s == Infected || s == Sick }

// Susceptible reports whether an agent in this state can catch the infection.
// Vaccination reduces susceptibility but never eliminates it.
func (s Status) Susceptible() bool { return s == Healthy || s == Vaccinated }

// Vec2 is a 2D coordinate or direction within the arena.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Agent is one simulated individual. Agents are created at run start and
// never destroyed; Dead is a terminal status, not removal.
type Agent struct {
	Position Vec2
	Velocity Vec2
	Status   Status

	// InfectionAge counts ticks since (re-)infection. Meaningless unless the
	// agent is Infected or Sick.
	InfectionAge int
}

// AgentView is a read-only agent snapshot handed to the renderer and API.
type AgentView struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Status Status  `json:"status"`
}
