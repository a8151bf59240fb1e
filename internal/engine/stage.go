// Package engine owns the staged simulation lifecycle: the stage state
// machine, the per-run session, and the tick driver.
package engine

import (
	"errors"
	"fmt"
)

// Stage identifies one phase of the three-stage lifecycle.
type Stage uint8

const (
	StageSpreading Stage = iota
	StageVaccineDeveloping
	StageDistributing
)

var stageNames = [...]string{"spreading", "vaccine-developing", "distributing"}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}

// MarshalJSON encodes the stage as its name.
func (s Stage) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", s.String())), nil
}

// Stage transition errors. These are caller errors; they never corrupt state.
var (
	ErrStageNotComplete = errors.New("current stage is not complete")
	ErrTerminalStage    = errors.New("distribution stage is terminal")
)

// StageController tracks the current stage, its elapsed ticks, and the
// completion latch. Transitions are one-directional and only happen through
// Advance, driven by an explicit external trigger.
type StageController struct {
	stage        Stage
	complete     bool
	ticksInStage uint64

	maxTicks uint64 // full tick budget; spreading completes at 60% of it
	minTicks uint64 // die-out completion is not honored before this
}

// NewStageController creates a controller in the Spreading stage.
func NewStageController(maxTicks, minTicks uint64) (*StageController, error) {
	if maxTicks == 0 {
		return nil, fmt.Errorf("max tick budget must be positive")
	}
	if minTicks > maxTicks {
		return nil, fmt.Errorf("min tick threshold %d exceeds max budget %d", minTicks, maxTicks)
	}
	return &StageController{stage: StageSpreading, maxTicks: maxTicks, minTicks: minTicks}, nil
}

// Observe feeds the controller one tick's active infection count and updates
// the completion latch. Completion latches: once set it stays set until the
// stage advances.
func (c *StageController) Observe(activeInfections int) {
	c.ticksInStage++
	if c.complete {
		return
	}

	dieOut := activeInfections == 0 && c.ticksInStage >= c.minTicks
	switch c.stage {
	case StageSpreading:
		if c.ticksInStage >= c.spreadBudget() || dieOut {
			c.complete = true
		}
	case StageDistributing:
		if c.ticksInStage >= c.maxTicks || dieOut {
			c.complete = true
		}
	}
}

func (c *StageController) spreadBudget() uint64 {
	return c.maxTicks * 6 / 10
}

// Advance moves to the next stage. Spreading must report complete first;
// the vaccine-development pause advances on request; distribution is
// terminal. A rejected advance leaves the controller untouched.
func (c *StageController) Advance() error {
	switch c.stage {
	case StageSpreading:
		if !c.complete {
			return ErrStageNotComplete
		}
		c.stage = StageVaccineDeveloping
		c.complete = true // the pause has no completion condition of its own
		c.ticksInStage = 0
	case StageVaccineDeveloping:
		c.stage = StageDistributing
		c.complete = false
		c.ticksInStage = 0
	case StageDistributing:
		return ErrTerminalStage
	}
	return nil
}

// Current returns the active stage.
func (c *StageController) Current() Stage { return c.stage }

// Complete reports whether the active stage has latched completion.
func (c *StageController) Complete() bool { return c.complete }

// TicksInStage returns ticks elapsed since the current stage started.
func (c *StageController) TicksInStage() uint64 { return c.ticksInStage }
