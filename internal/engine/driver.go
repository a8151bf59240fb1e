package engine

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrDriverRunning is returned when Start is called on a running driver.
var ErrDriverRunning = errors.New("tick driver already running")

// Driver runs a session's tick loop at a fixed frame interval as an explicit
// start/stop task, so the core is testable without a display and a stage can
// be fully halted before the next one reinitializes the population.
type Driver struct {
	session  *SimulationSession
	interval time.Duration

	mu      sync.Mutex
	speed   float64
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewDriver creates a driver ticking at interval (30fps pacing by default).
func NewDriver(session *SimulationSession, interval time.Duration) *Driver {
	if interval <= 0 {
		interval = 33 * time.Millisecond
	}
	return &Driver{session: session, interval: interval, speed: 1.0}
}

// Start launches the tick loop goroutine. Rejected while already running so
// two drivers can never mutate the same population.
func (d *Driver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return ErrDriverRunning
	}
	d.running = true
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go d.run(d.stop, d.done)
	slog.Info("tick driver started", "interval", d.interval, "speed", d.speed)
	return nil
}

func (d *Driver) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		start := time.Now()

		d.session.Step()

		// Sleep for the remainder of the frame, adjusted for speed.
		// Cancellation only takes effect here, between frames.
		elapsed := time.Since(start)
		target := time.Duration(float64(d.interval) / d.Speed())
		wait := target - elapsed
		if wait < 0 {
			wait = 0
		}
		select {
		case <-stop:
			return
		case <-time.After(wait):
		}
	}
}

// Stop cancels the loop between frames and waits for the in-flight tick to
// finish, freezing agent state. Safe to call when not running.
func (d *Driver) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	close(d.stop)
	done := d.done
	d.running = false
	d.mu.Unlock()

	<-done
	slog.Info("tick driver stopped", "tick", d.session.CurrentTick())
}

// Running reports whether the tick loop is active.
func (d *Driver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Speed returns the current speed multiplier.
func (d *Driver) Speed() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.speed
}

// SetSpeed adjusts the tick rate multiplier. Takes effect next frame.
func (d *Driver) SetSpeed(speed float64) {
	if speed <= 0 {
		speed = 1.0
	}
	d.mu.Lock()
	d.speed = speed
	d.mu.Unlock()
}
