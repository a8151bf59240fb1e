// Command virussim runs the pandemic particle simulation.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/parsa83KH/virus/internal/api"
	"github.com/parsa83KH/virus/internal/engine"
	"github.com/parsa83KH/virus/internal/entropy"
	"github.com/parsa83KH/virus/internal/llm"
	"github.com/parsa83KH/virus/internal/persistence"
	"github.com/parsa83KH/virus/internal/render"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("Virus — pandemic particle simulation")

	apiPort := 8080
	if p := os.Getenv("PORT"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 && v < 65536 {
			apiPort = v
		}
	}

	// ── Entropy source ────────────────────────────────────────────────
	// SEED pins a deterministic PRNG run. Otherwise prefer random.org
	// when a key is set, falling back to crypto/rand.
	var src entropy.Source
	switch {
	case os.Getenv("SEED") != "":
		seed, err := strconv.ParseInt(os.Getenv("SEED"), 10, 64)
		if err != nil {
			slog.Error("invalid SEED", "error", err)
			os.Exit(1)
		}
		src = entropy.NewPRNG(seed)
		slog.Info("entropy: seeded PRNG", "seed", seed)
	case os.Getenv("RANDOM_ORG_KEY") != "":
		client := entropy.NewClient(os.Getenv("RANDOM_ORG_KEY"))
		if client.Enabled() {
			src = client
			slog.Info("entropy: random.org with crypto/rand fallback")
		} else {
			src = entropy.Crypto{}
			slog.Warn("random.org client unavailable, using crypto/rand")
		}
	default:
		src = entropy.Crypto{}
		slog.Info("entropy: crypto/rand")
	}

	// ── History store (in-memory, per process) ────────────────────────
	store, err := persistence.Open()
	if err != nil {
		slog.Error("failed to open history store", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("history store ready")

	// ── Session ───────────────────────────────────────────────────────
	cfg := engine.DefaultSessionConfig()
	session, err := engine.NewSession(cfg, src, store)
	if err != nil {
		slog.Error("failed to create session", "error", err)
		os.Exit(1)
	}

	driver := engine.NewDriver(session, 33*time.Millisecond)

	// ── LLM client ────────────────────────────────────────────────────
	llmClient := llm.NewClient(os.Getenv("ANTHROPIC_API_KEY"))
	if llmClient != nil {
		slog.Info("LLM client enabled (Haiku)")
	} else {
		slog.Warn("ANTHROPIC_API_KEY not set — stage narratives will use the local fallback")
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	adminKey := os.Getenv("VIRUSSIM_ADMIN_KEY")
	if adminKey == "" {
		slog.Warn("VIRUSSIM_ADMIN_KEY not set — control POST endpoints will be disabled")
	}

	apiServer := &api.Server{
		Session:  session,
		Driver:   driver,
		LLM:      llmClient,
		Store:    store,
		Port:     apiPort,
		AdminKey: adminKey,
	}
	apiServer.Start()

	// REPLAY_PATH enables an MJPEG recording of the arena while the driver
	// runs. Frames are sampled on a fixed wall-clock cadence.
	var recorder *render.FrameRecorder
	recStop := make(chan struct{})
	if path := os.Getenv("REPLAY_PATH"); path != "" {
		recorder, err = render.NewFrameRecorder(path, cfg.Population.ArenaWidth, cfg.Population.ArenaHeight, 10)
		if err != nil {
			slog.Error("replay recorder failed", "error", err)
			os.Exit(1)
		}
		slog.Info("replay recording enabled", "path", path)
		go func() {
			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-recStop:
					return
				case <-ticker.C:
					if !driver.Running() {
						continue
					}
					if err := recorder.AddFrame(session.AgentSnapshot()); err != nil {
						slog.Warn("replay frame dropped", "error", err)
					}
				}
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Printf("Outbreak seeded: %d agents, %d infected.\n",
		cfg.Population.Size, cfg.Population.SeedInfected)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", apiPort)

	// AUTORUN=1 drives all three stages without operator input.
	if os.Getenv("AUTORUN") == "1" {
		go autorun(session, driver, llmClient)
	}

	fmt.Println("Simulation ready. (Ctrl+C to stop)")
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)
	driver.Stop()

	close(recStop)
	if recorder != nil {
		if err := recorder.Close(); err != nil {
			slog.Error("replay close failed", "error", err)
		} else {
			slog.Info("replay written", "frames", recorder.Frames())
		}
	}

	exportChart(session)
	fmt.Println("Simulation stopped.")
}

// autorun plays the whole run hands-free: spread to completion, develop the
// vaccine, distribute, then print each stage narrative.
func autorun(session *engine.SimulationSession, driver *engine.Driver, llmClient *llm.Client) {
	if err := driver.Start(); err != nil {
		slog.Error("autorun start failed", "error", err)
		return
	}

	waitComplete := func() {
		for !session.IsComplete() {
			time.Sleep(250 * time.Millisecond)
		}
	}

	waitComplete()
	driver.Stop()
	logNarrative(llmClient, session)

	// Develop the vaccine.
	if err := session.AdvanceStage(); err != nil {
		slog.Error("autorun advance failed", "error", err)
		return
	}
	logNarrative(llmClient, session)

	// Distribute it.
	if err := session.AdvanceStage(); err != nil {
		slog.Error("autorun advance failed", "error", err)
		return
	}
	if err := driver.Start(); err != nil {
		slog.Error("autorun restart failed", "error", err)
		return
	}

	waitComplete()
	driver.Stop()
	logNarrative(llmClient, session)

	slog.Info("autorun finished", "tick", session.CurrentTick())
}

func logNarrative(client *llm.Client, session *engine.SimulationSession) {
	narrative := llm.GenerateStageNarrative(client, session.Report())
	slog.Info("stage narrative",
		"stage", narrative.Stage,
		"fallback", narrative.Fallback,
		"charts", len(narrative.Charts),
	)
	fmt.Println("\n" + narrative.Text + "\n")
}

// exportChart writes the final status chart, if enough history exists.
func exportChart(session *engine.SimulationSession) {
	series := session.OverallSeries()
	png, err := render.StatusChart(series, 1000, 500)
	if err != nil {
		slog.Info("skipping chart export", "reason", err)
		return
	}
	path := "virussim-chart.png"
	if err := os.WriteFile(path, png, 0644); err != nil {
		slog.Error("chart export failed", "error", err)
		return
	}
	slog.Info("chart exported", "path", path, "samples", len(series))
}
