package persistence

import (
	"testing"

	"github.com/parsa83KH/virus/internal/sim"
	"github.com/parsa83KH/virus/internal/stats"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testSample(tick uint64, healthy, infected int) stats.Sample {
	return stats.Sample{
		Tick: tick,
		Counts: map[sim.Status]int{
			sim.Healthy:  healthy,
			sim.Infected: infected,
		},
	}
}

func TestSampleRoundTrip(t *testing.T) {
	store := openTestStore(t)

	sample := stats.Sample{
		Tick: 10,
		Counts: map[sim.Status]int{
			sim.Healthy:    250,
			sim.Infected:   30,
			sim.Sick:       10,
			sim.Recovered:  5,
			sim.Vaccinated: 3,
			sim.Dead:       2,
		},
	}
	if err := store.RecordSample("run-1", 0, sample); err != nil {
		t.Fatalf("RecordSample: %v", err)
	}

	rows, err := store.SampleHistory("run-1", 0, 100, 10)
	if err != nil {
		t.Fatalf("SampleHistory: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("history has %d rows, want 1", len(rows))
	}

	row := rows[0]
	if row.RunID != "run-1" || row.Stage != 0 || row.Tick != 10 {
		t.Errorf("row identity = %+v", row)
	}
	if row.Healthy != 250 || row.Infected != 30 || row.Sick != 10 ||
		row.Recovered != 5 || row.Vaccinated != 3 || row.Dead != 2 {
		t.Errorf("row counts diverge from the recorded sample: %+v", row)
	}
}

func TestSampleHistoryRangeAndOrder(t *testing.T) {
	store := openTestStore(t)

	for tick := uint64(10); tick <= 50; tick += 10 {
		if err := store.RecordSample("run-1", 0, testSample(tick, 300-int(tick), int(tick))); err != nil {
			t.Fatalf("RecordSample tick %d: %v", tick, err)
		}
	}
	// A second run must not bleed into the first run's history.
	if err := store.RecordSample("run-2", 0, testSample(10, 1, 1)); err != nil {
		t.Fatalf("RecordSample other run: %v", err)
	}

	rows, err := store.SampleHistory("run-1", 20, 40, 10)
	if err != nil {
		t.Fatalf("SampleHistory: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("ranged history has %d rows, want 3", len(rows))
	}
	for i, want := range []uint64{20, 30, 40} {
		if rows[i].Tick != want {
			t.Errorf("row %d tick = %d, want %d (oldest first)", i, rows[i].Tick, want)
		}
	}

	limited, err := store.SampleHistory("run-1", 0, 100, 2)
	if err != nil {
		t.Fatalf("SampleHistory limited: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limit ignored: got %d rows", len(limited))
	}
}

func TestSampleUpsert(t *testing.T) {
	store := openTestStore(t)

	if err := store.RecordSample("run-1", 0, testSample(10, 290, 10)); err != nil {
		t.Fatalf("RecordSample: %v", err)
	}
	if err := store.RecordSample("run-1", 2, testSample(10, 100, 200)); err != nil {
		t.Fatalf("RecordSample rewrite: %v", err)
	}

	rows, err := store.SampleHistory("run-1", 0, 100, 10)
	if err != nil {
		t.Fatalf("SampleHistory: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rewrite duplicated the tick: %d rows", len(rows))
	}
	if rows[0].Stage != 2 || rows[0].Infected != 200 {
		t.Errorf("rewrite not applied: %+v", rows[0])
	}
}

func TestEventsNewestFirst(t *testing.T) {
	store := openTestStore(t)

	events := []string{"outbreak seeded", "spreading stage complete", "vaccine developed"}
	for i, desc := range events {
		if err := store.RecordEvent("run-1", uint64(i*100), desc, "stage"); err != nil {
			t.Fatalf("RecordEvent: %v", err)
		}
	}

	got, err := store.RecentEvents("run-1", 2)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].Description != "vaccine developed" || got[1].Description != "spreading stage complete" {
		t.Errorf("events not newest first: %+v", got)
	}
	if got[0].Category != "stage" {
		t.Errorf("category = %q, want stage", got[0].Category)
	}
}

func TestRecentEventsEmptyRun(t *testing.T) {
	store := openTestStore(t)
	got, err := store.RecentEvents("no-such-run", 10)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("unknown run returned %d events", len(got))
	}
}
