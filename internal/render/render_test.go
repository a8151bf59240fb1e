package render

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/parsa83KH/virus/internal/sim"
	"github.com/parsa83KH/virus/internal/stats"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func chartSeries(n int) []stats.Sample {
	series := make([]stats.Sample, n)
	for i := range series {
		series[i] = stats.Sample{
			Tick: uint64((i + 1) * 10),
			Counts: map[sim.Status]int{
				sim.Healthy:  300 - i*10,
				sim.Infected: i * 10,
			},
		}
	}
	return series
}

func TestStatusChartRendersPNG(t *testing.T) {
	png, err := StatusChart(chartSeries(10), 800, 400)
	if err != nil {
		t.Fatalf("StatusChart: %v", err)
	}
	if !bytes.HasPrefix(png, pngMagic) {
		t.Error("output is not a PNG")
	}
}

func TestStatusChartNeedsTwoSamples(t *testing.T) {
	if _, err := StatusChart(nil, 800, 400); err == nil {
		t.Error("empty series accepted")
	}
	if _, err := StatusChart(chartSeries(1), 800, 400); err == nil {
		t.Error("single-sample series accepted")
	}
}

func TestFrameRecorderWritesReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replay.avi")
	rec, err := NewFrameRecorder(path, 200, 100, 10)
	if err != nil {
		t.Fatalf("NewFrameRecorder: %v", err)
	}

	snapshot := []sim.AgentView{
		{X: 10, Y: 10, Status: sim.Healthy},
		{X: 50, Y: 50, Status: sim.Infected},
		{X: 190, Y: 90, Status: sim.Dead},
	}
	for i := 0; i < 5; i++ {
		if err := rec.AddFrame(snapshot); err != nil {
			t.Fatalf("AddFrame %d: %v", i, err)
		}
	}
	if rec.Frames() != 5 {
		t.Errorf("frame count = %d, want 5", rec.Frames())
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("replay file missing: %v", err)
	}
	if info.Size() == 0 {
		t.Error("replay file is empty")
	}
}

func TestFrameRecorderRejectsBadArena(t *testing.T) {
	if _, err := NewFrameRecorder(filepath.Join(t.TempDir(), "x.avi"), 0, 100, 10); err == nil {
		t.Error("zero-width arena accepted")
	}
}

func TestDensityFieldShapeAndRange(t *testing.T) {
	field, err := DensityField(42, 16, 8, 3)
	if err != nil {
		t.Fatalf("DensityField: %v", err)
	}
	if len(field) != 8 {
		t.Fatalf("field has %d rows, want 8", len(field))
	}
	for y, row := range field {
		if len(row) != 16 {
			t.Fatalf("row %d has %d cols, want 16", y, len(row))
		}
		for x, v := range row {
			if v < 0 || v > 1 {
				t.Fatalf("field[%d][%d] = %g outside [0, 1]", y, x, v)
			}
		}
	}
}

func TestDensityFieldDeterministic(t *testing.T) {
	a, err := DensityField(7, 8, 8, 3)
	if err != nil {
		t.Fatalf("DensityField: %v", err)
	}
	b, err := DensityField(7, 8, 8, 3)
	if err != nil {
		t.Fatalf("DensityField: %v", err)
	}
	for y := range a {
		for x := range a[y] {
			if a[y][x] != b[y][x] {
				t.Fatalf("same seed diverged at [%d][%d]", y, x)
			}
		}
	}
}

func TestDensityFieldRejectsBadDimensions(t *testing.T) {
	if _, err := DensityField(1, 0, 8, 3); err == nil {
		t.Error("zero columns accepted")
	}
	if _, err := DensityField(1, 8, -1, 3); err == nil {
		t.Error("negative rows accepted")
	}
}
