// Package render produces presentation artifacts from simulation state:
// status-count charts, an MJPEG arena replay, and the decorative background
// density field.
package render

import (
	"bytes"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/parsa83KH/virus/internal/sim"
	"github.com/parsa83KH/virus/internal/stats"
)

// statusColors maps each status to its on-screen color, matching the arena.
var statusColors = map[sim.Status]drawing.Color{
	sim.Healthy:    drawing.ColorFromHex("2ecc71"),
	sim.Infected:   drawing.ColorFromHex("e67e22"),
	sim.Sick:       drawing.ColorFromHex("e74c3c"),
	sim.Recovered:  drawing.ColorFromHex("3498db"),
	sim.Vaccinated: drawing.ColorFromHex("9b59b6"),
	sim.Dead:       drawing.ColorFromHex("7f8c8d"),
}

var chartOrder = []sim.Status{
	sim.Healthy, sim.Infected, sim.Sick, sim.Recovered, sim.Vaccinated, sim.Dead,
}

// StatusChart renders a statistics series as a PNG line chart with one series
// per status.
func StatusChart(series []stats.Sample, width, height int) ([]byte, error) {
	if len(series) < 2 {
		return nil, fmt.Errorf("need at least 2 samples to chart, got %d", len(series))
	}

	ticks := make([]float64, len(series))
	for i, s := range series {
		ticks[i] = float64(s.Tick)
	}

	chartSeries := make([]chart.Series, 0, len(chartOrder))
	for _, status := range chartOrder {
		values := make([]float64, len(series))
		for i, s := range series {
			values[i] = float64(s.Counts[status])
		}
		chartSeries = append(chartSeries, chart.ContinuousSeries{
			Name:    status.String(),
			XValues: ticks,
			YValues: values,
			Style: chart.Style{
				StrokeColor: statusColors[status],
				StrokeWidth: 2.0,
			},
		})
	}

	graph := chart.Chart{
		Width:  width,
		Height: height,
		XAxis: chart.XAxis{
			Name: "tick",
			Style: chart.Style{
				FontSize: 10.0,
			},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%d", int(v.(float64)))
			},
		},
		YAxis: chart.YAxis{
			Name: "agents",
			Style: chart.Style{
				FontSize: 10.0,
			},
		},
		Series: chartSeries,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}
