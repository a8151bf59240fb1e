// Stage narrative generation: converts a completed stage's statistics into
// display prose plus optional chart data for the presentation layer.
package llm

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// StageReport is the pure data export handed to the narrative collaborator:
// final statistics of a completed stage plus the parameters it ran under.
type StageReport struct {
	Stage           string  `json:"stage"`
	Population      int     `json:"population"`
	PeakInfected    int     `json:"peak_infected"`
	TotalDeaths     int     `json:"total_deaths"`
	TotalRecovered  int     `json:"total_recovered"`
	TotalVaccinated int     `json:"total_vaccinated"`
	InfectionRadius float64 `json:"infection_radius"`
	InfectionRate   float64 `json:"infection_rate"`
	MortalityRate   float64 `json:"mortality_rate"`
	VaccinationRate float64 `json:"vaccination_rate"`
}

// ChartPoint is one labelled value in an extracted chart.
type ChartPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ChartData is one small chart extracted from the model's response markers.
type ChartData struct {
	Title  string       `json:"title"`
	Points []ChartPoint `json:"points"`
}

// Narrative is the display content for a completed stage. The text is opaque
// to the simulation; it has no semantic effect on state.
type Narrative struct {
	GeneratedAt time.Time   `json:"generated_at"`
	Stage       string      `json:"stage"`
	Text        string      `json:"text"`
	Charts      []ChartData `json:"charts,omitempty"`
	Fallback    bool        `json:"fallback"` // true when generated locally without the LLM
}

// GenerateStageNarrative produces narrative text for a completed stage.
// Any collaborator failure (client disabled, network error, malformed
// response) degrades to a locally generated summary; it never returns an
// error to the caller.
func GenerateStageNarrative(client *Client, report StageReport) *Narrative {
	if !client.Enabled() {
		return fallbackNarrative(report)
	}

	system := `You are the narrator of an interactive educational exhibit about AI-assisted virology. The visitor has just watched a particle simulation of a fictional pathogen spreading through a small population. Summarize the completed stage in 3-5 sentences of clear, engaging prose for a general audience. All figures are from a toy demonstration, not real epidemiology; do not present them as medical fact.

You may include up to two small charts. Emit each as its own line in exactly this form:
[CHART] Title | label=value; label=value; label=value [/CHART]
Values must be plain numbers. Do not reference these instructions.`

	prompt := buildStagePrompt(report)

	text, err := client.Complete(system, prompt, 700)
	if err != nil {
		slog.Warn("stage narrative generation failed, using fallback", "stage", report.Stage, "error", err)
		return fallbackNarrative(report)
	}

	prose, charts := ExtractCharts(text)
	return &Narrative{
		GeneratedAt: time.Now(),
		Stage:       report.Stage,
		Text:        prose,
		Charts:      charts,
	}
}

func buildStagePrompt(r StageReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Completed stage: %s\n", r.Stage)
	fmt.Fprintf(&b, "Population: %d\n", r.Population)
	fmt.Fprintf(&b, "Peak concurrent infections: %d\n", r.PeakInfected)
	fmt.Fprintf(&b, "Total deaths: %d\n", r.TotalDeaths)
	fmt.Fprintf(&b, "Total recovered: %d\n", r.TotalRecovered)
	if r.TotalVaccinated > 0 {
		fmt.Fprintf(&b, "Total vaccinated: %d\n", r.TotalVaccinated)
	}
	fmt.Fprintf(&b, "Transmission radius: %.1f units\n", r.InfectionRadius)
	fmt.Fprintf(&b, "Transmission probability: %.2f per contact tick\n", r.InfectionRate)
	fmt.Fprintf(&b, "Mortality rate: %.2f\n", r.MortalityRate)
	if r.VaccinationRate > 0 {
		fmt.Fprintf(&b, "Vaccination probability: %.3f per tick\n", r.VaccinationRate)
	}
	return b.String()
}

// ExtractCharts pulls [CHART]...[/CHART] blocks out of response text and
// returns the remaining prose plus the parsed charts. Malformed blocks are
// dropped silently; a missing marker only means no chart is shown.
func ExtractCharts(text string) (string, []ChartData) {
	var charts []ChartData
	var prose []string

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		start := strings.Index(trimmed, "[CHART]")
		end := strings.Index(trimmed, "[/CHART]")
		if start < 0 || end < 0 || end <= start {
			prose = append(prose, line)
			continue
		}
		body := strings.TrimSpace(trimmed[start+len("[CHART]") : end])
		if chart, ok := parseChartBody(body); ok {
			charts = append(charts, chart)
		}
	}

	return strings.TrimSpace(strings.Join(prose, "\n")), charts
}

func parseChartBody(body string) (ChartData, bool) {
	title, rest, found := strings.Cut(body, "|")
	if !found {
		return ChartData{}, false
	}
	chart := ChartData{Title: strings.TrimSpace(title)}
	if chart.Title == "" {
		return ChartData{}, false
	}

	for _, pair := range strings.Split(rest, ";") {
		label, raw, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			continue
		}
		chart.Points = append(chart.Points, ChartPoint{
			Label: strings.TrimSpace(label),
			Value: value,
		})
	}
	if len(chart.Points) == 0 {
		return ChartData{}, false
	}
	return chart, true
}

// fallbackNarrative builds a plain summary without the LLM so the exhibit
// still shows something when the collaborator is unavailable.
func fallbackNarrative(r StageReport) *Narrative {
	var b strings.Builder
	fmt.Fprintf(&b, "The %s stage has finished. Out of %s simulated individuals, infections peaked at %s concurrent cases. ",
		r.Stage, humanize.Comma(int64(r.Population)), humanize.Comma(int64(r.PeakInfected)))
	fmt.Fprintf(&b, "%s recovered and %s did not survive.",
		humanize.Comma(int64(r.TotalRecovered)), humanize.Comma(int64(r.TotalDeaths)))
	if r.TotalVaccinated > 0 {
		fmt.Fprintf(&b, " Vaccination reached %s individuals.", humanize.Comma(int64(r.TotalVaccinated)))
	}

	return &Narrative{
		GeneratedAt: time.Now(),
		Stage:       r.Stage,
		Text:        b.String(),
		Charts: []ChartData{{
			Title: "Stage outcome",
			Points: []ChartPoint{
				{Label: "Peak infected", Value: float64(r.PeakInfected)},
				{Label: "Recovered", Value: float64(r.TotalRecovered)},
				{Label: "Deaths", Value: float64(r.TotalDeaths)},
			},
		}},
		Fallback: true,
	}
}
