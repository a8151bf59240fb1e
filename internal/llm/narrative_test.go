package llm

import (
	"strings"
	"testing"
)

func sampleReport() StageReport {
	return StageReport{
		Stage:           "spreading",
		Population:      300,
		PeakInfected:    120,
		TotalDeaths:     14,
		TotalRecovered:  260,
		InfectionRadius: 42.5,
		InfectionRate:   0.35,
		MortalityRate:   0.2,
	}
}

func TestExtractChartsWellFormed(t *testing.T) {
	text := `The outbreak moved fast through the crowd.
[CHART] Outcomes | Recovered=260; Deaths=14 [/CHART]
Most individuals recovered within the simulated window.`

	prose, charts := ExtractCharts(text)

	if strings.Contains(prose, "[CHART]") {
		t.Error("chart marker leaked into prose")
	}
	if !strings.Contains(prose, "moved fast") || !strings.Contains(prose, "recovered within") {
		t.Errorf("prose lost surrounding text: %q", prose)
	}
	if len(charts) != 1 {
		t.Fatalf("extracted %d charts, want 1", len(charts))
	}

	chart := charts[0]
	if chart.Title != "Outcomes" {
		t.Errorf("title = %q, want Outcomes", chart.Title)
	}
	if len(chart.Points) != 2 {
		t.Fatalf("chart has %d points, want 2", len(chart.Points))
	}
	if chart.Points[0].Label != "Recovered" || chart.Points[0].Value != 260 {
		t.Errorf("point 0 = %+v", chart.Points[0])
	}
	if chart.Points[1].Label != "Deaths" || chart.Points[1].Value != 14 {
		t.Errorf("point 1 = %+v", chart.Points[1])
	}
}

func TestExtractChartsDropsMalformed(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"no separator", "[CHART] Outcomes Recovered=260 [/CHART]"},
		{"no points", "[CHART] Outcomes | nothing here [/CHART]"},
		{"empty title", "[CHART] | a=1 [/CHART]"},
		{"bad number", "[CHART] Outcomes | a=lots [/CHART]"},
		{"unterminated", "[CHART] Outcomes | a=1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, charts := ExtractCharts(tt.text)
			if len(charts) != 0 {
				t.Errorf("malformed block produced %d charts", len(charts))
			}
		})
	}
}

func TestExtractChartsSkipsBadPairs(t *testing.T) {
	_, charts := ExtractCharts("[CHART] Mixed | good=5; nonsense; also=bad=7 [/CHART]")
	if len(charts) != 1 {
		t.Fatalf("extracted %d charts, want 1", len(charts))
	}
	if len(charts[0].Points) != 1 || charts[0].Points[0].Label != "good" {
		t.Errorf("points = %+v, want only the parseable pair", charts[0].Points)
	}
}

func TestNarrativeFallsBackWithoutClient(t *testing.T) {
	report := sampleReport()
	narrative := GenerateStageNarrative(nil, report)

	if !narrative.Fallback {
		t.Error("narrative from nil client not marked as fallback")
	}
	if narrative.Stage != report.Stage {
		t.Errorf("stage = %q, want %q", narrative.Stage, report.Stage)
	}
	if narrative.Text == "" {
		t.Error("fallback produced empty text")
	}
	if !strings.Contains(narrative.Text, "300") {
		t.Errorf("fallback text missing the population figure: %q", narrative.Text)
	}
	if len(narrative.Charts) == 0 {
		t.Error("fallback produced no chart data")
	}
}

func TestFallbackMentionsVaccinationWhenPresent(t *testing.T) {
	report := sampleReport()
	report.Stage = "distributing"
	report.TotalVaccinated = 180

	narrative := GenerateStageNarrative(nil, report)
	if !strings.Contains(narrative.Text, "180") {
		t.Errorf("fallback text missing the vaccination figure: %q", narrative.Text)
	}
}

func TestBuildStagePromptOmitsInactiveFields(t *testing.T) {
	prompt := buildStagePrompt(sampleReport())
	if strings.Contains(prompt, "Vaccination") {
		t.Errorf("spreading-stage prompt mentions vaccination: %q", prompt)
	}

	r := sampleReport()
	r.VaccinationRate = 0.015
	r.TotalVaccinated = 50
	prompt = buildStagePrompt(r)
	if !strings.Contains(prompt, "Vaccination probability") || !strings.Contains(prompt, "Total vaccinated") {
		t.Errorf("distribution-stage prompt missing vaccination lines: %q", prompt)
	}
}
