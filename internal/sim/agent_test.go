package sim

import "testing"

func TestStatusRoles(t *testing.T) {
	infectious := map[Status]bool{Infected: true, Sick: true}
	susceptible := map[Status]bool{Healthy: true, Vaccinated: true}

	for s := Status(0); s < statusCount; s++ {
		if got := s.Infectious(); got != infectious[s] {
			t.Errorf("%s.Infectious() = %v, want %v", s, got, infectious[s])
		}
		if got := s.Susceptible(); got != susceptible[s] {
			t.Errorf("%s.Susceptible() = %v, want %v", s, got, susceptible[s])
		}
	}
}

func TestStatusString(t *testing.T) {
	if got := Healthy.String(); got != "healthy" {
		t.Errorf("Healthy.String() = %q", got)
	}
	if got := Status(42).String(); got != "unknown" {
		t.Errorf("out-of-range status String() = %q, want unknown", got)
	}
}
