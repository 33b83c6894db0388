package particle

import (
	"math"
	"testing"
)

func particlesWithAreas(areas ...int) []Particle {
	ps := make([]Particle, len(areas))
	for i, a := range areas {
		ps[i] = Particle{Index: i + 1, Label: i + 1, Area: a}
	}
	return ps
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	if s.Count != 0 || s.TotalArea != 0 {
		t.Errorf("Expected zero stats for no particles, got %+v", s)
	}
}

func TestSummarizeSingle(t *testing.T) {
	s := Summarize(particlesWithAreas(400))

	if s.Count != 1 {
		t.Errorf("Expected count 1, got %d", s.Count)
	}
	if s.MeanArea != 400 || s.MedianArea != 400 {
		t.Errorf("Expected mean and median 400, got %g and %g", s.MeanArea, s.MedianArea)
	}
	if s.StdDevArea != 0 {
		t.Errorf("Expected zero stddev for a single fragment, got %g", s.StdDevArea)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(particlesWithAreas(300, 100, 400, 200))

	if s.Count != 4 {
		t.Errorf("Expected count 4, got %d", s.Count)
	}
	if s.TotalArea != 1000 {
		t.Errorf("Expected total area 1000, got %d", s.TotalArea)
	}
	if s.MinArea != 100 || s.MaxArea != 400 {
		t.Errorf("Expected area range 100..400, got %d..%d", s.MinArea, s.MaxArea)
	}
	if s.MeanArea != 250 {
		t.Errorf("Expected mean area 250, got %g", s.MeanArea)
	}
	if s.MedianArea != 200 {
		t.Errorf("Expected median area 200, got %g", s.MedianArea)
	}

	// Sample stddev of {100, 200, 300, 400}
	expected := math.Sqrt(50000.0 / 3.0)
	if math.Abs(s.StdDevArea-expected) > 1e-9 {
		t.Errorf("Expected stddev %g, got %g", expected, s.StdDevArea)
	}
}
