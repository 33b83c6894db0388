package particle

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// AreaStats summarizes the fragment-area distribution of a count result.
// Fragmentation studies care about the spread as much as the count: a
// shatter produces many small fragments, a clean break a few large ones.
type AreaStats struct {
	Count      int     `json:"count"`
	TotalArea  int     `json:"totalArea"`
	MinArea    int     `json:"minArea"`
	MaxArea    int     `json:"maxArea"`
	MeanArea   float64 `json:"meanArea"`
	MedianArea float64 `json:"medianArea"`
	StdDevArea float64 `json:"stdDevArea"`
}

// Summarize computes area statistics over the accepted fragments.
// An empty list yields a zero-value AreaStats.
func Summarize(particles []Particle) AreaStats {
	if len(particles) == 0 {
		return AreaStats{}
	}

	areas := make([]float64, len(particles))
	s := AreaStats{
		Count:   len(particles),
		MinArea: particles[0].Area,
		MaxArea: particles[0].Area,
	}
	for i, p := range particles {
		areas[i] = float64(p.Area)
		s.TotalArea += p.Area
		if p.Area < s.MinArea {
			s.MinArea = p.Area
		}
		if p.Area > s.MaxArea {
			s.MaxArea = p.Area
		}
	}

	sort.Float64s(areas)
	s.MeanArea = stat.Mean(areas, nil)
	s.MedianArea = stat.Quantile(0.5, stat.Empirical, areas, nil)
	if len(areas) > 1 {
		s.StdDevArea = stat.StdDev(areas, nil)
	}

	return s
}
