// Package particle counts the fragments left when crack pixels are removed
// from the specimen mask, and reports per-fragment geometry.
package particle

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"fragment-counter/pkg/geometry"
)

// Particle is one accepted fragment region.
type Particle struct {
	// Index is the dense 1..K identifier assigned after area filtering,
	// in ascending original-label order.
	Index int `json:"index"`

	// Label is the original component id from labeling, before filtering.
	Label int `json:"label"`

	// Area is the fragment size in pixels.
	Area int `json:"area"`

	// Centroid is the fragment center of mass in image coordinates.
	Centroid geometry.Point2D `json:"centroid"`

	// Bounds is the fragment bounding box in image coordinates.
	Bounds geometry.RectInt `json:"bounds"`
}

// Result holds the fragment count and the ordered accepted fragments.
type Result struct {
	Count     int        `json:"count"`
	Particles []Particle `json:"particles"`
}

// Params configures fragment counting. Every structuring element is
// explicit; there are no hidden library defaults.
type Params struct {
	// OpenKernel is the side of the elliptical element used to remove
	// few-pixel speckles left by the crack subtraction. Small enough that
	// it cannot merge distinct fragments. Must be odd.
	OpenKernel int

	// OpenIterations is how many times the speckle-removing open runs.
	OpenIterations int

	// Connectivity is the pixel adjacency for component labeling (4 or 8).
	Connectivity int

	// Border is the padding policy for morphology.
	Border gocv.BorderType
}

// DefaultParams returns counting parameters matched to the crack
// detector's 3x3 bridging element.
func DefaultParams() Params {
	return Params{
		OpenKernel:     3,
		OpenIterations: 1,
		Connectivity:   8,
		Border:         gocv.BorderConstant,
	}
}

// Validate checks the parameters for internal consistency.
func (p Params) Validate() error {
	if p.OpenKernel < 1 || p.OpenKernel%2 == 0 {
		return fmt.Errorf("open kernel must be odd and positive, got %d", p.OpenKernel)
	}
	if p.OpenIterations < 0 {
		return fmt.Errorf("open iterations must be non-negative, got %d", p.OpenIterations)
	}
	if p.Connectivity != 4 && p.Connectivity != 8 {
		return fmt.Errorf("connectivity must be 4 or 8, got %d", p.Connectivity)
	}
	return nil
}

// Count removes crack pixels from the specimen mask, labels the remaining
// connected regions, and returns those with area >= minArea as fragments.
//
// Accepted fragments are re-indexed to a dense 1..K sequence in ascending
// original-label order, so the result is deterministic for fixed inputs.
// Both masks are read-only. An all-zero difference yields Count 0 with a
// nil error; a non-positive minArea is an input error.
func Count(specimen, cracks gocv.Mat, minArea int, params Params) (Result, error) {
	if minArea <= 0 {
		return Result{}, fmt.Errorf("min area must be positive, got %d", minArea)
	}

	fragments, err := Fragments(specimen, cracks, params)
	if err != nil {
		return Result{}, err
	}
	defer fragments.Close()

	labels := gocv.NewMat()
	defer labels.Close()
	stats := gocv.NewMat()
	defer stats.Close()
	centroids := gocv.NewMat()
	defer centroids.Close()

	nLabels := gocv.ConnectedComponentsWithStatsWithParams(fragments, &labels, &stats, &centroids,
		params.Connectivity, gocv.MatTypeCV32S, gocv.CCL_DEFAULT)

	result := Result{Particles: []Particle{}}
	for label := 1; label < nLabels; label++ {
		area := int(stats.GetIntAt(label, statArea))
		if area < minArea {
			continue
		}
		result.Count++
		result.Particles = append(result.Particles, Particle{
			Index: result.Count,
			Label: label,
			Area:  area,
			Centroid: geometry.Point2D{
				X: centroids.GetDoubleAt(label, 0),
				Y: centroids.GetDoubleAt(label, 1),
			},
			Bounds: geometry.RectInt{
				X:      int(stats.GetIntAt(label, statLeft)),
				Y:      int(stats.GetIntAt(label, statTop)),
				Width:  int(stats.GetIntAt(label, statWidth)),
				Height: int(stats.GetIntAt(label, statHeight)),
			},
		})
	}

	return result, nil
}

// Fragments returns the binary mask Count labels: specimen pixels with
// crack pixels removed and post-subtraction speckles opened away. Exposed
// so tuning tools can write the mask out for inspection.
//
// Both input masks are read-only; the returned mask is a fresh Mat owned
// by the caller.
func Fragments(specimen, cracks gocv.Mat, params Params) (gocv.Mat, error) {
	if specimen.Empty() || cracks.Empty() {
		return gocv.NewMat(), fmt.Errorf("empty input mask")
	}
	if specimen.Rows() != cracks.Rows() || specimen.Cols() != cracks.Cols() {
		return gocv.NewMat(), fmt.Errorf("crack mask %dx%d does not match specimen mask %dx%d",
			cracks.Cols(), cracks.Rows(), specimen.Cols(), specimen.Rows())
	}
	if err := params.Validate(); err != nil {
		return gocv.NewMat(), fmt.Errorf("invalid counting params: %w", err)
	}

	// Removing crack pixels splits the specimen into disjoint regions.
	inverted := gocv.NewMat()
	defer inverted.Close()
	gocv.BitwiseNot(cracks, &inverted)

	fragments := gocv.NewMat()
	gocv.BitwiseAnd(specimen, inverted, &fragments)

	// Drop isolated speckles introduced by the subtraction.
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse,
		image.Pt(params.OpenKernel, params.OpenKernel))
	defer kernel.Close()
	gocv.MorphologyExWithParams(fragments, &fragments, gocv.MorphOpen, kernel,
		params.OpenIterations, params.Border)

	return fragments, nil
}

// Column indexes of the stats Mat produced by connected-component labeling.
const (
	statLeft   = 0
	statTop    = 1
	statWidth  = 2
	statHeight = 3
	statArea   = 4
)
