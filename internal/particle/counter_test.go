package particle

import (
	"image"
	"image/color"
	"reflect"
	"testing"

	"gocv.io/x/gocv"
)

// newMask creates an all-background binary mask.
func newMask(w, h int) gocv.Mat {
	return gocv.Zeros(h, w, gocv.MatTypeCV8UC1)
}

// fill paints a filled foreground rectangle onto a mask.
func fill(m *gocv.Mat, r image.Rectangle) {
	gocv.Rectangle(m, r, color.RGBA{R: 255, G: 255, B: 255}, -1)
}

// splitMasks returns a specimen rectangle and a crack stripe bisecting it.
func splitMasks() (gocv.Mat, gocv.Mat) {
	specimen := newMask(200, 150)
	fill(&specimen, image.Rect(20, 20, 180, 130))

	cracks := newMask(200, 150)
	fill(&cracks, image.Rect(95, 20, 105, 130))
	return specimen, cracks
}

func TestCountRejectsNonPositiveMinArea(t *testing.T) {
	specimen, cracks := splitMasks()
	defer specimen.Close()
	defer cracks.Close()

	for _, minArea := range []int{0, -5} {
		if _, err := Count(specimen, cracks, minArea, DefaultParams()); err == nil {
			t.Errorf("Expected error for min area %d", minArea)
		}
	}
}

func TestCountDimensionMismatch(t *testing.T) {
	specimen := newMask(200, 150)
	defer specimen.Close()
	cracks := newMask(100, 100)
	defer cracks.Close()

	if _, err := Count(specimen, cracks, 50, DefaultParams()); err == nil {
		t.Errorf("Expected error for mismatched mask dimensions")
	}
}

// TestCountEmptyMasksYieldZero verifies that an all-background specimen is
// a valid degenerate input producing count 0.
func TestCountEmptyMasksYieldZero(t *testing.T) {
	specimen := newMask(200, 150)
	defer specimen.Close()
	cracks := newMask(200, 150)
	defer cracks.Close()

	result, err := Count(specimen, cracks, 50, DefaultParams())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}

	if result.Count != 0 {
		t.Errorf("Expected count 0, got %d", result.Count)
	}
	if len(result.Particles) != 0 {
		t.Errorf("Expected no particles, got %d", len(result.Particles))
	}
}

// TestCountSplitByCrack verifies that subtracting a bisecting crack stripe
// yields two fragments, one on each side.
func TestCountSplitByCrack(t *testing.T) {
	specimen, cracks := splitMasks()
	defer specimen.Close()
	defer cracks.Close()

	result, err := Count(specimen, cracks, 100, DefaultParams())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}

	if result.Count != 2 {
		t.Fatalf("Expected 2 fragments, got %d", result.Count)
	}

	left, right := false, false
	for _, p := range result.Particles {
		if p.Centroid.X < 95 {
			left = true
		}
		if p.Centroid.X > 105 {
			right = true
		}
	}
	if !left || !right {
		t.Errorf("Expected one fragment on each side of the crack")
	}
}

// TestCountAreaFilter verifies that fragments below the area floor are
// discarded: one large blob and one tiny blob with min area between them.
func TestCountAreaFilter(t *testing.T) {
	specimen := newMask(300, 200)
	defer specimen.Close()
	fill(&specimen, image.Rect(20, 20, 120, 120)) // ~10000 px
	fill(&specimen, image.Rect(200, 50, 204, 54)) // ~16 px
	cracks := newMask(300, 200)
	defer cracks.Close()

	result, err := Count(specimen, cracks, 50, DefaultParams())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}

	if result.Count != 1 {
		t.Fatalf("Expected 1 fragment after area filtering, got %d", result.Count)
	}
	if result.Particles[0].Area < 9000 {
		t.Errorf("Expected the large blob to survive, got area %d", result.Particles[0].Area)
	}
}

// TestCountMonotonicInMinArea verifies that tightening the area filter
// never increases the count.
func TestCountMonotonicInMinArea(t *testing.T) {
	specimen, cracks := splitMasks()
	defer specimen.Close()
	defer cracks.Close()

	prev := -1
	for _, minArea := range []int{10, 100, 1000, 5000, 10000, 50000} {
		result, err := Count(specimen, cracks, minArea, DefaultParams())
		if err != nil {
			t.Fatalf("Count failed at min area %d: %v", minArea, err)
		}
		if prev >= 0 && result.Count > prev {
			t.Errorf("Count rose from %d to %d when min area tightened to %d", prev, result.Count, minArea)
		}
		prev = result.Count
	}
}

// TestCountDenseReindex verifies that surviving fragments are renumbered
// 1..K even when filtering removes components in between.
func TestCountDenseReindex(t *testing.T) {
	specimen := newMask(300, 200)
	defer specimen.Close()
	fill(&specimen, image.Rect(10, 20, 60, 120))   // large
	fill(&specimen, image.Rect(100, 20, 104, 24))  // tiny, filtered out
	fill(&specimen, image.Rect(150, 20, 250, 120)) // large
	cracks := newMask(300, 200)
	defer cracks.Close()

	result, err := Count(specimen, cracks, 100, DefaultParams())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}

	if result.Count != 2 {
		t.Fatalf("Expected 2 fragments, got %d", result.Count)
	}
	for i, p := range result.Particles {
		if p.Index != i+1 {
			t.Errorf("Expected dense index %d, got %d", i+1, p.Index)
		}
	}
}

// TestCountDeterministic verifies identical results across repeated runs
// on the same masks.
func TestCountDeterministic(t *testing.T) {
	specimen, cracks := splitMasks()
	defer specimen.Close()
	defer cracks.Close()

	first, err := Count(specimen, cracks, 100, DefaultParams())
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	second, err := Count(specimen, cracks, 100, DefaultParams())
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected identical results across runs:\n%+v\n%+v", first, second)
	}
}

// TestFragmentsMask verifies the exposed intermediate mask: crack pixels
// are carved out of the specimen and nothing appears outside it.
func TestFragmentsMask(t *testing.T) {
	specimen, cracks := splitMasks()
	defer specimen.Close()
	defer cracks.Close()

	fragments, err := Fragments(specimen, cracks, DefaultParams())
	if err != nil {
		t.Fatalf("Fragments failed: %v", err)
	}
	defer fragments.Close()

	if fragments.GetUCharAt(75, 100) != 0 {
		t.Errorf("Expected crack stripe to be removed from fragments mask")
	}
	if fragments.GetUCharAt(75, 50) != 255 {
		t.Errorf("Expected specimen interior to remain foreground")
	}

	outside := gocv.NewMat()
	defer outside.Close()
	gocv.BitwiseNot(specimen, &outside)

	violation := gocv.NewMat()
	defer violation.Close()
	gocv.BitwiseAnd(fragments, outside, &violation)
	if n := gocv.CountNonZero(violation); n != 0 {
		t.Errorf("Expected fragments mask to stay inside the specimen, %d pixels outside", n)
	}
}

// TestCountBoundsContainCentroid sanity-checks the per-fragment geometry.
func TestCountBoundsContainCentroid(t *testing.T) {
	specimen, cracks := splitMasks()
	defer specimen.Close()
	defer cracks.Close()

	result, err := Count(specimen, cracks, 100, DefaultParams())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}

	for _, p := range result.Particles {
		if !p.Bounds.Contains(p.Centroid.ToInt()) {
			t.Errorf("Fragment %d centroid %+v outside bounds %+v", p.Index, p.Centroid, p.Bounds)
		}
	}
}
