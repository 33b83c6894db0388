// Package specimen segments the fractured specimen from the image background.
//
// The segmenter assumes a bright specimen photographed against a darker,
// roughly uniform background. It produces a single-region binary mask with
// small interior holes (glare spots, dust) filled.
package specimen

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"fragment-counter/internal/imageio"
)

// Params configures specimen segmentation. Every structuring element and
// border policy is explicit; there are no hidden library defaults.
type Params struct {
	// BlurKernel is the side of the square Gaussian kernel applied before
	// thresholding, to suppress sensor and compression noise. Must be odd.
	BlurKernel int

	// CloseKernel is the side of the elliptical structuring element used to
	// fill small interior holes in the retained region. Must be odd.
	CloseKernel int

	// CloseIterations is how many times the hole-filling close is applied.
	CloseIterations int

	// Connectivity is the pixel adjacency for component labeling (4 or 8).
	Connectivity int

	// Border is the padding policy for blur and morphology.
	Border gocv.BorderType
}

// DefaultParams returns segmentation parameters tuned for photographs of
// fractured glass specimens on a dark backdrop.
func DefaultParams() Params {
	return Params{
		BlurKernel:      5,
		CloseKernel:     9,
		CloseIterations: 2,
		Connectivity:    8,
		Border:          gocv.BorderConstant,
	}
}

// Validate checks the parameters for internal consistency.
func (p Params) Validate() error {
	if p.BlurKernel < 1 || p.BlurKernel%2 == 0 {
		return fmt.Errorf("blur kernel must be odd and positive, got %d", p.BlurKernel)
	}
	if p.CloseKernel < 1 || p.CloseKernel%2 == 0 {
		return fmt.Errorf("close kernel must be odd and positive, got %d", p.CloseKernel)
	}
	if p.CloseIterations < 0 {
		return fmt.Errorf("close iterations must be non-negative, got %d", p.CloseIterations)
	}
	if p.Connectivity != 4 && p.Connectivity != 8 {
		return fmt.Errorf("connectivity must be 4 or 8, got %d", p.Connectivity)
	}
	return nil
}

// SegmentImage segments a Go image.Image. See Segment.
func SegmentImage(srcImg image.Image, params Params) (gocv.Mat, error) {
	mat, err := imageio.ToMat(srcImg)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	return Segment(mat, params)
}

// Segment produces a binary mask of the specimen region. The mask has the
// same spatial dimensions as the input, with 255 marking specimen pixels.
//
// The input Mat is read-only; the returned mask is a fresh Mat owned by the
// caller. An image with no foreground after thresholding yields an all-zero
// mask and a nil error: an empty scene is a valid degenerate result.
func Segment(src gocv.Mat, params Params) (gocv.Mat, error) {
	if src.Empty() {
		return gocv.NewMat(), fmt.Errorf("empty image")
	}
	if err := params.Validate(); err != nil {
		return gocv.NewMat(), fmt.Errorf("invalid segmentation params: %w", err)
	}

	gray := toGray(src)
	defer gray.Close()

	// Blur before thresholding so Otsu sees intensity classes, not noise.
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(params.BlurKernel, params.BlurKernel), 0, 0, params.Border)

	thresholded := gocv.NewMat()
	defer thresholded.Close()
	gocv.Threshold(blurred, &thresholded, 0, 255, gocv.ThresholdBinary+gocv.ThresholdOtsu)

	mask := largestComponent(thresholded, params.Connectivity)
	defer mask.Close()

	// Fill small interior holes (glare, dust) in the retained region.
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(params.CloseKernel, params.CloseKernel))
	defer kernel.Close()

	closed := gocv.NewMat()
	gocv.MorphologyExWithParams(mask, &closed, gocv.MorphClose, kernel, params.CloseIterations, params.Border)

	return closed, nil
}

// toGray returns a single-channel copy of src, converting from BGR when
// necessary.
func toGray(src gocv.Mat) gocv.Mat {
	if src.Channels() == 1 {
		return src.Clone()
	}
	gray := gocv.NewMat()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	return gray
}

// largestComponent keeps only the largest-area connected component of a
// binary mask, returning a fresh mask. Equal areas break toward the lowest
// label id, which is deterministic because labeling order is deterministic
// for a fixed image. A mask with no foreground is returned unchanged.
func largestComponent(mask gocv.Mat, connectivity int) gocv.Mat {
	labels := gocv.NewMat()
	defer labels.Close()
	stats := gocv.NewMat()
	defer stats.Close()
	centroids := gocv.NewMat()
	defer centroids.Close()

	nLabels := gocv.ConnectedComponentsWithStatsWithParams(mask, &labels, &stats, &centroids,
		connectivity, gocv.MatTypeCV32S, gocv.CCL_DEFAULT)
	if nLabels <= 1 {
		return mask.Clone()
	}

	largest := 1
	largestArea := stats.GetIntAt(1, statArea)
	for label := 2; label < nLabels; label++ {
		if area := stats.GetIntAt(label, statArea); area > largestArea {
			largest = label
			largestArea = area
		}
	}

	selected := gocv.NewMat()
	lo := gocv.NewScalar(float64(largest), 0, 0, 0)
	hi := gocv.NewScalar(float64(largest), 0, 0, 0)
	gocv.InRangeWithScalar(labels, lo, hi, &selected)
	return selected
}

// statArea is the column index of the pixel-count field in the stats Mat
// produced by connected-component labeling.
const statArea = 4
