// Package crack detects crack lines inside a segmented specimen.
//
// Cracks appear as thin dark ridges against locally brighter material. The
// detector normalizes illumination with tiled, clip-limited histogram
// equalization, then isolates narrow dark structures with a blackhat
// transform. A global threshold on raw intensity would miss cracks in dim
// regions entirely; the blackhat responds to local darkness regardless of
// overall brightness.
package crack

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Params configures crack detection. Every structuring element and border
// policy is explicit; there are no hidden library defaults.
type Params struct {
	// ClipLimit bounds the per-tile contrast amplification of the adaptive
	// histogram equalization, preventing noise blowup in flat regions.
	ClipLimit float64

	// TileGrid is the side of the square tile grid for the equalization.
	TileGrid int

	// BlackhatKernel is the side of the elliptical structuring element for
	// the blackhat transform. Dark ridges narrower than this respond; wider
	// dark regions do not. Must be odd.
	BlackhatKernel int

	// BridgeKernel is the side of the elliptical element used to thicken
	// cracks and bridge small gaps from local contrast dropout. Must be odd.
	BridgeKernel int

	// DilateIterations thickens the raw crack mask before gap closing.
	DilateIterations int

	// CloseIterations bridges remaining breaks in crack lines. A crack with
	// a gap fails to separate the particles on either side of it.
	CloseIterations int

	// Border is the padding policy for morphology.
	Border gocv.BorderType
}

// DefaultParams returns detection parameters tuned for hairline cracks in
// glass at typical photo resolutions.
func DefaultParams() Params {
	return Params{
		ClipLimit:        2.0,
		TileGrid:         8,
		BlackhatKernel:   11,
		BridgeKernel:     3,
		DilateIterations: 1,
		CloseIterations:  2,
		Border:           gocv.BorderConstant,
	}
}

// Validate checks the parameters for internal consistency.
func (p Params) Validate() error {
	if p.ClipLimit <= 0 {
		return fmt.Errorf("clip limit must be positive, got %g", p.ClipLimit)
	}
	if p.TileGrid < 1 {
		return fmt.Errorf("tile grid must be positive, got %d", p.TileGrid)
	}
	if p.BlackhatKernel < 1 || p.BlackhatKernel%2 == 0 {
		return fmt.Errorf("blackhat kernel must be odd and positive, got %d", p.BlackhatKernel)
	}
	if p.BridgeKernel < 1 || p.BridgeKernel%2 == 0 {
		return fmt.Errorf("bridge kernel must be odd and positive, got %d", p.BridgeKernel)
	}
	if p.DilateIterations < 0 || p.CloseIterations < 0 {
		return fmt.Errorf("iteration counts must be non-negative, got dilate=%d close=%d",
			p.DilateIterations, p.CloseIterations)
	}
	return nil
}

// Detect produces a binary mask of crack pixels. The mask has the same
// spatial dimensions as the input and is always a pixel-wise subset of the
// specimen mask: cracks are only meaningful inside the specimen.
//
// Both inputs are read-only; the returned mask is a fresh Mat owned by the
// caller. An empty specimen mask yields an empty crack mask.
func Detect(src gocv.Mat, specimen gocv.Mat, params Params) (gocv.Mat, error) {
	if src.Empty() {
		return gocv.NewMat(), fmt.Errorf("empty image")
	}
	if specimen.Empty() {
		return gocv.NewMat(), fmt.Errorf("empty specimen mask")
	}
	if src.Rows() != specimen.Rows() || src.Cols() != specimen.Cols() {
		return gocv.NewMat(), fmt.Errorf("specimen mask %dx%d does not match image %dx%d",
			specimen.Cols(), specimen.Rows(), src.Cols(), src.Rows())
	}
	if err := params.Validate(); err != nil {
		return gocv.NewMat(), fmt.Errorf("invalid crack params: %w", err)
	}

	gray := toGray(src)
	defer gray.Close()

	// Normalize illumination so glare and shadow do not bias the ridge
	// threshold.
	clahe := gocv.NewCLAHEWithParams(params.ClipLimit, image.Pt(params.TileGrid, params.TileGrid))
	defer clahe.Close()
	enhanced := gocv.NewMat()
	defer enhanced.Close()
	clahe.Apply(gray, &enhanced)

	ridgeKernel := gocv.GetStructuringElement(gocv.MorphEllipse,
		image.Pt(params.BlackhatKernel, params.BlackhatKernel))
	defer ridgeKernel.Close()

	blackhat := gocv.NewMat()
	defer blackhat.Close()
	gocv.MorphologyEx(enhanced, &blackhat, gocv.MorphBlackhat, ridgeKernel)

	raw := gocv.NewMat()
	defer raw.Close()
	gocv.Threshold(blackhat, &raw, 0, 255, gocv.ThresholdBinary+gocv.ThresholdOtsu)

	// Background texture also triggers the blackhat; restrict to specimen.
	cracks := gocv.NewMat()
	defer cracks.Close()
	gocv.BitwiseAnd(raw, specimen, &cracks)

	// Thicken and bridge tiny breaks so a visually continuous crack is
	// topologically continuous in the mask.
	bridgeKernel := gocv.GetStructuringElement(gocv.MorphEllipse,
		image.Pt(params.BridgeKernel, params.BridgeKernel))
	defer bridgeKernel.Close()

	bridged := gocv.NewMat()
	defer bridged.Close()
	gocv.MorphologyExWithParams(cracks, &bridged, gocv.MorphDilate, bridgeKernel,
		params.DilateIterations, params.Border)
	gocv.MorphologyExWithParams(bridged, &bridged, gocv.MorphClose, bridgeKernel,
		params.CloseIterations, params.Border)

	// Bridging can leak past the specimen boundary; re-intersect to keep
	// the subset invariant.
	result := gocv.NewMat()
	gocv.BitwiseAnd(bridged, specimen, &result)

	return result, nil
}

func toGray(src gocv.Mat) gocv.Mat {
	if src.Channels() == 1 {
		return src.Clone()
	}
	gray := gocv.NewMat()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	return gray
}
