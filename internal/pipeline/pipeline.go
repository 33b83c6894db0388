// Package pipeline runs the three-stage fragment-counting pipeline:
// specimen segmentation, crack detection, and crack-subtracted component
// counting. Each stage is a pure function from read-only inputs to a fresh
// mask; the pipeline itself only validates, sequences, and renders.
package pipeline

import (
	"fmt"
	"image"
	"image/color"
	"strconv"

	"gocv.io/x/gocv"

	"fragment-counter/internal/config"
	"fragment-counter/internal/crack"
	"fragment-counter/internal/imageio"
	"fragment-counter/internal/particle"
	"fragment-counter/internal/specimen"
)

// Options selects per-run behavior on top of the configured tuning.
type Options struct {
	// MinArea is the noise-floor area filter in pixels. Zero means use the
	// configured default; negative is rejected.
	MinArea int

	// RenderOverlay requests an annotated copy of the input with each
	// fragment's index drawn at its centroid.
	RenderOverlay bool

	// ComputeStats requests fragment-area summary statistics.
	ComputeStats bool
}

// Report is the outcome of one pipeline run.
type Report struct {
	// Path is the source file for file-based runs, empty otherwise.
	Path string

	// Count is the number of fragments passing the area filter.
	Count int

	// Particles lists the accepted fragments in index order.
	Particles []particle.Particle

	// Stats is the area summary, present when requested.
	Stats *particle.AreaStats

	// Overlay is the annotated image, present when requested.
	Overlay image.Image
}

// Counter runs the pipeline with a fixed, immutable tuning. It is safe for
// concurrent use: stages share no mutable state between runs.
type Counter struct {
	specimenParams specimen.Params
	crackParams    crack.Params
	particleParams particle.Params
	defaultMinArea int
	concurrency    int
}

// New builds a Counter from a configuration.
func New(cfg config.Config) *Counter {
	sp := specimen.DefaultParams()
	sp.BlurKernel = cfg.Specimen.BlurKernel
	sp.CloseKernel = cfg.Specimen.CloseKernel
	sp.CloseIterations = cfg.Specimen.CloseIterations
	sp.Connectivity = cfg.Specimen.Connectivity

	cp := crack.DefaultParams()
	cp.ClipLimit = cfg.Crack.ClipLimit
	cp.TileGrid = cfg.Crack.TileGrid
	cp.BlackhatKernel = cfg.Crack.BlackhatKernel
	cp.BridgeKernel = cfg.Crack.BridgeKernel
	cp.DilateIterations = cfg.Crack.DilateIterations
	cp.CloseIterations = cfg.Crack.CloseIterations

	pp := particle.DefaultParams()
	pp.OpenKernel = cfg.Particle.OpenKernel
	pp.OpenIterations = cfg.Particle.OpenIterations
	pp.Connectivity = cfg.Particle.Connectivity

	// errgroup treats a limit of zero as "run nothing", which would make
	// ProcessBatch block forever on an unvalidated config.
	if cfg.Batch.Concurrency < 1 {
		cfg.Batch.Concurrency = 1
	}

	return &Counter{
		specimenParams: sp,
		crackParams:    cp,
		particleParams: pp,
		defaultMinArea: cfg.Particle.MinArea,
		concurrency:    cfg.Batch.Concurrency,
	}
}

// Process runs the full pipeline on a decoded image.
//
// Degenerate scenes (no foreground, no surviving fragments) produce a
// Report with Count 0 and a nil error. Only invalid input fails: a nil or
// zero-extent image, or a negative MinArea.
func (c *Counter) Process(srcImg image.Image, opts Options) (*Report, error) {
	if srcImg == nil {
		return nil, fmt.Errorf("nil image")
	}
	bounds := srcImg.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, fmt.Errorf("image has zero spatial extent (%dx%d)", bounds.Dx(), bounds.Dy())
	}
	minArea, err := c.resolveMinArea(opts)
	if err != nil {
		return nil, err
	}

	mat, err := imageio.ToMat(srcImg)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	return c.process(mat, minArea, opts)
}

// process runs the stages on a BGR Mat. The Mat is read-only.
func (c *Counter) process(mat gocv.Mat, minArea int, opts Options) (*Report, error) {
	specimenMask, err := specimen.Segment(mat, c.specimenParams)
	if err != nil {
		return nil, fmt.Errorf("specimen segmentation: %w", err)
	}
	defer specimenMask.Close()

	crackMask, err := crack.Detect(mat, specimenMask, c.crackParams)
	if err != nil {
		return nil, fmt.Errorf("crack detection: %w", err)
	}
	defer crackMask.Close()

	counted, err := particle.Count(specimenMask, crackMask, minArea, c.particleParams)
	if err != nil {
		return nil, fmt.Errorf("particle counting: %w", err)
	}

	report := &Report{
		Count:     counted.Count,
		Particles: counted.Particles,
	}

	if opts.ComputeStats {
		stats := particle.Summarize(counted.Particles)
		report.Stats = &stats
	}

	if opts.RenderOverlay {
		overlay, err := renderOverlay(mat, counted.Particles)
		if err != nil {
			return nil, fmt.Errorf("overlay rendering: %w", err)
		}
		report.Overlay = overlay
	}

	return report, nil
}

func (c *Counter) resolveMinArea(opts Options) (int, error) {
	if opts.MinArea < 0 {
		return 0, fmt.Errorf("min area must be positive, got %d", opts.MinArea)
	}
	if opts.MinArea == 0 {
		return c.defaultMinArea, nil
	}
	return opts.MinArea, nil
}

// renderOverlay draws each fragment's index at its centroid on a copy of
// the source image. Purely cosmetic; never affects the count.
func renderOverlay(mat gocv.Mat, particles []particle.Particle) (image.Image, error) {
	annotated := mat.Clone()
	defer annotated.Close()

	red := color.RGBA{R: 255}
	for _, p := range particles {
		origin := image.Pt(int(p.Centroid.X)-8, int(p.Centroid.Y)+5)
		gocv.PutText(&annotated, strconv.Itoa(p.Index), origin,
			gocv.FontHersheySimplex, 0.35, red, 1)
	}

	return imageio.ToImage(annotated)
}
