// Command stagedump runs the counting pipeline stage by stage and writes
// the intermediate masks to disk, for tuning kernel sizes against a
// problem image.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"

	"fragment-counter/internal/config"
	"fragment-counter/internal/crack"
	"fragment-counter/internal/imageio"
	"fragment-counter/internal/particle"
	"fragment-counter/internal/specimen"
)

func main() {
	imagePath := flag.String("image", "", "Path to specimen image (TIFF, PNG, or JPEG)")
	configPath := flag.String("config", "", "YAML tuning file overriding built-in defaults")
	outDir := flag.String("out", ".", "Directory for stage mask images")
	minArea := flag.Int("min-area", 0, "Ignore regions smaller than this many pixels (default from config)")
	verbose := flag.Bool("verbose", false, "Print per-stage pixel diagnostics and the fragment listing")
	flag.Parse()

	if *imagePath == "" {
		fmt.Println("Usage: stagedump -image <path> [-config tuning.yaml] [-out dir] [-min-area 350]")
		os.Exit(1)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
	}
	if *minArea <= 0 {
		*minArea = cfg.Particle.MinArea
	}

	img, err := imageio.Load(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load image: %v\n", err)
		os.Exit(1)
	}
	bounds := img.Bounds()
	fmt.Printf("Loaded %s: %dx%d pixels\n", *imagePath, bounds.Dx(), bounds.Dy())

	mat, err := imageio.ToMat(img)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to convert image: %v\n", err)
		os.Exit(1)
	}
	defer mat.Close()

	sp := specimen.DefaultParams()
	sp.BlurKernel = cfg.Specimen.BlurKernel
	sp.CloseKernel = cfg.Specimen.CloseKernel
	sp.CloseIterations = cfg.Specimen.CloseIterations
	sp.Connectivity = cfg.Specimen.Connectivity

	specimenMask, err := specimen.Segment(mat, sp)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Segmentation failed: %v\n", err)
		os.Exit(1)
	}
	defer specimenMask.Close()
	if *verbose {
		fmt.Printf("[segment] %d specimen pixels\n", gocv.CountNonZero(specimenMask))
	}

	cp := crack.DefaultParams()
	cp.ClipLimit = cfg.Crack.ClipLimit
	cp.TileGrid = cfg.Crack.TileGrid
	cp.BlackhatKernel = cfg.Crack.BlackhatKernel
	cp.BridgeKernel = cfg.Crack.BridgeKernel
	cp.DilateIterations = cfg.Crack.DilateIterations
	cp.CloseIterations = cfg.Crack.CloseIterations

	crackMask, err := crack.Detect(mat, specimenMask, cp)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Crack detection failed: %v\n", err)
		os.Exit(1)
	}
	defer crackMask.Close()
	if *verbose {
		fmt.Printf("[crack] %d crack pixels\n", gocv.CountNonZero(crackMask))
	}

	pp := particle.DefaultParams()
	pp.OpenKernel = cfg.Particle.OpenKernel
	pp.OpenIterations = cfg.Particle.OpenIterations
	pp.Connectivity = cfg.Particle.Connectivity

	fragmentsMask, err := particle.Fragments(specimenMask, crackMask, pp)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fragment mask failed: %v\n", err)
		os.Exit(1)
	}
	defer fragmentsMask.Close()

	result, err := particle.Count(specimenMask, crackMask, *minArea, pp)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Counting failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("[count] %d fragments (min area %d)\n", result.Count, *minArea)
	if *verbose {
		for _, p := range result.Particles {
			fmt.Printf("  #%-3d area=%-7d centroid=(%.1f, %.1f)\n", p.Index, p.Area, p.Centroid.X, p.Centroid.Y)
		}
	}

	base := strings.TrimSuffix(filepath.Base(*imagePath), filepath.Ext(*imagePath))
	writeMask(*outDir, base+"_specimen.png", specimenMask)
	writeMask(*outDir, base+"_cracks.png", crackMask)
	writeMask(*outDir, base+"_fragments.png", fragmentsMask)
}

func writeMask(dir, name string, mask gocv.Mat) {
	path := filepath.Join(dir, name)
	if ok := gocv.IMWrite(path, mask); !ok {
		fmt.Fprintf(os.Stderr, "Failed to write %s\n", path)
		return
	}
	fmt.Printf("Wrote %s\n", path)
}
