// Command fragment-counter estimates the number of crack-separated
// fragments in photographs of fractured specimens.
//
// Usage:
//
//	fragment-counter [flags] image.jpg [more images...]
//
// With a single image the bare count is printed to stdout. With multiple
// images each is processed independently (in parallel) and printed as
// "path: count" lines followed by a total.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"fragment-counter/internal/config"
	"fragment-counter/internal/imageio"
	"fragment-counter/internal/pipeline"
)

func main() {
	minArea := flag.Int("min-area", 0, "Ignore regions smaller than this many pixels (default from config, 350)")
	saveOverlay := flag.String("save-overlay", "", "Write an annotated copy of the image to this path")
	configPath := flag.String("config", "", "YAML tuning file overriding built-in defaults")
	showStats := flag.Bool("stats", false, "Print fragment-area statistics after the count")
	concurrency := flag.Int("concurrency", 0, "Maximum images processed at once in batch mode (default from config)")
	quiet := flag.Bool("quiet", false, "Print only the final count; suppress per-image and statistics lines")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: fragment-counter [flags] <image> [more images...]")
		flag.PrintDefaults()
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
	if *concurrency > 0 {
		cfg.Batch.Concurrency = *concurrency
	}

	counter := pipeline.New(cfg)
	opts := pipeline.Options{
		MinArea:       *minArea,
		RenderOverlay: *saveOverlay != "",
		ComputeStats:  *showStats && !*quiet,
	}

	if flag.NArg() == 1 {
		runSingle(counter, flag.Arg(0), opts, *saveOverlay)
		return
	}
	runBatch(counter, flag.Args(), opts, *quiet)
}

func runSingle(counter *pipeline.Counter, path string, opts pipeline.Options, overlayPath string) {
	report, err := counter.ProcessFile(path, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	fmt.Println(report.Count)

	if report.Stats != nil {
		printStats(os.Stdout, report)
	}

	if overlayPath != "" {
		if err := imageio.Save(overlayPath, report.Overlay); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save overlay: %v\n", err)
			os.Exit(1)
		}
	}
}

func runBatch(counter *pipeline.Counter, paths []string, opts pipeline.Options, quiet bool) {
	// Overlays are a single-image feature; ignore the flag in batch mode.
	opts.RenderOverlay = false

	results, err := counter.ProcessBatch(context.Background(), paths, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	failed := writeBatchResults(os.Stdout, os.Stderr, results, quiet)
	if failed > 0 {
		os.Exit(1)
	}
}

// writeBatchResults prints batch outcomes: per-image count lines and a
// total, or the total alone in quiet mode. Failures always go to errOut.
// Returns the number of failed images.
func writeBatchResults(out, errOut io.Writer, results []pipeline.BatchResult, quiet bool) int {
	total := 0
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(errOut, "%s: %v\n", r.Path, r.Err)
			continue
		}
		total += r.Report.Count
		if quiet {
			continue
		}
		fmt.Fprintf(out, "%s: %d\n", r.Path, r.Report.Count)
		if r.Report.Stats != nil {
			printStats(out, r.Report)
		}
	}
	fmt.Fprintf(out, "total: %d\n", total)
	return failed
}

func printStats(out io.Writer, report *pipeline.Report) {
	s := report.Stats
	fmt.Fprintf(out, "fragments: %d  area total=%d min=%d max=%d mean=%.1f median=%.1f stddev=%.1f\n",
		s.Count, s.TotalArea, s.MinArea, s.MaxArea, s.MeanArea, s.MedianArea, s.StdDevArea)
}
