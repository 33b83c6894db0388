package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"fragment-counter/internal/imageio"
)

// BatchResult pairs one input path with its report or failure. A bad file
// does not abort the batch; its error is recorded here instead.
type BatchResult struct {
	Path   string
	Report *Report
	Err    error
}

// ProcessFile loads an image from disk and runs the pipeline on it.
func (c *Counter) ProcessFile(path string, opts Options) (*Report, error) {
	img, err := imageio.Load(path)
	if err != nil {
		return nil, err
	}

	report, err := c.Process(img, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	report.Path = path
	return report, nil
}

// ProcessBatch runs the pipeline over multiple image files concurrently.
// Each image's run is fully independent, so runs execute in parallel up to
// the configured concurrency limit. Results keep input order. The error
// return reports only batch-level failure (context cancellation);
// per-image failures land in the corresponding BatchResult.
func (c *Counter) ProcessBatch(ctx context.Context, paths []string, opts Options) ([]BatchResult, error) {
	results := make([]BatchResult, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, path := range paths {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			report, err := c.ProcessFile(path, opts)
			results[i] = BatchResult{Path: path, Report: report, Err: err}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("batch aborted: %w", err)
	}
	return results, nil
}
