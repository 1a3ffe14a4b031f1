package workflow

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/teranos/vgate/dataset"
)

// Job is one dataset in a batch
type Job struct {
	Name      string
	Dataset   *dataset.Dataset
	Threshold int64
	Options   Options
}

// RunBatch runs jobs with at most concurrency runs in flight. Reports are
// returned in job order. Each run is independent: a failed run does not stop
// the others. When ctx is cancelled, jobs not yet started keep a nil report
// and ctx.Err() is returned.
func RunBatch(ctx context.Context, e *Engine, jobs []Job, concurrency int) ([]*Report, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	reports := make([]*Report, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, job := range jobs {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			reports[i] = e.RunWorkflow(gctx, job.Dataset, job.Threshold, job.Options)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return reports, err
	}
	return reports, ctx.Err()
}
