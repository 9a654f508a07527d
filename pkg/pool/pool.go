// Package pool runs independent tile rasterization jobs on a bounded
// worker pool. The engine itself is a pure batch computation with no
// shared mutable state, so tiles can be processed in any order and in
// parallel without locking; the pool only bounds concurrency and
// propagates the first failure.
package pool

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Datafalk/cars/internal/models"
	"github.com/Datafalk/cars/pkg/raster"
)

// Job is one tile rasterization request. An empty ID is replaced by a
// generated identifier when the job runs.
type Job struct {
	ID      string
	Request raster.Request
}

// Result pairs a job identifier with its assembled raster. Results keep
// the submission order of their jobs.
type Result struct {
	ID     string
	Raster *models.Raster
}

// Pool executes tile jobs through a shared assembler with bounded
// concurrency.
type Pool struct {
	workers   int
	assembler *raster.Assembler
	log       *slog.Logger
}

// New creates a pool running at most workers jobs concurrently. A
// non-positive worker count means unbounded concurrency.
func New(workers int, assembler *raster.Assembler, log *slog.Logger) *Pool {
	return &Pool{workers: workers, assembler: assembler, log: log}
}

// Run rasterizes every job and returns the results in submission order.
// The first failing job cancels the remaining ones and its error is
// returned; the engine is idempotent, so a failed batch can be retried
// wholesale.
func (p *Pool) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	results := make([]Result, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	if p.workers > 0 {
		g.SetLimit(p.workers)
	}

	for i, job := range jobs {
		i, job := i, job
		id := job.ID
		if id == "" {
			id = uuid.NewString()
		}
		results[i] = Result{ID: id}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := p.assembler.Assemble(job.Request)
			if err != nil {
				return fmt.Errorf("tile %s: %w", id, err)
			}
			if p.log != nil {
				p.log.Debug("tile rasterized", "tile", id,
					"cells", out.Grid.Cells())
			}
			results[i].Raster = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
