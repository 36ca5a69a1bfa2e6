// Package background runs the fire-and-forget work handlers spawn after
// they have already answered the client.
package background

import (
	"context"
	"fmt"
	"time"

	"github.com/dgellow/line-relay/internal/log"
	"golang.org/x/sync/errgroup"
)

// Task is one unit of background work
type Task func(ctx context.Context) error

// Runner tracks spawned tasks so shutdown and tests can wait for them.
// Nothing a task does ever reaches the response that spawned it.
type Runner struct {
	group errgroup.Group
}

// NewRunner creates an empty runner
func NewRunner() *Runner {
	return &Runner{}
}

// Go starts task detached from ctx's cancellation (the request is done by
// the time most tasks finish) but keeping its values. Completion is logged
// as "async OK" or "async NG"; panics are recovered and reported as errors.
func (r *Runner) Go(ctx context.Context, name string, task Task) {
	detached := context.WithoutCancel(ctx)
	r.group.Go(func() (err error) {
		start := time.Now()
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic in %s: %v", name, p)
			}
			fields := map[string]any{
				"task":     name,
				"duration": time.Since(start).String(),
			}
			if err != nil {
				fields["error"] = err.Error()
				log.LogErrorWithFields("background", "async NG", fields)
				return
			}
			log.LogDebugWithFields("background", "async OK", fields)
		}()
		return task(detached)
	})
}

// Wait blocks until every started task has finished and returns the first
// task error, if any.
func (r *Runner) Wait() error {
	return r.group.Wait()
}
