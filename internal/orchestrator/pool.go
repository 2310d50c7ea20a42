package orchestrator

import (
	"context"

	"github.com/sourcegraph/conc/pool"

	"github.com/ShayCichocki/crew/pkg/models"
)

// runConcurrent drains the queue with a worker pool sized to the admission
// capacity. Each worker runs the same turn pipeline as sequential dispatch;
// admission and lock acquisition are atomic in the executor, and turns that
// lose a race are rescheduled rather than blocked.
func (o *Orchestrator) runConcurrent(ctx context.Context) error {
	workers := pool.New().WithMaxGoroutines(o.opts.maxConcurrent)
	busy := func() bool { return o.inflight.Load() > 0 }

	for {
		turn, ok, err := o.next(ctx, busy)
		if err != nil || !ok {
			workers.Wait()
			return err
		}

		o.inflight.Add(1)
		workers.Go(func(t models.ScheduledTurn) func() {
			return func() {
				defer func() {
					o.inflight.Add(-1)
					o.scheduler.Notify()
				}()
				o.safeProcess(ctx, t)
			}
		}(turn))
	}
}
