package engine

import (
	"context"
	"errors"
)

// RunPipeline runs r and d together until r returns, then waits for d to
// drain the outbox. If d fails first, r is cancelled and d's error is
// returned.
func RunPipeline(ctx context.Context, r *Runner, d *Deliverer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	delivered := make(chan error, 1)
	go func() {
		err := d.Run(ctx, r.Deliveries())
		if err != nil {
			cancel()
		}
		delivered <- err
	}()

	runErr := r.Run(ctx)
	delivErr := <-delivered

	switch {
	case delivErr != nil && !errors.Is(delivErr, context.Canceled):
		return delivErr
	case runErr != nil:
		return runErr
	default:
		return delivErr
	}
}
