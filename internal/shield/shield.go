// Package shield implements the cancellation-shielding discipline
// described in §4.7 of the room-host specification: a cleanup path that
// must run to completion even if its caller's context is cancelled
// while the cleanup is in flight. Cancellation is observed by the
// caller only after the cleanup finishes.
package shield

import "context"

// Run executes fn against a detached context (it cannot be cancelled by
// ctx) and waits for it. If ctx is cancelled while fn is still running,
// Run keeps waiting for fn to finish, then returns ctx's error instead
// of fn's result. If ctx is never cancelled, Run returns fn's result
// directly.
//
// This is the Go analog of the original's asyncio.shield(...) loop:
// asyncio.shield detaches an awaitable from the caller's cancellation
// and re-raises CancelledError only once the shielded task is done.
// Go has no implicit cancellation delivery into arbitrary running code,
// so the same effect is achieved by racing fn's completion against
// ctx.Done() and reporting whichever finishes last.
func Run(ctx context.Context, fn func(context.Context) error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn(context.Background())
	}()

	select {
	case err := <-done:
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		return err
	case <-ctx.Done():
		cancelErr := ctx.Err()
		<-done
		return cancelErr
	}
}

// RunValue is Run for functions that also produce a value, used by the
// create-failure revert path (§4.2) which needs the created container's
// handle even though creation itself runs shielded.
func RunValue[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(context.Background())
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		if cerr := ctx.Err(); cerr != nil && r.err == nil {
			return r.v, cerr
		}
		return r.v, r.err
	case <-ctx.Done():
		cancelErr := ctx.Err()
		r := <-done
		if r.err != nil {
			// fn itself failed (independent of the cancellation); surface
			// that failure so the caller's create-failure revert path runs.
			return r.v, r.err
		}
		// fn succeeded despite the racing cancellation: return its value
		// so the caller can track/clean up the real resource, but still
		// report the cancellation to the caller.
		return r.v, cancelErr
	}
}
