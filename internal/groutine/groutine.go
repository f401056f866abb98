// Package groutine spawns named goroutines. The name is attached as a
// pprof label so long-lived workers (session loops, bridge workers,
// connection monitors) are identifiable in goroutine dumps.
package groutine

import (
	"context"
	"runtime/pprof"
)

// Go runs fn on its own goroutine, labeled with name for pprof.
// A nil parent context falls back to context.Background().
//
//	groutine.Go(ctx, "session-"+id, func(ctx context.Context) {
//	    _ = sess.Run(ctx)
//	})
func Go(parentCtx context.Context, name string, fn func(ctx context.Context)) {
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	go pprof.Do(parentCtx, pprof.Labels("goroutine_name", name), fn)
}
