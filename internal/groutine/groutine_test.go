package groutine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGoRunsWithParentContext(t *testing.T) {
	type key struct{}
	parent := context.WithValue(context.Background(), key{}, "marker")

	got := make(chan any, 1)
	Go(parent, "test-worker", func(ctx context.Context) {
		got <- ctx.Value(key{})
	})

	select {
	case v := <-got:
		require.Equal(t, "marker", v)
	case <-time.After(time.Second):
		t.Fatal("goroutine never ran")
	}
}

func TestGoNilParentFallsBackToBackground(t *testing.T) {
	done := make(chan struct{})
	Go(nil, "test-worker", func(ctx context.Context) {
		require.NotNil(t, ctx)
		require.NoError(t, ctx.Err())
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine never ran")
	}
}
