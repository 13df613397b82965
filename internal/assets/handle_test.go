package assets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleLoaded(t *testing.T) {
	release := make(chan struct{})
	h := Go(context.Background(), func(context.Context) (string, error) {
		<-release
		return "terrain", nil
	})

	assert.Equal(t, StateLoading, h.LoadState())
	_, ok := h.Get()
	assert.False(t, ok)
	assert.NoError(t, h.Err())

	close(release)
	v, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "terrain", v)

	assert.Equal(t, StateLoaded, h.LoadState())
	v, ok = h.Get()
	assert.True(t, ok)
	assert.Equal(t, "terrain", v)
}

func TestHandleFailed(t *testing.T) {
	cause := errors.New("decode failed")
	h := Go(context.Background(), func(context.Context) (int, error) {
		return 0, cause
	})

	_, err := h.Wait(context.Background())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, StateFailed, h.LoadState())
	assert.ErrorIs(t, h.Err(), cause)
	_, ok := h.Get()
	assert.False(t, ok)
}

func TestHandlePanic(t *testing.T) {
	h := Go(context.Background(), func(context.Context) (int, error) {
		panic("boom")
	})

	_, err := h.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, StateFailed, h.LoadState())
}

func TestHandleWaitContext(t *testing.T) {
	loadCtx, stop := context.WithCancel(context.Background())
	defer stop()
	h := Go(loadCtx, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := h.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateLoading, h.LoadState())
}

func TestReadyAndFailed(t *testing.T) {
	v, ok := Ready(7).Get()
	assert.True(t, ok)
	assert.Equal(t, 7, v)

	f := Failed[int](errors.New("x"))
	assert.Equal(t, StateFailed, f.LoadState())
	assert.EqualError(t, f.Err(), "x")
}

func TestLoadStateString(t *testing.T) {
	assert.Equal(t, "loading", StateLoading.String())
	assert.Equal(t, "loaded", StateLoaded.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "LoadState(9)", LoadState(9).String())
}
