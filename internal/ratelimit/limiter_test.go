package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterAllowsUpToLimit(t *testing.T) {
	ctx := context.Background()
	l := NewLimiter(NewMemoryStore())

	for i := 0; i < 5; i++ {
		assert.True(t, l.Acquire(ctx, "deezer", 5, time.Minute), "request %d should pass", i)
	}
	assert.False(t, l.Acquire(ctx, "deezer", 5, time.Minute))
}

func TestLimiterWindowSlides(t *testing.T) {
	ctx := context.Background()
	l := NewLimiter(NewMemoryStore())

	require.True(t, l.Acquire(ctx, "mb", 1, 30*time.Millisecond))
	assert.False(t, l.Acquire(ctx, "mb", 1, 30*time.Millisecond))

	time.Sleep(50 * time.Millisecond)
	assert.True(t, l.Acquire(ctx, "mb", 1, 30*time.Millisecond))
}

func TestLimiterIdentifiersAreIndependent(t *testing.T) {
	ctx := context.Background()
	l := NewLimiter(NewMemoryStore())

	require.True(t, l.Acquire(ctx, "a", 1, time.Minute))
	assert.False(t, l.Acquire(ctx, "a", 1, time.Minute))
	assert.True(t, l.Acquire(ctx, "b", 1, time.Minute))
}

func TestLimiterRemaining(t *testing.T) {
	ctx := context.Background()
	l := NewLimiter(NewMemoryStore())

	status := l.Remaining(ctx, "deezer", 3, time.Minute)
	assert.Equal(t, 3, status.Remaining)

	l.Acquire(ctx, "deezer", 3, time.Minute)
	l.Acquire(ctx, "deezer", 3, time.Minute)

	status = l.Remaining(ctx, "deezer", 3, time.Minute)
	assert.Equal(t, 1, status.Remaining)
	assert.Equal(t, 3, status.Limit)
	assert.Greater(t, status.ResetIn, time.Duration(0))
	assert.LessOrEqual(t, status.ResetIn, time.Minute)
}

func TestLimiterReset(t *testing.T) {
	ctx := context.Background()
	l := NewLimiter(NewMemoryStore())

	require.True(t, l.Acquire(ctx, "deezer", 1, time.Minute))
	assert.False(t, l.Acquire(ctx, "deezer", 1, time.Minute))

	require.NoError(t, l.Reset(ctx, "deezer"))
	assert.True(t, l.Acquire(ctx, "deezer", 1, time.Minute))
}

func TestLimiterZeroLimitMeansUnlimited(t *testing.T) {
	ctx := context.Background()
	l := NewLimiter(NewMemoryStore())
	for i := 0; i < 100; i++ {
		assert.True(t, l.Acquire(ctx, "x", 0, time.Minute))
	}
}

type failingStore struct{}

func (failingStore) TrimAndCount(context.Context, string, time.Time) (int64, error) {
	return 0, errors.New("store down")
}
func (failingStore) Add(context.Context, string, time.Time, time.Duration) error {
	return errors.New("store down")
}
func (failingStore) Oldest(context.Context, string) (time.Time, error) {
	return time.Time{}, errors.New("store down")
}
func (failingStore) Reset(context.Context, string) error {
	return errors.New("store down")
}

func TestLimiterFailsOpen(t *testing.T) {
	ctx := context.Background()
	l := NewLimiter(failingStore{})

	// Store failures never block a request.
	for i := 0; i < 10; i++ {
		assert.True(t, l.Acquire(ctx, "deezer", 1, time.Minute))
	}

	status := l.Remaining(ctx, "deezer", 5, time.Minute)
	assert.Equal(t, 5, status.Remaining)
}
