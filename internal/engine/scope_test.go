package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeCloseStopsChildren(t *testing.T) {
	parent := NewScope(context.Background())
	child := parent.Child()

	var ticks atomic.Int64
	child.Every(time.Millisecond, func(ctx context.Context) { ticks.Add(1) })
	require.Eventually(t, func() bool { return ticks.Load() >= 2 }, time.Second, time.Millisecond)

	parent.Close()
	assert.True(t, child.Closed())
	assert.Error(t, child.Context().Err())

	stopped := ticks.Load()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, stopped, ticks.Load())

	// повторное закрытие и задачи на закрытом скоупе безопасны
	parent.Close()
	child.Every(time.Millisecond, func(ctx context.Context) { ticks.Add(1) })
	assert.True(t, parent.Child().Closed())
}

func TestScopeEveryWaitsForFirstInterval(t *testing.T) {
	s := NewScope(context.Background())
	defer s.Close()

	var ticks atomic.Int64
	s.Every(time.Hour, func(ctx context.Context) { ticks.Add(1) })
	time.Sleep(10 * time.Millisecond)
	assert.Zero(t, ticks.Load())
}
