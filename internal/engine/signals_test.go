package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/riskwatch/internal/domain"
	"github.com/xela07ax/riskwatch/internal/infra"
)

type signal struct{ userID, reason string }

type signalSink struct {
	mu  sync.Mutex
	got []signal
}

func (s *signalSink) record(userID, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, signal{userID, reason})
}

func (s *signalSink) all() []signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]signal(nil), s.got...)
}

func TestListenRefreshSignals(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	channel := infra.RefreshChannel("")
	sink := &signalSink{}

	go func() {
		defer close(done)
		ListenRefreshSignals(ctx, rdb, zap.NewNop(), channel, sink.record)
	}()

	// после подписки приходит глобальный сигнал синхронизации
	require.Eventually(t, func() bool { return len(sink.all()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, signal{infra.GlobalSignalTarget, "resubscribed"}, sink.all()[0])

	mr.Publish(channel, "garbage")
	mr.Publish(channel, infra.FormatRefreshSignal("u1", "action:lock_account"))

	require.Eventually(t, func() bool { return len(sink.all()) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, signal{"u1", "action:lock_account"}, sink.all()[1])

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestListenRefreshSignalsStopsWhileRetrying(t *testing.T) {
	old := resubscribeDelay
	resubscribeDelay = 10 * time.Millisecond
	t.Cleanup(func() { resubscribeDelay = old })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ListenRefreshSignals(ctx, rdb, zap.NewNop(), "chan", func(string, string) {
			t.Error("no signal expected without redis")
		})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestRefreshSignalTargetsSelection(t *testing.T) {
	f := newFakeFetcher()
	f.dashboard = func(n int) (*domain.MetricsSnapshot, error) {
		return snapshot(n, riskEntry("u1", "full"), riskEntry("u2", "full")), nil
	}
	h := newHarness(t, f, Config{}, nil)
	m := h.openLoaded(t)
	h.e.Select(m.Metrics.TopRisks[0])
	h.waitFor(t, "details", func(m ReadModel) bool { return !m.Detail.Loading && m.Detail.Sessions != nil })

	h.e.RefreshSignal("u2", "action")
	require.Eventually(t, func() bool { return f.count("dashboard") == 2 }, time.Second, time.Millisecond)
	h.barrier(t)
	assert.Equal(t, 1, f.count("sessions:u1"))

	h.e.RefreshSignal("u1", "action")
	require.Eventually(t, func() bool {
		return f.count("dashboard") == 3 && f.count("sessions:u1") == 2
	}, time.Second, time.Millisecond)

	h.e.RefreshSignal(infra.GlobalSignalTarget, "resubscribed")
	require.Eventually(t, func() bool {
		return f.count("dashboard") == 4 && f.count("sessions:u1") == 3
	}, time.Second, time.Millisecond)

	// сигнальные перезапросы тихие: без индикатора загрузки
	m = h.e.Snapshot()
	assert.Empty(t, m.Notifications)
}

func TestRefreshSignalIgnoredWhenDashboardClosed(t *testing.T) {
	f := newFakeFetcher()
	h := newHarness(t, f, Config{}, nil)

	h.e.RefreshSignal(infra.GlobalSignalTarget, "resubscribed")
	h.barrier(t)
	assert.Zero(t, f.count("dashboard"))
}
