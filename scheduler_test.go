package bttconf

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_PeriodicReload(t *testing.T) {
	src := newMemSource(map[string]string{"k": "v1"})
	s := New(src, WithReloadInterval(10*time.Millisecond))
	defer s.Close()

	assert.Equal(t, "v1", s.GetString("k", ""))

	src.set(map[string]string{"k": "v2"}, nil)
	require.Eventually(t, func() bool {
		return s.GetString("k", "") == "v2"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestScheduler_StopsOnClose(t *testing.T) {
	src := newMemSource(map[string]string{"k": "v1"})
	s := New(src, WithReloadInterval(5*time.Millisecond))

	require.Eventually(t, func() bool {
		return src.loads.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	s.Close()
	loads := src.loads.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, loads, src.loads.Load())
}

// panicSource 首次加载成功，之后每次都 panic。
type panicSource struct {
	calls atomic.Int64
}

func (p *panicSource) Name() string { return "panic" }

func (p *panicSource) Load(context.Context) (map[string]string, error) {
	if p.calls.Add(1) == 1 {
		return map[string]string{"k": "v"}, nil
	}
	panic("boom")
}

func TestScheduler_SurvivesPanics(t *testing.T) {
	logger, logs := newObservedLogger()
	src := &panicSource{}
	s := New(src, WithReloadInterval(5*time.Millisecond), WithLogger(logger))
	defer s.Close()

	require.Eventually(t, func() bool {
		return src.calls.Load() >= 4
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, "v", s.GetString("k", ""))
	assert.GreaterOrEqual(t, logs.FilterMessage("properties reload panicked").Len(), 2)
}

// blockingSource 首次加载成功，之后阻塞直到 ctx 取消。
type blockingSource struct {
	calls   atomic.Int64
	blocked chan struct{}
}

func (b *blockingSource) Name() string { return "blocking" }

func (b *blockingSource) Load(ctx context.Context) (map[string]string, error) {
	if b.calls.Add(1) == 1 {
		return map[string]string{"k": "v"}, nil
	}
	select {
	case b.blocked <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return map[string]string{"k": "late"}, nil
}

func TestScheduler_CloseAbandonsInFlightReload(t *testing.T) {
	src := &blockingSource{blocked: make(chan struct{}, 1)}
	s := New(src, WithReloadInterval(5*time.Millisecond))

	select {
	case <-src.blocked:
	case <-time.After(2 * time.Second):
		t.Fatal("reload never started")
	}

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}

	// 被取消的加载结果不会被安装
	assert.Equal(t, "v", s.GetString("k", ""))
	assert.Equal(t, uint64(1), s.Generation())
}
