package connprobe

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeOnceFlipsStateAndEmits(t *testing.T) {
	p := New("example.invalid:9", 0, 0, nil)

	var fail atomic.Bool
	fail.Store(true)
	p.dial = func(ctx context.Context, network, addr string) (net.Conn, error) {
		if fail.Load() {
			return nil, errors.New("boom")
		}

		return nil, nil
	}

	ctx := context.Background()

	p.probeOnce(ctx)
	assert.False(t, p.IsConnected())

	select {
	case v := <-p.Changes():
		assert.False(t, v)
	case <-time.After(time.Second):
		t.Fatal("expected a state change notification")
	}

	fail.Store(false)
	p.probeOnce(ctx)
	assert.True(t, p.IsConnected())

	select {
	case v := <-p.Changes():
		assert.True(t, v)
	case <-time.After(time.Second):
		t.Fatal("expected a state change notification")
	}
}

func TestProbeOnceNoChangeNoEmit(t *testing.T) {
	p := New("example.invalid:9", 0, 0, nil)
	p.dial = func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, nil
	}

	p.probeOnce(context.Background())
	p.probeOnce(context.Background())

	select {
	case v := <-p.Changes():
		t.Fatalf("unexpected change notification: %v", v)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	p := New("example.invalid:9", 10*time.Millisecond, 10*time.Millisecond, nil)
	p.dial = func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	require.True(t, true)
}
