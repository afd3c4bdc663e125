// Package connprobe is a reference Connectivity implementation that polls a
// configurable address over TCP dial on a fixed interval, modeled on the
// teacher's periodic-safety-scan goroutine shape in
// internal/sync/observer_local.go (Watch/watchLoop: block on a ticker,
// re-check state, emit on change, exit on context cancellation). It is a
// convenience default only — the core depends solely on the remote.Connectivity
// interface.
package connprobe

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"
)

// DefaultInterval is how often the probe re-dials when none is given to New.
const DefaultInterval = 15 * time.Second

// DefaultTimeout bounds a single dial attempt.
const DefaultTimeout = 5 * time.Second

// Prober dials Addr ("host:port") on an interval and reports reachability as
// a boolean stream, satisfying the remote.Connectivity interface.
type Prober struct {
	addr     string
	interval time.Duration
	timeout  time.Duration
	dial     func(ctx context.Context, network, addr string) (net.Conn, error)
	logger   *slog.Logger

	mu        sync.RWMutex
	connected bool
	ch        chan bool
}

// New returns a Prober targeting addr. interval/timeout fall back to the
// package defaults when zero. The initial state is assumed connected; the
// first probe runs immediately once Run starts.
func New(addr string, interval, timeout time.Duration, logger *slog.Logger) *Prober {
	if interval <= 0 {
		interval = DefaultInterval
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Prober{
		addr:      addr,
		interval:  interval,
		timeout:   timeout,
		dial:      (&net.Dialer{}).DialContext,
		logger:    logger,
		connected: true,
		ch:        make(chan bool, 1),
	}
}

// IsConnected reports the most recently observed state.
func (p *Prober) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.connected
}

// Changes returns a channel that receives the new state each time
// reachability flips. Buffered by one so a single pending transition is never
// dropped while the receiver is busy.
func (p *Prober) Changes() <-chan bool {
	return p.ch
}

// Run blocks, probing addr every interval until ctx is canceled. Intended to
// be launched in its own goroutine, mirroring the teacher's Watch/watchLoop
// pattern of a blocking loop gated on ctx.Done().
func (p *Prober) Run(ctx context.Context) {
	p.logger.Info("connprobe starting", slog.String("addr", p.addr), slog.Duration("interval", p.interval))

	p.probeOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("connprobe stopping")

			return
		case <-ticker.C:
			p.probeOnce(ctx)
		}
	}
}

func (p *Prober) probeOnce(ctx context.Context) {
	dialCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, err := p.dial(dialCtx, "tcp", p.addr)

	reachable := err == nil
	if conn != nil {
		_ = conn.Close()
	}

	p.mu.Lock()
	changed := p.connected != reachable
	p.connected = reachable
	p.mu.Unlock()

	if !changed {
		return
	}

	p.logger.Info("connprobe state change", slog.Bool("connected", reachable))

	select {
	case p.ch <- reachable:
	default:
		// drain the stale pending value and replace it with the latest
		select {
		case <-p.ch:
		default:
		}

		select {
		case p.ch <- reachable:
		default:
		}
	}
}
