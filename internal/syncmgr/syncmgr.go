// Package syncmgr implements the Sync Manager: detection of pending local
// mutations, ordered replay against the remote, and reaction to
// connectivity-restored and app-resume trigger events (SPEC_FULL.md
// section 4.5).
package syncmgr

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/otterway/pbsync/internal/model"
	"github.com/otterway/pbsync/internal/policy"
	"github.com/otterway/pbsync/internal/remote"
)

// PendingSource is the Cache Store surface the Sync Manager scans.
type PendingSource interface {
	PendingServices(ctx context.Context) ([]string, error)
	PendingRecords(ctx context.Context, service string) ([]*model.Record, error)
}

// Mutator is the subset of the Policy Engine the drain loop replays
// through, always under the CacheAndNetwork policy per SPEC_FULL.md
// section 4.5.
type Mutator interface {
	Create(ctx context.Context, p policy.Policy, service, id string, body map[string]any, files []remote.File) (*model.Record, error)
	Update(ctx context.Context, p policy.Policy, service, id string, body map[string]any, files []remote.File) (*model.Record, error)
	Delete(ctx context.Context, p policy.Policy, service, id string, fileFields []string) error
}

// Manager drains pending rows on connectivity-restored edges and
// app-resume events, deduping concurrent triggers behind a single
// in-flight drain (SPEC_FULL.md section 5, "a single syncCompleter guards
// the currently-running drain").
type Manager struct {
	store  PendingSource
	mutate Mutator
	conn   remote.Connectivity
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	waiters []chan struct{}
}

// New returns a Manager. conn may be nil if the caller drives drains only
// via Drain/TriggerOnAppResume and never watches a Connectivity feed.
func New(store PendingSource, mutate Mutator, conn remote.Connectivity, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{store: store, mutate: mutate, conn: conn, logger: logger}
}

// Watch blocks, consuming conn.Changes() and triggering a drain on every
// rising (false->true) edge, until ctx is canceled. Run it in a goroutine
// bound to the client's background scope.
func (m *Manager) Watch(ctx context.Context) {
	if m.conn == nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case connected, ok := <-m.conn.Changes():
			if !ok {
				return
			}

			if connected {
				go m.Drain(ctx)
			}
		}
	}
}

// TriggerOnAppResume should be called when the host application returns to
// the foreground; it drains only if currently online.
func (m *Manager) TriggerOnAppResume(ctx context.Context) {
	if m.conn != nil && !m.conn.IsConnected() {
		return
	}

	go m.Drain(ctx)
}

// Drain runs one pass over every collection's pending rows, replaying each
// through the Policy Engine with CacheAndNetwork. Concurrent calls coalesce
// into the single currently-running pass: the extra Drain callers wait and
// are all released together when that pass finishes.
func (m *Manager) Drain(ctx context.Context) {
	m.mu.Lock()

	if m.running {
		wait := make(chan struct{})
		m.waiters = append(m.waiters, wait)
		m.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
		}

		return
	}

	m.running = true
	m.mu.Unlock()

	cycleID := uuid.NewString()
	m.runOnce(ctx, cycleID)

	m.mu.Lock()
	m.running = false
	waiters := m.waiters
	m.waiters = nil
	m.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
}

func (m *Manager) runOnce(ctx context.Context, cycleID string) {
	services, err := m.store.PendingServices(ctx)
	if err != nil {
		m.logger.Warn("pbsync: syncmgr: listing pending services failed", "cycle", cycleID, "error", err)
		return
	}

	m.logger.Info("pbsync: syncmgr: drain starting", "cycle", cycleID, "services", len(services))

	for _, service := range services {
		m.drainService(ctx, cycleID, service)
	}

	m.logger.Info("pbsync: syncmgr: drain finished", "cycle", cycleID)
}

func (m *Manager) drainService(ctx context.Context, cycleID, service string) {
	rows, err := m.store.PendingRecords(ctx, service)
	if err != nil {
		m.logger.Warn("pbsync: syncmgr: listing pending rows failed", "cycle", cycleID, "service", service, "error", err)
		return
	}

	for _, rec := range rows {
		if err := m.replay(ctx, rec); err != nil {
			m.logger.Warn("pbsync: syncmgr: replay failed, row left pending", "cycle", cycleID, "service", rec.Service, "id", rec.ID, "error", err)
		}
	}
}

// replay dispatches a single pending row per SPEC_FULL.md section 4.5's
// deleted/isNew/update classification.
func (m *Manager) replay(ctx context.Context, rec *model.Record) error {
	switch {
	case rec.Deleted():
		return m.mutate.Delete(ctx, policy.CacheAndNetwork, rec.Service, rec.ID, nil)
	case rec.IsNew():
		// File bytes already reached the server (or the cache-only blob
		// store) on the original write; replay only resends the JSON body.
		_, err := m.mutate.Create(ctx, policy.CacheAndNetwork, rec.Service, rec.ID, rec.ReplayBody(), nil)
		return err
	default:
		_, err := m.mutate.Update(ctx, policy.CacheAndNetwork, rec.Service, rec.ID, rec.ReplayBody(), nil)
		return err
	}
}
