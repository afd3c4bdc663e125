// Package reconcile implements the Stale Reconciler: post-full-list
// cleanup of local rows that match the server's filter but were absent
// from its response (SPEC_FULL.md section 4.6).
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/otterway/pbsync/internal/model"
)

// staleDeleteThreshold is the safety-guard cutoff from SPEC_FULL.md
// section 4.6: an empty incoming set deleting more than this many local
// rows aborts instead, guarding against a server error flushing the cache.
const staleDeleteThreshold = 10

// QueryFunc runs the same filter the server was queried with against the
// local cache, returning local candidate records.
type QueryFunc func(ctx context.Context, service, filter string) ([]*model.Record, error)

// DeleteFunc removes a single local row.
type DeleteFunc func(ctx context.Context, service, id string) error

// Reconciler ties the Cache Store's merge and query surfaces together to
// implement syncLocal.
type Reconciler struct {
	query  QueryFunc
	delete DeleteFunc
	logger *slog.Logger
}

// New returns a Reconciler.
func New(query QueryFunc, del DeleteFunc, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Reconciler{query: query, delete: del, logger: logger}
}

// Reconcile implements the algorithm from SPEC_FULL.md section 4.6: given
// the ids present in a server response (incomingIDs) and the filter that
// produced it, delete local rows matching the same filter that are absent
// from incomingIDs, unless guarded by synced/noSync/deleted.
func (r *Reconciler) Reconcile(ctx context.Context, service, filter string, incomingIDs map[string]bool) (deleted int, err error) {
	candidates, err := r.query(ctx, service, filter)
	if err != nil {
		return 0, fmt.Errorf("pbsync: reconcile: %s: querying local candidates: %w", service, err)
	}

	var stale []*model.Record

	for _, c := range candidates {
		if incomingIDs[c.ID] {
			continue
		}

		if !c.Synced() || c.NoSync() || c.Deleted() {
			continue
		}

		stale = append(stale, c)
	}

	if len(incomingIDs) == 0 && len(stale) > staleDeleteThreshold {
		r.logger.Warn("pbsync: reconcile: aborting, empty incoming set would delete too many rows",
			"service", service, "candidates", len(stale))

		return 0, nil
	}

	for _, c := range stale {
		if err := r.delete(ctx, service, c.ID); err != nil {
			return deleted, fmt.Errorf("pbsync: reconcile: %s: deleting stale row %s: %w", service, c.ID, err)
		}

		deleted++
	}

	return deleted, nil
}
