// Package maintenance implements the TTL-based cleanup sweep across
// records, cached responses, and file blobs (SPEC_FULL.md section 4.9).
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Store is the Cache Store surface the sweep depends on.
type Store interface {
	DeleteExpiredRecords(ctx context.Context, cutoff time.Time) (int, error)
	DeleteExpiredResponses(ctx context.Context, cutoff time.Time) (int, error)
	DeleteExpiredFiles(ctx context.Context, now time.Time) (int, error)
}

// Result is the tuple runMaintenance returns per SPEC_FULL.md section 4.9.
type Result struct {
	DeletedRecords   int
	DeletedResponses int
	DeletedFiles     int
}

// Total sums the three counts.
func (r Result) Total() int { return r.DeletedRecords + r.DeletedResponses + r.DeletedFiles }

// Run executes the sweep. A nil ttl disables cleanup entirely and returns a
// zero Result without touching the store (SPEC_FULL.md testable property 5,
// "runMaintenance(null) is a no-op").
func Run(ctx context.Context, store Store, ttl *time.Duration, now time.Time, logger *slog.Logger) (Result, error) {
	if ttl == nil {
		return Result{}, nil
	}

	if logger == nil {
		logger = slog.Default()
	}

	cutoff := now.Add(-*ttl)

	records, err := store.DeleteExpiredRecords(ctx, cutoff)
	if err != nil {
		return Result{}, fmt.Errorf("pbsync: maintenance: records: %w", err)
	}

	responses, err := store.DeleteExpiredResponses(ctx, cutoff)
	if err != nil {
		return Result{}, fmt.Errorf("pbsync: maintenance: responses: %w", err)
	}

	files, err := store.DeleteExpiredFiles(ctx, now)
	if err != nil {
		return Result{}, fmt.Errorf("pbsync: maintenance: files: %w", err)
	}

	result := Result{DeletedRecords: records, DeletedResponses: responses, DeletedFiles: files}

	logger.Info("pbsync: maintenance: sweep complete",
		"deletedRecords", records, "deletedResponses", responses, "deletedFiles", files)

	return result, nil
}
