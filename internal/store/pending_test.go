package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otterway/pbsync/internal/model"
)

func pendingRecord(service, id, title string) *model.Record {
	return &model.Record{
		ID: id, Service: service,
		Data: map[string]any{"id": id, "title": title, "synced": false},
	}
}

func syncedRecord(service, id, title string) *model.Record {
	return &model.Record{
		ID: id, Service: service,
		Data: map[string]any{"id": id, "title": title, "synced": true},
	}
}

func TestPendingServicesExcludesSyncedAndReserved(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRow(ctx, pendingRecord("posts", "p1", "a")))
	require.NoError(t, s.CreateRow(ctx, syncedRecord("comments", "c1", "b")))
	require.NoError(t, s.CreateRow(ctx, pendingRecord("schema", "s1", "c")))

	services, err := s.PendingServices(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"posts"}, services)
}

func TestPendingServicesSkipsNoSyncRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	noSync := &model.Record{ID: "n1", Service: "posts", Data: map[string]any{"id": "n1", "synced": false, "noSync": true}}
	require.NoError(t, s.CreateRow(ctx, noSync))

	services, err := s.PendingServices(ctx)
	require.NoError(t, err)
	assert.Empty(t, services)
}

func TestPendingRowsOrderedByInsertion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := pendingRecord("posts", "p1", "first")
	first.Created = "2026-01-01T00:00:00Z"
	second := pendingRecord("posts", "p2", "second")
	second.Created = "2026-01-02T00:00:00Z"

	// Insert out of order; PendingRows must return them by created, id.
	require.NoError(t, s.CreateRow(ctx, second))
	require.NoError(t, s.CreateRow(ctx, first))

	recs, err := s.PendingRecords(ctx, "posts")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "p1", recs[0].ID)
	assert.Equal(t, "p2", recs[1].ID)
}
