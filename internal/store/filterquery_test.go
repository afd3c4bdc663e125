package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otterway/pbsync/internal/model"
)

func TestQueryRecordsEmptyFilterMatchesAllInService(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRow(ctx, &model.Record{ID: "p1", Service: "posts", Data: map[string]any{"id": "p1"}}))
	require.NoError(t, s.CreateRow(ctx, &model.Record{ID: "p2", Service: "posts", Data: map[string]any{"id": "p2"}}))
	require.NoError(t, s.CreateRow(ctx, &model.Record{ID: "c1", Service: "comments", Data: map[string]any{"id": "c1"}}))

	recs, err := s.QueryRecords(ctx, "posts", "", nil, time.Now())
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestQueryRecordsAppliesFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRow(ctx, &model.Record{ID: "p1", Service: "posts", Data: map[string]any{"id": "p1", "status": "published"}}))
	require.NoError(t, s.CreateRow(ctx, &model.Record{ID: "p2", Service: "posts", Data: map[string]any{"id": "p2", "status": "draft"}}))

	recs, err := s.QueryRecords(ctx, "posts", `status = "published"`, nil, time.Now())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "p1", recs[0].ID)
}

func TestQueryRecordsInvalidFilterErrors(t *testing.T) {
	s := newTestStore(t)

	_, err := s.QueryRecords(context.Background(), "posts", `status = `, nil, time.Now())
	assert.Error(t, err)
}
