package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otterway/pbsync/internal/model"
)

func TestCacheKeyCanonicalizesQueryAndBodyOrder(t *testing.T) {
	k1 := CacheKey("GET", "/api/collections/posts/records",
		map[string]string{"filter": `title="a"`, "sort": "-created"},
		nil, false)
	k2 := CacheKey("GET", "/api/collections/posts/records",
		map[string]string{"sort": "-created", "filter": `title="a"`},
		nil, false)

	assert.Equal(t, k1, k2, "key order must not affect the canonical fingerprint")
	assert.Contains(t, k1, "GET::/api/collections/posts/records::")
}

func TestCacheKeyRejectsNonGet(t *testing.T) {
	assert.Empty(t, CacheKey("POST", "/api/collections/posts/records", nil, nil, false))
}

func TestCacheKeyRejectsMultipart(t *testing.T) {
	assert.Empty(t, CacheKey("GET", "/api/collections/posts/records", nil, nil, true))
}

func TestCacheKeyRejectsBlocklistedPrefixes(t *testing.T) {
	for _, path := range []string{
		"/api/admin/login", "/api/batch", "/api/health",
		"/api/realtime", "/api/collections", "/api/settings",
		"/api/logs", "/api/backups", "/api/files/posts/x/y.png",
	} {
		assert.Empty(t, CacheKey("GET", path, nil, nil, false), "path %s must never be cached", path)
	}
}

func TestCacheKeyDistinguishesDifferentQueryValues(t *testing.T) {
	k1 := CacheKey("GET", "/api/collections/posts/records", map[string]string{"filter": `a="1"`}, nil, false)
	k2 := CacheKey("GET", "/api/collections/posts/records", map[string]string{"filter": `a="2"`}, nil, false)
	assert.NotEqual(t, k1, k2)
}

func TestPutResponseThenGetResponseRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	key := CacheKey("GET", "/api/collections/posts/records", nil, nil, false)
	require.NoError(t, s.PutResponse(ctx, key, `{"items":[]}`, time.Now()))

	data, ok, err := s.GetResponse(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"items":[]}`, data)
}

func TestPutResponseOverwritesPriorEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	key := CacheKey("GET", "/api/collections/posts/records", nil, nil, false)
	require.NoError(t, s.PutResponse(ctx, key, `{"v":1}`, time.Now()))
	require.NoError(t, s.PutResponse(ctx, key, `{"v":2}`, time.Now()))

	data, ok, err := s.GetResponse(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"v":2}`, data)
}

func TestPutResponseEmptyKeyIsNoop(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutResponse(ctx, "", `{"v":1}`, time.Now()))

	_, ok, err := s.GetResponse(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetResponseMissReturnsFalse(t *testing.T) {
	s := newTestStore(t)

	_, ok, err := s.GetResponse(context.Background(), "GET::/nowhere::::")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteExpiredResponsesIsStrictlyLessThan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	before := cutoff.Add(-time.Hour)
	after := cutoff.Add(time.Hour)

	require.NoError(t, s.PutResponse(ctx, "k-before", "x", before))
	require.NoError(t, s.PutResponse(ctx, "k-at-cutoff", "x", cutoff))
	require.NoError(t, s.PutResponse(ctx, "k-after", "x", after))

	n, err := s.DeleteExpiredResponses(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only the strictly-before-cutoff entry is removed")

	_, ok, _ := s.GetResponse(ctx, "k-before")
	assert.False(t, ok)

	_, ok, _ = s.GetResponse(ctx, "k-at-cutoff")
	assert.True(t, ok)
}

func TestDeleteExpiredRecordsOnlySyncedNonLocalNonTombstone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	stale := &model.Record{ID: "stale", Service: "posts",
		Data: map[string]any{"id": "stale", "synced": true}, Updated: model.NowISO8601(cutoff.Add(-time.Hour))}
	fresh := &model.Record{ID: "fresh", Service: "posts",
		Data: map[string]any{"id": "fresh", "synced": true}, Updated: model.NowISO8601(cutoff.Add(time.Hour))}
	unsynced := &model.Record{ID: "unsynced", Service: "posts",
		Data: map[string]any{"id": "unsynced", "synced": false}, Updated: model.NowISO8601(cutoff.Add(-time.Hour))}
	noSync := &model.Record{ID: "nosync", Service: "posts",
		Data: map[string]any{"id": "nosync", "synced": true, "noSync": true}, Updated: model.NowISO8601(cutoff.Add(-time.Hour))}
	tombstoned := &model.Record{ID: "tomb", Service: "posts",
		Data: map[string]any{"id": "tomb", "synced": true, "deleted": true}, Updated: model.NowISO8601(cutoff.Add(-time.Hour))}

	for _, rec := range []*model.Record{stale, fresh, unsynced, noSync, tombstoned} {
		require.NoError(t, s.CreateRow(ctx, rec))
	}

	n, err := s.DeleteExpiredRecords(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.GetRow(ctx, "posts", "stale")
	require.NoError(t, err)
	assert.Nil(t, got)

	for _, id := range []string{"fresh", "unsynced", "nosync", "tomb"} {
		got, err := s.GetRow(ctx, "posts", id)
		require.NoError(t, err)
		assert.NotNilf(t, got, "%s must survive the TTL sweep", id)
	}
}
