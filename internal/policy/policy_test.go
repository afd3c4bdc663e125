package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otterway/pbsync/internal/idgen"
	"github.com/otterway/pbsync/internal/model"
	"github.com/otterway/pbsync/internal/remote"
)

// fakeCache is a minimal in-memory CacheOps double for policy tests,
// independent of the real SQLite-backed store.
type fakeCache struct {
	rows map[string]*model.Record // key = service+"/"+id
}

func newFakeCache() *fakeCache { return &fakeCache{rows: map[string]*model.Record{}} }

func key(service, id string) string { return service + "/" + id }

func (c *fakeCache) GetRow(_ context.Context, service, id string) (*model.Record, error) {
	return c.rows[key(service, id)], nil
}

func (c *fakeCache) CreateRow(_ context.Context, rec *model.Record) error {
	c.rows[key(rec.Service, rec.ID)] = rec
	return nil
}

func (c *fakeCache) UpdateRow(_ context.Context, service, id string, overlay map[string]any) (*model.Record, error) {
	existing := c.rows[key(service, id)]

	merged := map[string]any{}
	if existing != nil {
		for k, v := range existing.Data {
			merged[k] = v
		}
	}

	for k, v := range overlay {
		merged[k] = v
	}

	merged["id"] = id

	rec := &model.Record{ID: id, Service: service, Data: merged}
	c.rows[key(service, id)] = rec

	return rec, nil
}

func (c *fakeCache) DeleteRow(_ context.Context, service, id string, _ []string) error {
	delete(c.rows, key(service, id))
	return nil
}

func noFileFields(string) []string { return nil }

func TestCreateCacheAndNetworkOffline(t *testing.T) {
	cache := newFakeCache()
	rc := remote.NewFake()
	conn := remote.NewFakeConnectivity(false)
	eng := New(cache, rc, conn, noFileFields, nil, nil)

	rec, err := eng.Create(context.Background(), CacheAndNetwork, "posts", "", map[string]any{"title": "Hi"}, nil)
	require.NoError(t, err)

	assert.True(t, idgen.Valid(rec.ID))
	assert.False(t, rec.Synced())
	assert.True(t, rec.IsNew())
}

func TestCreateCacheAndNetworkOnlineKeepsEchoedID(t *testing.T) {
	cache := newFakeCache()
	rc := remote.NewFake()
	conn := remote.NewFakeConnectivity(true)
	eng := New(cache, rc, conn, noFileFields, nil, nil)

	localID := "abcdefghijklmno"

	rec, err := eng.Create(context.Background(), CacheAndNetwork, "posts", localID, map[string]any{"title": "Hi"}, nil)
	require.NoError(t, err)

	// The fake echoes back whatever id it was given, so the happy path
	// keeps the local id and the row is synced.
	assert.Equal(t, localID, rec.ID)
	assert.True(t, rec.Synced())
}

func TestCreateNetworkFirstOfflineFails(t *testing.T) {
	cache := newFakeCache()
	rc := remote.NewFake()
	conn := remote.NewFakeConnectivity(false)
	eng := New(cache, rc, conn, noFileFields, nil, nil)

	_, err := eng.Create(context.Background(), NetworkFirst, "posts", "x", map[string]any{"title": "Hi"}, nil)
	assert.ErrorIs(t, err, ErrOffline)
}

func TestFetchCacheOnlyMiss(t *testing.T) {
	cache := newFakeCache()
	rc := remote.NewFake()
	eng := New(cache, rc, remote.NewFakeConnectivity(true), noFileFields, nil, nil)

	_, err := eng.Fetch(context.Background(), CacheOnly, "posts", "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestFetchNetworkOnlyOfflineFails(t *testing.T) {
	cache := newFakeCache()
	rc := remote.NewFake()
	eng := New(cache, rc, remote.NewFakeConnectivity(false), noFileFields, nil, nil)

	_, err := eng.Fetch(context.Background(), NetworkOnly, "posts", "x")
	assert.ErrorIs(t, err, ErrOffline)
}

func TestDeleteCacheOnlyMarksTombstone(t *testing.T) {
	cache := newFakeCache()
	cache.rows[key("posts", "a")] = &model.Record{ID: "a", Service: "posts", Data: map[string]any{"id": "a"}}

	rc := remote.NewFake()
	eng := New(cache, rc, remote.NewFakeConnectivity(true), noFileFields, nil, nil)

	err := eng.Delete(context.Background(), CacheOnly, "posts", "a", nil)
	require.NoError(t, err)

	rec := cache.rows[key("posts", "a")]
	require.NotNil(t, rec)
	assert.True(t, rec.Deleted())
}

func TestDeleteCacheAndNetworkSuccessRemovesRow(t *testing.T) {
	cache := newFakeCache()
	cache.rows[key("posts", "a")] = &model.Record{ID: "a", Service: "posts", Data: map[string]any{"id": "a"}}

	rc := remote.NewFake()
	rc.Seed("posts", "a", map[string]any{"id": "a"})
	eng := New(cache, rc, remote.NewFakeConnectivity(true), noFileFields, nil, nil)

	err := eng.Delete(context.Background(), CacheAndNetwork, "posts", "a", nil)
	require.NoError(t, err)

	assert.Nil(t, cache.rows[key("posts", "a")])
}

func TestDeleteCacheAndNetworkFailureMarksTombstone(t *testing.T) {
	cache := newFakeCache()
	cache.rows[key("posts", "a")] = &model.Record{ID: "a", Service: "posts", Data: map[string]any{"id": "a"}}

	rc := remote.NewFake() // not seeded; the fake's Delete succeeds unless FailNext queues an error
	rc.FailNext(&remote.RemoteError{Status: 500, Body: "boom"})

	eng := New(cache, rc, remote.NewFakeConnectivity(true), noFileFields, nil, nil)

	err := eng.Delete(context.Background(), CacheAndNetwork, "posts", "a", nil)
	require.NoError(t, err)

	rec := cache.rows[key("posts", "a")]
	require.NotNil(t, rec)
	assert.True(t, rec.Deleted())
	assert.False(t, rec.Synced())
}
