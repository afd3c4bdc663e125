package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otterway/pbsync/internal/model"
)

func rec(id string, synced, noSync, deleted bool) *model.Record {
	return &model.Record{ID: id, Service: "posts", Data: map[string]any{
		"id": id, model.FlagSynced: synced, model.FlagNoSync: noSync, model.FlagDeleted: deleted,
	}}
}

func TestReconcileDeletesAbsentSyncedRows(t *testing.T) {
	local := []*model.Record{rec("A", true, false, false), rec("B", true, false, false), rec("C", true, false, false)}

	var deletedIDs []string

	query := func(context.Context, string, string) ([]*model.Record, error) { return local, nil }
	del := func(_ context.Context, _, id string) error {
		deletedIDs = append(deletedIDs, id)
		return nil
	}

	r := New(query, del, nil)

	n, err := r.Reconcile(context.Background(), "posts", "community='x'", map[string]bool{"A": true, "C": true})
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"B"}, deletedIDs)
}

func TestReconcileSkipsUnsyncedNoSyncAndTombstoned(t *testing.T) {
	local := []*model.Record{
		rec("pending", false, false, false),
		rec("localonly", true, true, false),
		rec("tombstoned", true, false, true),
	}

	var deletedIDs []string

	query := func(context.Context, string, string) ([]*model.Record, error) { return local, nil }
	del := func(_ context.Context, _, id string) error {
		deletedIDs = append(deletedIDs, id)
		return nil
	}

	r := New(query, del, nil)

	n, err := r.Reconcile(context.Background(), "posts", "", map[string]bool{})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, deletedIDs)
}

func TestReconcileSafetyGuardAbortsOnEmptyIncomingWithManyStale(t *testing.T) {
	var local []*model.Record
	for i := 0; i < 11; i++ {
		local = append(local, rec(string(rune('A'+i)), true, false, false))
	}

	deletes := 0

	query := func(context.Context, string, string) ([]*model.Record, error) { return local, nil }
	del := func(context.Context, string, string) error {
		deletes++
		return nil
	}

	r := New(query, del, nil)

	n, err := r.Reconcile(context.Background(), "posts", "", map[string]bool{})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, deletes)
}

func TestReconcileExactlyAtThresholdStillDeletes(t *testing.T) {
	var local []*model.Record
	for i := 0; i < staleDeleteThreshold; i++ {
		local = append(local, rec(string(rune('A'+i)), true, false, false))
	}

	deletes := 0

	query := func(context.Context, string, string) ([]*model.Record, error) { return local, nil }
	del := func(context.Context, string, string) error {
		deletes++
		return nil
	}

	r := New(query, del, nil)

	n, err := r.Reconcile(context.Background(), "posts", "", map[string]bool{})
	require.NoError(t, err)
	assert.Equal(t, staleDeleteThreshold, n)
	assert.Equal(t, staleDeleteThreshold, deletes)
}
