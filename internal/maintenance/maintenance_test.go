package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	recordsDeleted, responsesDeleted, filesDeleted int
	gotCutoff, gotNow                               time.Time
}

func (f *fakeStore) DeleteExpiredRecords(_ context.Context, cutoff time.Time) (int, error) {
	f.gotCutoff = cutoff
	return f.recordsDeleted, nil
}

func (f *fakeStore) DeleteExpiredResponses(_ context.Context, cutoff time.Time) (int, error) {
	return f.responsesDeleted, nil
}

func (f *fakeStore) DeleteExpiredFiles(_ context.Context, now time.Time) (int, error) {
	f.gotNow = now
	return f.filesDeleted, nil
}

func TestRunNilTTLIsNoop(t *testing.T) {
	store := &fakeStore{recordsDeleted: 5, responsesDeleted: 5, filesDeleted: 5}

	result, err := Run(context.Background(), store, nil, time.Now(), nil)
	require.NoError(t, err)
	assert.Equal(t, Result{}, result)
	assert.True(t, store.gotCutoff.IsZero())
}

func TestRunSumsCounts(t *testing.T) {
	store := &fakeStore{recordsDeleted: 2, responsesDeleted: 3, filesDeleted: 4}
	ttl := 7 * 24 * time.Hour
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	result, err := Run(context.Background(), store, &ttl, now, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, result.DeletedRecords)
	assert.Equal(t, 3, result.DeletedResponses)
	assert.Equal(t, 4, result.DeletedFiles)
	assert.Equal(t, 9, result.Total())
	assert.Equal(t, now.Add(-ttl), store.gotCutoff)
	assert.Equal(t, now, store.gotNow)
}
