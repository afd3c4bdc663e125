package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetFileThenGetFileRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetFile(ctx, "rec1", "a.png", []byte("first"), nil))

	blob, err := s.GetFile(ctx, "rec1", "a.png")
	require.NoError(t, err)
	require.NotNil(t, blob)
	assert.Equal(t, []byte("first"), blob.Data)
	assert.Nil(t, blob.Expiration)
}

func TestSetFileReplacesPriorRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetFile(ctx, "rec1", "a.png", []byte("first"), nil))
	require.NoError(t, s.SetFile(ctx, "rec1", "a.png", []byte("second"), nil))

	blob, err := s.GetFile(ctx, "rec1", "a.png")
	require.NoError(t, err)
	require.NotNil(t, blob)
	assert.Equal(t, []byte("second"), blob.Data, "SetFile must atomically replace, not append, a prior blob")
}

func TestGetFileMissReturnsNilNil(t *testing.T) {
	s := newTestStore(t)

	blob, err := s.GetFile(context.Background(), "rec1", "missing.png")
	require.NoError(t, err)
	assert.Nil(t, blob)
}

func TestDeleteFileRemovesRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetFile(ctx, "rec1", "a.png", []byte("data"), nil))
	require.NoError(t, s.DeleteFile(ctx, "rec1", "a.png"))

	blob, err := s.GetFile(ctx, "rec1", "a.png")
	require.NoError(t, err)
	assert.Nil(t, blob)
}

func TestDeleteExpiredFilesRemovesOnlyPastExpiration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	past := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	future := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.SetFile(ctx, "rec1", "expired.png", []byte("x"), &past))
	require.NoError(t, s.SetFile(ctx, "rec1", "alive.png", []byte("y"), &future))
	require.NoError(t, s.SetFile(ctx, "rec1", "forever.png", []byte("z"), nil))

	n, err := s.DeleteExpiredFiles(ctx, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	expired, err := s.GetFile(ctx, "rec1", "expired.png")
	require.NoError(t, err)
	assert.Nil(t, expired)

	alive, err := s.GetFile(ctx, "rec1", "alive.png")
	require.NoError(t, err)
	assert.NotNil(t, alive)

	forever, err := s.GetFile(ctx, "rec1", "forever.png")
	require.NoError(t, err)
	assert.NotNil(t, forever)
}
