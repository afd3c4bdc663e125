package store

import (
	"context"
	"log/slog"
	"testing"
)

// testLogger returns a debug-level logger that writes to t.Log, so all
// activity appears in CI output.
func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(&testLogWriter{t: t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// testLogWriter adapts testing.T to io.Writer for slog.
type testLogWriter struct {
	t *testing.T
}

func (w *testLogWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))

	return len(p), nil
}

// newTestStore opens an in-memory store, registering cleanup with
// t.Cleanup.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), Options{Path: ":memory:", Logger: testLogger(t)})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close(): %v", err)
		}
	})

	return s
}
