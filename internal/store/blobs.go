package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/otterway/pbsync/internal/model"
)

// SetFile atomically replaces any prior blob rows for (recordID, filename)
// with a new one, per SPEC_FULL.md section 4.7.
func (s *Store) SetFile(ctx context.Context, recordID, filename string, data []byte, expiration *time.Time) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pbsync: store: setFile begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM blob_files WHERE record_id = ? AND filename = ?`, recordID, filename,
	); err != nil {
		return fmt.Errorf("pbsync: store: setFile delete prior %s/%s: %w", recordID, filename, err)
	}

	now := time.Now().UTC()

	var expVal sql.NullString
	if expiration != nil {
		expVal = sql.NullString{String: model.NowISO8601(*expiration), Valid: true}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO blob_files (record_id, filename, data, expiration, created, updated)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		recordID, filename, data, expVal, model.NowISO8601(now), model.NowISO8601(now),
	); err != nil {
		return fmt.Errorf("pbsync: store: setFile insert %s/%s: %w", recordID, filename, err)
	}

	return tx.Commit()
}

// GetFile returns the blob for (recordID, filename), or nil if absent.
func (s *Store) GetFile(ctx context.Context, recordID, filename string) (*model.FileBlob, error) {
	var (
		data       []byte
		expiration sql.NullString
		created    string
		updated    string
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT data, expiration, created, updated FROM blob_files WHERE record_id = ? AND filename = ?`,
		recordID, filename,
	).Scan(&data, &expiration, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil
	}

	if err != nil {
		return nil, fmt.Errorf("pbsync: store: getFile %s/%s: %w", recordID, filename, err)
	}

	blob := &model.FileBlob{RecordID: recordID, Filename: filename, Data: data}
	blob.Created, _ = time.Parse(time.RFC3339Nano, created)
	blob.Updated, _ = time.Parse(time.RFC3339Nano, updated)

	if expiration.Valid {
		t, parseErr := time.Parse(time.RFC3339Nano, expiration.String)
		if parseErr == nil {
			blob.Expiration = &t
		}
	}

	return blob, nil
}

// DeleteFile removes a single blob row, a no-op if absent.
func (s *Store) DeleteFile(ctx context.Context, recordID, filename string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM blob_files WHERE record_id = ? AND filename = ?`, recordID, filename)
	if err != nil {
		return fmt.Errorf("pbsync: store: deleteFile %s/%s: %w", recordID, filename, err)
	}

	return nil
}

// DeleteExpiredFiles removes every blob whose expiration has passed, used
// by Maintenance. Returns the number of rows removed.
func (s *Store) DeleteExpiredFiles(ctx context.Context, now time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM blob_files WHERE expiration IS NOT NULL AND expiration < ?`,
		model.NowISO8601(now))
	if err != nil {
		return 0, fmt.Errorf("pbsync: store: delete expired files: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pbsync: store: delete expired files rows affected: %w", err)
	}

	return int(n), nil
}
