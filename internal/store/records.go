package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/otterway/pbsync/internal/model"
)

// row is the raw database/sqlx shape of a services table row.
type row struct {
	ID      string `db:"id"`
	Service string `db:"service"`
	Data    string `db:"data"`
	Created string `db:"created"`
	Updated string `db:"updated"`
}

func (r *row) toRecord() (*model.Record, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(r.Data), &data); err != nil {
		return nil, fmt.Errorf("pbsync: store: decoding data for %s/%s: %w", r.Service, r.ID, err)
	}

	return &model.Record{
		ID: r.ID, Service: r.Service, Data: data, Created: r.Created, Updated: r.Updated,
	}, nil
}

// GetRow returns a single record by (service, id), or nil if absent.
func (s *Store) GetRow(ctx context.Context, service, id string) (*model.Record, error) {
	var r row

	err := s.db.GetContext(ctx, &r,
		`SELECT id, service, data, created, updated FROM services WHERE service = ? AND id = ?`,
		service, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // caller distinguishes "miss" from "error"
	}

	if err != nil {
		return nil, fmt.Errorf("pbsync: store: get %s/%s: %w", service, id, err)
	}

	return r.toRecord()
}

// CreateRow inserts a brand-new record. rec.Created/Updated are stamped if
// empty. Returns the wrapped SQLite unique-constraint error if (id, service)
// already exists.
func (s *Store) CreateRow(ctx context.Context, rec *model.Record) error {
	now := model.NowISO8601(time.Now())
	if rec.Created == "" {
		rec.Created = now
	}

	if rec.Updated == "" {
		rec.Updated = now
	}

	data, err := json.Marshal(rec.Data)
	if err != nil {
		return fmt.Errorf("pbsync: store: encoding data for %s/%s: %w", rec.Service, rec.ID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO services (id, service, data, created, updated) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Service, string(data), rec.Created, rec.Updated)
	if err != nil {
		return fmt.Errorf("pbsync: store: create %s/%s: %w", rec.Service, rec.ID, err)
	}

	return nil
}

// UpdateRow applies a partial update: overlay is merged onto the existing
// row's data (existing -> overlay -> id forced), satisfying the
// partial-update invariant in SPEC_FULL.md section 4.2 — a caller that
// omits required fields already present on the row never fails validation
// because of this merge, regardless of whether the caller validates before
// or after calling UpdateRow. If the row does not exist, the overlay (with
// id forced) is inserted as a new row via CreateRow and that record is
// returned.
func (s *Store) UpdateRow(ctx context.Context, service, id string, overlay map[string]any) (*model.Record, error) {
	existing, err := s.GetRow(ctx, service, id)
	if err != nil {
		return nil, err
	}

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
	if existing != nil {
		rec.Created = existing.Created
	}

	rec.Updated = model.NowISO8601(time.Now())

	data, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("pbsync: store: encoding update for %s/%s: %w", service, id, err)
	}

	if existing == nil {
		if rec.Created == "" {
			rec.Created = rec.Updated
		}

		if err := s.CreateRow(ctx, rec); err != nil {
			return nil, err
		}

		return rec, nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE services SET data = ?, updated = ? WHERE service = ? AND id = ?`,
		string(data), rec.Updated, service, id)
	if err != nil {
		return nil, fmt.Errorf("pbsync: store: update %s/%s: %w", service, id, err)
	}

	return rec, nil
}

// DeleteRow removes a record and cascades deletion of its file-field blobs,
// enumerated from the given collection schema, inside one transaction
// (SPEC_FULL.md section 4.7, invariant 6).
func (s *Store) DeleteRow(ctx context.Context, service, id string, fileFieldNames []string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pbsync: store: delete %s/%s: begin: %w", service, id, err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort; Commit below is the success path

	var existing *model.Record

	var r row

	err = tx.GetContext(ctx, &r,
		`SELECT id, service, data, created, updated FROM services WHERE service = ? AND id = ?`,
		service, id)

	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("pbsync: store: get %s/%s: %w", service, id, err)
	default:
		if existing, err = r.toRecord(); err != nil {
			return err
		}
	}

	if existing != nil {
		for _, field := range fileFieldNames {
			for _, filename := range filenamesForField(existing.Data, field) {
				if _, delErr := tx.ExecContext(ctx,
					`DELETE FROM blob_files WHERE record_id = ? AND filename = ?`, id, filename,
				); delErr != nil {
					return fmt.Errorf("pbsync: store: delete blob %s/%s: %w", id, filename, delErr)
				}
			}
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM services WHERE service = ? AND id = ?`, service, id,
	); err != nil {
		return fmt.Errorf("pbsync: store: delete %s/%s: %w", service, id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pbsync: store: delete %s/%s: commit: %w", service, id, err)
	}

	return nil
}

// filenamesForField extracts the filename(s) referenced by a file field's
// value, whichever of string (single) or []any (multi) shape it has.
func filenamesForField(data map[string]any, field string) []string {
	v, ok := data[field]
	if !ok || v == nil {
		return nil
	}

	switch val := v.(type) {
	case string:
		if val == "" {
			return nil
		}

		return []string{val}
	case []any:
		out := make([]string, 0, len(val))

		for _, item := range val {
			if str, ok := item.(string); ok && str != "" {
				out = append(out, str)
			}
		}

		return out
	default:
		return nil
	}
}

// SetLocal bulk-upserts rows, replacing existing rows with the same key
// unconditionally (no timestamp comparison). Used for the initial seed of
// a collection (Client.SeedLocal).
func (s *Store) SetLocal(ctx context.Context, recs []*model.Record) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pbsync: store: setLocal begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, rec := range recs {
		if err := upsertTx(ctx, tx, rec); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pbsync: store: setLocal commit: %w", err)
	}

	return nil
}

// MergeLocal performs a timestamp-aware upsert: a row is written only if it
// is absent locally or its incoming Updated is strictly newer than the
// local copy's (SPEC_FULL.md section 4.2, last-write-wins ordering).
// It returns only an error, not the ids written: the stale reconciler's
// incoming-id set is the caller's full items list regardless of which
// rows were written here.
func (s *Store) MergeLocal(ctx context.Context, recs []*model.Record) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pbsync: store: mergeLocal begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, rec := range recs {
		var localUpdated sql.NullString

		err := tx.QueryRowContext(ctx,
			`SELECT updated FROM services WHERE service = ? AND id = ?`, rec.Service, rec.ID,
		).Scan(&localUpdated)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("pbsync: store: mergeLocal lookup %s/%s: %w", rec.Service, rec.ID, err)
		}

		if localUpdated.Valid && !newer(rec.Updated, localUpdated.String) {
			continue
		}

		if err := upsertTx(ctx, tx, rec); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// newer reports whether a (an ISO-8601 timestamp) is strictly later than b.
// Both are parsed as RFC 3339, which accepts any fractional-seconds width
// (model.NowISO8601 drops trailing zeros), and compared as instants; if
// either fails to parse, the two strings are compared lexically instead.
func newer(a, b string) bool {
	ta, errA := time.Parse(time.RFC3339Nano, a)
	tb, errB := time.Parse(time.RFC3339Nano, b)

	if errA != nil || errB != nil {
		return a > b
	}

	return ta.After(tb)
}

func upsertTx(ctx context.Context, tx interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}, rec *model.Record) error {
	now := model.NowISO8601(time.Now())
	if rec.Created == "" {
		rec.Created = now
	}

	if rec.Updated == "" {
		rec.Updated = now
	}

	data, err := json.Marshal(rec.Data)
	if err != nil {
		return fmt.Errorf("pbsync: store: encoding %s/%s: %w", rec.Service, rec.ID, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO services (id, service, data, created, updated) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id, service) DO UPDATE SET
		   data = excluded.data, updated = excluded.updated`,
		rec.ID, rec.Service, string(data), rec.Created, rec.Updated)
	if err != nil {
		return fmt.Errorf("pbsync: store: upsert %s/%s: %w", rec.Service, rec.ID, err)
	}

	return nil
}
