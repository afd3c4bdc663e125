package store

import (
	"context"
	"fmt"

	"github.com/otterway/pbsync/internal/model"
)

// reservedServices are never enumerated by the pending scanner (SPEC_FULL.md
// section 4.5): "schema" rows are metadata, not user mutations.
var reservedServices = map[string]bool{
	"schema": true,
}

// PendingServices returns the distinct collection names that currently have
// at least one pending row (synced=false and noSync is not true), excluding
// reserved collections. This is a point-in-time snapshot per a single
// SELECT, matching the "scanner takes a snapshot before iterating"
// discipline in SPEC_FULL.md section 5.
func (s *Store) PendingServices(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT service FROM services
		 WHERE json_extract(data,'$.synced') = 0
		   AND (json_extract(data,'$.noSync') IS NULL OR json_extract(data,'$.noSync') = 0)`)
	if err != nil {
		return nil, fmt.Errorf("pbsync: store: pending services: %w", err)
	}
	defer rows.Close()

	var services []string

	for rows.Next() {
		var svc string
		if err := rows.Scan(&svc); err != nil {
			return nil, fmt.Errorf("pbsync: store: scanning pending service: %w", err)
		}

		if reservedServices[svc] {
			continue
		}

		services = append(services, svc)
	}

	return services, rows.Err()
}

// PendingRows returns every pending row for service, in insertion order
// (created then id), the replay order guarantee from SPEC_FULL.md section 5.
func (s *Store) PendingRows(ctx context.Context, service string) ([]row, error) {
	var rs []row

	err := s.db.SelectContext(ctx, &rs,
		`SELECT id, service, data, created, updated FROM services
		 WHERE service = ?
		   AND json_extract(data,'$.synced') = 0
		   AND (json_extract(data,'$.noSync') IS NULL OR json_extract(data,'$.noSync') = 0)
		 ORDER BY created, id`, service)
	if err != nil {
		return nil, fmt.Errorf("pbsync: store: pending rows for %s: %w", service, err)
	}

	return rs, nil
}

// PendingRecords is the model-typed counterpart of PendingRows.
func (s *Store) PendingRecords(ctx context.Context, service string) ([]*model.Record, error) {
	rs, err := s.PendingRows(ctx, service)
	if err != nil {
		return nil, err
	}

	out := make([]*model.Record, 0, len(rs))

	for i := range rs {
		rec, err := rs[i].toRecord()
		if err != nil {
			return nil, err
		}

		out = append(out, rec)
	}

	return out, nil
}
