package store

import (
	"context"
	"fmt"
	"time"

	"github.com/otterway/pbsync/internal/filter"
	"github.com/otterway/pbsync/internal/model"
	"github.com/otterway/pbsync/internal/schema"
)

// QueryRecords returns every record in service whose data matches
// filterExpr, decoded to full model.Record values rather than the Query
// Engine's projected JSON shape. This is the Stale Reconciler's
// QueryFunc collaborator (SPEC_FULL.md section 4.6): syncLocal must
// re-run the exact filter the server was queried with against the local
// cache to find candidates for deletion. An empty filterExpr matches
// every row in the service.
func (s *Store) QueryRecords(ctx context.Context, service, filterExpr string, registry *schema.Registry, now time.Time) ([]*model.Record, error) {
	sqlStr := `SELECT id, service, data, created, updated FROM services WHERE service = ?`
	args := []any{service}

	if filterExpr != "" {
		expr, err := filter.Parse(filterExpr)
		if err != nil {
			return nil, fmt.Errorf("pbsync: store: query %s: %w", service, err)
		}

		var coll *model.Collection
		if registry != nil {
			coll = registry.ByName(service)
		}

		compiled, err := filter.Compile(expr, coll, now)
		if err != nil {
			return nil, fmt.Errorf("pbsync: store: query %s: %w", service, err)
		}

		sqlStr += " AND (" + compiled.SQL + ")"
		args = append(args, compiled.Args...)
	}

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, sqlStr, args...); err != nil {
		return nil, fmt.Errorf("pbsync: store: query %s: %w", service, err)
	}

	recs := make([]*model.Record, 0, len(rows))

	for i := range rows {
		rec, err := rows[i].toRecord()
		if err != nil {
			return nil, err
		}

		recs = append(recs, rec)
	}

	return recs, nil
}
