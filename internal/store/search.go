package store

import (
	"context"
	"fmt"
)

// SearchText runs a full-text query against the optional services_fts
// shadow table (SPEC_FULL.md section 4.2, "Optional FTS table"), returning
// the ids of matching records ordered by relevance (bm25). The table is
// contentless, so it stores no column values; ids and the service filter
// come from joining services on rowid. The table and its
// maintenance triggers are always present (migration 0004 creates them
// unconditionally) but are only queried when the caller's Config enables
// FullTextSearch — otherwise the trigger-maintained table sits unused.
func (s *Store) SearchText(ctx context.Context, service, query string, limit int) ([]*string, error) {
	if limit <= 0 {
		limit = 50
	}

	var ids []*string

	err := s.db.SelectContext(ctx, &ids, `
		SELECT s.id FROM services_fts
		JOIN services s ON s.rowid = services_fts.rowid
		WHERE s.service = ? AND services_fts MATCH ?
		ORDER BY bm25(services_fts)
		LIMIT ?`, service, query, limit)
	if err != nil {
		return nil, fmt.Errorf("pbsync: store: full-text search %s: %w", service, err)
	}

	return ids, nil
}
