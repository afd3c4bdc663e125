package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/otterway/pbsync/internal/model"
)

// neverCachedPrefixes is the blocklist of request path prefixes that are
// never cached regardless of method, per SPEC_FULL.md section 4.2.
var neverCachedPrefixes = []string{
	"/api/admin", "/api/batch", "/api/health", "/api/realtime",
	"/api/collections", "/api/settings", "/api/logs", "/api/backups",
	"/api/files",
}

// CacheKey builds the canonical request_key fingerprint: method::path::
// canonical(query)::canonical(body). Only GET requests produce a
// non-empty key; multipart-upload paths and blocklisted prefixes are
// never cached (both return "").
func CacheKey(method, path string, query, body map[string]string, multipart bool) string {
	if method != "GET" || multipart {
		return ""
	}

	for _, prefix := range neverCachedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return ""
		}
	}

	return method + "::" + path + "::" + canonicalPairs(query) + "::" + canonicalPairs(body)
}

// canonicalPairs renders a map as a sorted "k=v&k2=v2" string — the
// "SHA-free" canonicalization named in SPEC_FULL.md section 4.2: no hash
// is taken, the sorted key=value text itself is the fingerprint.
func canonicalPairs(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + m[k]
	}

	return strings.Join(parts, "&")
}

// PutResponse stores a cached response body under key. A no-op if key is "".
func (s *Store) PutResponse(ctx context.Context, key, responseData string, at time.Time) error {
	if key == "" {
		return nil
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cached_responses (request_key, response_data, cached_at) VALUES (?, ?, ?)
		 ON CONFLICT(request_key) DO UPDATE SET
		   response_data = excluded.response_data, cached_at = excluded.cached_at`,
		key, responseData, at)
	if err != nil {
		return fmt.Errorf("pbsync: store: put response %s: %w", key, err)
	}

	return nil
}

// GetResponse returns a cached response body, or ("", false) if absent or
// key is "".
func (s *Store) GetResponse(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, nil
	}

	var data string

	err := s.db.QueryRowContext(ctx,
		`SELECT response_data FROM cached_responses WHERE request_key = ?`, key,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("pbsync: store: get response %s: %w", key, err)
	}

	return data, true, nil
}

// DeleteExpiredResponses removes cached responses older than cutoff.
// Strict "<" cutoff per SPEC_FULL.md boundary behavior (not "<=").
func (s *Store) DeleteExpiredResponses(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM cached_responses WHERE cached_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pbsync: store: delete expired responses: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pbsync: store: delete expired responses rows affected: %w", err)
	}

	return int(n), nil
}

// DeleteExpiredRecords removes synced, non-local-only, non-tombstone
// records whose Updated is strictly before cutoff (Maintenance TTL sweep).
func (s *Store) DeleteExpiredRecords(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM services
		 WHERE updated < ?
		   AND json_extract(data,'$.synced') = 1
		   AND (json_extract(data,'$.noSync') IS NULL OR json_extract(data,'$.noSync') = 0)
		   AND (json_extract(data,'$.deleted') IS NULL OR json_extract(data,'$.deleted') = 0)`,
		model.NowISO8601(cutoff))
	if err != nil {
		return 0, fmt.Errorf("pbsync: store: delete expired records: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pbsync: store: delete expired records rows affected: %w", err)
	}

	return int(n), nil
}
