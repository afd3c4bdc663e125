package pbsync

import (
	"errors"
	"fmt"
)

// Sentinel errors matching the taxonomy in SPEC_FULL.md section 7. Callers
// should use errors.Is/errors.As rather than comparing error strings.
var (
	// ErrOffline is returned when a policy required network access but
	// connectivity is currently down.
	ErrOffline = errors.New("pbsync: offline")

	// ErrCacheMiss is returned by CacheOnly reads that found no row.
	ErrCacheMiss = errors.New("pbsync: cache miss")

	// ErrSchemaMissing is the sentinel SchemaMissingError unwraps to.
	// Client's writes do not return it: a collection with no cached schema
	// is written without validation.
	ErrSchemaMissing = errors.New("pbsync: schema missing")

	// ErrParse is returned (as a *ParseError) by Client.Query for malformed
	// filter strings.
	ErrParse = errors.New("pbsync: filter parse error")

	// ErrFullTextSearchDisabled is returned by SearchText when the client
	// was opened without Config.FullTextSearch.
	ErrFullTextSearchDisabled = errors.New("pbsync: full-text search disabled")
)

// RemoteFailureError wraps a non-2xx response from the server. Status 400
// and 404 are probe signals consumed by the NetworkFirst/CacheAndNetwork
// write-policy create/update fallback logic.
type RemoteFailureError struct {
	Status int
	Body   string
}

func (e *RemoteFailureError) Error() string {
	return fmt.Sprintf("pbsync: remote failure: status=%d body=%s", e.Status, e.Body)
}

// ValidationFailureError is returned when local schema validation rejects
// a record body before it is written to the cache or sent to the server.
type ValidationFailureError struct {
	Field  string
	Reason string
}

func (e *ValidationFailureError) Error() string {
	return fmt.Sprintf("pbsync: validation failed: field=%s reason=%s", e.Field, e.Reason)
}

// SchemaMissingError names the collection whose schema could not be found.
// Callers may also match this with errors.Is(err, ErrSchemaMissing).
type SchemaMissingError struct {
	Collection string
}

func (e *SchemaMissingError) Error() string {
	return fmt.Sprintf("pbsync: schema missing for collection %q", e.Collection)
}

func (e *SchemaMissingError) Unwrap() error { return ErrSchemaMissing }

// ConflictingIDError is logged as a warning (not surfaced as a user-facing
// failure) when the server returns a different id than the locally
// generated one for a create.
type ConflictingIDError struct {
	Local  string
	Server string
}

func (e *ConflictingIDError) Error() string {
	return fmt.Sprintf("pbsync: server assigned id %q, local id %q discarded", e.Server, e.Local)
}

// ParseError names the filter string that failed to parse and the reason.
type ParseError struct {
	Filter string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("pbsync: parse error in filter %q: %s", e.Filter, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrParse }
