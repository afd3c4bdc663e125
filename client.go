// Package pbsync is the public facade of the offline-first synchronization
// core: it wires the Cache Store, Query Engine, Schema Registry, Policy
// Engine, Sync Manager, and Stale Reconciler behind a single Client,
// collapsing the "mixin over a base remote service" shape of the original
// into composition (SPEC_FULL.md section 9).
package pbsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/otterway/pbsync/internal/blobmap"
	"github.com/otterway/pbsync/internal/filter"
	"github.com/otterway/pbsync/internal/maintenance"
	"github.com/otterway/pbsync/internal/model"
	"github.com/otterway/pbsync/internal/policy"
	"github.com/otterway/pbsync/internal/query"
	"github.com/otterway/pbsync/internal/reconcile"
	"github.com/otterway/pbsync/internal/remote"
	"github.com/otterway/pbsync/internal/schema"
	"github.com/otterway/pbsync/internal/store"
	"github.com/otterway/pbsync/internal/syncmgr"
)

// Policy is one of the five request routing strategies (SPEC_FULL.md
// section 4.1). Re-exported at the facade boundary so callers never need
// to import an internal package directly.
type Policy = policy.Policy

// The five routing strategies.
const (
	CacheOnly       = policy.CacheOnly
	NetworkOnly     = policy.NetworkOnly
	CacheFirst      = policy.CacheFirst
	NetworkFirst    = policy.NetworkFirst
	CacheAndNetwork = policy.CacheAndNetwork
)

// ParsePolicy parses a policy's String() form ("CacheOnly", "NetworkFirst",
// …), for config files and CLI flags that name a policy as text.
func ParsePolicy(s string) (Policy, error) {
	return policy.ParsePolicy(s)
}

// Record is a single cached JSON document (data-model.md section 3).
type Record = model.Record

// Collection is a parsed collection schema.
type Collection = model.Collection

// FileBlob is a cached file attachment.
type FileBlob = model.FileBlob

// File is a single buffered upload accompanying a Create/Update call.
type File = remote.File

// QueryParams is one cache-query request (SPEC_FULL.md section 4.3).
type QueryParams = query.Params

// MaintenanceResult reports the counts a maintenance sweep deleted
// (SPEC_FULL.md section 4.9).
type MaintenanceResult = maintenance.Result

// Config configures a Client (SPEC_FULL.md section 6, "Configuration
// recognized by the core").
type Config struct {
	// BaseURL is informational only; the core never dials it directly,
	// RemoteClient already carries whatever base address it needs.
	BaseURL string

	// RequestPolicy is the default used by the *Default convenience
	// methods when a caller does not pick a policy explicitly.
	RequestPolicy Policy

	// CacheTTL bounds how long synced records/responses/files survive
	// RunMaintenance; nil disables cleanup entirely.
	CacheTTL *time.Duration

	// DBPath is the SQLite file path, or ":memory:" for an ephemeral
	// store. Defaults to ":memory:" if empty.
	DBPath string

	// RemoteClient is the HTTP transport/auth collaborator (out of
	// scope per spec.md section 1). May be nil for a cache-only client
	// that never issues CacheFirst/NetworkOnly/NetworkFirst/CacheAndNetwork
	// calls (CacheFirst reaches the remote in the background when online).
	RemoteClient remote.Client

	// Connectivity is the connectivity probe collaborator. Nil means
	// "always online".
	Connectivity remote.Connectivity

	// SchemaSnapshot is an optional bundled JSON array of collection
	// schemas loaded at Open time for offline bootstrap (SPEC_FULL.md
	// section 4.8).
	SchemaSnapshot []byte

	// MaxExpandDepth bounds the Query Engine's expand recursion. 0 uses
	// query.MaxExpandDepth (6).
	MaxExpandDepth int

	// FullTextSearch gates SearchText. The services_fts shadow table and
	// its maintenance triggers are created unconditionally by migration,
	// but SearchText refuses to query it unless this is set, so a client
	// that never opts in never pays for a MATCH query plan.
	FullTextSearch bool

	// Logger receives structured logs from every component. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Client is the single offline-first entry point: every read and write a
// caller issues is routed through the Policy Engine, backed by the Cache
// Store and, connectivity permitting, cfg.RemoteClient.
type Client struct {
	cfg      Config
	store    *store.Store
	registry *schema.Registry
	queryEng *query.Engine
	engine   *policy.Engine
	sync     *syncmgr.Manager
	reconcil *reconcile.Reconciler
	logger   *slog.Logger

	fileFieldsFor policy.FileFieldsFor

	bgGroup  *errgroup.Group
	bgCancel context.CancelFunc
	watchCtx context.Context

	watchOnce sync.Once
	closeOnce sync.Once
}

// New opens the cache store (running migrations as needed), bootstraps
// the schema registry, and wires the Policy Engine, Sync Manager, and
// Stale Reconciler together.
func New(ctx context.Context, cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = ":memory:"
	}

	st, err := store.Open(ctx, store.Options{Path: dbPath, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("pbsync: opening cache store: %w", err)
	}

	registry := schema.New()

	if len(cfg.SchemaSnapshot) > 0 {
		if err := registry.LoadSnapshot(cfg.SchemaSnapshot); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("pbsync: loading schema snapshot: %w", err)
		}
	}

	queryEng := query.NewWithExpandDepth(st.DB(), registry, cfg.MaxExpandDepth)

	watchCtx, cancel := context.WithCancel(context.Background())
	bgGroup, _ := errgroup.WithContext(watchCtx)

	fileFieldsFor := func(service string) []string {
		coll := registry.ByName(service)
		if coll == nil {
			return nil
		}

		fields := coll.FileFields()
		names := make([]string, len(fields))

		for i, f := range fields {
			names[i] = f.Name
		}

		return names
	}

	engine := policy.New(st, cfg.RemoteClient, cfg.Connectivity, fileFieldsFor, bgGroup, logger)

	recon := reconcile.New(
		func(ctx context.Context, service, filterExpr string) ([]*model.Record, error) {
			return st.QueryRecords(ctx, service, filterExpr, registry, time.Now())
		},
		func(ctx context.Context, service, id string) error {
			return st.DeleteRow(ctx, service, id, fileFieldsFor(service))
		},
		logger,
	)

	sm := syncmgr.New(st, engine, cfg.Connectivity, logger)

	return &Client{
		cfg: cfg, store: st, registry: registry, queryEng: queryEng,
		engine: engine, sync: sm, reconcil: recon, logger: logger,
		fileFieldsFor: fileFieldsFor,
		bgGroup:       bgGroup, bgCancel: cancel, watchCtx: watchCtx,
	}, nil
}

// Close cancels every in-flight background task launched by CacheFirst
// reads, writes and list reads and the connectivity watcher, waits for them to
// return, and closes the underlying database connection (SPEC_FULL.md
// section 9, "Background tasks... bound to a structured scope owned by
// the client so it is cancellable on client shutdown").
func (c *Client) Close() error {
	var err error

	c.closeOnce.Do(func() {
		c.bgCancel()
		_ = c.bgGroup.Wait()
		err = c.store.Close()
	})

	return err
}

// PutSchema registers (or replaces) a single collection schema, decoded
// from the server's wire JSON shape (SPEC_FULL.md section 4.8).
func (c *Client) PutSchema(data []byte) error {
	return c.registry.PutFromJSON(data)
}

// Schema returns the cached schema for service, or nil if none is known.
func (c *Client) Schema(service string) *Collection {
	return c.registry.ByName(service)
}

// translateErr maps the Policy Engine's internal sentinel/typed errors onto
// the root package's public taxonomy (SPEC_FULL.md section 7); the policy
// package comment on its own errors.go calls this out as the facade's job.
func translateErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, policy.ErrOffline):
		return ErrOffline
	case errors.Is(err, policy.ErrCacheMiss):
		return ErrCacheMiss
	}

	var rf *policy.RemoteFailureError
	if errors.As(err, &rf) {
		return &RemoteFailureError{Status: rf.Status, Body: rf.Body}
	}

	return err
}

// Fetch reads a single record through the five-way Policy Engine routing
// table (SPEC_FULL.md section 4.1).
func (c *Client) Fetch(ctx context.Context, p Policy, service, id string) (*Record, error) {
	rec, err := c.engine.Fetch(ctx, p, service, id)
	return rec, translateErr(err)
}

// FetchDefault reads using the client's configured default policy.
func (c *Client) FetchDefault(ctx context.Context, service, id string) (*Record, error) {
	return c.Fetch(ctx, c.cfg.RequestPolicy, service, id)
}

// Create writes a new record through the five-way write routing table. A
// non-empty body["id"] is used as the record id; an empty or absent one
// causes a server-compatible local id to be generated.
// files, if non-empty, is uploaded alongside the body when the active
// policy reaches the network, and re-cached in the File Blob Store under
// the server's renamed filename on success (SPEC_FULL.md section 4.7).
func (c *Client) Create(ctx context.Context, p Policy, service string, body map[string]any, files []File) (*Record, error) {
	if err := c.validate(ctx, service, "", body, false); err != nil {
		return nil, err
	}

	id, _ := body["id"].(string)

	rec, err := c.engine.Create(ctx, p, service, id, body, files)
	if err != nil {
		return nil, translateErr(err)
	}

	if cacheErr := c.cacheUploadedFiles(ctx, rec, files); cacheErr != nil {
		c.logger.Warn("pbsync: client: caching uploaded files failed", "service", service, "id", rec.ID, "error", cacheErr)
	}

	return rec, nil
}

// CreateDefault creates using the client's configured default policy.
func (c *Client) CreateDefault(ctx context.Context, service string, body map[string]any, files []File) (*Record, error) {
	return c.Create(ctx, c.cfg.RequestPolicy, service, body, files)
}

// Update partially updates an existing record.
func (c *Client) Update(ctx context.Context, p Policy, service, id string, body map[string]any, files []File) (*Record, error) {
	if err := c.validate(ctx, service, id, body, true); err != nil {
		return nil, err
	}

	rec, err := c.engine.Update(ctx, p, service, id, body, files)
	if err != nil {
		return nil, translateErr(err)
	}

	if cacheErr := c.cacheUploadedFiles(ctx, rec, files); cacheErr != nil {
		c.logger.Warn("pbsync: client: caching uploaded files failed", "service", service, "id", rec.ID, "error", cacheErr)
	}

	return rec, nil
}

// UpdateDefault updates using the client's configured default policy.
func (c *Client) UpdateDefault(ctx context.Context, service, id string, body map[string]any, files []File) (*Record, error) {
	return c.Update(ctx, c.cfg.RequestPolicy, service, id, body, files)
}

// Delete removes a record, cascading to its file-typed fields' blobs.
func (c *Client) Delete(ctx context.Context, p Policy, service, id string) error {
	return translateErr(c.engine.Delete(ctx, p, service, id, c.fileFieldsFor(service)))
}

// DeleteDefault deletes using the client's configured default policy.
func (c *Client) DeleteDefault(ctx context.Context, service, id string) error {
	return c.Delete(ctx, c.cfg.RequestPolicy, service, id)
}

// cacheUploadedFiles re-caches each buffered upload's bytes in the File
// Blob Store. A synced record means the write reached the server, whose
// canonical filenames are resolved via blobmap.Remap; otherwise (still
// pending/local-only) the bytes are cached under the caller's original
// filenames, preserving testable property 3 ("cacheOnly get(id) returns
// the record with the original file field names").
func (c *Client) cacheUploadedFiles(ctx context.Context, rec *Record, files []File) error {
	if rec == nil || len(files) == 0 {
		return nil
	}

	if !rec.Synced() {
		for _, f := range files {
			if err := c.store.SetFile(ctx, rec.ID, f.Filename, f.Bytes, nil); err != nil {
				return err
			}
		}

		return nil
	}

	buffered := make([]blobmap.Buffered, len(files))
	for i, f := range files {
		buffered[i] = blobmap.Buffered{Field: f.Field, Filename: f.Filename, Bytes: f.Bytes}
	}

	for _, m := range blobmap.Remap(buffered, rec.Data) {
		if err := c.store.SetFile(ctx, rec.ID, m.ServerFilename, m.Bytes, nil); err != nil {
			return err
		}
	}

	return nil
}

// validate runs Schema Registry validation against body before a write
// reaches the Policy Engine (SPEC_FULL.md section 4.8). A collection with
// no cached schema is left unvalidated — the core cannot enforce rules it
// has never seen, and the bundled-snapshot/server-refresh bootstrap in
// SPEC_FULL.md section 4.8 is how a caller avoids that state, not a hard
// failure here. For an update, body is merged onto the existing cached
// row first so a partial update is validated as it will actually be
// persisted (the same three-way-merge invariant store.UpdateRow applies).
func (c *Client) validate(ctx context.Context, service, id string, body map[string]any, isUpdate bool) error {
	coll := c.registry.ByName(service)
	if coll == nil {
		return nil
	}

	data := body

	if isUpdate {
		if existing, err := c.store.GetRow(ctx, service, id); err == nil && existing != nil {
			merged := make(map[string]any, len(existing.Data)+len(body))
			for k, v := range existing.Data {
				merged[k] = v
			}

			for k, v := range body {
				merged[k] = v
			}

			data = merged
		}
	}

	if err := schema.Validate(coll, data); err != nil {
		var verr *schema.ValidationError
		if errors.As(err, &verr) {
			return &ValidationFailureError{Field: verr.Field, Reason: verr.Reason}
		}

		return err
	}

	return nil
}

// GetFile returns a cached file attachment, or nil if absent.
func (c *Client) GetFile(ctx context.Context, recordID, filename string) (*FileBlob, error) {
	return c.store.GetFile(ctx, recordID, filename)
}

// SetFile atomically replaces a cached file attachment.
func (c *Client) SetFile(ctx context.Context, recordID, filename string, data []byte, expiration *time.Time) error {
	return c.store.SetFile(ctx, recordID, filename, data, expiration)
}

// DeleteFile removes a single cached file attachment.
func (c *Client) DeleteFile(ctx context.Context, recordID, filename string) error {
	return c.store.DeleteFile(ctx, recordID, filename)
}

// Query runs a cache-only read against the Query Engine: filter, sort,
// field projection, limit/offset, and relation expansion, with no network
// involvement (SPEC_FULL.md section 4.3).
func (c *Client) Query(ctx context.Context, service string, params QueryParams) ([]map[string]any, error) {
	rows, err := c.queryEng.Query(ctx, service, params, time.Now())
	if errors.Is(err, filter.ErrParse) {
		return nil, &ParseError{Filter: params.Filter, Reason: err.Error()}
	}

	return rows, err
}

// SearchText runs a full-text query against the optional services_fts
// shadow table (SPEC_FULL.md section 4.2) and returns the matching cached
// records, most relevant first. It refuses to run unless the client was
// opened with Config.FullTextSearch, since the shadow table is otherwise
// unindexed-by-intent dead weight kept only so enabling the feature later
// needs no migration.
func (c *Client) SearchText(ctx context.Context, service, query string, limit int) ([]*Record, error) {
	if !c.cfg.FullTextSearch {
		return nil, ErrFullTextSearchDisabled
	}

	ids, err := c.store.SearchText(ctx, service, query, limit)
	if err != nil {
		return nil, err
	}

	recs := make([]*Record, 0, len(ids))

	for _, id := range ids {
		if id == nil {
			continue
		}

		rec, err := c.store.GetRow(ctx, service, *id)
		if err != nil {
			return nil, fmt.Errorf("pbsync: client: searchText %s: %w", service, err)
		}

		if rec != nil {
			recs = append(recs, rec)
		}
	}

	return recs, nil
}

// FetchList runs a filtered list read through the five-way read routing
// table. Unlike Fetch, the NetworkFirst/CacheAndNetwork network-reaching
// paths additionally run syncLocal (merge + Stale Reconciler) against the
// exact same filter before the cache is queried, and CacheFirst queries the
// cache first and then runs the remote fetch and syncLocal in a background
// task, so stale local rows absent from the server's response are pruned
// (SPEC_FULL.md sections 4.2 and 4.6).
func (c *Client) FetchList(ctx context.Context, p Policy, service string, params QueryParams) ([]map[string]any, error) {
	switch p {
	case CacheOnly:
		return c.Query(ctx, service, params)

	case NetworkOnly:
		if !c.online() {
			return nil, ErrOffline
		}

		return c.fetchFullList(ctx, service, params)

	case CacheFirst:
		rows, err := c.Query(ctx, service, params)
		if err != nil {
			return nil, err
		}

		if c.online() {
			c.launchBackgroundSync(service, params)
		}

		return rows, nil

	case NetworkFirst, CacheAndNetwork:
		if c.online() {
			items, err := c.fetchFullList(ctx, service, params)
			if err == nil {
				if _, syncErr := c.syncLocal(ctx, service, items, params.Filter); syncErr != nil {
					c.logger.Warn("pbsync: client: syncLocal after full list fetch failed", "service", service, "error", syncErr)
				}

				return c.Query(ctx, service, params)
			}

			c.logger.Debug("pbsync: client: remote list fetch failed, falling back to cache", "service", service, "error", err)
		}

		return c.Query(ctx, service, params)

	default:
		return nil, fmt.Errorf("pbsync: client: fetchList: unknown policy %v", p)
	}
}

// FetchListDefault runs FetchList with the client's configured default
// policy.
func (c *Client) FetchListDefault(ctx context.Context, service string, params QueryParams) ([]map[string]any, error) {
	return c.FetchList(ctx, c.cfg.RequestPolicy, service, params)
}

func (c *Client) online() bool {
	return c.cfg.Connectivity == nil || c.cfg.Connectivity.IsConnected()
}

// launchBackgroundSync is CacheFirst list-read's out-of-band remote fetch
// + syncLocal, bound to the client's background scope (SPEC_FULL.md
// section 9).
func (c *Client) launchBackgroundSync(service string, params QueryParams) {
	c.bgGroup.Go(func() error {
		bgCtx := context.Background()

		items, err := c.fetchFullList(bgCtx, service, params)
		if err != nil {
			c.logger.Warn("pbsync: client: cachefirst background list fetch failed", "service", service, "error", err)
			return nil
		}

		if _, err := c.syncLocal(bgCtx, service, items, params.Filter); err != nil {
			c.logger.Warn("pbsync: client: cachefirst background syncLocal failed", "service", service, "error", err)
		}

		return nil
	})
}

// fetchFullList pages through RemoteClient.GetList until every item has
// been collected (SPEC_FULL.md section 4.5's "full paginated fetch").
func (c *Client) fetchFullList(ctx context.Context, service string, params QueryParams) ([]map[string]any, error) {
	const perPage = 200

	var all []map[string]any

	page := 1

	for {
		res, err := c.cfg.RemoteClient.GetList(ctx, service, remote.ListParams{
			Page: page, PerPage: perPage,
			Filter: params.Filter, Sort: params.Sort, Fields: params.Fields, Expand: params.Expand,
		})
		if err != nil {
			return nil, fmt.Errorf("pbsync: client: fetchFullList %s page %d: %w", service, page, err)
		}

		all = append(all, res.Items...)

		if len(res.Items) == 0 || page >= res.TotalPages {
			break
		}

		page++
	}

	return all, nil
}

// syncLocal implements the Cache Store's syncLocal operation: mergeLocal
// followed by the Stale Reconciler, both driven by the same filter the
// server was queried with (SPEC_FULL.md sections 4.2 and 4.6).
func (c *Client) syncLocal(ctx context.Context, service string, items []map[string]any, filterExpr string) (deleted int, err error) {
	recs := make([]*model.Record, 0, len(items))
	incomingIDs := make(map[string]bool, len(items))

	for _, item := range items {
		id, _ := item["id"].(string)
		if id == "" {
			continue
		}

		incomingIDs[id] = true

		data := make(map[string]any, len(item))
		for k, v := range item {
			data[k] = v
		}

		data[model.FlagSynced] = true
		data[model.FlagIsNew] = false

		rec := &model.Record{ID: id, Service: service, Data: data}
		if created, ok := item["created"].(string); ok {
			rec.Created = created
		}

		if updated, ok := item["updated"].(string); ok {
			rec.Updated = updated
		}

		recs = append(recs, rec)
	}

	if err := c.store.MergeLocal(ctx, recs); err != nil {
		return 0, fmt.Errorf("pbsync: client: syncLocal %s: merging: %w", service, err)
	}

	return c.reconcil.Reconcile(ctx, service, filterExpr, incomingIDs)
}

// SeedLocal bulk-replaces a collection's cached rows unconditionally (no
// timestamp comparison), for an initial offline bootstrap seed
// (SPEC_FULL.md section 4.2, "setLocal").
func (c *Client) SeedLocal(ctx context.Context, recs []*Record) error {
	return c.store.SetLocal(ctx, recs)
}

// WatchConnectivity starts the Sync Manager's connectivity-rising-edge
// watcher as a background task bound to the client's lifetime; calling it
// more than once is a no-op (SPEC_FULL.md section 4.5).
func (c *Client) WatchConnectivity() {
	c.watchOnce.Do(func() {
		c.bgGroup.Go(func() error {
			c.sync.Watch(c.watchCtx)
			return nil
		})
	})
}

// TriggerSync runs one Sync Manager drain pass over every collection's
// pending rows, replaying them against the server in insertion order.
// Concurrent calls coalesce into the currently-running pass.
func (c *Client) TriggerSync(ctx context.Context) {
	c.sync.Drain(ctx)
}

// OnAppResume should be called when the host application returns to the
// foreground; it drains pending rows only if currently online.
func (c *Client) OnAppResume(ctx context.Context) {
	c.sync.TriggerOnAppResume(ctx)
}

// RunMaintenance runs the TTL-based cleanup sweep across records, cached
// responses, and file blobs, using the client's configured CacheTTL
// (SPEC_FULL.md section 4.9).
func (c *Client) RunMaintenance(ctx context.Context) (MaintenanceResult, error) {
	return maintenance.Run(ctx, c.store, c.cfg.CacheTTL, time.Now(), c.logger)
}

// ResponseCacheKey computes the idempotent-read response cache key for a
// request (SPEC_FULL.md section 4.2).
func ResponseCacheKey(method, path string, query, body map[string]string, multipart bool) string {
	return store.CacheKey(method, path, query, body, multipart)
}
