// Package policy implements the Request Policy Engine: a five-way router
// for reads, writes, and deletes between the Cache Store and a RemoteClient
// (SPEC_FULL.md section 4.1).
package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/otterway/pbsync/internal/idgen"
	"github.com/otterway/pbsync/internal/model"
	"github.com/otterway/pbsync/internal/remote"
)

// Policy is one of the five routing strategies from SPEC_FULL.md section 4.1.
type Policy int

const (
	CacheOnly Policy = iota
	NetworkOnly
	CacheFirst
	NetworkFirst
	CacheAndNetwork
)

func (p Policy) String() string {
	switch p {
	case CacheOnly:
		return "CacheOnly"
	case NetworkOnly:
		return "NetworkOnly"
	case CacheFirst:
		return "CacheFirst"
	case NetworkFirst:
		return "NetworkFirst"
	case CacheAndNetwork:
		return "CacheAndNetwork"
	default:
		return "Unknown"
	}
}

// ParsePolicy parses a policy's String() form, for config files and CLI
// flags that name a policy as text rather than constructing it in code.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "CacheOnly":
		return CacheOnly, nil
	case "NetworkOnly":
		return NetworkOnly, nil
	case "CacheFirst":
		return CacheFirst, nil
	case "NetworkFirst":
		return NetworkFirst, nil
	case "CacheAndNetwork":
		return CacheAndNetwork, nil
	default:
		return 0, fmt.Errorf("pbsync: policy: unknown policy %q", s)
	}
}

// CacheOps is the subset of the Cache Store the Policy Engine depends on,
// collapsing the teacher's mixin-over-base-service shape into composition
// (SPEC_FULL.md section 9, "subclassing collapsed").
type CacheOps interface {
	GetRow(ctx context.Context, service, id string) (*model.Record, error)
	CreateRow(ctx context.Context, rec *model.Record) error
	UpdateRow(ctx context.Context, service, id string, overlay map[string]any) (*model.Record, error)
	DeleteRow(ctx context.Context, service, id string, fileFieldNames []string) error
}

// FileFieldsFor resolves the file-typed field names for cascading deletes;
// the engine depends on it rather than the schema package directly so
// tests can supply a stub collection-free lookup.
type FileFieldsFor func(service string) []string

// Engine routes fetch/mutate/delete operations per the active policy.
type Engine struct {
	cache         CacheOps
	remoteClient  remote.Client
	conn          remote.Connectivity
	fileFieldsFor FileFieldsFor
	logger        *slog.Logger
	bg            *errgroup.Group
}

// New returns an Engine. bgGroup is the client-owned errgroup that
// CacheFirst's background remote tasks are launched under, so they
// are bound to a structured scope and canceled on client shutdown
// (SPEC_FULL.md section 9, "Background tasks").
func New(cache CacheOps, rc remote.Client, conn remote.Connectivity, fileFieldsFor FileFieldsFor, bgGroup *errgroup.Group, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{cache: cache, remoteClient: rc, conn: conn, fileFieldsFor: fileFieldsFor, bg: bgGroup, logger: logger}
}

func (e *Engine) online() bool { return e.conn == nil || e.conn.IsConnected() }

// Fetch implements the five-way read routing table from SPEC_FULL.md
// section 4.1.
func (e *Engine) Fetch(ctx context.Context, p Policy, service, id string) (*model.Record, error) {
	e.logger.Info("pbsync: policy: fetch", "policy", p.String(), "service", service, "id", id)

	switch p {
	case CacheOnly:
		rec, err := e.cache.GetRow(ctx, service, id)
		if err != nil {
			return nil, fmt.Errorf("pbsync: policy: fetch %s: %w", p, err)
		}

		if rec == nil {
			return nil, ErrCacheMiss
		}

		return rec, nil

	case NetworkOnly:
		if !e.online() {
			return nil, ErrOffline
		}

		return e.fetchRemote(ctx, service, id)

	case CacheFirst:
		rec, err := e.cache.GetRow(ctx, service, id)
		if err != nil {
			return nil, fmt.Errorf("pbsync: policy: fetch %s: %w", p, err)
		}

		if e.online() {
			e.launchBackground(func(bgCtx context.Context) error {
				remoteRec, err := e.fetchRemote(bgCtx, service, id)
				if err != nil {
					e.logger.Warn("pbsync: policy: cachefirst background fetch failed", "service", service, "id", id, "error", err)
					return nil
				}

				if _, err := e.cache.UpdateRow(bgCtx, service, id, remoteRec.Data); err != nil {
					e.logger.Warn("pbsync: policy: cachefirst background cache update failed", "service", service, "id", id, "error", err)
				}

				return nil
			})
		}

		if rec == nil {
			return nil, ErrCacheMiss
		}

		return rec, nil

	case NetworkFirst, CacheAndNetwork:
		if e.online() {
			rec, err := e.fetchRemote(ctx, service, id)
			if err == nil {
				if _, uErr := e.cache.UpdateRow(ctx, service, id, rec.Data); uErr != nil {
					e.logger.Warn("pbsync: policy: cache update after remote fetch failed", "service", service, "id", id, "error", uErr)
				}

				return rec, nil
			}

			e.logger.Debug("pbsync: policy: remote fetch failed, falling back to cache", "service", service, "id", id, "error", err)
		}

		cached, err := e.cache.GetRow(ctx, service, id)
		if err != nil {
			return nil, fmt.Errorf("pbsync: policy: fetch %s: %w", p, err)
		}

		if cached == nil {
			if !e.online() {
				return nil, ErrOffline
			}

			return nil, ErrCacheMiss
		}

		return cached, nil

	default:
		return nil, fmt.Errorf("pbsync: policy: fetch: unknown policy %v", p)
	}
}

func (e *Engine) fetchRemote(ctx context.Context, service, id string) (*model.Record, error) {
	body, err := e.remoteClient.GetOne(ctx, service, id, "", "")
	if err != nil {
		return nil, wrapRemoteErr(err)
	}

	return recordFromBody(service, id, body), nil
}

func (e *Engine) launchBackground(fn func(ctx context.Context) error) {
	if e.bg == nil {
		go func() { _ = fn(context.Background()) }()
		return
	}

	e.bg.Go(func() error { return fn(context.Background()) })
}

func wrapRemoteErr(err error) error {
	var rerr *remote.RemoteError
	if errors.As(err, &rerr) {
		return &RemoteFailureError{Status: rerr.Status, Body: rerr.Body}
	}

	return err
}

func recordFromBody(service, id string, body map[string]any) *model.Record {
	rec := &model.Record{ID: id, Service: service, Data: cloneBody(body)}

	rec.Data[model.FlagSynced] = true
	rec.Data[model.FlagIsNew] = false

	if c, ok := body["created"].(string); ok {
		rec.Created = c
	}

	if u, ok := body["updated"].(string); ok {
		rec.Updated = u
	}

	return rec
}

func cloneBody(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}

// newLocalID produces a server-compatible local id (SPEC_FULL.md section
// 6, "Local ID format").
func newLocalID() string { return idgen.New() }
