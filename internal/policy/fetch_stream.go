package policy

import (
	"context"
	"fmt"

	"github.com/otterway/pbsync/internal/model"
)

// FetchEvent is one value delivered on a FetchStream channel. Source is
// "cache" or "network", naming which layer produced this event so a
// reactive UI binding can tell a provisional cache value from the
// settled network result.
type FetchEvent struct {
	Record *model.Record
	Err    error
	Source string
}

// FetchStream implements the reactive-stream read variant from
// SPEC_FULL.md section 4.1: CacheFirst and CacheAndNetwork emit a cache
// event first and, once the network attempt resolves, a second network
// event (CacheFirst emits none when offline or when its remote fetch
// fails); CacheOnly and NetworkOnly have exactly one source so they emit a
// single event; NetworkFirst's stream form is its one-shot outcome,
// matching spec.md's "for one-shot reads: identical to NetworkFirst"
// equivalence. The channel is always closed after its final event.
func (e *Engine) FetchStream(ctx context.Context, p Policy, service, id string) (<-chan FetchEvent, error) {
	switch p {
	case CacheOnly, NetworkOnly, CacheFirst, NetworkFirst, CacheAndNetwork:
	default:
		return nil, fmt.Errorf("pbsync: policy: fetchStream: unknown policy %v", p)
	}

	ch := make(chan FetchEvent, 2)

	go func() {
		defer close(ch)
		e.runFetchStream(ctx, p, service, id, ch)
	}()

	return ch, nil
}

func (e *Engine) runFetchStream(ctx context.Context, p Policy, service, id string, ch chan<- FetchEvent) {
	switch p {
	case CacheOnly:
		rec, err := e.cache.GetRow(ctx, service, id)
		if err != nil {
			ch <- FetchEvent{Err: fmt.Errorf("pbsync: policy: fetch %s: %w", p, err), Source: "cache"}
			return
		}

		if rec == nil {
			ch <- FetchEvent{Err: ErrCacheMiss, Source: "cache"}
			return
		}

		ch <- FetchEvent{Record: rec, Source: "cache"}

	case NetworkOnly, NetworkFirst:
		rec, err := e.Fetch(ctx, p, service, id)
		ch <- FetchEvent{Record: rec, Err: err, Source: "network"}

	case CacheFirst:
		rec, err := e.cache.GetRow(ctx, service, id)
		if err != nil {
			ch <- FetchEvent{Err: fmt.Errorf("pbsync: policy: fetch %s: %w", p, err), Source: "cache"}
			return
		}

		if rec == nil {
			ch <- FetchEvent{Err: ErrCacheMiss, Source: "cache"}
		} else {
			ch <- FetchEvent{Record: rec, Source: "cache"}
		}

		if !e.online() {
			return
		}

		remoteRec, err := e.fetchRemote(ctx, service, id)
		if err != nil {
			e.logger.Warn("pbsync: policy: cachefirst stream background fetch failed", "service", service, "id", id, "error", err)
			return
		}

		if _, uErr := e.cache.UpdateRow(ctx, service, id, remoteRec.Data); uErr != nil {
			e.logger.Warn("pbsync: policy: cachefirst stream background cache update failed", "service", service, "id", id, "error", uErr)
		}

		ch <- FetchEvent{Record: remoteRec, Source: "network"}

	case CacheAndNetwork:
		cacheRec, err := e.cache.GetRow(ctx, service, id)

		switch {
		case err != nil:
			ch <- FetchEvent{Err: fmt.Errorf("pbsync: policy: fetch %s: %w", p, err), Source: "cache"}
		case cacheRec == nil:
			ch <- FetchEvent{Err: ErrCacheMiss, Source: "cache"}
		default:
			ch <- FetchEvent{Record: cacheRec, Source: "cache"}
		}

		rec, err := e.Fetch(ctx, CacheAndNetwork, service, id)
		ch <- FetchEvent{Record: rec, Err: err, Source: "network"}
	}
}
