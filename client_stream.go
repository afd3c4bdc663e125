package pbsync

import (
	"context"
	"fmt"

	"github.com/otterway/pbsync/internal/policy"
)

// FetchEvent is one value delivered on a FetchStream channel (SPEC_FULL.md
// section 4.1, "Reactive-stream read variant").
type FetchEvent struct {
	Record *Record
	Err    error
	Source string // "cache" or "network"
}

// ListEvent is one value delivered on a FetchListStream channel.
type ListEvent struct {
	Items  []map[string]any
	Err    error
	Source string // "cache" or "network"
}

// FetchStream runs Fetch as a reactive stream: CacheFirst and
// CacheAndNetwork emit a cache event first and a network event once the
// remote attempt resolves (for CacheFirst, only when online and the remote
// fetch succeeds); every other policy emits its single one-shot
// outcome. The returned channel is always closed after its final event.
func (c *Client) FetchStream(ctx context.Context, p Policy, service, id string) (<-chan FetchEvent, error) {
	inner, err := c.engine.FetchStream(ctx, p, service, id)
	if err != nil {
		return nil, err
	}

	out := make(chan FetchEvent, cap(inner))

	go func() {
		defer close(out)

		for ev := range inner {
			out <- FetchEvent{Record: ev.Record, Err: translateErr(ev.Err), Source: ev.Source}
		}
	}()

	return out, nil
}

// FetchStreamDefault runs FetchStream using the client's configured
// default policy.
func (c *Client) FetchStreamDefault(ctx context.Context, service, id string) (<-chan FetchEvent, error) {
	return c.FetchStream(ctx, c.cfg.RequestPolicy, service, id)
}

// FetchListStream runs FetchList as a reactive stream, per SPEC_FULL.md
// section 5's full-list ordering guarantee: CacheFirst and
// CacheAndNetwork emit cache contents first, then a merged update once
// the remote fetch and syncLocal complete (for CacheFirst, only when online
// and the remote fetch succeeds); CacheOnly/NetworkOnly/
// NetworkFirst emit their single one-shot outcome. Partial pages are
// never emitted mid-fetch — only the two complete snapshots named above.
func (c *Client) FetchListStream(ctx context.Context, p Policy, service string, params QueryParams) (<-chan ListEvent, error) {
	switch p {
	case CacheOnly, NetworkOnly, CacheFirst, NetworkFirst, CacheAndNetwork:
	default:
		return nil, fmt.Errorf("pbsync: client: fetchListStream: unknown policy %v", p)
	}

	ch := make(chan ListEvent, 2)

	go func() {
		defer close(ch)
		c.runFetchListStream(ctx, p, service, params, ch)
	}()

	return ch, nil
}

// FetchListStreamDefault runs FetchListStream using the client's
// configured default policy.
func (c *Client) FetchListStreamDefault(ctx context.Context, service string, params QueryParams) (<-chan ListEvent, error) {
	return c.FetchListStream(ctx, c.cfg.RequestPolicy, service, params)
}

func (c *Client) runFetchListStream(ctx context.Context, p Policy, service string, params QueryParams, ch chan<- ListEvent) {
	switch p {
	case CacheOnly:
		items, err := c.Query(ctx, service, params)
		ch <- ListEvent{Items: items, Err: err, Source: "cache"}

	case NetworkOnly:
		if !c.online() {
			ch <- ListEvent{Err: ErrOffline, Source: "network"}
			return
		}

		items, err := c.fetchFullList(ctx, service, params)
		ch <- ListEvent{Items: items, Err: err, Source: "network"}

	case CacheFirst:
		items, err := c.Query(ctx, service, params)
		ch <- ListEvent{Items: items, Err: err, Source: "cache"}

		if !c.online() {
			return
		}

		remote, err := c.fetchFullList(ctx, service, params)
		if err != nil {
			c.logger.Warn("pbsync: client: cachefirst stream background list fetch failed", "service", service, "error", err)
			return
		}

		if _, syncErr := c.syncLocal(ctx, service, remote, params.Filter); syncErr != nil {
			c.logger.Warn("pbsync: client: cachefirst stream background syncLocal failed", "service", service, "error", syncErr)
		}

		merged, err := c.Query(ctx, service, params)
		ch <- ListEvent{Items: merged, Err: err, Source: "network"}

	case NetworkFirst:
		items, err := c.FetchList(ctx, NetworkFirst, service, params)
		ch <- ListEvent{Items: items, Err: err, Source: "network"}

	case CacheAndNetwork:
		cached, err := c.Query(ctx, service, params)
		ch <- ListEvent{Items: cached, Err: err, Source: "cache"}

		merged, err := c.FetchList(ctx, CacheAndNetwork, service, params)
		ch <- ListEvent{Items: merged, Err: err, Source: "network"}
	}
}
