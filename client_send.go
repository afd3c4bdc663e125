package pbsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/otterway/pbsync/internal/remote"
	"github.com/otterway/pbsync/internal/store"
)

// Send runs an arbitrary route through the RemoteClient's passthrough
// operation (SPEC_FULL.md section 6, "send(...) for arbitrary routes"),
// reading and writing the idempotent response cache (spec.md sections 3
// and 4.2) along the way: a GET whose canonical key is non-empty is
// served from (or written to) cached_responses exactly like any other
// idempotent read, while non-GET methods and the blocklisted path
// prefixes never touch the cache, matching store.CacheKey's own rule.
// Network-reachable with a cache fallback on failure or offline,
// mirroring the NetworkFirst read shape for this one out-of-band
// operation.
func (c *Client) Send(ctx context.Context, path, method string, query map[string]string, body map[string]any) (map[string]any, error) {
	key := store.CacheKey(method, path, query, canonicalizeBody(body), false)

	if c.online() && c.cfg.RemoteClient != nil {
		result, err := c.cfg.RemoteClient.Send(ctx, path, method, query, body)
		if err == nil {
			c.cacheSendResponse(ctx, key, result)
			return result, nil
		}

		c.logger.Debug("pbsync: client: send remote attempt failed, falling back to cached response", "path", path, "method", method, "error", err)

		if cached, ok := c.cachedSendResponse(ctx, key); ok {
			return cached, nil
		}

		return nil, translateSendErr(err)
	}

	cached, ok := c.cachedSendResponse(ctx, key)
	if !ok {
		return nil, ErrOffline
	}

	return cached, nil
}

func (c *Client) cacheSendResponse(ctx context.Context, key string, result map[string]any) {
	if key == "" {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn("pbsync: client: encoding send response for cache failed", "error", err)
		return
	}

	if err := c.store.PutResponse(ctx, key, string(data), time.Now()); err != nil {
		c.logger.Warn("pbsync: client: caching send response failed", "error", err)
	}
}

func (c *Client) cachedSendResponse(ctx context.Context, key string) (map[string]any, bool) {
	if key == "" {
		return nil, false
	}

	raw, ok, err := c.store.GetResponse(ctx, key)
	if err != nil {
		c.logger.Warn("pbsync: client: reading cached send response failed", "error", err)
		return nil, false
	}

	if !ok {
		return nil, false
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		c.logger.Warn("pbsync: client: decoding cached send response failed", "error", err)
		return nil, false
	}

	return out, true
}

// canonicalizeBody flattens an arbitrary JSON body into the map[string]string
// shape store.CacheKey's canonicalization expects, by encoding each
// top-level value independently; key order is irrelevant since CacheKey
// sorts keys itself.
func canonicalizeBody(body map[string]any) map[string]string {
	if len(body) == 0 {
		return nil
	}

	out := make(map[string]string, len(body))

	for k, v := range body {
		b, err := json.Marshal(v)
		if err != nil {
			out[k] = fmt.Sprintf("%v", v)
			continue
		}

		out[k] = string(b)
	}

	return out
}

func translateSendErr(err error) error {
	var rerr *remote.RemoteError
	if errors.As(err, &rerr) {
		return &RemoteFailureError{Status: rerr.Status, Body: rerr.Body}
	}

	return err
}
