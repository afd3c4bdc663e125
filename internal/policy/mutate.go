package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/otterway/pbsync/internal/model"
	"github.com/otterway/pbsync/internal/remote"
)

// Create implements the five-way write routing table's create path
// (SPEC_FULL.md section 4.1). A non-empty id (caller-chosen, or a pending
// row's id when the Sync Manager replays it) is used as the record id; an
// empty id gets a newly generated one. Any "id" key in body is overridden.
func (e *Engine) Create(ctx context.Context, p Policy, service, id string, body map[string]any, files []remote.File) (*model.Record, error) {
	if id == "" {
		id = newLocalID()
	}

	e.logger.Info("pbsync: policy: create", "policy", p.String(), "service", service, "id", id)

	switch p {
	case CacheOnly:
		return e.cacheWrite(ctx, service, id, body, map[string]any{
			model.FlagSynced: false, model.FlagNoSync: true,
		})

	case NetworkOnly:
		if !e.online() {
			return nil, ErrOffline
		}

		remoteBody := withID(body, id)

		out, err := e.remoteClient.Create(ctx, service, remoteBody, files)
		if err != nil {
			return nil, wrapRemoteErr(err)
		}

		return recordFromBody(service, serverID(out, id), out), nil

	case CacheFirst:
		rec, err := e.cacheWrite(ctx, service, id, body, map[string]any{
			model.FlagSynced: false, model.FlagIsNew: true,
		})
		if err != nil {
			return nil, err
		}

		if e.online() {
			e.launchBackground(func(bgCtx context.Context) error {
				e.backgroundCreate(bgCtx, service, id, body, files)
				return nil
			})
		}

		return rec, nil

	case NetworkFirst:
		if !e.online() {
			return nil, ErrOffline
		}

		out, serverID, err := e.remoteCreateWithFallback(ctx, service, id, body, files)
		if err != nil {
			return nil, err
		}

		return e.cacheWrite(ctx, service, serverID, out, map[string]any{model.FlagSynced: true, model.FlagIsNew: false})

	case CacheAndNetwork:
		if e.online() {
			out, newServerID, err := e.remoteCreateWithFallback(ctx, service, id, body, files)
			if err == nil {
				if newServerID != id {
					e.logger.Warn("pbsync: policy: id reconciliation", "error", (&ConflictingIDError{Local: id, Server: newServerID}).Error())

					if delErr := e.cache.DeleteRow(ctx, service, id, nil); delErr != nil {
						e.logger.Warn("pbsync: policy: reconciliation delete of stale local row failed", "service", service, "id", id, "error", delErr)
					}
				}

				return e.cacheWrite(ctx, service, newServerID, out, map[string]any{model.FlagSynced: true, model.FlagIsNew: false})
			}

			e.logger.Debug("pbsync: policy: cacheandnetwork create remote attempt failed, falling back to cache", "service", service, "id", id, "error", err)
		}

		return e.cacheWrite(ctx, service, id, body, map[string]any{model.FlagSynced: false, model.FlagIsNew: true})

	default:
		return nil, fmt.Errorf("pbsync: policy: create: unknown policy %v", p)
	}
}

// backgroundCreate is CacheFirst's out-of-band remote attempt: on success it
// overwrites the cache row with server-canonical data and flips synced=true
// (SPEC_FULL.md section 4.1).
func (e *Engine) backgroundCreate(ctx context.Context, service, id string, body map[string]any, files []remote.File) {
	out, newServerID, err := e.remoteCreateWithFallback(ctx, service, id, body, files)
	if err != nil {
		e.logger.Warn("pbsync: policy: cachefirst background create failed", "service", service, "id", id, "error", err)
		return
	}

	if newServerID != id {
		e.logger.Warn("pbsync: policy: id reconciliation", "error", (&ConflictingIDError{Local: id, Server: newServerID}).Error())

		if delErr := e.cache.DeleteRow(ctx, service, id, nil); delErr != nil {
			e.logger.Warn("pbsync: policy: reconciliation delete of stale local row failed", "service", service, "id", id, "error", delErr)
		}
	}

	if _, err := e.cacheWrite(ctx, service, newServerID, out, map[string]any{model.FlagSynced: true, model.FlagIsNew: false}); err != nil {
		e.logger.Warn("pbsync: policy: cachefirst background cache overwrite failed", "service", service, "id", newServerID, "error", err)
	}
}

// remoteCreateWithFallback attempts create-with-id; on an HTTP 400 it falls
// back to update, per SPEC_FULL.md section 4.1's NetworkFirst/CacheAndNetwork
// create↔update probe rule.
func (e *Engine) remoteCreateWithFallback(ctx context.Context, service, id string, body map[string]any, files []remote.File) (map[string]any, string, error) {
	out, err := e.remoteClient.Create(ctx, service, withID(body, id), files)
	if err == nil {
		return out, serverID(out, id), nil
	}

	var rerr *remote.RemoteError
	if errors.As(err, &rerr) && isRecoverableCreateStatus(rerr.Status) {
		out, uErr := e.remoteClient.Update(ctx, service, id, body, files)
		if uErr != nil {
			return nil, "", wrapRemoteErr(uErr)
		}

		return out, serverID(out, id), nil
	}

	return nil, "", wrapRemoteErr(err)
}

// Update implements the write routing table's update path.
func (e *Engine) Update(ctx context.Context, p Policy, service, id string, body map[string]any, files []remote.File) (*model.Record, error) {
	e.logger.Info("pbsync: policy: update", "policy", p.String(), "service", service, "id", id)

	switch p {
	case CacheOnly:
		return e.cache.UpdateRow(ctx, service, id, mergeFlags(body, map[string]any{
			model.FlagSynced: false, model.FlagNoSync: true,
		}))

	case NetworkOnly:
		if !e.online() {
			return nil, ErrOffline
		}

		out, err := e.remoteClient.Update(ctx, service, id, body, files)
		if err != nil {
			return nil, wrapRemoteErr(err)
		}

		return recordFromBody(service, id, out), nil

	case CacheFirst:
		rec, err := e.cache.UpdateRow(ctx, service, id, mergeFlags(body, map[string]any{model.FlagSynced: false}))
		if err != nil {
			return nil, err
		}

		if e.online() {
			e.launchBackground(func(bgCtx context.Context) error {
				out, err := e.remoteClient.Update(bgCtx, service, id, body, files)
				if err != nil {
					e.logger.Warn("pbsync: policy: cachefirst background update failed", "service", service, "id", id, "error", err)
					return nil
				}

				if _, err := e.cache.UpdateRow(bgCtx, service, id, mergeFlags(out, map[string]any{model.FlagSynced: true})); err != nil {
					e.logger.Warn("pbsync: policy: cachefirst background cache overwrite failed", "service", service, "id", id, "error", err)
				}

				return nil
			})
		}

		return rec, nil

	case NetworkFirst:
		if !e.online() {
			return nil, ErrOffline
		}

		out, err := e.remoteUpdateWithFallback(ctx, service, id, body, files)
		if err != nil {
			return nil, err
		}

		return e.cache.UpdateRow(ctx, service, id, mergeFlags(out, map[string]any{model.FlagSynced: true}))

	case CacheAndNetwork:
		if e.online() {
			out, err := e.remoteUpdateWithFallback(ctx, service, id, body, files)
			if err == nil {
				return e.cache.UpdateRow(ctx, service, id, mergeFlags(out, map[string]any{model.FlagSynced: true}))
			}

			e.logger.Debug("pbsync: policy: cacheandnetwork update remote attempt failed, falling back to cache", "service", service, "id", id, "error", err)
		}

		return e.cache.UpdateRow(ctx, service, id, mergeFlags(body, map[string]any{model.FlagSynced: false}))

	default:
		return nil, fmt.Errorf("pbsync: policy: update: unknown policy %v", p)
	}
}

// remoteUpdateWithFallback attempts update; on 404 or 400 it falls back to
// create-with-id, per SPEC_FULL.md section 4.1.
func (e *Engine) remoteUpdateWithFallback(ctx context.Context, service, id string, body map[string]any, files []remote.File) (map[string]any, error) {
	out, err := e.remoteClient.Update(ctx, service, id, body, files)
	if err == nil {
		return out, nil
	}

	var rerr *remote.RemoteError
	if errors.As(err, &rerr) && isRecoverableUpdateStatus(rerr.Status) {
		out, cErr := e.remoteClient.Create(ctx, service, withID(body, id), files)
		if cErr != nil {
			return nil, wrapRemoteErr(cErr)
		}

		return out, nil
	}

	return nil, wrapRemoteErr(err)
}

// Delete implements the delete routing table from SPEC_FULL.md section 4.1.
func (e *Engine) Delete(ctx context.Context, p Policy, service, id string, fileFields []string) error {
	e.logger.Info("pbsync: policy: delete", "policy", p.String(), "service", service, "id", id)

	switch p {
	case CacheOnly:
		_, err := e.cache.UpdateRow(ctx, service, id, map[string]any{model.FlagDeleted: true})
		return err

	case NetworkOnly:
		if !e.online() {
			return ErrOffline
		}

		if err := e.remoteClient.Delete(ctx, service, id); err != nil {
			return wrapRemoteErr(err)
		}

		return nil

	case CacheFirst:
		if err := e.cache.DeleteRow(ctx, service, id, fileFields); err != nil {
			return err
		}

		if e.online() {
			e.launchBackground(func(bgCtx context.Context) error {
				if err := e.remoteClient.Delete(bgCtx, service, id); err != nil {
					e.logger.Warn("pbsync: policy: cachefirst background delete failed, local row already removed", "service", service, "id", id, "error", err)
				}

				return nil
			})
		}

		return nil

	case NetworkFirst:
		if !e.online() {
			return ErrOffline
		}

		if err := e.remoteClient.Delete(ctx, service, id); err != nil {
			return wrapRemoteErr(err)
		}

		return e.cache.DeleteRow(ctx, service, id, fileFields)

	case CacheAndNetwork:
		if e.online() {
			err := e.remoteClient.Delete(ctx, service, id)
			if err == nil {
				return e.cache.DeleteRow(ctx, service, id, fileFields)
			}

			e.logger.Debug("pbsync: policy: cacheandnetwork delete remote attempt failed, marking tombstone", "service", service, "id", id, "error", err)
		}

		_, err := e.cache.UpdateRow(ctx, service, id, map[string]any{
			model.FlagDeleted: true, model.FlagSynced: false,
		})

		return err

	default:
		return fmt.Errorf("pbsync: policy: delete: unknown policy %v", p)
	}
}

func (e *Engine) cacheWrite(ctx context.Context, service, id string, body map[string]any, flags map[string]any) (*model.Record, error) {
	data := mergeFlags(body, flags)
	data["id"] = id

	rec, err := e.cache.UpdateRow(ctx, service, id, data)
	if err != nil {
		return nil, fmt.Errorf("pbsync: policy: cache write %s/%s: %w", service, id, err)
	}

	return rec, nil
}

func mergeFlags(body map[string]any, flags map[string]any) map[string]any {
	out := make(map[string]any, len(body)+len(flags))
	for k, v := range body {
		out[k] = v
	}

	for k, v := range flags {
		out[k] = v
	}

	return out
}

func withID(body map[string]any, id string) map[string]any {
	out := mergeFlags(body, map[string]any{"id": id})
	return out
}

func serverID(body map[string]any, fallback string) string {
	if id, ok := body["id"].(string); ok && id != "" {
		return id
	}

	return fallback
}
