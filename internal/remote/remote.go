// Package remote defines the out-of-scope collaborator contracts the core
// depends on: the HTTP transport/auth client and the connectivity probe
// (SPEC_FULL.md section 6). The core never depends on a concrete
// implementation, only these interfaces.
package remote

import (
	"context"
	"strconv"
)

// Action identifies the kind of realtime event delivered to a subscriber.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Event is the payload passed to a realtime subscription callback.
type Event struct {
	Action Action
	Record map[string]any
}

// File is a single buffered upload: a multipart field name, the caller's
// original filename, and its bytes, used by the Policy Engine's write path
// and by the File Blob Store's server-filename reconciliation (SPEC_FULL
// section 4.7).
type File struct {
	Field    string
	Filename string
	Bytes    []byte
}

// ListParams carries the Query Engine's compiled request for a paginated
// remote list read.
type ListParams struct {
	Page    int
	PerPage int
	Filter  string
	Sort    string
	Fields  string
	Expand  string
}

// ListResult is one page of a remote getList call.
type ListResult struct {
	Items      []map[string]any
	Page       int
	PerPage    int
	TotalItems int
	TotalPages int
}

// Client is the HTTP transport/auth collaborator the core consumes
// (SPEC_FULL.md section 6, "RemoteClient contract"). An implementation
// wraps a REST-ish backend; the core only ever reasons about status codes
// via RemoteError.
type Client interface {
	GetOne(ctx context.Context, service, id string, fields, expand string) (map[string]any, error)
	GetList(ctx context.Context, service string, params ListParams) (ListResult, error)
	Create(ctx context.Context, service string, body map[string]any, files []File) (map[string]any, error)
	Update(ctx context.Context, service, id string, body map[string]any, files []File) (map[string]any, error)
	Delete(ctx context.Context, service, id string) error
	Send(ctx context.Context, path, method string, query map[string]string, body map[string]any) (map[string]any, error)
	Subscribe(ctx context.Context, topic string, cb func(Event)) (unsubscribe func(), err error)
}

// RemoteError is a non-2xx response, carrying enough to drive the
// create/update fallback probes in the Policy Engine's write semantics.
type RemoteError struct {
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	return "remote: status " + strconv.Itoa(e.Status) + ": " + e.Body
}

// Connectivity is the connectivity probe collaborator (SPEC_FULL.md
// section 6). IsConnected reports current state; Changes delivers every
// transition, including the rising ("came online") edges the Sync Manager
// triggers on.
type Connectivity interface {
	IsConnected() bool
	Changes() <-chan bool
}
