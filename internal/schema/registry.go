// Package schema implements the Schema Registry: a cache of collection
// schemas used for validation, single-vs-multi field disambiguation, and
// relation targeting (SPEC_FULL.md section 4.8).
package schema

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/otterway/pbsync/internal/model"
)

// Registry holds parsed collection schemas in memory, keyed by both name
// and id for the query engine's two lookup directions (byName for the
// caller's collection argument, byId for relation targeting).
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*model.Collection
	byID   map[string]*model.Collection
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		byName: make(map[string]*model.Collection),
		byID:   make(map[string]*model.Collection),
	}
}

// Put registers or replaces a collection's schema.
func (r *Registry) Put(c *model.Collection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byName[c.Name] = c
	r.byID[c.ID] = c
}

// ByName returns the collection schema for the given service name, or nil.
func (r *Registry) ByName(service string) *model.Collection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.byName[service]
}

// ByID returns the collection schema for the given collection id, or nil.
func (r *Registry) ByID(id string) *model.Collection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.byID[id]
}

// wireField mirrors the JSON shape of a field inside a "schema" record, as
// the server (and the bundled offline snapshot) represent it.
type wireField struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
	System   bool   `json:"system"`
	Data     struct {
		MaxSelect    int    `json:"maxSelect"`
		CollectionID string `json:"collectionId"`
	} `json:"data"`
}

type wireCollection struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Fields []wireField `json:"fields"`
}

// LoadSnapshot bootstraps the registry from a bundled JSON snapshot
// (SPEC_FULL.md section 4.8, "offline bootstrap"): a JSON array of
// collection schema objects, the same shape the server returns.
func (r *Registry) LoadSnapshot(data []byte) error {
	var wire []wireCollection
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("pbsync: schema: decoding snapshot: %w", err)
	}

	for _, wc := range wire {
		r.Put(fromWire(wc))
	}

	return nil
}

// PutFromJSON registers a single collection schema from its JSON record
// form (server push or /api/collections read).
func (r *Registry) PutFromJSON(data []byte) error {
	var wc wireCollection
	if err := json.Unmarshal(data, &wc); err != nil {
		return fmt.Errorf("pbsync: schema: decoding collection: %w", err)
	}

	r.Put(fromWire(wc))

	return nil
}

func fromWire(wc wireCollection) *model.Collection {
	c := &model.Collection{ID: wc.ID, Name: wc.Name}
	c.Fields = make([]model.Field, 0, len(wc.Fields))

	for _, wf := range wc.Fields {
		c.Fields = append(c.Fields, model.Field{
			Name:     wf.Name,
			Type:     model.FieldType(wf.Type),
			Required: wf.Required,
			System:   wf.System,
			Data: model.FieldData{
				MaxSelect:    wf.Data.MaxSelect,
				CollectionID: wf.Data.CollectionID,
			},
		})
	}

	return c
}
