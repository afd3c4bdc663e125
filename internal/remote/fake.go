package remote

import (
	"context"
	"sync"
)

// Fake is an in-memory Client double for tests, modeled on the teacher's
// test doubles for its own transport client: deterministic, inspectable,
// and configurable to fail on demand.
type Fake struct {
	mu sync.Mutex

	records map[string]map[string]map[string]any // service -> id -> body
	nextErr error
	created []createCall
	updated []updateCall
	deleted []deleteCall
}

type createCall struct {
	Service string
	Body    map[string]any
}

type updateCall struct {
	Service, ID string
	Body        map[string]any
}

type deleteCall struct {
	Service, ID string
}

// NewFake returns an empty Fake.
func NewFake() *Fake {
	return &Fake{records: make(map[string]map[string]map[string]any)}
}

// FailNext makes the next Create/Update/Delete call return err instead of
// succeeding; the queued failure is consumed exactly once.
func (f *Fake) FailNext(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextErr = err
}

func (f *Fake) takeErr() error {
	err := f.nextErr
	f.nextErr = nil

	return err
}

// Seed preloads a record as if the server already held it.
func (f *Fake) Seed(service, id string, body map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.records[service] == nil {
		f.records[service] = make(map[string]map[string]any)
	}

	f.records[service][id] = body
}

func (f *Fake) GetOne(_ context.Context, service, id string, _, _ string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.records[service][id]
	if !ok {
		return nil, &RemoteError{Status: 404, Body: "not found"}
	}

	return cloneMap(rec), nil
}

func (f *Fake) GetList(_ context.Context, service string, params ListParams) (ListResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var items []map[string]any

	for _, rec := range f.records[service] {
		items = append(items, cloneMap(rec))
	}

	return ListResult{Items: items, Page: 1, PerPage: len(items), TotalItems: len(items), TotalPages: 1}, nil
}

func (f *Fake) Create(_ context.Context, service string, body map[string]any, _ []File) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.takeErr(); err != nil {
		return nil, err
	}

	f.created = append(f.created, createCall{Service: service, Body: cloneMap(body)})

	id, _ := body["id"].(string)
	if id == "" {
		return nil, &RemoteError{Status: 400, Body: "missing id"}
	}

	if f.records[service] == nil {
		f.records[service] = make(map[string]map[string]any)
	}

	if _, exists := f.records[service][id]; exists {
		return nil, &RemoteError{Status: 400, Body: "id already exists"}
	}

	out := cloneMap(body)
	f.records[service][id] = out

	return cloneMap(out), nil
}

func (f *Fake) Update(_ context.Context, service, id string, body map[string]any, _ []File) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.takeErr(); err != nil {
		return nil, err
	}

	f.updated = append(f.updated, updateCall{Service: service, ID: id, Body: cloneMap(body)})

	if _, exists := f.records[service][id]; !exists {
		return nil, &RemoteError{Status: 404, Body: "not found"}
	}

	merged := cloneMap(f.records[service][id])
	for k, v := range body {
		merged[k] = v
	}

	merged["id"] = id
	f.records[service][id] = merged

	return cloneMap(merged), nil
}

func (f *Fake) Delete(_ context.Context, service, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.takeErr(); err != nil {
		return err
	}

	f.deleted = append(f.deleted, deleteCall{Service: service, ID: id})
	delete(f.records[service], id)

	return nil
}

func (f *Fake) Send(_ context.Context, _, _ string, _ map[string]string, _ map[string]any) (map[string]any, error) {
	return nil, &RemoteError{Status: 501, Body: "not implemented by fake"}
}

func (f *Fake) Subscribe(_ context.Context, _ string, _ func(Event)) (func(), error) {
	return func() {}, nil
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}
