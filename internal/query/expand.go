package query

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/otterway/pbsync/internal/model"
)

// expand implements the relation expansion algorithm from SPEC_FULL.md
// section 4.3: for each top-level relation named in a dotted expand path,
// gather every referenced id across rows, issue one batched query against
// the target collection, and attach results under expand[r] shaped to
// match maxSelect cardinality. Siblings at the same depth (e.g.
// "expand=author,tags") are fetched concurrently via errgroup, mirroring
// the teacher's worker-pool fan-out for independent batched lookups.
func (e *Engine) expand(ctx context.Context, service string, rows []map[string]any, expandSpec string, depth int, now time.Time) error {
	if depth >= e.maxExpandDepth || len(rows) == 0 {
		return nil
	}

	coll := e.registry.ByName(service)
	if coll == nil {
		return nil
	}

	top := map[string]string{} // relation name -> remaining dotted tail

	for _, path := range strings.Split(expandSpec, ",") {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}

		head, tail, _ := strings.Cut(path, ".")
		if existing, ok := top[head]; !ok || existing == "" {
			top[head] = tail
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	// mu serializes the sibling goroutines' reads and writes of the shared
	// row maps; the batched queries themselves run concurrently.
	var mu sync.Mutex

	for name, tail := range top {
		name, tail := name, tail

		g.Go(func() error {
			return e.expandOne(gctx, coll, rows, name, tail, depth, now, &mu)
		})
	}

	return g.Wait()
}

func (e *Engine) expandOne(ctx context.Context, coll *model.Collection, rows []map[string]any, name, tail string, depth int, now time.Time, mu *sync.Mutex) error {
	field := coll.FieldByName(name)
	if field == nil || field.Type != model.FieldRelation {
		return nil
	}

	target := e.registry.ByID(field.Data.CollectionID)
	if target == nil {
		return nil
	}

	multi := field.Data.Multi()

	ids := map[string]bool{}

	mu.Lock()

	for _, row := range rows {
		for _, id := range relationIDs(row[name]) {
			ids[id] = true
		}
	}

	if len(ids) == 0 {
		for _, row := range rows {
			attachEmpty(row, name, multi)
		}

		mu.Unlock()

		return nil
	}

	mu.Unlock()

	filterExpr := orOfIDs(ids)

	results, err := e.Query(ctx, target.Name, Params{Filter: filterExpr}, now)
	if err != nil {
		return fmt.Errorf("pbsync: query: expanding %q: %w", name, err)
	}

	if tail != "" {
		if err := e.expand(ctx, target.Name, results, tail, depth+1, now); err != nil {
			return fmt.Errorf("pbsync: query: expanding %q: %w", name, err)
		}
	}

	byID := make(map[string]map[string]any, len(results))
	for _, r := range results {
		if id, ok := r["id"].(string); ok {
			byID[id] = r
		}
	}

	mu.Lock()
	defer mu.Unlock()

	for _, row := range rows {
		refs := relationIDs(row[name])

		if multi {
			list := make([]map[string]any, 0, len(refs))

			for _, id := range refs {
				if rec, ok := byID[id]; ok {
					list = append(list, rec)
				}
			}

			setExpand(row, name, list)

			continue
		}

		if len(refs) == 0 {
			setExpand(row, name, nil)
			continue
		}

		rec, ok := byID[refs[0]]
		if !ok {
			setExpand(row, name, nil)
			continue
		}

		setExpand(row, name, rec)
	}

	return nil
}

func attachEmpty(row map[string]any, name string, multi bool) {
	if multi {
		setExpand(row, name, []map[string]any{})
	} else {
		setExpand(row, name, nil)
	}
}

func setExpand(row map[string]any, name string, value any) {
	expand, _ := row["expand"].(map[string]any)
	if expand == nil {
		expand = map[string]any{}
	}

	expand[name] = value
	row["expand"] = expand
}

// relationIDs normalizes a relation field's raw stored value (string or
// []any) into a flat list of referenced ids.
func relationIDs(v any) []string {
	switch val := v.(type) {
	case string:
		if val == "" {
			return nil
		}

		return []string{val}
	case []any:
		out := make([]string, 0, len(val))

		for _, item := range val {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}

		return out
	default:
		return nil
	}
}

// orOfIDs renders the batched-lookup filter `id = "x1" || id = "x2" || …`
// (SPEC_FULL.md section 4.3) in filter syntax. IDs are always
// server/local-generated alphanumeric strings (never caller-supplied free
// text), so they are embedded as double-quoted literals; Query then parses
// and compiles the string like any other filter, binding each id as a
// positional parameter.
func orOfIDs(ids map[string]bool) string {
	parts := make([]string, 0, len(ids))
	for id := range ids {
		parts = append(parts, fmt.Sprintf(`id = "%s"`, id))
	}

	return strings.Join(parts, " || ")
}
