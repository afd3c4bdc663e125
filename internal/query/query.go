// Package query implements the Query Engine: SQL generation from
// (filter, sort, fields, limit, offset) and batched relation expansion
// (SPEC_FULL.md section 4.3).
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/otterway/pbsync/internal/filter"
	"github.com/otterway/pbsync/internal/model"
	"github.com/otterway/pbsync/internal/schema"
)

// MaxExpandDepth bounds the expand dotted-path recursion (SPEC_FULL 4.3,
// "max depth 6; indirect back-references are explicitly unimplemented").
const MaxExpandDepth = 6

// Params is one query request against a single collection.
type Params struct {
	Filter string
	Sort   string
	Fields string
	Expand string
	Limit  int
	Offset int
}

// Engine runs compiled SQL against the Cache Store's services table and
// performs relation expansion using the Schema Registry.
type Engine struct {
	db             *sqlx.DB
	registry       *schema.Registry
	maxExpandDepth int
}

// New returns an Engine bound to db and registry, expanding relations up
// to MaxExpandDepth deep.
func New(db *sqlx.DB, registry *schema.Registry) *Engine {
	return &Engine{db: db, registry: registry, maxExpandDepth: MaxExpandDepth}
}

// NewWithExpandDepth is New with an overridden expand recursion bound
// (SPEC_FULL.md section 6, Config.MaxExpandDepth). maxDepth <= 0 falls
// back to MaxExpandDepth.
func NewWithExpandDepth(db *sqlx.DB, registry *schema.Registry, maxDepth int) *Engine {
	e := New(db, registry)
	if maxDepth > 0 {
		e.maxExpandDepth = maxDepth
	}

	return e
}

// Query runs params against service, returning each matching row decoded
// to a JSON-shaped map, with expand.* populated per params.Expand.
func (e *Engine) Query(ctx context.Context, service string, params Params, now time.Time) ([]map[string]any, error) {
	sqlStr, args, err := e.build(service, params, now)
	if err != nil {
		return nil, fmt.Errorf("pbsync: query: %s: %w", service, err)
	}

	rows, err := e.db.QueryxContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("pbsync: query: %s: executing: %w", service, err)
	}
	defer rows.Close()

	var out []map[string]any

	for rows.Next() {
		rec, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("pbsync: query: %s: scanning: %w", service, err)
		}

		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pbsync: query: %s: %w", service, err)
	}

	if params.Expand != "" {
		if err := e.expand(ctx, service, out, params.Expand, 0, now); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// build compiles params into a SELECT statement and its bound arguments.
func (e *Engine) build(service string, params Params, now time.Time) (string, []any, error) {
	coll := e.registry.ByName(service)

	selectClause, err := buildSelect(coll, params.Fields)
	if err != nil {
		return "", nil, err
	}

	whereClause := "service = ?"
	args := []any{service}

	if params.Filter != "" {
		expr, err := filter.Parse(params.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compiling filter %q: %w", params.Filter, err)
		}

		compiled, err := filter.Compile(expr, coll, now)
		if err != nil {
			return "", nil, fmt.Errorf("compiling filter %q: %w", params.Filter, err)
		}

		whereClause += " AND (" + compiled.SQL + ")"
		args = append(args, compiled.Args...)
	}

	orderClause, err := buildOrderBy(coll, params.Sort)
	if err != nil {
		return "", nil, err
	}

	sqlStr := fmt.Sprintf("SELECT %s FROM services WHERE %s", selectClause, whereClause)

	if orderClause != "" {
		sqlStr += " ORDER BY " + orderClause
	}

	if params.Limit > 0 {
		sqlStr += " LIMIT ?"
		args = append(args, params.Limit)

		if params.Offset > 0 {
			sqlStr += " OFFSET ?"
			args = append(args, params.Offset)
		}
	}

	return sqlStr, args, nil
}

// buildSelect implements the SELECT-clause rule from SPEC_FULL.md section
// 4.3: every services column (id, service, data, created, updated) when
// fields is unset; otherwise each named field is projected
// either directly (system fields) or via json_extract, with aggregate
// expressions like COUNT(...) passed through untouched.
func buildSelect(coll *model.Collection, fields string) (string, error) {
	if strings.TrimSpace(fields) == "" {
		return "id, service, data, created, updated", nil
	}

	var parts []string

	for _, f := range strings.Split(fields, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}

		if strings.Contains(f, "(") {
			parts = append(parts, f)
			continue
		}

		if model.SystemFieldNames[f] {
			parts = append(parts, f)
			continue
		}

		parts = append(parts, fmt.Sprintf("json_extract(data, '$.%s') AS %s", f, f))
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("empty fields clause")
	}

	return strings.Join(parts, ", "), nil
}

// buildOrderBy parses a comma-separated sort spec ("-created,name") into an
// ORDER BY clause, per SPEC_FULL.md section 4.3.
func buildOrderBy(coll *model.Collection, sort string) (string, error) {
	sort = strings.TrimSpace(sort)
	if sort == "" {
		return "", nil
	}

	var parts []string

	for _, term := range strings.Split(sort, ",") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}

		dir := "ASC"
		name := term

		switch {
		case strings.HasPrefix(term, "-"):
			dir = "DESC"
			name = term[1:]
		case strings.HasPrefix(term, "+"):
			name = term[1:]
		}

		var col string
		if model.SystemFieldNames[name] {
			col = name
		} else {
			col = fmt.Sprintf("json_extract(data, '$.%s')", name)
		}

		parts = append(parts, col+" "+dir)
	}

	return strings.Join(parts, ", "), nil
}

// scanRow decodes a single services row into a JSON-compatible shape: data
// fields merged with the other selected columns (id/service/created/updated,
// projected fields, aggregates). Expansion is attached later by expand.
func scanRow(rows *sqlx.Rows) (map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))

	for i := range vals {
		ptrs[i] = &vals[i]
	}

	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	out := map[string]any{}

	for i, col := range cols {
		if col == "data" {
			var data map[string]any

			switch raw := vals[i].(type) {
			case []byte:
				if err := json.Unmarshal(raw, &data); err != nil {
					return nil, err
				}
			case string:
				if err := json.Unmarshal([]byte(raw), &data); err != nil {
					return nil, err
				}
			}

			for k, v := range data {
				out[k] = v
			}

			continue
		}

		out[col] = decodeColumn(vals[i])
	}

	return out, nil
}

func decodeColumn(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}

	return v
}
