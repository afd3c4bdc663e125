package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otterway/pbsync/internal/model"
)

var fixedNow = time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

func TestParseAndCompile(t *testing.T) {
	tests := []struct {
		name     string
		filter   string
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "simple equality",
			filter:   `title = "hello"`,
			wantSQL:  `json_extract(data, '$.title') = ?`,
			wantArgs: []any{"hello"},
		},
		{
			name:     "and of two comparisons",
			filter:   `title = "hello" && views > 10`,
			wantSQL:  `(json_extract(data, '$.title') = ? AND json_extract(data, '$.views') > ?)`,
			wantArgs: []any{"hello", float64(10)},
		},
		{
			name:     "or has lower precedence than and",
			filter:   `a = 1 && b = 2 || c = 3`,
			wantSQL:  `((json_extract(data, '$.a') = ? AND json_extract(data, '$.b') = ?) OR json_extract(data, '$.c') = ?)`,
			wantArgs: []any{float64(1), float64(2), float64(3)},
		},
		{
			name:     "parens override precedence",
			filter:   `a = 1 && (b = 2 || c = 3)`,
			wantSQL:  `(json_extract(data, '$.a') = ? AND (json_extract(data, '$.b') = ? OR json_extract(data, '$.c') = ?))`,
			wantArgs: []any{float64(1), float64(2), float64(3)},
		},
		{
			name:     "system field is a plain column",
			filter:   `id = "abc123"`,
			wantSQL:  `id = ?`,
			wantArgs: []any{"abc123"},
		},
		{
			name:     "lower modifier",
			filter:   `title:lower = "hello"`,
			wantSQL:  `LOWER(json_extract(data, '$.title')) = ?`,
			wantArgs: []any{"hello"},
		},
		{
			name:     "null equality",
			filter:   `deletedAt = null`,
			wantSQL:  `json_extract(data, '$.deletedAt') IS NULL`,
			wantArgs: nil,
		},
		{
			name:     "null inequality",
			filter:   `deletedAt != null`,
			wantSQL:  `json_extract(data, '$.deletedAt') IS NOT NULL`,
			wantArgs: nil,
		},
		{
			name:     "substring match",
			filter:   `title ~ "foo"`,
			wantSQL:  `json_extract(data, '$.title') LIKE ? ESCAPE '\'`,
			wantArgs: []any{"%foo%"},
		},
		{
			name:     "any-of equality over a multi-valued field",
			filter:   `tags ?= "red"`,
			wantSQL:  `EXISTS(SELECT 1 FROM json_each(json_extract(data, '$.tags')) WHERE value = ?)`,
			wantArgs: []any{"red"},
		},
		{
			name:     "dotted relation field path",
			filter:   `author.name = "ada"`,
			wantSQL:  `json_extract(data, '$.author.name') = ?`,
			wantArgs: []any{"ada"},
		},
		{
			name:     "macro resolves to iso timestamp",
			filter:   `created >= @todayStart`,
			wantSQL:  `created >= ?`,
			wantArgs: []any{"2026-07-31T00:00:00Z"},
		},
		{
			name:     "bool literal",
			filter:   `active = true`,
			wantSQL:  `json_extract(data, '$.active') = ?`,
			wantArgs: []any{true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := Parse(tt.filter)
			require.NoError(t, err)

			compiled, err := Compile(expr, nil, fixedNow)
			require.NoError(t, err)

			assert.Equal(t, tt.wantSQL, compiled.SQL)
			assert.Equal(t, tt.wantArgs, compiled.Args)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		``,
		`title = `,
		`title ==`,
		`(title = "a"`,
		`title = "a")`,
		`title :bogus = "a"`,
	}

	for _, f := range tests {
		t.Run(f, func(t *testing.T) {
			_, err := Parse(f)
			assert.Error(t, err)
		})
	}
}

// TestCompileScenarioS3 pins the compiled shape of spec.md §8 scenario
// S3's combined any-of/macro/modifier filter: created as a direct column,
// and the any-of LIKE carrying the same ESCAPE clause as a plain ~.
func TestCompileScenarioS3(t *testing.T) {
	expr, err := Parse(`tags ?~ "flutter" && created >= @todayStart && name:lower = "alpha"`)
	require.NoError(t, err)

	compiled, err := Compile(expr, nil, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, []any{"%flutter%", "2026-07-31T00:00:00Z", "alpha"}, compiled.Args)
	assert.Contains(t, compiled.SQL, `EXISTS(SELECT 1 FROM json_each(json_extract(data, '$.tags')) WHERE value LIKE ? ESCAPE '\')`)
	assert.Contains(t, compiled.SQL, `created >= ?`)
	assert.Contains(t, compiled.SQL, `LOWER(json_extract(data, '$.name')) = ?`)
}

func TestCompileUnknownMacro(t *testing.T) {
	expr, err := Parse(`created >= @bogus`)
	require.NoError(t, err)

	_, err = Compile(expr, nil, fixedNow)
	assert.Error(t, err)
}

func TestUnparseRoundTrip(t *testing.T) {
	tests := []string{
		`title = "hello"`,
		`a = 1 && b = 2`,
		`a = 1 || b = 2`,
		`tags ?= "red"`,
		`created >= @todayStart`,
		`active = true`,
		`deletedAt = null`,
	}

	for _, f := range tests {
		t.Run(f, func(t *testing.T) {
			expr1, err := Parse(f)
			require.NoError(t, err)

			unparsed := Unparse(expr1)

			expr2, err := Parse(unparsed)
			require.NoError(t, err)

			compiled1, err := Compile(expr1, nil, fixedNow)
			require.NoError(t, err)

			compiled2, err := Compile(expr2, nil, fixedNow)
			require.NoError(t, err)

			assert.Equal(t, compiled1.SQL, compiled2.SQL)
			assert.Equal(t, compiled1.Args, compiled2.Args)
		})
	}
}

func TestCompileWithSchemaStillCompilesUnknownField(t *testing.T) {
	coll := &model.Collection{
		Name: "posts",
		Fields: []model.Field{
			{Name: "title", Type: model.FieldText},
		},
	}

	expr, err := Parse(`unknownField = "x"`)
	require.NoError(t, err)

	compiled, err := Compile(expr, coll, fixedNow)
	require.NoError(t, err)
	assert.Contains(t, compiled.SQL, "json_extract(data, '$.unknownField')")
}
