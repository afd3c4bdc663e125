package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/otterway/pbsync/internal/model"
)

// Compiled is a SQL boolean expression plus its positional parameters,
// ready to be AND-ed into a query's WHERE clause (SPEC_FULL.md section 4.3).
type Compiled struct {
	SQL  string
	Args []any
}

// Compile translates a parsed filter expression into a SQL predicate over
// the services table's data JSON column. Field references are resolved
// against coll (nil means "no schema known"; unknown fields still compile,
// since json_extract on a missing path simply yields SQL NULL and every
// comparison against NULL is false, matching the server's own behavior for
// unknown filter fields). now anchors macro expansion.
func Compile(e Expr, coll *model.Collection, now time.Time) (Compiled, error) {
	c := &compiler{coll: coll, now: now}

	sql, err := c.compile(e)
	if err != nil {
		return Compiled{}, err
	}

	return Compiled{SQL: sql, Args: c.args}, nil
}

type compiler struct {
	coll *model.Collection
	now  time.Time
	args []any
}

func (c *compiler) compile(e Expr) (string, error) {
	switch n := e.(type) {
	case *BinExpr:
		left, err := c.compile(n.Left)
		if err != nil {
			return "", err
		}

		right, err := c.compile(n.Right)
		if err != nil {
			return "", err
		}

		joiner := " AND "
		if n.Op == "OR" {
			joiner = " OR "
		}

		return "(" + left + joiner + right + ")", nil
	case *Cmp:
		return c.compileCmp(n)
	default:
		return "", fmt.Errorf("filter: unknown expression node %T", e)
	}
}

func (c *compiler) compileCmp(cmp *Cmp) (string, error) {
	// Field-on-the-left is the overwhelmingly common shape and the only one
	// the any-of ("?OP") operators make sense for; a literal-only
	// comparison ("5 = 5") is legal grammar but never produced by real
	// callers, so it is compiled as a plain scalar comparison too.
	left := cmp.Left
	right := cmp.Right

	if left.Kind != AtomField && right.Kind == AtomField {
		left, right = right, left
	}

	op, anyOf := splitAnyOf(cmp.Op)

	isNullLiteral := right.Kind == AtomLiteral && right.Literal == nil

	var rightSQL string

	if !isNullLiteral {
		var err error

		rightSQL, err = c.atomSQLForOp(right, op)
		if err != nil {
			return "", err
		}
	}

	if left.Kind != AtomField {
		leftSQL, err := c.atomSQL(left)
		if err != nil {
			return "", err
		}

		return c.scalarCmp(leftSQL, op, rightSQL, right), nil
	}

	if anyOf {
		return c.anyOfCmp(left, op, rightSQL, right), nil
	}

	fieldSQL, err := c.atomSQL(left)
	if err != nil {
		return "", err
	}

	return c.scalarCmp(fieldSQL, op, rightSQL, right), nil
}

// splitAnyOf strips the "?" any-of prefix from an operator, reporting
// whether it was present.
func splitAnyOf(op string) (string, bool) {
	if strings.HasPrefix(op, "?") {
		return op[1:], true
	}

	return op, false
}

// scalarCmp renders a direct comparison, special-casing null equality and
// the substring operators.
func (c *compiler) scalarCmp(leftSQL, op, rightSQL string, right Atom) string {
	switch op {
	case "=":
		if right.Kind == AtomLiteral && right.Literal == nil {
			return leftSQL + " IS NULL"
		}

		return leftSQL + " = " + rightSQL
	case "!=":
		if right.Kind == AtomLiteral && right.Literal == nil {
			return leftSQL + " IS NOT NULL"
		}

		return leftSQL + " != " + rightSQL
	case "~":
		return leftSQL + " LIKE " + rightSQL + " ESCAPE '\\'"
	case "!~":
		return "(" + leftSQL + " IS NULL OR " + leftSQL + " NOT LIKE " + rightSQL + " ESCAPE '\\')"
	default:
		return leftSQL + " " + op + " " + rightSQL
	}
}

// anyOfCmp renders "field ?OP value" as an EXISTS over json_each of the
// field's JSON value, applying the scalar comparison to each element, per
// the any-of unnesting rule (SPEC_FULL 4.4). It does not check the field's
// cardinality. For spec.md §8 scenario S3's `tags ?~ "flutter"` it yields
// "EXISTS(SELECT 1 FROM json_each(json_extract(data, '$.tags')) WHERE value LIKE ? ESCAPE '\')".
func (c *compiler) anyOfCmp(field Atom, op, rightSQL string, right Atom) string {
	path := jsonPath(field.FieldPath)
	iter := fmt.Sprintf("json_each(json_extract(data, '%s'))", path)

	inner := c.scalarCmp("value", op, rightSQL, right)

	return fmt.Sprintf("EXISTS(SELECT 1 FROM %s WHERE %s)", iter, inner)
}

// atomSQL renders an atom as a SQL fragment, appending any literal value to
// c.args as a positional parameter.
func (c *compiler) atomSQL(a Atom) (string, error) {
	return c.atomSQLForOp(a, "")
}

// atomSQLForOp is atomSQL aware of the enclosing operator: the "~"/"!~"
// substring operators wrap a string literal in "%...%" at compile time
// rather than asking every caller to remember to.
func (c *compiler) atomSQLForOp(a Atom, op string) (string, error) {
	switch a.Kind {
	case AtomField:
		return c.fieldSQL(a), nil
	case AtomMacro:
		val, ok := resolveMacro(a.Macro, c.now)
		if !ok {
			return "", fmt.Errorf("filter: unknown macro @%s", a.Macro)
		}

		c.args = append(c.args, wrapLike(val, op))

		return "?", nil
	case AtomLiteral:
		c.args = append(c.args, wrapLike(a.Literal, op))

		return "?", nil
	default:
		return "", fmt.Errorf("filter: unknown atom kind %d", a.Kind)
	}
}

// wrapLike wraps a string value in SQL LIKE wildcards for the ~/!~
// operators, escaping any literal %, _, or \ it already contains.
func wrapLike(v any, op string) any {
	if op != "~" && op != "!~" {
		return v
	}

	s, ok := v.(string)
	if !ok {
		return v
	}

	s = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)

	return "%" + s + "%"
}

// fieldSQL resolves a dotted field path to a SQL expression: system fields
// (id, created, updated) are plain columns, everything else is reached via
// json_extract on the data column, with :lower/:length modifiers applied
// on the outside.
func (c *compiler) fieldSQL(a Atom) string {
	var base string

	if len(a.FieldPath) == 1 && model.SystemFieldNames[a.FieldPath[0]] {
		base = a.FieldPath[0]
	} else {
		base = fmt.Sprintf("json_extract(data, '%s')", jsonPath(a.FieldPath))
	}

	switch a.Modifier {
	case "lower":
		return "LOWER(" + base + ")"
	case "length":
		return "json_array_length(" + base + ")"
	default:
		return base
	}
}

// jsonPath renders a dotted field path as a SQLite json_extract path
// expression, e.g. ["author", "name"] -> "$.author.name".
func jsonPath(path []string) string {
	var b strings.Builder

	b.WriteString("$")

	for _, p := range path {
		b.WriteString(".")
		b.WriteString(p)
	}

	return b.String()
}
