package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// Unparse renders an Expr back to filter syntax. It is not guaranteed to
// reproduce the original source text byte-for-byte (whitespace, quote
// style, and macro/AND/OR spelling are normalized) but re-parsing its
// output always yields a structurally equivalent tree, the round-trip
// property TestUnparseRoundTrip checks (SPEC_FULL.md section 4.4, testable
// property 7).
func Unparse(e Expr) string {
	switch n := e.(type) {
	case *BinExpr:
		return fmt.Sprintf("(%s %s %s)", Unparse(n.Left), n.Op, Unparse(n.Right))
	case *Cmp:
		return unparseAtom(n.Left) + " " + n.Op + " " + unparseAtom(n.Right)
	default:
		return ""
	}
}

func unparseAtom(a Atom) string {
	switch a.Kind {
	case AtomField:
		s := strings.Join(a.FieldPath, ".")
		if a.Modifier != "" {
			s += ":" + a.Modifier
		}

		return s
	case AtomMacro:
		return "@" + a.Macro
	case AtomLiteral:
		return unparseLiteral(a)
	default:
		return ""
	}
}

func unparseLiteral(a Atom) string {
	switch v := a.Literal.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		escaped := strings.ReplaceAll(v, `\`, `\\`)
		escaped = strings.ReplaceAll(escaped, `"`, `\"`)

		return `"` + escaped + `"`
	default:
		return fmt.Sprintf("%v", v)
	}
}
