// Package filter compiles PocketBase-style filter strings into
// parameterized SQL predicates (SPEC_FULL.md section 4.4). Tokenization
// is delegated to participle/v2's simple lexer (contributed by the
// cuemby-warren example repo's dependency graph); the grammar itself —
// operator precedence, field modifiers, any-of unnesting, macro expansion
// — is a hand-written recursive-descent parser over that token stream.
// participle's struct-tag grammar DSL is a poor fit for this EBNF: the
// atom/operator disambiguation (field refs vs macros vs literals, and the
// two-character "?OP" family) is much clearer as explicit Go control flow
// than as alternation tags, so only the lexer half of the library is used.
package filter

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// Token kind names, used both as participle SimpleRule names and (via
// tokenLexer.Symbols()) as the TokenType lookup key.
const (
	tWhitespace = "Whitespace"
	tComment    = "Comment"
	tMacro      = "Macro"
	tString     = "String"
	tNumber     = "Number"
	tOp         = "Op"
	tAnd        = "And"
	tOr         = "Or"
	tLParen     = "LParen"
	tRParen     = "RParen"
	tDot        = "Dot"
	tColon      = "Colon"
	tIdent      = "Ident"
)

// tokenLexer recognizes the filter grammar's lexemes. Rule order matters:
// participle tries rules in order and takes the first match, so the
// multi-character operators (?!=, ?>=, ...) must precede their shorter
// prefixes (?=, !=, ...).
var tokenLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: tWhitespace, Pattern: `[ \t\r\n]+`},
	{Name: tComment, Pattern: `//[^\n]*`},
	{Name: tMacro, Pattern: `@(now|todayStart|todayEnd|yesterday|tomorrow|monthStart|monthEnd|yearStart|yearEnd|second|minute|hour|day|weekday|month|year)`},
	{Name: tString, Pattern: `"(?:\\.|[^"\\])*"|'(?:\\.|[^'\\])*'`},
	{Name: tNumber, Pattern: `[-+]?\d+(?:\.\d+)?`},
	{Name: tOp, Pattern: `\?!=|\?>=|\?<=|\?!~|\?=|\?>|\?<|\?~|!=|>=|<=|!~|=|>|<|~`},
	{Name: tAnd, Pattern: `&&|\bAND\b`},
	{Name: tOr, Pattern: `\|\||\bOR\b`},
	{Name: tLParen, Pattern: `\(`},
	{Name: tRParen, Pattern: `\)`},
	{Name: tDot, Pattern: `\.`},
	{Name: tColon, Pattern: `:`},
	{Name: tIdent, Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
})

// tok is a simplified token shape decoupled from participle's lexer.Token
// so the parser doesn't need to import the lexer package directly.
type tok struct {
	kind  string
	value string
}

// tokenize strips comments via the lexer's Comment rule and returns the
// non-whitespace, non-comment token stream for s.
func tokenize(s string) ([]tok, error) {
	def := tokenLexer

	lx, err := def.Lex("filter", strings.NewReader(s))
	if err != nil {
		return nil, err
	}

	symbols := def.Symbols()
	byType := make(map[lexer.TokenType]string, len(symbols))

	for name, tt := range symbols {
		byType[tt] = name
	}

	var out []tok

	for {
		t, err := lx.Next()
		if err != nil {
			return nil, err
		}

		if t.Type == lexer.EOF {
			break
		}

		name := byType[t.Type]
		if name == tWhitespace || name == tComment {
			continue
		}

		out = append(out, tok{kind: name, value: t.Value})
	}

	return out, nil
}
