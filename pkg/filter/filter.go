// Package filter parses and evaluates the filter expression grammar
// documented by the data model: a small boolean algebra of field
// comparisons over filterable attributes, combined with AND/OR and
// parentheses.
package filter

import (
	"fmt"
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var filterLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "String", Pattern: `"(\\"|[^"])*"|'(\\'|[^'])*'`},
	{Name: "Number", Pattern: `[-+]?\d+(\.\d+)?`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_.]*`},
	{Name: "Op", Pattern: `!=|>=|<=|=|>|<`},
	{Name: "Punct", Pattern: `[(),]`},
})

// Expr is the root of a parsed filter expression (a disjunction of
// conjunctions of comparisons).
type Expr struct {
	Or []*AndExpr `parser:"@@ ( \"OR\" @@ )*"`
}

// AndExpr is a conjunction of comparisons or parenthesized sub-expressions.
type AndExpr struct {
	And []*Primary `parser:"@@ ( \"AND\" @@ )*"`
}

// Primary is either a parenthesized expression or a single comparison.
type Primary struct {
	SubExpr    *Expr       `parser:"( \"(\" @@ \")\""`
	Comparison *Comparison `parser:"| @@ )"`
}

// Comparison is one "field OP value" leaf, or a field IN (v1, v2, ...)
// membership test.
type Comparison struct {
	Field string   `parser:"@Ident"`
	In    []*Value `parser:"( \"IN\" \"(\" @@ ( \",\" @@ )* \")\""`
	Op    string   `parser:"| @Op"`
	Value *Value   `parser:"  @@ )"`
}

// Value is a filter literal: a quoted string or a bare number.
type Value struct {
	Str    *string  `parser:"  @String"`
	Number *float64 `parser:"| @Number"`
}

func (v *Value) asString() string {
	if v.Str != nil {
		return *v.Str
	}
	return strconv.FormatFloat(*v.Number, 'f', -1, 64)
}

var parser = participle.MustBuild[Expr](
	participle.Lexer(filterLexer),
	participle.Unquote("String"),
	participle.CaseInsensitive("Ident"),
	participle.UseLookahead(2),
)

// Parse parses a filter expression string into its AST.
func Parse(src string) (*Expr, error) {
	expr, err := parser.ParseString("", src)
	if err != nil {
		return nil, fmt.Errorf("filter: parse %q: %w", src, err)
	}
	return expr, nil
}
