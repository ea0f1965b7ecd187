package query

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Keywords are lexed as terms and retyped by retypeKeywords, so a keyword
// inside a longer name such as not-installed stays part of the name. The
// Keyword rule comes after Term and never matches on its own.
var queryLexer = lexer.MustSimple([]lexer.Rule{
	{Name: "whitespace", Pattern: `\s+`, Action: nil},
	{Name: `String`, Pattern: `"[^"]*"`, Action: nil},
	{Name: `Op`, Pattern: `!=|>=|<=|=|>|<`, Action: nil},
	{Name: `Paren`, Pattern: `[()]`, Action: nil},
	{Name: `Term`, Pattern: `[^\s()=!<>"]+`, Action: nil},
	{Name: `Keyword`, Pattern: `AND|OR|NOT|and|or|not`, Action: nil},
})

var keywords = map[string]bool{
	"AND": true, "OR": true, "NOT": true,
	"and": true, "or": true, "not": true,
}

var keywordType = queryLexer.Symbols()["Keyword"]

func retypeKeywords(token lexer.Token) (lexer.Token, error) {
	if keywords[token.Value] {
		token.Type = keywordType
	}
	return token, nil
}

// nolint: govet
type orExpr struct {
	Left  *andExpr   `parser:"@@"`
	Right []*andExpr `parser:"( (\"OR\" | \"or\") @@ )*"`
}

// Juxtaposed operands are joined with an implicit AND.
// nolint: govet
type andExpr struct {
	Left  *unaryExpr   `parser:"@@"`
	Right []*unaryExpr `parser:"( (\"AND\" | \"and\")? @@ )*"`
}

// nolint: govet
type unaryExpr struct {
	Not     *unaryExpr   `parser:"  (\"NOT\" | \"not\") @@"`
	Primary *primaryExpr `parser:"| @@"`
}

// nolint: govet
type primaryExpr struct {
	Group      *orExpr     `parser:"  \"(\" @@ \")\""`
	Comparison *comparison `parser:"| @@"`
}

// nolint: govet
type comparison struct {
	Left  *atom  `parser:"@@"`
	Op    string `parser:"( @Op"`
	Right *atom  `parser:"  @@ )?"`
}

// nolint: govet
type atom struct {
	Term   *string `parser:"  @Term"`
	String *string `parser:"| @String"`
}

var queryParser = participle.MustBuild(&orExpr{},
	participle.Lexer(queryLexer),
	participle.Map(retypeKeywords, "Term"),
	participle.Elide("whitespace"),
)

var comparisonOperators = map[string]Operator{
	"=":  EQUAL,
	"!=": NOTEQUAL,
	">":  GREATERTHAN,
	"<":  LESSTHAN,
	">=": GREATERTHANOREQUAL,
	"<=": LESSTHANOREQUAL,
}

// ParseError is returned when query text cannot be reduced to a complete expression
type ParseError struct {
	Query string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse query %q: %v", e.Query, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse parses query text into an AST. An empty query yields a nil node and no
// error, which matches every package.
func Parse(text string) (Node, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	expr := &orExpr{}
	if err := queryParser.Parse("", strings.NewReader(text), expr); err != nil {
		return nil, &ParseError{Query: text, Err: err}
	}

	node, err := expr.node()
	if err != nil {
		return nil, &ParseError{Query: text, Err: err}
	}
	return node, nil
}

func (e *orExpr) node() (Node, error) {
	left, err := e.Left.node()
	if err != nil {
		return nil, err
	}
	for _, r := range e.Right {
		right, err := r.node()
		if err != nil {
			return nil, err
		}
		left = &BinaryPredicate{Operator: OR, Operand1: left, Operand2: right}
	}
	return left, nil
}

func (e *andExpr) node() (Node, error) {
	left, err := e.Left.node()
	if err != nil {
		return nil, err
	}
	for _, r := range e.Right {
		right, err := r.node()
		if err != nil {
			return nil, err
		}
		left = &BinaryPredicate{Operator: AND, Operand1: left, Operand2: right}
	}
	return left, nil
}

func (e *unaryExpr) node() (Node, error) {
	if e.Not != nil {
		operand, err := e.Not.node()
		if err != nil {
			return nil, err
		}
		return &UnaryPredicate{Operator: NOT, Operand: operand}, nil
	}
	if e.Primary == nil {
		return nil, fmt.Errorf("empty operand")
	}
	return e.Primary.node()
}

func (e *primaryExpr) node() (Node, error) {
	if e.Group != nil {
		return e.Group.node()
	}
	if e.Comparison == nil {
		return nil, fmt.Errorf("empty operand")
	}
	return e.Comparison.node()
}

func (c *comparison) node() (Node, error) {
	left := c.Left.expression()
	if c.Op == "" {
		return left, nil
	}

	op, ok := comparisonOperators[c.Op]
	if !ok {
		return nil, fmt.Errorf("unknown operator %q", c.Op)
	}
	if c.Right == nil {
		return nil, fmt.Errorf("missing value after %q", c.Op)
	}
	return &BinaryPredicate{Operator: op, Operand1: left, Operand2: c.Right.expression()}, nil
}

func (a *atom) expression() *Expression {
	if a.String != nil {
		return &Expression{Value: strings.TrimSuffix(strings.TrimPrefix(*a.String, `"`), `"`)}
	}
	if a.Term != nil {
		return &Expression{Value: *a.Term}
	}
	return &Expression{}
}
