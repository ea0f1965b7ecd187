package query

import (
	"fmt"
	"strconv"
)

// Operator is a query operator
type Operator int

const (
	AND Operator = iota
	OR
	NOT
	EQUAL
	NOTEQUAL
	GREATERTHAN
	LESSTHAN
	GREATERTHANOREQUAL
	LESSTHANOREQUAL
)

var operatorSymbols = map[Operator]string{
	AND:                "AND",
	OR:                 "OR",
	NOT:                "NOT",
	EQUAL:              "=",
	NOTEQUAL:           "!=",
	GREATERTHAN:        ">",
	LESSTHAN:           "<",
	GREATERTHANOREQUAL: ">=",
	LESSTHANOREQUAL:    "<=",
}

// String returns the query syntax of the operator
func (o Operator) String() string {
	if s, ok := operatorSymbols[o]; ok {
		return s
	}
	return "Operator(" + strconv.Itoa(int(o)) + ")"
}

// IsComparison reports whether the operator compares a field with a value
func (o Operator) IsComparison() bool {
	return o >= EQUAL && o <= LESSTHANOREQUAL
}

// Node is an operand of a parsed query
type Node interface {
	fmt.Stringer
	node()
}

// Expression is a leaf holding a bare term, keyword, field name or value
type Expression struct {
	Value string
}

// UnaryPredicate applies an operator to a single operand
type UnaryPredicate struct {
	Operator Operator
	Operand  Node
}

// BinaryPredicate applies an operator to two operands
type BinaryPredicate struct {
	Operator Operator
	Operand1 Node
	Operand2 Node
}

func (*Expression) node()      {}
func (*UnaryPredicate) node()  {}
func (*BinaryPredicate) node() {}

func (e *Expression) String() string {
	return strconv.Quote(e.Value)
}

func (p *UnaryPredicate) String() string {
	return fmt.Sprintf("(%s %s)", p.Operator, p.Operand)
}

func (p *BinaryPredicate) String() string {
	return fmt.Sprintf("(%s %s %s)", p.Operand1, p.Operator, p.Operand2)
}
