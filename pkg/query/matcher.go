package query

import (
	"strings"

	"github.com/hashicorp/go-version"
)

// Package is the view of a package that queries are evaluated against
type Package interface {
	Name() string
	Flavor() string
	Version() string
	Arch() string
	IsInstalled() bool
	IsLocked() bool
	IsNewest() bool
}

// Match reports whether the package satisfies the query. A nil node matches
// every package.
func Match(p Package, n Node) bool {
	switch n := n.(type) {
	case nil:
		return true
	case *Expression:
		return matchExpression(p, n)
	case *UnaryPredicate:
		return matchUnary(p, n)
	case *BinaryPredicate:
		return matchBinary(p, n)
	}
	return true
}

func matchExpression(p Package, e *Expression) bool {
	switch e.Value {
	case "installed":
		return p.IsInstalled()
	case "locked":
		return p.IsLocked()
	case "newest":
		return p.IsNewest()
	}
	return strings.Contains(p.Name(), e.Value) || strings.Contains(p.Flavor(), e.Value)
}

func matchUnary(p Package, u *UnaryPredicate) bool {
	if u.Operator == NOT {
		return !Match(p, u.Operand)
	}
	return true
}

func matchBinary(p Package, b *BinaryPredicate) bool {
	switch b.Operator {
	case AND:
		return Match(p, b.Operand1) && Match(p, b.Operand2)
	case OR:
		return Match(p, b.Operand1) || Match(p, b.Operand2)
	}

	if !b.Operator.IsComparison() {
		return true
	}
	field, ok := b.Operand1.(*Expression)
	if !ok {
		return true
	}
	value, ok := b.Operand2.(*Expression)
	if !ok {
		return true
	}

	switch field.Value {
	case "version":
		return matchVersion(p, b.Operator, value.Value)
	case "arch":
		return matchArch(p, b.Operator, value.Value)
	}
	return true
}

func matchVersion(p Package, op Operator, value string) bool {
	want, err := version.NewVersion(value)
	if err != nil {
		return true
	}
	have, err := version.NewVersion(p.Version())
	if err != nil {
		return true
	}

	c := have.Compare(want)
	switch op {
	case EQUAL:
		return c == 0
	case NOTEQUAL:
		return c != 0
	case GREATERTHAN:
		return c > 0
	case LESSTHAN:
		return c < 0
	case GREATERTHANOREQUAL:
		return c >= 0
	case LESSTHANOREQUAL:
		return c <= 0
	}
	return true
}

func matchArch(p Package, op Operator, value string) bool {
	switch op {
	case EQUAL:
		return p.Arch() == value
	case NOTEQUAL:
		return p.Arch() != value
	}
	return true
}
