package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"keyword", "installed", `"installed"`},
		{"term with dashes", "zlib-dev", `"zlib-dev"`},
		{"version comparison", "version>1.2.0", `("version" > "1.2.0")`},
		{"spaced comparison", "version >= 1.2", `("version" >= "1.2")`},
		{"not equal", "arch != x86", `("arch" != "x86")`},
		{"less or equal", "version<=2", `("version" <= "2")`},
		{"quoted value", `arch = "any cpu"`, `("arch" = "any cpu")`},
		{"and", "a AND b", `("a" AND "b")`},
		{"lower case keywords", "a and b or c", `(("a" AND "b") OR "c")`},
		{"implicit and", "a b", `("a" AND "b")`},
		{"and binds tighter than or", "a OR b AND c", `("a" OR ("b" AND "c"))`},
		{"not", "NOT installed", `(NOT "installed")`},
		{"double not", "not not locked", `(NOT (NOT "locked"))`},
		{"group", "not (a or b)", `(NOT ("a" OR "b"))`},
		{"nested groups", "(installed) AND (arch=x64 OR arch=any)", `("installed" AND (("arch" = "x64") OR ("arch" = "any")))`},
		{"keyword prefix is a term", "android notepad", `("android" AND "notepad")`},
		{"left associative", "a OR b OR c", `(("a" OR "b") OR "c")`},
		{"keyword before dash", "and-tools", `"and-tools"`},
		{"not before dash", "not-installed", `"not-installed"`},
		{"keyword after dash", "tools-or", `"tools-or"`},
		{"hyphenated operands", "or-tools OR not-installed", `("or-tools" OR "not-installed")`},
		{"negated hyphenated name", "NOT and-tools", `(NOT "and-tools")`},
		{"keyword in comparison value", "name = or-tools", `("name" = "or-tools")`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := Parse(tt.query)
			require.NoError(t, err)
			require.NotNil(t, node)
			assert.Equal(t, tt.want, node.String())
		})
	}
}

func TestParseEmpty(t *testing.T) {
	for _, q := range []string{"", "   ", "\t\n"} {
		node, err := Parse(q)
		require.NoError(t, err)
		assert.Nil(t, node)
	}
}

func TestParseErrors(t *testing.T) {
	queries := []string{
		"(",
		")",
		"(a",
		"a)",
		"a AND",
		"OR a",
		"NOT",
		"version >",
		"version = > 1",
		`"unterminated`,
		"a ! b",
		"and",
		"a OR",
		"NOT AND",
	}

	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			node, err := Parse(q)
			require.Error(t, err)
			assert.Nil(t, node)

			var perr *ParseError
			require.True(t, errors.As(err, &perr), "expected *ParseError, got %T", err)
			assert.Equal(t, q, perr.Query)
		})
	}
}

func TestParseComparisonShape(t *testing.T) {
	node, err := Parse("version < 3.0")
	require.NoError(t, err)

	pred, ok := node.(*BinaryPredicate)
	require.True(t, ok)
	assert.Equal(t, LESSTHAN, pred.Operator)
	assert.Equal(t, &Expression{Value: "version"}, pred.Operand1)
	assert.Equal(t, &Expression{Value: "3.0"}, pred.Operand2)
}

func TestOperatorString(t *testing.T) {
	assert.Equal(t, ">=", GREATERTHANOREQUAL.String())
	assert.Equal(t, "NOT", NOT.String())
	assert.Equal(t, "Operator(42)", Operator(42).String())
	assert.True(t, EQUAL.IsComparison())
	assert.False(t, OR.IsComparison())
}
