package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPackage struct {
	name      string
	flavor    string
	version   string
	arch      string
	installed bool
	locked    bool
	newest    bool
}

func (p testPackage) Name() string      { return p.name }
func (p testPackage) Flavor() string    { return p.flavor }
func (p testPackage) Version() string   { return p.version }
func (p testPackage) Arch() string      { return p.arch }
func (p testPackage) IsInstalled() bool { return p.installed }
func (p testPackage) IsLocked() bool    { return p.locked }
func (p testPackage) IsNewest() bool    { return p.newest }

func TestMatch(t *testing.T) {
	zlib := testPackage{name: "zlib", flavor: "vc10", version: "1.10.0", arch: "x64", installed: true, newest: true}
	curl := testPackage{name: "curl", flavor: "", version: "7.2.1.4", arch: "x86", locked: true}

	tests := []struct {
		name  string
		pkg   testPackage
		query string
		want  bool
	}{
		{"empty matches all", curl, "", true},
		{"installed", zlib, "installed", true},
		{"not installed", curl, "installed", false},
		{"locked", curl, "locked", true},
		{"newest", zlib, "newest", true},
		{"not newest", curl, "newest", false},
		{"name substring", zlib, "lib", true},
		{"flavor substring", zlib, "vc1", true},
		{"case sensitive", zlib, "ZLIB", false},
		{"no substring", curl, "zlib", false},
		{"not", curl, "NOT installed", true},
		{"and", zlib, "installed AND newest", true},
		{"and false", zlib, "installed AND locked", false},
		{"or", curl, "installed OR locked", true},
		{"version numeric greater", zlib, "version>1.9.0", true},
		{"version numeric less", zlib, "version<1.9.0", false},
		{"version equal with padding", zlib, "version=1.10", true},
		{"version not equal", zlib, "version!=1.10.0", false},
		{"version greater or equal", curl, "version>=7.2.1.4", true},
		{"version less or equal", curl, "version<=7.2.1.3", false},
		{"four part versions", curl, "version>7.2.1", true},
		{"arch equal", zlib, "arch=x64", true},
		{"arch not equal", zlib, "arch!=x64", false},
		{"arch ordering is permissive", zlib, "arch>x86", true},
		{"unknown field is permissive", curl, "publisher=nobody", true},
		{"bad version literal is permissive", curl, "version>banana", true},
		{"combined", zlib, "(zlib OR curl) AND arch=x64 AND version>=1.0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := Parse(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, Match(tt.pkg, node))
		})
	}
}

func TestMatchNonLiteralOperand(t *testing.T) {
	pkg := testPackage{name: "zlib", version: "1.0", arch: "x64"}

	node := &BinaryPredicate{
		Operator: EQUAL,
		Operand1: &Expression{Value: "arch"},
		Operand2: &UnaryPredicate{Operator: NOT, Operand: &Expression{Value: "x64"}},
	}
	assert.True(t, Match(pkg, node))

	node = &BinaryPredicate{
		Operator: GREATERTHAN,
		Operand1: &BinaryPredicate{Operator: AND, Operand1: &Expression{Value: "a"}, Operand2: &Expression{Value: "b"}},
		Operand2: &Expression{Value: "1"},
	}
	assert.True(t, Match(pkg, node))
}

func TestMatchInstalledKeyword(t *testing.T) {
	node, err := Parse("installed")
	require.NoError(t, err)

	for _, installed := range []bool{true, false} {
		pkg := testPackage{name: "p", version: "1", installed: installed}
		assert.Equal(t, installed, Match(pkg, node))
	}
}

func TestFilterKeepsPreviousOnError(t *testing.T) {
	f := NewFilter()
	pkg := testPackage{name: "zlib", version: "1.0", installed: false}

	assert.True(t, f.Match(pkg))

	require.NoError(t, f.Set("installed"))
	assert.False(t, f.Match(pkg))

	err := f.Set("(")
	require.Error(t, err)
	assert.Equal(t, "installed", f.Text())
	assert.False(t, f.Match(pkg))

	require.NoError(t, f.Set(""))
	assert.Nil(t, f.Node())
	assert.True(t, f.Match(pkg))
}
