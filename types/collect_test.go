package types

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yarn-slinger/compiler/ast"
	"github.com/yarn-slinger/compiler/diagnostics"
)

func buildDeclareFile(stmts ...ast.Statement) *ast.File {
	b := ast.NewBuilder("decls.yarn")
	b.Node("Start").Body(stmts...)
	return b.Build()
}

func TestCollectDeclarationsInfersType(t *testing.T) {
	reg := NewRegistry()
	r := ast.Range{File: "decls.yarn", StartLine: 2}
	stmt := ast.Declare(r, r, "$gold", ast.Num(10, r), "")
	diags := CollectDeclarations(reg, buildDeclareFile(stmt))
	require.Empty(t, diags)

	d, ok := reg.Variable("$gold")
	require.True(t, ok)
	require.Equal(t, Number, d.Type)
	require.False(t, d.IsImplicit)
	require.Equal(t, ValueNumber, d.DefaultValue.Tag)
}

func TestCollectDeclarationsAnnotationMismatch(t *testing.T) {
	reg := NewRegistry()
	r := ast.Range{File: "decls.yarn", StartLine: 2}
	stmt := ast.Declare(r, r, "$gold", ast.Num(10, r), "String")
	diags := CollectDeclarations(reg, buildDeclareFile(stmt))
	require.Len(t, diags, 1)
	require.Equal(t, diagnostics.SeverityError, diags[0].Severity)
}

func TestCollectDeclarationsRedeclarationConflict(t *testing.T) {
	reg := NewRegistry()
	r := ast.Range{File: "decls.yarn", StartLine: 2}
	r2 := ast.Range{File: "decls.yarn", StartLine: 4}
	first := ast.Declare(r, r, "$gold", ast.Num(10, r), "")
	second := ast.Declare(r2, r2, "$gold", ast.Str("lots", r2), "")
	diags := CollectDeclarations(reg, buildDeclareFile(first, second))
	require.Len(t, diags, 1)
	require.Equal(t, diagnostics.SeverityError, diags[0].Severity)
}

func TestCollectDeclarationsIdenticalRedeclarationWarns(t *testing.T) {
	reg := NewRegistry()
	r := ast.Range{File: "decls.yarn", StartLine: 2}
	r2 := ast.Range{File: "decls.yarn", StartLine: 4}
	first := ast.Declare(r, r, "$gold", ast.Num(10, r), "")
	second := ast.Declare(r2, r2, "$gold", ast.Num(99, r2), "")
	diags := CollectDeclarations(reg, buildDeclareFile(first, second))
	require.Len(t, diags, 1)
	require.Equal(t, diagnostics.SeverityWarning, diags[0].Severity)
}
