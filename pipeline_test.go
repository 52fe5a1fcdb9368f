package compiler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yarn-slinger/compiler/ast"
	"github.com/yarn-slinger/compiler/codegen"
	"github.com/yarn-slinger/compiler/types"
)

func r(line int) ast.Range { return ast.Range{File: "script.yarn", StartLine: line} }

func oneFileJob(file *ast.File, compType CompilationType) CompilationJob {
	return CompilationJob{
		Files:           []File{{FileName: "script.yarn", Tree: file}},
		CompilationType: compType,
	}
}

func TestInferredVariableFromAdditionProducesExpectedBytecode(t *testing.T) {
	expr := ast.Bin(ast.OpAdd, ast.Num(1, r(2)), ast.Num(2, r(2)), r(2))
	stmt := ast.Set(r(2), r(2), "$x", expr)
	b := ast.NewBuilder("script.yarn")
	b.Node("Start").Body(stmt)

	result, err := Compile(context.Background(), oneFileJob(b.Build(), FullCompilation))
	require.NoError(t, err)

	decl, ok := declByName(result.Declarations, "$x")
	require.True(t, ok)
	require.Equal(t, types.Number, decl.Type)
	require.True(t, decl.IsImplicit)
	require.Equal(t, types.ValueNumber, decl.DefaultValue.Tag)
	require.Equal(t, float64(0), decl.DefaultValue.Number)

	node := result.Program.Nodes["Start"]
	require.NotNil(t, node)
	ops := opcodes(node.Instructions)
	require.Equal(t, []codegen.Opcode{
		codegen.OpPushFloat, codegen.OpPushFloat, codegen.OpCallFunc,
		codegen.OpStoreVar, codegen.OpPop, codegen.OpStop,
	}, ops)
	require.Equal(t, "Number.Add", node.Instructions[2].Operands[0].Str)
}

func TestUndeterminedEmptyExpressionErrors(t *testing.T) {
	expr := ast.Bin(ast.OpEqual, ast.Var("$a", r(2)), ast.Var("$b", r(2)), r(2))
	stmt := ast.Set(r(2), r(2), "$result", expr)
	b := ast.NewBuilder("script.yarn")
	b.Node("Start").Body(stmt)

	_, err := Compile(context.Background(), oneFileJob(b.Build(), FullCompilation))
	require.Error(t, err)

	var compErr *CompilationError
	require.True(t, errors.As(err, &compErr))
	require.NotEmpty(t, compErr.Diagnostics)
	for _, d := range compErr.Diagnostics {
		require.Contains(t, d.Message, "Cannot determine type of variable")
	}
}

func TestImplicitFunctionReturnTypeFromUse(t *testing.T) {
	call := ast.Call("my_func", r(2))
	expr := ast.Bin(ast.OpAdd, call, ast.Num(1, r(2)), r(2))
	stmt := ast.Set(r(2), r(2), "$x", expr)
	b := ast.NewBuilder("script.yarn")
	b.Node("Start").Body(stmt)

	result, err := Compile(context.Background(), oneFileJob(b.Build(), FullCompilation))
	require.NoError(t, err)

	fn, ok := declByName(result.Declarations, "my_func")
	require.True(t, ok)
	require.True(t, fn.IsImplicit)
	require.Equal(t, types.Number, fn.Type.ReturnType)

	x, ok := declByName(result.Declarations, "$x")
	require.True(t, ok)
	require.Equal(t, types.Number, x.Type)
}

func TestExplicitLineIDSurvives(t *testing.T) {
	line := ast.Line(r(2), []string{"line:greeting"}, "Hello there!")
	b := ast.NewBuilder("script.yarn")
	b.Node("Start").Body(line)

	result, err := Compile(context.Background(), oneFileJob(b.Build(), FullCompilation))
	require.NoError(t, err)

	info, ok := result.StringTable["line:greeting"]
	require.True(t, ok)
	require.False(t, info.IsImplicitTag)
	require.Equal(t, "Hello there!", info.Text)
}

func TestNullLiteralRejected(t *testing.T) {
	stmt := ast.Set(r(2), r(2), "$x", ast.Null(r(2)))
	b := ast.NewBuilder("script.yarn")
	b.Node("Start").Body(stmt)

	_, err := Compile(context.Background(), oneFileJob(b.Build(), FullCompilation))
	require.Error(t, err)

	var compErr *CompilationError
	require.True(t, errors.As(err, &compErr))
	found := false
	for _, d := range compErr.Diagnostics {
		if d.Message == "Null is not a permitted value in Yarn Spinner 2.0 and later" {
			found = true
		}
	}
	require.True(t, found, "%v", compErr.Diagnostics)
}

func TestArityMismatchErrorsWithoutCrashing(t *testing.T) {
	call := ast.Call("foo", r(2), ast.Num(1, r(2)))
	stmt := ast.Set(r(2), r(2), "$x", call)
	b := ast.NewBuilder("script.yarn")
	b.Node("Start").Body(stmt)

	job := oneFileJob(b.Build(), FullCompilation)
	job.Library.Functions = []types.Declaration{{
		Name: "foo",
		Type: types.NewFunction([]*types.Type{types.Number, types.Number}, types.Boolean),
	}}

	_, err := Compile(context.Background(), job)
	require.Error(t, err)

	var compErr *CompilationError
	require.True(t, errors.As(err, &compErr))
	require.Contains(t, compErr.Diagnostics[0].Message, "expects 2 argument")
}

func TestDeterministicImplicitLineIDsAcrossRepeatedCompiles(t *testing.T) {
	newJob := func() CompilationJob {
		line1 := ast.Line(r(2), nil, "First line.")
		line2 := ast.Line(r(3), nil, "Second line.")
		b := ast.NewBuilder("script.yarn")
		b.Node("Start").Body(line1, line2)
		return oneFileJob(b.Build(), FullCompilation)
	}

	first, err := Compile(context.Background(), newJob())
	require.NoError(t, err)
	second, err := Compile(context.Background(), newJob())
	require.NoError(t, err)

	require.Equal(t, sortedKeys(first.StringTable), sortedKeys(second.StringTable))
}

func TestImplicitIDFormat(t *testing.T) {
	line := ast.Line(r(2), nil, "Hi.")
	b := ast.NewBuilder("script.yarn")
	b.Node("Start").Body(line)

	result, err := Compile(context.Background(), oneFileJob(b.Build(), FullCompilation))
	require.NoError(t, err)

	var found bool
	for id := range result.StringTable {
		if string(id) == "line:script-Start-0" {
			found = true
		}
	}
	require.True(t, found, "%v", sortedKeys(result.StringTable))
}

func TestTrackingParity(t *testing.T) {
	b := ast.NewBuilder("script.yarn")
	b.Node("Start").Header("tracking", "always")
	b.Node("Other")

	result, err := Compile(context.Background(), oneFileJob(b.Build(), FullCompilation))
	require.NoError(t, err)

	decl, ok := declByName(result.Declarations, trackingVariableName("Start"))
	require.True(t, ok)
	require.Equal(t, types.Number, decl.Type)
	require.Equal(t, types.ValueNumber, decl.DefaultValue.Tag)
	require.Equal(t, float64(0), decl.DefaultValue.Number)

	_, ok = declByName(result.Declarations, trackingVariableName("Other"))
	require.False(t, ok)
}

func TestDeclarationsOnlyStopsAfterS6(t *testing.T) {
	expr := ast.Bin(ast.OpAdd, ast.Num(1, r(2)), ast.Num(2, r(2)), r(2))
	stmt := ast.Set(r(2), r(2), "$x", expr)
	b := ast.NewBuilder("script.yarn")
	b.Node("Start").Header("tracking", "always").Body(stmt)

	result, err := Compile(context.Background(), oneFileJob(b.Build(), DeclarationsOnly))
	require.NoError(t, err)
	require.Nil(t, result.Program, "DeclarationsOnly stops after S6: no bytecode is emitted")

	decl, ok := declByName(result.Declarations, "$x")
	require.True(t, ok)
	require.Equal(t, types.Number, decl.Type)

	// S7 (tracking injection) only runs for FullCompilation, so a
	// `tracking: always` node gets no synthesized visit-count variable here.
	_, ok = declByName(result.Declarations, trackingVariableName("Start"))
	require.False(t, ok)
}

// equalityOfUnknowns builds `<<set $result = $a == $b>>`: since `==`
// always produces Boolean regardless of its operands' resolution, this
// statement never raises an immediate error, but $a and $b both stay
// deferred — with nothing else in the job to resolve them, they're only
// ever reported via PromoteRemainingDeferred.
func equalityOfUnknowns() *ast.SetStatement {
	expr := ast.Bin(ast.OpEqual, ast.Var("$a", r(2)), ast.Var("$b", r(2)), r(2))
	return ast.Set(r(2), r(2), "$result", expr)
}

func TestTypeCheckDowngradesOnlyDeferredDiagnostics(t *testing.T) {
	// A null literal is a hard, immediate error (S6's leaf rule), not a
	// deferred one, so it must survive TypeCheck's downgrade unchanged.
	badSet := ast.Set(r(3), r(3), "$x", ast.Null(r(3)))
	b := ast.NewBuilder("script.yarn")
	b.Node("Start").Body(equalityOfUnknowns(), badSet)

	_, err := Compile(context.Background(), oneFileJob(b.Build(), TypeCheck))
	require.Error(t, err, "a real type error must still fail compilation under TypeCheck")

	var compErr *CompilationError
	require.True(t, errors.As(err, &compErr))
	found := false
	for _, d := range compErr.Diagnostics {
		if d.Message == "Null is not a permitted value in Yarn Spinner 2.0 and later" {
			found = true
		}
	}
	require.True(t, found, "%v", compErr.Diagnostics)
}

func TestTypeCheckSucceedsWhenOnlyDeferredDiagnosticsRemain(t *testing.T) {
	b := ast.NewBuilder("script.yarn")
	b.Node("Start").Body(equalityOfUnknowns())

	result, err := Compile(context.Background(), oneFileJob(b.Build(), TypeCheck))
	require.NoError(t, err, "an unresolved forward reference is downgraded to a warning, not a failure")
	require.Nil(t, result.Program)
	require.Len(t, result.Warnings, 2)
	messages := result.Warnings[0].Message + result.Warnings[1].Message
	require.Contains(t, messages, "$a")
	require.Contains(t, messages, "$b")
}

func TestErrorIsolationStringsOnlyStillExtractsLines(t *testing.T) {
	// `"a" - 1` is a type error only S6 detects; S2's early check does not
	// flag it.
	badSet := ast.Set(r(2), r(2), "$x", ast.Bin(ast.OpSubtract, ast.Str("a", r(2)), ast.Num(1, r(2)), r(2)))
	line := ast.Line(r(3), nil, "Still here.")
	b := ast.NewBuilder("script.yarn")
	b.Node("Start").Body(badSet, line)

	result, err := Compile(context.Background(), oneFileJob(b.Build(), StringsOnly))
	require.NoError(t, err, "StringsOnly never reaches the type-check stage that would reject the type error")
	require.Nil(t, result.Program)
	require.Empty(t, result.Declarations)

	found := false
	for _, info := range result.StringTable {
		if info.Text == "Still here." {
			found = true
		}
	}
	require.True(t, found)
}

func TestDuplicateNodeTitleAcrossFilesIsAnError(t *testing.T) {
	b1 := ast.NewBuilder("a.yarn")
	b1.Node("Start").Body(ast.Line(r(2), nil, "From A."))
	b2 := ast.NewBuilder("b.yarn")
	b2.Node("Start").Body(ast.Line(r(2), nil, "From B."))

	job := CompilationJob{
		Files: []File{
			{FileName: "a.yarn", Tree: b1.Build()},
			{FileName: "b.yarn", Tree: b2.Build()},
		},
		CompilationType: FullCompilation,
	}

	_, err := Compile(context.Background(), job)
	require.Error(t, err)
	var compErr *CompilationError
	require.True(t, errors.As(err, &compErr))
	require.Contains(t, compErr.Diagnostics[0].Message, "declared more than once")
}

func declByName(decls []types.Declaration, name string) (types.Declaration, bool) {
	for _, d := range decls {
		if d.Name == name {
			return d, true
		}
	}
	return types.Declaration{}, false
}

func opcodes(instrs []codegen.Instruction) []codegen.Opcode {
	out := make([]codegen.Opcode, len(instrs))
	for i, instr := range instrs {
		out[i] = instr.Op
	}
	return out
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	out := make([]K, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
