package compiler

import (
	"github.com/yarn-slinger/compiler/ast"
	"github.com/yarn-slinger/compiler/diagnostics"
)

// EarlyCheckFile implements S2: a fast, file-scoped rejection of parse-tree
// patterns the target language version no longer permits, run before any
// of the heavier semantic passes. Currently that's just explicit null
// literals (Yarn 2.0+ forbids them, spec.md §4.3.2); S6's type-check
// visitor enforces the same rule again as part of its leaf rules, so a
// file with a null literal is flagged twice — once cheaply here, once
// with full expression-type context there. That overlap is intentional:
// S2 exists so a host running StringsOnly or DeclarationsOnly still gets
// the rejection without paying for inference.
func EarlyCheckFile(fileName string, file *ast.File) []diagnostics.Diagnostic {
	var diags []diagnostics.Diagnostic
	for _, node := range file.Nodes {
		diags = append(diags, earlyCheckStatements(fileName, node.Statements)...)
	}
	return diags
}

func earlyCheckStatements(fileName string, stmts []ast.Statement) []diagnostics.Diagnostic {
	var diags []diagnostics.Diagnostic
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ast.LineStatement:
			diags = append(diags, earlyCheckParts(fileName, s.Parts)...)
		case *ast.CommandStatement:
			diags = append(diags, earlyCheckParts(fileName, s.Parts)...)
		case *ast.SetStatement:
			diags = append(diags, earlyCheckExpr(fileName, s.Value)...)
		case *ast.DeclareStatement:
			diags = append(diags, earlyCheckExpr(fileName, s.Value)...)
		case *ast.IfStatement:
			for _, clause := range s.Clauses {
				if clause.Condition != nil {
					diags = append(diags, earlyCheckExpr(fileName, clause.Condition)...)
				}
				diags = append(diags, earlyCheckStatements(fileName, clause.Body)...)
			}
		case *ast.OptionsStatement:
			for _, opt := range s.Options {
				diags = append(diags, earlyCheckParts(fileName, opt.Parts)...)
				if opt.Condition != nil {
					diags = append(diags, earlyCheckExpr(fileName, opt.Condition)...)
				}
				diags = append(diags, earlyCheckStatements(fileName, opt.Body)...)
			}
		case *ast.JumpStatement:
			if s.Expr != nil {
				diags = append(diags, earlyCheckExpr(fileName, s.Expr)...)
			}
		}
	}
	return diags
}

func earlyCheckParts(fileName string, parts []ast.TextPart) []diagnostics.Diagnostic {
	var diags []diagnostics.Diagnostic
	for _, p := range parts {
		if p.Expr != nil {
			diags = append(diags, earlyCheckExpr(fileName, p.Expr)...)
		}
	}
	return diags
}

func earlyCheckExpr(fileName string, e ast.Expression) []diagnostics.Diagnostic {
	switch v := e.(type) {
	case *ast.NullLiteral:
		return []diagnostics.Diagnostic{diagnostics.New(fileName, v.Range_,
			"Null is not a permitted value in Yarn Spinner 2.0 and later")}
	case *ast.BinaryExpr:
		diags := earlyCheckExpr(fileName, v.Left)
		return append(diags, earlyCheckExpr(fileName, v.Right)...)
	case *ast.UnaryExpr:
		return earlyCheckExpr(fileName, v.Operand)
	case *ast.ParensExpr:
		return earlyCheckExpr(fileName, v.Inner)
	case *ast.FunctionCallExpr:
		var diags []diagnostics.Diagnostic
		for _, arg := range v.Args {
			diags = append(diags, earlyCheckExpr(fileName, arg)...)
		}
		return diags
	default:
		return nil
	}
}
