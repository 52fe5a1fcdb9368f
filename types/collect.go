package types

import (
	"github.com/yarn-slinger/compiler/ast"
	"github.com/yarn-slinger/compiler/diagnostics"
)

// literalType returns the Type an ast literal expression denotes, or nil
// for anything that isn't a literal (a `<<declare>>` RHS must be a bare
// literal — spec.md §4.2).
func literalType(e ast.Expression) *Type {
	switch e.(type) {
	case *ast.NumberLiteral:
		return Number
	case *ast.StringLiteral:
		return String
	case *ast.BoolLiteral:
		return Boolean
	default:
		return nil
	}
}

func literalValue(e ast.Expression) Value {
	switch v := e.(type) {
	case *ast.NumberLiteral:
		return Value{Tag: ValueNumber, Number: v.Value}
	case *ast.StringLiteral:
		return Value{Tag: ValueString, String: v.Value}
	case *ast.BoolLiteral:
		return Value{Tag: ValueBool, Bool: v.Value}
	default:
		return Value{}
	}
}

func namedType(name string) *Type {
	switch name {
	case "Number":
		return Number
	case "String":
		return String
	case "Boolean", "Bool":
		return Boolean
	default:
		return nil
	}
}

// CollectDeclarations implements S5: walks every `<<declare>>` statement
// in file, adding explicit Declarations to reg. It returns the diagnostics
// produced along the way; reg is mutated in place.
func CollectDeclarations(reg *Registry, file *ast.File) []diagnostics.Diagnostic {
	var diags []diagnostics.Diagnostic
	for _, node := range file.Nodes {
		diags = append(diags, collectInStatements(reg, file.Name, node.Title, node.Statements)...)
	}
	return diags
}

func collectInStatements(reg *Registry, fileName, nodeName string, stmts []ast.Statement) []diagnostics.Diagnostic {
	var diags []diagnostics.Diagnostic
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ast.DeclareStatement:
			diags = append(diags, collectOne(reg, fileName, nodeName, s)...)
		case *ast.IfStatement:
			for _, clause := range s.Clauses {
				diags = append(diags, collectInStatements(reg, fileName, nodeName, clause.Body)...)
			}
		case *ast.OptionsStatement:
			for _, opt := range s.Options {
				diags = append(diags, collectInStatements(reg, fileName, nodeName, opt.Body)...)
			}
		}
	}
	return diags
}

func collectOne(reg *Registry, fileName, nodeName string, s *ast.DeclareStatement) []diagnostics.Diagnostic {
	var diags []diagnostics.Diagnostic

	litType := literalType(s.Value)
	resolved := litType
	if s.TypeName != "" {
		annotated := namedType(s.TypeName)
		if litType != nil && annotated != nil && !litType.Equal(annotated) {
			diags = append(diags, diagnostics.New(fileName, s.Range_,
				"Type %s of value ($%s) does not match declared type %s", litType.Format(), s.Variable, annotated.Format()))
		}
		resolved = annotated
	}

	newDecl := Declaration{
		Name:           s.Variable,
		Type:           resolved,
		DefaultValue:   literalValue(s.Value),
		Description:    "",
		SourceFileName: fileName,
		SourceNodeName: nodeName,
		Range:          s.VariableRange,
		IsImplicit:     false,
		Kind:           DeclVariable,
	}

	if existing, ok := reg.Variable(s.Variable); ok {
		sameType := existing.Type != nil && newDecl.Type != nil && existing.Type.Equal(newDecl.Type)
		if !sameType {
			diags = append(diags, diagnostics.New(fileName, s.Range_,
				"%s has already been declared with a different type (%s) in %s, node %s",
				s.Variable, existing.Type.Format(), existing.SourceFileName, existing.SourceNodeName))
			return diags
		}
		diags = append(diags, diagnostics.NewWarning(fileName, s.Range_,
			"%s has already been declared in %s, node %s", s.Variable, existing.SourceFileName, existing.SourceNodeName))
		return diags
	}

	reg.Put(newDecl)
	return diags
}
