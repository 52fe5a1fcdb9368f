package types

import "github.com/yarn-slinger/compiler/ast"

// DeclKind distinguishes the two separate namespaces declarations live in
// (spec.md §3: "variables live in a single flat namespace; functions live
// in a separate namespace").
type DeclKind int

const (
	DeclVariable DeclKind = iota
	DeclFunction
)

// Declaration is a named, typed variable or function (spec.md §3). Type is
// nil until inference binds it. Range and the two source-location fields
// are immutable (file, line, column) data, never a live parse-tree handle,
// so back-references from a Declaration never form a cycle with the tree
// it came from.
type Declaration struct {
	Name           string
	Type           *Type
	DefaultValue   Value
	Description    string
	SourceFileName string
	SourceNodeName string
	Range          ast.Range
	IsImplicit     bool
	Kind           DeclKind
}

// WithType returns a copy of d with Type (and, when T has one, a matching
// DefaultValue) set, leaving d itself unchanged. The pipeline's own passes
// do not call it; they build a new Declaration and Put it instead.
func (d Declaration) WithType(t *Type) Declaration {
	d.Type = t
	if def, ok := DefaultFor(t); ok {
		d.DefaultValue = def
	}
	return d
}
