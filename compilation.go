package compiler

import (
	"github.com/yarn-slinger/compiler/codegen"
	"github.com/yarn-slinger/compiler/diagnostics"
	"github.com/yarn-slinger/compiler/stringtable"
	"github.com/yarn-slinger/compiler/types"
)

// Compilation is the successful output of Compile (spec.md §6.2).
type Compilation struct {
	Program                    *codegen.Program
	StringTable                map[stringtable.LineID]stringtable.StringInfo
	Declarations               []types.Declaration
	ContainsImplicitStringTags bool
	FileTags                   map[string][]string
	Warnings                   []diagnostics.Diagnostic
	DebugInfo                  map[string]codegen.DebugInfo
}

// CompilationError is the failure variant Compile returns when at least
// one accumulated diagnostic has error severity (spec.md §6.3).
type CompilationError = diagnostics.CompilationError
