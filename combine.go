package compiler

import (
	"fmt"

	"github.com/yarn-slinger/compiler/codegen"
	"github.com/yarn-slinger/compiler/diagnostics"
	"github.com/yarn-slinger/compiler/stringtable"
	"github.com/yarn-slinger/compiler/types"
)

// combineResult accumulates what S9 merges across every file's
// per-stage output before producing the final Compilation.
type combineResult struct {
	program      *codegen.Program
	stringTable  *stringtable.Table
	declarations []types.Declaration
	fileTags     map[string][]string
	debugInfo    map[string]codegen.DebugInfo
}

func newCombineResult() *combineResult {
	return &combineResult{
		// program stays nil until addFile sees its first node: only
		// FullCompilation calls addFile with compiled nodes, and
		// Compilation.Program must stay nil for every other
		// CompilationType (spec.md §6.1; job.go's CompilationType doc
		// comments).
		stringTable: stringtable.New(),
		fileTags:    make(map[string][]string),
		debugInfo:   make(map[string]codegen.DebugInfo),
	}
}

// addFile folds one file's S8 output into the running combination. It
// panics (an internal-compiler-error, per spec.md §7) if a node name
// collides with one already merged — S3's cross-file duplicate-title
// check is supposed to make this unreachable for real input.
func (r *combineResult) addFile(fileName string, fileTags []string, nodes []*codegen.Node) {
	if len(fileTags) > 0 {
		r.fileTags[fileName] = fileTags
	}
	if len(nodes) == 0 {
		return
	}
	if r.program == nil {
		r.program = codegen.NewProgram()
	}
	for _, n := range nodes {
		if _, exists := r.program.Nodes[n.Name]; exists {
			panic(fmt.Sprintf("codegen: internal error: combine saw duplicate node %q across files", n.Name))
		}
		r.program.Add(n)
		r.debugInfo[n.Name] = n.Debug
	}
}

// combine implements S9: merges per-file programs (preserving node
// order), string tables, declarations, and diagnostics, then partitions
// diagnostics into the success/failure shape the pipeline returns
// (spec.md §4.6).
func combine(result *combineResult, allDiags []diagnostics.Diagnostic) (*Compilation, error) {
	errs, warnings := diagnostics.Partition(allDiags)
	if len(errs) > 0 {
		return nil, &diagnostics.CompilationError{Diagnostics: errs}
	}

	return &Compilation{
		Program:                    result.program,
		StringTable:                result.stringTable.All(),
		Declarations:               result.declarations,
		ContainsImplicitStringTags: result.stringTable.ContainsImplicitTags(),
		FileTags:                   result.fileTags,
		Warnings:                   warnings,
		DebugInfo:                  result.debugInfo,
	}, nil
}
