// Package compiler is the compilation core of a Yarn dialogue-scripting
// toolchain: semantic analysis, type inference, bytecode emission, and
// string-table extraction, run as a strictly linear nine-stage pipeline.
// Lexing and grammar parsing are out of scope — CompilationJob.Files
// carries already-parsed trees (see ast.File).
package compiler

import (
	"github.com/go-playground/validator/v10"

	"github.com/yarn-slinger/compiler/ast"
	"github.com/yarn-slinger/compiler/types"
)

var jobValidate = validator.New()

// CompilationType controls how far the pipeline runs (spec.md §6.1).
type CompilationType int

const (
	// FullCompilation runs every stage, S1 through S9.
	FullCompilation CompilationType = iota
	// StringsOnly stops after S4: Program is nil, declarations are empty.
	StringsOnly
	// DeclarationsOnly stops after S6: Program is nil.
	DeclarationsOnly
	// TypeCheck stops after S6, same as DeclarationsOnly, but reports
	// still-deferred diagnostics as warnings rather than promoting them
	// to errors.
	TypeCheck
)

// File is one source file already parsed into a tree.
type File struct {
	FileName string    `validate:"required"`
	Tree     *ast.File `validate:"required"`
}

// Library is the host's built-in function table: function declarations
// with already-known types, seeded into the registry before S5 runs.
type Library struct {
	Functions []types.Declaration
}

// CompilationJob is the input to Compile (spec.md §6.1).
type CompilationJob struct {
	Files                []File                `validate:"required,min=1,dive"`
	Library              Library
	VariableDeclarations []types.Declaration
	CompilationType      CompilationType
}

// Validate runs struct-tag validation over j, returning the first
// validation failure as an error if any field is missing or malformed.
func (j CompilationJob) Validate() error {
	return jobValidate.Struct(j)
}
