package compiler

import (
	"github.com/yarn-slinger/compiler/ast"
	"github.com/yarn-slinger/compiler/diagnostics"
)

// fileTagsNodeTitle is the pseudo-node convention a Yarn file uses to
// attach tags to itself rather than to one of its dialogue nodes
// (SPEC_FULL.md §4.8): a node titled "file_tags" whose `tags:` header is
// lifted out into Compilation.file_tags instead of being treated as a
// real, runnable node.
const fileTagsNodeTitle = "file_tags"

// Registrar implements S3 across every file in a compilation: it tracks
// node titles seen so far so a duplicate in a later file is still an
// error, not a silent shadow (SPEC_FULL.md's "duplicate node-title
// detection across files" supplement).
type Registrar struct {
	seen map[string]string // title -> file name that first declared it
}

// NewRegistrar returns a Registrar with no titles seen yet.
func NewRegistrar() *Registrar {
	return &Registrar{seen: make(map[string]string)}
}

// RegisterFile splits file's nodes into real dialogue nodes and the
// file_tags pseudo-node (if present), returning the real nodes, this
// file's tags, and any duplicate-title diagnostics.
func (r *Registrar) RegisterFile(file *ast.File) (nodes []*ast.YarnNode, fileTags []string, diags []diagnostics.Diagnostic) {
	for _, node := range file.Nodes {
		if node.Title == fileTagsNodeTitle {
			fileTags = append(fileTags, node.Tags...)
			continue
		}

		if firstFile, exists := r.seen[node.Title]; exists {
			diags = append(diags, diagnostics.New(file.Name, node.Range,
				"Node %q is declared more than once (first seen in %s)", node.Title, firstFile))
			continue
		}
		r.seen[node.Title] = file.Name
		nodes = append(nodes, node)
	}
	return nodes, fileTags, diags
}
