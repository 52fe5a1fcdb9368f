package compiler

import (
	"fmt"

	"github.com/yarn-slinger/compiler/ast"
	"github.com/yarn-slinger/compiler/types"
)

// trackingVariableName is the fixed naming convention S7 uses for a
// node's synthesized visit-count variable (spec.md §4.4).
func trackingVariableName(nodeTitle string) string {
	return "$Yarn.Internal.Visiting." + nodeTitle
}

// InjectTrackingDeclarations implements S7: for every node marked
// `tracking: always`, synthesizes a Number declaration defaulting to 0
// and puts it in reg. It returns node title -> tracking variable name,
// which codegen needs to know which nodes get the visit-increment
// preamble and what variable to increment.
func InjectTrackingDeclarations(reg *types.Registry, fileName string, nodes []*ast.YarnNode) map[string]string {
	trackingVars := make(map[string]string)
	for _, node := range nodes {
		if node.Tracking != ast.TrackingAlways {
			continue
		}
		varName := trackingVariableName(node.Title)
		reg.Put(types.Declaration{
			Name:           varName,
			Type:           types.Number,
			DefaultValue:   types.Value{Tag: types.ValueNumber, Number: 0},
			Description:    fmt.Sprintf("The generated variable for tracking visits of node %s", node.Title),
			SourceFileName: fileName,
			SourceNodeName: node.Title,
			Range:          node.Range,
			IsImplicit:     true,
			Kind:           types.DeclVariable,
		})
		trackingVars[node.Title] = varName
	}
	return trackingVars
}
