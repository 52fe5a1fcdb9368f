package types

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// libraryYAML mirrors the teacher's config.ToolRegistryYAML shape: a
// single root slice the host hand-writes, decoded with concrete types
// rather than map[string]any so a typo in a field name fails to unmarshal
// instead of silently producing a zero value.
type libraryYAML struct {
	Functions []functionYAML `yaml:"functions"`
}

type functionYAML struct {
	Name       string   `yaml:"name"`
	Parameters []string `yaml:"parameters"`
	Returns    string   `yaml:"returns"`
}

// LoadLibraryYAML decodes a host function library from YAML (SPEC_FULL.md
// §6.5), returning fully-typed, non-implicit function Declarations ready
// to seed a Registry via Put. Type names are matched case-insensitively
// ("number", "string", "bool"/"boolean"); any other name is rejected.
func LoadLibraryYAML(r io.Reader) ([]Declaration, error) {
	var doc libraryYAML
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode function library: %w", err)
	}

	decls := make([]Declaration, 0, len(doc.Functions))
	for _, fn := range doc.Functions {
		params := make([]*Type, len(fn.Parameters))
		for i, p := range fn.Parameters {
			t := namedType(strings.Title(strings.ToLower(p)))
			if t == nil {
				return nil, fmt.Errorf("function %s: unknown parameter type %q", fn.Name, p)
			}
			params[i] = t
		}
		var ret *Type
		if fn.Returns != "" {
			ret = namedType(strings.Title(strings.ToLower(fn.Returns)))
			if ret == nil {
				return nil, fmt.Errorf("function %s: unknown return type %q", fn.Name, fn.Returns)
			}
		}
		decls = append(decls, Declaration{
			Name:        fn.Name,
			Type:        NewFunction(params, ret),
			Description: "Declared by host function library",
			Kind:        DeclFunction,
		})
	}
	return decls, nil
}
