package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubtypeOf(t *testing.T) {
	tests := []struct {
		name string
		t    *Type
		want *Type
		ok   bool
	}{
		{"number/number", Number, Number, true},
		{"number/string", Number, String, false},
		{"unbound is subtype of anything", nil, String, true},
		{"nothing is subtype of unbound", Number, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.ok, tt.t.SubtypeOf(tt.want))
		})
	}
}

func TestDefaultFor(t *testing.T) {
	v, ok := DefaultFor(Number)
	require.True(t, ok)
	require.Equal(t, ValueNumber, v.Tag)
	require.Equal(t, float64(0), v.Number)

	v, ok = DefaultFor(String)
	require.True(t, ok)
	require.Equal(t, "", v.String)

	v, ok = DefaultFor(Boolean)
	require.True(t, ok)
	require.Equal(t, false, v.Bool)

	_, ok = DefaultFor(nil)
	require.False(t, ok)

	_, ok = DefaultFor(NewFunction(nil, nil))
	require.False(t, ok)
}

func TestFunctionTypeEqual(t *testing.T) {
	a := NewFunction([]*Type{Number, String}, Boolean)
	b := NewFunction([]*Type{Number, String}, Boolean)
	c := NewFunction([]*Type{Number}, Boolean)
	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
}

func TestLoadLibraryYAML(t *testing.T) {
	doc := `
functions:
  - name: visited
    parameters: [string]
    returns: bool
  - name: random_range
    parameters: [number, number]
    returns: number
`
	decls, err := LoadLibraryYAML(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, decls, 2)
	require.Equal(t, "visited", decls[0].Name)
	require.Equal(t, KindFunction, decls[0].Type.Kind)
	require.Equal(t, KindBoolean, decls[0].Type.ReturnType.Kind)
	require.Equal(t, KindNumber, decls[1].Type.ReturnType.Kind)
	require.Len(t, decls[1].Type.Parameters, 2)
}

func TestLoadLibraryYAMLUnknownType(t *testing.T) {
	doc := `
functions:
  - name: broken
    parameters: [Widget]
`
	_, err := LoadLibraryYAML(strings.NewReader(doc))
	require.Error(t, err)
}
