// Package types implements the Yarn type system (spec.md §3, §4.3): the
// closed Type union, Declarations over a flat variable namespace and a
// separate function namespace, and the subtype rule S6 enforces.
package types

import "fmt"

// Kind is the tag of the closed Type union.
type Kind int

const (
	KindNumber Kind = iota
	KindString
	KindBoolean
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "Number"
	case KindString:
		return "String"
	case KindBoolean:
		return "Boolean"
	case KindFunction:
		return "Function"
	default:
		return "?"
	}
}

// Type is a Yarn value type. A *Type of nil stands for spec.md's
// `Option<Type> = None`: "not yet bound". Function parameters and a
// function's return type are themselves *Type, so each can independently
// be bound or unbound.
type Type struct {
	Kind       Kind
	Parameters []*Type // only meaningful when Kind == KindFunction
	ReturnType *Type   // only meaningful when Kind == KindFunction
}

// Built-in scalar types. These are safe to share since Type is never
// mutated in place once constructed (Function types are rebuilt with
// NewFunction, not mutated, when a parameter or return type is bound).
var (
	Number  = &Type{Kind: KindNumber}
	String  = &Type{Kind: KindString}
	Boolean = &Type{Kind: KindBoolean}
)

// NewFunction builds a Function type with the given parameter types (nil
// entries are unbound parameters) and return type (nil if unbound).
func NewFunction(parameters []*Type, returnType *Type) *Type {
	return &Type{Kind: KindFunction, Parameters: parameters, ReturnType: returnType}
}

// Format renders the type the way diagnostic messages quote it.
func (t *Type) Format() string {
	if t == nil {
		return "undefined"
	}
	if t.Kind != KindFunction {
		return t.Kind.String()
	}
	params := make([]string, len(t.Parameters))
	for i, p := range t.Parameters {
		params[i] = p.Format()
	}
	ret := "undefined"
	if t.ReturnType != nil {
		ret = t.ReturnType.Format()
	}
	return fmt.Sprintf("Function(%v) -> %s", params, ret)
}

// Equal reports structural equality. Two unbound (nil) types are not equal
// to anything, including each other — "undefined" never unifies by
// fiat; a caller that wants "unknown is compatible with anything" uses
// SubtypeOf instead.
func (t *Type) Equal(other *Type) bool {
	if t == nil || other == nil {
		return false
	}
	if t.Kind != other.Kind {
		return false
	}
	if t.Kind != KindFunction {
		return true
	}
	if len(t.Parameters) != len(other.Parameters) {
		return false
	}
	for i := range t.Parameters {
		if !t.Parameters[i].Equal(other.Parameters[i]) {
			return false
		}
	}
	if (t.ReturnType == nil) != (other.ReturnType == nil) {
		return false
	}
	return t.ReturnType == nil || t.ReturnType.Equal(other.ReturnType)
}

// SubtypeOf implements the subtype check spec.md §4.3.4 step 6 and §4.3.3
// step 5 use: "t is a subtype of E". Yarn's type system is flat (no
// inheritance), so subtyping is equality, except an unbound type (nil) is
// a subtype of anything — it carries no information to contradict.
func (t *Type) SubtypeOf(other *Type) bool {
	if t == nil {
		return true
	}
	if other == nil {
		return false
	}
	return t.Equal(other)
}

// DefaultFor returns the zero-value default for t, matching the
// declaration-default invariant (spec.md §3: number->0, string->"",
// boolean->false). The second return is false when t has no meaningful
// default — unbound, or a Function type — per spec.md §4.3.4 step 5.
func DefaultFor(t *Type) (Value, bool) {
	if t == nil {
		return Value{}, false
	}
	switch t.Kind {
	case KindNumber:
		return Value{Tag: ValueNumber, Number: 0}, true
	case KindString:
		return Value{Tag: ValueString, String: ""}, true
	case KindBoolean:
		return Value{Tag: ValueBool, Bool: false}, true
	default:
		return Value{}, false
	}
}

// ValueTag is the tag of the scalar default-value union.
type ValueTag int

const (
	ValueNone ValueTag = iota
	ValueNumber
	ValueString
	ValueBool
)

// Value is a tagged scalar: a Declaration's default_value (spec.md §3).
type Value struct {
	Tag    ValueTag
	Number float64
	String string
	Bool   bool
}

// TypeOf returns the Type tag matching v's Tag, or nil for ValueNone.
func (v Value) TypeOf() *Type {
	switch v.Tag {
	case ValueNumber:
		return Number
	case ValueString:
		return String
	case ValueBool:
		return Boolean
	default:
		return nil
	}
}
