package ast

// Builder assembles a *File programmatically. It exists because lexing and
// parsing are out of scope for this module (see the package doc comment):
// tests need some way to stand in for "a parser produced this tree", and
// Builder is that stand-in. It is not a parser and makes no attempt to
// accept Yarn source text.
type Builder struct {
	file *File
}

// NewBuilder starts a new file tree named name.
func NewBuilder(name string) *Builder {
	return &Builder{file: &File{Name: name}}
}

// Node appends a node to the file and returns a NodeBuilder for it.
func (b *Builder) Node(title string) *NodeBuilder {
	n := &YarnNode{Title: title}
	b.file.Nodes = append(b.file.Nodes, n)
	return &NodeBuilder{node: n}
}

// Build returns the assembled file.
func (b *Builder) Build() *File { return b.file }

// NodeBuilder assembles a single YarnNode.
type NodeBuilder struct {
	node *YarnNode
}

// Header adds a `key: value` header line.
func (nb *NodeBuilder) Header(key, value string) *NodeBuilder {
	nb.node.Headers = append(nb.node.Headers, Header{Key: key, Value: value})
	if key == "tags" {
		nb.node.Tags = append(nb.node.Tags, splitTags(value)...)
	}
	if key == "tracking" {
		switch value {
		case "always":
			nb.node.Tracking = TrackingAlways
		case "never":
			nb.node.Tracking = TrackingNever
		}
	}
	return nb
}

// Body sets the node's statement list.
func (nb *NodeBuilder) Body(stmts ...Statement) *NodeBuilder {
	nb.node.Statements = append(nb.node.Statements, stmts...)
	return nb
}

// Range sets the node's source range.
func (nb *NodeBuilder) Range(r Range) *NodeBuilder {
	nb.node.Range = r
	return nb
}

func splitTags(value string) []string {
	var tags []string
	start := 0
	for i := 0; i <= len(value); i++ {
		if i == len(value) || value[i] == ' ' {
			if i > start {
				tags = append(tags, value[start:i])
			}
			start = i + 1
		}
	}
	return tags
}

// Text builds a TextPart slice from alternating literal strings and
// expressions: Text("Hello, ", someExpr, "!") produces three parts.
func Text(parts ...interface{}) []TextPart {
	out := make([]TextPart, 0, len(parts))
	for _, p := range parts {
		switch v := p.(type) {
		case string:
			out = append(out, TextPart{Literal: v})
		case Expression:
			out = append(out, TextPart{Expr: v})
		}
	}
	return out
}

// Line is a convenience constructor for a LineStatement at r, with optional
// #hashtags.
func Line(r Range, hashtags []string, parts ...interface{}) *LineStatement {
	return &LineStatement{Parts: Text(parts...), Hashtags: hashtags, Range_: r}
}

// Set is a convenience constructor for a SetStatement.
func Set(r, varRange Range, variable string, value Expression) *SetStatement {
	return &SetStatement{Variable: variable, VariableRange: varRange, Value: value, Range_: r}
}

// Declare is a convenience constructor for a DeclareStatement.
func Declare(r, varRange Range, variable string, value Expression, typeName string) *DeclareStatement {
	return &DeclareStatement{
		Variable:      variable,
		VariableRange: varRange,
		Value:         value,
		TypeName:      typeName,
		Range_:        r,
	}
}

// Num, Str, Bool, Null, Var, Call, Bin, Un are short constructors for
// building expression trees in tests without spelling out every Range_
// field by hand when the range doesn't matter to the case under test.

func Num(v float64, r Range) *NumberLiteral    { return &NumberLiteral{Value: v, Range_: r} }
func Str(v string, r Range) *StringLiteral     { return &StringLiteral{Value: v, Range_: r} }
func Bool(v bool, r Range) *BoolLiteral        { return &BoolLiteral{Value: v, Range_: r} }
func Null(r Range) *NullLiteral                { return &NullLiteral{Range_: r} }
func Var(name string, r Range) *VariableExpr   { return &VariableExpr{Name: name, Range_: r} }

func Call(name string, r Range, args ...Expression) *FunctionCallExpr {
	return &FunctionCallExpr{Name: name, Args: args, Range_: r}
}

func Bin(op Operator, left, right Expression, r Range) *BinaryExpr {
	return &BinaryExpr{Op: op, Left: left, Right: right, Range_: r}
}

func Un(op Operator, operand Expression, r Range) *UnaryExpr {
	return &UnaryExpr{Op: op, Operand: operand, Range_: r}
}
