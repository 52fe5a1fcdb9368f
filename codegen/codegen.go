// Package codegen implements S8: lowering a type-checked parse tree into
// the stack-based bytecode contract every Yarn Spinner runtime shares
// (spec.md §4.5, §6.4). Each node becomes a flat instruction list plus a
// label table; labels are symbolic during emission and fixed up to
// instruction indices in a single pass at the end.
package codegen

import (
	"fmt"

	"github.com/yarn-slinger/compiler/ast"
	"github.com/yarn-slinger/compiler/types"
)

// Opcode is one of the runtime's fixed instruction mnemonics (spec.md
// §6.4). The set is closed and stable across compiler versions — it is
// the contract the external runtime depends on.
type Opcode string

const (
	OpJumpTo       Opcode = "JUMP_TO"
	OpJump         Opcode = "JUMP"
	OpRunLine      Opcode = "RUN_LINE"
	OpRunCommand   Opcode = "RUN_COMMAND"
	OpAddOption    Opcode = "ADD_OPTION"
	OpShowOptions  Opcode = "SHOW_OPTIONS"
	OpPushString   Opcode = "PUSH_STRING"
	OpPushFloat    Opcode = "PUSH_FLOAT"
	OpPushBool     Opcode = "PUSH_BOOL"
	OpPushVariable Opcode = "PUSH_VARIABLE"
	OpStoreVar     Opcode = "STORE_VARIABLE"
	OpPop          Opcode = "POP"
	OpCallFunc     Opcode = "CALL_FUNC"
	OpRunNode      Opcode = "RUN_NODE"
	OpRunNodeExpr  Opcode = "RUN_NODE_EXPR"
	OpStop         Opcode = "STOP"
	OpJumpIfFalse  Opcode = "JUMP_IF_FALSE"
)

// operandKind tags what a bytecode Operand actually holds. operandLabel
// only ever appears transiently, between emission and FixupLabels; no
// Instruction that survives fixup carries one.
type operandKind int

const (
	OperandString operandKind = iota
	OperandFloat
	OperandBool
	operandLabel
)

// Operand is one of an Instruction's (at most two) arguments.
type Operand struct {
	Kind operandKind
	Str  string
	Num  float64
	Bool bool
}

func strOperand(s string) Operand   { return Operand{Kind: OperandString, Str: s} }
func floatOperand(f float64) Operand { return Operand{Kind: OperandFloat, Num: f} }
func boolOperand(b bool) Operand     { return Operand{Kind: OperandBool, Bool: b} }
func labelOperand(name string) Operand {
	return Operand{Kind: operandLabel, Str: name}
}

// Instruction is one bytecode op plus its operands.
type Instruction struct {
	Op       Opcode
	Operands []Operand
}

// Position is a (line, column) source location, the unit debug info is
// keyed by instruction index on (spec.md §6.2).
type Position struct {
	Line   int
	Column int
}

// DebugInfo maps instruction index to source position for one node.
type DebugInfo struct {
	FileName      string
	NodeName      string
	LinePositions map[int]Position
}

// Node is one dialogue node's compiled form: a flat instruction stream
// plus the resolved label table (kept around for diagnostics and tests;
// the runtime only needs the fixed-up operand indices).
type Node struct {
	Name         string
	Instructions []Instruction
	Labels       map[string]int
	Debug        DebugInfo
}

// Program is every node compiled from one file (S8's output before S9
// combines programs across files). Order preserves node declaration
// order since Go maps don't; S9 relies on it to combine programs
// deterministically (spec.md §4.6: "preserving node order").
type Program struct {
	Nodes map[string]*Node
	Order []string
}

// NewProgram returns an empty Program ready to receive compiled nodes.
func NewProgram() *Program {
	return &Program{Nodes: make(map[string]*Node)}
}

// Add appends a compiled node to the program, preserving insertion order.
func (p *Program) Add(n *Node) {
	p.Nodes[n.Name] = n
	p.Order = append(p.Order, n.Name)
}

// Emitter lowers a single node at a time. ExprTypes is the type-checker's
// resolved-type table (typecheck.Checker.Types); it lets operator
// lowering pick the operand type's bytecode method (Number.Add vs
// String.Add) without re-running inference. A nil ExprTypes defaults
// every operator to its Number form.
type Emitter struct {
	fileName  string
	exprTypes map[ast.Range]*types.Type

	labelCounter int
	labels       map[string]int
	instructions []Instruction
	positions    map[int]Position
}

// NewEmitter returns an Emitter for fileName. exprTypes may be nil.
func NewEmitter(fileName string, exprTypes map[ast.Range]*types.Type) *Emitter {
	return &Emitter{fileName: fileName, exprTypes: exprTypes}
}

func (e *Emitter) resetForNode() {
	e.labels = make(map[string]int)
	e.instructions = nil
	e.positions = make(map[int]Position)
}

func (e *Emitter) newLabel(prefix string) string {
	e.labelCounter++
	return fmt.Sprintf("%s_%d", prefix, e.labelCounter)
}

func (e *Emitter) defineLabel(name string) {
	e.labels[name] = len(e.instructions)
}

func (e *Emitter) emit(r ast.Range, op Opcode, operands ...Operand) int {
	idx := len(e.instructions)
	e.instructions = append(e.instructions, Instruction{Op: op, Operands: operands})
	e.positions[idx] = Position{Line: r.StartLine, Column: r.StartColumn}
	return idx
}

// fixupLabels replaces every symbolic label operand with the resolved
// instruction index recorded by defineLabel. A label never defined is an
// internal-compiler-error (spec.md §7): it means an emission rule forgot
// to place a label it referenced, not a problem with the user's script.
func (e *Emitter) fixupLabels() error {
	for i, inst := range e.instructions {
		for j, op := range inst.Operands {
			if op.Kind != operandLabel {
				continue
			}
			target, ok := e.labels[op.Str]
			if !ok {
				return fmt.Errorf("codegen: internal error: unresolved label %q in node instruction %d", op.Str, i)
			}
			e.instructions[i].Operands[j] = floatOperand(float64(target))
		}
	}
	return nil
}

// CompileNode lowers node to bytecode. trackingVar, if non-empty, is the
// S7-synthesized visit-count variable name for this node; callers pass it
// only when node.Tracking == ast.TrackingAlways.
func (e *Emitter) CompileNode(node *ast.YarnNode, trackingVar string) (*Node, error) {
	e.resetForNode()
	e.defineLabel("start_" + node.Title)

	if node.Tracking == ast.TrackingAlways && trackingVar != "" {
		e.emitTrackingIncrement(node.Range, trackingVar)
	}

	e.emitStatements(node.Statements)
	e.emit(node.Range, OpStop)

	if err := e.fixupLabels(); err != nil {
		return nil, err
	}

	labels := make(map[string]int, len(e.labels))
	for k, v := range e.labels {
		labels[k] = v
	}
	return &Node{
		Name:         node.Title,
		Instructions: e.instructions,
		Labels:       labels,
		Debug: DebugInfo{
			FileName:      e.fileName,
			NodeName:      node.Title,
			LinePositions: e.positions,
		},
	}, nil
}

func (e *Emitter) emitTrackingIncrement(r ast.Range, trackingVar string) {
	e.emit(r, OpPushVariable, strOperand(trackingVar))
	e.emit(r, OpPushFloat, floatOperand(1))
	e.emit(r, OpCallFunc, strOperand("Number.Add"), floatOperand(2))
	e.emit(r, OpStoreVar, strOperand(trackingVar))
	e.emit(r, OpPop)
}

func (e *Emitter) emitStatements(stmts []ast.Statement) {
	for _, stmt := range stmts {
		e.emitStatement(stmt)
	}
}

func (e *Emitter) emitStatement(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.LineStatement:
		r := s.Range_
		subCount := 0
		for _, p := range s.Parts {
			if p.Expr != nil {
				e.emitExpr(p.Expr)
				subCount++
			}
		}
		e.emit(r, OpRunLine, strOperand(s.LineID), floatOperand(float64(subCount)))
	case *ast.CommandStatement:
		r := s.Range_
		text, subCount := renderCommandText(s.Parts)
		for _, p := range s.Parts {
			if p.Expr != nil {
				e.emitExpr(p.Expr)
			}
		}
		e.emit(r, OpRunCommand, strOperand(text), floatOperand(float64(subCount)))
	case *ast.SetStatement:
		e.emitExpr(s.Value)
		e.emit(s.Range_, OpStoreVar, strOperand(s.Variable))
		e.emit(s.Range_, OpPop)
	case *ast.DeclareStatement:
		// Compile-time only: declarations carry no runtime instructions.
	case *ast.IfStatement:
		e.emitIf(s)
	case *ast.OptionsStatement:
		e.emitOptions(s)
	case *ast.JumpStatement:
		if s.Expr != nil {
			e.emitExpr(s.Expr)
			e.emit(s.Range_, OpRunNodeExpr)
		} else {
			e.emit(s.Range_, OpRunNode, strOperand(s.Target))
		}
	}
}

func (e *Emitter) emitIf(s *ast.IfStatement) {
	endLabel := e.newLabel("endif")
	n := len(s.Clauses)
	for i, clause := range s.Clauses {
		isLast := i == n-1
		if clause.Condition == nil {
			e.emitStatements(clause.Body)
			continue
		}
		nextLabel := endLabel
		if !isLast {
			nextLabel = e.newLabel("if_branch")
		}
		e.emitExpr(clause.Condition)
		e.emit(clause.Range, OpJumpIfFalse, labelOperand(nextLabel))
		e.emitStatements(clause.Body)
		e.emit(clause.Range, OpJumpTo, labelOperand(endLabel))
		if !isLast {
			e.defineLabel(nextLabel)
		}
	}
	e.defineLabel(endLabel)
}

func (e *Emitter) emitOptions(s *ast.OptionsStatement) {
	endLabel := e.newLabel("end_options")
	destLabels := make([]string, len(s.Options))
	for i, opt := range s.Options {
		destLabels[i] = e.newLabel("option_dest")
		hasCondition := opt.Condition != nil
		if hasCondition {
			e.emitExpr(opt.Condition)
		}
		e.emit(opt.Range, OpAddOption, strOperand(opt.LineID), labelOperand(destLabels[i]), boolOperand(hasCondition))
	}
	e.emit(s.Range_, OpShowOptions)
	e.emit(s.Range_, OpJump)
	for i, opt := range s.Options {
		e.defineLabel(destLabels[i])
		e.emitStatements(opt.Body)
		e.emit(opt.Range, OpJumpTo, labelOperand(endLabel))
	}
	e.defineLabel(endLabel)
}

func (e *Emitter) emitExpr(expr ast.Expression) {
	switch v := expr.(type) {
	case *ast.NumberLiteral:
		e.emit(v.Range_, OpPushFloat, floatOperand(v.Value))
	case *ast.StringLiteral:
		e.emit(v.Range_, OpPushString, strOperand(v.Value))
	case *ast.BoolLiteral:
		e.emit(v.Range_, OpPushBool, boolOperand(v.Value))
	case *ast.NullLiteral:
		// Unreachable in a successful compile: S6 rejects every null
		// literal with a hard error before codegen runs.
	case *ast.VariableExpr:
		e.emit(v.Range_, OpPushVariable, strOperand(v.Name))
	case *ast.FunctionCallExpr:
		for _, arg := range v.Args {
			e.emitExpr(arg)
		}
		e.emit(v.Range_, OpCallFunc, strOperand(v.Name), floatOperand(float64(len(v.Args))))
	case *ast.BinaryExpr:
		e.emitExpr(v.Left)
		e.emitExpr(v.Right)
		e.emit(v.Range_, OpCallFunc, strOperand(e.operatorFuncName(v.Op, v.Left)), floatOperand(2))
	case *ast.UnaryExpr:
		e.emitExpr(v.Operand)
		e.emit(v.Range_, OpCallFunc, strOperand(e.operatorFuncName(v.Op, v.Operand)), floatOperand(1))
	case *ast.ParensExpr:
		e.emitExpr(v.Inner)
	}
}

// operatorFuncName resolves a binary or unary operator to the runtime
// library function it's compiled as a call to — Yarn Spinner bytecode has
// no dedicated arithmetic/comparison opcodes (spec.md §6.4's opcode list
// has none), so every operator lowers through CALL_FUNC the same way a
// user-written function would, with the built-in library supplying
// Number.Add, String.Add, Bool.And, and so on.
func (e *Emitter) operatorFuncName(op ast.Operator, operandExpr ast.Expression) string {
	typeName := "Number"
	if e.exprTypes != nil {
		if t, ok := e.exprTypes[operandExpr.ExprRange()]; ok && t != nil {
			typeName = t.Kind.String()
		}
	}
	return typeName + "." + operatorMethodName(op)
}

func operatorMethodName(op ast.Operator) string {
	switch op {
	case ast.OpAdd:
		return "Add"
	case ast.OpSubtract:
		return "Subtract"
	case ast.OpMultiply:
		return "Multiply"
	case ast.OpDivide:
		return "Divide"
	case ast.OpModulo:
		return "Modulo"
	case ast.OpNegate:
		return "Minus"
	case ast.OpEqual:
		return "EqualTo"
	case ast.OpNotEqual:
		return "NotEqualTo"
	case ast.OpLess:
		return "LessThan"
	case ast.OpLessEqual:
		return "LessThanOrEqualTo"
	case ast.OpGreater:
		return "GreaterThan"
	case ast.OpGreaterEqual:
		return "GreaterThanOrEqualTo"
	case ast.OpAnd:
		return "And"
	case ast.OpOr:
		return "Or"
	case ast.OpXor:
		return "Xor"
	case ast.OpNot:
		return "Not"
	default:
		return "Unknown"
	}
}

// renderCommandText concatenates a command's text parts the same way
// stringtable.renderText does for lines, replacing each inline expression
// with an ordinal placeholder. Commands aren't extracted into the string
// table (they aren't localizable) so codegen renders its own copy rather
// than depending on the stringtable package for one string-building
// helper.
func renderCommandText(parts []ast.TextPart) (string, int) {
	text := ""
	n := 0
	for _, p := range parts {
		if p.Expr == nil {
			text += p.Literal
			continue
		}
		text += fmt.Sprintf("{%d}", n)
		n++
	}
	return text, n
}
