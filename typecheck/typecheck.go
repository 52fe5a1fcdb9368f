// Package typecheck implements S6, the type-check and inference visitor:
// assigning a concrete Type to every expression and binding the type
// field on every Declaration. Partial information is handled by three
// cooperating mechanisms — hints propagated top-down, resolved types
// accumulated bottom-up, and deferred diagnostics that ride along until
// a later statement (or a sibling operand) resolves them (spec.md §4.3).
package typecheck

import (
	"github.com/yarn-slinger/compiler/ast"
	"github.com/yarn-slinger/compiler/diagnostics"
	"github.com/yarn-slinger/compiler/types"
)

// Checker carries the two range-keyed side-tables S6 needs plus the
// deferred-diagnostic set, across every file of a compilation. A fresh
// Checker is not required per node or per file: deferred diagnostics
// survive from one statement, node and file to the next, and the registry
// itself is shared across the whole compilation.
type Checker struct {
	reg      *types.Registry
	fileName string

	// Types maps an expression's range to its resolved type. Exported so
	// codegen (S8) can look up an already-typed expression without
	// re-running inference.
	Types map[ast.Range]*types.Type
	// Hints maps an expression's range to the top-down expectation it was
	// visited with, if any.
	Hints map[ast.Range]*types.Type

	deferred map[string]diagnostics.Diagnostic
	diags    []diagnostics.Diagnostic
}

// NewChecker returns a Checker that resolves names against reg. A single
// Checker is meant to be reused across every file in a compilation: the
// registry and the deferred-diagnostic set are job-wide, not per-file
// (spec.md §3 describes one intermediate compilation state, not one per
// file), so a variable referenced in file A can be resolved by a
// declaration S5 collected from file B.
func NewChecker(reg *types.Registry) *Checker {
	return &Checker{
		reg:      reg,
		Types:    make(map[ast.Range]*types.Type),
		Hints:    make(map[ast.Range]*types.Type),
		deferred: make(map[string]diagnostics.Diagnostic),
	}
}

// VisitFile visits every node's statement tree in file, attributing new
// diagnostics to fileName. It does not promote leftover deferred
// diagnostics — spec.md §4.3.6 only promotes them "after all nodes are
// processed" (i.e. the whole job), so multi-file callers must call
// PromoteRemainingDeferred once after the last file.
func (c *Checker) VisitFile(fileName string, file *ast.File) {
	c.fileName = fileName
	for _, node := range file.Nodes {
		c.visitStatements(node.Title, node.Statements)
		c.resolveDeferred()
	}
}

// PromoteRemainingDeferred turns every deferred diagnostic still pending
// into a real, reported error and returns just that promoted set, kept
// separate from c.diags's immediate errors so a caller in TypeCheck mode
// (spec.md §6.1; SPEC_FULL.md's supplemented feature 4) can downgrade only the
// leftover forward-reference cases to warnings, not every error the
// checker ever raised. Call once after every file in a compilation has
// been visited.
func (c *Checker) PromoteRemainingDeferred() []diagnostics.Diagnostic {
	promoted := make([]diagnostics.Diagnostic, 0, len(c.deferred))
	for _, d := range c.deferred {
		promoted = append(promoted, d)
	}
	c.deferred = make(map[string]diagnostics.Diagnostic)
	c.diags = append(c.diags, promoted...)
	return promoted
}

// Diagnostics returns every diagnostic accumulated so far, including any
// already-promoted deferred ones.
func (c *Checker) Diagnostics() []diagnostics.Diagnostic { return c.diags }

// CheckFile is the single-file convenience entry point: it visits file
// and immediately promotes any diagnostic still deferred, suitable for
// tests and any caller that only ever has one file.
func (c *Checker) CheckFile(fileName string, file *ast.File) []diagnostics.Diagnostic {
	c.VisitFile(fileName, file)
	c.PromoteRemainingDeferred()
	return c.Diagnostics()
}

func (c *Checker) addError(r ast.Range, format string, args ...interface{}) {
	c.diags = append(c.diags, diagnostics.New(c.fileName, r, format, args...))
}

// resolveDeferred drops any deferred name that the declaration set has
// since picked up — a variable referenced before its <<declare>> or
// <<set>>, within the same node, resolves once that later statement
// binds it (spec.md §4.3.6: "after visiting a node's full body").
func (c *Checker) resolveDeferred() {
	for name := range c.deferred {
		if c.reg.Has(types.DeclVariable, name) {
			delete(c.deferred, name)
		}
	}
}

func (c *Checker) visitStatements(nodeName string, stmts []ast.Statement) {
	for _, stmt := range stmts {
		c.visitStatement(nodeName, stmt)
	}
}

func (c *Checker) visitStatement(nodeName string, stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.LineStatement:
		for _, p := range s.Parts {
			if p.Expr != nil {
				c.visitExpr(nodeName, p.Expr, nil)
			}
		}
	case *ast.CommandStatement:
		for _, p := range s.Parts {
			if p.Expr != nil {
				c.visitExpr(nodeName, p.Expr, nil)
			}
		}
	case *ast.SetStatement:
		c.visitSet(nodeName, s)
	case *ast.DeclareStatement:
		// S5 already bound this declaration's type; S6 still needs to
		// visit the literal RHS so its range carries a resolved type for
		// codegen, but nothing here can contradict S5's decision.
		c.visitExpr(nodeName, s.Value, nil)
	case *ast.IfStatement:
		for _, clause := range s.Clauses {
			if clause.Condition != nil {
				t := c.visitExpr(nodeName, clause.Condition, types.Boolean)
				if t != nil && !t.Equal(types.Boolean) {
					c.addError(clause.Condition.ExprRange(), "Condition must be a Boolean, not %s", t.Format())
				}
			}
			c.visitStatements(nodeName, clause.Body)
		}
	case *ast.OptionsStatement:
		for _, opt := range s.Options {
			for _, p := range opt.Parts {
				if p.Expr != nil {
					c.visitExpr(nodeName, p.Expr, nil)
				}
			}
			if opt.Condition != nil {
				t := c.visitExpr(nodeName, opt.Condition, types.Boolean)
				if t != nil && !t.Equal(types.Boolean) {
					c.addError(opt.Condition.ExprRange(), "Option condition must be a Boolean, not %s", t.Format())
				}
			}
			c.visitStatements(nodeName, opt.Body)
		}
	case *ast.JumpStatement:
		if s.Expr != nil {
			t := c.visitExpr(nodeName, s.Expr, types.String)
			if t != nil && !t.Equal(types.String) {
				c.addError(s.Expr.ExprRange(), "Jump target expression must be a String, not %s", t.Format())
			}
		}
	}
}

// visitSet implements spec.md §4.3.5's `<<set $v = expr>>` rule.
func (c *Checker) visitSet(nodeName string, s *ast.SetStatement) {
	decl, declared := c.reg.Variable(s.Variable)
	var hint *types.Type
	if declared {
		hint = decl.Type
	}
	resolved := c.visitExpr(nodeName, s.Value, hint)

	if !declared {
		def, ok := types.DefaultFor(resolved)
		if !ok {
			c.addError(s.VariableRange, "Cannot determine type of variable %s", s.Variable)
			return
		}
		c.reg.Put(types.Declaration{
			Name:           s.Variable,
			Type:           resolved,
			DefaultValue:   def,
			SourceFileName: c.fileName,
			SourceNodeName: nodeName,
			Range:          s.VariableRange,
			IsImplicit:     true,
			Kind:           types.DeclVariable,
		})
		delete(c.deferred, s.Variable)
		return
	}

	if resolved != nil && decl.Type != nil && !resolved.SubtypeOf(decl.Type) {
		c.addError(s.Value.ExprRange(), "Cannot assign a %s to %s, which has type %s", resolved.Format(), s.Variable, decl.Type.Format())
	}
}

// visitExpr dispatches on e's concrete type and records its resolved
// type under e's range before returning it.
func (c *Checker) visitExpr(nodeName string, e ast.Expression, hint *types.Type) *types.Type {
	if e == nil {
		return nil
	}
	r := e.ExprRange()
	if hint != nil {
		c.Hints[r] = hint
	}

	var result *types.Type
	switch v := e.(type) {
	case *ast.NumberLiteral:
		result = types.Number
	case *ast.StringLiteral:
		result = types.String
	case *ast.BoolLiteral:
		result = types.Boolean
	case *ast.NullLiteral:
		c.addError(r, "Null is not a permitted value in Yarn Spinner 2.0 and later")
		result = nil
	case *ast.VariableExpr:
		result = c.visitVariable(v)
	case *ast.FunctionCallExpr:
		result = c.visitCall(nodeName, v, hint)
	case *ast.BinaryExpr:
		result = c.visitBinary(nodeName, v)
	case *ast.UnaryExpr:
		result = c.visitUnary(nodeName, v)
	case *ast.ParensExpr:
		result = c.visitExpr(nodeName, v.Inner, hint)
	}

	c.Types[r] = result
	return result
}

// visitVariable implements spec.md §4.3.2's variable-reference leaf rule.
func (c *Checker) visitVariable(v *ast.VariableExpr) *types.Type {
	if d, ok := c.reg.Variable(v.Name); ok {
		return d.Type
	}
	if _, pending := c.deferred[v.Name]; pending {
		return nil
	}
	c.deferred[v.Name] = diagnostics.New(c.fileName, v.Range_, "Cannot determine type of variable %s", v.Name)
	return nil
}

// visitCall implements spec.md §4.3.3's function-call rule.
func (c *Checker) visitCall(nodeName string, call *ast.FunctionCallExpr, hint *types.Type) *types.Type {
	decl, ok := c.reg.Function(call.Name)
	if !ok {
		params := make([]*types.Type, len(call.Args))
		decl = types.Declaration{
			Name:           call.Name,
			Type:           types.NewFunction(params, hint),
			Description:    "Implicitly declared by use",
			SourceFileName: c.fileName,
			SourceNodeName: nodeName,
			Range:          call.Range_,
			IsImplicit:     true,
			Kind:           types.DeclFunction,
		}
		c.reg.Put(decl)
	} else if decl.Type.ReturnType == nil && hint != nil {
		decl.Type = types.NewFunction(decl.Type.Parameters, hint)
		c.reg.Put(decl)
	}

	params := append([]*types.Type(nil), decl.Type.Parameters...)
	if len(call.Args) != len(params) {
		c.addError(call.Range_, "Function %s expects %d argument(s) but received %d", call.Name, len(params), len(call.Args))
		return decl.Type.ReturnType
	}

	changed := false
	for i, arg := range call.Args {
		var argHint *types.Type
		if params[i] != nil {
			argHint = params[i]
		}
		s := c.visitExpr(nodeName, arg, argHint)
		switch {
		case params[i] == nil:
			params[i] = s
			changed = true
		case s != nil && !s.SubtypeOf(params[i]):
			c.addError(arg.ExprRange(), "Argument %d to %s has type %s but expected %s", i+1, call.Name, s.Format(), params[i].Format())
		}
	}
	if changed {
		decl.Type = types.NewFunction(params, decl.Type.ReturnType)
		c.reg.Put(decl)
	}
	return decl.Type.ReturnType
}

// operatorRule describes one operator's entry in the permitted-type table
// (spec.md §4.3.4).
type operatorRule struct {
	permitted    []*types.Type
	resultIsBool bool
	anyMatching  bool // true for ==, != : any one type, both sides must match
}

var binaryRules = map[ast.Operator]operatorRule{
	ast.OpAdd:          {permitted: []*types.Type{types.Number, types.String}},
	ast.OpSubtract:     {permitted: []*types.Type{types.Number}},
	ast.OpMultiply:     {permitted: []*types.Type{types.Number}},
	ast.OpDivide:       {permitted: []*types.Type{types.Number}},
	ast.OpModulo:       {permitted: []*types.Type{types.Number}},
	ast.OpEqual:        {anyMatching: true, resultIsBool: true},
	ast.OpNotEqual:     {anyMatching: true, resultIsBool: true},
	ast.OpLess:         {permitted: []*types.Type{types.Number}, resultIsBool: true},
	ast.OpLessEqual:    {permitted: []*types.Type{types.Number}, resultIsBool: true},
	ast.OpGreater:      {permitted: []*types.Type{types.Number}, resultIsBool: true},
	ast.OpGreaterEqual: {permitted: []*types.Type{types.Number}, resultIsBool: true},
	ast.OpAnd:          {permitted: []*types.Type{types.Boolean}, resultIsBool: true},
	ast.OpOr:           {permitted: []*types.Type{types.Boolean}, resultIsBool: true},
	ast.OpXor:          {permitted: []*types.Type{types.Boolean}, resultIsBool: true},
}

var unaryRules = map[ast.Operator]operatorRule{
	ast.OpNegate: {permitted: []*types.Type{types.Number}},
	ast.OpNot:    {permitted: []*types.Type{types.Boolean}, resultIsBool: true},
}

func (c *Checker) visitBinary(nodeName string, e *ast.BinaryExpr) *types.Type {
	rule, ok := binaryRules[e.Op]
	if !ok {
		c.addError(e.Range_, "Unsupported operator %s", e.Op)
		return nil
	}
	operand := c.checkOperation(nodeName, []ast.Expression{e.Left, e.Right}, e.Op, rule)
	if rule.resultIsBool {
		return types.Boolean
	}
	return operand
}

func (c *Checker) visitUnary(nodeName string, e *ast.UnaryExpr) *types.Type {
	rule, ok := unaryRules[e.Op]
	if !ok {
		c.addError(e.Range_, "Unsupported operator %s", e.Op)
		return nil
	}
	operand := c.checkOperation(nodeName, []ast.Expression{e.Operand}, e.Op, rule)
	if rule.resultIsBool {
		return types.Boolean
	}
	return operand
}

// checkOperation implements the generic check_operation(terms, operator,
// permitted_types) contract of spec.md §4.3.4, steps 1-8 (the result
// returned here is the operand type E; callers translate that into the
// operator's actual result type — Boolean for comparisons, E itself for
// arithmetic).
func (c *Checker) checkOperation(nodeName string, terms []ast.Expression, op ast.Operator, rule operatorRule) *types.Type {
	resolved := make([]*types.Type, len(terms))
	var expressionType *types.Type
	for i, term := range terms {
		resolved[i] = c.visitExpr(nodeName, term, nil)
		if expressionType == nil && resolved[i] != nil {
			expressionType = resolved[i]
		}
	}

	if expressionType == nil && len(rule.permitted) == 1 {
		expressionType = rule.permitted[0]
	}

	if expressionType == nil && !rule.anyMatching {
		opRange := terms[0].ExprRange()
		if len(rule.permitted) == 0 {
			c.addError(opRange, "Cannot determine the type of operands to %s: no more context available", op)
		} else {
			c.addError(opRange, "Cannot determine the type of operands to %s without more context", op)
		}
		return nil
	}

	if expressionType != nil {
		for i, term := range terms {
			if call, isCall := term.(*ast.FunctionCallExpr); isCall {
				if decl, ok := c.reg.Function(call.Name); ok && decl.Type.ReturnType == nil {
					decl.Type = types.NewFunction(decl.Type.Parameters, expressionType)
					c.reg.Put(decl)
					resolved[i] = expressionType
				}
			}
		}

		for i, term := range terms {
			varExpr, isVar := term.(*ast.VariableExpr)
			if !isVar {
				continue
			}
			if _, declared := c.reg.Variable(varExpr.Name); declared {
				continue
			}
			def, ok := types.DefaultFor(expressionType)
			if !ok {
				c.addError(varExpr.Range_, "Cannot determine type of variable %s", varExpr.Name)
				continue
			}
			c.reg.Put(types.Declaration{
				Name:           varExpr.Name,
				Type:           expressionType,
				DefaultValue:   def,
				SourceFileName: c.fileName,
				SourceNodeName: nodeName,
				Range:          varExpr.Range_,
				IsImplicit:     true,
				Kind:           types.DeclVariable,
			})
			delete(c.deferred, varExpr.Name)
			resolved[i] = expressionType
		}

		for i, t := range resolved {
			if t != nil && !t.SubtypeOf(expressionType) {
				c.addError(terms[i].ExprRange(), "Operand to %s has type %s but expected %s", op, t.Format(), expressionType.Format())
			}
		}
	}

	if len(rule.permitted) > 0 && expressionType != nil {
		permittedOK := false
		for _, p := range rule.permitted {
			if expressionType.Equal(p) {
				permittedOK = true
				break
			}
		}
		if !permittedOK {
			c.addError(terms[0].ExprRange(), "Operator %s cannot be applied to %s", op, expressionType.Format())
		}
	}

	return expressionType
}
