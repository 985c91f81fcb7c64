// Package sema implements ToyC's semantic analyzer: scope management, name
// resolution, type checking, and control-flow context validation.
//
// The analyzer never mutates or annotates the AST — downstream stages
// re-derive whatever they need — and never accumulates diagnostics: the
// first violation aborts the whole pass via util.Error.
package sema

import (
	"github.com/toyc-lang/toycc/pkg/ast"
	"github.com/toyc-lang/toycc/pkg/config"
	"github.com/toyc-lang/toycc/pkg/token"
	"github.com/toyc-lang/toycc/pkg/util"
)

// varInfo is what a scope remembers about a declared variable.
type varInfo struct{ typ ast.Type }

// scope is one entry in the analyzer's scope stack, a singly-linked chain
// of symbol maps specialized to ToyC's single variable kind.
type scope struct {
	vars   map[string]varInfo
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: make(map[string]varInfo), parent: parent}
}

func (s *scope) declare(name string, typ ast.Type) {
	s.vars[name] = varInfo{typ: typ}
}

func (s *scope) declaredHere(name string) bool {
	_, ok := s.vars[name]
	return ok
}

func (s *scope) lookup(name string) (varInfo, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return varInfo{}, false
}

// funcInfo is what pass 1 records about a declared function.
type funcInfo struct {
	returnType ast.Type
	paramTypes []ast.Type
}

// Analyzer carries the state threaded through one compilation unit's check.
type Analyzer struct {
	cfg       *config.Config
	funcs     map[string]funcInfo
	curScope  *scope
	curReturn ast.Type
	inLoop    bool
}

// New returns an Analyzer ready to Check a single compilation unit.
func New(cfg *config.Config) *Analyzer {
	return &Analyzer{cfg: cfg, funcs: make(map[string]funcInfo)}
}

// Check runs both analysis passes over root (an ast.Program node) and
// returns once the unit is fully validated. It calls util.Error (which
// exits the process) on the first violation.
func (a *Analyzer) Check(root *ast.Node) {
	prog := root.Data.(ast.ProgramNode)
	a.collectSignatures(prog.Funcs, root.Tok)
	for _, fn := range prog.Funcs {
		a.checkFunc(fn)
	}
}

// collectSignatures is pass 1: register every function's signature before
// any body is checked, so forward and mutually-recursive calls resolve.
func (a *Analyzer) collectSignatures(funcs []*ast.Node, programTok token.Token) {
	for _, fn := range funcs {
		d := fn.Data.(ast.FuncDeclNode)
		if _, dup := a.funcs[d.Name]; dup {
			util.Error(fn.Tok, "redefinition of function '%s'", d.Name)
		}
		var paramTypes []ast.Type
		for _, p := range d.Params {
			paramTypes = append(paramTypes, p.Type)
		}
		a.funcs[d.Name] = funcInfo{returnType: d.ReturnType, paramTypes: paramTypes}
	}
	main, ok := a.funcs["main"]
	if !ok {
		util.Error(programTok, "missing 'main' function")
	}
	if main.returnType != ast.TypeInt || len(main.paramTypes) != 0 {
		util.Error(programTok, "'main' must have signature '() -> int'")
	}
}

// checkFunc is pass 2 for a single function: push a fresh scope, install
// parameters, and check the body under that function's return-type and
// loop context.
func (a *Analyzer) checkFunc(fn *ast.Node) {
	d := fn.Data.(ast.FuncDeclNode)
	a.curScope = newScope(nil)
	a.curReturn = d.ReturnType
	a.inLoop = false

	seen := make(map[string]bool)
	for _, p := range d.Params {
		if seen[p.Name] {
			util.Error(fn.Tok, "duplicate parameter name '%s' in function '%s'", p.Name, d.Name)
		}
		if p.Type == ast.TypeVoid {
			util.Error(fn.Tok, "parameter '%s' cannot have type 'void'", p.Name)
		}
		seen[p.Name] = true
		a.curScope.declare(p.Name, p.Type)
	}

	a.checkBlockBody(d.Body)
}

// checkBlockBody checks a block's statements without pushing a new scope —
// used for a function body, whose scope already holds the parameters. A
// statement that follows an unconditional return/break/continue is flagged
// with the supplemental WarnUnreachableCode diagnostic; unlike a semantic
// error this does not abort the pass.
func (a *Analyzer) checkBlockBody(block *ast.Node) {
	b := block.Data.(ast.BlockNode)
	terminated := false
	for _, stmt := range b.Stmts {
		if terminated && util.IsWarningEnabled(util.WarnUnreachableCode) {
			util.Warn(util.WarnUnreachableCode, stmt.Tok, "unreachable code")
		}
		a.checkStmt(stmt)
		terminated = terminated || alwaysTerminates(stmt)
	}
}

// alwaysTerminates reports whether stmt unconditionally transfers control
// out of the block it's in (return, break, continue, or an if/else whose
// branches both do).
func alwaysTerminates(stmt *ast.Node) bool {
	switch stmt.Type {
	case ast.Return, ast.Break, ast.Continue:
		return true
	case ast.If:
		d := stmt.Data.(ast.IfNode)
		return d.Else != nil && alwaysTerminates(d.Then) && alwaysTerminates(d.Else)
	case ast.Block:
		b := stmt.Data.(ast.BlockNode)
		return len(b.Stmts) > 0 && alwaysTerminates(b.Stmts[len(b.Stmts)-1])
	default:
		return false
	}
}

func (a *Analyzer) checkStmt(n *ast.Node) {
	switch n.Type {
	case ast.Block:
		outer := a.curScope
		a.curScope = newScope(outer)
		a.checkBlockBody(n)
		a.curScope = outer

	case ast.EmptyStmt:
		// nothing to check

	case ast.ExprStmt:
		d := n.Data.(ast.ExprStmtNode)
		a.checkExprStmt(d.Expr)

	case ast.VarDecl:
		a.checkVarDecl(n)

	case ast.Assign:
		a.checkAssign(n)

	case ast.If:
		d := n.Data.(ast.IfNode)
		a.requireInt(d.Cond, "if condition")
		a.checkStmt(d.Then)
		if d.Else != nil {
			a.checkStmt(d.Else)
		}

	case ast.While:
		d := n.Data.(ast.WhileNode)
		a.requireInt(d.Cond, "while condition")
		prevLoop := a.inLoop
		a.inLoop = true
		a.checkStmt(d.Body)
		a.inLoop = prevLoop

	case ast.Break:
		if !a.inLoop {
			util.Error(n.Tok, "'break' outside of loop")
		}

	case ast.Continue:
		if !a.inLoop {
			util.Error(n.Tok, "'continue' outside of loop")
		}

	case ast.Return:
		a.checkReturn(n)

	default:
		util.InternalError("sema: unexpected statement node type %v", n.Type)
	}
}

// checkExprStmt allows a void-returning call as a bare expression-statement,
// the one place a void expression may appear.
func (a *Analyzer) checkExprStmt(e *ast.Node) {
	if e.Type == ast.Call {
		a.typeOfCall(e)
		return
	}
	a.typeOf(e)
}

func (a *Analyzer) checkVarDecl(n *ast.Node) {
	d := n.Data.(ast.VarDeclNode)
	if d.Type == ast.TypeVoid {
		util.Error(n.Tok, "variable '%s' cannot have type 'void'", d.Name)
	}
	if a.curScope.declaredHere(d.Name) {
		util.Error(n.Tok, "redefinition of variable '%s' in this scope", d.Name)
	}
	if d.Init != nil {
		initType := a.typeOf(d.Init)
		if initType != d.Type {
			util.Error(n.Tok, "cannot initialize '%s' of type '%s' with value of type '%s'", d.Name, d.Type, initType)
		}
	}
	a.curScope.declare(d.Name, d.Type)
}

func (a *Analyzer) checkAssign(n *ast.Node) {
	d := n.Data.(ast.AssignNode)
	v, ok := a.curScope.lookup(d.Name)
	if !ok {
		if _, isFunc := a.funcs[d.Name]; isFunc {
			util.Error(n.Tok, "'%s' is a function, not a variable", d.Name)
		}
		util.Error(n.Tok, "assignment to undeclared variable '%s'", d.Name)
	}
	rhsType := a.typeOf(d.Expr)
	if rhsType != v.typ {
		util.Error(n.Tok, "cannot assign value of type '%s' to variable '%s' of type '%s'", rhsType, d.Name, v.typ)
	}
}

func (a *Analyzer) checkReturn(n *ast.Node) {
	d := n.Data.(ast.ReturnNode)
	if a.curReturn == ast.TypeVoid {
		if d.Expr != nil {
			util.Error(n.Tok, "void function cannot have a return value")
		}
		return
	}
	if d.Expr == nil {
		util.Error(n.Tok, "non-void function must return a value")
	}
	exprType := a.typeOf(d.Expr)
	if exprType != ast.TypeInt {
		util.Error(n.Tok, "cannot return value of type '%s' from function returning 'int'", exprType)
	}
}

// requireInt checks that e (a condition expression) has type int.
func (a *Analyzer) requireInt(e *ast.Node, context string) {
	if t := a.typeOf(e); t != ast.TypeInt {
		util.Error(e.Tok, "%s must have type 'int', found '%s'", context, t)
	}
}

// typeOf type-checks an expression used in a value position — every
// position except a bare expression-statement — and returns its type.
// Because every sub-expression position here goes through typeOf, a
// void-returning call can never appear nested inside another expression:
// typeOfCall always returns the declared return type, and every caller of
// typeOf on a Call result immediately compares it against ast.TypeInt (via
// requireInt, checkVarDecl, checkAssign, checkReturn, or a BinOp/UnOp
// operand check), which rejects void there.
func (a *Analyzer) typeOf(n *ast.Node) ast.Type {
	switch n.Type {
	case ast.IntLit:
		return ast.TypeInt

	case ast.Var:
		d := n.Data.(ast.VarNode)
		v, ok := a.curScope.lookup(d.Name)
		if !ok {
			if _, isFunc := a.funcs[d.Name]; isFunc {
				util.Error(n.Tok, "'%s' is a function, not a variable", d.Name)
			}
			util.Error(n.Tok, "use of undeclared variable '%s'", d.Name)
		}
		return v.typ

	case ast.UnaryOp:
		d := n.Data.(ast.UnaryOpNode)
		a.requireInt(d.Expr, "unary operand")
		return ast.TypeInt

	case ast.BinaryOp:
		d := n.Data.(ast.BinaryOpNode)
		a.requireInt(d.Left, "binary operand")
		a.requireInt(d.Right, "binary operand")
		return ast.TypeInt

	case ast.Call:
		return a.typeOfCall(n)

	default:
		util.InternalError("sema: unexpected expression node type %v", n.Type)
		return ast.TypeInt
	}
}

func (a *Analyzer) typeOfCall(n *ast.Node) ast.Type {
	d := n.Data.(ast.CallNode)
	f, ok := a.funcs[d.Name]
	if !ok {
		util.Error(n.Tok, "call to undeclared function '%s'", d.Name)
	}
	if len(d.Args) != len(f.paramTypes) {
		util.Error(n.Tok, "function '%s' expects %d argument(s), found %d", d.Name, len(f.paramTypes), len(d.Args))
	}
	for i, arg := range d.Args {
		argType := a.typeOf(arg)
		if argType != f.paramTypes[i] {
			util.Error(arg.Tok, "argument %d to '%s' must have type '%s', found '%s'", i+1, d.Name, f.paramTypes[i], argType)
		}
	}
	return f.returnType
}
