// Package codegen implements ToyC's IR generator (AST -> IR) and the
// Backend implementations that lower IR to target assembly text.
//
// Context is the IR generator: fresh-temp/fresh-label allocation, a scope
// chain, and a breakLabel/continueLabel save-and-restore pattern around
// loop bodies. The label counter is a Context field rather than global
// state, so two Contexts compiling independent units never share state.
package codegen

import (
	"fmt"

	"github.com/toyc-lang/toycc/pkg/ast"
	"github.com/toyc-lang/toycc/pkg/config"
	"github.com/toyc-lang/toycc/pkg/ir"
	"github.com/toyc-lang/toycc/pkg/token"
	"github.com/toyc-lang/toycc/pkg/util"
)

// genScope is the generator's name-qualification chain: one entry per
// lexical scope, innermost first, each holding the qualified name it
// assigned to every name declared directly in it.
type genScope struct {
	depth   int
	names   map[string]string
	parent  *genScope
}

func newFuncScope() *genScope {
	return &genScope{depth: 1, names: make(map[string]string)}
}

func (s *genScope) push() *genScope {
	return &genScope{depth: s.depth + 1, names: make(map[string]string), parent: s}
}

// declare mints a fresh qualified name for name in this scope and returns
// it. Shadowing an outer scope's name is permitted; sema has already
// rejected redeclaration within the same scope.
func (s *genScope) declare(name string) string {
	qualified := fmt.Sprintf("%s@%d", name, s.depth)
	s.names[name] = qualified
	return qualified
}

func (s *genScope) resolve(name string) string {
	for cur := s; cur != nil; cur = cur.parent {
		if q, ok := cur.names[name]; ok {
			return q
		}
	}
	util.InternalError("codegen: unresolved variable %q (sema should have rejected this)", name)
	return name
}

// Context carries the state threaded through lowering one compilation
// unit: a per-function temp counter and a labelCount shared across every
// function in the unit (giving program-wide label uniqueness without any
// package-level mutable state).
type Context struct {
	cfg           *config.Config
	tempCount     int
	labelCount    int
	scope         *genScope
	breakLabel    string
	continueLabel string
	curFunc       *ir.Func
}

// NewContext returns a Context ready to lower a single compilation unit.
func NewContext(cfg *config.Config) *Context {
	return &Context{cfg: cfg}
}

func (ctx *Context) newTemp() ir.Temp {
	t := ir.Temp{ID: ctx.tempCount}
	ctx.tempCount++
	return t
}

func (ctx *Context) newLabel(tag string) string {
	name := fmt.Sprintf("L%d_%s", ctx.labelCount, tag)
	ctx.labelCount++
	return name
}

func (ctx *Context) emit(instr ir.Instr) {
	ctx.curFunc.Instrs = append(ctx.curFunc.Instrs, instr)
}

// GenerateIR lowers root (an ast.Program node produced by a semantically
// valid compilation unit) to an ir.Program.
func (ctx *Context) GenerateIR(root *ast.Node) *ir.Program {
	prog := root.Data.(ast.ProgramNode)
	out := &ir.Program{}
	for _, fn := range prog.Funcs {
		out.Funcs = append(out.Funcs, ctx.genFunc(fn))
	}
	return out
}

func astReturnType(t ast.Type) ir.ReturnType {
	if t == ast.TypeVoid {
		return ir.TypeVoid
	}
	return ir.TypeInt
}

func (ctx *Context) genFunc(fn *ast.Node) *ir.Func {
	d := fn.Data.(ast.FuncDeclNode)
	ctx.tempCount = 0
	ctx.scope = newFuncScope()
	ctx.breakLabel, ctx.continueLabel = "", ""

	var qualParams []string
	for _, p := range d.Params {
		qualParams = append(qualParams, ctx.scope.declare(p.Name))
	}

	out := &ir.Func{Name: d.Name, Params: qualParams, ReturnType: astReturnType(d.ReturnType)}
	ctx.curFunc = out

	// The function body is a Block, but its top-level statements share the
	// function's own scope rather than pushing a further nested one — only
	// a Block appearing as an inner statement introduces a new depth. This
	// is what makes `int x = 1; { int x = 2; }` qualify as x@1 / x@2 rather
	// than x@2 / x@3.
	body := d.Body.Data.(ast.BlockNode)
	for _, stmt := range body.Stmts {
		ctx.genStmt(stmt)
	}

	return out
}

// --- Expression lowering ---

func (ctx *Context) genExpr(n *ast.Node) ir.Operand {
	switch n.Type {
	case ast.IntLit:
		return ir.Const{Value: n.Data.(ast.IntLitNode).Value}

	case ast.Var:
		name := n.Data.(ast.VarNode).Name
		return ir.Name{Qualified: ctx.scope.resolve(name)}

	case ast.UnaryOp:
		d := n.Data.(ast.UnaryOpNode)
		src := ctx.genExpr(d.Expr)
		dest := ctx.newTemp()
		ctx.emit(ir.UnOpInstr{Dest: dest, Op: d.Op, Src: src})
		return dest

	case ast.BinaryOp:
		d := n.Data.(ast.BinaryOpNode)
		// Left operand first, then right — the source order is the
		// evaluation order, observable through side-effecting calls in
		// operands. No short-circuit for && / || by default: both sides
		// are always evaluated (see genCondition for the opt-in exception
		// used only in if/while conditions).
		left := ctx.genExpr(d.Left)
		right := ctx.genExpr(d.Right)
		dest := ctx.newTemp()
		ctx.emit(ir.BinOpInstr{Dest: dest, Op: d.Op, Src1: left, Src2: right})
		return dest

	case ast.Call:
		return ctx.genCall(n)

	default:
		util.InternalError("codegen: unexpected expression node type %v", n.Type)
		return nil
	}
}

func (ctx *Context) genCall(n *ast.Node) ir.Operand {
	d := n.Data.(ast.CallNode)
	var argOps []ir.Operand
	for _, arg := range d.Args {
		argOps = append(argOps, ctx.genExpr(arg))
	}
	dest := ctx.newTemp()
	ctx.emit(ir.CallInstr{Dest: dest, Name: d.Name, Args: argOps})
	return dest
}

// --- Statement lowering ---

func (ctx *Context) genStmt(n *ast.Node) {
	switch n.Type {
	case ast.Block:
		outer := ctx.scope
		ctx.scope = outer.push()
		b := n.Data.(ast.BlockNode)
		for _, stmt := range b.Stmts {
			ctx.genStmt(stmt)
		}
		ctx.scope = outer

	case ast.EmptyStmt:
		// no instructions

	case ast.ExprStmt:
		d := n.Data.(ast.ExprStmtNode)
		ctx.genExpr(d.Expr) // result discarded, even for a void-returning call

	case ast.VarDecl:
		ctx.genVarDecl(n)

	case ast.Assign:
		d := n.Data.(ast.AssignNode)
		qualified := ctx.scope.resolve(d.Name)
		src := ctx.genExpr(d.Expr)
		ctx.emit(ir.MoveInstr{Dest: ir.Name{Qualified: qualified}, Src: src})

	case ast.If:
		ctx.genIf(n)

	case ast.While:
		ctx.genWhile(n)

	case ast.Break:
		ctx.emit(ir.JumpInstr{Label: ctx.breakLabel})

	case ast.Continue:
		ctx.emit(ir.JumpInstr{Label: ctx.continueLabel})

	case ast.Return:
		d := n.Data.(ast.ReturnNode)
		var val ir.Operand
		if d.Expr != nil {
			val = ctx.genExpr(d.Expr)
		}
		ctx.emit(ir.ReturnInstr{Value: val})

	default:
		util.InternalError("codegen: unexpected statement node type %v", n.Type)
	}
}

// genVarDecl inserts the declared name into the current scope with a newly
// minted qualified name. No instruction marks the "allocation" itself —
// only an initializer, if present, emits a Move.
func (ctx *Context) genVarDecl(n *ast.Node) {
	d := n.Data.(ast.VarDeclNode)
	qualified := ctx.scope.declare(d.Name)
	if d.Init != nil {
		src := ctx.genExpr(d.Init)
		ctx.emit(ir.MoveInstr{Dest: ir.Name{Qualified: qualified}, Src: src})
	}
}

func (ctx *Context) genIf(n *ast.Node) {
	d := n.Data.(ast.IfNode)
	labelThen := ctx.newLabel("if_then")
	labelElse := ctx.newLabel("if_else")

	ctx.genCondition(d.Cond, labelThen, labelElse)

	ctx.emit(ir.LabelInstr{Name: labelThen})
	ctx.genStmt(d.Then)

	if d.Else != nil {
		labelEnd := ctx.newLabel("if_end")
		ctx.emit(ir.JumpInstr{Label: labelEnd})
		ctx.emit(ir.LabelInstr{Name: labelElse})
		ctx.genStmt(d.Else)
		ctx.emit(ir.LabelInstr{Name: labelEnd})
	} else {
		ctx.emit(ir.LabelInstr{Name: labelElse})
	}
}

func (ctx *Context) genWhile(n *ast.Node) {
	d := n.Data.(ast.WhileNode)
	labelStart := ctx.newLabel("while_start")
	labelBody := ctx.newLabel("while_body")
	labelEnd := ctx.newLabel("while_end")

	ctx.emit(ir.LabelInstr{Name: labelStart})
	ctx.genCondition(d.Cond, labelBody, labelEnd)

	ctx.emit(ir.LabelInstr{Name: labelBody})
	oldBreak, oldContinue := ctx.breakLabel, ctx.continueLabel
	ctx.breakLabel, ctx.continueLabel = labelEnd, labelStart
	ctx.genStmt(d.Body)
	ctx.breakLabel, ctx.continueLabel = oldBreak, oldContinue

	ctx.emit(ir.JumpInstr{Label: labelStart})
	ctx.emit(ir.LabelInstr{Name: labelEnd})
}

// genCondition lowers cond and branches to trueLabel/falseLabel. By
// default this is the unconditional form: cond is evaluated in full (even
// a top-level && or ||, both operands always run) and a
// single CJump dispatches on the result. When config.FeatShortCircuitEval
// is enabled, a top-level && or || is instead expanded into branching
// short-circuit form, recursively on each operand.
func (ctx *Context) genCondition(cond *ast.Node, trueLabel, falseLabel string) {
	if ctx.cfg.IsFeatureEnabled(config.FeatShortCircuitEval) && cond.Type == ast.BinaryOp {
		d := cond.Data.(ast.BinaryOpNode)
		switch d.Op {
		case token.AndAnd:
			mid := ctx.newLabel("and_rhs")
			ctx.genCondition(d.Left, mid, falseLabel)
			ctx.emit(ir.LabelInstr{Name: mid})
			ctx.genCondition(d.Right, trueLabel, falseLabel)
			return
		case token.OrOr:
			mid := ctx.newLabel("or_rhs")
			ctx.genCondition(d.Left, trueLabel, mid)
			ctx.emit(ir.LabelInstr{Name: mid})
			ctx.genCondition(d.Right, trueLabel, falseLabel)
			return
		}
	}

	condOp := ctx.genExpr(cond)
	ctx.emit(ir.CJumpInstr{Cond: condOp, LabelTrue: trueLabel, LabelFalse: falseLabel})
}
