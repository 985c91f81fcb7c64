// Package ast defines the closed abstract syntax tree ToyC's parser
// produces and every later stage consumes.
package ast

import "github.com/toyc-lang/toycc/pkg/token"

// NodeType discriminates the kind of a Node's Data payload.
type NodeType int

const (
	// Expressions
	IntLit NodeType = iota
	Var
	BinaryOp
	UnaryOp
	Call

	// Statements
	Block
	EmptyStmt
	ExprStmt
	VarDecl
	Assign
	If
	While
	Break
	Continue
	Return

	FuncDecl
	Program
)

// Type is ToyC's closed type system: every variable and parameter is int,
// and void is legal only as a function return type (a call to such a
// function has type void).
type Type int

const (
	TypeInt Type = iota
	TypeVoid
)

func (t Type) String() string {
	if t == TypeVoid {
		return "void"
	}
	return "int"
}

// Node is a single AST node. Data holds one of the *Node data structs below,
// selected by Type. Parent is set by the constructors for diagnostics that
// need surrounding context.
type Node struct {
	Type   NodeType
	Tok    token.Token
	Parent *Node
	Data   interface{}
}

// --- Node data structs, one per NodeType ---

type IntLitNode struct{ Value int32 }
type VarNode struct{ Name string }
type BinaryOpNode struct {
	Op          token.Type
	Left, Right *Node
}
type UnaryOpNode struct {
	Op   token.Type
	Expr *Node
}
type CallNode struct {
	Name string
	Args []*Node
}

type BlockNode struct{ Stmts []*Node }
type EmptyStmtNode struct{}
type ExprStmtNode struct{ Expr *Node }
type VarDeclNode struct {
	Type Type
	Name string
	Init *Node // nil if uninitialized
}
type AssignNode struct {
	Name string
	Expr *Node
}
type IfNode struct {
	Cond       *Node
	Then, Else *Node // Else is nil if absent
}
type WhileNode struct{ Cond, Body *Node }
type BreakNode struct{}
type ContinueNode struct{}
type ReturnNode struct{ Expr *Node } // nil for a bare `return;`

type Param struct {
	Type Type
	Name string
}
type FuncDeclNode struct {
	ReturnType Type
	Name       string
	Params     []*Param
	Body       *Node // always a Block
}
type ProgramNode struct{ Funcs []*Node }

// --- Constructors ---

func newNode(tok token.Token, typ NodeType, data interface{}, children ...*Node) *Node {
	n := &Node{Type: typ, Tok: tok, Data: data}
	for _, c := range children {
		if c != nil {
			c.Parent = n
		}
	}
	return n
}

func NewIntLit(tok token.Token, value int32) *Node {
	return newNode(tok, IntLit, IntLitNode{Value: value})
}

func NewVar(tok token.Token, name string) *Node {
	return newNode(tok, Var, VarNode{Name: name})
}

func NewBinaryOp(tok token.Token, op token.Type, left, right *Node) *Node {
	return newNode(tok, BinaryOp, BinaryOpNode{Op: op, Left: left, Right: right}, left, right)
}

func NewUnaryOp(tok token.Token, op token.Type, expr *Node) *Node {
	return newNode(tok, UnaryOp, UnaryOpNode{Op: op, Expr: expr}, expr)
}

func NewCall(tok token.Token, name string, args []*Node) *Node {
	n := newNode(tok, Call, CallNode{Name: name, Args: args})
	for _, a := range args {
		a.Parent = n
	}
	return n
}

func NewBlock(tok token.Token, stmts []*Node) *Node {
	n := newNode(tok, Block, BlockNode{Stmts: stmts})
	for _, s := range stmts {
		s.Parent = n
	}
	return n
}

func NewEmptyStmt(tok token.Token) *Node {
	return newNode(tok, EmptyStmt, EmptyStmtNode{})
}

func NewExprStmt(tok token.Token, expr *Node) *Node {
	return newNode(tok, ExprStmt, ExprStmtNode{Expr: expr}, expr)
}

func NewVarDecl(tok token.Token, typ Type, name string, init *Node) *Node {
	return newNode(tok, VarDecl, VarDeclNode{Type: typ, Name: name, Init: init}, init)
}

func NewAssign(tok token.Token, name string, expr *Node) *Node {
	return newNode(tok, Assign, AssignNode{Name: name, Expr: expr}, expr)
}

func NewIf(tok token.Token, cond, then, els *Node) *Node {
	return newNode(tok, If, IfNode{Cond: cond, Then: then, Else: els}, cond, then, els)
}

func NewWhile(tok token.Token, cond, body *Node) *Node {
	return newNode(tok, While, WhileNode{Cond: cond, Body: body}, cond, body)
}

func NewBreak(tok token.Token) *Node    { return newNode(tok, Break, BreakNode{}) }
func NewContinue(tok token.Token) *Node { return newNode(tok, Continue, ContinueNode{}) }

func NewReturn(tok token.Token, expr *Node) *Node {
	return newNode(tok, Return, ReturnNode{Expr: expr}, expr)
}

func NewFuncDecl(tok token.Token, returnType Type, name string, params []*Param, body *Node) *Node {
	return newNode(tok, FuncDecl, FuncDeclNode{ReturnType: returnType, Name: name, Params: params, Body: body}, body)
}

func NewProgram(tok token.Token, funcs []*Node) *Node {
	n := newNode(tok, Program, ProgramNode{Funcs: funcs})
	for _, f := range funcs {
		f.Parent = n
	}
	return n
}
