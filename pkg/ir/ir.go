// Package ir defines ToyC's three-address intermediate representation: a
// flat, linear instruction list per function using symbolic operands.
//
// Operand and Instr are closed sum types: a small interface with an
// unexported marker method, one concrete struct per case.
package ir

import (
	"fmt"

	"github.com/toyc-lang/toycc/pkg/token"
)

// Operand is a value an instruction reads or writes.
type Operand interface {
	isOperand()
	String() string
}

// Const is a literal 32-bit integer.
type Const struct{ Value int32 }

// Temp is a fresh, single-assignment temporary local to one function.
type Temp struct{ ID int }

// Name is a scope-qualified source variable, e.g. "x@2". Named operands may
// be reassigned, unlike Temp.
type Name struct{ Qualified string }

func (Const) isOperand() {}
func (Temp) isOperand()  {}
func (Name) isOperand()  {}

func (c Const) String() string { return fmt.Sprintf("%d", c.Value) }
func (t Temp) String() string  { return fmt.Sprintf("t%d", t.ID) }
func (n Name) String() string  { return n.Qualified }

// BinOp is the closed set of binary operators, reusing the AST's token
// vocabulary so the generator does no re-encoding.
type BinOp = token.Type

// UnOp is the closed set of unary operators.
type UnOp = token.Type

// Instr is one three-address instruction: a closed sum type, selected by a
// type switch over exactly the cases below.
type Instr interface {
	isInstr()
}

// BinOpInstr computes Dest = Src1 op Src2.
type BinOpInstr struct {
	Dest       Operand
	Op         BinOp
	Src1, Src2 Operand
}

// UnOpInstr computes Dest = op Src.
type UnOpInstr struct {
	Dest Operand
	Op   UnOp
	Src  Operand
}

// MoveInstr copies Src into Dest.
type MoveInstr struct{ Dest, Src Operand }

// LoadInstr and StoreInstr provide memory indirection through an operand
// whose value is an address. Reserved for a future memory model: the
// generator never emits them and the RISC-V backend never consumes them —
// every operand it sees today addresses a direct stack slot, not a pointer.
type LoadInstr struct{ Dest, SrcAddr Operand }
type StoreInstr struct{ DestAddr, Src Operand }

// LabelInstr marks a jump target. Exactly one LabelInstr with a given Name
// exists per function.
type LabelInstr struct{ Name string }

// JumpInstr transfers control unconditionally to Label.
type JumpInstr struct{ Label string }

// CJumpInstr transfers control to LabelTrue if Cond is nonzero, else to
// LabelFalse.
type CJumpInstr struct {
	Cond                  Operand
	LabelTrue, LabelFalse string
}

// CallInstr invokes Name with Args. The generator always gives a call a
// fresh Temp as Dest, even an expression-statement call or a call to a
// void-returning function; a backend stores no result when Dest is nil.
type CallInstr struct {
	Dest Operand // a fresh Temp from the generator; nil means no result is stored
	Name string
	Args []Operand
}

// ReturnInstr returns from the enclosing function. Value is nil for a bare
// `return;` in a void function.
type ReturnInstr struct{ Value Operand }

func (BinOpInstr) isInstr()  {}
func (UnOpInstr) isInstr()   {}
func (MoveInstr) isInstr()   {}
func (LoadInstr) isInstr()   {}
func (StoreInstr) isInstr()  {}
func (LabelInstr) isInstr()  {}
func (JumpInstr) isInstr()   {}
func (CJumpInstr) isInstr()  {}
func (CallInstr) isInstr()   {}
func (ReturnInstr) isInstr() {}

// ReturnType mirrors ast.Type without importing pkg/ast, keeping ir a leaf
// package with no codegen/parser dependency.
type ReturnType int

const (
	TypeInt ReturnType = iota
	TypeVoid
)

// Func is one compiled function: its (already scope-qualified) parameter
// names in declaration order and its flat instruction list.
type Func struct {
	Name       string
	Params     []string
	ReturnType ReturnType
	Instrs     []Instr
}

// Program is the whole compiled unit: every function, in source order.
type Program struct {
	Funcs []*Func
}

// FindFunc returns the function named name, or nil.
func (p *Program) FindFunc(name string) *Func {
	for _, f := range p.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}
