package codegen

import (
	"bytes"
	"fmt"
	"runtime"
	"strings"

	"github.com/toyc-lang/toycc/pkg/config"
	"github.com/toyc-lang/toycc/pkg/ir"
	"github.com/toyc-lang/toycc/pkg/token"
	"github.com/toyc-lang/toycc/pkg/util"
	"modernc.org/libqbe"
)

// qbeBackend is the secondary Backend: it lowers ToyC's flat IR to QBE's
// SSA text and hands it to libqbe, which does its own register allocation
// and emits real target assembly. It exists to run the same IR through an
// independent code generator for differential testing against
// riscvBackend's hand-rolled output — see cmd/toycc-conformance.
type qbeBackend struct {
	out *strings.Builder
	tmp int // counter for synthetic load temporaries, disjoint from ir.Temp IDs
}

// NewQBEBackend returns the libqbe-backed secondary backend.
func NewQBEBackend() Backend { return &qbeBackend{} }

func (b *qbeBackend) Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error) {
	var sb strings.Builder
	b.out = &sb
	b.tmp = 0

	for _, fn := range prog.Funcs {
		b.genFunc(fn)
	}

	qbeIR := sb.String()
	target := cfg.QBETarget
	if target == "" {
		target = libqbe.DefaultTarget(runtime.GOOS, runtime.GOARCH)
	}

	var asmBuf bytes.Buffer
	if err := libqbe.Main(target, "input.ssa", strings.NewReader(qbeIR), &asmBuf, nil); err != nil {
		return nil, fmt.Errorf("qbe backend: libqbe error: %w\ngenerated IR:\n%s", err, qbeIR)
	}
	return &asmBuf, nil
}

func slotName(qualified string) string {
	return "slot_" + strings.ReplaceAll(qualified, "@", "_")
}

// collectNames walks fn's instructions and returns every distinct
// qualified variable name referenced, in first-seen order, each of which
// needs a stack slot — unlike an ir.Temp, a Name may be written more than
// once and is therefore not valid raw SSA.
func collectNames(fn *ir.Func) []string {
	seen := make(map[string]bool)
	var order []string
	add := func(op ir.Operand) {
		if n, ok := op.(ir.Name); ok {
			if !seen[n.Qualified] {
				seen[n.Qualified] = true
				order = append(order, n.Qualified)
			}
		}
	}
	for _, p := range fn.Params {
		if !seen[p] {
			seen[p] = true
			order = append(order, p)
		}
	}
	for _, instr := range fn.Instrs {
		switch in := instr.(type) {
		case ir.BinOpInstr:
			add(in.Src1)
			add(in.Src2)
		case ir.UnOpInstr:
			add(in.Src)
		case ir.MoveInstr:
			add(in.Dest)
			add(in.Src)
		case ir.CJumpInstr:
			add(in.Cond)
		case ir.CallInstr:
			for _, a := range in.Args {
				add(a)
			}
		case ir.ReturnInstr:
			if in.Value != nil {
				add(in.Value)
			}
		}
	}
	return order
}

func (b *qbeBackend) genFunc(fn *ir.Func) {
	retType := "w"
	if fn.ReturnType == ir.TypeVoid {
		retType = ""
	}
	sig := retType
	if sig != "" {
		sig = " " + sig
	}
	fmt.Fprintf(b.out, "\nexport function%s $%s(", sig, fn.Name)
	for i, p := range fn.Params {
		if i > 0 {
			b.out.WriteString(", ")
		}
		fmt.Fprintf(b.out, "w %%arg%d", i)
		_ = p
	}
	b.out.WriteString(") {\n@start\n")

	for _, name := range collectNames(fn) {
		fmt.Fprintf(b.out, "\t%%%s =l alloc4 4\n", slotName(name))
	}
	for i, p := range fn.Params {
		fmt.Fprintf(b.out, "\tstorew %%arg%d, %%%s\n", i, slotName(p))
	}

	lastWasTerminator := false
	for idx, instr := range fn.Instrs {
		if lbl, ok := instr.(ir.LabelInstr); ok {
			if !lastWasTerminator {
				fmt.Fprintf(b.out, "\tjmp @%s\n", lbl.Name)
			}
			fmt.Fprintf(b.out, "@%s\n", lbl.Name)
			lastWasTerminator = false
			continue
		}
		b.genInstr(instr)
		_, lastWasTerminator = instr.(ir.JumpInstr)
		if _, ok := instr.(ir.CJumpInstr); ok {
			lastWasTerminator = true
		}
		if _, ok := instr.(ir.ReturnInstr); ok {
			lastWasTerminator = true
		}
		if idx == len(fn.Instrs)-1 && !lastWasTerminator {
			b.emitDefaultReturn(fn)
		}
	}
	if len(fn.Instrs) == 0 {
		b.emitDefaultReturn(fn)
	}

	b.out.WriteString("}\n")
}

func (b *qbeBackend) emitDefaultReturn(fn *ir.Func) {
	if fn.ReturnType == ir.TypeVoid {
		b.out.WriteString("\tret\n")
	} else {
		b.out.WriteString("\tret 0\n")
	}
}

// loadOperand returns a QBE value string for op, emitting a loadw first if
// op is a Name (whose current value lives in a stack slot, not a register).
func (b *qbeBackend) loadOperand(op ir.Operand) string {
	switch v := op.(type) {
	case ir.Const:
		return fmt.Sprintf("%d", v.Value)
	case ir.Temp:
		return fmt.Sprintf("%%t%d", v.ID)
	case ir.Name:
		tmp := fmt.Sprintf("%%q%d", b.tmp)
		b.tmp++
		fmt.Fprintf(b.out, "\t%s =w loadw %%%s\n", tmp, slotName(v.Qualified))
		return tmp
	default:
		util.InternalError("codegen/qbe: cannot load operand %v", op)
		return ""
	}
}

// destName returns the QBE assignment target for a Temp destination
// (Name destinations are never produced directly by BinOp/UnOp/Call in
// this IR — only by MoveInstr, handled separately in genInstr).
func destName(op ir.Operand) string {
	t, ok := op.(ir.Temp)
	if !ok {
		util.InternalError("codegen/qbe: expected a Temp destination, got %v", op)
	}
	return fmt.Sprintf("%%t%d", t.ID)
}

func (b *qbeBackend) genInstr(instr ir.Instr) {
	switch in := instr.(type) {
	case ir.BinOpInstr:
		v1 := b.loadOperand(in.Src1)
		v2 := b.loadOperand(in.Src2)
		fmt.Fprintf(b.out, "\t%s =w %s %s, %s\n", destName(in.Dest), qbeBinOp(in.Op), v1, v2)

	case ir.UnOpInstr:
		v := b.loadOperand(in.Src)
		switch in.Op {
		case token.Minus:
			fmt.Fprintf(b.out, "\t%s =w sub 0, %s\n", destName(in.Dest), v)
		case token.Not:
			fmt.Fprintf(b.out, "\t%s =w ceqw %s, 0\n", destName(in.Dest), v)
		case token.Plus:
			fmt.Fprintf(b.out, "\t%s =w copy %s\n", destName(in.Dest), v)
		default:
			util.InternalError("codegen/qbe: unexpected unary operator %v", in.Op)
		}

	case ir.MoveInstr:
		v := b.loadOperand(in.Src)
		name, ok := in.Dest.(ir.Name)
		if !ok {
			util.InternalError("codegen/qbe: move destination %v is not a Name", in.Dest)
		}
		fmt.Fprintf(b.out, "\tstorew %s, %%%s\n", v, slotName(name.Qualified))

	case ir.LoadInstr, ir.StoreInstr:
		util.InternalError("codegen/qbe: memory-indirection IR is unimplemented")

	case ir.JumpInstr:
		fmt.Fprintf(b.out, "\tjmp @%s\n", in.Label)

	case ir.CJumpInstr:
		v := b.loadOperand(in.Cond)
		fmt.Fprintf(b.out, "\tjnz %s, @%s, @%s\n", v, in.LabelTrue, in.LabelFalse)

	case ir.CallInstr:
		b.genCall(in)

	case ir.ReturnInstr:
		if in.Value != nil {
			v := b.loadOperand(in.Value)
			fmt.Fprintf(b.out, "\tret %s\n", v)
		} else {
			b.out.WriteString("\tret\n")
		}

	default:
		util.InternalError("codegen/qbe: unexpected instruction %T", instr)
	}
}

func (b *qbeBackend) genCall(in ir.CallInstr) {
	var args []string
	for _, a := range in.Args {
		args = append(args, "w "+b.loadOperand(a))
	}
	if in.Dest != nil {
		fmt.Fprintf(b.out, "\t%s =w call $%s(%s)\n", destName(in.Dest), in.Name, strings.Join(args, ", "))
	} else {
		fmt.Fprintf(b.out, "\tcall $%s(%s)\n", in.Name, strings.Join(args, ", "))
	}
}

func qbeBinOp(op token.Type) string {
	switch op {
	case token.Plus:
		return "add"
	case token.Minus:
		return "sub"
	case token.Star:
		return "mul"
	case token.Slash:
		return "div"
	case token.Rem:
		return "rem"
	case token.EqEq:
		return "ceqw"
	case token.Neq:
		return "cnew"
	case token.Lt:
		return "csltw"
	case token.Lte:
		return "cslew"
	case token.Gt:
		return "csgtw"
	case token.Gte:
		return "csgew"
	case token.AndAnd:
		return "and"
	case token.OrOr:
		return "or"
	default:
		util.InternalError("codegen/qbe: unexpected binary operator %v", op)
		return ""
	}
}
