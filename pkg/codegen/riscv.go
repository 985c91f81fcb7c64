package codegen

import (
	"bytes"
	"fmt"

	"github.com/toyc-lang/toycc/pkg/config"
	"github.com/toyc-lang/toycc/pkg/ir"
	"github.com/toyc-lang/toycc/pkg/token"
	"github.com/toyc-lang/toycc/pkg/util"
)

// frameSize is the fixed activation-record size every function reserves on
// entry, regardless of how many slots it actually uses. Naive and
// wasteful, but it keeps slot-offset arithmetic (and the stack-argument
// convention below) simple and uniform across every function.
const frameSize = 1600

// argRegs names the eight integer argument registers the calling
// convention passes the first eight call arguments in.
var argRegs = [8]string{"a0", "a1", "a2", "a3", "a4", "a5", "a6", "a7"}

// stackArgOffset returns the frame-relative offset used for the i-th call
// argument (i >= 8, zero-indexed) once the register arguments are
// exhausted. The caller writes here relative to its own sp; the callee
// reads from the identical offset relative to its own fp. Those two
// registers hold the same address across a call instruction (call never
// touches sp, and a callee's prologue sets fp to its entry sp), so both
// sides must compute this offset with the same formula or they address
// different memory.
func stackArgOffset(i int) int { return -frameSize - 4*(i-8) }

// riscvBackend is the primary Backend: a one-pass emitter that walks each
// function's flat instruction list exactly once and assigns every named
// operand a stack slot the first time it's touched.
type riscvBackend struct{}

// NewRiscvBackend returns the primary ToyC-to-RISC-V-32 backend.
func NewRiscvBackend() Backend { return &riscvBackend{} }

// funcFrame tracks one function's slot assignment while it's being
// emitted: each distinct operand (Temp or Name) earns a 4-byte stack slot
// on first reference, at a fixed, ever-growing offset from fp.
type funcFrame struct {
	slots map[string]int // operand key -> byte offset from fp (negative)
	next  int             // next free offset, counting down from -12 (below the saved ra at -4 and fp at -8)
}

func newFuncFrame() *funcFrame {
	return &funcFrame{slots: make(map[string]int), next: -12}
}

func operandKey(op ir.Operand) string {
	switch v := op.(type) {
	case ir.Temp:
		return fmt.Sprintf("t%d", v.ID)
	case ir.Name:
		return "n:" + v.Qualified
	default:
		util.InternalError("codegen/riscv: operand %v has no stack slot", op)
		return ""
	}
}

// slot returns op's frame offset, assigning a fresh one on first touch.
func (f *funcFrame) slot(op ir.Operand) int {
	key := operandKey(op)
	if off, ok := f.slots[key]; ok {
		return off
	}
	off := f.next
	f.next -= 4
	f.slots[key] = off
	return off
}

func (b *riscvBackend) Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error) {
	var out bytes.Buffer
	fmt.Fprintln(&out, "\t.text")
	if fn := prog.FindFunc("main"); fn != nil {
		fmt.Fprintln(&out, "\t.global main")
	}
	for _, fn := range prog.Funcs {
		b.genFunc(&out, fn)
	}
	return &out, nil
}

func (b *riscvBackend) genFunc(out *bytes.Buffer, fn *ir.Func) {
	frame := newFuncFrame()

	fmt.Fprintf(out, "%s:\n", fn.Name)
	fmt.Fprintf(out, "\taddi sp, sp, -%d\n", frameSize)
	fmt.Fprintf(out, "\tsw ra, %d(sp)\n", frameSize-4)
	fmt.Fprintf(out, "\tsw fp, %d(sp)\n", frameSize-8)
	fmt.Fprintf(out, "\taddi fp, sp, %d\n", frameSize)

	// Spill incoming parameters to their slots: the first 8 arrive in
	// a0-a7, the rest were pushed by the caller below its own frame.
	for i, paramName := range fn.Params {
		off := frame.slot(ir.Name{Qualified: paramName})
		if i < 8 {
			fmt.Fprintf(out, "\tsw %s, %d(fp)\n", argRegs[i], off)
		} else {
			// The caller wrote argument i at stackArgOffset(i) relative
			// to its own sp, which is this function's entry fp.
			fmt.Fprintf(out, "\tlw t0, %d(fp)\n", stackArgOffset(i))
			fmt.Fprintf(out, "\tsw t0, %d(fp)\n", off)
		}
	}

	emittedReturn := false
	for _, instr := range fn.Instrs {
		if _, ok := instr.(ir.ReturnInstr); ok {
			emittedReturn = true
		}
		b.genInstr(out, frame, fn, instr)
	}
	if !emittedReturn {
		b.emitEpilogue(out, fn)
	}
}

// load materializes op into a scratch register and returns its name.
func (b *riscvBackend) load(out *bytes.Buffer, frame *funcFrame, op ir.Operand, reg string) string {
	switch v := op.(type) {
	case ir.Const:
		fmt.Fprintf(out, "\tli %s, %d\n", reg, v.Value)
	case ir.Temp, ir.Name:
		fmt.Fprintf(out, "\tlw %s, %d(fp)\n", reg, frame.slot(op))
	default:
		util.InternalError("codegen/riscv: cannot load operand %v", op)
	}
	return reg
}

func (b *riscvBackend) store(out *bytes.Buffer, frame *funcFrame, dest ir.Operand, reg string) {
	fmt.Fprintf(out, "\tsw %s, %d(fp)\n", reg, frame.slot(dest))
}

func (b *riscvBackend) genInstr(out *bytes.Buffer, frame *funcFrame, fn *ir.Func, instr ir.Instr) {
	switch in := instr.(type) {
	case ir.BinOpInstr:
		b.load(out, frame, in.Src1, "t0")
		b.load(out, frame, in.Src2, "t1")
		emitBinOp(out, in.Op)
		b.store(out, frame, in.Dest, "t0")

	case ir.UnOpInstr:
		b.load(out, frame, in.Src, "t0")
		emitUnOp(out, in.Op)
		b.store(out, frame, in.Dest, "t0")

	case ir.MoveInstr:
		b.load(out, frame, in.Src, "t0")
		b.store(out, frame, in.Dest, "t0")

	case ir.LoadInstr, ir.StoreInstr:
		util.InternalError("codegen/riscv: memory-indirection IR is unimplemented")

	case ir.LabelInstr:
		fmt.Fprintf(out, "%s:\n", in.Name)

	case ir.JumpInstr:
		fmt.Fprintf(out, "\tj %s\n", in.Label)

	case ir.CJumpInstr:
		b.load(out, frame, in.Cond, "t0")
		fmt.Fprintf(out, "\tbne t0, x0, %s\n", in.LabelTrue)
		fmt.Fprintf(out, "\tj %s\n", in.LabelFalse)

	case ir.CallInstr:
		b.genCall(out, frame, in)

	case ir.ReturnInstr:
		if in.Value != nil {
			b.load(out, frame, in.Value, "a0")
		}
		b.emitEpilogue(out, fn)

	default:
		util.InternalError("codegen/riscv: unexpected instruction %T", instr)
	}
}

func (b *riscvBackend) genCall(out *bytes.Buffer, frame *funcFrame, in ir.CallInstr) {
	// Register arguments first, left to right.
	n := len(in.Args)
	for i := 0; i < n && i < 8; i++ {
		b.load(out, frame, in.Args[i], argRegs[i])
	}
	// Stack arguments (the 9th and beyond) go just below this frame, at
	// the offsets the callee's prologue expects to find them at.
	for i := 8; i < n; i++ {
		b.load(out, frame, in.Args[i], "t0")
		fmt.Fprintf(out, "\tsw t0, %d(sp)\n", stackArgOffset(i))
	}
	fmt.Fprintf(out, "\tcall %s\n", in.Name)
	if in.Dest != nil {
		b.store(out, frame, in.Dest, "a0")
	}
}

// emitEpilogue tears down fn's frame and returns. Fallthrough off the end
// of a function declared to return int without a return statement leaves
// a0 undefined; the emitter does not synthesize a value, only the frame
// teardown.
func (b *riscvBackend) emitEpilogue(out *bytes.Buffer, fn *ir.Func) {
	fmt.Fprintf(out, "\tlw ra, %d(sp)\n", frameSize-4)
	fmt.Fprintf(out, "\tlw fp, %d(sp)\n", frameSize-8)
	fmt.Fprintf(out, "\taddi sp, sp, %d\n", frameSize)
	fmt.Fprintln(out, "\tret")
}

// emitBinOp computes t0 = t0 op t1.
func emitBinOp(out *bytes.Buffer, op token.Type) {
	switch op {
	case token.Plus:
		fmt.Fprintln(out, "\tadd t0, t0, t1")
	case token.Minus:
		fmt.Fprintln(out, "\tsub t0, t0, t1")
	case token.Star:
		fmt.Fprintln(out, "\tmul t0, t0, t1")
	case token.Slash:
		fmt.Fprintln(out, "\tdiv t0, t0, t1")
	case token.Rem:
		fmt.Fprintln(out, "\trem t0, t0, t1")
	case token.EqEq:
		fmt.Fprintln(out, "\tsub t0, t0, t1")
		fmt.Fprintln(out, "\tseqz t0, t0")
	case token.Neq:
		fmt.Fprintln(out, "\tsub t0, t0, t1")
		fmt.Fprintln(out, "\tsnez t0, t0")
	case token.Lt:
		fmt.Fprintln(out, "\tslt t0, t0, t1")
	case token.Gt:
		fmt.Fprintln(out, "\tsgt t0, t0, t1")
	case token.Lte:
		fmt.Fprintln(out, "\tsgt t0, t0, t1")
		fmt.Fprintln(out, "\txori t0, t0, 1")
	case token.Gte:
		fmt.Fprintln(out, "\tslt t0, t0, t1")
		fmt.Fprintln(out, "\txori t0, t0, 1")
	case token.AndAnd:
		fmt.Fprintln(out, "\tand t0, t0, t1")
	case token.OrOr:
		fmt.Fprintln(out, "\tor t0, t0, t1")
	default:
		util.InternalError("codegen/riscv: unexpected binary operator %v", op)
	}
}

// emitUnOp computes t0 = op t0.
func emitUnOp(out *bytes.Buffer, op token.Type) {
	switch op {
	case token.Minus:
		fmt.Fprintln(out, "\tneg t0, t0")
	case token.Not:
		fmt.Fprintln(out, "\tseqz t0, t0")
	case token.Plus:
		// unary plus is a no-op; t0 already holds the operand
	default:
		util.InternalError("codegen/riscv: unexpected unary operator %v", op)
	}
}
