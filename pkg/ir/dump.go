package ir

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes a plain-text rendering of prog to w, one function at a time,
// for the toycc -dump-ir flag.
func Dump(w io.Writer, prog *Program) {
	for _, fn := range prog.Funcs {
		dumpFunc(w, fn)
	}
}

func dumpFunc(w io.Writer, fn *Func) {
	retType := "int"
	if fn.ReturnType == TypeVoid {
		retType = "void"
	}
	fmt.Fprintf(w, "func %s %s(%s):\n", retType, fn.Name, strings.Join(fn.Params, ", "))
	for _, instr := range fn.Instrs {
		dumpInstr(w, instr)
	}
}

func dumpInstr(w io.Writer, instr Instr) {
	switch in := instr.(type) {
	case BinOpInstr:
		fmt.Fprintf(w, "    %s = %s %s %s\n", in.Dest, in.Src1, in.Op, in.Src2)
	case UnOpInstr:
		fmt.Fprintf(w, "    %s = %s %s\n", in.Dest, in.Op, in.Src)
	case MoveInstr:
		fmt.Fprintf(w, "    %s = %s\n", in.Dest, in.Src)
	case LoadInstr:
		fmt.Fprintf(w, "    %s = load %s\n", in.Dest, in.SrcAddr)
	case StoreInstr:
		fmt.Fprintf(w, "    store %s, %s\n", in.DestAddr, in.Src)
	case LabelInstr:
		fmt.Fprintf(w, "%s:\n", in.Name)
	case JumpInstr:
		fmt.Fprintf(w, "    jump %s\n", in.Label)
	case CJumpInstr:
		fmt.Fprintf(w, "    cjump %s, %s, %s\n", in.Cond, in.LabelTrue, in.LabelFalse)
	case CallInstr:
		var args []string
		for _, a := range in.Args {
			args = append(args, a.String())
		}
		if in.Dest != nil {
			fmt.Fprintf(w, "    %s = call %s(%s)\n", in.Dest, in.Name, strings.Join(args, ", "))
		} else {
			fmt.Fprintf(w, "    call %s(%s)\n", in.Name, strings.Join(args, ", "))
		}
	case ReturnInstr:
		if in.Value != nil {
			fmt.Fprintf(w, "    return %s\n", in.Value)
		} else {
			fmt.Fprintf(w, "    return\n")
		}
	default:
		fmt.Fprintf(w, "    <unknown instr %T>\n", instr)
	}
}
