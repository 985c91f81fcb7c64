package codegen_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/toyc-lang/toycc/pkg/codegen"
	"github.com/toyc-lang/toycc/pkg/config"
	"github.com/toyc-lang/toycc/pkg/ir"
	"github.com/toyc-lang/toycc/pkg/lexer"
	"github.com/toyc-lang/toycc/pkg/parser"
	"github.com/toyc-lang/toycc/pkg/sema"
	"github.com/toyc-lang/toycc/pkg/token"
	"github.com/toyc-lang/toycc/pkg/util"
)

func generate(t *testing.T, src string) *ir.Program {
	t.Helper()
	util.SetSource("<test>", src)
	lex := lexer.New(src)
	p := parser.New(lex)
	root := p.Parse()

	cfg := config.NewConfig()
	sema.New(cfg).Check(root)

	return codegen.NewContext(cfg).GenerateIR(root)
}

func TestArithmeticLowering(t *testing.T) {
	prog := generate(t, `int main() { int a = 3; int b = 4; return a*a + b*b; }`)
	main := prog.FindFunc("main")
	if main == nil {
		t.Fatal("no main function in generated IR")
	}

	want := []ir.Instr{
		ir.MoveInstr{Dest: ir.Name{Qualified: "a@1"}, Src: ir.Const{Value: 3}},
		ir.MoveInstr{Dest: ir.Name{Qualified: "b@1"}, Src: ir.Const{Value: 4}},
		ir.BinOpInstr{Dest: ir.Temp{ID: 0}, Op: token.Star, Src1: ir.Name{Qualified: "a@1"}, Src2: ir.Name{Qualified: "a@1"}},
		ir.BinOpInstr{Dest: ir.Temp{ID: 1}, Op: token.Star, Src1: ir.Name{Qualified: "b@1"}, Src2: ir.Name{Qualified: "b@1"}},
		ir.BinOpInstr{Dest: ir.Temp{ID: 2}, Op: token.Plus, Src1: ir.Temp{ID: 0}, Src2: ir.Temp{ID: 1}},
		ir.ReturnInstr{Value: ir.Temp{ID: 2}},
	}
	if diff := cmp.Diff(want, main.Instrs); diff != "" {
		t.Errorf("unexpected IR (-want +got):\n%s", diff)
	}
}

func TestShadowingProducesDistinctQualifiedNames(t *testing.T) {
	prog := generate(t, `int main() { int x = 1; { int x = 2; } return x; }`)
	main := prog.FindFunc("main")

	want := []ir.Instr{
		ir.MoveInstr{Dest: ir.Name{Qualified: "x@1"}, Src: ir.Const{Value: 1}},
		ir.MoveInstr{Dest: ir.Name{Qualified: "x@2"}, Src: ir.Const{Value: 2}},
		ir.ReturnInstr{Value: ir.Name{Qualified: "x@1"}},
	}
	if diff := cmp.Diff(want, main.Instrs); diff != "" {
		t.Errorf("unexpected IR (-want +got):\n%s", diff)
	}
}

func TestWhileLoopWithCallHasOneLabelTripleAndOneCall(t *testing.T) {
	prog := generate(t, `
		int add(int a, int b) { return a + b; }
		int main() {
			int s = 0; int i = 0;
			while (i < 10) { s = add(s, i); i = i + 1; }
			return s;
		}`)
	main := prog.FindFunc("main")
	if main == nil {
		t.Fatal("no main function in generated IR")
	}

	var labels, jumps, cjumps, calls int
	for _, instr := range main.Instrs {
		switch in := instr.(type) {
		case ir.LabelInstr:
			labels++
		case ir.JumpInstr:
			jumps++
		case ir.CJumpInstr:
			cjumps++
		case ir.CallInstr:
			calls++
			if in.Name != "add" {
				t.Errorf("unexpected call target %q", in.Name)
			}
		}
	}
	if labels != 3 {
		t.Errorf("expected 3 labels (start, body, end), got %d", labels)
	}
	if jumps != 1 {
		t.Errorf("expected exactly 1 unconditional jump (loop back-edge), got %d", jumps)
	}
	if cjumps != 1 {
		t.Errorf("expected exactly 1 conditional jump (loop test), got %d", cjumps)
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 call (the increment is a BinOp, not a call), got %d", calls)
	}
}

func TestEveryTempIsSingleAssignment(t *testing.T) {
	prog := generate(t, `
		int f(int a, int b, int c, int d, int e, int g, int h, int i, int j) { return j; }
		int main() { return f(0,0,0,0,0,0,0,0,7); }`)

	for _, fn := range prog.Funcs {
		defs := make(map[ir.Temp]int)
		for _, instr := range fn.Instrs {
			if dest := destOf(instr); dest != nil {
				if temp, ok := dest.(ir.Temp); ok {
					defs[temp]++
				}
			}
		}
		for temp, count := range defs {
			if count != 1 {
				t.Errorf("function %s: temp %v defined %d times, want exactly 1", fn.Name, temp, count)
			}
		}
	}
}

func destOf(instr ir.Instr) ir.Operand {
	switch in := instr.(type) {
	case ir.BinOpInstr:
		return in.Dest
	case ir.UnOpInstr:
		return in.Dest
	case ir.CallInstr:
		return in.Dest
	default:
		return nil
	}
}

func TestLabelCounterIsUniquePerCompilationUnitNotPerFunction(t *testing.T) {
	prog := generate(t, `
		int f() { if (1) { return 1; } return 0; }
		int g() { if (1) { return 1; } return 0; }
		int main() { f(); g(); return 0; }`)

	seen := make(map[string]string)
	for _, fn := range prog.Funcs {
		for _, instr := range fn.Instrs {
			if lbl, ok := instr.(ir.LabelInstr); ok {
				if owner, dup := seen[lbl.Name]; dup {
					t.Errorf("label %q emitted in both %s and %s", lbl.Name, owner, fn.Name)
				}
				seen[lbl.Name] = fn.Name
			}
		}
	}
}
