package codegen_test

import (
	"testing"

	"github.com/toyc-lang/toycc/pkg/codegen"
	"github.com/toyc-lang/toycc/pkg/config"
	"github.com/toyc-lang/toycc/pkg/lexer"
	"github.com/toyc-lang/toycc/pkg/parser"
	"github.com/toyc-lang/toycc/pkg/sema"
	"github.com/toyc-lang/toycc/pkg/util"
)

func compileQBE(t *testing.T, src string) []byte {
	t.Helper()
	util.SetSource("<test>", src)
	lex := lexer.New(src)
	p := parser.New(lex)
	root := p.Parse()

	cfg := config.NewConfig()
	cfg.Backend = config.BackendQBE
	sema.New(cfg).Check(root)

	irProg := codegen.NewContext(cfg).GenerateIR(root)

	out, err := codegen.NewQBEBackend().Generate(irProg, cfg)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return out.Bytes()
}

func TestQBEBackendCompilesEmptyMain(t *testing.T) {
	asm := compileQBE(t, `int main() { return 0; }`)
	if len(asm) == 0 {
		t.Error("expected non-empty assembly output")
	}
}

// TestQBEBackendHandlesFallthroughLabels exercises the block-boundary
// fixup: the statements before the while loop fall straight into its start
// label without an explicit Jump, which QBE's SSA form requires.
func TestQBEBackendHandlesFallthroughLabels(t *testing.T) {
	asm := compileQBE(t, `
		int add(int a, int b) { return a + b; }
		int main() {
			int s = 0; int i = 0;
			while (i < 10) { s = add(s, i); i = i + 1; }
			return s;
		}`)
	if len(asm) == 0 {
		t.Error("expected non-empty assembly output")
	}
}

func TestQBEBackendHandlesShadowedNames(t *testing.T) {
	asm := compileQBE(t, `int main() { int x = 1; { int x = 2; } return x; }`)
	if len(asm) == 0 {
		t.Error("expected non-empty assembly output")
	}
}
