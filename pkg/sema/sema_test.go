package sema_test

import (
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/toyc-lang/toycc/pkg/ast"
	"github.com/toyc-lang/toycc/pkg/config"
	"github.com/toyc-lang/toycc/pkg/lexer"
	"github.com/toyc-lang/toycc/pkg/parser"
	"github.com/toyc-lang/toycc/pkg/sema"
	"github.com/toyc-lang/toycc/pkg/util"
)

func parseSource(t *testing.T, src string) *ast.Node {
	t.Helper()
	util.SetSource("<test>", src)
	lex := lexer.New(src)
	p := parser.New(lex)
	return p.Parse()
}

// TestCheckAcceptsValidPrograms exercises the Analyzer directly: Check must
// return (not exit the process) for every program here, so a panic or an
// unexpected os.Exit during the test run itself is the failure signal.
func TestCheckAcceptsValidPrograms(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"empty main", `int main() { return 0; }`},
		{"arithmetic", `int main() { int a = 3; int b = 4; return a*a + b*b; }`},
		{"shadowing", `int main() { int x = 1; { int x = 2; } return x; }`},
		{"calls and loops", `
			int add(int a, int b) { return a + b; }
			int main() {
				int s = 0; int i = 0;
				while (i < 10) { s = add(s, i); i = i + 1; }
				return s;
			}`},
		{"nine-argument call", `
			int f(int a, int b, int c, int d, int e, int g, int h, int i, int j) { return j; }
			int main() { return f(0,0,0,0,0,0,0,0,7); }`},
		{"void function with no return value", `
			void touch() { return; }
			int main() { touch(); return 0; }`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			root := parseSource(t, tc.src)
			a := sema.New(config.NewConfig())
			a.Check(root)
		})
	}
}

// TestSemanticRejections drives Check for each case in a re-exec'd
// subprocess, since util.Error terminates the process directly rather than
// returning an error value. This mirrors the standard library's own
// pattern for testing os.Exit-calling code (see os/exec's TestHelperProcess
// convention).
func TestSemanticRejections(t *testing.T) {
	cases := []struct {
		name     string
		src      string
		wantText string
	}{
		{
			name:     "void function cannot have a return value",
			src:      `void f() { return 1; } int main() { f(); return 0; }`,
			wantText: "void function cannot have a return value",
		},
		{
			name:     "assignment to undeclared variable",
			src:      `int main() { y = 0; return 0; }`,
			wantText: "assignment to undeclared variable 'y'",
		},
		{
			name:     "break outside of loop",
			src:      `int main() { break; return 0; }`,
			wantText: "'break' outside of loop",
		},
		{
			name:     "continue outside of loop",
			src:      `int main() { continue; return 0; }`,
			wantText: "'continue' outside of loop",
		},
		{
			name:     "missing main",
			src:      `int notMain() { return 0; }`,
			wantText: "missing 'main' function",
		},
		{
			name:     "main with non-int return type",
			src:      `void main() { return; }`,
			wantText: "'main' must have signature",
		},
		{
			name:     "redeclaration in the same scope",
			src:      `int main() { int x = 1; int x = 2; return 0; }`,
			wantText: "redefinition of variable 'x'",
		},
		{
			name:     "void variable declaration",
			src:      `int main() { void v; return 0; }`,
			wantText: "cannot have type 'void'",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := exec.Command(os.Args[0], "-test.run=TestHelperProcessCheck")
			cmd.Env = append(os.Environ(),
				"GO_WANT_HELPER_PROCESS=1",
				"TOYC_TEST_SOURCE="+tc.src,
			)
			out, err := cmd.CombinedOutput()

			exitErr, isExit := err.(*exec.ExitError)
			if !isExit || exitErr.ExitCode() != 1 {
				t.Fatalf("expected exit status 1, got err=%v output=%s", err, out)
			}
			if !strings.Contains(string(out), tc.wantText) {
				t.Errorf("expected output to contain %q, got:\n%s", tc.wantText, out)
			}
		})
	}
}

// TestHelperProcessCheck is not a real test; it is re-exec'd by
// TestSemanticRejections as a subprocess so util.Error's os.Exit(1) doesn't
// terminate the real test binary.
func TestHelperProcessCheck(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	src := os.Getenv("TOYC_TEST_SOURCE")
	root := parseSource(t, src)
	a := sema.New(config.NewConfig())
	a.Check(root)
}
