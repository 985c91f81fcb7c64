// Command toycc compiles a single ToyC source file to target assembly.
package main

import (
	"io"
	"os"

	"github.com/toyc-lang/toycc/pkg/ast"
	"github.com/toyc-lang/toycc/pkg/cli"
	"github.com/toyc-lang/toycc/pkg/codegen"
	"github.com/toyc-lang/toycc/pkg/config"
	"github.com/toyc-lang/toycc/pkg/ir"
	"github.com/toyc-lang/toycc/pkg/lexer"
	"github.com/toyc-lang/toycc/pkg/parser"
	"github.com/toyc-lang/toycc/pkg/sema"
	"github.com/toyc-lang/toycc/pkg/token"
	"github.com/toyc-lang/toycc/pkg/util"
)

func main() {
	app := cli.NewApp("toycc")
	app.Synopsis = "[options] [input.tc]"
	app.Description = "A whole-program compiler for ToyC, a small C subset, targeting RISC-V assembly."
	app.Authors = []string{"toyc-lang"}
	app.Repository = "<https://github.com/toyc-lang/toycc>"
	app.Since = 2026

	var (
		outFile string
		target  string
		dumpAST bool
		dumpIR  bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "-", "Place the output into <file> ('-' means stdout).", "file")
	fs.String(&target, "target", "t", "riscv32", "Select the backend: riscv32 or qbe.", "target")
	fs.Bool(&dumpAST, "dump-ast", "", false, "Print the parsed AST and exit.")
	fs.Bool(&dumpIR, "dump-ir", "", false, "Print the generated IR and exit.")

	cfg := config.NewConfig()
	warningFlags, featureFlags := config.SetupFlagGroups(fs)

	app.Action = func(inputFiles []string) error {
		for i, w := range util.AllWarnings() {
			if *warningFlags[i].Enabled {
				util.SetWarningEnabled(w, true)
			}
			if *warningFlags[i].Disabled {
				util.SetWarningEnabled(w, false)
			}
		}
		for i, feat := range config.AllFeatures() {
			if *featureFlags[i].Enabled {
				cfg.SetFeature(feat, true)
			}
			if *featureFlags[i].Disabled {
				cfg.SetFeature(feat, false)
			}
		}

		backend, err := config.ParseBackend(target)
		if err != nil {
			util.Error(token.Token{}, "%v", err)
		}
		cfg.Backend = backend

		name, src := readInput(inputFiles)
		util.SetSource(name, src)

		lex := lexer.New(src)
		p := parser.New(lex)
		root := p.Parse()

		if dumpAST {
			ast.Dump(os.Stdout, root)
			return nil
		}

		analyzer := sema.New(cfg)
		analyzer.Check(root)

		gen := codegen.NewContext(cfg)
		irProg := gen.GenerateIR(root)

		if dumpIR {
			ir.Dump(os.Stdout, irProg)
			return nil
		}

		out, err := codegen.SelectBackend(cfg.Backend).Generate(irProg, cfg)
		if err != nil {
			util.InternalError("backend failed: %v", err)
		}

		return writeOutput(outFile, out.Bytes())
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// readInput reads the single positional argument as a file path, or stdin
// if none is given.
func readInput(args []string) (name, src string) {
	if len(args) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			util.InternalError("failed to read stdin: %v", err)
		}
		return "<stdin>", string(data)
	}
	if len(args) > 1 {
		util.Error(token.Token{}, "expected at most one input file, found %d", len(args))
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		util.Error(token.Token{}, "could not read file '%s': %v", args[0], err)
	}
	return args[0], string(data)
}

func writeOutput(path string, data []byte) error {
	if path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
