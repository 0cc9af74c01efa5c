// Copyright (c) 2024 The Falcon Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package compile drives the full pipeline: lex, parse, the two semantic
// passes, lint, code generation, and binary emission.
package compile

import (
	"fmt"
	"os"

	"vellum/ast"
	"vellum/compile/codegen"
)

const DebugPrintAst = false
const DebugPrintTypedDiagnostics = true

// Result is what a successful compilation produces: the linearized IR
// (useful for -S-style inspection) alongside the final binary image.
type Result struct {
	Program *codegen.Program
	Image   []byte
}

// CompileFile reads path, runs it through every stage, and either returns
// a Result or the accumulated diagnostics. It never calls an external
// toolchain — the binary image is this toolchain's own format (§4.9), not
// a native object file.
func CompileFile(path string) (*Result, *ast.Sink, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("compile: %w", err)
	}
	return CompileSource(path, data)
}

func CompileSource(path string, data []byte) (*Result, *ast.Sink, error) {
	graph := ast.NewTypeGraph()
	ctx := ast.NewContext(graph)

	stream := ast.NewSourceStream(path, data)
	lexer := ast.NewLexer(stream)
	parser := ast.NewParser(lexer, ctx.Ops, ctx.Sink)

	prog, ok := parser.ParseProgram()
	if !ok {
		return nil, ctx.Sink, fmt.Errorf("compile: parse failed")
	}
	if DebugPrintAst {
		fmt.Printf("== AST(%s) ==\n%s\n", path, prog.String())
	}

	topRegistry := ast.NewRegistry(ast.NoSymbol)
	ast.CollateRegistry(prog, topRegistry, ctx)
	if !ast.Process(prog, ctx) {
		return nil, ctx.Sink, fmt.Errorf("compile: semantic analysis failed")
	}

	ast.LintProgram(prog, ctx.Sink)
	if DebugPrintTypedDiagnostics {
		for _, m := range ctx.Sink.Messages {
			fmt.Fprint(os.Stderr, m.Format())
		}
	}
	if ctx.Sink.HasErrors() {
		return nil, ctx.Sink, fmt.Errorf("compile: aborted with errors")
	}

	gen := codegen.NewGenerator(ctx.Graph, ctx.Ops, ctx.Table)
	gen.Generate(prog)

	emitter := codegen.NewEmitter(gen.Prog)
	image, err := emitter.Emit()
	if err != nil {
		return nil, ctx.Sink, err
	}

	return &Result{Program: gen.Prog, Image: image}, ctx.Sink, nil
}
