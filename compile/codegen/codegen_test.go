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
package codegen

import (
	"fmt"
	"testing"

	"vellum/ast"
	"vellum/isa"
)

// genUp runs src through the full front end and returns a *Generator whose
// Generate has already walked the program.
func genUp(t *testing.T, src string) *Generator {
	t.Helper()
	graph := ast.NewTypeGraph()
	ctx := ast.NewContext(graph)
	lx := ast.NewLexer(ast.NewSourceStream("test.vlm", []byte(src)))
	p := ast.NewParser(lx, ctx.Ops, ctx.Sink)
	prog, ok := p.ParseProgram()
	if !ok {
		t.Fatalf("parse failed: %+v", ctx.Sink.Messages)
	}
	top := ast.NewRegistry(ast.NoSymbol)
	ast.CollateRegistry(prog, top, ctx)
	if !ast.Process(prog, ctx) {
		t.Fatalf("sema failed: %+v", ctx.Sink.Messages)
	}
	gen := NewGenerator(ctx.Graph, ctx.Ops, ctx.Table)
	gen.Generate(prog)
	return gen
}

func findBlock(p *Program, name string) *BasicBlock {
	for _, b := range p.Blocks {
		if b.Name == name {
			return b
		}
	}
	return nil
}

func instsOf(b *BasicBlock) []Inst {
	var out []Inst
	for _, l := range b.Lines {
		if inst, ok := l.(Inst); ok {
			out = append(out, inst)
		}
	}
	return out
}

func TestGenFuncEmitsPrologueAndAdd(t *testing.T) {
	gen := genUp(t, `
		func add(a: i32, b: i32) -> i32 {
			return a + b;
		}
	`)
	b := findBlock(gen.Prog, "add")
	if b == nil {
		t.Fatal("expected a block named 'add'")
	}
	insts := instsOf(b)
	if len(insts) == 0 {
		t.Fatal("expected at least one instruction")
	}
	if insts[0].Op != isa.OpStore {
		t.Errorf("expected the first instruction to save fp, got %s", insts[0].Op)
	}

	var sawAdd, sawRet bool
	for _, in := range insts {
		if in.Op == isa.OpAdd && in.Datatype == isa.DtS32 {
			sawAdd = true
		}
		if in.Op == isa.OpJal && in.Cmp == isa.CmpNa && in.Operand.Kind == OperandReg && in.Operand.Reg == uint8(isa.RegRpc) {
			sawRet = true
		}
	}
	if !sawAdd {
		t.Error("expected an add.s32 instruction for 'a + b'")
	}
	if !sawRet {
		t.Error("expected a ret (jal rpc) in the epilogue")
	}
}

func TestGenIfEmitsCompareAndBranch(t *testing.T) {
	gen := genUp(t, `
		func f(a: i32, b: i32) -> i32 {
			if a < b {
				return a;
			}
			return b;
		}
	`)
	b := findBlock(gen.Prog, "f")
	insts := instsOf(b)
	var sawCompare, sawBranch bool
	for _, in := range insts {
		if in.Op == isa.OpCompare {
			sawCompare = true
		}
		if in.Op == isa.OpJal && in.Cmp == isa.CmpGe {
			sawBranch = true // inverted "<" to skip the then-block
		}
	}
	if !sawCompare {
		t.Error("expected a compare instruction lowering 'a < b'")
	}
	if !sawBranch {
		t.Error("expected the branch to use the inverted predicate (>=) to skip the then-block")
	}
}

func TestGenCastEmitsConvert(t *testing.T) {
	gen := genUp(t, `
		func f() -> f32 {
			let x: i32 = 3;
			return (f32) x;
		}
	`)
	b := findBlock(gen.Prog, "f")
	insts := instsOf(b)
	var sawConvert bool
	for _, in := range insts {
		if in.Op == isa.OpConvert && in.Datatype == isa.DtS32 && in.DatatypeTo == isa.DtFlt {
			sawConvert = true
		}
	}
	if !sawConvert {
		t.Error("expected a convert.s32->flt for the explicit cast")
	}
}

func TestGenCallLowersArgsAndJal(t *testing.T) {
	gen := genUp(t, `
		func add(a: i32, b: i32) -> i32 {
			return a + b;
		}
		func main() -> i32 {
			return add(1, 2);
		}
	`)
	b := findBlock(gen.Prog, "main")
	insts := instsOf(b)
	var sawCall bool
	for _, in := range insts {
		if in.Op == isa.OpJal && in.Operand.Kind == OperandLabel && in.Operand.Label == "add" {
			sawCall = true
		}
	}
	if !sawCall {
		t.Error("expected a jal to the 'add' label")
	}
}

// TestRegAllocatorSpillsUnderPressure drives more live locals than there are
// general registers, forcing the LRU allocator to spill an occupied
// register's variable to the stack frame and later reload it.
func TestRegAllocatorSpillsUnderPressure(t *testing.T) {
	const n = generalRegCount + 4
	var decls, sum string
	for i := 1; i <= n; i++ {
		decls += fmt.Sprintf("let x%d: i32 = %d;\n", i, i)
		if i > 1 {
			sum += " + "
		}
		sum += fmt.Sprintf("x%d", i)
	}
	src := "func f() -> i32 {\n" + decls + "return " + sum + ";\n}\n"

	gen := genUp(t, src)
	if gen.alloc.FrameSize() == 0 {
		t.Fatal("expected at least one spill slot once live locals exceeded the register pool")
	}

	b := findBlock(gen.Prog, "f")
	var sawSpill, sawReload bool
	for _, in := range instsOf(b) {
		if in.Op == isa.OpStore && in.Comment == "spill" {
			sawSpill = true
		}
		if in.Op == isa.OpLoad && in.Comment == "reload" {
			sawReload = true
		}
	}
	if !sawSpill {
		t.Error("expected a spill store once the register pool was exhausted")
	}
	if !sawReload {
		t.Error("expected a reload once a spilled variable was referenced again")
	}
}
