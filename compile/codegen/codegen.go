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

// Package codegen lowers a type-checked AST into the assembly IR (§4.8)
// and, via Emit, into a loadable binary image (§4.9).
package codegen

import (
	"fmt"

	"vellum/ast"
	"vellum/isa"
)

// Generator drives C10: it owns the IR program, the process-wide type
// graph/operator table, and a label counter for synthesizing unique block
// names. One Generator compiles an entire *ast.Program; each function gets
// its own *Allocator, created fresh on entry.
type Generator struct {
	Prog  *Program
	graph *ast.TypeGraph
	ops   *ast.OperatorTable
	table *ast.SymbolTable

	alloc    *Allocator
	labelSeq int
}

func NewGenerator(graph *ast.TypeGraph, ops *ast.OperatorTable, table *ast.SymbolTable) *Generator {
	return &Generator{Prog: NewProgram(), graph: graph, ops: ops, table: table}
}

func (g *Generator) newLabel(prefix string) string {
	g.labelSeq++
	return fmt.Sprintf("%s_%d", prefix, g.labelSeq)
}

// datatypeOf maps a TypeId to the isa.Datatype tag used by compare,
// arithmetic, and convert instructions; the zero value (DtU32) is returned
// for types that never carry a datatype tag (bool, unit, functions) —
// callers never consult it in those cases.
func (g *Generator) datatypeOf(id ast.TypeId) isa.Datatype {
	t := g.graph.Get(id)
	if t == nil {
		return isa.DtU32
	}
	switch t.Kind {
	case ast.KindFloat:
		if t.Width == 64 {
			return isa.DtDbl
		}
		return isa.DtFlt
	case ast.KindInt:
		switch {
		case t.Signed && t.Width > 32:
			return isa.DtS64
		case t.Signed:
			return isa.DtS32
		case !t.Signed && t.Width > 32:
			return isa.DtU64
		default:
			return isa.DtU32
		}
	default:
		return isa.DtU32
	}
}

// Generate walks the whole program, emitting one block per function body.
// Namespaces add no block structure and no name prefix: a function inside
// one is labelled by its bare name.
func (g *Generator) Generate(prog *ast.Program) {
	g.Prog.EntryLabel = "main"
	for _, d := range prog.Decls {
		g.genTopLevel(d)
	}
}

func (g *Generator) genTopLevel(n ast.Node) {
	switch node := n.(type) {
	case *ast.NamespaceDecl:
		for _, d := range node.Body {
			g.genTopLevel(d)
		}
	case *ast.FuncDecl:
		g.genFunc(node)
	}
}

func funcLabel(f *ast.FuncDecl) string {
	if f.IsOperator {
		return "operator_" + mangleOperator(f.OperatorLex)
	}
	return f.Name
}

func mangleOperator(lex string) string {
	names := map[string]string{
		"+": "add", "-": "sub", "*": "mul", "/": "div", "%": "mod",
		"==": "eq", "!=": "ne", "<": "lt", "<=": "le", ">": "gt", ">=": "ge",
		"&&": "and", "||": "or", "!": "not", "~": "bnot",
	}
	if n, ok := names[lex]; ok {
		return n
	}
	return "op"
}

// genFunc emits one function's prologue, body, and epilogue. Forward
// declarations (Body == nil) emit nothing — there is no code to generate.
func (g *Generator) genFunc(f *ast.FuncDecl) {
	if f.Body == nil {
		return
	}
	entry := g.Prog.NewBlock(funcLabel(f))
	g.alloc = NewAllocator(g.Prog, g.table)

	// Prologue: save fp, open the new frame. The frame-size decrement of sp
	// is patched in after the body is generated, once spill count is known
	// (mirrors the teacher's two-pass "patch immediate after the fact").
	g.Prog.Emit(Inst{Op: isa.OpStore, RegSrc: uint8(isa.RegFp), Operand: RegIndirectOperand(uint8(isa.RegSp), 0), Comment: "save fp"})
	g.Prog.Emit(Inst{Op: isa.OpAdd, Datatype: isa.DtU64, RegDst: uint8(isa.RegFp), RegSrc: uint8(isa.RegSp), Operand: ImmOperand(0), Comment: "fp := sp"})
	frameInst := Inst{Op: isa.OpSub, Datatype: isa.DtU64, RegDst: uint8(isa.RegSp), RegSrc: uint8(isa.RegSp), Operand: ImmOperand(0), Comment: "reserve frame"}
	frameIdx := len(entry.Lines)
	g.Prog.Emit(frameInst)

	g.table.Insert(f.Registry)
	g.table.PushFunction(f)

	for i, p := range f.Params {
		reg := uint8(RegGeneralBase + i)
		g.alloc.BindParam(p.Symbol, reg)
	}

	for _, stmt := range f.Body {
		g.genStmt(stmt)
	}

	g.table.PopFunction()
	g.table.Pop()

	// Implicit ret for a unit-returning function whose body falls off the
	// end without an explicit tail return.
	if f.RetType == g.graph.Unit && !f.AlwaysReturns() {
		g.emitEpilogue()
	}

	// Patch the frame-size reservation now that every spill slot is known.
	frameInst.Operand = ImmOperand(uint32(g.alloc.FrameSize()))
	entry.Lines[frameIdx] = frameInst
}

func (g *Generator) emitEpilogue() {
	g.Prog.Emit(Inst{Op: isa.OpLoad, RegDst: uint8(isa.RegSp), Operand: RegOperand(uint8(isa.RegFp)), Comment: "restore sp"})
	g.Prog.Emit(Inst{Op: isa.OpLoad, RegDst: uint8(isa.RegFp), Operand: RegIndirectOperand(uint8(isa.RegSp), 0), Comment: "restore fp"})
	g.Prog.Emit(Inst{Op: isa.OpJal, Cmp: isa.CmpNa, RegDst: uint8(isa.RegRpc), Operand: RegOperand(uint8(isa.RegRpc)), Comment: "ret"})
}

func (g *Generator) genStmt(n ast.Node) {
	switch node := n.(type) {
	case *ast.VarDecl:
		for i, sym := range node.Symbols {
			if i < len(node.Init) && node.Init[i] != nil {
				ref := g.genExpr(node.Init[i])
				g.alloc.BindParam(sym, ref.Reg)
			}
		}
	case *ast.ReturnStmt:
		if node.Expr != nil {
			ref := g.genExpr(node.Expr)
			g.Prog.Emit(Inst{Op: isa.OpLoad, RegDst: uint8(isa.RegRet), Operand: RegOperand(ref.Reg), Comment: "return value"})
		}
		g.emitEpilogue()
	case *ast.IfStmt:
		g.genIf(node)
	case *ast.ExprStmt:
		g.genExpr(node.Expr)
	}
}

// genIf lowers `if cond { then } [else { else }]` via compare + predicated
// jal, per §4.8's conditional-lowering note.
func (g *Generator) genIf(node *ast.IfStmt) {
	elseLabel := g.newLabel("else")
	endLabel := g.newLabel("endif")

	g.genCondBranch(node.Cond, elseLabel, true)

	for _, s := range node.Then {
		g.genStmt(s)
	}
	if node.Else != nil {
		g.Prog.Emit(Inst{Op: isa.OpJal, Cmp: isa.CmpNa, Operand: LabelOperand(endLabel), Comment: "skip else"})
	}

	elseBlock := g.Prog.NewBlock(elseLabel)
	g.Prog.Emit(LabelDef{Name: elseLabel})
	_ = elseBlock
	if node.Else != nil {
		for _, s := range node.Else {
			g.genStmt(s)
		}
	}

	g.Prog.NewBlock(endLabel)
	g.Prog.Emit(LabelDef{Name: endLabel})
}

// genCondBranch evaluates cond and emits a jump to target when invert is
// true and cond is false (the "skip the then-block" shape an if uses).
func (g *Generator) genCondBranch(cond ast.Node, target string, invert bool) {
	if bin, ok := cond.(*ast.BinaryExpr); ok && isCompareOp(bin.Op) && bin.UserOp == nil {
		left := g.genExpr(bin.Left)
		right := g.genExpr(bin.Right)
		dt := g.datatypeOf(exprTypeOf(bin.Left))
		g.Prog.Emit(Inst{Op: isa.OpCompare, Datatype: dt, RegDst: left.Reg, Operand: RegOperand(right.Reg), Comment: "cmp " + bin.Op})
		cmp := compareCmp(bin.Op)
		if invert {
			cmp = invertCmp(cmp)
		}
		g.Prog.Emit(Inst{Op: isa.OpJal, Cmp: cmp, Operand: LabelOperand(target), Comment: "branch"})
		return
	}
	ref := g.genExpr(cond)
	g.Prog.Emit(Inst{Op: isa.OpCompare, Datatype: isa.DtU32, RegDst: ref.Reg, Operand: ImmOperand(0), Comment: "cmp bool"})
	// The zero flag tracks compare's right-hand operand (the immediate 0
	// here), so the eq/ne bits are what tell a false value from a true one.
	cmp := isa.CmpNe
	if invert {
		cmp = isa.CmpEq
	}
	g.Prog.Emit(Inst{Op: isa.OpJal, Cmp: cmp, Operand: LabelOperand(target), Comment: "branch"})
}

func isCompareOp(op string) bool {
	switch op {
	case "==", "!=", "<", "<=", ">", ">=":
		return true
	}
	return false
}

func compareCmp(op string) isa.Cmp {
	switch op {
	case "==":
		return isa.CmpEq
	case "!=":
		return isa.CmpNe
	case "<":
		return isa.CmpLt
	case "<=":
		return isa.CmpLe
	case ">":
		return isa.CmpGt
	case ">=":
		return isa.CmpGe
	default:
		return isa.CmpNa
	}
}

func invertCmp(c isa.Cmp) isa.Cmp {
	switch c {
	case isa.CmpEq:
		return isa.CmpNe
	case isa.CmpNe:
		return isa.CmpEq
	case isa.CmpLt:
		return isa.CmpGe
	case isa.CmpLe:
		return isa.CmpGt
	case isa.CmpGt:
		return isa.CmpLe
	case isa.CmpGe:
		return isa.CmpLt
	case isa.CmpZ:
		return isa.CmpNz
	case isa.CmpNz:
		return isa.CmpZ
	default:
		return c
	}
}

// genExpr lowers an expression into however many instructions it needs,
// returning the register its value ends up resident in.
func (g *Generator) genExpr(n ast.Node) Ref {
	switch node := n.(type) {
	case *ast.IntLit:
		return g.alloc.FindLiteral(uint32(node.Bits), g.datatypeOf(node.Type))
	case *ast.FloatLit:
		return g.alloc.FindLiteral(uint32(node.Bits), g.datatypeOf(node.Type))
	case *ast.BoolLit:
		v := uint32(0)
		if node.Value {
			v = 1
		}
		return g.alloc.FindLiteral(v, isa.DtU32)
	case *ast.SymbolRefExpr:
		return g.alloc.FindVariable(node.Resolved)
	case *ast.UnaryExpr:
		return g.genUnary(node)
	case *ast.BinaryExpr:
		return g.genBinary(node)
	case *ast.AssignExpr:
		return g.genAssign(node)
	case *ast.CastExpr:
		return g.genCast(node)
	case *ast.CallExpr:
		return g.genCall(node)
	case *ast.DotExpr:
		// Namespace member access resolves to a plain symbol reference;
		// the namespace prefix itself carries no runtime value.
		return g.alloc.FindVariable(node.Resolved)
	default:
		return g.alloc.FindLiteral(0, isa.DtU32)
	}
}

func (g *Generator) genUnary(node *ast.UnaryExpr) Ref {
	operand := g.genExpr(node.Operand)
	if node.UserOp != nil {
		return g.genUserCall(*node.UserOp, []Ref{operand})
	}
	switch node.Op {
	case "-":
		zero := g.alloc.FindLiteral(0, g.datatypeOf(node.Type))
		g.Prog.Emit(Inst{Op: isa.OpSub, Datatype: g.datatypeOf(node.Type), RegDst: zero.Reg, RegSrc: zero.Reg, Operand: RegOperand(operand.Reg), Comment: "negate"})
		return zero
	case "!", "~":
		g.Prog.Emit(Inst{Op: isa.OpNot, RegDst: operand.Reg, RegSrc: operand.Reg, Comment: "not"})
		return operand
	default:
		return operand
	}
}

func (g *Generator) genBinary(node *ast.BinaryExpr) Ref {
	left := g.genExpr(node.Left)
	right := g.genExpr(node.Right)
	if node.UserOp != nil {
		return g.genUserCall(*node.UserOp, []Ref{left, right})
	}
	dt := g.datatypeOf(exprTypeOf(node.Left))
	switch node.Op {
	case "+":
		g.Prog.Emit(Inst{Op: isa.OpAdd, Datatype: dt, RegDst: left.Reg, RegSrc: left.Reg, Operand: RegOperand(right.Reg)})
	case "-":
		g.Prog.Emit(Inst{Op: isa.OpSub, Datatype: dt, RegDst: left.Reg, RegSrc: left.Reg, Operand: RegOperand(right.Reg)})
	case "*":
		g.Prog.Emit(Inst{Op: isa.OpMul, Datatype: dt, RegDst: left.Reg, RegSrc: left.Reg, Operand: RegOperand(right.Reg)})
	case "/":
		g.Prog.Emit(Inst{Op: isa.OpDiv, Datatype: dt, RegDst: left.Reg, RegSrc: left.Reg, Operand: RegOperand(right.Reg)})
	case "%":
		g.Prog.Emit(Inst{Op: isa.OpMod, RegDst: left.Reg, RegSrc: left.Reg, Operand: RegOperand(right.Reg)})
	case "&&", "||":
		return g.genShortCircuit(node, left, right)
	case "==", "!=", "<", "<=", ">", ">=":
		g.Prog.Emit(Inst{Op: isa.OpCompare, Datatype: dt, RegDst: left.Reg, Operand: RegOperand(right.Reg)})
		g.materializeBool(left.Reg, compareCmp(node.Op))
	default:
	}
	g.alloc.Release(right.Reg)
	return left
}

// genShortCircuit lowers && / || to branching, per §4.8. The result is
// materialized into left's register: for && a false left skips copying
// right into it; for || a true left skips it. Both operands have already
// been evaluated by genBinary, so right's code runs whatever left is.
func (g *Generator) genShortCircuit(node *ast.BinaryExpr, left, right Ref) Ref {
	skip := g.newLabel("sc")
	g.Prog.Emit(Inst{Op: isa.OpCompare, Datatype: isa.DtU32, RegDst: left.Reg, Operand: ImmOperand(0)})
	cmp := isa.CmpEq
	if node.Op == "||" {
		cmp = isa.CmpNe
	}
	g.Prog.Emit(Inst{Op: isa.OpJal, Cmp: cmp, Operand: LabelOperand(skip), Comment: node.Op})
	g.Prog.Emit(Inst{Op: isa.OpLoad, RegDst: left.Reg, Operand: RegOperand(right.Reg), Comment: "rhs"})
	g.Prog.NewBlock(skip)
	g.Prog.Emit(LabelDef{Name: skip})
	g.alloc.Release(right.Reg)
	return left
}

// materializeBool turns the flag bits compare just set into a 0/1 value in
// dst, since the language's bool type is a first-class value, not just a
// branch predicate.
func (g *Generator) materializeBool(dst uint8, cmp isa.Cmp) {
	trueLabel := g.newLabel("cmptrue")
	doneLabel := g.newLabel("cmpdone")
	g.Prog.Emit(Inst{Op: isa.OpJal, Cmp: cmp, Operand: LabelOperand(trueLabel)})
	g.Prog.Emit(Inst{Op: isa.OpLoad, RegDst: dst, Operand: ImmOperand(0)})
	g.Prog.Emit(Inst{Op: isa.OpJal, Cmp: isa.CmpNa, Operand: LabelOperand(doneLabel)})
	g.Prog.NewBlock(trueLabel)
	g.Prog.Emit(LabelDef{Name: trueLabel})
	g.Prog.Emit(Inst{Op: isa.OpLoad, RegDst: dst, Operand: ImmOperand(1)})
	g.Prog.NewBlock(doneLabel)
	g.Prog.Emit(LabelDef{Name: doneLabel})
}

func (g *Generator) genAssign(node *ast.AssignExpr) Ref {
	right := g.genExpr(node.Right)
	ref, ok := node.Left.(*ast.SymbolRefExpr)
	if !ok {
		return right
	}
	dst := g.alloc.FindVariable(ref.Resolved)
	g.Prog.Emit(Inst{Op: isa.OpLoad, RegDst: dst.Reg, Operand: RegOperand(right.Reg), Comment: "assign " + ref.Name})
	g.alloc.Release(right.Reg)
	return dst
}

func (g *Generator) genCast(node *ast.CastExpr) Ref {
	operand := g.genExpr(node.Operand)
	from := g.datatypeOf(exprTypeOf(node.Operand))
	to := g.datatypeOf(node.Target)
	if from == to {
		return operand
	}
	dst := g.alloc.acquire()
	idx := g.alloc.slotIndex(dst)
	g.alloc.bound[idx] = &binding{reg: dst, sym: ast.NoSymbol}
	g.Prog.Emit(Inst{Op: isa.OpConvert, Datatype: from, DatatypeTo: to, RegDst: dst, RegSrc: operand.Reg, Comment: "cast"})
	g.alloc.Release(operand.Reg)
	return Ref{Reg: dst}
}

// genCall lowers a resolved user function call: evaluate arguments
// left-to-right into r1.., jal to the callee's label, then pick up the
// return value from ret.
func (g *Generator) genCall(node *ast.CallExpr) Ref {
	name, _ := calleeLabel(node.Callee)
	for i, arg := range node.Args {
		val := g.genExpr(arg)
		target := uint8(RegGeneralBase + i)
		if val.Reg != target {
			g.Prog.Emit(Inst{Op: isa.OpLoad, RegDst: target, Operand: RegOperand(val.Reg), Comment: "arg"})
			g.alloc.Release(val.Reg)
		}
	}
	g.Prog.Emit(Inst{Op: isa.OpJal, Cmp: isa.CmpNa, RegDst: uint8(isa.RegRpc), Operand: LabelOperand(name), Comment: "call " + name})
	ret := g.alloc.acquire()
	idx := g.alloc.slotIndex(ret)
	g.alloc.bound[idx] = &binding{reg: ret, sym: ast.NoSymbol}
	g.Prog.Emit(Inst{Op: isa.OpLoad, RegDst: ret, Operand: RegOperand(uint8(isa.RegRet)), Comment: "pick up retval"})
	return Ref{Reg: ret}
}

func (g *Generator) genUserCall(op ast.UserDefinedOperator, args []Ref) Ref {
	for i, a := range args {
		target := uint8(RegGeneralBase + i)
		if a.Reg != target {
			g.Prog.Emit(Inst{Op: isa.OpLoad, RegDst: target, Operand: RegOperand(a.Reg), Comment: "arg"})
		}
	}
	g.Prog.Emit(Inst{Op: isa.OpJal, Cmp: isa.CmpNa, RegDst: uint8(isa.RegRpc), Operand: LabelOperand("operator_" + mangleOperator(op.Name)), Comment: "call operator" + op.Name})
	ret := g.alloc.acquire()
	idx := g.alloc.slotIndex(ret)
	g.alloc.bound[idx] = &binding{reg: ret, sym: ast.NoSymbol}
	g.Prog.Emit(Inst{Op: isa.OpLoad, RegDst: ret, Operand: RegOperand(uint8(isa.RegRet)), Comment: "pick up retval"})
	return Ref{Reg: ret}
}

func calleeLabel(n ast.Node) (string, bool) {
	switch v := n.(type) {
	case *ast.SymbolRefExpr:
		return v.Name, true
	case *ast.DotExpr:
		if inner, ok := calleeLabel(v.Left); ok {
			return inner + "__" + v.Member, true
		}
	}
	return "", false
}

// exprTypeOf duplicates ast's unexported exprType for codegen's own use;
// it reads the same Type field every expression node carries.
func exprTypeOf(n ast.Node) ast.TypeId {
	switch v := n.(type) {
	case *ast.IntLit:
		return v.Type
	case *ast.FloatLit:
		return v.Type
	case *ast.BoolLit:
		return v.Type
	case *ast.SymbolRefExpr:
		return v.Type
	case *ast.UnaryExpr:
		return v.Type
	case *ast.BinaryExpr:
		return v.Type
	case *ast.AssignExpr:
		return v.Type
	case *ast.CastExpr:
		return v.Type
	case *ast.DotExpr:
		return v.Type
	case *ast.CallExpr:
		return v.Type
	default:
		return ast.NoType
	}
}
