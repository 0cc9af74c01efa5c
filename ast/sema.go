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
package ast

// Context threads the process-wide front-end state (§5: type graph,
// operator table, literal pool analogue) plus the per-compilation symbol
// table and diagnostic sink through both semantic passes.
type Context struct {
	Graph  *TypeGraph
	Ops    *OperatorTable
	Table  *SymbolTable
	Sink   *Sink
}

func NewContext(graph *TypeGraph) *Context {
	return &Context{
		Graph: graph,
		Ops:   NewOperatorTable(graph),
		Table: NewSymbolTable(graph),
		Sink:  &Sink{},
	}
}

// resolveTypeTok maps a built-in type keyword to its TypeId (§4.5: "type
// tokens are mapped to canonical type nodes via a static table").
func resolveTypeTok(graph *TypeGraph, tok Token) TypeId {
	switch tok.Kind {
	case TkKwU8:
		return graph.U8
	case TkKwI8:
		return graph.I8
	case TkKwU16:
		return graph.U16
	case TkKwI16:
		return graph.I16
	case TkKwU32:
		return graph.U32
	case TkKwI32:
		return graph.I32
	case TkKwU64:
		return graph.U64
	case TkKwI64:
		return graph.I64
	case TkKwF32:
		return graph.F32
	case TkKwF64:
		return graph.F64
	case TkKwBool:
		return graph.Bool
	default:
		return graph.Unit
	}
}

// ---------------------------------------------------------------------
// Pass 1 — CollateRegistry: forward declaration. Only names that must be
// visible before their textual point of use (functions, namespaces) are
// registered here; variables are registered only at their declaration
// point during Process, so forward-use of a variable is a lookup failure.

func CollateRegistry(n Node, enclosing *Registry, ctx *Context) {
	switch node := n.(type) {
	case *Program:
		node.Registry = enclosing
		for _, d := range node.Decls {
			CollateRegistry(d, enclosing, ctx)
		}
	case *NamespaceDecl:
		sym := newNamespaceSymbol(Token{Image: node.Name, Loc: node.Location})
		id, ok := enclosing.Insert(ctx.Graph, sym, ctx.Sink)
		if !ok {
			return
		}
		node.Symbol = id
		node.Registry = sym.Children
		for _, d := range node.Body {
			CollateRegistry(d, node.Registry, ctx)
		}
	case *FuncDecl:
		paramTypes := make([]TypeId, len(node.Params))
		for i, p := range node.Params {
			p.Type = resolveTypeTok(ctx.Graph, p.TypeTok)
			paramTypes[i] = p.Type
		}
		retType := ctx.Graph.Unit
		if node.RetTypeTok.Kind != TkInvalid {
			retType = resolveTypeTok(ctx.Graph, node.RetTypeTok)
		}
		node.RetType = retType
		node.Sig = ctx.Graph.FunctionTypeCreate(paramTypes, &retType)

		sym := newVariableSymbol(Token{Image: node.Name, Loc: node.Location}, node.Sig, CategoryFunction)
		if node.IsOperator {
			// Operator overloads are registered in the operator table, not
			// under the function's own name in the enclosing registry.
		} else {
			id, ok := enclosing.Insert(ctx.Graph, sym, ctx.Sink)
			if !ok {
				return
			}
			node.Symbol = id
		}

		node.Registry = NewRegistry(NoSymbol)
		for _, p := range node.Params {
			argSym := newVariableSymbol(Token{Image: p.Name, Loc: p.Location}, p.Type, CategoryArgument)
			id, ok := node.Registry.Insert(ctx.Graph, argSym, ctx.Sink)
			if ok {
				p.Symbol = id
			}
		}
	case *VarDecl:
		// Not registered here — variables are visible only after their
		// declaration point (Process handles insertion).
	}
}

// ---------------------------------------------------------------------
// Pass 2 — Process: top-down, type-checking and overload resolution
// interleaved with the walk. Returns false on the first failure, per
// spec.md §4.6 / §7's "a single failure aborts process of its parent".

func Process(n Node, ctx *Context) bool {
	switch node := n.(type) {
	case *Program:
		ctx.Table.Insert(node.Registry)
		for _, d := range node.Decls {
			if !Process(d, ctx) {
				return false
			}
		}
		return true

	case *NamespaceDecl:
		ctx.Table.PushPath(node.Symbol)
		ctx.Table.Insert(node.Registry)
		ok := true
		for _, d := range node.Body {
			if !Process(d, ctx) {
				ok = false
				break
			}
		}
		ctx.Table.Pop()
		ctx.Table.PopPath()
		return ok

	case *FuncDecl:
		if node.IsOperator {
			sym := newVariableSymbol(Token{Image: node.Name, Loc: node.Location}, node.Sig, CategoryFunction)
			node.Symbol = sym.Id
			if !ctx.Ops.RegisterUserDefined(node.OperatorLex, node.Sig, sym.Id, node.Location, ctx.Sink) {
				return false
			}
		}
		if node.Body == nil {
			return true // forward declaration only
		}
		ctx.Table.Insert(node.Registry)
		ctx.Table.PushFunction(node)
		ok := true
		for _, stmt := range node.Body {
			if !Process(stmt, ctx) {
				ok = false
				break
			}
		}
		ctx.Table.PopFunction()
		ctx.Table.Pop()
		if !ok {
			return false
		}
		if node.RetType != ctx.Graph.Unit && !node.AlwaysReturns() {
			ctx.Sink.Error(node.Location, "missing return statement in function returning type %s",
				ctx.Graph.String(node.RetType))
			return false
		}
		return true

	case *VarDecl:
		node.Symbols = make([]SymbolId, len(node.Names))
		for i, nameTok := range node.Names {
			var declaredType TypeId
			hasExplicit := node.TypeTok.Kind != TkInvalid
			if hasExplicit {
				declaredType = resolveTypeTok(ctx.Graph, node.TypeTok)
			}
			var init Node
			if i < len(node.Init) {
				init = node.Init[i]
			}
			if !hasExplicit && init == nil {
				ctx.Sink.Error(nameTok.Loc, "variable %s needs either a type or an initializer", nameTok.Image)
				return false
			}
			if init != nil {
				if !Process(init, ctx) {
					return false
				}
				initType := exprType(init)
				if hasExplicit {
					if !ctx.Graph.IsSubtype(initType, declaredType) {
						ctx.Sink.Error(nameTok.Loc, "cannot initialize %s of type %s from %s",
							nameTok.Image, ctx.Graph.String(declaredType), ctx.Graph.String(initType))
						return false
					}
				} else {
					declaredType = initType
				}
			}
			cat := CategoryOrdinary
			if node.IsConst {
				cat = CategoryConstant
			}
			sym := newVariableSymbol(nameTok, declaredType, cat)
			id, ok := ctx.Table.Peek().Insert(ctx.Graph, sym, ctx.Sink)
			if !ok {
				return false
			}
			node.Symbols[i] = id
		}
		return true

	case *ReturnStmt:
		fn := ctx.Table.CurrentFunction()
		if fn == nil {
			ctx.Sink.Error(node.Location, "return statement outside of a function")
			return false
		}
		if node.Expr == nil {
			if fn.RetType != ctx.Graph.Unit {
				ctx.Sink.Error(node.Location, "function %s must return a value of type %s", fn.Name, ctx.Graph.String(fn.RetType))
				return false
			}
			return true
		}
		if !Process(node.Expr, ctx) {
			return false
		}
		exprT := exprType(node.Expr)
		if !ctx.Graph.IsSubtype(exprT, fn.RetType) {
			ctx.Sink.Error(node.Location, "return type %s does not match declared return type %s",
				ctx.Graph.String(exprT), ctx.Graph.String(fn.RetType))
			return false
		}
		return true

	case *IfStmt:
		if !Process(node.Cond, ctx) {
			return false
		}
		if exprType(node.Cond) != ctx.Graph.Bool {
			ctx.Sink.Error(node.Cond.Loc(), "if-statement guard must be bool")
			return false
		}
		ctx.Table.Push()
		ok := processStmts(node.Then, ctx)
		ctx.Table.Pop()
		if !ok {
			return false
		}
		if node.Else != nil {
			ctx.Table.Push()
			ok = processStmts(node.Else, ctx)
			ctx.Table.Pop()
			if !ok {
				return false
			}
		}
		if thenT, thenOk := tailExprType(node.Then); thenOk {
			if elseT, elseOk := tailExprType(node.Else); elseOk {
				if ctx.Graph.IsSubtype(thenT, elseT) {
					node.Type = elseT
				} else if ctx.Graph.IsSubtype(elseT, thenT) {
					node.Type = thenT
				} else {
					ctx.Sink.Error(node.Location, "if branches have incompatible types %s and %s",
						ctx.Graph.String(thenT), ctx.Graph.String(elseT))
					return false
				}
			}
		}
		return true

	case *ExprStmt:
		return Process(node.Expr, ctx)

	case *IntLit:
		node.Type = ctx.Graph.I32
		return true
	case *FloatLit:
		node.Type = ctx.Graph.F32
		return true
	case *BoolLit:
		node.Type = ctx.Graph.Bool
		return true

	case *SymbolRefExpr:
		ids := ctx.Table.Find(node.Name)
		if len(ids) == 0 {
			ctx.Sink.Error(node.Location, "undeclared symbol %s", node.Name)
			return false
		}
		sym := lookupSymbol(ctx.Table, ids[len(ids)-1])
		node.Resolved = ids[len(ids)-1]
		node.Type = sym.Type
		sym.RefCount++
		return true

	case *UnaryExpr:
		if !Process(node.Operand, ctx) {
			return false
		}
		operandT := exprType(node.Operand)
		if user, ok := ctx.Ops.Resolve(node.Op, []TypeId{operandT}); ok {
			node.UserOp = &user
			node.Type = ctx.Graph.Get(user.Sig).Returns
		} else {
			if node.Op == "!" && operandT != ctx.Graph.Bool {
				ctx.Sink.Error(node.Location, "logical operator %s requires bool", node.Op)
				return false
			}
			node.Type = operandT
		}
		return true

	case *BinaryExpr:
		if !Process(node.Left, ctx) {
			return false
		}
		if !Process(node.Right, ctx) {
			return false
		}
		leftT, rightT := exprType(node.Left), exprType(node.Right)
		if user, ok := ctx.Ops.Resolve(node.Op, []TypeId{leftT, rightT}); ok {
			node.UserOp = &user
			node.Type = ctx.Graph.Get(user.Sig).Returns
			return true
		}
		if node.Op == "&&" || node.Op == "||" {
			if leftT != ctx.Graph.Bool || rightT != ctx.Graph.Bool {
				ctx.Sink.Error(node.Location, "logical operator %s requires bool operands", node.Op)
				return false
			}
			node.Type = ctx.Graph.Bool
			return true
		}
		if isComparisonOp(node.Op) {
			node.Type = ctx.Graph.Bool
			return true
		}
		if ctx.Graph.IsSubtype(leftT, rightT) {
			node.Type = rightT
		} else if ctx.Graph.IsSubtype(rightT, leftT) {
			node.Type = leftT
		} else {
			ctx.Sink.Error(node.Location, "incompatible operand types %s and %s for %s",
				ctx.Graph.String(leftT), ctx.Graph.String(rightT), node.Op)
			return false
		}
		return true

	case *AssignExpr:
		if !Process(node.Left, ctx) {
			return false
		}
		if !Process(node.Right, ctx) {
			return false
		}
		leftT, rightT := exprType(node.Left), exprType(node.Right)
		if !ctx.Graph.IsSubtype(rightT, leftT) {
			ctx.Sink.Error(node.Location, "cannot assign %s to %s", ctx.Graph.String(rightT), ctx.Graph.String(leftT))
			return false
		}
		node.Type = leftT
		return true

	case *CastExpr:
		node.Target = resolveTypeTok(ctx.Graph, node.TargetTok)
		if !Process(node.Operand, ctx) {
			return false
		}
		node.Type = node.Target
		return true

	case *DotExpr:
		if !Process(node.Left, ctx) {
			return false
		}
		// Namespace member access: resolve Member inside Left's namespace
		// registry if Left is a namespace reference.
		if ref, ok := node.Left.(*SymbolRefExpr); ok {
			sym := lookupSymbol(ctx.Table, ref.Resolved)
			if sym != nil && sym.Kind == SymNamespace {
				ids := sym.Children.Get(node.Member)
				if len(ids) == 0 {
					ctx.Sink.Error(node.Location, "no member %s in namespace %s", node.Member, ref.Name)
					return false
				}
				node.Resolved = ids[len(ids)-1]
				node.Type = sym.Children.Symbol(node.Resolved).Type
				return true
			}
		}
		ctx.Sink.Error(node.Location, "member access . is not overloadable and requires a namespace on the left")
		return false

	case *CallExpr:
		ok := true
		argTypes := make([]TypeId, len(node.Args))
		for i, a := range node.Args {
			if !Process(a, ctx) {
				ok = false
				continue
			}
			argTypes[i] = exprType(a)
		}
		if !ok {
			return false
		}
		name, ok := calleeName(node.Callee)
		if !ok {
			ctx.Sink.Error(node.Location, "call target must be a plain or namespaced function name")
			return false
		}
		ids := ctx.Table.Find(name)
		if len(ids) == 0 {
			ctx.Sink.Error(node.Location, "call to undeclared function %s", name)
			return false
		}
		options := make([]TypeId, len(ids))
		for i, id := range ids {
			options[i] = lookupSymbol(ctx.Table, id).Type
		}
		cands := FilterCandidates(ctx.Graph, argTypes, options)
		if !cands.Unique {
			if len(cands.Ties) == 0 {
				ctx.Sink.Error(node.Location, "no overload of %s matches the given argument types", name)
			} else {
				ctx.Sink.Error(node.Location, "call to %s is ambiguous", name)
				for _, t := range cands.Ties {
					ctx.Sink.Note(node.Location, "candidate: %s", ctx.Graph.String(options[t]))
				}
			}
			return false
		}
		chosen := ids[cands.Index]
		node.Resolved = chosen
		node.Type = ctx.Graph.Get(options[cands.Index]).Returns
		lookupSymbol(ctx.Table, chosen).RefCount++
		return true

	default:
		return true
	}
}

func processStmts(stmts []Node, ctx *Context) bool {
	for _, s := range stmts {
		if !Process(s, ctx) {
			return false
		}
	}
	return true
}

func isComparisonOp(op string) bool {
	switch op {
	case "==", "!=", "<", "<=", ">", ">=":
		return true
	default:
		return false
	}
}

// exprType reads the Type field off any expression node. Nodes that are
// not expressions return NoType.
func exprType(n Node) TypeId {
	switch v := n.(type) {
	case *IntLit:
		return v.Type
	case *FloatLit:
		return v.Type
	case *BoolLit:
		return v.Type
	case *SymbolRefExpr:
		return v.Type
	case *UnaryExpr:
		return v.Type
	case *BinaryExpr:
		return v.Type
	case *AssignExpr:
		return v.Type
	case *CastExpr:
		return v.Type
	case *DotExpr:
		return v.Type
	case *CallExpr:
		return v.Type
	case *IfStmt:
		return v.Type
	default:
		return NoType
	}
}

// tailExprType returns the type of a statement block used as an expression
// value: its last statement must be an ExprStmt (or a nested IfStmt with a
// resolved Type).
func tailExprType(stmts []Node) (TypeId, bool) {
	if len(stmts) == 0 {
		return NoType, false
	}
	switch v := stmts[len(stmts)-1].(type) {
	case *ExprStmt:
		return exprType(v.Expr), true
	case *IfStmt:
		if v.Type != NoType {
			return v.Type, true
		}
	}
	return NoType, false
}

func calleeName(n Node) (string, bool) {
	switch v := n.(type) {
	case *SymbolRefExpr:
		return v.Name, true
	case *DotExpr:
		if inner, ok := calleeName(v.Left); ok {
			return inner + "::" + v.Member, true
		}
	}
	return "", false
}

func lookupSymbol(table *SymbolTable, id SymbolId) *Symbol {
	for _, r := range table.stack {
		if sym, ok := r.symbols[id]; ok {
			return sym
		}
	}
	return nil
}
