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

import "fmt"

// Parser is a recursive-descent, precedence-climbing parser with unbounded
// lookahead via the lexer-backed token buffer below. It reports the first
// syntax error it hits and stops, mirroring §4.5's "a single failure aborts
// the enclosing parse".
type Parser struct {
	lex     *Lexer
	buf     []Token
	sink    *Sink
	ops     *OperatorTable
	failed  bool
}

func NewParser(lex *Lexer, ops *OperatorTable, sink *Sink) *Parser {
	return &Parser{lex: lex, ops: ops, sink: sink}
}

func (p *Parser) fill(n int) {
	for len(p.buf) <= n {
		p.buf = append(p.buf, p.lex.Next())
	}
}

func (p *Parser) peek(n int) Token {
	p.fill(n)
	return p.buf[n]
}

func (p *Parser) cur() Token { return p.peek(0) }

func (p *Parser) advance() Token {
	p.fill(0)
	t := p.buf[0]
	p.buf = p.buf[1:]
	return t
}

func (p *Parser) errorf(loc Location, format string, args ...interface{}) {
	if !p.failed {
		p.sink.ErrorWithSource(loc, p.lex.stream.Line(loc.Line), format, args...)
		p.failed = true
	}
}

// expect consumes and returns the current token if it has kind k, else
// emits "expected X, found Y" and marks the parse failed.
func (p *Parser) expect(k TokenKind) (Token, bool) {
	t := p.cur()
	if t.Kind != k {
		p.errorf(t.Loc, "expected %s, found %s", k, describeToken(t))
		return t, false
	}
	return p.advance(), true
}

func describeToken(t Token) string {
	if t.Kind == TkIdent || t.Kind == TkOp {
		return fmt.Sprintf("%s %q", t.Kind, t.Image)
	}
	return t.Kind.String()
}

// ParseProgram parses a whole source file into a *Program. It stops at the
// first syntax error, returning whatever has been built plus false.
func (p *Parser) ParseProgram() (*Program, bool) {
	loc := p.cur().Loc
	prog := &Program{base: base{loc}}
	for p.cur().Kind != TkEOF && !p.failed {
		d := p.parseTopLevelDecl()
		if d == nil {
			break
		}
		prog.Decls = append(prog.Decls, d)
	}
	return prog, !p.failed
}

func (p *Parser) parseTopLevelDecl() Node {
	switch p.cur().Kind {
	case TkKwNamespace:
		return p.parseNamespace()
	case TkKwFunc:
		return p.parseFunc()
	default:
		p.errorf(p.cur().Loc, "expected a namespace or function declaration, found %s", describeToken(p.cur()))
		return nil
	}
}

func (p *Parser) parseNamespace() Node {
	kw := p.advance() // 'namespace'
	name, ok := p.expect(TkIdent)
	if !ok {
		return nil
	}
	openBrace := p.cur()
	if _, ok := p.expect(TkLBrace); !ok {
		return nil
	}
	ns := &NamespaceDecl{base: base{kw.Loc}, Name: name.Image}
	for p.cur().Kind != TkRBrace {
		if p.cur().Kind == TkEOF {
			p.errorf(p.cur().Loc, "unexpected end of file in namespace %s", name.Image)
			p.sink.Note(openBrace.Loc, "namespace opened here")
			return nil
		}
		d := p.parseTopLevelDecl()
		if d == nil {
			return nil
		}
		ns.Body = append(ns.Body, d)
	}
	p.advance() // '}'
	return ns
}

func (p *Parser) parseFunc() Node {
	kw := p.advance() // 'func'
	var opLex string
	isOperator := false
	var name string
	if p.cur().Kind == TkKwOperator {
		p.advance()
		isOperator = true
		t := p.advance() // the operator lexeme itself, lexed as TkOp or punctuator
		opLex = t.Image
		name = "operator" + opLex
	} else {
		nameTok, ok := p.expect(TkIdent)
		if !ok {
			return nil
		}
		name = nameTok.Image
	}

	openParen := p.cur()
	if _, ok := p.expect(TkLParen); !ok {
		return nil
	}
	fn := &FuncDecl{base: base{kw.Loc}, Name: name, IsOperator: isOperator, OperatorLex: opLex}
	for p.cur().Kind != TkRParen {
		if len(fn.Params) > 0 {
			if _, ok := p.expect(TkComma); !ok {
				return nil
			}
		}
		pname, ok := p.expect(TkIdent)
		if !ok {
			return nil
		}
		if _, ok := p.expect(TkColon); !ok {
			return nil
		}
		ptype, ok := p.parseTypeTok()
		if !ok {
			return nil
		}
		fn.Params = append(fn.Params, &ParamDecl{base: base{pname.Loc}, Name: pname.Image, TypeTok: ptype})
		if p.cur().Kind == TkEOF {
			p.errorf(p.cur().Loc, "unexpected end of file in parameter list")
			p.sink.Note(openParen.Loc, "parameter list opened here")
			return nil
		}
	}
	p.advance() // ')'

	if p.cur().Kind == TkArrow {
		p.advance()
		retTok, ok := p.parseTypeTok()
		if !ok {
			return nil
		}
		fn.RetTypeTok = retTok
	}

	if p.cur().Kind == TkSemicolon {
		p.advance() // declaration only, no body
		return fn
	}

	openBrace := p.cur()
	if _, ok := p.expect(TkLBrace); !ok {
		return nil
	}
	for p.cur().Kind != TkRBrace {
		if p.cur().Kind == TkEOF {
			p.errorf(p.cur().Loc, "unexpected end of file in function %s", name)
			p.sink.Note(openBrace.Loc, "function body opened here")
			return nil
		}
		s := p.parseStmt()
		if s == nil {
			return nil
		}
		fn.Body = append(fn.Body, s)
	}
	p.advance() // '}'
	return fn
}

func (p *Parser) parseTypeTok() (Token, bool) {
	t := p.cur()
	if !TypeKeywords[t.Kind] {
		p.errorf(t.Loc, "expected a type, found %s", describeToken(t))
		return t, false
	}
	return p.advance(), true
}

// ---------------------------------------------------------------------
// Statements

func (p *Parser) parseStmt() Node {
	switch p.cur().Kind {
	case TkKwLet, TkKwConst:
		return p.parseVarDecl()
	case TkKwReturn:
		return p.parseReturn()
	case TkKwIf:
		return p.parseIf()
	default:
		return p.parseExprStmt()
	}
}

func (p *Parser) parseVarDecl() Node {
	kw := p.advance() // 'let' or 'const'
	vd := &VarDecl{base: base{kw.Loc}, IsConst: kw.Kind == TkKwConst}
	for {
		name, ok := p.expect(TkIdent)
		if !ok {
			return nil
		}
		vd.Names = append(vd.Names, name)
		if p.cur().Kind == TkColon {
			p.advance()
			tok, ok := p.parseTypeTok()
			if !ok {
				return nil
			}
			vd.TypeTok = tok
		}
		var init Node
		if p.cur().Kind == TkOp && p.cur().Image == "=" {
			p.advance()
			init = p.parseExpr(0)
			if init == nil {
				return nil
			}
		}
		vd.Init = append(vd.Init, init)
		if p.cur().Kind != TkComma {
			break
		}
		p.advance()
	}
	if _, ok := p.expect(TkSemicolon); !ok {
		return nil
	}
	return vd
}

func (p *Parser) parseReturn() Node {
	kw := p.advance()
	rs := &ReturnStmt{base: base{kw.Loc}}
	if p.cur().Kind != TkSemicolon {
		rs.Expr = p.parseExpr(0)
		if rs.Expr == nil {
			return nil
		}
	}
	if _, ok := p.expect(TkSemicolon); !ok {
		return nil
	}
	return rs
}

func (p *Parser) parseIf() Node {
	kw := p.advance()
	cond := p.parseExpr(0)
	if cond == nil {
		return nil
	}
	is := &IfStmt{base: base{kw.Loc}, Cond: cond}
	then, ok := p.parseBlock()
	if !ok {
		return nil
	}
	is.Then = then
	if p.cur().Kind == TkKwElse {
		p.advance()
		if p.cur().Kind == TkKwIf {
			elseIf := p.parseIf()
			if elseIf == nil {
				return nil
			}
			is.Else = []Node{elseIf}
		} else {
			els, ok := p.parseBlock()
			if !ok {
				return nil
			}
			is.Else = els
		}
	}
	return is
}

func (p *Parser) parseBlock() ([]Node, bool) {
	openBrace := p.cur()
	if _, ok := p.expect(TkLBrace); !ok {
		return nil, false
	}
	var stmts []Node
	for p.cur().Kind != TkRBrace {
		if p.cur().Kind == TkEOF {
			p.errorf(p.cur().Loc, "unexpected end of file in block")
			p.sink.Note(openBrace.Loc, "block opened here")
			return nil, false
		}
		s := p.parseStmt()
		if s == nil {
			return nil, false
		}
		stmts = append(stmts, s)
	}
	p.advance() // '}'
	return stmts, true
}

func (p *Parser) parseExprStmt() Node {
	loc := p.cur().Loc
	e := p.parseExpr(0)
	if e == nil {
		return nil
	}
	if _, ok := p.expect(TkSemicolon); !ok {
		return nil
	}
	return &ExprStmt{base: base{loc}, Expr: e}
}

// ---------------------------------------------------------------------
// Expressions — precedence climbing over the operator table, with "="
// handled as its own non-overloadable right-assoc production (§4.5/§4.6).

func (p *Parser) parseExpr(minPrec int) Node {
	left := p.parseUnary()
	if left == nil {
		return nil
	}
	for {
		t := p.cur()
		if t.Kind != TkOp {
			break
		}
		if t.Image == "=" {
			entry, _ := builtinBinaryOpsLookup("=")
			if entry.Precedence < minPrec {
				break
			}
			p.advance()
			right := p.parseExpr(entry.Precedence) // right-assoc
			if right == nil {
				return nil
			}
			left = &AssignExpr{base: base{t.Loc}, Left: left, Right: right}
			continue
		}
		entry, ok := builtinBinaryOpsLookup(t.Image)
		if !ok || entry.Precedence < minPrec {
			break
		}
		p.advance()
		nextMin := entry.Precedence + 1
		if entry.RightAssoc {
			nextMin = entry.Precedence
		}
		right := p.parseExpr(nextMin)
		if right == nil {
			return nil
		}
		left = &BinaryExpr{base: base{t.Loc}, Op: t.Image, Left: left, Right: right}
	}
	return left
}

func builtinBinaryOpsLookup(name string) (OpEntry, bool) {
	e, ok := builtinBinaryOps[name]
	return e, ok
}

func (p *Parser) parseUnary() Node {
	t := p.cur()
	if t.Kind == TkOp {
		if _, ok := builtinUnaryOps[t.Image]; ok {
			p.advance()
			operand := p.parseUnary()
			if operand == nil {
				return nil
			}
			return &UnaryExpr{base: base{t.Loc}, Op: t.Image, Operand: operand}
		}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() Node {
	expr := p.parsePrimary()
	if expr == nil {
		return nil
	}
	for {
		switch p.cur().Kind {
		case TkDot:
			dot := p.advance()
			member, ok := p.expect(TkIdent)
			if !ok {
				return nil
			}
			expr = &DotExpr{base: base{dot.Loc}, Left: expr, Member: member.Image}
		case TkLParen:
			open := p.advance()
			var args []Node
			for p.cur().Kind != TkRParen {
				if len(args) > 0 {
					if _, ok := p.expect(TkComma); !ok {
						return nil
					}
				}
				a := p.parseExpr(0)
				if a == nil {
					return nil
				}
				args = append(args, a)
				if p.cur().Kind == TkEOF {
					p.errorf(p.cur().Loc, "unexpected end of file in call arguments")
					p.sink.Note(open.Loc, "call opened here")
					return nil
				}
			}
			p.advance() // ')'
			expr = &CallExpr{base: base{open.Loc}, Callee: expr, Args: args}
		default:
			return expr
		}
	}
}

func (p *Parser) parsePrimary() Node {
	t := p.cur()
	switch t.Kind {
	case TkIntLit:
		p.advance()
		return &IntLit{base: base{t.Loc}, Bits: t.NumericValue}
	case TkFloatLit:
		p.advance()
		return &FloatLit{base: base{t.Loc}, Bits: t.NumericValue}
	case TkTrue:
		p.advance()
		return &BoolLit{base: base{t.Loc}, Value: true}
	case TkFalse:
		p.advance()
		return &BoolLit{base: base{t.Loc}, Value: false}
	case TkIdent:
		p.advance()
		return &SymbolRefExpr{base: base{t.Loc}, Name: t.Image}
	case TkLParen:
		p.advance()
		if TypeKeywords[p.cur().Kind] {
			if cast := p.tryParseCast(t); cast != nil {
				return cast
			}
		}
		inner := p.parseExpr(0)
		if inner == nil {
			return nil
		}
		if _, ok := p.expect(TkRParen); !ok {
			return nil
		}
		return inner
	default:
		p.errorf(t.Loc, "expected an expression, found %s", describeToken(t))
		return nil
	}
}

// tryParseCast handles the "(u8) expr" cast production: save/restore-style
// backtracking isn't available on the token buffer, so this commits once it
// sees typeKeyword ')' as an unambiguous cast prefix.
func (p *Parser) tryParseCast(openParen Token) Node {
	targetTok := p.cur()
	if p.peek(1).Kind != TkRParen {
		return nil
	}
	p.advance() // type
	p.advance() // ')'
	operand := p.parseUnary()
	if operand == nil {
		return nil
	}
	return &CastExpr{base: base{openParen.Loc}, TargetTok: targetTok, Operand: operand}
}
