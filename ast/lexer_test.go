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

import "testing"

func lexAll(t *testing.T, src string) []Token {
	t.Helper()
	lx := NewLexer(NewSourceStream("test.vlm", []byte(src)))
	var toks []Token
	for {
		tok := lx.Next()
		toks = append(toks, tok)
		if tok.Kind == TkEOF {
			break
		}
	}
	return toks
}

func TestLexerKeywordsAndPunctuation(t *testing.T) {
	toks := lexAll(t, "func add(a i32, b i32) -> i32 { return a+b; }")
	wantKinds := []TokenKind{
		TkKwFunc, TkIdent, TkLParen, TkIdent, TkKwI32, TkComma,
		TkIdent, TkKwI32, TkRParen, TkArrow, TkKwI32, TkLBrace,
		TkKwReturn, TkIdent, TkOp, TkIdent, TkSemicolon, TkRBrace, TkEOF,
	}
	if len(toks) != len(wantKinds) {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(wantKinds), toks)
	}
	for i, k := range wantKinds {
		if toks[i].Kind != k {
			t.Errorf("token %d: got %s (%q), want %s", i, toks[i].Kind, toks[i].Image, k)
		}
	}
}

func TestLexerIntAndFloatLiterals(t *testing.T) {
	toks := lexAll(t, "42 3.14")
	if toks[0].Kind != TkIntLit || toks[0].Image != "42" {
		t.Errorf("got %+v, want int_lit 42", toks[0])
	}
	if toks[1].Kind != TkFloatLit || toks[1].Image != "3.14" {
		t.Errorf("got %+v, want float_lit 3.14", toks[1])
	}
}

func TestLexerMaximalMunchOperator(t *testing.T) {
	toks := lexAll(t, "a<=b==c")
	var ops []string
	for _, tok := range toks {
		if tok.Kind == TkOp {
			ops = append(ops, tok.Image)
		}
	}
	if len(ops) != 2 || ops[0] != "<=" || ops[1] != "==" {
		t.Errorf("got operators %v, want [<= ==]", ops)
	}
}

func TestLexerSkipsComments(t *testing.T) {
	toks := lexAll(t, "a // line comment\nb /* block */ c")
	var idents []string
	for _, tok := range toks {
		if tok.Kind == TkIdent {
			idents = append(idents, tok.Image)
		}
	}
	if len(idents) != 3 || idents[0] != "a" || idents[1] != "b" || idents[2] != "c" {
		t.Errorf("got idents %v, want [a b c]", idents)
	}
}
