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

type TokenKind int

const (
	TkInvalid TokenKind = iota
	TkEOF
	TkIdent

	TkLBrace
	TkRBrace
	TkLParen
	TkRParen
	TkSemicolon
	TkColon
	TkComma
	TkDot
	TkArrow // ->

	TkOp // maximal run of operator-chars, e.g. "+", "==", "<-" (user-defined)

	TkIntLit
	TkFloatLit
	TkTrue
	TkFalse

	TkKwLet
	TkKwConst
	TkKwFunc
	TkKwNamespace
	TkKwReturn
	TkKwIf
	TkKwElse
	TkKwOperator

	TkKwU8
	TkKwI8
	TkKwU16
	TkKwI16
	TkKwU32
	TkKwI32
	TkKwU64
	TkKwI64
	TkKwF32
	TkKwF64
	TkKwBool
)

var tokenKindNames = map[TokenKind]string{
	TkInvalid: "invalid", TkEOF: "eof", TkIdent: "identifier",
	TkLBrace: "{", TkRBrace: "}", TkLParen: "(", TkRParen: ")",
	TkSemicolon: ";", TkColon: ":", TkComma: ",", TkDot: ".", TkArrow: "->",
	TkOp: "operator", TkIntLit: "int_lit", TkFloatLit: "float_lit",
	TkTrue: "true", TkFalse: "false",
	TkKwLet: "let", TkKwConst: "const", TkKwFunc: "func",
	TkKwNamespace: "namespace", TkKwReturn: "return", TkKwIf: "if", TkKwElse: "else",
	TkKwOperator: "operator_kw",
	TkKwU8:       "u8", TkKwI8: "i8", TkKwU16: "u16", TkKwI16: "i16",
	TkKwU32: "u32", TkKwI32: "i32", TkKwU64: "u64", TkKwI64: "i64",
	TkKwF32: "f32", TkKwF64: "f64", TkKwBool: "bool",
}

func (k TokenKind) String() string {
	if name, ok := tokenKindNames[k]; ok {
		return name
	}
	return "?"
}

// Keywords maps a lexed identifier image to its reserved TokenKind.
var Keywords = map[string]TokenKind{
	"let": TkKwLet, "const": TkKwConst, "func": TkKwFunc,
	"namespace": TkKwNamespace, "return": TkKwReturn, "if": TkKwIf, "else": TkKwElse,
	"operator": TkKwOperator,
	"true":     TkTrue, "false": TkFalse,
	"u8": TkKwU8, "i8": TkKwI8, "u16": TkKwU16, "i16": TkKwI16,
	"u32": TkKwU32, "i32": TkKwI32, "u64": TkKwU64, "i64": TkKwI64,
	"f32": TkKwF32, "f64": TkKwF64, "bool": TkKwBool,
}

// TypeKeywords is the subset of Keywords that the parser's type grammar maps
// to canonical type nodes (§4.5: "type tokens are mapped to canonical type
// nodes via a static table").
var TypeKeywords = map[TokenKind]bool{
	TkKwU8: true, TkKwI8: true, TkKwU16: true, TkKwI16: true,
	TkKwU32: true, TkKwI32: true, TkKwU64: true, TkKwI64: true,
	TkKwF32: true, TkKwF64: true, TkKwBool: true,
}

// punctuators is the multi-character literal table the lexer checks before
// falling back to a maximal-munch TkOp run, so "->" wins over a generic op.
var punctuators = []struct {
	image string
	kind  TokenKind
}{
	{"->", TkArrow},
	{"{", TkLBrace}, {"}", TkRBrace},
	{"(", TkLParen}, {")", TkRParen},
	{";", TkSemicolon}, {":", TkColon}, {",", TkComma}, {".", TkDot},
}

// operatorChars is the charset a maximal-munch TkOp run may be built from.
const operatorChars = "!#$%&*+./<=>?@\\^|-~"

// Token is produced by the lexer; NumericValue is filled only for numeric
// literals, after typed reparsing, and holds the raw 64-bit bit pattern.
type Token struct {
	Kind         TokenKind
	Image        string
	Loc          Location
	SourceLine   string
	NumericValue uint64
}

func (t Token) String() string {
	return t.Image
}
