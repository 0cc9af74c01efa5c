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

import (
	"math"
	"strconv"
	"strings"
)

// Lexer turns a SourceStream into a flat token stream. Failures never
// panic: an unrecognized character becomes a TkInvalid token and the parser
// is the one that turns it into a diagnostic.
type Lexer struct {
	stream *SourceStream
}

func NewLexer(stream *SourceStream) *Lexer {
	return &Lexer{stream: stream}
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }
func isIdentStart(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}
func isIdentCont(r rune) bool { return isIdentStart(r) || isDigit(r) }
func isOperatorChar(r rune) bool {
	return strings.ContainsRune(operatorChars, r)
}

func (lx *Lexer) skipWhitespaceAndComments() {
	for {
		lx.stream.SkipWhitespace()
		r, ok := lx.stream.Peek()
		if !ok || r != '/' {
			return
		}
		next, _ := lx.stream.PeekAt(1)
		switch next {
		case '/':
			lx.stream.Get()
			lx.stream.Get()
			for {
				c, ok := lx.stream.Peek()
				if !ok || c == '\n' {
					break
				}
				lx.stream.Get()
			}
		case '*':
			lx.stream.Get()
			lx.stream.Get()
			for {
				c, ok := lx.stream.Peek()
				if !ok {
					break // unterminated block comment; EOF ends the scan
				}
				if c == '*' {
					if n2, _ := lx.stream.PeekAt(1); n2 == '/' {
						lx.stream.Get()
						lx.stream.Get()
						break
					}
				}
				lx.stream.Get()
			}
		default:
			return
		}
	}
}

// Next produces the next token. Locations are captured after the
// whitespace/comment skip so callers see where the token itself begins.
func (lx *Lexer) Next() Token {
	lx.skipWhitespaceAndComments()
	loc := lx.stream.Location()
	line := lx.stream.Line(loc.Line)

	r, ok := lx.stream.Peek()
	if !ok {
		return Token{Kind: TkEOF, Image: "", Loc: loc, SourceLine: line}
	}

	if isDigit(r) {
		return lx.lexNumber(loc, line)
	}
	if isIdentStart(r) {
		return lx.lexIdentOrKeyword(loc, line)
	}

	// Multi-character punctuators are checked before the generic operator
	// run, so e.g. "->" wins over a maximal munch of '-' then '>' as TkOp.
	for _, p := range punctuators {
		if lx.tryConsumeLiteral(p.image) {
			return Token{Kind: p.kind, Image: p.image, Loc: loc, SourceLine: line}
		}
	}

	if isOperatorChar(r) {
		image := lx.stream.TakeWhile(isOperatorChar)
		return Token{Kind: TkOp, Image: image, Loc: loc, SourceLine: line}
	}

	lx.stream.Get()
	return Token{Kind: TkInvalid, Image: string(r), Loc: loc, SourceLine: line}
}

func (lx *Lexer) tryConsumeLiteral(lit string) bool {
	for i, want := range lit {
		got, ok := lx.stream.PeekAt(i)
		if !ok || got != want {
			return false
		}
	}
	for range lit {
		lx.stream.Get()
	}
	return true
}

func (lx *Lexer) lexIdentOrKeyword(loc Location, line string) Token {
	image := lx.stream.TakeWhile(isIdentCont)
	if kind, isKw := Keywords[image]; isKw {
		return Token{Kind: kind, Image: image, Loc: loc, SourceLine: line}
	}
	return Token{Kind: TkIdent, Image: image, Loc: loc, SourceLine: line}
}

// lexNumber reads a digit sequence with an optional fractional dot, then an
// optional trailing type-keyword suffix (e.g. "42u16"). Without a suffix,
// integers default to int32 and fractions to float32 (§4.2).
func (lx *Lexer) lexNumber(loc Location, line string) Token {
	digits := lx.stream.TakeWhile(isDigit)
	isFloat := false
	if r, ok := lx.stream.Peek(); ok && r == '.' {
		if next, ok2 := lx.stream.PeekAt(1); ok2 && isDigit(next) {
			isFloat = true
			lx.stream.Get() // consume '.'
			digits += "." + lx.stream.TakeWhile(isDigit)
		}
	}

	suffix := ""
	if r, ok := lx.stream.Peek(); ok && isIdentStart(r) {
		suffix = lx.stream.TakeWhile(isIdentCont)
	}

	kind := TkIntLit
	if isFloat {
		kind = TkFloatLit
	}
	image := digits + suffix
	tok := Token{Kind: kind, Image: image, Loc: loc, SourceLine: line}
	tok.NumericValue = reparseNumericLiteral(digits, isFloat, suffix)
	return tok
}

// reparseNumericLiteral resolves the literal's type suffix (falling back to
// int32/float32) and returns the raw bit pattern for the resolved width.
// Parse failure leaves the value at 0 and is not reported anywhere (lexing
// never fails per spec.md §4.2).
func reparseNumericLiteral(digits string, isFloat bool, suffix string) uint64 {
	if isFloat {
		f, err := strconv.ParseFloat(digits, 64)
		if err != nil {
			return 0
		}
		switch suffix {
		case "f64":
			return float64Bits(f)
		case "f32", "":
			return uint64(float32Bits(float32(f)))
		default:
			return float64Bits(f)
		}
	}

	switch suffix {
	case "u8":
		v, err := strconv.ParseUint(digits, 10, 8)
		return checked(v, err)
	case "i8":
		v, err := strconv.ParseInt(digits, 10, 8)
		return checkedSigned(v, err)
	case "u16":
		v, err := strconv.ParseUint(digits, 10, 16)
		return checked(v, err)
	case "i16":
		v, err := strconv.ParseInt(digits, 10, 16)
		return checkedSigned(v, err)
	case "u32":
		v, err := strconv.ParseUint(digits, 10, 32)
		return checked(v, err)
	case "i32", "":
		v, err := strconv.ParseInt(digits, 10, 32)
		return checkedSigned(v, err)
	case "u64":
		v, err := strconv.ParseUint(digits, 10, 64)
		return checked(v, err)
	case "i64":
		v, err := strconv.ParseInt(digits, 10, 64)
		return checkedSigned(v, err)
	case "f32":
		f, err := strconv.ParseFloat(digits, 32)
		if err != nil {
			return 0
		}
		return uint64(float32Bits(float32(f)))
	case "f64":
		f, err := strconv.ParseFloat(digits, 64)
		if err != nil {
			return 0
		}
		return float64Bits(f)
	default:
		v, err := strconv.ParseInt(digits, 10, 32)
		return checkedSigned(v, err)
	}
}

func checked(v uint64, err error) uint64 {
	if err != nil {
		return 0
	}
	return v
}

func checkedSigned(v int64, err error) uint64 {
	if err != nil {
		return 0
	}
	return uint64(v)
}

func float32Bits(f float32) uint32 {
	return math.Float32bits(f)
}

func float64Bits(f float64) uint64 {
	return math.Float64bits(f)
}

// PrintTokenized lexes the whole stream and prints it, mirroring the
// teacher's debug dump. Neither command-line driver calls it.
func PrintTokenized(print func(kind TokenKind, image string), stream *SourceStream) {
	lx := NewLexer(stream)
	for {
		tok := lx.Next()
		if tok.Kind == TkEOF {
			return
		}
		print(tok.Kind, tok.Image)
	}
}
