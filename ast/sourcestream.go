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
	"strings"

	"vellum/utils"
)

// position is what SourceStream saves and restores on its position stack.
type position struct {
	offset int
	line   int
	column int
}

// SourceStream is a line-aware byte stream over the whole source file. It is
// read up front into memory (source files in this toolchain are small) so
// that Line(n) can answer without re-scanning, and so save/restore is a
// plain slice-index swap rather than an underlying-reader seek.
type SourceStream struct {
	path  string
	runes []rune
	lines []string // precomputed, 0-indexed; Line(n) is 1-indexed

	pos   position
	saved []position
}

// NewSourceStream normalizes CRLF to LF (a "\r\n" pair counts as a single
// newline, per spec) and splits the text into lines for on-demand lookup.
func NewSourceStream(path string, data []byte) *SourceStream {
	normalized := strings.ReplaceAll(string(data), "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	return &SourceStream{
		path:  path,
		runes: []rune(normalized),
		lines: strings.Split(normalized, "\n"),
		pos:   position{offset: 0, line: 1, column: 0},
	}
}

func (s *SourceStream) Path() string { return s.path }

func (s *SourceStream) Eof() bool {
	return s.pos.offset >= len(s.runes)
}

func (s *SourceStream) Location() Location {
	return Location{Path: s.path, Line: s.pos.line, Column: s.pos.column}
}

// Peek returns the next rune without consuming it.
func (s *SourceStream) Peek() (rune, bool) {
	if s.Eof() {
		return 0, false
	}
	return s.runes[s.pos.offset], true
}

// PeekAt returns the rune n positions ahead of the current one (n=0 is Peek).
func (s *SourceStream) PeekAt(n int) (rune, bool) {
	idx := s.pos.offset + n
	if idx < 0 || idx >= len(s.runes) {
		return 0, false
	}
	return s.runes[idx], true
}

// Get consumes and returns the next rune, updating line/column bookkeeping.
func (s *SourceStream) Get() (rune, bool) {
	r, ok := s.Peek()
	if !ok {
		return 0, false
	}
	s.pos.offset++
	if r == '\n' {
		s.pos.line++
		s.pos.column = 0
	} else {
		s.pos.column++
	}
	return r, true
}

// Save pushes the current position onto the restore stack; Restore and
// Commit always pop the most recent save.
func (s *SourceStream) Save() {
	s.saved = append(s.saved, s.pos)
}

// Restore pops the most recent saved position and resets the stream to it.
func (s *SourceStream) Restore() {
	n := len(s.saved)
	utils.Assert(n > 0, "Restore called without a matching Save")
	s.pos = s.saved[n-1]
	s.saved = s.saved[:n-1]
}

// Commit discards the most recent save point without rewinding.
func (s *SourceStream) Commit() {
	n := len(s.saved)
	utils.Assert(n > 0, "Commit called without a matching Save")
	s.saved = s.saved[:n-1]
}

// Line returns the nth textual line (1-indexed), or "" past EOF. Used by
// diagnostics to embed a source snapshot next to a message.
func (s *SourceStream) Line(n int) string {
	if n < 1 || n > len(s.lines) {
		return ""
	}
	return s.lines[n-1]
}

func (s *SourceStream) LineCount() int {
	return len(s.lines)
}

// SkipWhitespace consumes spaces, tabs and newlines.
func (s *SourceStream) SkipWhitespace() {
	for {
		r, ok := s.Peek()
		if !ok || !(r == ' ' || r == '\t' || r == '\n') {
			return
		}
		s.Get()
	}
}

// TakeWhile consumes runes while pred holds and returns the consumed text.
func (s *SourceStream) TakeWhile(pred func(rune) bool) string {
	var sb strings.Builder
	for {
		r, ok := s.Peek()
		if !ok || !pred(r) {
			break
		}
		s.Get()
		sb.WriteRune(r)
	}
	return sb.String()
}
