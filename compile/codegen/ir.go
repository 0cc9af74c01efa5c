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
	"strings"

	"vellum/isa"
)

// OperandKind tags how an Inst line's Operand is to be resolved: either
// already a concrete isa value/addr, or a forward reference to a label that
// the emitter resolves to an absolute address in its second pass.
type OperandKind int

const (
	OperandNone OperandKind = iota
	OperandImm
	OperandReg
	OperandMem
	OperandRegIndirect
	OperandLabel
)

// Operand is the IR-level stand-in for an isa.Value: everything isa.Value
// can express, plus a named label for addresses not yet known.
type Operand struct {
	Kind   OperandKind
	Reg    uint8
	Offset int16
	Imm    uint32
	Label  string
}

func ImmOperand(v uint32) Operand      { return Operand{Kind: OperandImm, Imm: v} }
func RegOperand(r uint8) Operand       { return Operand{Kind: OperandReg, Reg: r} }
func MemOperand(addr uint32) Operand   { return Operand{Kind: OperandMem, Imm: addr} }
func LabelOperand(name string) Operand { return Operand{Kind: OperandLabel, Label: name} }
func RegIndirectOperand(r uint8, off int16) Operand {
	return Operand{Kind: OperandRegIndirect, Reg: r, Offset: off}
}

// Line is one entry in a basic block: either a label definition (a jump
// target, resolved to an address by the emitter) or a concrete instruction.
type Line interface {
	isLine()
	String() string
}

type LabelDef struct {
	Name string
}

func (LabelDef) isLine() {}
func (l LabelDef) String() string { return l.Name + ":" }

// Inst is one not-yet-encoded instruction word plus a source comment, kept
// the way original_source's assembly lines carry provenance for dumps.
type Inst struct {
	Op         isa.Op
	Cmp        isa.Cmp
	Datatype   isa.Datatype
	DatatypeTo isa.Datatype
	RegDst     uint8
	RegSrc     uint8
	Operand    Operand
	Width      uint8
	Comment    string
}

func (Inst) isLine() {}

func (i Inst) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s", i.Op)
	if i.Datatype != 0 || i.Op == isa.OpCompare || i.Op == isa.OpAdd || i.Op == isa.OpSub || i.Op == isa.OpMul || i.Op == isa.OpDiv {
		fmt.Fprintf(&sb, ".%s", i.Datatype)
	}
	if i.Comment != "" {
		fmt.Fprintf(&sb, " ; %s", i.Comment)
	}
	return sb.String()
}

// BasicBlock is an appendable, named container of Lines.
type BasicBlock struct {
	Name  string
	Lines []Line
}

func NewBasicBlock(name string) *BasicBlock {
	return &BasicBlock{Name: name}
}

func (b *BasicBlock) Append(l Line) {
	b.Lines = append(b.Lines, l)
}

// Program holds every basic block generated for a compilation unit plus a
// "current block" cursor the code generator mutates via Select — mirroring
// §4.8's description of how C10 drives C9.
type Program struct {
	Blocks []*BasicBlock
	cur    *BasicBlock

	// EntryLabel names the block execution starts at (the label the
	// binary emitter resolves into the image header's entry_point).
	EntryLabel string
	// InterruptHandlerLabel names the interrupt handler's entry block, if
	// the source program defines one; empty uses isa.DefaultInterruptHandler.
	InterruptHandlerLabel string
}

func NewProgram() *Program {
	return &Program{}
}

// NewBlock creates and appends a fresh block, selecting it as current.
func (p *Program) NewBlock(name string) *BasicBlock {
	b := NewBasicBlock(name)
	p.Blocks = append(p.Blocks, b)
	p.cur = b
	return b
}

func (p *Program) Select(b *BasicBlock) { p.cur = b }

func (p *Program) Current() *BasicBlock { return p.cur }

func (p *Program) Emit(l Line) {
	p.cur.Append(l)
}

func (p *Program) String() string {
	var sb strings.Builder
	for _, b := range p.Blocks {
		fmt.Fprintf(&sb, "%s:\n", b.Name)
		for _, l := range b.Lines {
			if _, ok := l.(LabelDef); ok {
				fmt.Fprintf(&sb, "%s\n", l.String())
				continue
			}
			fmt.Fprintf(&sb, "  %s\n", l.String())
		}
	}
	return sb.String()
}
