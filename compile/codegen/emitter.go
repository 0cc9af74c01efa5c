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
	"encoding/binary"
	"fmt"

	"vellum/isa"
)

// Emitter lowers a Program's linearized instruction stream into a loadable
// binary image: a 16-byte header followed by 8-byte little-endian
// instruction words (§4.9). Label references are resolved in two passes —
// the first assigns every LabelDef an absolute address as blocks are
// walked in order, the second encodes every Inst, patching label operands
// against the table built in the first pass.
type Emitter struct {
	prog *Program

	labels map[string]uint64
}

func NewEmitter(prog *Program) *Emitter {
	return &Emitter{prog: prog, labels: make(map[string]uint64)}
}

// Emit returns the full image: header + code. interruptHandler is
// isa.DefaultInterruptHandler unless the program names its own handler
// block via Program.InterruptHandlerLabel.
func (e *Emitter) Emit() ([]byte, error) {
	e.assignAddresses()

	entry, ok := e.labels[e.prog.EntryLabel]
	if !ok {
		return nil, fmt.Errorf("emitter: entry label %q not found", e.prog.EntryLabel)
	}
	handler := isa.DefaultInterruptHandler
	if e.prog.InterruptHandlerLabel != "" {
		addr, ok := e.labels[e.prog.InterruptHandlerLabel]
		if !ok {
			return nil, fmt.Errorf("emitter: interrupt handler label %q not found", e.prog.InterruptHandlerLabel)
		}
		handler = addr
	}

	buf := make([]byte, isa.HeaderSize)
	binary.LittleEndian.PutUint64(buf[0:8], entry)
	binary.LittleEndian.PutUint64(buf[8:16], handler)

	for _, b := range e.prog.Blocks {
		for _, l := range b.Lines {
			inst, ok := l.(Inst)
			if !ok {
				continue // LabelDef carries no code of its own
			}
			word, err := e.encode(inst)
			if err != nil {
				return nil, err
			}
			var wb [isa.InstructionSize]byte
			binary.LittleEndian.PutUint64(wb[:], word)
			buf = append(buf, wb[:]...)
		}
	}
	return buf, nil
}

// assignAddresses is the emitter's first pass: walk every block in order,
// handing out the next address to each LabelDef and advancing by
// InstructionSize for each Inst. A block's own name is also registered as
// a label, so a jump can target a BasicBlock directly by name.
func (e *Emitter) assignAddresses() {
	addr := uint64(isa.HeaderSize)
	for _, b := range e.prog.Blocks {
		e.labels[b.Name] = addr
		for _, l := range b.Lines {
			switch v := l.(type) {
			case LabelDef:
				e.labels[v.Name] = addr
			case Inst:
				addr += isa.InstructionSize
			}
		}
	}
}

// encode is the second pass for one instruction: resolve its Operand
// (possibly a label reference) against the address table, then defer to
// isa.Encode for the bit-level packing.
func (e *Emitter) encode(ins Inst) (uint64, error) {
	val, err := e.resolveOperand(ins.Operand)
	if err != nil {
		return 0, err
	}
	return isa.Encode(isa.Instruction{
		Op:         ins.Op,
		Cmp:        ins.Cmp,
		Datatype:   ins.Datatype,
		DatatypeTo: ins.DatatypeTo,
		RegDst:     ins.RegDst,
		RegSrc:     ins.RegSrc,
		Value:      val,
		Width:      ins.Width,
	}), nil
}

func (e *Emitter) resolveOperand(op Operand) (isa.Value, error) {
	switch op.Kind {
	case OperandNone:
		return isa.Value{}, nil
	case OperandImm:
		return isa.Imm(op.Imm), nil
	case OperandReg:
		return isa.RegValue(op.Reg), nil
	case OperandMem:
		return isa.Mem(op.Imm), nil
	case OperandRegIndirect:
		return isa.RegIndirect(op.Reg, op.Offset), nil
	case OperandLabel:
		addr, ok := e.labels[op.Label]
		if !ok {
			return isa.Value{}, fmt.Errorf("emitter: undefined label %q", op.Label)
		}
		return isa.Imm(uint32(addr)), nil
	default:
		return isa.Value{}, fmt.Errorf("emitter: unknown operand kind %d", op.Kind)
	}
}
