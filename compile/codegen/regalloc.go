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
	"vellum/ast"
	"vellum/isa"
	"vellum/utils"
)

// generalRegCount is r1..r21 — the allocatable pool. k1/k2 lie outside it
// and are never handed out to find(); spill and reload move a value
// directly between its register and its stack slot.
const generalRegCount = 21

// RegGeneralBase is the register-file index of r1.
const RegGeneralBase = isa.RegR1

// Ref is a live value's current home: always a register once produced by
// the allocator (guarantee_register's memory case never arises because
// find() always resolves straight to a register — see its doc comment).
type Ref struct {
	Reg uint8
}

type binding struct {
	reg     uint8
	sym     ast.SymbolId // NoSymbol if this register holds an anonymous literal
}

// Allocator is per-function: one instance is created per FuncDecl, discarded
// at its epilogue. It tracks which general registers are occupied, their
// least-recently-used order, and the growing spill area of the current
// stack frame.
type Allocator struct {
	prog  *Program
	table *ast.SymbolTable

	bound   []*binding // indexed by register - RegGeneralBase; nil if free
	lru     []uint8    // least-recently-used first
	recent  uint8
	hasRecent bool

	frameSize  int
	spillSlots map[ast.SymbolId]int
}

func NewAllocator(prog *Program, table *ast.SymbolTable) *Allocator {
	return &Allocator{
		prog:       prog,
		table:      table,
		bound:      make([]*binding, generalRegCount),
		spillSlots: make(map[ast.SymbolId]int),
	}
}

func (a *Allocator) touch(reg uint8) {
	a.lru = utils.Filter(a.lru, func(r uint8) bool { return r != reg })
	a.lru = append(a.lru, reg)
	a.recent = reg
	a.hasRecent = true
}

// acquire returns a free register, evicting (spilling) the least-recently
// used occupied one if the pool is exhausted.
func (a *Allocator) acquire() uint8 {
	for i := 0; i < generalRegCount; i++ {
		reg := uint8(RegGeneralBase + i)
		if a.bound[i] == nil {
			a.touch(reg)
			return reg
		}
	}
	utils.Assert(len(a.lru) > 0, "register pool exhausted with no LRU candidate")
	victim := a.lru[0]
	a.spill(victim)
	a.touch(victim)
	return victim
}

func (a *Allocator) slotIndex(reg uint8) int { return int(reg) - RegGeneralBase }

// spill writes reg's current occupant to its stack-frame slot (allocating
// one on first spill) and frees the register.
func (a *Allocator) spill(reg uint8) {
	idx := a.slotIndex(reg)
	b := a.bound[idx]
	if b == nil {
		return
	}
	if b.sym != ast.NoSymbol {
		offset, ok := a.spillSlots[b.sym]
		if !ok {
			a.frameSize += 8
			offset = -a.frameSize
			a.spillSlots[b.sym] = offset
			a.table.AssignSymbol(b.sym, int(reg)) // keep symbol table's storage view in sync before overwrite
		}
		a.prog.Emit(Inst{
			Op: isa.OpStore, RegSrc: reg,
			Operand: RegIndirectOperand(uint8(isa.RegFp), int16(offset)),
			Comment: "spill",
		})
	}
	a.bound[idx] = nil
}

// FindLiteral loads an immediate into a fresh register.
func (a *Allocator) FindLiteral(value uint32, dt isa.Datatype) Ref {
	reg := a.acquire()
	idx := a.slotIndex(reg)
	a.bound[idx] = &binding{reg: reg, sym: ast.NoSymbol}
	a.prog.Emit(Inst{Op: isa.OpLoad, RegDst: reg, Operand: ImmOperand(value), Comment: "literal"})
	return Ref{Reg: reg}
}

// FindVariable makes sym's current value live in a register, reloading
// from its stack slot if it isn't resident already.
func (a *Allocator) FindVariable(sym ast.SymbolId) Ref {
	for i, b := range a.bound {
		if b != nil && b.sym == sym {
			a.touch(uint8(RegGeneralBase + i))
			return Ref{Reg: uint8(RegGeneralBase + i)}
		}
	}
	reg := a.acquire()
	idx := a.slotIndex(reg)
	a.bound[idx] = &binding{reg: reg, sym: sym}
	if offset, ok := a.spillSlots[sym]; ok {
		a.prog.Emit(Inst{
			Op: isa.OpLoad, RegDst: reg,
			Operand: RegIndirectOperand(uint8(isa.RegFp), int16(offset)),
			Comment: "reload",
		})
	}
	a.table.AssignSymbol(sym, int(reg))
	return Ref{Reg: reg}
}

// BindParam assigns sym directly to reg without emitting a load — used for
// incoming arguments already resident per the calling convention.
func (a *Allocator) BindParam(sym ast.SymbolId, reg uint8) {
	idx := a.slotIndex(reg)
	a.bound[idx] = &binding{reg: reg, sym: sym}
	a.touch(reg)
	a.table.AssignSymbol(sym, int(reg))
}

// GuaranteeRegister is the identity function for this allocator: every Ref
// it ever hands out already denotes a register (find() never returns a
// memory reference), so there is no memory case to resolve.
func (a *Allocator) GuaranteeRegister(ref Ref) Ref { return ref }

// GetRecent returns the most recently allocated register, used to thread a
// just-evaluated expression's value to its consumer.
func (a *Allocator) GetRecent() (Ref, bool) {
	if !a.hasRecent {
		return Ref{}, false
	}
	return Ref{Reg: a.recent}, true
}

// Release frees reg without spilling — used once its value has been
// consumed and will not be read again (e.g. after being copied to ret).
func (a *Allocator) Release(reg uint8) {
	idx := a.slotIndex(reg)
	a.bound[idx] = nil
	a.lru = utils.Filter(a.lru, func(r uint8) bool { return r != reg })
}

// FrameSize is the total spill area size in bytes accumulated so far.
func (a *Allocator) FrameSize() int { return a.frameSize }
