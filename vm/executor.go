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
package vm

import (
	"fmt"
	"math"

	"vellum/isa"
)

// Executor drives the fetch-decode-execute cycle over a Core plus the
// interrupt-handler address wired in from the binary image header (§4.13).
type Executor struct {
	Core                  *Core
	InterruptHandlerAddr  uint64
	HaltOnNop             bool
}

func NewExecutor(core *Core, interruptHandlerAddr uint64) *Executor {
	return &Executor{Core: core, InterruptHandlerAddr: interruptHandlerAddr, HaltOnNop: true}
}

// Run steps until the core stops running (error raised, or an exit syscall).
func (e *Executor) Run() {
	for e.Core.IsRunning {
		e.Step()
	}
}

// Step executes exactly one fetch-execute cycle, first checking for a
// pending interrupt dispatch.
func (e *Executor) Step() {
	c := e.Core
	if !c.InInterrupt() && c.Regs[RegIsr]&c.Regs[RegImr] != 0 {
		c.Regs[RegIpc] = c.Regs[RegPc]
		c.setInInterrupt(true)
		c.Regs[RegPc] = e.InterruptHandlerAddr
		c.trace(DebugCPU, fmt.Sprintf("interrupt dispatch -> 0x%x", e.InterruptHandlerAddr))
	}

	word, ok := c.MemLoad(c.Regs[RegPc], isa.InstructionSize)
	if !ok {
		return
	}
	ins := isa.Decode(word)
	c.trace(DebugCPU, fmt.Sprintf("pc=0x%x %s", c.Regs[RegPc], ins.Op))
	c.Regs[RegPc] += isa.InstructionSize

	e.execute(ins)
}

func (e *Executor) validReg(r uint8) bool { return int(r) < RegCount }

func (e *Executor) regOrError(r uint8) (uint8, bool) {
	if !e.validReg(r) {
		e.Core.RaiseError(isa.ErrReg, uint64(r))
		return 0, false
	}
	return r, true
}

// resolveValue reads a mode-tagged "value" operand to its numeric payload.
func (e *Executor) resolveValue(v isa.Value) (uint64, bool) {
	c := e.Core
	switch v.Mode {
	case isa.ArgImm:
		return uint64(v.Payload), true
	case isa.ArgReg:
		if _, ok := e.regOrError(v.Reg); !ok {
			return 0, false
		}
		return c.Reg(v.Reg), true
	case isa.ArgMem:
		return c.MemLoad(uint64(v.Payload), 8)
	case isa.ArgRegIndirect:
		addr, ok := e.regIndirectAddr(v)
		if !ok {
			return 0, false
		}
		return c.MemLoad(addr, 8)
	default:
		e.Core.RaiseError(isa.ErrUnknown, uint64(v.Mode))
		return 0, false
	}
}

func (e *Executor) regIndirectAddr(v isa.Value) (uint64, bool) {
	if _, ok := e.regOrError(v.Reg); !ok {
		return 0, false
	}
	base := int64(e.Core.Reg(v.Reg))
	addr := uint64(base + int64(v.Offset))
	return addr, true
}

// resolveAddr reads a "addr" operand (mem or reg_indirect only) to a byte
// address, without dereferencing it.
func (e *Executor) resolveAddr(v isa.Value) (uint64, bool) {
	switch v.Mode {
	case isa.ArgMem:
		return uint64(v.Payload), true
	case isa.ArgRegIndirect:
		return e.regIndirectAddr(v)
	default:
		e.Core.RaiseError(isa.ErrUnknown, uint64(v.Mode))
		return 0, false
	}
}

func (e *Executor) execute(ins isa.Instruction) {
	c := e.Core
	switch ins.Op {
	case isa.OpNop:
		if e.HaltOnNop {
			c.IsRunning = false
		}

	case isa.OpLoad:
		if _, ok := e.regOrError(ins.RegDst); !ok {
			return
		}
		v, ok := e.resolveValue(ins.Value)
		if !ok {
			return
		}
		c.RegSet(ins.RegDst, v)

	case isa.OpLoadUpper:
		if _, ok := e.regOrError(ins.RegDst); !ok {
			return
		}
		v, ok := e.resolveValue(ins.Value)
		if !ok {
			return
		}
		c.RegUpper(ins.RegDst, uint32(v))

	case isa.OpStore:
		if _, ok := e.regOrError(ins.RegSrc); !ok {
			return
		}
		addr, ok := e.resolveAddr(ins.Value)
		if !ok {
			return
		}
		c.MemStore(addr, 8, c.Reg(ins.RegSrc))

	case isa.OpCompare:
		e.execCompare(ins)

	case isa.OpConvert:
		e.execConvert(ins)

	case isa.OpNot:
		if _, ok := e.regOrError(ins.RegDst); !ok {
			return
		}
		if _, ok := e.regOrError(ins.RegSrc); !ok {
			return
		}
		c.RegSet(ins.RegDst, ^c.Reg(ins.RegSrc))

	case isa.OpAnd, isa.OpOr, isa.OpXor, isa.OpShr, isa.OpShl:
		e.execBitwise(ins)

	case isa.OpZext:
		e.execZext(ins)
	case isa.OpSext:
		e.execSext(ins)

	case isa.OpAdd, isa.OpSub, isa.OpMul, isa.OpDiv:
		e.execArith(ins)

	case isa.OpMod:
		e.execMod(ins)

	case isa.OpJal:
		e.execJal(ins)

	case isa.OpRti:
		c.Regs[RegPc] = c.Regs[RegIpc]
		c.setInInterrupt(false)

	case isa.OpSyscall:
		v, ok := e.resolveValue(ins.Value)
		if !ok {
			return
		}
		e.execSyscall(isa.Syscall(v))

	default:
		c.RaiseError(isa.ErrOpcode, uint64(ins.Op))
	}
}

func (e *Executor) execCompare(ins isa.Instruction) {
	c := e.Core
	if _, ok := e.regOrError(ins.RegDst); !ok {
		return
	}
	lhs := c.Reg(ins.RegDst)
	rhsRaw, ok := e.resolveValue(ins.Value)
	if !ok {
		return
	}
	if !validDatatype(ins.Datatype) {
		c.RaiseError(isa.ErrDatatype, uint64(ins.Datatype))
		return
	}

	var lt, gt, eq, z bool
	switch {
	case ins.Datatype.IsFloat():
		l, r := asFloat(ins.Datatype, lhs), asFloat(ins.Datatype, rhsRaw)
		lt, gt, eq, z = l < r, l > r, l == r, r == 0
	case ins.Datatype.IsSigned():
		l, r := asSigned(ins.Datatype, lhs), asSigned(ins.Datatype, rhsRaw)
		lt, gt, eq, z = l < r, l > r, l == r, r == 0
	default:
		l, r := asUnsigned(ins.Datatype, lhs), asUnsigned(ins.Datatype, rhsRaw)
		lt, gt, eq, z = l < r, l > r, l == r, r == 0
	}

	// eq/lt/gt occupy independent, non-overlapping bits so predicateHolds can
	// test each of the six predicates (including the le/ge/ne unions) as a
	// simple bit test instead of exact-matching a single result pattern.
	var bits uint64
	if eq {
		bits |= 1 << isa.FlagEqBit
	}
	if lt {
		bits |= 1 << isa.FlagLtBit
	}
	if gt {
		bits |= 1 << isa.FlagGtBit
	}
	c.Regs[RegFlag] = (c.Regs[RegFlag] &^ isa.CmpMaskBits) | bits
	c.setZero(z)
	c.trace(DebugConditionals, fmt.Sprintf("compare.%s lt=%v gt=%v eq=%v z=%v", ins.Datatype, lt, gt, eq, z))
}

func validDatatype(dt isa.Datatype) bool {
	switch dt {
	case isa.DtU32, isa.DtU64, isa.DtS32, isa.DtS64, isa.DtFlt, isa.DtDbl:
		return true
	default:
		return false
	}
}

func asSigned(dt isa.Datatype, raw uint64) int64 {
	if dt == isa.DtS32 {
		return int64(int32(uint32(raw)))
	}
	return int64(raw)
}

func asUnsigned(dt isa.Datatype, raw uint64) uint64 {
	if dt == isa.DtU32 {
		return uint64(uint32(raw))
	}
	return raw
}

func asFloat(dt isa.Datatype, raw uint64) float64 {
	if dt == isa.DtFlt {
		return float64(math.Float32frombits(uint32(raw)))
	}
	return math.Float64frombits(raw)
}

func floatBits(dt isa.Datatype, v float64) uint64 {
	if dt == isa.DtFlt {
		return uint64(math.Float32bits(float32(v)))
	}
	return math.Float64bits(v)
}

func (e *Executor) execConvert(ins isa.Instruction) {
	c := e.Core
	if _, ok := e.regOrError(ins.RegDst); !ok {
		return
	}
	if _, ok := e.regOrError(ins.RegSrc); !ok {
		return
	}
	if !validDatatype(ins.Datatype) || !validDatatype(ins.DatatypeTo) {
		c.RaiseError(isa.ErrDatatype, uint64(ins.DatatypeTo))
		return
	}
	raw := c.Reg(ins.RegSrc)
	var asF float64
	switch {
	case ins.Datatype.IsFloat():
		asF = asFloat(ins.Datatype, raw)
	case ins.Datatype.IsSigned():
		asF = float64(asSigned(ins.Datatype, raw))
	default:
		asF = float64(asUnsigned(ins.Datatype, raw))
	}

	var out uint64
	switch {
	case ins.DatatypeTo.IsFloat():
		out = floatBits(ins.DatatypeTo, asF)
	case ins.DatatypeTo.IsSigned():
		if ins.DatatypeTo == isa.DtS32 {
			out = uint64(uint32(int32(asF)))
		} else {
			out = uint64(int64(asF))
		}
	default:
		if ins.DatatypeTo == isa.DtU32 {
			out = uint64(uint32(asF))
		} else {
			out = uint64(asF)
		}
	}
	c.RegSet(ins.RegDst, out)
}

func (e *Executor) execBitwise(ins isa.Instruction) {
	c := e.Core
	if _, ok := e.regOrError(ins.RegDst); !ok {
		return
	}
	if _, ok := e.regOrError(ins.RegSrc); !ok {
		return
	}
	rhs, ok := e.resolveValue(ins.Value)
	if !ok {
		return
	}
	lhs := c.Reg(ins.RegSrc)
	var out uint64
	switch ins.Op {
	case isa.OpAnd:
		out = lhs & rhs
	case isa.OpOr:
		out = lhs | rhs
	case isa.OpXor:
		out = lhs ^ rhs
	case isa.OpShr:
		out = lhs >> (rhs & 63)
	case isa.OpShl:
		out = lhs << (rhs & 63)
	}
	c.RegSet(ins.RegDst, out)
}

func (e *Executor) execZext(ins isa.Instruction) {
	c := e.Core
	if _, ok := e.regOrError(ins.RegDst); !ok {
		return
	}
	v, ok := e.resolveValue(ins.Value)
	if !ok {
		return
	}
	width := uint(ins.Width)
	if width == 0 || width > 64 {
		width = 64
	}
	if width < 64 {
		v &= (1 << width) - 1
	}
	c.RegSet(ins.RegDst, v)
}

func (e *Executor) execSext(ins isa.Instruction) {
	c := e.Core
	if _, ok := e.regOrError(ins.RegDst); !ok {
		return
	}
	v, ok := e.resolveValue(ins.Value)
	if !ok {
		return
	}
	width := uint(ins.Width)
	if width == 0 || width >= 64 {
		c.RegSet(ins.RegDst, v)
		return
	}
	shift := 64 - width
	out := uint64(int64(v<<shift) >> shift)
	c.RegSet(ins.RegDst, out)
}

func (e *Executor) execArith(ins isa.Instruction) {
	c := e.Core
	if _, ok := e.regOrError(ins.RegDst); !ok {
		return
	}
	if _, ok := e.regOrError(ins.RegSrc); !ok {
		return
	}
	rhsRaw, ok := e.resolveValue(ins.Value)
	if !ok {
		return
	}
	if !validDatatype(ins.Datatype) {
		c.RaiseError(isa.ErrDatatype, uint64(ins.Datatype))
		return
	}
	lhsRaw := c.Reg(ins.RegSrc)

	var out uint64
	switch {
	case ins.Datatype.IsFloat():
		l, r := asFloat(ins.Datatype, lhsRaw), asFloat(ins.Datatype, rhsRaw)
		var res float64
		switch ins.Op {
		case isa.OpAdd:
			res = l + r
		case isa.OpSub:
			res = l - r
		case isa.OpMul:
			res = l * r
		case isa.OpDiv:
			res = l / r
		}
		out = floatBits(ins.Datatype, res)
	case ins.Datatype.IsSigned():
		l, r := asSigned(ins.Datatype, lhsRaw), asSigned(ins.Datatype, rhsRaw)
		var res int64
		switch ins.Op {
		case isa.OpAdd:
			res = l + r
		case isa.OpSub:
			res = l - r
		case isa.OpMul:
			res = l * r
		case isa.OpDiv:
			if r != 0 {
				res = l / r
			}
		}
		if ins.Datatype == isa.DtS32 {
			out = uint64(uint32(int32(res)))
		} else {
			out = uint64(res)
		}
	default:
		l, r := asUnsigned(ins.Datatype, lhsRaw), asUnsigned(ins.Datatype, rhsRaw)
		var res uint64
		switch ins.Op {
		case isa.OpAdd:
			res = l + r
		case isa.OpSub:
			res = l - r
		case isa.OpMul:
			res = l * r
		case isa.OpDiv:
			if r != 0 {
				res = l / r
			}
		}
		if ins.Datatype == isa.DtU32 {
			out = uint64(uint32(res))
		} else {
			out = res
		}
	}
	c.RegSet(ins.RegDst, out)
}

// execMod is always signed 64-bit, per §4.12.
func (e *Executor) execMod(ins isa.Instruction) {
	c := e.Core
	if _, ok := e.regOrError(ins.RegDst); !ok {
		return
	}
	if _, ok := e.regOrError(ins.RegSrc); !ok {
		return
	}
	rhs, ok := e.resolveValue(ins.Value)
	if !ok {
		return
	}
	lhs := int64(c.Reg(ins.RegSrc))
	r := int64(rhs)
	var out int64
	if r != 0 {
		out = lhs % r
	}
	c.RegSet(ins.RegDst, uint64(out))
}

func (e *Executor) execJal(ins isa.Instruction) {
	c := e.Core
	if _, ok := e.regOrError(ins.RegDst); !ok {
		return
	}
	target, ok := e.resolveValue(ins.Value)
	if !ok {
		return
	}
	if !e.predicateHolds(ins.Cmp) {
		return
	}
	c.RegSet(ins.RegDst, c.Regs[RegPc])
	c.Regs[RegPc] = target
}

// predicateHolds tests the predicate nibble against flag[0..2], except the
// z/nz special cases which test the zero flag bit instead (§4.12). eq/lt/gt
// are independent bits (see execCompare), so le/ge/ne are tested as the
// logical union their names imply rather than an exact-match of the whole
// nibble against a single compare result.
func (e *Executor) predicateHolds(cmp isa.Cmp) bool {
	c := e.Core
	flag := c.Regs[RegFlag]
	eq := flag&(1<<isa.FlagEqBit) != 0
	lt := flag&(1<<isa.FlagLtBit) != 0
	gt := flag&(1<<isa.FlagGtBit) != 0
	switch cmp {
	case isa.CmpNa:
		return true
	case isa.CmpZ:
		return c.Zero()
	case isa.CmpNz:
		return !c.Zero()
	case isa.CmpEq:
		return eq
	case isa.CmpNe:
		return !eq
	case isa.CmpLt:
		return lt
	case isa.CmpLe:
		return lt || eq
	case isa.CmpGt:
		return gt
	case isa.CmpGe:
		return gt || eq
	default:
		return false
	}
}
