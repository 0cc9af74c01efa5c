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
	"io"
	"os"

	"vellum/isa"
)

// Register indices live in isa (shared with the code generator, which also
// needs to know the calling-convention register layout).
const (
	RegPc    = isa.RegPc
	RegRpc   = isa.RegRpc
	RegSp    = isa.RegSp
	RegFp    = isa.RegFp
	RegFlag  = isa.RegFlag
	RegIsr   = isa.RegIsr
	RegImr   = isa.RegImr
	RegIpc   = isa.RegIpc
	RegRet   = isa.RegRet
	RegK1    = isa.RegK1
	RegK2    = isa.RegK2
	RegR1    = isa.RegR1
	RegCount = isa.RegCount
)

// DebugCategory tags one class of trace event (§6's CLI debug flags).
type DebugCategory int

const (
	DebugCPU DebugCategory = iota
	DebugArgs
	DebugMem
	DebugReg
	DebugZFlag
	DebugConditionals
	DebugErrs
)

// DebugEvent is one trace line appended to Core's event deque.
type DebugEvent struct {
	Category DebugCategory
	Text     string
}

// Core owns the register file, the bus, I/O streams, and the debug event
// queue (§4.11). It does not itself interpret instructions — Executor does
// — so Core stays a pure state container plus the small helper API spec.md
// names explicitly.
type Core struct {
	Regs [RegCount]uint64
	Bus  *Bus

	In  io.Reader
	Out io.Writer

	Debug       map[DebugCategory]bool
	Events      []DebugEvent
	IsRunning   bool
}

func NewCore(bus *Bus) *Core {
	c := &Core{
		Bus:    bus,
		In:     os.Stdin,
		Out:    os.Stdout,
		Debug:  make(map[DebugCategory]bool),
	}
	c.Reset()
	return c
}

// Reset zeroes the register file, sets imr = all_ones, sp = DRAM_SIZE (fp
// mirrors it), clears memory, and marks the core running.
func (c *Core) Reset() {
	for i := range c.Regs {
		c.Regs[i] = 0
	}
	c.Regs[RegImr] = ^uint64(0)
	c.Regs[RegSp] = DramSize
	c.Regs[RegFp] = c.Regs[RegSp]
	c.Bus.Clear()
	c.IsRunning = true
}

func (c *Core) Reg(r uint8) uint64 { return c.Regs[r] }

func (c *Core) RegSet(r uint8, v uint64) {
	c.Regs[r] = v
	if v == 0 {
		c.setZero(true)
	} else {
		c.setZero(false)
	}
}

func (c *Core) RegCopy(dst, src uint8) { c.RegSet(dst, c.Regs[src]) }

// RegUpper writes only the upper 32 bits of r, leaving the lower 32 intact.
func (c *Core) RegUpper(r uint8, v uint32) {
	c.Regs[r] = (c.Regs[r] & 0xffffffff) | (uint64(v) << 32)
}

func (c *Core) setZero(z bool) {
	if z {
		c.Regs[RegFlag] |= 1 << isa.FlagZeroBit
	} else {
		c.Regs[RegFlag] &^= 1 << isa.FlagZeroBit
	}
}

func (c *Core) Zero() bool { return c.Regs[RegFlag]&(1<<isa.FlagZeroBit) != 0 }

func (c *Core) InInterrupt() bool { return c.Regs[RegFlag]&(1<<isa.FlagInInterruptBit) != 0 }

func (c *Core) setInInterrupt(v bool) {
	if v {
		c.Regs[RegFlag] |= 1 << isa.FlagInInterruptBit
	} else {
		c.Regs[RegFlag] &^= 1 << isa.FlagInInterruptBit
	}
}

// RaiseError writes code into flag[5..7], the offending value into ret, and
// stops the core (§7).
func (c *Core) RaiseError(code isa.ErrorCode, value uint64) {
	c.Regs[RegFlag] = (c.Regs[RegFlag] &^ (isa.FlagErrorMask << isa.FlagErrorOffset)) | (uint64(code) << isa.FlagErrorOffset)
	c.Regs[RegRet] = value
	c.IsRunning = false
	c.trace(DebugErrs, fmt.Sprintf("error %s value=0x%x", code, value))
}

func (c *Core) ErrorCode() isa.ErrorCode {
	return isa.ErrorCode((c.Regs[RegFlag] >> isa.FlagErrorOffset) & isa.FlagErrorMask)
}

func (c *Core) MemLoad(addr uint64, size int) (uint64, bool) {
	if !c.Bus.Valid(addr, size) {
		c.RaiseError(isa.ErrSegfault, addr)
		return 0, false
	}
	v := c.Bus.Load(addr, size)
	c.trace(DebugMem, fmt.Sprintf("load [0x%x..+%d] = 0x%x", addr, size, v))
	return v, true
}

func (c *Core) MemStore(addr uint64, size int, value uint64) bool {
	if !c.Bus.Valid(addr, size) {
		c.RaiseError(isa.ErrSegfault, addr)
		return false
	}
	c.Bus.Store(addr, size, value)
	c.trace(DebugMem, fmt.Sprintf("store [0x%x..+%d] = 0x%x", addr, size, value))
	return true
}

func (c *Core) MemCopy(src, dst uint64, length int) bool {
	if !c.Bus.Valid(src, length) || !c.Bus.Valid(dst, length) {
		c.RaiseError(isa.ErrSegfault, src)
		return false
	}
	for i := 0; i < length; i++ {
		b := c.Bus.Load(src+uint64(i), 1)
		c.Bus.Store(dst+uint64(i), 1, b)
	}
	return true
}

// ReadString slurps bytes from the input stream into memory starting at
// addr until a newline or EOF, NUL-terminating within the written range.
func (c *Core) ReadString(addr uint64, maxLen int) (int, bool) {
	buf := make([]byte, 1)
	n := 0
	for n < maxLen {
		if _, err := c.In.Read(buf); err != nil {
			break
		}
		if buf[0] == '\n' {
			break
		}
		if !c.MemStore(addr+uint64(n), 1, uint64(buf[0])) {
			return n, false
		}
		n++
	}
	if n < maxLen {
		c.MemStore(addr+uint64(n), 1, 0)
	}
	return n, true
}

// WriteString writes the NUL-terminated string at addr to the output stream.
func (c *Core) WriteString(addr uint64) bool {
	for {
		b, ok := c.MemLoad(addr, 1)
		if !ok {
			return false
		}
		if b == 0 {
			return true
		}
		fmt.Fprintf(c.Out, "%c", byte(b))
		addr++
	}
}

func (c *Core) trace(cat DebugCategory, text string) {
	if !c.Debug[cat] {
		return
	}
	c.Events = append(c.Events, DebugEvent{Category: cat, Text: text})
}

func (c *Core) TraceEnabled(cat DebugCategory) bool { return c.Debug[cat] }

func (c *Core) Trace(cat DebugCategory, text string) { c.trace(cat, text) }
