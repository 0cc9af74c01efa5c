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
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"vellum/isa"
)

func newTestCore() (*Core, *Executor) {
	bus := NewBus(NewDram())
	core := NewCore(bus)
	exec := NewExecutor(core, isa.DefaultInterruptHandler)
	return core, exec
}

// loadProgram writes a little-endian instruction stream starting at pc=0 and
// points RegPc at it, mimicking what the emitter's image layout would do
// without needing a full header.
func loadProgram(core *Core, words ...uint64) {
	for i, w := range words {
		core.Bus.Store(uint64(i)*isa.InstructionSize, isa.InstructionSize, w)
	}
	core.RegSet(RegPc, 0)
}

func TestExecutorAddProducesSum(t *testing.T) {
	core, exec := newTestCore()
	loadProgram(core,
		isa.Encode(isa.Instruction{Op: isa.OpLoad, RegDst: RegR1, Value: isa.Imm(3)}),
		isa.Encode(isa.Instruction{Op: isa.OpLoad, RegDst: RegR1 + 1, Value: isa.Imm(4)}),
		isa.Encode(isa.Instruction{Op: isa.OpAdd, Datatype: isa.DtS32, RegDst: RegR1, RegSrc: RegR1, Value: isa.RegValue(RegR1 + 1)}),
		isa.Encode(isa.Instruction{Op: isa.OpNop}),
	)
	exec.Run()
	if got := core.Reg(RegR1); got != 7 {
		t.Errorf("got r1=%d, want 7", got)
	}
	if core.ErrorCode() != isa.ErrOK {
		t.Errorf("expected no error, got %s", core.ErrorCode())
	}
}

func TestExecutorPrintIntSyscall(t *testing.T) {
	core, exec := newTestCore()
	var out bytes.Buffer
	core.Out = &out
	loadProgram(core,
		isa.Encode(isa.Instruction{Op: isa.OpLoad, RegDst: RegR1, Value: isa.Imm(12)}),
		isa.Encode(isa.Instruction{Op: isa.OpSyscall, Value: isa.Imm(uint32(isa.SysPrintInt))}),
		isa.Encode(isa.Instruction{Op: isa.OpSyscall, Value: isa.Imm(uint32(isa.SysExit))}),
	)
	exec.Run()
	if got := out.String(); got != "12" {
		t.Errorf("got stdout %q, want \"12\"", got)
	}
}

func TestExecutorDivisionByZeroYieldsZeroNotPanic(t *testing.T) {
	core, exec := newTestCore()
	loadProgram(core,
		isa.Encode(isa.Instruction{Op: isa.OpLoad, RegDst: RegR1, Value: isa.Imm(5)}),
		isa.Encode(isa.Instruction{Op: isa.OpLoad, RegDst: RegR1 + 1, Value: isa.Imm(0)}),
		isa.Encode(isa.Instruction{Op: isa.OpDiv, Datatype: isa.DtS32, RegDst: RegR1, RegSrc: RegR1, Value: isa.RegValue(RegR1 + 1)}),
		isa.Encode(isa.Instruction{Op: isa.OpNop}),
	)
	exec.Run()
	if got := core.Reg(RegR1); got != 0 {
		t.Errorf("division by zero should yield 0 without raising, got %d", got)
	}
	if core.ErrorCode() != isa.ErrOK {
		t.Errorf("division by zero is not itself an error condition, got %s", core.ErrorCode())
	}
}

func TestExecutorLoadOutOfRangeRaisesSegfault(t *testing.T) {
	core, exec := newTestCore()
	loadProgram(core,
		isa.Encode(isa.Instruction{Op: isa.OpLoad, RegDst: RegR1, Value: isa.Mem(DramSize + 100)}),
	)
	exec.Run()
	if core.ErrorCode() != isa.ErrSegfault {
		t.Errorf("got error %s, want segfault", core.ErrorCode())
	}
	if core.IsRunning {
		t.Error("expected the core to stop running after a segfault")
	}
}

func TestExecutorInvalidRegisterRaisesRegError(t *testing.T) {
	core, exec := newTestCore()
	loadProgram(core,
		isa.Encode(isa.Instruction{Op: isa.OpLoad, RegDst: 200, Value: isa.Imm(1)}),
	)
	exec.Run()
	if core.ErrorCode() != isa.ErrReg {
		t.Errorf("got error %s, want reg", core.ErrorCode())
	}
}

func TestExecutorUnknownOpcodeRaisesOpcodeError(t *testing.T) {
	core, exec := newTestCore()
	// 0b111110 (62) is inside the 6-bit opcode space but not in the defined
	// op set (OpRti=20, OpSyscall=0x3f=63 are the only ones above OpJal).
	core.Bus.Store(0, isa.InstructionSize, 62)
	core.RegSet(RegPc, 0)
	exec.Run()
	if core.ErrorCode() != isa.ErrOpcode {
		t.Errorf("got error %s, want opcode", core.ErrorCode())
	}
}

func TestExecutorCompareSetsEqBitOnEqual(t *testing.T) {
	core, exec := newTestCore()
	loadProgram(core,
		isa.Encode(isa.Instruction{Op: isa.OpLoad, RegDst: RegR1, Value: isa.Imm(5)}),
		isa.Encode(isa.Instruction{Op: isa.OpCompare, Datatype: isa.DtU32, RegDst: RegR1, Value: isa.Imm(5)}),
		isa.Encode(isa.Instruction{Op: isa.OpNop}),
	)
	exec.Run()
	if core.Regs[RegFlag]&isa.CmpMaskBits != uint64(isa.CmpEq) {
		t.Errorf("expected the eq predicate bits to be set after comparing 5 == 5")
	}
}

func TestExecutorJalUnconditionalSetsLinkAndJumps(t *testing.T) {
	core, exec := newTestCore()
	loadProgram(core,
		isa.Encode(isa.Instruction{Op: isa.OpJal, Cmp: isa.CmpNa, RegDst: RegRpc, Value: isa.Imm(24)}),
		isa.Encode(isa.Instruction{Op: isa.OpNop}), // skipped
		isa.Encode(isa.Instruction{Op: isa.OpNop}), // skipped
		isa.Encode(isa.Instruction{Op: isa.OpNop}), // landed on, halts
	)
	exec.Run()
	if got := core.Reg(RegRpc); got != isa.InstructionSize {
		t.Errorf("expected rpc to hold the return address (one word past the jal), got %d", got)
	}
	if got := core.Regs[RegPc]; got != 24+isa.InstructionSize {
		t.Errorf("expected pc to have advanced past the landed-on nop, got %d", got)
	}
}

// TestExecutorInterruptDispatchAndRti exercises dispatch and
// return-from-interrupt as two separate Step calls: the handler's first
// instruction (a harmless compare) occupies the step that also performs the
// dispatch jump, and a second step executes the trailing rti (§4.13).
func TestExecutorInterruptDispatchAndRti(t *testing.T) {
	core, exec := newTestCore()
	core.RegSet(RegImr, 1)
	core.Regs[RegIsr] = 1

	handlerAddr := uint64(400)
	exec.InterruptHandlerAddr = handlerAddr
	core.Bus.Store(handlerAddr, isa.InstructionSize,
		isa.Encode(isa.Instruction{Op: isa.OpCompare, Datatype: isa.DtU32, RegDst: RegR1, Value: isa.Imm(0)}))
	core.Bus.Store(handlerAddr+isa.InstructionSize, isa.InstructionSize, isa.Encode(isa.Instruction{Op: isa.OpRti}))
	core.Bus.Store(0, isa.InstructionSize, isa.Encode(isa.Instruction{Op: isa.OpNop}))
	core.RegSet(RegPc, 0)

	exec.Step() // dispatches into the handler and executes its first instruction
	if !core.InInterrupt() {
		t.Fatal("expected in_interrupt to be set once dispatched")
	}
	if core.Regs[RegIpc] != 0 {
		t.Errorf("expected ipc to save the interrupted pc (0), got %d", core.Regs[RegIpc])
	}
	if core.Regs[RegPc] != handlerAddr+isa.InstructionSize {
		t.Fatalf("expected pc to have advanced one word past the handler entry, got %d", core.Regs[RegPc])
	}

	exec.Step() // executes the rti at the handler
	if core.InInterrupt() {
		t.Error("expected in_interrupt to be cleared after rti")
	}
	if core.Regs[RegPc] != 0 {
		t.Errorf("expected rti to restore pc from ipc (0), got %d", core.Regs[RegPc])
	}
}

func TestExecutorHaltOnNopDisabledKeepsRunning(t *testing.T) {
	core, exec := newTestCore()
	exec.HaltOnNop = false
	loadProgram(core, isa.Encode(isa.Instruction{Op: isa.OpNop}))
	exec.Step()
	if !core.IsRunning {
		t.Error("expected the core to keep running past a nop when HaltOnNop is false")
	}
}

func TestDramLoadStoreRoundTripsLittleEndian(t *testing.T) {
	d := NewDram()
	d.Store(100, 4, 0xdeadbeef)
	if got := d.Load(100, 4); got != 0xdeadbeef {
		t.Errorf("got 0x%x, want 0xdeadbeef", got)
	}
	var want [4]byte
	binary.LittleEndian.PutUint32(want[:], 0xdeadbeef)
	for i, b := range want {
		if d.mem[100+i] != b {
			t.Errorf("byte %d: got 0x%x, want 0x%x (little-endian layout)", i, d.mem[100+i], b)
		}
	}
}

func TestBusValidRejectsOutOfRangeAccess(t *testing.T) {
	bus := NewBus(NewDram())
	if bus.Valid(DramSize, 1) {
		t.Error("an access starting exactly at DramSize must be invalid")
	}
	if bus.Valid(DramSize-4, 8) {
		t.Error("an access whose end overruns DramSize must be invalid")
	}
	if !bus.Valid(DramSize-8, 8) {
		t.Error("an access that exactly fits within the last 8 bytes must be valid")
	}
}

func TestCoreResetInitializesStackAndInterruptMask(t *testing.T) {
	core, _ := newTestCore()
	core.RegSet(RegR1, 0xff)
	core.Reset()
	if core.Reg(RegR1) != 0 {
		t.Error("expected Reset to zero every general register")
	}
	if core.Regs[RegSp] != DramSize {
		t.Errorf("expected sp to reset to DramSize, got %d", core.Regs[RegSp])
	}
	if core.Regs[RegFp] != core.Regs[RegSp] {
		t.Error("expected fp to mirror sp on reset")
	}
	if core.Regs[RegImr] != ^uint64(0) {
		t.Error("expected imr to reset to all-ones")
	}
	if !core.IsRunning {
		t.Error("expected Reset to mark the core running")
	}
}

func TestWriteStringStopsAtNul(t *testing.T) {
	core, _ := newTestCore()
	var out bytes.Buffer
	core.Out = &out
	msg := "hi\x00trailing garbage should not print"
	for i, c := range []byte(msg) {
		core.Bus.Store(uint64(i), 1, uint64(c))
	}
	core.WriteString(0)
	if got := out.String(); got != "hi" {
		t.Errorf("got %q, want %q", got, "hi")
	}
}

func TestReadStringStopsAtNewline(t *testing.T) {
	core, _ := newTestCore()
	core.In = strings.NewReader("hello\nworld\n")
	n, ok := core.ReadString(0, 64)
	if !ok {
		t.Fatal("ReadString reported failure")
	}
	if n != 5 {
		t.Errorf("got n=%d, want 5 (\"hello\" without the newline)", n)
	}
	got := make([]byte, 5)
	for i := range got {
		b, _ := core.MemLoad(uint64(i), 1)
		got[i] = byte(b)
	}
	if string(got) != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
}
