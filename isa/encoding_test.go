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
package isa

import "testing"

func TestEncodeDecodeAddRoundTrips(t *testing.T) {
	want := Instruction{
		Op: OpAdd, Cmp: CmpNa, Datatype: DtS32,
		RegDst: RegR1, RegSrc: RegR1 + 1,
		Value: Imm(42),
	}
	got := Decode(Encode(want))
	if got.Op != want.Op || got.Datatype != want.Datatype || got.RegDst != want.RegDst ||
		got.RegSrc != want.RegSrc || got.Value != want.Value {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestEncodeDecodeStoreRegIndirectRoundTrips(t *testing.T) {
	want := Instruction{
		Op: OpStore, Cmp: CmpNa,
		RegSrc: RegFp,
		Value:  RegIndirect(RegSp, -24),
	}
	got := Decode(Encode(want))
	if got.Value.Mode != ArgRegIndirect || got.Value.Reg != RegSp || got.Value.Offset != -24 {
		t.Errorf("got value %+v, want reg_indirect(sp, -24)", got.Value)
	}
	if got.RegSrc != RegFp {
		t.Errorf("got RegSrc %d, want RegFp", got.RegSrc)
	}
}

func TestEncodeDecodeConvertCarriesBothDatatypes(t *testing.T) {
	want := Instruction{Op: OpConvert, Datatype: DtS32, DatatypeTo: DtFlt, RegDst: 5, RegSrc: 6}
	got := Decode(Encode(want))
	if got.Datatype != DtS32 || got.DatatypeTo != DtFlt {
		t.Errorf("got from=%s to=%s, want s32/flt", got.Datatype, got.DatatypeTo)
	}
}

func TestEncodeDecodeJalLabelAddress(t *testing.T) {
	want := Instruction{Op: OpJal, Cmp: CmpEq, RegDst: RegPc, Value: Imm(0x1000)}
	got := Decode(Encode(want))
	if got.Cmp != CmpEq || got.Value.Payload != 0x1000 {
		t.Errorf("got %+v, want cmp=eq value=0x1000", got)
	}
}

func TestEncodeDecodeSyscallValue(t *testing.T) {
	want := Instruction{Op: OpSyscall, Value: Imm(uint32(SysPrintInt))}
	got := Decode(Encode(want))
	if got.Op != OpSyscall || got.Value.Payload != uint32(SysPrintInt) {
		t.Errorf("got %+v, want syscall print_int", got)
	}
}

func TestEncodeDecodeZextCarriesWidth(t *testing.T) {
	want := Instruction{Op: OpZext, RegDst: 3, Value: RegValue(4), Width: 16}
	got := Decode(Encode(want))
	if got.Width != 16 || got.Value.Mode != ArgReg || got.Value.Reg != 4 {
		t.Errorf("got %+v, want width=16 reg(4)", got)
	}
}

func TestRegIndirectNegativeOffsetSurvivesPacking(t *testing.T) {
	v := RegIndirect(RegFp, -128)
	packed := valuePayload(v)
	unpacked := unpackValue(ArgRegIndirect, packed)
	if unpacked.Offset != -128 {
		t.Errorf("got offset %d, want -128", unpacked.Offset)
	}
}

func TestDatatypeIsFloatAndIs64(t *testing.T) {
	if !DtFlt.IsFloat() || !DtDbl.IsFloat() {
		t.Error("flt and dbl must report IsFloat true")
	}
	if DtS32.IsFloat() {
		t.Error("s32 must not report IsFloat true")
	}
	if !DtDbl.Is64() || !DtU64.Is64() || !DtS64.Is64() {
		t.Error("dbl/u64/s64 must report Is64 true")
	}
	if DtFlt.Is64() || DtU32.Is64() {
		t.Error("flt/u32 must not report Is64 true")
	}
}
