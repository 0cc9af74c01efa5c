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
package compile

import (
	"encoding/binary"
	"testing"

	"vellum/isa"
	"vellum/vm"
)

// runImage loads a compiled image into a fresh VM core the same way
// cmd/vellumvm does and runs it to completion.
func runImage(t *testing.T, image []byte) *vm.Core {
	t.Helper()
	bus := vm.NewBus(vm.NewDram())
	core := vm.NewCore(bus)
	core.Reset()
	bus.LoadImage(image)

	entryPoint := binary.LittleEndian.Uint64(image[0:8])
	interruptHandler := binary.LittleEndian.Uint64(image[8:16])
	core.RegSet(vm.RegPc, entryPoint)

	exec := vm.NewExecutor(core, interruptHandler)
	exec.Run()
	if code := core.ErrorCode(); code != isa.ErrOK {
		t.Fatalf("vm halted with error %s", code)
	}
	return core
}

func TestCompileSourceAddProducesAValidImage(t *testing.T) {
	result, sink, err := CompileSource("add.vlm", []byte(`
		func add(a: i32, b: i32) -> i32 {
			return a + b;
		}
		func main() {
			let x: i32 = add(1, 2);
		}
	`))
	if err != nil {
		t.Fatalf("compile failed: %v, diagnostics: %+v", err, sink.Messages)
	}
	if len(result.Image) < isa.HeaderSize {
		t.Fatalf("image too small: %d bytes", len(result.Image))
	}
	if (len(result.Image)-isa.HeaderSize)%isa.InstructionSize != 0 {
		t.Errorf("code segment length %d is not a multiple of the instruction size", len(result.Image)-isa.HeaderSize)
	}
	entry := binary.LittleEndian.Uint64(result.Image[0:8])
	if entry < isa.HeaderSize {
		t.Errorf("entry point %d falls inside the header", entry)
	}
}

func TestCompileSourceMissingMainFailsAtEmit(t *testing.T) {
	_, _, err := CompileSource("nomain.vlm", []byte(`
		func f() -> i32 {
			return 1;
		}
	`))
	if err == nil {
		t.Fatal("expected an error: no 'main' function means the entry label is never defined")
	}
}

// TestCompareLessThanBranchesOnTheFalseCase exercises §4.12's predicate
// model end to end: the then-block of "if a < b" must NOT run when a >= b.
// This is the a=5,b=1 case where the inverted branch predicate (CmpGe) has
// to actually be satisfiable to skip the then-block.
func TestCompareLessThanBranchesOnTheFalseCase(t *testing.T) {
	result, sink, err := CompileSource("lt.vlm", []byte(`
		func f(a: i32, b: i32) -> i32 {
			if a < b {
				return a;
			}
			return b;
		}
		func main() -> i32 {
			return f(5, 1);
		}
	`))
	if err != nil {
		t.Fatalf("compile failed: %v, diagnostics: %+v", err, sink.Messages)
	}
	core := runImage(t, result.Image)
	if got := core.Reg(vm.RegRet); got != 1 {
		t.Errorf("expected f(5, 1) to take the false branch and return b=1, got %d", got)
	}
}

// TestCompareEqualBranchesOnTheFalseCase is the "==" analogue: the inverted
// predicate is CmpNe, which must hold when the operands actually differ.
func TestCompareEqualBranchesOnTheFalseCase(t *testing.T) {
	result, sink, err := CompileSource("eq.vlm", []byte(`
		func f(a: i32, b: i32) -> i32 {
			if a == b {
				return a;
			}
			return b;
		}
		func main() -> i32 {
			return f(5, 1);
		}
	`))
	if err != nil {
		t.Fatalf("compile failed: %v, diagnostics: %+v", err, sink.Messages)
	}
	core := runImage(t, result.Image)
	if got := core.Reg(vm.RegRet); got != 1 {
		t.Errorf("expected f(5, 1) to take the false branch and return b=1, got %d", got)
	}
}

// TestValuedCompareOperators exercises !=, <=, >= as bool-materializing
// expressions (not just branch predicates), per §4.8's materializeBool path.
func TestValuedCompareOperators(t *testing.T) {
	result, sink, err := CompileSource("valued_cmp.vlm", []byte(`
		func main() -> i32 {
			let a: i32 = 3;
			let b: i32 = 3;
			let c: i32 = 5;
			let ne: bool = a != b;
			let le: bool = a <= b;
			let ge: bool = c >= a;
			if ne {
				return 1;
			}
			if le {
				if ge {
					return 0;
				}
			}
			return 2;
		}
	`))
	if err != nil {
		t.Fatalf("compile failed: %v, diagnostics: %+v", err, sink.Messages)
	}
	core := runImage(t, result.Image)
	if got := core.Reg(vm.RegRet); got != 0 {
		t.Errorf("expected a!=b false, a<=b true, c>=a true, ret=0, got %d", got)
	}
}

func TestCompileSourceTypeErrorIsReported(t *testing.T) {
	_, sink, err := CompileSource("badtype.vlm", []byte(`
		func main() {
			return y;
		}
	`))
	if err == nil {
		t.Fatal("expected compilation to fail on an undeclared symbol")
	}
	if !sink.HasErrors() {
		t.Fatal("expected at least one error diagnostic")
	}
}
