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

// DramSize is the fixed backing store, 1 MiB, per §4.10.
const DramSize = 1 << 20

// Dram is the fixed-size byte-addressable backing array. Unlike
// original_source's dram.c (which keys load/store on a bit-width 8/16/32/64),
// this port keys on a byte count 1/2/4/8 — the idiomatic unit for Go's
// encoding/binary helpers, and the one spec.md's prose itself uses.
type Dram struct {
	mem [DramSize]byte
}

func NewDram() *Dram {
	return &Dram{}
}

// Load assembles size bytes starting at addr, little-endian. The caller
// (Bus) is responsible for range-checking addr+size against DramSize.
func (d *Dram) Load(addr uint64, size int) uint64 {
	var v uint64
	for i := 0; i < size; i++ {
		v |= uint64(d.mem[addr+uint64(i)]) << (8 * uint(i))
	}
	return v
}

// Store disassembles value into size bytes at addr, little-endian.
func (d *Dram) Store(addr uint64, size int, value uint64) {
	for i := 0; i < size; i++ {
		d.mem[addr+uint64(i)] = byte(value >> (8 * uint(i)))
	}
}

func (d *Dram) Clear() {
	for i := range d.mem {
		d.mem[i] = 0
	}
}

// LoadImage copies the whole binary image, 16-byte header included, starting
// at address 0; the code/data segment therefore begins at isa.HeaderSize,
// which is where the emitter places the first instruction.
func (d *Dram) LoadImage(data []byte) {
	copy(d.mem[:], data)
}
