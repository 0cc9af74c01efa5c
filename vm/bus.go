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

// Bus is the range-checking facade in front of Dram (§4.10: "all accesses
// are range-checked upstream [by the core], by V3"). Core consults Bus and
// raises a segfault itself on a miss; Bus's own Valid is the single source
// of truth for what "in range" means so both directions agree.
type Bus struct {
	dram *Dram
}

func NewBus(dram *Dram) *Bus {
	return &Bus{dram: dram}
}

// Valid reports whether [addr, addr+size) lies entirely within DRAM.
func (b *Bus) Valid(addr uint64, size int) bool {
	return addr < DramSize && addr+uint64(size) <= DramSize
}

func (b *Bus) Load(addr uint64, size int) uint64 {
	return b.dram.Load(addr, size)
}

func (b *Bus) Store(addr uint64, size int, value uint64) {
	b.dram.Store(addr, size, value)
}

func (b *Bus) Clear() {
	b.dram.Clear()
}

func (b *Bus) LoadImage(data []byte) {
	b.dram.LoadImage(data)
}
