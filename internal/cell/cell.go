/*
 * subleq - 16-bit cell array and address arithmetic.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package cell implements the 65,536-word memory of a 16-bit SUBLEQ machine.
package cell

const (
	// Size is the number of addressable cells. Fixed by the architecture;
	// SUBLEQ addresses are 16 bits wide.
	Size = 1 << 16

	// Mask keeps any address or arithmetic result within the 16-bit space.
	Mask = Size - 1

	// IOPort is the operand sentinel meaning "the input/output port"
	// rather than a memory address.
	IOPort = 0xFFFF

	// HaltPC is the first address outside the valid program range. The
	// Forth image convention halts execution once PC reaches this value,
	// half of the address space, rather than only on out-of-range jumps.
	HaltPC = Size / 2
)

// Array is the flat 16-bit cell store. All indices are taken modulo Size by
// the caller via Mask; Array itself never bounds-checks beyond what the Go
// runtime does for a fixed-size array.
type Array [Size]uint16

// Get returns the cell at addr, masking addr to 16 bits first.
func (m *Array) Get(addr uint16) uint16 {
	return m[addr&Mask]
}

// Set stores value at addr, masking addr to 16 bits first.
func (m *Array) Set(addr, value uint16) {
	m[addr&Mask] = value
}

// Load copies a signed image into the array starting at address 0 and
// returns the number of cells written. Values are reduced modulo 2^16,
// matching the wrap-around arithmetic used everywhere else in the machine.
func (m *Array) Load(image []int32) int {
	for i, v := range image {
		m[i&Mask] = uint16(uint32(v))
	}
	return len(image)
}

// IsNegative reports whether a 16-bit result is "less than or equal to
// zero" under the SUBLEQ branch predicate: zero, or top bit set.
func IsNegative(v uint16) bool {
	return v == 0 || v&0x8000 != 0
}

// InRange reports whether pc is still inside the executable program space.
// The machine halts once PC reaches HaltPC or beyond.
func InRange(pc uint16) bool {
	return pc < HaltPC
}
