/*
 * subleq - Extended-instruction disassembler.
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

// Package trace renders one extended-instruction slot as a human-readable
// mnemonic line, in the style of the teacher's opcode disassembler: a
// fixed-width mnemonic column followed by opcode-shaped operands. Used by
// the profiler's hot-spot report so a heat-mapped address reads as code,
// not just a bare number.
package trace

import (
	"fmt"

	"github.com/go-subleq/subleq/internal/vm"
)

// Line formats the extended instruction ins, installed at address pc, as a
// disassembly line.
func Line(pc uint16, ins vm.Instruction) string {
	mnemonic := ins.Op.String() + "          "
	mnemonic = mnemonic[:10]

	switch ins.Op {
	case vm.OpSUBLEQ:
		return fmt.Sprintf("%04x: %s%d,%d,%d", pc, mnemonic, ins.Src, ins.Dst, ins.Aux)
	case vm.OpJMP:
		return fmt.Sprintf("%04x: %s%d (zero %d)", pc, mnemonic, ins.Dst, ins.Src)
	case vm.OpIJMP:
		return fmt.Sprintf("%04x: %s[%d]", pc, mnemonic, ins.Dst)
	case vm.OpMOV, vm.OpADD, vm.OpSUB, vm.OpNEG:
		return fmt.Sprintf("%04x: %s%d,%d", pc, mnemonic, ins.Dst, ins.Src)
	case vm.OpZERO, vm.OpINC, vm.OpDEC, vm.OpINV, vm.OpDOUBLE:
		return fmt.Sprintf("%04x: %s%d", pc, mnemonic, ins.Dst)
	case vm.OpLSHIFT:
		return fmt.Sprintf("%04x: %s%d,#%d", pc, mnemonic, ins.Dst, ins.Src)
	case vm.OpIADD, vm.OpISUB:
		return fmt.Sprintf("%04x: %s[%d],%d", pc, mnemonic, ins.Dst, ins.Src)
	case vm.OpILOAD, vm.OpLDINC:
		return fmt.Sprintf("%04x: %s%d,[%d]", pc, mnemonic, ins.Dst, ins.Src)
	case vm.OpISTORE:
		return fmt.Sprintf("%04x: %s[%d],%d", pc, mnemonic, ins.Dst, ins.Src)
	case vm.OpPUT:
		return fmt.Sprintf("%04x: %s%d", pc, mnemonic, ins.Src)
	case vm.OpGET:
		return fmt.Sprintf("%04x: %s%d", pc, mnemonic, ins.Dst)
	case vm.OpHALT:
		return fmt.Sprintf("%04x: %s", pc, mnemonic)
	default:
		return fmt.Sprintf("%04x: %s???", pc, mnemonic)
	}
}
