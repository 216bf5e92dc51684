/*
 * subleq - Opcode handlers.
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

package vm

import (
	"errors"
	"io"

	"github.com/go-subleq/subleq/internal/cell"
)

// handler executes one extended instruction and returns the PC to
// transfer control to next. Handlers that halt or fault set v.halted or
// v.err themselves; Run/Step check those before trusting the returned PC.
type handler func(v *VM, ins Instruction) uint16

// dispatch is the opcode -> handler function-pointer table, built once at
// package init the way the teacher's createTable builds its 256-entry
// opcode table. Indexing by Opcode and calling straight through keeps the
// loop in VM.Run a single flat dispatch with no recursion.
var dispatch [opcodeCount]handler

func init() {
	dispatch[OpSUBLEQ] = opSUBLEQ
	dispatch[OpJMP] = opJMP
	dispatch[OpIJMP] = opIJMP
	dispatch[OpMOV] = opMOV
	dispatch[OpADD] = opADD
	dispatch[OpSUB] = opSUB
	dispatch[OpZERO] = opZERO
	dispatch[OpNEG] = opNEG
	dispatch[OpINC] = opINC
	dispatch[OpDEC] = opDEC
	dispatch[OpINV] = opINV
	dispatch[OpDOUBLE] = opDOUBLE
	dispatch[OpLSHIFT] = opLSHIFT
	dispatch[OpIADD] = opIADD
	dispatch[OpISUB] = opISUB
	dispatch[OpILOAD] = opILOAD
	dispatch[OpLDINC] = opLDINC
	dispatch[OpISTORE] = opISTORE
	dispatch[OpPUT] = opPUT
	dispatch[OpGET] = opGET
	dispatch[OpHALT] = opHALT
}

// getByte reads one input byte. EOF is a clean halt (spec §7); any other
// error sets the VM's fault flag so the process exits non-zero.
func (v *VM) getByte() (uint16, bool) {
	for {
		b, err := v.In.ReadByte()
		if err == nil {
			return uint16(b), true
		}
		if errors.Is(err, io.EOF) {
			v.halted = true
			return 0, false
		}
		if errors.Is(err, io.ErrClosedPipe) {
			v.halted = true
			return 0, false
		}
		v.err = err
		return 0, false
	}
}

// putByte writes one output byte. Any failure is a fault.
func (v *VM) putByte(b uint16) bool {
	if err := v.Out.WriteByte(byte(b)); err != nil {
		v.err = err
		return false
	}
	return true
}

// opSUBLEQ implements the canonical three-operand step: operands are
// named (src, dst, aux) matching the instruction fields, playing the role
// of (a, b, c) in the spec's "subtract and branch if less than or equal
// to zero" definition.
//
// Unlike every other handler, this one ignores the pre-decoded ins and
// re-fetches src/dst/aux from M[pc], M[pc+1], M[pc+2] on every step. Raw
// SUBLEQ is the one opcode a program can target with self-modifying code
// (that's the whole mechanism tryIADD/tryISUB/tryISTORE/tryIJMP/tryILOAD
// recognize): InstallDefault's v.X snapshot is taken once at load time, so
// consulting ins here would run the operands as they were before any
// patch, never the patched address the program just computed and wrote.
func opSUBLEQ(v *VM, _ Instruction) uint16 {
	pc := v.PC
	src := v.read(pc)
	dst := v.read(pc + 1)
	aux := v.read(pc + 2)

	if src == cell.IOPort {
		b, ok := v.getByte()
		if !ok {
			return 0
		}
		v.write(dst, b)
		return pc + 3
	}
	if dst == cell.IOPort {
		if !v.putByte(v.read(src)) {
			return 0
		}
		return pc + 3
	}

	r := v.read(dst) - v.read(src)
	v.write(dst, r)
	if cell.IsNegative(r) {
		return aux
	}
	return pc + 3
}

func opJMP(v *VM, ins Instruction) uint16 {
	v.write(ins.Src, 0)
	return ins.Dst
}

func opIJMP(v *VM, ins Instruction) uint16 {
	return v.read(ins.Dst)
}

func opMOV(v *VM, ins Instruction) uint16 {
	v.write(ins.Dst, v.read(ins.Src))
	return v.PC + OpMOV.Advance()
}

func opADD(v *VM, ins Instruction) uint16 {
	v.write(ins.Dst, v.read(ins.Dst)+v.read(ins.Src))
	return v.PC + OpADD.Advance()
}

func opSUB(v *VM, ins Instruction) uint16 {
	v.write(ins.Dst, v.read(ins.Dst)-v.read(ins.Src))
	return v.PC + OpSUB.Advance()
}

func opZERO(v *VM, ins Instruction) uint16 {
	v.write(ins.Dst, 0)
	return v.PC + OpZERO.Advance()
}

func opNEG(v *VM, ins Instruction) uint16 {
	v.write(ins.Dst, -v.read(ins.Src))
	return v.PC + OpNEG.Advance()
}

func opINC(v *VM, ins Instruction) uint16 {
	v.write(ins.Dst, v.read(ins.Dst)+1)
	return v.PC + OpINC.Advance()
}

func opDEC(v *VM, ins Instruction) uint16 {
	v.write(ins.Dst, v.read(ins.Dst)-1)
	return v.PC + OpDEC.Advance()
}

func opINV(v *VM, ins Instruction) uint16 {
	v.write(ins.Dst, ^v.read(ins.Dst))
	return v.PC + OpINV.Advance()
}

func opDOUBLE(v *VM, ins Instruction) uint16 {
	v.write(ins.Dst, v.read(ins.Dst)<<1)
	return v.PC + OpDOUBLE.Advance()
}

// opLSHIFT's advance is dynamic (9 words, three raw instructions, per
// shifted bit), so the
// optimizer precomputes it into Aux rather than consulting the static
// per-opcode advance table.
func opLSHIFT(v *VM, ins Instruction) uint16 {
	v.write(ins.Dst, v.read(ins.Dst)<<ins.Src)
	return v.PC + ins.Aux
}

func opIADD(v *VM, ins Instruction) uint16 {
	ptr := v.read(ins.Dst)
	v.write(ptr, v.read(ptr)+v.read(ins.Src))
	return v.PC + OpIADD.Advance()
}

func opISUB(v *VM, ins Instruction) uint16 {
	ptr := v.read(ins.Dst)
	v.write(ptr, v.read(ptr)-v.read(ins.Src))
	return v.PC + OpISUB.Advance()
}

// opILOAD mirrors the raw SUBLEQ preamble an ILOAD idiom replaces: the
// fused idiom clears the destination then subtracts the read byte from it,
// so reading from the I/O sentinel must store the two's-complement
// negation of the byte, not the byte itself (spec §9, open question).
func opILOAD(v *VM, ins Instruction) uint16 {
	if !loadIndirect(v, ins.Src, ins.Dst) {
		return 0
	}
	return v.PC + OpILOAD.Advance()
}

func opLDINC(v *VM, ins Instruction) uint16 {
	if !loadIndirect(v, ins.Src, ins.Dst) {
		return 0
	}
	v.write(ins.Src, v.read(ins.Src)+1)
	return v.PC + OpLDINC.Advance()
}

func loadIndirect(v *VM, src, dst uint16) bool {
	ptr := v.read(src)
	if ptr == cell.IOPort {
		b, ok := v.getByte()
		if !ok {
			return false
		}
		v.write(dst, -b)
		return true
	}
	v.write(dst, v.read(ptr))
	return true
}

func opISTORE(v *VM, ins Instruction) uint16 {
	v.write(v.read(ins.Dst), v.read(ins.Src))
	return v.PC + OpISTORE.Advance()
}

func opPUT(v *VM, ins Instruction) uint16 {
	if !v.putByte(v.read(ins.Src)) {
		return 0
	}
	return v.PC + OpPUT.Advance()
}

func opGET(v *VM, ins Instruction) uint16 {
	b, ok := v.getByte()
	if !ok {
		return 0
	}
	v.write(ins.Dst, b)
	return v.PC + OpGET.Advance()
}

func opHALT(v *VM, _ Instruction) uint16 {
	v.halted = true
	return 0
}
