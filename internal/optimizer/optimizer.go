/*
 * subleq - Peephole superoptimizer.
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

// Package optimizer implements the one-shot peephole pass that scans a
// freshly loaded image and classifies each address as one extended opcode,
// fusing recognized multi-instruction SUBLEQ idioms into a single typed
// instruction the dispatcher executes in one step.
//
// The pass never mutates the cell array; it only populates the VM's
// extended-instruction array. Addresses it does not recognize keep the
// raw-SUBLEQ classification vm.New already installed.
package optimizer

import (
	"github.com/go-subleq/subleq/internal/cell"
	"github.com/go-subleq/subleq/internal/pattern"
	"github.com/go-subleq/subleq/internal/vm"
)

// Optimize classifies every address in [0, loadSize) against the pattern
// catalog in priority order and installs the winning opcode into v.X.
// Addresses outside the loaded region, and addresses within it that match
// no pattern, are left as raw SUBLEQ.
func Optimize(v *vm.VM, loadSize int) {
	c := newClassifier(v.M)
	for i := 0; i < loadSize && i < cell.Size; i++ {
		pc := uint16(i)
		if ins, ok := c.classify(pc); ok {
			v.X[pc] = ins
		}
	}
}

// classifier holds the snapshot tables and the reusable pattern matcher
// used across every address in one optimization pass.
type classifier struct {
	m        *cell.Array
	mt       *pattern.Matcher
	isZero   [cell.Size]bool
	isOne    [cell.Size]bool
	isNegOne [cell.Size]bool
}

func newClassifier(m *cell.Array) *classifier {
	c := &classifier{m: m, mt: pattern.New(m)}
	for i := 0; i < cell.Size; i++ {
		v := m.Get(uint16(i))
		c.isZero[i] = v == 0
		c.isOne[i] = v == 1
		c.isNegOne[i] = v == cell.IOPort
	}
	return c
}

// classify tries every pattern in the priority order laid out by the
// optimizer design, returning the first match. The order matters: several
// idioms share a structural prefix with a more specific idiom that must be
// tried first (ILOAD/LDINC before MOV, LSHIFT before DOUBLE/ADD, and so
// on).
func (c *classifier) classify(pc uint16) (vm.Instruction, bool) {
	for _, try := range []func(uint16) (vm.Instruction, bool){
		c.tryISTORE,
		c.tryILOADorLDINC,
		c.tryLSHIFT,
		c.tryIADD,
		c.tryINV,
		c.tryISUB,
		c.tryIJMP,
		c.tryMOV,
		c.tryDOUBLEorADD,
		c.tryNEG,
		c.tryZERO,
		c.tryHALT,
		c.tryJMP,
		c.tryGET,
		c.tryPUT,
		c.tryINCDECorSUB,
	} {
		if ins, ok := try(pc); ok {
			return ins, true
		}
	}
	return vm.Instruction{}, false
}

// tryISTORE matches the indirect-store idiom: negate M[Dst] (the
// address-of-pointer cell) into a scratch temp, then patch both operand
// fields of a self-zeroing SUBLEQ with that pointer value so it zeros
// M[M[Dst]] in place, then patch a second SUBLEQ's dst field the same way
// to subtract -M[Src] back through it, landing M[Src]'s value at
// M[M[Dst]]. Three pc-relative self-references confirm the patched fields
// are genuinely the operand positions of the two patched instructions that
// follow, the same structural proof tryIJMP uses for its own self-jump.
func (c *classifier) tryISTORE(pc uint16) (vm.Instruction, bool) {
	if !c.mt.Try(pc, "00> 10> 22> 02> 33> 03> ??> 44> 54> 66> 06> 4?> 00>", pattern.Args{}) {
		return vm.Instruction{}, false
	}
	if c.mt.Var(2) != pc+18 || c.mt.Var(3) != pc+19 || c.mt.Var(6) != pc+34 {
		return vm.Instruction{}, false
	}
	return vm.Instruction{Op: vm.OpISTORE, Dst: c.mt.Var(1), Src: c.mt.Var(5)}, true
}

// tryILOADorLDINC matches the indirect-load preamble, then peeks ahead for
// the trailing increment idiom that upgrades ILOAD to LDINC.
func (c *classifier) tryILOADorLDINC(pc uint16) (vm.Instruction, bool) {
	var ptr uint16
	if !c.mt.Try(pc, "00> !Z> Z0> ZZ> 11> ?Z> Z1> ZZ>", pattern.Args{Outs: []*uint16{&ptr}}) {
		return vm.Instruction{}, false
	}
	if c.mt.Var(0) != pc+15 {
		return vm.Instruction{}, false
	}
	dst := c.mt.Var(1)

	var a, b uint16
	if c.mt.Try(pc+24, "!!>", pattern.Args{Outs: []*uint16{&a, &b}}) {
		if a != b && c.isNegOne[a] && b == ptr {
			return vm.Instruction{Op: vm.OpLDINC, Src: ptr, Dst: dst}, true
		}
	}
	return vm.Instruction{Op: vm.OpILOAD, Src: ptr, Dst: dst}, true
}

// tryLSHIFT greedily consumes consecutive DOUBLE-shaped runs of the same
// address, starting at pc. Two or more runs collapse into one LSHIFT whose
// Aux carries the precomputed dynamic advance (9 * run length).
func (c *classifier) tryLSHIFT(pc uint16) (vm.Instruction, bool) {
	var addr uint16
	count := 0
	base := pc
	for {
		var a, b uint16
		if !c.mt.Try(base, "!Z> Z!> ZZ>", pattern.Args{Outs: []*uint16{&a, &b}}) {
			break
		}
		if a != b {
			break
		}
		if count == 0 {
			addr = a
		} else if a != addr {
			break
		}
		count++
		base += 9
	}
	if count < 2 {
		return vm.Instruction{}, false
	}
	return vm.Instruction{Op: vm.OpLSHIFT, Dst: addr, Src: uint16(count), Aux: uint16(9 * count)}, true
}

// tryIADD matches the indirect-add idiom: negate M[Dst] into a scratch
// temp, negate M[Src] into a second scratch, patch a trailing SUBLEQ's dst
// field with the (un-negated) pointer value, then let that patched
// instruction subtract the negated addend through it, landing M[Src]'s
// value added onto M[M[Dst]]. The pc-relative check on the patched field
// slot confirms the patch lands on that instruction's own dst operand.
func (c *classifier) tryIADD(pc uint16) (vm.Instruction, bool) {
	if !c.mt.Try(pc, "00> 10> 22> 32> 44> 04> 2?> 00>", pattern.Args{}) {
		return vm.Instruction{}, false
	}
	if c.mt.Var(4) != pc+19 {
		return vm.Instruction{}, false
	}
	return vm.Instruction{Op: vm.OpIADD, Dst: c.mt.Var(1), Src: c.mt.Var(3)}, true
}

func (c *classifier) tryINV(pc uint16) (vm.Instruction, bool) {
	var last uint16
	if !c.mt.Try(pc, "00> 10> 11> 2Z> Z1> ZZ> !1>", pattern.Args{Outs: []*uint16{&last}}) {
		return vm.Instruction{}, false
	}
	if !c.isOne[last] {
		return vm.Instruction{}, false
	}
	return vm.Instruction{Op: vm.OpINV, Dst: c.mt.Var(1)}, true
}

// tryISUB matches the indirect-subtract idiom: negate M[Dst] into a
// scratch temp, patch a trailing SUBLEQ's dst field with the pointer
// value, then let that patched instruction subtract M[Src] straight
// through it (no sign flip needed — SUBLEQ already subtracts), landing
// M[Src]'s value subtracted from M[M[Dst]]. The pc-relative check
// confirms the patch targets that instruction's own dst operand.
func (c *classifier) tryISUB(pc uint16) (vm.Instruction, bool) {
	if !c.mt.Try(pc, "00> 10> 22> 02> 3?> 00>", pattern.Args{}) {
		return vm.Instruction{}, false
	}
	if c.mt.Var(2) != pc+13 {
		return vm.Instruction{}, false
	}
	return vm.Instruction{Op: vm.OpISUB, Dst: c.mt.Var(1), Src: c.mt.Var(3)}, true
}

func (c *classifier) tryIJMP(pc uint16) (vm.Instruction, bool) {
	var target uint16
	if !c.mt.Try(pc, "00> !Z> Z0> ZZ> ZZ>", pattern.Args{Outs: []*uint16{&target}}) {
		return vm.Instruction{}, false
	}
	if c.mt.Var(0) != pc+14 {
		return vm.Instruction{}, false
	}
	return vm.Instruction{Op: vm.OpIJMP, Dst: target}, true
}

// tryMOV matches a four-group self-zero/negate/restore idiom: group1
// zeros the digit-captured slot, group2/3 route -M[out] through scratch
// cell 0 into it, group4 re-zeros the scratch cell. The net raw effect is M[Var(0)] := M[out] — the value moves
// out of the `!`-captured address into the digit-captured one, so the
// fused form's Src is the `!`-captured address and Dst is Var(0), not the
// other way around.
func (c *classifier) tryMOV(pc uint16) (vm.Instruction, bool) {
	var out uint16
	if !c.mt.Try(pc, "00> !Z> Z0> ZZ>", pattern.Args{Outs: []*uint16{&out}}) {
		return vm.Instruction{}, false
	}
	target := c.mt.Var(0)
	if target == out {
		return vm.Instruction{}, false
	}
	return vm.Instruction{Op: vm.OpMOV, Src: out, Dst: target}, true
}

func (c *classifier) tryDOUBLEorADD(pc uint16) (vm.Instruction, bool) {
	var a, b uint16
	if !c.mt.Try(pc, "!Z> Z!> ZZ>", pattern.Args{Outs: []*uint16{&a, &b}}) {
		return vm.Instruction{}, false
	}
	if a == b {
		return vm.Instruction{Op: vm.OpDOUBLE, Dst: a}, true
	}
	// Raw execution of "!Z> Z!> ZZ>" sums into the second captured address,
	// not the first: group2 subtracts -M[a] into b. Dst must be b.
	return vm.Instruction{Op: vm.OpADD, Dst: b, Src: a}, true
}

func (c *classifier) tryNEG(pc uint16) (vm.Instruction, bool) {
	if !c.mt.Try(pc, "00> 10>", pattern.Args{}) {
		return vm.Instruction{}, false
	}
	return vm.Instruction{Op: vm.OpNEG, Dst: c.mt.Var(0), Src: c.mt.Var(1)}, true
}

func (c *classifier) tryZERO(pc uint16) (vm.Instruction, bool) {
	if !c.mt.Try(pc, "00>", pattern.Args{}) {
		return vm.Instruction{}, false
	}
	return vm.Instruction{Op: vm.OpZERO, Dst: c.mt.Var(0)}, true
}

func (c *classifier) tryHALT(pc uint16) (vm.Instruction, bool) {
	var last uint16
	if !c.mt.Try(pc, "ZZ!", pattern.Args{Outs: []*uint16{&last}}) {
		return vm.Instruction{}, false
	}
	if last != cell.IOPort {
		return vm.Instruction{}, false
	}
	return vm.Instruction{Op: vm.OpHALT}, true
}

func (c *classifier) tryJMP(pc uint16) (vm.Instruction, bool) {
	var target uint16
	if !c.mt.Try(pc, "00!", pattern.Args{Outs: []*uint16{&target}}) {
		return vm.Instruction{}, false
	}
	if target == pc {
		return vm.Instruction{Op: vm.OpHALT}, true
	}
	return vm.Instruction{Op: vm.OpJMP, Dst: target, Src: c.mt.Var(0)}, true
}

func (c *classifier) tryGET(pc uint16) (vm.Instruction, bool) {
	var dst uint16
	if !c.mt.Try(pc, "N!>", pattern.Args{Outs: []*uint16{&dst}}) {
		return vm.Instruction{}, false
	}
	return vm.Instruction{Op: vm.OpGET, Dst: dst}, true
}

func (c *classifier) tryPUT(pc uint16) (vm.Instruction, bool) {
	var src uint16
	if !c.mt.Try(pc, "!N>", pattern.Args{Outs: []*uint16{&src}}) {
		return vm.Instruction{}, false
	}
	return vm.Instruction{Op: vm.OpPUT, Src: src}, true
}

func (c *classifier) tryINCDECorSUB(pc uint16) (vm.Instruction, bool) {
	var a, b uint16
	if !c.mt.Try(pc, "!!>", pattern.Args{Outs: []*uint16{&a, &b}}) {
		return vm.Instruction{}, false
	}
	if a == b {
		return vm.Instruction{}, false
	}
	switch {
	case c.isNegOne[a]:
		return vm.Instruction{Op: vm.OpINC, Dst: b}, true
	case c.isOne[a]:
		return vm.Instruction{Op: vm.OpDEC, Dst: b}, true
	default:
		return vm.Instruction{Op: vm.OpSUB, Dst: b, Src: a}, true
	}
}
