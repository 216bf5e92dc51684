/*
 * subleq - VM state and tail-chained dispatcher.
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

// Package vm implements the raw SUBLEQ semantics, the extended instruction
// set the peephole optimizer emits, and the tail-chained dispatch loop that
// executes either one.
package vm

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/go-subleq/subleq/internal/cell"
	"github.com/go-subleq/subleq/internal/ioport"
)

// ErrInputClosed names the condition where the input stream reaches EOF
// while a GET/ILOAD/LDINC/raw-input instruction is blocked on it. Run does
// not return it: EOF halts the VM cleanly and Err reports nil.
var ErrInputClosed = errors.New("subleq: input closed")

// VM holds everything the dispatcher needs: the cell array, the extended
// instruction array installed by the optimizer (or left all-SUBLEQ when
// -O disables it), the program counter, and the I/O streams.
//
// The machine is single-threaded and synchronous by design (spec §5): one
// PC, one cell array, no locks, no goroutines touching VM state.
type VM struct {
	M *cell.Array
	X [cell.Size]Instruction

	PC uint16

	In  ioport.Input
	Out ioport.Output

	counters Counters

	halted bool
	err    error

	// interrupted is polled once per dispatch step so an external SIGINT
	// handler can request a clean stop without touching VM state itself.
	// It is set from a separate signal-handling goroutine, so it must be
	// an atomic.Bool rather than a plain bool.
	interrupted *atomic.Bool

	elapsed time.Duration
}

// New creates a VM over an already-loaded cell array and calls
// InstallDefault, so X starts as raw SUBLEQ at every address.
func New(m *cell.Array, in ioport.Input, out ioport.Output) *VM {
	v := &VM{
		M:        m,
		In:       in,
		Out:      out,
		counters: Null,
	}
	v.InstallDefault()
	return v
}

// InstallDefault resets X so every address executes as raw SUBLEQ on
// M[pc], M[pc+1], M[pc+2]. New calls it; the optimizer then overwrites
// only the addresses it classifies, and running with -O skips the
// optimizer and leaves this in place.
func (v *VM) InstallDefault() {
	for i := 0; i < cell.Size; i++ {
		pc := uint16(i)
		v.X[i] = Instruction{
			Op:  OpSUBLEQ,
			Src: v.M.Get(pc),
			Dst: v.M.Get(pc + 1),
			Aux: v.M.Get(pc + 2),
		}
	}
}

// SetCounters installs the Counters sink used by the statistics/profiler
// epilogue. Passing nil restores the no-op default.
func (v *VM) SetCounters(c Counters) {
	if c == nil {
		c = Null
	}
	v.counters = c
}

// SetInterruptFlag wires an external cancellation flag (set by a SIGINT
// handler) that the dispatch loop polls once per step.
func (v *VM) SetInterruptFlag(flag *atomic.Bool) {
	v.interrupted = flag
}

// Err returns the error that stopped the VM, if execution ended because of
// an I/O failure rather than a clean halt.
func (v *VM) Err() error {
	return v.err
}

// SetElapsed records the wall-clock duration of the most recent Run, for
// the statistics/profiler epilogue's instructions-per-second figure.
func (v *VM) SetElapsed(d time.Duration) {
	v.elapsed = d
}

// Elapsed returns the duration recorded by SetElapsed.
func (v *VM) Elapsed() time.Duration {
	return v.elapsed
}

func (v *VM) read(addr uint16) uint16 {
	v.counters.Mem()
	return v.M.Get(addr)
}

func (v *VM) write(addr, value uint16) {
	v.counters.Mem()
	v.M.Set(addr, value)
}

// Run executes instructions starting at the VM's current PC until a HALT
// opcode runs, the PC leaves the valid program range (cell.HaltPC), an I/O
// stream fails, or the caller's interrupt flag is set. This is the single
// top-level loop the design notes call for: bounded stack regardless of
// how many instructions execute, because no handler recurses or calls Run.
func (v *VM) Run() {
	for {
		ins := v.X[v.PC]
		next := dispatch[ins.Op](v, ins)

		v.counters.Instr(ins.Op, v.PC)

		if v.halted || v.err != nil {
			return
		}
		if v.interrupted != nil && v.interrupted.Load() {
			return
		}
		if !cell.InRange(next) {
			return
		}
		v.PC = next
	}
}

// Step executes exactly one dispatch step from the current PC and reports
// whether the VM should keep running. It exists so tests (and the
// equivalence-invariant check between optimized and -O runs) can bound the
// number of instructions executed without duplicating Run's halt logic.
func (v *VM) Step() bool {
	ins := v.X[v.PC]
	next := dispatch[ins.Op](v, ins)
	v.counters.Instr(ins.Op, v.PC)

	if v.halted || v.err != nil {
		return false
	}
	if v.interrupted != nil && v.interrupted.Load() {
		return false
	}
	if !cell.InRange(next) {
		return false
	}
	v.PC = next
	return true
}
