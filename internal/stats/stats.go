/*
 * subleq - Statistics and profiler reporting.
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

// Package stats implements the dispatcher's -s/-p epilogue: a vm.Counters
// sink that tallies dynamic opcode execution and memory accesses, plus the
// formatting that turns those tallies (and the optimizer's static
// substitution counts) into the statistics table, the profiler summary, and
// the on-disk hot-spot report. No example in the retrieval pack imports a
// third-party table-formatting library, so this uses the standard
// text/tabwriter the way Go CLIs commonly do for aligned plain-text output.
package stats

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/go-subleq/subleq/internal/cell"
	"github.com/go-subleq/subleq/internal/trace"
	"github.com/go-subleq/subleq/internal/vm"
)

// maxOpcode bounds the per-opcode tally arrays; vm.Opcode is a small closed
// enumeration (OpHALT and below), well under this.
const maxOpcode = 32

// Recorder implements vm.Counters, accumulating per-opcode dynamic
// execution counts, a PC heat map, and a running memory-access total.
type Recorder struct {
	dyn    [maxOpcode]uint64
	memory uint64
	heat   map[uint16]uint64
}

// New returns a Recorder ready to install via vm.VM.SetCounters.
func New() *Recorder {
	return &Recorder{heat: make(map[uint16]uint64)}
}

// Instr implements vm.Counters.
func (r *Recorder) Instr(op vm.Opcode, pc uint16) {
	if int(op) < maxOpcode {
		r.dyn[op]++
	}
	r.heat[pc]++
}

// Mem implements vm.Counters.
func (r *Recorder) Mem() {
	r.memory++
}

// TotalInstr returns the total number of dispatched instructions.
func (r *Recorder) TotalInstr() uint64 {
	var total uint64
	for _, n := range r.dyn {
		total += n
	}
	return total
}

// SubstitutionCounts scans the VM's extended-instruction array over
// [0, loadSize) and counts how many addresses were classified as each
// opcode, including the raw-SUBLEQ fallback.
func SubstitutionCounts(v *vm.VM, loadSize int) [maxOpcode]int {
	var counts [maxOpcode]int
	for i := 0; i < loadSize && i < cell.Size; i++ {
		op := v.X[i].Op
		if int(op) < maxOpcode {
			counts[op]++
		}
	}
	return counts
}

var opcodeNames = func() []vm.Opcode {
	ops := []vm.Opcode{
		vm.OpSUBLEQ, vm.OpJMP, vm.OpIJMP, vm.OpMOV, vm.OpADD, vm.OpSUB,
		vm.OpZERO, vm.OpNEG, vm.OpINC, vm.OpDEC, vm.OpINV, vm.OpDOUBLE,
		vm.OpLSHIFT, vm.OpIADD, vm.OpISUB, vm.OpILOAD, vm.OpLDINC,
		vm.OpISTORE, vm.OpPUT, vm.OpGET, vm.OpHALT,
	}
	return ops
}()

// WriteStats renders the -s epilogue: one row per extended opcode with its
// substitution count, dynamic execution count and share of total dynamic
// instructions, followed by grand totals and the wall-clock elapsed time.
func WriteStats(w io.Writer, sub [maxOpcode]int, r *Recorder, elapsed time.Duration) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OPCODE\tSUBSTITUTIONS\tEXECUTED\tPCT")

	total := r.TotalInstr()
	var totalSub int
	for _, op := range opcodeNames {
		totalSub += sub[op]
		pct := 0.0
		if total > 0 {
			pct = 100 * float64(r.dyn[op]) / float64(total)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f%%\n", op, sub[op], r.dyn[op], pct)
	}
	fmt.Fprintf(tw, "TOTAL\t%d\t%d\t100.00%%\n", totalSub, total)
	tw.Flush()
	fmt.Fprintf(w, "elapsed: %.3fs\n", elapsed.Seconds())
}

// hotspot is one entry of the PC heat map, ready to sort and print.
type hotspot struct {
	pc    uint16
	count uint64
}

func (r *Recorder) sortedHeat() []hotspot {
	spots := make([]hotspot, 0, len(r.heat))
	for pc, n := range r.heat {
		spots = append(spots, hotspot{pc, n})
	}
	sort.Slice(spots, func(i, j int) bool {
		if spots[i].count != spots[j].count {
			return spots[i].count > spots[j].count
		}
		return spots[i].pc < spots[j].pc
	})
	return spots
}

// WriteProfiler renders the -p epilogue: totals, throughput, and the ten
// hottest PCs with their opcode.
func WriteProfiler(w io.Writer, r *Recorder, v *vm.VM, elapsed time.Duration) {
	total := r.TotalInstr()
	fmt.Fprintf(w, "total instructions: %d\n", total)
	fmt.Fprintf(w, "total memory accesses: %d\n", r.memory)
	if elapsed > 0 {
		fmt.Fprintf(w, "instructions/sec: %.0f\n", float64(total)/elapsed.Seconds())
	}
	if total > 0 {
		fmt.Fprintf(w, "memory accesses/instruction: %.2f\n", float64(r.memory)/float64(total))
	}

	spots := r.sortedHeat()
	if len(spots) > 10 {
		spots = spots[:10]
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDR\tCOUNT\tPCT\tOPCODE")
	for _, s := range spots {
		pct := 0.0
		if total > 0 {
			pct = 100 * float64(s.count) / float64(total)
		}
		fmt.Fprintf(tw, "%04x\t%d\t%.2f%%\t%s\n", s.pc, s.count, pct, v.X[s.pc].Op)
	}
	tw.Flush()
}

// hotspotThreshold and hotspotLimit bound the on-disk profiler report: only
// addresses executed more than hotspotThreshold times are tracked, and at
// most hotspotLimit of those are written, sorted descending.
const (
	hotspotThreshold = 100
	hotspotLimit     = 64
)

// WriteProfileReport writes the full instruction mix and all tracked hot
// spots to path (conventionally profiler_report.txt in the working
// directory).
func WriteProfileReport(path string, sub [maxOpcode]int, r *Recorder, v *vm.VM) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	defer f.Close()

	tw := tabwriter.NewWriter(f, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "instruction mix:")
	fmt.Fprintln(tw, "OPCODE\tSUBSTITUTIONS\tEXECUTED")
	for _, op := range opcodeNames {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", op, sub[op], r.dyn[op])
	}
	tw.Flush()

	fmt.Fprintln(f)
	fmt.Fprintln(f, "hot spots:")
	spots := r.sortedHeat()
	tw2 := tabwriter.NewWriter(f, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw2, "ADDR\tCOUNT\tOPCODE\tDISASSEMBLY")
	n := 0
	for _, s := range spots {
		if s.count <= hotspotThreshold {
			break
		}
		if n >= hotspotLimit {
			break
		}
		fmt.Fprintf(tw2, "%04x\t%d\t%s\t%s\n", s.pc, s.count, v.X[s.pc].Op, trace.Line(s.pc, v.X[s.pc]))
		n++
	}
	return tw2.Flush()
}
