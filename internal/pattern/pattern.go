/*
 * subleq - Peephole pattern-matching DSL.
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

// Package pattern implements the small string DSL the optimizer uses to
// recognize multi-instruction SUBLEQ idioms over a memory window. Each
// non-whitespace symbol in a pattern consumes one memory word; whitespace
// is decorative and skipped so patterns can be written in aligned groups
// of three (one raw SUBLEQ instruction per group).
//
// Matching is not a performance path — the optimizer runs it once per
// candidate address at load time — so this is a straightforward
// symbol-by-symbol walk rather than a compiled automaton. The only thing
// worth optimizing is capture-slot bookkeeping: ten numbered slots plus a
// monotonically increasing version counter give O(1) "clear all captures"
// between attempts without reallocating a map per address.
package pattern

import "github.com/go-subleq/subleq/internal/cell"

// Matcher owns the ten numbered capture slots used while testing patterns
// against a memory image. One Matcher is reused across every address the
// optimizer scans.
type Matcher struct {
	m       *cell.Array
	slots   [10]capture
	version uint32
}

type capture struct {
	value   uint16
	version uint32
}

// New returns a Matcher reading words from m.
func New(m *cell.Array) *Matcher {
	return &Matcher{m: m}
}

// Args bundles the side-channel operands a pattern's `%`, `!` and `R`
// symbols consume, in left-to-right order of appearance in the pattern
// string. All three are optional; a pattern with none of those symbols
// can pass a zero Args.
type Args struct {
	Consts []uint16  // values required by each `%`
	Outs   []*uint16 // destinations written by each `!` (never causes failure)
	Slots  []int     // slot indices (0-9) used by each `R`
}

// Try attempts pattern against the memory window starting at base. On
// success it returns true; captured numeric-slot variables are readable
// via Var until the next call to Try. `!` outputs are written whether or
// not the overall match ultimately fails later in the string, matching
// the spec's "never fails" semantics for that symbol — but note Try
// aborts early on the first failing symbol, so later `!`s are simply
// never reached.
func (mm *Matcher) Try(base uint16, pat string, args Args) bool {
	mm.version++
	constIdx, outIdx, slotIdx := 0, 0, 0
	var offset uint16

	for _, r := range pat {
		if r == ' ' {
			continue
		}
		word := mm.m.Get(base + offset)
		ok := true

		switch r {
		case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
			ok = mm.bindOrCheck(int(r-'0'), word)
		case 'Z':
			ok = word == 0
		case 'N':
			ok = word == cell.IOPort
		case '>':
			ok = word == base+offset+1
		case '%':
			if constIdx >= len(args.Consts) {
				ok = false
			} else {
				ok = word == args.Consts[constIdx]
				constIdx++
			}
		case '!':
			if outIdx < len(args.Outs) && args.Outs[outIdx] != nil {
				*args.Outs[outIdx] = word
			}
			outIdx++
		case '?':
			// wildcard, always succeeds
		case 'P':
			ok = word != 0 && word&0x8000 == 0
		case 'M':
			// Every 16-bit cell value is already a valid 16-bit address or
			// equal to the I/O sentinel; kept as a named symbol for
			// patterns that document the constraint even though it is
			// currently a tautology over this architecture's cell width.
			ok = word <= cell.IOPort
		case 'R':
			if slotIdx >= len(args.Slots) {
				ok = false
			} else {
				ok = mm.bindOrCheck(args.Slots[slotIdx], word)
				slotIdx++
			}
		default:
			ok = false
		}

		if !ok {
			return false
		}
		offset++
	}
	return true
}

// bindOrCheck implements the shared semantics of numbered slots and `R`:
// the first reference in a match attempt binds the slot to the current
// word; later references in the same attempt require equality.
func (mm *Matcher) bindOrCheck(slot int, word uint16) bool {
	s := &mm.slots[slot]
	if s.version != mm.version {
		s.version = mm.version
		s.value = word
		return true
	}
	return s.value == word
}

// Var returns the value bound to numbered slot k during the most recent
// Try, whether that attempt matched or not. Reading a slot that was never
// referenced in that attempt returns zero.
func (mm *Matcher) Var(k int) uint16 {
	s := &mm.slots[k]
	if s.version != mm.version {
		return 0
	}
	return s.value
}
