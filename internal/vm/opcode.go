/*
 * subleq - Extended instruction set.
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

// Opcode identifies one extended instruction recognized by the peephole
// optimizer. SUBLEQ is the default/fallback opcode: every address the
// optimizer does not classify keeps its raw three-operand semantics.
type Opcode uint8

const (
	OpSUBLEQ Opcode = iota // raw semantics: M[dst] -= M[src]; branch to aux
	OpJMP                  // M[src] := 0; PC := dst
	OpIJMP                 // PC := M[dst]
	OpMOV                  // M[dst] := M[src]
	OpADD                  // M[dst] := M[dst] + M[src]
	OpSUB                  // M[dst] := M[dst] - M[src]
	OpZERO                 // M[dst] := 0
	OpNEG                  // M[dst] := -M[src]
	OpINC                  // M[dst] := M[dst] + 1
	OpDEC                  // M[dst] := M[dst] - 1
	OpINV                  // M[dst] := ^M[dst]
	OpDOUBLE               // M[dst] := M[dst] << 1
	OpLSHIFT               // M[dst] := M[dst] << src (src is a shift count)
	OpIADD                 // M[M[dst]] := M[M[dst]] + M[src]
	OpISUB                 // M[M[dst]] := M[M[dst]] - M[src]
	OpILOAD                // M[dst] := M[M[src]] (or negated input byte)
	OpLDINC                // ILOAD then M[src]++
	OpISTORE               // M[M[dst]] := M[src]
	OpPUT                  // write low byte of M[src]
	OpGET                  // read a byte into M[dst]
	OpHALT                 // stop execution

	opcodeCount
)

// names mirrors the teacher's disassembler opName table: one mnemonic per
// opcode, used for trace output and the statistics report.
var names = [opcodeCount]string{
	OpSUBLEQ: "SUBLEQ",
	OpJMP:    "JMP",
	OpIJMP:   "IJMP",
	OpMOV:    "MOV",
	OpADD:    "ADD",
	OpSUB:    "SUB",
	OpZERO:   "ZERO",
	OpNEG:    "NEG",
	OpINC:    "INC",
	OpDEC:    "DEC",
	OpINV:    "INV",
	OpDOUBLE: "DOUBLE",
	OpLSHIFT: "LSHIFT",
	OpIADD:   "IADD",
	OpISUB:   "ISUB",
	OpILOAD:  "ILOAD",
	OpLDINC:  "LDINC",
	OpISTORE: "ISTORE",
	OpPUT:    "PUT",
	OpGET:    "GET",
	OpHALT:   "HALT",
}

// String returns the opcode mnemonic, or "???" for an out-of-range value.
func (op Opcode) String() string {
	if int(op) < len(names) {
		return names[op]
	}
	return "???"
}

// advance is the fixed PC increment for opcodes that do not set PC
// themselves. It is the number of memory words (three per raw SUBLEQ
// instruction) the idiom spans, so fusing the idiom away does not change
// where execution resumes. Opcodes absent here (SUBLEQ, JMP, IJMP, HALT)
// compute or hold PC explicitly in their handler; LSHIFT is also absent
// and carries its advance in Aux.
var advance = [opcodeCount]uint16{
	OpMOV:    12,
	OpADD:    9,
	OpSUB:    3,
	OpZERO:   3,
	OpNEG:    6,
	OpINC:    3,
	OpDEC:    3,
	OpINV:    21,
	OpDOUBLE: 9,
	OpIADD:   24,
	OpISUB:   18,
	OpILOAD:  24,
	OpLDINC:  27,
	OpISTORE: 39,
	OpPUT:    3,
	OpGET:    3,
}

// Advance returns the fixed PC increment for op, or 0 for opcodes that set
// PC directly (SUBLEQ, JMP, IJMP, HALT, LSHIFT — whose advance depends on
// the matched run length and is carried in the instruction's Aux field).
func (op Opcode) Advance() uint16 {
	if int(op) < len(advance) {
		return advance[op]
	}
	return 0
}

// Instruction is one entry of the extended-instruction array X: the typed
// opcode plus up to three opcode-dependent 16-bit fields.
type Instruction struct {
	Op  Opcode
	Src uint16 // source address, shift count (LSHIFT), or unused
	Dst uint16 // destination address, or unused
	Aux uint16 // branch target (SUBLEQ) or fixed advance override (LSHIFT)
}
