package optimizer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-subleq/subleq/internal/cell"
	"github.com/go-subleq/subleq/internal/ioport"
	"github.com/go-subleq/subleq/internal/vm"
)

func buildVM(image []int32, input string) *vm.VM {
	var m cell.Array
	n := m.Load(image)
	out := &bytes.Buffer{}
	v := vm.New(&m, ioport.New(strings.NewReader(input), out), ioport.New(strings.NewReader(""), out))
	Optimize(v, n)
	return v
}

// Equivalence: optimizing a program must not change the memory state it
// produces compared to running the same image as raw SUBLEQ (the -O path).
// Exercises the ZERO and HALT idioms together under both modes.
func TestEquivalenceOptimizedVsRaw(t *testing.T) {
	image := []int32{20, 20, 3, 0, 0, -1}

	var mOpt cell.Array
	nOpt := mOpt.Load(image)
	outOpt := &bytes.Buffer{}
	vOpt := vm.New(&mOpt, ioport.New(strings.NewReader(""), outOpt), ioport.New(strings.NewReader(""), outOpt))
	Optimize(vOpt, nOpt)
	vOpt.M.Set(20, 42)
	vOpt.Run()

	var mRaw cell.Array
	mRaw.Load(image)
	outRaw := &bytes.Buffer{}
	vRaw := vm.New(&mRaw, ioport.New(strings.NewReader(""), outRaw), ioport.New(strings.NewReader(""), outRaw))
	vRaw.M.Set(20, 42)
	vRaw.Run()

	if vOpt.M.Get(20) != vRaw.M.Get(20) {
		t.Fatalf("optimized M[20] = %d, raw M[20] = %d", vOpt.M.Get(20), vRaw.M.Get(20))
	}
	if outOpt.String() != outRaw.String() {
		t.Fatalf("optimized output %q, raw output %q", outOpt.String(), outRaw.String())
	}
}

// scratchBase is where TestEquivalenceScratchIdioms loads each idiom's
// program text. Every idiom below uses literal address 0 as a pre-zeroed
// scratch cell (the 'Z' symbol throughout the pattern DSL); loading at pc 0
// would put that scratch cell inside the program's own first word, so the
// idiom would corrupt its own text the moment raw execution writes through
// it. Loading at a base far above every operand address keeps address 0
// genuinely free, the way a real image reserves low memory for scratch.
const scratchBase = 2000

// pokeAt writes words into m starting at base, bypassing cell.Array.Load
// (which always starts at index 0).
func pokeAt(m *cell.Array, base uint16, words []int32) {
	for i, w := range words {
		m.Set(base+uint16(i), uint16(w))
	}
}

// TestEquivalenceScratchIdioms strengthens the equivalence check beyond a
// single ZERO+HALT: each case below runs a genuine multi-instruction
// scratch-register idiom (ADD, MOV, IADD, ISUB, ISTORE) as raw, unoptimized
// SUBLEQ word-by-word, and separately through its fused opcode, then diffs
// the address each idiom writes. Every idiom here was constructed so each
// triple's branch target equals its own fallthrough address, so raw
// stepping always advances exactly 3 words regardless of the branch taken.
// Branch targets and any pc-relative self-modifying-code fields are written
// relative to scratchBase, not 0, matching where the idiom is loaded.
func TestEquivalenceScratchIdioms(t *testing.T) {
	b := int32(scratchBase)
	cases := []struct {
		name      string
		image     []int32
		rawSteps  int
		setup     func(v *vm.VM)
		checkAddr uint16
		want      uint16
	}{
		{
			name:     "ADD",
			image:    []int32{20, 0, b + 3, 0, 21, b + 6, 0, 0, b + 9},
			rawSteps: 3,
			setup: func(v *vm.VM) {
				v.M.Set(20, 5)
				v.M.Set(21, 100)
			},
			checkAddr: 21,
			want:      105,
		},
		{
			name: "MOV",
			image: []int32{
				10, 10, b + 3, 20, 0, b + 6, 0, 10, b + 9, 0,
				0, b + 12,
			},
			rawSteps: 4,
			setup: func(v *vm.VM) {
				v.M.Set(20, 77)
			},
			checkAddr: 10,
			want:      77,
		},
		{
			name: "IADD",
			image: []int32{
				50, 50, b + 3, 60, 50, b + 6, 51, 51, b + 9, 61,
				51, b + 12, b + 19, b + 19, b + 15, 50, b + 19, b + 18, 51, 0,
				b + 21, 50, 50, b + 24,
			},
			rawSteps: 8,
			setup: func(v *vm.VM) {
				v.M.Set(60, 300)
				v.M.Set(300, 5)
				v.M.Set(61, 7)
			},
			checkAddr: 300,
			want:      12,
		},
		{
			name: "ISUB",
			image: []int32{
				70, 70, b + 3, 80, 70, b + 6, b + 13, b + 13, b + 9, 70,
				b + 13, b + 12, 81, 0, b + 15, 70, 70, b + 18,
			},
			rawSteps: 6,
			setup: func(v *vm.VM) {
				v.M.Set(80, 400)
				v.M.Set(400, 50)
				v.M.Set(81, 8)
			},
			checkAddr: 400,
			want:      42,
		},
		{
			name: "ISTORE",
			image: []int32{
				90, 90, b + 3, 100, 90, b + 6, b + 18, b + 18, b + 9, 90,
				b + 18, b + 12, b + 19, b + 19, b + 15, 90, b + 19, b + 18, 0, 0,
				b + 21, 91, 91, b + 24, 101, 91, b + 27, b + 34, b + 34, b + 30,
				90, b + 34, b + 33, 91, 0, b + 36, 90, 90, b + 39,
			},
			rawSteps: 13,
			setup: func(v *vm.VM) {
				v.M.Set(100, 200)
				v.M.Set(101, 42)
			},
			checkAddr: 200,
			want:      42,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var mRaw cell.Array
			pokeAt(&mRaw, scratchBase, tc.image)
			outRaw := &bytes.Buffer{}
			raw := vm.New(&mRaw, ioport.New(strings.NewReader(""), outRaw), ioport.New(strings.NewReader(""), outRaw))
			raw.PC = scratchBase
			tc.setup(raw)
			for i := 0; i < tc.rawSteps; i++ {
				raw.Step()
			}
			if got := raw.M.Get(tc.checkAddr); got != tc.want {
				t.Fatalf("raw M[%d] = %d, want %d", tc.checkAddr, got, tc.want)
			}

			var mFused cell.Array
			pokeAt(&mFused, scratchBase, tc.image)
			outFused := &bytes.Buffer{}
			fused := vm.New(&mFused, ioport.New(strings.NewReader(""), outFused), ioport.New(strings.NewReader(""), outFused))
			Optimize(fused, scratchBase+len(tc.image))
			fused.PC = scratchBase
			tc.setup(fused)
			fused.Step()
			if got := fused.M.Get(tc.checkAddr); got != tc.want {
				t.Fatalf("fused M[%d] = %d, want %d", tc.checkAddr, got, tc.want)
			}
		})
	}
}

// Determinism: running the identical image and input twice through the
// optimizer and dispatcher produces identical output and final memory.
func TestDeterminism(t *testing.T) {
	image := []int32{-1, 9, 3, 0}
	v1 := buildVM(image, "hi")
	v2 := buildVM(image, "hi")

	v1.Step()
	v2.Step()

	if v1.M.Get(9) != v2.M.Get(9) {
		t.Fatalf("diverged: M[9] = %d vs %d", v1.M.Get(9), v2.M.Get(9))
	}
	if v1.PC != v2.PC {
		t.Fatalf("diverged: PC = %d vs %d", v1.PC, v2.PC)
	}
}

// ZERO: "0 0 >" at pc leaves M[dst] == 0 and, after one step, PC == pc+3.
func TestZeroPattern(t *testing.T) {
	v := buildVM([]int32{5, 5, 3, 0, 0, 99}, "")
	if v.X[0].Op != vm.OpZERO {
		t.Fatalf("classified as %v, want ZERO", v.X[0].Op)
	}
	if v.X[0].Dst != 5 {
		t.Fatalf("Dst = %d, want 5", v.X[0].Dst)
	}

	v.M.Set(5, 42)
	v.Step()
	if got := v.M.Get(5); got != 0 {
		t.Fatalf("M[5] = %d, want 0", got)
	}
	if v.PC != 3 {
		t.Fatalf("PC = %d, want 3", v.PC)
	}
}

// JMP whose captured target equals its own address degrades to HALT
// (infinite-loop detection).
func TestJMPSelfLoopDegradesToHalt(t *testing.T) {
	v := buildVM([]int32{7, 7, 0}, "")
	if v.X[0].Op != vm.OpHALT {
		t.Fatalf("classified as %v, want HALT (self-loop degrade)", v.X[0].Op)
	}
	if v.Step() {
		t.Fatalf("expected VM to halt")
	}
}

// A non-self-referencing JMP idiom fuses to JMP and transfers control to
// its captured target, zeroing the address used to zero itself.
func TestJMPPattern(t *testing.T) {
	v := buildVM([]int32{7, 7, 50}, "")
	if v.X[0].Op != vm.OpJMP {
		t.Fatalf("classified as %v, want JMP", v.X[0].Op)
	}
	if v.X[0].Dst != 50 || v.X[0].Src != 7 {
		t.Fatalf("unexpected JMP operands: %+v", v.X[0])
	}
	v.M.Set(7, 123)
	v.Step()
	if v.PC != 50 {
		t.Fatalf("PC = %d, want 50", v.PC)
	}
	if got := v.M.Get(7); got != 0 {
		t.Fatalf("M[7] = %d, want 0", got)
	}
}

// HALT: a literal {0, 0, -1} triple classifies as HALT and stepping it
// stops the VM without touching memory or I/O.
func TestHALTPattern(t *testing.T) {
	v := buildVM([]int32{0, 0, -1}, "")
	if v.X[0].Op != vm.OpHALT {
		t.Fatalf("classified as %v, want HALT", v.X[0].Op)
	}
	if v.Step() {
		t.Fatalf("expected VM to halt")
	}
}

// GET/PUT: the literal raw-SUBLEQ I/O idioms fuse into single opcodes
// whose captured operand is the address being read into or written from.
func TestGETAndPUTPatterns(t *testing.T) {
	getImage := []int32{-1, 9, 3, 0}
	v := buildVM(getImage, "Q")
	if v.X[0].Op != vm.OpGET {
		t.Fatalf("classified as %v, want GET", v.X[0].Op)
	}
	if v.X[0].Dst != 9 {
		t.Fatalf("Dst = %d, want 9", v.X[0].Dst)
	}
	v.Step()
	if got := v.M.Get(9); got != uint16('Q') {
		t.Fatalf("M[9] = %d, want %d", got, 'Q')
	}

	putImage := []int32{9, -1, 3, 65}
	v2 := buildVM(putImage, "")
	if v2.X[0].Op != vm.OpPUT {
		t.Fatalf("classified as %v, want PUT", v2.X[0].Op)
	}
	if v2.X[0].Src != 9 {
		t.Fatalf("Src = %d, want 9", v2.X[0].Src)
	}
}

// Seed scenario 1 from the testable-properties list: image {3, 3, -32768,
// 0, 0, -1} with empty input jumps to 0x8000 (cell.HaltPC) and halts on the
// first step with M[3] left at 0.
func TestSeedScenario1Optimized(t *testing.T) {
	v := buildVM([]int32{3, 3, -32768, 0, 0, -1}, "")
	v.Run()
	if got := v.M.Get(3); got != 0 {
		t.Fatalf("M[3] = %d, want 0", got)
	}
}

// DOUBLE/ADD: equal captured addresses fuse to DOUBLE; distinct ones fuse
// to ADD.
func TestDoubleVsAdd(t *testing.T) {
	// "!Z> Z!> ZZ>" with both captured words equal to 20.
	doubleImage := make([]int32, 9)
	doubleImage[0], doubleImage[1], doubleImage[2] = 20, 0, 3
	doubleImage[3], doubleImage[4], doubleImage[5] = 0, 20, 6
	doubleImage[6], doubleImage[7], doubleImage[8] = 0, 0, 9
	v := buildVM(doubleImage, "")
	if v.X[0].Op != vm.OpDOUBLE {
		t.Fatalf("classified as %v, want DOUBLE", v.X[0].Op)
	}
	if v.X[0].Dst != 20 {
		t.Fatalf("Dst = %d, want 20", v.X[0].Dst)
	}

	addImage := make([]int32, 9)
	addImage[0], addImage[1], addImage[2] = 20, 0, 3
	addImage[3], addImage[4], addImage[5] = 0, 21, 6
	addImage[6], addImage[7], addImage[8] = 0, 0, 9
	v2 := buildVM(addImage, "")
	if v2.X[0].Op != vm.OpADD {
		t.Fatalf("classified as %v, want ADD", v2.X[0].Op)
	}
	// Raw "!Z> Z!> ZZ>" with a=20, b=21 sums into b, not a (group2 routes
	// -M[a] through scratch 0 into b): Dst must be 21, Src 20.
	if v2.X[0].Dst != 21 || v2.X[0].Src != 20 {
		t.Fatalf("unexpected ADD operands: %+v", v2.X[0])
	}
	v2.M.Set(20, 5)
	v2.M.Set(21, 100)
	v2.Step()
	if got := v2.M.Get(21); got != 105 {
		t.Fatalf("M[21] = %d, want 105", got)
	}
}

// NEG: ZERO(a) immediately followed by a subtract-into-a idiom fuses into
// a single NEG reading its source and writing the negation into a.
func TestNEGPattern(t *testing.T) {
	v := buildVM([]int32{10, 10, 3, 11, 10, 6}, "")
	if v.X[0].Op != vm.OpNEG {
		t.Fatalf("classified as %v, want NEG", v.X[0].Op)
	}
	if v.X[0].Dst != 10 || v.X[0].Src != 11 {
		t.Fatalf("unexpected NEG operands: %+v", v.X[0])
	}
	five := uint16(5)
	v.M.Set(11, five)
	v.Step()
	if got := v.M.Get(10); got != -five {
		t.Fatalf("M[10] = %d, want %d", got, -five)
	}
}

// INC/DEC/SUB share the bare "!!>" shape; the constant-ness of the first
// captured address (snapshotted as -1, 1, or neither) decides which of the
// three opcodes the idiom fuses to.
func TestIncDecSubPatterns(t *testing.T) {
	t.Run("INC", func(t *testing.T) {
		v := buildVM([]int32{4, 20, 3, 0, -1}, "")
		if v.X[0].Op != vm.OpINC {
			t.Fatalf("classified as %v, want INC", v.X[0].Op)
		}
		v.M.Set(20, 9)
		v.Step()
		if got := v.M.Get(20); got != 10 {
			t.Fatalf("M[20] = %d, want 10", got)
		}
	})
	t.Run("DEC", func(t *testing.T) {
		v := buildVM([]int32{4, 20, 3, 0, 1}, "")
		if v.X[0].Op != vm.OpDEC {
			t.Fatalf("classified as %v, want DEC", v.X[0].Op)
		}
		v.M.Set(20, 9)
		v.Step()
		if got := v.M.Get(20); got != 8 {
			t.Fatalf("M[20] = %d, want 8", got)
		}
	})
	t.Run("SUB", func(t *testing.T) {
		v := buildVM([]int32{4, 20, 3, 0, 7}, "")
		if v.X[0].Op != vm.OpSUB {
			t.Fatalf("classified as %v, want SUB", v.X[0].Op)
		}
		if v.X[0].Dst != 20 || v.X[0].Src != 4 {
			t.Fatalf("unexpected SUB operands: %+v", v.X[0])
		}
		v.M.Set(20, 9)
		v.Step()
		if got := v.M.Get(20); got != 2 {
			t.Fatalf("M[20] = %d, want 2", got)
		}
	})
}

// MOV: the classic zero-then-copy-through-cell-0 idiom fuses into a single
// MOV, with the destination and source addresses kept distinct.
func TestMOVPattern(t *testing.T) {
	image := []int32{10, 10, 3, 20, 0, 6, 0, 10, 9, 0, 0, 12}
	v := buildVM(image, "")
	if v.X[0].Op != vm.OpMOV {
		t.Fatalf("classified as %v, want MOV", v.X[0].Op)
	}
	// Raw execution moves the value the OPPOSITE direction from the old
	// field assignment: group1 zeros Var(0)=10, then groups 2/3 route
	// -M[20] through scratch 0 into Var(0), so M[10] ends up holding
	// M[20]'s value. Src is the `!`-captured address (20), Dst is Var(0)
	// (10).
	if v.X[0].Src != 20 || v.X[0].Dst != 10 {
		t.Fatalf("unexpected MOV operands: %+v", v.X[0])
	}
	v.M.Set(20, 77)
	v.Step()
	if got := v.M.Get(10); got != 77 {
		t.Fatalf("M[10] = %d, want 77", got)
	}
	if v.PC != 12 {
		t.Fatalf("PC = %d, want 12", v.PC)
	}
}

// IJMP: an indirect-jump idiom whose captured self-reference lands on the
// jump-target word of its own last triple (pc+14) fuses into IJMP, reading
// PC from the captured target cell.
func TestIJMPPattern(t *testing.T) {
	image := []int32{
		14, 14, 3, 500, 0, 6, 0, 14, 9, 0,
		0, 12, 0, 0, 15,
	}
	v := buildVM(image, "")
	if v.X[0].Op != vm.OpIJMP {
		t.Fatalf("classified as %v, want IJMP", v.X[0].Op)
	}
	if v.X[0].Dst != 500 {
		t.Fatalf("Dst = %d, want 500", v.X[0].Dst)
	}
	v.M.Set(500, 777)
	v.Step()
	if v.PC != 777 {
		t.Fatalf("PC = %d, want 777", v.PC)
	}
}

// ISTORE: the indirect-store idiom negates M[dst] into a scratch temp,
// patches both operand fields of a self-zeroing SUBLEQ with the pointer
// value (zeroing M[M[dst]]), then patches a second SUBLEQ's dst field the
// same way to subtract -M[src] back through it. Fuses into a single
// ISTORE writing M[M[dst]] := M[src].
func TestISTOREPattern(t *testing.T) {
	image := []int32{
		90, 90, 3, 100, 90, 6, 18, 18, 9, 90,
		18, 12, 19, 19, 15, 90, 19, 18, 0, 0,
		21, 91, 91, 24, 101, 91, 27, 34, 34, 30,
		90, 34, 33, 91, 0, 36, 90, 90, 39,
	}
	v := buildVM(image, "")
	if v.X[0].Op != vm.OpISTORE {
		t.Fatalf("classified as %v, want ISTORE", v.X[0].Op)
	}
	if v.X[0].Dst != 100 || v.X[0].Src != 101 {
		t.Fatalf("unexpected ISTORE operands: %+v", v.X[0])
	}
	v.M.Set(100, 200)
	v.M.Set(101, 42)
	v.Step()
	if got := v.M.Get(200); got != 42 {
		t.Fatalf("M[200] = %d, want 42", got)
	}
	if v.PC != 39 {
		t.Fatalf("PC = %d, want 39", v.PC)
	}
}

// IADD: negate M[dst] into a scratch temp, negate M[src] into a second
// scratch, patch a trailing SUBLEQ's dst field with the pointer value,
// then let it subtract the negated addend through it. Fuses into
// M[M[dst]] += M[src].
func TestIADDPattern(t *testing.T) {
	image := []int32{
		50, 50, 3, 60, 50, 6, 51, 51, 9, 61,
		51, 12, 19, 19, 15, 50, 19, 18, 51, 0,
		21, 50, 50, 24,
	}
	v := buildVM(image, "")
	if v.X[0].Op != vm.OpIADD {
		t.Fatalf("classified as %v, want IADD", v.X[0].Op)
	}
	if v.X[0].Dst != 60 || v.X[0].Src != 61 {
		t.Fatalf("unexpected IADD operands: %+v", v.X[0])
	}
	v.M.Set(60, 300)
	v.M.Set(300, 5)
	v.M.Set(61, 7)
	v.Step()
	if got := v.M.Get(300); got != 12 {
		t.Fatalf("M[300] = %d, want 12", got)
	}
}

// ISUB: negate M[dst] into a scratch temp, patch a trailing SUBLEQ's dst
// field with the pointer value, then let it subtract M[src] straight
// through (no sign flip needed). Fuses into M[M[dst]] -= M[src].
func TestISUBPattern(t *testing.T) {
	image := []int32{
		70, 70, 3, 80, 70, 6, 13, 13, 9, 70,
		13, 12, 81, 0, 15, 70, 70, 18,
	}
	v := buildVM(image, "")
	if v.X[0].Op != vm.OpISUB {
		t.Fatalf("classified as %v, want ISUB", v.X[0].Op)
	}
	if v.X[0].Dst != 80 || v.X[0].Src != 81 {
		t.Fatalf("unexpected ISUB operands: %+v", v.X[0])
	}
	v.M.Set(80, 400)
	v.M.Set(400, 50)
	v.M.Set(81, 8)
	v.Step()
	if got := v.M.Get(400); got != 42 {
		t.Fatalf("M[400] = %d, want 42", got)
	}
}

// INV: the bitwise-complement idiom is distinguished from a plain bare
// two-address idiom by its trailing constant-1 reference.
func TestINVPattern(t *testing.T) {
	image := make([]int32, 141)
	vals := map[int]int32{
		0: 130, 1: 130, 2: 3, 3: 131, 4: 130, 5: 6,
		6: 131, 7: 131, 8: 9, 9: 132, 10: 0, 11: 12,
		12: 0, 13: 131, 14: 15, 15: 0, 16: 0, 17: 18,
		18: 140, 19: 131, 20: 21, 140: 1,
	}
	for i, val := range vals {
		image[i] = val
	}
	v := buildVM(image, "")
	if v.X[0].Op != vm.OpINV {
		t.Fatalf("classified as %v, want INV", v.X[0].Op)
	}
	if v.X[0].Dst != 131 {
		t.Fatalf("Dst = %d, want 131", v.X[0].Dst)
	}
	v.M.Set(131, 5)
	v.Step()
	if got := v.M.Get(131); got != ^uint16(5) {
		t.Fatalf("M[131] = %d, want %d", got, ^uint16(5))
	}
}

// ILOAD: the indirect-load idiom (without a trailing increment) fuses into
// ILOAD, dereferencing the captured pointer cell at run time.
func TestILOADPattern(t *testing.T) {
	// The idiom's internal self-jump requires Var(0) (the digit-captured
	// slot bound at offset 0) to equal pc+15 — the address of the
	// wildcard operand field that the patch at offsets 6-8 overwrites —
	// exactly as tryIJMP's identical 4-symbol prefix requires for its own
	// self-reference. The `!`-captured pointer cell (offset 3) is a
	// separate, ordinary address-of-pointer operand with no such
	// constraint.
	image := []int32{
		15, 15, 3, 200, 0, 6, 0, 15, 9, 0,
		0, 12, 160, 160, 15, 0, 0, 18, 0, 160,
		21, 0, 0, 24,
	}
	v := buildVM(image, "")
	if v.X[0].Op != vm.OpILOAD {
		t.Fatalf("classified as %v, want ILOAD", v.X[0].Op)
	}
	if v.X[0].Src != 200 || v.X[0].Dst != 160 {
		t.Fatalf("unexpected ILOAD operands: %+v", v.X[0])
	}
	v.M.Set(200, 999)
	v.M.Set(999, 55)
	v.Step()
	if got := v.M.Get(160); got != 55 {
		t.Fatalf("M[160] = %d, want 55", got)
	}
	if v.PC != 24 {
		t.Fatalf("PC = %d, want 24", v.PC)
	}
}

// LSHIFT: three consecutive DOUBLE-shaped runs on the same address collapse
// into one LSHIFT with run length 3 and a dynamic advance of 27.
func TestLSHIFTRunLength(t *testing.T) {
	addr := uint16(30)
	image := make([]int32, 27)
	for run := 0; run < 3; run++ {
		base := run * 9
		image[base], image[base+1], image[base+2] = int32(addr), 0, int32(base + 3)
		image[base+3], image[base+4], image[base+5] = 0, int32(addr), int32(base + 6)
		image[base+6], image[base+7], image[base+8] = 0, 0, int32(base + 9)
	}
	v := buildVM(image, "")
	if v.X[0].Op != vm.OpLSHIFT {
		t.Fatalf("classified as %v, want LSHIFT", v.X[0].Op)
	}
	if v.X[0].Src != 3 {
		t.Fatalf("run length = %d, want 3", v.X[0].Src)
	}
	if v.X[0].Aux != 27 {
		t.Fatalf("Aux advance = %d, want 27", v.X[0].Aux)
	}
}
