package pattern

import (
	"testing"

	"github.com/go-subleq/subleq/internal/cell"
)

func TestNumberedSlotBindsAndChecks(t *testing.T) {
	var m cell.Array
	m.Set(0, 42)
	m.Set(1, 42)
	m.Set(2, 7)

	mt := New(&m)
	if !mt.Try(0, "00?", Args{}) {
		t.Fatalf("expected match: repeated slot 0 should bind then confirm equal values")
	}
	if mt.Var(0) != 42 {
		t.Fatalf("Var(0) = %d, want 42", mt.Var(0))
	}
}

func TestNumberedSlotRejectsMismatch(t *testing.T) {
	var m cell.Array
	m.Set(0, 1)
	m.Set(1, 2)

	mt := New(&m)
	if mt.Try(0, "00", Args{}) {
		t.Fatalf("expected mismatch to fail")
	}
}

func TestJumpTargetSymbol(t *testing.T) {
	var m cell.Array
	m.Set(5, 6)

	mt := New(&m)
	if !mt.Try(5, ">", Args{}) {
		t.Fatalf("expected '>' to match fall-through address")
	}
	m.Set(5, 7)
	if mt.Try(5, ">", Args{}) {
		t.Fatalf("expected '>' to reject a non-fallthrough address")
	}
}

func TestZeroAndSentinelSymbols(t *testing.T) {
	var m cell.Array
	m.Set(0, 0)
	m.Set(1, cell.IOPort)

	mt := New(&m)
	if !mt.Try(0, "Z", Args{}) {
		t.Fatalf("expected Z to match zero word")
	}
	if !mt.Try(1, "N", Args{}) {
		t.Fatalf("expected N to match I/O sentinel")
	}
}

func TestConstOutAndSlotArgsInOrder(t *testing.T) {
	var m cell.Array
	m.Set(10, 99)
	m.Set(11, 123)
	m.Set(12, 5)

	mt := New(&m)
	var captured uint16
	if !mt.Try(10, "%!R", Args{Consts: []uint16{99}, Outs: []*uint16{&captured}, Slots: []int{3}}) {
		t.Fatalf("expected match")
	}
	if captured != 123 {
		t.Fatalf("captured = %d, want 123", captured)
	}
	if mt.Var(3) != 5 {
		t.Fatalf("Var(3) = %d, want 5", mt.Var(3))
	}
}

func TestConstArgMismatchFails(t *testing.T) {
	var m cell.Array
	m.Set(0, 1)

	mt := New(&m)
	if mt.Try(0, "%", Args{Consts: []uint16{2}}) {
		t.Fatalf("expected mismatch against wrong constant")
	}
}

func TestPositiveSymbol(t *testing.T) {
	var m cell.Array
	m.Set(0, 1)
	m.Set(1, 0)
	m.Set(2, 0x8000)

	mt := New(&m)
	if !mt.Try(0, "P", Args{}) {
		t.Fatalf("expected P to accept a positive value")
	}
	if mt.Try(1, "P", Args{}) {
		t.Fatalf("expected P to reject zero")
	}
	if mt.Try(2, "P", Args{}) {
		t.Fatalf("expected P to reject a value with the sign bit set")
	}
}

func TestVersionInvalidatesStaleCaptures(t *testing.T) {
	var m cell.Array
	m.Set(0, 10)
	m.Set(1, 20)

	mt := New(&m)
	mt.Try(0, "0", Args{})
	if mt.Var(0) != 10 {
		t.Fatalf("Var(0) = %d, want 10", mt.Var(0))
	}

	// Slot 0's prior binding from the attempt above must not leak into this
	// one: a new Try bumps the version, so slot 0 rebinds fresh.
	mt.Try(1, "01", Args{})
	if mt.Var(0) != 20 {
		t.Fatalf("Var(0) = %d, want 20 after rebinding in a new match attempt", mt.Var(0))
	}
}

func TestWildcardAlwaysSucceeds(t *testing.T) {
	var m cell.Array
	m.Set(0, 0xBEEF)
	mt := New(&m)
	if !mt.Try(0, "?", Args{}) {
		t.Fatalf("expected '?' to always match")
	}
}
