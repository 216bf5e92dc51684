package trace

import (
	"strings"
	"testing"

	"github.com/go-subleq/subleq/internal/vm"
)

func TestLineIncludesMnemonicAndAddress(t *testing.T) {
	line := Line(0x10, vm.Instruction{Op: vm.OpMOV, Src: 20, Dst: 21})
	if !strings.Contains(line, "0010:") {
		t.Fatalf("expected address prefix, got %q", line)
	}
	if !strings.Contains(line, "MOV") {
		t.Fatalf("expected mnemonic, got %q", line)
	}
	if !strings.Contains(line, "21,20") {
		t.Fatalf("expected operands dst,src, got %q", line)
	}
}

func TestLineHalt(t *testing.T) {
	line := Line(5, vm.Instruction{Op: vm.OpHALT})
	if !strings.Contains(line, "HALT") {
		t.Fatalf("expected HALT mnemonic, got %q", line)
	}
}
