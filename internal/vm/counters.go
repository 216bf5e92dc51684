package vm

// Counters receives dispatch events for the statistics (-s) and profiler
// (-p) epilogues described by the spec. The VM always calls into a
// Counters implementation; when neither flag is set, Null is installed and
// every call is a single branch-free no-op.
type Counters interface {
	// Instr is called once per dispatched instruction, after its handler
	// has run, with the opcode executed and the PC it ran at.
	Instr(op Opcode, pc uint16)
	// Mem is called once per cell read or write performed by a handler.
	Mem()
}

// nullCounters discards every event. It is the default so the hot dispatch
// loop never has to check a nil interface.
type nullCounters struct{}

func (nullCounters) Instr(Opcode, uint16) {}
func (nullCounters) Mem()                 {}

// Null is the shared no-op Counters instance.
var Null Counters = nullCounters{}
