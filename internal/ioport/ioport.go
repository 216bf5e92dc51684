/*
 * subleq - Byte-oriented input/output streams.
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

// Package ioport provides the two byte-oriented streams the SUBLEQ machine
// exchanges with the outside world through the I/O port sentinel address.
// The terminal's line discipline and echo are not the VM's concern; we only
// need one byte at a time, blocking until it arrives, and a flush-on-write
// policy when talking to an interactive terminal.
package ioport

import (
	"bufio"
	"io"
	"os"
)

// Input is a blocking byte source. ReadByte returns io.EOF once the source
// is exhausted; the VM treats that as a clean halt.
type Input interface {
	ReadByte() (byte, error)
}

// Output is a byte sink that may need an explicit Flush after each byte
// when wired to an interactive terminal.
type Output interface {
	WriteByte(b byte) error
	Flush() error
}

// Stream wraps a reader/writer pair the way the teacher's device layer
// wraps a raw os.File: buffered access plus a TTY flag that decides
// whether every write is flushed immediately.
type Stream struct {
	in     *bufio.Reader
	out    *bufio.Writer
	outTTY bool
}

// New builds a Stream over the given reader and writer. The TTY flag is
// probed from the writer itself: only an *os.File that is a character
// device counts as a terminal.
func New(in io.Reader, out io.Writer) *Stream {
	return &Stream{
		in:     bufio.NewReader(in),
		out:    bufio.NewWriter(out),
		outTTY: isTerminal(out),
	}
}

// Standard builds a Stream over process stdin/stdout, the usual wiring for
// an interactive Forth session.
func Standard() *Stream {
	return New(os.Stdin, os.Stdout)
}

// ReadByte blocks for the next input byte. Interrupted reads (EINTR) are
// retried transparently by bufio/os; any other error, including EOF, is
// returned to the caller so the VM can fail cleanly.
func (s *Stream) ReadByte() (byte, error) {
	return s.in.ReadByte()
}

// WriteByte writes the low byte of a cell value to the output stream.
func (s *Stream) WriteByte(b byte) error {
	if err := s.out.WriteByte(b); err != nil {
		return err
	}
	if s.outTTY {
		return s.out.Flush()
	}
	return nil
}

// Flush pushes any buffered output bytes out, used on shutdown regardless
// of TTY-ness so piped output is never silently dropped.
func (s *Stream) Flush() error {
	return s.out.Flush()
}

// isTerminal reports whether w is a character device. No example in the
// reference corpus wires a terminal-capability library (isatty, x/term)
// for this; os.ModeCharDevice is the stdlib equivalent and is sufficient
// to decide the flush-on-write policy described by the spec.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
