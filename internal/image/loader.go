/*
 * subleq - Image file loader.
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

// Package image parses a SUBLEQ image file: a text stream of signed decimal
// integers separated by commas and/or whitespace. The tokenizer style
// mirrors the teacher's configuration-file scanner — a small hand-rolled
// byte scanner rather than a general parser, since the grammar is a single
// flat token stream with no nesting.
package image

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Load reads a SUBLEQ image from path and returns its contents as signed
// 16-bit values in file order. Each token must fit in [-32768, 32767];
// anything else, or a separator other than comma/whitespace, is a load
// error.
func Load(path string) ([]int32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("image: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse tokenizes r the same way Load does, without touching the
// filesystem; exported so tests and the bootstrap self-check can feed an
// in-memory reader.
func Parse(r io.Reader) ([]int32, error) {
	br := bufio.NewReader(r)
	var values []int32
	var tok []byte

	flush := func() error {
		if len(tok) == 0 {
			return nil
		}
		n, err := parseInt16(tok)
		if err != nil {
			return err
		}
		values = append(values, n)
		tok = tok[:0]
		return nil
	}

	for {
		b, err := br.ReadByte()
		if err == io.EOF {
			if ferr := flush(); ferr != nil {
				return nil, ferr
			}
			return values, nil
		}
		if err != nil {
			return nil, fmt.Errorf("image: %w", err)
		}

		switch {
		case b == ',' || b == ' ' || b == '\t' || b == '\n' || b == '\r':
			if err := flush(); err != nil {
				return nil, err
			}
		case b == '-' || b == '+' || (b >= '0' && b <= '9'):
			tok = append(tok, b)
		default:
			return nil, fmt.Errorf("image: unexpected byte %q in image file", b)
		}
	}
}

func parseInt16(tok []byte) (int32, error) {
	neg := false
	i := 0
	switch tok[0] {
	case '-':
		neg = true
		i = 1
	case '+':
		i = 1
	}
	if i == len(tok) {
		return 0, fmt.Errorf("image: malformed integer %q", tok)
	}

	var v int32
	for ; i < len(tok); i++ {
		c := tok[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("image: malformed integer %q", tok)
		}
		v = v*10 + int32(c-'0')
		if v > 32768 {
			return 0, fmt.Errorf("image: integer %q out of 16-bit range", tok)
		}
	}
	if neg {
		v = -v
	}
	if v < -32768 || v > 32767 {
		return 0, fmt.Errorf("image: integer %q out of 16-bit range", tok)
	}
	return v, nil
}
