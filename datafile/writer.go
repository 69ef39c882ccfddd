// Package datafile is the versioned primitive codec used by every ledger file.
// A file starts with a version stamp; every value after it is one of
// int, float, string, bool or time, written in order and read back in order.
package datafile

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"time"
)

// Writer encodes primitives. The first error sticks: later calls are no-ops
// and Err/Flush report it.
type Writer struct {
	w       *bufio.Writer
	version int
	err     error
	buf     [binary.MaxVarintLen64]byte
}

// NewWriter writes the version stamp and returns a writer positioned after it.
func NewWriter(w io.Writer, version int) *Writer {
	dw := &Writer{w: bufio.NewWriter(w), version: version}
	dw.Int(version)
	return dw
}

func (w *Writer) Version() int { return w.version }

func (w *Writer) Err() error { return w.err }

func (w *Writer) write(p []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(p)
}

func (w *Writer) Int(v int) {
	w.Int64(int64(v))
}

func (w *Writer) Int64(v int64) {
	n := binary.PutVarint(w.buf[:], v)
	w.write(w.buf[:n])
}

func (w *Writer) Uint64(v uint64) {
	n := binary.PutUvarint(w.buf[:], v)
	w.write(w.buf[:n])
}

func (w *Writer) Float(v float64) {
	binary.LittleEndian.PutUint64(w.buf[:8], math.Float64bits(v))
	w.write(w.buf[:8])
}

func (w *Writer) Bool(v bool) {
	if v {
		w.write([]byte{1})
		return
	}
	w.write([]byte{0})
}

func (w *Writer) String(s string) {
	w.Uint64(uint64(len(s)))
	if w.err != nil {
		return
	}
	_, w.err = w.w.WriteString(s)
}

// Time writes a set flag followed by unix seconds and nanoseconds.
// The zero time is written as "unset".
func (w *Writer) Time(t time.Time) {
	if t.IsZero() {
		w.Bool(false)
		return
	}
	w.Bool(true)
	w.Int64(t.Unix())
	w.Int64(int64(t.Nanosecond()))
}

// Flush pushes buffered bytes to the underlying writer.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	w.err = w.w.Flush()
	return w.err
}
