package datafile

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriterReaderPrimitives(t *testing.T) {
	var buf bytes.Buffer
	stamp := time.Date(2024, 1, 2, 3, 4, 5, 600, time.UTC)

	w := NewWriter(&buf, 7)
	w.Int(-42)
	w.Int64(1 << 40)
	w.Float(0.0825)
	w.String("house comp")
	w.String("")
	w.Bool(true)
	w.Time(stamp)
	w.Time(time.Time{})
	w.Uint64(1 << 63)
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if r.Version() != 7 {
		t.Fatalf("expected version 7, got %d", r.Version())
	}
	if v := r.Int(); v != -42 {
		t.Fatalf("Int: got %d", v)
	}
	if v := r.Int64(); v != 1<<40 {
		t.Fatalf("Int64: got %d", v)
	}
	if v := r.Float(); v != 0.0825 {
		t.Fatalf("Float: got %v", v)
	}
	if v := r.String(); v != "house comp" {
		t.Fatalf("String: got %q", v)
	}
	if v := r.String(); v != "" {
		t.Fatalf("empty String: got %q", v)
	}
	if v := r.Bool(); !v {
		t.Fatalf("Bool: got false")
	}
	if v := r.Time(); v != stamp {
		t.Fatalf("Time: got %v want %v", v, stamp)
	}
	if v := r.Time(); !v.IsZero() {
		t.Fatalf("unset Time: got %v", v)
	}
	if v := r.Uint64(); v != 1<<63 {
		t.Fatalf("Uint64: got %d", v)
	}
	if err := r.Err(); err != nil {
		t.Fatalf("Err: %v", err)
	}
}

func TestReaderTruncatedInputIsUnexpectedEOF(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 3)
	w.String("a long enough string")
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	data := buf.Bytes()[:buf.Len()-5]

	r, err := NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	_ = r.String()
	if !errors.Is(r.Err(), io.ErrUnexpectedEOF) {
		t.Fatalf("expected io.ErrUnexpectedEOF, got %v", r.Err())
	}
	// sticky
	if v := r.Int(); v != 0 || !errors.Is(r.Err(), io.ErrUnexpectedEOF) {
		t.Fatalf("expected sticky error, got %d %v", v, r.Err())
	}
}

func TestReaderRejectsOversizedString(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 1)
	w.Uint64(MaxStringLen + 1)
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	r, err := NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	_ = r.String()
	if !errors.Is(r.Err(), ErrStringTooLong) {
		t.Fatalf("expected ErrStringTooLong, got %v", r.Err())
	}
}

func TestReaderCountBounds(t *testing.T) {
	cases := []struct {
		count int
		limit int
		ok    bool
	}{
		{0, 10, true},
		{10, 10, true},
		{11, 10, false},
		{-1, 10, false},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		w := NewWriter(&buf, 1)
		w.Int(tc.count)
		if err := w.Flush(); err != nil {
			t.Fatalf("Flush: %v", err)
		}
		r, err := NewReader(&buf)
		if err != nil {
			t.Fatalf("NewReader: %v", err)
		}
		n, err := r.Count(tc.limit)
		if tc.ok && (err != nil || n != tc.count) {
			t.Fatalf("Count(%d, %d): got %d, %v", tc.count, tc.limit, n, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("Count(%d, %d): expected error", tc.count, tc.limit)
		}
	}
}

func TestWriteFileAtomicAndBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "ledger.dat")

	for i, word := range []string{"first", "second"} {
		if err := BackupFile(path); err != nil {
			t.Fatalf("BackupFile #%d: %v", i, err)
		}
		err := WriteFileAtomic(path, 2, func(w *Writer) error {
			w.String(word)
			return nil
		})
		if err != nil {
			t.Fatalf("WriteFileAtomic #%d: %v", i, err)
		}
	}

	var got string
	if err := ReadFile(path, func(r *Reader) error {
		got = r.String()
		return nil
	}); err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got != "second" {
		t.Fatalf("expected second, got %q", got)
	}

	var backup string
	if err := ReadFile(path+".bak", func(r *Reader) error {
		backup = r.String()
		return nil
	}); err != nil {
		t.Fatalf("ReadFile backup: %v", err)
	}
	if backup != "first" {
		t.Fatalf("expected backup first, got %q", backup)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected only file and backup, got %d entries", len(entries))
	}
}

func TestWriteFileAtomicLeavesOriginalOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.dat")
	if err := WriteFileAtomic(path, 1, func(w *Writer) error {
		w.Int(99)
		return nil
	}); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}

	boom := errors.New("boom")
	if err := WriteFileAtomic(path, 1, func(w *Writer) error {
		w.Int(100)
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	var v int
	if err := ReadFile(path, func(r *Reader) error {
		v = r.Int()
		return nil
	}); err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if v != 99 {
		t.Fatalf("expected original value 99, got %d", v)
	}
}
