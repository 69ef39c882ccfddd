package datafile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ReadFile opens path and hands a Reader to fn. The file is closed before
// ReadFile returns.
func ReadFile(path string, fn func(r *Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := NewReader(f)
	if err != nil {
		return err
	}
	if err := fn(r); err != nil {
		return err
	}
	return r.Err()
}

// WriteFileAtomic writes a versioned file through a temp file in the same
// directory, syncs it and renames it over path. A reader never observes a
// partially written file at path.
func WriteFileAtomic(path string, version int, fn func(w *Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("datafile: create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("datafile: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	w := NewWriter(tmp, version)
	if err := fn(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("datafile: write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("datafile: sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("datafile: close %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("datafile: rename %s: %w", path, err)
	}
	success = true
	return nil
}

// BackupFile copies path to path+".bak". A missing source is not an error.
func BackupFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer src.Close()

	dst, err := os.Create(path + ".bak")
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
