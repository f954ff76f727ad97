// Package atomicfile writes files with the temp-file, fsync, rename pattern so
// readers never observe a partial file.
package atomicfile

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
)

// Write creates path atomically. fill writes the contents; if it fails the
// temp file is removed and path is left untouched. Missing parent
// directories are created.
func Write(path string, fill func(w *bufio.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(format string, err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf(format, err)
	}

	w := bufio.NewWriter(tmp)
	if err := fill(w); err != nil {
		return fail("writing contents: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fail("flushing buffer: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// WriteBytes creates path atomically with data as its contents.
func WriteBytes(path string, data []byte) error {
	return Write(path, func(w *bufio.Writer) error {
		_, err := w.Write(data)
		return err
	})
}
