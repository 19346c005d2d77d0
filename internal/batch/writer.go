package batch

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirWriter writes converted scripts under Root, mirroring their source
// paths. Each file is written to a temporary sibling and renamed into place,
// so a reader never observes a partial script.
type DirWriter struct {
	Root string
}

func NewDirWriter(root string) *DirWriter {
	return &DirWriter{Root: root}
}

func (w *DirWriter) Write(path string, data []byte) (err error) {
	rel := filepath.FromSlash(path)
	if !filepath.IsLocal(rel) {
		return fmt.Errorf("output path %q escapes %s", path, w.Root)
	}
	dest := filepath.Join(w.Root, rel)
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
