// Package source enumerates the strategy scripts a batch run converts.
package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScriptExt is the extension of strategy scripts.
const ScriptExt = ".py"

// Script is one input script. Path is slash-separated and relative to the
// source root; it is also the relative output path.
type Script struct {
	Path string
	Text string
}

// Source lists scripts.
type Source interface {
	Scripts(ctx context.Context) ([]Script, error)
	String() string
}

// Dir reads scripts from a directory tree.
type Dir struct {
	Root string
}

func NewDir(root string) *Dir {
	return &Dir{Root: root}
}

func (d *Dir) String() string { return d.Root }

// Scripts returns every script under Root in path order. Hidden directories
// are skipped.
func (d *Dir) Scripts(ctx context.Context) ([]Script, error) {
	info, err := os.Stat(d.Root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", d.Root)
	}

	var out []Script
	err = filepath.WalkDir(d.Root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() {
			if path != d.Root && strings.HasPrefix(entry.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !isScript(entry.Name()) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(d.Root, path)
		if err != nil {
			return err
		}
		out = append(out, Script{Path: filepath.ToSlash(rel), Text: string(data)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortScripts(out)
	return out, nil
}

func isScript(name string) bool {
	return strings.HasSuffix(name, ScriptExt) && !strings.HasPrefix(name, ".")
}

func sortScripts(s []Script) {
	sort.Slice(s, func(i, j int) bool { return s[i].Path < s[j].Path })
}
