package backingstore

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/gitpan/cachemmap/pkg/fs"
)

// Dir is a directory-of-files backing store: each key is stored as its own
// file named by the key's hex encoding under Root. Writes are atomic
// (temp file + rename) so a reader never observes a partially written
// file.
type Dir struct {
	Root string
	fs   fs.FS
}

// NewDir returns a Dir rooted at root on the real filesystem, creating it
// if necessary.
func NewDir(root string) (*Dir, error) {
	return NewDirFS(root, fs.NewReal())
}

// NewDirFS returns a Dir rooted at root against the given [fs.FS],
// creating the root directory if necessary. This is the seam tests use to
// exercise Dir against [fs.Fake] instead of the real filesystem.
func NewDirFS(root string, fsys fs.FS) (*Dir, error) {
	if err := fsys.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Dir{Root: root, fs: fsys}, nil
}

func (d *Dir) pathFor(key []byte) string {
	return filepath.Join(d.Root, hex.EncodeToString(key))
}

// Read implements cachemmap.ReadFunc.
func (d *Dir) Read(key []byte, _ any) ([]byte, bool, error) {
	data, err := d.fs.ReadFile(d.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Write implements cachemmap.WriteFunc. The write is atomic: a temp file
// is written and renamed over the destination, so a concurrent Read never
// observes a partial file.
func (d *Dir) Write(key, value []byte, _ any) error {
	return atomic.WriteFile(d.pathFor(key), bytes.NewReader(value))
}

// Delete implements cachemmap.DeleteFunc.
func (d *Dir) Delete(key, _ []byte, _ any) error {
	err := d.fs.Remove(d.pathFor(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
