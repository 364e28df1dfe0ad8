package backingstore_test

import (
	"path/filepath"
	"testing"

	"github.com/gitpan/cachemmap/pkg/backingstore"
	"github.com/gitpan/cachemmap/pkg/fs"
)

func TestDir_ReadDelete_AgainstFakeFS(t *testing.T) {
	fake := fs.NewFake()
	d, err := backingstore.NewDirFS("/store", fake)
	if err != nil {
		t.Fatalf("NewDirFS: %v", err)
	}

	if _, found, err := d.Read([]byte("missing"), nil); err != nil || found {
		t.Fatalf("Read(missing) = (_, %v, %v), want (_, false, nil)", found, err)
	}

	if err := fake.WriteFile(filepath.Join("/store", "6b6579"), []byte("value"), 0o644); err != nil {
		t.Fatalf("seeding fake fs: %v", err)
	}

	value, found, err := d.Read([]byte("key"), nil)
	if err != nil || !found || string(value) != "value" {
		t.Fatalf("Read(key) = (%q, %v, %v), want (value, true, nil)", value, found, err)
	}

	if err := d.Delete([]byte("key"), nil, nil); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, found, err := d.Read([]byte("key"), nil); err != nil || found {
		t.Fatalf("Read after Delete = (_, %v, %v), want (_, false, nil)", found, err)
	}

	// Deleting an already-absent key is a no-op, not an error.
	if err := d.Delete([]byte("key"), nil, nil); err != nil {
		t.Fatalf("Delete(already absent): %v", err)
	}
}

// Write goes through github.com/natefinch/atomic, which operates on real
// file paths (temp file + rename) rather than through the fs.FS seam, so
// its round-trip is exercised against a real temp directory instead of
// the fake.
func TestDir_Write_Then_Read_RoundTrip_OnRealFS(t *testing.T) {
	d, err := backingstore.NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}

	if err := d.Write([]byte("k"), []byte("v"), nil); err != nil {
		t.Fatalf("Write: %v", err)
	}

	value, found, err := d.Read([]byte("k"), nil)
	if err != nil || !found || string(value) != "v" {
		t.Fatalf("Read = (%q, %v, %v), want (v, true, nil)", value, found, err)
	}
}
