package cachemmap_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/gitpan/cachemmap/pkg/cachemmap"
)

// Property 10 ("lock release on failure") plus §5's "at most one lock is
// held at a time, always released on every exit path": a bucket's
// byte-range lock is held for the duration of a user callback and released
// whether or not the callback errors, so a second OS process blocked on
// F_SETLKW for the same bucket is never blocked indefinitely — and a
// subsequent operation in the original process doesn't block either.
//
// Grounded on the teacher's cross-process BeginWrite tests in
// pkg/slotcache/concurrency_test.go, which spawn a helper subprocess via
// os/exec re-invoking the test binary with a marker env var.
func Test_SecondProcess_Blocks_Until_Bucket_Lock_Released(t *testing.T) {
	if os.Getenv("CACHEMMAP_HELPER_WRITE") == "1" {
		runHelperWrite(t)
		return
	}

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "lock.cache")
	readyPath := filepath.Join(tmpDir, "READY")

	const holdDuration = 300 * time.Millisecond

	// A single bucket forces the helper process to contend for exactly the
	// byte range the parent is holding.
	c, err := cachemmap.Open(path, cachemmap.Options{
		Strings: true,
		Buckets: 1,
		Read: func(key []byte, _ any) ([]byte, bool, error) {
			touchFile(t, readyPath)
			time.Sleep(holdDuration)
			return nil, false, errors.New("boom")
		},
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	readErrCh := make(chan error, 1)
	go func() {
		_, _, err := c.Read([]byte("k"))
		readErrCh <- err
	}()

	waitForFile(t, readyPath, 2*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, os.Args[0],
		"-test.run=^Test_SecondProcess_Blocks_Until_Bucket_Lock_Released$", "-test.v")
	cmd.Env = append(os.Environ(), "CACHEMMAP_HELPER_WRITE=1", "CACHEMMAP_PATH="+path)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		t.Fatalf("helper: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < holdDuration-50*time.Millisecond {
		t.Fatalf("helper returned after %v, want >= ~%v (it should have blocked on the bucket lock)", elapsed, holdDuration)
	}

	readErr := <-readErrCh
	if !errors.Is(readErr, cachemmap.ErrCallback) {
		t.Fatalf("parent Read err = %v, want ErrCallback", readErr)
	}

	// The lock must have been released despite the callback error: a
	// second Read from the parent process must not block.
	done := make(chan struct{})
	go func() {
		c.Read([]byte("k2"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second Read blocked indefinitely after a callback error")
	}
}

func runHelperWrite(t *testing.T) {
	path := os.Getenv("CACHEMMAP_PATH")
	if path == "" {
		t.Fatal("CACHEMMAP_PATH not set")
	}
	c, err := cachemmap.Open(path, cachemmap.Options{Strings: true, Buckets: 1})
	if err != nil {
		t.Fatalf("helper Open: %v", err)
	}
	defer c.Close()
	if err := c.Write([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("helper Write: %v", err)
	}
}

func touchFile(t *testing.T, path string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatalf("touch %q: %v", path, err)
	}
	f.Close()
}

func waitForFile(t *testing.T, path string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q", path)
}
