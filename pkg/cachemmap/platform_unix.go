//go:build unix

package cachemmap

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// openOrCreate opens path for read+write, creating it with perm if it does
// not already exist. This is the only OS-dependent entry point into the
// platform layer besides the lock and mmap helpers below.
func openOrCreate(path string, perm os.FileMode) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, perm)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrIO, path, err)
	}
	return f, nil
}

// ensureSize extends f to at least size bytes by appending zero bytes in
// 1 KiB pads, matching the header-initialization algorithm's incremental
// growth rather than a single Ftruncate — so a concurrent reader never
// observes a sparse hole inside the mapped range on filesystems that don't
// zero-fill truncated extensions eagerly.
func ensureSize(f *os.File, size int64) error {
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat: %v", ErrIO, err)
	}
	if info.Size() >= size {
		return nil
	}

	const padSize = 1024
	pad := make([]byte, padSize)
	off := info.Size()
	for off < size {
		n := padSize
		if off+int64(n) > size {
			n = int(size - off)
		}
		written, err := f.WriteAt(pad[:n], off)
		if err != nil {
			return fmt.Errorf("%w: extend: %v", ErrIO, err)
		}
		off += int64(written)
	}
	return nil
}

// mmapFile memory-maps exactly size bytes of f, read/write, shared across
// processes.
func mmapFile(f *os.File, size int64) ([]byte, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap: %v", ErrIO, err)
	}
	return data, nil
}

func munmapFile(data []byte) error {
	if data == nil {
		return nil
	}
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("%w: munmap: %v", ErrIO, err)
	}
	return nil
}

// lockRange acquires a blocking advisory byte-range lock on fd, covering
// [off, off+length). exclusive selects F_WRLCK over F_RDLCK; the bucket
// engine only ever takes exclusive locks (see §5: there is no shared-read
// mode), but the parameter is kept explicit to mirror the platform
// contract literally.
func lockRange(fd int, off, length int64, exclusive bool) error {
	typ := int16(unix.F_RDLCK)
	if exclusive {
		typ = unix.F_WRLCK
	}
	flock := unix.Flock_t{
		Type:   typ,
		Whence: int16(os.SEEK_SET),
		Start:  off,
		Len:    length,
	}
	if err := unix.FcntlFlock(uintptr(fd), unix.F_SETLKW, &flock); err != nil {
		return fmt.Errorf("%w: lock: %v", ErrIO, err)
	}
	return nil
}

// unlockRange releases the lock previously taken by lockRange over the
// same range.
func unlockRange(fd int, off, length int64) error {
	flock := unix.Flock_t{
		Type:   unix.F_UNLCK,
		Whence: int16(os.SEEK_SET),
		Start:  off,
		Len:    length,
	}
	if err := unix.FcntlFlock(uintptr(fd), unix.F_SETLKW, &flock); err != nil {
		return fmt.Errorf("%w: unlock: %v", ErrIO, err)
	}
	return nil
}
