package cachemmap

import "errors"

// Error classification codes.
//
// Implementations wrap these with additional context via fmt.Errorf's %w
// verb. Callers classify errors using errors.Is.
var (
	// ErrConfig indicates an invalid option was passed to Open.
	ErrConfig = errors.New("cachemmap: invalid option")

	// ErrIO indicates an open, seek, read, write, mmap, or lock syscall
	// failed.
	ErrIO = errors.New("cachemmap: io error")

	// ErrFormat indicates the wrong magic number or an unsupported format
	// version. A file too small to hold a header is initialized as a new
	// cache instead.
	ErrFormat = errors.New("cachemmap: not a valid cache file")

	// ErrCorrupt indicates a zero-sized or super-sized entry was
	// encountered while walking a bucket.
	ErrCorrupt = errors.New("cachemmap: corrupt entry")

	// ErrUnsupportedData indicates a Unicode-tagged value could not be
	// decoded.
	ErrUnsupportedData = errors.New("cachemmap: unsupported data")

	// ErrCallback marks an error returned by a user-supplied read, write,
	// or delete callback. The callback's error text is included in the
	// message, but the callback's error value is not wrapped: errors.Is
	// and errors.Unwrap reach ErrCallback, not the callback's own error.
	ErrCallback = errors.New("cachemmap: callback error")

	// ErrClosed indicates an operation was attempted on a closed Cache.
	ErrClosed = errors.New("cachemmap: closed")
)

// CorruptionError describes a corrupt entry encountered while walking a
// bucket: a zero-sized entry header, or an entry whose declared size runs
// past the end of its bucket.
type CorruptionError struct {
	Path   string // cache file path
	Offset int64  // byte offset of the offending entry header
	Reason string // "zero-sized entry" or "super-sized entry"
	Around []byte // bytes surrounding Offset, for diagnostics
}

func (e *CorruptionError) Error() string {
	return "cachemmap: " + e.Reason + " at " + e.Path + " offset " + itoa(e.Offset) + "\n" + hexDump(e.Around)
}

func (e *CorruptionError) Unwrap() error {
	return ErrCorrupt
}
