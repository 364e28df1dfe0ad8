package cachemmap

import (
	"fmt"
	"os"

	"github.com/gitpan/cachemmap/pkg/valuecodec"
)

// ReadFunc fetches a value from the backing store on a cache miss. It
// returns (value, found, err); a nil value with found=true is a stored nil.
type ReadFunc func(key []byte, ctx any) (value []byte, found bool, err error)

// WriteFunc commits key/value to the backing store — synchronously from
// Write when Options.Writeback is false, or lazily on eviction of a
// dirty entry otherwise.
type WriteFunc func(key, value []byte, ctx any) error

// DeleteFunc removes key from the backing store. It is only invoked when
// the cached entry being deleted was not dirty.
type DeleteFunc func(key, cachedValue []byte, ctx any) error

// Options configures a new or existing cache file. Numeric fields must be
// positive; see Open for validation and for which fields are overridden by
// on-disk geometry when the file already exists.
type Options struct {
	Buckets    int32 // number of buckets (new files only); default 13
	BucketSize int32 // bucket size in bytes (new files only); default 1024
	PageSize   int32 // header/alignment unit (new files only); default 1024, must be >= 40

	Strings bool // treat values as opaque byte strings rather than serialized Go values

	Expiry int64 // seconds; 0 disables expiry

	Permissions os.FileMode // POSIX mode for a newly created file; default 0o600

	Context any // opaque value passed to Read/Write/Delete callbacks

	Read   ReadFunc
	Write  WriteFunc
	Delete DeleteFunc

	CacheNegative bool // cache misses so subsequent reads skip the backing store

	// Writeback defers the Write callback to eviction of a dirty entry
	// instead of running it synchronously from Write. The zero value
	// (false) is writethrough, matching the documented default — see
	// Cache.Writethrough for the public accessor.
	Writeback bool

	// ValueCodec serializes structured values when Strings is false.
	// Defaults to a gob-based codec; see package valuecodec for JSON.
	ValueCodec ValueCodec
}

// defaultOptions returns the Options table from the on-disk format spec,
// applied before a caller's explicit overrides.
func defaultOptions() Options {
	return Options{
		Buckets:     13,
		BucketSize:  1024,
		PageSize:    1024,
		Permissions: 0o600,
	}
}

// validate checks option invariants that don't depend on whether the file
// already exists. Geometry checks that depend on on-disk values happen in
// Open. A zero Buckets/BucketSize/PageSize means "use the default" (see
// normalize) rather than an invalid value; only negative values are
// rejected here.
func (o Options) validate() error {
	if o.Buckets < 0 {
		return fmt.Errorf("%w: buckets must be positive, got %d", ErrConfig, o.Buckets)
	}
	if o.BucketSize < 0 {
		return fmt.Errorf("%w: bucketsize must be positive, got %d", ErrConfig, o.BucketSize)
	}
	if o.PageSize != 0 && o.PageSize < minPageSize {
		return fmt.Errorf("%w: pagesize must be >= %d, got %d", ErrConfig, minPageSize, o.PageSize)
	}
	if o.Expiry < 0 {
		return fmt.Errorf("%w: expiry must be >= 0, got %d", ErrConfig, o.Expiry)
	}
	return nil
}

// normalize fills in defaults for zero-valued fields and rounds bucketsize
// up to a multiple of pagesize, per §4.5.
func (o Options) normalize() Options {
	d := defaultOptions()
	if o.Buckets == 0 {
		o.Buckets = d.Buckets
	}
	if o.BucketSize == 0 {
		o.BucketSize = d.BucketSize
	}
	if o.PageSize == 0 {
		o.PageSize = d.PageSize
	}
	if o.Permissions == 0 {
		o.Permissions = d.Permissions
	}
	if o.ValueCodec == nil {
		o.ValueCodec = valuecodec.Gob{}
	}
	o.BucketSize = int32(roundUpToMultiple(int64(o.BucketSize), int64(o.PageSize)))
	return o
}
