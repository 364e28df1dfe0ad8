package cachemmap

import (
	"fmt"
	"os"
	"time"
)

// Cache is a handle on a shared, persistent, fixed-size key/value cache
// file. A Cache owns an open file descriptor and a mapped region for its
// process lifetime; Close unmaps and closes both. Multiple processes may
// operate on the same file concurrently — see the package doc comment.
// The byte-range locks are held per process, so Cache handles (or
// goroutines) within one process do not exclude each other, and closing
// any handle on the file releases that process's locks on it.
type Cache struct {
	path string
	file *os.File
	data []byte

	buckets    int32
	bucketSize int32
	pageSize   int32
	strings    bool

	opts   Options
	codec  codec
	closed bool
}

// Open opens path, creating it with opts if it does not exist. On an
// existing file, the on-disk buckets/bucketsize/pagesize/strings override
// the corresponding fields of opts — see §4.5's geometry-stickiness rule.
func Open(path string, opts Options) (*Cache, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts = opts.normalize()

	f, err := openOrCreate(path, opts.Permissions)
	if err != nil {
		return nil, err
	}
	ok := false
	defer func() {
		if !ok {
			f.Close()
		}
	}()

	if err := lockRange(int(f.Fd()), 0, headSize, true); err != nil {
		return nil, err
	}
	defer unlockRange(int(f.Fd()), 0, headSize)

	hdr, isFresh, err := readOrInitHeader(f, opts)
	if err != nil {
		return nil, err
	}

	total := int64(hdr.pageSize) + int64(hdr.buckets)*int64(hdr.bucketSize)
	if err := ensureSize(f, total); err != nil {
		return nil, err
	}

	if isFresh {
		page := make([]byte, hdr.pageSize)
		encodeHeader(page, hdr)
		if _, err := f.WriteAt(page, 0); err != nil {
			return nil, fmt.Errorf("%w: write header: %v", ErrIO, err)
		}
		if err := f.Sync(); err != nil {
			return nil, fmt.Errorf("%w: sync: %v", ErrIO, err)
		}
	}

	data, err := mmapFile(f, total)
	if err != nil {
		return nil, err
	}

	ok = true
	c := &Cache{
		path:       path,
		file:       f,
		data:       data,
		buckets:    hdr.buckets,
		bucketSize: hdr.bucketSize,
		pageSize:   hdr.pageSize,
		strings:    hdr.flags&flagStrings != 0,
		opts:       opts,
	}
	c.codec = codec{strings: c.strings}
	return c, nil
}

// readOrInitHeader implements §4.2 `_set_options` under the caller's
// already-held header lock: read and validate an existing header, or
// compute a fresh one from opts.
func readOrInitHeader(f *os.File, opts Options) (header, bool, error) {
	buf := make([]byte, headSize)
	n, err := f.ReadAt(buf, 0)
	if err != nil && n < headSize {
		// Short read (including io.EOF on an empty/too-small file) means
		// there is no valid existing header; fall through to create one.
		h := header{
			magic:         magic,
			buckets:       opts.Buckets,
			bucketSize:    opts.BucketSize,
			pageSize:      opts.PageSize,
			formatVersion: formatVersion,
		}
		if opts.Strings {
			h.flags |= flagStrings
		}
		return h, true, nil
	}

	hdr := decodeHeader(buf)
	if hdr.magic != magic {
		return header{}, false, fmt.Errorf("%w: bad magic in %s", ErrFormat, f.Name())
	}
	if hdr.formatVersion != formatVersion {
		return header{}, false, fmt.Errorf("%w: unsupported format version %d in %s (only supports v%d)", ErrFormat, hdr.formatVersion, f.Name(), formatVersion)
	}
	return hdr, false, nil
}

// Close unmaps the file and closes the descriptor. It is safe to call
// Close more than once.
func (c *Cache) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if err := munmapFile(c.data); err != nil {
		c.file.Close()
		return err
	}
	if err := c.file.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", ErrIO, err)
	}
	return nil
}

// --- accessors (§6 public operations) ---

func (c *Cache) Buckets() int32      { return c.buckets }
func (c *Cache) BucketSize() int32   { return c.bucketSize }
func (c *Cache) PageSize() int32     { return c.pageSize }
func (c *Cache) Strings() bool       { return c.strings }
func (c *Cache) Expiry() int64       { return c.opts.Expiry }
func (c *Cache) CacheNegative() bool { return c.opts.CacheNegative }

// Writethrough reports whether Write flushes to the backing store
// synchronously (true) or defers to eviction (false). See Options.Writeback.
func (c *Cache) Writethrough() bool { return !c.opts.Writeback }

func (c *Cache) Context() any       { return c.opts.Context }
func (c *Cache) SetContext(ctx any) { c.opts.Context = ctx }

// --- locking ---

func (c *Cache) withBucketLock(key []byte, fn func(b *bucket) error) error {
	idx := bucketIndex(key, c.buckets)
	off := bucketOffset(int64(c.pageSize), int64(c.bucketSize), idx)
	fd := int(c.file.Fd())

	if err := lockRange(fd, off, int64(c.bucketSize), true); err != nil {
		return err
	}
	defer unlockRange(fd, off, int64(c.bucketSize))

	b := &bucket{data: c.data[off : off+int64(c.bucketSize)], off: off, path: c.path}
	return fn(b)
}

func (c *Cache) now() int64 {
	return time.Now().Unix()
}

func (c *Cache) expired(entryTime int64) bool {
	return c.opts.Expiry != 0 && c.now()-entryTime > c.opts.Expiry
}

// makeEvictFunc returns the callback insert() invokes for each dirty
// entry evicted from a bucket's tail — see §4.3 step 4.
func (c *Cache) makeEvictFunc() func(decodedEntry) error {
	if c.opts.Write == nil || !c.opts.Writeback {
		return nil
	}
	return func(e decodedEntry) error {
		if err := c.opts.Write(e.key, e.value, c.opts.Context); err != nil {
			return fmt.Errorf("%w: %v", ErrCallback, err)
		}
		return nil
	}
}

// Read implements §4.3's top-level read algorithm. The returned value is
// the encoded form stored on disk with its tag stripped: the literal
// cached bytes in strings mode, or the still-ValueCodec-serialized payload
// in structured mode — see ReadValue to decode the latter into a Go type.
func (c *Cache) Read(key []byte) (value []byte, found bool, err error) {
	if c.closed {
		return nil, false, ErrClosed
	}
	encKey := c.codec.encodeKey(key)

	err = c.withBucketLock(key, func(b *bucket) error {
		res, hit, ferr := b.find(c.codec, encKey)
		if ferr != nil {
			return ferr
		}

		if hit {
			if c.expired(int64(res.hdr.time)) && !res.hdr.dirty() {
				b.dropEntry(res.off, res.hdr.size)
			} else {
				entryOff := res.off
				if res.prevOff >= 0 {
					b.swapWithPredecessor(res.prevOff, res.off, res.hdr.size)
					// The matched entry now starts where its predecessor did.
					entryOff = res.prevOff
				}
				keyEnd := entryOff + eHeadSize + int64(res.hdr.klen)
				valEnd := keyEnd + int64(res.hdr.vlen)
				decoded, derr := c.codec.decodeRawValue(b.body()[keyEnd:valEnd])
				if derr != nil {
					return derr
				}
				value, found = decoded, true
				return nil
			}
		}

		return c.fillOnMiss(b, key, encKey, &value, &found)
	})

	return value, found, err
}

// fillOnMiss implements the "on clean-expired or miss" branch of §4.3's
// read algorithm: consult the read callback (if any), and insert the
// result when found or when negative caching is enabled.
func (c *Cache) fillOnMiss(b *bucket, key, encKey []byte, value *[]byte, found *bool) error {
	if c.opts.Read == nil {
		if c.opts.CacheNegative {
			return b.insert(c.codec, encKey, nil, false, c.now(), c.opts.Writeback, c.makeEvictFunc())
		}
		return nil
	}

	cbValue, cbFound, cbErr := c.opts.Read(key, c.opts.Context)
	if cbErr != nil {
		return fmt.Errorf("%w: %v", ErrCallback, cbErr)
	}
	if cbFound {
		*value, *found = cbValue, true
	}
	if cbFound || c.opts.CacheNegative {
		var encValue []byte
		if cbFound {
			encValue = c.codec.encodeRawValue(cbValue)
		}
		return b.insert(c.codec, encKey, encValue, false, c.now(), c.opts.Writeback, c.makeEvictFunc())
	}
	return nil
}

// Write implements §4.3's top-level write algorithm. value is the
// already-encoded application payload: the literal bytes in strings mode,
// or a ValueCodec-serialized payload in structured mode — see WriteValue.
func (c *Cache) Write(key, value []byte) error {
	if c.closed {
		return ErrClosed
	}
	encKey := c.codec.encodeKey(key)
	encValue := c.codec.encodeRawValue(value)

	size := int64(eHeadSize + len(encKey) + len(encValue))
	capacity := int64(c.bucketSize) - bHeadSize

	if size <= capacity {
		return c.withBucketLock(key, func(b *bucket) error {
			if res, hit, ferr := b.find(c.codec, encKey); ferr != nil {
				return ferr
			} else if hit {
				b.dropEntry(res.off, res.hdr.size)
			}

			if err := b.insert(c.codec, encKey, encValue, true, c.now(), c.opts.Writeback, c.makeEvictFunc()); err != nil {
				return err
			}

			if !c.opts.Writeback && c.opts.Write != nil {
				if err := c.opts.Write(key, value, c.opts.Context); err != nil {
					return fmt.Errorf("%w: %v", ErrCallback, err)
				}
			}
			return nil
		})
	}

	if c.opts.Write != nil {
		if _, _, err := c.Delete(key); err != nil {
			return err
		}
		if err := c.opts.Write(key, value, c.opts.Context); err != nil {
			return fmt.Errorf("%w: %v", ErrCallback, err)
		}
		return nil
	}

	// No backing store and it doesn't fit: silently dropped, per §4.3.
	return nil
}

// Delete implements §4.3's deletion algorithm.
func (c *Cache) Delete(key []byte) (found bool, oldValue []byte, err error) {
	if c.closed {
		return false, nil, ErrClosed
	}
	encKey := c.codec.encodeKey(key)

	err = c.withBucketLock(key, func(b *bucket) error {
		res, hit, ferr := b.find(c.codec, encKey)
		if ferr != nil {
			return ferr
		}
		if !hit {
			return nil
		}

		dec, derr := b.decodeEntryAt(c.codec, res.off)
		if derr != nil {
			return derr
		}
		found, oldValue = true, dec.value

		if !dec.dirty && c.opts.Delete != nil {
			if err := c.opts.Delete(key, dec.value, c.opts.Context); err != nil {
				return fmt.Errorf("%w: %v", ErrCallback, err)
			}
		}

		b.dropEntry(res.off, res.hdr.size)
		return nil
	})

	return found, oldValue, err
}

// EntryDetail controls how much information Entries reports per entry.
type EntryDetail int

const (
	DetailKeyOnly  EntryDetail = 0
	DetailKeyMeta  EntryDetail = 1
	DetailKeyValue EntryDetail = 2
)

// EntryInfo is one element of an Entries snapshot.
type EntryInfo struct {
	Key   []byte
	Time  int64
	Dirty bool
	Value []byte // populated only at DetailKeyValue
}

// Entries enumerates the cache's live, non-expired entries bucket by
// bucket. The result is a best-effort snapshot: buckets are locked and
// walked one at a time, so it is not atomic across the whole file — see §4.3.
func (c *Cache) Entries(detail EntryDetail) ([]EntryInfo, error) {
	if c.closed {
		return nil, ErrClosed
	}
	var out []EntryInfo

	for i := int64(0); i < int64(c.buckets); i++ {
		off := bucketOffset(int64(c.pageSize), int64(c.bucketSize), i)
		fd := int(c.file.Fd())
		if err := lockRange(fd, off, int64(c.bucketSize), true); err != nil {
			return out, err
		}

		b := &bucket{data: c.data[off : off+int64(c.bucketSize)], off: off, path: c.path}
		body := b.body()
		filled := int64(b.filled())

		var walkErr error
		for pos := int64(0); pos < filled; {
			hdr := decodeEntryHeader(body[pos:])
			if hdr.size == 0 {
				walkErr = b.corrupt(pos, "zero-sized entry")
				break
			}
			if pos+int64(hdr.size) > int64(len(body)) {
				walkErr = b.corrupt(pos, "super-sized entry")
				break
			}

			if !c.expired(int64(hdr.time)) {
				dec, derr := b.decodeEntryAt(c.codec, pos)
				if derr != nil {
					walkErr = derr
					break
				}
				info := EntryInfo{Key: dec.key}
				if detail >= DetailKeyMeta {
					info.Time = dec.time
					info.Dirty = dec.dirty
				}
				if detail >= DetailKeyValue {
					info.Value = dec.value
				}
				out = append(out, info)
			}

			pos += int64(hdr.size)
		}

		unlockRange(fd, off, int64(c.bucketSize))
		if walkErr != nil {
			return out, walkErr
		}
	}

	return out, nil
}

// QuickClear implements §4.3's destructive fast-path clear: every bucket
// is zeroed without flushing dirty entries.
func (c *Cache) QuickClear() error {
	if c.closed {
		return ErrClosed
	}
	fd := int(c.file.Fd())
	if err := lockRange(fd, 0, headSize, true); err != nil {
		return err
	}
	defer unlockRange(fd, 0, headSize)

	for i := int64(0); i < int64(c.buckets); i++ {
		off := bucketOffset(int64(c.pageSize), int64(c.bucketSize), i)
		clear(c.data[off : off+int64(c.bucketSize)])
	}
	return nil
}

// WriteValue serializes v with c's configured ValueCodec (gob by default;
// see package valuecodec) and writes it under key. It is the structured-
// mode counterpart of Cache.Write, which only ever sees already-encoded
// bytes.
func WriteValue[V any](c *Cache, key []byte, v V) error {
	encoded, err := c.opts.ValueCodec.Encode(v)
	if err != nil {
		return err
	}
	return c.Write(key, encoded)
}

// ReadValue reads key and decodes it with c's configured ValueCodec into a
// V. found is false if the key was absent.
func ReadValue[V any](c *Cache, key []byte) (v V, found bool, err error) {
	raw, found, err := c.Read(key)
	if err != nil || !found {
		return v, found, err
	}
	err = c.opts.ValueCodec.Decode(raw, &v)
	return v, found, err
}
