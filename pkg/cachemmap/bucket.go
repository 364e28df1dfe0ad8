package cachemmap

// bucket is a view over one bucket's bytes within the mapped file: the
// bHeadSize-byte bucket header followed by bucketSize-bHeadSize bytes of
// packed entries. Every method assumes the caller already holds the
// bucket's exclusive byte-range lock.
type bucket struct {
	data []byte // bucket's full bucketSize-byte slice
	off  int64  // this bucket's file offset, for corruption diagnostics
	path string // cache file path, for corruption diagnostics
}

func (b *bucket) filled() int32 {
	return decodeBucketFilled(b.data)
}

func (b *bucket) setFilled(n int32) {
	encodeBucketFilled(b.data, n)
}

func (b *bucket) body() []byte {
	return b.data[bHeadSize:]
}

func (b *bucket) capacity() int32 {
	return int32(len(b.data)) - bHeadSize
}

// findResult is returned by find on a successful match.
type findResult struct {
	prevOff int64 // offset of the preceding entry in the bucket, or -1 if this entry is the head
	off     int64 // offset of the matched entry, relative to body()
	hdr     entryHeader
	expired bool
}

// find walks the bucket's live entries left-to-right looking for key
// (already encoded). Keys are compared in decoded form. It returns
// (result, true) on a match, (zero, false) on a clean miss, and an error
// for a corrupt bucket.
func (b *bucket) find(c codec, key []byte) (findResult, bool, error) {
	body := b.body()
	filled := b.filled()

	want, err := c.decodeKey(key)
	if err != nil {
		return findResult{}, false, err
	}

	var prevOff int64 = -1
	var off int64
	for off < int64(filled) {
		if off+eHeadSize > int64(len(body)) {
			return findResult{}, false, b.corrupt(off, "super-sized entry")
		}
		hdr := decodeEntryHeader(body[off:])
		if hdr.size == 0 {
			return findResult{}, false, b.corrupt(off, "zero-sized entry")
		}
		entryEnd := off + int64(hdr.size)
		if entryEnd > int64(len(body)) {
			return findResult{}, false, b.corrupt(off, "super-sized entry")
		}

		keyStart := off + eHeadSize
		keyEnd := keyStart + int64(hdr.klen)
		entryKey, err := c.decodeKey(body[keyStart:keyEnd])
		if err != nil {
			return findResult{}, false, err
		}

		if bytesEqual(entryKey, want) {
			return findResult{
				prevOff: prevOff,
				off:     off,
				hdr:     hdr,
				expired: false, // expiry is evaluated by the caller, who knows "now"
			}, true, nil
		}

		prevOff = off
		off = entryEnd
	}
	return findResult{}, false, nil
}

func (b *bucket) corrupt(relOff int64, reason string) error {
	abs := b.off + bHeadSize + relOff
	body := b.body()
	start := relOff - 16
	if start < 0 {
		start = 0
	}
	end := relOff + 32
	if end > int64(len(body)) {
		end = int64(len(body))
	}
	return &CorruptionError{
		Path:   b.path,
		Offset: abs,
		Reason: reason,
		Around: append([]byte(nil), body[start:end]...),
	}
}

// swapWithPredecessor moves the entry at off one slot toward the bucket
// head by exchanging its byte range with the immediately preceding entry's
// byte range. This is the intra-bucket MRU reorder: cheap and local,
// chosen over a move-to-front shift to bound per-access work.
func (b *bucket) swapWithPredecessor(prevOff, off int64, size int32) {
	body := b.body()
	prevHdr := decodeEntryHeader(body[prevOff:])
	prevSize := int64(prevHdr.size)

	cur := append([]byte(nil), body[off:off+int64(size)]...)
	prev := append([]byte(nil), body[prevOff:prevOff+prevSize]...)

	copy(body[prevOff:], cur)
	copy(body[prevOff+int64(size):], prev)
}

// dropEntry removes the entry at [off, off+size) by shifting the tail of
// the bucket left and zero-filling the freed range, then decrementing
// filled. Used both for deletion and for discarding an expired clean
// entry found during read.
func (b *bucket) dropEntry(off int64, size int32) {
	body := b.body()
	filled := b.filled()
	tailStart := off + int64(size)
	tailLen := int64(filled) - tailStart
	if tailLen > 0 {
		copy(body[off:], body[tailStart:tailStart+tailLen])
	}
	newFilled := int64(filled) - int64(size)
	clear(body[newFilled : newFilled+int64(size)])
	b.setFilled(int32(newFilled))
}

// decodedEntry is a fully decoded view of a bucket entry, used by eviction,
// entries-enumeration, and deletion callback arguments.
type decodedEntry struct {
	key   []byte
	value []byte
	time  int64
	dirty bool
}

func (b *bucket) decodeEntryAt(c codec, off int64) (decodedEntry, error) {
	body := b.body()
	hdr := decodeEntryHeader(body[off:])
	keyStart := off + eHeadSize
	keyEnd := keyStart + int64(hdr.klen)
	valEnd := keyEnd + int64(hdr.vlen)

	key, err := c.decodeKey(body[keyStart:keyEnd])
	if err != nil {
		return decodedEntry{}, err
	}
	value, err := c.decodeRawValue(body[keyEnd:valEnd])
	if err != nil {
		return decodedEntry{}, err
	}

	return decodedEntry{
		key:   key,
		value: value,
		time:  int64(hdr.time),
		dirty: hdr.dirty(),
	}, nil
}

// insert implements §4.3 `_insert`: prepend the new entry as the bucket
// head, then evict from the tail until the bucket fits again, invoking the
// write callback for any dirty evictee when writeback mode is active.
//
// Returns the first error returned by onEvict, if any (the bucket is still
// rewritten) — callers propagate it after releasing the lock.
func (b *bucket) insert(c codec, key, value []byte, isWrite bool, now int64, writeback bool, onEvict func(decodedEntry) error) error {
	size := int64(eHeadSize + len(key) + len(value))
	if size > int64(b.capacity()) {
		return nil // too large to ever fit; caller decides fallback behavior
	}

	hdr := entryHeader{
		size: int32(size),
		time: int32(now),
		klen: int32(len(key)),
		vlen: int32(len(value)),
	}
	if isWrite && writeback {
		hdr.flags = flagDirty
	}

	body := b.body()
	filled := int64(b.filled())

	// New combined content: new entry, then the existing live bytes.
	combined := make([]byte, size+filled)
	encodeEntryHeader(combined, hdr)
	copy(combined[eHeadSize:], key)
	copy(combined[eHeadSize+int64(len(key)):], value)
	copy(combined[size:], body[:filled])

	capacity := int64(b.capacity())
	newFilled := int64(len(combined))
	if newFilled <= capacity {
		copy(body, combined)
		clear(body[newFilled:])
		b.setFilled(int32(newFilled))
		return nil
	}

	// Overflow: walk combined from the start, keeping the last entry
	// boundary that still fits; everything from there on is evicted.
	var poff int64
	for poff < capacity {
		h := decodeEntryHeader(combined[poff:])
		next := poff + int64(h.size)
		if next > capacity {
			break
		}
		poff = next
	}

	var firstErr error
	for off := poff; off < int64(len(combined)); {
		h := decodeEntryHeader(combined[off:])
		keyStart := off + eHeadSize
		keyEnd := keyStart + int64(h.klen)
		valEnd := keyEnd + int64(h.vlen)

		if onEvict != nil && h.dirty() {
			dk, kerr := c.decodeKey(combined[keyStart:keyEnd])
			dv, verr := c.decodeRawValue(combined[keyEnd:valEnd])
			if kerr == nil && verr == nil {
				if evictErr := onEvict(decodedEntry{key: dk, value: dv, time: int64(h.time), dirty: true}); evictErr != nil && firstErr == nil {
					firstErr = evictErr
				}
			}
		}
		off = valEnd
	}

	copy(body, combined[:poff])
	clear(body[poff:])
	b.setFilled(int32(poff))
	return firstErr
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
