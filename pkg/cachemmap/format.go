package cachemmap

import "encoding/binary"

// File-format constants. All multi-byte integers are 32-bit signed,
// little-endian — see DESIGN.md for why this rewrite departs from the
// host-endian source format.
const (
	magic         int32 = 0x015AC_ACE
	formatVersion int32 = 1

	headSize   = 40 // header page fixed fields
	bHeadSize  = 40 // bucket header fixed fields
	eHeadSize  = 40 // entry header fixed fields
	minPageSize = headSize

	flagStrings int32 = 0x0001 // header flags bit 0
	flagDirty   int32 = 0x0001 // entry flags bit 0
)

// Header offsets within the file, per the fixed ten-word header page.
const (
	offMagic         = 0
	offBuckets       = 4
	offBucketSize    = 8
	offPageSize      = 12
	offFlags         = 16
	offFormatVersion = 20
	// offsets 24..40 are reserved, zero.
)

// header is the decoded form of the first headSize bytes of the file.
type header struct {
	magic         int32
	buckets       int32
	bucketSize    int32
	pageSize      int32
	flags         int32
	formatVersion int32
}

func decodeHeader(b []byte) header {
	le := binary.LittleEndian
	return header{
		magic:         int32(le.Uint32(b[offMagic:])),
		buckets:       int32(le.Uint32(b[offBuckets:])),
		bucketSize:    int32(le.Uint32(b[offBucketSize:])),
		pageSize:      int32(le.Uint32(b[offPageSize:])),
		flags:         int32(le.Uint32(b[offFlags:])),
		formatVersion: int32(le.Uint32(b[offFormatVersion:])),
	}
}

// encodeHeader writes h into the first headSize bytes of b, leaving the
// four reserved words (and everything to pageSize) untouched by the caller
// — the caller is expected to have zeroed the whole page first.
func encodeHeader(b []byte, h header) {
	le := binary.LittleEndian
	le.PutUint32(b[offMagic:], uint32(h.magic))
	le.PutUint32(b[offBuckets:], uint32(h.buckets))
	le.PutUint32(b[offBucketSize:], uint32(h.bucketSize))
	le.PutUint32(b[offPageSize:], uint32(h.pageSize))
	le.PutUint32(b[offFlags:], uint32(h.flags))
	le.PutUint32(b[offFormatVersion:], uint32(h.formatVersion))
}

// Bucket header: offset 0 of every bucket is `filled`; the remaining 36
// bytes up to bHeadSize are reserved.
const bucketOffFilled = 0

func decodeBucketFilled(bucket []byte) int32 {
	return int32(binary.LittleEndian.Uint32(bucket[bucketOffFilled:]))
}

func encodeBucketFilled(bucket []byte, filled int32) {
	binary.LittleEndian.PutUint32(bucket[bucketOffFilled:], uint32(filled))
}

// bucketOffset returns the file offset of bucket i.
func bucketOffset(pageSize, bucketSize int64, i int64) int64 {
	return pageSize + i*bucketSize
}

// Entry header: [size:4][time:4][klen:4][vlen:4][flags:4][reserved:20].
const (
	entryOffSize  = 0
	entryOffTime  = 4
	entryOffKLen  = 8
	entryOffVLen  = 12
	entryOffFlags = 16
)

type entryHeader struct {
	size  int32
	time  int32
	klen  int32
	vlen  int32
	flags int32
}

func decodeEntryHeader(b []byte) entryHeader {
	le := binary.LittleEndian
	return entryHeader{
		size:  int32(le.Uint32(b[entryOffSize:])),
		time:  int32(le.Uint32(b[entryOffTime:])),
		klen:  int32(le.Uint32(b[entryOffKLen:])),
		vlen:  int32(le.Uint32(b[entryOffVLen:])),
		flags: int32(le.Uint32(b[entryOffFlags:])),
	}
}

func encodeEntryHeader(b []byte, e entryHeader) {
	le := binary.LittleEndian
	le.PutUint32(b[entryOffSize:], uint32(e.size))
	le.PutUint32(b[entryOffTime:], uint32(e.time))
	le.PutUint32(b[entryOffKLen:], uint32(e.klen))
	le.PutUint32(b[entryOffVLen:], uint32(e.vlen))
	le.PutUint32(b[entryOffFlags:], uint32(e.flags))
}

func (e entryHeader) dirty() bool {
	return e.flags&flagDirty != 0
}

// roundUpToMultiple rounds n up to the next multiple of m (m > 0).
func roundUpToMultiple(n, m int64) int64 {
	if n%m == 0 {
		return n
	}
	return (n/m + 1) * m
}
