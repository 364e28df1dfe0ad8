package cachemmap

import (
	"unicode/utf8"
)

// codec tag bytes prefixing every encoded key or raw-string value.
const (
	tagRaw     byte = ' ' // 0x20: ASCII/bytes, or a structured-serialization payload
	tagUnicode byte = 'U' // 0x55: UTF-8 (or platform-Unicode) decode required
)

// ValueCodec serializes and deserializes structured Go values into the
// opaque byte strings the bucket engine stores. It is consulted only by
// WriteValue / ReadValue, for values (never keys), which serve the
// structured (non-strings) mode; Cache.Write and Cache.Read never call it.
// See package valuecodec for the shipped implementations (the default is
// valuecodec.Gob).
type ValueCodec interface {
	Encode(v any) ([]byte, error)
	Decode(b []byte, out any) error
}

// codec implements the tag/passthrough half of §4.4: the cache-wide
// strings flag plus a per-call is_key bit decide whether bytes are stored
// as a tagged raw/Unicode byte string or as an already-serialized
// structured payload. The structured-serialization step itself (the
// ValueCodec) happens above this layer, in WriteValue/ReadValue, because
// Go keys and raw-mode values are always supplied as []byte — there is no
// separate in-memory Unicode-string key/value type at this API boundary,
// so this implementation's encoder always emits the ' ' tag and never
// 'U'. Decoding still honors a 'U' tag so a file written by another
// implementation of this format remains readable.
type codec struct {
	strings bool
}

// encodeKey tags a raw key byte string. Keys are always tagged raw per
// §4.4 (is_key implies byte-string tagging regardless of the strings
// flag).
func (c codec) encodeKey(key []byte) []byte {
	return tagBytes(key)
}

func (c codec) decodeKey(b []byte) ([]byte, error) {
	return untagBytes(b)
}

// encodeRawValue tags an already-opaque value byte string (strings mode,
// or an already-ValueCodec-serialized payload in structured mode — both
// just need the raw tag at this layer).
func (c codec) encodeRawValue(v []byte) []byte {
	return tagBytes(v)
}

func (c codec) decodeRawValue(b []byte) ([]byte, error) {
	return untagBytes(b)
}

func tagBytes(v []byte) []byte {
	if v == nil {
		return nil
	}
	out := make([]byte, 0, len(v)+1)
	out = append(out, tagRaw)
	out = append(out, v...)
	return out
}

func untagBytes(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, nil
	}
	tag, rest := b[0], b[1:]
	switch tag {
	case tagUnicode:
		if !utf8.Valid(rest) {
			return nil, ErrUnsupportedData
		}
		return rest, nil
	case tagRaw:
		return rest, nil
	default:
		return nil, ErrUnsupportedData
	}
}
