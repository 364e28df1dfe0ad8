// Package valuecodec provides ValueCodec implementations for
// github.com/gitpan/cachemmap's structured-value (non-strings) mode.
package valuecodec

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
)

// JSON serializes values with encoding/json. Useful when cached values
// must be introspectable on disk or shared with non-Go tooling.
type JSON struct{}

func (JSON) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSON) Decode(b []byte, out any) error {
	return json.Unmarshal(b, out)
}

// Gob serializes values with encoding/gob. This is the same logic the
// cache uses by default when Options.ValueCodec is left unset; it is
// exported so callers can opt back into it explicitly after trying JSON,
// and so gob-encoded types can be registered once via gob.Register at
// package init without reaching into the cache package's internals.
type Gob struct{}

func (Gob) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (Gob) Decode(b []byte, out any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(out)
}
