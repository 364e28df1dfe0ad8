package cachemmap

import (
	"encoding/hex"
	"strconv"
)

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

// hexDump bounds the diagnostic payload of a CorruptionError to a readable
// snippet; the surrounding slice is already truncated by the caller before
// this is invoked.
func hexDump(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return hex.Dump(b)
}
