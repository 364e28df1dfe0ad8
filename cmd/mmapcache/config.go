package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"

	"github.com/gitpan/cachemmap/pkg/cachemmap"
)

// fileConfig is the JSONC shape accepted by --config for the `new`
// command; any field left unset falls back to cachemmap's own defaults.
type fileConfig struct {
	Buckets       *int32 `json:"buckets,omitempty"`
	BucketSize    *int32 `json:"bucketsize,omitempty"`
	PageSize      *int32 `json:"pagesize,omitempty"`
	Strings       *bool  `json:"strings,omitempty"`
	Expiry        *int64 `json:"expiry,omitempty"`
	CacheNegative *bool  `json:"cachenegative,omitempty"`
	Writeback     *bool  `json:"writeback,omitempty"`
}

// loadFileConfig reads a JSONC (JSON-with-comments) config file and
// applies it onto opts. Comments and trailing commas are accepted, same
// as the project config files elsewhere in this toolchain.
func loadFileConfig(path string, opts cachemmap.Options) (cachemmap.Options, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("reading config %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(raw)
	if err != nil {
		return opts, fmt.Errorf("invalid JSONC in %s: %w", path, err)
	}

	var fc fileConfig
	if err := json.Unmarshal(standardized, &fc); err != nil {
		return opts, fmt.Errorf("invalid config in %s: %w", path, err)
	}

	if fc.Buckets != nil {
		opts.Buckets = *fc.Buckets
	}
	if fc.BucketSize != nil {
		opts.BucketSize = *fc.BucketSize
	}
	if fc.PageSize != nil {
		opts.PageSize = *fc.PageSize
	}
	if fc.Strings != nil {
		opts.Strings = *fc.Strings
	}
	if fc.Expiry != nil {
		opts.Expiry = *fc.Expiry
	}
	if fc.CacheNegative != nil {
		opts.CacheNegative = *fc.CacheNegative
	}
	if fc.Writeback != nil {
		opts.Writeback = *fc.Writeback
	}

	return opts, nil
}
