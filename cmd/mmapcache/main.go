// mmapcache is a simple CLI for interacting with cachemmap files.
//
// Usage:
//
//	mmapcache [opts] <cache-file>              Open an existing cache file
//	mmapcache new [opts] <cache-file>   Create a new cache file
//
// Options for 'new':
//
//	-b, --buckets       Number of buckets (default 13)
//	-s, --bucketsize    Bucket size in bytes (default 1024)
//	-p, --pagesize      Page size in bytes (default 1024)
//	    --strings       Store raw byte strings rather than serialized values
//	-e, --expiry        Expiry in seconds (0 disables)
//	-c, --config        JSONC config file overlaying the above
//
// Options shared by 'new' and plain open:
//
//	    --backing-dir   Directory-of-files backing store rooted here
//	    --backing-mem   In-memory backing store (demo/testing only)
//	    --codec         Value codec for structured (non-strings) mode: gob or json
//
// Commands (in REPL):
//
//	write <key> <value>      Insert or update an entry (raw bytes)
//	read <key>                Retrieve an entry by key (raw bytes)
//	writeval <key> <json>      Insert or update a structured value via the configured codec
//	readval <key>               Retrieve and JSON-print a structured value
//	delete <key>                  Delete an entry
//	entries [detail]             List all live entries (detail 0-2)
//	clear                         Quick-clear the whole cache
//	info                          Show cache geometry
//	help                          Show this help
//	exit / quit / q               Exit
package main

import (
	"errors"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/gitpan/cachemmap/pkg/backingstore"
	"github.com/gitpan/cachemmap/pkg/cachemmap"
	"github.com/gitpan/cachemmap/pkg/valuecodec"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		printUsage()
		return errors.New("missing command or cache file path")
	}

	if os.Args[1] == "new" {
		return runNew(os.Args[2:])
	}
	return runOpen(os.Args[1:])
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  mmapcache [opts] <cache-file>              Open an existing cache file\n")
	fmt.Fprintf(os.Stderr, "  mmapcache new [opts] <cache-file>   Create a new cache file\n")
	fmt.Fprintf(os.Stderr, "\nRun 'mmapcache new --help' for options.\n")
}

// backingFlags registers the backing-store and value-codec flags shared by
// 'new' and plain-open, and returns their destinations.
func backingFlags(fs *flag.FlagSet) (backingDir *string, backingMem *bool, codec *string) {
	backingDir = fs.String("backing-dir", "", "directory-of-files backing store rooted here")
	backingMem = fs.Bool("backing-mem", false, "in-memory backing store (demo/testing only)")
	codec = fs.String("codec", "gob", "value codec for structured (non-strings) mode: gob or json")
	return
}

// resolveBacking builds the Read/Write/Delete callbacks for opts from the
// CLI's backing-store flags. At most one of backingDir/backingMem may be
// set; neither set means no backing store (cache-only).
func resolveBacking(backingDir string, backingMem bool) (cachemmap.ReadFunc, cachemmap.WriteFunc, cachemmap.DeleteFunc, error) {
	if backingDir != "" && backingMem {
		return nil, nil, nil, errors.New("--backing-dir and --backing-mem are mutually exclusive")
	}
	if backingDir != "" {
		d, err := backingstore.NewDir(backingDir)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening backing dir %s: %w", backingDir, err)
		}
		return d.Read, d.Write, d.Delete, nil
	}
	if backingMem {
		m := backingstore.NewMap()
		return m.Read, m.Write, m.Delete, nil
	}
	return nil, nil, nil, nil
}

// resolveCodec maps the --codec flag to a cachemmap.ValueCodec.
func resolveCodec(name string) (cachemmap.ValueCodec, error) {
	switch name {
	case "", "gob":
		return valuecodec.Gob{}, nil
	case "json":
		return valuecodec.JSON{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q (want gob or json)", name)
	}
}

func runNew(args []string) error {
	fs := flag.NewFlagSet("new", flag.ExitOnError)

	buckets := fs.Int32P("buckets", "b", 0, "number of buckets")
	bucketSize := fs.Int32P("bucketsize", "s", 0, "bucket size in bytes")
	pageSize := fs.Int32P("pagesize", "p", 0, "page size in bytes")
	strings := fs.Bool("strings", false, "store raw byte strings rather than serialized values")
	expiry := fs.Int64P("expiry", "e", 0, "expiry in seconds (0 disables)")
	configPath := fs.StringP("config", "c", "", "JSONC config file overlaying the flags above")
	backingDir, backingMem, codec := backingFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: mmapcache new [options] <cache-file>\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return errors.New("missing cache file path")
	}
	cachePath := fs.Arg(0)

	if _, err := os.Stat(cachePath); err == nil {
		return fmt.Errorf("cache file already exists: %s (use 'mmapcache %s' to open it)", cachePath, cachePath)
	}

	valueCodec, err := resolveCodec(*codec)
	if err != nil {
		return err
	}

	opts := cachemmap.Options{
		Buckets:    *buckets,
		BucketSize: *bucketSize,
		PageSize:   *pageSize,
		Strings:    *strings,
		Expiry:     *expiry,
		ValueCodec: valueCodec,
	}

	if *configPath != "" {
		opts, err = loadFileConfig(*configPath, opts)
		if err != nil {
			return err
		}
	}

	opts.Read, opts.Write, opts.Delete, err = resolveBacking(*backingDir, *backingMem)
	if err != nil {
		return err
	}

	cache, err := cachemmap.Open(cachePath, opts)
	if err != nil {
		return fmt.Errorf("creating cache: %w", err)
	}
	defer cache.Close()

	fmt.Printf("Created %s: buckets=%d bucketsize=%d pagesize=%d strings=%v\n",
		cachePath, cache.Buckets(), cache.BucketSize(), cache.PageSize(), cache.Strings())

	repl := newREPL(cache)
	return repl.run()
}

func runOpen(args []string) error {
	fs := flag.NewFlagSet("open", flag.ExitOnError)
	backingDir, backingMem, codec := backingFlags(fs)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: mmapcache [options] <cache-file>\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return errors.New("missing cache file path")
	}
	cachePath := fs.Arg(0)

	if _, err := os.Stat(cachePath); os.IsNotExist(err) {
		return fmt.Errorf("cache file does not exist: %s (use 'mmapcache new %s' to create it)", cachePath, cachePath)
	}

	valueCodec, err := resolveCodec(*codec)
	if err != nil {
		return err
	}
	readFn, writeFn, deleteFn, err := resolveBacking(*backingDir, *backingMem)
	if err != nil {
		return err
	}

	// Geometry and strings are overridden from the on-disk header
	// regardless of what we pass here — see §4.5's geometry-stickiness
	// rule. Everything else (callbacks, codec) is this process's choice.
	cache, err := cachemmap.Open(cachePath, cachemmap.Options{
		Strings:    true,
		ValueCodec: valueCodec,
		Read:       readFn,
		Write:      writeFn,
		Delete:     deleteFn,
	})
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	defer cache.Close()

	repl := newREPL(cache)
	return repl.run()
}
