package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/gitpan/cachemmap/pkg/cachemmap"
)

var commandNames = []string{"write", "read", "writeval", "readval", "delete", "entries", "clear", "info", "help", "exit", "quit"}

type repl struct {
	cache   *cachemmap.Cache
	liner   *liner.State
	history string
}

func newREPL(cache *cachemmap.Cache) *repl {
	historyPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyPath = filepath.Join(home, ".mmapcache_history")
	}
	return &repl{cache: cache, history: historyPath}
}

func (r *repl) run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if r.history != "" {
		if f, err := os.Open(r.history); err == nil {
			r.liner.ReadHistory(f)
			f.Close()
		}
	}
	defer r.saveHistory()

	for {
		line, err := r.liner.Prompt("mmapcache> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.liner.AppendHistory(line)

		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "exit", "quit", "q":
			return nil
		case "help":
			r.printHelp()
		case "write":
			r.cmdWrite(args)
		case "read":
			r.cmdRead(args)
		case "writeval":
			r.cmdWriteVal(args)
		case "readval":
			r.cmdReadVal(args)
		case "delete":
			r.cmdDelete(args)
		case "entries":
			r.cmdEntries(args)
		case "clear":
			r.cmdClear()
		case "info":
			r.cmdInfo()
		default:
			fmt.Printf("unknown command %q; type 'help'\n", cmd)
		}
	}
}

func (r *repl) saveHistory() {
	if r.history == "" {
		return
	}
	if f, err := os.Create(r.history); err == nil {
		r.liner.WriteHistory(f)
		f.Close()
	}
}

func (r *repl) completer(line string) []string {
	var out []string
	for _, name := range commandNames {
		if strings.HasPrefix(name, line) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (r *repl) printHelp() {
	fmt.Println(`Commands:
  write <key> <value>   Insert or update an entry (raw bytes)
  read <key>             Retrieve an entry by key (raw bytes)
  writeval <key> <json>   Insert or update a structured value (JSON object of
                           strings) through the configured --codec
  readval <key>             Retrieve and JSON-print a structured value
  delete <key>            Delete an entry
  entries [detail]       List all live entries (detail 0-2, default 0)
  clear                  Quick-clear the whole cache
  info                   Show cache geometry
  help                   Show this help
  exit / quit / q        Exit`)
}

func (r *repl) cmdWrite(args []string) {
	if len(args) < 2 {
		fmt.Println("usage: write <key> <value>")
		return
	}
	key, value := []byte(args[0]), []byte(strings.Join(args[1:], " "))
	if err := r.cache.Write(key, value); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Println("ok")
}

func (r *repl) cmdRead(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: read <key>")
		return
	}
	value, found, err := r.cache.Read([]byte(args[0]))
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	if !found {
		fmt.Println("(not found)")
		return
	}
	fmt.Printf("%s\n", value)
}

// cmdWriteVal drives the structured (non-strings) value path: a JSON
// object of strings is decoded into a concrete map[string]string — rather
// than a bare interface{} — so the value round-trips through either
// codec (gob requires registering every concrete type that appears
// inside an interface{} field; a concrete map type needs none of that).
func (r *repl) cmdWriteVal(args []string) {
	if len(args) < 2 {
		fmt.Println("usage: writeval <key> <json-object-of-strings>")
		return
	}
	raw := strings.Join(args[1:], " ")
	var value map[string]string
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		fmt.Printf("invalid JSON object of strings: %v\n", err)
		return
	}
	if err := cachemmap.WriteValue(r.cache, []byte(args[0]), value); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Println("ok")
}

func (r *repl) cmdReadVal(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: readval <key>")
		return
	}
	value, found, err := cachemmap.ReadValue[map[string]string](r.cache, []byte(args[0]))
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	if !found {
		fmt.Println("(not found)")
		return
	}
	b, err := json.Marshal(value)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Printf("%s\n", b)
}

func (r *repl) cmdDelete(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: delete <key>")
		return
	}
	found, old, err := r.cache.Delete([]byte(args[0]))
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	if !found {
		fmt.Println("(not found)")
		return
	}
	fmt.Printf("deleted, old value: %s\n", old)
}

func (r *repl) cmdEntries(args []string) {
	detail := cachemmap.DetailKeyOnly
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 || n > 2 {
			fmt.Println("usage: entries [0|1|2]")
			return
		}
		detail = cachemmap.EntryDetail(n)
	}

	entries, err := r.cache.Entries(detail)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	for _, e := range entries {
		switch detail {
		case cachemmap.DetailKeyOnly:
			fmt.Printf("%s\n", e.Key)
		case cachemmap.DetailKeyMeta:
			fmt.Printf("%s\ttime=%d\tdirty=%v\n", e.Key, e.Time, e.Dirty)
		default:
			fmt.Printf("%s\ttime=%d\tdirty=%v\tvalue=%s\n", e.Key, e.Time, e.Dirty, e.Value)
		}
	}
	fmt.Printf("(%d entries)\n", len(entries))
}

func (r *repl) cmdClear() {
	answer, err := r.liner.Prompt("Are you sure you want to quick-clear this cache? (yes/no): ")
	if err != nil || strings.ToLower(strings.TrimSpace(answer)) != "yes" {
		fmt.Println("aborted")
		return
	}
	if err := r.cache.QuickClear(); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Println("cleared")
}

func (r *repl) cmdInfo() {
	fmt.Printf("buckets=%d bucketsize=%d pagesize=%d strings=%v expiry=%d writethrough=%v cachenegative=%v\n",
		r.cache.Buckets(), r.cache.BucketSize(), r.cache.PageSize(), r.cache.Strings(),
		r.cache.Expiry(), r.cache.Writethrough(), r.cache.CacheNegative())
}
