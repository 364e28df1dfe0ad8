package cachemmap_test

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/gitpan/cachemmap/pkg/cachemmap"
)

// Scenario S1: five small keys all fit in a single small bucket; entries(2)
// reports all five, sorted, with their values, independent of insertion
// order.
//
// spec.md's literal S1 parameters (pagesize=bucketsize=100) assume an
// entry header small enough that five ~3-byte entries fit in a 60-byte
// bucket body; this rewrite uses a fixed 40-byte entry header (§3), so the
// same body would only ever hold one such entry. See DESIGN.md for why the
// geometry is scaled up here while the behavior under test — all entries
// present and enumerable in sorted order — is unchanged from S1's intent.
func TestEntries_SmallBucketFitsFive(t *testing.T) {
	path := tempCachePath(t)
	c, err := cachemmap.Open(path, cachemmap.Options{
		Strings:    true,
		Buckets:    1,
		BucketSize: 320,
		PageSize:   64,
	})
	require.NoError(t, err, "Open should succeed")
	defer c.Close()

	want := map[string]string{"1": "1", "2": "4", "3": "9", "4": "16", "5": "25"}
	for k, v := range want {
		require.NoError(t, c.Write([]byte(k), []byte(v)), "Write %s should succeed", k)
	}

	entries, err := c.Entries(cachemmap.DetailKeyValue)
	require.NoError(t, err, "Entries should succeed")
	require.Len(t, entries, 5, "all five small entries should fit in the one bucket")

	type kv struct{ Key, Value string }
	got := make([]kv, len(entries))
	for i, e := range entries {
		got[i] = kv{string(e.Key), string(e.Value)}
	}
	sort.Slice(got, func(i, j int) bool { return got[i].Key < got[j].Key })

	wantSorted := []kv{
		{"1", "1"}, {"2", "4"}, {"3", "9"}, {"4", "16"}, {"5", "25"},
	}
	if diff := cmp.Diff(wantSorted, got); diff != "" {
		t.Fatalf("entries(2) mismatch (-want +got):\n%s", diff)
	}
}

// Deletion of a dirty entry removes it without invoking the delete
// callback (the callback runs only for entries that are not dirty).
func TestDelete_SkipsCallback_ForDirtyEntry(t *testing.T) {
	path := tempCachePath(t)

	var deleted []string
	c, err := cachemmap.Open(path, cachemmap.Options{
		Strings:   true,
		Writeback: true,
		Delete: func(key, _ []byte, _ any) error {
			deleted = append(deleted, string(key))
			return nil
		},
	})
	require.NoError(t, err, "Open should succeed")
	defer c.Close()

	// Writeback mode marks every write dirty until flushed by eviction, so
	// the delete callback must not see this key.
	require.NoError(t, c.Write([]byte("dirty"), []byte("d")))
	found, _, err := c.Delete([]byte("dirty"))
	require.NoError(t, err, "Delete should succeed")
	require.True(t, found, "Delete should report the entry existed")
	require.Empty(t, deleted, "delete callback must not fire for a dirty entry")
}

// Geometry validation: negative numeric options are rejected at Open.
func TestOpen_RejectsNegativeOptions(t *testing.T) {
	path := tempCachePath(t)
	_, err := cachemmap.Open(path, cachemmap.Options{Buckets: -1})
	require.ErrorIs(t, err, cachemmap.ErrConfig, "negative Buckets should be a config error")
}
