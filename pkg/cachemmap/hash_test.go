package cachemmap

import "testing"

func TestBucketHash_IsDeterministic(t *testing.T) {
	a := bucketHash([]byte("the quick brown fox"))
	b := bucketHash([]byte("the quick brown fox"))
	if a != b {
		t.Fatalf("bucketHash not deterministic: %d != %d", a, b)
	}
}

func TestBucketHash_DiffersForDifferentKeys(t *testing.T) {
	a := bucketHash([]byte("key-one"))
	b := bucketHash([]byte("key-two"))
	if a == b {
		t.Fatalf("bucketHash collided for distinct keys: both %d", a)
	}
}

func TestBucketIndex_WithinRange(t *testing.T) {
	const buckets = 13
	keys := []string{"", "a", "ab", "a very long key indeed, much longer than most", "\x00\x01\x02"}
	for _, k := range keys {
		idx := bucketIndex([]byte(k), buckets)
		if idx < 0 || idx >= buckets {
			t.Errorf("bucketIndex(%q)=%d, want [0,%d)", k, idx, buckets)
		}
	}
}

// bucketHash must use unsigned wraparound arithmetic so overflow never
// panics or produces a negative index on any platform.
func TestBucketHash_HandlesOverflowWithoutPanic(t *testing.T) {
	key := make([]byte, 4096)
	for i := range key {
		key[i] = byte(i)
	}
	_ = bucketHash(key)
}
