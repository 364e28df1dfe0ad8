// Package cachemmap implements a shared, persistent, fixed-size key/value
// cache backed by a single memory-mapped file.
//
// Multiple independent processes may concurrently read and mutate the same
// file; mutual exclusion is achieved through byte-range advisory locks held
// on the file itself via [golang.org/x/sys/unix.FcntlFlock]. The cache sits
// in front of an optional user-supplied backing store (see package
// backingstore) and transparently pulls values on miss, writes values back
// through on update (or lazily on eviction), and removes values on delete.
//
// The on-disk layout is a fixed header page followed by a fixed number of
// equal-sized buckets, each holding a packed list of variable-length
// entries ordered by recency of access. See [Open] and [Options].
package cachemmap
