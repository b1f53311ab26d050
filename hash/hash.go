// Package hash computes stable, order-sensitive and order-insensitive
// digests used to dedup type-variable shapes and memoize worklist
// revisits. It mirrors the Hash type used throughout grailbio/gql's AST
// hashing, but is backed by murmur3 rather than a cryptographic digest,
// since nothing here needs collision resistance against an adversary --
// only stability across runs of the same process.
package hash

import (
	"encoding/binary"
	"sort"

	"github.com/spaolacci/murmur3"
)

// Hash is a 128bit digest. Two Hash values compare equal iff they were
// built from the same sequence of Merge calls (or the same multiset of
// Add calls).
type Hash struct {
	lo, hi uint64
}

// Bytes computes the hash of a byte sequence.
func Bytes(data []byte) Hash {
	lo, hi := murmur3.Sum128(data)
	return Hash{lo, hi}
}

// String computes the hash of a string.
func String(s string) Hash {
	return Bytes([]byte(s))
}

// Int computes the hash of an int64.
func Int(v int64) Hash {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	return Bytes(buf[:])
}

// Merge combines this hash with other in an order-sensitive way:
// h.Merge(x) != x.Merge(h) in general. Used to hash an ordered sequence,
// such as a T2's args in insertion order.
func (h Hash) Merge(other Hash) Hash {
	var buf [32]byte
	binary.LittleEndian.PutUint64(buf[0:8], h.lo)
	binary.LittleEndian.PutUint64(buf[8:16], h.hi)
	binary.LittleEndian.PutUint64(buf[16:24], other.lo)
	binary.LittleEndian.PutUint64(buf[24:32], other.hi)
	return Bytes(buf[:])
}

// Add combines this hash with other in an order-insensitive
// (commutative, associative) way: h.Add(x) == x.Add(h). Used to hash an
// unordered set, such as the members of an alias or function-index bitset.
func (h Hash) Add(other Hash) Hash {
	return Hash{h.lo + other.lo, h.hi + other.hi}
}

// IsZero reports whether h is the zero Hash.
func (h Hash) IsZero() bool { return h.lo == 0 && h.hi == 0 }

// SortedMerge hashes a set of hashes in a stable, sorted order. It is
// useful when a "deterministic up to insertion order" structure (like a
// Go map) needs a hash that doesn't depend on map iteration order.
func SortedMerge(seed Hash, hs []Hash) Hash {
	sorted := make([]Hash, len(hs))
	copy(sorted, hs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].hi != sorted[j].hi {
			return sorted[i].hi < sorted[j].hi
		}
		return sorted[i].lo < sorted[j].lo
	})
	h := seed
	for _, x := range sorted {
		h = h.Merge(x)
	}
	return h
}
