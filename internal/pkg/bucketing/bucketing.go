// Package bucketing maps stable identifiers to reproducible pseudo-random
// positions. It is the only source of randomness for experiment assignment.
package bucketing

import (
	"math"

	"github.com/cespare/xxhash/v2"
)

// Hash returns a well-distributed 32-bit hash of id. The 64-bit xxhash is
// folded so both halves contribute.
func Hash(id string) uint32 {
	h := xxhash.Sum64String(id)
	return uint32(h>>32) ^ uint32(h)
}

// Normalize returns Hash(id) scaled to [0,1].
func Normalize(id string) float64 {
	return float64(Hash(id)) / float64(math.MaxUint32)
}

// Bucket places id into one of n equal buckets. n <= 0 yields 0.
func Bucket(id string, n int) int {
	if n <= 0 {
		return 0
	}
	b := int(Normalize(id) * float64(n))
	if b >= n {
		b = n - 1
	}
	return b
}
