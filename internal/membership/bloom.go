package membership

import (
	"hash/fnv"
	"math"
	"sync"
)

// BloomFilter answers "definitely not a member" without touching the
// store. Double hashing: two FNV-64a digests combined as h1 + i*h2 stand
// in for k independent hash functions.
type BloomFilter struct {
	mu     sync.RWMutex
	words  []uint64
	nbits  uint64
	hashes uint
}

// NewBloomFilter sizes the filter for expectedItems at the given false
// positive rate. Sizing follows the standard optima:
// m = -n*ln(p)/ln(2)^2 bits, k = (m/n)*ln(2) hash functions.
func NewBloomFilter(expectedItems int, fpr float64) *BloomFilter {
	if expectedItems <= 0 {
		expectedItems = 1
	}
	if fpr <= 0 || fpr >= 1 {
		fpr = 0.001
	}

	n := float64(expectedItems)
	nbits := uint64(math.Ceil(-n * math.Log(fpr) / (math.Ln2 * math.Ln2)))
	hashes := uint(math.Ceil(float64(nbits) / n * math.Ln2))
	if hashes < 1 {
		hashes = 1
	}

	return &BloomFilter{
		words:  make([]uint64, (nbits+63)/64),
		nbits:  nbits,
		hashes: hashes,
	}
}

// Add inserts a key.
func (bf *BloomFilter) Add(key string) {
	h1, h2 := digest(key)
	bf.mu.Lock()
	defer bf.mu.Unlock()
	for i := uint(0); i < bf.hashes; i++ {
		pos := (h1 + uint64(i)*h2) % bf.nbits
		bf.words[pos>>6] |= 1 << (pos & 63)
	}
}

// MayContain reports false only when key was never added; true means the
// key is present up to the configured false positive rate.
func (bf *BloomFilter) MayContain(key string) bool {
	h1, h2 := digest(key)
	bf.mu.RLock()
	defer bf.mu.RUnlock()
	for i := uint(0); i < bf.hashes; i++ {
		pos := (h1 + uint64(i)*h2) % bf.nbits
		if bf.words[pos>>6]&(1<<(pos&63)) == 0 {
			return false
		}
	}
	return true
}

// digest derives the two base hashes: FNV-64a of the key, and FNV-64a of
// the key with a salt byte, so the pair is independent enough for double
// hashing.
func digest(key string) (uint64, uint64) {
	h := fnv.New64a()
	h.Write([]byte(key))
	h1 := h.Sum64()

	h.Reset()
	h.Write([]byte(key))
	h.Write([]byte{0xb1})
	h2 := h.Sum64()
	if h2 == 0 {
		h2 = 1
	}
	return h1, h2
}
