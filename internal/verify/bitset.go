package verify

import "math/bits"

// bitset marks which records are still waiting to be linearized.
type bitset []uint64

func newBitset(n int) bitset {
	return make(bitset, (n+63)/64)
}

// fill sets bits 0..n-1.
func (b bitset) fill(n int) bitset {
	for i := 0; i < n; i++ {
		b.set(i)
	}
	return b
}

func (b bitset) clone() bitset {
	c := make(bitset, len(b))
	copy(c, b)
	return c
}

func (b bitset) set(pos int) {
	b[pos/64] |= 1 << (uint(pos) % 64)
}

func (b bitset) clear(pos int) {
	b[pos/64] &^= 1 << (uint(pos) % 64)
}

func (b bitset) get(pos int) bool {
	return b[pos/64]&(1<<(uint(pos)%64)) != 0
}

// next returns the first set position >= pos, or -1.
func (b bitset) next(pos int) int {
	if pos < 0 {
		pos = 0
	}
	major := pos / 64
	if major >= len(b) {
		return -1
	}
	word := b[major] >> (uint(pos) % 64)
	if word != 0 {
		return pos + bits.TrailingZeros64(word)
	}
	for major++; major < len(b); major++ {
		if b[major] != 0 {
			return major*64 + bits.TrailingZeros64(b[major])
		}
	}
	return -1
}

func (b bitset) hash() uint64 {
	h := uint64(14695981039346656037)
	for _, w := range b {
		h ^= w
		h *= 1099511628211
	}
	return h
}

func (b bitset) equals(o bitset) bool {
	if len(b) != len(o) {
		return false
	}
	for i := range b {
		if b[i] != o[i] {
			return false
		}
	}
	return true
}
