package ortho

import (
	"encoding/binary"

	"github.com/spaolacci/murmur3"
)

// idOf computes the path-independent 63-bit identity hash over (dims,
// payload), per spec.md §4.2: "a fast non-cryptographic hash ... with
// the top bit cleared." murmur3's 128-bit sum is folded with xor into
// 64 bits before the top bit is cleared.
func idOf(dims []int, payload []int64) uint64 {
	buf := make([]byte, 0, 8*(len(dims)+len(payload)+1))
	var tmp [8]byte

	binary.LittleEndian.PutUint64(tmp[:], uint64(len(dims)))
	buf = append(buf, tmp[:]...)
	for _, d := range dims {
		binary.LittleEndian.PutUint64(tmp[:], uint64(d))
		buf = append(buf, tmp[:]...)
	}
	for _, v := range payload {
		binary.LittleEndian.PutUint64(tmp[:], uint64(v))
		buf = append(buf, tmp[:]...)
	}

	hi, lo := murmur3.Sum128(buf)
	id := hi ^ lo
	return id &^ (uint64(1) << 63)
}
