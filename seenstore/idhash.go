package seenstore

import "encoding/binary"

// idHash64 adapts a raw 64-bit ortho id to the hash.Hash64 interface
// github.com/holiman/bloomfilter/v2 expects, without any extra mixing —
// ortho ids are already well-distributed murmur3 hashes (ortho package),
// so no additional hashing round is needed.
type idHash64 uint64

func (h idHash64) Sum64() uint64 { return uint64(h) }

func (h idHash64) Write(p []byte) (int, error) {
	return 0, errNotSupported
}

func (h idHash64) Sum(b []byte) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(h))
	return append(b, buf[:]...)
}

func (h idHash64) Reset()         {}
func (h idHash64) Size() int      { return 8 }
func (h idHash64) BlockSize() int { return 8 }

var errNotSupported = errWrite("idHash64 does not support Write")

type errWrite string

func (e errWrite) Error() string { return string(e) }
