package workqueue

import (
	"bytes"

	"github.com/ugorji/go/codec"
)

// record is the on-disk representation of a spilled ortho (spec.md
// §4.4), encoded with github.com/ugorji/go/codec's CBOR handle.
type record struct {
	Dims    []int
	Payload []int64
	Version uint64
}

var handle = func() *codec.CborHandle {
	h := &codec.CborHandle{}
	h.Canonical = true
	return h
}()

func encodeRecord(r record) ([]byte, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, handle)
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRecord(b []byte) (record, error) {
	var r record
	dec := codec.NewDecoderBytes(b, handle)
	err := dec.Decode(&r)
	return r, err
}
