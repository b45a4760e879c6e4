package workqueue

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// chunkWriter appends length-prefixed records to a single spill chunk
// file, compressed with zstd (spec.md §4.4: "overflow is serialized to a
// sequence of append-only chunk files").
type chunkWriter struct {
	file *os.File
	buf  *bufio.Writer
	enc  *zstd.Encoder
}

func createChunkWriter(path string) (*chunkWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("workqueue: create chunk %s: %w", path, err)
	}
	buf := bufio.NewWriterSize(f, 64*1024)
	enc, err := zstd.NewWriter(buf, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		f.Close()
		return nil, err
	}
	return &chunkWriter{file: f, buf: buf, enc: enc}, nil
}

func (c *chunkWriter) append(r record) error {
	b, err := encodeRecord(r)
	if err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	if _, err := c.enc.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = c.enc.Write(b)
	return err
}

func (c *chunkWriter) close() error {
	if err := c.enc.Close(); err != nil {
		return err
	}
	if err := c.buf.Flush(); err != nil {
		return err
	}
	return c.file.Close()
}

// readChunk decodes every complete record in path. A corrupt chunk
// (unreadable header, bad zstd frame before any record) is reported via
// err with zero records; a torn write at the tail — a length prefix or
// record body that can't be fully read — is silently truncated to the
// last complete record, per spec.md §4.4.
func readChunk(path string) ([]record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("workqueue: open chunk %s: %w", path, err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("workqueue: corrupt chunk %s: %w", path, err)
	}
	defer dec.Close()

	var records []record
	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(dec, lenBuf[:]); err != nil {
			if len(records) == 0 && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("workqueue: corrupt chunk %s: %w", path, err)
			}
			break // clean EOF or torn length prefix: stop here either way
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		body := make([]byte, n)
		if _, err := io.ReadFull(dec, body); err != nil {
			break // torn record body: truncate to the last complete record
		}
		r, err := decodeRecord(body)
		if err != nil {
			break
		}
		records = append(records, r)
	}
	return records, nil
}
