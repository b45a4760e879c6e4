package seenstore

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"
)

// landingLog is the append-only, compressed journal backing "observe
// appends to a landing log" (spec.md §4.3 variant B). It is purely a
// redundant record of the current generation's admissions: SeenStore
// directories are always wiped on initialization (spec.md §6), so the
// log never needs to be replayed across process restarts; it exists so
// a generation's insert order is recoverable for diagnostics without
// re-deriving it from the in-memory landing set.
type landingLog struct {
	file *os.File
	buf  *bufio.Writer
	enc  *zstd.Encoder
}

func newLandingLog(path string) (*landingLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("seenstore: create landing log %s: %w", path, err)
	}
	buf := bufio.NewWriterSize(f, 64*1024)
	enc, err := zstd.NewWriter(buf, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("seenstore: new zstd encoder: %w", err)
	}
	return &landingLog{file: f, buf: buf, enc: enc}, nil
}

func (l *landingLog) append(id uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], id)
	_, err := l.enc.Write(b[:])
	return err
}

func (l *landingLog) close() error {
	if err := l.enc.Close(); err != nil {
		return err
	}
	if err := l.buf.Flush(); err != nil {
		return err
	}
	return l.file.Close()
}

func (l *landingLog) removeFile() error {
	return os.Remove(l.file.Name())
}
