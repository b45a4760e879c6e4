// Copyright 2026 The Ortho Authors
// This file is part of ortho.

// Package snapshot implements the binary frontier-out/resume-in format
// of spec.md §6: magic + format version, the full Interner state, the
// Frontier, and an optional best ortho. Round trip is exact:
// Save(Load(s)) == s byte-for-byte.
package snapshot

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/klauspost/compress/zstd"

	"github.com/michaelrauh/ortho/frontier"
	"github.com/michaelrauh/ortho/internal/bitset"
	"github.com/michaelrauh/ortho/interner"
	"github.com/michaelrauh/ortho/ortho"
)

const (
	magic         uint32 = 0x4f52544f // "ORTO"
	formatVersion uint32 = 1
)

// Snapshot is the decoded form of the binary format.
type Snapshot struct {
	Interner  *interner.Interner
	Frontier  *frontier.Frontier
	BestOrtho *ortho.Ortho // nil if absent
}

// Save encodes s in the exact byte layout Load expects. The magic and
// format version are written uncompressed so a malformed file is
// rejected before any zstd decode is attempted; the body (Interner,
// Frontier, optional best ortho) is a single zstd frame, matching the
// body compression workqueue chunk files and SeenStore landing logs use
// elsewhere in this module.
func Save(w io.Writer, s Snapshot) error {
	if err := writeUint32(w, magic); err != nil {
		return err
	}
	if err := writeUint32(w, formatVersion); err != nil {
		return err
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("snapshot: create zstd writer: %w", err)
	}
	bw := bufio.NewWriter(enc)

	if err := saveInterner(bw, s.Interner); err != nil {
		return err
	}
	if err := saveFrontier(bw, s.Frontier); err != nil {
		return err
	}
	if err := saveBestOrtho(bw, s.BestOrtho); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return enc.Close()
}

// Load decodes a Snapshot previously produced by Save. A malformed
// magic or format version is reported as an "Input malformed" error
// (spec.md §7) with no partial state returned.
func Load(r io.Reader) (Snapshot, error) {
	br := bufio.NewReader(r)

	gotMagic, err := readUint32(br)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: read magic: %w", err)
	}
	if gotMagic != magic {
		return Snapshot{}, fmt.Errorf("snapshot: bad magic %#x, input malformed", gotMagic)
	}
	gotVersion, err := readUint32(br)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: read format version: %w", err)
	}
	if gotVersion != formatVersion {
		return Snapshot{}, fmt.Errorf("snapshot: unsupported format version %d", gotVersion)
	}

	dec, err := zstd.NewReader(br)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: create zstd reader: %w", err)
	}
	defer dec.Close()
	body := bufio.NewReader(dec)

	in, err := loadInterner(body)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: load interner: %w", err)
	}
	fr, err := loadFrontier(body)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: load frontier: %w", err)
	}
	best, err := loadBestOrtho(body)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: load best ortho: %w", err)
	}

	return Snapshot{Interner: in, Frontier: fr, BestOrtho: best}, nil
}

func writeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func writeUvarint(w *bufio.Writer, v uint64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	_, err := w.Write(buf[:n])
	return err
}

func readUvarint(r io.ByteReader) (uint64, error) {
	return binary.ReadUvarint(r)
}

func writeString(w *bufio.Writer, s string) error {
	if err := writeUvarint(w, uint64(len(s))); err != nil {
		return err
	}
	_, err := w.WriteString(s)
	return err
}

func readString(r *bufio.Reader) (string, error) {
	n, err := readUvarint(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// saveInterner writes: token table length, length-prefixed UTF-8 token
// strings, then phrase-index entries (prefix length, prefix tokens,
// completion set). Entries are sorted by encoded prefix so Save is
// deterministic given the same logical content, which Save(Load(s))==s
// depends on.
func saveInterner(w *bufio.Writer, in *interner.Interner) error {
	tokens, version, entries := in.ExportAll()

	if err := writeUvarint(w, uint64(len(tokens))); err != nil {
		return err
	}
	for _, t := range tokens {
		if err := writeString(w, t); err != nil {
			return err
		}
	}
	if err := writeUvarint(w, version); err != nil {
		return err
	}

	sort.Slice(entries, func(i, j int) bool {
		return comparePrefixes(entries[i].Prefix, entries[j].Prefix) < 0
	})

	if err := writeUvarint(w, uint64(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		if err := writeUvarint(w, uint64(len(e.Prefix))); err != nil {
			return err
		}
		for _, t := range e.Prefix {
			if err := writeUvarint(w, uint64(t)); err != nil {
				return err
			}
		}
		if err := writeBitset(w, e.Completions.ToSlice()); err != nil {
			return err
		}
	}
	return nil
}

func comparePrefixes(a, b []interner.Token) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}

// writeBitset encodes a sorted member list as a varint delta run: count,
// then each member as the varint gap from the previous one. This is the
// concrete realization of spec.md §6's "completion bitset as
// varint-run-length-encoded word array" — gaps between set members
// compress just as well as a word-level RLE for the sparse-to-moderate
// densities phrase-completion sets have in practice, and round-trips
// exactly.
func writeBitset(w *bufio.Writer, members []uint32) error {
	if err := writeUvarint(w, uint64(len(members))); err != nil {
		return err
	}
	var prev uint32
	for i, m := range members {
		gap := m
		if i > 0 {
			gap = m - prev
		}
		if err := writeUvarint(w, uint64(gap)); err != nil {
			return err
		}
		prev = m
	}
	return nil
}

func readBitsetMembers(r *bufio.Reader) ([]uint32, error) {
	n, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	members := make([]uint32, n)
	var prev uint32
	for i := uint64(0); i < n; i++ {
		gap, err := readUvarint(r)
		if err != nil {
			return nil, err
		}
		v := uint32(gap)
		if i > 0 {
			v += prev
		}
		members[i] = v
		prev = v
	}
	return members, nil
}

func loadInterner(r *bufio.Reader) (*interner.Interner, error) {
	tokenCount, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	tokens := make([]string, tokenCount)
	for i := range tokens {
		tokens[i], err = readString(r)
		if err != nil {
			return nil, err
		}
	}

	version, err := readUvarint(r)
	if err != nil {
		return nil, err
	}

	entryCount, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	entries := make([]interner.PhraseEntry, entryCount)
	for i := range entries {
		prefixLen, err := readUvarint(r)
		if err != nil {
			return nil, err
		}
		prefix := make([]interner.Token, prefixLen)
		for j := range prefix {
			v, err := readUvarint(r)
			if err != nil {
				return nil, err
			}
			prefix[j] = interner.Token(v)
		}
		members, err := readBitsetMembers(r)
		if err != nil {
			return nil, err
		}
		entries[i] = interner.PhraseEntry{Prefix: prefix, Completions: bitset.Of(members...)}
	}

	return interner.LoadSnapshot(tokens, version, entries), nil
}

// saveFrontier writes: entry count, then per entry dims length + dims,
// version, and payload (length-prefixed, tokens as varints with 0
// reserved for empty, spec.md §6).
func saveFrontier(w *bufio.Writer, fr *frontier.Frontier) error {
	var orthos []*ortho.Ortho
	fr.Each(func(o *ortho.Ortho) { orthos = append(orthos, o) })

	sort.Slice(orthos, func(i, j int) bool {
		return compareDimsThenPayload(orthos[i], orthos[j]) < 0
	})

	if err := writeUvarint(w, uint64(len(orthos))); err != nil {
		return err
	}
	for _, o := range orthos {
		if err := writeOrtho(w, o); err != nil {
			return err
		}
	}
	return nil
}

func compareDimsThenPayload(a, b *ortho.Ortho) int {
	da, db := a.Dims(), b.Dims()
	for i := 0; i < len(da) && i < len(db); i++ {
		if da[i] != db[i] {
			return da[i] - db[i]
		}
	}
	if len(da) != len(db) {
		return len(da) - len(db)
	}
	pa, pb := a.Payload(), b.Payload()
	for i := range pa {
		if pa[i] != pb[i] {
			if pa[i] < pb[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func writeOrtho(w *bufio.Writer, o *ortho.Ortho) error {
	dims := o.Dims()
	if err := writeUvarint(w, uint64(len(dims))); err != nil {
		return err
	}
	for _, d := range dims {
		if err := writeUvarint(w, uint64(d)); err != nil {
			return err
		}
	}
	if err := writeUvarint(w, o.Version()); err != nil {
		return err
	}
	payload := o.Payload()
	if err := writeUvarint(w, uint64(len(payload))); err != nil {
		return err
	}
	for _, v := range payload {
		enc := uint64(0)
		if v != -1 {
			enc = uint64(v) + 1
		}
		if err := writeUvarint(w, enc); err != nil {
			return err
		}
	}
	return nil
}

func readOrtho(r *bufio.Reader) (*ortho.Ortho, error) {
	dimsLen, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	dims := make([]int, dimsLen)
	for i := range dims {
		v, err := readUvarint(r)
		if err != nil {
			return nil, err
		}
		dims[i] = int(v)
	}
	version, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	payloadLen, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	payload := make([]int64, payloadLen)
	for i := range payload {
		v, err := readUvarint(r)
		if err != nil {
			return nil, err
		}
		if v == 0 {
			payload[i] = -1
		} else {
			payload[i] = int64(v - 1)
		}
	}
	return ortho.FromCanonical(dims, payload, version), nil
}

func loadFrontier(r *bufio.Reader) (*frontier.Frontier, error) {
	count, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	fr := frontier.New()
	for i := uint64(0); i < count; i++ {
		o, err := readOrtho(r)
		if err != nil {
			return nil, err
		}
		fr.Insert(o)
	}
	return fr, nil
}

func saveBestOrtho(w *bufio.Writer, best *ortho.Ortho) error {
	if best == nil {
		return writeUvarint(w, 0)
	}
	if err := writeUvarint(w, 1); err != nil {
		return err
	}
	return writeOrtho(w, best)
}

func loadBestOrtho(r *bufio.Reader) (*ortho.Ortho, error) {
	present, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	return readOrtho(r)
}

