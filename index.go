package redarc

import (
	"bytes"
	"io"

	"github.com/redarc-go/redarc/internal/byteio"
	"github.com/redarc-go/redarc/internal/digest"
)

// fileEntrySize is the on-disk size of a FileEntry record.
const fileEntrySize = 56

// fileSegmentSize is the on-disk size of a FileSegment record.
const fileSegmentSize = 16

// dependencySize is the on-disk size of a Dependency record.
const dependencySize = 8

// indexPrefixSize is the fixed part of the Index preceding its body:
// file_table_offset, file_table_size, crc, and the three counts.
const indexPrefixSize = 4 + 4 + 8 + 4 + 4 + 4

// indexFileTableOffset is the fixed value of Index.FileTableOffset: the
// table body begins 8 bytes after the index start (spec §3).
const indexFileTableOffset uint32 = 8

// FileEntry describes one logical file inside the archive (spec §3).
type FileEntry struct {
	NameHash64              uint64
	Timestamp               uint64
	NumInlineBufferSegments uint32
	SegmentsStart           uint32
	SegmentsEnd             uint32
	ResourceDependenciesStart uint32
	ResourceDependenciesEnd   uint32
	SHA1Hash                [20]byte
}

// FileSegment is a contiguous run of archive payload bytes (spec §3).
type FileSegment struct {
	Offset uint64
	ZSize  uint32
	Size   uint32
}

// Stored reports whether the segment carries no compression.
func (s FileSegment) Stored() bool { return s.ZSize == s.Size }

// Dependency is an 8-byte FNV-1a/64 hash of a depot-path reference
// pulled from a cooked resource's import table (spec §3).
type Dependency struct {
	Hash uint64
}

// Index is the archive's entry/segment/dependency table (spec §3).
type Index struct {
	Entries      []FileEntry
	Segments     []FileSegment
	Dependencies []Dependency
}

func decodeFileEntry(r *byteio.Reader) FileEntry {
	var e FileEntry
	e.NameHash64 = r.ReadU64()
	e.Timestamp = r.ReadU64()
	e.NumInlineBufferSegments = r.ReadU32()
	e.SegmentsStart = r.ReadU32()
	e.SegmentsEnd = r.ReadU32()
	e.ResourceDependenciesStart = r.ReadU32()
	e.ResourceDependenciesEnd = r.ReadU32()
	copy(e.SHA1Hash[:], r.ReadBytes(20))
	return e
}

func encodeFileEntry(w io.Writer, e FileEntry) error {
	for _, v := range []uint64{e.NameHash64, e.Timestamp} {
		if err := byteio.WriteU64(w, v); err != nil {
			return err
		}
	}
	for _, v := range []uint32{
		e.NumInlineBufferSegments, e.SegmentsStart, e.SegmentsEnd,
		e.ResourceDependenciesStart, e.ResourceDependenciesEnd,
	} {
		if err := byteio.WriteU32(w, v); err != nil {
			return err
		}
	}
	_, err := w.Write(e.SHA1Hash[:])
	return err
}

func decodeFileSegment(r *byteio.Reader) FileSegment {
	var s FileSegment
	s.Offset = r.ReadU64()
	s.ZSize = r.ReadU32()
	s.Size = r.ReadU32()
	return s
}

func encodeFileSegment(w io.Writer, s FileSegment) error {
	if err := byteio.WriteU64(w, s.Offset); err != nil {
		return err
	}
	if err := byteio.WriteU32(w, s.ZSize); err != nil {
		return err
	}
	return byteio.WriteU32(w, s.Size)
}

func decodeDependency(r *byteio.Reader) Dependency {
	return Dependency{Hash: r.ReadU64()}
}

func encodeDependency(w io.Writer, d Dependency) error {
	return byteio.WriteU64(w, d.Hash)
}

// decodeIndex reads the Index whose prefix begins at the reader's current
// position (i.e. the caller has already seeked to header.IndexPosition).
func decodeIndex(r io.Reader) (Index, error) {
	br := byteio.NewReader(r)

	fileTableOffset := br.ReadU32()
	_ = br.ReadU32() // file_table_size, derivable from the counts below
	crc := br.ReadU64()
	entryCount := br.ReadU32()
	segmentCount := br.ReadU32()
	depCount := br.ReadU32()
	if br.Err != nil {
		return Index{}, newErr(KindInvalidData, "redarc.decodeIndex", "", br.Err)
	}
	if fileTableOffset != indexFileTableOffset {
		return Index{}, newErr(KindInvalidData, "redarc.decodeIndex", "", errBadFileTableOffset)
	}

	body := bytes.NewBuffer(nil)
	bodyWriter := io.MultiWriter(body)
	tee := io.TeeReader(r, bodyWriter)
	btr := byteio.NewReader(tee)

	idx := Index{
		Entries:      make([]FileEntry, entryCount),
		Segments:     make([]FileSegment, segmentCount),
		Dependencies: make([]Dependency, depCount),
	}
	for i := range idx.Entries {
		idx.Entries[i] = decodeFileEntry(btr)
	}
	for i := range idx.Segments {
		idx.Segments[i] = decodeFileSegment(btr)
	}
	for i := range idx.Dependencies {
		idx.Dependencies[i] = decodeDependency(btr)
	}
	if btr.Err != nil {
		return Index{}, newErr(KindInvalidData, "redarc.decodeIndex", "", btr.Err)
	}

	if got := digest.CRC64(0, body.Bytes()); got != crc {
		return Index{}, newErr(KindInvalidData, "redarc.decodeIndex", "", errIndexCRCMismatch)
	}

	return idx, nil
}

// encodeIndex serializes idx into the on-disk Index layout, computing the
// CRC-64 over the table body (entries + segments + dependencies).
func encodeIndex(w io.Writer, idx Index) error {
	body := bytes.NewBuffer(nil)
	for _, e := range idx.Entries {
		if err := encodeFileEntry(body, e); err != nil {
			return err
		}
	}
	for _, s := range idx.Segments {
		if err := encodeFileSegment(body, s); err != nil {
			return err
		}
	}
	for _, d := range idx.Dependencies {
		if err := encodeDependency(body, d); err != nil {
			return err
		}
	}

	crc := digest.CRC64(0, body.Bytes())

	if err := byteio.WriteU32(w, indexFileTableOffset); err != nil {
		return err
	}
	if err := byteio.WriteU32(w, uint32(body.Len())+indexFileTableOffset); err != nil {
		return err
	}
	if err := byteio.WriteU64(w, crc); err != nil {
		return err
	}
	if err := byteio.WriteU32(w, uint32(len(idx.Entries))); err != nil {
		return err
	}
	if err := byteio.WriteU32(w, uint32(len(idx.Segments))); err != nil {
		return err
	}
	if err := byteio.WriteU32(w, uint32(len(idx.Dependencies))); err != nil {
		return err
	}
	_, err := w.Write(body.Bytes())
	return err
}
