package redarc

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/redarc-go/redarc/internal/byteio"
	"github.com/redarc-go/redarc/internal/digest"
	"github.com/redarc-go/redarc/internal/kraken"
)

// ZipEntry is one archive entry resolved against its segment range, ready
// for lookup and extraction (spec §4.5).
type ZipEntry struct {
	Hash         uint64
	ResolvedName string // from the LxrsFooter, empty if unknown
	Entry        FileEntry
	MainSegment  FileSegment
	SubSegments  []FileSegment
}

// Reader opens an archive for random-access entry lookup and extraction.
// It is not safe for concurrent use: every operation seeks the
// underlying source (spec §5).
type Reader struct {
	src    io.ReadSeeker
	header Header
	footer *LxrsFooter
	byHash map[uint64]*ZipEntry
	order  []uint64 // ascending hash order, as written
}

// OpenReader parses an archive's header, optional footer, and index from
// src, following the open protocol in spec §4.5.
func OpenReader(src io.ReadSeeker) (*Reader, error) {
	const op = "redarc.OpenReader"

	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, newErr(KindIO, op, "", err)
	}
	h, err := decodeHeader(src)
	if err != nil {
		return nil, newErr(KindInvalidData, op, "", err)
	}
	if h.Magic != headerMagic {
		return nil, newErr(KindInvalidInput, op, "", errBadHeaderMagic)
	}
	if h.Version != headerVersion {
		return nil, newErr(KindInvalidInput, op, "", errBadHeaderVersion)
	}

	r := &Reader{src: src, header: h, byHash: map[uint64]*ZipEntry{}}

	if h.CustomDataSize != 0 {
		if _, err := src.Seek(lxrsFooterOffset, io.SeekStart); err != nil {
			return nil, newErr(KindIO, op, "", err)
		}
		footer, err := decodeLxrsFooter(src, h.CustomDataSize)
		if err != nil {
			// A malformed footer is tolerated: extraction falls back to
			// the caller-supplied dictionary (spec §7).
			footer = nil
		}
		r.footer = footer
	}

	if _, err := src.Seek(int64(h.IndexPosition), io.SeekStart); err != nil {
		return nil, newErr(KindIO, op, "", err)
	}
	idx, err := decodeIndex(src)
	if err != nil {
		return nil, err
	}

	nameOf := map[uint64]string{}
	if r.footer != nil {
		for _, p := range r.footer.Paths {
			nameOf[digest.FNV1a64([]byte(normalizeDepotPath(p)))] = p
		}
	}

	segCount := uint32(len(idx.Segments))
	for _, e := range idx.Entries {
		if e.SegmentsStart >= e.SegmentsEnd || e.SegmentsEnd > segCount {
			continue // out-of-range segment range: skip entry (tolerant read)
		}
		ze := &ZipEntry{
			Hash:         e.NameHash64,
			ResolvedName: nameOf[e.NameHash64],
			Entry:        e,
			MainSegment:  idx.Segments[e.SegmentsStart],
			SubSegments:  append([]FileSegment(nil), idx.Segments[e.SegmentsStart+1:e.SegmentsEnd]...),
		}
		r.byHash[e.NameHash64] = ze
		r.order = append(r.order, e.NameHash64)
	}
	sort.Slice(r.order, func(i, j int) bool { return r.order[i] < r.order[j] })

	return r, nil
}

// GetEntryByHash looks up an entry by its 64-bit name hash.
func (r *Reader) GetEntryByHash(hash uint64) (*ZipEntry, error) {
	e, ok := r.byHash[hash]
	if !ok {
		return nil, newErr(KindNotFound, "redarc.GetEntryByHash", "", nil)
	}
	return e, nil
}

// GetEntry looks up an entry by resource path, hashing it with the same
// backslash-normalization convention used when packing.
func (r *Reader) GetEntry(path string) (*ZipEntry, error) {
	hash := digest.FNV1a64([]byte(normalizeDepotPath(path)))
	e, ok := r.byHash[hash]
	if !ok {
		return nil, newErr(KindNotFound, "redarc.GetEntry", path, nil)
	}
	return e, nil
}

// Entries returns every entry in ascending hash order.
func (r *Reader) Entries() []*ZipEntry {
	out := make([]*ZipEntry, len(r.order))
	for i, h := range r.order {
		out[i] = r.byHash[h]
	}
	return out
}

// Extract streams e's decoded bytes to w, following the extract-one
// algorithm of spec §4.5.
func (r *Reader) Extract(e *ZipEntry, w io.Writer) error {
	const op = "redarc.Extract"

	if err := r.extractMain(e.MainSegment, w); err != nil {
		return newErr(KindIO, op, "", err)
	}
	for _, seg := range e.SubSegments {
		if _, err := r.src.Seek(int64(seg.Offset), io.SeekStart); err != nil {
			return newErr(KindIO, op, "", err)
		}
		if _, err := io.CopyN(w, r.src, int64(seg.ZSize)); err != nil {
			return newErr(KindIO, op, "", err)
		}
	}
	return nil
}

func (r *Reader) extractMain(seg FileSegment, w io.Writer) error {
	if _, err := r.src.Seek(int64(seg.Offset), io.SeekStart); err != nil {
		return err
	}
	if seg.Stored() {
		_, err := io.CopyN(w, r.src, int64(seg.ZSize))
		return err
	}

	br := byteio.NewReader(r.src)
	magic := br.ReadU32()
	if br.Err != nil {
		return br.Err
	}
	if magic != karkMagic {
		// No KARK frame despite size mismatch: fall back to a raw copy
		// (tolerant, per spec §4.5).
		if _, err := r.src.Seek(int64(seg.Offset), io.SeekStart); err != nil {
			return err
		}
		_, err := io.CopyN(w, r.src, int64(seg.ZSize))
		return err
	}

	declaredSize := br.ReadU32()
	if br.Err != nil {
		return br.Err
	}
	wantSize := seg.Size
	if declaredSize != wantSize {
		wantSize = declaredSize
	}

	payload := make([]byte, int64(seg.ZSize)-8)
	if _, err := io.ReadFull(r.src, payload); err != nil {
		return err
	}
	out := make([]byte, wantSize)
	n, err := kraken.Decompress(out, payload)
	if err != nil {
		return err
	}
	if uint32(n) != wantSize {
		return fmt.Errorf("decompressed %d bytes, want %d", n, wantSize)
	}
	_, err = w.Write(out[:n])
	return err
}

// OverwritePolicy controls what ExtractToDirectory does when the
// destination file already exists.
type OverwritePolicy bool

const (
	OverwriteSkip    OverwritePolicy = false
	OverwriteReplace OverwritePolicy = true
)

// ExtractToDirectory extracts every entry into destDir, resolving each
// entry's output name from the LxrsFooter, then hashMap, then the bundled
// default dictionary, then a "{hash}.bin" fallback, per spec §4.5.
func (r *Reader) ExtractToDirectory(destDir string, overwrite OverwritePolicy, hashMap map[uint64]string) error {
	const op = "redarc.ExtractToDirectory"
	for _, e := range r.Entries() {
		name := resolveEntryName(e, hashMap)
		destPath := filepath.Join(destDir, filepath.FromSlash(strings.ReplaceAll(name, "\\", "/")))

		if !bool(overwrite) {
			if _, err := os.Stat(destPath); err == nil {
				return newErr(KindExists, op, destPath, nil)
			}
		}
		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return newErr(KindIO, op, destPath, err)
		}
		f, err := os.Create(destPath)
		if err != nil {
			return newErr(KindIO, op, destPath, err)
		}
		err = r.Extract(e, f)
		closeErr := f.Close()
		if err != nil {
			return err
		}
		if closeErr != nil {
			return newErr(KindIO, op, destPath, closeErr)
		}
	}
	return nil
}

// resolveEntryName picks an entry's output path: the LxrsFooter's
// recorded name, then the caller-supplied hashMap, then the library's
// bundled default dictionary, then a "{hash}.bin" fallback (spec §4.7 —
// "when hash_map? is omitted, the default dictionary... is used").
func resolveEntryName(e *ZipEntry, hashMap map[uint64]string) string {
	if e.ResolvedName != "" {
		return e.ResolvedName
	}
	if hashMap != nil {
		if name, ok := hashMap[e.Hash]; ok {
			return name
		}
	}
	if name, ok := DefaultHashDict()[e.Hash]; ok {
		return name
	}
	return strconv.FormatUint(e.Hash, 10) + ".bin"
}

// normalizeDepotPath converts a resource path to the host's canonical
// backslash-separated form before hashing (spec §9).
func normalizeDepotPath(p string) string {
	return strings.ReplaceAll(p, "/", "\\")
}
