package redarc

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/redarc-go/redarc/internal/byteio"
	"github.com/redarc-go/redarc/internal/digest"
	"github.com/redarc-go/redarc/internal/kraken"
)

// packFile is one file collected from the source tree (or supplied
// in-memory), staged for the packing pipeline.
type packFile struct {
	relPath string // backslash-normalized, relative to the source root
	hash    uint64
	data    []byte
}

// pendingEntry accumulates a FileEntry and its segments while packing,
// before the final renumbering pass assigns contiguous ranges (spec §9,
// "pre-build per-entry segment lists and renumber in a final pass").
type pendingEntry struct {
	hash     uint64
	sha1     [20]byte
	flags    uint32
	segments []FileSegment
	deps     []uint64 // depot-path hashes this entry's imports reference
}

// CreateFromDirectory walks srcDir, classifies and packs every resource
// file it contains, and writes a complete archive to dst (spec §4.6,
// §4.7).
func CreateFromDirectory(srcDir string, dst io.WriteSeeker, hashMap map[uint64]string) error {
	const op = "redarc.CreateFromDirectory"

	info, err := os.Stat(srcDir)
	if err != nil || !info.IsDir() {
		return newErr(KindInvalidInput, op, srcDir, err)
	}

	var files []packFile
	walkErr := filepath.Walk(srcDir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !isPackableExtension(ext) {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		rel = normalizeDepotPath(filepath.ToSlash(rel))
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files = append(files, packFile{
			relPath: rel,
			hash:    digest.FNV1a64([]byte(rel)),
			data:    data,
		})
		return nil
	})
	if walkErr != nil {
		return newErr(KindIO, op, srcDir, walkErr)
	}

	return packFiles(dst, files, hashMap)
}

// CreateFromFileSet builds an archive from an explicit in-memory set of
// (relative path, content) pairs instead of walking a directory. This
// supplements the directory-based entry point for callers assembling an
// archive from sources other than a filesystem tree.
func CreateFromFileSet(entries map[string][]byte, dst io.WriteSeeker, hashMap map[uint64]string) error {
	files := make([]packFile, 0, len(entries))
	for rel, data := range entries {
		norm := normalizeDepotPath(rel)
		ext := strings.ToLower(filepath.Ext(norm))
		if !isPackableExtension(ext) {
			continue
		}
		files = append(files, packFile{
			relPath: norm,
			hash:    digest.FNV1a64([]byte(norm)),
			data:    data,
		})
	}
	return packFiles(dst, files, hashMap)
}

// packFiles runs the full packing pipeline of spec §4.6 over an already
// collected file set.
func packFiles(dst io.WriteSeeker, files []packFile, hashMap map[uint64]string) error {
	const op = "redarc.packFiles"

	sort.Slice(files, func(i, j int) bool { return files[i].hash < files[j].hash })

	w := &countingWriter{w: dst}

	// Step 3: stage header region, 40 + 132 zero bytes, landing at 0xAC.
	if _, err := w.Write(make([]byte, headerFixedSize+4+headerTailPaddingSize)); err != nil {
		return newErr(KindIO, op, "", err)
	}

	customDataSize, err := stageLxrsFooter(w, files, hashMap)
	if err != nil {
		return err
	}

	pending := make([]pendingEntry, len(files))
	for i, f := range files {
		pe, err := packOneFile(w, f)
		if err != nil {
			return newErr(KindIO, op, f.relPath, err)
		}
		pending[i] = pe
	}

	// The dependency table is populated per-entry: each entry's own
	// import hashes are deduplicated and sorted, then appended as a
	// contiguous run. The source's "globally deduplicated" language
	// (spec §9) is honored within an entry; across entries the table
	// may repeat a hash rather than require entries to share ranges.
	idx := Index{}
	for _, pe := range pending {
		segStart := uint32(len(idx.Segments))
		idx.Segments = append(idx.Segments, pe.segments...)
		segEnd := uint32(len(idx.Segments))

		deps := dedupeSortedHashes(pe.deps)
		depStart := uint32(len(idx.Dependencies))
		for _, d := range deps {
			idx.Dependencies = append(idx.Dependencies, Dependency{Hash: d})
		}
		depEnd := uint32(len(idx.Dependencies))

		idx.Entries = append(idx.Entries, FileEntry{
			NameHash64:                pe.hash,
			NumInlineBufferSegments:   pe.flags,
			SegmentsStart:             segStart,
			SegmentsEnd:               segEnd,
			ResourceDependenciesStart: depStart,
			ResourceDependenciesEnd:   depEnd,
			SHA1Hash:                  pe.sha1,
		})
	}

	if err := padTo(w, alignment); err != nil {
		return newErr(KindIO, op, "", err)
	}
	tableOffset := w.n

	if err := encodeIndex(w, idx); err != nil {
		return newErr(KindIO, op, "", err)
	}
	indexEnd := w.n

	if err := padTo(w, alignment); err != nil {
		return newErr(KindIO, op, "", err)
	}
	fileSize := w.n

	h := Header{
		Magic:          headerMagic,
		Version:        headerVersion,
		IndexPosition:  uint64(tableOffset),
		IndexSize:      uint32(indexEnd - tableOffset),
		FileSize:       uint64(fileSize),
		CustomDataSize: customDataSize,
	}
	if _, err := dst.Seek(0, io.SeekStart); err != nil {
		return newErr(KindIO, op, "", err)
	}
	if err := encodeHeader(dst, h); err != nil {
		return newErr(KindIO, op, "", err)
	}
	return nil
}

// stageLxrsFooter writes the optional LxrsFooter at offset 0xAC and
// returns its size in bytes (0 if no paths need recording).
func stageLxrsFooter(w *countingWriter, files []packFile, hashMap map[uint64]string) (uint32, error) {
	const op = "redarc.stageLxrsFooter"

	var custom []string
	for _, f := range files {
		if _, known := hashMap[f.hash]; known {
			custom = append(custom, f.relPath)
		}
	}
	if len(custom) == 0 {
		return 0, nil
	}

	start := w.n
	if err := encodeLxrsFooter(w, custom); err != nil {
		return 0, newErr(KindCodec, op, "", err)
	}
	return uint32(w.n - start), nil
}

// packOneFile writes f's compressed/stored payload to w at the current
// position and returns its pending entry record, following the
// cooked/raw sub-pipelines of spec §4.6 step 5.
func packOneFile(w *countingWriter, f packFile) (pendingEntry, error) {
	sha1 := digest.SHA1(f.data)

	cooked, ok, err := ParseCR2W(bytes.NewReader(f.data))
	if err != nil {
		return pendingEntry{}, err
	}
	if ok {
		return packCookedFile(w, f, cooked, sha1)
	}
	return packRawFile(w, f, sha1)
}

func packCookedFile(w *countingWriter, f packFile, cooked *CookedResource, sha1 [20]byte) (pendingEntry, error) {
	objectsEnd := int(cooked.ObjectsEnd)
	if objectsEnd > len(f.data) {
		objectsEnd = len(f.data)
	}
	main := f.data[:objectsEnd]
	rest := f.data[objectsEnd:]

	dst := make([]byte, kraken.WorstCaseCompressedSize(len(main)))
	zlen, err := kraken.Compress(dst, main, kraken.LevelNormal)
	if err != nil {
		return pendingEntry{}, err
	}
	if zlen > len(main) {
		return pendingEntry{}, fmt.Errorf("redarc: compressed main segment (%d) exceeds source size (%d)", zlen, len(main))
	}

	mainOffset := w.n
	if err := byteio.WriteU32(w, karkMagic); err != nil {
		return pendingEntry{}, err
	}
	if err := byteio.WriteU32(w, uint32(len(main))); err != nil {
		return pendingEntry{}, err
	}
	if _, err := w.Write(dst[:zlen]); err != nil {
		return pendingEntry{}, err
	}

	segments := []FileSegment{{
		Offset: uint64(mainOffset),
		ZSize:  uint32(zlen) + 8, // includes the KARK frame header, spec §9
		Size:   uint32(len(main)),
	}}

	pos := 0
	for _, b := range cooked.Buffers {
		diskSize := int(b.DiskSize)
		if pos+diskSize > len(rest) {
			diskSize = len(rest) - pos
			if diskSize < 0 {
				diskSize = 0
			}
		}
		chunk := rest[pos : pos+diskSize]
		pos += diskSize

		segOffset := w.n
		if _, err := w.Write(chunk); err != nil {
			return pendingEntry{}, err
		}
		segments = append(segments, FileSegment{
			Offset: uint64(segOffset),
			ZSize:  b.DiskSize,
			Size:   b.MemSize,
		})
	}

	var deps []uint64
	for _, imp := range cooked.Imports {
		if imp.DepotPath == "" || imp.DepotPath == "None" {
			continue
		}
		deps = append(deps, digest.FNV1a64([]byte(normalizeDepotPath(imp.DepotPath))))
	}

	flags := uint32(0)
	if n := len(cooked.Buffers); n > 0 {
		flags = uint32(n)
	}

	return pendingEntry{
		hash:     f.hash,
		sha1:     sha1,
		flags:    flags,
		segments: segments,
		deps:     deps,
	}, nil
}

func packRawFile(w *countingWriter, f packFile, sha1 [20]byte) (pendingEntry, error) {
	ext := strings.ToLower(filepath.Ext(f.relPath))

	if _, aligned := alignedExtensions[ext]; aligned {
		if err := padTo(w, alignment); err != nil {
			return pendingEntry{}, err
		}
	}

	offset := w.n
	size := uint32(len(f.data))

	var zsize uint32
	if _, stored := storedExtensions[ext]; stored {
		if _, err := w.Write(f.data); err != nil {
			return pendingEntry{}, err
		}
		zsize = size
	} else {
		dst := make([]byte, kraken.WorstCaseCompressedSize(len(f.data)))
		n, err := kraken.Compress(dst, f.data, kraken.LevelNormal)
		if err != nil {
			return pendingEntry{}, err
		}
		if n > len(f.data) {
			return pendingEntry{}, fmt.Errorf("redarc: compressed segment (%d) exceeds source size (%d)", n, len(f.data))
		}
		if n+8 >= len(f.data) {
			// A KARK frame would not save space (or the codec was bypassed): store verbatim.
			if _, err := w.Write(f.data); err != nil {
				return pendingEntry{}, err
			}
			zsize = size
		} else {
			if err := byteio.WriteU32(w, karkMagic); err != nil {
				return pendingEntry{}, err
			}
			if err := byteio.WriteU32(w, size); err != nil {
				return pendingEntry{}, err
			}
			if _, err := w.Write(dst[:n]); err != nil {
				return pendingEntry{}, err
			}
			zsize = uint32(n) + 8 // includes the KARK frame header
		}
	}

	return pendingEntry{
		hash: f.hash,
		sha1: sha1,
		segments: []FileSegment{{
			Offset: uint64(offset),
			ZSize:  zsize,
			Size:   size,
		}},
	}, nil
}

// dedupeSortedHashes returns hashes sorted ascending with duplicates
// removed.
func dedupeSortedHashes(hashes []uint64) []uint64 {
	if len(hashes) == 0 {
		return nil
	}
	sorted := append([]uint64(nil), hashes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	out := sorted[:1]
	for _, h := range sorted[1:] {
		if h != out[len(out)-1] {
			out = append(out, h)
		}
	}
	return out
}

// countingWriter tracks the current stream position so offsets and
// alignment padding can be computed without a separate Seek+Tell round
// trip on a write-only sink.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// padTo writes paddingByte bytes until c.n is a multiple of boundary.
func padTo(c *countingWriter, boundary int64) error {
	rem := c.n % boundary
	if rem == 0 {
		return nil
	}
	pad := make([]byte, boundary-rem)
	for i := range pad {
		pad[i] = paddingByte
	}
	_, err := c.Write(pad)
	return err
}
