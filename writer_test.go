package redarc

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/redarc-go/redarc/internal/digest"
	"github.com/stretchr/testify/require"
)

// buildCookedResourceFile assembles a CR2W file whose main object region
// is exactly the header+tables+strings+imports region (no extra
// payload), followed by one sub-buffer of subBuffer's length, so the
// packer's cooked-resource pipeline has something concrete to segment.
func buildCookedResourceFile(t *testing.T, subBuffer []byte) []byte {
	t.Helper()

	const headerAndTablesSize = 40 + 10*12
	const stringsOffset = headerAndTablesSize

	className := "IScriptable"
	stringsBlob := append([]byte(className), 0)

	buffersOffset := stringsOffset + len(stringsBlob)
	importsOffset := buffersOffset + 8
	tablesEnd := importsOffset + 4 + 4 + 2

	buf := &bytes.Buffer{}
	write32 := func(v uint32) { binary.Write(buf, binary.LittleEndian, v) }
	write64 := func(v uint64) { binary.Write(buf, binary.LittleEndian, v) }

	write32(cr2wMagic)
	write32(1)                   // version
	write32(0)                   // flags
	write64(0)                   // timestamp
	write32(1)                   // build_version
	write32(uint32(tablesEnd))   // objects_end: main region ends at the table data
	write32(0)                   // buffers_end
	write32(0)                   // crc32
	write32(0)                   // num_chunks

	type tbl struct{ offset, count uint32 }
	tables := make([]tbl, cr2wTableCount)
	tables[cr2wTableStrings] = tbl{uint32(stringsOffset), uint32(len(stringsBlob))}
	tables[cr2wTableBuffers] = tbl{uint32(buffersOffset), 1}

	for _, tb := range tables {
		write32(tb.offset)
		write32(tb.count)
		write32(0)
	}

	buf.Write(stringsBlob)
	write32(uint32(len(subBuffer))) // disk_size
	write32(uint32(len(subBuffer) * 2)) // mem_size, arbitrary
	write32(0)                          // import class_offset, unused (no imports table)
	write32(0)                          // import path_offset, unused
	binary.Write(buf, binary.LittleEndian, uint16(0))

	require.Equal(t, tablesEnd, buf.Len())

	buf.Write(subBuffer)
	return buf.Bytes()
}

// buildCookedResourceFileWithImport is buildCookedResourceFile's sibling,
// additionally registering one real (non-"None") import depot path in the
// imports table, so the packer's dependency-hash collection
// (packCookedFile's deps loop) has real data to run against.
func buildCookedResourceFileWithImport(t *testing.T, subBuffer []byte, depotPath string) []byte {
	t.Helper()

	const headerAndTablesSize = 40 + 10*12
	const stringsOffset = headerAndTablesSize

	className := "IScriptable"
	stringsBlob := append(append([]byte(className), 0), append([]byte(depotPath), 0)...)
	classOffset := uint32(0)
	pathOffset := uint32(len(className) + 1)

	buffersOffset := stringsOffset + len(stringsBlob)
	importsOffset := buffersOffset + 8 // one bufferInfo record
	tablesEnd := importsOffset + 4 + 4 + 2 // one {class_offset, path_offset, flags} record

	buf := &bytes.Buffer{}
	write32 := func(v uint32) { binary.Write(buf, binary.LittleEndian, v) }
	write64 := func(v uint64) { binary.Write(buf, binary.LittleEndian, v) }

	write32(cr2wMagic)
	write32(1)                 // version
	write32(0)                 // flags
	write64(0)                 // timestamp
	write32(1)                 // build_version
	write32(uint32(tablesEnd)) // objects_end: main region ends at the table data
	write32(0)                 // buffers_end
	write32(0)                 // crc32
	write32(0)                 // num_chunks

	type tbl struct{ offset, count uint32 }
	tables := make([]tbl, cr2wTableCount)
	tables[cr2wTableStrings] = tbl{uint32(stringsOffset), uint32(len(stringsBlob))}
	tables[cr2wTableImports] = tbl{uint32(importsOffset), 1}
	tables[cr2wTableBuffers] = tbl{uint32(buffersOffset), 1}

	for _, tb := range tables {
		write32(tb.offset)
		write32(tb.count)
		write32(0)
	}

	require.Equal(t, headerAndTablesSize, buf.Len())

	buf.Write(stringsBlob)

	write32(uint32(len(subBuffer)))     // buffers table: disk_size
	write32(uint32(len(subBuffer) * 2)) // buffers table: mem_size
	require.Equal(t, importsOffset, buf.Len())

	write32(classOffset) // imports table: class_offset
	write32(pathOffset)  // imports table: path_offset
	binary.Write(buf, binary.LittleEndian, uint16(0))

	require.Equal(t, tablesEnd, buf.Len())

	buf.Write(subBuffer)
	return buf.Bytes()
}

// fakeWriteSeeker adapts a bytes.Buffer plus a cursor into an
// io.WriteSeeker, since bytes.Buffer itself does not implement Seek.
type fakeWriteSeeker struct {
	data []byte
	pos  int64
}

func (f *fakeWriteSeeker) Write(p []byte) (int, error) {
	end := f.pos + int64(len(p))
	if end > int64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	copy(f.data[f.pos:end], p)
	f.pos = end
	return len(p), nil
}

func (f *fakeWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case 0:
		f.pos = offset
	case 1:
		f.pos += offset
	case 2:
		f.pos = int64(len(f.data)) + offset
	}
	return f.pos, nil
}

func TestPackFilesProducesHashOrderedEntries(t *testing.T) {
	files := map[string][]byte{
		"a.bin":  bytes.Repeat([]byte{1}, 300),
		"z.bin":  bytes.Repeat([]byte{2}, 50),
		"AA.bin": []byte("small"),
		"ZZ.bin": {},
	}

	var sink fakeWriteSeeker
	require.NoError(t, CreateFromFileSet(files, &sink, nil))

	r, err := OpenReader(bytes.NewReader(sink.data))
	require.NoError(t, err)

	entries := r.Entries()
	require.Len(t, entries, len(files))
	for i := 1; i < len(entries); i++ {
		require.Less(t, entries[i-1].Hash, entries[i].Hash)
	}

	var wantHashes []uint64
	for rel := range files {
		wantHashes = append(wantHashes, digest.FNV1a64([]byte(rel)))
	}
	var gotHashes []uint64
	for _, e := range entries {
		gotHashes = append(gotHashes, e.Hash)
	}
	require.ElementsMatch(t, wantHashes, gotHashes)
}

func TestPackAndExtractRawFileRoundTrip(t *testing.T) {
	content := bytes.Repeat([]byte("hello world "), 100) // > 256 bytes, exercises the codec path
	files := map[string][]byte{"base\\test.json": content}

	var sink fakeWriteSeeker
	require.NoError(t, CreateFromFileSet(files, &sink, nil))

	r, err := OpenReader(bytes.NewReader(sink.data))
	require.NoError(t, err)

	entry, err := r.GetEntry("base\\test.json")
	require.NoError(t, err)
	require.Equal(t, digest.SHA1(content), entry.Entry.SHA1Hash)

	var out bytes.Buffer
	require.NoError(t, r.Extract(entry, &out))
	require.Equal(t, content, out.Bytes())
}

func TestPackAndExtractShortStoredFile(t *testing.T) {
	content := []byte("tiny")
	files := map[string][]byte{"base\\tiny.json": content}

	var sink fakeWriteSeeker
	require.NoError(t, CreateFromFileSet(files, &sink, nil))

	r, err := OpenReader(bytes.NewReader(sink.data))
	require.NoError(t, err)

	entry, err := r.GetEntry("base\\tiny.json")
	require.NoError(t, err)
	require.True(t, entry.MainSegment.Stored())

	var out bytes.Buffer
	require.NoError(t, r.Extract(entry, &out))
	require.Equal(t, content, out.Bytes())
}

func TestPackEmptyFileProducesZeroSizedSegment(t *testing.T) {
	files := map[string][]byte{"base\\empty.json": {}}

	var sink fakeWriteSeeker
	require.NoError(t, CreateFromFileSet(files, &sink, nil))

	r, err := OpenReader(bytes.NewReader(sink.data))
	require.NoError(t, err)

	entry, err := r.GetEntry("base\\empty.json")
	require.NoError(t, err)
	require.EqualValues(t, 0, entry.MainSegment.Size)
	require.EqualValues(t, 0, entry.MainSegment.ZSize)
}

func TestPackFilesWritesLxrsFooterWhenHashMapMatches(t *testing.T) {
	files := map[string][]byte{"base\\test.json": []byte("{}")}
	hash := digest.FNV1a64([]byte("base\\test.json"))

	var sink fakeWriteSeeker
	require.NoError(t, CreateFromFileSet(files, &sink, map[uint64]string{hash: "base\\test.json"}))

	r, err := OpenReader(bytes.NewReader(sink.data))
	require.NoError(t, err)
	require.NotNil(t, r.footer)
	require.Equal(t, []string{"base\\test.json"}, r.footer.Paths)

	entry, err := r.GetEntryByHash(hash)
	require.NoError(t, err)
	require.Equal(t, "base\\test.json", entry.ResolvedName)
}

func TestPackFilesFiltersUnpackableExtensions(t *testing.T) {
	files := map[string][]byte{
		"base\\keep.mesh":   []byte("keep"),
		"base\\skip.unused": []byte("skip"),
	}

	var sink fakeWriteSeeker
	require.NoError(t, CreateFromFileSet(files, &sink, nil))

	r, err := OpenReader(bytes.NewReader(sink.data))
	require.NoError(t, err)
	require.Len(t, r.Entries(), 1)
}

func TestPackAndExtractCookedResourceRoundTrip(t *testing.T) {
	subBuffer := bytes.Repeat([]byte{0x42}, 64)
	raw := buildCookedResourceFile(t, subBuffer)

	files := map[string][]byte{"base\\model.mesh": raw}

	var sink fakeWriteSeeker
	require.NoError(t, CreateFromFileSet(files, &sink, nil))

	r, err := OpenReader(bytes.NewReader(sink.data))
	require.NoError(t, err)

	entry, err := r.GetEntry("base\\model.mesh")
	require.NoError(t, err)
	require.Len(t, entry.SubSegments, 1)
	require.EqualValues(t, len(subBuffer), entry.SubSegments[0].ZSize)
	require.EqualValues(t, len(subBuffer)*2, entry.SubSegments[0].Size)
	require.False(t, entry.MainSegment.Stored()) // KARK-framed

	var out bytes.Buffer
	require.NoError(t, r.Extract(entry, &out))

	mainLen := len(raw) - len(subBuffer)
	require.Equal(t, raw[:mainLen], out.Bytes()[:mainLen])
	require.Equal(t, subBuffer, out.Bytes()[mainLen:])
}

func TestPackCookedResourceWithImportPopulatesDependencyTable(t *testing.T) {
	depotPath := "base\\characters\\common\\body.mesh"
	subBuffer := bytes.Repeat([]byte{0x7A}, 32)
	raw := buildCookedResourceFileWithImport(t, subBuffer, depotPath)

	files := map[string][]byte{"base\\model.mesh": raw}

	var sink fakeWriteSeeker
	require.NoError(t, CreateFromFileSet(files, &sink, nil))

	r, err := OpenReader(bytes.NewReader(sink.data))
	require.NoError(t, err)

	entry, err := r.GetEntry("base\\model.mesh")
	require.NoError(t, err)

	wantHash := digest.FNV1a64([]byte(depotPath))
	start, end := entry.Entry.ResourceDependenciesStart, entry.Entry.ResourceDependenciesEnd
	require.Equal(t, uint32(1), end-start)

	// Re-decode the index directly to read the dependency table the
	// entry's range points into; ZipEntry itself doesn't carry it.
	_, err = r.src.Seek(int64(r.header.IndexPosition), 0)
	require.NoError(t, err)
	idx, err := decodeIndex(r.src)
	require.NoError(t, err)
	require.Equal(t, wantHash, idx.Dependencies[start].Hash)
}

func TestFileSizeIsAlignedMultipleOf4096(t *testing.T) {
	files := map[string][]byte{"base\\a.bin": bytes.Repeat([]byte{9}, 5000)}

	var sink fakeWriteSeeker
	require.NoError(t, CreateFromFileSet(files, &sink, nil))

	require.Zero(t, len(sink.data)%alignment)
}
