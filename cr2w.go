package redarc

import (
	"bytes"
	"io"

	"github.com/redarc-go/redarc/internal/byteio"
)

// cr2wTableCount is the number of fixed CR2WTable records in a CR2W
// header (spec §4.4): strings, names, imports, properties, exports,
// buffers, embeds, and three reserved.
const cr2wTableCount = 10

const (
	cr2wTableStrings = iota
	cr2wTableNames
	cr2wTableImports
	cr2wTableProperties
	cr2wTableExports
	cr2wTableBuffers
	cr2wTableEmbeds
)

// cr2wTable is one {offset, item_count, crc32} descriptor.
type cr2wTable struct {
	Offset    uint32
	ItemCount uint32
	CRC32     uint32
}

// Import is a resource reference pulled from a cooked file's import
// table (spec glossary: "Dependency").
type Import struct {
	ClassName string
	DepotPath string
	Flags     uint16
}

// bufferInfo is one sub-buffer's on-disk and in-memory size, as read
// from the buffers table (spec §4.4).
type bufferInfo struct {
	DiskSize uint32
	MemSize  uint32
}

// CookedResource is the subset of a parsed CR2W file the packer needs to
// make segmenting decisions (spec §4.4).
type CookedResource struct {
	// ObjectsEnd is the byte length of the main object region: the
	// packer reads exactly this many bytes from the start of the file
	// and compresses them as the entry's main segment.
	ObjectsEnd uint32
	// Buffers describes each sub-buffer following the main region, in
	// order.
	Buffers []bufferInfo
	// Imports lists the resource references pulled from the import
	// table.
	Imports []Import
}

// ParseCR2W attempts to read a cooked-resource header from the start of
// r. ok is false whenever the input is not recognizable as a cooked
// resource — wrong magic, truncation, or an out-of-range table index —
// which per spec §4.4/§9 is a normal "not cooked" branch, not an error;
// callers fall back to the raw-path pipeline in that case. err is
// non-nil only for an underlying I/O failure on the source stream.
func ParseCR2W(r io.ReadSeeker) (info *CookedResource, ok bool, err error) {
	if _, err = r.Seek(0, io.SeekStart); err != nil {
		return nil, false, err
	}

	br := byteio.NewReader(r)
	magic := br.ReadU32()
	if br.Err != nil {
		if br.Err == io.EOF || br.Err == io.ErrUnexpectedEOF {
			return nil, false, nil
		}
		return nil, false, br.Err
	}
	if magic != cr2wMagic {
		return nil, false, nil
	}

	_ = br.ReadU32() // version
	_ = br.ReadU32() // flags
	_ = br.ReadU64() // timestamp
	_ = br.ReadU32() // build_version
	objectsEnd := br.ReadU32()
	_ = br.ReadU32() // buffers_end
	_ = br.ReadU32() // crc32
	_ = br.ReadU32() // num_chunks

	tables := make([]cr2wTable, cr2wTableCount)
	for i := range tables {
		tables[i].Offset = br.ReadU32()
		tables[i].ItemCount = br.ReadU32()
		tables[i].CRC32 = br.ReadU32()
	}
	if br.Err != nil {
		return notCookedOnTruncation(br.Err)
	}

	strings_, err := readCR2WStringsTable(r, tables[cr2wTableStrings])
	if err != nil {
		return notCookedOnTruncation(err)
	}
	resolve := func(offset uint32) string {
		if s, ok := strings_[offset]; ok {
			return s
		}
		return "None"
	}

	buffers, err := readCR2WBuffersTable(r, tables[cr2wTableBuffers])
	if err != nil {
		return notCookedOnTruncation(err)
	}

	imports, err := readCR2WImportsTable(r, tables[cr2wTableImports], resolve)
	if err != nil {
		return notCookedOnTruncation(err)
	}

	return &CookedResource{
		ObjectsEnd: objectsEnd,
		Buffers:    buffers,
		Imports:    imports,
	}, true, nil
}

// notCookedOnTruncation folds any parse failure past the magic check —
// truncation, an out-of-range table offset, anything short of a hard
// I/O failure on the source — into the "not cooked" branch.
func notCookedOnTruncation(err error) (*CookedResource, bool, error) {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return nil, false, nil
	}
	return nil, false, err
}

// readCR2WStringsTable reads table 0 as a packed sequence of
// null-terminated UTF-8 strings starting at table.Offset and spanning
// table.ItemCount bytes, indexed by each string's start offset relative
// to table.Offset.
func readCR2WStringsTable(r io.ReadSeeker, table cr2wTable) (map[uint32]string, error) {
	result := map[uint32]string{}
	if table.ItemCount == 0 {
		return result, nil
	}
	if _, err := r.Seek(int64(table.Offset), io.SeekStart); err != nil {
		return nil, err
	}
	raw := make([]byte, table.ItemCount)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, err
	}

	var rel uint32
	for rel < uint32(len(raw)) {
		end := bytes.IndexByte(raw[rel:], 0)
		if end < 0 {
			break
		}
		result[rel] = string(raw[rel : rel+uint32(end)])
		rel += uint32(end) + 1
	}
	return result, nil
}

// readCR2WBuffersTable reads the buffers table (table index 5): each
// entry is a {disk_size, mem_size} pair describing one sub-buffer.
func readCR2WBuffersTable(r io.ReadSeeker, table cr2wTable) ([]bufferInfo, error) {
	if table.ItemCount == 0 {
		return nil, nil
	}
	if _, err := r.Seek(int64(table.Offset), io.SeekStart); err != nil {
		return nil, err
	}
	br := byteio.NewReader(r)
	buffers := make([]bufferInfo, table.ItemCount)
	for i := range buffers {
		buffers[i].DiskSize = br.ReadU32()
		buffers[i].MemSize = br.ReadU32()
	}
	return buffers, br.Err
}

// readCR2WImportsTable reads the imports table (table index 2): each
// entry references a class name and depot path by string-table offset,
// plus a flags word.
func readCR2WImportsTable(r io.ReadSeeker, table cr2wTable, resolve func(uint32) string) ([]Import, error) {
	if table.ItemCount == 0 {
		return nil, nil
	}
	if _, err := r.Seek(int64(table.Offset), io.SeekStart); err != nil {
		return nil, err
	}
	br := byteio.NewReader(r)
	imports := make([]Import, table.ItemCount)
	for i := range imports {
		classOffset := br.ReadU32()
		pathOffset := br.ReadU32()
		flags := br.ReadU16()
		if br.Err != nil {
			return nil, br.Err
		}
		imports[i] = Import{
			ClassName: resolve(classOffset),
			DepotPath: resolve(pathOffset),
			Flags:     flags,
		}
	}
	return imports, nil
}
