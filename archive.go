package redarc

import (
	"bytes"
	"io"
	"os"
)

// Mode selects how Open treats the underlying file.
type Mode int

const (
	// ModeRead opens an existing archive for lookup and extraction only.
	ModeRead Mode = iota
	// ModeCreate truncates (or creates) a file and opens it for writing
	// a brand-new archive via Finalize.
	ModeCreate
	// ModeUpdate opens an existing archive for copy-on-write mutation
	// (spec §9): CreateEntry/DeleteEntry stage changes in memory;
	// Finalize re-packs the result to a new file.
	ModeUpdate
)

// Archive is a handle over one archive file, opened in one of the three
// modes above. It is not safe for concurrent use (spec §5).
type Archive struct {
	path string
	mode Mode
	file *os.File

	reader *Reader // populated in ModeRead and ModeUpdate

	// staged holds pending additions/removals for ModeUpdate, applied
	// by Finalize as a copy-on-write rebuild.
	staged  map[string][]byte // relPath -> content, for CreateEntry
	deleted map[uint64]bool   // hash -> deleted, for DeleteEntry
}

// Open opens path in the given mode.
func Open(path string, mode Mode) (*Archive, error) {
	const op = "redarc.Open"

	switch mode {
	case ModeRead:
		f, err := os.Open(path)
		if err != nil {
			return nil, newErr(KindIO, op, path, err)
		}
		r, err := OpenReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &Archive{path: path, mode: mode, file: f, reader: r}, nil

	case ModeCreate:
		f, err := os.Create(path)
		if err != nil {
			return nil, newErr(KindIO, op, path, err)
		}
		return &Archive{path: path, mode: mode, file: f, staged: map[string][]byte{}}, nil

	case ModeUpdate:
		f, err := os.OpenFile(path, os.O_RDWR, 0o644)
		if err != nil {
			return nil, newErr(KindIO, op, path, err)
		}
		r, err := OpenReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &Archive{
			path:    path,
			mode:    mode,
			file:    f,
			reader:  r,
			staged:  map[string][]byte{},
			deleted: map[uint64]bool{},
		}, nil
	}
	return nil, newErr(KindInvalidInput, op, path, nil)
}

// Close releases the underlying file handle. It does not flush any
// staged ModeUpdate/ModeCreate changes; call Finalize first.
func (a *Archive) Close() error {
	if a.file == nil {
		return nil
	}
	return a.file.Close()
}

// GetEntry looks up an entry by resource path (ModeRead/ModeUpdate only).
func (a *Archive) GetEntry(path string) (*ZipEntry, error) {
	if a.reader == nil {
		return nil, newErr(KindUnsupported, "redarc.GetEntry", path, nil)
	}
	return a.reader.GetEntry(path)
}

// GetEntryByHash looks up an entry by its 64-bit name hash.
func (a *Archive) GetEntryByHash(hash uint64) (*ZipEntry, error) {
	if a.reader == nil {
		return nil, newErr(KindUnsupported, "redarc.GetEntryByHash", "", nil)
	}
	return a.reader.GetEntryByHash(hash)
}

// Entries returns every readable entry in ascending hash order.
func (a *Archive) Entries() []*ZipEntry {
	if a.reader == nil {
		return nil
	}
	return a.reader.Entries()
}

// OpenEntry streams e's decoded bytes to w.
func (a *Archive) OpenEntry(e *ZipEntry, w io.Writer) error {
	if a.reader == nil {
		return newErr(KindUnsupported, "redarc.OpenEntry", "", nil)
	}
	return a.reader.Extract(e, w)
}

// ExtractEntry extracts e's decoded bytes to a writer.
func (a *Archive) ExtractEntry(e *ZipEntry, w io.Writer) error {
	return a.OpenEntry(e, w)
}

// ExtractToDirectory extracts every entry into destDir.
func (a *Archive) ExtractToDirectory(destDir string, overwrite OverwritePolicy, hashMap map[uint64]string) error {
	if a.reader == nil {
		return newErr(KindUnsupported, "redarc.ExtractToDirectory", destDir, nil)
	}
	return a.reader.ExtractToDirectory(destDir, overwrite, hashMap)
}

// CreateEntry stages relPath/content for inclusion at the next Finalize.
// Only valid in ModeUpdate (spec §9, Update mode resolved as a
// copy-on-write rebuild).
func (a *Archive) CreateEntry(relPath string, content []byte) error {
	if a.mode != ModeUpdate {
		return newErr(KindUnsupported, "redarc.CreateEntry", relPath, nil)
	}
	a.staged[normalizeDepotPath(relPath)] = content
	return nil
}

// DeleteEntry stages hash for removal at the next Finalize. Only valid
// in ModeUpdate.
func (a *Archive) DeleteEntry(hash uint64) error {
	if a.mode != ModeUpdate {
		return newErr(KindUnsupported, "redarc.DeleteEntry", "", nil)
	}
	a.deleted[hash] = true
	return nil
}

// Finalize writes the archive to disk.
//
// In ModeCreate, it packs whatever was staged via CreateEntry directly
// to the open file. In ModeUpdate, it rebuilds the archive from scratch:
// every existing entry not marked deleted is re-extracted in memory,
// merged with newly staged entries, and re-packed — there is no
// in-place mutation of unchanged entries (spec §9, Non-goals in §1).
func (a *Archive) Finalize(hashMap map[uint64]string) error {
	const op = "redarc.Finalize"

	switch a.mode {
	case ModeCreate:
		return CreateFromFileSet(a.staged, a.file, hashMap)

	case ModeUpdate:
		merged := map[string][]byte{}
		for relPath, content := range a.staged {
			merged[relPath] = content
		}
		for _, e := range a.reader.Entries() {
			if a.deleted[e.Hash] {
				continue
			}
			name := e.ResolvedName
			if name == "" && hashMap != nil {
				name = hashMap[e.Hash]
			}
			if name == "" {
				name = DefaultHashDict()[e.Hash]
			}
			if name == "" {
				continue // no way to recover a relative path for this entry
			}
			if _, overridden := merged[normalizeDepotPath(name)]; overridden {
				continue
			}
			var buf bytes.Buffer
			if err := a.reader.Extract(e, &buf); err != nil {
				return err
			}
			merged[normalizeDepotPath(name)] = buf.Bytes()
		}

		if err := a.file.Truncate(0); err != nil {
			return newErr(KindIO, op, a.path, err)
		}
		if _, err := a.file.Seek(0, 0); err != nil {
			return newErr(KindIO, op, a.path, err)
		}
		return CreateFromFileSet(merged, a.file, hashMap)

	default:
		return newErr(KindUnsupported, op, a.path, nil)
	}
}

// CreateFromDirectoryPath packs srcDir directly into dstPath (spec §4.7).
func CreateFromDirectoryPath(srcDir, dstPath string, hashMap map[uint64]string) error {
	f, err := os.Create(dstPath)
	if err != nil {
		return newErr(KindIO, "redarc.CreateFromDirectoryPath", dstPath, err)
	}
	defer f.Close()
	return CreateFromDirectory(srcDir, f, hashMap)
}

// ExtractToDirectoryPath extracts the archive at srcPath into destDir
// (spec §4.7).
func ExtractToDirectoryPath(srcPath, destDir string, overwrite OverwritePolicy, hashMap map[uint64]string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return newErr(KindIO, "redarc.ExtractToDirectoryPath", srcPath, err)
	}
	defer f.Close()
	r, err := OpenReader(f)
	if err != nil {
		return err
	}
	return r.ExtractToDirectory(destDir, overwrite, hashMap)
}
