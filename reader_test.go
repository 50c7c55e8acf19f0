package redarc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenReaderRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, encodeHeader(&buf, Header{Magic: 0, Version: headerVersion}))

	_, err := OpenReader(bytes.NewReader(buf.Bytes()))
	require.ErrorIs(t, err, errBadHeaderMagic)
}

func TestOpenReaderRejectsBadVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, encodeHeader(&buf, Header{Magic: headerMagic, Version: 1}))

	_, err := OpenReader(bytes.NewReader(buf.Bytes()))
	require.ErrorIs(t, err, errBadHeaderVersion)
}

func TestOpenReaderSkipsEntriesWithInvalidSegmentRange(t *testing.T) {
	idx := Index{
		Entries: []FileEntry{
			{NameHash64: 1, SegmentsStart: 0, SegmentsEnd: 1}, // valid
			{NameHash64: 2, SegmentsStart: 5, SegmentsEnd: 9}, // out of range: skipped
		},
		Segments: []FileSegment{{Offset: 0, ZSize: 4, Size: 4}},
	}

	const indexPosition = 200

	var sink fakeWriteSeeker
	require.NoError(t, encodeHeader(&sink, Header{
		Magic:         headerMagic,
		Version:       headerVersion,
		IndexPosition: indexPosition,
	}))
	_, err := sink.Seek(indexPosition, 0)
	require.NoError(t, err)
	require.NoError(t, encodeIndex(&sink, idx))

	r, err := OpenReader(bytes.NewReader(sink.data))
	require.NoError(t, err)
	require.Len(t, r.Entries(), 1)
	require.Equal(t, uint64(1), r.Entries()[0].Hash)
}

func TestGetEntryByHashNotFound(t *testing.T) {
	r := &Reader{byHash: map[uint64]*ZipEntry{}}
	_, err := r.GetEntryByHash(123)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestNormalizeDepotPath(t *testing.T) {
	require.Equal(t, "base\\a\\b.json", normalizeDepotPath("base/a/b.json"))
	require.Equal(t, "base\\a\\b.json", normalizeDepotPath("base\\a\\b.json"))
}
