package redarc

import (
	"io"

	"github.com/redarc-go/redarc/internal/byteio"
)

// Magic and version constants (spec §3).
const (
	headerMagic   uint32 = 0x52344B53
	headerVersion uint32 = 12

	lxrsMagic   uint32 = 0x4C585253
	lxrsVersion uint32 = 1

	karkMagic uint32 = 0x4B52414B

	// cr2wMagic is the magic of a cooked-resource file, "CR2W" read as a
	// little-endian uint32 (spec §4.4).
	cr2wMagic uint32 = 0x57325243
)

// alignment is the byte boundary the index, the final archive length, and
// "aligned" raw-path segments are padded to.
const alignment = 4096

// paddingByte is written at every alignment boundary the packer introduces.
const paddingByte = 0xD9

// headerFixedSize is the 40-byte fixed portion of the header, ending just
// before custom_data_length.
const headerFixedSize = 40

// headerTailPaddingSize is the zero padding following custom_data_length,
// so that headerFixedSize + 4 (custom_data_length) + headerTailPaddingSize
// lands exactly on lxrsFooterOffset (0xAC): 40 + 4 + 128 = 172.
const headerTailPaddingSize = 128

// lxrsFooterOffset is the fixed absolute offset at which an optional
// LxrsFooter begins when custom_data_length (at offset 40) is nonzero.
const lxrsFooterOffset = 0xAC

// Header is the archive's 40-byte fixed header (spec §3).
type Header struct {
	Magic          uint32
	Version        uint32
	IndexPosition  uint64
	IndexSize      uint32
	DebugPosition  uint64
	DebugSize      uint32
	FileSize       uint64
	CustomDataSize uint32
}

// decodeHeader reads a Header from the start of r, where r is positioned
// at archive offset 0. The trailing 128 bytes of reserved padding are
// read and discarded; their content is never interpreted on input.
func decodeHeader(r io.Reader) (Header, error) {
	br := byteio.NewReader(r)
	var h Header
	h.Magic = br.ReadU32()
	h.Version = br.ReadU32()
	h.IndexPosition = br.ReadU64()
	h.IndexSize = br.ReadU32()
	h.DebugPosition = br.ReadU64()
	h.DebugSize = br.ReadU32()
	h.FileSize = br.ReadU64()
	if br.Err != nil {
		return Header{}, br.Err
	}
	h.CustomDataSize = br.ReadU32()
	if br.Err != nil {
		return Header{}, br.Err
	}
	_ = br.ReadBytes(headerTailPaddingSize)
	return h, br.Err
}

// encodeHeader writes h's 40-byte fixed portion, the custom_data_length
// field, and 128 bytes of zero padding, landing exactly on
// lxrsFooterOffset.
func encodeHeader(w io.Writer, h Header) error {
	if err := byteio.WriteU32(w, h.Magic); err != nil {
		return err
	}
	if err := byteio.WriteU32(w, h.Version); err != nil {
		return err
	}
	if err := byteio.WriteU64(w, h.IndexPosition); err != nil {
		return err
	}
	if err := byteio.WriteU32(w, h.IndexSize); err != nil {
		return err
	}
	if err := byteio.WriteU64(w, h.DebugPosition); err != nil {
		return err
	}
	if err := byteio.WriteU32(w, h.DebugSize); err != nil {
		return err
	}
	if err := byteio.WriteU64(w, h.FileSize); err != nil {
		return err
	}
	if err := byteio.WriteU32(w, h.CustomDataSize); err != nil {
		return err
	}
	_, err := w.Write(make([]byte, headerTailPaddingSize))
	return err
}
