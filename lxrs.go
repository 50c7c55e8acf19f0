package redarc

import (
	"bytes"
	"fmt"
	"io"

	"github.com/redarc-go/redarc/internal/byteio"
	"github.com/redarc-go/redarc/internal/kraken"
)

// LxrsFooter is the optional extended path dictionary stored at
// lxrsFooterOffset, used to round-trip original resource paths for
// non-vanilla files (spec §3).
type LxrsFooter struct {
	Paths []string // decoded, in on-disk order
}

// decodeLxrsFooter reads an LxrsFooter of exactly size bytes from r.
func decodeLxrsFooter(r io.Reader, size uint32) (*LxrsFooter, error) {
	raw := make([]byte, size)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, newErr(KindIO, "redarc.decodeLxrsFooter", "", err)
	}
	br := byteio.NewReader(bytes.NewReader(raw))

	magic := br.ReadU32()
	_ = br.ReadU32() // version, not interpreted beyond presence
	count := br.ReadU32()
	uncompressedSize := br.ReadU32()
	compressedSize := br.ReadU32()
	if br.Err != nil {
		return nil, newErr(KindInvalidData, "redarc.decodeLxrsFooter", "", br.Err)
	}
	if magic != lxrsMagic {
		return nil, newErr(KindInvalidInput, "redarc.decodeLxrsFooter", "", fmt.Errorf("bad magic %#x", magic))
	}
	if compressedSize > uncompressedSize {
		return nil, newErr(KindInvalidInput, "redarc.decodeLxrsFooter", "", errShortFooter)
	}

	payload := br.ReadBytes(int(compressedSize))
	if br.Err != nil {
		return nil, newErr(KindInvalidData, "redarc.decodeLxrsFooter", "", br.Err)
	}

	var plain []byte
	if uncompressedSize == compressedSize {
		plain = payload
	} else {
		plain = make([]byte, uncompressedSize)
		n, err := kraken.Decompress(plain, payload)
		if err != nil {
			return nil, newErr(KindCodec, "redarc.decodeLxrsFooter", "", err)
		}
		if uint32(n) != uncompressedSize {
			return nil, newErr(KindCodec, "redarc.decodeLxrsFooter", "", fmt.Errorf("decompressed %d bytes, want %d", n, uncompressedSize))
		}
	}

	paths := make([]string, 0, count)
	pr := bytes.NewReader(plain)
	for i := uint32(0); i < count; i++ {
		s, err := byteio.ReadCString(pr)
		if err != nil {
			return nil, newErr(KindInvalidData, "redarc.decodeLxrsFooter", "", err)
		}
		paths = append(paths, s)
	}
	return &LxrsFooter{Paths: paths}, nil
}

// encodeLxrsFooter serializes paths as an LxrsFooter, Kraken-compressing
// the payload at Normal level when doing so actually shrinks it.
func encodeLxrsFooter(w io.Writer, paths []string) error {
	plain := bytes.NewBuffer(nil)
	for _, p := range paths {
		if err := byteio.WriteCString(plain, p); err != nil {
			return err
		}
	}
	uncompressed := plain.Bytes()

	dst := make([]byte, kraken.WorstCaseCompressedSize(len(uncompressed)))
	n, err := kraken.Compress(dst, uncompressed, kraken.LevelNormal)
	if err != nil {
		return newErr(KindCodec, "redarc.encodeLxrsFooter", "", err)
	}

	payload := dst[:n]
	compressedSize := n
	if compressedSize >= len(uncompressed) {
		// No benefit from compression: store raw, as permitted by spec §3
		// ("if equal, stored raw").
		payload = uncompressed
		compressedSize = len(uncompressed)
	}

	if err := byteio.WriteU32(w, lxrsMagic); err != nil {
		return err
	}
	if err := byteio.WriteU32(w, lxrsVersion); err != nil {
		return err
	}
	if err := byteio.WriteU32(w, uint32(len(paths))); err != nil {
		return err
	}
	if err := byteio.WriteU32(w, uint32(len(uncompressed))); err != nil {
		return err
	}
	if err := byteio.WriteU32(w, uint32(compressedSize)); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}
