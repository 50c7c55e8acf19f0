// Package byteio provides little-endian primitive reads/writes over an
// io.Reader/io.Writer, plus a sticky-error reader modeled on the
// read-into-value idiom used to parse the MPQ header and tables.
package byteio

import (
	"bufio"
	"encoding/binary"
	"io"
)

// Reader wraps an io.Reader and remembers the first error encountered,
// so a sequence of reads can be chained without checking err after each one.
type Reader struct {
	r   io.Reader
	Err error
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Read reads a fixed-width little-endian value into data (a pointer to one
// of uint8/uint16/uint32/uint64/int32 or a fixed-size array/struct of
// those). It is a no-op once r.Err is set.
func (r *Reader) Read(data interface{}) error {
	if r.Err != nil {
		return r.Err
	}
	r.Err = binary.Read(r.r, binary.LittleEndian, data)
	return r.Err
}

// ReadU8 reads a single byte.
func (r *Reader) ReadU8() uint8 {
	var v uint8
	r.Read(&v)
	return v
}

// ReadU16 reads a little-endian uint16.
func (r *Reader) ReadU16() uint16 {
	var v uint16
	r.Read(&v)
	return v
}

// ReadU32 reads a little-endian uint32.
func (r *Reader) ReadU32() uint32 {
	var v uint32
	r.Read(&v)
	return v
}

// ReadU64 reads a little-endian uint64.
func (r *Reader) ReadU64() uint64 {
	var v uint64
	r.Read(&v)
	return v
}

// ReadI32 reads a little-endian int32.
func (r *Reader) ReadI32() int32 {
	var v int32
	r.Read(&v)
	return v
}

// ReadBytes reads exactly n raw bytes.
func (r *Reader) ReadBytes(n int) []byte {
	if r.Err != nil {
		return nil
	}
	buf := make([]byte, n)
	_, r.Err = io.ReadFull(r.r, buf)
	return buf
}

// ReadCString reads a null-terminated UTF-8 string, stopping at the first
// 0x00 byte (not included in the result). It fails only on unexpected EOF
// before a terminator is found.
func ReadCString(r io.ByteReader) (string, error) {
	var buf []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == 0 {
			break
		}
		buf = append(buf, b)
	}
	return string(buf), nil
}

// ReadCStringFrom is a convenience wrapper for io.Reader sources that do not
// already implement io.ByteReader.
func ReadCStringFrom(r io.Reader) (string, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return ReadCString(br)
}

// WriteU8 writes a single byte.
func WriteU8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

// WriteU16 writes a little-endian uint16.
func WriteU16(w io.Writer, v uint16) error {
	return binary.Write(w, binary.LittleEndian, v)
}

// WriteU32 writes a little-endian uint32.
func WriteU32(w io.Writer, v uint32) error {
	return binary.Write(w, binary.LittleEndian, v)
}

// WriteU64 writes a little-endian uint64.
func WriteU64(w io.Writer, v uint64) error {
	return binary.Write(w, binary.LittleEndian, v)
}

// WriteCString writes s followed by a single 0x00 terminator.
func WriteCString(w io.Writer, s string) error {
	if _, err := io.WriteString(w, s); err != nil {
		return err
	}
	_, err := w.Write([]byte{0})
	return err
}
