// Package kraken implements the compression adapter's call contract
// (spec §4.2) over a real LZ-family codec.
//
// The host game's archives are compressed with Oodle/Kraken, a
// proprietary native codec that cannot be vendored here. This package
// keeps Kraken's call contract — worst-case size estimation, a
// level-parameterized compressor, and a fixed-output-size decompressor —
// but executes it against klauspost/compress/zstd, pooled the way
// arloliu-mebo's compress/zstd_pure.go and
// rpcpool-yellowstone-faithful's gsfa/linkedlog/compress.go pool their
// encoders and decoders. Every caller in this module only ever depends
// on the contract below, never on zstd specifically.
package kraken

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Level mirrors the Kraken compression level enumeration from spec §4.2.
type Level int

// Kraken compression levels, in the order the source codec defines them.
const (
	LevelNone Level = iota
	LevelSuperFast
	LevelVeryFast
	LevelFast
	LevelNormal
	LevelOptimal1
	LevelOptimal2
	LevelOptimal3
	LevelOptimal4
	LevelOptimal5
)

// bypassThreshold is the input size below which the adapter must bypass
// the codec entirely and store the input verbatim (spec §4.2).
const bypassThreshold = 256

// sectorSize is the block size used by WorstCaseCompressedSize's
// per-262144-byte chunk overhead (spec §4.2).
const sectorSize = 262144

// chunkOverhead is the worst-case per-chunk expansion the native codec
// may introduce.
const chunkOverhead = 274

// WorstCaseCompressedSize returns the maximum number of bytes Compress
// may need to hold the compressed form of n input bytes:
//
//	n + 274 * ceil(n / 262144)
//
// An equivalent closed form using (n + 0x3FFFF) >> 18 must and does
// produce identical values.
func WorstCaseCompressedSize(n int) int {
	chunks := (n + sectorSize - 1) / sectorSize
	altChunks := (n + 0x3FFFF) >> 18
	if chunks != altChunks {
		// The two formulas are mathematically identical for all n >= 0;
		// divergence means a non-int64-safe overflow on this platform.
		panic(fmt.Sprintf("kraken: worst-case formula mismatch for n=%d: %d != %d", n, chunks, altChunks))
	}
	return n + chunkOverhead*chunks
}

// encoderLevel maps a Kraken Level onto the nearest zstd encoder level.
func encoderLevel(level Level) zstd.EncoderLevel {
	switch {
	case level <= LevelVeryFast:
		return zstd.SpeedFastest
	case level <= LevelFast:
		return zstd.SpeedDefault
	case level <= LevelNormal:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}

// encoderPools holds one sync.Pool per distinct zstd encoder level, since
// a pooled *zstd.Encoder's level is fixed at construction.
var (
	encoderPoolsMu sync.Mutex
	encoderPools   = map[zstd.EncoderLevel]*sync.Pool{}
)

func getEncoder(zl zstd.EncoderLevel) *zstd.Encoder {
	encoderPoolsMu.Lock()
	pool, ok := encoderPools[zl]
	if !ok {
		pool = &sync.Pool{
			New: func() any {
				enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zl))
				if err != nil {
					panic(fmt.Sprintf("kraken: failed to build pooled encoder: %v", err))
				}
				return enc
			},
		}
		encoderPools[zl] = pool
	}
	encoderPoolsMu.Unlock()
	return pool.Get().(*zstd.Encoder)
}

func putEncoder(zl zstd.EncoderLevel, enc *zstd.Encoder) {
	encoderPoolsMu.Lock()
	pool := encoderPools[zl]
	encoderPoolsMu.Unlock()
	pool.Put(enc)
}

var decoderPool = sync.Pool{
	New: func() any {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			panic(fmt.Sprintf("kraken: failed to build pooled decoder: %v", err))
		}
		return dec
	},
}

// Compress compresses src into dst at the given level and returns the
// number of bytes written to dst. Per spec §4.2, inputs shorter than 256
// bytes bypass the codec entirely and are copied verbatim.
func Compress(dst, src []byte, level Level) (int, error) {
	if len(src) < bypassThreshold {
		n := copy(dst, src)
		return n, nil
	}

	zl := encoderLevel(level)
	enc := getEncoder(zl)
	defer putEncoder(zl, enc)

	out := enc.EncodeAll(src, nil)
	if len(out) > len(dst) {
		return 0, fmt.Errorf("kraken: compressed size %d exceeds destination capacity %d", len(out), len(dst))
	}
	copy(dst, out)
	return len(out), nil
}

// Decompress decompresses src into dst and returns the number of bytes
// written. Callers must assert the result equals the expected decoded
// length recorded in the archive's FileSegment/KARK frame. An expected
// length below 256 bytes means Compress copied the input verbatim, so src
// is copied back verbatim as well.
func Decompress(dst, src []byte) (int, error) {
	if len(dst) < bypassThreshold {
		return copy(dst, src), nil
	}

	dec := decoderPool.Get().(*zstd.Decoder)
	defer decoderPool.Put(dec)

	if err := dec.Reset(bytes.NewReader(src)); err != nil {
		return 0, fmt.Errorf("kraken: reset decoder: %w", err)
	}
	n, err := io.ReadFull(dec, dst)
	if err != nil && err != io.ErrUnexpectedEOF {
		return n, fmt.Errorf("kraken: decompress: %w", err)
	}
	return n, nil
}
