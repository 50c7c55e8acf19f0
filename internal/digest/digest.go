// Package digest wraps the three standard hashing algorithms the archive
// format depends on for integrity and keying (spec §4.3): FNV-1a/64,
// SHA-1, and ECMA CRC-64. All three are "standard algorithms; referenced
// by name" per the spec, so they are called directly from the standard
// library rather than reimplemented.
package digest

import (
	"crypto/sha1"
	"hash/crc64"
	"hash/fnv"
)

// ecmaTable is the CRC-64/ECMA-182 polynomial table the host uses.
var ecmaTable = crc64.MakeTable(crc64.ECMA)

// FNV1a64 returns the FNV-1a/64 hash of b (offset basis
// 0xcbf29ce484222325, prime 0x100000001b3), computed over the raw bytes
// with no case folding.
func FNV1a64(b []byte) uint64 {
	h := fnv.New64a()
	h.Write(b) //nolint:errcheck // hash.Hash.Write never errors
	return h.Sum64()
}

// SHA1 returns the 20-byte SHA-1 digest of b.
func SHA1(b []byte) [20]byte {
	return sha1.Sum(b)
}

// CRC64 returns the ECMA-182 CRC-64 of b seeded with seed.
func CRC64(seed uint64, b []byte) uint64 {
	return crc64.Update(seed, ecmaTable, b)
}
