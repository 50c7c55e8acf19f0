package digest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFNV1a64KnownVectors(t *testing.T) {
	// Empty string hashes to the offset basis.
	require.Equal(t, uint64(0xcbf29ce484222325), FNV1a64(nil))
	// "a" is a well-known FNV-1a/64 test vector.
	require.Equal(t, uint64(0xaf63dc4c8601ec8c), FNV1a64([]byte("a")))
}

func TestFNV1a64PathSeparatorSensitivity(t *testing.T) {
	require.NotEqual(t,
		FNV1a64([]byte(`base\cycleweapons\loc.json`)),
		FNV1a64([]byte(`base/cycleweapons/loc.json`)),
	)
}

func TestSHA1Length(t *testing.T) {
	sum := SHA1([]byte("hello"))
	require.Len(t, sum, 20)
}

func TestCRC64Deterministic(t *testing.T) {
	a := CRC64(0, []byte("hello world"))
	b := CRC64(0, []byte("hello world"))
	require.Equal(t, a, b)
	require.NotEqual(t, a, CRC64(0, []byte("hello world!")))
}
