package redarc

import (
	_ "embed"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"sync"
)

// HashDict maps a resource's FNV-1a/64 name hash back to its depot path.
// It is the "caller-supplied hash_map" referenced throughout spec §4.5
// and §4.7.
type HashDict map[uint64]string

// LoadHashDict parses a two-column CSV (path, decimal hash) with a
// header row, per spec §6. Malformed rows are skipped rather than
// failing the whole load, matching the tolerant parsing spec mandates
// for this format.
func LoadHashDict(r io.Reader) (HashDict, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	dict := HashDict{}
	first := true
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, newErr(KindInvalidData, "redarc.LoadHashDict", "", err)
		}
		if first {
			first = false
			continue // header row
		}
		if len(rec) < 2 {
			continue
		}
		hash, err := strconv.ParseUint(strings.TrimSpace(rec[1]), 10, 64)
		if err != nil {
			continue
		}
		dict[hash] = rec[0]
	}
	return dict, nil
}

//go:embed testdata/hashdict_default.csv
var defaultHashDictCSV string

var (
	defaultHashDictOnce sync.Once
	defaultHashDict     HashDict
)

// DefaultHashDict returns the library's bundled resource-path dictionary,
// loading and caching it on first use. The result is immutable and safe
// to share across goroutines (spec §5).
func DefaultHashDict() HashDict {
	defaultHashDictOnce.Do(func() {
		dict, err := LoadHashDict(strings.NewReader(defaultHashDictCSV))
		if err != nil {
			dict = HashDict{}
		}
		defaultHashDict = dict
	})
	return defaultHashDict
}
