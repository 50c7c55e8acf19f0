package redarc

import "errors"

// Kind classifies an Error, mirroring the taxonomy in spec §7.
type Kind int

// Error kinds.
const (
	// KindInvalidInput covers a missing source directory, a wrong
	// archive/footer magic, or a footer whose compressed size exceeds
	// its uncompressed size.
	KindInvalidInput Kind = iota
	// KindInvalidData covers truncated headers/indexes/tables and
	// out-of-range segment indices encountered while reading.
	KindInvalidData
	// KindNotFound covers a failed entry lookup by hash or path.
	KindNotFound
	// KindExists covers a non-overwrite extraction colliding with an
	// existing file.
	KindExists
	// KindIO covers any underlying read/write/seek failure.
	KindIO
	// KindCodec covers a Kraken adapter failure or size-assertion
	// violation.
	KindCodec
	// KindUnsupported covers operations that are not available in the
	// mode an Archive was opened in.
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid input"
	case KindInvalidData:
		return "invalid data"
	case KindNotFound:
		return "not found"
	case KindExists:
		return "exists"
	case KindIO:
		return "io error"
	case KindCodec:
		return "codec error"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Error is the error type returned by every exported redarc operation.
// It carries a Kind so callers can branch with errors.Is against the
// package's Err* sentinels without string matching.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "redarc.Open"
	Path string // archive or entry path involved, if any
	Err  error  // wrapped cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.String()
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel associated with e.Kind,
// so errors.Is(err, ErrNotFound) works regardless of Op/Path/Err.
func (e *Error) Is(target error) bool {
	sentinel, ok := target.(*Error)
	if !ok {
		return false
	}
	return sentinel.Kind == e.Kind && sentinel.Op == "" && sentinel.Path == "" && sentinel.Err == nil
}

func newErr(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// Sentinel errors for use with errors.Is. Each carries only a Kind; Op,
// Path and Err are left zero so Error.Is matches on Kind alone.
var (
	ErrInvalidInput  error = &Error{Kind: KindInvalidInput}
	ErrInvalidData   error = &Error{Kind: KindInvalidData}
	ErrNotFound      error = &Error{Kind: KindNotFound}
	ErrExists        error = &Error{Kind: KindExists}
	ErrIO            error = &Error{Kind: KindIO}
	ErrCodec         error = &Error{Kind: KindCodec}
	ErrUnsupported   error = &Error{Kind: KindUnsupported}
	errShortFooter         = errors.New("lxrs footer: compressed size exceeds uncompressed size")
	errBadFileTableOffset  = errors.New("index: file_table_offset is not 8")
	errIndexCRCMismatch    = errors.New("index: crc-64 mismatch over table body")
	errBadHeaderMagic      = errors.New("header: bad magic")
	errBadHeaderVersion    = errors.New("header: unsupported version")
	errKarkMagicMismatch   = errors.New("segment: missing KARK frame magic")
)
