// Package xerr implements a small error taxonomy on top of
// github.com/cockroachdb/errors, already pulled in transitively via
// cockroachdb/pebble. Promoting it to a
// direct dependency buys structured wrapping/marking so callers can test for
// a taxonomy kind with errors.Is while the error string still carries the
// scheme name and, when relevant, the offending bytes or field values.
package xerr

import "github.com/cockroachdb/errors"

// Sentinel kinds. Test membership with errors.Is(err, xerr.KindOutOfBounds)
// etc; every constructor below marks its error against one of these.
var (
	KindUnrecognizedFormat    = errors.New("unrecognized format")
	KindUnimplemented         = errors.New("unimplemented")
	KindBadHeader             = errors.New("bad header")
	KindOutOfBounds           = errors.New("out of bounds")
	KindInvalidImageResolution = errors.New("invalid image resolution")
	KindMissingKey            = errors.New("missing key")
	KindIoError               = errors.New("io error")
	KindCorruptPayload        = errors.New("corrupt payload")
)

func UnrecognizedFormat(path string, head []byte) error {
	return errors.Mark(errors.Newf("unrecognized format: %s head=% X", path, head), KindUnrecognizedFormat)
}

func Unimplemented(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), KindUnimplemented)
}

func BadHeader(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), KindBadHeader)
}

func OutOfBounds(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), KindOutOfBounds)
}

func InvalidImageResolution(got, want int) error {
	return errors.Mark(errors.Newf("invalid image resolution: got %d bytes, want %d", got, want), KindInvalidImageResolution)
}

func MissingKey(scheme string) error {
	return errors.Mark(errors.Newf("missing key table entry for scheme %q", scheme), KindMissingKey)
}

func IoError(cause error) error {
	return errors.Mark(errors.Wrap(cause, "io error"), KindIoError)
}

func CorruptPayload(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), KindCorruptPayload)
}

// Is reports whether err is marked with kind (one of the Kind* sentinels).
func Is(err, kind error) bool { return errors.Is(err, kind) }

// Wrap and Wrapf forward to cockroachdb/errors so callers never need to
// import both packages.
func Wrap(err error, msg string) error                  { return errors.Wrap(err, msg) }
func Wrapf(err error, format string, args ...any) error { return errors.Wrapf(err, format, args...) }
func New(msg string) error                               { return errors.New(msg) }
func Newf(format string, args ...any) error               { return errors.Newf(format, args...) }
