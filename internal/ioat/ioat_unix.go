//go:build unix

package ioat

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// preadReaderAt issues pread(2) directly per call, so concurrent readers
// never contend on a shared file offset.
type preadReaderAt struct {
	fd int
}

func newPlatformReaderAt(f *os.File) *lockedReaderAtOrPread {
	return &lockedReaderAtOrPread{pr: preadReaderAt{fd: int(f.Fd())}, f: f}
}

// lockedReaderAtOrPread exists only so newPlatformReaderAt can return a
// single concrete type across build tags; ReadAt always goes through pread
// on unix.
type lockedReaderAtOrPread struct {
	pr preadReaderAt
	f  *os.File
}

func (l *lockedReaderAtOrPread) ReadAt(p []byte, off int64) (int, error) {
	total := 0
	for total < len(p) {
		n, err := unix.Pread(l.pr.fd, p[total:], off+int64(total))
		if n > 0 {
			total += n
		}
		if err != nil {
			return total, err
		}
		if n == 0 {
			if total < len(p) {
				return total, io.EOF
			}
			break
		}
	}
	return total, nil
}
