//go:build !unix

package ioat

import "os"

// newPlatformReaderAt falls back to a mutex-serialized Seek+Read on
// non-unix targets, where golang.org/x/sys/unix.Pread is unavailable.
func newPlatformReaderAt(f *os.File) *lockedReaderAt {
	return &lockedReaderAt{f: f}
}
