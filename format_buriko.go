package vnarc

import (
	"bytes"
	"os"

	"github.com/hazukino/vnarc/internal/bitio"
	"github.com/hazukino/vnarc/internal/xerr"
)

// parseBuriko implements the Buriko ARC20 scheme: a 12-byte magic + 2-digit
// version, fixed 128-byte entry records, and an audio-wrapper skip on
// extract.
func parseBuriko(path string) (*Archive, *NavigableDirectory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, xerr.IoError(err)
	}
	closeOnErr := f
	defer func() {
		if closeOnErr != nil {
			closeOnErr.Close()
		}
	}()

	head := make([]byte, 18)
	if _, err := f.ReadAt(head, 0); err != nil {
		return nil, nil, xerr.OutOfBounds("buriko: header read: %v", err)
	}
	r := bitio.NewReader(head[14:])
	entryCount, err := r.U32LE()
	if err != nil {
		return nil, nil, err
	}

	const recordSize = 128
	tableBuf := make([]byte, int(entryCount)*recordSize)
	if _, err := f.ReadAt(tableBuf, 18); err != nil {
		return nil, nil, xerr.OutOfBounds("buriko: entry table read: %v", err)
	}
	dataBase := int64(18 + len(tableBuf))

	var entries []FileEntry
	for i := uint32(0); i < entryCount; i++ {
		rec := tableBuf[i*recordSize : (i+1)*recordSize]
		name := decodeShiftJISNullTerminated(rec[:96])
		fr := bitio.NewReader(rec[96:])
		offset, err := fr.U32LE()
		if err != nil {
			return nil, nil, err
		}
		size, err := fr.U32LE()
		if err != nil {
			return nil, nil, err
		}
		entries = append(entries, FileEntry{
			Name:     name,
			FullPath: name,
			Offset:   dataBase + int64(offset),
			Size:     int64(size),
		})
	}

	root := BuildDirectoryTree(entries)
	arc := NewArchive("Buriko ARC20", f, root, entries, func(a *Archive, e FileEntry) ([]byte, string, error) {
		buf := make([]byte, e.Size)
		if _, err := a.ReadAt(buf, e.Offset); err != nil {
			return nil, "", xerr.OutOfBounds("buriko: entry read: %v", err)
		}
		if len(buf) >= 8 && bytes.Equal(buf[4:8], []byte("bw  ")) && len(buf) > 0x40 {
			buf = buf[0x40:]
		}
		return buf, "", nil
	})
	closeOnErr = nil
	return arc, NewNavigableDirectory(root), nil
}
