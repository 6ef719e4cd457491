package vnarc

import (
	"os"

	"github.com/hazukino/vnarc/internal/bitio"
	"github.com/hazukino/vnarc/internal/xerr"
)

// parseAmusePac implements the AMUSE PAC scheme: a
// fixed 0x804-byte header region, a flat unencrypted entry table of
// 0x28-byte records.
func parseAmusePac(path string) (*Archive, *NavigableDirectory, error) {
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

	head := make([]byte, 12)
	if _, err := f.ReadAt(head, 0); err != nil {
		return nil, nil, xerr.OutOfBounds("amuse pac: header read: %v", err)
	}
	r := bitio.NewReader(head[4:])
	_, err = r.U32LE() // unknown
	if err != nil {
		return nil, nil, err
	}
	entryCount, err := r.U32LE()
	if err != nil {
		return nil, nil, err
	}

	const tableOffset = 0x804
	const recordSize = 0x28
	tableBuf := make([]byte, int(entryCount)*recordSize)
	if _, err := f.ReadAt(tableBuf, tableOffset); err != nil {
		return nil, nil, xerr.OutOfBounds("amuse pac: entry table read: %v", err)
	}

	var entries []FileEntry
	for i := uint32(0); i < entryCount; i++ {
		rec := tableBuf[i*recordSize : (i+1)*recordSize]
		name := decodeShiftJISNullTerminated(rec[:32])
		fr := bitio.NewReader(rec[32:])
		size, err := fr.U32LE()
		if err != nil {
			return nil, nil, err
		}
		offset, err := fr.U32LE()
		if err != nil {
			return nil, nil, err
		}
		entries = append(entries, FileEntry{
			Name:     name,
			FullPath: name,
			Offset:   int64(offset),
			Size:     int64(size),
		})
	}

	root := BuildDirectoryTree(entries)
	arc := NewArchive("AMUSE PAC", f, root, entries, func(a *Archive, e FileEntry) ([]byte, string, error) {
		buf := make([]byte, e.Size)
		if _, err := a.ReadAt(buf, e.Offset); err != nil {
			return nil, "", xerr.OutOfBounds("amuse pac: entry read: %v", err)
		}
		return buf, "", nil
	})
	closeOnErr = nil
	return arc, NewNavigableDirectory(root), nil
}
