package vnarc

import (
	"os"

	"github.com/hazukino/vnarc/internal/bitio"
	"github.com/hazukino/vnarc/internal/xerr"
)

// parseWillPlusArc implements the WillPlus Arc scheme: an 8-byte header, a
// flat UTF-16LE-named entry table, raw unencrypted payloads.
func parseWillPlusArc(path string) (*Archive, *NavigableDirectory, error) {
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

	head := make([]byte, 8)
	if _, err := f.ReadAt(head, 0); err != nil {
		return nil, nil, xerr.OutOfBounds("willplus: header read: %v", err)
	}
	r := bitio.NewReader(head)
	entryCount, err := r.U32LE()
	if err != nil {
		return nil, nil, err
	}
	entriesSize, err := r.U32LE()
	if err != nil {
		return nil, nil, err
	}

	tableBuf := make([]byte, entriesSize)
	if _, err := f.ReadAt(tableBuf, 8); err != nil {
		return nil, nil, xerr.OutOfBounds("willplus: entry table read: %v", err)
	}
	tr := bitio.NewReader(tableBuf)

	fileDataBase := int64(8 + entriesSize)
	var entries []FileEntry
	for i := uint32(0); i < entryCount; i++ {
		fileSize, err := tr.U32LE()
		if err != nil {
			return nil, nil, err
		}
		fileOffset, err := tr.U32LE()
		if err != nil {
			return nil, nil, err
		}
		name, err := readUTF16LEUntilNUL(tr)
		if err != nil {
			return nil, nil, err
		}
		entries = append(entries, FileEntry{
			Name:     name,
			FullPath: name,
			Offset:   fileDataBase + int64(fileOffset),
			Size:     int64(fileSize),
		})
	}

	root := BuildDirectoryTree(entries)
	arc := NewArchive("WillPlus Arc", f, root, entries, func(a *Archive, e FileEntry) ([]byte, string, error) {
		buf := make([]byte, e.Size)
		if _, err := a.ReadAt(buf, e.Offset); err != nil {
			return nil, "", xerr.OutOfBounds("willplus: entry read: %v", err)
		}
		return buf, "", nil
	})
	closeOnErr = nil
	return arc, NewNavigableDirectory(root), nil
}

// readUTF16LEUntilNUL reads UTF-16LE code units from r until a zero code
// unit (inclusive), returning the decoded string without the terminator.
func readUTF16LEUntilNUL(r *bitio.Reader) (string, error) {
	var units []byte
	for {
		b, err := r.Bytes(2)
		if err != nil {
			return "", err
		}
		if b[0] == 0 && b[1] == 0 {
			break
		}
		units = append(units, b[0], b[1])
	}
	return decodeUTF16LE(units, false), nil
}
