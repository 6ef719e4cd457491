package vnarc

import (
	"fmt"
	"os"

	"github.com/hazukino/vnarc/internal/bitio"
	"github.com/hazukino/vnarc/internal/xerr"
)

// iarIgnoredVersions are IarFileEntry.version&0xFFFF values whose payload
// is either a duplicate of an already-extracted composite image or an
// in-place patch over one: both are skipped rather than
// surfaced as their own entries.
var iarIgnoredVersions = map[uint32]bool{
	0x103C: true, 0x101C: true, 0x83C: true, 0x81C: true,
}

// parseIAR implements the IAR scheme: a 28-byte header,
// an entry_count*8 table of absolute u64 offsets into 72-byte fixed
// records, each record's trailing raw bytes left undecoded for the
// resource dispatcher to classify.
func parseIAR(path string) (*Archive, *NavigableDirectory, error) {
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

	headBuf := make([]byte, 28)
	if _, err := f.ReadAt(headBuf, 4); err != nil {
		return nil, nil, xerr.OutOfBounds("iar: header read: %v", err)
	}
	hr := bitio.NewReader(headBuf)
	if _, err := hr.Bytes(4); err != nil { // major/minor version
		return nil, nil, err
	}
	if _, err := hr.Bytes(4); err != nil { // unk0
		return nil, nil, err
	}
	if _, err := hr.Bytes(4); err != nil { // some_size
		return nil, nil, err
	}
	if _, err := hr.Bytes(8); err != nil { // timestamp
		return nil, nil, err
	}
	entryCount, err := hr.U32LE()
	if err != nil {
		return nil, nil, err
	}

	indexBuf := make([]byte, int(entryCount)*8)
	if _, err := f.ReadAt(indexBuf, 32); err != nil {
		return nil, nil, xerr.OutOfBounds("iar: index table read: %v", err)
	}
	ir := bitio.NewReader(indexBuf)

	var entries []FileEntry
	for i := uint32(0); i < entryCount; i++ {
		off, err := ir.U64LE()
		if err != nil {
			return nil, nil, err
		}
		recBuf := make([]byte, 72)
		if _, err := f.ReadAt(recBuf, int64(off)); err != nil {
			return nil, nil, xerr.OutOfBounds("iar: record read: %v", err)
		}
		rr := bitio.NewReader(recBuf)
		version, err := rr.U32LE()
		if err != nil {
			return nil, nil, err
		}
		if _, err := rr.Bytes(4); err != nil { // unk0
			return nil, nil, err
		}
		if _, err := rr.Bytes(4); err != nil { // decompressed_file_size
			return nil, nil, err
		}
		if _, err := rr.Bytes(4); err != nil { // unk1
			return nil, nil, err
		}
		fileSize, err := rr.U32LE()
		if err != nil {
			return nil, nil, err
		}
		if iarIgnoredVersions[version&0xFFFF] {
			continue
		}
		name := fmt.Sprintf("%d", i)
		entries = append(entries, FileEntry{
			Name:     name,
			FullPath: name,
			Offset:   int64(off),
			Size:     int64(fileSize) + 72,
		})
	}

	root := BuildDirectoryTree(entries)
	arc := NewArchive("IAR", f, root, entries, func(a *Archive, e FileEntry) ([]byte, string, error) {
		buf := make([]byte, e.Size)
		if _, err := a.ReadAt(buf, e.Offset); err != nil {
			return nil, "", xerr.OutOfBounds("iar: entry read: %v", err)
		}
		return buf, "iar", nil
	})
	closeOnErr = nil
	return arc, NewNavigableDirectory(root), nil
}
