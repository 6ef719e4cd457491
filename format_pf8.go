package vnarc

import (
	"os"

	"github.com/hazukino/vnarc/internal/bitio"
	"github.com/hazukino/vnarc/internal/xcrypto"
	"github.com/hazukino/vnarc/internal/xerr"
)

// parsePF8 implements the PF8 scheme: a fixed header, a
// SHA-1-derived 20-byte repeating XOR key covering the archive-data region.
func parsePF8(path string) (*Archive, *NavigableDirectory, error) {
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
		return nil, nil, xerr.OutOfBounds("pf8: header read: %v", err)
	}
	if string(head[:3]) != "pf8" {
		return nil, nil, xerr.BadHeader("pf8: bad magic")
	}
	r := bitio.NewReader(head[4:])
	archiveDataSize, err := r.U32LE()
	if err != nil {
		return nil, nil, err
	}
	fileEntriesCount, err := r.U32LE()
	if err != nil {
		return nil, nil, err
	}

	// The archive-data region is exactly archive_data_size bytes starting
	// at the file_entries_count field itself (offset 8), so the count and
	// the entry table are both covered by the hash.
	archiveData := make([]byte, archiveDataSize)
	if _, err := f.ReadAt(archiveData, 8); err != nil {
		return nil, nil, xerr.OutOfBounds("pf8: archive-data read: %v", err)
	}
	digest := xcrypto.SHA1(archiveData)
	key := digest[:]

	dr := bitio.NewReader(archiveData[4:]) // past the entries-count field
	var entries []FileEntry
	for i := uint32(0); i < fileEntriesCount; i++ {
		nameSize, err := dr.U32LE()
		if err != nil {
			return nil, nil, err
		}
		nameBytes, err := dr.Bytes(int(nameSize))
		if err != nil {
			return nil, nil, err
		}
		if _, err := dr.Bytes(4); err != nil { // unk
			return nil, nil, err
		}
		offset, err := dr.U32LE()
		if err != nil {
			return nil, nil, err
		}
		size, err := dr.U32LE()
		if err != nil {
			return nil, nil, err
		}
		name := decodeShiftJIS(nameBytes)
		entries = append(entries, FileEntry{
			Name:     name,
			FullPath: name,
			Offset:   int64(offset),
			Size:     int64(size),
		})
	}

	root := BuildDirectoryTree(entries)
	arc := NewArchive("PF8", f, root, entries, func(a *Archive, e FileEntry) ([]byte, string, error) {
		buf := make([]byte, e.Size)
		if _, err := a.ReadAt(buf, e.Offset); err != nil {
			return nil, "", xerr.OutOfBounds("pf8: entry read: %v", err)
		}
		for i := range buf {
			buf[i] ^= key[i%len(key)]
		}
		return buf, "", nil
	})
	closeOnErr = nil
	return arc, NewNavigableDirectory(root), nil
}
