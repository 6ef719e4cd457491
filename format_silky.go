package vnarc

import (
	"os"

	"github.com/hazukino/vnarc/internal/bitio"
	"github.com/hazukino/vnarc/internal/lzss"
	"github.com/hazukino/vnarc/internal/xerr"
)

// parseSilky implements the Silky scheme: a
// 4-byte total-entries-size header, per-byte-shifted names, and big-endian
// size/offset fields (the one format in §4.2 that isn't little-endian).
func parseSilky(path string) (*Archive, *NavigableDirectory, error) {
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

	head := make([]byte, 4)
	if _, err := f.ReadAt(head, 0); err != nil {
		return nil, nil, xerr.OutOfBounds("silky: header read: %v", err)
	}
	r := bitio.NewReader(head)
	totalEntriesSize, err := r.U32LE()
	if err != nil {
		return nil, nil, err
	}

	tableBuf := make([]byte, totalEntriesSize)
	if _, err := f.ReadAt(tableBuf, 4); err != nil {
		return nil, nil, xerr.OutOfBounds("silky: entry table read: %v", err)
	}
	tr := bitio.NewReader(tableBuf)
	dataBase := int64(4 + totalEntriesSize)

	var entries []FileEntry
	for tr.Len() > 0 {
		nameLen, err := tr.Byte()
		if err != nil {
			break
		}
		nameRaw, err := tr.Bytes(int(nameLen))
		if err != nil {
			return nil, nil, err
		}
		name := make([]byte, len(nameRaw))
		for i, b := range nameRaw {
			name[i] = b - (nameLen - byte(i))
		}
		fileSize, err := tr.U32BE()
		if err != nil {
			return nil, nil, err
		}
		uncompressedSize, err := tr.U32BE()
		if err != nil {
			return nil, nil, err
		}
		offset, err := tr.U32BE()
		if err != nil {
			return nil, nil, err
		}
		decoded := decodeShiftJIS(name)
		entries = append(entries, FileEntry{
			Name:             decoded,
			FullPath:         decoded,
			Offset:           dataBase + int64(offset),
			Size:             int64(fileSize),
			UncompressedSize: int64(uncompressedSize),
		})
	}

	root := BuildDirectoryTree(entries)
	arc := NewArchive("Silky", f, root, entries, func(a *Archive, e FileEntry) ([]byte, string, error) {
		buf := make([]byte, e.Size)
		if _, err := a.ReadAt(buf, e.Offset); err != nil {
			return nil, "", xerr.OutOfBounds("silky: entry read: %v", err)
		}
		if e.UncompressedSize == 0 || e.UncompressedSize == e.Size {
			return buf, "", nil
		}
		br := bitio.NewReader(buf)
		lsb := bitio.NewLSBBitReader(br)
		out, err := lzss.Decode(lzss.Params{
			DictSize: 4096, FillByte: 0, MinMatch: 3, LiteralFlagBit: 1,
		}, lzss.Of(lsb), lzss.Of(lsb), int(e.UncompressedSize))
		if err != nil {
			return nil, "", xerr.Wrap(err, "silky: decompress")
		}
		return out, "", nil
	})
	closeOnErr = nil
	return arc, NewNavigableDirectory(root), nil
}
