package vnarc

import (
	"os"

	"github.com/hazukino/vnarc/internal/bitio"
	"github.com/hazukino/vnarc/internal/xerr"
)

// escArc2Ladder advances the per-chunk evolving XOR key the same way for
// both the directory decrypt and the header unscramble: `key ^= 0x65AC9365;
// key ^= (((key<<1)^key)<<3) + ((key>>1)^key)>>3`.
func escArc2Ladder(key uint32) uint32 {
	key ^= 0x65AC9365
	key ^= (((key << 1) ^ key) << 3) + (((key >> 1) ^ key) >> 3)
	return key
}

// parseEscArc2 implements the ESC-ARC2 scheme: an
// 8-byte magic, three XOR-masked header u32s, and a per-entry evolving-key
// stream cipher over 12-byte directory records.
func parseEscArc2(path string) (*Archive, *NavigableDirectory, error) {
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

	head := make([]byte, 20)
	if _, err := f.ReadAt(head, 0); err != nil {
		return nil, nil, xerr.OutOfBounds("esc-arc2: header read: %v", err)
	}
	r := bitio.NewReader(head[8:])
	unk1raw, err := r.U32LE()
	if err != nil {
		return nil, nil, err
	}
	fileCountRaw, err := r.U32LE()
	if err != nil {
		return nil, nil, err
	}
	nameTableSizeRaw, err := r.U32LE()
	if err != nil {
		return nil, nil, err
	}
	_ = unk1raw ^ 0x65AC9365 // unk1, never validated
	fileCount := fileCountRaw ^ 0x65AC9365
	nameTableSize := nameTableSizeRaw ^ 0x65AC9365

	const recordSize = 12
	tableBuf := make([]byte, int(fileCount)*recordSize)
	if _, err := f.ReadAt(tableBuf, 20); err != nil {
		return nil, nil, xerr.OutOfBounds("esc-arc2: directory read: %v", err)
	}
	nameBlob := make([]byte, nameTableSize)
	if _, err := f.ReadAt(nameBlob, 20+int64(len(tableBuf))); err != nil {
		return nil, nil, xerr.OutOfBounds("esc-arc2: name blob read: %v", err)
	}
	dataBase := int64(20) + int64(len(tableBuf)) + int64(len(nameBlob))

	key := nameTableSize
	var entries []FileEntry
	for i := uint32(0); i < fileCount; i++ {
		rec := tableBuf[i*recordSize : (i+1)*recordSize]
		rr := bitio.NewReader(rec)
		nameOffRaw, err := rr.U32LE()
		if err != nil {
			return nil, nil, err
		}
		offsetRaw, err := rr.U32LE()
		if err != nil {
			return nil, nil, err
		}
		sizeRaw, err := rr.U32LE()
		if err != nil {
			return nil, nil, err
		}
		key = escArc2Ladder(key)
		nameOff := nameOffRaw ^ key
		offset := offsetRaw ^ key
		size := sizeRaw ^ key

		name := ""
		if int(nameOff) < len(nameBlob) {
			name = decodeShiftJISNullTerminated(nameBlob[nameOff:])
		}
		entries = append(entries, FileEntry{
			Name:     name,
			FullPath: name,
			Offset:   dataBase + int64(offset),
			Size:     int64(size),
		})
	}

	root := BuildDirectoryTree(entries)
	arc := NewArchive("ESC-ARC2", f, root, entries, func(a *Archive, e FileEntry) ([]byte, string, error) {
		buf := make([]byte, e.Size)
		if _, err := a.ReadAt(buf, e.Offset); err != nil {
			return nil, "", xerr.OutOfBounds("esc-arc2: entry read: %v", err)
		}
		return buf, "", nil
	})
	closeOnErr = nil
	return arc, NewNavigableDirectory(root), nil
}
