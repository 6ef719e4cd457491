package vnarc

import (
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/hazukino/vnarc/internal/bitio"
	"github.com/hazukino/vnarc/internal/resources"
	"github.com/hazukino/vnarc/internal/xerr"
	"github.com/klauspost/compress/zlib"
)

type ypfNameTable struct {
	Default struct {
		NameKeyLength int   `json:"nameKeyLength"`
		NameKeyTable  []int `json:"nameKeyTable"`
	} `json:"default"`
}

func loadYPFNameTable() (ypfNameTable, error) {
	var t ypfNameTable
	if err := json.Unmarshal(resources.YPFDecryptNameTables, &t); err != nil {
		return t, xerr.Wrap(err, "ypf: decode name table resource")
	}
	return t, nil
}

// parseYPF implements the YPF scheme: name sizes recovered by bitwise NOT
// of the stored byte XORed with an entry of the embedded "default" name-key
// table (the same table for every archive version; no per-version table is
// selected), bitwise-NOT-inverted names, optional zlib compression per entry.
func parseYPF(path string) (*Archive, *NavigableDirectory, error) {
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

	table, err := loadYPFNameTable()
	if err != nil {
		return nil, nil, err
	}

	head := make([]byte, 32)
	if _, err := f.ReadAt(head, 0); err != nil {
		return nil, nil, xerr.OutOfBounds("ypf: header read: %v", err)
	}
	r := bitio.NewReader(head[4:])
	archiveVersion, err := r.U32LE()
	if err != nil {
		return nil, nil, err
	}
	entryCount, err := r.U32LE()
	if err != nil {
		return nil, nil, err
	}
	entriesSize, err := r.U32LE()
	if err != nil {
		return nil, nil, err
	}

	tableBuf := make([]byte, entriesSize)
	if _, err := f.ReadAt(tableBuf, 32); err != nil {
		return nil, nil, xerr.OutOfBounds("ypf: entry table read: %v", err)
	}
	tr := bitio.NewReader(tableBuf)
	dataBase := int64(32 + entriesSize)

	var entries []FileEntry
	for i := uint32(0); i < entryCount; i++ {
		nameSizeByte, err := tr.Byte()
		if err != nil {
			return nil, nil, err
		}
		nameSize := ^nameSizeByte
		if len(table.Default.NameKeyTable) > 0 {
			idx := int(nameSize) % len(table.Default.NameKeyTable)
			nameSize = byte(int(nameSize) ^ table.Default.NameKeyTable[idx])
		}
		nameBytes, err := tr.Bytes(int(nameSize))
		if err != nil {
			return nil, nil, err
		}
		inverted := make([]byte, len(nameBytes))
		for j, b := range nameBytes {
			v := ^b
			if archiveVersion == 500 {
				v ^= 0x36
			}
			inverted[j] = v
		}
		name := decodeShiftJIS(inverted)

		flags, err := tr.U32LE()
		if err != nil {
			return nil, nil, err
		}
		if _, err := tr.Bytes(4); err != nil { // unk
			return nil, nil, err
		}
		offset, err := tr.U32LE()
		if err != nil {
			return nil, nil, err
		}
		size, err := tr.U32LE()
		if err != nil {
			return nil, nil, err
		}

		entries = append(entries, FileEntry{
			Name:     name,
			FullPath: name,
			Offset:   dataBase + int64(offset),
			Size:     int64(size),
			Extra:    flags,
		})
	}

	root := BuildDirectoryTree(entries)
	arc := NewArchive("YPF", f, root, entries, func(a *Archive, e FileEntry) ([]byte, string, error) {
		buf := make([]byte, e.Size)
		if _, err := a.ReadAt(buf, e.Offset); err != nil {
			return nil, "", xerr.OutOfBounds("ypf: entry read: %v", err)
		}
		flags, _ := e.Extra.(uint32)
		if flags&1 != 0 {
			zr, err := zlib.NewReader(bytes.NewReader(buf))
			if err != nil {
				return nil, "", xerr.Wrap(err, "ypf: zlib")
			}
			defer zr.Close()
			out, err := io.ReadAll(zr)
			if err != nil {
				return nil, "", xerr.Wrap(err, "ypf: inflate")
			}
			return out, "", nil
		}
		return buf, "", nil
	})
	closeOnErr = nil
	return arc, NewNavigableDirectory(root), nil
}
