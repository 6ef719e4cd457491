package vnarc

import (
	"bytes"
	"io"
	"os"

	"github.com/hazukino/vnarc/internal/bitio"
	"github.com/hazukino/vnarc/internal/xerr"
	"github.com/klauspost/compress/zlib"
)

// parseNekopack implements the Nekopack scheme: a 14-byte header (8-byte
// magic, u16 version, u32 entries size), a name-sum-XORed entry table, and a per-entry leading-32-byte
// scramble before a final zlib inflate.
func parseNekopack(path string) (*Archive, *NavigableDirectory, error) {
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

	head := make([]byte, 14)
	if _, err := f.ReadAt(head, 0); err != nil {
		return nil, nil, xerr.OutOfBounds("nekopack: header read: %v", err)
	}
	r := bitio.NewReader(head[8:])
	_, err = r.U16LE() // version
	if err != nil {
		return nil, nil, err
	}
	entriesSize, err := r.U32LE()
	if err != nil {
		return nil, nil, err
	}

	tableBuf := make([]byte, entriesSize)
	if _, err := f.ReadAt(tableBuf, 14); err != nil {
		return nil, nil, xerr.OutOfBounds("nekopack: entry table read: %v", err)
	}
	tr := bitio.NewReader(tableBuf)

	dataBase := int64(14 + entriesSize)
	var entries []FileEntry
	for tr.Len() > 0 {
		nameSize, err := tr.U32LE()
		if err != nil {
			break
		}
		nameBytes, err := tr.Bytes(int(nameSize))
		if err != nil {
			return nil, nil, err
		}
		var sum byte
		for _, b := range nameBytes {
			sum += b
		}
		rawOffset, err := tr.U32LE()
		if err != nil {
			return nil, nil, err
		}
		rawSize, err := tr.U32LE()
		if err != nil {
			return nil, nil, err
		}
		offset := rawOffset ^ uint32(sum)
		size := rawSize ^ uint32(sum)
		name := decodeShiftJIS(nameBytes)
		entries = append(entries, FileEntry{
			Name:     name,
			FullPath: name,
			Offset:   dataBase + int64(offset),
			Size:     int64(size),
		})
	}

	root := BuildDirectoryTree(entries)
	arc := NewArchive("Nekopack", f, root, entries, func(a *Archive, e FileEntry) ([]byte, string, error) {
		buf := make([]byte, e.Size)
		if _, err := a.ReadAt(buf, e.Offset); err != nil {
			return nil, "", xerr.OutOfBounds("nekopack: entry read: %v", err)
		}
		if len(buf) > 32 {
			s := byte(len(buf)>>3) + 34
			for i := 0; i < 32; i++ {
				buf[i] ^= s
				s <<= 3
			}
		}
		if len(buf) < 4 {
			return nil, "", xerr.CorruptPayload("nekopack: entry shorter than trailer")
		}
		zr, err := zlib.NewReader(bytes.NewReader(buf[:len(buf)-4]))
		if err != nil {
			return nil, "", xerr.Wrap(err, "nekopack: zlib")
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, "", xerr.Wrap(err, "nekopack: inflate")
		}
		return out, "", nil
	})
	closeOnErr = nil
	return arc, NewNavigableDirectory(root), nil
}
