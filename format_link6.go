package vnarc

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"

	"github.com/hazukino/vnarc/internal/bitio"
	"github.com/hazukino/vnarc/internal/xerr"
)

// link6ParamsKeyMarker locates the key blob inside a sibling params.dat
// file: the 34 bytes are UTF-16LE code units, beginning with the string
// "ウィンドウ", plus trailing version framing.
var link6ParamsKeyMarker = []byte{
	0xa6, 0x30, 0xa3, 0x30, 0xf3, 0x30, 0xc9, 0x30, 0xa6, 0x30, 0xcc, 0x80,
	0x6f, 0x66, 0x72, 0x82, 0x06, 0x00, 0x0f, 0x90, 0x4e, 0x90, 0x87, 0x73,
	0x04, 0x00, 0x36, 0x00, 0x30, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// parseLink6 implements the LINK6 scheme: a 7-byte
// magic plus a Shift-JIS archive name, then a flat stream of
// length-prefixed entries, each holding a UTF-16LE name and raw data.
// BMP payloads (magic "BM") in a "cg"-named archive are additionally
// XOR-keyed past their pixel-data offset, the key itself pulled out of a
// sibling params.dat file by scanning for a fixed marker.
func parseLink6(path string) (*Archive, *NavigableDirectory, error) {
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

	headBuf := make([]byte, 8+256)
	if _, err := f.ReadAt(headBuf, 0); err != nil {
		return nil, nil, xerr.OutOfBounds("link6: header read: %v", err)
	}
	hr := bitio.NewReader(headBuf)
	magic, err := hr.Bytes(7)
	if err != nil {
		return nil, nil, err
	}
	_ = magic
	nameSize, err := hr.Byte()
	if err != nil {
		return nil, nil, err
	}
	if _, err := hr.Bytes(int(nameSize)); err != nil {
		return nil, nil, err
	}

	var entries []FileEntry
	curOffset := int64(8) + int64(nameSize)
	for {
		sizeBuf := make([]byte, 4)
		if _, err := f.ReadAt(sizeBuf, curOffset); err != nil {
			return nil, nil, xerr.OutOfBounds("link6: entry size read: %v", err)
		}
		entrySize := binary.LittleEndian.Uint32(sizeBuf)
		if entrySize == 0 {
			break
		}
		recBuf := make([]byte, entrySize)
		if _, err := f.ReadAt(recBuf, curOffset); err != nil {
			return nil, nil, xerr.OutOfBounds("link6: entry read: %v", err)
		}
		entryNameSize := int(binary.LittleEndian.Uint16(recBuf[13:15]))
		if 15+entryNameSize > len(recBuf) {
			return nil, nil, xerr.OutOfBounds("link6: entry name out of range")
		}
		name := decodeUTF16LE(recBuf[15:15+entryNameSize], false)
		fileSize := int(entrySize) - entryNameSize - 15
		fileOffset := curOffset + 15 + int64(entryNameSize)
		full := normalizePath(filepath.ToSlash(name))
		entries = append(entries, FileEntry{
			Name:     filepath.Base(full),
			FullPath: full,
			Offset:   fileOffset,
			Size:     int64(fileSize),
		})
		curOffset += int64(entrySize)
	}

	var key []byte
	if strings.Contains(strings.ToLower(filepath.Base(path)), "cg") {
		paramsPath := filepath.Join(filepath.Dir(path), "params.dat")
		paramsBuf, err := os.ReadFile(paramsPath)
		if err != nil {
			return nil, nil, xerr.IoError(err)
		}
		key, err = link6ExtractKeyFromParams(paramsBuf)
		if err != nil {
			return nil, nil, err
		}
	}

	root := BuildDirectoryTree(entries)
	arc := NewArchive("LINK6", f, root, entries, func(a *Archive, e FileEntry) ([]byte, string, error) {
		buf := make([]byte, e.Size)
		if _, err := a.ReadAt(buf, e.Offset); err != nil {
			return nil, "", xerr.OutOfBounds("link6: entry read: %v", err)
		}
		if len(buf) >= 2 && buf[0] == 'B' && buf[1] == 'M' && key != nil {
			if len(buf) < 14 {
				return nil, "", xerr.OutOfBounds("link6: bmp header truncated")
			}
			pixelsIndex := int(binary.LittleEndian.Uint32(buf[10:14]))
			if pixelsIndex > len(buf) {
				return nil, "", xerr.OutOfBounds("link6: bmp pixel offset out of range")
			}
			for i := pixelsIndex; i < len(buf); i++ {
				buf[i] ^= key[(i-pixelsIndex)%len(key)]
			}
		}
		return buf, "", nil
	})
	closeOnErr = nil
	return arc, NewNavigableDirectory(root), nil
}

// link6ExtractKeyFromParams locates the marker inside params.dat and
// reads the version-dependent key blob that follows it.
func link6ExtractKeyFromParams(buf []byte) ([]byte, error) {
	idx := bytes.Index(buf, link6ParamsKeyMarker)
	if idx < 0 {
		return nil, xerr.MissingKey("link6: key marker not found in params.dat")
	}
	base := idx + len(link6ParamsKeyMarker)
	if base >= len(buf) {
		return nil, xerr.OutOfBounds("link6: params.dat truncated at version byte")
	}
	version := buf[base]
	switch version {
	case 0:
		if base+4+4 > len(buf) {
			return nil, xerr.OutOfBounds("link6: params.dat truncated at key size")
		}
		keySize := int(binary.LittleEndian.Uint32(buf[base+4 : base+8]))
		start := base + 8
		if start+keySize > len(buf) {
			return nil, xerr.OutOfBounds("link6: params.dat truncated at key blob")
		}
		return append([]byte(nil), buf[start:start+keySize]...), nil
	case 6:
		if base+0x84+4 > len(buf) {
			return nil, xerr.OutOfBounds("link6: params.dat truncated at key size")
		}
		keySize := int(binary.LittleEndian.Uint32(buf[base+0x84 : base+0x88]))
		start := base + 0x88
		if start+keySize > len(buf) {
			return nil, xerr.OutOfBounds("link6: params.dat truncated at key blob")
		}
		return append([]byte(nil), buf[start:start+keySize]...), nil
	default:
		return nil, xerr.Unimplemented("link6: unsupported params.dat version %d", version)
	}
}
