package vnarc

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hazukino/vnarc/internal/bitio"
	"github.com/hazukino/vnarc/internal/resources"
	"github.com/hazukino/vnarc/internal/xcrypto"
	"github.com/hazukino/vnarc/internal/xerr"
	"github.com/klauspost/compress/zlib"
	"golang.org/x/text/encoding/japanese"
)

const acv1MasterKey = 0x8B6A4E5F

// acv1Scheme is one concrete per-game ACV1 variant, carrying its literal
// script_key (SUPPLEMENTED FEATURES, SPEC_FULL.md: scheme/acv1.rs names
// four concrete schemes with literal u32 keys rather than one opaque
// parameter).
type acv1Scheme struct {
	name      string
	scriptKey uint32
}

var acv1KnownSchemes = []acv1Scheme{
	{"Shukugar1", 0x9d0be0fa},
	{"Shukugar2", 0xcf762ea8},
	{"Shukugar3", 0x3548751d},
	{"HanaHime", 0x30bc61c8},
}

func acv1Schemes() []Scheme {
	var out []Scheme
	for _, s := range acv1KnownSchemes {
		s := s
		out = append(out, Scheme{
			Tag:  TagACV1,
			Name: "[ACV1] " + s.name,
			Parse: func(path string) (*Archive, *NavigableDirectory, error) {
				return parseACV1(path, s.scriptKey)
			},
		})
	}
	return out
}

type acv1Extra struct {
	flags    byte
	name     string
	crcLow32 uint32
}

// parseACV1 implements the ACV1 scheme: a CRC64-keyed
// name table resolves each masked directory record to a path, which then
// keys the per-entry cipher.
func parseACV1(path string, scriptKey uint32) (*Archive, *NavigableDirectory, error) {
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

	hashes, err := acv1LoadNameHashes()
	if err != nil {
		return nil, nil, err
	}

	head := make([]byte, 8)
	if _, err := f.ReadAt(head, 0); err != nil {
		return nil, nil, xerr.OutOfBounds("acv1: header read: %v", err)
	}
	r := bitio.NewReader(head[4:])
	entriesCountRaw, err := r.U32LE()
	if err != nil {
		return nil, nil, err
	}
	entriesCount := entriesCountRaw ^ acv1MasterKey

	const recordSize = 21
	tableBuf := make([]byte, int(entriesCount)*recordSize)
	if _, err := f.ReadAt(tableBuf, 8); err != nil {
		return nil, nil, xerr.OutOfBounds("acv1: directory read: %v", err)
	}

	var entries []FileEntry
	for i := uint32(0); i < entriesCount; i++ {
		rec := tableBuf[i*recordSize : (i+1)*recordSize]
		rr := bitio.NewReader(rec)
		crc, err := rr.U64LE()
		if err != nil {
			return nil, nil, err
		}
		crcLow32 := uint32(crc)
		flags, err := rr.Byte()
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
		uncompressedRaw, err := rr.U32LE()
		if err != nil {
			return nil, nil, err
		}
		flags ^= byte(crcLow32)
		offset := (offsetRaw ^ crcLow32) ^ acv1MasterKey
		size := sizeRaw ^ crcLow32
		uncompressed := uncompressedRaw ^ crcLow32

		name, found := hashes[crc]
		extractable := true
		if found {
			if flags&2 == 0 {
				nameBytes, _ := japanese.ShiftJIS.NewEncoder().Bytes([]byte(name))
				n := len(nameBytes)
				if n > 0 {
					offset ^= uint32(nameBytes[(n>>1)%n])
					size ^= uint32(nameBytes[(n>>2)%n])
					uncompressed ^= uint32(nameBytes[(n>>3)%n])
				}
			}
		} else if flags&4 != 0 {
			name = fmt.Sprintf("%016X", crc)
		} else {
			extractable = false
		}
		if !extractable {
			continue
		}

		entries = append(entries, FileEntry{
			Name:             name,
			FullPath:         name,
			Offset:           int64(offset),
			Size:             int64(size),
			UncompressedSize: int64(uncompressed),
			Extra:            acv1Extra{flags: flags, name: name, crcLow32: crcLow32},
		})
	}

	root := BuildDirectoryTree(entries)
	arc := NewArchive("ACV1", f, root, entries, func(a *Archive, e FileEntry) ([]byte, string, error) {
		extra, _ := e.Extra.(acv1Extra)
		buf := make([]byte, e.Size)
		if _, err := a.ReadAt(buf, e.Offset); err != nil {
			return nil, "", xerr.OutOfBounds("acv1: entry read: %v", err)
		}

		if extra.flags == 0 {
			return buf, "", nil
		}
		if extra.flags&2 == 0 {
			nameBytes, _ := japanese.ShiftJIS.NewEncoder().Bytes([]byte(extra.name))
			if len(nameBytes) == 0 {
				return buf, "", nil
			}
			for i := range buf {
				buf[i] ^= nameBytes[i%len(nameBytes)]
			}
			return buf, "", nil
		}

		key := extra.crcLow32
		if extra.flags == 6 {
			key ^= scriptKey
		}
		keyBytes := [4]byte{byte(key), byte(key >> 8), byte(key >> 16), byte(key >> 24)}
		for i := 0; i+4 <= len(buf); i += 4 {
			buf[i] ^= keyBytes[0]
			buf[i+1] ^= keyBytes[1]
			buf[i+2] ^= keyBytes[2]
			buf[i+3] ^= keyBytes[3]
		}
		zr, err := zlib.NewReader(bytes.NewReader(buf))
		if err != nil {
			return nil, "", xerr.Wrap(err, "acv1: zlib")
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, "", xerr.Wrap(err, "acv1: inflate")
		}
		return out, "", nil
	})
	closeOnErr = nil
	return arc, NewNavigableDirectory(root), nil
}

// acv1LoadNameHashes builds the CRC64 -> name table from the embedded
// Shift-JIS name list.
func acv1LoadNameHashes() (map[uint64]string, error) {
	decoded, err := japanese.ShiftJIS.NewDecoder().Bytes(resources.ACV1AllFileNames)
	if err != nil {
		decoded = resources.ACV1AllFileNames
	}
	hashes := make(map[uint64]string)
	for _, line := range strings.Split(string(decoded), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		encoded, err := japanese.ShiftJIS.NewEncoder().Bytes([]byte(line))
		if err != nil {
			encoded = []byte(line)
		}
		hashes[xcrypto.CRC64WE(encoded)] = normalizePath(line)
	}
	return hashes, nil
}
