package vnarc

import (
	"encoding/json"
	"os"

	"github.com/hazukino/vnarc/internal/bitio"
	"github.com/hazukino/vnarc/internal/lzss"
	"github.com/hazukino/vnarc/internal/resources"
	"github.com/hazukino/vnarc/internal/xerr"
)

func tacticsArcSchemes() []Scheme {
	games := []struct{ key, name string }{
		{"Maou2", "[TACTICS_ARC_FILE] Maou no Kuse ni Namaiki da! 2 ~Kondo wa Seisen da!~"},
		{"Maou2FD", "[TACTICS_ARC_FILE] Maou no Kuse ni Namaiki da! Torotoro Tropical!"},
		{"Oshioki", "[TACTICS_ARC_FILE] Akuma de Oshioki! Marukido Sadoshiki Hentai Oshioki Kouza"},
	}
	var out []Scheme
	for _, g := range games {
		g := g
		out = append(out, Scheme{
			Tag:  TagTacticsArc,
			Name: g.name,
			Parse: func(path string) (*Archive, *NavigableDirectory, error) {
				return parseTacticsArc(path, g.key)
			},
		})
	}
	return out
}

// parseTacticsArc implements the Tactics Arc scheme: no container magic at
// all -- entries are discovered by walking a flat stream of (size,
// decompressed_size, name_size, name, data) records from offset 16 to end
// of file.
func parseTacticsArc(path string, keyName string) (*Archive, *NavigableDirectory, error) {
	xorKey, err := tacticsArcLookupKey(keyName)
	if err != nil {
		return nil, nil, err
	}

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

	fi, err := f.Stat()
	if err != nil {
		return nil, nil, xerr.IoError(err)
	}
	fileLen := fi.Size()

	var entries []FileEntry
	cur := int64(16)
	for cur < fileLen {
		recBuf := make([]byte, 20)
		if _, err := f.ReadAt(recBuf, cur); err != nil {
			return nil, nil, xerr.OutOfBounds("tactics_arc: record read: %v", err)
		}
		rr := bitio.NewReader(recBuf)
		fileSize, err := rr.U32LE()
		if err != nil {
			return nil, nil, err
		}
		decompressedSize, err := rr.U32LE()
		if err != nil {
			return nil, nil, err
		}
		nameSize, err := rr.U32LE()
		if err != nil {
			return nil, nil, err
		}
		cur += 20

		if nameSize > 0 {
			nameBuf := make([]byte, nameSize)
			if _, err := f.ReadAt(nameBuf, cur); err != nil {
				return nil, nil, xerr.OutOfBounds("tactics_arc: name read: %v", err)
			}
			name := decodeShiftJIS(nameBuf)
			entries = append(entries, FileEntry{
				Name:             name,
				FullPath:         name,
				Offset:           cur + int64(nameSize),
				Size:             int64(fileSize),
				UncompressedSize: int64(decompressedSize),
			})
		}
		cur += int64(nameSize) + int64(fileSize)
	}

	root := BuildDirectoryTree(entries)
	arc := NewArchive("TacticsArc", f, root, entries, func(a *Archive, e FileEntry) ([]byte, string, error) {
		buf := make([]byte, e.Size)
		if _, err := a.ReadAt(buf, e.Offset); err != nil {
			return nil, "", xerr.OutOfBounds("tactics_arc: entry read: %v", err)
		}
		for i := range buf {
			buf[i] ^= xorKey[i%len(xorKey)]
		}
		out, err := lzss.DecodeTacticsArc(buf)
		if err != nil {
			return nil, "", err
		}
		return out, "", nil
	})
	closeOnErr = nil
	return arc, NewNavigableDirectory(root), nil
}

// tacticsArcLookupKey resolves the per-game cycling XOR key from the
// embedded JSON table.
func tacticsArcLookupKey(name string) ([]byte, error) {
	var table map[string]string
	if err := json.Unmarshal(resources.TacticsArcKeys, &table); err != nil {
		return nil, xerr.Wrap(err, "tactics_arc: decode key table")
	}
	key, ok := table[name]
	if !ok {
		return nil, xerr.MissingKey("tactics_arc: " + name)
	}
	return []byte(key), nil
}
