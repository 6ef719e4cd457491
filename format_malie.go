package vnarc

import (
	"encoding/hex"
	"encoding/json"
	"os"

	"github.com/hazukino/vnarc/internal/bitio"
	"github.com/hazukino/vnarc/internal/resources"
	"github.com/hazukino/vnarc/internal/xcrypto"
	"github.com/hazukino/vnarc/internal/xerr"
)

var malieMagic = []byte("LIBP")

func malieSchemes() []Scheme {
	games := []struct{ keyName, title string }{
		{"HaruUso", "[MALIE] Haru Uso -Passing Memories-"},
		{"NatsuUso", "[MALIE] Natsu Uso -Ahead of the Reminiscence-"},
	}
	var out []Scheme
	for _, g := range games {
		g := g
		out = append(out, Scheme{
			Tag:  TagMalie,
			Name: g.title,
			Parse: func(path string) (*Archive, *NavigableDirectory, error) {
				return parseMalie(path, g.keyName)
			},
		})
	}
	return out
}

type malieEntryKind int

const (
	malieDirectory malieEntryKind = iota
	malieFile
)

type malieDirEntry struct {
	id    int
	name  string
	start int
	end   int
}

// parseMalie implements the Malie/LIBP scheme: every
// 16-byte block is Camellia-128 decrypted after an amount-dependent
// 32-bit word rotation, directory records reconstitute a tree via parent
// ranges rather than explicit parent pointers.
func parseMalie(path string, keyName string) (*Archive, *NavigableDirectory, error) {
	key, err := malieLookupKey(keyName)
	if err != nil {
		return nil, nil, err
	}
	camellia := xcrypto.NewCamellia128(key)

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

	headBuf := make([]byte, 16)
	if _, err := f.ReadAt(headBuf, 0); err != nil {
		return nil, nil, xerr.OutOfBounds("malie: header read: %v", err)
	}
	malieDecryptBlock(headBuf, 0, camellia)
	hr := bitio.NewReader(headBuf)
	magic, err := hr.Bytes(4)
	if err != nil {
		return nil, nil, err
	}
	if string(magic) != string(malieMagic) {
		return nil, nil, xerr.BadHeader("malie: bad magic")
	}
	entryCount, err := hr.U32LE()
	if err != nil {
		return nil, nil, err
	}
	unk2, err := hr.U32LE()
	if err != nil {
		return nil, nil, err
	}

	size := int((entryCount*8 + unk2) * 4)
	fileDataOffset := int64((((entryCount*8+unk2)*4 + 0x10) + 1023) >> 10)
	fileEntriesSize := int(entryCount << 5)

	aligned := malieAlignSize(size)
	buf := make([]byte, aligned)
	if _, err := f.ReadAt(buf, 16); err != nil {
		return nil, nil, xerr.OutOfBounds("malie: directory read: %v", err)
	}
	for i := 0; i+16 <= len(buf); i += 16 {
		malieDecryptBlock(buf[i:i+16], uint32((i/16+1)*0x10), camellia)
	}
	buf = buf[:size]

	offsetTableBuf := buf[fileEntriesSize:]
	var fileOffsetTable []uint64
	for i := 0; i+4 <= len(offsetTableBuf); i += 4 {
		fileOffsetTable = append(fileOffsetTable, uint64(u32LE(offsetTableBuf[i:i+4])))
	}

	type rawEntry struct {
		id         int
		kind       malieEntryKind
		name       string
		fileOffset uint64
		fileSize   uint32
	}
	var raw []rawEntry
	for i := 0; i*32+32 <= fileEntriesSize; i++ {
		rec := buf[i*32 : i*32+32]
		nameRaw := rec[:22]
		name := decodeShiftJISNullTerminated(nameRaw)
		rr := bitio.NewReader(rec[22:])
		kindRaw, err := rr.U16LE()
		if err != nil {
			return nil, nil, err
		}
		var kind malieEntryKind
		switch kindRaw {
		case 0:
			kind = malieDirectory
		case 1:
			kind = malieFile
		default:
			return nil, nil, xerr.BadHeader("malie: unrecognized entry type %d", kindRaw)
		}
		rawOff, err := rr.U32LE()
		if err != nil {
			return nil, nil, err
		}
		fileSize, err := rr.U32LE()
		if err != nil {
			return nil, nil, err
		}
		var fileOffset uint64
		if kind == malieDirectory {
			fileOffset = uint64(rawOff)
		} else {
			if int(rawOff) >= len(fileOffsetTable) {
				return nil, nil, xerr.OutOfBounds("malie: file offset table index out of range")
			}
			fileOffset = fileOffsetTable[rawOff]
		}
		raw = append(raw, rawEntry{id: i, kind: kind, name: name, fileOffset: fileOffset, fileSize: fileSize})
	}

	var dirs []malieDirEntry
	for _, e := range raw {
		if e.kind == malieDirectory {
			dirs = append(dirs, malieDirEntry{
				id:    e.id,
				name:  e.name,
				start: int(e.fileOffset),
				end:   int(e.fileOffset) + int(e.fileSize),
			})
		}
	}

	var entries []FileEntry
	for _, e := range raw {
		if e.kind != malieFile {
			continue
		}
		full := malieResolvePath(e.id, dirs) + e.name
		entries = append(entries, FileEntry{
			Name:     e.name,
			FullPath: normalizePath(full),
			Offset:   int64(e.fileOffset),
			Size:     int64(e.fileSize),
		})
	}

	root := BuildDirectoryTree(entries)
	arc := NewArchive("Malie", f, root, entries, func(a *Archive, e FileEntry) ([]byte, string, error) {
		aligned := malieAlignSize(int(e.Size))
		absOffset := (e.Offset + fileDataOffset) << 10
		out := make([]byte, aligned)
		if _, err := a.ReadAt(out, absOffset); err != nil {
			return nil, "", xerr.OutOfBounds("malie: entry read: %v", err)
		}
		for i := 0; i+16 <= len(out); i += 16 {
			malieDecryptBlock(out[i:i+16], uint32(absOffset)+uint32(i), camellia)
		}
		return out[:e.Size], "", nil
	})
	closeOnErr = nil
	return arc, NewNavigableDirectory(root), nil
}

// malieResolvePath walks up the directory-range chain -- directory records
// store [start,end) id ranges of their children, not parent pointers -- to
// build the full path for entry id.
func malieResolvePath(id int, dirs []malieDirEntry) string {
	path := ""
	cur := id
	for cur != 0 {
		found := false
		for i := len(dirs) - 1; i >= 0; i-- {
			d := dirs[i]
			if cur >= d.start && cur < d.end {
				path = d.name + "/" + path
				cur = d.id
				found = true
				break
			}
		}
		if !found {
			break
		}
	}
	return path
}

func malieAlignSize(size int) int {
	if size%0x10 == 0 {
		return size
	}
	return size + (0x10 - size%0x10)
}

// malieDecryptBlock decrypts one 16-byte block in place: a word-rotation
// preprocessing step keyed by the block's stream position, then a single
// Camellia-128 block decrypt.
func malieDecryptBlock(buf []byte, n uint32, camellia *xcrypto.CamelliaKeySchedule128) {
	rot := (n >> 4) & 0xF
	rot += 0x10
	rotated := make([]byte, 16)
	for i := 0; i+4 <= 16; i += 4 {
		v := u32LE(buf[i : i+4])
		if (i/4)%2 == 0 {
			v = rotl32malie(v, rot)
		} else {
			v = rotl32malie(v, 32-rot)
		}
		putU32LEAt(rotated[i:i+4], v)
	}
	camellia.DecryptBlock(rotated)
	copy(buf, rotated)
}

func rotl32malie(x uint32, n uint32) uint32 {
	n &= 31
	return x<<n | x>>(32-n)
}

// malieLookupKey resolves the per-game Camellia-128 key from the embedded
// hex-string JSON table. name is looked up first; "default"
// covers games without a dedicated entry.
func malieLookupKey(name string) ([]byte, error) {
	var table map[string]string
	if err := json.Unmarshal(resources.MalieKeys, &table); err != nil {
		return nil, xerr.Wrap(err, "malie: decode key table")
	}
	hexKey, ok := table[name]
	if !ok {
		hexKey, ok = table["default"]
	}
	if !ok {
		return nil, xerr.MissingKey("malie: " + name)
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, xerr.Wrap(err, "malie: decode key hex")
	}
	return key, nil
}
