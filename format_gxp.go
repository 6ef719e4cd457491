package vnarc

import (
	"os"

	"github.com/hazukino/vnarc/internal/bitio"
	"github.com/hazukino/vnarc/internal/xerr"
)

// gxpPassword is GXP's fixed 23-byte cipher key.
var gxpPassword = []byte{
	0x40, 0x21, 0x28, 0x38, 0xA6, 0x6E, 0x43, 0xA5, 0x40, 0x21, 0x28, 0x38,
	0xA6, 0x43, 0xA5, 0x64, 0x3E, 0x65, 0x24, 0x20, 0x46, 0x6E, 0x74,
}

// gxpCipher decrypts/encrypts buf in place, treating buf[i] as byte i+offset
// of the whole entry-table stream: `byte[i] ^=
// ((offset+i)&0xFF) + (i&0xFF) ^ PASSWORD[(i+offset) % 23]`.
func gxpCipher(buf []byte, offset int) {
	for i := range buf {
		al := byte((offset+i)&0xFF) + byte(i&0xFF)
		al ^= gxpPassword[(i+offset)%len(gxpPassword)]
		buf[i] ^= al
	}
}

// parseGXP implements the GXP scheme: a 48-byte header, a
// variable-length encrypted entry directory, UTF-16LE names.
func parseGXP(path string) (*Archive, *NavigableDirectory, error) {
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

	head := make([]byte, 48)
	if _, err := f.ReadAt(head, 0); err != nil {
		return nil, nil, xerr.OutOfBounds("gxp: header read: %v", err)
	}
	hr := bitio.NewReader(head[4:])
	for i := 0; i < 5; i++ { // opaque fields preceding unk5
		if _, err := hr.U32LE(); err != nil {
			return nil, nil, err
		}
	}
	unk5, err := hr.U32LE()
	if err != nil {
		return nil, nil, err
	}
	fileEntriesCount, err := hr.U32LE()
	if err != nil {
		return nil, nil, err
	}
	fileEntriesSize, err := hr.U32LE()
	if err != nil {
		return nil, nil, err
	}

	tableBuf := make([]byte, fileEntriesSize)
	if _, err := f.ReadAt(tableBuf, 48); err != nil {
		return nil, nil, xerr.OutOfBounds("gxp: entry table read: %v", err)
	}

	var entries []FileEntry
	pos := 0
	for i := uint32(0); i < fileEntriesCount && pos+4 <= len(tableBuf); i++ {
		entrySize := int(fileEntriesSize) - pos
		if unk5 != 0 {
			head4 := append([]byte(nil), tableBuf[pos:pos+4]...)
			gxpCipher(head4, pos)
			entrySize = int(uint32(head4[0]) | uint32(head4[1])<<8 | uint32(head4[2])<<16 | uint32(head4[3])<<24)
			if entrySize <= 0 || pos+entrySize > len(tableBuf) {
				break
			}
		}
		entryBuf := append([]byte(nil), tableBuf[pos:pos+entrySize]...)
		gxpCipher(entryBuf, pos)

		er := bitio.NewReader(entryBuf)
		declaredSize, err := er.U32LE()
		if err != nil {
			return nil, nil, err
		}
		fileSize, err := er.U32LE()
		if err != nil {
			return nil, nil, err
		}
		if _, err := er.Bytes(4); err != nil { // unk
			return nil, nil, err
		}
		nameUTF16Len, err := er.U32LE()
		if err != nil {
			return nil, nil, err
		}
		if _, err := er.Bytes(8); err != nil { // two unk fields
			return nil, nil, err
		}
		fileOffset, err := er.U32LE()
		if err != nil {
			return nil, nil, err
		}
		if _, err := er.Bytes(4); err != nil { // unk
			return nil, nil, err
		}
		nameBytes, err := er.Bytes(int(nameUTF16Len))
		if err != nil {
			return nil, nil, err
		}
		name := decodeUTF16LE(nameBytes, true)

		entries = append(entries, FileEntry{
			Name:     name,
			FullPath: name,
			Offset:   int64(fileOffset),
			Size:     int64(fileSize),
		})
		if unk5 != 0 {
			pos += entrySize
		} else {
			pos += int(declaredSize)
			if declaredSize == 0 {
				break
			}
		}
	}

	// rawFileDataOffset is the directory's end; each entry's offset is
	// relative to it rather than to the start of the file.
	rawFileDataOffset := int64(48 + fileEntriesSize)
	for i := range entries {
		entries[i].Offset += rawFileDataOffset
	}

	root := BuildDirectoryTree(entries)
	arc := NewArchive("GXP", f, root, entries, func(a *Archive, e FileEntry) ([]byte, string, error) {
		buf := make([]byte, e.Size)
		if _, err := a.ReadAt(buf, e.Offset); err != nil {
			return nil, "", xerr.OutOfBounds("gxp: entry read: %v", err)
		}
		gxpCipher(buf, 0)
		return buf, "", nil
	})
	closeOnErr = nil
	return arc, NewNavigableDirectory(root), nil
}
