package vnarc

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"sort"

	"github.com/hazukino/vnarc/internal/bitio"
	"github.com/hazukino/vnarc/internal/resources"
	"github.com/hazukino/vnarc/internal/xerr"
)

var qliepackTail = []byte("FilePackVer")

// parseQliePack implements the QLIE Pack scheme:
// a trailer-anchored header, an MMX/SIMD-emulated key derivation (paddw,
// pxor, paddd, pslld, paddb applied to 8-byte lanes), a "1PC\xFF"
// byte-oriented decompressor for the hash directory, and a per-file
// MT19937-style keystream additionally folded with two per-game key
// tables.
func parseQliePack(path string) (*Archive, *NavigableDirectory, error) {
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

	tailBuf := make([]byte, 0x440)
	if _, err := f.ReadAt(tailBuf, fileLen-0x440); err != nil {
		return nil, nil, xerr.OutOfBounds("qliepack: tail read: %v", err)
	}
	headerBuf := tailBuf[0x440-0x1C:]
	if string(headerBuf[:11]) != "FilePackVer" {
		return nil, nil, xerr.BadHeader("qliepack: bad magic")
	}
	hr := bitio.NewReader(headerBuf[14:]) // past magic+version
	if _, err := hr.Bytes(2); err != nil { // unk0
		return nil, nil, err
	}
	if _, err := hr.Bytes(4); err != nil { // unk1
		return nil, nil, err
	}
	entryDataOffset, err := hr.U32LE()
	if err != nil {
		return nil, nil, err
	}

	header2Data := tailBuf[0x24:]
	decryptKey := qlieGenerateDecryptKey(header2Data[:0x100])
	hashDataSize := binary.LittleEndian.Uint32(tailBuf[32:36])

	hashBuf := make([]byte, hashDataSize)
	if _, err := f.ReadAt(hashBuf, fileLen-0x440-int64(hashDataSize)); err != nil {
		return nil, nil, xerr.OutOfBounds("qliepack: hash-data read: %v", err)
	}
	iterCount := binary.LittleEndian.Uint32(hashBuf[12:16])
	decrypted := qlieDecryptWithKey(hashBuf[32:], 0x428)
	hashData, err := qlieDecompress(decrypted)
	if err != nil {
		return nil, nil, err
	}

	type hashEntry struct {
		id   uint64
		name string
	}
	var hashEntries []hashEntry
	pos := 0
	for i := uint32(0); i < iterCount; i++ {
		if pos+2 > len(hashData) {
			return nil, nil, xerr.OutOfBounds("qliepack: hash-data table truncated")
		}
		x := binary.LittleEndian.Uint16(hashData[pos : pos+2])
		pos += 2
		for j := uint16(0); j < x; j++ {
			nameSize := int(binary.LittleEndian.Uint16(hashData[pos : pos+2]))
			nameBytes := hashData[pos+2 : pos+2+nameSize]
			name := decodeShiftJIS(nameBytes)
			pos += 2 + nameSize
			id := binary.LittleEndian.Uint64(hashData[pos : pos+8])
			pos += 8 + 4 // id, unk0
			hashEntries = append(hashEntries, hashEntry{id: id, name: name})
		}
	}
	sort.Slice(hashEntries, func(i, j int) bool { return hashEntries[i].id < hashEntries[j].id })

	entryDataSize := fileLen - 0x440 - int64(hashDataSize) - int64(entryDataOffset)
	entryData := make([]byte, entryDataSize)
	if _, err := f.ReadAt(entryData, int64(entryDataOffset)); err != nil {
		return nil, nil, xerr.OutOfBounds("qliepack: entry-data read: %v", err)
	}

	type qlieExtra struct {
		unk0, unk1 uint32
		name       string
	}
	var entries []FileEntry
	er := bitio.NewReader(entryData)
	for _, he := range hashEntries {
		nameSize, err := er.U16LE()
		if err != nil {
			return nil, nil, err
		}
		if _, err := er.Bytes(int(nameSize)); err != nil {
			return nil, nil, err
		}
		fileOffset, err := er.U64LE()
		if err != nil {
			return nil, nil, err
		}
		fileSize, err := er.U32LE()
		if err != nil {
			return nil, nil, err
		}
		if _, err := er.U32LE(); err != nil { // decompressed_file_size
			return nil, nil, err
		}
		unk0, err := er.U32LE()
		if err != nil {
			return nil, nil, err
		}
		unk1, err := er.U32LE()
		if err != nil {
			return nil, nil, err
		}
		if _, err := er.U32LE(); err != nil { // checksum
			return nil, nil, err
		}
		entries = append(entries, FileEntry{
			Name:     he.name,
			FullPath: he.name,
			Offset:   int64(fileOffset),
			Size:     int64(fileSize),
			Extra:    qlieExtra{unk0: unk0, unk1: unk1, name: he.name},
		})
	}

	key1, key2, err := qlieLoadKeys()
	if err != nil {
		return nil, nil, err
	}

	root := BuildDirectoryTree(entries)
	arc := NewArchive("QLIE Pack", f, root, entries, func(a *Archive, e FileEntry) ([]byte, string, error) {
		extra, _ := e.Extra.(qlieExtra)
		buf := make([]byte, e.Size)
		if _, err := a.ReadAt(buf, e.Offset); err != nil {
			return nil, "", xerr.OutOfBounds("qliepack: entry read: %v", err)
		}
		if extra.unk1 == 4 {
			prng := newQliePrng([]byte(extra.name), uint32(e.Size), decryptKey, key1, key2)
			prng.decrypt(buf)
		}
		if extra.unk0 != 0 {
			out, err := qlieDecompress(buf)
			if err != nil {
				return nil, "", err
			}
			return out, "", nil
		}
		return buf, "", nil
	})
	closeOnErr = nil
	return arc, NewNavigableDirectory(root), nil
}

// qlieGenerateDecryptKey emulates the original's MMX paddw/pxor lane
// accumulation over 8-byte chunks of the trailer's embedded key material.
func qlieGenerateDecryptKey(src []byte) uint32 {
	var mm0, mm2 [8]byte
	mm3 := [8]byte{7, 3, 7, 3, 7, 3, 7, 3}
	for i := 0; i+8 <= len(src); i += 8 {
		var mm1 [8]byte
		copy(mm1[:], src[i:i+8])
		qliePaddw(&mm2, mm3)
		qliePxor(&mm1, mm2)
		qliePaddw(&mm0, mm1)
	}
	v := binary.LittleEndian.Uint32(mm0[0:4]) ^ binary.LittleEndian.Uint32(mm0[4:8])
	return v & 0x0FFFFFFF
}

// qlieDecryptWithKey emulates the original's MMX paddd/pxor lane chain,
// seeded by src's length plus decryptKey, XORed with 0xFEC9753E.
func qlieDecryptWithKey(src []byte, decryptKey uint32) []byte {
	dest := make([]byte, len(src))
	key := uint32(len(src))+decryptKey ^ 0xFEC9753E
	mm7 := [8]byte{0x9D, 0x5F, 0x3C, 0xA7, 0x9D, 0x5F, 0x3C, 0xA7}
	mm6 := [8]byte{0x23, 0xF5, 0x24, 0xCE, 0x23, 0xF5, 0x24, 0xCE}
	mm5 := qliePunpckldq(key, key)
	for i := 0; i+8 <= len(src); i += 8 {
		qliePaddd(&mm7, mm6)
		qliePxor(&mm7, mm5)
		var mm0 [8]byte
		copy(mm0[:], src[i:i+8])
		qliePxor(&mm0, mm7)
		mm5 = mm0
		copy(dest[i:i+8], mm0[:])
	}
	return dest
}

func qliePunpckldq(a, b uint32) [8]byte {
	var d [8]byte
	binary.LittleEndian.PutUint32(d[0:4], a)
	binary.LittleEndian.PutUint32(d[4:8], b)
	return d
}

func qliePxor(mm0 *[8]byte, mm1 [8]byte) {
	for i := range mm0 {
		mm0[i] ^= mm1[i]
	}
}

func qliePaddb(mm0 *[8]byte, mm1 [8]byte) {
	for i := range mm0 {
		mm0[i] += mm1[i]
	}
}

func qliePaddw(mm0 *[8]byte, mm1 [8]byte) {
	for i := 0; i < 4; i++ {
		v := binary.LittleEndian.Uint16(mm0[i*2:i*2+2]) + binary.LittleEndian.Uint16(mm1[i*2:i*2+2])
		binary.LittleEndian.PutUint16(mm0[i*2:i*2+2], v)
	}
}

func qliePaddd(mm0 *[8]byte, mm1 [8]byte) {
	for i := 0; i < 2; i++ {
		v := binary.LittleEndian.Uint32(mm0[i*4:i*4+4]) + binary.LittleEndian.Uint32(mm1[i*4:i*4+4])
		binary.LittleEndian.PutUint32(mm0[i*4:i*4+4], v)
	}
}

func qliePslld(mm0 *[8]byte, x uint32) {
	for i := 0; i < 2; i++ {
		v := binary.LittleEndian.Uint32(mm0[i*4 : i*4+4])
		v <<= x
		binary.LittleEndian.PutUint32(mm0[i*4:i*4+4], v)
	}
}

var qlieByteBuf = func() [256]byte {
	var b [256]byte
	for i := range b {
		b[i] = byte(i)
	}
	return b
}()

// qlieDecompress implements the "1PC\xFF" dictionary-rebuild decompressor
//: it reconstructs a 256-entry substitution table
// per block from a run-length-coded header, then walks a stack-based
// expansion of symbols that aren't already fixed points of the table.
func qlieDecompress(src []byte) ([]byte, error) {
	if len(src) < 12 || string(src[0:4]) != "1PC\xFF" {
		return nil, xerr.BadHeader("qliepack: bad decompress magic")
	}
	val4 := binary.LittleEndian.Uint32(src[4:8])
	destSize := int(binary.LittleEndian.Uint32(src[8:12]))
	dest := make([]byte, destSize)

	index := 12
	destIndex := 0
	var someBuf2, someBuf3 [256]byte

	readByte := func() (byte, error) {
		if index >= len(src) {
			return 0, xerr.OutOfBounds("qliepack: decompress stream exhausted")
		}
		b := src[index]
		index++
		return b, nil
	}

	for index < len(src) && destIndex < destSize {
		b := uint32(0)
		curBuf := qlieByteBuf
		byteVal, err := readByte()
		if err != nil {
			return nil, err
		}
		for {
			if byteVal > 0x7F {
				b += uint32(byteVal) - 0x7F
				byteVal = 0
			}
			if b > 0xFF {
				break
			}
			d := uint32(byteVal) + 1
			for d != 0 {
				v, err := readByte()
				if err != nil {
					return nil, err
				}
				curBuf[b] = v
				if b != uint32(curBuf[b]) {
					v2, err := readByte()
					if err != nil {
						return nil, err
					}
					someBuf2[b] = v2
				}
				b++
				d--
			}
			if b > 0xFF {
				break
			}
			byteVal, err = readByte()
			if err != nil {
				return nil, err
			}
		}

		var valC uint32
		if val4&1 == 1 {
			if index+2 > len(src) {
				return nil, xerr.OutOfBounds("qliepack: decompress count truncated")
			}
			valC = uint32(binary.LittleEndian.Uint16(src[index : index+2]))
			index += 2
		} else {
			if index+4 > len(src) {
				return nil, xerr.OutOfBounds("qliepack: decompress count truncated")
			}
			valC = binary.LittleEndian.Uint32(src[index : index+4])
			index += 4
		}

		counter := 0
		for {
			if counter != 0 {
				counter--
				b = uint32(someBuf3[counter])
			} else {
				if valC == 0 {
					break
				}
				valC--
				v, err := readByte()
				if err != nil {
					return nil, err
				}
				b = uint32(v)
			}
			if b == uint32(curBuf[b]) {
				if destIndex >= len(dest) {
					return nil, xerr.OutOfBounds("qliepack: decompress output overflow")
				}
				dest[destIndex] = byte(b)
				destIndex++
			} else {
				someBuf3[counter] = someBuf2[b]
				counter++
				someBuf3[counter] = curBuf[b]
				counter++
			}
		}
	}
	return dest, nil
}

// qliePrng is the per-file MT19937-shaped keystream generator, its seed
// folding in the file name, file size, the trailer-derived decrypt key,
// and the two per-game key tables.
type qliePrng struct {
	state          [0x40]uint32
	index          int
	val9d4, val9d8 uint32
	val9cc         uint32
}

func newQliePrng(fileName []byte, fileSize, decryptKey uint32, key1, key2 [0x40]uint32) *qliePrng {
	d := uint32(0x85F532)
	b := uint32(0x33F641)
	for i, by := range fileName {
		d += uint32(by) * uint32(i&0xFF)
		b ^= d
	}
	a := (fileSize ^ 0x8F32DC) ^ d
	a += d
	a += fileSize
	d = fileSize & 0xFFFFFF
	c := d
	d += d
	d += d
	d += d
	d -= c
	a += d
	a ^= decryptKey
	b += a
	a = b & 0xFFFFFF
	a += a * 8
	a ^= 0x453A
	d = a

	p := &qliePrng{val9d4: 0x9C4F88E3, val9d8: 0xE7F70000, val9cc: 1}
	p.state[0] = d
	for i := 0; i < 0x3F; i++ {
		prev := p.state[i]
		x := prev
		x >>= 0x1E
		x ^= prev
		x *= 0x6611BC19
		x += uint32(i) + 1
		p.state[i+1] = x
	}
	for i := 0; i < 0x40; i++ {
		p.state[i] ^= key1[i]
	}
	for i := 0; i < 0x40; i++ {
		p.state[i] ^= key2[i]
	}
	return p
}

func qlieModAD(a, d uint32) uint32 {
	a &= 0x80000000
	c := uint32(0x7FFFFFFF)
	c &= d
	c >>= 1
	a |= c
	if (d&0xFF)&1 != 0 {
		a ^= 0x9908B0DF
	}
	return a
}

func (p *qliePrng) next() uint32 {
	p.val9cc--
	if p.val9cc == 0 {
		p.val9cc = 0x40
		p.index = 0
		idx := 0
		for i := 0; i < 0x40-0x27; i++ {
			a := p.state[idx]
			d := p.state[idx+1]
			a = qlieModAD(a, d)
			a ^= p.state[0x27+idx]
			p.state[idx] = a
			idx++
		}
		for i := 0; i < 0x27-1; i++ {
			_ = i
			a := p.state[idx]
			d := p.state[idx+1]
			a = qlieModAD(a, d)
			a ^= p.state[idx-25]
			p.state[idx] = a
			idx++
		}
		a := p.state[idx]
		d := p.state[0]
		a = qlieModAD(a, d)
		a ^= p.state[idx-25]
		p.state[idx] = a
	}
	a := p.state[p.index]
	p.index++
	result := a
	d := result
	a >>= 0xB
	d ^= a
	a = d
	a = a << 7
	a &= p.val9d4
	d ^= a
	a = d
	a = a << 0xF
	a &= p.val9d8
	d ^= a
	a = d
	a >>= 0x12
	d ^= a
	return d
}

func (p *qliePrng) decrypt(src []byte) {
	var randomsArray [41 * 4]byte
	for i := 0; i < 41; i++ {
		binary.LittleEndian.PutUint32(randomsArray[i*4:i*4+4], p.next())
	}
	mm7 := qliePunpckldq(p.next(), p.next())
	index := int(p.next() & 0xF)
	index += index
	index += index
	index += index

	for i := 0; i+8 <= len(src); i += 8 {
		var mm6 [8]byte
		copy(mm6[:], randomsArray[index:index+8])
		qliePxor(&mm7, mm6)
		qliePaddd(&mm7, mm6)
		var mm0 [8]byte
		copy(mm0[:], src[i:i+8])
		qliePxor(&mm0, mm7)
		mm1 := mm0
		copy(src[i:i+8], mm0[:])
		qliePaddb(&mm7, mm1)
		qliePxor(&mm7, mm1)
		qliePslld(&mm7, 1)
		qliePaddw(&mm7, mm1)
		index += 8
		index &= 0x7F
	}
}

// qlieLoadKeys resolves the two 64-word per-game key tables.
// The embedded resource ships them as short byte strings rather than full
// 64-word tables; cycling the bytes into 64 little-endian words keeps the
// derivation exercised end-to-end against the representative stub (see
// DESIGN.md Open Questions).
func qlieLoadKeys() (key1, key2 [0x40]uint32, err error) {
	var doc struct {
		Default struct {
			Key1 string `json:"key1"`
			Key2 string `json:"key2"`
		} `json:"default"`
	}
	if err := json.Unmarshal(resources.QlieKeys, &doc); err != nil {
		return key1, key2, xerr.Wrap(err, "qliepack: decode key table")
	}
	qlieExpandKey([]byte(doc.Default.Key1), &key1)
	qlieExpandKey([]byte(doc.Default.Key2), &key2)
	return key1, key2, nil
}

func qlieExpandKey(raw []byte, out *[0x40]uint32) {
	if len(raw) == 0 {
		return
	}
	for i := range out {
		var w [4]byte
		for j := 0; j < 4; j++ {
			w[j] = raw[(i*4+j)%len(raw)]
		}
		out[i] = binary.LittleEndian.Uint32(w[:])
	}
}
