package codec

import (
	"github.com/hazukino/vnarc/internal/bitio"
	"github.com/hazukino/vnarc/internal/lzss"
	"github.com/hazukino/vnarc/internal/xcrypto"
	"github.com/hazukino/vnarc/internal/xerr"
)

// DecodeGYU decodes the GYU codec: an MT19937-shuffled
// data region in one of three bitstream encodings, plus an independent
// LZSS-4096 alpha plane.
func DecodeGYU(buf []byte, seed uint32) (*Image, error) {
	r := bitio.NewReader(buf)
	width, err := r.U32LE()
	if err != nil {
		return nil, err
	}
	height, err := r.U32LE()
	if err != nil {
		return nil, err
	}
	version, err := r.U32LE()
	if err != nil {
		return nil, err
	}
	bpp, err := r.U32LE()
	if err != nil {
		return nil, err
	}
	mtSeed, err := r.U32LE()
	if err != nil {
		return nil, err
	}
	alphaSize, err := r.U32LE()
	if err != nil {
		return nil, err
	}
	if _, err := r.Bytes(12); err != nil { // pad to 36-byte header
		return nil, err
	}

	effectiveSeed := mtSeed
	if effectiveSeed == 0 {
		effectiveSeed = seed
	}

	var palette [][4]byte
	if bpp == 8 {
		palette = make([][4]byte, 256)
		for i := range palette {
			b, err := r.Bytes(4)
			if err != nil {
				return nil, err
			}
			palette[i] = [4]byte{b[0], b[1], b[2], b[3]}
		}
	}

	dataLen := r.Len()
	if int(alphaSize) > 0 && int(alphaSize) < dataLen {
		dataLen -= int(alphaSize)
	}
	data, err := r.Bytes(dataLen)
	if err != nil {
		return nil, err
	}
	var alphaRaw []byte
	if alphaSize > 0 {
		alphaRaw, err = r.Bytes(int(alphaSize))
		if err != nil {
			return nil, err
		}
	}

	shuffled := append([]byte(nil), data...)
	gyuShuffle(shuffled, effectiveSeed)

	channelBytes := 1
	if palette == nil {
		channelBytes = 3
	}
	planeSize := int(width) * int(height) * channelBytes

	var plane []byte
	switch version & 0xFFFF0000 {
	case 0x08000000:
		plane, err = gyuCustomLZDecode(shuffled, planeSize)
	case 0x00020000, 0x00040000:
		plane, err = gyuLZSS4096(shuffled, planeSize)
	case 0x00010000:
		plane = shuffled
		if len(plane) > planeSize {
			plane = plane[:planeSize]
		}
	default:
		return nil, xerr.Unimplemented("gyu: unknown version flag 0x%08X", version)
	}
	if err != nil {
		return nil, err
	}

	var alpha []byte
	if len(alphaRaw) > 0 {
		alpha, err = gyuLZSS4096(alphaRaw, int(width)*int(height))
		if err != nil {
			return nil, err
		}
	}

	im := NewImage(int(width), int(height))
	for i := 0; i < int(width)*int(height); i++ {
		var b, g, rr, a byte
		a = 0xFF
		if palette != nil {
			if i < len(plane) {
				c := palette[plane[i]]
				b, g, rr, a = c[0], c[1], c[2], c[3]
			}
		} else {
			o := i * 3
			if o+2 < len(plane) {
				b, g, rr = plane[o], plane[o+1], plane[o+2]
			}
		}
		if len(alpha) > i {
			a = alpha[i]
		}
		putBGRA(im.Pixels, i*4, b, g, rr, a)
	}
	return im, nil
}

// gyuShuffle undoes GYU's data-region permutation: 10 pairs of
// `mt_u32() % len` positions are swapped.
func gyuShuffle(data []byte, seed uint32) {
	if len(data) == 0 {
		return
	}
	mt := xcrypto.NewMT19937GYUSeed(seed)
	for i := 0; i < 10; i++ {
		a := int(mt.Next()) % len(data)
		b := int(mt.Next()) % len(data)
		if a < 0 {
			a += len(data)
		}
		if b < 0 {
			b += len(data)
		}
		data[a], data[b] = data[b], data[a]
	}
}

// gyuLZSS4096 is the same 4096-byte dictionary coder Silky uses.
func gyuLZSS4096(src []byte, outSize int) ([]byte, error) {
	r := bitio.NewReader(src)
	lsb := bitio.NewLSBBitReader(r)
	return lzss.Decode(lzss.Params{
		DictSize: 4096, FillByte: 0, MinMatch: 3, LiteralFlagBit: 1,
	}, lzss.Of(lsb), lzss.Of(lsb), outSize)
}

// gyuCustomLZDecode implements GYU's 0x08000000 bitstream variant: a
// custom bit-oriented LZ with a literal mode and a long-match mode whose
// matches are emitted straight from the growing output (dictionary-free,
// unlike the LZSS-4096 path).
func gyuCustomLZDecode(src []byte, outSize int) ([]byte, error) {
	r := bitio.NewReader(src)
	lsb := bitio.NewLSBBitReader(r)
	out := make([]byte, 0, outSize)
	for len(out) < outSize {
		bit, err := lsb.Bit()
		if err != nil {
			return nil, xerr.Wrap(err, "gyu: custom lz control bit")
		}
		if bit == 1 {
			lit, err := lsb.Bits(8)
			if err != nil {
				return nil, err
			}
			out = append(out, byte(lit))
			continue
		}
		offset, err := lsb.Bits(13)
		if err != nil {
			return nil, err
		}
		length, err := lsb.Bits(5)
		if err != nil {
			return nil, err
		}
		length += 3
		start := len(out) - offset
		if start < 0 {
			return nil, xerr.CorruptPayload("gyu: custom lz back-reference before start")
		}
		for i := 0; i < length && len(out) < outSize; i++ {
			out = append(out, out[start+i])
		}
	}
	return out, nil
}
