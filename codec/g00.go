package codec

import (
	"github.com/hazukino/vnarc/internal/bitio"
	"github.com/hazukino/vnarc/internal/xerr"
)

// DecodeG00 decodes the G00 family: version 0 is a
// direct-color dictionary-LZSS plane, version 1 is palette-indexed, version
// 2 is a sprite sheet of rectangular BGRA chunk blits.
func DecodeG00(buf []byte) (ResourceType, error) {
	r := bitio.NewReader(buf)
	version, err := r.Byte()
	if err != nil {
		return ResourceType{}, err
	}
	width, err := r.U16LE()
	if err != nil {
		return ResourceType{}, err
	}
	height, err := r.U16LE()
	if err != nil {
		return ResourceType{}, err
	}

	switch version {
	case 0:
		im := NewImage(int(width), int(height))
		plane, err := g00LZSSDecode(r, int(width)*int(height)*4, 12, 4, 1)
		if err != nil {
			return ResourceType{}, err
		}
		copy(im.Pixels, plane)
		for i := 3; i < len(im.Pixels); i += 4 {
			im.Pixels[i] = 0xFF
		}
		return FromImage(im)

	case 1:
		palette := make([][4]byte, 256)
		for i := range palette {
			b, err := r.Bytes(4)
			if err != nil {
				return ResourceType{}, err
			}
			palette[i] = [4]byte{b[0], b[1], b[2], b[3]}
		}
		idxPlane, err := g00LZSSDecode(r, int(width)*int(height), 13, 4, 1)
		if err != nil {
			return ResourceType{}, err
		}
		im := NewImage(int(width), int(height))
		for i, idx := range idxPlane {
			c := palette[idx]
			putBGRA(im.Pixels, i*4, c[0], c[1], c[2], c[3])
		}
		return FromImage(im)

	case 2:
		return decodeG00SpriteSheet(r, int(width), int(height))

	default:
		return ResourceType{}, xerr.BadHeader("g00: unknown version %d", version)
	}
}

// g00LZSSDecode is G00's token-oriented dictionary LZSS: each control bit
// selects a literal byte or a (offsetBits, lengthBits) back-reference pair,
// length biased by minMatch.
func g00LZSSDecode(r *bitio.Reader, outSize, offsetBits, lengthBits, minMatch int) ([]byte, error) {
	const dictSize = 4096
	dict := make([]byte, dictSize)
	dictPos := 0

	lsb := bitio.NewLSBBitReader(r)
	out := make([]byte, 0, outSize)
	put := func(b byte) {
		out = append(out, b)
		dict[dictPos] = b
		dictPos = (dictPos + 1) % dictSize
	}

	for len(out) < outSize {
		bit, err := lsb.Bit()
		if err != nil {
			return nil, xerr.Wrap(err, "g00: control bit")
		}
		if bit == 1 {
			lit, err := lsb.Bits(8)
			if err != nil {
				return nil, xerr.Wrap(err, "g00: literal")
			}
			put(byte(lit))
			continue
		}
		offset, err := lsb.Bits(offsetBits)
		if err != nil {
			return nil, xerr.Wrap(err, "g00: offset")
		}
		length, err := lsb.Bits(lengthBits)
		if err != nil {
			return nil, xerr.Wrap(err, "g00: length")
		}
		length += minMatch
		for i := 0; i < length && len(out) < outSize; i++ {
			put(dict[(offset+i)%dictSize])
		}
	}
	return out, nil
}

func decodeG00SpriteSheet(r *bitio.Reader, width, height int) (ResourceType, error) {
	subimageCount, err := r.U32LE()
	if err != nil {
		return ResourceType{}, err
	}
	sheet := &SpriteSheet{}
	for i := uint32(0); i < subimageCount; i++ {
		sw, err := r.U16LE()
		if err != nil {
			return ResourceType{}, err
		}
		sh, err := r.U16LE()
		if err != nil {
			return ResourceType{}, err
		}
		chunkCount, err := r.U32LE()
		if err != nil {
			return ResourceType{}, err
		}
		im := NewImage(int(sw), int(sh))
		for c := uint32(0); c < chunkCount; c++ {
			cx, err := r.U16LE()
			if err != nil {
				return ResourceType{}, err
			}
			cy, err := r.U16LE()
			if err != nil {
				return ResourceType{}, err
			}
			cw, err := r.U16LE()
			if err != nil {
				return ResourceType{}, err
			}
			ch, err := r.U16LE()
			if err != nil {
				return ResourceType{}, err
			}
			pix, err := r.Bytes(int(cw) * int(ch) * 4)
			if err != nil {
				return ResourceType{}, err
			}
			blitBGRA(im, int(cx), int(cy), int(cw), int(ch), pix)
		}
		sheet.Images = append(sheet.Images, im)
	}
	return FromSpriteSheet(sheet)
}

func blitBGRA(dst *Image, left, top, w, h int, src []byte) {
	for y := 0; y < h; y++ {
		dy := top + y
		if dy < 0 || dy >= dst.Height {
			continue
		}
		for x := 0; x < w; x++ {
			dx := left + x
			if dx < 0 || dx >= dst.Width {
				continue
			}
			si := (y*w + x) * 4
			di := (dy*dst.Width + dx) * 4
			putBGRA(dst.Pixels, di, src[si], src[si+1], src[si+2], src[si+3])
		}
	}
}
