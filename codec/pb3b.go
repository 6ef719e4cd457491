package codec

import (
	"github.com/hazukino/vnarc/internal/bitio"
	"github.com/hazukino/vnarc/internal/xerr"
	"github.com/hazukino/vnarc/internal/lzss"
)

// DecodePB3B decodes PB3B: a scrambled 0x2C-byte
// preamble followed by one of four channel layouts selected by version.
func DecodePB3B(buf []byte) (*Image, error) {
	if len(buf) < 0x2C {
		return nil, xerr.OutOfBounds("pb3b: buffer shorter than preamble")
	}
	descramblePB3BPreamble(buf)

	r := bitio.NewReader(buf)
	if _, err := r.Bytes(4); err != nil { // magic
		return nil, err
	}
	version, err := r.Byte()
	if err != nil {
		return nil, err
	}
	width, err := r.U16LE()
	if err != nil {
		return nil, err
	}
	height, err := r.U16LE()
	if err != nil {
		return nil, err
	}

	switch version {
	case 1:
		return decodePB3BVersion1(r, int(width), int(height))
	case 3:
		im, err := DecodeJBP1(buf[0x2C:])
		if err != nil {
			return nil, err
		}
		return im, nil
	case 5:
		return decodePB3BVersion5(r, int(width), int(height))
	case 6:
		return decodePB3BVersion6(r, int(width), int(height))
	default:
		return nil, xerr.Unimplemented("pb3b: unsupported version %d", version)
	}
}

// descramblePB3BPreamble undoes the XOR/subtract scramble over buf[8:0x34],
// keyed by a 2-byte pair key (buf[n-3:n-1]) and a 0x2C-byte tail key
// (buf[n-0x2F:n-3]), both taken from the end of the buffer:
// `buf[8..0x34] ^= pair_key[i%2]; buf[...] -= tail_key[i]`.
func descramblePB3BPreamble(buf []byte) {
	n := len(buf)
	pairKey := buf[n-3 : n-1]
	tailKey := buf[n-0x2F : n-3]
	for i := 8; i < 0x34 && i < n; i++ {
		buf[i] ^= pairKey[(i-8)%2]
		ti := (i - 8) % len(tailKey)
		buf[i] -= tailKey[ti]
	}
}

func decodePB3BVersion1(r *bitio.Reader, width, height int) (*Image, error) {
	im := NewImage(width, height)
	planeSize := width * height
	var planes [4][]byte
	for ch := 0; ch < 4; ch++ {
		lsb := bitio.NewLSBBitReader(r)
		plane, err := lzss.Decode(lzss.Params{
			DictSize: 2048, FillByte: 0, MinMatch: 3, LiteralFlagBit: 0,
		}, lzss.Of(lsb), lzss.Of(lsb), planeSize)
		if err != nil {
			return nil, xerr.Wrap(err, "pb3b v1: channel plane")
		}
		planes[ch] = plane
	}
	for i := 0; i < planeSize; i++ {
		putBGRA(im.Pixels, i*4, planes[0][i], planes[1][i], planes[2][i], planes[3][i])
	}
	return im, nil
}

func decodePB3BVersion5(r *bitio.Reader, width, height int) (*Image, error) {
	im := NewImage(width, height)
	planeSize := width * height
	var planes [4][]byte
	for ch := 0; ch < 4; ch++ {
		lsb := bitio.NewLSBBitReader(r)
		plane, err := lzss.Decode(lzss.Params{
			DictSize: 4096, FillByte: 0, MinMatch: 3, LiteralFlagBit: 1,
		}, lzss.Of(lsb), lzss.Of(lsb), planeSize)
		if err != nil {
			return nil, xerr.Wrap(err, "pb3b v5: channel plane")
		}
		deltaAccumulateRows(plane, width, height)
		planes[ch] = plane
	}
	for i := 0; i < planeSize; i++ {
		putBGRA(im.Pixels, i*4, planes[0][i], planes[1][i], planes[2][i], planes[3][i])
	}
	return im, nil
}

func decodePB3BVersion6(r *bitio.Reader, width, height int) (*Image, error) {
	im := NewImage(width, height)
	planeSize := width * height
	lsb := bitio.NewLSBBitReader(r)
	stage1, err := lzss.Decode(lzss.Params{
		DictSize: 4096, FillByte: 0, MinMatch: 3, LiteralFlagBit: 1,
	}, lzss.Of(lsb), lzss.Of(lsb), planeSize*4)
	if err != nil {
		return nil, xerr.Wrap(err, "pb3b v6: first pass")
	}

	inner := bitio.NewReader(stage1)
	innerLSB := bitio.NewLSBBitReader(inner)
	plane, err := lzss.Decode(lzss.Params{
		DictSize: 4096, FillByte: 0, MinMatch: 3, LiteralFlagBit: 1,
	}, lzss.Of(innerLSB), lzss.Of(innerLSB), planeSize*4)
	if err != nil {
		return nil, xerr.Wrap(err, "pb3b v6: second pass")
	}

	const tile = 8
	for ty := 0; ty < height; ty += tile {
		for tx := 0; tx < width; tx += tile {
			srcOff := ((ty/tile)*((width+tile-1)/tile) + tx/tile) * 4
			if srcOff+4 > len(plane) {
				continue
			}
			b, g, rr, a := plane[srcOff], plane[srcOff+1], plane[srcOff+2], plane[srcOff+3]
			for y := ty; y < ty+tile && y < height; y++ {
				for x := tx; x < tx+tile && x < width; x++ {
					putBGRA(im.Pixels, (y*width+x)*4, b, g, rr, a)
				}
			}
		}
	}
	return im, nil
}

func deltaAccumulateRows(plane []byte, width, height int) {
	for y := 0; y < height; y++ {
		rowOff := y * width
		acc := 0
		for x := 0; x < width; x++ {
			acc += int(plane[rowOff+x])
			plane[rowOff+x] = byte(acc)
		}
	}
}
