package codec

import (
	"github.com/hazukino/vnarc/internal/bitio"
	"github.com/hazukino/vnarc/internal/xerr"
)

// DecodeAKB decodes the AKB bespoke format: a 4096-byte
// dictionary-LZSS payload followed by a row/column delta-predictive
// transform over a rectangular sub-region, with optional alpha override.
func DecodeAKB(buf []byte) (*Image, error) {
	r := bitio.NewReader(buf)

	magic, err := r.Bytes(4)
	if err != nil {
		return nil, err
	}
	var headerSize int
	switch string(magic) {
	case "AKB ":
		headerSize = 32
	case "AKB+":
		headerSize = 64
	default:
		return nil, xerr.BadHeader("akb: bad magic %q", magic)
	}

	width, err := r.U16LE()
	if err != nil {
		return nil, err
	}
	height, err := r.U16LE()
	if err != nil {
		return nil, err
	}
	compression, err := r.U32LE()
	if err != nil {
		return nil, err
	}
	fill, err := r.U32LE()
	if err != nil {
		return nil, err
	}
	left, err := r.U32LE()
	if err != nil {
		return nil, err
	}
	top, err := r.U32LE()
	if err != nil {
		return nil, err
	}
	right, err := r.U32LE()
	if err != nil {
		return nil, err
	}
	bottom, err := r.U32LE()
	if err != nil {
		return nil, err
	}
	r.Seek(headerSize)

	planeSize := int(width) * int(height)
	plane, err := akbLZSSDecode(r, planeSize, compression&0x40000000 != 0, int(width))
	if err != nil {
		return nil, err
	}

	im := NewImage(int(width), int(height))
	// Grayscale plane expanded to BGRA with alpha 0xFF, then vertically
	// flipped (the source stores bottom-up rows).
	for y := 0; y < int(height); y++ {
		srcY := int(height) - 1 - y
		for x := 0; x < int(width); x++ {
			v := plane[srcY*int(width)+x]
			idx := (y*int(width) + x) * 4
			putBGRA(im.Pixels, idx, v, v, v, 0xFF)
		}
	}

	applyAKBDeltaTransform(im, int(left), int(top), int(right), int(bottom))

	if compression&0x40000000 != 0 {
		alpha := byte(compression)
		for i := 3; i < len(im.Pixels); i += 4 {
			im.Pixels[i] = alpha
		}
	}
	if compression&0x80000000 != 0 {
		fb := byte(fill)
		fg := byte(fill >> 8)
		fr := byte(fill >> 16)
		fa := byte(fill >> 24)
		for y := 0; y < int(height); y++ {
			for x := 0; x < int(width); x++ {
				if x >= left && x < right && y >= top && y < bottom {
					continue
				}
				idx := (y*int(width) + x) * 4
				putBGRA(im.Pixels, idx, fb, fg, fr, fa)
			}
		}
	}

	return im, nil
}

// akbLZSSDecode implements the AKB LZ77 decoder: a 4096-byte circular
// dictionary zero-initialized with the write cursor starting at 4078, and
// control bits taken LSB-first from bytes refilled one at a time. Both
// compression variants decode identically: no column-skip padding is
// applied when variant2 is set, here or in the caller.
func akbLZSSDecode(r *bitio.Reader, outSize int, variant2 bool, stride int) ([]byte, error) {
	const dictSize = 4096
	dict := make([]byte, dictSize)
	dictPos := 4078

	out := make([]byte, 0, outSize)
	var window uint16
	var windowBits uint

	getBit := func() (int, error) {
		if windowBits == 0 {
			b, err := r.Byte()
			if err != nil {
				return 0, err
			}
			window = uint16(b)
			windowBits = 8
		}
		bit := int(window & 1)
		window >>= 1
		windowBits--
		return bit, nil
	}
	getBits := func(n int) (int, error) {
		var v, shift int
		for shift < n {
			b, err := getBit()
			if err != nil {
				return 0, err
			}
			v |= b << shift
			shift++
		}
		return v, nil
	}

	put := func(b byte) {
		out = append(out, b)
		dict[dictPos] = b
		dictPos = (dictPos + 1) % dictSize
	}

	col := 0
	for len(out) < outSize {
		bit, err := getBit()
		if err != nil {
			return nil, xerr.Wrap(err, "akb: control bit")
		}
		if bit != 0 {
			lit, err := getBits(8)
			if err != nil {
				return nil, xerr.Wrap(err, "akb: literal")
			}
			put(byte(lit))
		} else {
			offset, err := getBits(12)
			if err != nil {
				return nil, xerr.Wrap(err, "akb: offset")
			}
			length, err := getBits(4)
			if err != nil {
				return nil, xerr.Wrap(err, "akb: length")
			}
			length += 3
			for i := 0; i < length && len(out) < outSize; i++ {
				put(dict[(offset+i)%dictSize])
			}
		}
		if variant2 {
			col++
			if col == stride {
				col = 0
			}
		}
	}
	return out, nil
}

// applyAKBDeltaTransform undoes the cumulative-sum predictor over
// [left,right)x[top,bottom): row `top` is a running sum across x; every
// later row adds the pixel directly above to its own running sum across x
// (an integral-image reconstruction, so each pixel's predictor is
// left-neighbor + above-neighbor - above-left-neighbor to avoid
// double-counting the corner already folded into both).
func applyAKBDeltaTransform(im *Image, left, top, right, bottom int) {
	stride := im.Width * 4
	for y := top; y < bottom && y < im.Height; y++ {
		rowOff := y * stride
		for x := left; x < right && x < im.Width; x++ {
			idx := rowOff + x*4
			for c := 0; c < 4; c++ {
				pred := 0
				if x > left {
					pred += int(im.Pixels[idx-4+c])
				}
				if y > top {
					pred += int(im.Pixels[idx-stride+c])
				}
				if x > left && y > top {
					pred -= int(im.Pixels[idx-stride-4+c])
				}
				im.Pixels[idx+c] = byte(int(im.Pixels[idx+c]) + pred)
			}
		}
	}
}
