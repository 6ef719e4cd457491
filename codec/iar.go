package codec

import (
	"github.com/hazukino/vnarc/internal/bitio"
	"github.com/hazukino/vnarc/internal/xerr"
)

// DecodeIAR decodes an IAR pixel payload: the container layer already
// parsed the 72-byte per-entry header, so the bytes handed here are that
// header followed by the pixel payload, keyed by version.
func DecodeIAR(buf []byte) (*Image, error) {
	r := bitio.NewReader(buf)
	version, err := r.U32LE()
	if err != nil {
		return nil, err
	}
	if _, err := r.Bytes(8); err != nil { // unk + decompressed size
		return nil, err
	}
	if _, err := r.Bytes(8); err != nil { // unk1 + size
		return nil, err
	}
	if _, err := r.Bytes(12); err != nil { // 3 reserved u32s
		return nil, err
	}
	width, err := r.U32LE()
	if err != nil {
		return nil, err
	}
	height, err := r.U32LE()
	if err != nil {
		return nil, err
	}

	r.Seek(72) // pixel payload follows the full 72-byte record header
	payload, err := r.Bytes(r.Len())
	if err != nil {
		return nil, err
	}
	if version>>16 == 1 {
		payload, err = iarCustomLZDecode(payload, int(width)*int(height)*4)
		if err != nil {
			return nil, err
		}
	}

	im := NewImage(int(width), int(height))
	switch version & 0xFFFF {
	case 0x3C:
		copy(im.Pixels, payload)
	case 0x1C:
		stride := int(width) * 3
		padded := stride + (4-stride%4)%4
		for y := 0; y < int(height); y++ {
			srcOff := y * padded
			for x := 0; x < int(width); x++ {
				so := srcOff + x*3
				if so+2 >= len(payload) {
					continue
				}
				idx := (y*int(width) + x) * 4
				putBGRA(im.Pixels, idx, payload[so], payload[so+1], payload[so+2], 0xFF)
			}
		}
	case 0x2:
		for i := 0; i < int(width)*int(height) && i < len(payload); i++ {
			v := payload[i]
			putBGRA(im.Pixels, i*4, v, v, v, 0xFF)
		}
	default:
		return nil, xerr.Unimplemented("iar: unsupported pixel version 0x%X", version&0xFFFF)
	}
	return im, nil
}

// iarCustomLZDecode is IAR's bit-stream LZ with literal/back-reference
// modes and three length-class ladders. A 2-bit class selects the
// (offset bits, length bits, minimum match) triple: (8,3,2), (12,4,3) or
// (16,6,3).
func iarCustomLZDecode(src []byte, outSize int) ([]byte, error) {
	r := bitio.NewReader(src)
	lsb := bitio.NewLSBBitReader(r)
	out := make([]byte, 0, outSize)
	for len(out) < outSize {
		bit, err := lsb.Bit()
		if err != nil {
			return nil, xerr.Wrap(err, "iar: control bit")
		}
		if bit == 1 {
			lit, err := lsb.Bits(8)
			if err != nil {
				return nil, err
			}
			out = append(out, byte(lit))
			continue
		}
		class, err := lsb.Bits(2)
		if err != nil {
			return nil, err
		}
		var offsetBits, lengthBits, minMatch int
		switch class {
		case 0:
			offsetBits, lengthBits, minMatch = 8, 3, 2
		case 1:
			offsetBits, lengthBits, minMatch = 12, 4, 3
		default:
			offsetBits, lengthBits, minMatch = 16, 6, 3
		}
		offset, err := lsb.Bits(offsetBits)
		if err != nil {
			return nil, err
		}
		length, err := lsb.Bits(lengthBits)
		if err != nil {
			return nil, err
		}
		length += minMatch
		start := len(out) - offset
		if start < 0 {
			return nil, xerr.CorruptPayload("iar: back-reference before start of output")
		}
		for i := 0; i < length && len(out) < outSize; i++ {
			out = append(out, out[start+i])
		}
	}
	return out, nil
}
