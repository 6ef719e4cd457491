package codec

import (
	"github.com/hazukino/vnarc/internal/bitio"
	"github.com/hazukino/vnarc/internal/xerr"
)

// DecodePGD decodes PGD: a control-byte dictionary
// coder followed by per-row delta predictors (horizontal, vertical,
// diagonal-average).
func DecodePGD(buf []byte) (*Image, error) {
	r := bitio.NewReader(buf)
	if _, err := r.Bytes(4); err != nil { // magic/opaque
		return nil, err
	}
	pixelDataOffset, err := r.U32LE()
	if err != nil {
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

	r.Seek(int(pixelDataOffset))
	rest, err := r.Bytes(r.Len())
	if err != nil {
		return nil, err
	}

	planeSize := int(width) * int(height) * 4
	plane, err := pgdDictionaryDecode(rest, planeSize)
	if err != nil {
		return nil, err
	}

	applyPGDRowPredictors(plane, int(width), int(height))

	im := NewImage(int(width), int(height))
	copy(im.Pixels, plane)
	return im, nil
}

// pgdDictionaryDecode is PGD's control-byte-driven coder: each control
// byte's low 2 bits select a literal run, a 3-bit-length back-reference, or
// a 4-bit-length back-reference.
func pgdDictionaryDecode(src []byte, outSize int) ([]byte, error) {
	out := make([]byte, 0, outSize)
	pos := 0
	readByte := func() (byte, error) {
		if pos >= len(src) {
			return 0, xerr.OutOfBounds("pgd: control byte past end")
		}
		b := src[pos]
		pos++
		return b, nil
	}

	for len(out) < outSize {
		ctrl, err := readByte()
		if err != nil {
			return nil, err
		}
		switch ctrl & 3 {
		case 0:
			n := int(ctrl >> 2)
			for i := 0; i < n; i++ {
				b, err := readByte()
				if err != nil {
					return nil, err
				}
				out = append(out, b)
			}
		case 1:
			lenField := int(ctrl>>2) & 0x7
			offHi, err := readByte()
			if err != nil {
				return nil, err
			}
			offset := int(offHi) | (int(ctrl>>5) << 8)
			length := lenField + 3
			if err := pgdCopyBack(&out, offset, length); err != nil {
				return nil, err
			}
		default:
			lenField := int(ctrl>>2) & 0xF
			offHi, err := readByte()
			if err != nil {
				return nil, err
			}
			offLo, err := readByte()
			if err != nil {
				return nil, err
			}
			offset := int(offHi) | int(offLo)<<8
			length := lenField + 3
			if err := pgdCopyBack(&out, offset, length); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func pgdCopyBack(out *[]byte, offset, length int) error {
	start := len(*out) - offset
	if start < 0 {
		return xerr.CorruptPayload("pgd: back-reference before start of output")
	}
	for i := 0; i < length; i++ {
		*out = append(*out, (*out)[start+i])
	}
	return nil
}

// applyPGDRowPredictors undoes the per-row delta predictor selected by the
// first byte of each row: 0 horizontal-only, 1 vertical-from-prior-line, 2
// diagonal average `(above+left)/2 - cur`.
func applyPGDRowPredictors(plane []byte, width, height int) {
	stride := width * 4
	for y := 0; y < height; y++ {
		rowOff := y * stride
		if rowOff >= len(plane) {
			return
		}
		mode := plane[rowOff] & 3
		for x := 0; x < width; x++ {
			for c := 0; c < 4; c++ {
				idx := rowOff + x*4 + c
				if idx >= len(plane) {
					return
				}
				switch mode {
				case 0:
					if x > 0 {
						plane[idx] += plane[idx-4]
					}
				case 1:
					if y > 0 {
						plane[idx] += plane[idx-stride]
					}
				case 2:
					var above, left int
					if y > 0 {
						above = int(plane[idx-stride])
					}
					if x > 0 {
						left = int(plane[idx-4])
					}
					plane[idx] += byte((above + left) / 2)
				}
			}
		}
	}
}
