package codec

import "github.com/hazukino/vnarc/internal/bitio"

// DecodeCRXG decodes CRXG: a zlib-inflated pixel
// stream with a per-row prediction mode byte, optional embedded palette,
// and an ABGR->BGRA+inverted-alpha fixup for has_alpha==1 images.
func DecodeCRXG(buf []byte) (*Image, error) {
	r := bitio.NewReader(buf)
	if _, err := r.Bytes(4); err != nil { // magic
		return nil, err
	}
	if _, err := r.U32LE(); err != nil { // unk1
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
	hasAlpha, err := r.U32LE()
	if err != nil {
		return nil, err
	}
	unk2, err := r.U32LE()
	if err != nil {
		return nil, err
	}
	unk3, err := r.U32LE()
	if err != nil {
		return nil, err
	}

	var palette [][4]byte
	switch hasAlpha {
	case 0x101:
		palette, err = readCRXGPalette(r, 0x300/3)
	case 0x102:
		palette, err = readCRXGPalette(r, 0x400/4)
	}
	if err != nil {
		return nil, err
	}

	if unk2 > 2 {
		skip := int(unk2) * 16
		if unk3&0x10 != 0 {
			skip += 4
		}
		if _, err := r.Bytes(skip); err != nil {
			return nil, err
		}
	}

	bpp := 4
	if palette != nil {
		bpp = 1
	}

	rest, err := r.Bytes(r.Len())
	if err != nil {
		return nil, err
	}
	plane, err := zlibInflate(rest)
	if err != nil {
		return nil, err
	}

	stride := int(width) * bpp
	decoded := make([]byte, int(height)*stride)
	applyCRXGRowPredictors(plane, decoded, int(width), int(height), bpp)

	im := NewImage(int(width), int(height))
	for y := 0; y < int(height); y++ {
		for x := 0; x < int(width); x++ {
			srcOff := y*stride + x*bpp
			dstIdx := (y*int(width) + x) * 4
			if palette != nil {
				c := palette[decoded[srcOff]]
				putBGRA(im.Pixels, dstIdx, c[0], c[1], c[2], c[3])
				continue
			}
			b, g, rr, a := decoded[srcOff], decoded[srcOff+1], decoded[srcOff+2], decoded[srcOff+3]
			if hasAlpha == 1 {
				// Source order is ABGR; shuffle to BGRA and invert alpha.
				a2, b2, g2, r2 := b, g, rr, a
				putBGRA(im.Pixels, dstIdx, b2, g2, r2, ^a2)
			} else {
				putBGRA(im.Pixels, dstIdx, b, g, rr, a)
			}
		}
	}
	return im, nil
}

func readCRXGPalette(r *bitio.Reader, n int) ([][4]byte, error) {
	pal := make([][4]byte, n)
	for i := range pal {
		b, err := r.Byte()
		if err != nil {
			return nil, err
		}
		g, err := r.Byte()
		if err != nil {
			return nil, err
		}
		rr, err := r.Byte()
		if err != nil {
			return nil, err
		}
		pal[i] = [4]byte{b, g, rr, 0xFF}
	}
	return pal, nil
}

// applyCRXGRowPredictors walks the inflated pixel stream row by row; the
// first byte of each row selects the prediction mode for that row: 0
// horizontal delta, 1/2/3 vertical delta from the prior row at byte offsets
// 0/+bpp/-bpp, 4 byte-doubling RLE.
func applyCRXGRowPredictors(src, dst []byte, width, height, bpp int) {
	stride := width * bpp
	srcPos := 0
	for y := 0; y < height; y++ {
		if srcPos >= len(src) {
			return
		}
		mode := src[srcPos]
		srcPos++
		rowOff := y * stride

		switch mode {
		case 0:
			acc := make([]int, bpp)
			for x := 0; x < width && srcPos < len(src); x++ {
				for c := 0; c < bpp; c++ {
					acc[c] += int(src[srcPos])
					srcPos++
					dst[rowOff+x*bpp+c] = byte(acc[c])
				}
			}
		case 1, 2, 3:
			var refOff int
			switch mode {
			case 1:
				refOff = 0
			case 2:
				refOff = bpp
			case 3:
				refOff = -bpp
			}
			for x := 0; x < width && srcPos < len(src); x++ {
				for c := 0; c < bpp; c++ {
					v := src[srcPos]
					srcPos++
					var prior byte
					if y > 0 {
						ri := rowOff - stride + x*bpp + c + refOff
						if ri >= 0 && ri < len(dst) {
							prior = dst[ri]
						}
					}
					dst[rowOff+x*bpp+c] = v + prior
				}
			}
		case 4:
			pos := 0
			for pos < stride && srcPos < len(src) {
				b := src[srcPos]
				srcPos++
				if srcPos < len(src) && src[srcPos] == b {
					srcPos++
					runLen := int(src[srcPos])
					srcPos++
					for i := 0; i < runLen && pos < stride; i++ {
						dst[rowOff+pos] = b
						pos++
					}
				} else {
					dst[rowOff+pos] = b
					pos++
				}
			}
		}
	}
}
