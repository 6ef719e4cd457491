package codec

import (
	"bytes"
	"image"
	"image/png"

	"github.com/hazukino/vnarc/internal/bitio"
)

// DecodeDPNG decodes DPNG, a sprite collage of embedded PNGs blitted onto a
// shared canvas, using image/png to decode each embedded frame.
func DecodeDPNG(buf []byte) (*Image, error) {
	r := bitio.NewReader(buf)
	if _, err := r.Bytes(4); err != nil { // magic
		return nil, err
	}
	if _, err := r.U32LE(); err != nil { // unk
		return nil, err
	}
	entryCount, err := r.U32LE()
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

	canvas := NewImage(int(width), int(height))

	for i := uint32(0); i < entryCount; i++ {
		left, err := r.U32LE()
		if err != nil {
			return nil, err
		}
		top, err := r.U32LE()
		if err != nil {
			return nil, err
		}
		subW, err := r.U32LE()
		if err != nil {
			return nil, err
		}
		subH, err := r.U32LE()
		if err != nil {
			return nil, err
		}
		dataSize, err := r.U32LE()
		if err != nil {
			return nil, err
		}
		if _, err := r.Bytes(12); err != nil { // 3 reserved u32s
			return nil, err
		}
		pngBytes, err := r.Bytes(int(dataSize))
		if err != nil {
			return nil, err
		}

		sub, err := png.Decode(bytes.NewReader(pngBytes))
		if err != nil {
			return nil, err
		}
		blitImageDraw(canvas, int(left), int(top), int(subW), int(subH), sub)
	}

	return canvas, nil
}

func blitImageDraw(dst *Image, left, top, w, h int, src image.Image) {
	b := src.Bounds()
	for y := 0; y < h && y < b.Dy(); y++ {
		dy := top + y
		if dy < 0 || dy >= dst.Height {
			continue
		}
		for x := 0; x < w && x < b.Dx(); x++ {
			dx := left + x
			if dx < 0 || dx >= dst.Width {
				continue
			}
			cr, cg, cb, ca := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
			di := (dy*dst.Width + dx) * 4
			dst.Pixels[di+0] = byte(cr >> 8)
			dst.Pixels[di+1] = byte(cg >> 8)
			dst.Pixels[di+2] = byte(cb >> 8)
			dst.Pixels[di+3] = byte(ca >> 8)
		}
	}
}
