package codec

import (
	"bytes"
	"image"
	"image/png"

	"golang.org/x/image/webp"

	"github.com/hazukino/vnarc/internal/bitio"
	"github.com/hazukino/vnarc/internal/xerr"
)

// DecodePNA decodes PNA, a sprite sheet of embedded PNG ("PNAP") or WebP
// ("WPAP") entries. Unlike DPNG there is no compositing: every non-empty
// entry becomes its own Image in the sheet. golang.org/x/image/webp is the
// WebP decoder, the same real ecosystem dependency 1siamBot-rts-engine
// pulls in for its in-game texture decode, used here rather than
// hand-rolling one.
func DecodePNA(buf []byte) (*SpriteSheet, error) {
	r := bitio.NewReader(buf)
	kind, err := r.Bytes(4)
	if err != nil {
		return nil, err
	}
	isWebP := string(kind) == "WPAP"
	if !isWebP && string(kind) != "PNAP" {
		return nil, xerr.BadHeader("pna: bad magic %q", kind)
	}

	entryCount, err := r.U32LE()
	if err != nil {
		return nil, err
	}

	sheet := &SpriteSheet{}
	for i := uint32(0); i < entryCount; i++ {
		if _, err := r.U32LE(); err != nil { // type
			return nil, err
		}
		if _, err := r.U32LE(); err != nil { // id
			return nil, err
		}
		if _, err := r.U32LE(); err != nil { // left
			return nil, err
		}
		if _, err := r.U32LE(); err != nil { // top
			return nil, err
		}
		if _, err := r.U32LE(); err != nil { // w
			return nil, err
		}
		if _, err := r.U32LE(); err != nil { // h
			return nil, err
		}
		if _, err := r.Bytes(12); err != nil { // 3 reserved u32s
			return nil, err
		}
		size, err := r.U32LE()
		if err != nil {
			return nil, err
		}
		if size == 0 {
			continue
		}
		raw, err := r.Bytes(int(size))
		if err != nil {
			return nil, err
		}

		var decoded image.Image
		if isWebP {
			decoded, err = webp.Decode(bytes.NewReader(raw))
		} else {
			decoded, err = png.Decode(bytes.NewReader(raw))
		}
		if err != nil {
			return nil, err
		}

		b := decoded.Bounds()
		im := NewImage(b.Dx(), b.Dy())
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				cr, cg, cb, ca := decoded.At(b.Min.X+x, b.Min.Y+y).RGBA()
				idx := (y*im.Width + x) * 4
				im.Pixels[idx+0] = byte(cr >> 8)
				im.Pixels[idx+1] = byte(cg >> 8)
				im.Pixels[idx+2] = byte(cb >> 8)
				im.Pixels[idx+3] = byte(ca >> 8)
			}
		}
		sheet.Images = append(sheet.Images, im)
	}

	if len(sheet.Images) == 0 {
		return nil, xerr.CorruptPayload("pna: sprite sheet has no non-empty entries")
	}
	return sheet, nil
}
