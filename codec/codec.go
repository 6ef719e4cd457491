// Package codec turns bespoke visual-novel pixel formats into canonical
// RGBA rasters. Each decoder is a pure function of its input
// bytes plus whatever auxiliary tables its format carries; none of them
// depend on the container-parser types in the root package, so an entry's
// bytes can be decoded without reference to the archive it came from.
//
// Grounded on internal/sit's arsenic.go (per-method codec dispatch) and
// huffman.go (node-arena Huffman tree) for the general shape of one small
// file per codec, sharing bitio/xcrypto helpers from the internal leaf
// packages.
package codec

import "github.com/hazukino/vnarc/internal/xerr"

// Image is a canonical row-major RGBA raster: len(Pixels) == 4*Width*Height.
type Image struct {
	Width, Height int
	Pixels        []byte // RGBA, row-major, top-to-bottom
}

// NewImage allocates a zeroed Image whose pixel buffer already has the
// 4*width*height length the size invariant requires.
func NewImage(width, height int) *Image {
	return &Image{Width: width, Height: height, Pixels: make([]byte, 4*width*height)}
}

func (im *Image) validate() error {
	if len(im.Pixels) != 4*im.Width*im.Height {
		return xerr.InvalidImageResolution(len(im.Pixels), 4*im.Width*im.Height)
	}
	return nil
}

// SpriteSheet is a non-empty ordered sequence of independently-sized
// images, produced by G00 version 2 and PNA (DPNG composites onto a single
// Image instead).
type SpriteSheet struct {
	Images []*Image
}

func (s *SpriteSheet) validate() error {
	if len(s.Images) == 0 {
		return xerr.CorruptPayload("codec: sprite sheet has no images")
	}
	for _, im := range s.Images {
		if err := im.validate(); err != nil {
			return err
		}
	}
	return nil
}

// ResourceType is the sum type extraction ultimately hands back to a
// caller: an RGBA image, a sprite sheet, opaque text, or raw opaque bytes.
type ResourceType struct {
	Image  *Image
	Sheet  *SpriteSheet
	Text   string
	Opaque []byte
}

func FromImage(im *Image) (ResourceType, error) {
	if err := im.validate(); err != nil {
		return ResourceType{}, err
	}
	return ResourceType{Image: im}, nil
}

func FromSpriteSheet(s *SpriteSheet) (ResourceType, error) {
	if err := s.validate(); err != nil {
		return ResourceType{}, err
	}
	return ResourceType{Sheet: s}, nil
}

// putBGRA writes a BGRA-ordered pixel quad into an RGBA image buffer,
// swapping B and R -- every codec whose native pixel order is BGRA
// (AKB, CRXG, G00, GYU, JBP1, PGD, YCG) funnels its output through this.
func putBGRA(pix []byte, idx int, b, g, r, a byte) {
	pix[idx+0] = r
	pix[idx+1] = g
	pix[idx+2] = b
	pix[idx+3] = a
}
