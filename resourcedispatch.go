package vnarc

import (
	"bytes"

	"github.com/hazukino/vnarc/codec"
	"github.com/hazukino/vnarc/internal/xerr"
)

// ResourceTag identifies one of the pixel codec formats a raw extracted
// byte block can be classified as.
type ResourceTag string

const (
	ResourceNotRecognized ResourceTag = ""
	ResourceTLG           ResourceTag = "TLG"
	ResourcePB3B          ResourceTag = "PB3B"
	ResourceAKB           ResourceTag = "AKB"
	ResourceCompressedBG  ResourceTag = "COMPRESSEDBG"
	ResourceCRXG          ResourceTag = "CRXG"
	ResourceDPNG          ResourceTag = "DPNG"
	ResourcePNA           ResourceTag = "PNA"
	ResourceYCG           ResourceTag = "YCG"
	ResourceG00           ResourceTag = "G00"
	ResourceGYU           ResourceTag = "GYU"
	ResourcePGD           ResourceTag = "PGD"
	ResourceIAR           ResourceTag = "IAR"
	ResourceJBP1          ResourceTag = "JBP1"
)

type resourceMagic struct {
	tag    ResourceTag
	prefix []byte
}

var resourceMagics = []resourceMagic{
	{ResourceTLG, []byte("TLG0.0\x00sds\x1a")},
	{ResourceTLG, []byte("TLG5.0\x00raw\x1a")},
	{ResourceTLG, []byte("TLG6.0\x00raw\x1a")},
	{ResourcePB3B, []byte("PB3B")},
	{ResourceAKB, []byte("AKB ")},
	{ResourceAKB, []byte("AKB+")},
	{ResourceCompressedBG, []byte("CompressedBG___")},
	{ResourceCRXG, []byte("CRXG")},
	{ResourceDPNG, []byte("DPNG")},
	{ResourcePNA, []byte("PNAP")},
	{ResourcePNA, []byte("WPAP")},
	{ResourceYCG, []byte("YCG ")},
	{ResourceJBP1, []byte("JBP1")},
}

// ClassifyResource peeks the first bytes of a raw extracted block and
// returns the pixel codec tag it matches, or ResourceNotRecognized. Formats
// with no distinguishing magic (G00, GYU, PGD) must be selected explicitly
// by the caller via the entry's type hint or container-level knowledge
// rather than sniffed.
func ClassifyResource(head []byte) ResourceTag {
	for _, m := range resourceMagics {
		if len(head) >= len(m.prefix) && bytes.Equal(head[:len(m.prefix)], m.prefix) {
			return m.tag
		}
	}
	return ResourceNotRecognized
}

// resourceHints maps a FileContents.TypeHint value -- set by a container
// parser that already knows which pixel codec its payload needs -- to the
// ResourceTag to decode it with. IAR is the only format that needs this:
// its pixel payload carries no magic of its own.
var resourceHints = map[string]ResourceTag{
	"iar": ResourceIAR,
}

// ClassifyResourceWithHint resolves a ResourceTag from a container-supplied
// type hint first, falling back to magic-byte sniffing via ClassifyResource
// when hint is empty or unrecognized.
func ClassifyResourceWithHint(hint string, head []byte) ResourceTag {
	if tag, ok := resourceHints[hint]; ok {
		return tag
	}
	return ClassifyResource(head)
}

// DecodeResource dispatches buf to the pixel codec named by tag, wrapping
// codec.ResourceType in the root package's alias.
func DecodeResource(tag ResourceTag, buf []byte) (ResourceType, error) {
	switch tag {
	case ResourceTLG:
		im, err := codec.DecodeTLG(buf)
		return imageResult(im, err)
	case ResourcePB3B:
		im, err := codec.DecodePB3B(buf)
		return imageResult(im, err)
	case ResourceAKB:
		im, err := codec.DecodeAKB(buf)
		return imageResult(im, err)
	case ResourceCompressedBG:
		im, err := codec.DecodeCompressedBG(buf)
		return imageResult(im, err)
	case ResourceCRXG:
		im, err := codec.DecodeCRXG(buf)
		return imageResult(im, err)
	case ResourceDPNG:
		im, err := codec.DecodeDPNG(buf)
		return imageResult(im, err)
	case ResourcePNA:
		sheet, err := codec.DecodePNA(buf)
		if err != nil {
			return ResourceType{}, err
		}
		return codec.FromSpriteSheet(sheet)
	case ResourceYCG:
		im, err := codec.DecodeYCG(buf)
		return imageResult(im, err)
	case ResourceJBP1:
		im, err := codec.DecodeJBP1(buf)
		return imageResult(im, err)
	case ResourceG00:
		return codec.DecodeG00(buf)
	case ResourceGYU:
		// No per-game fallback seed is available at this layer; 0 defers
		// entirely to the header's own embedded mtSeed field.
		im, err := codec.DecodeGYU(buf, 0)
		return imageResult(im, err)
	case ResourcePGD:
		im, err := codec.DecodePGD(buf)
		return imageResult(im, err)
	case ResourceIAR:
		im, err := codec.DecodeIAR(buf)
		return imageResult(im, err)
	default:
		return ResourceType{}, xerr.Unimplemented("resourcedispatch: no decoder wired for tag %q", tag)
	}
}

func imageResult(im *codec.Image, err error) (ResourceType, error) {
	if err != nil {
		return ResourceType{}, err
	}
	return codec.FromImage(im)
}
