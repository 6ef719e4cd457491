package codec

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/hazukino/vnarc/internal/bitio"
	"github.com/hazukino/vnarc/internal/xerr"
)

// DecodeYCG decodes the YCG container: a zlib-wrapped raw BGRA plane split
// across two chunks for version 1, inflated via klauspost/compress/zlib.
func DecodeYCG(buf []byte) (*Image, error) {
	r := bitio.NewReader(buf)
	width, err := r.U32LE()
	if err != nil {
		return nil, err
	}
	height, err := r.U32LE()
	if err != nil {
		return nil, err
	}

	r.Seek(16)
	version, err := r.U32LE()
	if err != nil {
		return nil, err
	}
	r.Seek(32)
	size, err := r.U32LE()
	if err != nil {
		return nil, err
	}
	compressedSize, err := r.U32LE()
	if err != nil {
		return nil, err
	}

	if version != 1 {
		return nil, xerr.Unimplemented("ycg: unsupported version %d", version)
	}

	r.Seek(0x38)
	firstChunk, err := r.Bytes(len(buf) - 0x38)
	if err != nil {
		return nil, err
	}
	first, err := zlibInflate(firstChunk)
	if err != nil {
		return nil, err
	}
	if len(first) > int(size) {
		first = first[:size]
	}

	r.Seek(0x38 + int(compressedSize))
	secondChunk, err := r.Bytes(len(buf) - (0x38 + int(compressedSize)))
	if err != nil {
		return nil, err
	}
	second, err := zlibInflate(secondChunk)
	if err != nil {
		return nil, err
	}

	plane := append(first, second...)

	im := NewImage(int(width), int(height))
	need := int(width) * int(height) * 4
	if len(plane) < need {
		return nil, xerr.CorruptPayload("ycg: decompressed plane too short: got %d want %d", len(plane), need)
	}
	for i := 0; i < need; i += 4 {
		putBGRA(im.Pixels, i, plane[i], plane[i+1], plane[i+2], plane[i+3])
	}
	return im, nil
}

func zlibInflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, xerr.Wrap(err, "zlib: bad stream header")
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, xerr.Wrap(err, "zlib: inflate failed")
	}
	return out, nil
}
