package codec

import (
	"github.com/hazukino/vnarc/internal/bitio"
	"github.com/hazukino/vnarc/internal/xerr"
)

// compressedBGLCG reproduces the format's 16-bit Linear Congruential
// generator: `val = 0x4E35*(state&0xFFFF);
// state = (val&0xFFFF0000) + 0x015A0000*prev + 0x4E350000*(prev>>16) +
// (val&0xFFFF) + 1; out = (0x15A*prev + (val>>16) - 0x31CB*(prev>>16)) &
// 0x7FFF`.
type compressedBGLCG struct {
	state uint32
}

func newCompressedBGLCG(seed uint32) *compressedBGLCG {
	return &compressedBGLCG{state: seed}
}

func (l *compressedBGLCG) next() uint32 {
	prev := l.state
	val := 0x4E35 * (prev & 0xFFFF)
	l.state = (val & 0xFFFF0000) + 0x015A0000*prev + 0x4E350000*(prev>>16) + (val & 0xFFFF) + 1
	out := (0x15A*prev + (val >> 16) - 0x31CB*(prev>>16)) & 0x7FFF
	return out
}

// DecodeCompressedBG decodes the CompressedBG format: a PRNG-masked
// variable-length frequency table feeds a canonical Huffman tree, whose
// symbol stream (after a second RLE pass) becomes a predictively-coded
// 24/32bpp pixel plane.
func DecodeCompressedBG(buf []byte) (*Image, error) {
	r := bitio.NewReader(buf)
	if _, err := r.Bytes(4); err != nil { // magic "CompressedBG___" (16 bytes incl NUL padding, read as needed below)
		return nil, err
	}
	if _, err := r.Bytes(12); err != nil { // remainder of magic
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
	bpp, err := r.U32LE()
	if err != nil {
		return nil, err
	}
	prngSeed, err := r.U32LE()
	if err != nil {
		return nil, err
	}
	decryptDataSize, err := r.U32LE()
	if err != nil {
		return nil, err
	}
	if decryptDataSize < 256 {
		return nil, xerr.BadHeader("compressedbg: decrypt_data_size %d < 256", decryptDataSize)
	}

	lsb := bitio.NewLSBBitReader(r)
	freqs := make([]int, 256)
	lcg := newCompressedBGLCG(prngSeed)
	for i := range freqs {
		v, err := readVarint7(lsb)
		if err != nil {
			return nil, err
		}
		mask := lcg.next()
		freqs[i] = int(byte(v - int(mask&0xFF)))
	}

	tree := buildJBP1Huffman(freqs)

	bytesPerPixel := 3
	if bpp == 32 {
		bytesPerPixel = 4
	}
	planeSize := int(width) * int(height) * bytesPerPixel

	msb := bitio.NewMSBBitReader(r)
	symbols := make([]byte, 0, planeSize)
	for len(symbols) < planeSize {
		sym, err := tree.decode(msb)
		if err != nil {
			return nil, xerr.Wrap(err, "compressedbg: huffman symbol")
		}
		symbols = append(symbols, byte(sym))
	}

	plane, err := compressedBGRLEPass(symbols, planeSize)
	if err != nil {
		return nil, err
	}

	applyCompressedBGPredictor(plane, int(width), int(height), bytesPerPixel)

	im := NewImage(int(width), int(height))
	for i := 0; i < int(width)*int(height); i++ {
		o := i * bytesPerPixel
		if o+bytesPerPixel > len(plane) {
			break
		}
		a := byte(0xFF)
		if bytesPerPixel == 4 {
			a = plane[o+3]
		}
		putBGRA(im.Pixels, i*4, plane[o], plane[o+1], plane[o+2], a)
	}
	return im, nil
}

// readVarint7 reads a base-128 little-endian varint with continuation bit
// 0x80, used to read the frequency table.
func readVarint7(lsb *bitio.LSBBitReader) (int, error) {
	var v, shift int
	for {
		b, err := lsb.Bits(8)
		if err != nil {
			return 0, err
		}
		v |= (b & 0x7F) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
	}
	return v, nil
}

// compressedBGRLEPass expands the RLE pass over the Huffman-decoded symbol
// stream: each run length is one symbol byte, and runs alternate between
// literal runs (copied from the following symbols) and skip runs (zeros).
func compressedBGRLEPass(symbols []byte, outSize int) ([]byte, error) {
	out := make([]byte, 0, outSize)
	i := 0
	literal := true
	for len(out) < outSize && i < len(symbols) {
		runLen := int(symbols[i])
		i++
		if literal {
			for j := 0; j < runLen && i < len(symbols) && len(out) < outSize; j++ {
				out = append(out, symbols[i])
				i++
			}
		} else {
			for j := 0; j < runLen && len(out) < outSize; j++ {
				out = append(out, 0)
			}
		}
		literal = !literal
	}
	for len(out) < outSize {
		out = append(out, 0)
	}
	return out, nil
}

// applyCompressedBGPredictor undoes the row/column predictor: row 0 is a
// cumulative horizontal add; later rows use `(left+above)/2 + delta`.
func applyCompressedBGPredictor(plane []byte, width, height, bpp int) {
	stride := width * bpp
	for y := 0; y < height; y++ {
		rowOff := y * stride
		for x := 0; x < width; x++ {
			for c := 0; c < bpp; c++ {
				idx := rowOff + x*bpp + c
				if idx >= len(plane) {
					return
				}
				if y == 0 {
					if x > 0 {
						plane[idx] += plane[idx-bpp]
					}
					continue
				}
				var left, above int
				if x > 0 {
					left = int(plane[idx-bpp])
				}
				above = int(plane[idx-stride])
				plane[idx] += byte((left + above) / 2)
			}
		}
	}
}
