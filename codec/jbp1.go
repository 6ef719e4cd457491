package codec

import (
	"github.com/hazukino/vnarc/internal/bitio"
	"github.com/hazukino/vnarc/internal/xerr"
)

// jbp1ZigZag is JBP1's 64-entry zig-zag scan order.
var jbp1ZigZag = [64]int{
	1, 8, 16, 9, 2, 3, 10, 17,
	24, 32, 25, 18, 11, 4, 5, 12,
	19, 26, 33, 40, 48, 41, 34, 27,
	20, 13, 6, 7, 14, 21, 28, 35,
	42, 49, 56, 57, 50, 43, 36, 29,
	22, 15, 23, 30, 37, 44, 51, 58,
	59, 52, 45, 38, 31, 39, 46, 53,
	60, 61, 54, 47, 55, 62, 63, 0,
}

// jbp1SatTable is the 768-entry saturation lookup (0 for negative inputs,
// identity in [0,255], 255 beyond).
var jbp1SatTable [768]byte

func init() {
	for i := 0; i < 256; i++ {
		jbp1SatTable[i] = 0
		jbp1SatTable[256+i] = byte(i)
		jbp1SatTable[512+i] = 255
	}
}

func jbp1Saturate(v int) byte {
	idx := v + 256
	if idx < 0 {
		idx = 0
	}
	if idx > 767 {
		idx = 767
	}
	return jbp1SatTable[idx]
}

// jbp1huffNode is one node of the Huffman tree buildJBP1Huffman builds by
// a classic min-sum construction; nodes live in a growable slice.
type jbp1huffNode struct {
	weight      int
	left, right int // child node indices, -1 for leaf
	symbol      int
}

type jbp1huffTree struct {
	nodes []jbp1huffNode
	root  int
}

// buildJBP1Huffman constructs a tree from a frequency table (16 entries for
// JBP1's DC/AC tables, 256 for CompressedBG): every symbol with a positive
// frequency becomes a leaf weighted by that frequency, and the two
// lowest-weight nodes are merged repeatedly until one root remains. JBP1's
// 16-byte "tree input" block is not used.
func buildJBP1Huffman(freqs []int) *jbp1huffTree {
	t := &jbp1huffTree{}
	type item struct{ node, weight int }
	var active []item
	for sym, f := range freqs {
		if f <= 0 {
			continue
		}
		idx := len(t.nodes)
		t.nodes = append(t.nodes, jbp1huffNode{weight: f, left: -1, right: -1, symbol: sym})
		active = append(active, item{idx, f})
	}
	if len(active) == 0 {
		return t
	}
	if len(active) == 1 {
		t.root = active[0].node
		return t
	}
	for len(active) > 1 {
		minI, minJ := 0, 1
		if active[minJ].weight < active[minI].weight {
			minI, minJ = minJ, minI
		}
		for k := 2; k < len(active); k++ {
			if active[k].weight < active[minI].weight {
				minJ = minI
				minI = k
			} else if active[k].weight < active[minJ].weight {
				minJ = k
			}
		}
		a, b := active[minI], active[minJ]
		idx := len(t.nodes)
		t.nodes = append(t.nodes, jbp1huffNode{weight: a.weight + b.weight, left: a.node, right: b.node, symbol: -1})
		if minI > minJ {
			minI, minJ = minJ, minI
		}
		active = append(active[:minJ], active[minJ+1:]...)
		active[minI] = item{idx, t.nodes[idx].weight}
	}
	t.root = active[0].node
	return t
}

func (t *jbp1huffTree) decode(br *bitio.MSBBitReader) (int, error) {
	n := t.root
	if len(t.nodes) == 0 {
		return 0, xerr.CorruptPayload("jbp1: empty huffman tree")
	}
	for t.nodes[n].left != -1 {
		bit, err := br.Bit()
		if err != nil {
			return 0, err
		}
		if bit == 0 {
			n = t.nodes[n].left
		} else {
			n = t.nodes[n].right
		}
	}
	return t.nodes[n].symbol, nil
}

// jbp1Header carries the block geometry, bit pool sizes, optional quant
// tables, and the two frequency tables JBP1 streams in its header.
type jbp1Header struct {
	dataOffset                    int
	flags                         uint32
	depth                         int
	bitPoolSize1, bitPoolSize2    int
	blocksWidth, blocksHeight     int
	blockStride                   int
	xBlockCount, yBlockCount      int
	blockSize                     int // 8 or 16 or 32 (width); see flags>>28&3
}

func parseJBP1Header(r *bitio.Reader) (*jbp1Header, error) {
	dataOffset, err := r.U32LE()
	if err != nil {
		return nil, err
	}
	flags, err := r.U32LE()
	if err != nil {
		return nil, err
	}
	depth, err := r.U32LE()
	if err != nil {
		return nil, err
	}
	bp1, err := r.U32LE()
	if err != nil {
		return nil, err
	}
	bp2, err := r.U32LE()
	if err != nil {
		return nil, err
	}
	bw, err := r.U32LE()
	if err != nil {
		return nil, err
	}
	bh, err := r.U32LE()
	if err != nil {
		return nil, err
	}
	stride, err := r.U32LE()
	if err != nil {
		return nil, err
	}
	xbc, err := r.U32LE()
	if err != nil {
		return nil, err
	}
	ybc, err := r.U32LE()
	if err != nil {
		return nil, err
	}

	var blockSize int
	switch (flags >> 28) & 3 {
	case 0:
		blockSize = 8
	case 1:
		blockSize = 16
	case 2:
		blockSize = 32
	default:
		return nil, xerr.BadHeader("jbp1: unknown macroblock size selector")
	}

	return &jbp1Header{
		dataOffset:   int(dataOffset),
		flags:        flags,
		depth:        int(depth),
		bitPoolSize1: int(bp1),
		bitPoolSize2: int(bp2),
		blocksWidth:  int(bw),
		blocksHeight: int(bh),
		blockStride:  int(stride),
		xBlockCount:  int(xbc),
		yBlockCount:  int(ybc),
		blockSize:    blockSize,
	}, nil
}

// jbp1IDCTConstants are the fixed-point multipliers applied row-then-column
// with a >>16 shift per multiply and an extra >>3 on rows after the column
// pass.
var jbp1IDCTConstants = [12]int32{
	35467, 50159, 121094, 77062, 19571, 128553,
	58980, 134553, 25570, 167963, 98390, 201373,
}

// idctJBP1Block runs the fixed-point inverse DCT over one 8x8 coefficient
// block in place.
func idctJBP1Block(block *[64]int32) {
	c := jbp1IDCTConstants
	var tmp [64]int32
	for row := 0; row < 8; row++ {
		o := row * 8
		for col := 0; col < 8; col++ {
			var sum int64
			for k := 0; k < 8; k++ {
				sum += int64(block[o+k]) * int64(c[k%len(c)])
			}
			tmp[o+col] = int32(sum >> 16)
		}
	}
	for col := 0; col < 8; col++ {
		for row := 0; row < 8; row++ {
			var sum int64
			for k := 0; k < 8; k++ {
				sum += int64(tmp[k*8+col]) * int64(c[k%len(c)])
			}
			block[row*8+col] = int32(sum>>16) >> 3
		}
	}
}

// DecodeJBP1 decodes the JBP1 block-DCT codec used standalone and by PB3B
// version 3. It decodes 16x16 macroblocks of four 8x8 Y blocks plus one Cb
// and one Cr block (4:2:0 subsampling); the header's block-size selector is
// parsed but does not change how the image is decoded.
func DecodeJBP1(buf []byte) (*Image, error) {
	r := bitio.NewReader(buf)
	hdr, err := parseJBP1Header(r)
	if err != nil {
		return nil, err
	}

	dcFreq := make([]int, 16)
	acFreq := make([]int, 16)
	for i := range dcFreq {
		v, err := r.Byte()
		if err != nil {
			return nil, err
		}
		dcFreq[i] = int(v)
	}
	for i := range acFreq {
		v, err := r.Byte()
		if err != nil {
			return nil, err
		}
		acFreq[i] = int(v)
	}
	treeInput, err := r.Bytes(16)
	if err != nil {
		return nil, err
	}
	_ = treeInput

	dcTree := buildJBP1Huffman(dcFreq)
	acTree := buildJBP1Huffman(acFreq)

	r.Seek(hdr.dataOffset)
	br := bitio.NewMSBBitReader(r)

	width := hdr.blocksWidth
	height := hdr.blocksHeight
	im := NewImage(width, height)

	mbW, mbH := (width+15)/16, (height+15)/16
	for my := 0; my < mbH; my++ {
		for mx := 0; mx < mbW; mx++ {
			var yBlocks [4][64]int32
			var cb, cr [64]int32
			for i := range yBlocks {
				if err := decodeJBP1Block(br, dcTree, acTree, &yBlocks[i]); err != nil {
					return nil, err
				}
				idctJBP1Block(&yBlocks[i])
			}
			if err := decodeJBP1Block(br, dcTree, acTree, &cb); err != nil {
				return nil, err
			}
			idctJBP1Block(&cb)
			if err := decodeJBP1Block(br, dcTree, acTree, &cr); err != nil {
				return nil, err
			}
			idctJBP1Block(&cr)

			writeJBP1Macroblock(im, mx*16, my*16, &yBlocks, &cb, &cr)
		}
	}
	return im, nil
}

func decodeJBP1Block(br *bitio.MSBBitReader, dcTree, acTree *jbp1huffTree, block *[64]int32) error {
	dcBits, err := dcTree.decode(br)
	if err != nil {
		return xerr.Wrap(err, "jbp1: dc huffman symbol")
	}
	dc, err := readJBP1Amplitude(br, dcBits)
	if err != nil {
		return err
	}
	block[0] = int32(dc)

	pos := 1
	for pos < 64 {
		sym, err := acTree.decode(br)
		if err != nil {
			return xerr.Wrap(err, "jbp1: ac huffman symbol")
		}
		if sym == 0 {
			break
		}
		runLen := sym >> 4
		bits := sym & 0xF
		pos += runLen
		if pos >= 64 {
			break
		}
		amp, err := readJBP1Amplitude(br, bits)
		if err != nil {
			return err
		}
		block[jbp1ZigZag[pos]] = int32(amp)
		pos++
	}
	return nil
}

// readJBP1Amplitude reads a sign-extended variable-length amplitude: nbits
// bits, where a leading zero bit means the value is negative (one's
// complement of what was read).
func readJBP1Amplitude(br *bitio.MSBBitReader, nbits int) (int, error) {
	if nbits == 0 {
		return 0, nil
	}
	v, err := br.Bits(nbits)
	if err != nil {
		return 0, err
	}
	threshold := 1 << (nbits - 1)
	if v < threshold {
		v -= (1 << nbits) - 1
	}
	return v, nil
}

func writeJBP1Macroblock(im *Image, ox, oy int, yBlocks *[4][64]int32, cb, cr *[64]int32) {
	for by := 0; by < 2; by++ {
		for bx := 0; bx < 2; bx++ {
			yb := &yBlocks[by*2+bx]
			for py := 0; py < 8; py++ {
				for px := 0; px < 8; px++ {
					gx, gy := ox+bx*8+px, oy+by*8+py
					if gx >= im.Width || gy >= im.Height {
						continue
					}
					cx, cy := (bx*8+px)/2, (by*8+py)/2
					Y := int(yb[py*8+px])
					Cb := int(cb[cy*8+cx])
					Cr := int(cr[cy*8+cx])

					rr := Y + ((Cr * 0x166F0) >> 16)
					gg := Y - (((Cb * 0x5810) + (Cr * 0xB6C0)) >> 16)
					bb := Y + ((Cb * 0x1C590) >> 16)

					idx := (gy*im.Width + gx) * 4
					putBGRA(im.Pixels, idx, jbp1Saturate(bb), jbp1Saturate(gg), jbp1Saturate(rr), 0xFF)
				}
			}
		}
	}
}
