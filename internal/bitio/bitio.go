// Package bitio provides the little endian/big endian byte readers and the
// LSB-first and MSB-first bit readers shared by the dictionary-LZSS and
// Huffman pixel codecs.
//
// Grounded on internal/sit/bitreader.go's shift-register refill idiom,
// generalized to carry an explicit (buffer, index) cursor so every access
// is bounds-checked and returns an error instead of panicking.
package bitio

import "github.com/hazukino/vnarc/internal/xerr"

// Reader is a bounds-checked little-endian byte cursor over an in-memory
// buffer. It never panics: every read past the end returns xerr.OutOfBounds.
type Reader struct {
	buf []byte
	pos int
}

func NewReader(buf []byte) *Reader { return &Reader{buf: buf} }

func (r *Reader) Len() int  { return len(r.buf) - r.pos }
func (r *Reader) Pos() int  { return r.pos }
func (r *Reader) Seek(pos int) {
	r.pos = pos
}

func (r *Reader) Byte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, xerr.OutOfBounds("bitio: byte read past end")
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *Reader) Bytes(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) || n < 0 {
		return nil, xerr.OutOfBounds("bitio: %d bytes past end", n)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *Reader) U16LE() (uint16, error) {
	b, err := r.Bytes(2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0]) | uint16(b[1])<<8, nil
}

func (r *Reader) U32LE() (uint32, error) {
	b, err := r.Bytes(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

func (r *Reader) U64LE() (uint64, error) {
	b, err := r.Bytes(8)
	if err != nil {
		return 0, err
	}
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v, nil
}

func (r *Reader) U16BE() (uint16, error) {
	b, err := r.Bytes(2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

func (r *Reader) U32BE() (uint32, error) {
	b, err := r.Bytes(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

// LSBBitReader pulls bits LSB-first out of an underlying byte stream,
// refilling a shift register one byte at a time -- used by the
// dictionary-LZSS codecs (Silky, GYU, G00, PB3B) and by IAR and CompressedBG.
type LSBBitReader struct {
	src   *Reader
	bits  uint32
	nbits uint
}

func NewLSBBitReader(src *Reader) *LSBBitReader {
	return &LSBBitReader{src: src}
}

// Bit returns a single bit (0 or 1), refilling from the byte stream as
// needed.
func (r *LSBBitReader) Bit() (int, error) {
	if r.nbits == 0 {
		b, err := r.src.Byte()
		if err != nil {
			return 0, err
		}
		r.bits = uint32(b)
		r.nbits = 8
	}
	bit := int(r.bits & 1)
	r.bits >>= 1
	r.nbits--
	return bit, nil
}

// Bits reads n (<=24) bits, LSB-first, building the value LSB-to-MSB.
func (r *LSBBitReader) Bits(n int) (int, error) {
	var v, shift int
	for shift < n {
		b, err := r.Bit()
		if err != nil {
			return 0, err
		}
		v |= b << shift
		shift++
	}
	return v, nil
}

// MSBBitReader pulls bits MSB-first -- used by JBP1's and CompressedBG's
// Huffman descent.
type MSBBitReader struct {
	src   *Reader
	bits  uint32
	nbits uint
}

func NewMSBBitReader(src *Reader) *MSBBitReader {
	return &MSBBitReader{src: src}
}

func (r *MSBBitReader) Bit() (int, error) {
	if r.nbits == 0 {
		b, err := r.src.Byte()
		if err != nil {
			return 0, err
		}
		r.bits = uint32(b)
		r.nbits = 8
	}
	r.nbits--
	bit := int((r.bits >> r.nbits) & 1)
	return bit, nil
}

func (r *MSBBitReader) Bits(n int) (int, error) {
	var v int
	for i := 0; i < n; i++ {
		b, err := r.Bit()
		if err != nil {
			return 0, err
		}
		v = v<<1 | b
	}
	return v, nil
}
