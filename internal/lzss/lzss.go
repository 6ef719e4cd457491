// Package lzss implements the dictionary-LZSS family shared by Silky
// archives and the GYU and PB3B (v1, v5, v6) pixel codecs, plus Tactics
// Arc's table-driven coder. AKB and G00 carry their own decoders.
//
// Grounded on the ring-buffer dictionary idiom in internal/sit/lzah.go
// (SIT_lzah: a circular `buf[4096]` written and read at
// the same cursor, with back-references wrapping mod 4096) and
// internal/sit/oldformat.go's byte-oriented control loop, generalized into a
// reusable decoder parameterized by dictionary size, initial fill byte, and
// flag-bit sense, since every codec here uses the same shape of
// control-bit-then-(literal|match) loop differing only in those constants.
package lzss

import "github.com/hazukino/vnarc/internal/xerr"

// Params configures one dictionary-LZSS variant.
type Params struct {
	// DictSize is the circular dictionary size (4096 for Silky/GYU/PB3B
	// v5 and v6, 2048 for PB3B v1).
	DictSize int
	// FillByte initializes the dictionary before decoding starts.
	FillByte byte
	// InitPos is the starting dictionary write cursor.
	InitPos int
	// MinMatch is the shortest encodable match length (match codes encode
	// length - MinMatch).
	MinMatch int
	// LiteralFlagBit selects which sense of the per-group flag bit means
	// "literal byte follows" (1 for Silky/GYU/PB3B v5 and v6, 0 for PB3B v1).
	LiteralFlagBit int
}

// lsbBits is the minimal bit-cursor interface lzss needs from bitio, kept
// narrow so callers can pass either bitio.LSBBitReader or a test double.
type lsbBits interface {
	Bit() (int, error)
	Bits(n int) (int, error)
}

// bitSource is the minimal method set lzss needs from an LSB-first bit
// reader; satisfied directly by *bitio.LSBBitReader.
type bitSource interface {
	Bit() (int, error)
	Bits(n int) (int, error)
}

// Bits wraps any bitSource (in practice *bitio.LSBBitReader) so it satisfies
// the unexported lsbBits interface Decode expects -- the one adapter every
// codec using this package shares, rather than each defining its own.
type Bits struct{ R bitSource }

func (b Bits) Bit() (int, error)       { return b.R.Bit() }
func (b Bits) Bits(n int) (int, error) { return b.R.Bits(n) }

// Of wraps r for use as Decode's flags/data argument.
func Of(r bitSource) Bits { return Bits{R: r} }

// Decode runs a dictionary-LZSS stream to completion, writing exactly
// outSize decoded bytes. flags supplies one control bit per literal/match
// decision and data supplies the raw match/literal payload bits; callers
// drive both from the same underlying bitio.Reader positioned according to
// each codec's own flag/data interleaving (some codecs split flags and data
// into separate regions, others interleave bit-by-bit -- see the format's
// own file for which).
func Decode(p Params, flags, data lsbBits, outSize int) ([]byte, error) {
	dict := make([]byte, p.DictSize)
	for i := range dict {
		dict[i] = p.FillByte
	}
	dictPos := p.InitPos % p.DictSize

	out := make([]byte, 0, outSize)
	put := func(b byte) {
		out = append(out, b)
		dict[dictPos] = b
		dictPos = (dictPos + 1) % p.DictSize
	}

	for len(out) < outSize {
		bit, err := flags.Bit()
		if err != nil {
			return nil, xerr.Wrap(err, "lzss: reading control bit")
		}
		if bit == p.LiteralFlagBit {
			lit, err := data.Bits(8)
			if err != nil {
				return nil, xerr.Wrap(err, "lzss: reading literal")
			}
			put(byte(lit))
			continue
		}

		offset, err := data.Bits(offsetBits(p.DictSize))
		if err != nil {
			return nil, xerr.Wrap(err, "lzss: reading match offset")
		}
		length, err := data.Bits(lengthBits(p.DictSize))
		if err != nil {
			return nil, xerr.Wrap(err, "lzss: reading match length")
		}
		length += p.MinMatch

		for i := 0; i < length && len(out) < outSize; i++ {
			put(dict[(offset+i)%p.DictSize])
		}
	}
	return out, nil
}

func offsetBits(dictSize int) int {
	switch dictSize {
	case 4096:
		return 12
	case 2048:
		return 11
	default:
		n, bits := 1, 0
		for n < dictSize {
			n <<= 1
			bits++
		}
		return bits
	}
}

func lengthBits(dictSize int) int {
	if dictSize == 2048 {
		return 4
	}
	return 4
}
