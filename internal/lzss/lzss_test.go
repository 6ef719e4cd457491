package lzss

import (
	"bytes"
	"testing"

	"github.com/hazukino/vnarc/internal/bitio"
)

func TestDecodeAllLiterals(t *testing.T) {
	params := Params{DictSize: 4096, FillByte: 0, InitPos: 0, MinMatch: 3, LiteralFlagBit: 1}

	// Three literal-flag bits (1,1,1), LSB-first in one byte.
	flags := Of(bitio.NewLSBBitReader(bitio.NewReader([]byte{0b00000111})))
	// Each 8-bit literal read consumes one source byte whole, so the
	// payload bytes come back unchanged.
	data := Of(bitio.NewLSBBitReader(bitio.NewReader([]byte{'A', 'B', 'C'})))

	got, err := Decode(params, flags, data, 3)
	if err != nil {
		t.Fatalf("Decode: unexpected error %v", err)
	}
	if !bytes.Equal(got, []byte("ABC")) {
		t.Fatalf("Decode = %q, want %q", got, "ABC")
	}
}

func TestDecodeLiteralsThenMatch(t *testing.T) {
	params := Params{DictSize: 4096, FillByte: 0, InitPos: 0, MinMatch: 3, LiteralFlagBit: 1}

	// Flags: literal, literal, literal, match (1,1,1,0).
	flags := Of(bitio.NewLSBBitReader(bitio.NewReader([]byte{0b00000111})))
	// Data: 3 literal bytes "abc", then a 12-bit offset of 0 and a 4-bit
	// length code of 0 (-> MinMatch = 3 bytes), packed as two zero bytes.
	data := Of(bitio.NewLSBBitReader(bitio.NewReader([]byte{'a', 'b', 'c', 0x00, 0x00})))

	got, err := Decode(params, flags, data, 6)
	if err != nil {
		t.Fatalf("Decode: unexpected error %v", err)
	}
	if !bytes.Equal(got, []byte("abcabc")) {
		t.Fatalf("Decode = %q, want %q", got, "abcabc")
	}
}

func TestDecodeTruncatedFlagsStream(t *testing.T) {
	params := Params{DictSize: 4096, FillByte: 0, InitPos: 0, MinMatch: 3, LiteralFlagBit: 1}
	flags := Of(bitio.NewLSBBitReader(bitio.NewReader(nil)))
	data := Of(bitio.NewLSBBitReader(bitio.NewReader(nil)))
	if _, err := Decode(params, flags, data, 1); err == nil {
		t.Fatal("Decode with an empty flags stream: want error, got nil")
	}
}
