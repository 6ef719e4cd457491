package lzss

import (
	"bytes"
	"testing"
)

func TestDecodeTacticsArcLiteralRun(t *testing.T) {
	// varint decompressed size = 5, then a literal-run control byte
	// ((4<<2)|0 = 0x10) encoding a run of 5 bytes, then the 5 literal bytes.
	src := []byte{0x05, 0x10, 'h', 'e', 'l', 'l', 'o'}
	got, err := DecodeTacticsArc(src)
	if err != nil {
		t.Fatalf("DecodeTacticsArc: unexpected error %v", err)
	}
	if !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("DecodeTacticsArc = %q, want %q", got, "hello")
	}
}

func TestDecodeTacticsArcTwoLiteralRuns(t *testing.T) {
	// Two consecutive literal-run control bytes, each (2<<2)|0 = 0x08
	// encoding a run of 3 bytes: "abc" then "xyz". Back-reference control
	// bytes depend on decompressTable's offset/bias encoding, which isn't
	// reasonable to hand-verify without running the decoder, so this test
	// sticks to the literal-run path exercised across multiple control bytes.
	src := []byte{0x06, 0x08, 'a', 'b', 'c', 0x08, 'x', 'y', 'z'}
	got, err := DecodeTacticsArc(src)
	if err != nil {
		t.Fatalf("DecodeTacticsArc: unexpected error %v", err)
	}
	if !bytes.Equal(got, []byte("abcxyz")) {
		t.Fatalf("DecodeTacticsArc = %q, want %q", got, "abcxyz")
	}
}

func TestDecodeTacticsArcTruncatedStream(t *testing.T) {
	// Claims a 5-byte decompressed size and a literal run of 5, but the
	// stream only carries 3 payload bytes.
	src := []byte{0x05, 0x10, 'a', 'b', 'c'}
	if _, err := DecodeTacticsArc(src); err == nil {
		t.Fatal("DecodeTacticsArc on a truncated literal run: want error, got nil")
	}
}

func TestDecodeTacticsArcEmpty(t *testing.T) {
	got, err := DecodeTacticsArc([]byte{0x00})
	if err != nil {
		t.Fatalf("DecodeTacticsArc([]byte{0}): unexpected error %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("DecodeTacticsArc([]byte{0}) = %v, want empty", got)
	}
}
