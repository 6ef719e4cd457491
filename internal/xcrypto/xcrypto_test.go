package xcrypto

import (
	"bytes"
	"crypto/md5"
	"testing"
)

func TestMD5WithIVMatchesStdlibForDefaultIV(t *testing.T) {
	cases := [][]byte{
		[]byte(""),
		[]byte("abc"),
		[]byte("the quick brown fox jumps over the lazy dog"),
		bytes.Repeat([]byte{0x42}, 137), // spans multiple 64-byte blocks
	}
	for _, data := range cases {
		want := md5.Sum(data)
		got := MD5WithIV(data, DefaultMD5IV)
		if got != want {
			t.Errorf("MD5WithIV(%q, DefaultMD5IV) = %x, want %x", data, got, want)
		}
	}
}

func TestMD5WithIVDifferentIVsDiverge(t *testing.T) {
	data := []byte("cpz7 header block")
	a := MD5WithIV(data, DefaultMD5IV)
	b := MD5WithIV(data, CPZ7HeaderMD5IV)
	if a == b {
		t.Fatal("MD5WithIV with two distinct IVs produced identical digests")
	}
}

func TestCRC64WEKnownVectors(t *testing.T) {
	// CRC-64/WE has a defined check value for the ASCII test string
	// "123456789": 0x62EC59E3F1A4F00A.
	const want = uint64(0x62EC59E3F1A4F00A)
	if got := CRC64WE([]byte("123456789")); got != want {
		t.Fatalf("CRC64WE(\"123456789\") = %#x, want %#x", got, want)
	}
}

func TestCRC64WEDeterministicAndDistinct(t *testing.T) {
	a := CRC64WE([]byte("name_one.dat"))
	b := CRC64WE([]byte("name_two.dat"))
	if a == b {
		t.Fatal("CRC64WE produced identical hashes for distinct inputs")
	}
	if CRC64WE([]byte("name_one.dat")) != a {
		t.Fatal("CRC64WE is not deterministic across calls")
	}
}

func TestMT19937KnownFirstOutput(t *testing.T) {
	// The reference Matsumoto/Nishimura MT19937 implementation seeded with
	// 5489 (its own default seed) produces 3499211612 as its first output.
	m := NewMT19937(5489)
	if got := m.Next(); got != 3499211612 {
		t.Fatalf("NewMT19937(5489).Next() = %d, want 3499211612", got)
	}
}

func TestMT19937Deterministic(t *testing.T) {
	a := NewMT19937(12345)
	b := NewMT19937(12345)
	for i := 0; i < 16; i++ {
		if av, bv := a.Next(), b.Next(); av != bv {
			t.Fatalf("output %d diverged: %d vs %d", i, av, bv)
		}
	}
}

func TestMT19937GYUSeedDiffersFromPlainSeed(t *testing.T) {
	plain := NewMT19937(0xdead)
	gyu := NewMT19937GYUSeed(0xdead)
	if plain.Next() == gyu.Next() {
		t.Fatal("GYU seeding variant produced the same first output as plain seeding")
	}
}

func TestCamellia128DecryptBlockDeterministic(t *testing.T) {
	key := bytes.Repeat([]byte{0xAB}, 16)
	block := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}

	ks1 := NewCamellia128(key)
	out1 := append([]byte(nil), block...)
	ks1.DecryptBlock(out1)

	ks2 := NewCamellia128(key)
	out2 := append([]byte(nil), block...)
	ks2.DecryptBlock(out2)

	if !bytes.Equal(out1, out2) {
		t.Fatal("DecryptBlock is not deterministic for identical key/input")
	}
	if bytes.Equal(out1, block) {
		t.Fatal("DecryptBlock left the block unchanged")
	}
}

func TestSHA1MatchesKnownVector(t *testing.T) {
	got := SHA1([]byte("abc"))
	want := [20]byte{
		0xa9, 0x99, 0x3e, 0x36, 0x47, 0x06, 0x81, 0x6a, 0xba, 0x3e,
		0x25, 0x71, 0x78, 0x50, 0xc2, 0x6c, 0x9c, 0xd0, 0xd8, 0x9d,
	}
	if got != want {
		t.Fatalf("SHA1(\"abc\") = %x, want %x", got, want)
	}
}
