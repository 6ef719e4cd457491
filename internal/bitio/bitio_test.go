package bitio

import "testing"

func TestReaderIntegers(t *testing.T) {
	buf := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	r := NewReader(buf)

	b, err := r.Byte()
	if err != nil || b != 0x01 {
		t.Fatalf("Byte() = %v, %v; want 0x01, nil", b, err)
	}

	r.Seek(0)
	v16, err := r.U16LE()
	if err != nil || v16 != 0x0201 {
		t.Fatalf("U16LE() = %#x, %v; want 0x0201, nil", v16, err)
	}

	r.Seek(0)
	v32, err := r.U32LE()
	if err != nil || v32 != 0x04030201 {
		t.Fatalf("U32LE() = %#x, %v; want 0x04030201, nil", v32, err)
	}

	r.Seek(0)
	v64, err := r.U64LE()
	if err != nil || v64 != 0x0807060504030201 {
		t.Fatalf("U64LE() = %#x, %v; want 0x0807060504030201, nil", v64, err)
	}

	r.Seek(0)
	vbe16, err := r.U16BE()
	if err != nil || vbe16 != 0x0102 {
		t.Fatalf("U16BE() = %#x, %v; want 0x0102, nil", vbe16, err)
	}

	r.Seek(0)
	vbe32, err := r.U32BE()
	if err != nil || vbe32 != 0x01020304 {
		t.Fatalf("U32BE() = %#x, %v; want 0x01020304, nil", vbe32, err)
	}
}

func TestReaderOutOfBounds(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02})
	if _, err := r.Bytes(3); err == nil {
		t.Fatal("Bytes(3) over a 2-byte buffer: want error, got nil")
	}
	if _, err := r.U64LE(); err == nil {
		t.Fatal("U64LE() over a 2-byte buffer: want error, got nil")
	}
	r.Seek(2)
	if _, err := r.Byte(); err == nil {
		t.Fatal("Byte() at end of buffer: want error, got nil")
	}
}

func TestLSBBitReader(t *testing.T) {
	// 0b10110010 LSB-first: bits come out 0,1,0,0,1,1,0,1
	r := NewLSBBitReader(NewReader([]byte{0b10110010}))
	want := []int{0, 1, 0, 0, 1, 1, 0, 1}
	for i, w := range want {
		got, err := r.Bit()
		if err != nil {
			t.Fatalf("Bit() #%d: unexpected error %v", i, err)
		}
		if got != w {
			t.Fatalf("Bit() #%d = %d, want %d", i, got, w)
		}
	}
	if _, err := r.Bit(); err == nil {
		t.Fatal("Bit() past end of stream: want error, got nil")
	}
}

func TestLSBBitReaderBitsMultiByte(t *testing.T) {
	r := NewLSBBitReader(NewReader([]byte{0xFF, 0x00}))
	v, err := r.Bits(12)
	if err != nil {
		t.Fatalf("Bits(12): unexpected error %v", err)
	}
	if v != 0x0FF {
		t.Fatalf("Bits(12) = %#x, want 0x0ff", v)
	}
}

func TestMSBBitReader(t *testing.T) {
	// 0b10110010 MSB-first: bits come out 1,0,1,1,0,0,1,0
	r := NewMSBBitReader(NewReader([]byte{0b10110010}))
	want := []int{1, 0, 1, 1, 0, 0, 1, 0}
	for i, w := range want {
		got, err := r.Bit()
		if err != nil {
			t.Fatalf("Bit() #%d: unexpected error %v", i, err)
		}
		if got != w {
			t.Fatalf("Bit() #%d = %d, want %d", i, got, w)
		}
	}
}

func TestMSBBitReaderBits(t *testing.T) {
	r := NewMSBBitReader(NewReader([]byte{0b11001010}))
	v, err := r.Bits(4)
	if err != nil {
		t.Fatalf("Bits(4): unexpected error %v", err)
	}
	if v != 0b1100 {
		t.Fatalf("Bits(4) = %#b, want 0b1100", v)
	}
	v2, err := r.Bits(4)
	if err != nil {
		t.Fatalf("Bits(4) second call: unexpected error %v", err)
	}
	if v2 != 0b1010 {
		t.Fatalf("Bits(4) second call = %#b, want 0b1010", v2)
	}
}
