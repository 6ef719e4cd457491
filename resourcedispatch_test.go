package vnarc

import "testing"

func TestClassifyResourceMagics(t *testing.T) {
	cases := []struct {
		head []byte
		want ResourceTag
	}{
		{[]byte("TLG0.0\x00sds\x1arest"), ResourceTLG},
		{[]byte("TLG6.0\x00raw\x1arest"), ResourceTLG},
		{[]byte("PB3Brest"), ResourcePB3B},
		{[]byte("AKB rest"), ResourceAKB},
		{[]byte("AKB+rest"), ResourceAKB},
		{[]byte("CompressedBG___rest"), ResourceCompressedBG},
		{[]byte("CRXGrest"), ResourceCRXG},
		{[]byte("DPNGrest"), ResourceDPNG},
		{[]byte("PNAPrest"), ResourcePNA},
		{[]byte("WPAPrest"), ResourcePNA},
		{[]byte("YCG rest"), ResourceYCG},
		{[]byte("JBP1rest"), ResourceJBP1},
		{[]byte("totally unrecognized"), ResourceNotRecognized},
		{[]byte{0, 1}, ResourceNotRecognized},
	}
	for _, c := range cases {
		if got := ClassifyResource(c.head); got != c.want {
			t.Errorf("ClassifyResource(%q) = %v, want %v", c.head, got, c.want)
		}
	}
}

func TestDecodeResourceG00RoundTrip(t *testing.T) {
	// version=0, width=1, height=1, then a G00-LZSS plane of four literal
	// bytes 0x10,0x20,0x30,0x40 (flag bit 1 + 8 literal bits per byte,
	// LSB-first, packed across byte boundaries).
	buf := []byte{
		0x00,       // version
		0x01, 0x00, // width = 1
		0x01, 0x00, // height = 1
		0x21, 0x82, 0x84, 0x09, 0x04,
	}
	res, err := DecodeResource(ResourceG00, buf)
	if err != nil {
		t.Fatalf("DecodeResource(ResourceG00): unexpected error %v", err)
	}
	if res.Image == nil {
		t.Fatal("DecodeResource(ResourceG00): Image is nil")
	}
	want := []byte{0x10, 0x20, 0x30, 0xFF} // alpha forced opaque
	if string(res.Image.Pixels) != string(want) {
		t.Fatalf("DecodeResource(ResourceG00) pixels = % x, want % x", res.Image.Pixels, want)
	}
}

func TestDecodeResourceUnrecognizedTagErrors(t *testing.T) {
	if _, err := DecodeResource(ResourceNotRecognized, nil); err == nil {
		t.Fatal("DecodeResource(ResourceNotRecognized, nil): want error, got nil")
	}
}
