package vnarc

import (
	"strings"

	"golang.org/x/text/encoding/japanese"
)

// decodeShiftJIS converts Shift-JIS bytes (the encoding every container
// parser uses for names unless §4.2 says otherwise) to a UTF-8 string,
// normalizing backslashes to forward slashes. Uses x/text rather than a
// hand-rolled table, the standard way a Go port decodes Shift-JIS (see
// SPEC_FULL.md DOMAIN STACK).
func decodeShiftJIS(b []byte) string {
	out, err := japanese.ShiftJIS.NewDecoder().Bytes(b)
	if err != nil {
		out = b
	}
	return normalizePath(string(out))
}

// decodeShiftJISNullTerminated truncates at the first NUL byte before
// decoding, the shape Buriko/Malie/ESC-ARC2/CPZ7/AMUSE PAC names arrive in.
func decodeShiftJISNullTerminated(b []byte) string {
	if i := indexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return decodeShiftJIS(b)
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// decodeUTF16LE decodes a little-endian UTF-16 byte slice (GXP, LINK6,
// WillPlus Arc names), stopping at the first NUL code unit if nulTerminated.
func decodeUTF16LE(b []byte, nulTerminated bool) string {
	var sb strings.Builder
	for i := 0; i+1 < len(b); i += 2 {
		u := uint16(b[i]) | uint16(b[i+1])<<8
		if nulTerminated && u == 0 {
			break
		}
		sb.WriteRune(rune(u))
	}
	return normalizePath(sb.String())
}
