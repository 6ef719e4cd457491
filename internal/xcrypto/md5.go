package xcrypto

import "math/bits"

// MD5 with a caller-supplied initial vector. crypto/md5 in the
// standard library has no hook for substituting the IV, and CPZ7 needs a
// second, non-standard IV for its header hash, so the compression function
// is reimplemented directly from RFC 1321 -- justified in DESIGN.md.

var md5S = [64]uint32{
	7, 12, 17, 22, 7, 12, 17, 22, 7, 12, 17, 22, 7, 12, 17, 22,
	5, 9, 14, 20, 5, 9, 14, 20, 5, 9, 14, 20, 5, 9, 14, 20,
	4, 11, 16, 23, 4, 11, 16, 23, 4, 11, 16, 23, 4, 11, 16, 23,
	6, 10, 15, 21, 6, 10, 15, 21, 6, 10, 15, 21, 6, 10, 15, 21,
}

var md5K = [64]uint32{
	0xd76aa478, 0xe8c7b756, 0x242070db, 0xc1bdceee,
	0xf57c0faf, 0x4787c62a, 0xa8304613, 0xfd469501,
	0x698098d8, 0x8b44f7af, 0xffff5bb1, 0x895cd7be,
	0x6b901122, 0xfd987193, 0xa679438e, 0x49b40821,
	0xf61e2562, 0xc040b340, 0x265e5a51, 0xe9b6c7aa,
	0xd62f105d, 0x02441453, 0xd8a1e681, 0xe7d3fbc8,
	0x21e1cde6, 0xc33707d6, 0xf4d50d87, 0x455a14ed,
	0xa9e3e905, 0xfcefa3f8, 0x676f02d9, 0x8d2a4c8a,
	0xfffa3942, 0x8771f681, 0x6d9d6122, 0xfde5380c,
	0xa4beea44, 0x4bdecfa9, 0xf6bb4b60, 0xbebfbc70,
	0x289b7ec6, 0xeaa127fa, 0xd4ef3085, 0x04881d05,
	0xd9d4d039, 0xe6db99e5, 0x1fa27cf8, 0xc4ac5665,
	0xf4292244, 0x432aff97, 0xab9423a7, 0xfc93a039,
	0x655b59c3, 0x8f0ccc92, 0xffeff47d, 0x85845dd1,
	0x6fa87e4f, 0xfe2ce6e0, 0xa3014314, 0x4e0811a1,
	0xf7537e82, 0xbd3af235, 0x2ad7d2bb, 0xeb86d391,
}

// DefaultMD5IV is crypto/md5's standard initial state.
var DefaultMD5IV = [4]uint32{0x67452301, 0xEFCDAB89, 0x98BADCFE, 0x10325476}

// CPZ7HeaderMD5IV is the alternate IV CPZ7 uses to hash its embedded "cpz7"
// block header.
var CPZ7HeaderMD5IV = [4]uint32{0xC74A2B02, 0xE7C8AB8F, 0x38BEBC4E, 0x7531A4C3}

// MD5WithIV runs the standard MD5 compression function (RFC 1321) over data
// starting from the given initial state, returning the resulting 16-byte
// digest with the same little-endian word layout crypto/md5 uses.
func MD5WithIV(data []byte, iv [4]uint32) [16]byte {
	a0, b0, c0, d0 := iv[0], iv[1], iv[2], iv[3]

	msg := padMD5(data)

	for chunk := 0; chunk < len(msg); chunk += 64 {
		var m [16]uint32
		for i := 0; i < 16; i++ {
			o := chunk + i*4
			m[i] = uint32(msg[o]) | uint32(msg[o+1])<<8 | uint32(msg[o+2])<<16 | uint32(msg[o+3])<<24
		}

		a, b, c, d := a0, b0, c0, d0
		for i := 0; i < 64; i++ {
			var f uint32
			var g int
			switch {
			case i < 16:
				f = (b & c) | (^b & d)
				g = i
			case i < 32:
				f = (d & b) | (^d & c)
				g = (5*i + 1) % 16
			case i < 48:
				f = b ^ c ^ d
				g = (3*i + 5) % 16
			default:
				f = c ^ (b | ^d)
				g = (7 * i) % 16
			}
			f = f + a + md5K[i] + m[g]
			a = d
			d = c
			c = b
			b = b + bits.RotateLeft32(f, int(md5S[i]))
		}
		a0 += a
		b0 += b
		c0 += c
		d0 += d
	}

	var out [16]byte
	putU32LE(out[0:4], a0)
	putU32LE(out[4:8], b0)
	putU32LE(out[8:12], c0)
	putU32LE(out[12:16], d0)
	return out
}

func putU32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func padMD5(data []byte) []byte {
	origLenBits := uint64(len(data)) * 8
	padded := append([]byte{}, data...)
	padded = append(padded, 0x80)
	for len(padded)%64 != 56 {
		padded = append(padded, 0)
	}
	var lenBytes [8]byte
	for i := 0; i < 8; i++ {
		lenBytes[i] = byte(origLenBits >> (8 * i))
	}
	padded = append(padded, lenBytes[:]...)
	return padded
}
