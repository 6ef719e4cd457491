package xcrypto

import "crypto/sha1"

// SHA1 is plain RFC 3174 SHA-1 with no substitutable IV or other variant
// behavior, so crypto/sha1 serves it directly -- no hand-rolled version is
// needed here, unlike MD5WithIV.
func SHA1(data []byte) [20]byte { return sha1.Sum(data) }
