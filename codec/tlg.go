package codec

import "github.com/hazukino/vnarc/internal/xerr"

// DecodeTLG covers TLG0/TLG5/TLG6. No TLG decoder appears anywhere in the
// retrieval pack, so rather than hand-rolling TLG's own LZSS+filter pipeline
// without any reference to build from, this marks the format Unimplemented.
func DecodeTLG(buf []byte) (*Image, error) {
	return nil, xerr.Unimplemented("tlg: decoder not vendored, see DESIGN.md")
}
