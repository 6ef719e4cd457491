package vnarc

import "bytes"

// ContainerTag identifies one of the recognized container flavors.
// NotRecognized is returned when neither classifier matches.
type ContainerTag string

const (
	NotRecognized ContainerTag = ""
	TagACV1       ContainerTag = "ACV1"
	TagCPZ7       ContainerTag = "CPZ7"
	TagGXP        ContainerTag = "GXP"
	TagPF8        ContainerTag = "PF8"
	TagYPF        ContainerTag = "YPF"
	TagBuriko     ContainerTag = "BURIKO_ARC20"
	TagEscArc2    ContainerTag = "ESC-ARC2"
	TagMalie      ContainerTag = "MALIE"
	TagIAR        ContainerTag = "IAR"
	TagQliePack   ContainerTag = "QLIE_PACK"
	TagNekopack   ContainerTag = "NEKOPACK"
	TagAmusePac   ContainerTag = "AMUSE_PAC"
	TagTacticsArc ContainerTag = "TACTICS_ARC"
	TagLink6      ContainerTag = "LINK6"
	TagSilky      ContainerTag = "SILKY"
	TagWillPlus   ContainerTag = "WILLPLUS_ARC"
)

// headMagic is one fixed-offset-0 byte sequence recognized by classify_head.
type headMagic struct {
	tag    ContainerTag
	prefix []byte
}

// Malie carries no printable magic; the original releases fixed on two
// non-ASCII byte quadruplets at offset 0 across their known builds.
var headMagics = []headMagic{
	{TagACV1, []byte("ACV1")},
	{TagCPZ7, []byte("CPZ7")},
	{TagGXP, []byte("GXP\x00")},
	{TagPF8, []byte("pf8")},
	{TagYPF, []byte("YPF\x00")},
	{TagBuriko, []byte("BURIKO ARC20")},
	{TagEscArc2, []byte("ESC-ARC2")},
	{TagMalie, []byte{0xc1, 0xf2, 0x5e, 0x79}},
	{TagMalie, []byte{0x7f, 0x4d, 0x8f, 0xe9}},
	{TagIAR, []byte("iar ")},
	{TagNekopack, []byte("NEKOPACK")},
	{TagAmusePac, []byte("PAC ")},
	{TagTacticsArc, []byte("TACTICS_ARC_FILE")},
	{TagLink6, []byte("LINK6\x00\x00")},
}

// ClassifyHead matches prefix (the first ~16 bytes of a file) against every
// known fixed magic at offset 0, returning NotRecognized on no match. A
// pure function: identical input always yields an identical tag.
func ClassifyHead(prefix []byte) ContainerTag {
	for _, m := range headMagics {
		if len(prefix) >= len(m.prefix) && bytes.Equal(prefix[:len(m.prefix)], m.prefix) {
			return m.tag
		}
	}
	return NotRecognized
}

// qlieTailMarker is the "FilePackVer" string QLIE Pack leaves at
// len(file)-0x1C.
var qlieTailMarker = []byte("FilePackVer")

// ClassifyTail matches the trailing 32 bytes of a file against the QLIE
// Pack tail marker, which classify_head cannot see (QLIE carries no head
// magic). Returns NotRecognized on no match.
func ClassifyTail(tail []byte) ContainerTag {
	const markerOffsetFromEnd = 0x1C
	if len(tail) < markerOffsetFromEnd+len(qlieTailMarker) {
		return NotRecognized
	}
	offset := len(tail) - markerOffsetFromEnd
	if bytes.HasPrefix(tail[offset:], qlieTailMarker) {
		return TagQliePack
	}
	return NotRecognized
}

// universalTags lists every container flavor whose extraction needs no
// per-game key table -- a single Scheme suffices.
var universalTags = map[ContainerTag]bool{
	TagGXP:        true,
	TagPF8:        true,
	TagYPF:        true,
	TagBuriko:     true,
	TagEscArc2:    true,
	TagIAR:        true,
	TagQliePack:   true,
	TagNekopack:   true,
	TagAmusePac:   true,
	TagLink6:      true,
	TagSilky:      true,
	TagWillPlus:   true,
}

// IsUniversal reports whether tag needs no per-game key table to extract.
func IsUniversal(tag ContainerTag) bool { return universalTags[tag] }

// SchemesFor returns every Scheme registered for tag: one entry for
// universal formats (QLIE Pack included), several per-game entries for
// ACV1/CPZ7/Malie/Tactics Arc.
func SchemesFor(tag ContainerTag) []Scheme {
	var out []Scheme
	for _, s := range AllSchemes() {
		if s.Tag == tag {
			out = append(out, s)
		}
	}
	return out
}

// AllSchemes is the flat concatenation of every tag's scheme list.
func AllSchemes() []Scheme {
	var out []Scheme
	out = append(out, acv1Schemes()...)
	out = append(out, cpz7Schemes()...)
	out = append(out, Scheme{Tag: TagGXP, Name: "[GXP] Universal", Parse: parseGXP})
	out = append(out, Scheme{Tag: TagPF8, Name: "[PF8] Universal", Parse: parsePF8})
	out = append(out, Scheme{Tag: TagYPF, Name: "[YPF] Universal", Parse: parseYPF})
	out = append(out, Scheme{Tag: TagBuriko, Name: "[Buriko ARC20] Universal", Parse: parseBuriko})
	out = append(out, Scheme{Tag: TagEscArc2, Name: "[ESC-ARC2] Universal", Parse: parseEscArc2})
	out = append(out, malieSchemes()...)
	out = append(out, Scheme{Tag: TagIAR, Name: "[IAR] Universal", Parse: parseIAR})
	out = append(out, Scheme{Tag: TagQliePack, Name: "[QLIE Pack] Universal", Parse: parseQliePack})
	out = append(out, Scheme{Tag: TagNekopack, Name: "[Nekopack] Universal", Parse: parseNekopack})
	out = append(out, Scheme{Tag: TagAmusePac, Name: "[AMUSE PAC] Universal", Parse: parseAmusePac})
	out = append(out, tacticsArcSchemes()...)
	out = append(out, Scheme{Tag: TagLink6, Name: "[LINK6] Universal", Parse: parseLink6})
	out = append(out, Scheme{Tag: TagSilky, Name: "[Silky] Universal", Parse: parseSilky})
	out = append(out, Scheme{Tag: TagWillPlus, Name: "[WillPlus Arc] Universal", Parse: parseWillPlusArc})
	return out
}
