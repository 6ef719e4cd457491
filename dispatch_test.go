package vnarc

import "testing"

func TestClassifyHeadFixedMagics(t *testing.T) {
	cases := []struct {
		prefix []byte
		want   ContainerTag
	}{
		{[]byte("ACV1rest of header..."), TagACV1},
		{[]byte("CPZ7garbage"), TagCPZ7},
		{[]byte("GXP\x00anything"), TagGXP},
		{[]byte("pf8 more bytes"), TagPF8},
		{[]byte("YPF\x00v1"), TagYPF},
		{[]byte("BURIKO ARC20 v1"), TagBuriko},
		{[]byte("ESC-ARC2pad"), TagEscArc2},
		{[]byte{0xc1, 0xf2, 0x5e, 0x79, 0, 0}, TagMalie},
		{[]byte{0x7f, 0x4d, 0x8f, 0xe9, 0, 0}, TagMalie},
		{[]byte("iar pad"), TagIAR},
		{[]byte("NEKOPACKpad"), TagNekopack},
		{[]byte("PAC padding"), TagAmusePac},
		{[]byte("TACTICS_ARC_FILEpad"), TagTacticsArc},
		{[]byte("LINK6\x00\x00pad"), TagLink6},
		{[]byte("totally unknown header"), NotRecognized},
		{[]byte{0, 1}, NotRecognized},
	}
	for _, c := range cases {
		if got := ClassifyHead(c.prefix); got != c.want {
			t.Errorf("ClassifyHead(%q) = %v, want %v", c.prefix, got, c.want)
		}
	}
}

func TestClassifyTailQliePack(t *testing.T) {
	tail := make([]byte, 0x440)
	copy(tail[0x440-0x1C:], []byte("FilePackVer3.0"))
	if got := ClassifyTail(tail); got != TagQliePack {
		t.Fatalf("ClassifyTail(qlie tail) = %v, want %v", got, TagQliePack)
	}

	empty := make([]byte, 0x440)
	if got := ClassifyTail(empty); got != NotRecognized {
		t.Fatalf("ClassifyTail(no marker) = %v, want NotRecognized", got)
	}

	if got := ClassifyTail([]byte{1, 2, 3}); got != NotRecognized {
		t.Fatalf("ClassifyTail(short buffer) = %v, want NotRecognized", got)
	}
}

func TestIsUniversalMatchesSchemeCardinality(t *testing.T) {
	// Multi-scheme (per-game) tags must not be marked universal, and every
	// universal tag must resolve to exactly one scheme.
	perGameTags := []ContainerTag{TagACV1, TagCPZ7, TagMalie, TagTacticsArc}
	for _, tag := range perGameTags {
		if IsUniversal(tag) {
			t.Errorf("IsUniversal(%v) = true, want false (per-game scheme set)", tag)
		}
		if len(SchemesFor(tag)) < 2 {
			t.Errorf("SchemesFor(%v) returned %d schemes, want at least 2", tag, len(SchemesFor(tag)))
		}
	}

	for tag := range universalTags {
		schemes := SchemesFor(tag)
		if len(schemes) != 1 {
			t.Errorf("SchemesFor(%v) returned %d schemes, want exactly 1", tag, len(schemes))
		}
	}
}

func TestAllSchemesCoversEveryTag(t *testing.T) {
	seen := make(map[ContainerTag]bool)
	for _, s := range AllSchemes() {
		seen[s.Tag] = true
		if s.Name == "" {
			t.Errorf("scheme for tag %v has an empty Name", s.Tag)
		}
		if s.Parse == nil {
			t.Errorf("scheme %q for tag %v has a nil Parse func", s.Name, s.Tag)
		}
	}
	allTags := []ContainerTag{
		TagACV1, TagCPZ7, TagGXP, TagPF8, TagYPF, TagBuriko, TagEscArc2,
		TagMalie, TagIAR, TagQliePack, TagNekopack, TagAmusePac,
		TagTacticsArc, TagLink6, TagSilky, TagWillPlus,
	}
	for _, tag := range allTags {
		if !seen[tag] {
			t.Errorf("AllSchemes() has no entry for tag %v", tag)
		}
	}
}
