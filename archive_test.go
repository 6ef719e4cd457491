package vnarc

import (
	"reflect"
	"testing"
)

func TestBuildDirectoryTreeAndWalkOrder(t *testing.T) {
	entries := []FileEntry{
		{Name: "b.txt", FullPath: "b.txt"},
		{Name: "script.bin", FullPath: "scenario/script.bin"},
		{Name: "cg1.png", FullPath: "image/cg/cg1.png"},
		{Name: "a.txt", FullPath: "a.txt"},
		{Name: "cg0.png", FullPath: "image/cg/cg0.png"},
	}
	root := BuildDirectoryTree(entries)

	if len(root.Files) != 2 {
		t.Fatalf("root.Files = %d entries, want 2", len(root.Files))
	}
	scenario, ok := root.Children["scenario"]
	if !ok || len(scenario.Files) != 1 || scenario.Files[0].Name != "script.bin" {
		t.Fatalf("scenario/script.bin not placed correctly: %+v", scenario)
	}
	img, ok := root.Children["image"]
	if !ok {
		t.Fatal("missing image/ child directory")
	}
	cg, ok := img.Children["cg"]
	if !ok || len(cg.Files) != 2 {
		t.Fatalf("missing or malformed image/cg directory: %+v", cg)
	}

	var walked []string
	var out []FileEntry
	walkEntries(root, &out)
	for _, e := range out {
		walked = append(walked, e.FullPath)
	}
	want := []string{"b.txt", "a.txt", "image/cg/cg1.png", "image/cg/cg0.png", "scenario/script.bin"}
	if !reflect.DeepEqual(walked, want) {
		t.Fatalf("walkEntries order = %v, want %v", walked, want)
	}
}

func TestNavigableDirectoryOpenBack(t *testing.T) {
	entries := []FileEntry{
		{Name: "x.bin", FullPath: "a/b/x.bin"},
	}
	root := BuildDirectoryTree(entries)
	nav := NewNavigableDirectory(root)

	if nav.CurrentPath() != "" {
		t.Fatalf("CurrentPath() at root = %q, want empty", nav.CurrentPath())
	}
	if !nav.Open("a") {
		t.Fatal("Open(\"a\") failed, expected child to exist")
	}
	if !nav.Open("b") {
		t.Fatal("Open(\"b\") failed, expected child to exist")
	}
	if got, want := nav.CurrentPath(), "a/b"; got != want {
		t.Fatalf("CurrentPath() = %q, want %q", got, want)
	}
	if nav.Open("nonexistent") {
		t.Fatal("Open(\"nonexistent\") succeeded, want false")
	}
	nav.Back()
	if got, want := nav.CurrentPath(), "a"; got != want {
		t.Fatalf("after Back(), CurrentPath() = %q, want %q", got, want)
	}
	nav.Back()
	nav.Back() // no-op past the root
	if got := nav.CurrentPath(); got != "" {
		t.Fatalf("Back() past root, CurrentPath() = %q, want empty", got)
	}
}

func TestNavigableDirectoryChildrenLexicographic(t *testing.T) {
	entries := []FileEntry{
		{Name: "f", FullPath: "zeta/f"},
		{Name: "f", FullPath: "alpha/f"},
		{Name: "f", FullPath: "mid/f"},
	}
	root := BuildDirectoryTree(entries)
	nav := NewNavigableDirectory(root)
	got := nav.Children()
	want := []string{"alpha", "mid", "zeta"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Children() = %v, want %v", got, want)
	}
}

func TestNormalizePathConvertsBackslashes(t *testing.T) {
	if got, want := normalizePath(`scenario\chapter1\script.bin`), "scenario/chapter1/script.bin"; got != want {
		t.Fatalf("normalizePath(...) = %q, want %q", got, want)
	}
}
