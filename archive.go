// Package vnarc is a reverse-engineering library for proprietary Japanese
// visual-novel archive containers and their embedded bespoke pixel codecs.
// Given a path, a Dispatcher classifies the container flavor, a Scheme
// parses its directory, and the resulting Archive exposes a navigable tree
// of entries plus per-entry extraction into raw bytes or a decoded
// ResourceType.
package vnarc

import (
	"io"
	"os"
	"strings"

	"github.com/hazukino/vnarc/codec"
	"github.com/hazukino/vnarc/internal/ioat"
)

// Image and SpriteSheet are aliases for the codec package's canonical
// decoded-pixel types, so callers never need to import codec themselves
// just to hold a decoded ResourceType.
type Image = codec.Image
type SpriteSheet = codec.SpriteSheet

// FileEntry is one member of an archive: a display name, a full
// slash-separated virtual path, its stored byte range, and whatever
// decryption material its owning parser captured for it. Full paths never
// contain backslashes; callers must not mutate Extra.
type FileEntry struct {
	Name           string
	FullPath       string
	Offset         int64
	Size           int64
	UncompressedSize int64
	Extra          any
}

// normalizePath converts backslashes to forward slashes, per every
// container parser's name-decoding contract.
func normalizePath(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// Directory is a recursive aggregate: a list of FileEntry belonging directly
// to it, plus a mapping from child directory name to child Directory. Built
// once from a flat FileEntry list by splitting each full path on "/" and
// inserting it into the tree. Insertion order among sibling files is
// preserved; map iteration order for subdirectories is not meaningful (see
// NavigableDirectory.Children for the lexicographic listing order).
type Directory struct {
	Name     string
	Files    []FileEntry
	Children map[string]*Directory
}

func newDirectory(name string) *Directory {
	return &Directory{Name: name, Children: make(map[string]*Directory)}
}

// BuildDirectoryTree inserts every entry into a fresh root Directory by
// splitting FullPath on "/". Every FileEntry ends up in exactly one
// Directory.
func BuildDirectoryTree(entries []FileEntry) *Directory {
	root := newDirectory("")
	for _, e := range entries {
		parts := strings.Split(strings.Trim(e.FullPath, "/"), "/")
		cur := root
		for _, part := range parts[:len(parts)-1] {
			child, ok := cur.Children[part]
			if !ok {
				child = newDirectory(part)
				cur.Children[part] = child
			}
			cur = child
		}
		cur.Files = append(cur.Files, e)
	}
	return root
}

// NavigableDirectory is a cursor over an immutable Directory tree,
// supporting "open child", "back to parent", and "current full path". The
// underlying tree never mutates after construction.
type NavigableDirectory struct {
	root *Directory
	path []*Directory
}

// NewNavigableDirectory returns a cursor rooted at root, positioned at root.
func NewNavigableDirectory(root *Directory) *NavigableDirectory {
	return &NavigableDirectory{root: root, path: []*Directory{root}}
}

func (n *NavigableDirectory) current() *Directory { return n.path[len(n.path)-1] }

// Current returns the Directory the cursor currently points at.
func (n *NavigableDirectory) Current() *Directory { return n.current() }

// CurrentPath returns the slash-separated path of the cursor's position.
func (n *NavigableDirectory) CurrentPath() string {
	var parts []string
	for _, d := range n.path[1:] {
		parts = append(parts, d.Name)
	}
	return strings.Join(parts, "/")
}

// Open descends into the named child directory, returning false if there is
// no such child.
func (n *NavigableDirectory) Open(name string) bool {
	child, ok := n.current().Children[name]
	if !ok {
		return false
	}
	n.path = append(n.path, child)
	return true
}

// Back returns to the parent directory, a no-op at the root.
func (n *NavigableDirectory) Back() {
	if len(n.path) > 1 {
		n.path = n.path[:len(n.path)-1]
	}
}

// Children lists immediate subdirectory names in lexicographic order.
func (n *NavigableDirectory) Children() []string {
	cur := n.current()
	names := make([]string, 0, len(cur.Children))
	for name := range cur.Children {
		names = append(names, name)
	}
	sortStrings(names)
	return names
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// walkEntries collects every FileEntry reachable from d, recursing into
// children in insertion-then-lexicographic order.
func walkEntries(d *Directory, out *[]FileEntry) {
	*out = append(*out, d.Files...)
	names := make([]string, 0, len(d.Children))
	for name := range d.Children {
		names = append(names, name)
	}
	sortStrings(names)
	for _, name := range names {
		walkEntries(d.Children[name], out)
	}
}

// FileContents is the result of extracting one entry: the decoded/decrypted
// bytes plus an optional type hint steering the ResourceDispatcher (only
// "IAR" is used; every other format is classified later by magic).
type FileContents struct {
	Data     []byte
	TypeHint string
}

// ResourceType is the sum {Image, Sheet, Text, Opaque} a pixel codec
// produces. Exactly one field is populated.
type ResourceType = codec.ResourceType

// Scheme disambiguates a format variant a caller must pick among (e.g. which
// game's key table to use). A Scheme is a value type: it carries no open
// file handle.
type Scheme struct {
	Tag  ContainerTag
	Name string
	// Parse opens path under this scheme and returns the resulting Archive
	// and a cursor over its directory tree.
	Parse func(path string) (*Archive, *NavigableDirectory, error)
}

// Archive owns an open random-access reader, the parsed directory, and
// whatever scheme-specific state (keys, schedules, decrypt tables) its
// parser computed once at parse time. Never mutated after construction.
type Archive struct {
	SchemeName string
	reader     io.ReaderAt
	closer     io.Closer
	root       *Directory
	entries    []FileEntry
	extractFn  func(a *Archive, e FileEntry) ([]byte, string, error)
}

// NewArchive constructs an Archive from an already-opened file, a parsed
// directory tree, and the scheme's per-entry extraction function.
func NewArchive(schemeName string, f *os.File, root *Directory, entries []FileEntry, extractFn func(a *Archive, e FileEntry) ([]byte, string, error)) *Archive {
	return &Archive{
		SchemeName: schemeName,
		reader:     ioat.Opener(f),
		closer:     f,
		root:       root,
		entries:    entries,
		extractFn:  extractFn,
	}
}

// NewArchiveFromReaderAt builds an Archive over an arbitrary io.ReaderAt
// (e.g. ioat.BytesReaderAt, when a parser must pre-decrypt the whole file
// into memory before entries can be read positionally).
func NewArchiveFromReaderAt(schemeName string, r io.ReaderAt, root *Directory, entries []FileEntry, extractFn func(a *Archive, e FileEntry) ([]byte, string, error)) *Archive {
	return &Archive{
		SchemeName: schemeName,
		reader:     r,
		root:       root,
		entries:    entries,
		extractFn:  extractFn,
	}
}

// Files returns every FileEntry in the archive, in on-disk-then-lexicographic
// order.
func (a *Archive) Files() []FileEntry {
	var out []FileEntry
	walkEntries(a.root, &out)
	return out
}

// NavigableRoot returns a fresh cursor positioned at the archive's root.
func (a *Archive) NavigableRoot() *NavigableDirectory {
	return NewNavigableDirectory(a.root)
}

// Extract performs the scheme's per-entry decrypt/decompress pipeline. It is
// a pure function of the entry and the handle: calling it twice returns
// byte-identical blocks.
func (a *Archive) Extract(e FileEntry) (FileContents, error) {
	data, hint, err := a.extractFn(a, e)
	if err != nil {
		return FileContents{}, err
	}
	return FileContents{Data: data, TypeHint: hint}, nil
}

// ReadAt reads from the archive's underlying file at an absolute offset,
// usable concurrently from multiple goroutines without a shared seek
// cursor.
func (a *Archive) ReadAt(p []byte, off int64) (int, error) {
	return a.reader.ReadAt(p, off)
}

// Close releases the archive's open file handle.
func (a *Archive) Close() error {
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}
