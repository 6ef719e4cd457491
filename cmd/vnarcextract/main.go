// Command vnarcextract classifies a visual-novel archive, walks its
// directory tree, and extracts every entry to an output directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"
	"github.com/hazukino/vnarc"
)

func main() {
	include := flag.String("include", "", "only extract entries whose full path matches this glob (doublestar syntax)")
	flag.Parse()
	if flag.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "usage: vnarcextract [-include pattern] <archive> <output-dir>")
		os.Exit(1)
	}
	archivePath := flag.Arg(0)
	outDir := flag.Arg(1)

	if err := run(archivePath, outDir, *include); err != nil {
		fmt.Fprintln(os.Stderr, "vnarcextract:", err)
		os.Exit(1)
	}
}

func run(archivePath, outDir, include string) error {
	head, tail, err := readHeadTail(archivePath)
	if err != nil {
		return err
	}

	tag := vnarc.ClassifyHead(head)
	if tag == vnarc.NotRecognized {
		tag = vnarc.ClassifyTail(tail)
	}
	if tag == vnarc.NotRecognized {
		return fmt.Errorf("%s: unrecognized container format", archivePath)
	}

	schemes := vnarc.SchemesFor(tag)
	if len(schemes) == 0 {
		return fmt.Errorf("%s: no scheme registered for tag %s", archivePath, tag)
	}

	var arc *vnarc.Archive
	var lastErr error
	for _, s := range schemes {
		a, _, perr := s.Parse(archivePath)
		if perr != nil {
			lastErr = perr
			continue
		}
		arc = a
		fmt.Fprintf(os.Stderr, "using scheme %q\n", s.Name)
		break
	}
	if arc == nil {
		return fmt.Errorf("%s: every candidate scheme for %s failed, last error: %w", archivePath, tag, lastErr)
	}
	defer arc.Close()

	root := arc.NavigableRoot().Current()
	if include != "" {
		var filtered []vnarc.FileEntry
		for _, e := range arc.Files() {
			ok, err := doublestar.Match(include, e.FullPath)
			if err != nil {
				return fmt.Errorf("-include %q: %w", include, err)
			}
			if ok {
				filtered = append(filtered, e)
			}
		}
		root = vnarc.BuildDirectoryTree(filtered)
	}

	results, err := vnarc.ExtractAll(context.Background(), arc, root, vnarc.ExtractAllOptions{})
	if err != nil {
		return err
	}

	var failures int
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "extract %s: %v\n", r.Entry.FullPath, r.Err)
			failures++
			continue
		}
		fmt.Fprintf(os.Stderr, "%s  %016x\n", r.Entry.FullPath, xxhash.Sum64(r.Contents.Data))
		dest := filepath.Join(outDir, filepath.FromSlash(r.Entry.FullPath))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(dest, r.Contents.Data, 0o644); err != nil {
			return err
		}
	}
	fmt.Fprintf(os.Stderr, "extracted %d entries (%d failed)\n", len(results)-failures, failures)
	return nil
}

// readHeadTail reads the leading and trailing bytes ClassifyHead/ClassifyTail
// need: up to 264 bytes from the front (enough for every fixed-offset magic),
// 64 from the back (enough to cover QLIE's tail marker at len-0x1C).
func readHeadTail(path string) (head, tail []byte, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	size := fi.Size()

	headBuf := make([]byte, min64(264, size))
	if _, err := f.ReadAt(headBuf, 0); err != nil && size > 0 {
		return nil, nil, err
	}

	tailSize := min64(64, size)
	tailBuf := make([]byte, tailSize)
	if tailSize > 0 {
		if _, err := f.ReadAt(tailBuf, size-tailSize); err != nil {
			return nil, nil, err
		}
	}
	return headBuf, tailBuf, nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
