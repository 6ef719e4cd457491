package vnarc

import (
	"context"
	"errors"
	"sort"
	"testing"
)

func newFakeArchive(entries []FileEntry, fail map[string]bool) *Archive {
	root := BuildDirectoryTree(entries)
	return NewArchiveFromReaderAt("fake", nil, root, entries, func(a *Archive, e FileEntry) ([]byte, string, error) {
		if fail[e.FullPath] {
			return nil, "", errors.New("boom: " + e.FullPath)
		}
		return []byte(e.FullPath), "", nil
	})
}

func TestExtractAllSucceedsForEveryEntry(t *testing.T) {
	entries := []FileEntry{
		{Name: "a.txt", FullPath: "a.txt"},
		{Name: "b.txt", FullPath: "dir/b.txt"},
		{Name: "c.txt", FullPath: "dir/c.txt"},
	}
	arc := newFakeArchive(entries, nil)

	results, err := ExtractAll(context.Background(), arc, arc.root, ExtractAllOptions{})
	if err != nil {
		t.Fatalf("ExtractAll: unexpected error %v", err)
	}
	if len(results) != len(entries) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(entries))
	}

	var paths []string
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("entry %s: unexpected error %v", r.Entry.FullPath, r.Err)
		}
		if string(r.Contents.Data) != r.Entry.FullPath {
			t.Errorf("entry %s: contents = %q, want %q", r.Entry.FullPath, r.Contents.Data, r.Entry.FullPath)
		}
		paths = append(paths, r.Entry.FullPath)
	}
	sort.Strings(paths)
	want := []string{"a.txt", "dir/b.txt", "dir/c.txt"}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("paths = %v, want %v", paths, want)
		}
	}
}

func TestExtractAllRecordsPerEntryFailureWithoutFailFast(t *testing.T) {
	entries := []FileEntry{
		{Name: "ok.txt", FullPath: "ok.txt"},
		{Name: "bad.txt", FullPath: "bad.txt"},
	}
	arc := newFakeArchive(entries, map[string]bool{"bad.txt": true})

	results, err := ExtractAll(context.Background(), arc, arc.root, ExtractAllOptions{})
	if err != nil {
		t.Fatalf("ExtractAll without FailFast: want nil batch error, got %v", err)
	}

	var sawFailure, sawSuccess bool
	for _, r := range results {
		switch r.Entry.FullPath {
		case "bad.txt":
			if r.Err == nil {
				t.Error("bad.txt: want a per-entry error, got nil")
			}
			sawFailure = true
		case "ok.txt":
			if r.Err != nil {
				t.Errorf("ok.txt: unexpected error %v", r.Err)
			}
			sawSuccess = true
		}
	}
	if !sawFailure || !sawSuccess {
		t.Fatalf("expected both a failing and a succeeding result, got %+v", results)
	}
}

func TestExtractAllFailFastReturnsBatchError(t *testing.T) {
	entries := []FileEntry{
		{Name: "bad.txt", FullPath: "bad.txt"},
	}
	arc := newFakeArchive(entries, map[string]bool{"bad.txt": true})

	_, err := ExtractAll(context.Background(), arc, arc.root, ExtractAllOptions{FailFast: true})
	if err == nil {
		t.Fatal("ExtractAll with FailFast and a failing entry: want a batch error, got nil")
	}
}
