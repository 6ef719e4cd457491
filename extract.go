package vnarc

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// ExtractResult pairs one entry with its extraction outcome, for callers
// that opt into per-entry failure reporting rather than all-or-nothing:
// each entry's failure is surfaced individually and the batch continues.
type ExtractResult struct {
	Entry    FileEntry
	Contents FileContents
	Err      error
}

// ExtractAllOptions configures ExtractAll's worker pool.
type ExtractAllOptions struct {
	// Concurrency bounds the number of simultaneous extractions. Zero means
	// unbounded (errgroup.SetLimit(-1)).
	Concurrency int
	// FailFast aborts the whole batch on the first entry error instead of
	// recording it per-entry.
	FailFast bool
	Logger   *slog.Logger
}

// ExtractAll runs Archive.Extract over every entry in dir using a
// data-parallel work pool -- one task per entry, each holding only a read
// reference to the Archive plus its own FileEntry clone. The
// Archive's reader is safe for concurrent positioned reads, so no task
// contends on a shared seek cursor. Result order is unspecified; per-entry
// output bytes are deterministic.
func ExtractAll(ctx context.Context, a *Archive, dir *Directory, opts ExtractAllOptions) ([]ExtractResult, error) {
	var entries []FileEntry
	walkEntries(dir, &entries)

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	results := make([]ExtractResult, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	if opts.Concurrency > 0 {
		g.SetLimit(opts.Concurrency)
	}

	for i, e := range entries {
		i, e := i, e
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			contents, err := a.Extract(e)
			if err != nil {
				logger.Warn("extract_all: entry failed", "path", e.FullPath, "error", err)
				results[i] = ExtractResult{Entry: e, Err: err}
				if opts.FailFast {
					return err
				}
				return nil
			}
			results[i] = ExtractResult{Entry: e, Contents: contents}
			return nil
		})
	}

	if err := g.Wait(); err != nil && opts.FailFast {
		return results, err
	}
	return results, nil
}
