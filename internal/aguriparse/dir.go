package aguriparse

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// FileResult is one input file's parsed contents.
type FileResult struct {
	Path       string
	Entries    []Entry
	Boundaries []Boundary
}

// isDotfile reports whether name should be skipped during directory scan,
// grounded on the source's isdotfile check in agurim_file.c — any name
// starting with '.', not just the literal "." and "..".
func isDotfile(name string) (ok bool) {
	return strings.HasPrefix(name, ".")
}

// ParseStdin parses Aguri-formatted input from r (typically os.Stdin),
// mirroring the source's read_stdin path for re-aggregation-mode runs with
// no positional file/directory arguments.
func ParseStdin(r *os.File) (res *FileResult, err error) {
	entries, boundaries, err := ParseReader(r)
	if err != nil {
		return nil, fmt.Errorf("aguriparse: parse stdin: %w", err)
	}

	return &FileResult{Path: "-", Entries: entries, Boundaries: boundaries}, nil
}

// ParseFile opens path and parses it. An open failure is reported rather
// than silently swallowed here; [ScanPaths] is what applies the spec's
// "skip unreadable file, continue" policy, logging the error and moving on.
// maxBytes, if positive, rejects a file larger than that size outright
// rather than reading it, guarding against a runaway input swamping the
// in-memory flow store.
func ParseFile(path string, maxBytes int64) (res *FileResult, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("aguriparse: open %s: %w", path, err)
	}
	defer f.Close()

	if maxBytes > 0 {
		info, statErr := f.Stat()
		if statErr != nil {
			return nil, fmt.Errorf("aguriparse: stat %s: %w", path, statErr)
		}
		if info.Size() > maxBytes {
			return nil, fmt.Errorf("aguriparse: %s: %d bytes exceeds the %d byte limit", path, info.Size(), maxBytes)
		}
	}

	entries, boundaries, err := ParseReader(f)
	if err != nil {
		return nil, fmt.Errorf("aguriparse: parse %s: %w", path, err)
	}

	return &FileResult{Path: path, Entries: entries, Boundaries: boundaries}, nil
}

// listDir returns dir's entries in alphabetical order, dotfiles excluded,
// mirroring agurim_file.c's read_dir (scandir + alphasort).
func listDir(dir string) (names []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("aguriparse: read dir %s: %w", dir, err)
	}

	for _, e := range entries {
		if isDotfile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}

	sort.Strings(names)

	return names, nil
}

// ScanPaths walks paths (files or directories, directories scanned
// non-recursively and alphabetically per agurim_file.c's read_dir),
// parsing every file found. Up to concurrency files are parsed at once via
// an errgroup; a file that fails to open, read, or fit within maxBytes (0
// meaning no limit) is logged to stderr and skipped, matching the spec's
// I/O-open-failure policy — iteration continues with the remaining
// siblings rather than aborting the run.
func ScanPaths(ctx context.Context, paths []string, concurrency int, maxBytes int64) (results []*FileResult, err error) {
	var files []string
	for _, p := range paths {
		info, statErr := os.Stat(p)
		if statErr != nil {
			fmt.Fprintf(os.Stderr, "aguriparse: %v\n", statErr)

			continue
		}

		if !info.IsDir() {
			files = append(files, p)

			continue
		}

		names, dirErr := listDir(p)
		if dirErr != nil {
			fmt.Fprintf(os.Stderr, "aguriparse: %v\n", dirErr)

			continue
		}

		for _, name := range names {
			files = append(files, filepath.Join(p, name))
		}
	}

	if concurrency < 1 {
		concurrency = 1
	}

	var mu sync.Mutex
	byPath := make(map[string]*FileResult, len(files))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, path := range files {
		path := path
		g.Go(func() (err error) {
			res, ferr := ParseFile(path, maxBytes)
			if ferr != nil {
				fmt.Fprintln(os.Stderr, ferr)

				return nil
			}

			mu.Lock()
			byPath[path] = res
			mu.Unlock()

			return nil
		})
	}

	if err = g.Wait(); err != nil {
		return nil, err
	}

	results = make([]*FileResult, 0, len(files))
	for _, path := range files {
		if res, ok := byPath[path]; ok {
			results = append(results, res)
		}
	}

	return results, nil
}
