// Package archivewalk iterates over the entries of a downloaded
// distribution (tarball or zip) behind one interface, so the scan engine
// doesn't need to know which archive format it's looking at. Grounded on
// scanner.rs's scan_tarball/scan_zipfile, which do the same walk twice
// with near-identical bodies; here that duplication collapses into a
// single Walker consumer.
package archivewalk

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/vipyrsec/dragonfly-worker/internal/fetcher"
)

// Entry describes one file inside an archive, with a declared size that
// the scan engine can check against max_scan_size before reading.
type Entry struct {
	Path string
	Size int64
}

// Walker yields archive entries one at a time. Next returns io.EOF once
// every entry has been visited.
type Walker interface {
	Next() (Entry, io.Reader, error)
}

// Open builds the right Walker for data based on kind. data is the
// decompressed tarball bytes or the raw zip bytes, as produced by
// internal/fetcher.
func Open(kind fetcher.Kind, data []byte) (Walker, error) {
	switch kind {
	case fetcher.KindTarGz: // already decompressed by the fetcher
		return &tarWalker{r: tar.NewReader(bytes.NewReader(data))}, nil
	case fetcher.KindZip:
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, fmt.Errorf("open zip archive: %w", err)
		}
		return &zipWalker{files: zr.File}, nil
	default:
		return nil, fmt.Errorf("archivewalk: unknown archive kind %v", kind)
	}
}

type tarWalker struct {
	r *tar.Reader
}

func (w *tarWalker) Next() (Entry, io.Reader, error) {
	for {
		hdr, err := w.r.Next()
		if err != nil {
			return Entry{}, nil, err // io.EOF propagates as-is
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if !safeEntryPath(hdr.Name) {
			continue
		}
		return Entry{Path: hdr.Name, Size: hdr.Size}, w.r, nil
	}
}

type zipWalker struct {
	files []*zip.File
	idx   int
}

func (w *zipWalker) Next() (Entry, io.Reader, error) {
	for w.idx < len(w.files) {
		f := w.files[w.idx]
		w.idx++
		if f.FileInfo().IsDir() {
			continue
		}
		if !safeEntryPath(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return Entry{}, nil, fmt.Errorf("open zip entry %s: %w", f.Name, err)
		}
		return Entry{Path: f.Name, Size: int64(f.UncompressedSize64)}, rc, nil
	}
	return Entry{}, nil, io.EOF
}

// safeEntryPath rejects absolute paths and parent-directory traversal, so
// a hostile archive entry can never be interpreted as a path outside the
// in-memory scan (spec §4.5 step 1).
func safeEntryPath(name string) bool {
	if name == "" || path.IsAbs(name) || strings.HasPrefix(name, "/") {
		return false
	}
	clean := path.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return false
	}
	return true
}
