// Package fetcher downloads package distributions for scanning. Grounded
// on api.rs's fetch_tarball/fetch_zipfile: stream the HTTP response into
// memory, decompressing gzip on the way for .tar.gz URLs, and enforce the
// configured size ceiling before the distribution is handed to a scanner.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/vipyrsec/dragonfly-worker/internal/model"
)

// Kind identifies which archive format a distribution uses, inferred from
// its download URL suffix.
type Kind int

const (
	KindUnknown Kind = iota
	KindTarGz
	KindZip
)

// KindFromURL maps a ".tar.gz" URL to KindTarGz and a ".zip" or ".whl"
// URL (sdists built as zip archives, and wheels) to KindZip. Any other
// suffix is KindUnknown, which Fetch rejects without downloading; such a
// URL is not tried as a zip archive.
func KindFromURL(url string) Kind {
	switch {
	case strings.HasSuffix(url, ".tar.gz"):
		return KindTarGz
	case strings.HasSuffix(url, ".zip"), strings.HasSuffix(url, ".whl"):
		return KindZip
	default:
		return KindUnknown
	}
}

// Fetcher downloads distributions over HTTP with a global size cap.
type Fetcher struct {
	http        *http.Client
	maxScanSize int64
}

// New constructs a Fetcher. maxScanSize bounds the bytes Fetch returns for
// any single distribution: the decompressed tarball, or the raw zip file
// (spec §6 max_scan_size).
func New(httpClient *http.Client, maxScanSize int64) *Fetcher {
	return &Fetcher{http: httpClient, maxScanSize: maxScanSize}
}

// Fetch downloads url and returns its fully decompressed bytes (for
// .tar.gz) or its raw bytes (for zip, whose central directory requires
// random access and is read by archivewalk directly from the buffer).
//
// The global max_scan_size cap is enforced here by limiting the total
// bytes read from the transport — but per spec §4.3 that truncation is
// silent: Fetch never fails merely because a distribution is large. A
// truncated zip fails to parse in archivewalk.Open. A truncated tarball
// fails while its entries are walked in scanengine.Scan, except when the
// cut falls exactly on an entry boundary: the tar reader then sees a clean
// end, and the entries past the cut are not scanned.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, Kind, error) {
	kind := KindFromURL(url)
	if kind == KindUnknown {
		return nil, kind, model.Failure{Kind: model.FailureUnsupportedDistribution, Reason: fmt.Sprintf("unsupported distribution type: %s", url)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, kind, err
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, kind, model.Failure{Kind: model.FailureFetch, Reason: fmt.Sprintf("download %s: %s", url, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, kind, model.Failure{Kind: model.FailureFetch, Reason: fmt.Sprintf("download %s returned status %d", url, resp.StatusCode)}
	}

	var reader io.Reader = resp.Body
	if kind == KindTarGz {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, kind, fmt.Errorf("open gzip stream for %s: %w", url, err)
		}
		defer gz.Close()
		reader = gz
	}

	limited := io.LimitReader(reader, f.maxScanSize)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, kind, fmt.Errorf("read %s: %w", url, err)
	}

	return data, kind, nil
}
