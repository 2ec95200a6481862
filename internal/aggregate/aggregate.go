// Package aggregate drives one job end to end: fetch every distribution,
// walk its archive, scan each entry, and roll the results up into a
// model.PackageScanResult. Grounded on scan_distribution in scanner.rs,
// which the original called once per distribution URL inside the job
// loop; here the loop itself lives in this package so internal/worker
// only has to call Run once per job.
package aggregate

import (
	"context"
	"fmt"

	"github.com/vipyrsec/dragonfly-worker/internal/archivewalk"
	"github.com/vipyrsec/dragonfly-worker/internal/fetcher"
	"github.com/vipyrsec/dragonfly-worker/internal/model"
	"github.com/vipyrsec/dragonfly-worker/internal/scanengine"
)

// Downloader is satisfied by *fetcher.Fetcher; narrowed for testability.
type Downloader interface {
	Fetch(ctx context.Context, url string) ([]byte, fetcher.Kind, error)
}

// InspectorURLFunc rewrites a distribution download URL into the base
// inspector URL for that package/version (utils.rs's create_inspector_url,
// grounded in internal/submission).
type InspectorURLFunc func(name, version, downloadURL string) (string, error)

// Run scans every distribution named in job.Distributions, in order, and
// returns the aggregated package result. Per spec §4.6/§7, any error
// scanning any single distribution fails the whole job — the caller is
// expected to submit a failure body using the returned error's message.
func Run(ctx context.Context, job model.Job, dl Downloader, scanner scanengine.Scanner, maxEntrySize int64, inspectorURL InspectorURLFunc) (model.PackageScanResult, error) {
	result := model.PackageScanResult{
		Name:        job.Name,
		Version:     job.Version,
		RulesetHash: job.Hash,
	}

	for _, url := range job.Distributions {
		data, kind, err := dl.Fetch(ctx, url)
		if err != nil {
			return model.PackageScanResult{}, fmt.Errorf("fetch distribution %s: %w", url, err)
		}

		walker, err := archivewalk.Open(kind, data)
		if err != nil {
			return model.PackageScanResult{}, fmt.Errorf("open distribution %s: %w", url, err)
		}

		files, err := scanengine.Scan(ctx, walker, scanner, maxEntrySize)
		if err != nil {
			return model.PackageScanResult{}, fmt.Errorf("scan distribution %s: %w", url, err)
		}

		base, err := inspectorURL(job.Name, job.Version, url)
		if err != nil {
			return model.PackageScanResult{}, fmt.Errorf("build inspector url for %s: %w", url, err)
		}

		result.Distributions = append(result.Distributions, model.DistributionScanResult{
			BaseInspectorURL: base,
			Files:            files,
		})
	}

	return result, nil
}
