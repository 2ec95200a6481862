// Package scanengine scans a single downloaded distribution entry by
// entry against the compiled rule set, producing the per-file and
// per-distribution results the aggregator later rolls up. Grounded on
// scanner.rs's scan_tarball/scan_zipfile, generalized to walk either
// archive format through archivewalk.Walker.
package scanengine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/vipyrsec/dragonfly-worker/internal/archivewalk"
	"github.com/vipyrsec/dragonfly-worker/internal/model"
	"github.com/vipyrsec/dragonfly-worker/internal/ruleengine"
)

// ErrEntryTooLarge is the message that starts the reason of the
// model.Failure Scan returns when a single archive entry's size exceeds
// maxScanSize (the error itself is not wrapped, so errors.Is does not
// match it); per spec §4.5 this fails the whole distribution rather than
// just skipping the entry.
var ErrEntryTooLarge = errors.New("archive entry exceeds max scan size")

const scanTimeout = 10 * time.Second

// ScanTimeout is exposed for tests; production code always uses the
// 10-second default the original scanner hard-coded (rules.scan_mem(..,
// 10)).
func ScanTimeout() time.Duration { return scanTimeout }

// entryTooLarge reports an oversize archive entry as a model.Failure, so
// the failure submission's reason carries the offending path (spec §7)
// and errors.As recovers model.FailureTooLarge the same way it does for
// the fetch-stage failures internal/fetcher.Fetch returns.
func entryTooLarge(path string, size int64) error {
	return model.Failure{
		Kind:   model.FailureTooLarge,
		Reason: fmt.Sprintf("%s: %s (%d bytes)", ErrEntryTooLarge, path, size),
	}
}

// Scanner is satisfied by *ruleengine.Rules; narrowed to an interface so
// tests can exercise Scan without compiling real YARA rules.
type Scanner interface {
	ScanMem(data []byte, timeout time.Duration) ([]ruleengine.Match, error)
}

// Scan walks every entry in w, scanning each against rules, and returns
// one model.FileScanResult per regular file. An oversize entry aborts the
// whole distribution (matching the original's "read into one Vec<u8>,
// fail the buffer" behavior, made explicit as a size check before read).
func Scan(ctx context.Context, w archivewalk.Walker, rules Scanner, maxEntrySize int64) ([]model.FileScanResult, error) {
	var out []model.FileScanResult
	for {
		entry, r, err := w.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("walk archive: %w", err)
		}

		if entry.Size > maxEntrySize {
			return nil, entryTooLarge(entry.Path, entry.Size)
		}

		data, err := io.ReadAll(io.LimitReader(r, maxEntrySize+1))
		if err != nil {
			return nil, fmt.Errorf("read archive entry %s: %w", entry.Path, err)
		}
		if int64(len(data)) > maxEntrySize {
			return nil, entryTooLarge(entry.Path, int64(len(data)))
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		matches, err := rules.ScanMem(data, scanTimeout)
		if err != nil {
			return nil, fmt.Errorf("scan archive entry %s: %w", entry.Path, err)
		}

		out = append(out, model.FileScanResult{
			Path:  entry.Path,
			Rules: toRuleScores(entry.Path, matches),
		})
	}
	return out, nil
}

// toRuleScores applies filetype gating: a rule's match is kept only if
// its filetype list is empty or the entry's path ends with one of the
// declared suffixes (plain suffix comparison, no case folding — spec §5).
func toRuleScores(path string, matches []ruleengine.Match) []model.RuleScore {
	scores := make([]model.RuleScore, 0, len(matches))
	for _, m := range matches {
		if !filetypeMatches(path, m.Filetypes) {
			continue
		}
		scores = append(scores, model.RuleScore{Name: m.RuleName, Weight: m.Weight})
	}
	return scores
}

func filetypeMatches(path string, filetypes []string) bool {
	if len(filetypes) == 0 {
		return true
	}
	for _, suffix := range filetypes {
		if len(path) >= len(suffix) && path[len(path)-len(suffix):] == suffix {
			return true
		}
	}
	return false
}
