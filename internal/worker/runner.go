package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/vipyrsec/dragonfly-worker/internal/aggregate"
	"github.com/vipyrsec/dragonfly-worker/internal/model"
	"github.com/vipyrsec/dragonfly-worker/internal/scanengine"
	"github.com/vipyrsec/dragonfly-worker/internal/submission"
)

// ResultSubmitter is satisfied by *apiclient.Client.
type ResultSubmitter interface {
	SubmitSuccess(ctx context.Context, result model.PackageScanResult) error
	SubmitFailure(ctx context.Context, name, version, reason string) error
}

// RuleProvider is satisfied by *rulestore.Store.
type RuleProvider interface {
	Current() (scanengine.Scanner, string)
}

// ScanMetrics is the narrow slice of telemetry.Instruments the runner
// records against.
type ScanMetrics struct {
	JobsSucceeded func(ctx context.Context)
	JobsFailed    func(ctx context.Context)
	ScanDuration  func(ctx context.Context, seconds float64)
}

// Runner scans a single job and always produces exactly one submission,
// success or failure, never leaving a job unreported (spec §4.6).
type Runner struct {
	downloader aggregate.Downloader
	rules      RuleProvider
	submitter  ResultSubmitter
	maxEntry   int64
	metrics    ScanMetrics
}

// NewRunner constructs a Runner.
func NewRunner(downloader aggregate.Downloader, rules RuleProvider, submitter ResultSubmitter, maxEntrySize int64, metrics ScanMetrics) *Runner {
	return &Runner{downloader: downloader, rules: rules, submitter: submitter, maxEntry: maxEntrySize, metrics: metrics}
}

// Run scans job and submits its result. Errors from submission itself are
// logged, not returned: a failed submission has no further recovery path
// available to the runner (spec §4.1 gives the worker no retry queue).
//
// Every invocation gets its own correlation ID so the fetch/scan/submit
// log lines for one job can be grepped out of a busy pool's interleaved
// output, the way a request ID threads through the gateway's access log.
func (r *Runner) Run(ctx context.Context, job model.Job) {
	correlationID := uuid.NewString()
	log := slog.With("correlation_id", correlationID, "name", job.Name, "version", job.Version)

	start := time.Now()
	scanner, hash := r.rules.Current()

	result, err := aggregate.Run(ctx, job, r.downloader, scanner, r.maxEntry, submission.InspectorURL)
	if r.metrics.ScanDuration != nil {
		r.metrics.ScanDuration(ctx, time.Since(start).Seconds())
	}

	if err != nil {
		log.Warn("job failed", "error", err)
		if r.metrics.JobsFailed != nil {
			r.metrics.JobsFailed(ctx)
		}
		if subErr := r.submitter.SubmitFailure(ctx, job.Name, job.Version, err.Error()); subErr != nil {
			log.Error("failed to submit failure result", "error", subErr)
		}
		return
	}

	result.RulesetHash = hash
	if r.metrics.JobsSucceeded != nil {
		r.metrics.JobsSucceeded(ctx)
	}
	if subErr := r.submitter.SubmitSuccess(ctx, result); subErr != nil {
		log.Error("failed to submit success result", "error", subErr)
	}
	log.Info("job completed", "score", result.Score())
}

