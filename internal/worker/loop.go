package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vipyrsec/dragonfly-worker/internal/model"
	"github.com/vipyrsec/dragonfly-worker/internal/rulestore"
)

// JobFetcher is satisfied by *apiclient.Client.
type JobFetcher interface {
	FetchJobs(ctx context.Context, n int) ([]model.Job, error)
}

// JobRunner is satisfied by *Runner.
type JobRunner interface {
	Run(ctx context.Context, job model.Job)
}

// Loop drives the pipeline forever: fetch a batch of jobs, sync rules
// reactively per job when its hash is stale, and dispatch each job to the
// pool. Grounded on the worker loop described in main.rs, translated to
// Go's channel-backed worker pool instead of a thread-per-job spawn.
type Loop struct {
	jobs         JobFetcher
	rules        *RuleSyncer
	store        *rulestore.Store
	pool         *Pool
	runner       JobRunner
	bulkSize     int
	loadDuration time.Duration

	onJobsFetched func(ctx context.Context, n int)
}

// NewLoop constructs a Loop.
func NewLoop(jobs JobFetcher, rules *RuleSyncer, store *rulestore.Store, pool *Pool, runner JobRunner, bulkSize int, loadDuration time.Duration) *Loop {
	return &Loop{jobs: jobs, rules: rules, store: store, pool: pool, runner: runner, bulkSize: bulkSize, loadDuration: loadDuration}
}

// OnJobsFetched installs a metrics hook called once per fetch_jobs round
// trip with however many jobs came back (including zero).
func (l *Loop) OnJobsFetched(fn func(ctx context.Context, n int)) {
	l.onJobsFetched = fn
}

// Run executes the loop body repeatedly until ctx is cancelled. It never
// returns an error itself: per spec §4.1, a fetch_jobs failure is logged
// and the loop continues.
func (l *Loop) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		l.tick(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(l.loadDuration):
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	jobs, err := l.jobs.FetchJobs(ctx, l.bulkSize)
	if err != nil {
		slog.Warn("fetch_jobs failed, will retry next tick", "error", err)
		return
	}
	if l.onJobsFetched != nil {
		l.onJobsFetched(ctx, len(jobs))
	}

	for _, job := range jobs {
		if ctx.Err() != nil {
			return
		}

		if job.Hash != l.store.Hash() {
			if err := l.rules.Sync(ctx); err != nil {
				slog.Warn("rule sync failed, scanning with current ruleset", "job_hash", job.Hash, "store_hash", l.store.Hash(), "error", err)
			}
		}

		job := job
		l.pool.Submit(func() {
			l.runner.Run(ctx, job)
		})
	}
}
