// Command dragonfly-worker runs the scan pipeline: authenticate, load
// rules, then loop fetching jobs and scanning them until the process
// receives a shutdown signal. Wiring is grounded on main.rs's top-level
// sequencing (threadpool + refresh thread + loop), translated to the
// teacher's context-scoped shutdown pattern.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vipyrsec/dragonfly-worker/internal/apiclient"
	"github.com/vipyrsec/dragonfly-worker/internal/config"
	"github.com/vipyrsec/dragonfly-worker/internal/corelog"
	"github.com/vipyrsec/dragonfly-worker/internal/fetcher"
	"github.com/vipyrsec/dragonfly-worker/internal/resilience"
	"github.com/vipyrsec/dragonfly-worker/internal/rulestore"
	"github.com/vipyrsec/dragonfly-worker/internal/telemetry"
	"github.com/vipyrsec/dragonfly-worker/internal/worker"
)

const serviceName = "dragonfly-worker"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to an optional TOML config file")
	flag.Parse()

	logger := corelog.Init(serviceName)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, instruments := telemetry.Init(ctx, serviceName)
	defer shutdownTelemetry(context.Background())

	httpClient := &http.Client{Timeout: 60 * time.Second}
	client := apiclient.New(httpClient, cfg.BaseURL, apiclient.AuthConfig{
		Auth0Domain:  cfg.Auth0Domain,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Audience:     cfg.Audience,
		GrantType:    cfg.GrantType,
		Username:     cfg.Username,
		Password:     cfg.Password,
	})

	// Fatal initial authentication, grounded on DragonflyClient::new's
	// eager authorize() call — the process has nothing useful to do
	// without a bearer token, so a bounded retry then exit is correct
	// (spec §6 startup exit path).
	_, err = resilience.Retry(ctx, 5, time.Second, func() (struct{}, error) {
		return struct{}{}, client.Credentials().Bootstrap(ctx, 1)
	})
	if err != nil {
		logger.Error("initial authentication failed, exiting", "error", err)
		return 1
	}
	logger.Info("authenticated with the mainframe")

	store := rulestore.New()
	syncer := worker.NewRuleSyncer(client, store)
	syncer.OnReload(
		func() { instruments.RuleReloads.Add(ctx, 1) },
		func() { instruments.RuleReloadErrors.Add(ctx, 1) },
	)
	if err := syncer.Sync(ctx); err != nil {
		logger.Error("initial rule fetch failed, exiting", "error", err)
		return 1
	}
	logger.Info("loaded initial rule set", "hash", store.Hash())

	client.Credentials().OnRefresh(func() { instruments.TokenRefreshes.Add(ctx, 1) })
	go client.Credentials().RunProactiveRefresh(ctx)

	fetch := fetcher.New(httpClient, cfg.MaxScanSize)
	pool := worker.NewPool(cfg.Threads)
	runner := worker.NewRunner(fetch, store, client, cfg.MaxScanSize, worker.ScanMetrics{
		JobsSucceeded: func(ctx context.Context) { instruments.JobsSucceeded.Add(ctx, 1) },
		JobsFailed:    func(ctx context.Context) { instruments.JobsFailed.Add(ctx, 1) },
		ScanDuration:  func(ctx context.Context, seconds float64) { instruments.ScanDuration.Record(ctx, seconds) },
	})

	loop := worker.NewLoop(client, syncer, store, pool, runner, cfg.BulkSize, time.Duration(cfg.LoadDuration)*time.Second)
	loop.OnJobsFetched(func(ctx context.Context, n int) {
		instruments.JobsFetched.Add(ctx, int64(n))
	})

	logger.Info("starting worker loop", "threads", cfg.Threads, "bulk_size", cfg.BulkSize)
	loop.Run(ctx)

	logger.Info("shutdown signal received, draining worker pool")
	pool.Close()
	store.Close()

	fmt.Fprintln(os.Stderr, "dragonfly-worker exited cleanly")
	return 0
}
