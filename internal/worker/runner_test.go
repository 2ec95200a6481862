package worker

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vipyrsec/dragonfly-worker/internal/fetcher"
	"github.com/vipyrsec/dragonfly-worker/internal/model"
	"github.com/vipyrsec/dragonfly-worker/internal/ruleengine"
	"github.com/vipyrsec/dragonfly-worker/internal/scanengine"
)

type fakeDownloader struct {
	data []byte
	kind fetcher.Kind
	err  error
}

func (f *fakeDownloader) Fetch(ctx context.Context, url string) ([]byte, fetcher.Kind, error) {
	return f.data, f.kind, f.err
}

type fakeScanner struct {
	matches []ruleengine.Match
}

func (s *fakeScanner) ScanMem(data []byte, timeout time.Duration) ([]ruleengine.Match, error) {
	return s.matches, nil
}

type fakeRuleProvider struct {
	scanner *fakeScanner
	hash    string
}

func (p *fakeRuleProvider) Current() (scanengine.Scanner, string) {
	return p.scanner, p.hash
}

type fakeSubmitter struct {
	successCalls int
	failureCalls int
	lastReason   string
}

func (s *fakeSubmitter) SubmitSuccess(ctx context.Context, result model.PackageScanResult) error {
	s.successCalls++
	return nil
}

func (s *fakeSubmitter) SubmitFailure(ctx context.Context, name, version, reason string) error {
	s.failureCalls++
	s.lastReason = reason
	return nil
}

func buildZipFixture(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, _ := w.Create("file1.txt")
	f.Write([]byte("Rust"))
	w.Close()
	return buf.Bytes()
}

func TestRunnerSubmitsSuccessOnCleanScan(t *testing.T) {
	dl := &fakeDownloader{data: buildZipFixture(t), kind: fetcher.KindZip}
	scanner := &fakeScanner{matches: []ruleengine.Match{{RuleName: "contains_rust", Weight: 5}}}
	submitter := &fakeSubmitter{}

	r := NewRunner(dl, &fakeRuleProvider{scanner: scanner, hash: "h1"}, submitter, 1<<20, ScanMetrics{})
	job := model.Job{Name: "pkg", Version: "1.0.0", Hash: "h1", Distributions: []string{"https://x/pkg.zip"}}
	r.Run(context.Background(), job)

	if submitter.successCalls != 1 || submitter.failureCalls != 0 {
		t.Fatalf("expected 1 success submission, got success=%d failure=%d", submitter.successCalls, submitter.failureCalls)
	}
}

func TestRunnerSubmitsFailureOnFetchError(t *testing.T) {
	dl := &fakeDownloader{err: errors.New("connection reset")}
	submitter := &fakeSubmitter{}

	r := NewRunner(dl, &fakeRuleProvider{scanner: &fakeScanner{}, hash: "h1"}, submitter, 1<<20, ScanMetrics{})
	job := model.Job{Name: "pkg", Version: "1.0.0", Hash: "h1", Distributions: []string{"https://x/pkg.zip"}}
	r.Run(context.Background(), job)

	if submitter.failureCalls != 1 || submitter.successCalls != 0 {
		t.Fatalf("expected 1 failure submission, got success=%d failure=%d", submitter.successCalls, submitter.failureCalls)
	}
	if submitter.lastReason == "" {
		t.Fatal("expected a non-empty failure reason")
	}
}
