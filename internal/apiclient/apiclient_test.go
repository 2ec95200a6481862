package apiclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/vipyrsec/dragonfly-worker/internal/model"
)

func newTestServer(t *testing.T, authFailures int32) (*httptest.Server, *int32) {
	return newTestServerCapturing(t, authFailures, nil)
}

func newTestServerCapturing(t *testing.T, authFailures int32, captured *[]byte) (*httptest.Server, *int32) {
	t.Helper()
	var authCalls int32
	var currentToken atomic.Value
	currentToken.Store("token-0")

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&authCalls, 1)
		tok := "token-" + string(rune('0'+n))
		currentToken.Store(tok)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": tok,
			"expires_in":   3600,
			"token_type":   "Bearer",
		})
	})
	mux.HandleFunc("/rules", func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasSuffix(auth, currentToken.Load().(string)) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"hash":  "abc123",
			"rules": map[string]string{"r1": "rule r1 { condition: true }"},
		})
	})
	mux.HandleFunc("/jobs", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]model.Job{
			{Hash: "abc123", Name: "foo", Version: "1.0.0", Distributions: []string{"http://example.test/foo-1.0.0.tar.gz"}},
		})
	})
	mux.HandleFunc("/package", func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			body, _ := io.ReadAll(r.Body)
			*captured = body
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(mux)
	return srv, &authCalls
}

func TestGetRulesAuthenticatesFirst(t *testing.T) {
	srv, authCalls := newTestServer(t, 0)
	defer srv.Close()

	c := New(srv.Client(), srv.URL, AuthConfig{Auth0Domain: srv.URL})
	if err := c.Credentials().Bootstrap(context.Background(), 1); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	hash, rules, err := c.GetRules(context.Background())
	if err != nil {
		t.Fatalf("GetRules: %v", err)
	}
	if hash != "abc123" || len(rules) != 1 {
		t.Fatalf("unexpected rules response: hash=%q rules=%v", hash, rules)
	}
	if atomic.LoadInt32(authCalls) != 1 {
		t.Fatalf("expected exactly 1 auth call, got %d", *authCalls)
	}
}

func TestFetchJobs(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	defer srv.Close()

	c := New(srv.Client(), srv.URL, AuthConfig{Auth0Domain: srv.URL})
	if err := c.Credentials().Bootstrap(context.Background(), 1); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	jobs, err := c.FetchJobs(context.Background(), 5)
	if err != nil {
		t.Fatalf("FetchJobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Name != "foo" {
		t.Fatalf("unexpected jobs: %+v", jobs)
	}
}

func TestSubmitFailure(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	defer srv.Close()

	c := New(srv.Client(), srv.URL, AuthConfig{Auth0Domain: srv.URL})
	if err := c.Credentials().Bootstrap(context.Background(), 1); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	if err := c.SubmitFailure(context.Background(), "foo", "1.0.0", "distribution too large"); err != nil {
		t.Fatalf("SubmitFailure: %v", err)
	}
}

func TestSubmitSuccessIncludesCommitHash(t *testing.T) {
	var captured []byte
	srv, _ := newTestServerCapturing(t, 0, &captured)
	defer srv.Close()

	c := New(srv.Client(), srv.URL, AuthConfig{Auth0Domain: srv.URL})
	if err := c.Credentials().Bootstrap(context.Background(), 1); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	result := model.PackageScanResult{
		Name:        "foo",
		Version:     "1.0.0",
		RulesetHash: "abc123",
		Distributions: []model.DistributionScanResult{
			{
				BaseInspectorURL: "https://inspector.pypi.io/project/foo/1.0.0/foo-1.0.0.tar.gz/",
				Files: []model.FileScanResult{
					{Path: "bad.py", Rules: []model.RuleScore{{Name: "contains_rust", Weight: 5}}},
				},
			},
		},
	}

	if err := c.SubmitSuccess(context.Background(), result); err != nil {
		t.Fatalf("SubmitSuccess: %v", err)
	}

	var body map[string]any
	if err := json.Unmarshal(captured, &body); err != nil {
		t.Fatalf("unmarshal captured body: %v", err)
	}
	if body["commit"] != "abc123" {
		t.Fatalf("expected commit=abc123 in submission body, got %v", body["commit"])
	}
	if body["score"].(float64) != 5 {
		t.Fatalf("expected score=5, got %v", body["score"])
	}
}
