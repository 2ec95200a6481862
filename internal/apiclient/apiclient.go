// Package apiclient talks to the mainframe: OAuth authentication, rule
// bundle retrieval, job leasing, and result submission. Grounded on the
// original client's api.rs/client/methods.rs request shapes, translated to
// Go's net/http plus the teacher's pattern of attaching a bearer token and
// retrying once on 401 before giving up.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vipyrsec/dragonfly-worker/internal/credentials"
	"github.com/vipyrsec/dragonfly-worker/internal/model"
)

// AuthConfig carries the fields the original AuthBody/AuthenticationBody
// sent to the OAuth token endpoint.
type AuthConfig struct {
	Auth0Domain  string
	ClientID     string
	ClientSecret string
	Audience     string
	GrantType    string
	Username     string
	Password     string
}

// Client is the HTTP collaborator for every mainframe interaction.
type Client struct {
	http        *http.Client
	baseURL     string
	auth        AuthConfig
	credentials *credentials.Manager
}

// New constructs a Client and wires it to its own credentials.Manager.
// Authenticate is implemented by Client itself, closing the loop without a
// package import cycle: credentials depends only on the narrow
// credentials.Authenticator interface.
func New(httpClient *http.Client, baseURL string, auth AuthConfig) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	c := &Client{http: httpClient, baseURL: baseURL, auth: auth}
	c.credentials = credentials.New(c)
	return c
}

// Credentials exposes the manager so the worker can start the proactive
// refresh timer and run Bootstrap at startup.
func (c *Client) Credentials() *credentials.Manager { return c.credentials }

type authRequestBody struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Audience     string `json:"audience"`
	GrantType    string `json:"grant_type"`
	Username     string `json:"username"`
	Password     string `json:"password"`
}

type authResponseBody struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// Authenticate implements credentials.Authenticator: POST to the Auth0
// token endpoint and return the bearer token plus its lifetime.
func (c *Client) Authenticate(ctx context.Context) (string, time.Duration, error) {
	body := authRequestBody{
		ClientID:     c.auth.ClientID,
		ClientSecret: c.auth.ClientSecret,
		Audience:     c.auth.Audience,
		GrantType:    c.auth.GrantType,
		Username:     c.auth.Username,
		Password:     c.auth.Password,
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return "", 0, fmt.Errorf("encode auth body: %w", err)
	}

	url := c.auth.Auth0Domain + "/oauth/token"
	if !strings.Contains(c.auth.Auth0Domain, "://") {
		url = "https://" + url
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("auth request returned status %d", resp.StatusCode)
	}

	var out authResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", 0, fmt.Errorf("decode auth response: %w", err)
	}
	return out.AccessToken, time.Duration(out.ExpiresIn) * time.Second, nil
}

// doAuthed attaches the current bearer token, issues the request, and on a
// 401 performs exactly one credential refresh before retrying once. A
// second 401 response is returned as is, with a nil error; every caller
// turns its non-success status into an error.
func (c *Client) doAuthed(ctx context.Context, build func(token string) (*http.Request, error)) (*http.Response, error) {
	tok := c.credentials.Current()
	req, err := build(tok.Value)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	tok = c.credentials.Refresh(ctx, tok)
	req, err = build(tok.Value)
	if err != nil {
		return nil, err
	}
	return c.http.Do(req)
}

// GetRules fetches the current YARA rule bundle: a commit hash plus a map
// of rule name to rule source.
func (c *Client) GetRules(ctx context.Context) (hash string, rules map[string]string, err error) {
	resp, err := c.doAuthed(ctx, func(token string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/rules", nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return req, nil
	})
	if err != nil {
		return "", nil, fmt.Errorf("fetch rules: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("fetch rules returned status %d", resp.StatusCode)
	}

	var out struct {
		Hash  string            `json:"hash"`
		Rules map[string]string `json:"rules"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", nil, fmt.Errorf("decode rules response: %w", err)
	}
	return out.Hash, out.Rules, nil
}

// FetchJobs leases up to n jobs in one round trip, grounded on
// fetch_bulk_job's POST /jobs?batch=n shape.
func (c *Client) FetchJobs(ctx context.Context, n int) ([]model.Job, error) {
	resp, err := c.doAuthed(ctx, func(token string) (*http.Request, error) {
		url := fmt.Sprintf("%s/jobs?batch=%d", c.baseURL, n)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch jobs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch jobs returned status %d", resp.StatusCode)
	}

	var jobs []model.Job
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return nil, fmt.Errorf("decode jobs response: %w", err)
	}
	return jobs, nil
}

type submitSuccessBody struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Score        int64    `json:"score"`
	InspectorURL *string  `json:"inspector_url"`
	RulesMatched []string `json:"rules_matched"`
	Commit       string   `json:"commit"`
}

// SubmitSuccess reports a completed scan's results.
func (c *Client) SubmitSuccess(ctx context.Context, result model.PackageScanResult) error {
	var inspector *string
	if u := result.InspectorURL(); u != "" {
		inspector = &u
	}
	body := submitSuccessBody{
		Name:         result.Name,
		Version:      result.Version,
		Score:        int64(result.Score()),
		InspectorURL: inspector,
		RulesMatched: result.RulesMatched(),
		Commit:       result.RulesetHash,
	}
	return c.submitPackage(ctx, body)
}

type submitFailureBody struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Reason  string `json:"reason"`
}

// SubmitFailure reports a job that could not be scanned to completion
// (fetch error, oversize archive entry, unreadable archive).
func (c *Client) SubmitFailure(ctx context.Context, name, version, reason string) error {
	return c.submitPackage(ctx, submitFailureBody{Name: name, Version: version, Reason: reason})
}

func (c *Client) submitPackage(ctx context.Context, body any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode submission body: %w", err)
	}

	resp, err := c.doAuthed(ctx, func(token string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/package", bytes.NewReader(buf))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("submit package result: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("submit package result returned status %d: %s", resp.StatusCode, b)
	}
	return nil
}
