// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package githubapp is the upstream CI status provider: a GitHub App
// client covering exactly the four calls the board needs (installation
// listing, installation token minting, workflow lookup, latest run).
package githubapp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/FlightBoard/services/board/apperr"
	"github.com/AleutianAI/FlightBoard/services/board/datatypes"
	"github.com/AleutianAI/FlightBoard/services/board/secrets"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.github.com"

// Installation is one authorization context of the app: the id used
// for token minting plus the account login it covers.
type Installation struct {
	ID           int64
	AccountLogin string
}

// Client talks to the GitHub REST API as a GitHub App. Safe for
// concurrent use; installation tokens are cached until shortly before
// expiry and all requests share one client-side rate limiter.
type Client struct {
	httpClient *http.Client
	baseURL    string
	appID      string
	key        *secrets.Sealed
	limiter    *rate.Limiter
	now        func() time.Time

	mu     sync.Mutex
	tokens map[int64]cachedToken
}

// Option adjusts Client construction.
type Option func(*Client)

// WithBaseURL points the client at a different API root (tests, GHES).
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithClock swaps the time source. Test seam for token expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a client for the given App id and sealed private
// key PEM. The default rate limit stays well under GitHub's app quota.
func NewClient(appID string, key *secrets.Sealed, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    defaultBaseURL,
		appID:      appID,
		key:        key,
		limiter:    rate.NewLimiter(rate.Limit(10), 20),
		now:        time.Now,
		tokens:     make(map[int64]cachedToken),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do issues one API request after passing the rate limiter.
func (c *Client) do(ctx context.Context, method, url, authorization string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, err, "request cancelled before dispatch")
	}
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, err, "failed to build request")
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("Authorization", authorization)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, err, "GitHub API unreachable")
	}
	return resp, nil
}

// ListInstallations returns every installation of the app.
func (c *Client) ListInstallations(ctx context.Context) ([]Installation, error) {
	jwt, err := c.appJWT()
	if err != nil {
		return nil, err
	}
	url := c.baseURL + "/app/installations?per_page=100"
	resp, err := c.do(ctx, http.MethodGet, url, "Bearer "+jwt)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, upstreamError(resp, "failed to list installations")
	}

	var raw []struct {
		ID      int64 `json:"id"`
		Account struct {
			Login string `json:"login"`
		} `json:"account"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, err, "installation list is unparseable")
	}

	installations := make([]Installation, 0, len(raw))
	for _, r := range raw {
		installations = append(installations, Installation{ID: r.ID, AccountLogin: r.Account.Login})
	}
	return installations, nil
}

// GetWorkflow checks that the workflow resolves under the installation.
// Returns nil when it exists; otherwise an upstream-kind error that
// keeps not-found, forbidden, and transient failures distinct.
func (c *Client) GetWorkflow(ctx context.Context, installationID int64, owner, repo, workflow string) error {
	token, err := c.installationToken(ctx, installationID)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/repos/%s/%s/actions/workflows/%s", c.baseURL, owner, repo, workflow)
	resp, err := c.do(ctx, http.MethodGet, url, "token "+token)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return upstreamError(resp, fmt.Sprintf("workflow %s/%s %s", owner, repo, workflow))
	}
	return nil
}

// LatestRun returns the most recent run of the workflow. A workflow
// with no runs yet yields an "unknown" status pointing at its runs
// page rather than an error.
func (c *Client) LatestRun(ctx context.Context, installationID int64, owner, repo, workflow string) (*datatypes.RunStatus, error) {
	token, err := c.installationToken(ctx, installationID)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/repos/%s/%s/actions/workflows/%s/runs?per_page=1",
		c.baseURL, owner, repo, workflow)
	resp, err := c.do(ctx, http.MethodGet, url, "token "+token)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, upstreamError(resp, fmt.Sprintf("runs for %s/%s %s", owner, repo, workflow))
	}

	var body struct {
		TotalCount   int `json:"total_count"`
		WorkflowRuns []struct {
			Status     string `json:"status"`
			Conclusion string `json:"conclusion"`
			HTMLURL    string `json:"html_url"`
			UpdatedAt  string `json:"updated_at"`
		} `json:"workflow_runs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, err, "run list is unparseable")
	}

	if len(body.WorkflowRuns) == 0 {
		return &datatypes.RunStatus{
			Status:     datatypes.StatusUnknown,
			Conclusion: datatypes.ConclusionUnknown,
			URL:        RunsPageURL(owner, repo, workflow),
		}, nil
	}

	run := body.WorkflowRuns[0]
	return &datatypes.RunStatus{
		Status:     run.Status,
		Conclusion: run.Conclusion,
		URL:        run.HTMLURL,
		UpdatedAt:  run.UpdatedAt,
	}, nil
}

// VerifyWorkflow is the add-time verification gate: resolve the owner's
// installation, then confirm the workflow exists under it. Satisfies
// store.WorkflowVerifier.
func (c *Client) VerifyWorkflow(ctx context.Context, owner, repo, workflow string) error {
	installations, err := c.ListInstallations(ctx)
	if err != nil {
		return err
	}
	inst, ok := FindInstallation(installations, owner)
	if !ok {
		return apperr.New(apperr.KindUpstreamNotFound, "app is not installed for owner %q", owner)
	}
	return c.GetWorkflow(ctx, inst.ID, owner, repo, workflow)
}

// FindInstallation locates the installation covering an owner login.
// GitHub logins are case-insensitive.
func FindInstallation(installations []Installation, owner string) (Installation, bool) {
	for _, inst := range installations {
		if strings.EqualFold(inst.AccountLogin, owner) {
			return inst, true
		}
	}
	return Installation{}, false
}

// RunsPageURL is the link used when a workflow has no runs to point at.
func RunsPageURL(owner, repo, workflow string) string {
	if strings.HasSuffix(workflow, ".yml") || strings.HasSuffix(workflow, ".yaml") {
		return fmt.Sprintf("https://github.com/%s/%s/actions/workflows/%s", owner, repo, workflow)
	}
	return fmt.Sprintf("https://github.com/%s/%s/actions", owner, repo)
}
