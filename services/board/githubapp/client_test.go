// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package githubapp

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AleutianAI/FlightBoard/services/board/apperr"
	"github.com/AleutianAI/FlightBoard/services/board/datatypes"
	"github.com/AleutianAI/FlightBoard/services/board/secrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testKey generates a throwaway RSA key sealed the way main wires the
// real one. 1024 bits keeps the test fast; signature size is irrelevant.
func testKey(t *testing.T) *secrets.Sealed {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	return secrets.Seal(string(pemBytes))
}

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient("12345", testKey(t), WithBaseURL(server.URL))
	return client, server
}

// =============================================================================
// App JWT
// =============================================================================

func TestAppJWT_Shape(t *testing.T) {
	client := NewClient("12345", testKey(t))

	jwt, err := client.appJWT()
	require.NoError(t, err)
	assert.Len(t, strings.Split(jwt, "."), 3)
	// RS256 header, standard base64url of {"alg":"RS256","typ":"JWT"}.
	assert.True(t, strings.HasPrefix(jwt, "eyJhbGciOiJSUzI1NiI"))
}

func TestAppJWT_GarbageKey(t *testing.T) {
	client := NewClient("12345", secrets.Seal("not a pem"))

	_, err := client.appJWT()
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstreamUnavailable, apperr.KindOf(err))
}

// =============================================================================
// Installations
// =============================================================================

func TestListInstallations(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/app/installations", r.URL.Path)
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "Bearer "))
		assert.Equal(t, "2022-11-28", r.Header.Get("X-GitHub-Api-Version"))
		w.Write([]byte(`[
			{"id": 7, "account": {"login": "OctoCorp"}},
			{"id": 9, "account": {"login": "other"}}
		]`))
	}))

	installations, err := client.ListInstallations(context.Background())
	require.NoError(t, err)
	require.Len(t, installations, 2)
	assert.Equal(t, int64(7), installations[0].ID)
	assert.Equal(t, "OctoCorp", installations[0].AccountLogin)
}

func TestListInstallations_Unauthorized(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message": "A JSON web token could not be decoded"}`))
	}))

	_, err := client.ListInstallations(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstreamForbidden, apperr.KindOf(err))
	assert.Contains(t, apperr.MessageOf(err), "could not be decoded")
}

func TestFindInstallation(t *testing.T) {
	installations := []Installation{
		{ID: 7, AccountLogin: "OctoCorp"},
		{ID: 9, AccountLogin: "other"},
	}

	inst, ok := FindInstallation(installations, "octocorp")
	require.True(t, ok)
	assert.Equal(t, int64(7), inst.ID)

	_, ok = FindInstallation(installations, "stranger")
	assert.False(t, ok)
}

// =============================================================================
// Installation tokens
// =============================================================================

func TestInstallationToken_CachedUntilStale(t *testing.T) {
	var mints atomic.Int64
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mux := http.NewServeMux()
	mux.HandleFunc("/app/installations/7/access_tokens", func(w http.ResponseWriter, r *http.Request) {
		mints.Add(1)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"token": "ghs_test", "expires_at": "2025-06-01T13:00:00Z"}`))
	})
	mux.HandleFunc("/repos/octo/widgets/actions/workflows/ci.yml/runs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "token ghs_test", r.Header.Get("Authorization"))
		w.Write([]byte(`{"total_count": 0, "workflow_runs": []}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	client := NewClient("12345", testKey(t),
		WithBaseURL(server.URL),
		WithClock(func() time.Time { return now }))

	ctx := context.Background()
	_, err := client.LatestRun(ctx, 7, "octo", "widgets", "ci.yml")
	require.NoError(t, err)
	_, err = client.LatestRun(ctx, 7, "octo", "widgets", "ci.yml")
	require.NoError(t, err)
	assert.Equal(t, int64(1), mints.Load(), "second call should reuse the cached token")

	// Within a minute of expiry the token counts as stale.
	now = time.Date(2025, 6, 1, 12, 59, 30, 0, time.UTC)
	_, err = client.LatestRun(ctx, 7, "octo", "widgets", "ci.yml")
	require.NoError(t, err)
	assert.Equal(t, int64(2), mints.Load(), "stale token should be re-minted")
}

// =============================================================================
// Latest run
// =============================================================================

func TestLatestRun(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/app/installations/7/access_tokens", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"token": "ghs_test", "expires_at": "2099-01-01T00:00:00Z"}`))
	})
	mux.HandleFunc("/repos/octo/widgets/actions/workflows/ci.yml/runs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("per_page"))
		w.Write([]byte(`{
			"total_count": 42,
			"workflow_runs": [{
				"status": "completed",
				"conclusion": "success",
				"html_url": "https://github.com/octo/widgets/actions/runs/1",
				"updated_at": "2025-06-01T11:58:00Z"
			}]
		}`))
	})
	client, _ := testClient(t, mux)

	run, err := client.LatestRun(context.Background(), 7, "octo", "widgets", "ci.yml")
	require.NoError(t, err)
	assert.Equal(t, "completed", run.Status)
	assert.Equal(t, "success", run.Conclusion)
	assert.Equal(t, "https://github.com/octo/widgets/actions/runs/1", run.URL)
	assert.Equal(t, "2025-06-01T11:58:00Z", run.UpdatedAt)
}

func TestLatestRun_NoRunsYet(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/app/installations/7/access_tokens", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"token": "ghs_test", "expires_at": "2099-01-01T00:00:00Z"}`))
	})
	mux.HandleFunc("/repos/octo/widgets/actions/workflows/ci.yml/runs", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"total_count": 0, "workflow_runs": []}`))
	})
	client, _ := testClient(t, mux)

	run, err := client.LatestRun(context.Background(), 7, "octo", "widgets", "ci.yml")
	require.NoError(t, err)
	assert.Equal(t, datatypes.StatusUnknown, run.Status)
	assert.Equal(t, datatypes.ConclusionUnknown, run.Conclusion)
	assert.Equal(t, "https://github.com/octo/widgets/actions/workflows/ci.yml", run.URL)
}

func TestLatestRun_WorkflowGone(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/app/installations/7/access_tokens", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"token": "ghs_test", "expires_at": "2099-01-01T00:00:00Z"}`))
	})
	mux.HandleFunc("/repos/octo/widgets/actions/workflows/ci.yml/runs", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "Not Found"}`))
	})
	client, _ := testClient(t, mux)

	_, err := client.LatestRun(context.Background(), 7, "octo", "widgets", "ci.yml")
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstreamNotFound, apperr.KindOf(err))
}

// =============================================================================
// Verification
// =============================================================================

func TestVerifyWorkflow(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/app/installations", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id": 7, "account": {"login": "octo"}}]`))
	})
	mux.HandleFunc("/app/installations/7/access_tokens", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"token": "ghs_test", "expires_at": "2099-01-01T00:00:00Z"}`))
	})
	mux.HandleFunc("/repos/octo/widgets/actions/workflows/ci.yml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": 1, "name": "CI"}`))
	})
	client, _ := testClient(t, mux)

	assert.NoError(t, client.VerifyWorkflow(context.Background(), "octo", "widgets", "ci.yml"))
}

func TestVerifyWorkflow_AppNotInstalled(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id": 7, "account": {"login": "octo"}}]`))
	}))

	err := client.VerifyWorkflow(context.Background(), "stranger", "repo", "ci.yml")
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstreamNotFound, apperr.KindOf(err))
	assert.Contains(t, apperr.MessageOf(err), "not installed")
}

func TestVerifyWorkflow_Forbidden(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/app/installations", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id": 7, "account": {"login": "octo"}}]`))
	})
	mux.HandleFunc("/app/installations/7/access_tokens", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"token": "ghs_test", "expires_at": "2099-01-01T00:00:00Z"}`))
	})
	mux.HandleFunc("/repos/octo/widgets/actions/workflows/ci.yml", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message": "Resource not accessible by integration"}`))
	})
	client, _ := testClient(t, mux)

	err := client.VerifyWorkflow(context.Background(), "octo", "widgets", "ci.yml")
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstreamForbidden, apperr.KindOf(err))
}

// =============================================================================
// Runs page URL
// =============================================================================

func TestRunsPageURL(t *testing.T) {
	assert.Equal(t, "https://github.com/o/r/actions/workflows/ci.yml", RunsPageURL("o", "r", "ci.yml"))
	assert.Equal(t, "https://github.com/o/r/actions/workflows/ci.yaml", RunsPageURL("o", "r", "ci.yaml"))
	assert.Equal(t, "https://github.com/o/r/actions", RunsPageURL("o", "r", "12345"))
}
