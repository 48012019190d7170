package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/ghdisco/pkg/cache"
	"github.com/matzehuels/ghdisco/pkg/credentials"
	"github.com/matzehuels/ghdisco/pkg/integrations"
	"github.com/matzehuels/ghdisco/pkg/search"
)

var testCred = credentials.Credential{Name: "t1", Token: "tok-1"}

func testClient(t *testing.T, serverURL string, c cache.Cache) *Client {
	t.Helper()
	client, err := NewClient(Options{
		HTTP:     integrations.NewHTTPClient(integrations.HTTPOptions{Timeout: 5 * time.Second, Retries: -1}),
		Cache:    c,
		CacheTTL: time.Hour,
		BaseURL:  serverURL,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func TestClient_SearchCode(t *testing.T) {
	var gotQuery, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/code" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		writeJSON(w, map[string]any{
			"total_count":        2,
			"incomplete_results": true,
			"items": []map[string]any{
				{"name": "pom.xml", "path": "a/pom.xml", "sha": "s1", "repository": map[string]any{"full_name": "o/r1", "fork": false}},
				{"name": "pom.xml", "path": "pom.xml", "sha": "s2", "repository": map[string]any{"full_name": "o/r2", "fork": true}},
			},
		})
	}))
	defer server.Close()

	c := testClient(t, server.URL, nil)
	task := search.Task{
		Query: `"guava" filename:pom.xml`, SizeFrom: 0, SizeTo: 500,
		Sort: "indexed", Order: search.OrderDesc, Splitter: "ab", Page: 2, PageSize: 100,
	}
	env, err := c.SearchCode(context.Background(), testCred, task)
	if err != nil {
		t.Fatalf("SearchCode: %v", err)
	}

	if gotAuth != "Bearer tok-1" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	for _, want := range []string{"page=2", "per_page=100", "sort=indexed", "order=desc", "size%3A0..500"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}
	if env.Total != 2 || !env.Incomplete || len(env.Items) != 2 {
		t.Fatalf("envelope = %+v", env)
	}
	if m := env.Items[1]; m.RepoName != "o/r2" || m.SHA != "s2" || !m.Fork || m.Path != "pom.xml" {
		t.Errorf("item = %+v", m)
	}
}

func TestClient_SearchCode_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Limit", "30")
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", fmt.Sprint(time.Now().Add(time.Minute).Unix()))
		w.WriteHeader(http.StatusForbidden)
		writeJSON(w, map[string]any{"message": "API rate limit exceeded"})
	}))
	defer server.Close()

	c := testClient(t, server.URL, nil)
	_, err := c.SearchCode(context.Background(), testCred, search.Task{Query: "x", Page: 1, PageSize: 100})
	if !errors.Is(err, integrations.ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
}

func TestClient_RepoInfo(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/repos/owner/repo":
			writeJSON(w, map[string]any{
				"full_name":  "owner/repo",
				"size":       500,
				"language":   "Go",
				"pushed_at":  "2020-01-02T00:00:00Z",
				"created_at": "2019-01-01T00:00:00Z",
				"source":     map[string]any{"full_name": "upstream/repo"},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	c := testClient(t, server.URL, fc)
	ctx := context.Background()

	info, err := c.RepoInfo(ctx, testCred, "owner/repo")
	if err != nil {
		t.Fatalf("RepoInfo: %v", err)
	}
	if info.SizeKB != 500 || info.Language != "Go" || info.ForkedFrom != "upstream/repo" {
		t.Errorf("info = %+v", info)
	}
	if want := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC).Unix(); info.PushedAt != want {
		t.Errorf("PushedAt = %d, want %d", info.PushedAt, want)
	}

	if _, err := c.RepoInfo(ctx, testCred, "owner/repo"); err != nil {
		t.Fatalf("cached RepoInfo: %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want 1 (second call cached)", hits.Load())
	}

	for range 2 {
		if _, err := c.RepoInfo(ctx, testCred, "owner/gone"); !errors.Is(err, integrations.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	}
	if hits.Load() != 2 {
		t.Errorf("hits = %d, want 2 (not-found cached)", hits.Load())
	}
}

func TestClient_ContributorTotals(t *testing.T) {
	var serverURL string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/owner/repo/contributors" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if q.Get("anon") != "1" || q.Get("per_page") != "100" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		if q.Get("page") == "2" {
			writeJSON(w, []map[string]any{{"contributions": 1, "type": "Anonymous"}})
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s/repos/owner/repo/contributors?anon=1&per_page=100&page=2>; rel="next", <%s/repos/owner/repo/contributors?anon=1&per_page=100&page=2>; rel="last"`, serverURL, serverURL))
		writeJSON(w, []map[string]any{
			{"login": "a", "contributions": 10},
			{"login": "b", "contributions": 5},
		})
	}))
	defer server.Close()
	serverURL = server.URL

	c := testClient(t, server.URL, nil)
	totals, err := c.ContributorTotals(context.Background(), testCred, "owner/repo")
	if err != nil {
		t.Fatalf("ContributorTotals: %v", err)
	}
	if totals.Contributors != 3 || totals.Commits != 16 {
		t.Errorf("totals = %+v, want 3 contributors / 16 commits", totals)
	}

	if _, err := c.ContributorTotals(context.Background(), testCred, "owner/missing"); !errors.Is(err, integrations.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestClient_FirstCommit(t *testing.T) {
	var serverURL string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/owner/repo/commits":
			if r.URL.Query().Get("page") == "42" {
				writeJSON(w, []map[string]any{{"sha": "first"}})
				return
			}
			w.Header().Set("Link", fmt.Sprintf(`<%s/repos/owner/repo/commits?per_page=1&page=2>; rel="next", <%s/repos/owner/repo/commits?per_page=1&page=42>; rel="last"`, serverURL, serverURL))
			writeJSON(w, []map[string]any{{"sha": "newest"}})
		case "/repos/owner/single/commits":
			writeJSON(w, []map[string]any{{"sha": "only"}})
		case "/repos/owner/empty/commits":
			w.WriteHeader(http.StatusConflict)
			writeJSON(w, map[string]any{"message": "Git Repository is empty."})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()
	serverURL = server.URL

	c := testClient(t, server.URL, nil)
	tests := []struct {
		repo    string
		want    string
		wantErr error
	}{
		{"owner/repo", "first", nil},
		{"owner/single", "only", nil},
		{"owner/empty", "", nil},
		{"owner/missing", "", integrations.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.repo, func(t *testing.T) {
			got, err := c.FirstCommit(context.Background(), testCred, tt.repo)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("FirstCommit: %v", err)
			}
			if got != tt.want {
				t.Errorf("FirstCommit = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClient_TopContributorsAndLatestCommit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/owner/repo/contributors":
			if r.URL.Query().Get("per_page") != "5" {
				t.Errorf("per_page = %q", r.URL.Query().Get("per_page"))
			}
			writeJSON(w, []map[string]any{{"login": "alice"}, {"login": "bob"}})
		case "/repos/owner/repo/commits":
			if r.URL.Query().Get("author") == "bob" {
				writeJSON(w, []map[string]any{})
				return
			}
			writeJSON(w, []map[string]any{{
				"sha": "c1",
				"commit": map[string]any{
					"author":    map[string]any{"name": "Alice", "email": "alice@example.com"},
					"committer": map[string]any{"name": "GitHub", "email": "noreply@github.com"},
				},
			}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c := testClient(t, server.URL, nil)
	ctx := context.Background()

	logins, err := c.TopContributors(ctx, testCred, "owner/repo", 5)
	if err != nil {
		t.Fatalf("TopContributors: %v", err)
	}
	if len(logins) != 2 || logins[0] != "alice" {
		t.Errorf("logins = %v", logins)
	}

	commit, err := c.LatestCommit(ctx, testCred, "owner/repo", "alice")
	if err != nil {
		t.Fatalf("LatestCommit: %v", err)
	}
	if commit == nil || commit.Author.Email != "alice@example.com" || commit.Committer.Email != "noreply@github.com" {
		t.Errorf("commit = %+v", commit)
	}

	commit, err = c.LatestCommit(ctx, testCred, "owner/repo", "bob")
	if err != nil || commit != nil {
		t.Errorf("LatestCommit(bob) = %+v, %v; want nil, nil", commit, err)
	}
}

func TestClient_Blob(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/repos/owner/repo/git/blobs/abc" {
			w.Write([]byte("import com.google.common"))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	c := testClient(t, server.URL, nil)
	data, err := c.Blob(context.Background(), testCred, "owner/repo", "abc")
	if err != nil {
		t.Fatalf("Blob: %v", err)
	}
	if string(data) != "import com.google.common" {
		t.Errorf("Blob = %q", data)
	}
	if _, err := c.Blob(context.Background(), testCred, "owner/repo", "nope"); !errors.Is(err, integrations.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestClient_InvalidRepoName(t *testing.T) {
	c := testClient(t, "http://127.0.0.1:1", nil)
	if _, err := c.RepoInfo(context.Background(), testCred, "not-a-repo"); err == nil {
		t.Error("expected error for malformed repo name")
	}
}

func TestClient_PerCredentialClients(t *testing.T) {
	c := testClient(t, "http://127.0.0.1:1", nil)
	a := c.api(credentials.Credential{Token: "a"})
	if c.api(credentials.Credential{Token: "a"}) != a {
		t.Error("same token should reuse client")
	}
	if c.api(credentials.Credential{Token: "b"}) == a {
		t.Error("different token should get its own client")
	}
}

func TestClient_Quota(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			writeJSON(w, map[string]any{"message": "Bad credentials"})
			return
		}
		switch r.URL.Path {
		case "/user":
			writeJSON(w, map[string]any{"login": "octocat"})
		case "/rate_limit":
			writeJSON(w, map[string]any{"resources": map[string]any{
				"core":   map[string]any{"limit": 5000, "remaining": 4999, "reset": 1700000000},
				"search": map[string]any{"limit": 30, "remaining": 10, "reset": 1700000060},
			}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c := testClient(t, server.URL, nil)
	q, err := c.Quota(context.Background(), testCred)
	if err != nil {
		t.Fatalf("Quota: %v", err)
	}
	if q.Login != "octocat" || q.Core.Remaining != 4999 || q.Search.Limit != 30 || q.Search.Reset != 1700000060 {
		t.Errorf("quota = %+v", q)
	}

	if _, err := c.Quota(context.Background(), credentials.Credential{Name: "bad", Token: "nope"}); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}
