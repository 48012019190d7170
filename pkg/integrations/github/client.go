package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"github.com/matzehuels/ghdisco/pkg/cache"
	"github.com/matzehuels/ghdisco/pkg/credentials"
	"github.com/matzehuels/ghdisco/pkg/integrations"
	"github.com/matzehuels/ghdisco/pkg/search"
)

const contributorsPerPage = 100

// ErrUnauthorized is returned when GitHub rejects a token.
var ErrUnauthorized = errors.New("bad credentials")

// Options configures [NewClient].
type Options struct {
	HTTP     *http.Client // shared transport; defaults to integrations.NewHTTPClient
	Cache    cache.Cache
	CacheTTL time.Duration
	Keyer    cache.Keyer
	BaseURL  string // API root for GitHub Enterprise or tests
	Refresh  bool   // bypass cached values
}

// Client provides access to the GitHub API for searching and augmentation.
type Client struct {
	*integrations.Client
	keyer   cache.Keyer
	baseURL *url.URL
	refresh bool

	mu      sync.Mutex
	clients map[string]*gh.Client
}

// NewClient creates a GitHub API client.
func NewClient(opts Options) (*Client, error) {
	c := &Client{
		Client:  integrations.NewClient(opts.HTTP, opts.Cache, opts.CacheTTL),
		keyer:   opts.Keyer,
		refresh: opts.Refresh,
		clients: make(map[string]*gh.Client),
	}
	if c.keyer == nil {
		c.keyer = cache.NewDefaultKeyer()
	}
	if opts.BaseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("base url: %w", err)
		}
		c.baseURL = u
	}
	return c, nil
}

// api returns the go-github client authenticated as cred.
func (c *Client) api(cred credentials.Credential) *gh.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if g, ok := c.clients[cred.Token]; ok {
		return g
	}
	base := c.HTTP()
	hc := &http.Client{
		Timeout: base.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cred.Token}),
			Base:   base.Transport,
		},
	}
	g := gh.NewClient(hc)
	if c.baseURL != nil {
		g.BaseURL = c.baseURL
	}
	c.clients[cred.Token] = g
	return g
}

// SearchCode fetches one page of code search results for t.
func (c *Client) SearchCode(ctx context.Context, cred credentials.Credential, t search.Task) (*search.Envelope, error) {
	res, resp, err := c.api(cred).Search.Code(ctx, t.Text(), &gh.SearchOptions{
		Sort:  t.Sort,
		Order: t.Order,
		ListOptions: gh.ListOptions{
			Page:    t.Page,
			PerPage: t.PageSize,
		},
	})
	if err != nil {
		return nil, wrapErr("search code", resp, err)
	}

	env := &search.Envelope{
		Total:      res.GetTotal(),
		Incomplete: res.GetIncompleteResults(),
		Items:      make([]search.Match, 0, len(res.CodeResults)),
	}
	for _, r := range res.CodeResults {
		env.Items = append(env.Items, search.Match{
			RepoName: r.GetRepository().GetFullName(),
			Path:     r.GetPath(),
			Name:     r.GetName(),
			SHA:      r.GetSHA(),
			Fork:     r.GetRepository().GetFork(),
		})
	}
	return env, nil
}

// RepoInfo fetches repository metadata. Returns integrations.ErrNotFound for
// missing repositories.
func (c *Client) RepoInfo(ctx context.Context, cred credentials.Credential, repo string) (*RepoInfo, error) {
	owner, name, err := integrations.SplitRepoName(repo)
	if err != nil {
		return nil, err
	}

	var info RepoInfo
	err = c.Cached(ctx, c.keyer.RepoKey("info", repo), c.refresh, &info, func() error {
		r, resp, err := c.api(cred).Repositories.Get(ctx, owner, name)
		if err != nil {
			if isNotFound(resp) {
				info = RepoInfo{FullName: repo, NotFound: true}
				return nil
			}
			return wrapErr("get repository", resp, err)
		}
		info = RepoInfo{
			FullName:   r.GetFullName(),
			SizeKB:     r.GetSize(),
			ForkedFrom: r.GetSource().GetFullName(),
			PushedAt:   unix(r.GetPushedAt()),
			CreatedAt:  unix(r.GetCreatedAt()),
			Language:   r.GetLanguage(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if info.NotFound {
		return nil, fmt.Errorf("%w: github repo %s", integrations.ErrNotFound, repo)
	}
	return &info, nil
}

// ContributorTotals counts contributors (anonymous included) and sums their
// contributions across every page.
func (c *Client) ContributorTotals(ctx context.Context, cred credentials.Credential, repo string) (*Totals, error) {
	owner, name, err := integrations.SplitRepoName(repo)
	if err != nil {
		return nil, err
	}

	var totals Totals
	err = c.Cached(ctx, c.keyer.RepoKey("contributors", repo), c.refresh, &totals, func() error {
		totals = Totals{}
		opts := &gh.ListContributorsOptions{
			Anon:        "1",
			ListOptions: gh.ListOptions{PerPage: contributorsPerPage},
		}
		for {
			page, resp, err := c.api(cred).Repositories.ListContributors(ctx, owner, name, opts)
			if err != nil {
				if isNotFound(resp) {
					totals = Totals{NotFound: true}
					return nil
				}
				return wrapErr("list contributors", resp, err)
			}
			for _, contrib := range page {
				totals.Contributors++
				totals.Commits += contrib.GetContributions()
			}
			if resp.NextPage == 0 {
				return nil
			}
			opts.Page = resp.NextPage
		}
	})
	if err != nil {
		return nil, err
	}
	if totals.NotFound {
		return nil, fmt.Errorf("%w: github repo %s", integrations.ErrNotFound, repo)
	}
	return &totals, nil
}

// FirstCommit returns the SHA of the oldest commit on the default branch.
// It lists commits one per page and jumps to the last page named in the
// Link header. An empty repository yields "".
func (c *Client) FirstCommit(ctx context.Context, cred credentials.Credential, repo string) (string, error) {
	owner, name, err := integrations.SplitRepoName(repo)
	if err != nil {
		return "", err
	}

	var first firstCommit
	err = c.Cached(ctx, c.keyer.RepoKey("first_commit", repo), c.refresh, &first, func() error {
		first = firstCommit{}
		opts := &gh.CommitsListOptions{ListOptions: gh.ListOptions{Page: 1, PerPage: 1}}
		commits, resp, err := c.api(cred).Repositories.ListCommits(ctx, owner, name, opts)
		if err != nil {
			switch {
			case isNotFound(resp):
				first.NotFound = true
				return nil
			case resp != nil && resp.StatusCode == http.StatusConflict:
				return nil // empty repository
			}
			return wrapErr("list commits", resp, err)
		}
		if resp.LastPage > 1 {
			opts.Page = resp.LastPage
			commits, resp, err = c.api(cred).Repositories.ListCommits(ctx, owner, name, opts)
			if err != nil {
				return wrapErr("list commits", resp, err)
			}
		}
		if len(commits) > 0 {
			first.SHA = commits[len(commits)-1].GetSHA()
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if first.NotFound {
		return "", fmt.Errorf("%w: github repo %s", integrations.ErrNotFound, repo)
	}
	return first.SHA, nil
}

// TopContributors returns up to n contributor logins by contribution count.
func (c *Client) TopContributors(ctx context.Context, cred credentials.Credential, repo string, n int) ([]string, error) {
	owner, name, err := integrations.SplitRepoName(repo)
	if err != nil {
		return nil, err
	}

	var top topContributors
	key := c.keyer.RepoKey(fmt.Sprintf("top%d", n), repo)
	err = c.Cached(ctx, key, c.refresh, &top, func() error {
		top = topContributors{}
		page, resp, err := c.api(cred).Repositories.ListContributors(ctx, owner, name, &gh.ListContributorsOptions{
			ListOptions: gh.ListOptions{Page: 1, PerPage: n},
		})
		if err != nil {
			if isNotFound(resp) {
				top.NotFound = true
				return nil
			}
			return wrapErr("list contributors", resp, err)
		}
		for _, contrib := range page {
			if login := contrib.GetLogin(); login != "" {
				top.Logins = append(top.Logins, login)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if top.NotFound {
		return nil, fmt.Errorf("%w: github repo %s", integrations.ErrNotFound, repo)
	}
	return top.Logins, nil
}

// LatestCommit returns the newest commit authored by login, or nil if there
// is none.
func (c *Client) LatestCommit(ctx context.Context, cred credentials.Credential, repo, login string) (*CommitIdentity, error) {
	owner, name, err := integrations.SplitRepoName(repo)
	if err != nil {
		return nil, err
	}

	var latest latestCommit
	err = c.Cached(ctx, c.keyer.LoginKey(repo, login), c.refresh, &latest, func() error {
		latest = latestCommit{}
		commits, resp, err := c.api(cred).Repositories.ListCommits(ctx, owner, name, &gh.CommitsListOptions{
			Author:      login,
			ListOptions: gh.ListOptions{Page: 1, PerPage: 1},
		})
		if err != nil {
			if isNotFound(resp) || (resp != nil && resp.StatusCode == http.StatusConflict) {
				return nil
			}
			return wrapErr("list commits", resp, err)
		}
		if len(commits) == 0 {
			return nil
		}
		rc := commits[0]
		commit := rc.GetCommit()
		latest.Commit = &CommitIdentity{
			SHA: rc.GetSHA(),
			Author: Identity{
				Name:  commit.GetAuthor().GetName(),
				Email: commit.GetAuthor().GetEmail(),
			},
			Committer: Identity{
				Name:  commit.GetCommitter().GetName(),
				Email: commit.GetCommitter().GetEmail(),
			},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return latest.Commit, nil
}

// Blob returns the raw content of a git blob.
func (c *Client) Blob(ctx context.Context, cred credentials.Credential, repo, sha string) ([]byte, error) {
	owner, name, err := integrations.SplitRepoName(repo)
	if err != nil {
		return nil, err
	}

	var b blob
	err = c.Cached(ctx, c.keyer.BlobKey(repo, sha), c.refresh, &b, func() error {
		data, resp, err := c.api(cred).Git.GetBlobRaw(ctx, owner, name, sha)
		if err != nil {
			if isNotFound(resp) {
				b = blob{NotFound: true}
				return nil
			}
			return wrapErr("get blob", resp, err)
		}
		b = blob{Data: data}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if b.NotFound {
		return nil, fmt.Errorf("%w: blob %s in %s", integrations.ErrNotFound, sha, repo)
	}
	return b.Data, nil
}

// Quota reports the authenticated user and remaining rate limits of cred.
// It is never cached.
func (c *Client) Quota(ctx context.Context, cred credentials.Credential) (*Quota, error) {
	api := c.api(cred)
	user, resp, err := api.Users.Get(ctx, "")
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("credential %s: %w", cred.Name, ErrUnauthorized)
		}
		return nil, wrapErr("get user", resp, err)
	}
	limits, resp, err := api.RateLimit.Get(ctx)
	if err != nil {
		return nil, wrapErr("get rate limit", resp, err)
	}
	return &Quota{
		Login:  user.GetLogin(),
		Core:   rate(limits.GetCore()),
		Search: rate(limits.GetSearch()),
	}, nil
}

func rate(r *gh.Rate) Rate {
	if r == nil {
		return Rate{}
	}
	return Rate{Limit: r.Limit, Remaining: r.Remaining, Reset: unix(r.Reset)}
}

func isNotFound(resp *gh.Response) bool {
	return resp != nil && resp.Response != nil && resp.StatusCode == http.StatusNotFound
}

func unix(ts gh.Timestamp) int64 {
	if ts.IsZero() {
		return 0
	}
	return ts.Unix()
}

// wrapErr maps go-github errors onto the integrations sentinels.
func wrapErr(op string, resp *gh.Response, err error) error {
	var rate *gh.RateLimitError
	var abuse *gh.AbuseRateLimitError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.As(err, &rate), errors.As(err, &abuse):
		return fmt.Errorf("%s: %w: %v", op, integrations.ErrRateLimited, err)
	case resp != nil && resp.Response != nil:
		if serr := integrations.CheckStatus(resp.StatusCode); serr != nil {
			return fmt.Errorf("%s: %w (%v)", op, serr, err)
		}
	}
	return fmt.Errorf("%s: %w: %v", op, integrations.ErrNetwork, err)
}

var _ search.Searcher = (*Client)(nil)
