// Package integrations provides the shared plumbing for GitHub API clients.
//
// # Overview
//
// The [github] subpackage talks to the REST API through go-github. This
// package holds what it shares with any other client:
//
//   - [Client]: response caching on top of a [cache.Cache] with a TTL
//   - [NewHTTPClient]: an *http.Client using the pacing, retrying transport
//     from [httputil]
//   - [ErrNotFound], [ErrNetwork]: sentinel errors callers branch on
//   - repository name helpers ([SplitRepoName], [RepoNameFromURL])
//
// # Caching
//
// [Client.Cached] looks a key up, runs the fetch function on a miss and
// stores the JSON encoding of the result:
//
//	var info RepoInfo
//	err := c.Cached(ctx, key, refresh, &info, func() error {
//	    return fetchInfo(ctx, &info)
//	})
//
// Not-found results are cached by callers as regular values so a missing
// repository costs one request per TTL.
package integrations
