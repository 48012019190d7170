// Package github talks to the GitHub REST API through go-github.
//
// # Overview
//
// [Client] serves every API call ghdisco makes:
//
//   - [Client.SearchCode]: one page of code search, for the search planner
//   - [Client.RepoInfo]: size, fork source, push and creation time, language
//   - [Client.ContributorTotals]: contributor and commit counts over all pages
//   - [Client.FirstCommit]: the oldest commit, via the Link header's last page
//   - [Client.TopContributors], [Client.LatestCommit]: contributor identities
//   - [Client.Blob]: raw file content for match verification
//   - [Client.Quota]: the login and remaining rate limits of a credential
//
// # Credentials
//
// Every call takes the [credentials.Credential] to use. The client keeps one
// go-github client per credential, each authenticating through an
// oauth2.Transport layered over the shared pacing and retrying transport.
//
// # Caching
//
// Everything except search pages is cached through [integrations.Client].
// Not-found results are cached too, so a deleted repository costs one request
// per TTL.
package github
