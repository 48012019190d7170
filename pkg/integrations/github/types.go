package github

// RepoInfo is the repository metadata used for augmentation.
type RepoInfo struct {
	FullName   string `json:"full_name"`
	SizeKB     int    `json:"size_kb"`
	ForkedFrom string `json:"forked_from,omitempty"`
	PushedAt   int64  `json:"pushed_at"`  // epoch seconds
	CreatedAt  int64  `json:"created_at"` // epoch seconds
	Language   string `json:"language,omitempty"`
	NotFound   bool   `json:"not_found,omitempty"`
}

// Totals sums the contributors list of a repository, anonymous included.
type Totals struct {
	Contributors int  `json:"contributors"`
	Commits      int  `json:"commits"`
	NotFound     bool `json:"not_found,omitempty"`
}

// Identity is a git author or committer.
type Identity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CommitIdentity holds the identities recorded on one commit.
type CommitIdentity struct {
	SHA       string   `json:"sha"`
	Author    Identity `json:"author"`
	Committer Identity `json:"committer"`
}

// firstCommit is the cached form of FirstCommit.
type firstCommit struct {
	SHA      string `json:"sha"`
	NotFound bool   `json:"not_found,omitempty"`
}

// topContributors is the cached form of TopContributors.
type topContributors struct {
	Logins   []string `json:"logins"`
	NotFound bool     `json:"not_found,omitempty"`
}

// latestCommit is the cached form of LatestCommit.
type latestCommit struct {
	Commit *CommitIdentity `json:"commit,omitempty"`
}

// blob is the cached form of Blob.
type blob struct {
	Data     []byte `json:"data"`
	NotFound bool   `json:"not_found,omitempty"`
}

// Rate is a quota bucket reported by the rate limit endpoint.
type Rate struct {
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	Reset     int64 `json:"reset"` // epoch seconds
}

// Quota describes what a credential can still spend.
type Quota struct {
	Login  string `json:"login"`
	Core   Rate   `json:"core"`
	Search Rate   `json:"search"`
}
