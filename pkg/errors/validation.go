package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// repoNameRegex matches "owner/name" repository identifiers.
var repoNameRegex = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?/[A-Za-z0-9._-]+$`)

// ValidateRepoName validates an "owner/name" repository identifier.
// Names that are not of that shape would produce malformed API paths.
func ValidateRepoName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidRepo, "repository name cannot be empty")
	}
	if len(name) > 256 {
		return New(ErrCodeInvalidRepo, "repository name too long (max 256 characters)")
	}
	if strings.Contains(name, "..") {
		return New(ErrCodeInvalidRepo, "repository name contains invalid characters: %q", "..")
	}
	if !repoNameRegex.MatchString(name) {
		return New(ErrCodeInvalidRepo, "invalid repository name: %q (want owner/name)", name)
	}
	return nil
}

// ValidateLibraryName validates a library name from a seed file.
// The name ends up in output rows and cache keys, so control characters
// and empty names are rejected.
func ValidateLibraryName(name string) error {
	if strings.TrimSpace(name) == "" {
		return New(ErrCodeInvalidLibrary, "library name cannot be empty")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidLibrary, "library name contains invalid control characters")
		}
	}
	return nil
}

// ValidateSearchString validates a search string used inside a quoted query.
func ValidateSearchString(s string) error {
	if strings.TrimSpace(s) == "" {
		return New(ErrCodeInvalidSeed, "search string cannot be empty")
	}
	if strings.ContainsAny(s, "\"\n\r") {
		return New(ErrCodeInvalidSeed, "search string cannot contain quotes or newlines: %q", s)
	}
	return nil
}

// ValidateToken validates an API credential string.
func ValidateToken(token string) error {
	if token == "" {
		return New(ErrCodeNoCredentials, "token cannot be empty")
	}
	if strings.ContainsFunc(token, unicode.IsSpace) {
		return New(ErrCodeNoCredentials, "token cannot contain whitespace")
	}
	return nil
}
