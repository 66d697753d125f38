package util

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/git-captain/git-captain/internal/interfaces"
)

const (
	tokenPrefix = "access_token="
	tokenSuffix = "&scope=repo&token_type=bearer"

	maxRepoNameLength   = 100
	maxBranchNameLength = 250
)

var (
	repoNamePattern       = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	branchInvalidChars    = regexp.MustCompile(`[~^:?*\[\]\\]`)
	branchInvalidPatterns = regexp.MustCompile(`^/|//|/$`)
)

// protectedBranches lists the branch names that can never be deleted through the proxy.
var protectedBranches = []string{"master", "main", "develop"}

// SanitizeToken strips the OAuth redirect artifacts GitHub's form-encoded token
// response leaves around an access token, so the result can be used as a
// credential in an Authorization header. It is idempotent.
func SanitizeToken(raw string) (string, error) {
	if raw == "" {
		return "", interfaces.ErrInvalidCredential
	}
	cleaned := strings.TrimSpace(raw)
	for {
		next := strings.TrimPrefix(cleaned, tokenPrefix)
		next = strings.TrimSuffix(next, tokenSuffix)
		next = strings.TrimSpace(next)
		if next == cleaned {
			break
		}
		cleaned = next
	}
	if cleaned == "" {
		return "", fmt.Errorf("token is blank after sanitizing: %w", interfaces.ErrInvalidCredential)
	}
	return cleaned, nil
}

// ValidateRepoName reports whether name is an acceptable GitHub repository name.
func ValidateRepoName(name string) bool {
	return len(name) <= maxRepoNameLength && repoNamePattern.MatchString(name)
}

// ValidateBranchName reports whether name is an acceptable git branch name.
func ValidateBranchName(name string) bool {
	if name == "" || len(name) > maxBranchNameLength {
		return false
	}
	return !branchInvalidChars.MatchString(name) && !branchInvalidPatterns.MatchString(name)
}

// IsProtectedBranch reports whether name case-insensitively matches master, main or develop.
func IsProtectedBranch(name string) bool {
	for _, protected := range protectedBranches {
		if strings.EqualFold(name, protected) {
			return true
		}
	}
	return false
}

// TokenPresence returns the redacted marker logged in place of a token.
func TokenPresence(token string) string {
	if strings.TrimSpace(token) == "" {
		return "[MISSING]"
	}
	return "[PRESENT]"
}
