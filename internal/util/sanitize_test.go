package util

import (
	"errors"
	"strings"
	"testing"

	"github.com/git-captain/git-captain/internal/interfaces"
)

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Wrapped", "access_token=ABC&scope=repo&token_type=bearer", "ABC"},
		{"Prefix only", "access_token=ABC", "ABC"},
		{"Suffix only", "ABC&scope=repo&token_type=bearer", "ABC"},
		{"Already clean", "gho_123456", "gho_123456"},
		{"Whitespace", "  gho_123456 \n", "gho_123456"},
		{"Prefix not leading", "xaccess_token=ABC", "xaccess_token=ABC"},
		{"Other scope kept", "ABC&scope=user&token_type=bearer", "ABC&scope=user&token_type=bearer"},
		{"Whitespace before prefix", " access_token=ABC", "ABC"},
		{"Repeated prefix", "access_token=access_token=ABC", "ABC"},
		{"Whitespace after suffix", "ABC&scope=repo&token_type=bearer ", "ABC"},
		{"Repeated suffix", "ABC&scope=repo&token_type=bearer&scope=repo&token_type=bearer", "ABC"},
		{"Whitespace inside wrapper", "access_token= ABC \n&scope=repo&token_type=bearer", "ABC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeToken(tt.input)
			if err != nil {
				t.Fatalf("SanitizeToken(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("SanitizeToken(%q) = %q, want %q", tt.input, got, tt.expected)
			}
			again, err := SanitizeToken(got)
			if err != nil {
				t.Fatalf("SanitizeToken(%q) second pass error: %v", got, err)
			}
			if again != got {
				t.Errorf("SanitizeToken is not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestSanitizeTokenRejectsEmpty(t *testing.T) {
	for _, input := range []string{"", "   ", "access_token=&scope=repo&token_type=bearer"} {
		if _, err := SanitizeToken(input); !errors.Is(err, interfaces.ErrInvalidCredential) {
			t.Errorf("SanitizeToken(%q) error = %v, want ErrInvalidCredential", input, err)
		}
	}
}

func TestValidateRepoName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"Valid", "my-repo_1.2", true},
		{"Exactly 100", strings.Repeat("a", 100), true},
		{"Empty", "", false},
		{"Too long", strings.Repeat("a", 101), false},
		{"At sign", "my@repo", false},
		{"Space", "my repo", false},
		{"Slash", "org/repo", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateRepoName(tt.input); got != tt.want {
				t.Errorf("ValidateRepoName(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateBranchName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"Valid nested", "feature/my-branch", true},
		{"Valid simple", "develop", true},
		{"Tilde", "feature/../x~1", false},
		{"Caret", "feature^", false},
		{"Colon", "a:b", false},
		{"Question", "a?b", false},
		{"Star", "a*b", false},
		{"Brackets", "a[b]", false},
		{"Backslash", `a\b`, false},
		{"Leading slash", "/leading", false},
		{"Trailing slash", "trailing/", false},
		{"Double slash", "a//b", false},
		{"Empty", "", false},
		{"Exactly 250", strings.Repeat("b", 250), true},
		{"Too long", strings.Repeat("b", 251), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateBranchName(tt.input); got != tt.want {
				t.Errorf("ValidateBranchName(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsProtectedBranch(t *testing.T) {
	for _, name := range []string{"master", "Master", "MAIN", "develop"} {
		if !IsProtectedBranch(name) {
			t.Errorf("IsProtectedBranch(%q) = false, want true", name)
		}
	}
	for _, name := range []string{"feature/main", "masterful", "dev"} {
		if IsProtectedBranch(name) {
			t.Errorf("IsProtectedBranch(%q) = true, want false", name)
		}
	}
}

func TestTokenPresence(t *testing.T) {
	if got := TokenPresence("abc"); got != "[PRESENT]" {
		t.Fatalf("TokenPresence = %q", got)
	}
	if got := TokenPresence(" "); got != "[MISSING]" {
		t.Fatalf("TokenPresence = %q", got)
	}
}
