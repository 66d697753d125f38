package misc

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseOAuthCallback(t *testing.T) {
	tests := []struct {
		name      string
		query     url.Values
		wantCode  string
		wantError string
		wantErr   bool
	}{
		{"Code", url.Values{"code": {"abc"}, "state": {"s"}}, "abc", "", false},
		{"Denied", url.Values{"error": {"access_denied"}}, "", "access_denied", false},
		{"Description only", url.Values{"error_description": {"denied by user"}}, "", "denied by user", false},
		{"Empty", url.Values{}, "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, err := ParseOAuthCallback(tt.query)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if cb.Code != tt.wantCode || cb.Error != tt.wantError {
				t.Fatalf("callback = %+v", cb)
			}
		})
	}
}

func TestGenerateRandomState(t *testing.T) {
	a, errA := GenerateRandomState()
	b, errB := GenerateRandomState()
	if errA != nil || errB != nil {
		t.Fatalf("errors: %v %v", errA, errB)
	}
	if len(a) != 32 || a == b {
		t.Fatalf("states %q and %q", a, b)
	}
}

func TestEnsureHeader(t *testing.T) {
	target := http.Header{}
	EnsureHeader(target, nil, "User-Agent", "Git-Captain/dev")
	if got := target.Get("User-Agent"); got != "Git-Captain/dev" {
		t.Fatalf("default not applied: %q", got)
	}
	EnsureHeader(target, nil, "User-Agent", "other")
	if got := target.Get("User-Agent"); got != "Git-Captain/dev" {
		t.Fatalf("existing value overwritten: %q", got)
	}
	EnsureHeader(target, http.Header{"User-Agent": {"from-source"}}, "User-Agent", "")
	if got := target.Get("User-Agent"); got != "from-source" {
		t.Fatalf("source value not applied: %q", got)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "nested", ".env")
	if err := WriteFileAtomic(dst, strings.NewReader("PORT=3000\n"), 0o600); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "PORT=3000\n" {
		t.Fatalf("read back %q, %v", data, err)
	}
	entries, _ := os.ReadDir(filepath.Dir(dst))
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
}
