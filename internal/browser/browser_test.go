package browser

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestPlatformCommand(t *testing.T) {
	const url = "https://localhost:3000/"
	onlyFirefox := func(name string) (string, error) {
		if name == "firefox" {
			return "/usr/bin/firefox", nil
		}
		return "", errors.New("not found")
	}
	nothing := func(string) (string, error) { return "", errors.New("not found") }

	tests := []struct {
		name     string
		goos     string
		lookPath func(string) (string, error)
		wantBin  string
		wantErr  bool
	}{
		{"mac", "darwin", nothing, "open", false},
		{"windows", "windows", nothing, "rundll32", false},
		{"linux picks first available", "linux", onlyFirefox, "firefox", false},
		{"linux without browser", "linux", nothing, "", true},
		{"unknown os", "plan9", nothing, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := platformCommand(tt.goos, url, tt.lookPath)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := filepath.Base(cmd.Args[0]); got != tt.wantBin {
				t.Fatalf("command = %s, want %s", got, tt.wantBin)
			}
			if cmd.Args[len(cmd.Args)-1] != url {
				t.Fatalf("url not passed: %v", cmd.Args)
			}
		})
	}
}
