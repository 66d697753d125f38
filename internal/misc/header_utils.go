// Package misc holds small helpers shared by the server, the setup wizard and
// the GitHub client: header defaults, OAuth callback parsing and safe file writes.
package misc

import (
	"net/http"
	"strings"
)

// EnsureHeader sets key on target from source, or else from defaultValue,
// unless target already carries a non-blank value. Blank values are never set.
func EnsureHeader(target http.Header, source http.Header, key, defaultValue string) {
	if target == nil {
		return
	}
	if source != nil {
		if val := strings.TrimSpace(source.Get(key)); val != "" {
			target.Set(key, val)
			return
		}
	}
	if strings.TrimSpace(target.Get(key)) != "" {
		return
	}
	if val := strings.TrimSpace(defaultValue); val != "" {
		target.Set(key, val)
	}
}
