// Package diff describes what changed between two configurations so a reload
// can log it. Secrets are never printed.
package diff

import (
	"fmt"
	"slices"

	"github.com/git-captain/git-captain/internal/config"
)

// BuildConfigChangeDetails lists the fields that differ between oldCfg and
// newCfg, one "key: old -> new" line each. Either side nil yields no details.
func BuildConfigChangeDetails(oldCfg, newCfg *config.Config) []string {
	if oldCfg == nil || newCfg == nil {
		return nil
	}
	var changes []string
	add := func(key string, oldValue, newValue any) {
		if oldValue != newValue {
			changes = append(changes, fmt.Sprintf("%s: %v -> %v", key, oldValue, newValue))
		}
	}
	secret := func(key, oldValue, newValue string) {
		if oldValue != newValue {
			changes = append(changes, key+": updated")
		}
	}

	add("host", oldCfg.Host, newCfg.Host)
	add("port", oldCfg.Port, newCfg.Port)
	add("environment", oldCfg.Environment, newCfg.Environment)
	add("debug", oldCfg.Debug, newCfg.Debug)
	add("logging-to-file", oldCfg.LoggingToFile, newCfg.LoggingToFile)
	add("logs-max-total-size-mb", oldCfg.LogsMaxTotalSizeMB, newCfg.LogsMaxTotalSizeMB)
	secret("proxy-url", oldCfg.ProxyURL, newCfg.ProxyURL)
	add("git-port-endpoint", oldCfg.GitPortEndpoint, newCfg.GitPortEndpoint)

	add("github.client-id", oldCfg.GitHub.ClientID, newCfg.GitHub.ClientID)
	secret("github.client-secret", oldCfg.GitHub.ClientSecret, newCfg.GitHub.ClientSecret)
	add("github.org-name", oldCfg.GitHub.OrgName, newCfg.GitHub.OrgName)
	add("github.api-base-url", oldCfg.GitHub.APIBaseURL, newCfg.GitHub.APIBaseURL)
	add("github.oauth-base-url", oldCfg.GitHub.OAuthBaseURL, newCfg.GitHub.OAuthBaseURL)
	add("github.status-url", oldCfg.GitHub.StatusURL, newCfg.GitHub.StatusURL)

	add("tls.private-key-path", oldCfg.TLS.PrivateKeyPath, newCfg.TLS.PrivateKeyPath)
	add("tls.certificate-path", oldCfg.TLS.CertificatePath, newCfg.TLS.CertificatePath)

	add("rate-limit.github-max-per-minute", oldCfg.RateLimit.GitHubMaxPerMinute, newCfg.RateLimit.GitHubMaxPerMinute)
	add("rate-limit.general-per-minute", oldCfg.RateLimit.GeneralPerMinute, newCfg.RateLimit.GeneralPerMinute)
	add("rate-limit.auth-per-window", oldCfg.RateLimit.AuthPerWindow, newCfg.RateLimit.AuthPerWindow)
	add("rate-limit.auth-window-minutes", oldCfg.RateLimit.AuthWindowMinutes, newCfg.RateLimit.AuthWindowMinutes)

	add("cors.enforce", oldCfg.CORS.Enforce, newCfg.CORS.Enforce)
	if !slices.Equal(oldCfg.CORS.ExtraOrigins, newCfg.CORS.ExtraOrigins) {
		changes = append(changes, fmt.Sprintf("cors.extra-origins: updated (%d -> %d entries)", len(oldCfg.CORS.ExtraOrigins), len(newCfg.CORS.ExtraOrigins)))
	}

	add("status.status", oldCfg.Status.Status, newCfg.Status.Status)
	add("status.reason", oldCfg.Status.Reason, newCfg.Status.Reason)
	add("client-timeout-minutes", oldCfg.ClientTimeoutMinutes, newCfg.ClientTimeoutMinutes)
	add("session-timeout-minutes", oldCfg.SessionTimeoutMinutes, newCfg.SessionTimeoutMinutes)
	return changes
}

// RequiresRestart reports whether a change only takes effect after a restart.
func RequiresRestart(oldCfg, newCfg *config.Config) bool {
	if oldCfg == nil || newCfg == nil {
		return false
	}
	return oldCfg.Host != newCfg.Host ||
		oldCfg.Port != newCfg.Port ||
		oldCfg.TLS != newCfg.TLS ||
		oldCfg.Environment != newCfg.Environment ||
		oldCfg.GitHub != newCfg.GitHub ||
		oldCfg.ProxyURL != newCfg.ProxyURL
}
