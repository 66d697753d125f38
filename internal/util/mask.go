package util

import (
	"net/url"
	"strings"
)

// HideToken shortens a credential to its first and last few characters so it
// can appear in debug output without being usable.
func HideToken(token string) string {
	switch {
	case len(token) > 8:
		return token[:4] + "..." + token[len(token)-4:]
	case len(token) > 4:
		return token[:2] + "..." + token[len(token)-2:]
	case len(token) > 2:
		return token[:1] + "..." + token[len(token)-1:]
	}
	return token
}

// MaskAuthorizationHeader masks an Authorization header value while keeping
// its scheme, e.g. "token gho_...abcd" or "Basic Y2xp...OnNl".
func MaskAuthorizationHeader(value string) string {
	parts := strings.SplitN(strings.TrimSpace(value), " ", 2)
	if len(parts) < 2 {
		return HideToken(value)
	}
	return parts[0] + " " + HideToken(parts[1])
}

// MaskSensitiveHeaderValue masks credential-bearing headers and returns every other value unchanged.
func MaskSensitiveHeaderValue(key, value string) string {
	lowerKey := strings.ToLower(strings.TrimSpace(key))
	switch {
	case strings.Contains(lowerKey, "authorization"):
		return MaskAuthorizationHeader(value)
	case strings.Contains(lowerKey, "token"), strings.Contains(lowerKey, "secret"):
		return HideToken(value)
	default:
		return value
	}
}

// MaskSensitiveQuery masks OAuth codes, tokens and secrets within a raw query string.
func MaskSensitiveQuery(raw string) string {
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, "&")
	changed := false
	for i, part := range parts {
		if part == "" {
			continue
		}
		keyPart, valuePart, _ := strings.Cut(part, "=")
		decodedKey, errKey := url.QueryUnescape(keyPart)
		if errKey != nil {
			decodedKey = keyPart
		}
		if !shouldMaskQueryParam(decodedKey) {
			continue
		}
		decodedValue, errValue := url.QueryUnescape(valuePart)
		if errValue != nil {
			decodedValue = valuePart
		}
		parts[i] = keyPart + "=" + url.QueryEscape(HideToken(strings.TrimSpace(decodedValue)))
		changed = true
	}
	if !changed {
		return raw
	}
	return strings.Join(parts, "&")
}

func shouldMaskQueryParam(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return false
	}
	switch key {
	case "code", "state", "client_id":
		return true
	}
	return strings.Contains(key, "token") || strings.Contains(key, "secret")
}
