// Package secret holds helpers for provider credentials read from configuration.
package secret

import "strings"

// placeholderMarkers are fragments found in sample .env files that were never filled in.
var placeholderMarkers = []string{
	"your_",
	"your-",
	"changeme",
	"<api-key>",
}

// IsPlaceholder reports whether key is empty or an obvious sample value.
func IsPlaceholder(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	if k == "" {
		return true
	}
	for _, m := range placeholderMarkers {
		if strings.Contains(k, m) {
			return true
		}
	}
	return false
}

// IsConfigured is the inverse of IsPlaceholder.
func IsConfigured(key string) bool {
	return !IsPlaceholder(key)
}
