package logging

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// RedactedValue is the canonical placeholder used for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

var (
	allowlistMu        sync.RWMutex
	redactionAllowlist = map[string]struct{}{
		"service":   {},
		"env":       {},
		"message":   {},
		"severity":  {},
		"timestamp": {},
		"error":     {},
		"reason":    {},
		"component": {},
		"op":        {},
		"vault":     {},
		"strategy":  {},
	}
)

// Allow exempts additional keys from redaction. Operators list the account
// fields they are permitted to log in observability.LogAllowlist.
func Allow(keys ...string) {
	allowlistMu.Lock()
	defer allowlistMu.Unlock()
	for _, key := range keys {
		normalized := strings.ToLower(strings.TrimSpace(key))
		if normalized != "" {
			redactionAllowlist[normalized] = struct{}{}
		}
	}
}

// IsAllowlisted reports whether the provided key is exempt from automatic redaction.
func IsAllowlisted(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	allowlistMu.RLock()
	defer allowlistMu.RUnlock()
	_, ok := redactionAllowlist[normalized]
	return ok
}

// RedactionAllowlist returns a sorted copy of the log keys that are allowed to be emitted
// without redaction.
func RedactionAllowlist() []string {
	allowlistMu.RLock()
	keys := make([]string, 0, len(redactionAllowlist))
	for key := range redactionAllowlist {
		keys = append(keys, key)
	}
	allowlistMu.RUnlock()
	sort.Strings(keys)
	return keys
}

// MaskField returns a slog.Attr that redacts the supplied value unless the key is
// explicitly allowlisted. Contract addresses (vault, strategy) are allowlisted;
// user accounts are not.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}
