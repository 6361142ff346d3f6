// Package redact strips credentials from text before it is logged or stored.
//
// Shiori's only secret is the Matrix access token, but the homeserver client
// can echo request details into its errors, and module audit payloads are
// free-form. Redaction is string based and best-effort.
package redact

import (
	"strings"
)

// Placeholder replaces every redacted value.
const Placeholder = "[REDACTED]"

// minSecretLen keeps short values from blanking common substrings.
const minSecretLen = 4

var sensitiveWords = []string{"password", "passwd", "token", "secret", "credential", "auth", "apikey", "api_key"}

// Redactor hides a fixed set of secret values. The zero value and a nil
// *Redactor hide nothing but still mask sensitive map keys.
type Redactor struct {
	secrets []string
}

// New returns a Redactor for the given secrets. Blank and very short
// values are ignored.
func New(secrets ...string) *Redactor {
	r := &Redactor{}
	for _, s := range secrets {
		if len(strings.TrimSpace(s)) >= minSecretLen {
			r.secrets = append(r.secrets, s)
		}
	}
	return r
}

// String returns s with every secret replaced by Placeholder.
func (r *Redactor) String(s string) string {
	if r == nil {
		return s
	}
	for _, secret := range r.secrets {
		s = strings.ReplaceAll(s, secret, Placeholder)
	}
	return s
}

// Err renders err for a log line. A nil err renders as "".
func (r *Redactor) Err(err error) string {
	if err == nil {
		return ""
	}
	return r.String(err.Error())
}

// Map returns a shallow copy of m where string values are scrubbed of
// secrets, and string values under keys that look like credentials
// ("token", "password", ...) are replaced outright.
func (r *Redactor) Map(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		str, ok := v.(string)
		switch {
		case !ok:
			out[k] = v
		case str != "" && isSensitiveKey(k):
			out[k] = Placeholder
		default:
			out[k] = r.String(str)
		}
	}
	return out
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, word := range sensitiveWords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}
