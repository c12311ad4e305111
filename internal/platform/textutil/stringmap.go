// Package textutil holds small string helpers shared by the integrations.
package textutil

import "strings"

// NormalizeStringMap returns a copy of values with every key and value
// whitespace-trimmed. Entries whose key trims to nothing are dropped; the
// payment gateway relies on this so stray padding never reaches Stripe
// metadata. A map with no surviving entries collapses to nil.
func NormalizeStringMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for key, value := range values {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		out[key] = strings.TrimSpace(value)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
