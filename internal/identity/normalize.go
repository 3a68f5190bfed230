package identity

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeUserID normalizes a user ID for lookup (lowercase, no diacritics,
// spaces for dashes) so "jan-novak" finds "Jan Novák".
func NormalizeUserID(id string) string {
	id = RemoveDiacritics(id)
	id = strings.ToLower(id)
	id = strings.ReplaceAll(id, "-", " ")
	return strings.TrimSpace(id)
}

// Resolve finds the enrolled user ID matching the query, first exactly, then
// by normalized comparison. Returns false when nothing matches.
func (r *Registry) Resolve(query string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.records[query]; ok {
		return query, true
	}
	want := NormalizeUserID(query)
	for id := range r.records {
		if NormalizeUserID(id) == want {
			return id, true
		}
	}
	return "", false
}
