// Package strings provides string manipulation utilities.
package strings

import (
	"strings"
)

// DedupeAndTrimLower trims whitespace, lowercases, and removes duplicates
// and empty strings from a slice. Order of first occurrence is preserved.
// Used to fold recipient lists where the same address may appear under
// several contract roles.
//
// Example:
//
//	DedupeAndTrimLower([]string{"  Owner@Example.com ", "tenant@example.com", "owner@example.com"})
//	// Returns: []string{"owner@example.com", "tenant@example.com"}
func DedupeAndTrimLower(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		normalized := strings.ToLower(strings.TrimSpace(v))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; !ok {
			seen[normalized] = struct{}{}
			result = append(result, normalized)
		}
	}

	return result
}
