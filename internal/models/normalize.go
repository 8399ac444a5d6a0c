package models

import "strings"

// NormalizeDomain canonicalizes a user-supplied domain string: trimmed,
// lowercased, scheme and leading www. stripped, one trailing slash removed.
// An empty result means the input was not a usable domain.
func NormalizeDomain(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	d = strings.TrimSuffix(d, "/")
	return d
}

// IsApex reports whether a normalized domain is an apex/root domain,
// i.e. has exactly two label segments (example.com but not blog.example.com).
func IsApex(domain string) bool {
	return strings.Count(domain, ".") == 1
}

// NormalizeDomainSet normalizes a batch, dropping empties and duplicates
// while preserving first-seen order.
func NormalizeDomainSet(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		d := NormalizeDomain(r)
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}

// UnionAliases appends to current every incoming entry not already present,
// preserving the existing order. The current slice is never shrunk: alias
// convergence is additive only.
func UnionAliases(current []string, incoming []string) []string {
	seen := make(map[string]struct{}, len(current))
	out := make([]string, 0, len(current)+len(incoming))
	for _, a := range current {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	for _, a := range incoming {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
