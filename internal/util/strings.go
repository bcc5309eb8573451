// Package util provides common utility functions used across the oidc-core
// library. These utilities handle string-set manipulation and log-safe
// formatting that don't fit into domain-specific packages.
package util

// SafeTruncate safely truncates a string to maxLen characters without
// panicking. Returns the original string if it's shorter than maxLen,
// otherwise returns the first maxLen characters. Used when logging sensitive
// data like token values, where only a prefix should be shown.
func SafeTruncate(s string, maxLen int) string {
	if maxLen < 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// Contains reports whether set contains value
func Contains(set []string, value string) bool {
	for _, v := range set {
		if v == value {
			return true
		}
	}
	return false
}

// ContainsAll reports whether every element of subset appears in set
func ContainsAll(set, subset []string) bool {
	for _, v := range subset {
		if !Contains(set, v) {
			return false
		}
	}
	return true
}

// Intersect returns the elements of a that also appear in b, preserving the
// order of a. The inputs are not modified.
func Intersect(a, b []string) []string {
	out := make([]string, 0, len(a))
	for _, v := range a {
		if Contains(b, v) {
			out = append(out, v)
		}
	}
	return out
}

// CopySet returns a copy of the given string set. A nil input yields nil,
// preserving the distinction between "no scope" and "empty scope".
func CopySet(set []string) []string {
	if set == nil {
		return nil
	}
	out := make([]string, len(set))
	copy(out, set)
	return out
}

// Dedupe returns the set with duplicate values removed, preserving first
// occurrence order.
func Dedupe(set []string) []string {
	if set == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(set))
	out := make([]string, 0, len(set))
	for _, v := range set {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
