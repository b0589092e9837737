package media

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeSourceURL standardizes a submitted URL: it trims whitespace,
// prepends https:// when no scheme is present, and reparses to canonical form.
func NormalizeSourceURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty url")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", raw)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return u.String(), nil
}

// SanitizeURLs normalizes a submitted URL list, dropping blanks and
// unparseable entries and deduplicating while preserving submission order.
func SanitizeURLs(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		u, err := NormalizeSourceURL(r)
		if err != nil {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// ResolveURL resolves a candidate asset URL to absolute form relative to the
// page URL. Protocol-relative candidates are pinned to https. It returns an
// empty string for candidates that cannot be resolved.
func ResolveURL(candidate string, page *url.URL) string {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return ""
	}
	if strings.HasPrefix(candidate, "//") {
		return "https:" + candidate
	}
	if strings.HasPrefix(candidate, "http://") || strings.HasPrefix(candidate, "https://") {
		return candidate
	}
	if page == nil {
		return ""
	}
	ref, err := url.Parse(candidate)
	if err != nil {
		return ""
	}
	return page.ResolveReference(ref).String()
}
