package crawler

import (
	"net/url"
	"strings"
)

// CleanHref resolves href against base and strips the fragment. It returns
// "" for empty, fragment-only, javascript: and data: links.
func CleanHref(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "data:") ||
		strings.HasPrefix(lower, "mailto:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	u := base.ResolveReference(ref)
	u.Fragment = ""
	return u.String()
}

// ListingURL reports whether href (relative to base) points at an app
// detail page on base's host and returns its canonical form:
// scheme://host<detailPath>?id=<id>&hl=<lang>. Two links to the same app
// always canonicalize to the same string.
func ListingURL(base *url.URL, href, detailPath, lang string) (string, bool) {
	abs := CleanHref(base, href)
	if abs == "" {
		return "", false
	}
	u, err := url.Parse(abs)
	if err != nil || !strings.EqualFold(u.Host, base.Host) || u.Path != detailPath {
		return "", false
	}
	id := u.Query().Get("id")
	if id == "" {
		return "", false
	}
	query := "id=" + url.QueryEscape(id)
	if lang != "" {
		query += "&hl=" + url.QueryEscape(lang)
	}
	canon := url.URL{Scheme: u.Scheme, Host: strings.ToLower(u.Host), Path: detailPath, RawQuery: query}
	return canon.String(), true
}

// AppID returns the id query parameter of a listing URL.
func AppID(listing string) string {
	u, err := url.Parse(listing)
	if err != nil {
		return ""
	}
	return u.Query().Get("id")
}
