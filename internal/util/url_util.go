package util

import (
	"net/url"
	"strings"
)

// ResolveURL 拼接URL, relative wins when it is absolute
func ResolveURL(baseURL, relativeURL string) string {
	if baseURL == "" {
		return relativeURL
	}
	if relativeURL == "" {
		return baseURL
	}
	if IsAbsoluteURL(relativeURL) {
		return relativeURL
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return simpleCombineURL(baseURL, relativeURL)
	}
	relative, err := url.Parse(relativeURL)
	if err != nil {
		return simpleCombineURL(baseURL, relativeURL)
	}
	return base.ResolveReference(relative).String()
}

// IsAbsoluteURL reports whether u carries a scheme
func IsAbsoluteURL(u string) bool {
	parsed, err := url.Parse(u)
	return err == nil && parsed.Scheme != "" && (parsed.Host != "" || parsed.Scheme == "file" || parsed.Opaque != "")
}

// DirectoryURL strips the last path element, query and fragment of u
func DirectoryURL(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	lastSlash := strings.LastIndex(u, "/")
	if lastSlash < 0 {
		return ""
	}
	if schemeEnd := strings.Index(u, "://"); schemeEnd >= 0 && lastSlash < schemeEnd+3 {
		return u + "/"
	}
	return u[:lastSlash+1]
}

// 简单的URL拼接，作为fallback
func simpleCombineURL(base, relative string) string {
	base = DirectoryURL(base)
	if base != "" && !strings.HasSuffix(base, "/") {
		base += "/"
	}
	relative = strings.TrimPrefix(relative, "./")
	relative = strings.TrimPrefix(relative, "/")
	return base + relative
}
