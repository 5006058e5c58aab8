package kura

import (
	"net/url"
	"path"
	"strings"
)

// DocumentExt is the file extension of persisted documents.
const DocumentExt = ".md"

// CanonicalKey returns the de-duplication key for rawURL.
//
// Two URLs share a key when they address the same page on the legacy site:
// scheme, host and path are lowercased, the query and fragment are dropped,
// default ports are removed, ".htm" is treated as ".html", a trailing
// "index.html" is the directory itself, and a trailing slash is ignored.
func CanonicalKey(rawURL string) (string, error) {
	u, err := parseAbsolute(rawURL)
	if err != nil {
		return "", err
	}
	return u.Scheme + "://" + u.Host + canonicalPath(u.Path), nil
}

// Origin returns the scheme and host of rawURL, lowercased and without a
// default port.
func Origin(rawURL string) (string, error) {
	u, err := parseAbsolute(rawURL)
	if err != nil {
		return "", err
	}
	return u.Scheme + "://" + u.Host, nil
}

// StoragePath returns the relative file path a page is persisted at.
// It is derived from the canonical path, so URLs sharing a key share a path.
//
//	https://example.com/            → index.md
//	https://example.com/main        → main.md
//	https://example.com/main/       → main.md
//	https://example.com/a/page.htm  → a/page.md
//	https://example.com/a/data.txt  → a/data.txt.md
func StoragePath(rawURL string) (string, error) {
	u, err := parseAbsolute(rawURL)
	if err != nil {
		return "", err
	}

	p := canonicalPath(u.Path)
	if p == "/" {
		return "index" + DocumentExt, nil
	}
	return strings.TrimSuffix(strings.TrimPrefix(p, "/"), ".html") + DocumentExt, nil
}

// Slug returns the identifier recorded in a document's front matter.
// It is the storage path without its extension.
func Slug(rawURL string) (string, error) {
	p, err := StoragePath(rawURL)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(p, DocumentExt), nil
}

// SlugPath returns the storage path for a slug produced by Slug.
func SlugPath(slug string) string {
	return slug + DocumentExt
}

func parseAbsolute(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, Errorf(EINVALID, "invalid URL %q: %v", rawURL, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, Errorf(EINVALID, "URL must be absolute http(s): %q", rawURL)
	}
	if u.Host == "" {
		return nil, Errorf(EINVALID, "URL has no host: %q", rawURL)
	}

	host := strings.ToLower(u.Host)
	switch {
	case u.Scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}
	u.Host = host
	return u, nil
}

// canonicalPath normalizes a URL path. The result starts with "/" and only
// the root ends with one.
func canonicalPath(p string) string {
	p = path.Clean("/" + strings.ToLower(p))
	if p == "/" {
		return p
	}

	switch base := path.Base(p); {
	case base == "index.html" || base == "index.htm":
		return path.Dir(p)
	case strings.HasSuffix(base, ".htm"):
		return p + "l"
	}
	return p
}
