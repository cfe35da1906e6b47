package util

import (
	"net/url"
	"strings"
)

// CanonicalURL normalizes raw so that equal resources map to equal strings:
// scheme and host are lowercased, default ports are stripped, the fragment is
// dropped, and an empty http(s) path becomes "/". Query strings are preserved
// byte-for-byte. Returns "" when raw is empty or unparseable.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return ""
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	switch u.Scheme {
	case "http":
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case "https":
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	u.Fragment = ""
	if (u.Scheme == "http" || u.Scheme == "https") && u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

// IsHTTP reports whether raw parses to an http or https URL.
func IsHTTP(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	s := strings.ToLower(u.Scheme)
	return s == "http" || s == "https"
}

const maxSegment = 200

// SafeSegment reports whether name can be used verbatim as a file name inside
// the cache directory: non-empty, bounded length, no path separators, no
// leading dot (dotfiles are reserved for temp files). Hex digests always pass.
func SafeSegment(name string) bool {
	if name == "" || len(name) > maxSegment {
		return false
	}
	if name[0] == '.' {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '.' || c == '_' || c == '-':
		default:
			return false
		}
	}
	return true
}
