package util

import "testing"

func TestCanonicalURL(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases_scheme_and_host", "HTTP://EXAMPLE.com/Path", "http://example.com/Path"},
		{"strips_default_http_port", "http://example.com:80/a", "http://example.com/a"},
		{"strips_default_https_port", "https://example.com:443/a", "https://example.com/a"},
		{"keeps_custom_port", "http://example.com:8080/a", "http://example.com:8080/a"},
		{"drops_fragment", "https://example.com/a#section", "https://example.com/a"},
		{"adds_root_path", "https://example.com", "https://example.com/"},
		{"keeps_query", "https://example.com/a?b=1&c=2", "https://example.com/a?b=1&c=2"},
		{"trims_whitespace", "  https://example.com/a  ", "https://example.com/a"},
		{"empty", "", ""},
		{"no_scheme", "example.com/a", ""},
		{"garbage", "ht tp://%zz", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanonicalURL(tc.in); got != tc.want {
				t.Fatalf("CanonicalURL(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestCanonicalURLIdempotent(t *testing.T) {
	in := "HTTPS://Example.COM:443/x?q=1#frag"
	once := CanonicalURL(in)
	twice := CanonicalURL(once)
	if once != twice {
		t.Fatalf("not idempotent: %q vs %q", once, twice)
	}
}

func TestIsHTTP(t *testing.T) {
	yes := []string{"http://a.com", "https://a.com/b", "HTTPS://A.COM"}
	no := []string{"ftp://a.com", "file:///etc/passwd", "data:text/plain,x", "", "a.com"}
	for _, u := range yes {
		if !IsHTTP(u) {
			t.Fatalf("IsHTTP(%q) = false, want true", u)
		}
	}
	for _, u := range no {
		if IsHTTP(u) {
			t.Fatalf("IsHTTP(%q) = true, want false", u)
		}
	}
}

func TestSafeSegment(t *testing.T) {
	ok := []string{"abcdef0123456789", "a", "A-b_c.d", "ff00ff"}
	bad := []string{"", ".", "..", ".hidden", "a/b", "a\\b", "a b", "a\x00b", "über"}
	for _, s := range ok {
		if !SafeSegment(s) {
			t.Fatalf("SafeSegment(%q) = false, want true", s)
		}
	}
	for _, s := range bad {
		if SafeSegment(s) {
			t.Fatalf("SafeSegment(%q) = true, want false", s)
		}
	}
	long := make([]byte, maxSegment+1)
	for i := range long {
		long[i] = 'a'
	}
	if SafeSegment(string(long)) {
		t.Fatalf("SafeSegment should reject over-length names")
	}
}
