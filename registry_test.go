package webstash

import (
	"context"
	"sync/atomic"
	"testing"
)

// ==============================
// ShouldIntercept priority
// ==============================

func TestInterceptInactiveRegistry(t *testing.T) {
	reg := NewRegistry()
	if reg.Active() {
		t.Fatalf("empty registry should be inactive")
	}
	if reg.ShouldIntercept(&Request{URL: "http://example.com/"}) {
		t.Fatalf("empty registry should intercept nothing")
	}
}

func TestInterceptHandledPassesThrough(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStash(t, func(o *Options) {
		o.Offline = func() bool { return true }
	})
	defer st.Close(ctx)

	req := &Request{URL: "http://example.com/", Handled: true}
	if st.Registry().ShouldIntercept(req) {
		t.Fatalf("handled requests must pass through, even offline")
	}
}

func TestInterceptNilAndEmptyURL(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStash(t, func(o *Options) {
		o.Offline = func() bool { return true }
	})
	defer st.Close(ctx)

	reg := st.Registry()
	if reg.ShouldIntercept(nil) {
		t.Fatalf("nil request should never intercept")
	}
	if reg.ShouldIntercept(&Request{}) {
		t.Fatalf("empty url should never intercept")
	}
}

// TestInterceptOfflineWinsOverBypass: connectivity loss outranks the host's
// opt-out marker.
func TestInterceptOfflineWinsOverBypass(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStash(t, func(o *Options) {
		o.Offline = func() bool { return true }
	})
	defer st.Close(ctx)

	req := &Request{URL: "http://example.com/api", Bypass: true}
	if !st.Registry().ShouldIntercept(req) {
		t.Fatalf("offline should intercept bypass-marked requests")
	}
}

// TestInterceptOfflineTakesEverything: the scheme and membership gates
// guard the prefer-cache rule only.
func TestInterceptOfflineTakesEverything(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStash(t, func(o *Options) {
		o.Offline = func() bool { return true }
	})
	defer st.Close(ctx)

	reg := st.Registry()
	for _, u := range []string{
		"http://never-stored.example/x",
		"ftp://files.example.com/a",
		"ws://example.com/socket",
	} {
		if !reg.ShouldIntercept(&Request{URL: u}) {
			t.Fatalf("offline should intercept %q", u)
		}
	}
}

func TestInterceptOfflineConsultedFresh(t *testing.T) {
	ctx := context.Background()
	var offline atomic.Bool
	st, _ := newTestStash(t, func(o *Options) {
		o.Offline = offline.Load
	})
	defer st.Close(ctx)

	reg := st.Registry()
	req := &Request{URL: "http://example.com/"}

	if reg.ShouldIntercept(req) {
		t.Fatalf("online: nothing qualifies")
	}
	offline.Store(true)
	if !reg.ShouldIntercept(req) {
		t.Fatalf("connectivity loss should show up on the next call")
	}
	offline.Store(false)
	if reg.ShouldIntercept(req) {
		t.Fatalf("regained connectivity should show up on the next call")
	}
}

// TestInterceptBypassWinsOverPreferCache: the opt-out beats cache
// membership while online.
func TestInterceptBypassWinsOverPreferCache(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStash(t, func(o *Options) { o.PreferCache = true })
	defer st.Close(ctx)

	u := "http://example.com/page"
	if !st.Store(ctx, &Request{URL: u, Tagged: true}, respFor(u, 200, "stored")) {
		t.Fatalf("seed store failed")
	}

	reg := st.Registry()
	if reg.ShouldIntercept(&Request{URL: u, Bypass: true}) {
		t.Fatalf("bypass should beat prefer-cache membership")
	}
	if !reg.ShouldIntercept(&Request{URL: u}) {
		t.Fatalf("prefer-cache should intercept stored urls")
	}
}

func TestInterceptPreferCacheNeedsMembership(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStash(t, func(o *Options) { o.PreferCache = true })
	defer st.Close(ctx)

	if st.Registry().ShouldIntercept(&Request{URL: "http://example.com/not-stored"}) {
		t.Fatalf("prefer-cache must not intercept urls it cannot serve")
	}
}

func TestInterceptPreferCacheOffByDefault(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStash(t, nil)
	defer st.Close(ctx)

	u := "http://example.com/page"
	if !st.Store(ctx, &Request{URL: u, Tagged: true}, respFor(u, 200, "stored")) {
		t.Fatalf("seed store failed")
	}
	if st.Registry().ShouldIntercept(&Request{URL: u}) {
		t.Fatalf("membership alone must not intercept while online")
	}
}

// TestInterceptSchemeGate: prefer-cache only answers web traffic, even when
// a record for the key exists.
func TestInterceptSchemeGate(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStash(t, func(o *Options) { o.PreferCache = true })
	defer st.Close(ctx)
	impl := mustStash(t, st)

	u := "ws://example.com/socket"
	if !st.Store(ctx, &Request{URL: u, Tagged: true}, respFor(u, 101, "upgrade")) {
		t.Fatalf("seed store failed")
	}
	if !impl.containsURL(u) {
		t.Fatalf("membership should exist for the socket url")
	}
	if st.Registry().ShouldIntercept(&Request{URL: u}) {
		t.Fatalf("non-web schemes must not be intercepted for prefer-cache")
	}
}

// TestInterceptSessionOwnershipWins: a live capture owns its page traffic
// ahead of every other rule.
func TestInterceptSessionOwnershipWins(t *testing.T) {
	ctx := context.Background()
	st, _ := newCaptureStash(t, nil)
	defer st.Close(ctx)

	const root = "http://example.com/root"
	sess, err := st.BeginCapture(root, func(*CaptureSession) bool { return false }, nil, nil)
	if err != nil {
		t.Fatalf("BeginCapture: %v", err)
	}

	reg := st.Registry()

	// Subresource of the captured page, despite the opt-out marker.
	sub := &Request{URL: "http://cdn.example.net/font.woff", MainDocumentURL: "HTTP://EXAMPLE.com:80/root", Bypass: true}
	if !reg.ShouldIntercept(sub) {
		t.Fatalf("ownership should beat bypass")
	}

	// The root itself, matched by URL when no main document is set.
	if !reg.ShouldIntercept(&Request{URL: "HTTP://example.com:80/root"}) {
		t.Fatalf("the root url itself should be owned")
	}

	// Unrelated page: none of the rules match.
	if reg.ShouldIntercept(&Request{URL: "http://other.example/", MainDocumentURL: "http://other.example/"}) {
		t.Fatalf("unrelated traffic must not be owned")
	}

	sess.Cancel()
	if reg.ShouldIntercept(sub) {
		t.Fatalf("a cancelled session owns nothing")
	}
}

// ==============================
// Canonicalize
// ==============================

func TestCanonicalizeRewritesRequest(t *testing.T) {
	reg := NewRegistry()

	req := &Request{URL: "HTTP://Example.COM:80/Page?q=1#frag", Bypass: true}
	out := reg.Canonicalize(req)

	if out == req {
		t.Fatalf("Canonicalize must return a copy")
	}
	if out.URL != "http://example.com/Page?q=1" {
		t.Fatalf("URL = %q, want the canonical form", out.URL)
	}
	if out.Policy != LoadPreferCache || !out.Handled {
		t.Fatalf("rewrite = %+v, want prefer-cache and handled", out)
	}
	if out.Tagged {
		t.Fatalf("unowned requests must not gain the storage tag")
	}
	if !out.Bypass {
		t.Fatalf("other markers must survive the copy")
	}
	if req.Handled || req.Policy != LoadDefault || req.URL != "HTTP://Example.COM:80/Page?q=1#frag" {
		t.Fatalf("the original request must stay untouched: %+v", req)
	}

	if reg.Canonicalize(nil) != nil {
		t.Fatalf("Canonicalize(nil) should be nil")
	}
}

func TestCanonicalizeKeepsUnparseableURL(t *testing.T) {
	reg := NewRegistry()
	out := reg.Canonicalize(&Request{URL: "://nope"})
	if out.URL != "://nope" {
		t.Fatalf("URL = %q, want the original when canonicalization fails", out.URL)
	}
	if !out.Handled || out.Policy != LoadPreferCache {
		t.Fatalf("markers should still be stamped: %+v", out)
	}
}

func TestCanonicalizeTagsOwnedRequest(t *testing.T) {
	ctx := context.Background()
	st, _ := newCaptureStash(t, nil)
	defer st.Close(ctx)

	const root = "http://example.com/root"
	sess, err := st.BeginCapture(root, func(*CaptureSession) bool { return false }, nil, nil)
	if err != nil {
		t.Fatalf("BeginCapture: %v", err)
	}
	defer sess.Cancel()

	reg := st.Registry()
	owned := reg.Canonicalize(&Request{URL: "http://example.com/app.js", MainDocumentURL: root})
	if !owned.Tagged {
		t.Fatalf("owned requests must be tagged for storage")
	}

	foreign := reg.Canonicalize(&Request{URL: "http://other.example/x", MainDocumentURL: "http://other.example/"})
	if foreign.Tagged {
		t.Fatalf("foreign requests must stay untagged")
	}
}

// ==============================
// Registration bookkeeping
// ==============================

func TestActiveTransitions(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()

	var events []bool
	reg.OnActiveChange(func(active bool) { events = append(events, active) })

	st1, _ := newTestStash(t, func(o *Options) { o.Registry = reg })
	st2, _ := newTestStash(t, func(o *Options) { o.Registry = reg })

	if len(events) != 1 || !events[0] {
		t.Fatalf("events after two opens = %v, want [true]", events)
	}
	if err := st1.Close(ctx); err != nil {
		t.Fatalf("Close st1: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("closing one of two facades must not deactivate, events = %v", events)
	}
	if err := st2.Close(ctx); err != nil {
		t.Fatalf("Close st2: %v", err)
	}
	if len(events) != 2 || events[1] {
		t.Fatalf("events = %v, want [true false]", events)
	}
}

func TestAddSessionToUnregisteredFacade(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStash(t, nil)
	impl := mustStash(t, st)
	reg := st.Registry()

	if err := st.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if reg.addSession(impl, &CaptureSession{owner: impl}) {
		t.Fatalf("addSession on a closed facade should report false")
	}
}
