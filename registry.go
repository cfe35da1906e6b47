package webstash

import (
	"sync"

	"github.com/unkn0wn-root/webstash/internal/util"
)

// Registry is the process-scoped decision point the host's networking stack
// consults per request. It tracks every open facade in registration order
// and, per facade, the capture sessions that are currently live. Construct
// one with NewRegistry and share it between the facades that should answer
// for each other's traffic.
//
// Lock discipline: the registry holds one mutex for its bookkeeping only.
// Snapshots are copied out under the lock and released before any facade
// predicate, session state or disk index is consulted, so the registry lock
// never nests with a cache lock.
type Registry struct {
	mu       sync.Mutex
	entries  []*registryEntry
	onActive func(bool)
}

type registryEntry struct {
	st       *stash
	sessions []*CaptureSession
}

// NewRegistry returns an empty registry. It becomes active when the first
// facade registers and inactive when the last one closes.
func NewRegistry() *Registry { return &Registry{} }

// OnActiveChange installs fn to observe 0->1 and 1->0 facade transitions.
// Hosts typically install/uninstall their request filter here. fn runs
// outside the registry lock.
func (r *Registry) OnActiveChange(fn func(active bool)) {
	r.mu.Lock()
	r.onActive = fn
	r.mu.Unlock()
}

// Active reports whether at least one facade is registered. While false the
// host should not route requests through ShouldIntercept at all.
func (r *Registry) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries) > 0
}

// ShouldIntercept decides whether the layer wants req. Evaluation order,
// first match wins:
//
//  1. requests already handled by this layer pass through
//  2. a live capture session owning the request intercepts
//  3. any facade reporting offline intercepts (the predicate is consulted
//     fresh on every call)
//  4. a bypass-marked request is left alone
//  5. a prefer-cache facade intercepts http(s) requests it has on disk
//
// Facades are consulted in registration order, sessions in per-facade
// registration order.
func (r *Registry) ShouldIntercept(req *Request) bool {
	if req == nil || req.URL == "" || req.Handled {
		return false
	}
	snap := r.snapshot()

	for _, e := range snap {
		for _, sess := range e.sessions {
			if sess.owns(req) {
				return true
			}
		}
	}
	for _, e := range snap {
		if e.st.isOffline() {
			return true
		}
	}
	if req.Bypass {
		return false
	}
	if !util.IsHTTP(req.URL) {
		return false
	}
	for _, e := range snap {
		if e.st.preferCache && e.st.containsURL(req.URL) {
			return true
		}
	}
	return false
}

// Canonicalize returns the rewritten copy of req that the layer actually
// wants loaded: canonical URL, cache-preferring policy, handled marker set.
// A request owned by a live capture session additionally gets the storage
// tag forced on, so its response lands on disk.
func (r *Registry) Canonicalize(req *Request) *Request {
	if req == nil {
		return nil
	}
	out := req.Clone()
	if cu := util.CanonicalURL(req.URL); cu != "" {
		out.URL = cu
	}
	out.Policy = LoadPreferCache
	out.Handled = true

	for _, e := range r.snapshot() {
		for _, sess := range e.sessions {
			if sess.owns(req) {
				out.Tagged = true
				return out
			}
		}
	}
	return out
}

func (r *Registry) snapshot() []registryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]registryEntry, 0, len(r.entries))
	for _, e := range r.entries {
		cp := registryEntry{st: e.st}
		if len(e.sessions) > 0 {
			cp.sessions = append([]*CaptureSession(nil), e.sessions...)
		}
		out = append(out, cp)
	}
	return out
}

func (r *Registry) register(st *stash) {
	r.mu.Lock()
	r.entries = append(r.entries, &registryEntry{st: st})
	activated := len(r.entries) == 1
	fn := r.onActive
	r.mu.Unlock()
	if activated && fn != nil {
		fn(true)
	}
}

func (r *Registry) deregister(st *stash) {
	r.mu.Lock()
	removed := false
	for i, e := range r.entries {
		if e.st == st {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			removed = true
			break
		}
	}
	deactivated := removed && len(r.entries) == 0
	fn := r.onActive
	r.mu.Unlock()
	if deactivated && fn != nil {
		fn(false)
	}
}

// addSession reports false when st is not registered (closed facade).
func (r *Registry) addSession(st *stash, sess *CaptureSession) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.st == st {
			e.sessions = append(e.sessions, sess)
			return true
		}
	}
	return false
}

func (r *Registry) removeSession(st *stash, sess *CaptureSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.st != st {
			continue
		}
		for i, got := range e.sessions {
			if got == sess {
				e.sessions = append(e.sessions[:i], e.sessions[i+1:]...)
				return
			}
		}
		return
	}
}

func (r *Registry) sessionsOf(st *stash) []*CaptureSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.st == st {
			return append([]*CaptureSession(nil), e.sessions...)
		}
	}
	return nil
}
