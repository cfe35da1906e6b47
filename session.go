package webstash

import (
	"sync"

	"github.com/unkn0wn-root/webstash/internal/util"
)

// SessionState is the capture lifecycle. Terminal states absorb: once a
// session completes, fails or is cancelled it never transitions again.
type SessionState int

const (
	SessionIdle SessionState = iota
	SessionLoading
	SessionCompleted
	SessionFailed
	SessionCancelled
)

// Terminal reports whether the state is one of the three absorbing states.
func (s SessionState) Terminal() bool { return s >= SessionCompleted }

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionLoading:
		return "loading"
	case SessionCompleted:
		return "completed"
	case SessionFailed:
		return "failed"
	case SessionCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ProgressFunc is consulted at each quiescence point while the capture is
// loading. Returning true declares the page complete. A nil ProgressFunc
// completes at the first quiescence point.
type ProgressFunc func(s *CaptureSession) bool

// CompleteFunc receives the session after a successful capture.
type CompleteFunc func(s *CaptureSession)

// FailureFunc receives the session and a *CaptureError when a capture dies.
type FailureFunc func(s *CaptureSession, err error)

// CaptureSession drives one save-this-page workflow: it owns every request
// whose main document matches its root URL, forces the storage tag onto
// untagged navigations, and decides at quiescence points when the page is
// done. Exactly one terminal callback is ever delivered - completion or
// failure, never both, never twice. Cancellation delivers none.
//
// The session is the LoaderDelegate of the loader built for it; hosts only
// hold the session to query it or to Cancel.
type CaptureSession struct {
	id    string
	root  string // canonical; write-once at construction
	owner *stash

	mu          sync.Mutex
	state       SessionState
	loader      PageLoader
	onProgress  ProgressFunc
	onComplete  CompleteFunc
	onFailure   FailureFunc
	progressing bool // a progress callback is mid-flight; collapse reentry

	terminal sync.Once
}

var _ LoaderDelegate = (*CaptureSession)(nil)

// ID returns the session's unique identifier.
func (s *CaptureSession) ID() string { return s.id }

// RootURL returns the canonical root URL the capture was started for.
func (s *CaptureSession) RootURL() string { return s.root }

// State returns the current lifecycle state.
func (s *CaptureSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// owns reports whether req belongs to this capture: a live session owns
// requests whose main-document URL (or, failing that, own URL) equals the
// root. Terminal sessions own nothing.
func (s *CaptureSession) owns(req *Request) bool {
	if req == nil {
		return false
	}
	s.mu.Lock()
	live := !s.state.Terminal()
	s.mu.Unlock()
	if !live {
		return false
	}
	if doc := util.CanonicalURL(req.MainDocumentURL); doc != "" {
		if doc == s.root {
			return true
		}
	}
	return util.CanonicalURL(req.URL) == s.root
}

// begin issues the root navigation. The session is already registered, so
// the decider owns the request before the loader ever sees it. A load error
// here is reported synchronously to BeginCapture; the session folds silently
// and no handler fires.
func (s *CaptureSession) begin() error {
	s.mu.Lock()
	s.state = SessionLoading
	ld := s.loader
	s.mu.Unlock()

	root := &Request{
		URL:             s.root,
		MainDocumentURL: s.root,
		Tagged:          true,
		Policy:          LoadPreferCache,
	}
	if err := ld.Load(root); err != nil {
		s.Cancel()
		return &CaptureError{RootURL: s.root, Err: err}
	}
	return nil
}

// NavigationAboutToStart vetoes untagged requests while the capture is live:
// a tagged copy is issued through the loader in their place, so every
// response of the page lands on disk. Tagged requests and anything after a
// terminal state proceed untouched.
func (s *CaptureSession) NavigationAboutToStart(req *Request) NavigationDecision {
	if req == nil {
		return NavigationProceed
	}
	s.mu.Lock()
	live := s.state == SessionLoading
	ld := s.loader
	s.mu.Unlock()

	if !live || req.Tagged {
		return NavigationProceed
	}

	retagged := req.Clone()
	retagged.Tagged = true
	if retagged.MainDocumentURL == "" {
		retagged.MainDocumentURL = s.root
	}
	if err := ld.Load(retagged); err != nil {
		if routineCancel(err) {
			s.Cancel()
		} else {
			s.fail(err)
		}
	}
	return NavigationRetagged
}

// QuiescencePoint consults the progress handler. It may fire several times
// per page; concurrent signals collapse to one in-flight consultation. A
// true verdict (or a nil handler) finishes the capture.
func (s *CaptureSession) QuiescencePoint() {
	s.mu.Lock()
	if s.state != SessionLoading || s.progressing {
		s.mu.Unlock()
		return
	}
	s.progressing = true
	cb := s.onProgress
	s.mu.Unlock()

	done := true
	if cb != nil {
		done = cb(s)
	}

	s.mu.Lock()
	s.progressing = false
	still := s.state == SessionLoading
	s.mu.Unlock()

	if still && done {
		s.complete()
	}
}

// LoadFailed routes loader errors. Routine cancellations tear down silently;
// real errors deliver the failure handler exactly once.
func (s *CaptureSession) LoadFailed(err error) {
	if err == nil {
		return
	}
	if routineCancel(err) {
		s.Cancel()
		return
	}
	s.fail(err)
}

// Cancel tears the session down with no callback. Idempotent, safe from any
// goroutine and after terminal states.
func (s *CaptureSession) Cancel() {
	s.terminal.Do(func() {
		s.teardown(SessionCancelled)
	})
}

func (s *CaptureSession) complete() {
	s.terminal.Do(func() {
		cb := s.teardown(SessionCompleted)
		if cb.complete != nil {
			cb.complete(s)
		}
		s.owner.hooks.CaptureCompleted(s.id, s.root)
		s.owner.log.Info("capture completed", Fields{"id": s.id, "url": s.root})
	})
}

func (s *CaptureSession) fail(err error) {
	s.terminal.Do(func() {
		cb := s.teardown(SessionFailed)
		werr := &CaptureError{RootURL: s.root, Err: err}
		if cb.failure != nil {
			cb.failure(s, werr)
		}
		s.owner.hooks.CaptureFailed(s.id, s.root, werr)
		s.owner.log.Warn("capture failed", Fields{"id": s.id, "url": s.root, "err": err})
	})
}

type handlers struct {
	complete CompleteFunc
	failure  FailureFunc
}

// teardown moves to the terminal state, stops the loader, deregisters from
// the registry and releases handler references. Returns the handlers that
// were installed so the caller can deliver the one it owns. Only ever runs
// inside the terminal Once.
func (s *CaptureSession) teardown(to SessionState) handlers {
	s.mu.Lock()
	s.state = to
	cb := handlers{complete: s.onComplete, failure: s.onFailure}
	s.onProgress, s.onComplete, s.onFailure = nil, nil, nil
	ld := s.loader
	s.mu.Unlock()

	if ld != nil {
		ld.StopLoading()
	}
	s.owner.endSession(s)
	return cb
}
