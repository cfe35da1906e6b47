package webstash

// PageLoader drives the host's page-rendering engine for one capture. The
// library never renders anything itself; it issues loads and listens to the
// delegate events the engine reports back.
type PageLoader interface {
	// Load issues req through the engine. The root navigation and all
	// retagged copies arrive with the storage tag set.
	Load(req *Request) error

	// StopLoading halts in-flight work. Must be safe to call more than once
	// and after the load already finished on its own.
	StopLoading()
}

// LoaderFactory builds the loader for one capture session, with the session
// installed as its delegate. Called once per BeginCapture.
type LoaderFactory func(d LoaderDelegate) (PageLoader, error)

// NavigationDecision is the delegate's verdict on a pending navigation.
type NavigationDecision int

const (
	// NavigationProceed lets the request continue as issued.
	NavigationProceed NavigationDecision = iota

	// NavigationRetagged vetoes the request; a tagged copy has already been
	// issued through the loader in its place.
	NavigationRetagged
)

// LoaderDelegate receives loader events. CaptureSession implements it; the
// host's engine glue calls it from whatever goroutine the engine uses.
type LoaderDelegate interface {
	// NavigationAboutToStart is consulted before each navigation, including
	// subresource-triggered ones.
	NavigationAboutToStart(req *Request) NavigationDecision

	// QuiescencePoint fires when the page settles: DOM ready, subresources
	// idle. May fire several times for one page.
	QuiescencePoint()

	// LoadFailed reports a load error. Cancellation errors (ErrLoadCancelled,
	// context.Canceled) tear the capture down silently; anything else is a
	// capture failure.
	LoadFailed(err error)
}
