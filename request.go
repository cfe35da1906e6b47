package webstash

import "time"

// LoadPolicy tells the host's networking layer where a request should be
// satisfied from.
type LoadPolicy int

const (
	// LoadDefault leaves the host's normal cache behavior in place.
	LoadDefault LoadPolicy = iota
	// LoadPreferCache asks the host to serve stored data when it exists,
	// regardless of freshness headers.
	LoadPreferCache
)

// Request is the webstash view of an outgoing resource request. The host
// maps its native request type to and from this struct; rewrites are always
// copy-on-write via Clone.
type Request struct {
	// URL of the resource.
	URL string
	// MainDocumentURL is the page this resource belongs to. Ownership checks
	// compare it against capture session roots.
	MainDocumentURL string
	// Policy selects the host cache behavior for this load.
	Policy LoadPolicy
	// Bypass is the host's opt-out: never intercept this request.
	Bypass bool
	// Tagged marks the response for persistent storage when it completes.
	Tagged bool
	// Handled marks requests already processed by this layer, so re-entrant
	// loads pass straight through instead of being intercepted again.
	Handled bool
}

// Clone returns an independent copy.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}

// Response is the record cached for a request.
type Response struct {
	// URL is the final URL after redirects.
	URL    string              `json:"url" msgpack:"url"`
	Status int                 `json:"status" msgpack:"status"`
	Header map[string][]string `json:"header,omitempty" msgpack:"header"`
	Body   []byte              `json:"body,omitempty" msgpack:"body"`
	// FetchedAt is when the response was obtained from the network.
	FetchedAt time.Time `json:"fetched_at" msgpack:"fetched_at"`
}
