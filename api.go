package webstash

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/webstash/codec"
	"github.com/unkn0wn-root/webstash/digest"
	"github.com/unkn0wn-root/webstash/disk"
	pr "github.com/unkn0wn-root/webstash/provider"
)

// Stash is the response cache facade: a persistent disk tier for tagged
// (captured) traffic, a volatile tier for everything else, and the capture
// workflow on top. Keys are content digests of canonical URLs; storage
// trouble degrades to boolean results and never errors.
type Stash interface {
	// Store routes resp by req's markers: tagged responses with a status
	// below 400 go to disk, tagged failures are dropped, untagged responses
	// go to the volatile tier (mirrored to disk only when the key already
	// lives there). Reports whether the primary tier accepted the write.
	Store(ctx context.Context, req *Request, resp *Response) bool

	// Fetch looks the request up disk-first, then volatile. Entries that no
	// longer decode are shed and count as misses.
	Fetch(ctx context.Context, req *Request) (*Response, bool)

	// Contains reports disk-tier membership without reading the blob.
	Contains(req *Request) bool

	// Clear empties the disk tier. Volatile entries age out by TTL.
	Clear(ctx context.Context)

	// BeginCapture starts a save-this-page workflow rooted at url. The
	// session is registered (so it owns the traffic) before the root
	// navigation is issued. See CaptureSession for handler semantics.
	BeginCapture(url string, onProgress ProgressFunc, onComplete CompleteFunc, onFailure FailureFunc) (*CaptureSession, error)

	// Registry returns the registry this facade is attached to.
	Registry() *Registry

	// Close cancels live captures, detaches from the registry and closes
	// the volatile provider. Safe to call more than once.
	Close(ctx context.Context) error
}

// Options tune the facade. Registry, Budget, Volatile and Codec are
// required; everything else has defaults.
type Options struct {
	// Required
	Registry *Registry
	Budget   int64             // disk tier byte budget
	Volatile pr.Provider       // volatile tier store
	Codec    c.Codec[Response] // response record serializer

	Dir            string        // disk directory; "" => disk.DefaultDir()
	Hasher         digest.Hasher // nil => digest.XXHash{}
	Offline        func() bool   // fresh connectivity check; nil => always online
	PreferCache    bool          // intercept cache members even while online
	Loader         LoaderFactory // required only for BeginCapture
	VolatileTTL    time.Duration // 0 => 10m
	MaxDecodeBytes int           // > 0 wraps Codec in codec.LimitCodec
	Logger         Logger        // if nil, NopLogger is used
	Hooks          Hooks         // if nil, NopHooks is used
	FS             disk.FS       // nil => real filesystem
}

// New opens the disk tier, registers the facade with the registry (the
// registry turns active on its first facade) and returns the Stash.
func New(opts Options) (Stash, error) {
	return newStash(opts)
}
