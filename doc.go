// Package webstash is a content-addressed response cache for embedded web
// views: a byte-budgeted disk tier with strict FIFO eviction, a volatile
// in-memory tier for untagged traffic, and a capture workflow that saves
// whole pages for offline use.
//
// Components:
//   - disk.Cache: persistent blob store; one file per key, membership in a
//     single atomic index record, corruption self-heals by wiping.
//   - provider.Provider: volatile byte store with TTL (Ristretto, BigCache,
//     Redis).
//   - codec.Codec[Response]: (de)serializes response records.
//   - digest.Hasher: canonical URL -> cache key (xxhash by default).
//   - Registry: process-scoped decider the host's networking stack consults
//     per request; active exactly while facades are registered.
//
// Keys:
//
//	key = Hasher.Sum(CanonicalURL(url))  - the key doubles as the blob file name
//
// Interception (per request, first match wins):
//
//	already handled by this layer  -> no
//	owned by a live capture        -> yes
//	host reports offline           -> yes
//	request opted out              -> no
//	prefer-cache + on disk + http  -> yes
//	otherwise                      -> no
//
// Capture pattern:
//
//	sess, err := st.BeginCapture(url,
//	    func(s *webstash.CaptureSession) bool { return pageSettled() },
//	    func(s *webstash.CaptureSession) { markSaved(s.RootURL()) },
//	    func(s *webstash.CaptureSession, err error) { report(err) },
//	)
package webstash
