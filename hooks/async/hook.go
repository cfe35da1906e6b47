// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/unkn0wn-root/webstash"
//	"github.com/unkn0wn-root/webstash/codec"
//	"github.com/unkn0wn-root/webstash/hooks/async"
//	"github.com/unkn0wn-root/webstash/sloghooks"
//
// )
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    EvictEvery:    10, // sample logs: ~every 10th eviction
//	    SelfHealEvery: 1,  // log every self-heal
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
//
//	stash, _ := webstash.New(webstash.Options{
//	    Registry: reg,
//	    Budget:   512 << 20,
//	    Volatile: provider,
//	    Codec:    codec.JSONCodec[webstash.Response]{},
//	    Hooks:    hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/webstash"
)

type Hooks struct {
	inner webstash.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ webstash.Hooks = (*Hooks)(nil)

func New(inner webstash.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) EntryEvicted(k string, n int64) { h.try(func() { h.inner.EntryEvicted(k, n) }) }
func (h *Hooks) CacheWiped(reason error)        { h.try(func() { h.inner.CacheWiped(reason) }) }
func (h *Hooks) IndexWriteError(err error)      { h.try(func() { h.inner.IndexWriteError(err) }) }
func (h *Hooks) StoreRejected(k, r string)      { h.try(func() { h.inner.StoreRejected(k, r) }) }
func (h *Hooks) SelfHeal(k, tier string)        { h.try(func() { h.inner.SelfHeal(k, tier) }) }
func (h *Hooks) CaptureCompleted(id, u string)  { h.try(func() { h.inner.CaptureCompleted(id, u) }) }
func (h *Hooks) CaptureFailed(id, u string, err error) {
	h.try(func() { h.inner.CaptureFailed(id, u, err) })
}
