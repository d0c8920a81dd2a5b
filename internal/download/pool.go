package download

import (
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"

	"syncra/internal/metrics"
)

const subscriberBuffer = 32

type workerHandle struct {
	id   uint8
	cmds chan command
}

type pendingEntry struct {
	key DownloadKey
}

// DownloadPool is the worker-based fetcher of spec.md §4.5: shared rate
// limiting, per-key subscriber fan-out, dynamic worker provisioning, and
// backpressure via a pending queue once max_concurrent is reached.
type DownloadPool struct {
	mu sync.RWMutex

	maxConcurrent     uint8
	currentConcurrent uint8
	rateLimit         uint64
	perWorkerRate     *atomic.Uint64

	freeIDs *roaring.Bitmap
	workers map[uint8]*workerHandle
	pending []pendingEntry

	subscribers map[DownloadKey][]chan Update
	eventSubs   []chan Event

	httpClient *http.Client
	updatesCh  chan Update
	metrics    *metrics.Collector
}

// NewDownloadPool creates a pool and starts its coordinator goroutine.
// maxConcurrent bounds active workers (0 < maxConcurrent <= 255);
// rateLimit is the total bytes/sec budget, 0 meaning unlimited.
func NewDownloadPool(maxConcurrent uint8, rateLimit uint64, mcol *metrics.Collector) *DownloadPool {
	free := roaring.New()
	free.AddRange(0, 256)

	p := &DownloadPool{
		maxConcurrent: maxConcurrent,
		rateLimit:     rateLimit,
		perWorkerRate: &atomic.Uint64{},
		freeIDs:       free,
		workers:       make(map[uint8]*workerHandle),
		subscribers:   make(map[DownloadKey][]chan Update),
		httpClient:    newHTTPClient(),
		updatesCh:     make(chan Update, 64),
		metrics:       mcol,
	}
	p.recomputeRateLimitLocked()
	go p.run()
	return p
}

// Submit implements download(key) -> subscriber_channel from spec.md §4.5.
func (p *DownloadPool) Submit(key DownloadKey) <-chan Update {
	p.mu.Lock()

	if existing, ok := p.subscribers[key]; ok {
		sub := make(chan Update, subscriberBuffer)
		p.subscribers[key] = append(existing, sub)
		p.mu.Unlock()
		return sub
	}

	sub := make(chan Update, subscriberBuffer)
	p.subscribers[key] = []chan Update{sub}

	if len(p.workers) < int(p.maxConcurrent) {
		id, ok := p.allocateIDLocked()
		if !ok {
			// Worker id space exhausted: treat exactly like reaching the
			// concurrency cap (spec.md §5, "worker id uniqueness").
			p.pending = append(p.pending, pendingEntry{key: key})
			p.mu.Unlock()
			return sub
		}
		handle := &workerHandle{id: id, cmds: make(chan command, 1)}
		p.workers[id] = handle
		p.currentConcurrent++
		p.recomputeRateLimitLocked()
		w := newWorker(id, p.httpClient, p.updatesCh, p.perWorkerRate)
		go w.run(handle.cmds)
		handle.cmds <- command{kind: cmdDownload, key: key}
		p.setActiveWorkersMetricLocked()
		p.mu.Unlock()
		p.broadcastEvent(Event{Kind: EventWorkerAdded, WorkerID: id})
		return sub
	}

	p.pending = append(p.pending, pendingEntry{key: key})
	p.mu.Unlock()
	return sub
}

// Subscribe returns a fresh receiver of pool-level Events.
func (p *DownloadPool) Subscribe() <-chan Event {
	ch := make(chan Event, subscriberBuffer)
	p.mu.Lock()
	p.eventSubs = append(p.eventSubs, ch)
	p.mu.Unlock()
	return ch
}

// MaxConcurrent returns the current worker cap.
func (p *DownloadPool) MaxConcurrent() uint8 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.maxConcurrent
}

// CurrentConcurrent returns the current active worker count.
func (p *DownloadPool) CurrentConcurrent() uint8 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.currentConcurrent
}

// RateLimit returns the total configured bytes/sec budget (0 = unlimited).
func (p *DownloadPool) RateLimit() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rateLimit
}

// PerWorkerLimit returns the currently observed per-worker allocation.
func (p *DownloadPool) PerWorkerLimit() uint64 {
	return p.perWorkerRate.Load()
}

// SetMaxConcurrent updates the cap. It takes effect on the next Submit;
// running workers are not preempted (spec.md §4.5).
func (p *DownloadPool) SetMaxConcurrent(n uint8) {
	p.mu.Lock()
	p.maxConcurrent = n
	p.mu.Unlock()
}

// SetRateLimit updates the total rate budget and recomputes the per-worker
// allocation immediately.
func (p *DownloadPool) SetRateLimit(bytesPerSec uint64) {
	p.mu.Lock()
	p.rateLimit = bytesPerSec
	p.recomputeRateLimitLocked()
	p.mu.Unlock()
}

// recomputeRateLimitLocked implements the rule from spec.md §4.5: 0 if
// rate_limit==0 (unlimited), rate_limit if no active workers, else
// rate_limit/current_concurrent. Caller must hold p.mu.
func (p *DownloadPool) recomputeRateLimitLocked() {
	var next uint64
	switch {
	case p.rateLimit == 0:
		next = 0
	case p.currentConcurrent == 0:
		next = p.rateLimit
	default:
		next = p.rateLimit / uint64(p.currentConcurrent)
	}
	p.perWorkerRate.Store(next)
	if p.metrics != nil {
		p.metrics.SetRateLimit(next)
	}
}

func (p *DownloadPool) setActiveWorkersMetricLocked() {
	if p.metrics != nil {
		p.metrics.SetActiveWorkers(len(p.workers))
	}
}

// allocateIDLocked returns the smallest unused worker id in [0,255], per
// spec.md §5. Caller must hold p.mu.
func (p *DownloadPool) allocateIDLocked() (uint8, bool) {
	if p.freeIDs.IsEmpty() {
		return 0, false
	}
	id := p.freeIDs.Minimum()
	p.freeIDs.Remove(id)
	return uint8(id), true
}

func (p *DownloadPool) releaseIDLocked(id uint8) {
	p.freeIDs.Add(uint32(id))
}

// run is the single coordinator task that drains worker updates
// (spec.md §4.5, "worker completion loop").
func (p *DownloadPool) run() {
	for upd := range p.updatesCh {
		p.broadcastEvent(Event{Kind: EventWorkerUpdate, Update: upd})

		p.mu.RLock()
		subs := append([]chan Update(nil), p.subscribers[upd.Key]...)
		p.mu.RUnlock()
		for _, s := range subs {
			s <- upd
		}

		if upd.Kind == UpdateDone {
			p.recordBytesMetric(upd)
			p.handleDone(upd)
		}
	}
}

func (p *DownloadPool) recordBytesMetric(upd Update) {
	if p.metrics == nil {
		return
	}
	scheme, host := "", ""
	if u, err := url.Parse(upd.Key.URL); err == nil {
		scheme, host = u.Scheme, u.Host
	}
	p.metrics.AddBytesDownloaded(scheme, host, int64(len(upd.Bytes)))
}

// handleDone implements the reuse-or-retire branch of the worker completion
// loop: reuse the worker on a pending key if one exists, else stop it.
func (p *DownloadPool) handleDone(upd Update) {
	p.mu.Lock()

	for _, s := range p.subscribers[upd.Key] {
		close(s)
	}
	delete(p.subscribers, upd.Key)

	handle, ok := p.workers[upd.WorkerID]
	if !ok {
		p.mu.Unlock()
		return
	}

	if len(p.pending) > 0 {
		next := p.pending[0]
		p.pending = p.pending[1:]
		p.mu.Unlock()
		handle.cmds <- command{kind: cmdDownload, key: next.key}
		return
	}

	delete(p.workers, upd.WorkerID)
	p.releaseIDLocked(upd.WorkerID)
	p.currentConcurrent--
	p.recomputeRateLimitLocked()
	p.setActiveWorkersMetricLocked()
	p.mu.Unlock()

	handle.cmds <- command{kind: cmdStop}
	p.broadcastEvent(Event{Kind: EventWorkerRemoved, WorkerID: upd.WorkerID})
}

func (p *DownloadPool) broadcastEvent(e Event) {
	p.mu.RLock()
	subs := append([]chan Event(nil), p.eventSubs...)
	p.mu.RUnlock()
	for _, s := range subs {
		select {
		case s <- e:
		default:
		}
	}
}
