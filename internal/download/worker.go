package download

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/net/http2"
)

const (
	progressInterval = 500 * time.Millisecond
	readChunkSize    = 32 * 1024
)

type commandKind uint8

const (
	cmdDownload commandKind = iota
	cmdStop
)

type command struct {
	kind commandKind
	key  DownloadKey
}

// newHTTPClient builds the worker's transport the way
// internal/factorio/updater.go builds its own: explicit dial timeout and
// keepalive, plus explicit HTTP/2 via golang.org/x/net/http2 so a worker can
// multiplex range requests against the same host instead of relying on
// ForceAttemptHTTP2 alone.
func newHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		DisableCompression:    true,
	}
	_ = http2.ConfigureTransport(transport)
	return &http.Client{
		Transport: transport,
		Timeout:   time.Hour,
	}
}

// worker owns one HTTP client and runs the command loop described in
// spec.md §4.6.
type worker struct {
	id            uint8
	client        *http.Client
	updates       chan<- Update
	perWorkerRate *atomic.Uint64
}

func newWorker(id uint8, client *http.Client, updates chan<- Update, perWorkerRate *atomic.Uint64) *worker {
	return &worker{id: id, client: client, updates: updates, perWorkerRate: perWorkerRate}
}

// run drains cmds until a Stop command or the channel closes.
func (w *worker) run(cmds <-chan command) {
	for c := range cmds {
		switch c.kind {
		case cmdDownload:
			w.download(c.key)
		case cmdStop:
			return
		}
	}
}

// download issues the GET for key and emits Progress/Done updates, retrying
// up to twice on a failure via cenkalti/backoff (SPEC_FULL.md §4.12).
func (w *worker) download(key DownloadKey) {
	bodyBytes, _, err := w.fetchWithRetry(key)
	if err != nil {
		// spec.md §7: worker-level HTTP failure has no defined surface
		// event. This implementation drops the dispatch silently rather
		// than inventing an error Update variant.
		return
	}

	w.updates <- Update{
		Kind:     UpdateDone,
		WorkerID: w.id,
		Key:      key,
		Bytes:    bodyBytes,
	}
}

func (w *worker) fetchWithRetry(key DownloadKey) ([]byte, uint64, error) {
	var body []byte
	var total uint64

	op := func() error {
		b, t, err := w.fetchOnce(key)
		if err != nil {
			return err
		}
		body, total = b, t
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, 0, err
	}
	return body, total, nil
}

func (w *worker) fetchOnce(key DownloadKey) ([]byte, uint64, error) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, key.URL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("building request for %q: %w", key.URL, err)
	}
	if key.HasRange {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", key.Range.Start, key.Range.End))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetching %q: %w", key.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	total := uint64(0)
	if resp.ContentLength > 0 {
		total = uint64(resp.ContentLength)
	}

	var buf bytes.Buffer
	var downloaded uint64
	var lastSleepDownloadedSince uint64
	var lastDownloaded uint64

	lastUpdate := time.Now()
	lastSleep := time.Now()

	chunk := make([]byte, readChunkSize)
	rangeLimit := uint64(0)
	hasRangeLimit := key.HasRange
	if hasRangeLimit {
		rangeLimit = uint64(key.Range.End)
	}

	for {
		n, readErr := resp.Body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			downloaded += uint64(n)

			if time.Since(lastUpdate) > progressInterval {
				elapsed := time.Since(lastUpdate).Seconds()
				speed := float64(downloaded-lastDownloaded) / elapsed
				w.updates <- Update{
					Kind:       UpdateProgress,
					WorkerID:   w.id,
					Key:        key,
					Downloaded: downloaded,
					Total:      total,
					SpeedBps:   speed,
				}
				lastUpdate = time.Now()
				lastDownloaded = downloaded
			}

			w.pace(&downloaded, &lastSleepDownloadedSince, &lastSleep)
		}

		if hasRangeLimit && downloaded >= rangeLimit {
			break
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, 0, fmt.Errorf("reading body of %q: %w", key.URL, readErr)
		}
	}

	return buf.Bytes(), total, nil
}

// pace implements the token-bucket approximation of spec.md §4.6 step 5: if
// a per-worker rate limit is set and the bytes read since the last sleep
// would need more than 100ms to stay under it, sleep the remainder.
func (w *worker) pace(downloaded, lastSleepDownloadedSince *uint64, lastSleep *time.Time) {
	limit := w.perWorkerRate.Load()
	if limit == 0 {
		return
	}

	sinceLastSleep := *downloaded - *lastSleepDownloadedSince
	requiredMs := sinceLastSleep * 1000 / limit
	if requiredMs <= 100 {
		return
	}

	target := lastSleep.Add(time.Duration(requiredMs) * time.Millisecond)
	if remaining := time.Until(target); remaining > 0 {
		time.Sleep(remaining)
	}
	*lastSleep = time.Now()
	*lastSleepDownloadedSince = *downloaded
}
