package download

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoolDedupSingleRequest(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	pool := NewDownloadPool(4, 0, nil)
	key := NewDownloadKey(srv.URL)

	sub1 := pool.Submit(key)
	sub2 := pool.Submit(key)
	sub3 := pool.Submit(key)

	done1 := drainUntilDone(t, sub1)
	done2 := drainUntilDone(t, sub2)
	done3 := drainUntilDone(t, sub3)

	require.Equal(t, int32(1), atomic.LoadInt32(&hits))
	require.Equal(t, "payload", string(done1.Bytes))
	require.Equal(t, "payload", string(done2.Bytes))
	require.Equal(t, "payload", string(done3.Bytes))
}

func TestPoolConcurrencyBound(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	pool := NewDownloadPool(2, 0, nil)
	_ = pool.Submit(NewDownloadKey(srv.URL + "/a"))
	_ = pool.Submit(NewDownloadKey(srv.URL + "/b"))
	_ = pool.Submit(NewDownloadKey(srv.URL + "/c"))

	time.Sleep(50 * time.Millisecond)
	require.LessOrEqual(t, pool.CurrentConcurrent(), pool.MaxConcurrent())
	require.Equal(t, uint8(2), pool.CurrentConcurrent())

	close(release)
}

func TestPoolRateSplit(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	pool := NewDownloadPool(4, 4*1024*1024, nil)
	_ = pool.Submit(NewDownloadKey(srv.URL + "/a"))
	_ = pool.Submit(NewDownloadKey(srv.URL + "/b"))

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, uint64(2*1024*1024), pool.PerWorkerLimit())

	close(release)
}

func drainUntilDone(t *testing.T, ch <-chan Update) Update {
	t.Helper()
	for {
		select {
		case upd, ok := <-ch:
			if !ok {
				t.Fatal("channel closed before Done update")
			}
			if upd.Kind == UpdateDone {
				return upd
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for Done update")
		}
	}
}
