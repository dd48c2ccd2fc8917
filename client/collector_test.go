package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robertodauria/speedtest/pkg/speedtest/results"
	"github.com/robertodauria/speedtest/pkg/speedtest/spec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCollector(t *testing.T, h http.HandlerFunc) (*Collector, *recorder) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	rec := &recorder{}
	return NewCollector(newHTTPClient(5*time.Second), srv.URL, "test-mid", rec), rec
}

func TestCollector_UniqueTokens(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	c, _ := newCollector(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, spec.PingPath, r.URL.Path)
		assert.Equal(t, "test-mid", r.URL.Query().Get(spec.MeasurementIDParameterName))
		token := r.URL.Query().Get(spec.TokenParameterName)
		assert.NotEmpty(t, token)
		assert.False(t, seen[token], "token reused")
		seen[token] = true
		w.Write([]byte(spec.PongMessage))
	})

	set, err := c.CollectLatencySamples(context.Background(), 4)
	require.NoError(t, err)
	assert.Len(t, set, 4)
	mu.Lock()
	assert.Len(t, seen, 4)
	mu.Unlock()
}

func TestCollector_LatencyFailuresAreRecorded(t *testing.T) {
	var calls int32
	c, rec := newCollector(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1)%2 == 0 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(spec.PongMessage))
	})

	set, err := c.CollectLatencySamples(context.Background(), 6)
	require.NoError(t, err)
	require.Len(t, set, 6)
	assert.Equal(t, 3, set.Failures())
	assert.Equal(t, 3, rec.errors)
	for _, s := range set {
		if s.Failed() {
			assert.Contains(t, s.Error, ErrUnexpectedStatus.Error())
			assert.Equal(t, time.Duration(0), s.Elapsed)
		}
	}
}

func TestCollector_ShortDownload(t *testing.T) {
	c, _ := newCollector(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 10)))
	})

	set, err := c.CollectThroughputSamples(context.Background(), []int64{100}, spec.PhaseDownload)
	require.NoError(t, err)
	require.Len(t, set, 1)
	assert.True(t, set[0].Failed())
	assert.Contains(t, set[0].Error, ErrShortTransfer.Error())
}

func TestCollector_UploadAckMismatch(t *testing.T) {
	c, _ := newCollector(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, spec.OctetStream, r.Header.Get("Content-Type"))
		assert.Equal(t, int64(1000), r.ContentLength)
		w.Write([]byte(`{"received": 1}`))
	})

	set, err := c.CollectThroughputSamples(context.Background(), []int64{1000}, spec.PhaseUpload)
	require.NoError(t, err)
	require.Len(t, set, 1)
	assert.True(t, set[0].Failed())
	assert.Contains(t, set[0].Error, ErrShortTransfer.Error())
}

func TestCollector_InvalidPhase(t *testing.T) {
	c, _ := newCollector(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := c.CollectThroughputSamples(context.Background(), []int64{1000}, spec.PhaseLatency)
	assert.Error(t, err)
}

func TestCollector_CancelDiscardsSamples(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var calls int32
	c, _ := newCollector(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 2 {
			cancel()
		}
		w.Write([]byte(strings.Repeat("x", 1000)))
	})

	set, err := c.CollectThroughputSamples(ctx, []int64{1000, 1000, 1000}, spec.PhaseDownload)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, results.SampleSet(nil), set)
	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(2))
}

func TestCollector_NoLatencySamples(t *testing.T) {
	var calls int32
	c, _ := newCollector(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(spec.PongMessage))
	})

	for _, n := range []int{0, -1} {
		set, err := c.CollectLatencySamples(context.Background(), n)
		require.NoError(t, err)
		assert.Empty(t, set)
	}
	assert.Zero(t, atomic.LoadInt32(&calls))
}
