package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/m-lab/go/warnonerror"
	"github.com/robertodauria/speedtest/client/emitter"
	"github.com/robertodauria/speedtest/pkg/speedtest/payload"
	"github.com/robertodauria/speedtest/pkg/speedtest/results"
	"github.com/robertodauria/speedtest/pkg/speedtest/spec"
	"go.uber.org/zap"
)

var (
	// ErrUnexpectedStatus is returned when the server answers with a status
	// other than 200.
	ErrUnexpectedStatus = errors.New("unexpected status code")
	// ErrShortTransfer is returned when fewer bytes than requested were
	// transferred.
	ErrShortTransfer = errors.New("short transfer")
)

// Collector performs timed requests against a speedtest server. Requests
// are strictly sequential: concurrent transfers would share the network
// interface and invalidate each other's timing.
type Collector struct {
	httpClient *http.Client
	server     string
	mid        string
	emitter    emitter.Emitter
}

// NewCollector returns a Collector sending requests to server. Every request
// carries the measurement id mid.
func NewCollector(httpClient *http.Client, server, mid string, e emitter.Emitter) *Collector {
	return &Collector{
		httpClient: httpClient,
		server:     server,
		mid:        mid,
		emitter:    e,
	}
}

// endpoint returns the URL for path with a fresh uniqueness token, so that
// no cache can answer in place of the server.
func (c *Collector) endpoint(path string, query url.Values) (string, error) {
	u, err := url.Parse(c.server)
	if err != nil {
		return "", err
	}
	u = u.JoinPath(path)
	if query == nil {
		query = url.Values{}
	}
	query.Set(spec.TokenParameterName, uuid.NewString())
	query.Set(spec.MeasurementIDParameterName, c.mid)
	u.RawQuery = query.Encode()
	return u.String(), nil
}

func (c *Collector) newRequest(ctx context.Context, method, path string, query url.Values,
	body io.Reader) (*http.Request, error) {
	u, err := c.endpoint(path, query)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-cache")
	return req, nil
}

func (c *Collector) record(set results.SampleSet, s results.Sample, err error) results.SampleSet {
	if err != nil {
		s.Error = err.Error()
		zap.L().Sugar().Warnw("Sample failed",
			"phase", s.Phase,
			"size", s.Size,
			"error", err)
		c.emitter.OnError(s.Phase, err)
	}
	c.emitter.OnSample(s)
	return append(set, s)
}

// CollectLatencySamples sends n sequential echo probes. Failed probes are
// recorded as failed samples and do not stop the loop. The returned error is
// non-nil only if ctx is canceled, in which case the samples must be
// discarded. A non-positive n yields an empty set.
func (c *Collector) CollectLatencySamples(ctx context.Context, n int) (results.SampleSet, error) {
	if n <= 0 {
		return results.SampleSet{}, nil
	}
	set := make(results.SampleSet, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		elapsed, err := c.ping(ctx)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		set = c.record(set, results.Sample{Phase: spec.PhaseLatency, Elapsed: elapsed}, err)
	}
	return set, nil
}

func (c *Collector) ping(ctx context.Context) (time.Duration, error) {
	req, err := c.newRequest(ctx, http.MethodGet, spec.PingPath, nil, nil)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer warnonerror.Close(resp.Body, "ping: ignoring resp.Body.Close error")
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// CollectThroughputSamples performs one transfer per size, in order, in the
// direction given by kind (spec.PhaseDownload or spec.PhaseUpload). Progress
// is emitted per transfer and starts over at 0 for every size. A failed
// transfer is recorded as a failed sample and the remaining sizes still
// run. The returned error is non-nil only if ctx is canceled, in which case
// the samples must be discarded.
func (c *Collector) CollectThroughputSamples(ctx context.Context, sizes []int64,
	kind spec.Phase) (results.SampleSet, error) {
	var transfer func(context.Context, int64, *progress) error
	switch kind {
	case spec.PhaseDownload:
		transfer = c.download
	case spec.PhaseUpload:
		transfer = c.upload
	default:
		return nil, fmt.Errorf("invalid throughput phase %q", kind)
	}

	set := make(results.SampleSet, 0, len(sizes))
	for _, size := range sizes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := newProgress(size, func(percent int) {
			c.emitter.OnProgress(kind, percent)
		})
		start := time.Now()
		err := transfer(ctx, size, p)
		elapsed := time.Since(start)
		p.stop()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s := results.Sample{Phase: kind, Size: size}
		if err == nil {
			s.Elapsed = elapsed
		}
		set = c.record(set, s, err)
	}
	return set, nil
}

// download fetches size bytes and reads the body to the end.
func (c *Collector) download(ctx context.Context, size int64, p *progress) error {
	query := url.Values{}
	query.Set(spec.SizeParameterName, fmt.Sprint(size))
	req, err := c.newRequest(ctx, http.MethodGet, spec.DownloadPath, query, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer warnonerror.Close(resp.Body, "download: ignoring resp.Body.Close error")
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}
	n, err := io.Copy(io.Discard, p.reader(resp.Body))
	if err != nil {
		return err
	}
	if n != size {
		return fmt.Errorf("%w: received %d of %d bytes", ErrShortTransfer, n, size)
	}
	return nil
}

// upload sends size bytes and waits for the server's acknowledgement.
func (c *Collector) upload(ctx context.Context, size int64, p *progress) error {
	body, err := payload.Generate(size)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, spec.UploadPath, nil, p.reader(body))
	if err != nil {
		return err
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", spec.OctetStream)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer warnonerror.Close(resp.Body, "upload: ignoring resp.Body.Close error")
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}
	var ack results.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return fmt.Errorf("cannot decode upload response: %w", err)
	}
	if ack.Received != size {
		return fmt.Errorf("%w: server received %d of %d bytes", ErrShortTransfer, ack.Received, size)
	}
	return nil
}

// progress reports the percentage of the current transfer's bytes that went
// through its reader. Upload bodies are read by the transport's goroutine,
// so notifications are serialized and dropped once stop has been called.
type progress struct {
	mu       sync.Mutex
	total    int64
	done     int64
	last     int
	stopped  bool
	onChange func(int)
}

func newProgress(total int64, onChange func(int)) *progress {
	p := &progress{total: total, onChange: onChange}
	onChange(0)
	return p
}

func (p *progress) add(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || n <= 0 {
		return
	}
	p.done += int64(n)
	percent := 100
	if p.done < p.total {
		percent = int(p.done * 100 / p.total)
	}
	if percent != p.last {
		p.last = percent
		p.onChange(percent)
	}
}

func (p *progress) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
}

func (p *progress) reader(r io.Reader) io.Reader {
	return &progressReader{r: r, p: p}
}

type progressReader struct {
	r io.Reader
	p *progress
}

func (pr *progressReader) Read(b []byte) (int, error) {
	n, err := pr.r.Read(b)
	pr.p.add(n)
	return n, err
}
