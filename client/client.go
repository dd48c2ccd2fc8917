package client

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robertodauria/speedtest/client/config"
	"github.com/robertodauria/speedtest/client/emitter"
	"github.com/robertodauria/speedtest/pkg/speedtest/estimate"
	"github.com/robertodauria/speedtest/pkg/speedtest/results"
	"github.com/robertodauria/speedtest/pkg/speedtest/spec"
)

// ErrBusy is returned by Run and Reset when the client is in the middle of
// a run, and by Run when the previous result has not been reset.
var ErrBusy = errors.New("client is not idle")

// State is the observable state of a Client.
type State struct {
	// Phase is the current phase.
	Phase spec.Phase
	// Progress is the percentage of the in-flight transfer during the
	// download and upload phases, and 0 otherwise.
	Progress int
}

// Client runs the latency, download and upload phases against a server,
// one after the other.
type Client struct {
	httpClient *http.Client
	config     *config.ClientConfig
	emitter    emitter.Emitter

	mu     sync.Mutex
	state  State
	result *results.TestResult
}

func newHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		// Compression would change the number of bytes on the wire.
		DisableCompression: true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

func New(server string) *Client {
	cfg := config.NewDefault()
	cfg.Server = server
	return NewWithConfig(cfg)
}

func NewWithConfig(config *config.ClientConfig) *Client {
	return &Client{
		httpClient: newHTTPClient(config.Timeout),
		config:     config,
		emitter:    &emitter.LogEmitter{},
		state:      State{Phase: spec.PhaseIdle},
	}
}

// WithEmitter replaces the default LogEmitter. It must be called before Run.
func (c *Client) WithEmitter(e emitter.Emitter) *Client {
	c.emitter = e
	return c
}

// State returns the current phase and progress. It is safe to call from any
// goroutine.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Result returns the result of the last run, if the client is done.
func (c *Client) Result() (results.TestResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase != spec.PhaseDone || c.result == nil {
		return results.TestResult{}, false
	}
	return c.result.Clone(), true
}

// Reset discards the last result and moves the client from done back to
// idle. Resetting an idle client is a no-op.
func (c *Client) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state.Phase {
	case spec.PhaseIdle:
		return nil
	case spec.PhaseDone:
		c.state = State{Phase: spec.PhaseIdle}
		c.result = nil
		return nil
	default:
		return ErrBusy
	}
}

// transition moves to the next phase and resets the progress.
func (c *Client) transition(phase spec.Phase) {
	c.mu.Lock()
	c.state = State{Phase: phase}
	c.mu.Unlock()
	c.emitter.OnPhase(phase)
}

// Run measures latency, download and upload in this order and returns the
// finalized result. A phase where every sample failed is reported as
// unavailable and the run moves on; Run always reaches the done state.
//
// If ctx is canceled the in-flight transfer is aborted, the samples of the
// current phase are discarded, the remaining phases are reported as
// unavailable and ctx.Err() is returned along with the result.
func (c *Client) Run(ctx context.Context) (results.TestResult, error) {
	c.mu.Lock()
	if c.state.Phase != spec.PhaseIdle {
		c.mu.Unlock()
		return results.TestResult{}, ErrBusy
	}
	// Claim the client before releasing the lock.
	c.state = State{Phase: spec.PhaseLatency}
	c.mu.Unlock()

	mid := uuid.NewString()
	collector := NewCollector(c.httpClient, c.config.Server, mid, &stateEmitter{c: c})
	result := results.TestResult{
		MeasurementID: mid,
		StartTime:     time.Now().UTC(),
	}

	c.emitter.OnPhase(spec.PhaseLatency)
	set, err := collector.CollectLatencySamples(ctx, c.config.LatencySamples)
	result.LatencySamples, result.Latency = c.aggregate(spec.PhaseLatency, set, err, estimate.Latency)

	c.transition(spec.PhaseDownload)
	set, err = collector.CollectThroughputSamples(ctx, c.config.DownloadSizes, spec.PhaseDownload)
	result.DownloadSamples, result.Download = c.aggregate(spec.PhaseDownload, set, err, estimate.Throughput)

	c.transition(spec.PhaseUpload)
	set, err = collector.CollectThroughputSamples(ctx, c.config.UploadSizes, spec.PhaseUpload)
	result.UploadSamples, result.Upload = c.aggregate(spec.PhaseUpload, set, err, estimate.Throughput)

	result.EndTime = time.Now().UTC()
	c.mu.Lock()
	c.result = &result
	c.state = State{Phase: spec.PhaseDone}
	c.mu.Unlock()
	c.emitter.OnPhase(spec.PhaseDone)
	c.emitter.OnComplete(result.Clone())
	return result.Clone(), ctx.Err()
}

// aggregate turns the samples of a phase into its metric. A collection
// error means the run was canceled: the partial samples are discarded.
func (c *Client) aggregate(phase spec.Phase, set results.SampleSet, err error,
	fn func(results.SampleSet) results.PhaseResult) (results.SampleSet, results.PhaseResult) {
	if err != nil {
		c.emitter.OnError(phase, err)
		return nil, results.Unavailable()
	}
	r := fn(set)
	if !r.IsAvailable() {
		c.emitter.OnError(phase, errAllFailed)
	}
	return set, r
}

var errAllFailed = errors.New("all samples failed")

// stateEmitter tracks the progress of the in-flight transfer and forwards
// every notification to the client's emitter.
type stateEmitter struct {
	c *Client
}

func (s *stateEmitter) OnPhase(phase spec.Phase) {
	s.c.emitter.OnPhase(phase)
}

func (s *stateEmitter) OnProgress(phase spec.Phase, percent int) {
	s.c.mu.Lock()
	if s.c.state.Phase == phase {
		s.c.state.Progress = percent
	}
	s.c.mu.Unlock()
	s.c.emitter.OnProgress(phase, percent)
}

func (s *stateEmitter) OnSample(sample results.Sample) {
	s.c.emitter.OnSample(sample)
}

func (s *stateEmitter) OnError(phase spec.Phase, err error) {
	s.c.emitter.OnError(phase, err)
}

func (s *stateEmitter) OnComplete(r results.TestResult) {
	s.c.emitter.OnComplete(r)
}
