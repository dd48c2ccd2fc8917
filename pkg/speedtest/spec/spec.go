// Package spec contains constants for the speedtest protocol.
package spec

import "time"

const (
	// PingPath selects the echo probe used for latency sampling.
	PingPath = "/ping"
	// DownloadPath selects the download payload endpoint.
	DownloadPath = "/download"
	// UploadPath selects the upload payload endpoint.
	UploadPath = "/upload"

	// SizeParameterName is the querystring parameter carrying the requested
	// download size in bytes.
	SizeParameterName = "size"
	// TokenParameterName is the querystring parameter carrying a per-request
	// uniqueness token so that intermediary caches cannot answer for us.
	TokenParameterName = "t"
	// MeasurementIDParameterName identifies all the requests belonging to the
	// same test run.
	MeasurementIDParameterName = "mid"

	// DefaultDownloadSize is used when a download request carries no size.
	DefaultDownloadSize = 10 << 20
	// MaxDownloadSize bounds the size of a single download payload.
	MaxDownloadSize = 100 << 20
	// MaxUploadSize bounds the size of a single upload body.
	MaxUploadSize = 50 << 20

	// DefaultLatencySamples is the number of echo probes per latency phase.
	DefaultLatencySamples = 10

	// PongMessage is the body returned by the echo probe.
	PongMessage = "pong"
	// OctetStream is the content type of every payload.
	OctetStream = "application/octet-stream"

	// MaxRuntime is the maximum runtime of a single probe or transfer.
	MaxRuntime = 60 * time.Second
)

// DefaultDownloadSizes is the ordered sequence of download transfer sizes.
var DefaultDownloadSizes = []int64{5_000_000, 10_000_000, 25_000_000}

// DefaultUploadSizes is the ordered sequence of upload transfer sizes.
var DefaultUploadSizes = []int64{5_000_000, 10_000_000, 20_000_000}

// Phase indicates the state of a test run.
type Phase string

const (
	// PhaseIdle is the state before a run starts and after a reset.
	PhaseIdle = Phase("idle")

	// PhaseLatency is the latency (echo probe) phase.
	PhaseLatency = Phase("latency")

	// PhaseDownload is the download throughput phase.
	PhaseDownload = Phase("download")

	// PhaseUpload is the upload throughput phase.
	PhaseUpload = Phase("upload")

	// PhaseDone is the terminal state of a run.
	PhaseDone = Phase("done")
)
