package config

import (
	"time"

	"github.com/robertodauria/speedtest/pkg/speedtest/spec"
)

const (
	DefaultServer  = "http://localhost:5000"
	DefaultTimeout = spec.MaxRuntime
)

type ClientConfig struct {
	// The base URL of the speedtest server.
	Server string

	// The Timeout of a single probe or transfer.
	Timeout time.Duration

	// The number of echo probes in the latency phase.
	LatencySamples int

	// The ordered transfer sizes of the download phase, in bytes.
	DownloadSizes []int64

	// The ordered transfer sizes of the upload phase, in bytes.
	UploadSizes []int64
}

func New(server string, timeout time.Duration, latencySamples int,
	downloadSizes, uploadSizes []int64) *ClientConfig {
	return &ClientConfig{
		Server:         server,
		Timeout:        timeout,
		LatencySamples: latencySamples,
		DownloadSizes:  downloadSizes,
		UploadSizes:    uploadSizes,
	}
}

func NewDefault() *ClientConfig {
	return New(DefaultServer, DefaultTimeout, spec.DefaultLatencySamples,
		append([]int64(nil), spec.DefaultDownloadSizes...),
		append([]int64(nil), spec.DefaultUploadSizes...))
}
