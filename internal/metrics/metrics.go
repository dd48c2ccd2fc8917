// Package metrics defines the prometheus metrics exported by the speedtest
// server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Requests counts the requests served, by endpoint and status code.
	Requests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speedtest_requests_total",
			Help: "Number of requests served, by endpoint and status code.",
		},
		[]string{"endpoint", "code"},
	)

	// BytesSent counts the payload bytes written by the download endpoint.
	BytesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "speedtest_download_bytes_total",
			Help: "Payload bytes sent to clients.",
		},
	)

	// BytesReceived counts the payload bytes accepted by the upload endpoint.
	BytesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "speedtest_upload_bytes_total",
			Help: "Payload bytes received from clients.",
		},
	)

	// RequestedSize tracks the distribution of requested download sizes.
	RequestedSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "speedtest_download_size_bytes",
			Help:    "Requested download payload size.",
			Buckets: prometheus.ExponentialBuckets(1<<20, 2, 8),
		},
	)

	// Rejections counts requests rejected before transferring a payload.
	Rejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speedtest_rejections_total",
			Help: "Requests rejected, by endpoint and reason.",
		},
		[]string{"endpoint", "reason"},
	)
)
