package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/robertodauria/speedtest/internal/metrics"
	"github.com/robertodauria/speedtest/pkg/speedtest/payload"
	"github.com/robertodauria/speedtest/pkg/speedtest/results"
	"github.com/robertodauria/speedtest/pkg/speedtest/spec"
	"go.uber.org/zap"
)

// Handler serves the echo probe and the payload endpoints.
type Handler struct {
	maxDownloadSize int64
	maxUploadSize   int64
}

// New creates a new Handler. Download sizes above maxDownloadSize and upload
// bodies above maxUploadSize are rejected.
func New(maxDownloadSize, maxUploadSize int64) *Handler {
	return &Handler{
		maxDownloadSize: maxDownloadSize,
		maxUploadSize:   maxUploadSize,
	}
}

// setNoCache makes sure neither the client nor any intermediary caches the
// response. A cached payload would make throughput look infinite.
func setNoCache(h http.Header) {
	h.Set("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
}

// Ping handles the echo probe.
func (h *Handler) Ping(c echo.Context) error {
	setNoCache(c.Response().Header())
	return c.String(http.StatusOK, spec.PongMessage)
}

// Download sends a payload of the requested size.
func (h *Handler) Download(c echo.Context) error {
	header := c.Response().Header()
	setNoCache(header)
	size, err := payload.ParseSize(c.QueryParam(spec.SizeParameterName), h.maxDownloadSize)
	if err != nil {
		metrics.Rejections.WithLabelValues("download", "invalid_size").Inc()
		zap.L().Sugar().Infow("Rejected download request",
			"url", c.Request().URL.String(),
			"client", c.RealIP(),
			"error", err)
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	body, err := payload.Generate(size)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	metrics.RequestedSize.Observe(float64(size))

	header.Set(echo.HeaderContentLength, strconv.FormatInt(size, 10))
	zap.L().Sugar().Debugw("Sending download payload",
		"mid", c.QueryParam(spec.MeasurementIDParameterName),
		"size", size)

	err = c.Stream(http.StatusOK, spec.OctetStream, body)
	metrics.BytesSent.Add(float64(c.Response().Size))
	if err != nil {
		// Headers are already on the wire, there is nothing left to tell
		// the client.
		zap.L().Sugar().Warnw("Download interrupted",
			"mid", c.QueryParam(spec.MeasurementIDParameterName),
			"sent", c.Response().Size,
			"size", size,
			"error", err)
	}
	return nil
}

// Upload reads the request body and acknowledges the number of bytes
// received. Bodies above the upload cap are rejected with 413, never
// truncated.
func (h *Handler) Upload(c echo.Context) error {
	setNoCache(c.Response().Header())
	req := c.Request()
	if req.ContentLength > h.maxUploadSize {
		metrics.Rejections.WithLabelValues("upload", "too_large").Inc()
		zap.L().Sugar().Infow("Rejected upload by content length",
			"client", c.RealIP(),
			"length", req.ContentLength)
		return echo.ErrStatusRequestEntityTooLarge
	}

	n, err := payload.Accept(req.Body, h.maxUploadSize)
	switch {
	case errors.Is(err, payload.ErrTooLarge):
		metrics.Rejections.WithLabelValues("upload", "too_large").Inc()
		zap.L().Sugar().Infow("Rejected upload while reading",
			"client", c.RealIP(),
			"error", err)
		return echo.ErrStatusRequestEntityTooLarge
	case err != nil:
		metrics.Rejections.WithLabelValues("upload", "read_error").Inc()
		zap.L().Sugar().Warnw("Failed to read upload body",
			"client", c.RealIP(),
			"error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read body")
	}

	metrics.BytesReceived.Add(float64(n))
	zap.L().Sugar().Debugw("Received upload payload",
		"mid", c.QueryParam(spec.MeasurementIDParameterName),
		"received", n)
	return c.JSON(http.StatusOK, results.UploadResponse{Received: n})
}
