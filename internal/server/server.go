// Package server assembles the speedtest HTTP server.
package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/robertodauria/speedtest/internal/handler"
	"github.com/robertodauria/speedtest/internal/metrics"
	"github.com/robertodauria/speedtest/pkg/speedtest/spec"
	"go.uber.org/zap"
)

const DefaultAllowedOrigin = "http://localhost:3000"

// Config holds the server settings.
type Config struct {
	// AllowedOrigins are the origins allowed to run tests from a browser.
	AllowedOrigins []string

	// MaxDownloadSize bounds the size of a download payload.
	MaxDownloadSize int64

	// MaxUploadSize bounds the size of an upload body.
	MaxUploadSize int64
}

func NewDefault() *Config {
	return &Config{
		AllowedOrigins:  []string{DefaultAllowedOrigin},
		MaxDownloadSize: spec.MaxDownloadSize,
		MaxUploadSize:   spec.MaxUploadSize,
	}
}

// New returns an echo server serving the echo probe and the payload
// endpoints, with cross-origin access restricted to cfg.AllowedOrigins.
func New(cfg *Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogRoutePath: true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			metrics.Requests.WithLabelValues(v.RoutePath, strconv.Itoa(v.Status)).Inc()
			zap.L().Sugar().Debugw("Request served",
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"client", v.RemoteIP)
			return nil
		},
	}))
	// Preflight requests are answered by the CORS middleware for every path.
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderContentLength},
	}))

	h := handler.New(cfg.MaxDownloadSize, cfg.MaxUploadSize)
	e.GET(spec.PingPath, h.Ping)
	e.GET(spec.DownloadPath, h.Download)
	e.POST(spec.UploadPath, h.Upload)
	return e
}
