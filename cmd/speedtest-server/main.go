package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/httpx"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"
	"github.com/robertodauria/speedtest/internal/server"
	"github.com/robertodauria/speedtest/pkg/speedtest/spec"
	"go.uber.org/zap"
)

var (
	flagEndpoint    = flag.String("listen", ":5000", "Listen address/port for speedtest requests")
	flagMaxDownload = flag.Int64("max-download-size", spec.MaxDownloadSize, "Maximum download payload size in bytes")
	flagMaxUpload   = flag.Int64("max-upload-size", spec.MaxUploadSize, "Maximum upload body size in bytes")
	flagDebug       = flag.Bool("debug", false, "Enable debug logging")
	flagOrigins     flagx.StringArray
)

func init() {
	flag.Var(&flagOrigins, "allowed-origin", "Origin allowed to run tests from a browser (repeatable, default "+server.DefaultAllowedOrigin+")")
}

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not parse env args")

	var logger *zap.Logger
	var err error
	if *flagDebug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	rtx.Must(err, "Could not create logger")
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	promSrv := prometheusx.MustServeMetrics()
	defer promSrv.Close()

	cfg := server.NewDefault()
	cfg.MaxDownloadSize = *flagMaxDownload
	cfg.MaxUploadSize = *flagMaxUpload
	if len(flagOrigins) > 0 {
		cfg.AllowedOrigins = flagOrigins
	}

	srv := &http.Server{
		Addr:    *flagEndpoint,
		Handler: server.New(cfg),
	}
	zap.L().Sugar().Infow("About to listen for speedtest requests",
		"address", *flagEndpoint,
		"origins", cfg.AllowedOrigins,
		"max-download-size", cfg.MaxDownloadSize,
		"max-upload-size", cfg.MaxUploadSize)
	rtx.Must(httpx.ListenAndServeAsync(srv), "Could not start speedtest server")

	<-ctx.Done()
	zap.L().Sugar().Info("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Sugar().Warnw("Shutdown failed", "error", err)
	}
}
