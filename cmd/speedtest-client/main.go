package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/rtx"
	"github.com/robertodauria/speedtest/client"
	"github.com/robertodauria/speedtest/client/config"
	"github.com/robertodauria/speedtest/pkg/speedtest/spec"
	"go.uber.org/zap"
)

// sizes is a comma-separated list of transfer sizes in bytes.
type sizes []int64

func (s *sizes) String() string {
	parts := make([]string, 0, len(*s))
	for _, v := range *s {
		parts = append(parts, strconv.FormatInt(v, 10))
	}
	return strings.Join(parts, ",")
}

func (s *sizes) Set(v string) error {
	out := sizes{}
	for _, part := range strings.Split(v, ",") {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return err
		}
		if n <= 0 {
			return fmt.Errorf("size must be positive: %d", n)
		}
		out = append(out, n)
	}
	*s = out
	return nil
}

var (
	flagServer         = flag.String("server", config.DefaultServer, "Speedtest server base URL")
	flagTimeout        = flag.Duration("timeout", config.DefaultTimeout, "Timeout of a single probe or transfer")
	flagLatencySamples = flag.Int("latency-samples", spec.DefaultLatencySamples, "Number of latency probes")
	flagJSON           = flag.Bool("json", false, "Output results in JSON format")
	flagDebug          = flag.Bool("debug", false, "Enable debug logging")

	flagDownloadSizes = sizes(append([]int64(nil), spec.DefaultDownloadSizes...))
	flagUploadSizes   = sizes(append([]int64(nil), spec.DefaultUploadSizes...))
)

func init() {
	flag.Var(&flagDownloadSizes, "download-sizes", "Comma-separated download transfer sizes in bytes")
	flag.Var(&flagUploadSizes, "upload-sizes", "Comma-separated upload transfer sizes in bytes")
}

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not parse env args")

	// Logs go to stderr and stay quiet unless debugging, so that the report
	// on stdout is readable.
	logCfg := zap.NewDevelopmentConfig()
	if !*flagDebug {
		logCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	logger, err := logCfg.Build()
	rtx.Must(err, "Could not create logger")
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if *flagLatencySamples <= 0 {
		fmt.Fprintln(os.Stderr, "Error: -latency-samples must be a positive number.")
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := config.New(*flagServer, *flagTimeout, *flagLatencySamples, flagDownloadSizes, flagUploadSizes)
	c := client.NewWithConfig(cfg)
	if !*flagJSON {
		c.WithEmitter(newConsoleEmitter(os.Stdout))
	}

	result, err := c.Run(ctx)
	if *flagJSON {
		data, jsonErr := json.MarshalIndent(result, "", "  ")
		rtx.Must(jsonErr, "Could not marshal result")
		fmt.Println(string(data))
	} else {
		printResult(os.Stdout, result)
	}
	if errors.Is(err, context.Canceled) {
		os.Exit(130)
	}
}
