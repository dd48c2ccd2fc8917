package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/robertodauria/speedtest/pkg/speedtest/estimate"
	"github.com/robertodauria/speedtest/pkg/speedtest/results"
	"github.com/robertodauria/speedtest/pkg/speedtest/spec"
)

const barWidth = 30

// consoleEmitter draws a progress bar for the current transfer.
type consoleEmitter struct {
	out io.Writer
}

func newConsoleEmitter(out io.Writer) *consoleEmitter {
	return &consoleEmitter{out: out}
}

func (e *consoleEmitter) OnPhase(phase spec.Phase) {
	if phase == spec.PhaseDone {
		return
	}
	cyan := color.New(color.FgCyan).SprintFunc()
	fmt.Fprintf(e.out, "\r\033[K%s Testing %s...\n", cyan("•"), phase)
}

func (e *consoleEmitter) OnProgress(phase spec.Phase, percent int) {
	filled := percent * barWidth / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	fmt.Fprintf(e.out, "\r\033[K  %s %3d%%", bar, percent)
	if percent == 100 {
		fmt.Fprint(e.out, "\r\033[K")
	}
}

func (e *consoleEmitter) OnSample(results.Sample) {}

func (e *consoleEmitter) OnError(phase spec.Phase, err error) {
	yellow := color.New(color.FgYellow).FprintfFunc()
	yellow(e.out, "\r\033[K  Warning: %s: %v\n", phase, err)
}

func (e *consoleEmitter) OnComplete(results.TestResult) {}

// formatLatency renders an unavailable latency as the sentinel value, marked
// so that it cannot be mistaken for a measurement.
func formatLatency(r results.PhaseResult) string {
	if v, ok := r.Value(); ok {
		return fmt.Sprintf("%.0f ms", v)
	}
	return fmt.Sprintf("%d ms (unavailable)", estimate.LatencySentinel)
}

func formatSpeed(r results.PhaseResult) string {
	if v, ok := r.Value(); ok {
		return fmt.Sprintf("%.0f Mbps", v)
	}
	return "-- Mbps"
}

func printResult(out io.Writer, r results.TestResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	mark := func(p results.PhaseResult) string {
		if p.IsAvailable() {
			return green("✓")
		}
		return red("✗")
	}
	samples := func(s results.SampleSet) string {
		return fmt.Sprintf("(%d/%d samples)", len(s)-s.Failures(), len(s))
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s Latency:  %-24s %s\n", mark(r.Latency), formatLatency(r.Latency), samples(r.LatencySamples))
	fmt.Fprintf(out, "%s Download: %-24s %s\n", mark(r.Download), formatSpeed(r.Download), samples(r.DownloadSamples))
	fmt.Fprintf(out, "%s Upload:   %-24s %s\n", mark(r.Upload), formatSpeed(r.Upload), samples(r.UploadSamples))
}
