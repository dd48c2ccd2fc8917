// Package estimate turns raw timing samples into reported metrics.
//
// Latency is aggregated with a trimmed mean, throughput with the maximum
// over differently sized transfers: small transfers are dominated by
// fixed per-request overhead and underestimate the available bandwidth.
package estimate

import (
	"math"
	"sort"
	"time"

	"github.com/robertodauria/speedtest/pkg/speedtest/results"
)

// LatencySentinel is the value, in milliseconds, shown in place of an
// unavailable latency result. It is never used as a measurement.
const LatencySentinel = 999

// TrimmedMean returns the mean of values after dropping the single lowest
// and single highest value. With fewer than three values no trimming
// happens. The second return value is false when values is empty. The
// input slice is not modified.
func TrimmedMean(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	if len(sorted) >= 3 {
		sorted = sorted[1 : len(sorted)-1]
	}
	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	return sum / float64(len(sorted)), true
}

// Max returns the largest of values, or false when values is empty.
func Max(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	return max, true
}

// Mbps converts a transfer of size bytes completed in elapsed into megabits
// per second.
func Mbps(size int64, elapsed time.Duration) float64 {
	return float64(size) * 8 / elapsed.Seconds() / 1e6
}

// Latency returns the rounded trimmed mean, in milliseconds, of the
// successful samples in set.
func Latency(set results.SampleSet) results.PhaseResult {
	ok := set.Successful()
	values := make([]float64, 0, len(ok))
	for _, s := range ok {
		values = append(values, s.Milliseconds())
	}
	mean, found := TrimmedMean(values)
	if !found {
		return results.Unavailable()
	}
	return results.Available(math.Round(mean))
}

// Throughput returns the rounded peak throughput, in Mbps, over the
// successful samples in set.
func Throughput(set results.SampleSet) results.PhaseResult {
	ok := set.Successful()
	values := make([]float64, 0, len(ok))
	for _, s := range ok {
		// A zero duration cannot come from a real transfer.
		if s.Elapsed <= 0 || s.Size <= 0 {
			continue
		}
		values = append(values, Mbps(s.Size, s.Elapsed))
	}
	max, found := Max(values)
	if !found {
		return results.Unavailable()
	}
	return results.Available(math.Round(max))
}
