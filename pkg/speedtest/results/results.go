// Package results contains the data model of a speedtest run.
package results

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/robertodauria/speedtest/pkg/speedtest/spec"
)

// Sample is a single timed request within a phase.
type Sample struct {
	// Phase is the phase this sample belongs to.
	Phase spec.Phase
	// Size is the nominal payload size in bytes. It is zero for latency
	// samples.
	Size int64 `json:",omitempty"`
	// Elapsed is the wall-clock time from request start to completion.
	Elapsed time.Duration
	// Error is non-empty when the request failed. Failed samples never
	// contribute to a PhaseResult.
	Error string `json:",omitempty"`
}

// Failed reports whether the request for this sample failed.
func (s Sample) Failed() bool {
	return s.Error != ""
}

// Milliseconds returns the elapsed time in fractional milliseconds.
func (s Sample) Milliseconds() float64 {
	return float64(s.Elapsed) / float64(time.Millisecond)
}

// SampleSet is the ordered sequence of samples collected for one phase.
type SampleSet []Sample

// Successful returns the samples that did not fail, in collection order.
func (s SampleSet) Successful() SampleSet {
	out := make(SampleSet, 0, len(s))
	for _, sample := range s {
		if !sample.Failed() {
			out = append(out, sample)
		}
	}
	return out
}

// Failures returns the number of failed samples.
func (s SampleSet) Failures() int {
	return len(s) - len(s.Successful())
}

// PhaseResult is the metric derived from a SampleSet: milliseconds for
// latency, megabits per second for throughput. The zero value is
// unavailable.
type PhaseResult struct {
	value float64
	valid bool
}

// Available returns a PhaseResult holding v.
func Available(v float64) PhaseResult {
	return PhaseResult{value: v, valid: true}
}

// Unavailable returns a PhaseResult for a phase with no successful samples.
func Unavailable() PhaseResult {
	return PhaseResult{}
}

// Value returns the metric and whether it is available.
func (p PhaseResult) Value() (float64, bool) {
	return p.value, p.valid
}

// IsAvailable reports whether the phase produced a metric.
func (p PhaseResult) IsAvailable() bool {
	return p.valid
}

// MarshalJSON encodes an unavailable result as null.
func (p PhaseResult) MarshalJSON() ([]byte, error) {
	if !p.valid {
		return []byte("null"), nil
	}
	return json.Marshal(p.value)
}

// UnmarshalJSON decodes null as an unavailable result.
func (p *PhaseResult) UnmarshalJSON(data []byte) error {
	var v *float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v == nil {
		*p = Unavailable()
		return nil
	}
	*p = Available(*v)
	return nil
}

// TestResult is the outcome of a complete run.
type TestResult struct {
	// MeasurementID identifies every request sent during the run.
	MeasurementID string
	// StartTime is when the run left the idle state.
	StartTime time.Time
	// EndTime is when the run reached the done state.
	EndTime time.Time

	// Latency is the trimmed mean round-trip time in milliseconds.
	Latency PhaseResult
	// Download is the peak download throughput in Mbps.
	Download PhaseResult
	// Upload is the peak upload throughput in Mbps.
	Upload PhaseResult

	LatencySamples  SampleSet `json:",omitempty"`
	DownloadSamples SampleSet `json:",omitempty"`
	UploadSamples   SampleSet `json:",omitempty"`
}

// UploadResponse is the acknowledgement returned by the upload endpoint.
type UploadResponse struct {
	// Received is the exact number of body bytes read by the server.
	Received int64 `json:"received"`
}

// String formats the metric, or "unavailable".
func (p PhaseResult) String() string {
	if !p.valid {
		return "unavailable"
	}
	return strconv.FormatFloat(p.value, 'f', -1, 64)
}

// Clone returns a copy of r that shares no memory with it.
func (r TestResult) Clone() TestResult {
	r.LatencySamples = append(SampleSet(nil), r.LatencySamples...)
	r.DownloadSamples = append(SampleSet(nil), r.DownloadSamples...)
	r.UploadSamples = append(SampleSet(nil), r.UploadSamples...)
	return r
}
