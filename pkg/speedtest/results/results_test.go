package results

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/robertodauria/speedtest/pkg/speedtest/spec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseResult(t *testing.T) {
	v, ok := Unavailable().Value()
	assert.False(t, ok)
	assert.Equal(t, 0.0, v)
	assert.Equal(t, "unavailable", Unavailable().String())

	// A measured zero is not the same as no measurement.
	assert.NotEqual(t, Unavailable(), Available(0))
	assert.Equal(t, "0", Available(0).String())
	assert.Equal(t, "14", Available(14).String())
}

func TestTestResult_JSON(t *testing.T) {
	r := TestResult{
		MeasurementID: "mid",
		Latency:       Available(14),
		Download:      Available(100),
		Upload:        Unavailable(),
	}
	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Latency":14`)
	assert.Contains(t, string(data), `"Upload":null`)

	var got TestResult
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, r.Latency, got.Latency)
	assert.Equal(t, r.Download, got.Download)
	assert.False(t, got.Upload.IsAvailable())
}

func TestSampleSet_Successful(t *testing.T) {
	set := SampleSet{
		{Phase: spec.PhaseDownload, Size: 1, Elapsed: time.Second},
		{Phase: spec.PhaseDownload, Size: 2, Error: "reset"},
		{Phase: spec.PhaseDownload, Size: 3, Elapsed: time.Second},
	}
	ok := set.Successful()
	assert.Len(t, ok, 2)
	assert.Equal(t, int64(1), ok[0].Size)
	assert.Equal(t, int64(3), ok[1].Size)
	assert.Equal(t, 1, set.Failures())
}
