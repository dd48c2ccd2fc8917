package emitter

import (
	"github.com/robertodauria/speedtest/pkg/speedtest/results"
	"github.com/robertodauria/speedtest/pkg/speedtest/spec"
	"go.uber.org/zap"
)

// Emitter receives notifications while a test runs. Calls are never
// concurrent, but OnProgress may be invoked from the HTTP transport's
// goroutine during uploads. Implementations must not block.
type Emitter interface {
	OnPhase(spec.Phase)
	OnProgress(spec.Phase, int)
	OnSample(results.Sample)
	OnError(spec.Phase, error)
	OnComplete(results.TestResult)
}

type LogEmitter struct{}

func (e *LogEmitter) OnPhase(phase spec.Phase) {
	zap.L().Sugar().Infof("phase: %s", phase)
}

// OnProgress only logs transfer start and completion.
func (e *LogEmitter) OnProgress(phase spec.Phase, percent int) {
	if percent == 0 || percent == 100 {
		zap.L().Sugar().Debugf("%s: %d%%", phase, percent)
	}
}

func (e *LogEmitter) OnSample(s results.Sample) {
	if s.Failed() {
		return
	}
	zap.L().Sugar().Infow("sample",
		"phase", s.Phase,
		"size", s.Size,
		"elapsed", s.Elapsed)
}

func (e *LogEmitter) OnError(phase spec.Phase, err error) {
	zap.L().Sugar().Errorf("%s: error (%v)", phase, err)
}

func (e *LogEmitter) OnComplete(r results.TestResult) {
	zap.L().Sugar().Infow("test complete",
		"mid", r.MeasurementID,
		"latency", r.Latency,
		"download", r.Download,
		"upload", r.Upload)
}
