package decoder

import (
	"errors"
	"sync"
)

// ResultSink receives every accepted event.
type ResultSink interface {
	Record(result AnalysisResult) error
}

// RunRecorder is implemented by sinks that keep a per file summary.
type RunRecorder interface {
	WriteRunInfo(summary RunSummary) error
}

// DiagnosticSink receives the calibrated waveform and its peaks for visual
// inspection. It plays no part in accepting events.
type DiagnosticSink interface {
	WriteWaveform(eventNumber int, waveform []WaveformPoint, peaks []PeakPoints) error
}

type WaveformPoint struct {
	TimeNs int
	Volts  float64
}

type PeakPoints struct {
	Start   WaveformPoint
	End     WaveformPoint
	Minimum WaveformPoint
}

func CalibrateWaveform(waveform []int) []WaveformPoint {
	points := make([]WaveformPoint, len(waveform))
	for i, counts := range waveform {
		points[i] = WaveformPoint{TimeNs: SampleToNanoseconds(i), Volts: CountsToVolts(float64(counts))}
	}
	return points
}

func CalibratePeaks(peaks []Peak, waveform []int) []PeakPoints {
	point := func(i int) WaveformPoint {
		return WaveformPoint{TimeNs: SampleToNanoseconds(i), Volts: CountsToVolts(float64(waveform[i]))}
	}
	points := make([]PeakPoints, len(peaks))
	for i, peak := range peaks {
		points[i] = PeakPoints{Start: point(peak.Start), End: point(peak.End), Minimum: point(peak.Minimum)}
	}
	return points
}

// MultiSink forwards each result to all its sinks.
type MultiSink []ResultSink

func (m MultiSink) Record(result AnalysisResult) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Record(result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) WriteRunInfo(summary RunSummary) error {
	var errs []error
	for _, sink := range m {
		if recorder, ok := sink.(RunRecorder); ok {
			if err := recorder.WriteRunInfo(summary); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// LockedSink serialises a sink shared by several file workers.
type LockedSink struct {
	mu   sync.Mutex
	sink ResultSink
}

func NewLockedSink(sink ResultSink) *LockedSink {
	return &LockedSink{sink: sink}
}

func (l *LockedSink) Record(result AnalysisResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sink.Record(result)
}

func (l *LockedSink) WriteRunInfo(summary RunSummary) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if recorder, ok := l.sink.(RunRecorder); ok {
		return recorder.WriteRunInfo(summary)
	}
	return nil
}
