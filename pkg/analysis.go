package decoder

import (
	"errors"
	"fmt"
	"io"
)

// Quality cuts against noise only events.
const (
	MinTimeDifferenceNs = 20
	MinChargeNc         = 0.2
)

type AnalysisParams struct {
	MonitoredChannel    int
	DerivativeThreshold int
	MinTimeDifferenceNs int
	MinChargeNc         float64
	Skip                int
	MaxDiagnosticEvents int
}

func DefaultAnalysisParams() AnalysisParams {
	return DefaultConfiguration().AnalysisParams()
}

type AnalysisResult struct {
	FileIndex        int
	EventNumber      int
	TimeDifferenceNs int
	MuonChargeNc     float64
	ElectronChargeNc float64
}

type RejectReason int

const (
	Accepted RejectReason = iota
	TooFewPeaks
	TooManyPeaks
	ShortTimeDifference
	LowCharge
	Skipped
)

func (r RejectReason) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case TooFewPeaks:
		return "fewer than 2 peaks"
	case TooManyPeaks:
		return "more than 2 peaks"
	case ShortTimeDifference:
		return "time difference below threshold"
	case LowCharge:
		return "muon charge below threshold"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

type RunSummary struct {
	RunID            string
	FileIndex        int
	File             string
	EventsDecoded    int
	EventsAnalysed   int
	EventsAccepted   int
	Rejected         map[RejectReason]int
	FooterMismatches int
}

func (s RunSummary) EventsRejected() int {
	total := 0
	for _, n := range s.Rejected {
		total += n
	}
	return total
}

// Analysis turns decoded events into measurements. One Analysis serves one
// file, events are handled strictly in order.
type Analysis struct {
	params      AnalysisParams
	finder      PeakFinder
	sink        ResultSink
	diagnostics DiagnosticSink
	logger      Logger
	verbosity   int
	summary     RunSummary
}

// NewAnalysis accepts a nil sink or diagnostics to disable them.
func NewAnalysis(params AnalysisParams, sink ResultSink, diagnostics DiagnosticSink, logger Logger, verbosity int) *Analysis {
	if logger == nil {
		logger = NopLogger{}
	}
	return &Analysis{
		params:      params,
		finder:      NewPeakFinder(params.DerivativeThreshold),
		sink:        sink,
		diagnostics: diagnostics,
		logger:      logger,
		verbosity:   verbosity,
		summary:     RunSummary{Rejected: make(map[RejectReason]int)},
	}
}

// Evaluate applies peak finding and the quality cuts to one waveform. The
// electron charge is only computed for accepted events.
func (a *Analysis) Evaluate(waveform []int) ([]Peak, AnalysisResult, RejectReason) {
	var result AnalysisResult
	peaks := a.finder.FindPeaks(waveform)
	if len(peaks) < 2 {
		return peaks, result, TooFewPeaks
	}

	result.TimeDifferenceNs = SampleToNanoseconds(peaks[1].Start - peaks[0].End)
	result.MuonChargeNc = IntegratedCharge(peaks[0].Start, peaks[0].End, waveform)

	switch {
	case len(peaks) != 2:
		return peaks, result, TooManyPeaks
	case result.TimeDifferenceNs <= a.params.MinTimeDifferenceNs:
		return peaks, result, ShortTimeDifference
	case result.MuonChargeNc <= a.params.MinChargeNc:
		return peaks, result, LowCharge
	}

	result.ElectronChargeNc = IntegratedCharge(peaks[1].Start, peaks[1].End, waveform)
	return peaks, result, Accepted
}

// ProcessEvent analyses the monitored channel of one event and forwards an
// accepted result to the sink.
func (a *Analysis) ProcessEvent(event *Event) (AnalysisResult, RejectReason, error) {
	a.summary.EventsDecoded++
	if len(event.FooterMismatches) > 0 {
		a.summary.FooterMismatches++
	}
	if event.Index < a.params.Skip {
		if a.verbosity > 1 {
			a.logger.Info(fmt.Sprintf("Skipping event %d", event.Number), "analysis")
		}
		return AnalysisResult{}, Skipped, nil
	}

	waveform, err := event.Channel(a.params.MonitoredChannel)
	if err != nil {
		return AnalysisResult{}, Skipped, err
	}
	a.summary.EventsAnalysed++

	peaks, result, reason := a.Evaluate(waveform)
	result.FileIndex = a.summary.FileIndex
	result.EventNumber = event.Number

	if a.diagnostics != nil && event.Index < a.params.MaxDiagnosticEvents {
		err := a.diagnostics.WriteWaveform(event.Number, CalibrateWaveform(waveform), CalibratePeaks(peaks, waveform))
		if err != nil {
			return result, reason, fmt.Errorf("error writing diagnostics for event %d: %w", event.Number, err)
		}
	}

	if reason != Accepted {
		a.summary.Rejected[reason]++
		if a.verbosity > 1 {
			message := fmt.Sprintf("Skipping event %d: %v (%d peaks)", event.Number, reason, len(peaks))
			a.logger.Info(message, "analysis")
		}
		return result, reason, nil
	}

	a.summary.EventsAccepted++
	if a.verbosity > 1 {
		message := fmt.Sprintf("Event %d accepted: dt %d ns, muon %.4f nC, electron %.4f nC",
			event.Number, result.TimeDifferenceNs, result.MuonChargeNc, result.ElectronChargeNc)
		a.logger.Info(message, "analysis")
	}
	if a.sink != nil {
		if err := a.sink.Record(result); err != nil {
			return result, reason, fmt.Errorf("error recording event %d: %w", event.Number, err)
		}
	}
	return result, reason, nil
}

// Run consumes the reader until the end of the stream. The summary always
// holds the events decoded so far, also when a FormatError stops the run.
func (a *Analysis) Run(reader *EventReader) (RunSummary, error) {
	for {
		event, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return a.summary, nil
			}
			return a.summary, err
		}
		if _, _, err := a.ProcessEvent(event); err != nil {
			return a.summary, err
		}
	}
}

func (a *Analysis) Summary() RunSummary {
	return a.summary
}

// SetRun labels the summary and results of this analysis.
func (a *Analysis) SetRun(runID string, fileIndex int, file string) {
	a.summary.RunID = runID
	a.summary.FileIndex = fileIndex
	a.summary.File = file
}
