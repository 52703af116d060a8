package decoder

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pulseCharge = 12500 * voltsPerCount / LoadResistanceOhms * SamplingPeriodNs

func pulses(centers ...int) []int {
	samples := flat(200)
	for _, center := range centers {
		addPulse(samples, center, 1250, 10)
	}
	return samples
}

func newTestAnalysis(sink ResultSink, diagnostics DiagnosticSink) *Analysis {
	return NewAnalysis(DefaultAnalysisParams(), sink, diagnostics, nil, 0)
}

func TestEvaluateAccepted(t *testing.T) {
	peaks, result, reason := newTestAnalysis(nil, nil).Evaluate(muonDecay())

	assert.Equal(t, Accepted, reason)
	assert.Len(t, peaks, 2)
	assert.Equal(t, (80-51)*SamplingPeriodNs, result.TimeDifferenceNs)
	assert.InDelta(t, pulseCharge, result.MuonChargeNc, 1e-9)
	assert.InDelta(t, pulseCharge, result.ElectronChargeNc, 1e-9)
}

func TestEvaluateRejections(t *testing.T) {
	smallPulses := flat(200)
	addPulse(smallPulses, 40, 500, 4)
	addPulse(smallPulses, 90, 500, 4)

	tests := []struct {
		name     string
		waveform []int
		reason   RejectReason
		peaks    int
	}{
		{"no pulse", flat(200), TooFewPeaks, 0},
		{"single pulse", pulses(40), TooFewPeaks, 1},
		{"three pulses", pulses(40, 90, 140), TooManyPeaks, 3},
		{"pulses 20 ns apart", pulses(40, 66), ShortTimeDifference, 2},
		{"pulses 24 ns apart", pulses(40, 67), Accepted, 2},
		{"low muon charge", smallPulses, LowCharge, 2},
	}

	analysis := newTestAnalysis(nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			peaks, result, reason := analysis.Evaluate(tt.waveform)
			assert.Equal(t, tt.reason, reason)
			assert.Len(t, peaks, tt.peaks)
			if reason != Accepted {
				assert.Zero(t, result.ElectronChargeNc)
			}
		})
	}
}

func TestEvaluateUsesParams(t *testing.T) {
	params := DefaultAnalysisParams()
	params.MinChargeNc = 0.5
	_, _, reason := NewAnalysis(params, nil, nil, nil, 0).Evaluate(muonDecay())
	assert.Equal(t, LowCharge, reason)

	params = DefaultAnalysisParams()
	params.MinTimeDifferenceNs = 116
	_, _, reason = NewAnalysis(params, nil, nil, nil, 0).Evaluate(muonDecay())
	assert.Equal(t, ShortTimeDifference, reason)
}

func TestAnalysisRun(t *testing.T) {
	stream := streamOf(
		monitoredEvent(5, muonDecay()),
		monitoredEvent(6, flat(200)),
		monitoredEvent(7, pulses(40, 90, 140)),
		monitoredEvent(8, muonDecay()),
	)
	sink := &recordingSink{}
	analysis := newTestAnalysis(sink, nil)
	analysis.SetRun("run", 3, "muons.dat")

	summary, err := analysis.Run(NewEventReader(stream, nil, 0, NoEventLimit))
	require.NoError(t, err)

	assert.Equal(t, "run", summary.RunID)
	assert.Equal(t, 3, summary.FileIndex)
	assert.Equal(t, 4, summary.EventsDecoded)
	assert.Equal(t, 4, summary.EventsAnalysed)
	assert.Equal(t, 2, summary.EventsAccepted)
	assert.Equal(t, 1, summary.Rejected[TooFewPeaks])
	assert.Equal(t, 1, summary.Rejected[TooManyPeaks])
	assert.Equal(t, 2, summary.EventsRejected())

	require.Len(t, sink.results, 2)
	assert.Equal(t, 5, sink.results[0].EventNumber)
	assert.Equal(t, 8, sink.results[1].EventNumber)
	assert.Equal(t, 3, sink.results[1].FileIndex)
	assert.Equal(t, summary, analysis.Summary())
}

func TestAnalysisSkip(t *testing.T) {
	params := DefaultAnalysisParams()
	params.Skip = 1
	sink := &recordingSink{}
	analysis := NewAnalysis(params, sink, nil, nil, 0)

	summary, err := analysis.Run(NewEventReader(streamOf(monitoredEvent(1, muonDecay()), monitoredEvent(2, muonDecay())), nil, 0, NoEventLimit))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.EventsDecoded)
	assert.Equal(t, 1, summary.EventsAnalysed)
	assert.Equal(t, 0, summary.EventsRejected())
	require.Len(t, sink.results, 1)
	assert.Equal(t, 2, sink.results[0].EventNumber)
}

func TestAnalysisDiagnosticsLimit(t *testing.T) {
	params := DefaultAnalysisParams()
	params.MaxDiagnosticEvents = 2
	diagnostics := &recordingDiagnostics{}
	analysis := NewAnalysis(params, nil, diagnostics, nil, 0)

	stream := streamOf(monitoredEvent(1, flat(200)), monitoredEvent(2, muonDecay()), monitoredEvent(3, muonDecay()))
	_, err := analysis.Run(NewEventReader(stream, nil, 0, NoEventLimit))
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, diagnostics.events)
	assert.Equal(t, 400, diagnostics.points)
	assert.Equal(t, 2, diagnostics.peaks)
}

func TestAnalysisStopsOnFormatError(t *testing.T) {
	var words []uint32
	words = append(words, monitoredEvent(1, muonDecay()).words()...)
	broken := monitoredEvent(2, muonDecay()).words()
	broken[HeaderWords+2] = 0
	words = append(words, broken...)
	words = append(words, monitoredEvent(3, muonDecay()).words()...)

	sink := &recordingSink{}
	summary, err := newTestAnalysis(sink, nil).Run(NewEventReader(bytes.NewReader(encodeWords(words)), nil, 0, NoEventLimit))

	assert.Equal(t, BoardAlignment, formatErrorOf(t, err).Kind)
	assert.Equal(t, 1, summary.EventsDecoded)
	assert.Len(t, sink.results, 1)
}

func TestAnalysisSinkError(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk full")}
	_, err := newTestAnalysis(sink, nil).Run(NewEventReader(streamOf(monitoredEvent(1, muonDecay())), nil, 0, NoEventLimit))
	assert.ErrorIs(t, err, sink.err)
}

func TestAnalysisUnmonitoredChannel(t *testing.T) {
	params := DefaultAnalysisParams()
	params.MonitoredChannel = 5
	_, err := NewAnalysis(params, nil, nil, nil, 0).Run(NewEventReader(streamOf(monitoredEvent(1, muonDecay())), nil, 0, NoEventLimit))
	assert.Error(t, err)
}

func TestFooterMismatchDoesNotChangeResults(t *testing.T) {
	bad := monitoredEvent(1, muonDecay())
	bad.Footer = []uint32{0, 0, 0, 0}

	clean := &recordingSink{}
	_, err := newTestAnalysis(clean, nil).Run(NewEventReader(streamOf(monitoredEvent(1, muonDecay())), nil, 0, NoEventLimit))
	require.NoError(t, err)

	mismatched := &recordingSink{}
	summary, err := newTestAnalysis(mismatched, nil).Run(NewEventReader(streamOf(bad), nil, 0, NoEventLimit))
	require.NoError(t, err)

	assert.Equal(t, clean.results, mismatched.results)
	assert.Equal(t, 1, summary.FooterMismatches)
}

func TestRejectReasonString(t *testing.T) {
	assert.Equal(t, "accepted", Accepted.String())
	assert.Equal(t, "fewer than 2 peaks", TooFewPeaks.String())
	assert.Equal(t, "unknown", RejectReason(99).String())
}
