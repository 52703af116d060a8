package decoder

import (
	"bytes"
	"encoding/binary"
	"io"
)

const testBaseline = PedestalCounts

var goodFooter = []uint32{0xA1EF << 16, 0xA2EF << 16, 0xA3E0 << 16, 0xA4EF << 16}

// testEvent describes one single board event. Channels holds the samples of
// every active channel, all of the same even length.
type testEvent struct {
	Seq      int
	Mask     uint32
	Channels [][]int
	Footer   []uint32
}

func (e testEvent) payload() []uint32 {
	wordsPerChannel := 0
	if len(e.Channels) > 0 {
		wordsPerChannel = len(e.Channels[0]) / 2
	}
	words := []uint32{
		BoardCheckNibble<<28 | uint32(BoardHeaderWords+len(e.Channels)*wordsPerChannel),
		e.Mask,
		uint32(e.Seq - 1),
		0,
	}
	for _, samples := range e.Channels {
		for i := 0; i+1 < len(samples); i += 2 {
			words = append(words, uint32(samples[i])|uint32(samples[i+1])<<16)
		}
	}
	return words
}

func (e testEvent) header(payloadWords int) []uint32 {
	header := make([]uint32, HeaderWords)
	header[0] = uint32(eventOverheadBytes + WordSize*payloadWords)
	header[2] = HeaderMagicWord
	header[3] = uint32(e.Seq)
	header[5] = 1
	header[13] = DeviceMagicWord << 16
	return header
}

func (e testEvent) words() []uint32 {
	payload := e.payload()
	words := append(e.header(len(payload)), payload...)
	footer := e.Footer
	if footer == nil {
		footer = goodFooter
	}
	return append(words, footer...)
}

func encodeWords(words []uint32) []byte {
	data := make([]byte, 0, len(words)*WordSize)
	for _, word := range words {
		data = binary.LittleEndian.AppendUint32(data, word)
	}
	return data
}

func streamOf(events ...testEvent) io.Reader {
	var words []uint32
	for _, event := range events {
		words = append(words, event.words()...)
	}
	return bytes.NewReader(encodeWords(words))
}

func flat(n int) []int {
	samples := make([]int, n)
	for i := range samples {
		samples[i] = testBaseline
	}
	return samples
}

// addPulse carves a triangular dip of the given depth and half width centred
// on center. depth must be a multiple of width.
func addPulse(samples []int, center int, depth int, width int) []int {
	slope := depth / width
	for k := -width; k <= width; k++ {
		i := center + k
		if i < 0 || i >= len(samples) {
			continue
		}
		if k < 0 {
			samples[i] -= slope * (width + k)
		} else {
			samples[i] -= slope * (width - k)
		}
	}
	return samples
}

// muonDecay has two well separated pulses of 0.488 nC each.
func muonDecay() []int {
	samples := flat(200)
	addPulse(samples, 40, 1250, 10)
	addPulse(samples, 90, 1250, 10)
	return samples
}

// monitoredEvent puts samples on channel 1 of a three channel board.
func monitoredEvent(seq int, samples []int) testEvent {
	return testEvent{
		Seq:      seq,
		Mask:     0x07,
		Channels: [][]int{flat(len(samples)), samples, flat(len(samples))},
	}
}

type recordingSink struct {
	results []AnalysisResult
	runs    []RunSummary
	err     error
}

func (s *recordingSink) Record(result AnalysisResult) error {
	if s.err != nil {
		return s.err
	}
	s.results = append(s.results, result)
	return nil
}

func (s *recordingSink) WriteRunInfo(summary RunSummary) error {
	s.runs = append(s.runs, summary)
	return s.err
}

type recordingDiagnostics struct {
	events []int
	points int
	peaks  int
}

func (d *recordingDiagnostics) WriteWaveform(eventNumber int, waveform []WaveformPoint, peaks []PeakPoints) error {
	d.events = append(d.events, eventNumber)
	d.points += len(waveform)
	d.peaks += len(peaks)
	return nil
}
