package decoder

import (
	"bytes"
	"errors"
	"io"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func formatErrorOf(t *testing.T, err error) *FormatError {
	t.Helper()
	var formatErr *FormatError
	require.Truef(t, errors.As(err, &formatErr), "expected a FormatError, got %v", err)
	return formatErr
}

func TestReaderDecodesEvent(t *testing.T) {
	event := testEvent{
		Seq:      7,
		Mask:     0x07,
		Channels: [][]int{{1, 2, 3, 4}, {10, 20, 30, 40}, {4095, 0, 2110, 2111}},
	}
	reader := NewEventReader(streamOf(event), nil, 0, NoEventLimit)

	decoded, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, 7, decoded.Number)
	assert.Equal(t, 0, decoded.Index)
	assert.Equal(t, 1, decoded.BoardCount)
	assert.Equal(t, 4+3*2, decoded.PayloadWords)
	assert.Empty(t, decoded.FooterMismatches)
	for ch, samples := range event.Channels {
		got, err := decoded.Channel(ch)
		require.NoError(t, err)
		assert.Equal(t, samples, got, "channel %d", ch)
		assert.Equal(t, 0, decoded.Waveforms[ch].Board)
		assert.Equal(t, ch, decoded.Waveforms[ch].Channel)
	}
	assert.Equal(t, int64(HeaderWords+decoded.PayloadWords+FooterWords), reader.WordsRead())

	_, err = reader.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 1, reader.Decoded())
}

func TestReaderKeepsOnlyFirstThreeChannels(t *testing.T) {
	channels := make([][]int, BoardChannels)
	for ch := range channels {
		channels[ch] = []int{ch, ch + 100}
	}
	reader := NewEventReader(streamOf(testEvent{Seq: 1, Mask: 0xFF, Channels: channels}), nil, 0, NoEventLimit)

	decoded, err := reader.Next()
	require.NoError(t, err)
	for ch := 0; ch < MonitoredChannels; ch++ {
		assert.Equal(t, []int{ch, ch + 100}, decoded.Waveforms[ch].Samples)
	}
	_, err = decoded.Channel(3)
	assert.Error(t, err)
}

func TestReaderReusesEventBuffers(t *testing.T) {
	first := monitoredEvent(1, []int{1, 2, 3, 4})
	second := monitoredEvent(2, []int{5, 6, 7, 8})
	reader := NewEventReader(streamOf(first, second), nil, 0, NoEventLimit)

	event, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, event.Waveforms[1].Samples)

	event, err = reader.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, event.Index)
	assert.Equal(t, []int{5, 6, 7, 8}, event.Waveforms[1].Samples)
}

func TestReaderFormatErrors(t *testing.T) {
	good := monitoredEvent(3, []int{1, 2})

	tests := []struct {
		name    string
		corrupt func(words []uint32) []uint32
		kind    FormatErrorKind
	}{
		{"header magic", func(w []uint32) []uint32 { w[2] = 0xDEADBEEF; return w }, HeaderMagic},
		{"device magic", func(w []uint32) []uint32 { w[13] = 0xA0EE0000; return w }, DeviceMagic},
		{"size below overhead", func(w []uint32) []uint32 { w[0] = 60; return w }, PayloadSize},
		{"board check nibble", func(w []uint32) []uint32 { w[HeaderWords] = 0xB<<28 | (w[HeaderWords] & 0xFFFFFFF); return w }, BoardCheck},
		{"board alignment", func(w []uint32) []uint32 { w[HeaderWords+2] = 3; return w }, BoardAlignment},
		{"empty channel mask", func(w []uint32) []uint32 { w[HeaderWords+1] = 0; return w }, ChannelLayout},
		{"mask does not divide payload", func(w []uint32) []uint32 { w[HeaderWords+1] = 0x03; return w }, ChannelLayout},
		{"payload short read", func(w []uint32) []uint32 { return w[:HeaderWords+3] }, ShortPayload},
		{"footer short read", func(w []uint32) []uint32 { return w[:len(w)-2] }, ShortFooter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			words := tt.corrupt(good.words())
			reader := NewEventReader(bytes.NewReader(encodeWords(words)), nil, 0, NoEventLimit)

			event, err := reader.Next()
			assert.Nil(t, event)
			formatErr := formatErrorOf(t, err)
			assert.Equal(t, tt.kind, formatErr.Kind)
			assert.Equal(t, 3, formatErr.Event)
			assert.True(t, IsFormatError(err))
			assert.Equal(t, 0, reader.Decoded())
		})
	}
}

func TestReaderBoardAlignmentReportsBothCounters(t *testing.T) {
	words := monitoredEvent(10, []int{1, 2}).words()
	words[HeaderWords+2] = 4
	_, err := NewEventReader(bytes.NewReader(encodeWords(words)), nil, 0, NoEventLimit).Next()

	formatErr := formatErrorOf(t, err)
	assert.Equal(t, BoardAlignment, formatErr.Kind)
	assert.Equal(t, int64(9), formatErr.Expected)
	assert.Equal(t, int64(4), formatErr.Found)
}

func TestReaderFooterMismatchIsAdvisory(t *testing.T) {
	samples := []int{11, 12, 13, 14}
	bad := monitoredEvent(1, samples)
	bad.Footer = []uint32{0xA1EF << 16, 0x12345678, 0xA3E0 << 16, 0}
	reader := NewEventReader(streamOf(bad, monitoredEvent(2, samples)), nil, 2, NoEventLimit)

	event, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, event.FooterMismatches)
	assert.Equal(t, samples, event.Waveforms[1].Samples)

	event, err = reader.Next()
	require.NoError(t, err)
	assert.Empty(t, event.FooterMismatches)
	assert.Equal(t, 1, reader.FooterMismatches())
	assert.Equal(t, 2, reader.Decoded())
}

func TestReaderPartialHeaderEndsStream(t *testing.T) {
	words := monitoredEvent(1, []int{1, 2}).words()
	words = append(words, HeaderMagicWord, 1, 2, 3, 4)
	reader := NewEventReader(bytes.NewReader(encodeWords(words)), nil, 0, NoEventLimit)

	_, err := reader.Next()
	require.NoError(t, err)
	_, err = reader.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.False(t, IsFormatError(err))
	assert.Equal(t, 1, reader.Decoded())
}

func TestReaderRejectsOversizedPayload(t *testing.T) {
	words := monitoredEvent(5, nil).header(0)
	words[0] = 0x7FFFFFF0
	reader := NewEventReader(bytes.NewReader(encodeWords(words)), nil, 0, NoEventLimit)

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	_, err := reader.Next()
	runtime.ReadMemStats(&after)

	formatErr := formatErrorOf(t, err)
	assert.Equal(t, PayloadSize, formatErr.Kind)
	assert.Equal(t, 5, formatErr.Event)
	assert.Equal(t, int64(HeaderWords), reader.WordsRead(), "no payload read is attempted")
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(1<<20))
}

func TestReaderMultiBoardEventAborts(t *testing.T) {
	board := monitoredEvent(5, []int{1, 2})
	payload := append(board.payload(), board.payload()...)
	words := board.header(len(payload))
	words[5] = 2
	words = append(append(words, payload...), goodFooter...)

	_, err := NewEventReader(bytes.NewReader(encodeWords(words)), nil, 0, NoEventLimit).Next()
	formatErr := formatErrorOf(t, err)
	assert.Equal(t, ChannelLayout, formatErr.Kind)
	assert.Equal(t, 5, formatErr.Event)
}

func TestReaderEmptyStream(t *testing.T) {
	_, err := NewEventReader(bytes.NewReader(nil), nil, 0, NoEventLimit).Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderMaxEvents(t *testing.T) {
	events := []testEvent{monitoredEvent(1, []int{1, 2}), monitoredEvent(2, []int{1, 2}), monitoredEvent(3, []int{1, 2})}

	reader := NewEventReader(streamOf(events...), nil, 0, 2)
	for i := 0; i < 2; i++ {
		_, err := reader.Next()
		require.NoError(t, err)
	}
	_, err := reader.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 2, reader.Decoded())

	reader = NewEventReader(streamOf(events...), nil, 0, 0)
	_, err = reader.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, int64(0), reader.WordsRead())
}

func TestReaderRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		nEvents := rapid.IntRange(1, 5).Draw(t, "nEvents")
		firstSeq := rapid.IntRange(1, 1<<20).Draw(t, "firstSeq")

		events := make([]testEvent, nEvents)
		var totalWords int64
		for i := range events {
			mask := uint32(rapid.IntRange(1, 0xFF).Draw(t, "mask"))
			nSamples := 2 * rapid.IntRange(1, 20).Draw(t, "wordsPerChannel")
			channels := make([][]int, popcount(mask))
			for ch := range channels {
				channels[ch] = rapid.SliceOfN(rapid.IntRange(0, 4095), nSamples, nSamples).Draw(t, "samples")
			}
			events[i] = testEvent{Seq: firstSeq + i, Mask: mask, Channels: channels}
			totalWords += int64(len(events[i].words()))
		}

		reader := NewEventReader(streamOf(events...), nil, 0, NoEventLimit)
		for i, want := range events {
			event, err := reader.Next()
			if err != nil {
				t.Fatalf("event %d: %v", i, err)
			}
			assert.Equal(t, want.Seq, event.Number)
			assert.Equal(t, i, event.Index)
			for ch := 0; ch < MonitoredChannels; ch++ {
				if ch < len(want.Channels) {
					assert.Equal(t, want.Channels[ch], event.Waveforms[ch].Samples)
				} else {
					assert.Empty(t, event.Waveforms[ch].Samples)
				}
			}
		}
		_, err := reader.Next()
		assert.ErrorIs(t, err, io.EOF)
		assert.Equal(t, totalWords, reader.WordsRead())
	})
}

func popcount(mask uint32) int {
	n := 0
	for ; mask != 0; mask &= mask - 1 {
		n++
	}
	return n
}
