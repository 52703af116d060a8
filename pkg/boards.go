package decoder

import (
	"fmt"
	"math/bits"
)

const (
	BoardHeaderWords      = 4
	BoardCheckNibble      = 0xA
	BoardChannels         = 8
	retainedBoard         = 0
	sampleMask            = 0x0FFF
	boardWordCountMask    = 0x0FFFFFFF
	boardEventCounterMask = 0x00FFFFFF
)

type BoardHeader struct {
	CheckNibble    uint32
	ChannelMask    uint32
	EventSequence  int
	WordCount      int
	ActiveChannels int
}

func ReadBoardHeader(words []uint32) BoardHeader {
	header := BoardHeader{
		CheckNibble:   (words[0] >> 28) & 0xF,
		WordCount:     int(words[0] & boardWordCountMask),
		ChannelMask:   words[1] & 0xFF,
		EventSequence: int(words[2] & boardEventCounterMask),
	}
	header.ActiveChannels = bits.OnesCount8(uint8(header.ChannelMask))
	return header
}

// decodeBoards walks the board blocks of one payload. Every board and channel is
// consumed so the offsets stay right, only the retained channels are stored.
func (r *EventReader) decodeBoards(payload []uint32, header EventHeader) error {
	event := &r.event
	cursor := NewWordCursor(payload)
	totalWords := len(payload)
	offset := 0

	for board := 0; board < header.BoardCount; board++ {
		if err := cursor.Seek(offset); err != nil {
			return &FormatError{
				Kind:     ChannelLayout,
				Event:    header.EventSequenceNumber,
				Expected: int64(totalWords),
				Found:    int64(offset),
				Detail:   fmt.Sprintf("board %d starts beyond the payload", board),
			}
		}
		headerWords, err := cursor.TakeWords(BoardHeaderWords)
		if err != nil {
			return &FormatError{
				Kind:     ChannelLayout,
				Event:    header.EventSequenceNumber,
				Expected: BoardHeaderWords,
				Found:    int64(cursor.Remaining()),
				Detail:   fmt.Sprintf("board %d header truncated", board),
			}
		}
		boardHeader := ReadBoardHeader(headerWords)

		if boardHeader.CheckNibble != BoardCheckNibble {
			return &FormatError{
				Kind:     BoardCheck,
				Event:    header.EventSequenceNumber,
				Expected: BoardCheckNibble,
				Found:    int64(boardHeader.CheckNibble),
				Detail:   fmt.Sprintf("board %d", board),
			}
		}
		// Boards count events starting one behind the global counter
		if boardHeader.EventSequence != header.EventSequenceNumber-1 {
			return &FormatError{
				Kind:     BoardAlignment,
				Event:    header.EventSequenceNumber,
				Expected: int64(header.EventSequenceNumber - 1),
				Found:    int64(boardHeader.EventSequence),
				Detail:   fmt.Sprintf("board %d", board),
			}
		}
		if boardHeader.ActiveChannels == 0 || (totalWords-BoardHeaderWords)%boardHeader.ActiveChannels != 0 {
			return &FormatError{
				Kind:     ChannelLayout,
				Event:    header.EventSequenceNumber,
				Expected: int64(boardHeader.ActiveChannels),
				Found:    int64(totalWords - BoardHeaderWords),
				Detail:   fmt.Sprintf("board %d: channel mask 0x%02x does not divide the payload", board, boardHeader.ChannelMask),
			}
		}
		wordsPerChannel := (totalWords - BoardHeaderWords) / boardHeader.ActiveChannels

		if r.verbosity > 2 {
			message := fmt.Sprintf("Board %d: words %d, channel mask 0x%02x, channels %d, words per channel %d",
				board, boardHeader.WordCount, boardHeader.ChannelMask, boardHeader.ActiveChannels, wordsPerChannel)
			r.logger.Info(message, "boards")
		}

		for channel := 0; channel < boardHeader.ActiveChannels; channel++ {
			span, err := cursor.TakeWords(wordsPerChannel)
			if err != nil {
				return &FormatError{
					Kind:     ChannelLayout,
					Event:    header.EventSequenceNumber,
					Expected: int64(wordsPerChannel),
					Found:    int64(cursor.Remaining()),
					Detail:   fmt.Sprintf("board %d channel %d truncated", board, channel),
				}
			}
			if board == retainedBoard && channel < MonitoredChannels {
				waveform := &event.Waveforms[channel]
				waveform.Board = board
				waveform.Channel = channel
				waveform.Samples = unpackSamples(waveform.Samples, span)
			}
		}
		offset += boardHeader.WordCount
	}
	return nil
}

// Each word carries two 12 bit samples, bits 0-11 first and then bits 16-27.
func unpackSamples(samples []int, words []uint32) []int {
	for _, word := range words {
		samples = append(samples, int(word&sampleMask), int((word>>16)&sampleMask))
	}
	return samples
}
