package decoder

import (
	"errors"
	"fmt"
	"io"
)

// NoEventLimit disables the maximum number of events.
const NoEventLimit = -1

// EventReader decodes events from a V1720 stream strictly in order:
// header, boards, footer, and back to the next header.
type EventReader struct {
	cursor           *RecordCursor
	logger           Logger
	verbosity        int
	maxEvents        int
	decoded          int
	footerMismatches int
	event            Event
}

func NewEventReader(reader io.Reader, logger Logger, verbosity int, maxEvents int) *EventReader {
	if logger == nil {
		logger = NopLogger{}
	}
	return &EventReader{
		cursor:    NewRecordCursor(reader),
		logger:    logger,
		verbosity: verbosity,
		maxEvents: maxEvents,
	}
}

// Next decodes the following event. It returns io.EOF once the stream ends at
// a header boundary or the event limit is reached, and a *FormatError when the
// framing is broken. The returned event is reused by the next call.
func (r *EventReader) Next() (*Event, error) {
	if r.maxEvents >= 0 && r.decoded >= r.maxEvents {
		if r.verbosity > 0 {
			r.logger.Info("Max events reached", "eventReader")
		}
		return nil, io.EOF
	}

	headerWords, err := r.cursor.ReadWords(HeaderWords)
	if err != nil {
		var shortRead *ShortRead
		if errors.As(err, &shortRead) {
			if shortRead.Actual > 0 {
				message := fmt.Sprintf("Ignoring %d trailing words after event %d", shortRead.Actual, r.decoded)
				r.logger.Info(message, "eventReader")
			} else if r.verbosity > 1 {
				r.logger.Info("End of file", "eventReader")
			}
			return nil, io.EOF
		}
		return nil, fmt.Errorf("error reading event header: %w", err)
	}

	header, err := ValidateHeader(headerWords)
	if err != nil {
		return nil, err
	}
	if r.verbosity > 1 {
		message := fmt.Sprintf("Reading event #%d: boards %d, payload words %d, device word 0x%x",
			header.EventSequenceNumber, header.BoardCount, header.PayloadWords, headerWords[13])
		r.logger.Info(message, "eventReader")
	}

	payload, err := r.cursor.ReadWords(header.PayloadWords)
	if err != nil {
		var shortRead *ShortRead
		if errors.As(err, &shortRead) {
			return nil, &FormatError{
				Kind:     ShortPayload,
				Event:    header.EventSequenceNumber,
				Expected: int64(header.PayloadWords),
				Found:    int64(shortRead.Actual),
				Detail:   "header size and data in file disagree",
			}
		}
		return nil, fmt.Errorf("error reading payload of event %d: %w", header.EventSequenceNumber, err)
	}

	r.event.reset()
	r.event.Number = header.EventSequenceNumber
	r.event.Index = r.decoded
	r.event.BoardCount = header.BoardCount
	r.event.PayloadWords = header.PayloadWords
	if err := r.decodeBoards(payload, header); err != nil {
		return nil, err
	}

	footer, err := r.cursor.ReadWords(FooterWords)
	if err != nil {
		var shortRead *ShortRead
		if errors.As(err, &shortRead) {
			return nil, &FormatError{
				Kind:     ShortFooter,
				Event:    header.EventSequenceNumber,
				Expected: FooterWords,
				Found:    int64(shortRead.Actual),
			}
		}
		return nil, fmt.Errorf("error reading footer of event %d: %w", header.EventSequenceNumber, err)
	}
	r.event.FooterMismatches = append(r.event.FooterMismatches, CheckFooter(footer)...)
	if len(r.event.FooterMismatches) > 0 {
		r.footerMismatches++
		if r.verbosity > 1 {
			message := fmt.Sprintf("Footer of event %d does not match in words %v: %08x",
				header.EventSequenceNumber, r.event.FooterMismatches, footer)
			r.logger.Info(message, "eventReader")
		}
	}

	r.decoded++
	return &r.event, nil
}

// Decoded is the number of events fully decoded so far.
func (r *EventReader) Decoded() int {
	return r.decoded
}

func (r *EventReader) FooterMismatches() int {
	return r.footerMismatches
}

// WordsRead is the number of words consumed from the stream.
func (r *EventReader) WordsRead() int64 {
	return r.cursor.WordsRead()
}
