package decoder

import "fmt"

const (
	HeaderWords = 14
	FooterWords = 4

	// Header and footer bytes included in the size word
	eventOverheadBytes = 28 + 44

	// Largest payload accepted from the size word, in words
	MaxPayloadWords = 0x100000

	HeaderMagicWord uint32 = 0x17081996
	DeviceMagicWord uint32 = 0xA0EF
)

// Upper 16 bits of each footer word.
var FooterMagicWords = [FooterWords]uint32{0xA1EF, 0xA2EF, 0xA3E0, 0xA4EF}

type EventHeader struct {
	TotalDataSize       int
	EventSequenceNumber int
	BoardCount          int
	Magic1              uint32
	Magic2              uint32
	PayloadWords        int
}

// ValidateHeader interprets the 14 word event header written in front of every
// V1720 event.
func ValidateHeader(words []uint32) (EventHeader, error) {
	var header EventHeader
	if len(words) != HeaderWords {
		return header, fmt.Errorf("event header must have %d words, got %d", HeaderWords, len(words))
	}

	header.TotalDataSize = int(int32(words[0]))
	header.EventSequenceNumber = int(int32(words[3]))
	header.BoardCount = int(int32(words[5]))
	header.Magic1 = words[2]
	header.Magic2 = (words[13] >> 16) & 0xFFFF

	if header.Magic1 != HeaderMagicWord {
		return header, &FormatError{
			Kind:     HeaderMagic,
			Event:    header.EventSequenceNumber,
			Expected: int64(HeaderMagicWord),
			Found:    int64(header.Magic1),
		}
	}
	if header.Magic2 != DeviceMagicWord {
		return header, &FormatError{
			Kind:     DeviceMagic,
			Event:    header.EventSequenceNumber,
			Expected: int64(DeviceMagicWord),
			Found:    int64(header.Magic2),
		}
	}

	header.PayloadWords = (header.TotalDataSize - eventOverheadBytes) / WordSize
	if header.PayloadWords < 0 {
		return header, &FormatError{
			Kind:     PayloadSize,
			Event:    header.EventSequenceNumber,
			Expected: eventOverheadBytes,
			Found:    int64(header.TotalDataSize),
			Detail:   "size word smaller than header and footer",
		}
	}
	if header.PayloadWords > MaxPayloadWords {
		return header, &FormatError{
			Kind:     PayloadSize,
			Event:    header.EventSequenceNumber,
			Expected: MaxPayloadWords,
			Found:    int64(header.PayloadWords),
			Detail:   "payload larger than the acquisition buffer",
		}
	}
	if header.BoardCount < 0 {
		return header, &FormatError{
			Kind:   PayloadSize,
			Event:  header.EventSequenceNumber,
			Found:  int64(header.BoardCount),
			Detail: "negative board count",
		}
	}
	return header, nil
}

// CheckFooter returns the index of every footer word whose sentinel does not
// match. The footer is advisory, a mismatch never stops the decode.
func CheckFooter(words []uint32) []int {
	mismatches := make([]int, 0)
	for i, word := range words {
		if i >= FooterWords {
			break
		}
		if (word>>16)&0xFFFF != FooterMagicWords[i] {
			mismatches = append(mismatches, i)
		}
	}
	return mismatches
}
