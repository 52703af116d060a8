package decoder

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Word size in bytes. The V1720 stream is made of little endian 32 bit words.
const WordSize = 4

// ShortRead reports a record that ended before n whole words were available.
type ShortRead struct {
	Requested int
	Actual    int
}

func (e *ShortRead) Error() string {
	return fmt.Sprintf("short read: requested %d words, got %d", e.Requested, e.Actual)
}

// RecordCursor reads fixed counts of words from the underlying stream. It does
// not interpret the data.
type RecordCursor struct {
	reader io.Reader
	buffer []byte
	words  int64
}

func NewRecordCursor(reader io.Reader) *RecordCursor {
	return &RecordCursor{reader: reader}
}

// ReadWords returns the next n words. If the stream ends first it returns the
// whole words that were available together with a *ShortRead error. Any other
// read failure is returned as is.
func (c *RecordCursor) ReadWords(n int) ([]uint32, error) {
	nBytes := n * WordSize
	if cap(c.buffer) < nBytes {
		c.buffer = make([]byte, nBytes)
	}
	buffer := c.buffer[:nBytes]

	nRead, err := io.ReadFull(c.reader, buffer)
	nWords := nRead / WordSize
	words := make([]uint32, nWords)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(buffer[i*WordSize:])
	}
	c.words += int64(nWords)

	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return words, &ShortRead{Requested: n, Actual: nWords}
		}
		return words, err
	}
	return words, nil
}

// WordsRead is the number of whole words consumed so far.
func (c *RecordCursor) WordsRead() int64 {
	return c.words
}

// WordCursor walks an owned slice of words. Every sub decode takes its words
// through TakeWords so it can only see its own range.
type WordCursor struct {
	words    []uint32
	position int
}

func NewWordCursor(words []uint32) *WordCursor {
	return &WordCursor{words: words}
}

func (c *WordCursor) TakeWords(n int) ([]uint32, error) {
	if n < 0 || n > c.Remaining() {
		return nil, &ShortRead{Requested: n, Actual: c.Remaining()}
	}
	words := c.words[c.position : c.position+n : c.position+n]
	c.position += n
	return words, nil
}

// Sub returns a cursor over the next n words and advances past them.
func (c *WordCursor) Sub(n int) (*WordCursor, error) {
	words, err := c.TakeWords(n)
	if err != nil {
		return nil, err
	}
	return NewWordCursor(words), nil
}

// Seek moves to an absolute word offset inside the cursor range.
func (c *WordCursor) Seek(position int) error {
	if position < 0 || position > len(c.words) {
		return &ShortRead{Requested: position, Actual: len(c.words)}
	}
	c.position = position
	return nil
}

func (c *WordCursor) Position() int {
	return c.position
}

func (c *WordCursor) Remaining() int {
	return len(c.words) - c.position
}

func (c *WordCursor) Len() int {
	return len(c.words)
}
