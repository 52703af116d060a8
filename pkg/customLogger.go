package decoder

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
)

const bracketTimeFormat = "2006/01/02 15:04:05"

// BracketHandler prints "[time] [value]... message". Keys are dropped, the
// values of attributes attached with WithAttrs come before the record ones.
type BracketHandler struct {
	level    slog.Leveler
	prefixed []slog.Attr
	mu       *sync.Mutex
	out      io.Writer
}

func NewBracketHandler(out io.Writer, opts *slog.HandlerOptions) *BracketHandler {
	handler := &BracketHandler{out: out, mu: &sync.Mutex{}, level: slog.LevelInfo}
	if opts != nil && opts.Level != nil {
		handler.level = opts.Level
	}
	return handler
}

func (h *BracketHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *BracketHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.prefixed = append(append([]slog.Attr(nil), h.prefixed...), attrs...)
	return &clone
}

// Groups only qualify keys, which are never printed.
func (h *BracketHandler) WithGroup(string) slog.Handler {
	return h
}

func (h *BracketHandler) Handle(_ context.Context, record slog.Record) error {
	var line bytes.Buffer
	line.WriteByte('[')
	line.WriteString(record.Time.Format(bracketTimeFormat))
	line.WriteByte(']')

	writeValue := func(attr slog.Attr) bool {
		if attr.Equal(slog.Attr{}) {
			return true
		}
		line.WriteString(" [")
		line.WriteString(attr.Value.Resolve().String())
		line.WriteByte(']')
		return true
	}
	for _, attr := range h.prefixed {
		writeValue(attr)
	}
	record.Attrs(writeValue)

	line.WriteByte(' ')
	line.WriteString(record.Message)
	line.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(line.Bytes())
	return err
}

// SlogLogger sends info messages to InfoLog tagged with their module and
// errors to ErrorLog.
type SlogLogger struct {
	InfoLog  *slog.Logger
	ErrorLog *slog.Logger
}

// NewSlogLogger writes bracketed text to stdout and JSON errors to stderr.
func NewSlogLogger(stdout io.Writer, stderr io.Writer) SlogLogger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}
	return SlogLogger{
		InfoLog:  slog.New(NewBracketHandler(stdout, opts)),
		ErrorLog: slog.New(slog.NewJSONHandler(stderr, opts)),
	}
}

func (l SlogLogger) Info(message string, module string) {
	l.InfoLog.Info(message, "module", module)
}

func (l SlogLogger) Error(message string) {
	l.ErrorLog.Error(message)
}
