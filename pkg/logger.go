package decoder

type Logger interface {
	Info(message string, module string)
	Error(string)
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Info(message string, module string) {}
func (NopLogger) Error(string)                       {}
