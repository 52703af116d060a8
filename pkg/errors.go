package decoder

import (
	"errors"
	"fmt"
)

// ErrOpenFile represents an error when opening a file.
type ErrOpenFile struct {
	Filename string
	Err      error
}

func (e *ErrOpenFile) Error() string {
	return fmt.Sprintf("error opening file %q: %v", e.Filename, e.Err)
}

func (e *ErrOpenFile) Unwrap() error { return e.Err }

// ErrCreateGroup represents an error when creating a group.
type ErrCreateGroup struct {
	GroupName string
	Err       error
}

func (e *ErrCreateGroup) Error() string {
	return fmt.Sprintf("error creating group %q: %v", e.GroupName, e.Err)
}

func (e *ErrCreateGroup) Unwrap() error { return e.Err }

// ErrCreateTable represents an error when creating a table.
type ErrCreateTable struct {
	TableName string
	Err       error
}

func (e *ErrCreateTable) Error() string {
	return fmt.Sprintf("error creating table %q: %v", e.TableName, e.Err)
}

func (e *ErrCreateTable) Unwrap() error { return e.Err }

type FormatErrorKind int

const (
	HeaderMagic FormatErrorKind = iota
	DeviceMagic
	PayloadSize
	ShortPayload
	BoardCheck
	BoardAlignment
	ChannelLayout
	ShortFooter
)

func (k FormatErrorKind) String() string {
	switch k {
	case HeaderMagic:
		return "header magic word"
	case DeviceMagic:
		return "V1720 magic word"
	case PayloadSize:
		return "payload size"
	case ShortPayload:
		return "payload short read"
	case BoardCheck:
		return "board check nibble"
	case BoardAlignment:
		return "board event alignment"
	case ChannelLayout:
		return "channel layout"
	case ShortFooter:
		return "footer short read"
	default:
		return "unknown"
	}
}

// FormatError means the stream offset can no longer be trusted. Nothing after
// it can be located, so the whole run has to stop.
type FormatError struct {
	Kind     FormatErrorKind
	Event    int
	Expected int64
	Found    int64
	Detail   string
}

func (e *FormatError) Error() string {
	message := fmt.Sprintf("format error in event %d: %v: expected %d (0x%x), found %d (0x%x)",
		e.Event, e.Kind, e.Expected, e.Expected, e.Found, e.Found)
	if e.Detail != "" {
		message += " (" + e.Detail + ")"
	}
	return message
}

func IsFormatError(err error) bool {
	var formatErr *FormatError
	return errors.As(err, &formatErr)
}
