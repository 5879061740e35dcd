package asr

import (
	"errors"
	"fmt"
)

// Kind classifies recognition failures.
type Kind int

const (
	// KindNetwork covers dial, handshake, transport and timeout failures.
	KindNetwork Kind = iota + 1
	// KindEncoding covers local serialization and empty input.
	KindEncoding
	// KindAPI covers errors reported by the remote service.
	KindAPI
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindEncoding:
		return "encoding"
	case KindAPI:
		return "api"
	default:
		return "unknown"
	}
}

// Error is a typed recognition failure. Use errors.Is with ErrNetwork,
// ErrEncoding or ErrAPI to match by kind.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// Kind sentinels for errors.Is.
var (
	ErrNetwork  = &Error{Kind: KindNetwork}
	ErrEncoding = &Error{Kind: KindEncoding}
	ErrAPI      = &Error{Kind: KindAPI}
)

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s error: %s", e.Kind, e.Msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a kind sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

func networkError(msg string, err error) error {
	return &Error{Kind: KindNetwork, Msg: msg, Err: err}
}

func encodingError(msg string, err error) error {
	return &Error{Kind: KindEncoding, Msg: msg, Err: err}
}

func apiError(msg string) error {
	return &Error{Kind: KindAPI, Msg: msg}
}

// KindOf returns the kind of err, or 0 when err is not a recognition error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
