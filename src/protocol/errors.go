package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure anywhere between the reasoning loop and a native
// method. Kinds travel on the wire by name.
type Kind string

const (
	KindUnknown              Kind = "Unknown"
	KindInvalidCommand       Kind = "InvalidCommand"
	KindInstanceNotFound     Kind = "InstanceNotFound"
	KindMethodNotFound       Kind = "MethodNotFound"
	KindArgumentError        Kind = "ArgumentError"
	KindInvocationError      Kind = "InvocationError"
	KindConnectionTimeout    Kind = "ConnectionTimeout"
	KindConnectionBroken     Kind = "ConnectionBroken"
	KindNoCapableClient      Kind = "NoCapableClient"
	KindProtocolParseError   Kind = "ProtocolParseError"
	KindReasoningFormatError Kind = "ReasoningFormatError"
)

// Sentinels for errors.Is. An *Error matches the sentinel of its Kind.
var (
	ErrInvalidCommand       = &Error{Kind: KindInvalidCommand}
	ErrInstanceNotFound     = &Error{Kind: KindInstanceNotFound}
	ErrMethodNotFound       = &Error{Kind: KindMethodNotFound}
	ErrArgumentError        = &Error{Kind: KindArgumentError}
	ErrInvocationError      = &Error{Kind: KindInvocationError}
	ErrConnectionTimeout    = &Error{Kind: KindConnectionTimeout}
	ErrConnectionBroken     = &Error{Kind: KindConnectionBroken}
	ErrNoCapableClient      = &Error{Kind: KindNoCapableClient}
	ErrProtocolParseError   = &Error{Kind: KindProtocolParseError}
	ErrReasoningFormatError = &Error{Kind: KindReasoningFormatError}
)

var knownKinds = []Kind{
	KindInvalidCommand,
	KindInstanceNotFound,
	KindMethodNotFound,
	KindArgumentError,
	KindInvocationError,
	KindConnectionTimeout,
	KindConnectionBroken,
	KindNoCapableClient,
	KindProtocolParseError,
	KindReasoningFormatError,
}

// Error is the typed failure returned by every dispatch, transport and broker
// call site.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Errorf builds an *Error of the given kind.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind around cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if msg == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// KindOf returns the Kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ParseKind maps a wire name back to a Kind. Unrecognised names yield KindUnknown.
func ParseKind(name string) Kind {
	for _, k := range knownKinds {
		if strings.EqualFold(string(k), name) {
			return k
		}
	}
	return KindUnknown
}

// KindFromMessage recovers a kind from a "<Kind>: message" string produced by
// Error.Error on the far side of a process boundary.
func KindFromMessage(msg string) Kind {
	head, _, ok := strings.Cut(msg, ":")
	if !ok {
		return KindUnknown
	}
	return ParseKind(strings.TrimSpace(head))
}
