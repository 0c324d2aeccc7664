// Package protocol defines the framed JSON wire format spoken between the
// broker, provider processes and callers: envelopes, endpoints, the 4-byte
// little-endian length prefix and the error taxonomy.
package protocol

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/RAIL-Suite/RAIL-sub001/src/json"
	"github.com/RAIL-Suite/RAIL-sub001/src/manifest"
)

// MessageType discriminates request envelopes.
type MessageType string

const (
	TypeExecute    MessageType = "EXECUTE"
	TypeRegister   MessageType = "REGISTER"
	TypeUnregister MessageType = "UNREGISTER"
	TypeList       MessageType = "LIST"
	TypePing       MessageType = "PING"
)

// Response statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Request is the outbound wire unit.
type Request struct {
	Type       MessageType        `json:"type"`
	RequestID  string             `json:"requestId,omitempty"`
	Method     string             `json:"method,omitempty"`
	Class      string             `json:"class,omitempty"`
	Args       json.RawMessage    `json:"args,omitempty"`
	InstanceID string             `json:"instanceId,omitempty"`
	Manifest   *manifest.Manifest `json:"manifest,omitempty"`
	Endpoint   *Endpoint          `json:"endpoint,omitempty"`
}

// Response is the inbound wire unit. Success carries Result; failure carries
// Status "error" with Message and, when known, Kind. Peers that only send a
// bare "message" or "error" field are understood too.
type Response struct {
	RequestID  string          `json:"requestId,omitempty"`
	Status     string          `json:"status,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Message    string          `json:"message,omitempty"`
	Kind       string          `json:"kind,omitempty"`
	Error      string          `json:"error,omitempty"`
	InstanceID string          `json:"instanceId,omitempty"`
}

// NewRequestID returns a fresh correlation id.
func NewRequestID() string {
	return uuid.NewString()
}

// NewExecute builds an EXECUTE request. args may be a map (named), a slice
// (positional), raw JSON or nil.
func NewExecute(method, class string, args any) (*Request, error) {
	raw, err := encodeArgs(args)
	if err != nil {
		return nil, err
	}
	return &Request{
		Type:      TypeExecute,
		RequestID: NewRequestID(),
		Method:    method,
		Class:     class,
		Args:      raw,
	}, nil
}

func encodeArgs(args any) (json.RawMessage, error) {
	switch a := args.(type) {
	case nil:
		return json.RawMessage(`{}`), nil
	case json.RawMessage:
		if len(a) == 0 {
			return json.RawMessage(`{}`), nil
		}
		return a, nil
	case []byte:
		if len(a) == 0 {
			return json.RawMessage(`{}`), nil
		}
		return json.RawMessage(a), nil
	default:
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, Wrap(KindArgumentError, err, "arguments are not JSON encodable")
		}
		return raw, nil
	}
}

// ResultResponse wraps a result value for requestID.
func ResultResponse(requestID string, result any) *Response {
	raw, err := json.Marshal(result)
	if err != nil {
		return ErrorResponse(requestID, Wrap(KindInvocationError, err, "result is not JSON encodable"))
	}
	return &Response{RequestID: requestID, Result: raw}
}

// RawResultResponse wraps an already-encoded result.
func RawResultResponse(requestID string, raw json.RawMessage) *Response {
	if len(raw) == 0 {
		raw = json.RawMessage(`null`)
	}
	return &Response{RequestID: requestID, Result: raw}
}

// ErrorResponse converts err into an error envelope.
func ErrorResponse(requestID string, err error) *Response {
	resp := &Response{RequestID: requestID, Status: StatusError}
	if e, ok := err.(*Error); ok {
		resp.Kind = string(e.Kind)
		resp.Message = strings.TrimPrefix(e.Error(), string(e.Kind)+": ")
		return resp
	}
	kind := KindOf(err)
	if kind != KindUnknown {
		resp.Kind = string(kind)
	}
	resp.Message = err.Error()
	return resp
}

// Failed reports whether the response describes an error.
func (r *Response) Failed() bool {
	if r.Status == StatusError || r.Error != "" {
		return true
	}
	return r.Message != "" && len(r.Result) == 0
}

// Err rebuilds the typed error carried by a failed response, or nil.
func (r *Response) Err() error {
	if !r.Failed() {
		return nil
	}
	msg := r.Message
	if msg == "" {
		msg = r.Error
	}
	if msg == "" {
		msg = "remote call failed"
	}
	kind := ParseKind(r.Kind)
	if kind == KindUnknown {
		if k := KindFromMessage(msg); k != KindUnknown {
			kind = k
			msg = strings.TrimSpace(strings.TrimPrefix(msg, string(k)+":"))
		} else {
			kind = KindInvocationError
		}
	}
	return &Error{Kind: kind, Message: msg}
}

// Decode unmarshals the result into v.
func (r *Response) Decode(v any) error {
	if err := r.Err(); err != nil {
		return err
	}
	if len(r.Result) == 0 {
		return Errorf(KindProtocolParseError, "response has no result")
	}
	if err := json.Unmarshal(r.Result, v); err != nil {
		return Wrap(KindProtocolParseError, err, "decode result")
	}
	return nil
}

// Validate checks the fields each request type requires.
func (r *Request) Validate() error {
	switch r.Type {
	case TypeExecute:
		if strings.TrimSpace(r.Method) == "" {
			return Errorf(KindInvalidCommand, "EXECUTE requires a method")
		}
	case TypeRegister:
		if r.Manifest == nil {
			return Errorf(KindInvalidCommand, "REGISTER requires a manifest")
		}
		if r.Endpoint == nil {
			return Errorf(KindInvalidCommand, "REGISTER requires an endpoint")
		}
		if err := r.Endpoint.Validate(); err != nil {
			return Wrap(KindInvalidCommand, err, "REGISTER endpoint")
		}
	case TypeUnregister, TypeList, TypePing:
	default:
		return Errorf(KindInvalidCommand, "unknown message type %q", r.Type)
	}
	return nil
}

func (r *Request) String() string {
	if r.Type == TypeExecute {
		return fmt.Sprintf("%s %s (%s)", r.Type, r.Method, r.RequestID)
	}
	return fmt.Sprintf("%s (%s)", r.Type, r.RequestID)
}
