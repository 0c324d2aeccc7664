package react

import (
	"strings"

	"github.com/RAIL-Suite/RAIL-sub001/src/protocol"
)

// ErrorKind is the heuristic class of a failed observation.
type ErrorKind string

const (
	ErrorNone               ErrorKind = ""
	ErrorTimeout            ErrorKind = "Timeout"
	ErrorPermission         ErrorKind = "Permission"
	ErrorNotFound           ErrorKind = "NotFound"
	ErrorServiceUnavailable ErrorKind = "ServiceUnavailable"
	ErrorInvalidParameter   ErrorKind = "InvalidParameter"
	ErrorUnknown            ErrorKind = "Unknown"
)

// Keyword buckets, checked in order. The first bucket with a match wins.
var classifierRules = []struct {
	kind     ErrorKind
	keywords []string
}{
	{ErrorTimeout, []string{"timeout", "timed out", "deadline exceeded", "connectiontimeout"}},
	{ErrorPermission, []string{"permission", "denied", "unauthorized", "forbidden"}},
	{ErrorNotFound, []string{"not found", "does not exist", "no client supports", "unknown method",
		"has no method", "methodnotfound", "instancenotfound", "nocapableclient"}},
	{ErrorServiceUnavailable, []string{"unavailable", "connection refused", "connection broken",
		"connection reset", "connectionbroken", "closed by peer"}},
	{ErrorInvalidParameter, []string{"invalid", "argument", "parameter", "missing required", "cannot convert"}},
}

var hints = map[ErrorKind]string{
	ErrorTimeout: "The call took too long. Retry once with a narrower request, " +
		"or FINISH with what you have so far.",
	ErrorPermission: "The operation was refused. Do not repeat it; " +
		"choose another approach or FINISH and explain what is not allowed.",
	ErrorNotFound: "That tool or item does not exist. Use only tool names from the list " +
		"and double-check identifiers before calling again.",
	ErrorServiceUnavailable: "The process serving this tool is unreachable. You may retry once; " +
		"if it fails again, FINISH and report the outage.",
	ErrorInvalidParameter: "The arguments did not match the tool signature. Check parameter names, " +
		"required parameters and value types against the tool list, then call it again.",
	ErrorUnknown: "The call failed for an unexpected reason. Read the error, adjust the call, " +
		"or FINISH if you cannot make progress.",
}

// IsError reports whether an observation describes a failure.
func IsError(observation string) bool {
	s := strings.TrimSpace(observation)
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "error") || strings.HasPrefix(lower, "exception") {
		return true
	}
	return protocol.KindFromMessage(s) != protocol.KindUnknown
}

// Classify buckets an error observation by keyword.
func Classify(observation string) ErrorKind {
	lower := strings.ToLower(observation)
	for _, rule := range classifierRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.kind
			}
		}
	}
	return ErrorUnknown
}

// Hint returns the correction appended after a failed observation.
func Hint(kind ErrorKind) string {
	if h, ok := hints[kind]; ok {
		return h
	}
	return hints[ErrorUnknown]
}
