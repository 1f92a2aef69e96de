package loyalty

import (
	"encoding/json"
	"errors"
	"strings"
)

// Kind classifies a failed backend call.
type Kind int

const (
	// KindValidation means the backend answered and rejected the request with
	// a structured error message.
	KindValidation Kind = iota + 1
	// KindTransport means the request never completed or the answer could not
	// be understood.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Error describes a failed call to the loyalty backend. Error() returns only
// the human-readable message so it can be shown to the user as-is.
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "request failed"
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	var target *Error
	return errors.As(err, &target) && target.Kind == KindTransport
}

// IsValidation reports whether err was a backend rejection.
func IsValidation(err error) bool {
	var target *Error
	return errors.As(err, &target) && target.Kind == KindValidation
}

// errorMessage extracts the message from an "error" field that is either a
// plain string or an object carrying a "message".
func errorMessage(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var obj struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Message != "" {
			return obj.Message
		}
		if obj.Code != "" {
			return obj.Code
		}
	}
	return trimmed
}
