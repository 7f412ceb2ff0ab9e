package msapi

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotLoggedIn    = errors.New("please log in")
	ErrSessionExpired = errors.New("session does not work anymore, please log in")
)

// RequestError is returned when a call to the management system fails:
// no session, a transport error or a non-2xx status.
type RequestError struct {
	Method  string
	Path    string
	Status  int
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", e.Method, e.Path)
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *RequestError) Unwrap() error { return e.Err }

// FormatError is returned when a response was received but does not have
// the expected shape.
type FormatError struct {
	Context string
	Missing []string
	Detail  string
}

func (e *FormatError) Error() string {
	switch {
	case len(e.Missing) > 0:
		return fmt.Sprintf("%s: missing expected keys: %s", e.Context, strings.Join(e.Missing, ", "))
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Context, e.Detail)
	default:
		return e.Context + ": unexpected data format"
	}
}

func Formatf(context, format string, args ...any) *FormatError {
	return &FormatError{Context: context, Detail: fmt.Sprintf(format, args...)}
}

// RequireKeys fails with a FormatError listing every key absent from m.
func RequireKeys[V any](context string, m map[string]V, keys ...string) error {
	var missing []string
	for _, k := range keys {
		if _, ok := m[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return &FormatError{Context: context, Missing: missing}
	}
	return nil
}

// ActionError is returned when the management system, or the client itself,
// refuses an operation whose inputs were well formed.
type ActionError struct {
	Op  string
	Msg string
}

func (e *ActionError) Error() string {
	if e.Op == "" {
		return e.Msg
	}
	return e.Op + ": " + e.Msg
}

func Actionf(op, format string, args ...any) *ActionError {
	return &ActionError{Op: op, Msg: fmt.Sprintf(format, args...)}
}
