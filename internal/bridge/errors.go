package bridge

import (
	"errors"
	"fmt"
)

var (
	ErrActionNotFound       = errors.New("native function not found")
	ErrMissingArgument      = errors.New("missing argument")
	ErrTypeMismatch         = errors.New("type mismatch")
	ErrNativeCall           = errors.New("cannot dispatch native call")
	ErrHandlerNotFound      = errors.New("no native handler registered")
	ErrStreamingUnsupported = errors.New("handler does not support port connection")
	ErrSessionBusy          = errors.New("is listening")
)

// Error codes carried on the wire.
const (
	CodeActionNotFound       = "ActionNotFound"
	CodeMissingArgument      = "MissingArgument"
	CodeTypeMismatch         = "TypeMismatch"
	CodeNativeCall           = "NativeCall"
	CodeHandlerNotFound      = "HandlerNotFound"
	CodeStreamingUnsupported = "StreamingUnsupported"
	CodeSessionBusy          = "SessionBusy"
)

// ArgumentError reports a payload that cannot satisfy a parameter.
type ArgumentError struct {
	Param string
	Index int
	Err   error
}

func (e *ArgumentError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("argument %q (#%d): %v", e.Param, e.Index, e.Err)
	}
	return fmt.Sprintf("argument #%d: %v", e.Index, e.Err)
}

func (e *ArgumentError) Unwrap() error { return e.Err }

// NativeCallError wraps every failure raised while resolving, binding or
// invoking an action. The cause stays reachable through errors.Is/As.
type NativeCallError struct {
	Channel string
	Action  string
	Cause   error
}

func (e *NativeCallError) Error() string {
	if e.Channel != "" {
		return fmt.Sprintf("native call %s.%s failed: %v", e.Channel, e.Action, e.Cause)
	}
	return fmt.Sprintf("native call %s failed: %v", e.Action, e.Cause)
}

func (e *NativeCallError) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, ErrNativeCall) match any NativeCallError.
func (e *NativeCallError) Is(target error) bool { return target == ErrNativeCall }

// Code maps an error onto its wire code, most specific first.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrActionNotFound):
		return CodeActionNotFound
	case errors.Is(err, ErrMissingArgument):
		return CodeMissingArgument
	case errors.Is(err, ErrTypeMismatch):
		return CodeTypeMismatch
	case errors.Is(err, ErrHandlerNotFound):
		return CodeHandlerNotFound
	case errors.Is(err, ErrStreamingUnsupported):
		return CodeStreamingUnsupported
	case errors.Is(err, ErrSessionBusy):
		return CodeSessionBusy
	default:
		return CodeNativeCall
	}
}

func wrapNative(channel, action string, err error) error {
	var nce *NativeCallError
	if errors.As(err, &nce) {
		if nce.Channel == "" {
			nce.Channel = channel
		}
		return err
	}
	return &NativeCallError{Channel: channel, Action: action, Cause: err}
}
