// Package errors provides the error taxonomy shared across the plugin boundary.
//
// Runtime failures of a loader fall into exactly one of three kinds: an I/O
// failure, a plugin-reported failure, or a missing signal. Load-time failures
// of the discovery layer are reported separately as *LibraryError.
// All error types support error unwrapping via errors.As() and errors.Is().
package errors

import (
	stdErrors "errors"
	"fmt"
)

// Kind identifies which of the closed set of runtime failures an error belongs to.
type Kind uint8

const (
	// KindIO is an I/O layer failure.
	KindIO Kind = iota + 1
	// KindPlugin is any loader-internal failure not classifiable as I/O.
	KindPlugin
	// KindNotFound is a failed signal lookup.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindPlugin:
		return "plugin"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "io":
		return KindIO, true
	case "plugin":
		return KindPlugin, true
	case "not_found":
		return KindNotFound, true
	default:
		return 0, false
	}
}

// Kinded is implemented by every error that belongs to the runtime taxonomy.
type Kinded interface {
	error
	Kind() Kind
}

// KindOf reports the kind of the first error in err's chain that carries one.
func KindOf(err error) (Kind, bool) {
	var k Kinded
	if stdErrors.As(err, &k) {
		return k.Kind(), true
	}
	return 0, false
}

// IOError wraps an underlying I/O failure.
type IOError struct {
	Err  error
	Op   string
	Path string
}

// NewIOError wraps err as an I/O failure of op on path.
func NewIOError(op, path string, err error) *IOError {
	return &IOError{Op: op, Path: path, Err: err}
}

func (e *IOError) Error() string {
	switch {
	case e.Op != "" && e.Path != "":
		return fmt.Sprintf("IO error: %s %s: %v", e.Op, e.Path, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("IO error: %v", e.Err)
	default:
		return "IO error"
	}
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Kind implements Kinded.
func (e *IOError) Kind() Kind { return KindIO }

// PluginError is a loader-reported failure with a free-text diagnostic.
type PluginError struct {
	Message string
}

// Pluginf formats a plugin failure message.
func Pluginf(format string, args ...any) *PluginError {
	return &PluginError{Message: fmt.Sprintf(format, args...)}
}

func (e *PluginError) Error() string {
	return "Error in plugin: " + e.Message
}

// Kind implements Kinded.
func (e *PluginError) Kind() Kind { return KindPlugin }

// NotFoundError reports that a referenced signal name has no match.
type NotFoundError struct {
	Name string
}

// NewNotFound returns a NotFoundError for name.
func NewNotFound(name string) *NotFoundError {
	return &NotFoundError{Name: name}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Signal not found: '%s'", e.Name)
}

// Kind implements Kinded.
func (e *NotFoundError) Kind() Kind { return KindNotFound }

// ErrInvalidState marks calls made out of the Opened -> Described -> Ready order.
var ErrInvalidState = stdErrors.New("invalid session state")

// StateError reports a session operation invoked in the wrong state.
type StateError struct {
	Op    string
	State string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("Error in plugin: %s called in state %s", e.Op, e.State)
}

func (e *StateError) Is(target error) bool {
	return target == ErrInvalidState
}

// Kind implements Kinded.
func (e *StateError) Kind() Kind { return KindPlugin }

// RangeError reports an out-of-range signal index or cycle on a frame store.
type RangeError struct {
	What  string // "signal" or "cycle"
	Index uint64
	Lo    uint64
	Hi    uint64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s %d out of range [%d, %d)", e.What, e.Index, e.Lo, e.Hi)
}

// Kind implements Kinded.
func (e *RangeError) Kind() Kind { return KindPlugin }

// WidthError reports a value whose length differs from the signal width.
type WidthError struct {
	Signal int
	Want   int
	Got    int
}

func (e *WidthError) Error() string {
	return fmt.Sprintf("signal %d: value has %d bits, want %d", e.Signal, e.Got, e.Want)
}

// Kind implements Kinded.
func (e *WidthError) Kind() Kind { return KindPlugin }
