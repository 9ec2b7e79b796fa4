package wireformat

import (
	"errors"
	"fmt"

	domainerrors "github.com/viow-dev/viow-sdk/domain/errors"
)

// ErrorDetail carries a runtime error across the boundary without losing its
// kind. Kind is one of "io", "plugin" or "not_found".
type ErrorDetail struct {
	Kind    string `msgpack:"kind"`
	Message string `msgpack:"message"`
	Name    string `msgpack:"name,omitempty"`
	Op      string `msgpack:"op,omitempty"`
	Path    string `msgpack:"path,omitempty"`
}

// Error implements the error interface for ErrorDetail.
func (e *ErrorDetail) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ToErrorDetail converts a Go error to its wire form. Errors outside the
// taxonomy are reported as plugin errors.
func ToErrorDetail(err error) *ErrorDetail {
	if err == nil {
		return nil
	}

	var ioErr *domainerrors.IOError
	if errors.As(err, &ioErr) {
		msg := ioErr.Error()
		if ioErr.Err != nil {
			msg = ioErr.Err.Error()
		}
		return &ErrorDetail{Kind: domainerrors.KindIO.String(), Message: msg, Op: ioErr.Op, Path: ioErr.Path}
	}

	var nf *domainerrors.NotFoundError
	if errors.As(err, &nf) {
		return &ErrorDetail{Kind: domainerrors.KindNotFound.String(), Message: nf.Error(), Name: nf.Name}
	}

	var pe *domainerrors.PluginError
	if errors.As(err, &pe) {
		return &ErrorDetail{Kind: domainerrors.KindPlugin.String(), Message: pe.Message}
	}

	return &ErrorDetail{Kind: domainerrors.KindPlugin.String(), Message: err.Error()}
}

// ToError rebuilds the typed error. Unknown kinds become plugin errors so
// every failure stays attributable to one kind.
func (e *ErrorDetail) ToError() error {
	if e == nil {
		return nil
	}
	kind, _ := domainerrors.ParseKind(e.Kind)
	switch kind {
	case domainerrors.KindIO:
		return &domainerrors.IOError{Op: e.Op, Path: e.Path, Err: errors.New(e.Message)}
	case domainerrors.KindNotFound:
		return domainerrors.NewNotFound(e.Name)
	case domainerrors.KindPlugin:
		return &domainerrors.PluginError{Message: e.Message}
	default:
		return domainerrors.Pluginf("unknown error kind %q: %s", e.Kind, e.Message)
	}
}
