package errors

import "fmt"

// LoadReason enumerates why a library could not be loaded.
type LoadReason uint8

const (
	// FileNotFound means no library file exists at the expected location.
	FileNotFound LoadReason = iota + 1
	// SymbolNotFound means a required export or the layout header is missing.
	SymbolNotFound
	// IncompatibleVersion means the declared version is outside the host's range.
	IncompatibleVersion
	// LayoutMismatch means a descriptor declares fewer fields than the host requires.
	LayoutMismatch
	// InvalidHeader means the layout header could not be decoded or validated.
	InvalidHeader
	// Instantiate means compiling or instantiating the module failed.
	Instantiate
)

func (r LoadReason) String() string {
	switch r {
	case FileNotFound:
		return "file not found"
	case SymbolNotFound:
		return "symbol not found"
	case IncompatibleVersion:
		return "version mismatch"
	case LayoutMismatch:
		return "layout mismatch"
	case InvalidHeader:
		return "invalid header"
	case Instantiate:
		return "instantiate failed"
	default:
		return "unknown"
	}
}

// LibraryError is a discovery-time failure. It is deliberately not a Kinded
// error: a failed load never yields a usable plugin.
type LibraryError struct {
	Err    error
	Path   string
	Detail string
	Reason LoadReason
}

func (e *LibraryError) Error() string {
	msg := fmt.Sprintf("load %s: %s", e.Path, e.Reason)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LibraryError) Unwrap() error {
	return e.Err
}

// Is matches another *LibraryError with the same Reason, so callers can write
// errors.Is(err, &LibraryError{Reason: IncompatibleVersion}).
func (e *LibraryError) Is(target error) bool {
	t, ok := target.(*LibraryError)
	if !ok {
		return false
	}
	return t.Reason == e.Reason && (t.Path == "" || t.Path == e.Path)
}

// FieldMissingError reports access to a descriptor field the library did not
// declare. It replaces the undefined behaviour of reading past a short table.
type FieldMissingError struct {
	Table    string
	Field    string
	Index    int
	Declared int
}

func (e *FieldMissingError) Error() string {
	return fmt.Sprintf("%s.%s (field %d) not provided: table declares %d fields",
		e.Table, e.Field, e.Index, e.Declared)
}

// Kind implements Kinded.
func (e *FieldMissingError) Kind() Kind { return KindPlugin }
