// Package version decides whether a library header is compatible with the
// host's expected root module.
package version

import (
	"fmt"

	"github.com/coreos/go-semver/semver"

	"github.com/viow-dev/viow-sdk/domain/entities"
	domainerrors "github.com/viow-dev/viow-sdk/domain/errors"
)

// Expected is the root module identity and minimum table layout the host
// requires from a library.
type Expected struct {
	BaseName      string
	Name          string
	Version       string
	PluginFields  int
	LoaderFields  int
	SessionFields int
}

// Compatible reports whether a library built against lib can be used by a
// host built against host. Majors must match, and while the major is 0 the
// minors must match too.
func Compatible(host, lib *semver.Version) bool {
	if host.Major != lib.Major {
		return false
	}
	if host.Major == 0 && host.Minor != lib.Minor {
		return false
	}
	return true
}

// CheckHeader returns nil when h may be loaded by a host expecting want.
// Failures are *LibraryError values with Reason IncompatibleVersion,
// InvalidHeader or LayoutMismatch; Path is left for the caller to fill.
func CheckHeader(h *entities.Header, want Expected) error {
	if h.BaseName != want.BaseName || h.Name != want.Name {
		return &domainerrors.LibraryError{
			Reason: domainerrors.IncompatibleVersion,
			Detail: fmt.Sprintf("library is %s/%s, want %s/%s", h.BaseName, h.Name, want.BaseName, want.Name),
		}
	}

	hostVer, err := semver.NewVersion(want.Version)
	if err != nil {
		return fmt.Errorf("host version %q: %w", want.Version, err)
	}
	libVer, err := semver.NewVersion(h.Version)
	if err != nil {
		return &domainerrors.LibraryError{Reason: domainerrors.InvalidHeader, Detail: "version", Err: err}
	}
	if !Compatible(hostVer, libVer) {
		return &domainerrors.LibraryError{
			Reason: domainerrors.IncompatibleVersion,
			Detail: fmt.Sprintf("library version %s, host version %s", libVer, hostVer),
		}
	}

	if h.PluginFields < want.PluginFields {
		return layoutMismatch("ViowPlugin", h.PluginFields, want.PluginFields)
	}
	// Loader and session counts only matter for plugins that hand out a loader.
	if h.PluginFields >= 2 && h.LoaderFields > 0 {
		if h.LoaderFields < want.LoaderFields {
			return layoutMismatch("FiletypeLoader", h.LoaderFields, want.LoaderFields)
		}
		if h.SessionFields < want.SessionFields {
			return layoutMismatch("WaveLoad", h.SessionFields, want.SessionFields)
		}
	}
	return nil
}

func layoutMismatch(table string, got, want int) error {
	return &domainerrors.LibraryError{
		Reason: domainerrors.LayoutMismatch,
		Detail: fmt.Sprintf("%s declares %d fields, need at least %d", table, got, want),
	}
}
