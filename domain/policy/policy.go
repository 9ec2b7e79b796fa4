// Package policy holds the host-side matching rules that the plugin contract
// leaves open: how a file name is matched to a loader suffix and which files
// in a plugin directory are considered libraries.
package policy

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultLibraryPattern selects WASM modules directly inside the scanned directory.
const DefaultLibraryPattern = "*.wasm"

// policyConfig holds configuration for the Policy.
type policyConfig struct {
	libraryPattern string // doublestar pattern, relative to the plugin directory
	caseSensitive  bool   // Compare suffixes byte-for-byte
}

func defaultPolicyConfig() policyConfig {
	return policyConfig{
		libraryPattern: DefaultLibraryPattern,
		caseSensitive:  false,
	}
}

// PolicyOption configures the Policy.
type PolicyOption func(*policyConfig)

// WithLibraryPattern sets the doublestar pattern used to select library files.
func WithLibraryPattern(pattern string) PolicyOption {
	return func(c *policyConfig) {
		if pattern != "" {
			c.libraryPattern = pattern
		}
	}
}

// WithCaseSensitiveSuffix makes suffix comparison case-sensitive.
// Default is false: "TRACE.VCD" matches a loader claiming "vcd".
func WithCaseSensitiveSuffix(enabled bool) PolicyOption {
	return func(c *policyConfig) {
		c.caseSensitive = enabled
	}
}

// Policy is stateless after construction and safe for concurrent use.
type Policy struct {
	config policyConfig
}

// NewPolicy creates a Policy with the given options.
func NewPolicy(opts ...PolicyOption) *Policy {
	cfg := defaultPolicyConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Policy{config: cfg}
}

// LibraryPattern returns the configured pattern.
func (p *Policy) LibraryPattern() string {
	return p.config.libraryPattern
}

// IsLibrary reports whether rel (slash-separated, relative to the plugin
// directory) is selected by the library pattern.
func (p *Policy) IsLibrary(rel string) bool {
	ok, err := doublestar.Match(p.config.libraryPattern, rel)
	return err == nil && ok
}

// NormalizeSuffix strips leading dots and applies case folding.
func (p *Policy) NormalizeSuffix(suffix string) string {
	suffix = strings.TrimLeft(strings.TrimSpace(suffix), ".")
	if !p.config.caseSensitive {
		suffix = strings.ToLower(suffix)
	}
	return suffix
}

// MatchSuffix reports whether the base name of file ends in "."+suffix.
// An empty suffix never matches.
func (p *Policy) MatchSuffix(file, suffix string) bool {
	suffix = p.NormalizeSuffix(suffix)
	if suffix == "" {
		return false
	}
	base := path.Base(strings.ReplaceAll(file, "\\", "/"))
	if !p.config.caseSensitive {
		base = strings.ToLower(base)
	}
	return len(base) > len(suffix)+1 && strings.HasSuffix(base, "."+suffix)
}

// BestSuffix returns the index of the longest suffix in suffixes that
// matches file. Ties keep the earliest candidate.
func (p *Policy) BestSuffix(file string, suffixes []string) (int, bool) {
	best, bestLen := -1, 0
	for i, s := range suffixes {
		if !p.MatchSuffix(file, s) {
			continue
		}
		if n := len(p.NormalizeSuffix(s)); n > bestLen {
			best, bestLen = i, n
		}
	}
	return best, best >= 0
}
