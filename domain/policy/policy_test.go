package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/viow-dev/viow-sdk/domain/policy"
)

func TestPolicy_MatchSuffix(t *testing.T) {
	p := policy.NewPolicy()

	tests := []struct {
		name   string
		file   string
		suffix string
		want   bool
	}{
		{"plain", "dump.vcd", "vcd", true},
		{"leading dot in suffix", "dump.vcd", ".vcd", true},
		{"case folded", "DUMP.VCD", "vcd", true},
		{"directory components ignored", "/tmp/run.vcd/dump.fst", "vcd", false},
		{"multi-part", "dump.vcd.gz", "vcd.gz", true},
		{"suffix must follow a dot", "dumpvcd", "vcd", false},
		{"dot file is not a suffix match", ".vcd", "vcd", false},
		{"empty suffix", "dump.vcd", "", false},
		{"windows separators", `C:\traces\dump.vcd`, "vcd", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.MatchSuffix(tt.file, tt.suffix))
		})
	}
}

func TestPolicy_CaseSensitive(t *testing.T) {
	p := policy.NewPolicy(policy.WithCaseSensitiveSuffix(true))

	assert.True(t, p.MatchSuffix("dump.vcd", "vcd"))
	assert.False(t, p.MatchSuffix("DUMP.VCD", "vcd"))
	assert.Equal(t, "VCD", p.NormalizeSuffix(".VCD"))
}

func TestPolicy_BestSuffix(t *testing.T) {
	p := policy.NewPolicy()

	idx, ok := p.BestSuffix("trace.vcd.gz", []string{"gz", "vcd.gz", "fst"})
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	idx, ok = p.BestSuffix("trace.fst", []string{"vcd", "FST", "fst"})
	assert.True(t, ok)
	assert.Equal(t, 1, idx, "ties keep the first registered loader")

	_, ok = p.BestSuffix("trace.ghw", []string{"vcd"})
	assert.False(t, ok)
}

func TestPolicy_IsLibrary(t *testing.T) {
	p := policy.NewPolicy()
	assert.Equal(t, policy.DefaultLibraryPattern, p.LibraryPattern())
	assert.True(t, p.IsLibrary("vcd.wasm"))
	assert.False(t, p.IsLibrary("sub/vcd.wasm"))
	assert.False(t, p.IsLibrary("vcd.wasm.viow.yaml"))

	deep := policy.NewPolicy(policy.WithLibraryPattern("**/*.wasm"))
	assert.True(t, deep.IsLibrary("sub/dir/vcd.wasm"))
	assert.True(t, deep.IsLibrary("vcd.wasm"))

	assert.Equal(t, policy.DefaultLibraryPattern, policy.NewPolicy(policy.WithLibraryPattern("")).LibraryPattern())
}
