package host

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	viow "github.com/viow-dev/viow-sdk"
	"github.com/viow-dev/viow-sdk/wireformat"
)

func TestStampHeader(t *testing.T) {
	m := fullModule(t, viow.CurrentHeader(""))
	delete(m.sections, wireformat.HeaderSection)
	bare := m.bytes()

	stamped, err := StampHeader(bare, viow.CurrentHeader("stamped"))
	require.NoError(t, err)
	assert.Equal(t, bare, stamped[:len(bare)], "existing sections are untouched")

	e := newTestExecutor(t)
	path := writeLib(t, t.TempDir(), "stamped.wasm", stamped)
	lib, err := e.Inspect(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "stamped", lib.Header.Description)
	require.NoError(t, lib.Close(context.Background()))

	_, err = StampHeader(stamped, viow.CurrentHeader(""))
	assert.ErrorContains(t, err, "already has")

	_, err = StampHeader([]byte("\x7fELF\x02\x01\x01\x00"), viow.CurrentHeader(""))
	assert.ErrorContains(t, err, "not a wasm")

	_, err = StampHeader(append(bare[:8:8], 0x01, 0x20), viow.CurrentHeader(""))
	assert.ErrorContains(t, err, "truncated")
}
