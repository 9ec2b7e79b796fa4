package host

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/viow-dev/viow-sdk/domain/entities"
	"github.com/viow-dev/viow-sdk/internal/abi"
	"github.com/viow-dev/viow-sdk/wireformat"
)

// A tiny assembler for test modules. Each guest export either traps or
// returns a response baked into a data segment.

const (
	valI32 = 0x7f
	valI64 = 0x7e
)

type wasmFunc struct {
	name    string
	params  []byte
	results []byte
	body    []byte
}

type wasmModule struct {
	funcs    []wasmFunc
	data     []byte
	sections map[string][]byte
}

const dataBase = 1024

func uleb(n uint64) []byte {
	var out []byte
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

func sleb(n int64) []byte {
	var out []byte
	for {
		b := byte(n & 0x7f)
		n >>= 7
		done := (n == 0 && b&0x40 == 0) || (n == -1 && b&0x40 != 0)
		if done {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func vec(items ...[]byte) []byte {
	out := uleb(uint64(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func wasmName(s string) []byte {
	return append(uleb(uint64(len(s))), s...)
}

func section(id byte, content []byte) []byte {
	out := []byte{id}
	out = append(out, uleb(uint64(len(content)))...)
	return append(out, content...)
}

func (m *wasmModule) trap(name string, params, results []byte) {
	m.funcs = append(m.funcs, wasmFunc{name: name, params: params, results: results, body: []byte{0x00}})
}

// respond adds an export returning resp, msgpack encoded, as a packed pointer.
func (m *wasmModule) respond(t *testing.T, name string, params []byte, resp any) {
	t.Helper()
	payload, err := wireformat.Marshal(resp)
	require.NoError(t, err)
	ptr := uint32(dataBase + len(m.data)) //nolint:gosec // G115: test data is small
	m.data = append(m.data, payload...)
	packed := abi.PackPtrLen(ptr, uint32(len(payload))) //nolint:gosec // G115: test data is small
	body := append([]byte{0x42}, sleb(int64(packed))...) //nolint:gosec // G115: bit pattern is what matters
	m.funcs = append(m.funcs, wasmFunc{name: name, params: params, results: []byte{valI64}, body: body})
}

// allocator adds allocate (a fixed scratch area) and a no-op deallocate.
func (m *wasmModule) allocator() {
	m.funcs = append(m.funcs,
		wasmFunc{name: "allocate", params: []byte{valI32}, results: []byte{valI32}, body: append([]byte{0x41}, sleb(32*1024)...)},
		wasmFunc{name: "deallocate", params: []byte{valI32, valI32}},
	)
}

func (m *wasmModule) header(t *testing.T, h entities.Header) {
	t.Helper()
	raw, err := json.Marshal(h)
	require.NoError(t, err)
	if m.sections == nil {
		m.sections = map[string][]byte{}
	}
	m.sections[wireformat.HeaderSection] = raw
}

func (m *wasmModule) bytes() []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	if len(m.funcs) > 0 {
		var types, indices, exports, codes [][]byte
		for i, f := range m.funcs {
			types = append(types, append(append([]byte{0x60}, vec(splitBytes(f.params)...)...), vec(splitBytes(f.results)...)...))
			indices = append(indices, uleb(uint64(i)))
			exports = append(exports, append(append(wasmName(f.name), 0x00), uleb(uint64(i))...))
			body := append([]byte{0x00}, f.body...)
			body = append(body, 0x0b)
			codes = append(codes, append(uleb(uint64(len(body))), body...))
		}
		exports = append(exports, append(wasmName("memory"), 0x02, 0x00))

		out = append(out, section(1, vec(types...))...)
		out = append(out, section(3, vec(indices...))...)
		out = append(out, section(5, vec([]byte{0x00, 0x01}))...)
		out = append(out, section(7, vec(exports...))...)
		out = append(out, section(10, vec(codes...))...)
		if len(m.data) > 0 {
			seg := []byte{0x00, 0x41}
			seg = append(seg, sleb(dataBase)...)
			seg = append(seg, 0x0b)
			seg = append(seg, uleb(uint64(len(m.data)))...)
			seg = append(seg, m.data...)
			out = append(out, section(11, vec(seg))...)
		}
	}

	for name, payload := range m.sections {
		out = append(out, section(0, append(wasmName(name), payload...))...)
	}
	return out
}

func splitBytes(b []byte) [][]byte {
	out := make([][]byte, len(b))
	for i := range b {
		out[i] = []byte{b[i]}
	}
	return out
}
