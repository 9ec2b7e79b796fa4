package host

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	domainerrors "github.com/viow-dev/viow-sdk/domain/errors"
	"github.com/viow-dev/viow-sdk/internal/abi"
	"github.com/viow-dev/viow-sdk/wireformat"
)

// instance is one instantiated library. Every session opened from it
// shares its memory, so calls are serialized.
type instance struct {
	mu     sync.Mutex
	mod    api.Module
	ctx    context.Context
	logger *zap.Logger
}

// newInstance keeps ctx's values, but not its cancellation, for calls made
// through the context-free descriptor tables.
func newInstance(ctx context.Context, mod api.Module, logger *zap.Logger) *instance {
	return &instance{mod: mod, ctx: context.WithoutCancel(ctx), logger: logger}
}

// call encodes req (nil for no argument), invokes the export and decodes
// its response into resp. Transport failures are plugin errors.
func (p *instance) call(name string, req, resp any) error {
	var input []byte
	if req != nil {
		var err error
		if input, err = wireformat.Marshal(req); err != nil {
			return domainerrors.Pluginf("%v", err)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	packed, err := p.callRaw(p.ctx, name, input)
	if err != nil {
		return domainerrors.Pluginf("call %s: %v", name, err)
	}
	out, err := p.readResponse(p.ctx, packed)
	if err != nil {
		return domainerrors.Pluginf("call %s: %v", name, err)
	}
	if err := wireformat.Unmarshal(out, resp); err != nil {
		return domainerrors.Pluginf("call %s: %v", name, err)
	}
	return nil
}

func (p *instance) callRaw(ctx context.Context, name string, input []byte) (uint64, error) {
	f := p.mod.ExportedFunction(name)
	if f == nil {
		return 0, fmt.Errorf("export %q not found", name)
	}

	var results []uint64
	var err error

	if input == nil {
		results, err = f.Call(ctx)
	} else {
		ptr, length, werr := p.write(ctx, input)
		if werr != nil {
			return 0, werr
		}
		results, err = f.Call(ctx, uint64(ptr), uint64(length))
		p.free(ctx, ptr, length)
	}

	if err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("export %q returned nothing", name)
	}
	return results[0], nil
}

// write copies input into a fresh guest allocation.
func (p *instance) write(ctx context.Context, input []byte) (ptr, length uint32, err error) {
	if len(input) == 0 {
		return 0, 0, nil
	}
	allocate := p.mod.ExportedFunction(wireformat.ExportAllocate)
	if allocate == nil {
		return 0, 0, fmt.Errorf("guest does not export %q", wireformat.ExportAllocate)
	}
	length = uint32(len(input)) //nolint:gosec // G115: requests are far below 4 GiB
	res, err := allocate.Call(ctx, uint64(length))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to allocate in guest: %w", err)
	}
	if len(res) == 0 {
		return 0, 0, fmt.Errorf("allocate returned no results")
	}
	ptr = uint32(res[0]) //nolint:gosec // G115: WASM32 pointers are always 32-bit
	if !p.mod.Memory().Write(ptr, input) {
		return 0, 0, fmt.Errorf("failed to write input to guest memory")
	}
	return ptr, length, nil
}

// readResponse copies a packed response out of guest memory and frees it.
func (p *instance) readResponse(ctx context.Context, packed uint64) ([]byte, error) {
	ptr, length, ok := abi.Split(packed)
	if !ok {
		return nil, fmt.Errorf("invalid response pointer %#x", packed)
	}
	if length == 0 {
		return nil, fmt.Errorf("null response from plugin")
	}
	view, ok := p.mod.Memory().Read(ptr, length)
	if !ok {
		return nil, fmt.Errorf("response [%#x, +%d) out of guest memory", ptr, length)
	}
	out := make([]byte, length)
	copy(out, view)
	p.free(ctx, ptr, length)
	return out, nil
}

func (p *instance) free(ctx context.Context, ptr, length uint32) {
	if ptr == 0 {
		return
	}
	dealloc := p.mod.ExportedFunction(wireformat.ExportDeallocate)
	if dealloc == nil {
		return
	}
	if _, err := dealloc.Call(ctx, uint64(ptr), uint64(length)); err != nil {
		p.logger.Warn("guest deallocate failed", zap.Uint32("ptr", ptr), zap.Error(err))
	}
}
