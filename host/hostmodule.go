package host

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/viow-dev/viow-sdk/internal/abi"
	"github.com/viow-dev/viow-sdk/log"
)

// HostModule is the import module name guests link against.
const HostModule = "viow_host"

func (e *Executor) registerHostModule(ctx context.Context) error {
	builder := e.runtime.NewHostModuleBuilder(HostModule)

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(e.logMessage), []api.ValueType{api.ValueTypeI64}, nil).
		Export("log_message")

	_, err := builder.Instantiate(ctx)
	return err
}

// logMessage forwards a guest log record to the host logger. The guest owns
// the buffer and frees it after the call.
func (e *Executor) logMessage(_ context.Context, m api.Module, stack []uint64) {
	ptr, length, ok := abi.Split(stack[0])
	if !ok || length == 0 {
		return
	}
	payload, ok := m.Memory().Read(ptr, length)
	if !ok {
		e.config.logger.Warn("guest log record out of bounds", zap.String("module", m.Name()))
		return
	}
	msg, err := log.DecodeMessage(payload)
	if err != nil {
		e.config.logger.Warn("undecodable guest log record", zap.String("module", m.Name()), zap.Error(err))
		return
	}
	log.Forward(e.config.logger, msg, zap.String("module", m.Name()))
}
