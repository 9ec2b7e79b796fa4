package guest

import (
	"log/slog"
	"sync/atomic"

	viow "github.com/viow-dev/viow-sdk"
)

var current atomic.Pointer[Dispatcher]

// panicHook is prepended to the options of the registered dispatcher.
var panicHook = func() {}

// Register installs p as the library's plugin. It panics when p is not a
// valid table, so a broken plugin fails at instantiation rather than on the
// first host call. Later calls are ignored.
func Register(p *viow.ViowPlugin, opts ...DispatcherOption) {
	d, err := NewDispatcher(p, append([]DispatcherOption{WithPanicHook(panicHook)}, opts...)...)
	if err != nil {
		panic("viow: register plugin: " + err.Error())
	}
	if !current.CompareAndSwap(nil, d) {
		slog.Warn("viow: plugin already registered, ignoring second call", "name", p.Name())
	}
}

// active returns the registered dispatcher, or one that answers every call
// with a plugin error.
func active() *Dispatcher {
	if d := current.Load(); d != nil {
		return d
	}
	return &Dispatcher{}
}
