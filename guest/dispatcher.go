// Package guest serves a ViowPlugin table from inside a WASM library.
//
// A plugin registers its table from an init function:
//
//	func init() {
//		guest.Register(viow.NewPlugin("tbl", viow.NewFiletypeLoader("tbl", open)))
//	}
//
// Under wasip1 the package exports the viow_* functions the host binds to;
// every call is decoded, dispatched to the table and answered with a msgpack
// response. Sessions live in a handle table until the host drops them.
package guest

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	viow "github.com/viow-dev/viow-sdk"
	"github.com/viow-dev/viow-sdk/domain/entities"
	domainerrors "github.com/viow-dev/viow-sdk/domain/errors"
	"github.com/viow-dev/viow-sdk/wireformat"
)

type dispatcherConfig struct {
	logger     *slog.Logger
	onPanic    func()
	maxHandles int
}

func defaultDispatcherConfig() dispatcherConfig {
	return dispatcherConfig{
		logger:     slog.Default(),
		onPanic:    func() {},
		maxHandles: 1024,
	}
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*dispatcherConfig)

// WithLogger sets the logger for recovered panics and dropped sessions.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(c *dispatcherConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPanicHook runs fn after a panic in plugin code has been recovered.
func WithPanicHook(fn func()) DispatcherOption {
	return func(c *dispatcherConfig) {
		if fn != nil {
			c.onPanic = fn
		}
	}
}

// WithMaxSessions bounds the number of sessions open at once.
func WithMaxSessions(n int) DispatcherOption {
	return func(c *dispatcherConfig) {
		if n > 0 {
			c.maxHandles = n
		}
	}
}

// Dispatcher answers encoded host calls against one plugin table.
// It is safe for concurrent use.
type Dispatcher struct {
	plugin *viow.ViowPlugin
	config dispatcherConfig

	mu       sync.Mutex
	sessions map[uint32]*viow.WaveLoad
	next     uint32
}

// NewDispatcher validates p and returns a dispatcher for it.
func NewDispatcher(p *viow.ViowPlugin, opts ...DispatcherOption) (*Dispatcher, error) {
	if err := viow.ValidatePlugin(p); err != nil {
		return nil, err
	}
	cfg := defaultDispatcherConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Dispatcher{
		plugin:   p,
		config:   cfg,
		sessions: make(map[uint32]*viow.WaveLoad),
	}, nil
}

// Sessions reports the number of open sessions.
func (d *Dispatcher) Sessions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

// GetName answers viow_get_name.
func (d *Dispatcher) GetName() []byte {
	resp := &wireformat.NameResponse{}
	return d.serve(resp, &resp.Error, func() error {
		resp.Name = d.plugin.Name()
		return nil
	})
}

// GetLoader answers viow_get_loader.
func (d *Dispatcher) GetLoader() []byte {
	resp := &wireformat.LoaderResponse{}
	return d.serve(resp, &resp.Error, func() error {
		l, err := d.plugin.Loader()
		if err != nil || l == nil {
			return err
		}
		resp.Present = true
		resp.Fields = l.Layout.Fields
		return nil
	})
}

// LoaderGetSuffix answers viow_loader_get_suffix.
func (d *Dispatcher) LoaderGetSuffix() []byte {
	resp := &wireformat.SuffixResponse{}
	return d.serve(resp, &resp.Error, func() error {
		l, err := d.loader()
		if err != nil {
			return err
		}
		resp.Suffix = l.Suffix()
		return nil
	})
}

// LoaderOpen answers viow_loader_open.
func (d *Dispatcher) LoaderOpen(payload []byte) []byte {
	resp := &wireformat.OpenResponse{}
	return d.serve(resp, &resp.Error, func() error {
		var req wireformat.OpenRequest
		if err := wireformat.Unmarshal(payload, &req); err != nil {
			return domainerrors.Pluginf("%v", err)
		}
		l, err := d.loader()
		if err != nil {
			return err
		}

		d.mu.Lock()
		full := len(d.sessions) >= d.config.maxHandles
		d.mu.Unlock()
		if full {
			return domainerrors.Pluginf("too many open sessions (%d)", d.config.maxHandles)
		}

		s, err := l.Open(req.Path, req.CycleTimeFs)
		if err != nil {
			return err
		}
		if err := viow.ValidateSession(s); err != nil {
			s.Release()
			return domainerrors.Pluginf("open %s: %v", req.Path, err)
		}

		resp.Session = d.store(s)
		resp.Fields = s.Layout.Fields
		return nil
	})
}

// SessionInitSignals answers viow_session_init_signals.
func (d *Dispatcher) SessionInitSignals(payload []byte) []byte {
	resp := &wireformat.SignalsResponse{}
	return d.serve(resp, &resp.Error, func() error {
		s, err := d.session(payload)
		if err != nil {
			return err
		}
		specs, err := s.InitSignals()
		if err != nil {
			return err
		}
		resp.Signals = wireformat.SignalsToWire(specs)
		return nil
	})
}

// SessionCountCycles answers viow_session_count_cycles.
func (d *Dispatcher) SessionCountCycles(payload []byte) []byte {
	resp := &wireformat.CyclesResponse{}
	return d.serve(resp, &resp.Error, func() error {
		s, err := d.session(payload)
		if err != nil {
			return err
		}
		resp.Cycles, err = s.CountCycles()
		return err
	})
}

// SessionLoad answers viow_session_load.
func (d *Dispatcher) SessionLoad(payload []byte) []byte {
	resp := &wireformat.LoadResponse{}
	return d.serve(resp, &resp.Error, func() error {
		var req wireformat.LoadRequest
		if err := wireformat.Unmarshal(payload, &req); err != nil {
			return domainerrors.Pluginf("%v", err)
		}
		s, err := d.lookup(req.Session)
		if err != nil {
			return err
		}
		w, err := s.Load(req.Signals, entities.CycleRange{Start: req.Start, End: req.End})
		if err != nil {
			return err
		}
		if w == nil {
			return domainerrors.Pluginf("load returned no frame data")
		}
		resp.Data = wireformat.WaveDataToWire(w)
		return nil
	})
}

// SessionDrop answers viow_session_drop. The handle is invalid afterwards.
func (d *Dispatcher) SessionDrop(payload []byte) []byte {
	resp := &wireformat.DropResponse{}
	return d.serve(resp, &resp.Error, func() error {
		var req wireformat.SessionRequest
		if err := wireformat.Unmarshal(payload, &req); err != nil {
			return domainerrors.Pluginf("%v", err)
		}
		d.mu.Lock()
		s, ok := d.sessions[req.Session]
		delete(d.sessions, req.Session)
		d.mu.Unlock()
		if !ok {
			return domainerrors.Pluginf("unknown session %d", req.Session)
		}
		s.Release()
		return nil
	})
}

func (d *Dispatcher) loader() (*viow.FiletypeLoader, error) {
	l, err := d.plugin.Loader()
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, domainerrors.Pluginf("plugin %q has no filetype loader", d.plugin.Name())
	}
	return l, nil
}

func (d *Dispatcher) store(s *viow.WaveLoad) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	for {
		d.next++
		if d.next == 0 {
			continue
		}
		if _, used := d.sessions[d.next]; !used {
			d.sessions[d.next] = s
			return d.next
		}
	}
}

func (d *Dispatcher) session(payload []byte) (*viow.WaveLoad, error) {
	var req wireformat.SessionRequest
	if err := wireformat.Unmarshal(payload, &req); err != nil {
		return nil, domainerrors.Pluginf("%v", err)
	}
	return d.lookup(req.Session)
}

func (d *Dispatcher) lookup(h uint32) (*viow.WaveLoad, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[h]
	if !ok {
		return nil, domainerrors.Pluginf("unknown session %d", h)
	}
	return s, nil
}

// serve runs f, records its error or a recovered panic in *errField and
// encodes resp.
func (d *Dispatcher) serve(resp any, errField **wireformat.ErrorDetail, f func() error) (out []byte) {
	defer func() {
		if r := recover(); r != nil {
			d.config.logger.Error("viow: plugin panic recovered", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			d.config.onPanic()
			*errField = wireformat.ToErrorDetail(domainerrors.Pluginf("panic: %v", r))
			out = encode(resp)
		}
	}()

	if d.plugin == nil {
		*errField = wireformat.ToErrorDetail(domainerrors.Pluginf("no plugin registered"))
		return encode(resp)
	}
	if err := f(); err != nil {
		*errField = wireformat.ToErrorDetail(err)
	}
	return encode(resp)
}

// errorOnly decodes into every response type, since they all carry "error".
type errorOnly struct {
	Error *wireformat.ErrorDetail `msgpack:"error"`
}

func encode(resp any) []byte {
	b, err := wireformat.Marshal(resp)
	if err == nil {
		return b
	}
	b, _ = wireformat.Marshal(errorOnly{Error: wireformat.ToErrorDetail(domainerrors.Pluginf("%v", err))})
	return b
}
