// Package session guards a loader session on the host side. It enforces the
// Opened -> Described -> Ready order, caches the signal universe and cycle
// count, and checks every frame store a plugin returns against the request.
package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	viow "github.com/viow-dev/viow-sdk"
	"github.com/viow-dev/viow-sdk/domain/entities"
	domainerrors "github.com/viow-dev/viow-sdk/domain/errors"
)

// State is the position of a session in its lifecycle.
type State uint8

const (
	Opened State = iota
	Described
	Ready
	Released
)

func (s State) String() string {
	switch s {
	case Opened:
		return "opened"
	case Described:
		return "described"
	case Ready:
		return "ready"
	case Released:
		return "released"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// sessionConfig holds configuration for a Session.
type sessionConfig struct {
	logger *zap.Logger
	path   string
	plugin string
}

// Option configures a Session.
type Option func(*sessionConfig)

// WithLogger sets the logger for session events.
func WithLogger(l *zap.Logger) Option {
	return func(c *sessionConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSource records the opened file and the plugin that opened it. Both
// only appear in log fields.
func WithSource(path, plugin string) Option {
	return func(c *sessionConfig) {
		c.path = path
		c.plugin = plugin
	}
}

// Session wraps a WaveLoad table. It is safe for concurrent use; calls into
// the table are serialized.
type Session struct {
	mu     sync.Mutex
	table  *viow.WaveLoad
	id     uuid.UUID
	logger *zap.Logger

	state   State
	signals []entities.SignalSpec
	index   map[string]int
	cycles  uint64
}

// New wraps table, which must be a freshly opened session.
func New(table *viow.WaveLoad, opts ...Option) (*Session, error) {
	if err := viow.ValidateSession(table); err != nil {
		return nil, err
	}
	cfg := sessionConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	id := uuid.New()
	fields := []zap.Field{zap.Stringer("session", id)}
	if cfg.path != "" {
		fields = append(fields, zap.String("path", cfg.path))
	}
	if cfg.plugin != "" {
		fields = append(fields, zap.String("plugin", cfg.plugin))
	}

	return &Session{
		table:  table,
		id:     id,
		logger: cfg.logger.With(fields...),
		state:  Opened,
	}, nil
}

// ID identifies the session in logs.
func (s *Session) ID() uuid.UUID { return s.id }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// InitSignals returns the signal universe. Only the first call reaches the
// plugin; later calls return a copy of the cached sequence.
func (s *Session) InitSignals() ([]entities.SignalSpec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Released {
		return nil, s.invalid("init_signals")
	}
	if s.state == Opened {
		specs, err := s.table.InitSignals()
		if err != nil {
			s.logger.Debug("init_signals failed", zap.Error(err))
			return nil, err
		}
		s.signals = append([]entities.SignalSpec(nil), specs...)
		s.index = make(map[string]int, len(specs))
		for i, spec := range specs {
			if _, dup := s.index[spec.Name]; !dup {
				s.index[spec.Name] = i
			}
		}
		s.state = Described
		s.logger.Debug("signals described", zap.Int("signals", len(specs)))
	}
	return append([]entities.SignalSpec(nil), s.signals...), nil
}

// CountCycles returns the number of cycles. It fails before InitSignals
// without calling the plugin; the first successful result is cached.
func (s *Session) CountCycles() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Ready:
		return s.cycles, nil
	case Described:
	default:
		return 0, s.invalid("count_cycles")
	}

	n, err := s.table.CountCycles()
	if err != nil {
		s.logger.Debug("count_cycles failed", zap.Error(err))
		return 0, err
	}
	s.cycles = n
	s.state = Ready
	s.logger.Debug("session ready", zap.Uint64("cycles", n))
	return n, nil
}

// Load materializes names over cycles. Names and the range are checked
// before the plugin is called, and the returned frame store must have
// exactly the requested shape.
func (s *Session) Load(names []string, cycles entities.CycleRange) (*entities.WaveData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Ready {
		return nil, s.invalid("load")
	}

	types := make([]entities.SignalType, len(names))
	for k, name := range names {
		id, ok := s.index[name]
		if !ok {
			return nil, domainerrors.NewNotFound(name)
		}
		types[k] = s.signals[id].Type
	}
	if cycles.End < cycles.Start || cycles.End > s.cycles {
		return nil, domainerrors.Pluginf("cycle range %s outside [0, %d)", cycles, s.cycles)
	}

	w, err := s.table.Load(names, cycles)
	if err != nil {
		s.logger.Debug("load failed", zap.Stringer("cycles", cycles), zap.Error(err))
		return nil, err
	}
	if err := checkShape(w, types, cycles); err != nil {
		s.logger.Warn("plugin returned a malformed frame store", zap.Error(err))
		return nil, err
	}
	return w, nil
}

// Release drops the plugin-side session. It is idempotent; every later call
// other than Release fails.
func (s *Session) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Released {
		return
	}
	s.table.Release()
	s.state = Released
	s.signals, s.index = nil, nil
	s.logger.Debug("session released")
}

// Table exposes the guarded session as a WaveLoad table, so code written
// against the plugin contract can drive it.
func (s *Session) Table() *viow.WaveLoad {
	return &viow.WaveLoad{
		Layout:      viow.Layout{Fields: viow.SessionFields},
		InitSignals: s.InitSignals,
		CountCycles: s.CountCycles,
		Load:        s.Load,
		Drop:        s.Release,
	}
}

func (s *Session) invalid(op string) error {
	return &domainerrors.StateError{Op: op, State: s.state.String()}
}

// checkShape reports a plugin error unless w covers cycles with one signal
// of each width in types, in order.
func checkShape(w *entities.WaveData, types []entities.SignalType, cycles entities.CycleRange) error {
	if w == nil {
		return domainerrors.Pluginf("load returned no frame store")
	}
	if w.CycleRange() != cycles {
		return domainerrors.Pluginf("frame store covers %s, requested %s", w.CycleRange(), cycles)
	}
	if w.NumSignals() != len(types) {
		return domainerrors.Pluginf("frame store holds %d signals, requested %d", w.NumSignals(), len(types))
	}
	cursor := 0
	for k, br := range w.BitRanges() {
		if want := types[k].Width(); br.Start != cursor || br.Width() != want {
			return domainerrors.Pluginf("signal %d occupies [%d, %d), want width %d at %d", k, br.Start, br.End, want, cursor)
		}
		cursor = br.End
	}
	if w.BytesPerFrame() != cursor {
		return domainerrors.Pluginf("frame is %d bytes, signals need %d", w.BytesPerFrame(), cursor)
	}
	if want := uint64(cursor) * cycles.Len(); uint64(len(w.Data())) != want {
		return domainerrors.Pluginf("frame data is %d bytes, want %d", len(w.Data()), want)
	}
	return nil
}
