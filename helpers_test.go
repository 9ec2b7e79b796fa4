package viow_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	viow "github.com/viow-dev/viow-sdk"
	"github.com/viow-dev/viow-sdk/domain/entities"
	domainerrors "github.com/viow-dev/viow-sdk/domain/errors"
	"github.com/viow-dev/viow-sdk/domain/ports"
)

var universe = []entities.SignalSpec{
	{Name: "clk", Type: entities.Bit()},
	{Name: "addr", Type: entities.Vector(15, 0)},
	{Name: "data", Type: entities.Vector(0, 7)},
	{Name: "clk", Type: entities.Vector(1, 0)},
}

func TestResolveSignals(t *testing.T) {
	t.Parallel()

	ids, err := viow.ResolveSignals(universe, []string{"data", "clk", "addr", "data"})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0, 1, 2}, ids, "order follows the request; duplicate names resolve to the first spec")

	ids, err = viow.ResolveSignals(universe, nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestResolveSignals_NotFound(t *testing.T) {
	t.Parallel()

	_, err := viow.ResolveSignals(universe, []string{"clk", "ghost", "phantom"})

	var nf *domainerrors.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "ghost", nf.Name)
}

func TestNewFrame(t *testing.T) {
	t.Parallel()

	w, ids, err := viow.NewFrame(universe, []string{"data", "clk"}, entities.CycleRange{Start: 4, End: 7})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0}, ids)
	assert.Equal(t, []entities.BitRange{{Start: 0, End: 8}, {Start: 8, End: 9}}, w.BitRanges())
	assert.Len(t, w.Data(), 27)

	_, _, err = viow.NewFrame(universe, []string{"nope"}, entities.CycleRange{Start: 0, End: 1})
	kind, ok := domainerrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, domainerrors.KindNotFound, kind)

	_, _, err = viow.NewFrame(universe, []string{"clk"}, entities.CycleRange{Start: 2, End: 1})
	kind, ok = domainerrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, domainerrors.KindPlugin, kind)
}

type releasingSession struct {
	ports.Session
	released int
}

func (r *releasingSession) Release() { r.released++ }

func TestBindSession(t *testing.T) {
	t.Parallel()

	plain := viow.BindSession(&stubSession{})
	assert.Equal(t, viow.SessionPrefixFields, plain.Layout.Fields)
	assert.Nil(t, plain.Drop)
	require.NoError(t, viow.ValidateSession(plain))
	plain.Release()

	rs := &releasingSession{Session: &stubSession{}}
	bound := viow.BindSession(rs)
	assert.Equal(t, viow.SessionFields, bound.Layout.Fields)
	require.NoError(t, viow.ValidateSession(bound))
	bound.Release()
	assert.Equal(t, 1, rs.released)
}

func TestNewPlugin(t *testing.T) {
	t.Parallel()

	loader := viow.NewFiletypeLoader("vcd", func(path string, _ uint64) (ports.Session, error) {
		if path == "missing.vcd" {
			return nil, domainerrors.NewIOError("open", path, errors.New("no such file"))
		}
		return &stubSession{}, nil
	})
	p := viow.NewPlugin("vcd-loader", loader)
	require.NoError(t, viow.ValidatePlugin(p))
	assert.Equal(t, "vcd-loader", p.Name())

	got, err := p.Loader()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "vcd", got.Suffix())

	s, err := got.Open("trace.vcd", 1000)
	require.NoError(t, err)
	require.NoError(t, viow.ValidateSession(s))

	_, err = got.Open("missing.vcd", 1000)
	kind, _ := domainerrors.KindOf(err)
	assert.Equal(t, domainerrors.KindIO, kind)
}

func TestNewPlugin_NoLoader(t *testing.T) {
	t.Parallel()

	p := viow.NewPlugin("metrics-only", nil)
	l, err := p.Loader()
	require.NoError(t, err)
	assert.Nil(t, l)
}

type stubSession struct{}

func (stubSession) InitSignals() ([]entities.SignalSpec, error) { return universe, nil }

func (stubSession) CountCycles() (uint64, error) { return 10, nil }

func (stubSession) Load(names []string, cycles entities.CycleRange) (*entities.WaveData, error) {
	w, _, err := viow.NewFrame(universe, names, cycles)
	return w, err
}
