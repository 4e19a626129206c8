package viewer

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evan-idocoding/framekit/frame"
	"github.com/evan-idocoding/framekit/frame/framesim"
	"github.com/evan-idocoding/framekit/rt/sched"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func setup(t *testing.T) (*frame.Mirror, *framesim.Scalar) {
	t.Helper()
	s := sched.New(sched.WithWorkers(2), sched.WithLogger(quiet))
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	m := frame.NewMirror(s, frame.WithLogger(quiet))

	x := framesim.NewScalar(0)
	g := framesim.New("world")
	robot, err := g.AddFixed(nil, "world/robot", frame.Transform{Translation: frame.Vec3{Z: 1}, Rotation: frame.IdentityQuat()})
	require.NoError(t, err)
	_, err = g.AddVariable(robot, "world/robot/slider", frame.Inputs{Translation: [3]frame.Scalar{x}})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Announce(g.Flush()).Wait(ctx))
	return m, x
}

func update(t *testing.T, model Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := model.Update(msg)
	return next.(Model), cmd
}

func TestTickRefreshesAndRenders(t *testing.T) {
	m, x := setup(t)
	model := New(m, time.Millisecond)
	require.NotNil(t, model.Init())

	x.Set(2.5)
	model, cmd := update(t, model, tickMsg(time.Now()))
	assert.NotNil(t, cmd, "tick must re-arm")
	assert.Equal(t, 1, model.refreshed)

	view := model.View()
	assert.Contains(t, view, "frames 3")
	assert.Contains(t, view, "slider")
	assert.Contains(t, view, "[2.500 0.000 0.000]")

	lines := strings.Split(view, "\n")
	require.GreaterOrEqual(t, len(lines), 4)
	assert.True(t, strings.HasPrefix(lines[3], "    slider"), "slider is indented two levels: %q", lines[3])
}

func TestWorldToggle(t *testing.T) {
	m, x := setup(t)
	model := New(m, time.Millisecond)
	x.Set(1)
	model, _ = update(t, model, tickMsg(time.Now()))
	assert.Contains(t, model.View(), "[1.000 0.000 0.000]")

	model, _ = update(t, model, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'w'}})
	assert.Contains(t, model.View(), "[1.000 0.000 1.000]")
}

func TestPauseStopsRefresh(t *testing.T) {
	m, x := setup(t)
	model := New(m, time.Millisecond)

	model, _ = update(t, model, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}})
	assert.Contains(t, model.View(), "PAUSED")

	x.Set(3)
	model, cmd := update(t, model, tickMsg(time.Now()))
	assert.NotNil(t, cmd)
	assert.Equal(t, 0, model.refreshed)
	assert.Equal(t, 1, model.ticks)
}

func TestScrollAndQuit(t *testing.T) {
	m, _ := setup(t)
	model := New(m, 0)
	assert.Equal(t, defaultInterval, model.interval)

	model, _ = update(t, model, tea.WindowSizeMsg{Width: 80, Height: 3})
	model, _ = update(t, model, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	model, _ = update(t, model, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	model, _ = update(t, model, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	assert.Equal(t, 2, model.offset, "offset stops at the last frame")

	view := model.View()
	assert.Contains(t, view, "slider")
	assert.NotContains(t, view, "world (")

	_, cmd := update(t, model, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
