// Package viewer is a terminal consumer of a frame mirror. On every fixed-rate tick
// it refreshes variable frames through Mirror.Tick and renders the latest snapshot
// as a tree.
package viewer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/evan-idocoding/framekit/frame"
)

const defaultInterval = 50 * time.Millisecond

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	faintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	pausedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	kindStyles  = map[frame.Kind]lipgloss.Style{
		frame.KindFixed:    lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		frame.KindVariable: lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
	}
)

type tickMsg time.Time

// Model is the bubbletea model. The zero value is not usable; call New.
type Model struct {
	mirror   *frame.Mirror
	interval time.Duration

	snap      *frame.Snapshot
	ticks     int
	refreshed int
	paused    bool
	world     bool
	offset    int
	width     int
	height    int
}

// New returns a model refreshing m every interval. interval <= 0 means 50ms.
func New(m *frame.Mirror, interval time.Duration) Model {
	if m == nil {
		panic("viewer: nil frame.Mirror")
	}
	if interval <= 0 {
		interval = defaultInterval
	}
	return Model{mirror: m, interval: interval, snap: m.Snapshot()}
}

func (model Model) tick() tea.Cmd {
	return tea.Tick(model.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init implements tea.Model.
func (model Model) Init() tea.Cmd { return model.tick() }

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tickMsg:
		model.ticks++
		if !model.paused {
			model.refreshed += model.mirror.Tick()
			model.snap = model.mirror.Snapshot()
		}
		return model, model.tick()
	case tea.WindowSizeMsg:
		model.width, model.height = message.Width, message.Height
	case tea.KeyMsg:
		switch message.String() {
		case "q", "ctrl+c", "esc":
			return model, tea.Quit
		case "p", " ":
			model.paused = !model.paused
		case "w":
			model.world = !model.world
		case "j", "down":
			if model.offset < model.snap.Len()-1 {
				model.offset++
			}
		case "k", "up":
			if model.offset > 0 {
				model.offset--
			}
		case "g", "home":
			model.offset = 0
		}
	}
	return model, nil
}

// View implements tea.Model.
func (model Model) View() string {
	var b strings.Builder
	header := fmt.Sprintf("frames %d  version %d  session %d  refreshed %d",
		model.snap.Len(), model.snap.Version(), model.snap.Session(), model.refreshed)
	b.WriteString(headerStyle.Render(header))
	if model.paused {
		b.WriteString("  " + pausedStyle.Render("PAUSED"))
	}
	b.WriteByte('\n')

	lines := model.treeLines()
	rows := len(lines)
	if model.height > 2 && rows > model.height-2 {
		rows = model.height - 2
	}
	start := model.offset
	if start > len(lines)-rows {
		start = len(lines) - rows
	}
	if start < 0 {
		start = 0
	}
	for _, l := range lines[start : start+rows] {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	b.WriteString(faintStyle.Render("q quit · p pause · w world/local · j/k scroll"))
	return b.String()
}

func (model Model) treeLines() []string {
	var out []string
	model.snap.Walk(func(h *frame.Handle, depth int) bool {
		n := h.Node()
		if n == nil {
			return false
		}
		t := n.Transform()
		if model.world {
			if w, ok := model.snap.WorldTransform(n.Path()); ok {
				t = w
			}
		}
		kind := n.Kind().String()
		if st, ok := kindStyles[n.Kind()]; ok {
			kind = st.Render(kind)
		}
		line := strings.Repeat("  ", depth) + n.Name() + " " + faintStyle.Render("("+model.snap.UniqueName(h)+")") +
			" " + kind + " " + formatTranslation(t)
		if model.width > 0 {
			line = lipgloss.NewStyle().MaxWidth(model.width).Render(line)
		}
		out = append(out, line)
		return true
	})
	return out
}

func formatTranslation(t frame.Transform) string {
	f := func(x float64) string { return strconv.FormatFloat(x, 'f', 3, 64) }
	return "[" + f(t.Translation.X) + " " + f(t.Translation.Y) + " " + f(t.Translation.Z) + "]"
}

// Run shows the viewer on the terminal until the user quits or ctx ends.
func Run(ctx context.Context, m *frame.Mirror, interval time.Duration) error {
	p := tea.NewProgram(New(m, interval), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
