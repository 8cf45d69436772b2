// Package ui is the interactive livechart view: a bubbletea program that
// hosts a stream client and a series buffer and draws every published view
// on a braille canvas.
package ui

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tui "github.com/charmbracelet/bubbletea"
	styles "github.com/charmbracelet/lipgloss"
	plot "github.com/chriskim06/drawille-go"

	"github.com/large-farva/livechart/internal/chart"
	"github.com/large-farva/livechart/internal/series"
	"github.com/large-farva/livechart/internal/stream"
)

// Streamer is the part of *stream.Client the view drives.
type Streamer interface {
	Connect(endpoint string, h stream.Handlers)
	Disconnect()
}

// Store is the part of *series.Buffer the view drives.
type Store interface {
	SetPaused(paused bool)
	Clear()
}

type statusMsg stream.Status

type errMsg string

type viewMsg series.View

type swatch struct {
	line plot.Color
	fg   styles.Color
}

var palette = []swatch{
	{plot.Red, styles.Color("9")},
	{plot.Green, styles.Color("10")},
	{plot.Blue, styles.Color("12")},
	{plot.Yellow, styles.Color("11")},
	{plot.Cyan, styles.Color("14")},
	{plot.Magenta, styles.Color("13")},
}

var (
	borderColor = styles.AdaptiveColor{Light: "#555", Dark: "#555"}
	dimFg       = styles.NewStyle().Foreground(borderColor)
	titleStyle  = styles.NewStyle().Bold(true)
	errStyle    = styles.NewStyle().Foreground(styles.AdaptiveColor{Light: "1", Dark: "9"})
	badgeStyle  = styles.NewStyle().Bold(true).Padding(0, 1).Foreground(styles.Color("0"))
	plotStyle   = styles.NewStyle().
			BorderStyle(styles.NormalBorder()).
			Foreground(borderColor).
			BorderForeground(borderColor)
)

func badgeColor(s stream.Status) styles.Color {
	switch s {
	case stream.StatusConnected:
		return styles.Color("10")
	case stream.StatusConnecting:
		return styles.Color("11")
	case stream.StatusError:
		return styles.Color("9")
	default:
		return styles.Color("8")
	}
}

type model struct {
	width, height int

	client      Streamer
	buf         Store
	handlers    stream.Handlers
	autoConnect bool

	status    stream.Status
	lastErr   string
	aligned   chart.Aligned
	published uint64
	received  *atomic.Uint64

	// pause is applied to the buffer from commands; ctlMu keeps the last
	// applied value equal to the last requested one.
	paused     bool
	wantPaused atomic.Bool
	ctlMu      sync.Mutex

	input        textinput.Model
	help         help.Model
	plot         *plot.Canvas
	plotW, plotH int
}

func newModel(client Streamer, buf Store, endpoint string) *model {
	const (
		defaultWidth  = 80
		defaultHeight = 20
	)

	ti := textinput.New()
	ti.Prompt = "endpoint> "
	ti.Placeholder = "ws://localhost:8004"
	ti.CharLimit = 256
	ti.Width = defaultWidth - len(ti.Prompt) - 2
	ti.SetValue(endpoint)
	ti.Focus()

	m := &model{
		client:   client,
		buf:      buf,
		status:   stream.StatusDisconnected,
		received: new(atomic.Uint64),
		input:    ti,
		help:     help.New(),
	}
	p := plot.NewCanvas(defaultWidth-2, canvasHeight(defaultHeight))
	p.ShowAxis = false
	m.plot = &p
	m.plotW, m.plotH = defaultWidth-2, canvasHeight(defaultHeight)
	return m
}

// canvasHeight leaves room for the header, input, legend, stats, error
// and help lines plus the plot border.
func canvasHeight(total int) int {
	return max(1, total-8)
}

func (m *model) Init() tui.Cmd {
	if m.autoConnect {
		return tui.Batch(textinput.Blink, m.toggleConnection())
	}
	return textinput.Blink
}

func (m *model) Update(msg tui.Msg) (tui.Model, tui.Cmd) {
	switch msg := msg.(type) {
	case statusMsg:
		m.status = stream.Status(msg)
		if m.status == stream.StatusConnected {
			m.lastErr = ""
		}
		return m, m.syncInput()
	case errMsg:
		m.lastErr = string(msg)
		return m, nil
	case viewMsg:
		m.published++
		m.aligned = chart.Align(series.View(msg))
		m.redraw()
		return m, nil
	case tui.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(1, m.width-len(m.input.Prompt)-2)
		m.help.Width = m.width
		m.resizePlot(max(1, m.width-2), canvasHeight(m.height))
		m.redraw()
		return m, nil
	case tui.KeyMsg:
		if key.Matches(msg, keys.Connect) {
			return m, m.toggleConnection()
		}
		if m.input.Focused() {
			if key.Matches(msg, forceQuit) {
				return m, tui.Quit
			}
			var cmd tui.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tui.Quit
		case key.Matches(msg, keys.Pause):
			return m, m.togglePause()
		case key.Matches(msg, keys.Clear):
			return m, m.clear()
		}
		return m, nil
	}
	var cmd tui.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// idle reports whether the last status leaves nothing to disconnect.
func (m *model) idle() bool {
	return m.status == stream.StatusDisconnected || m.status == stream.StatusError
}

func (m *model) syncInput() tui.Cmd {
	if m.idle() {
		return m.input.Focus()
	}
	m.input.Blur()
	return nil
}

func (m *model) toggleConnection() tui.Cmd {
	if !m.idle() {
		return func() tui.Msg {
			m.client.Disconnect()
			return nil
		}
	}
	endpoint := strings.TrimSpace(m.input.Value())
	h := m.handlers
	m.input.Blur()
	return func() tui.Msg {
		m.client.Connect(endpoint, h)
		return nil
	}
}

func (m *model) togglePause() tui.Cmd {
	m.paused = !m.paused
	m.wantPaused.Store(m.paused)
	return func() tui.Msg {
		m.ctlMu.Lock()
		defer m.ctlMu.Unlock()
		m.buf.SetPaused(m.wantPaused.Load())
		return nil
	}
}

func (m *model) clear() tui.Cmd {
	return func() tui.Msg {
		m.ctlMu.Lock()
		defer m.ctlMu.Unlock()
		m.buf.Clear()
		return nil
	}
}

func (m *model) resizePlot(w int, h int) {
	p := plot.NewCanvas(w, h)
	p.NumDataPoints = m.plot.NumDataPoints
	p.ShowAxis = m.plot.ShowAxis
	p.LineColors = m.plot.LineColors
	m.plot = &p
	m.plotW, m.plotH = w, h
}

// redraw refills the canvas from the last aligned view. The canvas needs two
// columns and non-negative values, so short views leave it blank and
// negative ranges are shifted up.
func (m *model) redraw() {
	if m.aligned.Len() < 2 {
		m.resizePlot(m.plotW, m.plotH)
		return
	}
	rows := m.aligned.ForwardFilled()
	if lo, _, ok := m.aligned.Bounds(); ok && lo < 0 {
		for _, row := range rows {
			for j := range row {
				row[j] -= lo
			}
		}
	}
	colors := make([]plot.Color, len(rows))
	for i := range colors {
		colors[i] = palette[i%len(palette)].line
	}
	m.plot.NumDataPoints = m.aligned.Len()
	m.plot.LineColors = colors
	m.plot.Fill(rows)
}

func (m *model) View() string {
	badge := badgeStyle.Background(badgeColor(m.status)).Render(strings.ToUpper(m.status.String()))
	endpoint := strings.TrimSpace(m.input.Value())
	head := titleStyle.Render("livechart") + " " + badge + " " + dimFg.Render(endpoint)

	var input string
	if m.input.Focused() {
		input = m.input.View()
	} else {
		input = dimFg.Render(m.input.Prompt + endpoint)
	}

	canvas := m.plot.String()
	if canvas == "" {
		canvas = strings.Repeat(strings.Repeat(" ", m.plotW)+"\n", max(0, m.plotH-1)) + strings.Repeat(" ", m.plotW)
	}
	body := plotStyle.Render(canvas)

	lines := []string{head, input, body, m.legend(), m.stats()}
	if m.lastErr != "" {
		lines = append(lines, errStyle.Render("ERROR: "+m.lastErr))
	}
	lines = append(lines, m.help.View(keys))
	return styles.JoinVertical(styles.Left, lines...)
}

func (m *model) legend() string {
	if len(m.aligned.Names) == 0 {
		return dimFg.Render("no data")
	}
	parts := make([]string, 0, len(m.aligned.Names))
	for i, name := range m.aligned.Names {
		fg := styles.NewStyle().Foreground(palette[i%len(palette)].fg)
		value := "-"
		if v, ok := m.aligned.Latest(i); ok {
			value = fmt.Sprintf("%.2f", v)
		}
		parts = append(parts, fg.Render("■ "+name)+" "+value)
	}
	return strings.Join(parts, "  ")
}

func (m *model) stats() string {
	points := 0
	for _, row := range m.aligned.Values {
		for _, v := range row {
			if !chart.IsMissing(v) {
				points++
			}
		}
	}
	s := fmt.Sprintf("series: %d  points: %d  received: %d  publishes: %d",
		len(m.aligned.Names), points, m.received.Load(), m.published)
	if m.paused {
		s += "  " + titleStyle.Render("PAUSED")
	}
	return dimFg.Render(s)
}
