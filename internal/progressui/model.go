// Package progressui is the terminal view of a single export.
package progressui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/heimdex/reelcut/internal/compose"
)

const (
	defaultBarWidth = 40
	tickInterval    = 500 * time.Millisecond
)

// UpdateMsg carries one export update into the program.
type UpdateMsg compose.Update

// ClosedMsg reports that the update stream ended.
type ClosedMsg struct{}

type tickMsg time.Time

// Feed adapts ExportOptions.OnUpdate to a channel the model can read.
// Progress updates are dropped when the view falls behind. The terminal
// update is delivered unless stop has been called, and always closes the
// channel. Call stop once nothing reads the channel any more so the export's
// dispatcher is never left blocked on it.
func Feed() (send func(compose.Update), updates <-chan compose.Update, stop func()) {
	ch := make(chan compose.Update, 16)
	gone := make(chan struct{})
	var once sync.Once
	stop = func() { once.Do(func() { close(gone) }) }
	send = func(u compose.Update) {
		if u.Result != nil {
			select {
			case ch <- u:
			case <-gone:
			}
			close(ch)
			return
		}
		select {
		case ch <- u:
		default:
		}
	}
	return send, ch, stop
}

// Model renders the state and progress of one export until it finishes.
type Model struct {
	title   string
	updates <-chan compose.Update
	cancel  func()

	state      compose.State
	progress   float64
	result     *compose.Result
	cancelling bool

	start time.Time
	now   time.Time
	width int
}

func New(title string, updates <-chan compose.Update, cancel func()) Model {
	now := time.Now()
	return Model{
		title:   title,
		updates: updates,
		cancel:  cancel,
		start:   now,
		now:     now,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), tick())
}

func waitForUpdate(updates <-chan compose.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return ClosedMsg{}
		}
		return UpdateMsg(u)
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Result is the terminal outcome, once one was received.
func (m Model) Result() (compose.Result, bool) {
	if m.result == nil {
		return compose.Result{}, false
	}
	return *m.result, true
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.result != nil {
				return m, tea.Quit
			}
			if !m.cancelling && m.cancel != nil {
				m.cancelling = true
				m.cancel()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case UpdateMsg:
		m.state = msg.State
		if msg.Progress > m.progress {
			m.progress = msg.Progress
		}
		if msg.Result != nil {
			res := *msg.Result
			m.result = &res
			m.state = res.State
			return m, tea.Quit
		}
		return m, waitForUpdate(m.updates)

	case ClosedMsg:
		return m, tea.Quit

	case tickMsg:
		m.now = time.Time(msg)
		if m.result != nil {
			return m, nil
		}
		return m, tick()
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("reelcut · "+m.title) + "\n\n")

	if m.result != nil {
		b.WriteString(m.resultLine() + "\n")
		return b.String()
	}

	state := m.state.String()
	if m.cancelling {
		state = "cancelling"
	}
	b.WriteString(StateStyle.Render(state) + "  " + DimStyle.Render(m.elapsed()) + "\n")
	b.WriteString(m.bar() + "\n\n")
	b.WriteString(DimStyle.Render("q / ctrl+c to cancel") + "\n")
	return b.String()
}

func (m Model) elapsed() string {
	return "elapsed " + m.now.Sub(m.start).Round(time.Second).String()
}

func (m Model) bar() string {
	width := defaultBarWidth
	if m.width > 0 && m.width-8 < width {
		width = max(m.width-8, 10)
	}
	filled := int(m.progress * float64(width))
	filled = min(max(filled, 0), width)
	return BarFilledStyle.Render(strings.Repeat("█", filled)) +
		BarEmptyStyle.Render(strings.Repeat("░", width-filled)) +
		fmt.Sprintf(" %3s%%", humanize.FtoaWithDigits(m.progress*100, 0))
}

func (m Model) resultLine() string {
	res := m.result
	switch res.State {
	case compose.StateCompleted:
		return SuccessStyle.Render("done") + fmt.Sprintf("  %ss of video in %s",
			humanize.FtoaWithDigits(res.Duration.Seconds(), 1), m.now.Sub(m.start).Round(time.Second))
	case compose.StateCancelled:
		return ErrorStyle.Render("cancelled")
	default:
		line := ErrorStyle.Render("failed") + " (" + string(res.Failure) + ")"
		if res.Error != "" {
			line += "\n" + DimStyle.Render(res.Error)
		}
		return line
	}
}
