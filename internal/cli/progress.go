package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/ghdisco/pkg/observability"
)

const progressInterval = 250 * time.Millisecond

var progressLabelStyle = lipgloss.NewStyle().Foreground(colorGray).Width(12)

// =============================================================================
// progressModel - live run counters
// =============================================================================

type tickMsg time.Time

// stopMsg renders the final counters and ends the program.
type stopMsg struct{}

type progressModel struct {
	title    string
	counters *observability.Counters
	snap     observability.Snapshot
	frame    int
	done     bool
}

func newProgressModel(title string, counters *observability.Counters) progressModel {
	return progressModel{title: title, counters: counters, snap: counters.Snapshot()}
}

func tick() tea.Cmd {
	return tea.Tick(progressInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m progressModel) Init() tea.Cmd {
	return tick()
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg.(type) {
	case tickMsg:
		m.snap = m.counters.Snapshot()
		m.frame++
		return m, tick()
	case stopMsg:
		m.snap = m.counters.Snapshot()
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m progressModel) View() string {
	s := m.snap
	icon := styleIconSpinner.Render(spinnerFrames[m.frame%len(spinnerFrames)])
	if m.done {
		icon = styleIconSuccess.Render(iconSuccess)
	}

	var b strings.Builder
	b.WriteString(icon + " " + StyleTitle.Render(m.title) + " " + StyleDim.Render(s.Elapsed.Round(time.Second).String()) + "\n")
	line := func(label string, parts ...string) {
		b.WriteString("  " + progressLabelStyle.Render(label) + strings.Join(parts, StyleDim.Render(" · ")) + "\n")
	}
	num := func(n int64, unit string) string {
		return StyleNumber.Render(fmt.Sprint(n)) + " " + StyleDim.Render(unit)
	}

	line("requests", num(s.Requests, "sent"), num(s.Retries, "retried"), num(s.HTTPErrors, "errors"))
	line("cache", num(s.CacheHits, "hits"), num(s.CacheMisses, "misses"))
	if s.Pages > 0 {
		line("search", num(s.Pages, "pages"), num(s.Matches, "matches"), num(s.Splits, "splits"), num(s.Pruned, "pruned"))
		if s.Exhausted+s.Incomplete+s.Failures > 0 {
			line("", num(s.Exhausted, "exhausted"), num(s.Incomplete, "incomplete"), num(s.Failures, "failed"))
		}
	}
	if s.Records+s.Unresolved > 0 {
		line("records", num(s.Records, "written"), num(s.Unresolved, "unresolved"))
	}
	return b.String()
}

// =============================================================================
// progressView - runs the model in the background
// =============================================================================

type progressView struct {
	program *tea.Program
	done    chan struct{}
}

// startProgress renders counters to w until Stop is called. Input and
// signals are left to the caller.
func startProgress(title string, counters *observability.Counters, w io.Writer) *progressView {
	p := tea.NewProgram(newProgressModel(title, counters),
		tea.WithOutput(w),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	v := &progressView{program: p, done: make(chan struct{})}
	go func() {
		defer close(v.done)
		_, _ = p.Run()
	}()
	return v
}

// Stop renders the final frame and waits for the program to exit.
func (v *progressView) Stop() {
	v.program.Send(stopMsg{})
	<-v.done
}
