// Package tui renders pacer's terminal views: a live progress display for
// scheduled work and markdown rendering for answers.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/v2/progress"
	"github.com/charmbracelet/bubbles/v2/spinner"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss/v2"

	"github.com/billie-coop/pacer/internal/scheduler"
)

const pollInterval = 100 * time.Millisecond

// StatsSource is anything that reports scheduler counters.
type StatsSource interface {
	Stats() scheduler.Stats
}

type statsMsg scheduler.Stats

type finishedMsg struct{ err error }

// Finished tells a running Progress that the work is over.
func Finished(err error) tea.Msg {
	return finishedMsg{err: err}
}

// Progress shows how far a batch of scheduled tasks has got. Pressing q or
// esc calls cancel once; ctrl+c quits immediately.
type Progress struct {
	title  string
	total  int
	src    StatsSource
	cancel func() int
	theme  Theme

	spinner spinner.Model
	bar     progress.Model
	stats   scheduler.Stats

	cancelling bool
	dropped    int
	done       bool
	aborted    bool
	err        error
}

// NewProgress builds a view for total tasks fed through src.
func NewProgress(title string, total int, src StatsSource, cancel func() int) *Progress {
	theme := DefaultTheme
	return &Progress{
		title:  title,
		total:  total,
		src:    src,
		cancel: cancel,
		theme:  theme,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.MiniDot),
			spinner.WithStyle(theme.style(theme.Accent)),
		),
		bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(40),
			progress.WithoutPercentage(),
		),
	}
}

func (p *Progress) poll() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg {
		return statsMsg(p.src.Stats())
	})
}

// Init implements tea.Model
func (p *Progress) Init() tea.Cmd {
	return tea.Batch(p.spinner.Tick, p.poll())
}

// Update implements tea.Model
func (p *Progress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c":
			p.aborted = true
			return p, tea.Quit
		case "q", "esc":
			if !p.cancelling && !p.done && p.cancel != nil {
				p.cancelling = true
				p.dropped = p.cancel()
			}
		}
		return p, nil

	case statsMsg:
		p.stats = scheduler.Stats(msg)
		if p.done {
			return p, nil
		}
		return p, p.poll()

	case finishedMsg:
		p.done = true
		p.err = msg.err
		p.stats = p.src.Stats()
		return p, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return p, cmd
	}
	return p, nil
}

// finished counts tasks that have left the scheduler for any reason.
func (p *Progress) finished() int {
	return p.stats.Completed + p.stats.Failed + p.stats.Cancelled
}

// Percent is the share of tasks finished, 0..1.
func (p *Progress) Percent() float64 {
	if p.total <= 0 {
		return 0
	}
	return min(1, float64(p.finished())/float64(p.total))
}

// Aborted reports whether the user quit with ctrl+c.
func (p *Progress) Aborted() bool {
	return p.aborted
}

// Content renders the view body.
func (p *Progress) Content() string {
	t := p.theme
	muted := t.style(t.FgMuted)

	var sb strings.Builder
	sb.WriteString(Gradient(p.title, t.Primary, t.Secondary))
	sb.WriteString("\n\n")

	indicator := p.spinner.View()
	if p.done {
		indicator = t.style(t.Success).Render("✓")
		if p.err != nil {
			indicator = t.style(t.Error).Render("✗")
		}
	}
	fmt.Fprintf(&sb, "%s %s %s\n\n",
		indicator,
		p.bar.ViewAs(p.Percent()),
		muted.Render(fmt.Sprintf("%d/%d", p.finished(), p.total)))

	fmt.Fprintf(&sb, "%s  %s  %s  %s\n",
		t.style(t.Accent).Render(fmt.Sprintf("running %d", p.stats.Running)),
		muted.Render(fmt.Sprintf("queued %d", p.stats.Pending)),
		t.style(t.Success).Render(fmt.Sprintf("done %d", p.stats.Completed)),
		t.style(t.Error).Render(fmt.Sprintf("failed %d", p.stats.Failed)))

	if p.stats.AvgRunTime > 0 {
		sb.WriteString(muted.Render(fmt.Sprintf("avg %s per task", p.stats.AvgRunTime.Round(time.Millisecond))))
		sb.WriteString("\n")
	}

	switch {
	case p.cancelling:
		sb.WriteString(t.style(t.Warning).Render(fmt.Sprintf("cancelled %d queued, finishing running tasks…", p.dropped)))
	case p.err != nil:
		sb.WriteString(t.style(t.Error).Render(p.err.Error()))
	case !p.done:
		sb.WriteString(muted.Render("q cancel queued • ctrl+c quit"))
	}
	sb.WriteString("\n")

	return lipgloss.NewStyle().Padding(1, 2).Render(sb.String())
}

// View implements tea.Model
func (p *Progress) View() tea.View {
	return tea.NewView(p.Content())
}
