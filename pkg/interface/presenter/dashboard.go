package presenter

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/WangYihang/subprobe/pkg/domain/entity"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const maxRecent = 50

// Dashboard is a TUI dashboard for a scan run
type Dashboard struct {
	cancel context.CancelFunc

	apex        entity.ApexDomain
	candidates  int
	fromArchive int
	concurrency int
	stats       *entity.RunStatistics
	active      map[entity.Hostname]time.Time
	recent      []entity.Hostname
	warnings    []string
	finished    bool

	bar       progress.Model
	width     int
	height    int
	startTime time.Time
	program   *tea.Program
	mu        sync.RWMutex
}

type tickMsg time.Time

// NewDashboard creates a new TUI dashboard. cancel is called when the
// user quits.
func NewDashboard(cancel context.CancelFunc) *Dashboard {
	d := &Dashboard{
		cancel:    cancel,
		stats:     entity.NewRunStatistics(),
		active:    make(map[entity.Hostname]time.Time),
		bar:       progress.New(progress.WithDefaultGradient()),
		startTime: time.Now(),
	}
	d.program = tea.NewProgram(d, tea.WithAltScreen())
	return d
}

// Init initializes the dashboard
func (d *Dashboard) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

// Update handles dashboard updates
func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "Q", "ctrl+c":
			if d.cancel != nil {
				d.cancel()
			}
			return d, tea.Quit
		}

	case tea.WindowSizeMsg:
		d.mu.Lock()
		d.width = msg.Width
		d.height = msg.Height
		d.bar.Width = msg.Width - 8
		d.mu.Unlock()
		return d, nil

	case tickMsg:
		return d, tickCmd()
	}

	return d, nil
}

// View renders the dashboard
func (d *Dashboard) View() string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.width == 0 {
		return "Initializing..."
	}

	header := d.renderHeader()
	footer := d.renderFooter()

	availableHeight := d.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if availableHeight < 0 {
		availableHeight = 0
	}
	halfHeight := availableHeight / 2
	leftWidth := d.width / 2
	rightWidth := d.width - leftWidth

	// Row 1: run summary | failure reasons
	row1 := lipgloss.JoinHorizontal(
		lipgloss.Top,
		d.renderRunStats(leftWidth, halfHeight),
		d.renderReasons(rightWidth, halfHeight),
	)

	// Row 2: probes in flight | recent valid hosts
	remainingHeight := availableHeight - halfHeight
	row2 := lipgloss.JoinHorizontal(
		lipgloss.Top,
		d.renderActive(leftWidth, remainingHeight),
		d.renderRecent(rightWidth, remainingHeight),
	)

	return lipgloss.JoinVertical(lipgloss.Left, header, row1, row2, footer)
}

// Report implements application.Reporter
func (d *Dashboard) Report(event entity.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch e := event.(type) {
	case entity.RunStarted:
		d.apex = e.Apex
		d.candidates = e.Candidates
		d.fromArchive = e.FromArchive
		d.concurrency = e.Concurrency
	case entity.ProbeCompleted:
		d.stats.Add(e.Outcome)
		if e.Outcome.Valid() {
			d.recent = append(d.recent, e.Outcome.Hostname)
			if len(d.recent) > maxRecent {
				d.recent = d.recent[len(d.recent)-maxRecent:]
			}
		}
	case entity.ArchiveWarning:
		d.warnings = append(d.warnings, "archive unavailable: "+e.Reason)
	case entity.WildcardWarning:
		d.warnings = append(d.warnings, fmt.Sprintf("wildcard DNS suspected (%s is reachable)", e.Hostname))
	case entity.RunFinished:
		d.stats.Duration = e.Statistics.Duration
		d.stats.Interrupted = e.Statistics.Interrupted
		d.finished = true
	}
}

// ProbeStarted implements application.Hooks
func (d *Dashboard) ProbeStarted(host entity.Hostname) {
	d.mu.Lock()
	d.active[host] = time.Now()
	d.mu.Unlock()
}

// ProbeFinished implements application.Hooks
func (d *Dashboard) ProbeFinished(host entity.Hostname) {
	d.mu.Lock()
	delete(d.active, host)
	d.mu.Unlock()
}

func (d *Dashboard) percent() float64 {
	if d.candidates == 0 {
		return 0
	}
	return float64(d.stats.Total) / float64(d.candidates)
}

func (d *Dashboard) renderHeader() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7D56F4")).
		Padding(0, 1)

	timeStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#999999"))

	elapsed := time.Since(d.startTime)
	if d.finished {
		elapsed = d.stats.Duration
	}

	state := "Running"
	switch {
	case d.finished && d.stats.Interrupted:
		state = "Interrupted"
	case d.finished:
		state = "Finished"
	}

	title := titleStyle.Render("subprobe " + d.apex.String())
	info := timeStyle.Render(fmt.Sprintf(" %s: %s | Time: %s",
		state, elapsed.Round(time.Second), time.Now().Format("15:04:05")))

	return lipgloss.JoinVertical(lipgloss.Left, title+info, " "+d.bar.ViewAs(d.percent()))
}

func panel(color string, width, height int) lipgloss.Style {
	if width < 2 {
		width = 2
	}
	if height < 2 {
		height = 2
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(color)).
		Padding(1, 2).
		Width(width - 2).
		Height(height - 2)
}

func (d *Dashboard) renderRunStats(width, height int) string {
	stats := []string{
		"Run",
		"",
		fmt.Sprintf("Candidates:   %d", d.candidates),
		fmt.Sprintf("From archive: %d", d.fromArchive),
		fmt.Sprintf("Probed:       %d / %d", d.stats.Total, d.candidates),
		fmt.Sprintf("Valid:        %d", d.stats.Valid),
		fmt.Sprintf("Invalid:      %d", d.stats.Invalid),
	}

	if elapsed := time.Since(d.startTime).Seconds(); elapsed > 0 && !d.finished {
		stats = append(stats, "", fmt.Sprintf("Probe rate:   %.1f/s", float64(d.stats.Total)/elapsed))
	}

	return panel("#874BFD", width, height).Render(strings.Join(stats, "\n"))
}

func (d *Dashboard) renderReasons(width, height int) string {
	lines := []string{"Failure reasons", ""}
	for _, r := range entity.Reasons {
		lines = append(lines, fmt.Sprintf("%-20s %d", string(r)+":", d.stats.Reasons[r]))
	}
	if len(d.warnings) > 0 {
		lines = append(lines, "")
		for _, w := range d.warnings {
			lines = append(lines, "! "+w)
		}
	}

	return panel("#FF6B6B", width, height).Render(strings.Join(lines, "\n"))
}

func (d *Dashboard) renderActive(width, height int) string {
	lines := []string{
		fmt.Sprintf("In flight (%d / %d)", len(d.active), d.concurrency),
		"",
	}

	hosts := make([]entity.Hostname, 0, len(d.active))
	for host := range d.active {
		hosts = append(hosts, host)
	}
	sort.Slice(hosts, func(i, j int) bool { return hosts[i] < hosts[j] })

	// border, padding and the two title lines
	maxLines := height - 6
	for i, host := range hosts {
		if i >= maxLines {
			break
		}
		lines = append(lines, fmt.Sprintf("  %s (%s)", host, time.Since(d.active[host]).Round(time.Millisecond)))
	}

	return panel("#4ECDC4", width, height).Render(strings.Join(lines, "\n"))
}

func (d *Dashboard) renderRecent(width, height int) string {
	lines := []string{
		fmt.Sprintf("Valid hosts (Total: %d)", d.stats.Valid),
		"",
	}

	if len(d.recent) == 0 {
		lines = append(lines, "No valid hosts yet...")
	} else {
		maxLines := height - 6
		if maxLines < 0 {
			maxLines = 0
		}
		start := 0
		if len(d.recent) > maxLines {
			start = len(d.recent) - maxLines
		}
		for _, host := range d.recent[start:] {
			lines = append(lines, fmt.Sprintf("  • %s", host))
		}
	}

	return panel("#04B575", width, height).Render(strings.Join(lines, "\n"))
}

func (d *Dashboard) renderFooter() string {
	footerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#626262")).
		Padding(1, 0)

	if d.finished {
		return footerStyle.Render("Scan complete. Press 'q' to exit")
	}
	return footerStyle.Render("Press 'q' or 'Ctrl+C' to stop")
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*500, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Run starts the dashboard and blocks until it exits
func (d *Dashboard) Run() error {
	_, err := d.program.Run()
	return err
}

// Quit stops the dashboard. Called before Run, it blocks until Run starts.
func (d *Dashboard) Quit() {
	d.program.Quit()
}
