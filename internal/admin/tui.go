package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/xiy/memtier/internal/analytics"
	"github.com/xiy/memtier/pkg/types"
)

type tickMsg time.Time
type dashboardMsg struct {
	stats     types.Stats
	events    []analytics.Event
	summaries []analytics.TierSummary
	memories  []types.MemoryCube
	duration  time.Duration
}

type dashboardEngine interface {
	Stats(ctx context.Context) types.Stats
	RecentMemories(limit int) []types.MemoryCube
}

type model struct {
	ctx           context.Context
	engine        dashboardEngine
	recorder      *analytics.Recorder
	stats         types.Stats
	events        []analytics.Event
	summaries     []analytics.TierSummary
	memories      []types.MemoryCube
	lastTick      time.Time
	logLines      []string
	maxLogs       int
	eventsLimit   int
	memoriesLimit int
	width         int
	height        int
}

// Run starts a lightweight local admin dashboard.
func Run(ctx context.Context, engine dashboardEngine, recorder *analytics.Recorder) error {
	m := model{
		ctx:           ctx,
		engine:        engine,
		recorder:      recorder,
		maxLogs:       10,
		eventsLimit:   8,
		memoriesLimit: 8,
	}
	m = m.appendLog("admin UI started")
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m model) Init() tea.Cmd {
	return tea.Batch(fetchDashboardCmd(m.ctx, m.engine, m.recorder, m.eventsLimit, m.memoriesLimit), tickCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m = m.appendLog("received quit signal")
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		m.lastTick = time.Time(msg)
		return m, tea.Batch(fetchDashboardCmd(m.ctx, m.engine, m.recorder, m.eventsLimit, m.memoriesLimit), tickCmd())
	case dashboardMsg:
		m.stats = msg.stats
		m.events = msg.events
		m.summaries = msg.summaries
		m.memories = msg.memories
		m = m.appendLog(fmt.Sprintf(
			"refresh ok hot=%d warm=%d cold=%d events=%d (%s)",
			msg.stats.HotSize,
			msg.stats.WarmSize,
			msg.stats.ColdSize,
			len(msg.events),
			formatDuration(msg.duration),
		))
	}
	return m, nil
}

func (m model) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Render("memtier admin")
	meta := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("q to quit • refresh every 2s")

	logBody := "(no log events yet)"
	if len(m.logLines) > 0 {
		logBody = strings.Join(m.logLines, "\n")
	}

	paneWidth := 54
	if m.width > 0 {
		paneWidth = max(38, (m.width-3)/2)
	}
	paneHeight := 9
	if m.height > 0 {
		paneHeight = max(8, (m.height-8)/2)
	}

	topRow := joinColumns(
		renderPane("Tiers", m.renderStats(), paneWidth, paneHeight),
		renderPane("General Logs", logBody, paneWidth, paneHeight),
	)
	bottomRow := joinColumns(
		renderPane("Retrievals", formatEventsPane(m.events), paneWidth, paneHeight),
		renderPane("Recent Memories", formatMemoriesPane(m.memories), paneWidth, paneHeight),
	)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		meta,
		"",
		topRow,
		bottomRow,
	)
}

func (m model) renderStats() string {
	body := fmt.Sprintf(
		"Hot turns:       %d\nWarm memories:   %d\nCold memories:   %d\nTotal:           %d\nLast refresh:    %s",
		m.stats.HotSize,
		m.stats.WarmSize,
		m.stats.ColdSize,
		m.stats.TotalMemories,
		formatTime(m.lastTick),
	)
	for _, s := range m.summaries {
		// Summary already reports HitRate as a percentage.
		body += fmt.Sprintf("\n%s: %d hits, %.1f%% hit rate, avg %.1fms",
			s.Tier, s.Hits, s.HitRate, s.AvgMS)
	}
	return body
}

func fetchDashboardCmd(ctx context.Context, engine dashboardEngine, recorder *analytics.Recorder, eventLimit, memLimit int) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		return dashboardMsg{
			stats:     engine.Stats(ctx),
			events:    recorder.RecentEvents(eventLimit),
			summaries: recorder.Summary(),
			memories:  engine.RecentMemories(memLimit),
			duration:  time.Since(start),
		}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func (m model) appendLog(line string) model {
	if strings.TrimSpace(line) == "" {
		return m
	}
	entry := fmt.Sprintf("[%s] %s", time.Now().UTC().Format("15:04:05"), line)
	m.logLines = append(m.logLines, entry)
	if m.maxLogs <= 0 {
		m.maxLogs = 10
	}
	if len(m.logLines) > m.maxLogs {
		m.logLines = m.logLines[len(m.logLines)-m.maxLogs:]
	}
	return m
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return d.String()
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(10 * time.Millisecond).String()
}

func renderPane(title, body string, width, height int) string {
	style := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(1, 2)
	if width > 0 {
		style = style.Width(width)
	}
	if height > 0 {
		style = style.Height(height)
	}
	return style.Render(title + "\n\n" + body)
}

func joinColumns(left, right string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)
}

func formatEventsPane(events []analytics.Event) string {
	if len(events) == 0 {
		return "(no retrievals yet)"
	}
	lines := make([]string, 0, len(events))
	for _, ev := range events {
		line := fmt.Sprintf(
			"[%s] %-4s %2d/%-3d %6.1fms %s",
			formatClock(ev.Timestamp),
			ev.Tier,
			ev.Results,
			ev.Candidates,
			ev.ElapsedMS,
			truncateText(compactWhitespace(ev.Query), 32),
		)
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func formatMemoriesPane(memories []types.MemoryCube) string {
	if len(memories) == 0 {
		return "(no memories yet)"
	}
	lines := make([]string, 0, len(memories))
	for _, cube := range memories {
		marker := " "
		if cube.SourceSummary {
			marker = "S"
		}
		line := fmt.Sprintf(
			"[%s] %s heat=%.2f :: %s",
			formatClock(cube.Timestamp),
			marker,
			cube.HeatScore(time.Now()),
			truncateText(compactWhitespace(cube.Content), 60),
		)
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func formatClock(t time.Time) string {
	if t.IsZero() {
		return "--:--:--"
	}
	return t.UTC().Format("15:04:05")
}

func truncateText(s string, limit int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit <= 3 {
		return string(r[:limit])
	}
	return string(r[:limit-3]) + "..."
}

func compactWhitespace(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}
