package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Rohianon/folio/pkg/format"
	"github.com/Rohianon/folio/pkg/logger"
	"github.com/Rohianon/folio/pkg/models"
	"github.com/Rohianon/folio/pkg/refresh"
	"github.com/Rohianon/folio/pkg/render"
	"github.com/Rohianon/folio/pkg/state"
)

// Local supplies the client-side watchlist and alerts.
type Local interface {
	Watchlist() ([]string, error)
	Alerts() ([]models.PriceAlert, error)
}

type Options struct {
	Interval time.Duration
	Local    Local

	// Charts, when set, receives every applied frame.
	Charts *render.ChartRegistry
}

// Model is the live dashboard. The view is a projection of the last applied
// frame; all fetching happens in commands.
type Model struct {
	ctx  context.Context
	ctrl *refresh.Controller
	opts Options

	dash    *render.Dashboard
	snap    state.Snapshot
	watch   []render.WatchRow
	alerts  []render.AlertView
	notice  string
	loading bool
	width   int
}

type tickMsg time.Time

type refreshedMsg struct {
	result refresh.Result
	err    error
}

func New(ctrl *refresh.Controller, opts Options) *Model {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	return &Model{ctx: context.Background(), ctrl: ctrl, opts: opts, loading: true}
}

func tickEvery(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) refreshCmd(trigger refresh.Trigger) tea.Cmd {
	return func() tea.Msg {
		res, err := m.ctrl.Refresh(m.ctx, trigger)
		return refreshedMsg{result: res, err: err}
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.refreshCmd(refresh.TriggerInitial),
		tickEvery(m.opts.Interval),
	)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tickMsg:
		return m, tea.Batch(
			m.refreshCmd(refresh.TriggerTick),
			tickEvery(m.opts.Interval),
		)

	case refreshedMsg:
		return m, m.applyRefresh(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "r":
		return m, m.refreshCmd(refresh.TriggerManual)
	case "tab", "n":
		return m, m.cycleHolder(1)
	case "shift+tab", "p":
		return m, m.cycleHolder(-1)
	}
	return m, nil
}

func (m *Model) applyRefresh(msg refreshedMsg) tea.Cmd {
	if msg.err != nil {
		switch {
		case errors.Is(msg.err, refresh.ErrThrottled):
			m.notice = "Refresh requested too quickly"
		case errors.Is(msg.err, refresh.ErrNoHolder),
			errors.Is(msg.err, refresh.ErrInFlight),
			errors.Is(msg.err, refresh.ErrStale):
		default:
			m.notice = render.OneLine(msg.err)
		}
		return nil
	}

	// A frame finished rendering after the holder changed.
	if msg.result.Generation != m.ctrl.Generation() {
		return nil
	}

	d := render.BuildDashboard(msg.result.Snapshot, msg.result.Summary)
	m.dash = &d
	m.snap = msg.result.Snapshot
	m.loading = false
	m.notice = render.OneLine(msg.result.Err)
	m.loadLocal()
	m.drawCharts()

	if m.snap.SelectedHolder == 0 && len(m.snap.Holders) > 0 {
		m.ctrl.SelectHolder(m.snap.Holders[0].ID)
		m.loading = true
		return m.refreshCmd(refresh.TriggerInitial)
	}
	return nil
}

func (m *Model) loadLocal() {
	if m.opts.Local == nil {
		return
	}
	symbols, err := m.opts.Local.Watchlist()
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to load watchlist")
	}
	alerts, err := m.opts.Local.Alerts()
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to load price alerts")
	}
	m.watch = render.BuildWatchlist(symbols, m.snap)
	m.alerts = render.BuildAlerts(alerts, m.snap)
}

func (m *Model) drawCharts() {
	if m.opts.Charts == nil || m.dash == nil {
		return
	}
	for mount, spec := range render.DashboardCharts(*m.dash) {
		if _, err := m.opts.Charts.Upsert(mount, spec); err != nil && !errors.Is(err, render.ErrNoData) {
			logger.Warn().Err(err).Str("mount", mount).Msg("Chart render failed")
		}
	}
}

func (m *Model) cycleHolder(step int) tea.Cmd {
	holders := m.snap.Holders
	if len(holders) == 0 {
		return nil
	}

	idx := -1
	for i, h := range holders {
		if h.ID == m.snap.SelectedHolder {
			idx = i
			break
		}
	}
	next := holders[((idx+step)%len(holders)+len(holders))%len(holders)]
	if idx < 0 && step < 0 {
		next = holders[len(holders)-1]
	}

	m.ctrl.SelectHolder(next.ID)
	m.snap.SelectedHolder = next.ID
	m.loading = true
	return m.refreshCmd(refresh.TriggerInitial)
}

func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(render.HeaderStyle.Render("folio"))
	b.WriteString(render.MutedStyle.Render(fmt.Sprintf("  %s · every %s", m.ctrl.Phase(), m.opts.Interval)))
	b.WriteString("\n\n")

	if m.dash == nil {
		b.WriteString(render.MutedStyle.Render("Loading…"))
		b.WriteString("\n")
		m.footer(&b)
		return b.String()
	}

	d := m.dash
	b.WriteString(render.SummaryCards(d.Cards))
	b.WriteString("\n\n")

	if m.loading {
		b.WriteString(render.MutedStyle.Render("Loading holder…"))
		b.WriteString("\n")
	} else {
		render.HoldingsTable(&b, d.Positions)
	}
	b.WriteString("\n")

	b.WriteString(render.HeaderStyle.Render("Sector allocation"))
	b.WriteString("\n")
	render.SectorBars(&b, d.Sectors)
	render.Diversification(&b, d.Advice)
	b.WriteString("\n")

	recs := d.Recommendations
	if len(recs) > 5 {
		recs = recs[:5]
	}
	b.WriteString(render.HeaderStyle.Render("Recommendations"))
	b.WriteString(render.MutedStyle.Render(fmt.Sprintf("  buy %d · hold %d · sell %d",
		d.ActionCounts[models.ActionBuy], d.ActionCounts[models.ActionHold], d.ActionCounts[models.ActionSell])))
	b.WriteString("\n")
	render.RecommendationsGrid(&b, recs)
	b.WriteString("\n")

	b.WriteString(render.HeaderStyle.Render("Heat map"))
	b.WriteString("  ")
	b.WriteString(render.HeatStatsLine(d.HeatStats))
	b.WriteString("\n")

	if len(m.watch) > 0 {
		b.WriteString("\n")
		b.WriteString(render.HeaderStyle.Render("Watchlist"))
		b.WriteString("\n")
		render.WatchlistTable(&b, m.watch)
	}

	for _, a := range m.alerts {
		if a.Triggered {
			b.WriteString(render.WarningStyle.Render(fmt.Sprintf("⚠ %s is %s %s (now %s)",
				a.Symbol, strings.ToLower(string(a.Condition)), format.Currency(a.Target), format.Currency(a.Current))))
			b.WriteString("\n")
		}
	}

	m.footer(&b)
	return b.String()
}

func (m *Model) footer(b *strings.Builder) {
	b.WriteString("\n")
	if m.notice != "" {
		b.WriteString(render.LossStyle.Render("✗ ") + m.notice)
		b.WriteString("\n")
	}
	b.WriteString(render.MutedStyle.Render("r refresh · tab/n next holder · shift+tab/p previous · q quit"))
	b.WriteString("\n")
}

// Run starts the dashboard and blocks until the user quits or ctx ends.
func Run(ctx context.Context, ctrl *refresh.Controller, opts Options) error {
	m := New(ctrl, opts)
	m.ctx = ctx
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// RenderOnce loads the dashboard synchronously and returns one frame. It is
// used when output is not a terminal.
func RenderOnce(ctx context.Context, ctrl *refresh.Controller, opts Options) string {
	m := New(ctrl, opts)
	m.ctx = ctx

	// Initial load, plus one more cycle when a holder gets auto-selected.
	cmd := m.refreshCmd(refresh.TriggerInitial)
	for i := 0; i < 2 && cmd != nil; i++ {
		msg, ok := cmd().(refreshedMsg)
		if !ok {
			break
		}
		cmd = m.applyRefresh(msg)
	}
	return m.View()
}
