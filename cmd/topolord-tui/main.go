package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/topolord/topolord/pkg/client"
	"github.com/topolord/topolord/pkg/layout"
	"github.com/topolord/topolord/pkg/topology"
)

// Config
const (
	pollRate       = 2 * time.Second
	viewportHeight = 18
	requestTimeout = 2 * time.Second
)

// Styles
var (
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			Width(100)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(100)

	columnStyle = lipgloss.NewStyle().MarginRight(3)

	nodeStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	cursorNodeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	selectedNodeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	discoveredStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))
	appBadgeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

type tickMsg time.Time

type dataMsg struct {
	graph *topology.Graph
	err   error
}

type settingsMsg struct {
	settings topology.Settings
	err      error
}

type mutateMsg struct {
	note string
	err  error
}

type model struct {
	api        *client.Client
	backoff    *client.ExponentialBackoff
	failures   int
	spinner    spinner.Model
	viewport   viewport.Model
	graph      *topology.Graph
	reconciler *layout.Reconciler
	nodes      []layout.Node
	cursor     int
	selected   map[string]bool
	note       string
	err        error
	ready      bool
}

func initialModel() model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	vp := viewport.New(100, viewportHeight)
	vp.Style = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		PaddingRight(2)

	return model{
		api:        client.NewClient(os.Getenv("TOPOLORD_URL")),
		backoff:    client.DefaultBackoff(),
		spinner:    s,
		viewport:   vp,
		reconciler: layout.NewReconciler(layout.NewEngine(layout.DefaultConfig())),
		selected:   make(map[string]bool),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		fetchSettings(m.api),
		fetchTopology(m.api),
		tick(pollRate),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.services())-1 {
				m.cursor++
			}
		case " ":
			if svc := m.cursorService(); svc != nil {
				if m.selected[svc.ID] {
					delete(m.selected, svc.ID)
				} else {
					m.selected[svc.ID] = true
				}
			}
		case "esc":
			m.selected = make(map[string]bool)
		case "a":
			if cmd := m.applicationCmd(); cmd != nil {
				return m, cmd
			}
		default:
			m.viewport, cmd = m.viewport.Update(msg)
			cmds = append(cmds, cmd)
		}
		m.updateViewportContent()
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		cmds = append(cmds, fetchTopology(m.api), tick(m.nextPoll()))

	case settingsMsg:
		// Daemon settings pick the layout direction and whether edge-only
		// changes re-key positions. Unreachable daemon: keep the defaults.
		if msg.err == nil {
			cfg := layout.DefaultConfig()
			cfg.Direction = msg.settings.LayoutDirection
			cfg.NodeSep = float64(msg.settings.NodeSep)
			cfg.RankSep = float64(msg.settings.RankSep)
			cfg.IncludeEdges = msg.settings.RekeyOnEdges
			m.reconciler = layout.NewReconciler(layout.NewEngine(cfg))
			if m.graph != nil {
				m.nodes = m.reconciler.Apply(m.graph.Services, m.graph.Dependencies)
				m.updateViewportContent()
			}
		}

	case dataMsg:
		if msg.err != nil {
			m.err = msg.err
			m.failures++
		} else {
			m.err = nil
			m.failures = 0
			m.graph = msg.graph
			m.nodes = m.reconciler.Apply(msg.graph.Services, msg.graph.Dependencies)
			if m.cursor >= len(msg.graph.Services) {
				m.cursor = 0
			}
			m.updateViewportContent()
		}
		m.ready = true

	case mutateMsg:
		if msg.err != nil {
			m.note = errorStyle.Render(fmt.Sprintf("Failed: %v", msg.err))
		} else {
			m.note = okStyle.Render(msg.note)
			m.selected = make(map[string]bool)
		}
		cmds = append(cmds, fetchTopology(m.api))

	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = viewportHeight
	}

	return m, tea.Batch(cmds...)
}

// services returns the graph's services sorted by id for a stable cursor.
func (m model) services() []topology.Service {
	if m.graph == nil {
		return nil
	}
	out := make([]topology.Service, len(m.graph.Services))
	copy(out, m.graph.Services)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m model) cursorService() *topology.Service {
	services := m.services()
	if m.cursor < 0 || m.cursor >= len(services) {
		return nil
	}
	return &services[m.cursor]
}

func (m model) selectedServices() []topology.Service {
	var out []topology.Service
	for _, svc := range m.services() {
		if m.selected[svc.ID] {
			out = append(out, svc)
		}
	}
	return out
}

// applicationCmd starts the create or edit flow for the current selection.
func (m model) applicationCmd() tea.Cmd {
	if m.graph == nil {
		return nil
	}
	selected := m.selectedServices()
	action, app := topology.InferSelectionAction(selected, m.graph.Applications)

	ids := make([]string, 0, len(selected))
	for _, svc := range selected {
		ids = append(ids, svc.ID)
	}

	api := m.api
	switch action {
	case topology.ActionCreateApplication:
		name := fmt.Sprintf("%s-group", ids[0])
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			created, err := api.CreateApplication(ctx, client.ApplicationRequest{Name: name, ServiceIDs: ids})
			if err != nil {
				return mutateMsg{err: err}
			}
			return mutateMsg{note: fmt.Sprintf("Created application %s", created.Name)}
		}
	case topology.ActionEditApplication:
		appID, appName := app.ID, app.Name
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			_, err := api.UpdateApplication(ctx, appID, client.ApplicationRequest{Name: appName, ServiceIDs: ids})
			if err != nil {
				return mutateMsg{err: err}
			}
			return mutateMsg{note: fmt.Sprintf("Updated application %s", appName)}
		}
	default:
		return nil
	}
}

func (m *model) updateViewportContent() {
	if m.graph == nil {
		return
	}

	// Group placed nodes into rank columns, leftmost first. Within a
	// column the layout's Y order is the display order.
	byX := make(map[float64][]layout.Node)
	for _, n := range m.nodes {
		byX[n.Position.X] = append(byX[n.Position.X], n)
	}
	xs := make([]float64, 0, len(byX))
	for x := range byX {
		xs = append(xs, x)
	}
	sort.Float64s(xs)

	cursorID := ""
	if svc := m.cursorService(); svc != nil {
		cursorID = svc.ID
	}

	columns := make([]string, 0, len(xs))
	for _, x := range xs {
		col := byX[x]
		sort.Slice(col, func(i, j int) bool { return col[i].Position.Y < col[j].Position.Y })

		var sb strings.Builder
		for _, n := range col {
			sb.WriteString(m.renderNode(n.Service, cursorID) + "\n")
		}
		columns = append(columns, columnStyle.Render(sb.String()))
	}

	m.viewport.SetContent(lipgloss.JoinHorizontal(lipgloss.Top, columns...))
}

func (m model) renderNode(svc topology.Service, cursorID string) string {
	label := svc.DisplayName
	if label == "" {
		label = svc.ID
	}
	if !svc.IsManual {
		label = discoveredStyle.Render(label + " ⇣")
	}
	if n := len(svc.ApplicationIDs); n > 0 {
		label += appBadgeStyle.Render(fmt.Sprintf(" [%d]", n))
	}

	switch {
	case svc.ID == cursorID:
		return cursorNodeStyle.Render("> " + label)
	case m.selected[svc.ID]:
		return selectedNodeStyle.Render("* " + label)
	default:
		return nodeStyle.Render("  " + label)
	}
}

func (m model) View() string {
	if !m.ready {
		return fmt.Sprintf("\n%s Connecting...", m.spinner.View())
	}

	header := headerStyle.Render(fmt.Sprintf("%s Topology Map", m.spinner.View()))
	mapPane := m.viewport.View()

	// Detail pane for the cursor service.
	var detail strings.Builder
	if svc := m.cursorService(); svc != nil {
		detail.WriteString(fmt.Sprintf("%s  team=%s  category=%s", svc.ID, orDash(svc.Team), orDash(svc.Category)))
		if svc.IsManual {
			detail.WriteString("  manual")
		} else {
			detail.WriteString("  discovered:" + svc.SourceProvider)
		}
	} else {
		detail.WriteString(subtleStyle.Render("No services. Import a topology or enable discovery."))
	}
	detailPane := paneStyle.Render(detail.String())

	// Status footer: connection state, selection and the inferred action.
	var status string
	if m.err != nil {
		status = errorStyle.Render(fmt.Sprintf("Offline: %v", m.err))
	} else {
		deps := 0
		if m.graph != nil {
			deps = len(m.graph.Dependencies)
		}
		status = okStyle.Render(fmt.Sprintf("Online • %d Services • %d Dependencies", len(m.services()), deps))
	}

	action := ""
	if m.graph != nil && len(m.selected) > 0 {
		inferred, app := topology.InferSelectionAction(m.selectedServices(), m.graph.Applications)
		switch inferred {
		case topology.ActionCreateApplication:
			action = fmt.Sprintf(" • %d selected, 'a' creates application", len(m.selected))
		case topology.ActionEditApplication:
			action = fmt.Sprintf(" • %d selected, 'a' edits %s", len(m.selected), app.Name)
		}
	}

	footer := subtleStyle.Render(fmt.Sprintf("\n%s%s\n%s\n↑/↓ move • space select • a apply • esc clear • q quit", status, action, m.note))

	return lipgloss.JoinVertical(lipgloss.Left, header, mapPane, detailPane, footer)
}

// nextPoll stretches the poll rate while the daemon is unreachable.
func (m model) nextPoll() time.Duration {
	if m.failures == 0 {
		return pollRate
	}
	return m.backoff.Next(m.failures)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Commands

func fetchTopology(api *client.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		graph, err := api.GetTopology(ctx)
		if err != nil {
			return dataMsg{err: err}
		}
		return dataMsg{graph: graph}
	}
}

func fetchSettings(api *client.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		settings, err := api.GetSettings(ctx)
		return settingsMsg{settings: settings, err: err}
	}
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func main() {
	p := tea.NewProgram(initialModel(), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
