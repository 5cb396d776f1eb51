// Package tui renders the kitchen board in a terminal: a work column with
// switchable orderings and a ready column, driven by board state updates.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/appetiteclub/kitchenboard/internal/board"
	"github.com/appetiteclub/kitchenboard/pkg/enums/ticketstatus"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	subscriberID  = "tui"
	actionTimeout = 10 * time.Second
	noticeFade    = 4 * time.Second
)

// Board is what the model needs from the coordinator.
type Board interface {
	Subscribe(id string) <-chan board.State
	Unsubscribe(id string)
	Refresh(ctx context.Context) error
	UpdateStatus(ctx context.Context, id int64, status ticketstatus.Status) error
	CompleteOneUnit(ctx context.Context, id int64) error
	CompleteAllUnits(ctx context.Context, id int64) error
	ServeOneUnit(ctx context.Context, id int64) error
	Rollback(ctx context.Context, id int64) error
}

type AvailabilityRefresher interface {
	Refresh(ctx context.Context) error
}

type Tab int

const (
	TabPriority Tab = iota
	TabDish
	TabTable
)

func (t Tab) String() string {
	switch t {
	case TabDish:
		return "By dish"
	case TabTable:
		return "By table"
	default:
		return "Priority"
	}
}

type Pane int

const (
	PaneWork Pane = iota
	PaneReady
)

type stateMsg struct {
	state board.State
}

type actionResultMsg struct {
	action string
	id     int64
	err    error
}

type noticeFadeMsg struct {
	seq int
}

// row is one rendered line of the work column. Group headers carry no card.
type row struct {
	header string
	card   *board.Card
}

type Model struct {
	board        Board
	availability AvailabilityRefresher
	keys         KeyMap
	help         help.Model
	styles       styles

	states <-chan board.State
	state  board.State

	tab         Tab
	focus       Pane
	workCursor  int
	readyCursor int

	notice    string
	noticeSeq int

	width  int
	height int
}

func NewModel(b Board, availability AvailabilityRefresher) Model {
	return Model{
		board:        b,
		availability: availability,
		keys:         DefaultKeyMap,
		help:         help.New(),
		styles:       defaultStyles(),
		states:       b.Subscribe(subscriberID),
		state:        board.State{Phase: board.PhaseIdle, Loading: true},
	}
}

func (m Model) Init() tea.Cmd {
	return listenForState(m.states)
}

// Close releases the model's state subscription.
func (m Model) Close() {
	m.board.Unsubscribe(subscriberID)
}

func listenForState(ch <-chan board.State) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		state, ok := <-ch
		if !ok {
			return nil
		}
		return stateMsg{state: state}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stateMsg:
		m.applyState(msg.state)
		return m, listenForState(m.states)

	case tea.FocusMsg:
		return m, m.refreshAvailabilityCmd()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case actionResultMsg:
		if msg.err != nil {
			return m.setNotice(fmt.Sprintf("%s #%d failed: %v", msg.action, msg.id, msg.err))
		}

	case noticeFadeMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
		}

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.FocusToggle):
		if m.focus == PaneWork {
			m.focus = PaneReady
		} else {
			m.focus = PaneWork
		}

	case key.Matches(msg, m.keys.TabPriority):
		m.switchTab(TabPriority)
	case key.Matches(msg, m.keys.TabDish):
		m.switchTab(TabDish)
	case key.Matches(msg, m.keys.TabTable):
		m.switchTab(TabTable)

	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)

	case key.Matches(msg, m.keys.Refresh):
		return m, m.refreshBoardCmd()

	case m.focus == PaneWork && key.Matches(msg, m.keys.Start):
		card := m.selectedCard()
		if card == nil || card.Status != ticketstatus.Statuses.Pending {
			return m, nil
		}
		return m, m.actionCmd("start", card.OrderDetailID, func(ctx context.Context, id int64) error {
			return m.board.UpdateStatus(ctx, id, ticketstatus.Statuses.InProgress)
		})

	case m.focus == PaneWork && key.Matches(msg, m.keys.CompleteOne):
		return m, m.selectedAction("complete one", m.board.CompleteOneUnit)

	case m.focus == PaneWork && key.Matches(msg, m.keys.CompleteAll):
		return m, m.selectedAction("complete all", m.board.CompleteAllUnits)

	case m.focus == PaneReady && key.Matches(msg, m.keys.Serve):
		return m, m.selectedAction("serve", m.board.ServeOneUnit)

	case m.focus == PaneReady && key.Matches(msg, m.keys.Rollback):
		return m, m.selectedAction("rollback", m.board.Rollback)
	}
	return m, nil
}

func (m *Model) applyState(state board.State) {
	workID := idOf(m.selectedWork())
	readyID := idOf(m.selectedReady())
	m.state = state
	m.workCursor = reselect(m.workRows(), workID, m.workCursor)
	m.readyCursor = reselectCards(state.Views.Ready, readyID, m.readyCursor)
}

func (m *Model) switchTab(tab Tab) {
	if m.tab == tab {
		return
	}
	m.tab = tab
	m.focus = PaneWork
	m.workCursor = firstCard(m.workRows())
}

func (m *Model) moveCursor(delta int) {
	if m.focus == PaneReady {
		m.readyCursor = clamp(m.readyCursor+delta, len(m.state.Views.Ready))
		return
	}
	rows := m.workRows()
	next := m.workCursor
	for {
		next += delta
		if next < 0 || next >= len(rows) {
			return
		}
		if rows[next].card != nil {
			m.workCursor = next
			return
		}
	}
}

func (m Model) setNotice(text string) (tea.Model, tea.Cmd) {
	m.noticeSeq++
	m.notice = text
	seq := m.noticeSeq
	return m, tea.Tick(noticeFade, func(time.Time) tea.Msg {
		return noticeFadeMsg{seq: seq}
	})
}

func (m Model) selectedCard() *board.Card {
	if m.focus == PaneReady {
		return m.selectedReady()
	}
	return m.selectedWork()
}

func (m Model) selectedWork() *board.Card {
	rows := m.workRows()
	if m.workCursor < 0 || m.workCursor >= len(rows) {
		return nil
	}
	return rows[m.workCursor].card
}

func (m Model) selectedReady() *board.Card {
	ready := m.state.Views.Ready
	if m.readyCursor < 0 || m.readyCursor >= len(ready) {
		return nil
	}
	return &ready[m.readyCursor]
}

func (m Model) selectedAction(name string, call func(context.Context, int64) error) tea.Cmd {
	card := m.selectedCard()
	if card == nil {
		return nil
	}
	return m.actionCmd(name, card.OrderDetailID, call)
}

func (m Model) actionCmd(name string, id int64, call func(context.Context, int64) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionResultMsg{action: name, id: id, err: call(ctx, id)}
	}
}

func (m Model) refreshBoardCmd() tea.Cmd {
	b := m.board
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionResultMsg{action: "refresh", err: b.Refresh(ctx)}
	}
}

func (m Model) refreshAvailabilityCmd() tea.Cmd {
	if m.availability == nil {
		return nil
	}
	a := m.availability
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionResultMsg{action: "availability", err: a.Refresh(ctx)}
	}
}

// workRows flattens the active ordering into selectable lines.
func (m Model) workRows() []row {
	v := m.state.Views
	var rows []row
	switch m.tab {
	case TabDish:
		for _, g := range v.ByDish {
			header := fmt.Sprintf("%s x%d", g.DishName, g.TotalQuantity)
			if g.Notes != "" {
				header += " (" + g.Notes + ")"
			}
			rows = append(rows, row{header: header})
			for i := range g.Cards {
				rows = append(rows, row{card: &g.Cards[i]})
			}
		}
	case TabTable:
		for _, g := range v.ByTable {
			rows = append(rows, row{header: "Table " + g.Table})
			for i := range g.Cards {
				rows = append(rows, row{card: &g.Cards[i]})
			}
		}
	default:
		for i := range v.Priority {
			rows = append(rows, row{card: &v.Priority[i]})
		}
	}
	return rows
}

func idOf(c *board.Card) int64 {
	if c == nil {
		return 0
	}
	return c.OrderDetailID
}

func reselect(rows []row, id int64, cursor int) int {
	if id != 0 {
		for i, r := range rows {
			if r.card != nil && r.card.OrderDetailID == id {
				return i
			}
		}
	}
	cursor = clamp(cursor, len(rows))
	if cursor < len(rows) && rows[cursor].card == nil {
		return firstCardFrom(rows, cursor)
	}
	return cursor
}

func reselectCards(cards []board.Card, id int64, cursor int) int {
	if id != 0 {
		for i, c := range cards {
			if c.OrderDetailID == id {
				return i
			}
		}
	}
	return clamp(cursor, len(cards))
}

func firstCard(rows []row) int {
	return firstCardFrom(rows, 0)
}

func firstCardFrom(rows []row, from int) int {
	for i := from; i < len(rows); i++ {
		if rows[i].card != nil {
			return i
		}
	}
	return 0
}

func clamp(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func (m Model) View() string {
	header := m.renderHeader()
	footer := m.renderFooter()

	bodyHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if bodyHeight < 3 {
		bodyHeight = 3
	}
	width := m.width
	if width <= 0 {
		width = 100
	}
	workWidth := width * 2 / 3
	readyWidth := width - workWidth

	work := m.renderWork(workWidth, bodyHeight)
	ready := m.renderReady(readyWidth, bodyHeight)
	body := lipgloss.JoinHorizontal(lipgloss.Top, work, ready)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m Model) renderHeader() string {
	var tabs []string
	for _, t := range []Tab{TabPriority, TabDish, TabTable} {
		label := fmt.Sprintf(" %d %s ", int(t)+1, t)
		if t == m.tab {
			tabs = append(tabs, m.styles.activeTab.Render(label))
		} else {
			tabs = append(tabs, m.styles.tab.Render(label))
		}
	}

	status := m.styles.offline.Render("● offline")
	if m.state.Connected {
		status = m.styles.online.Render("● live")
	}
	if m.state.Loading {
		status += " " + m.styles.muted.Render(string(m.state.Phase))
	}
	if !m.state.Now.IsZero() {
		status += " " + m.styles.muted.Render(m.state.Now.Local().Format("15:04:05"))
	}
	return strings.Join(tabs, "") + "  " + status
}

func (m Model) renderFooter() string {
	var lines []string
	if m.state.Error != "" {
		lines = append(lines, m.styles.errorText.Render("board: "+m.state.Error))
	}
	if m.notice != "" {
		lines = append(lines, m.styles.errorText.Render(m.notice))
	}
	bindings := m.keys.workHelp()
	if m.focus == PaneReady {
		bindings = m.keys.readyHelp()
	}
	lines = append(lines, m.help.ShortHelpView(bindings))
	return strings.Join(lines, "\n")
}

func (m Model) renderWork(width, height int) string {
	rows := m.workRows()
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, m.styles.title.Render(fmt.Sprintf("In the works (%d)", len(m.state.Views.Priority))))
	for i, r := range rows {
		if r.card == nil {
			lines = append(lines, m.styles.groupHeader.Render(r.header))
			continue
		}
		selected := m.focus == PaneWork && i == m.workCursor
		lines = append(lines, m.renderCard(*r.card, selected, width-2))
	}
	return m.styles.column(width, height, m.focus == PaneWork).Render(strings.Join(window(lines, height-2, m.workCursor+1), "\n"))
}

func (m Model) renderReady(width, height int) string {
	ready := m.state.Views.Ready
	lines := make([]string, 0, len(ready)+1)
	lines = append(lines, m.styles.title.Render(fmt.Sprintf("Ready (%d)", len(ready))))
	for i, c := range ready {
		selected := m.focus == PaneReady && i == m.readyCursor
		lines = append(lines, m.renderCard(c, selected, width-2))
	}
	return m.styles.column(width, height, m.focus == PaneReady).Render(strings.Join(window(lines, height-2, m.readyCursor+1), "\n"))
}

func (m Model) renderCard(c board.Card, selected bool, width int) string {
	table := c.TableNumber
	if table == "" {
		table = board.NoTable
	}
	text := fmt.Sprintf("%dx %s  T%s  %s", c.Quantity, c.DishName, table, formatElapsed(c.Elapsed))
	if c.Status == ticketstatus.Statuses.InProgress {
		text = "▶ " + text
	} else {
		text = "  " + text
	}
	if c.Notes != "" {
		text += "  " + c.Notes
	}
	if c.OutOfStock {
		text += "  [out of stock]"
	}

	style := m.styles.card
	switch {
	case c.Highlight == board.HighlightRollback:
		style = m.styles.rollback
	case c.Highlight == board.HighlightNew:
		style = m.styles.fresh
	case c.Overtime != nil && *c.Overtime:
		style = m.styles.overtime
	}
	if selected {
		style = style.Reverse(true)
	}
	return style.MaxWidth(width).Render(text)
}

func formatElapsed(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// window keeps the title line and scrolls the rest so that focus stays visible.
func window(lines []string, height, focus int) []string {
	if height <= 1 || len(lines) <= height {
		return lines
	}
	body := lines[1:]
	visible := height - 1
	start := 0
	if focus-1 >= visible {
		start = focus - visible
	}
	if start+visible > len(body) {
		start = len(body) - visible
	}
	return append([]string{lines[0]}, body[start:start+visible]...)
}
