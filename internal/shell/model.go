package shell

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/chrisapx/fif-client-sub000/internal/activity"
	"github.com/chrisapx/fif-client-sub000/internal/app"
	"github.com/chrisapx/fif-client-sub000/internal/common"
	"github.com/chrisapx/fif-client-sub000/internal/fineract"
	"github.com/chrisapx/fif-client-sub000/internal/session"
	"github.com/sirupsen/logrus"
)

// Origin tags activity emitted by the shell.
const Origin = "shell"

type Emitter interface {
	Emit(kind activity.Kind, origin string) bool
}

// Session is the part of the session manager the shell reads and ends.
// Destroy may call back into the running program, so it only runs from a
// tea.Cmd and never inside Update.
type Session interface {
	Snapshot() session.Snapshot
	Destroy()
}

// Navigator turns a selection into a link and back.
type Navigator interface {
	SelectionLink(sel app.Selection) (string, error)
	ResolveSelection(input string) *app.Selection
}

type Loader func(ctx context.Context) ([]app.Selection, error)

type Options struct {
	// Context bounds account loads. Defaults to context.Background.
	Context   context.Context
	Username  string
	Activity  Emitter
	Session   Session
	Navigator Navigator
	Load      Loader
	Now       func() time.Time
}

type view int

const (
	viewAccounts view = iota
	viewDetail
)

type accountsMsg struct {
	selections []app.Selection
	background bool
}

type errorMsg struct {
	err error
}

type statusTickMsg time.Time

type expiredMsg struct{}

// sessionEndedMsg follows a Destroy issued by the shell itself.
type sessionEndedMsg struct{}

type item struct {
	sel app.Selection
}

func (i item) Title() string {
	return fmt.Sprintf("%s  %s", common.MaskAccountNumber(i.sel.AccountNo), i.sel.Name)
}

func (i item) Description() string {
	return fmt.Sprintf("%s · %s · %s", i.sel.Kind, formatAmount(i.sel.Balance, i.sel.Currency), i.sel.Status)
}

func (i item) FilterValue() string {
	return i.sel.AccountNo + " " + i.sel.Name
}

type Model struct {
	opts Options

	list    list.Model
	spinner spinner.Model
	loading bool
	view    view

	link       string
	detail     *app.Selection
	err        error
	expired    bool
	rejected   bool
	loggingOut bool
	loggedOut  bool
	quitting   bool

	lastRefresh time.Time
}

func NewModel(opts Options) Model {

	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#3b82f6"))

	l := list.New(nil, list.NewDefaultDelegate(), 80, 20)
	l.Title = "Accounts"
	l.DisableQuitKeybindings()
	l.SetShowHelp(false)

	return Model{
		opts:    opts,
		list:    l,
		spinner: s,
		loading: true,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load(), statusTick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {

	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.emit(activity.KeyPress)
		return m.handleKey(msg)

	case tea.MouseMsg:
		if kind, ok := mouseActivity(msg); ok {
			m.emit(kind)
		}
		if m.view == viewAccounts {
			var cmd tea.Cmd
			m.list, cmd = m.list.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height-4)
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case statusTickMsg:
		return m, statusTick()

	case accountsMsg:
		logrus.WithFields(logrus.Fields{
			"accounts":   len(msg.selections),
			"background": msg.background,
		}).Debugln("Accounts loaded")
		m.loading = false
		m.err = nil
		m.lastRefresh = m.opts.Now()
		items := make([]list.Item, 0, len(msg.selections))
		for _, sel := range msg.selections {
			items = append(items, item{sel: sel})
		}
		return m, m.list.SetItems(items)

	case errorMsg:
		m.loading = false
		m.err = msg.err
		if errors.Is(msg.err, fineract.ErrUnauthorized) && !m.rejected {
			logrus.WithError(msg.err).Warnln("Server rejected the session, logging out")
			m.rejected = true
			return m, m.endSession()
		}
		return m, nil

	case expiredMsg, sessionEndedMsg:
		return m.ended(), tea.Quit
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {

	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	if m.view == viewDetail {
		switch msg.String() {
		case "esc", "backspace", "left", "h":
			m.view = viewAccounts
			m.detail = nil
			m.link = ""
		case "q":
			m.quitting = true
			return m, tea.Quit
		case "L":
			return m.logout()
		}
		return m, nil
	}

	if m.list.FilterState() != list.Filtering {
		switch msg.String() {
		case "q":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.loading = true
			return m, tea.Batch(m.spinner.Tick, m.load())
		case "L":
			return m.logout()
		case "enter":
			return m.open(), nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// open hands the highlighted account to the detail view through an encoded
// link, the same way an external deep link would arrive.
func (m Model) open() Model {

	selected, ok := m.list.SelectedItem().(item)
	if !ok {
		return m
	}

	link, err := m.opts.Navigator.SelectionLink(selected.sel)
	if err != nil {
		logrus.WithError(err).Errorln("Failed to encode selection")
		m.err = err
		return m
	}

	m.link = link
	m.detail = m.opts.Navigator.ResolveSelection(link)
	m.view = viewDetail
	return m
}

func (m Model) logout() (tea.Model, tea.Cmd) {
	if m.loggingOut {
		return m, nil
	}
	m.loggingOut = true
	return m, m.endSession()
}

// endSession destroys the session off the event loop. The expiry callback
// sends expiredMsg back into the program while Destroy runs.
func (m Model) endSession() tea.Cmd {
	s := m.opts.Session
	return func() tea.Msg {
		if s != nil {
			s.Destroy()
		}
		return sessionEndedMsg{}
	}
}

// ended records why the session is gone. Whichever of expiredMsg and
// sessionEndedMsg arrives first decides, the second is a no-op.
func (m Model) ended() Model {
	if m.expired || m.loggedOut {
		return m
	}
	if m.loggingOut {
		m.loggedOut = true
	} else {
		m.expired = true
	}
	return m
}

func (m Model) emit(kind activity.Kind) {
	if m.opts.Activity != nil {
		m.opts.Activity.Emit(kind, Origin)
	}
}

func (m Model) load() tea.Cmd {
	ctx, load := m.opts.Context, m.opts.Load
	return func() tea.Msg {
		if load == nil {
			return accountsMsg{}
		}
		selections, err := load(ctx)
		if err != nil {
			return errorMsg{err: err}
		}
		return accountsMsg{selections: selections}
	}
}

func statusTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return statusTickMsg(t)
	})
}

// mouseActivity maps a terminal mouse event onto an activity kind.
func mouseActivity(msg tea.MouseMsg) (activity.Kind, bool) {

	if tea.MouseEvent(msg).IsWheel() {
		return activity.Scroll, true
	}

	switch msg.Action {
	case tea.MouseActionPress:
		return activity.PointerDown, true
	case tea.MouseActionRelease:
		return activity.Click, true
	case tea.MouseActionMotion:
		return activity.PointerMove, true
	}

	return 0, false
}

func (m Model) View() string {

	if m.loggedOut {
		return "Logged out.\n"
	}

	if m.expired {
		headline := "Your session has expired."
		if m.rejected {
			headline = "The server rejected your login."
		}
		return warningStyle.Render(headline) +
			"\nRun `fif login` to sign in again.\n"
	}

	if m.quitting {
		return ""
	}

	var content strings.Builder

	content.WriteString(titleStyle.Render("fif"))
	if len(m.opts.Username) > 0 {
		content.WriteString(" " + m.opts.Username)
	}
	content.WriteString("\n\n")

	switch {
	case m.loading:
		content.WriteString(fmt.Sprintf(" %s Loading accounts...\n", m.spinner.View()))
	case m.view == viewDetail:
		content.WriteString(m.detailView())
	default:
		content.WriteString(m.list.View())
		content.WriteString("\n")
	}

	if m.err != nil {
		content.WriteString("\n" + errorStyle.Render(fmt.Sprintf("Error: %s", m.err.Error())) + "\n")
	}

	content.WriteString("\n" + m.statusLine() + "\n")
	content.WriteString(helpStyle.Render(m.help()) + "\n")

	return content.String()
}

func (m Model) detailView() string {

	if m.detail == nil {
		return warningStyle.Render("No account selected.") + "\n"
	}

	rows := [][2]string{
		{"Type", string(m.detail.Kind)},
		{"Account", m.detail.AccountNo},
		{"Product", m.detail.Name},
		{"Status", m.detail.Status},
		{"Balance", formatAmount(m.detail.Balance, m.detail.Currency)},
	}

	var content strings.Builder
	for _, row := range rows {
		content.WriteString(labelStyle.Render(row[0]))
		content.WriteString(valueStyle.Render(row[1]))
		content.WriteString("\n")
	}
	return content.String()
}

func (m Model) statusLine() string {

	if m.opts.Session == nil {
		return ""
	}

	snapshot := m.opts.Session.Snapshot()
	if snapshot.State != session.StateActive {
		return warningStyle.Render("Session inactive")
	}

	remaining := snapshot.ExpiresAt().Sub(m.opts.Now())
	line := fmt.Sprintf("Session expires in %s", common.FormatDurationRemaining(remaining))
	if !m.lastRefresh.IsZero() {
		line += fmt.Sprintf(" · updated %s", m.lastRefresh.Format("15:04:05"))
	}
	return statusStyle.Render(line)
}

func (m Model) help() string {
	if m.view == viewDetail {
		return "esc back · L logout · q quit"
	}
	return "enter open · / filter · r refresh · L logout · q quit"
}

func formatAmount(amount float64, currency string) string {
	if len(currency) == 0 {
		return fmt.Sprintf("%.2f", amount)
	}
	return fmt.Sprintf("%s %.2f", currency, amount)
}
