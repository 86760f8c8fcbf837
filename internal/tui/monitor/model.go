package monitor

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/marcus/worklog/internal/authgate"
	"github.com/marcus/worklog/internal/feed"
	"github.com/marcus/worklog/internal/logview"
	"github.com/marcus/worklog/internal/models"
	"github.com/marcus/worklog/internal/version"
)

// HelpMarkdown is the key reference shown by the help overlay.
//
//go:embed help.md
var HelpMarkdown string

// Auth is the identity provider surface the monitor drives.
type Auth interface {
	OnSessionChange(fn func(models.Session)) (cancel func())
	SignIn(ctx context.Context, email, password string) error
	SignUp(ctx context.Context, email, password, displayName string) error
	SignOut(ctx context.Context) error
}

// Config wires the monitor to its collaborators.
type Config struct {
	Auth       Auth
	Store      feed.Store
	Collection string
	Version    string
	Timeout    time.Duration // per request; defaults to DefaultTimeout

	// CheckUpdates looks for a newer release in the background.
	CheckUpdates bool
}

// DefaultTimeout bounds each sign-in, sign-up and write request.
const DefaultTimeout = 15 * time.Second

// MinWidth is the minimum terminal width for proper display
const MinWidth = 40

// MinHeight is the minimum terminal height for proper display
const MinHeight = 10

// Model is the main Bubble Tea model for the work log TUI
type Model struct {
	// Window dimensions
	Width  int
	Height int

	rows  *rowList
	sync  *logview.Sync
	gate  *authgate.Gate
	pipes *pipes

	auth        Auth
	store       feed.Store
	collection  string
	unsubscribe func()
	timeout     time.Duration

	// UI state
	keys      keyMap
	help      help.Model
	spinner   spinner.Model
	FormState *FormState
	FormOpen  bool
	ShowHelp  bool
	helpView  string
	Status    string
	StatusErr bool
	Version   string

	checkUpdates bool
	updateMsg    *version.UpdateAvailableMsg
}

// Done messages for requests started from the UI.
type (
	formDoneMsg struct {
		kind FormKind
		err  error
	}
	deleteDoneMsg struct {
		id  string
		err error
	}
	signOutDoneMsg struct{ err error }
)

// NewModel creates the monitor model and registers it for session changes.
// Call Close once the program has exited.
func NewModel(cfg Config) Model {
	if cfg.Collection == "" {
		cfg.Collection = models.CollectionLogs
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	rows := &rowList{}
	p := newPipes()

	s := logview.New(cfg.Store, rows, cfg.Collection)
	s.Deliver = p.deliver
	s.OnError = p.feedError

	g := authgate.New(rows, s)
	g.OnError = p.feedError

	h := help.New()
	h.ShortSeparator = "  "

	m := Model{
		rows:       rows,
		sync:       s,
		gate:       g,
		pipes:      p,
		auth:       cfg.Auth,
		store:      cfg.Store,
		collection: cfg.Collection,
		timeout:    cfg.Timeout,
		keys:       defaultKeys(),
		help:       h,
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(spinnerStyle)),
		Version:    cfg.Version,

		checkUpdates: cfg.CheckUpdates,
	}
	m.keys.setLoggedIn(false)
	m.unsubscribe = cfg.Auth.OnSessionChange(p.session)
	return m
}

// Close detaches from the identity provider and the feed.
func (m Model) Close() {
	m.pipes.close()
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.sync.Stop()
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.pipes.waitForSession(),
		m.pipes.waitForBatch(),
		m.pipes.waitForError(),
	}
	if m.checkUpdates {
		cmds = append(cmds, version.CheckAsync(m.Version))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.help.Width = msg.Width
		if m.ShowHelp {
			m.helpView = m.renderHelpMarkdown()
		}
		if m.FormOpen {
			m.FormState.Form.WithWidth(m.formWidth())
		}
		return m, nil

	case batchMsg:
		m.sync.Apply(logview.Batch(msg))
		return m, m.pipes.waitForBatch()

	case sessionMsg:
		m.handleSession(models.Session(msg))
		return m, m.pipes.waitForSession()

	case feedErrMsg:
		m.setError(msg.err)
		return m, m.pipes.waitForError()

	case formDoneMsg:
		return m.handleFormDone(msg)

	case deleteDoneMsg:
		if msg.err != nil {
			m.setError(msg.err)
		} else {
			m.setStatus("deleted")
		}
		return m, nil

	case signOutDoneMsg:
		if msg.err != nil {
			m.setError(fmt.Errorf("log out: %w", msg.err))
		} else {
			m.setStatus("logged out")
		}
		return m, nil

	case version.UpdateAvailableMsg:
		m.updateMsg = &msg
		slog.Info("update available", "current", msg.CurrentVersion, "latest", msg.LatestVersion)
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.FormOpen {
			return m.handleFormKey(msg)
		}
		return m.handleKey(msg)
	}

	if m.FormOpen {
		return m.updateForm(msg)
	}
	return m, nil
}

// handleSession hands a transition to the gate and syncs the key sets.
func (m *Model) handleSession(sess models.Session) {
	m.gate.Handle(sess)
	m.keys.setLoggedIn(m.rows.loggedIn)

	if !m.rows.loggedIn && m.FormOpen && (m.FormState.Kind == FormAdd || m.FormState.Kind == FormEdit) {
		m.closeForm()
	}
	if sess.IsAuthenticated() {
		m.setStatus("signed in as " + sess.Identity.Label())
	}
}

// handleKey processes key input outside of forms
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.ShowHelp {
		switch {
		case key.Matches(msg, m.keys.Help), key.Matches(msg, m.keys.Cancel):
			m.ShowHelp = false
			return m, nil
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.ShowHelp = true
		m.helpView = m.renderHelpMarkdown()
		return m, nil

	case key.Matches(msg, m.keys.Login):
		return m.openForm(NewFormState(FormLogin))

	case key.Matches(msg, m.keys.SignUp):
		return m.openForm(NewFormState(FormSignUp))

	case key.Matches(msg, m.keys.Up):
		m.rows.move(-1)
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.rows.move(1)
		return m, nil

	case key.Matches(msg, m.keys.Add):
		return m.openForm(NewFormState(FormAdd))

	case key.Matches(msg, m.keys.Edit):
		rec, ok := m.rows.selected()
		if !ok {
			return m, nil
		}
		return m.openForm(NewFormStateForEdit(rec))

	case key.Matches(msg, m.keys.Delete):
		rec, ok := m.rows.selected()
		if !ok {
			return m, nil
		}
		m.setStatus("deleting " + rec.Name)
		return m, m.deleteRecord(rec.ID)

	case key.Matches(msg, m.keys.Logout):
		return m, m.signOut()
	}

	return m, nil
}

// openForm shows fs as the modal.
func (m Model) openForm(fs *FormState) (tea.Model, tea.Cmd) {
	m.FormState = fs
	m.FormOpen = true
	m.FormState.Form.WithWidth(m.formWidth())
	return m, m.FormState.Form.Init()
}

// closeForm hides and discards the modal.
func (m *Model) closeForm() {
	m.FormOpen = false
	m.FormState = nil
}

func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.closeForm()
		return m, nil
	case tea.KeyCtrlC:
		return m, tea.Quit
	}
	if m.FormState.Submitting {
		return m, nil
	}
	return m.updateForm(msg)
}

// updateForm forwards msg to the huh form and submits once it completes.
func (m Model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := m.FormState.Form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.FormState.Form = f
	}

	if m.FormState.Form.State == huh.StateCompleted && !m.FormState.Submitting {
		return m.submitForm()
	}
	return m, cmd
}

// submitForm starts the request for the open form. The form stays open
// until the request succeeds.
func (m Model) submitForm() (tea.Model, tea.Cmd) {
	fs := m.FormState
	fs.Submitting = true
	fs.Err = ""

	var run func(ctx context.Context) error
	switch fs.Kind {
	case FormLogin:
		email, password := strings.TrimSpace(fs.Email), fs.Password
		run = func(ctx context.Context) error { return m.auth.SignIn(ctx, email, password) }
	case FormSignUp:
		email, password, name := strings.TrimSpace(fs.Email), fs.Password, strings.TrimSpace(fs.DisplayName)
		run = func(ctx context.Context) error { return m.auth.SignUp(ctx, email, password, name) }
	case FormAdd:
		rec := fs.ToRecord()
		run = func(ctx context.Context) error {
			_, err := m.store.Add(ctx, m.collection, rec)
			return err
		}
	case FormEdit:
		rec := fs.ToRecord()
		run = func(ctx context.Context) error { return m.store.Update(ctx, m.collection, rec) }
	}

	kind, timeout := fs.Kind, m.timeout
	request := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return formDoneMsg{kind: kind, err: run(ctx)}
	}
	return m, tea.Batch(request, m.spinner.Tick)
}

func (m Model) handleFormDone(msg formDoneMsg) (tea.Model, tea.Cmd) {
	if !m.FormOpen || m.FormState.Kind != msg.kind {
		// Closed while the request was in flight.
		if msg.err != nil {
			m.setError(msg.err)
		}
		return m, nil
	}

	if msg.err != nil {
		slog.Warn("form submit failed", "form", msg.kind, "err", msg.err)
		m.FormState.Retry(describeError(msg.err))
		m.FormState.Form.WithWidth(m.formWidth())
		return m, m.FormState.Form.Init()
	}

	switch msg.kind {
	case FormAdd:
		m.setStatus("added")
	case FormEdit:
		m.setStatus("saved")
	}
	m.closeForm()
	return m, nil
}

func (m Model) deleteRecord(id string) tea.Cmd {
	s, timeout := m.sync, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return deleteDoneMsg{id: id, err: s.Delete(ctx, id)}
	}
}

func (m Model) signOut() tea.Cmd {
	auth, timeout := m.auth, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return signOutDoneMsg{err: auth.SignOut(ctx)}
	}
}

func (m Model) busy() bool {
	return m.FormOpen && m.FormState.Submitting
}

func (m *Model) setStatus(s string) {
	m.Status = s
	m.StatusErr = false
}

func (m *Model) setError(err error) {
	m.Status = describeError(err).Error()
	m.StatusErr = true
}

// describeError trims wrapper prefixes that mean nothing on screen.
func describeError(err error) error {
	var wf *feed.WriteFailure
	if errors.As(err, &wf) {
		return fmt.Errorf("%s failed: %w", wf.Op, wf.Err)
	}
	var tf *feed.TransientFeedError
	if errors.As(err, &tf) {
		return fmt.Errorf("feed interrupted, retrying: %w", tf.Err)
	}
	return err
}

// View implements tea.Model
func (m Model) View() string {
	return m.renderView()
}
