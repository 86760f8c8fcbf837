package monitor

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/marcus/worklog/internal/logview"
	"github.com/marcus/worklog/internal/models"
)

// row is one rendered work log entry.
type row struct {
	rec models.LogRecord
}

// rowList is the on-screen list of entries. It is the logview.View the
// sync renders into and the authgate.Visibility the gate toggles. All
// methods run on the bubbletea goroutine.
type rowList struct {
	rows        []*row
	placeholder string
	loggedIn    bool
	cursor      int
}

func (l *rowList) AppendRow(rec models.LogRecord) logview.Row {
	r := &row{rec: rec}
	l.rows = append(l.rows, r)
	return r
}

func (l *rowList) UpdateRow(handle logview.Row, rec models.LogRecord) {
	handle.(*row).rec = rec
}

func (l *rowList) RemoveRow(handle logview.Row) {
	for i, r := range l.rows {
		if r == handle {
			l.rows = append(l.rows[:i], l.rows[i+1:]...)
			break
		}
	}
	l.clamp()
}

func (l *rowList) ShowPlaceholder(text string) { l.placeholder = text }
func (l *rowList) ClearPlaceholder()           { l.placeholder = "" }
func (l *rowList) SetLoggedIn(b bool)          { l.loggedIn = b }

// move shifts the cursor by delta, staying within the list.
func (l *rowList) move(delta int) {
	l.cursor += delta
	l.clamp()
}

func (l *rowList) clamp() {
	if l.cursor >= len(l.rows) {
		l.cursor = len(l.rows) - 1
	}
	if l.cursor < 0 {
		l.cursor = 0
	}
}

// selected returns the record under the cursor.
func (l *rowList) selected() (models.LogRecord, bool) {
	if len(l.rows) == 0 {
		return models.LogRecord{}, false
	}
	return l.rows[l.cursor].rec, true
}

// Messages carried from background goroutines into Update.
type (
	batchMsg   logview.Batch
	sessionMsg models.Session
	feedErrMsg struct{ err error }
)

// pipes carries feed batches, session transitions and feed errors from
// their goroutines to the UI loop. Nothing is sent once done is closed.
type pipes struct {
	batches  chan logview.Batch
	sessions chan models.Session
	errs     chan error
	done     chan struct{}
	once     sync.Once
}

func newPipes() *pipes {
	return &pipes{
		batches:  make(chan logview.Batch, 64),
		sessions: make(chan models.Session, 8),
		errs:     make(chan error, 1),
		done:     make(chan struct{}),
	}
}

func (p *pipes) deliver(b logview.Batch) {
	select {
	case p.batches <- b:
	case <-p.done:
	}
}

func (p *pipes) session(s models.Session) {
	select {
	case p.sessions <- s:
	case <-p.done:
	}
}

// feedError keeps only the first unread error.
func (p *pipes) feedError(err error) {
	select {
	case p.errs <- err:
	default:
	}
}

func (p *pipes) close() {
	p.once.Do(func() { close(p.done) })
}

func (p *pipes) waitForBatch() tea.Cmd {
	return func() tea.Msg {
		select {
		case b := <-p.batches:
			return batchMsg(b)
		case <-p.done:
			return nil
		}
	}
}

func (p *pipes) waitForSession() tea.Cmd {
	return func() tea.Msg {
		select {
		case s := <-p.sessions:
			return sessionMsg(s)
		case <-p.done:
			return nil
		}
	}
}

func (p *pipes) waitForError() tea.Cmd {
	return func() tea.Msg {
		select {
		case err := <-p.errs:
			return feedErrMsg{err: err}
		case <-p.done:
			return nil
		}
	}
}
