package monitor

import (
	"errors"
	"net/mail"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/marcus/worklog/internal/models"
)

var (
	errEmailRequired    = errors.New("email is required")
	errPasswordRequired = errors.New("password is required")
)

// FormKind identifies which modal is open.
type FormKind string

const (
	FormLogin  FormKind = "login"
	FormSignUp FormKind = "signup"
	FormAdd    FormKind = "add"
	FormEdit   FormKind = "edit"
)

// FormState holds the modal form and the values bound to its fields.
type FormState struct {
	Kind     FormKind
	Form     *huh.Form
	RecordID string // edit only

	Email       string
	Password    string
	DisplayName string

	Name string
	Time string

	Err        string // last submit failure, shown under the form
	Submitting bool
}

// NewFormState creates an empty form of kind.
func NewFormState(kind FormKind) *FormState {
	fs := &FormState{Kind: kind}
	fs.buildForm()
	return fs
}

// NewFormStateForEdit creates an edit form populated from rec.
func NewFormStateForEdit(rec models.LogRecord) *FormState {
	fs := &FormState{
		Kind:     FormEdit,
		RecordID: rec.ID,
		Name:     rec.Name,
		Time:     rec.Time,
	}
	fs.buildForm()
	return fs
}

// buildForm constructs a fresh huh.Form bound to the current values.
func (fs *FormState) buildForm() {
	var group *huh.Group
	switch fs.Kind {
	case FormLogin, FormSignUp:
		fields := []huh.Field{
			huh.NewInput().
				Title("Email").
				Value(&fs.Email).
				Placeholder("you@example.com").
				Validate(validateEmail),
			huh.NewInput().
				Title("Password").
				Value(&fs.Password).
				EchoMode(huh.EchoModePassword).
				Validate(func(s string) error {
					if s == "" {
						return errPasswordRequired
					}
					return nil
				}),
		}
		title := "Log in"
		if fs.Kind == FormSignUp {
			title = "Sign up"
			fields = append(fields, huh.NewInput().
				Title("Display name").
				Value(&fs.DisplayName).
				Placeholder("optional"))
		}
		group = huh.NewGroup(fields...).Title(title)

	case FormAdd, FormEdit:
		title := "New entry"
		if fs.Kind == FormEdit {
			title = "Edit entry"
		}
		group = huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Value(&fs.Name).
				Placeholder("What did you work on?").
				CharLimit(models.MaxNameLength).
				Validate(func(s string) error {
					return models.LogRecord{Name: s, Time: "-"}.Validate()
				}),
			huh.NewInput().
				Title("Time").
				Value(&fs.Time).
				Placeholder("e.g. 1h30m").
				CharLimit(models.MaxTimeLength).
				Validate(func(s string) error {
					return models.LogRecord{Name: "-", Time: s}.Validate()
				}),
		).Title(title)
	}

	fs.Form = huh.NewForm(group)
	fs.Form.WithTheme(huh.ThemeDracula())
	fs.Form.WithShowHelp(false)
}

// Retry rebuilds the form after a failed submit, keeping entered values.
func (fs *FormState) Retry(err error) {
	fs.Submitting = false
	fs.Err = err.Error()
	fs.buildForm()
}

// ToRecord converts the bound values to a record.
func (fs *FormState) ToRecord() models.LogRecord {
	return models.LogRecord{
		ID:   fs.RecordID,
		Name: fs.Name,
		Time: fs.Time,
	}.Normalize()
}

func validateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errEmailRequired
	}
	if _, err := mail.ParseAddress(s); err != nil {
		return errors.New("invalid email address")
	}
	return nil
}
