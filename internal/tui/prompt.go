// ABOUTME: Interactive credential prompts as bubbletea models
// ABOUTME: Wraps huh forms for login and registration and reports cancellation

package tui

import (
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/markalston/storefront-client/internal/models"
	"github.com/markalston/storefront-client/internal/tui/styles"
)

// ErrCancelled is returned when the user leaves a prompt without submitting
var ErrCancelled = errors.New("cancelled")

// createTheme returns a huh theme in the shared palette
func createTheme() *huh.Theme {
	t := huh.ThemeBase()

	t.Group.Title = lipgloss.NewStyle().
		Foreground(styles.Primary).
		Bold(true).
		MarginBottom(1)
	t.Group.Description = lipgloss.NewStyle().
		Foreground(styles.Muted).
		MarginBottom(1)

	t.Focused.Base = lipgloss.NewStyle().
		PaddingLeft(1).
		BorderStyle(lipgloss.ThickBorder()).
		BorderLeft(true).
		BorderForeground(styles.Primary)
	t.Focused.Title = lipgloss.NewStyle().
		Foreground(styles.Accent).
		Bold(true)
	t.Focused.ErrorIndicator = lipgloss.NewStyle().
		Foreground(styles.Danger).
		SetString(" *")
	t.Focused.ErrorMessage = lipgloss.NewStyle().
		Foreground(styles.Danger)
	t.Focused.TextInput.Prompt = lipgloss.NewStyle().
		Foreground(styles.Primary)

	t.Blurred = t.Focused
	t.Blurred.Base = lipgloss.NewStyle().
		PaddingLeft(1).
		BorderStyle(lipgloss.HiddenBorder()).
		BorderLeft(true)
	t.Blurred.Title = lipgloss.NewStyle().
		Foreground(styles.Muted)

	return t
}

// Prompt runs a single huh form inside a bubbletea program
type Prompt struct {
	title     string
	form      *huh.Form
	cancelled bool
}

func newPrompt(title string, groups ...*huh.Group) *Prompt {
	return &Prompt{
		title: title,
		form:  huh.NewForm(groups...).WithTheme(createTheme()),
	}
}

// Init implements tea.Model
func (p *Prompt) Init() tea.Cmd {
	return p.form.Init()
}

// Update implements tea.Model
func (p *Prompt) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc", "ctrl+c":
			p.cancelled = true
			return p, tea.Quit
		}
	}

	form, cmd := p.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		p.form = f
	}

	switch p.form.State {
	case huh.StateCompleted:
		return p, tea.Quit
	case huh.StateAborted:
		p.cancelled = true
		return p, tea.Quit
	}
	return p, cmd
}

// View implements tea.Model
func (p *Prompt) View() string {
	if p.form.State != huh.StateNormal {
		return ""
	}
	return styles.Title.Render(p.title) + "\n\n" + p.form.View()
}

// Cancelled reports whether the user left without submitting
func (p *Prompt) Cancelled() bool {
	return p.cancelled
}

// Run drives the prompt on the given terminal streams
func (p *Prompt) Run(in io.Reader, out io.Writer) error {
	final, err := tea.NewProgram(p, tea.WithInput(in), tea.WithOutput(out)).Run()
	if err != nil {
		return fmt.Errorf("prompt failed: %w", err)
	}
	if fp, ok := final.(*Prompt); ok && fp.cancelled {
		return ErrCancelled
	}
	return nil
}

// LoginPrompt asks for whichever of username and password is missing
type LoginPrompt struct {
	*Prompt
	Username string
	Password string
}

// NewLoginPrompt prefills the username when one was given on the command line
func NewLoginPrompt(username string) *LoginPrompt {
	lp := &LoginPrompt{Username: username}

	var fields []huh.Field
	if username == "" {
		fields = append(fields, huh.NewInput().
			Title("Username").
			Value(&lp.Username).
			Validate(required("username")))
	}
	fields = append(fields, huh.NewInput().
		Title("Password").
		EchoMode(huh.EchoModePassword).
		Value(&lp.Password).
		Validate(required("password")))

	lp.Prompt = newPrompt("Log in to the storefront", huh.NewGroup(fields...))
	return lp
}

// RegisterPrompt collects a new account
type RegisterPrompt struct {
	*Prompt
	Input models.RegisterRequest
}

// NewRegisterPrompt builds the sign-up form
func NewRegisterPrompt() *RegisterPrompt {
	rp := &RegisterPrompt{}
	in := &rp.Input

	rp.Prompt = newPrompt("Create an account",
		huh.NewGroup(
			huh.NewInput().Title("Username").Value(&in.Username).Validate(required("username")),
			huh.NewInput().Title("Email").Value(&in.Email).Validate(validEmail),
			huh.NewInput().Title("First name").Value(&in.FirstName),
			huh.NewInput().Title("Last name").Value(&in.LastName),
			huh.NewInput().Title("Phone").Value(&in.PhoneNumber),
		),
		huh.NewGroup(
			huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&in.Password).Validate(minLength(8)),
			huh.NewInput().Title("Confirm password").EchoMode(huh.EchoModePassword).Value(&in.ConfirmPassword).
				Validate(func(s string) error {
					if s != in.Password {
						return errors.New("passwords do not match")
					}
					return nil
				}),
		).Description("At least 8 characters"),
	)
	return rp
}

func required(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

func minLength(n int) func(string) error {
	return func(s string) error {
		if len(s) < n {
			return fmt.Errorf("must be at least %d characters", n)
		}
		return nil
	}
}

func validEmail(s string) error {
	if _, err := mail.ParseAddress(s); err != nil {
		return errors.New("enter a valid email address")
	}
	return nil
}
