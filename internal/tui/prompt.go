package tui

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrCancelled is returned when the user leaves the prompt without authorizing.
var ErrCancelled = errors.New("authorization cancelled")

// ExchangeFunc trades an authorization code for a stored token.
type ExchangeFunc func(ctx context.Context, code string) error

type promptState int

const (
	promptInput promptState = iota
	promptExchanging
	promptDone
	promptCancelled
)

type exchangeDoneMsg struct{ err error }

// AuthPrompt asks for the authorization code and runs the exchange.
type AuthPrompt struct {
	ctx      context.Context
	authURL  string
	exchange ExchangeFunc

	state   promptState
	err     error
	input   textinput.Model
	spinner spinner.Model
	width   int
}

// NewAuthPrompt creates a prompt for authURL.
func NewAuthPrompt(ctx context.Context, authURL string, exchange ExchangeFunc) *AuthPrompt {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ColorCyan)

	ti := textinput.New()
	ti.Placeholder = "授权码，或浏览器跳转后的完整地址"
	ti.CharLimit = 2048
	ti.Width = 60
	ti.Focus()

	return &AuthPrompt{
		ctx:      ctx,
		authURL:  authURL,
		exchange: exchange,
		input:    ti,
		spinner:  s,
	}
}

// Init initializes the model.
func (m *AuthPrompt) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages.
func (m *AuthPrompt) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case exchangeDoneMsg:
		if msg.err != nil {
			m.state = promptInput
			m.err = msg.err
			m.input.SetValue("")
			return m, nil
		}
		m.state = promptDone
		m.err = nil
		return m, tea.Quit

	case spinner.TickMsg:
		if m.state != promptExchanging {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.state == promptInput {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *AuthPrompt) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.state = promptCancelled
		return m, tea.Quit
	}

	if m.state != promptInput {
		return m, nil
	}

	if msg.String() == "enter" {
		code := ExtractCode(m.input.Value())
		if code == "" {
			m.err = errors.New("请输入授权码")
			return m, nil
		}
		m.state = promptExchanging
		m.err = nil
		return m, tea.Batch(m.spinner.Tick, m.runExchange(code))
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *AuthPrompt) runExchange(code string) tea.Cmd {
	return func() tea.Msg {
		return exchangeDoneMsg{err: m.exchange(m.ctx, code)}
	}
}

// View renders the prompt.
func (m *AuthPrompt) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("滴答清单授权"))
	b.WriteString("\n\n")

	switch m.state {
	case promptDone:
		b.WriteString(SuccessStyle.Render(IndicatorDone + " 授权成功，token 已保存"))
		b.WriteString("\n")
		return b.String()
	case promptCancelled:
		b.WriteString(WarningStyle.Render(IndicatorFailed + " 已取消"))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString("1. 在浏览器中打开以下链接并同意授权：\n")
	link := LinkBoxStyle
	if m.width > 4 {
		link = link.MaxWidth(m.width)
	}
	b.WriteString(link.Render(m.authURL))
	b.WriteString("\n\n")
	b.WriteString("2. 粘贴跳转地址中的 code：\n")

	if m.state == promptExchanging {
		b.WriteString(m.spinner.View() + " 正在换取 token...")
	} else {
		b.WriteString(IndicatorSelected + " " + m.input.View())
	}
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render(fmt.Sprintf("%s %v", IndicatorFailed, m.err)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(renderHelp("enter", "submit", "esc", "cancel"))
	b.WriteString("\n")
	return b.String()
}

// Authorized reports whether the exchange succeeded.
func (m *AuthPrompt) Authorized() bool {
	return m.state == promptDone
}

// RunAuthPrompt shows the prompt until the exchange succeeds or the user quits.
func RunAuthPrompt(ctx context.Context, authURL string, exchange ExchangeFunc) error {
	m := NewAuthPrompt(ctx, authURL, exchange)
	final, err := tea.NewProgram(m, tea.WithContext(ctx)).Run()
	if err != nil {
		return err
	}
	if p, ok := final.(*AuthPrompt); ok && p.Authorized() {
		return nil
	}
	return ErrCancelled
}

// ExtractCode accepts a bare code, a query string, or the full redirect URL
// the browser landed on.
func ExtractCode(input string) string {
	input = strings.TrimSpace(input)
	if !strings.Contains(input, "code=") {
		return input
	}

	query := input
	if u, err := url.Parse(input); err == nil && u.RawQuery != "" {
		query = u.RawQuery
	}
	values, err := url.ParseQuery(strings.TrimPrefix(query, "?"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(values.Get("code"))
}
