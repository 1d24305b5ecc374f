// Package tui is the interactive submission screen. It drives one
// submission view and renders the summary as markdown.
package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/kirillkom/medbrief/internal/core/domain"
	"github.com/kirillkom/medbrief/internal/core/ports"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	modeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	frameStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// snapshotMsg carries a view state change into the update loop.
type snapshotMsg domain.Snapshot

type submitDoneMsg struct {
	err error
}

// Model is the bubbletea model for one submission screen.
type Model struct {
	view    ports.SubmissionView
	updates chan domain.Snapshot
	done    chan struct{}

	mode     domain.InputMode
	text     textarea.Model
	path     textinput.Model
	spinner  spinner.Model
	output   viewport.Model
	renderer *glamour.TermRenderer
	readFile func(string) ([]byte, error)

	snap   domain.Snapshot
	notice string
	width  int
	height int
}

func New(factory ports.SubmissionViewFactory) *Model {
	updates := make(chan domain.Snapshot, 8)
	done := make(chan struct{})

	text := textarea.New()
	text.Placeholder = "Paste clinical text or a link to summarize..."
	text.SetHeight(8)
	text.Focus()

	path := textinput.New()
	path.Placeholder = "/path/to/document.pdf"

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	m := &Model{
		updates:  updates,
		done:     done,
		mode:     domain.InputModeText,
		text:     text,
		path:     path,
		spinner:  spin,
		output:   viewport.New(80, 16),
		readFile: os.ReadFile,
		snap:     domain.Snapshot{Phase: domain.PhaseIdle},
	}
	m.view = factory.NewView(func(s domain.Snapshot) {
		publishLatest(updates, done, s)
	})
	m.renderer, _ = glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(78))
	return m
}

// publishLatest never blocks: each snapshot is the full view state, so when
// the update loop lags the oldest queued one is dropped.
func publishLatest(updates chan domain.Snapshot, done <-chan struct{}, s domain.Snapshot) {
	for {
		select {
		case <-done:
			return
		case updates <- s:
			return
		default:
		}
		select {
		case <-updates:
		default:
		}
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.waitForSnapshot())
}

func (m *Model) waitForSnapshot() tea.Cmd {
	updates, done := m.updates, m.done
	return func() tea.Msg {
		select {
		case s := <-updates:
			return snapshotMsg(s)
		case <-done:
			return nil
		}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.text.SetWidth(max(20, msg.Width-4))
		m.output.Width = max(20, msg.Width-4)
		m.output.Height = max(5, msg.Height-16)
		m.renderResult()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.shutdown()
			return m, tea.Quit
		case "ctrl+s":
			return m, m.submit()
		case "ctrl+r":
			m.view.Reset()
			m.notice = ""
			return m, nil
		case "tab":
			if m.snap.Phase != domain.PhaseSubmitting {
				m.toggleMode()
			}
			return m, nil
		}

	case snapshotMsg:
		m.snap = domain.Snapshot(msg)
		m.renderResult()
		cmds := []tea.Cmd{m.waitForSnapshot()}
		if m.snap.Loading() {
			cmds = append(cmds, m.spinner.Tick)
		}
		return m, tea.Batch(cmds...)

	case submitDoneMsg:
		if msg.err != nil && m.snap.Error == "" {
			m.notice = domain.UserMessage(msg.err, msg.err.Error())
		}
		return m, nil

	case spinner.TickMsg:
		if !m.snap.Loading() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	switch {
	case m.snap.Settled():
		m.output, cmd = m.output.Update(msg)
	case m.mode == domain.InputModeFile:
		m.path, cmd = m.path.Update(msg)
	default:
		m.text, cmd = m.text.Update(msg)
	}
	return m, cmd
}

func (m *Model) toggleMode() {
	if m.mode == domain.InputModeText {
		m.mode = domain.InputModeFile
		m.text.Blur()
		m.path.Focus()
		return
	}
	m.mode = domain.InputModeText
	m.path.Blur()
	m.text.Focus()
}

// submit builds the input from the active field and runs the submission off
// the update loop.
func (m *Model) submit() tea.Cmd {
	if m.snap.Loading() {
		return nil
	}
	m.notice = ""

	input := domain.Input{Mode: m.mode, Text: m.text.Value()}
	if m.mode == domain.InputModeFile {
		if p := strings.TrimSpace(m.path.Value()); p != "" {
			data, err := m.readFile(p)
			if err != nil {
				m.notice = fmt.Sprintf("cannot read %s: %v", p, err)
				return nil
			}
			input.File = &domain.FileInput{Name: filepath.Base(p), MimeType: "application/pdf", Data: data}
		}
	}

	view := m.view
	return func() tea.Msg {
		return submitDoneMsg{err: view.Submit(context.Background(), input)}
	}
}

func (m *Model) renderResult() {
	if m.snap.Phase != domain.PhaseResult {
		m.output.SetContent("")
		return
	}
	content := m.snap.Result
	if m.renderer != nil {
		if rendered, err := m.renderer.Render(m.snap.Result); err == nil {
			content = rendered
		}
	}
	m.output.SetContent(content)
	m.output.GotoTop()
}

func (m *Model) shutdown() {
	select {
	case <-m.done:
	default:
		close(m.done)
	}
	m.view.Close()
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("MedBrief"))
	b.WriteString("  ")
	b.WriteString(modeStyle.Render(modeLabel(m.mode)))
	b.WriteString("\n\n")

	switch m.snap.Phase {
	case domain.PhaseSubmitting:
		b.WriteString(m.spinner.View())
		b.WriteString(" Summarizing")
		if m.snap.RecordID != "" {
			b.WriteString(modeStyle.Render(" (" + m.snap.RecordID + ")"))
		}
		b.WriteString("\n")
	case domain.PhaseResult:
		b.WriteString(frameStyle.Render(m.output.View()))
		b.WriteString("\n")
	case domain.PhaseError:
		b.WriteString(errorStyle.Render(m.snap.Error))
		b.WriteString("\n")
	default:
		if m.mode == domain.InputModeFile {
			b.WriteString(m.path.View())
		} else {
			b.WriteString(m.text.View())
		}
		b.WriteString("\n")
		if m.snap.Error != "" {
			b.WriteString(errorStyle.Render(m.snap.Error))
			b.WriteString("\n")
		}
	}
	if m.notice != "" {
		b.WriteString(errorStyle.Render(m.notice))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("ctrl+s submit • tab text/pdf • ctrl+r new • esc quit"))
	return b.String()
}

func modeLabel(mode domain.InputMode) string {
	if mode == domain.InputModeFile {
		return "[PDF]"
	}
	return "[Text / Link]"
}

// Run starts the full-screen program and blocks until the user quits.
func Run(factory ports.SubmissionViewFactory) error {
	m := New(factory)
	defer m.shutdown()

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
