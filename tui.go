package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"fileqa/internal/config"
	"fileqa/internal/document"
	"fileqa/internal/table"
)

// renderMarkdown renders markdown content with glamour for beautiful display
func renderMarkdown(content string, width int) (string, error) {
	// Account for borders, padding, and glamour's internal gutter
	const glamourGutter = 2
	const borderWidth = 4 // 2 for border characters, 2 for padding

	renderWidth := width - borderWidth - glamourGutter
	if renderWidth < 40 {
		renderWidth = 40 // Minimum width for readable content
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(renderWidth),
	)
	if err != nil {
		return "", err
	}

	return renderer.Render(content)
}

type view int

const (
	inputView view = iota
	loadingView
	resultView
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)
	inputStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
	infoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1)
)

type model struct {
	asker *Asker
	doc   *document.Document
	// tbl is loaded once for CSV files and reused across questions
	tbl *table.Table

	currentView   view
	input         textinput.Model
	spinner       spinner.Model
	viewport      viewport.Model
	viewportReady bool
	width         int
	height        int

	question string
	answer   *Answer
	status   string
	err      error
}

type answerMsg struct {
	answer *Answer
	err    error
}

func askQuestion(asker *Asker, doc *document.Document, tbl *table.Table, question string) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		if tbl != nil {
			ans, err := asker.AskTable(ctx, tbl, question, Credentials{})
			return answerMsg{answer: ans, err: err}
		}
		ans, err := asker.Ask(ctx, doc, question, Credentials{})
		return answerMsg{answer: ans, err: err}
	}
}

func initialModel(asker *Asker, doc *document.Document, tbl *table.Table) model {
	ti := textinput.New()
	ti.Placeholder = qaPlaceholder
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	vp := viewport.New(80, 20)
	vp.Style = lipgloss.NewStyle()

	return model{
		asker:       asker,
		doc:         doc,
		tbl:         tbl,
		currentView: inputView,
		input:       ti,
		spinner:     sp,
		viewport:    vp,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 8

		// Reserve lines for the title, status and help text
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 6
		m.viewportReady = true

		if m.currentView == resultView {
			m.updateViewport()
		}
		return m, nil

	case tea.KeyMsg:
		switch m.currentView {
		case resultView:
			return m.handleResultViewKeys(msg)
		case loadingView:
			if msg.Type == tea.KeyCtrlC {
				return m, tea.Quit
			}
			return m, nil
		}
		return m.handleInputViewKeys(msg)

	case tea.MouseMsg:
		if m.currentView == resultView {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case spinner.TickMsg:
		if m.currentView == loadingView {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}

	case answerMsg:
		m.answer = msg.answer
		m.err = msg.err
		m.status = ""
		m.currentView = resultView
		m.viewport.GotoTop()
		m.updateViewport()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) handleInputViewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit

	case tea.KeyEnter:
		question := strings.TrimSpace(m.input.Value())
		if question == "" {
			return m, nil
		}
		m.question = question
		m.answer = nil
		m.err = nil
		m.currentView = loadingView
		return m, tea.Batch(m.spinner.Tick, askQuestion(m.asker, m.doc, m.tbl, question))
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) handleResultViewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit

	case tea.KeyEsc:
		m.currentView = inputView
		m.status = ""
		m.input.SetValue("")
		m.input.Focus()
		return m, textinput.Blink

	case tea.KeyRunes:
		if string(msg.Runes) == "c" && m.answer != nil {
			if err := clipboard.WriteAll(m.copyText()); err != nil {
				m.status = fmt.Sprintf("Copy failed: %v", err)
			} else {
				m.status = "✓ Copied to clipboard"
			}
		}
		return m, nil

	// Scrolling keys
	case tea.KeyUp, tea.KeyDown, tea.KeyPgUp, tea.KeyPgDown, tea.KeyHome, tea.KeyEnd:
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	return m, nil
}

// copyText is the SQL for table answers and the answer itself for text
func (m model) copyText() string {
	if m.answer.Kind == document.KindTable.String() && m.answer.SQL != "" {
		return m.answer.SQL
	}
	return m.answer.Text
}

func (m *model) updateViewport() {
	if !m.viewportReady {
		return
	}
	m.viewport.SetContent(m.resultContent())
}

func (m model) resultContent() string {
	var md strings.Builder
	fmt.Fprintf(&md, "## %s\n\n", m.question)

	switch {
	case m.err != nil:
		md.WriteString(m.errorMarkdown())
	case m.answer != nil:
		md.WriteString(m.answer.Markdown())
	}

	rendered, err := renderMarkdown(md.String(), m.width)
	if err != nil {
		return md.String()
	}
	return rendered
}

func (m model) errorMarkdown() string {
	if m.answer == nil || m.answer.Prompt == "" {
		return fmt.Sprintf("**Error during API call:** %v\n", m.err)
	}
	return fmt.Sprintf("**Error during API call:** %v\n\nPrompt sent:\n\n```\n%s\n```\n", m.err, m.answer.Prompt)
}

func (m model) View() string {
	switch m.currentView {
	case loadingView:
		return m.loadingViewRender()
	case resultView:
		return m.resultViewRender()
	}
	return m.inputViewRender()
}

func (m model) inputViewRender() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("📝 File Q&A"))
	b.WriteString("\n")
	b.WriteString(infoStyle.Render(fmt.Sprintf("File: %s (%s)", m.doc.Name, m.doc.Kind)))
	b.WriteString("\n\n")
	b.WriteString(inputStyle.Render(m.input.View()))
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Last question failed: %v", m.err)))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("Enter: Ask | Esc/Ctrl+C: Quit"))
	return b.String()
}

func (m model) loadingViewRender() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("📝 File Q&A"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s Asking %s...\n\n", m.spinner.View(), config.ProviderLabel(m.asker.Config.Provider)))
	b.WriteString(infoStyle.Render(m.question))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("Ctrl+C: Quit"))
	return b.String()
}

func (m model) resultViewRender() string {
	if !m.viewportReady {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	// Add scroll indicator if content is scrollable
	if m.viewport.TotalLineCount() > m.viewport.Height {
		scrollPercent := int(m.viewport.ScrollPercent() * 100)
		b.WriteString(infoStyle.Render(fmt.Sprintf("─── %d%% ───", scrollPercent)))
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString(statusStyle.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("↑/↓/PgUp/PgDn: Scroll | c: Copy | Esc: New question | Ctrl+C: Quit"))
	return b.String()
}

// launchTUI starts the interactive TUI for a single file
func launchTUI(cfg *config.Config, path string) error {
	asker := NewAsker(cfg, logger)
	if _, err := asker.Resolve(Credentials{}); err != nil {
		return errors.New(MissingKeyMessage(cfg.Provider))
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	doc, err := document.Read(path, f, cfg.MaxUploadBytes())
	_ = f.Close()
	if err != nil {
		return err
	}

	var tbl *table.Table
	if doc.Kind == document.KindTable {
		tbl, err = asker.OpenTable(context.Background(), doc)
		if err != nil {
			return err
		}
		defer func() { _ = tbl.Close() }()
	}

	if logger != nil {
		logger.Info("TUI started", "file", doc.Name, "kind", doc.Kind.String(), "provider", cfg.Provider)
	}

	p := tea.NewProgram(
		initialModel(asker, doc, tbl),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}
