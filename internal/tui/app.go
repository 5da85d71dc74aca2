// Package tui provides the interactive console for simshell.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fentz26/simshell/internal/models"
	"github.com/fentz26/simshell/internal/shell"
)

var (
	// Colors
	primaryColor   = lipgloss.Color("#7C3AED")
	secondaryColor = lipgloss.Color("#6366F1")
	successColor   = lipgloss.Color("#10B981")
	warningColor   = lipgloss.Color("#F59E0B")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	fgColor        = lipgloss.Color("#F9FAFB")
	cyanColor      = lipgloss.Color("#06B6D4")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	busyBoxStyle = inputBoxStyle.BorderForeground(mutedColor)

	categoryOnStyle  = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	categoryOffStyle = lipgloss.NewStyle().Foreground(mutedColor)

	lineStyles = map[models.OutputType]lipgloss.Style{
		models.OutputCommand: lipgloss.NewStyle().Foreground(primaryColor).Bold(true),
		models.OutputText:    lipgloss.NewStyle().Foreground(fgColor),
		models.OutputError:   lipgloss.NewStyle().Foreground(errorColor),
		models.OutputInfo:    lipgloss.NewStyle().Foreground(cyanColor),
		models.OutputWarning: lipgloss.NewStyle().Foreground(warningColor),
	}
)

// App is the console model.
type App struct {
	backend     Backend
	input       textinput.Model
	viewport    viewport.Model
	transcript  []models.OutputLine
	categories  []models.Category
	suggestions *Suggestions
	width       int
	height      int
	busy        bool
	message     string
	downloadDir string
	prompt      string
}

// Options tunes the console.
type Options struct {
	// DownloadDir receives exported files. Empty means the working directory.
	DownloadDir string
	// Prompt prefixes echoed commands.
	Prompt string
}

// New creates a console over backend.
func New(backend Backend, opts Options) *App {
	ti := textinput.New()
	ti.Placeholder = "Type a command (help lists built-ins)"
	ti.Focus()
	ti.CharLimit = 1024
	ti.Width = 80

	prompt := opts.Prompt
	if prompt == "" {
		prompt = "$"
	}

	return &App{
		backend:     backend,
		input:       ti,
		viewport:    viewport.New(80, 20),
		suggestions: NewSuggestions(),
		downloadDir: opts.DownloadDir,
		prompt:      prompt,
	}
}

// Run starts the console.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		a.fetchCategories(),
	)
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		key := msg.String()
		if key == "ctrl+c" {
			return a, tea.Quit
		}
		if cat, ok := categoryForKey(key); ok {
			return a, a.toggleCategory(cat)
		}

		switch key {
		case "up":
			if a.suggestions.IsVisible() {
				a.suggestions.Prev()
			} else {
				a.viewport.LineUp(1)
			}
			return a, nil

		case "down":
			if a.suggestions.IsVisible() {
				a.suggestions.Next()
			} else {
				a.viewport.LineDown(1)
			}
			return a, nil

		case "pgup":
			a.viewport.HalfViewUp()
			return a, nil

		case "pgdown":
			a.viewport.HalfViewDown()
			return a, nil

		case "tab":
			if selected := a.suggestions.Selected(); selected != nil {
				a.input.SetValue(selected.Text + " ")
				a.input.CursorEnd()
				a.suggestions.Hide()
			}
			return a, nil

		case "esc":
			a.suggestions.Hide()
			return a, nil

		case "enter":
			if a.busy {
				return a, nil
			}
			command := strings.TrimSpace(a.input.Value())
			if command == "" {
				return a, nil
			}
			a.input.SetValue("")
			a.suggestions.Hide()
			a.busy = true
			a.message = ""
			a.input.Blur()
			return a, a.dispatch(command)
		}

		if a.busy {
			// Input stays frozen while a command runs.
			return a, nil
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = msg.Width - 6
		a.viewport.Width = msg.Width
		a.viewport.Height = max(msg.Height-9, 3)
		a.refreshViewport()

	case dispatchedMsg:
		a.busy = false
		cmds = append(cmds, a.input.Focus())
		a.applyResponse(msg.resp, msg.err)
		cmds = append(cmds, a.fetchCustom())

	case categoriesMsg:
		if msg.err != nil {
			a.message = "Error: " + msg.err.Error()
		} else {
			a.categories = msg.categories
		}

	case customMsg:
		if msg.err == nil {
			a.suggestions.SetCustom(msg.custom)
		}
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)

	if _, ok := msg.(tea.KeyMsg); ok {
		a.suggestions.Update(a.input.Value())
	}

	return a, tea.Batch(cmds...)
}

func (a *App) applyResponse(resp *shell.Response, err error) {
	if err != nil {
		if errors.Is(err, shell.ErrBusy) {
			a.message = "Error: a command is still running"
		} else {
			a.message = "Error: " + err.Error()
		}
		return
	}

	if resp.ClearTranscript {
		a.transcript = nil
	} else {
		a.transcript = append(a.transcript, resp.Lines...)
	}

	var notes []string
	for _, d := range resp.Downloads {
		path, err := a.saveDownload(d)
		if err != nil {
			notes = append(notes, "Error: "+err.Error())
			continue
		}
		notes = append(notes, "Saved "+path)
	}
	if resp.PauseRequested {
		notes = append(notes, "Pause noted; commands run to completion")
	}
	a.message = strings.Join(notes, " | ")
	a.refreshViewport()
}

func (a *App) saveDownload(d models.Download) (string, error) {
	dir := a.downloadDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, filepath.Base(d.Filename))
	if err := os.WriteFile(path, []byte(d.Content), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (a *App) refreshViewport() {
	lines := make([]string, 0, len(a.transcript))
	for _, l := range a.transcript {
		lines = append(lines, a.renderLine(l))
	}
	a.viewport.SetContent(strings.Join(lines, "\n"))
	a.viewport.GotoBottom()
}

func (a *App) renderLine(l models.OutputLine) string {
	style, ok := lineStyles[l.Type]
	if !ok {
		style = lineStyles[models.OutputText]
	}
	text := l.Text
	if l.Type == models.OutputCommand {
		text = a.prompt + " " + text
	}
	return style.Render(text)
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	header := titleStyle.Render("simshell") + "  " + a.renderCategories()
	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("─", max(a.width, 1)) + "\n")

	b.WriteString(a.viewport.View())
	b.WriteString("\n")

	if a.message != "" {
		msgStyle := lipgloss.NewStyle().Foreground(successColor)
		if strings.HasPrefix(a.message, "Error") {
			msgStyle = lipgloss.NewStyle().Foreground(errorColor)
		}
		b.WriteString(msgStyle.Render(a.message))
	}
	b.WriteString("\n")

	box := inputBoxStyle
	if a.busy {
		box = busyBoxStyle
	}
	b.WriteString(box.Render(a.input.View()))

	if a.suggestions.IsVisible() {
		b.WriteString("\n")
		b.WriteString(a.suggestions.Render(a.width))
	}
	b.WriteString("\n")

	status := " Enter:run | Tab:complete | F1-F7:categories | PgUp/PgDn:scroll | Ctrl+C:quit"
	if a.busy {
		status = " Running..."
	}
	b.WriteString(statusBarStyle.Width(a.width).Render(status))

	return b.String()
}

func (a *App) renderCategories() string {
	active := make(map[models.Category]bool, len(a.categories))
	for _, c := range a.categories {
		active[c] = true
	}
	var parts []string
	for i, c := range models.AllCategories() {
		label := fmt.Sprintf("F%d %s", i+1, c)
		if active[c] {
			parts = append(parts, categoryOnStyle.Render("● "+label))
		} else {
			parts = append(parts, categoryOffStyle.Render("○ "+label))
		}
	}
	return strings.Join(parts, "  ")
}

// categoryForKey maps F1..F7 onto the categories in canonical order.
func categoryForKey(key string) (models.Category, bool) {
	cats := models.AllCategories()
	for i, c := range cats {
		if key == fmt.Sprintf("f%d", i+1) {
			return c, true
		}
	}
	return "", false
}

func (a *App) dispatch(command string) tea.Cmd {
	return func() tea.Msg {
		resp, err := a.backend.Dispatch(context.Background(), command)
		return dispatchedMsg{resp: resp, err: err}
	}
}

func (a *App) fetchCategories() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		cats, err := a.backend.Categories(ctx)
		return categoriesMsg{categories: cats, err: err}
	}
}

func (a *App) toggleCategory(cat models.Category) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		cats, err := a.backend.ToggleCategory(ctx, cat)
		return categoriesMsg{categories: cats, err: err}
	}
}

func (a *App) fetchCustom() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		custom, err := a.backend.CustomCommands(ctx)
		return customMsg{custom: custom, err: err}
	}
}

type dispatchedMsg struct {
	resp *shell.Response
	err  error
}

type categoriesMsg struct {
	categories []models.Category
	err        error
}

type customMsg struct {
	custom []models.CustomCommand
	err    error
}
