package tui

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fentz26/simshell/internal/models"
	"github.com/fentz26/simshell/internal/shell"
)

type fakeBackend struct {
	commands   []string
	resp       *shell.Response
	err        error
	categories []models.Category
	toggled    []models.Category
}

func (f *fakeBackend) Dispatch(ctx context.Context, command string) (*shell.Response, error) {
	f.commands = append(f.commands, command)
	return f.resp, f.err
}

func (f *fakeBackend) Categories(ctx context.Context) ([]models.Category, error) {
	return f.categories, nil
}

func (f *fakeBackend) ToggleCategory(ctx context.Context, cat models.Category) ([]models.Category, error) {
	f.toggled = append(f.toggled, cat)
	return []models.Category{cat}, nil
}

func (f *fakeBackend) CustomCommands(ctx context.Context) ([]models.CustomCommand, error) {
	return nil, nil
}

func typeText(a *App, s string) {
	a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func TestEnterDispatchesAndFreezesInput(t *testing.T) {
	fb := &fakeBackend{resp: &shell.Response{Lines: []models.OutputLine{
		{Text: "echo hi", Type: models.OutputCommand},
		{Text: "hi", Type: models.OutputText},
	}}}
	a := New(fb, Options{})

	typeText(a, "echo hi")
	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, a.busy)
	assert.Empty(t, a.input.Value())

	// a second enter while busy does nothing
	_, again := a.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, again)

	msg := cmd()
	a.Update(msg)
	assert.False(t, a.busy)
	assert.Equal(t, []string{"echo hi"}, fb.commands)
	require.Len(t, a.transcript, 2)
	assert.Equal(t, "hi", a.transcript[1].Text)
}

func TestClearResponseEmptiesTranscript(t *testing.T) {
	a := New(&fakeBackend{}, Options{})
	a.transcript = []models.OutputLine{{Text: "old"}}
	a.Update(dispatchedMsg{resp: &shell.Response{ClearTranscript: true}})
	assert.Empty(t, a.transcript)
}

func TestBusyErrorShowsMessage(t *testing.T) {
	a := New(&fakeBackend{}, Options{})
	a.Update(dispatchedMsg{err: shell.ErrBusy})
	assert.Contains(t, a.message, "still running")
}

func TestDownloadsAreSaved(t *testing.T) {
	dir := t.TempDir()
	a := New(&fakeBackend{}, Options{DownloadDir: dir})
	a.Update(dispatchedMsg{resp: &shell.Response{Downloads: []models.Download{
		{Filename: "session_log.csv", Content: "Timestamp,Type,Flag,Text\n"},
	}}})

	data, err := os.ReadFile(filepath.Join(dir, "session_log.csv"))
	require.NoError(t, err)
	assert.Equal(t, "Timestamp,Type,Flag,Text\n", string(data))
	assert.Contains(t, a.message, "Saved")
}

func TestFunctionKeysToggleCategories(t *testing.T) {
	fb := &fakeBackend{}
	a := New(fb, Options{})

	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyF5})
	require.NotNil(t, cmd)
	a.Update(cmd())

	assert.Equal(t, []models.Category{models.CategorySQL}, fb.toggled)
	assert.Equal(t, []models.Category{models.CategorySQL}, a.categories)
}

func TestTabAcceptsSuggestion(t *testing.T) {
	a := New(&fakeBackend{}, Options{})
	typeText(a, "persist")
	require.True(t, a.suggestions.IsVisible())

	a.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "persist memory db to ", a.input.Value())
	assert.False(t, a.suggestions.IsVisible())
}

func TestSuggestionsIncludeCustom(t *testing.T) {
	s := NewSuggestions()
	s.Update("gre")
	assert.False(t, s.IsVisible())

	s.SetCustom([]models.CustomCommand{{Name: "greet", Short: "gr"}})
	s.Update("gre")
	require.True(t, s.IsVisible())
	assert.Equal(t, "greet", s.Selected().Text)

	s.Update("greet")
	assert.False(t, s.IsVisible())
}
