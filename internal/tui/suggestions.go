package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fentz26/simshell/internal/commands"
	"github.com/fentz26/simshell/internal/models"
)

// Suggestions provides completion for built-in and custom command phrases.
type Suggestions struct {
	items       []SuggestionItem
	filtered    []SuggestionItem
	selectedIdx int
	visible     bool
}

// SuggestionItem represents a single completion.
type SuggestionItem struct {
	Text        string
	Description string
	Custom      bool
}

func builtinSuggestions() []SuggestionItem {
	var items []SuggestionItem
	for _, def := range commands.Builtins() {
		for _, p := range def.Phrases {
			items = append(items, SuggestionItem{
				Text:        strings.Join(p, " "),
				Description: def.Description,
			})
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Text < items[j].Text })
	return items
}

// NewSuggestions creates a suggestions handler over the built-in phrases.
func NewSuggestions() *Suggestions {
	return &Suggestions{items: builtinSuggestions()}
}

// SetCustom replaces the custom command completions.
func (s *Suggestions) SetCustom(custom []models.CustomCommand) {
	items := builtinSuggestions()
	for _, c := range custom {
		items = append(items, SuggestionItem{Text: c.Name, Description: c.Description, Custom: true})
	}
	s.items = items
}

// Update filters completions for the current input. Suggestions show while
// the input is a strict prefix of some phrase.
func (s *Suggestions) Update(input string) {
	query := strings.ToLower(strings.TrimLeft(input, " "))
	if query == "" {
		s.visible = false
		s.filtered = nil
		return
	}

	s.filtered = s.filtered[:0]
	for _, item := range s.items {
		text := strings.ToLower(item.Text)
		if strings.HasPrefix(text, query) && text != query {
			s.filtered = append(s.filtered, item)
		}
	}
	s.visible = len(s.filtered) > 0
	if s.selectedIdx >= len(s.filtered) {
		s.selectedIdx = 0
	}
}

// Next moves to the next suggestion
func (s *Suggestions) Next() {
	if len(s.filtered) == 0 {
		return
	}
	s.selectedIdx = (s.selectedIdx + 1) % len(s.filtered)
}

// Prev moves to the previous suggestion
func (s *Suggestions) Prev() {
	if len(s.filtered) == 0 {
		return
	}
	s.selectedIdx--
	if s.selectedIdx < 0 {
		s.selectedIdx = len(s.filtered) - 1
	}
}

// Selected returns the currently selected suggestion
func (s *Suggestions) Selected() *SuggestionItem {
	if !s.visible || len(s.filtered) == 0 || s.selectedIdx >= len(s.filtered) {
		return nil
	}
	return &s.filtered[s.selectedIdx]
}

// IsVisible returns whether suggestions are currently visible
func (s *Suggestions) IsVisible() bool {
	return s.visible && len(s.filtered) > 0
}

// Hide closes the dropdown until the input changes again.
func (s *Suggestions) Hide() {
	s.visible = false
	s.filtered = nil
	s.selectedIdx = 0
}

// Render renders the suggestions dropdown
func (s *Suggestions) Render(width int) string {
	if !s.IsVisible() {
		return ""
	}

	var b strings.Builder

	suggestionStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(secondaryColor).
		Padding(0, 1).
		Width(max(width-4, 20))

	selectedStyle := lipgloss.NewStyle().
		Background(primaryColor).
		Foreground(fgColor).
		Bold(true)

	itemStyle := lipgloss.NewStyle().Foreground(fgColor)
	descStyle := lipgloss.NewStyle().Foreground(mutedColor).Italic(true)

	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(primaryColor).Render("Commands (Tab to accept)"))
	b.WriteString("\n")

	maxVisible := 5
	start := 0
	if s.selectedIdx >= maxVisible {
		start = s.selectedIdx - maxVisible + 1
	}
	for i := start; i < len(s.filtered) && i < start+maxVisible; i++ {
		item := s.filtered[i]
		text := item.Text
		if item.Custom {
			text += " *"
		}
		var line string
		if i == s.selectedIdx {
			line = selectedStyle.Render("▶ " + text)
			if item.Description != "" {
				line += " " + selectedStyle.Render(item.Description)
			}
		} else {
			line = itemStyle.Render("  " + text)
			if item.Description != "" {
				line += " " + descStyle.Render(item.Description)
			}
		}
		b.WriteString(line + "\n")
	}
	if more := len(s.filtered) - (start + maxVisible); more > 0 {
		b.WriteString(descStyle.Render(fmt.Sprintf("  ... and %d more", more)))
	}

	return suggestionStyle.Render(b.String())
}
