// Package models defines the core domain types for simshell.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Category is a synthetic execution category a command can be classified into.
type Category string

const (
	CategoryInternal   Category = "internal"
	CategoryPython     Category = "python"
	CategoryUnix       Category = "unix"
	CategoryWindows    Category = "windows"
	CategorySQL        Category = "sql"
	CategoryExcel      Category = "excel"
	CategoryTypeScript Category = "typescript"
)

// Sentinel classification outcomes. They are never members of the category set.
const (
	CategoryAmbiguous Category = "ambiguous"
	CategoryUnknown   Category = "unknown"
)

// AllCategories returns the closed set of executable categories.
func AllCategories() []Category {
	return []Category{
		CategoryInternal,
		CategoryPython,
		CategoryUnix,
		CategoryWindows,
		CategorySQL,
		CategoryExcel,
		CategoryTypeScript,
	}
}

// IsValid reports whether c is one of the executable categories.
func (c Category) IsValid() bool {
	for _, valid := range AllCategories() {
		if c == valid {
			return true
		}
	}
	return false
}

// IsSentinel reports whether c is ambiguous or unknown.
func (c Category) IsSentinel() bool {
	return c == CategoryAmbiguous || c == CategoryUnknown
}

func (c Category) String() string {
	return string(c)
}

// ParseCategory converts a case-insensitive name into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// ParseCategories parses a comma-separated list, dropping empty items.
func ParseCategories(list string) ([]Category, error) {
	var out []Category
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		c, err := ParseCategory(part)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Classification is the outcome of classifying one command.
type Classification struct {
	Category  Category `json:"category"`
	Reasoning string   `json:"reasoning,omitempty"`
}

// Dispatchable reports whether the command can be handed to an executor.
func (c Classification) Dispatchable() bool {
	return c.Category.IsValid()
}

// OutputType is the rendering class of an output line.
type OutputType string

const (
	OutputCommand OutputType = "command"
	OutputText    OutputType = "output"
	OutputError   OutputType = "error"
	OutputInfo    OutputType = "info"
	OutputWarning OutputType = "warning"
)

// OutputLine is a single rendered line in the console transcript.
type OutputLine struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	Type      OutputType `json:"type"`
	Category  Category   `json:"category,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Flag      *int       `json:"flag,omitempty"`
}

// Datatype is the inferred type of a stored variable.
type Datatype string

const (
	DatatypeInteger Datatype = "integer"
	DatatypeReal    Datatype = "real"
	DatatypeBoolean Datatype = "boolean"
	DatatypeString  Datatype = "string"
	DatatypeNone    Datatype = "none"
	DatatypeUnknown Datatype = "unknown"
)

// Variable is a typed entry of the variable store. Value is string-serialized.
type Variable struct {
	Name         string   `json:"name"`
	Datatype     Datatype `json:"datatype"`
	Value        string   `json:"value"`
	Min          *string  `json:"min,omitempty"`
	Max          *string  `json:"max,omitempty"`
	DefaultValue *string  `json:"default_value,omitempty"`
}

// CustomCommand is a session-scoped user-defined internal command.
type CustomCommand struct {
	Short       string `json:"short"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Action      string `json:"action"`
}

// AITool is metadata about an AI tool available to the session.
type AITool struct {
	Name            string `json:"name"`
	ArgsDescription string `json:"args_description"`
	Description     string `json:"description"`
	Active          bool   `json:"active"`
}

// AuditRecord is a decision record written for every internal command dispatch.
type AuditRecord struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Action     string    `json:"action"`
	InputsHash string    `json:"inputs_hash"`
	Outcome    string    `json:"outcome"`
	Details    string    `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Download describes a file the caller should offer to the user.
type Download struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
}
