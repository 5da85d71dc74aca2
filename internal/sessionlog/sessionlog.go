// Package sessionlog holds the ordered, append-only log of a shell session.
package sessionlog

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrEmptyLog is returned when exporting a log that has no entries.
var ErrEmptyLog = errors.New("no log entries to export")

// Severity of a log entry.
type Severity string

const (
	Info    Severity = "Info"
	Warning Severity = "Warning"
	Error   Severity = "Error"
)

// Flag values. FlagNotable marks error-adjacent entries.
const (
	FlagNone    = 0
	FlagNotable = 1
)

// CSVHeader is the first line of an exported log.
const CSVHeader = "Timestamp,Type,Flag,Text"

// Entry is one structured log entry.
type Entry struct {
	Timestamp string   `json:"timestamp"`
	Severity  Severity `json:"severity"`
	Flag      int      `json:"flag"`
	Text      string   `json:"text"`
}

// NewEntry creates an entry stamped with the current UTC time.
func NewEntry(sev Severity, flag int, text string) Entry {
	return Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Severity:  sev,
		Flag:      flag,
		Text:      text,
	}
}

// InfoEntry is a shorthand for an Info entry without the notable flag.
func InfoEntry(text string) Entry { return NewEntry(Info, FlagNone, text) }

// WarnEntry is a shorthand for a notable Warning entry.
func WarnEntry(text string) Entry { return NewEntry(Warning, FlagNotable, text) }

// ErrorEntry is a shorthand for a notable Error entry.
func ErrorEntry(text string) Entry { return NewEntry(Error, FlagNotable, text) }

// Log is an ordered sequence of entries. Append never mutates the receiver's
// backing array, so a Log handed to a caller stays stable.
type Log []Entry

// Append returns a new Log with entries added at the end, in order.
func (l Log) Append(entries ...Entry) Log {
	out := make(Log, 0, len(l)+len(entries))
	out = append(out, l...)
	return append(out, entries...)
}

// Len returns the number of entries.
func (l Log) Len() int { return len(l) }

// ExportCSV renders the log as CSV: header plus one quoted row per entry.
// An empty log yields ErrEmptyLog.
func (l Log) ExportCSV() (string, error) {
	if len(l) == 0 {
		return "", ErrEmptyLog
	}

	var b strings.Builder
	b.WriteString(CSVHeader)
	for _, e := range l {
		b.WriteString("\n")
		b.WriteString(strings.Join([]string{
			quote(e.Timestamp),
			quote(string(e.Severity)),
			quote(strconv.Itoa(e.Flag)),
			quote(e.Text),
		}, ","))
	}
	return b.String(), nil
}

// quote wraps a field in double quotes, doubling embedded quotes. Line breaks
// are escaped so every entry stays on one line.
func quote(field string) string {
	field = strings.NewReplacer("\r\n", `\n`, "\n", `\n`, "\r", `\n`).Replace(field)
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}
