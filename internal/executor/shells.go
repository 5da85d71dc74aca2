package executor

import (
	"context"
	"strings"
	"time"

	"github.com/fentz26/simshell/internal/models"
)

// Unix simulates a handful of POSIX shell builtins.
type Unix struct {
	delay *Delayer
	now   func() time.Time
}

// NewUnix creates the unix executor.
func NewUnix(d *Delayer) *Unix {
	return &Unix{delay: d, now: time.Now}
}

// Category returns unix.
func (u *Unix) Category() models.Category { return models.CategoryUnix }

// Execute handles echo, pwd, ls, whoami and date.
func (u *Unix) Execute(ctx context.Context, req Request) (*Result, error) {
	if err := u.delay.Wait(ctx); err != nil {
		return nil, err
	}

	cmd := strings.TrimSpace(req.Command)
	cat := u.Category()
	verb, args := splitVerb(cmd)

	switch verb {
	case "echo":
		return ok(cat, cmd, output(unquote(args))), nil
	case "pwd":
		return ok(cat, cmd, output("/home/"+userOr(req.UserID, "user"))), nil
	case "ls":
		return ok(cat, cmd, output("Documents  Downloads  notes.txt  project")), nil
	case "whoami":
		return ok(cat, cmd, output(userOr(req.UserID, "user"))), nil
	case "date":
		return ok(cat, cmd, output(u.now().UTC().Format("Mon Jan _2 15:04:05 UTC 2006"))), nil
	}
	return placeholder(cat, cmd), nil
}

// Windows simulates a handful of cmd.exe builtins.
type Windows struct {
	delay *Delayer
}

// NewWindows creates the windows executor.
func NewWindows(d *Delayer) *Windows {
	return &Windows{delay: d}
}

// Category returns windows.
func (w *Windows) Category() models.Category { return models.CategoryWindows }

// Execute handles echo, cd, dir and ver.
func (w *Windows) Execute(ctx context.Context, req Request) (*Result, error) {
	if err := w.delay.Wait(ctx); err != nil {
		return nil, err
	}

	cmd := strings.TrimSpace(req.Command)
	cat := w.Category()
	verb, args := splitVerb(cmd)
	home := `C:\Users\` + userOr(req.UserID, "User")

	switch verb {
	case "echo":
		return ok(cat, cmd, output(unquote(args))), nil
	case "cd":
		if args == "" {
			return ok(cat, cmd, output(home)), nil
		}
		return ok(cat, cmd), nil
	case "dir":
		return ok(cat, cmd,
			output(" Directory of "+home),
			output(""),
			output("<DIR>          Documents"),
			output("<DIR>          Downloads"),
			output("           512 notes.txt"),
		), nil
	case "ver":
		return ok(cat, cmd, output("Microsoft Windows [Version 10.0.19045.4291]")), nil
	}
	return placeholder(cat, cmd), nil
}

// splitVerb returns the lowercased first word and the trimmed remainder.
func splitVerb(cmd string) (string, string) {
	verb, rest, _ := strings.Cut(cmd, " ")
	return strings.ToLower(verb), strings.TrimSpace(rest)
}

// unquote strips one pair of matching surrounding quotes.
func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

func userOr(user, fallback string) string {
	if user == "" {
		return fallback
	}
	return user
}
