// Package interp implements the internal command interpreter: built-in
// commands, custom commands, the permission gate and audit.
//
// Dispatch is pure with respect to caller state. Everything the caller has
// to apply (new log, custom command table, transcript clear) comes back in
// the Result; only the injected store is written to.
package interp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fentz26/simshell/internal/audit"
	"github.com/fentz26/simshell/internal/commands"
	"github.com/fentz26/simshell/internal/executor"
	"github.com/fentz26/simshell/internal/models"
	"github.com/fentz26/simshell/internal/oracle"
	"github.com/fentz26/simshell/internal/perm"
	"github.com/fentz26/simshell/internal/sessionlog"
	"github.com/fentz26/simshell/internal/store"
	"github.com/fentz26/simshell/internal/vars"
)

// Request is one internal command together with the caller state it may read.
type Request struct {
	UserID      string
	Permissions perm.Set
	OverrideAll bool
	Command     string
	Log         sessionlog.Log
	Custom      []models.CustomCommand
	History     []string
}

// Line is one line of interpreter output.
type Line struct {
	Text string
	Type models.OutputType
}

// Result describes the output and effects of one dispatch.
type Result struct {
	Lines []Line
	// Entries are the log entries this dispatch produced, in order.
	Entries []sessionlog.Entry
	// Log is the request log with Entries appended.
	Log sessionlog.Log
	// Variables lists variables written by this dispatch.
	Variables []models.Variable
	// Custom is the new custom command table when CustomChanged is set.
	Custom        []models.CustomCommand
	CustomChanged bool
	// ClearHistory asks the caller to clear its transcript.
	ClearHistory   bool
	PauseRequested bool
	Downloads      []models.Download
	// Action is the canonical name of the command that ran.
	Action  string
	Outcome string
}

func (r *Result) line(text string, t models.OutputType) {
	r.Lines = append(r.Lines, Line{Text: text, Type: t})
}

func (r *Result) output(text string) { r.line(text, models.OutputText) }
func (r *Result) note(text string)   { r.line(text, models.OutputInfo) }

func (r *Result) logInfo(text string) { r.Entries = append(r.Entries, sessionlog.InfoEntry(text)) }

// ok records a successful step: an output line and an Info entry.
func (r *Result) ok(text string) {
	r.output(text)
	r.logInfo(text)
}

// warn records a recoverable condition such as a missing target.
func (r *Result) warn(text string) {
	r.line(text, models.OutputWarning)
	r.Entries = append(r.Entries, sessionlog.WarnEntry(text))
}

// fail records a hard failure.
func (r *Result) fail(text string) {
	r.line(text, models.OutputError)
	r.Entries = append(r.Entries, sessionlog.ErrorEntry(text))
}

// outcome derives the audit outcome from the worst entry severity.
func (r *Result) outcome() string {
	out := audit.OutcomeSuccess
	for _, e := range r.Entries {
		switch e.Severity {
		case sessionlog.Error:
			return audit.OutcomeError
		case sessionlog.Warning:
			out = audit.OutcomeWarning
		}
	}
	return out
}

// Config tunes the dispatcher.
type Config struct {
	// DataDir is where persist writes snapshots.
	DataDir string
	// AdminUsers receive the admin role on "init db".
	AdminUsers []string
	// DefaultVariables are seeded by "init" when missing.
	DefaultVariables []models.Variable
}

// Dispatcher executes internal commands.
type Dispatcher struct {
	store  *store.Store
	vars   *vars.Store
	gen    oracle.TextGenerator
	audit  *audit.Recorder
	delay  *executor.Delayer
	logger *zap.Logger
	cfg    Config

	handlers map[string]handler
}

type handler func(ctx context.Context, c *call)

// call carries the parsed command into a handler.
type call struct {
	req  Request
	def  *commands.Definition
	args []commands.Token
	// rest is the raw text after the verb phrase.
	rest string
	res  *Result
}

func (c *call) usage() {
	c.res.fail(fmt.Sprintf("Invalid syntax. Usage: %s", c.def.Usage()))
}

// New creates a dispatcher. gen may be nil, in which case AI commands report
// that no backend is configured. delay may be nil.
func New(s *store.Store, gen oracle.TextGenerator, delay *executor.Delayer, logger *zap.Logger, cfg Config) *Dispatcher {
	if gen == nil {
		gen = oracle.Offline{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultVariables == nil {
		cfg.DefaultVariables = DefaultVariables()
	}
	d := &Dispatcher{
		store:  s,
		vars:   vars.NewStore(s),
		gen:    gen,
		audit:  audit.NewRecorder(s),
		delay:  delay,
		logger: logger,
		cfg:    cfg,
	}
	d.handlers = map[string]handler{
		commands.Help:             d.help,
		commands.Clear:            d.clear,
		commands.History:          d.history,
		commands.Define:           d.define,
		commands.Refine:           d.refine,
		commands.AddIntCmd:        d.addIntCmd,
		commands.AddAITool:        d.addAITool,
		commands.SetAIToolActive:  d.setAIToolActive,
		commands.AddRole:          d.addRole,
		commands.SetSimMode:       d.setSimMode,
		commands.ExportLog:        d.exportLog,
		commands.ExportDB:         d.exportDB,
		commands.Pause:            d.pause,
		commands.CreateSQLite:     d.createSQLite,
		commands.ShowRequirements: d.showRequirements,
		commands.PersistMemoryDB:  d.persist,
		commands.Init:             d.initialize,
		commands.InitDB:           d.initDB,
		commands.ListPyVars:       d.listVars,
		commands.AI:               d.ai,
		commands.Assign:           d.assign,
	}
	return d
}

// Dispatch runs one internal command. It never panics and always returns a
// Result with at least one log entry.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (res *Result) {
	res = &Result{}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("internal command panicked",
				zap.String("command", req.Command),
				zap.Any("panic", r),
			)
			res.fail(fmt.Sprintf("Error: %v", r))
			res.Outcome = audit.OutcomeError
			d.finish(ctx, req, res)
		}
	}()

	d.dispatch(ctx, req, res)
	if res.Outcome == "" {
		res.Outcome = res.outcome()
	}
	d.finish(ctx, req, res)
	return res
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request, res *Result) {
	command := strings.TrimSpace(req.Command)
	tokens, err := commands.Tokenize(command)
	if err != nil {
		res.Action = "parse"
		res.fail(fmt.Sprintf("Syntax error: %v", err))
		return
	}
	if len(tokens) == 0 {
		res.Action = "empty"
		res.warn("Empty command")
		return
	}

	// `name = literal` is an assignment even when name is a command verb.
	var def *commands.Definition
	var n int
	if _, _, isAssign := vars.ParseAssignment(command); isAssign {
		def = mustLookup(commands.Assign)
	} else {
		def, n = commands.Match(tokens)
	}

	if def == nil {
		if c, found := FindCustom(req.Custom, tokens[0].Text); found && !tokens[0].Quoted {
			res.Action = "custom:" + c.Name
			d.runCustom(ctx, c, res)
			return
		}
		res.Action = "unknown"
		res.warn(fmt.Sprintf("Command not found: %s. Type 'help' to list commands.", tokens[0].Text))
		return
	}

	res.Action = def.Name
	if !perm.Allowed(req.Permissions, def.Permission, req.OverrideAll) {
		res.fail(fmt.Sprintf("Permission denied: '%s' requires the '%s' permission", def.Name, def.Permission))
		res.Outcome = audit.OutcomeDenied
		return
	}

	c := &call{
		req:  req,
		def:  def,
		args: tokens[n:],
		rest: commands.Rest(command, tokens, n),
		res:  res,
	}
	if def.Name == commands.Assign {
		c.rest = command
	}
	d.handlers[def.Name](ctx, c)
}

// finish guarantees a log entry, extends the log and writes the audit record.
func (d *Dispatcher) finish(ctx context.Context, req Request, res *Result) {
	if len(res.Entries) == 0 {
		res.logInfo(fmt.Sprintf("Executed internal command: %s", strings.TrimSpace(req.Command)))
	}
	res.Log = req.Log.Append(res.Entries...)

	inputs := map[string]string{"command": req.Command}
	if _, err := d.audit.Record(ctx, req.UserID, res.Action, inputs, res.Outcome, ""); err != nil {
		d.logger.Warn("failed to write audit record",
			zap.String("action", res.Action),
			zap.Error(err),
		)
	}
}

func (d *Dispatcher) runCustom(ctx context.Context, c models.CustomCommand, res *Result) {
	if err := d.delay.Wait(ctx); err != nil {
		res.warn(fmt.Sprintf("Custom command '%s' cancelled: %v", c.Name, err))
		return
	}
	res.output(c.Action)
	res.logInfo(fmt.Sprintf("Executed custom command: %s", c.Name))
}

// storeFailure formats a backing-store error, pointing at init when the
// tables are missing.
func storeFailure(op string, err error) string {
	if errors.Is(err, store.ErrNotInitialized) {
		return fmt.Sprintf("%s failed: database not initialized. Run 'init' or 'init db' first.", op)
	}
	return fmt.Sprintf("%s failed: %v", op, err)
}

func mustLookup(name string) *commands.Definition {
	def, ok := commands.Lookup(name)
	if !ok {
		panic("unknown built-in " + name)
	}
	return def
}
