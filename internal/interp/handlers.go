package interp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fentz26/simshell/internal/commands"
	"github.com/fentz26/simshell/internal/executor"
	"github.com/fentz26/simshell/internal/models"
	"github.com/fentz26/simshell/internal/oracle"
	"github.com/fentz26/simshell/internal/perm"
	"github.com/fentz26/simshell/internal/sessionlog"
	"github.com/fentz26/simshell/internal/vars"
)

// Variables written by built-ins.
const (
	AIAnswerVar   = "ai_answer"
	DefinitionVar = "definition"
)

// Seeded roles.
const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

var safeFilenameRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+\.db$`)

// DefaultVariables returns the variables seeded by "init".
func DefaultVariables() []models.Variable {
	str := func(s string) *string { return &s }
	return []models.Variable{
		{Name: executor.SimModeVar, Datatype: models.DatatypeInteger, Value: "1", Min: str("0"), Max: str("1"), DefaultValue: str("1")},
		{Name: "history_limit", Datatype: models.DatatypeInteger, Value: "100", Min: str("1"), DefaultValue: str("100")},
		{Name: "prompt_prefix", Datatype: models.DatatypeString, Value: "$", DefaultValue: str("$")},
	}
}

func (d *Dispatcher) help(ctx context.Context, c *call) {
	if c.rest == "" {
		c.res.note("Available commands:")
		for _, def := range commands.Builtins() {
			c.res.output(fmt.Sprintf("  %-40s %s", def.Usage(), def.Description))
		}
		if len(c.req.Custom) > 0 {
			c.res.note("Custom commands:")
			for _, cc := range c.req.Custom {
				c.res.output(fmt.Sprintf("  %-40s %s", cc.Name+" ("+cc.Short+")", cc.Description))
			}
		}
		c.res.logInfo("Displayed help")
		return
	}

	topic := strings.Trim(c.rest, `"`)
	if def, ok := commands.Lookup(topic); ok {
		c.res.note(def.Name)
		c.res.output("  " + def.Description)
		c.res.output("  Usage: " + def.Usage())
		for _, a := range def.Args {
			c.res.output("    " + a)
		}
		if def.Example != "" {
			c.res.output("  Example: " + def.Example)
		}
		required := def.Permission
		if required == "" {
			required = "none"
		}
		c.res.output("  Permission: " + required)
		c.res.logInfo("Displayed help for " + def.Name)
		return
	}
	if cc, ok := FindCustom(c.req.Custom, topic); ok {
		c.res.note(cc.Name + " (" + cc.Short + ")")
		c.res.output("  " + cc.Description)
		c.res.output("  Action: " + cc.Action)
		c.res.logInfo("Displayed help for custom command " + cc.Name)
		return
	}
	c.res.warn(fmt.Sprintf("No help available for '%s'", topic))
}

func (d *Dispatcher) clear(ctx context.Context, c *call) {
	c.res.ClearHistory = true
	c.res.logInfo("Cleared console")
}

func (d *Dispatcher) history(ctx context.Context, c *call) {
	if len(c.req.History) == 0 {
		c.res.note("No commands in history")
	}
	for i, h := range c.req.History {
		c.res.output(fmt.Sprintf("%4d  %s", i+1, h))
	}
	c.res.logInfo(fmt.Sprintf("Displayed %d history entries", len(c.req.History)))
}

func (d *Dispatcher) define(ctx context.Context, c *call) {
	if c.rest == "" {
		c.usage()
		return
	}
	term := strings.Trim(c.rest, `"`)
	prompt := fmt.Sprintf("Define %q in one or two sentences.", term)
	d.generate(ctx, c, prompt, DefinitionVar)
}

func (d *Dispatcher) refine(ctx context.Context, c *call) {
	if len(c.args) != 1 || !c.args[0].Quoted || strings.TrimSpace(c.args[0].Text) == "" {
		c.usage()
		return
	}
	text := d.substitute(ctx, c, c.args[0].Text)
	prompt := "Rewrite the following prompt so it is clear and specific. Reply with the rewritten prompt only.\n\n" + text
	d.generate(ctx, c, prompt, "")
}

func (d *Dispatcher) ai(ctx context.Context, c *call) {
	if c.rest == "" {
		c.usage()
		return
	}
	text := d.substitute(ctx, c, c.rest)
	d.generate(ctx, c, text, AIAnswerVar)
}

// substitute expands {name} placeholders, warning about unknown names.
func (d *Dispatcher) substitute(ctx context.Context, c *call, text string) string {
	out, missing, err := d.vars.Substitute(ctx, text)
	if err != nil {
		// Without a variables table there is nothing to substitute.
		d.logger.Debug("placeholder substitution skipped", zap.Error(err))
		return text
	}
	for _, name := range missing {
		c.res.warn(fmt.Sprintf("Variable '%s' not found", name))
	}
	return out
}

// generate asks the text generator and shows the answer. When storeAs is
// set the answer is also upserted as a string variable; a storage failure
// never hides the answer.
func (d *Dispatcher) generate(ctx context.Context, c *call, prompt, storeAs string) {
	answer, err := d.gen.Generate(ctx, prompt)
	if err != nil {
		if errors.Is(err, oracle.ErrNoBackend) {
			c.res.fail("AI is not available: no generation backend configured")
			return
		}
		c.res.fail(fmt.Sprintf("AI request failed: %v", err))
		return
	}

	for _, l := range strings.Split(answer, "\n") {
		c.res.output(l)
	}
	if storeAs == "" {
		c.res.logInfo(fmt.Sprintf("AI %s completed", c.def.Name))
		return
	}

	v := models.Variable{Name: storeAs, Datatype: models.DatatypeString, Value: answer}
	if err := d.vars.Put(ctx, v); err != nil {
		c.res.warn(fmt.Sprintf("Answer shown above but not saved to '%s': %s", storeAs, storeFailure("save", err)))
		return
	}
	c.res.Variables = append(c.res.Variables, v)
	c.res.logInfo(fmt.Sprintf("AI answer stored in '%s'", storeAs))
}

func (d *Dispatcher) addIntCmd(ctx context.Context, c *call) {
	a := c.args
	if len(a) < 4 || a[0].Quoted || a[1].Quoted || !a[2].Quoted {
		c.usage()
		return
	}
	cmd := models.CustomCommand{
		Short:       a[0].Text,
		Name:        a[1].Text,
		Description: a[2].Text,
		Action:      strings.TrimSpace(c.rest[a[3].Start-a[0].Start:]),
	}

	updated, err := AddCustom(c.req.Custom, cmd)
	if err != nil {
		c.res.fail(fmt.Sprintf("Cannot add custom command: %v", err))
		return
	}
	c.res.Custom = updated
	c.res.CustomChanged = true
	c.res.ok(fmt.Sprintf("Custom command '%s' (%s) added", cmd.Name, cmd.Short))
}

func (d *Dispatcher) addAITool(ctx context.Context, c *call) {
	a := c.args
	if len(a) != 3 || a[0].Quoted || !a[1].Quoted || !a[2].Quoted {
		c.usage()
		return
	}
	tool := models.AITool{Name: a[0].Text, ArgsDescription: a[1].Text, Description: a[2].Text, Active: true}
	if err := d.store.UpsertAITool(ctx, tool); err != nil {
		c.res.fail(storeFailure("Saving AI tool", err))
		return
	}
	c.res.ok(fmt.Sprintf("AI tool '%s' saved", tool.Name))
}

func (d *Dispatcher) setAIToolActive(ctx context.Context, c *call) {
	a := c.args
	if len(a) != 3 || !strings.EqualFold(a[1].Text, "active") || (a[2].Text != "0" && a[2].Text != "1") {
		c.usage()
		return
	}
	active := a[2].Text == "1"
	found, err := d.store.SetAIToolActive(ctx, a[0].Text, active)
	if err != nil {
		c.res.fail(storeFailure("Updating AI tool", err))
		return
	}
	if !found {
		c.res.warn(fmt.Sprintf("AI tool '%s' not found", a[0].Text))
		return
	}
	state := "inactive"
	if active {
		state = "active"
	}
	c.res.ok(fmt.Sprintf("AI tool '%s' is now %s", a[0].Text, state))
}

func (d *Dispatcher) addRole(ctx context.Context, c *call) {
	a := c.args
	if len(a) < 2 || a[0].Quoted || a[1].Quoted {
		c.usage()
		return
	}

	var perms []string
	known := perm.NewSet(perm.All()...)
	for _, tok := range a[2:] {
		for _, p := range strings.Split(tok.Text, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if !known.Has(p) {
				c.res.fail(fmt.Sprintf("Unknown permission '%s'. Known: %s", p, strings.Join(perm.All(), ", ")))
				return
			}
			perms = append(perms, p)
		}
	}

	if err := d.store.AddRole(ctx, a[0].Text, a[1].Text, perms); err != nil {
		c.res.fail(storeFailure("Adding role", err))
		return
	}
	msg := fmt.Sprintf("Role '%s' assigned to '%s'", a[1].Text, a[0].Text)
	if len(perms) > 0 {
		msg += " with " + strings.Join(perms, ", ")
	}
	c.res.ok(msg)
}

func (d *Dispatcher) setSimMode(ctx context.Context, c *call) {
	if len(c.args) != 1 || (c.args[0].Text != "0" && c.args[0].Text != "1") {
		c.usage()
		return
	}
	v := models.Variable{Name: executor.SimModeVar, Datatype: models.DatatypeInteger, Value: c.args[0].Text}
	if err := d.vars.Put(ctx, v); err != nil {
		c.res.fail(storeFailure("Setting sim_mode", err))
		return
	}
	c.res.Variables = append(c.res.Variables, v)
	if v.Value == "1" {
		c.res.ok("Simulation mode on: executors add simulated latency")
	} else {
		c.res.ok("Simulation mode off")
	}
}

func timestamp() string {
	return time.Now().UTC().Format("20060102_150405")
}

func (d *Dispatcher) exportLog(ctx context.Context, c *call) {
	csv, err := c.req.Log.ExportCSV()
	if errors.Is(err, sessionlog.ErrEmptyLog) {
		c.res.warn("No log entries to export")
		return
	}
	if err != nil {
		c.res.fail(fmt.Sprintf("Export failed: %v", err))
		return
	}
	dl := models.Download{
		Filename:    "session_log_" + timestamp() + ".csv",
		ContentType: "text/csv",
		Content:     csv,
	}
	c.res.Downloads = append(c.res.Downloads, dl)
	c.res.ok(fmt.Sprintf("Exported %d log entries to %s", c.req.Log.Len(), dl.Filename))
}

func (d *Dispatcher) exportDB(ctx context.Context, c *call) {
	dump, err := d.store.Dump(ctx)
	if err != nil {
		c.res.fail(storeFailure("Export", err))
		return
	}
	data, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		c.res.fail(fmt.Sprintf("Export failed: %v", err))
		return
	}
	dl := models.Download{
		Filename:    "simshell_db_" + timestamp() + ".json",
		ContentType: "application/json",
		Content:     string(data),
	}
	c.res.Downloads = append(c.res.Downloads, dl)
	c.res.ok(fmt.Sprintf("Exported %d tables to %s", len(dump), dl.Filename))
}

func (d *Dispatcher) pause(ctx context.Context, c *call) {
	c.res.PauseRequested = true
	c.res.note("Pause requested. Commands already running are not interrupted.")
	c.res.logInfo("Pause requested")
}

func (d *Dispatcher) createSQLite(ctx context.Context, c *call) {
	if err := d.store.Ping(ctx); err != nil {
		c.res.fail(fmt.Sprintf("SQLite store unavailable: %v", err))
		return
	}
	c.res.ok("In-memory SQLite database is ready")
	if c.rest != "" {
		c.res.note(fmt.Sprintf("The session uses one shared store; filename '%s' is ignored.", strings.Trim(c.rest, `"`)))
	}
}

func (d *Dispatcher) showRequirements(ctx context.Context, c *call) {
	if c.req.OverrideAll {
		c.res.line("Override is on: every permission check is bypassed", models.OutputWarning)
	}
	for _, def := range commands.Builtins() {
		if def.Permission == "" {
			c.res.output(fmt.Sprintf("  %-22s no permission required", def.Name))
			continue
		}
		state := "missing"
		if c.req.Permissions.Has(def.Permission) {
			state = "granted"
		}
		c.res.output(fmt.Sprintf("  %-22s %-20s %s", def.Name, def.Permission, state))
	}
	c.res.logInfo("Displayed command requirements")
}

func (d *Dispatcher) persist(ctx context.Context, c *call) {
	name := commands.DefaultPersistFile
	if len(c.args) > 1 {
		c.usage()
		return
	}
	if len(c.args) == 1 {
		name = c.args[0].Text
	}
	if !safeFilenameRe.MatchString(name) || strings.Contains(name, "..") {
		c.res.fail(fmt.Sprintf("Invalid filename '%s': use letters, digits, '_', '-', '.' and end with .db", name))
		return
	}

	path := filepath.Join(d.cfg.DataDir, name)
	if err := d.store.PersistTo(ctx, path); err != nil {
		c.res.fail(fmt.Sprintf("Persist failed: %v", err))
		return
	}
	c.res.ok(fmt.Sprintf("Database persisted to %s", path))
}

func (d *Dispatcher) initialize(ctx context.Context, c *call) {
	failures := 0
	if err := d.store.EnsureSchema(ctx); err != nil {
		failures++
		c.res.Entries = append(c.res.Entries, sessionlog.ErrorEntry(fmt.Sprintf("Schema setup failed: %v", err)))
	}

	seeded := 0
	for _, v := range d.cfg.DefaultVariables {
		_, found, err := d.vars.Lookup(ctx, v.Name)
		if err == nil && found {
			continue
		}
		if err == nil {
			err = d.vars.Put(ctx, v)
		}
		if err != nil {
			failures++
			c.res.Entries = append(c.res.Entries, sessionlog.ErrorEntry(fmt.Sprintf("Seeding variable '%s' failed: %v", v.Name, err)))
			continue
		}
		seeded++
		c.res.Variables = append(c.res.Variables, v)
	}

	if failures > 0 {
		c.res.fail(fmt.Sprintf("Initialization finished with %d failure(s); %d variable(s) seeded", failures, seeded))
		return
	}
	c.res.ok(fmt.Sprintf("Initialization complete; %d variable(s) seeded", seeded))
}

func (d *Dispatcher) initDB(ctx context.Context, c *call) {
	if err := d.store.EnsureSchema(ctx); err != nil {
		c.res.fail(fmt.Sprintf("Schema setup failed: %v", err))
		return
	}

	failures := 0
	roles := []struct {
		name  string
		perms []string
	}{
		{RoleAdmin, perm.All()},
		{RoleViewer, []string{perm.ExportData}},
	}
	for _, r := range roles {
		if err := d.store.AddRole(ctx, "", r.name, r.perms); err != nil {
			failures++
			c.res.Entries = append(c.res.Entries, sessionlog.ErrorEntry(fmt.Sprintf("Seeding role '%s' failed: %v", r.name, err)))
		}
	}
	for _, u := range d.cfg.AdminUsers {
		if err := d.store.AddRole(ctx, u, RoleAdmin, nil); err != nil {
			failures++
			c.res.Entries = append(c.res.Entries, sessionlog.ErrorEntry(fmt.Sprintf("Granting admin to '%s' failed: %v", u, err)))
		}
	}

	if failures > 0 {
		c.res.fail(fmt.Sprintf("Database initialization finished with %d failure(s)", failures))
		return
	}
	c.res.ok("Database initialized: roles admin and viewer are available")
}

func (d *Dispatcher) listVars(ctx context.Context, c *call) {
	list, err := d.vars.List(ctx)
	if err != nil {
		c.res.fail(storeFailure("Listing variables", err))
		return
	}
	if len(list) == 0 {
		c.res.note("No variables defined")
	}
	for _, v := range list {
		c.res.output(fmt.Sprintf("  %s (%s) = %s", v.Name, v.Datatype, v.Value))
	}
	c.res.logInfo(fmt.Sprintf("Listed %d variables", len(list)))
}

func (d *Dispatcher) assign(ctx context.Context, c *call) {
	name, literal, _ := vars.ParseAssignment(c.rest)
	v, err := d.vars.Assign(ctx, name, literal, vars.ModeInternal)
	if err != nil {
		c.res.fail(storeFailure(fmt.Sprintf("Assigning '%s'", name), err))
		return
	}
	c.res.Variables = append(c.res.Variables, v)
	c.res.ok(fmt.Sprintf("%s = %s (%s)", v.Name, v.Value, v.Datatype))
}
