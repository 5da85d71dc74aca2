// Package commands defines the static table of built-in internal commands
// and the small grammar used to recognize them.
package commands

import (
	"sort"
	"strings"

	"github.com/fentz26/simshell/internal/perm"
)

// Canonical built-in names.
const (
	Help             = "help"
	Clear            = "clear"
	History          = "history"
	Define           = "define"
	Refine           = "refine"
	AddIntCmd        = "add_int_cmd"
	AddAITool        = "add_ai_tool"
	AddRole          = "add_role"
	SetAIToolActive  = "set_ai_tool_active"
	SetSimMode       = "set_sim_mode"
	ExportLog        = "export_log"
	ExportDB         = "export_db"
	Pause            = "pause"
	CreateSQLite     = "create_sqlite"
	ShowRequirements = "show_requirements"
	PersistMemoryDB  = "persist_memory_db_to"
	Init             = "init"
	InitDB           = "init_db"
	ListPyVars       = "list_py_vars"
	AI               = "ai"
	Assign           = "assign"
)

// Definition is immutable metadata for one built-in command.
type Definition struct {
	Name        string
	Phrases     [][]string
	Description string
	ArgFormat   string
	Args        []string
	Example     string
	Permission  string
}

// Usage returns the one-line usage string.
func (d *Definition) Usage() string {
	if len(d.Phrases) == 0 {
		return d.ArgFormat
	}
	head := strings.Join(d.Phrases[0], " ")
	if d.ArgFormat == "" {
		return head
	}
	return head + " " + d.ArgFormat
}

func phrase(s string) []string { return strings.Fields(s) }

var builtins = []*Definition{
	{
		Name:        Help,
		Phrases:     [][]string{phrase("help")},
		Description: "List built-in commands, or show details for one",
		ArgFormat:   "[command]",
		Args:        []string{"command: optional built-in name, e.g. add_int_cmd"},
		Example:     "help add_int_cmd",
	},
	{
		Name:        Clear,
		Phrases:     [][]string{phrase("clear")},
		Description: "Clear the console output",
		Example:     "clear",
	},
	{
		Name:        History,
		Phrases:     [][]string{phrase("history")},
		Description: "Show the commands entered in this session",
		Example:     "history",
	},
	{
		Name:        Define,
		Phrases:     [][]string{phrase("define")},
		Description: "Ask the AI for a short definition and store it in 'definition'",
		ArgFormat:   "<term>",
		Args:        []string{"term: word or phrase to define"},
		Example:     "define idempotent",
		Permission:  perm.UseAITools,
	},
	{
		Name:        Refine,
		Phrases:     [][]string{phrase("refine")},
		Description: "Ask the AI to rewrite a prompt; {variables} are substituted first",
		ArgFormat:   `"<prompt>"`,
		Args:        []string{"prompt: quoted prompt text"},
		Example:     `refine "summarize {topic} in one line"`,
		Permission:  perm.UseAITools,
	},
	{
		Name:        AddIntCmd,
		Phrases:     [][]string{phrase("add_int_cmd")},
		Description: "Register a custom internal command that echoes an action",
		ArgFormat:   `<short> <name> "<description>" <action...>`,
		Args: []string{
			"short: short alias",
			"name: command name, must not collide with a built-in",
			"description: quoted description",
			"action: remaining text, echoed verbatim on invocation",
		},
		Example:    `add_int_cmd gr greet "Say hello" Hello there!`,
		Permission: perm.ManageCommands,
	},
	{
		Name:        AddAITool,
		Phrases:     [][]string{phrase("add ai_tool"), phrase("add_ai_tool")},
		Description: "Add or update an AI tool description",
		ArgFormat:   `<name> "<args_description>" "<description>"`,
		Args: []string{
			"name: tool name",
			"args_description: quoted argument description",
			"description: quoted tool description",
		},
		Example:    `add ai_tool summarize "text: input" "Summarizes text"`,
		Permission: perm.ManageAITools,
	},
	{
		Name:        SetAIToolActive,
		Phrases:     [][]string{phrase("set ai_tool"), phrase("set_ai_tool_active")},
		Description: "Activate or deactivate an AI tool",
		ArgFormat:   "<name> active <0|1>",
		Args:        []string{"name: tool name", "0|1: inactive or active"},
		Example:     "set ai_tool summarize active 0",
		Permission:  perm.ManageAITools,
	},
	{
		Name:        AddRole,
		Phrases:     [][]string{phrase("add_role"), phrase("add role")},
		Description: "Assign a role to a user, granting the role any listed permissions",
		ArgFormat:   "<user_id> <role> [permission,...]",
		Args: []string{
			"user_id: user identity",
			"role: role name",
			"permission: optional comma-separated permission names",
		},
		Example:    "add_role alice analyst use_ai_tools,export_data",
		Permission: perm.ManageRoles,
	},
	{
		Name:        SetSimMode,
		Phrases:     [][]string{phrase("set sim_mode"), phrase("set_sim_mode")},
		Description: "Turn simulated latency on (1) or off (0)",
		ArgFormat:   "<0|1>",
		Args:        []string{"0|1: simulation mode"},
		Example:     "set sim_mode 0",
		Permission:  perm.ManageVariables,
	},
	{
		Name:        ExportLog,
		Phrases:     [][]string{phrase("export log"), phrase("export_log")},
		Description: "Export the session log as CSV",
		Example:     "export log",
		Permission:  perm.ExportData,
	},
	{
		Name:        ExportDB,
		Phrases:     [][]string{phrase("export db"), phrase("export_db")},
		Description: "Export all store tables as JSON",
		Example:     "export db",
		Permission:  perm.ExportData,
	},
	{
		Name:        Pause,
		Phrases:     [][]string{phrase("pause")},
		Description: "Request a pause (advisory; in-flight work is not interrupted)",
		Example:     "pause",
	},
	{
		Name:        CreateSQLite,
		Phrases:     [][]string{phrase("create sqlite"), phrase("create_sqlite")},
		Description: "Confirm the shared in-memory SQLite store is ready",
		ArgFormat:   "[filename]",
		Args:        []string{"filename: accepted and ignored"},
		Example:     "create sqlite mydb.db",
	},
	{
		Name:        ShowRequirements,
		Phrases:     [][]string{phrase("show_requirements"), phrase("show requirements")},
		Description: "Show the permission each built-in requires and whether you hold it",
		Example:     "show_requirements",
	},
	{
		Name:        PersistMemoryDB,
		Phrases:     [][]string{phrase("persist memory db to"), phrase("persist_memory_db_to")},
		Description: "Write a snapshot of the store to a .db file",
		ArgFormat:   "[filename.db]",
		Args:        []string{"filename.db: letters, digits, _ - . only; defaults to " + DefaultPersistFile},
		Example:     "persist memory db to backup.db",
		Permission:  perm.ManageDatabase,
	},
	{
		Name:        InitDB,
		Phrases:     [][]string{phrase("init db"), phrase("init_db")},
		Description: "Create the store tables and default roles if missing",
		Example:     "init db",
	},
	{
		Name:        Init,
		Phrases:     [][]string{phrase("init")},
		Description: "Create the store tables and seed default variables",
		Example:     "init",
	},
	{
		Name:        ListPyVars,
		Phrases:     [][]string{phrase("list py vars"), phrase("list_py_vars")},
		Description: "List stored variables with their types",
		Example:     "list py vars",
	},
	{
		Name:        AI,
		Phrases:     [][]string{phrase("ai")},
		Description: "Ask the AI; the answer is stored in 'ai_answer'",
		ArgFormat:   "<text>",
		Args:        []string{"text: free text; {variables} are substituted first"},
		Example:     "ai what is a monad?",
		Permission:  perm.UseAITools,
	},
	{
		Name:        Assign,
		Description: "Assign a typed variable",
		ArgFormat:   "<name> = <literal>",
		Args:        []string{"name: identifier", "literal: 42, 3.14, True, \"text\" or bare text"},
		Example:     "count = 5",
		Permission:  perm.ManageVariables,
	},
}

// DefaultPersistFile is the snapshot name used when none is given.
const DefaultPersistFile = "simshell_memory.db"

// Builtins returns the built-in definitions in help order.
func Builtins() []*Definition {
	return builtins
}

// Lookup finds a definition by canonical name or by any of its phrases.
func Lookup(name string) (*Definition, bool) {
	key := strings.ToLower(strings.Join(strings.Fields(name), " "))
	for _, d := range builtins {
		if d.Name == key {
			return d, true
		}
		for _, p := range d.Phrases {
			if strings.Join(p, " ") == key {
				return d, true
			}
		}
	}
	return nil, false
}

// Phrases returns every verb phrase, lowercase and space-joined, longest first.
func Phrases() []string {
	var out []string
	for _, d := range builtins {
		for _, p := range d.Phrases {
			out = append(out, strings.Join(p, " "))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

// IsReserved reports whether name (case-insensitive) is a built-in name or
// the leading word of a built-in phrase.
func IsReserved(name string) bool {
	key := strings.ToLower(name)
	for _, d := range builtins {
		if d.Name == key {
			return true
		}
		for _, p := range d.Phrases {
			if p[0] == key {
				return true
			}
		}
	}
	return false
}

// Match finds the built-in whose phrase matches the longest run of leading
// unquoted tokens. n is the number of tokens consumed.
func Match(tokens []Token) (def *Definition, n int) {
	for _, d := range builtins {
		for _, p := range d.Phrases {
			if len(p) <= n || len(p) > len(tokens) {
				continue
			}
			if phraseMatches(p, tokens) {
				def, n = d, len(p)
			}
		}
	}
	return def, n
}

func phraseMatches(p []string, tokens []Token) bool {
	for i, word := range p {
		if tokens[i].Quoted || !strings.EqualFold(tokens[i].Text, word) {
			return false
		}
	}
	return true
}
