package interp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fentz26/simshell/internal/models"
	"github.com/fentz26/simshell/internal/perm"
	"github.com/fentz26/simshell/internal/sessionlog"
	"github.com/fentz26/simshell/internal/store"
	"github.com/fentz26/simshell/internal/vars"
)

type fakeGenerator struct {
	answer  string
	err     error
	prompts []string
	panics  bool
}

func (g *fakeGenerator) Generate(ctx context.Context, input string) (string, error) {
	if g.panics {
		panic("generator exploded")
	}
	g.prompts = append(g.prompts, input)
	return g.answer, g.err
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestDispatcher(t *testing.T, gen *fakeGenerator) (*Dispatcher, *store.Store) {
	t.Helper()
	s := newTestStore(t)
	if gen == nil {
		gen = &fakeGenerator{answer: "42"}
	}
	d := New(s, gen, nil, nil, Config{DataDir: t.TempDir(), AdminUsers: []string{"root"}})
	return d, s
}

func admin(command string) Request {
	return Request{UserID: "alice", Permissions: perm.NewSet(perm.All()...), Command: command}
}

func lineTexts(res *Result) []string {
	out := make([]string, len(res.Lines))
	for i, l := range res.Lines {
		out[i] = l.Text
	}
	return out
}

func lastEntry(res *Result) sessionlog.Entry {
	return res.Entries[len(res.Entries)-1]
}

func TestDispatch_AlwaysLogs(t *testing.T) {
	d, _ := newTestDispatcher(t, nil)
	ctx := context.Background()

	var log sessionlog.Log
	for _, cmd := range []string{"help", "clear", "pause", "nonsense here", `refine "unterminated`, "set ai_tool x active 1", "history"} {
		req := admin(cmd)
		req.Log = log
		res := d.Dispatch(ctx, req)
		require.NotEmpty(t, res.Entries, cmd)
		assert.Equal(t, len(log)+len(res.Entries), res.Log.Len(), cmd)
		assert.Equal(t, len(log), req.Log.Len(), "request log must not change")
		log = res.Log
	}
}

func TestDispatch_UnknownCommand(t *testing.T) {
	d, _ := newTestDispatcher(t, nil)
	res := d.Dispatch(context.Background(), admin("frobnicate now"))

	require.Len(t, res.Lines, 1)
	assert.Equal(t, models.OutputWarning, res.Lines[0].Type)
	assert.Contains(t, res.Lines[0].Text, "Command not found")
	assert.Equal(t, sessionlog.Warning, lastEntry(res).Severity)
}

func TestDispatch_UnterminatedQuote(t *testing.T) {
	d, _ := newTestDispatcher(t, nil)
	res := d.Dispatch(context.Background(), admin(`add_int_cmd g greet "oops`))

	assert.Equal(t, models.OutputError, res.Lines[0].Type)
	assert.Equal(t, sessionlog.Error, lastEntry(res).Severity)
}

func TestAddIntCmd(t *testing.T) {
	d, _ := newTestDispatcher(t, nil)
	ctx := context.Background()

	res := d.Dispatch(ctx, admin(`add_int_cmd gr greet "Say hello" Hello,   "world"!`))
	require.True(t, res.CustomChanged)
	require.Len(t, res.Custom, 1)
	assert.Equal(t, models.CustomCommand{
		Short:       "gr",
		Name:        "greet",
		Description: "Say hello",
		Action:      `Hello,   "world"!`,
	}, res.Custom[0])

	for _, invoke := range []string{"greet", "GREET", "gr"} {
		req := admin(invoke)
		req.Custom = res.Custom
		out := d.Dispatch(ctx, req)
		assert.Equal(t, []string{`Hello,   "world"!`}, lineTexts(out), invoke)
		assert.Equal(t, sessionlog.Info, lastEntry(out).Severity)
	}
}

func TestAddIntCmd_RejectsBuiltinNames(t *testing.T) {
	d, _ := newTestDispatcher(t, nil)
	ctx := context.Background()
	existing := []models.CustomCommand{{Short: "gr", Name: "greet", Description: "d", Action: "hi"}}

	for _, cmd := range []string{
		`add_int_cmd h HELP "desc" x`,
		`add_int_cmd x init "desc" x`,
		`add_int_cmd export mine "desc" x`,
		`add_int_cmd gr other "desc" x`,
	} {
		req := admin(cmd)
		req.Custom = existing
		res := d.Dispatch(ctx, req)
		assert.False(t, res.CustomChanged, cmd)
		assert.Nil(t, res.Custom, cmd)
		assert.Equal(t, sessionlog.Error, lastEntry(res).Severity, cmd)
	}

	_, err := AddCustom(existing, models.CustomCommand{Short: "z", Name: "Help"})
	assert.True(t, errors.Is(err, ErrBuiltinCollision))
	_, err = AddCustom(existing, models.CustomCommand{Short: "gr", Name: "other"})
	assert.True(t, errors.Is(err, ErrCustomCollision))
	assert.Len(t, existing, 1)
}

func TestAddIntCmd_Usage(t *testing.T) {
	d, _ := newTestDispatcher(t, nil)
	res := d.Dispatch(context.Background(), admin(`add_int_cmd gr greet unquoted hello`))

	assert.False(t, res.CustomChanged)
	assert.Contains(t, res.Lines[0].Text, "Usage: add_int_cmd")
}

func TestPermissionDenied_NoSideEffects(t *testing.T) {
	d, s := newTestDispatcher(t, nil)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx))

	noPerms := func(cmd string) Request {
		return Request{UserID: "bob", Permissions: perm.NewSet(), Command: cmd}
	}

	cases := []string{
		"count = 5",
		`add_int_cmd gr greet "Say hello" hi`,
		`add ai_tool summarize "text" "Summarizes"`,
		"add_role bob admin manage_roles",
		"set sim_mode 0",
		"ai hello",
	}
	for _, cmd := range cases {
		res := d.Dispatch(ctx, noPerms(cmd))
		assert.Equal(t, models.OutputError, res.Lines[0].Type, cmd)
		assert.Contains(t, res.Lines[0].Text, "Permission denied", cmd)
		assert.Equal(t, "denied", res.Outcome, cmd)
		assert.False(t, res.CustomChanged, cmd)
		assert.Empty(t, res.Variables, cmd)
	}

	list, err := s.ListVariables(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	tool, err := s.GetAITool(ctx, "summarize")
	require.NoError(t, err)
	assert.Nil(t, tool)
	perms, err := s.PermissionsForUser(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, perms)
}

func TestOverrideAll_BypassesGate(t *testing.T) {
	d, s := newTestDispatcher(t, nil)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx))

	res := d.Dispatch(ctx, Request{UserID: "bob", Permissions: perm.NewSet(), OverrideAll: true, Command: "count = 5"})
	assert.Equal(t, "success", res.Outcome)
}

func TestAssign_RoundTrip(t *testing.T) {
	d, s := newTestDispatcher(t, nil)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx))

	res := d.Dispatch(ctx, admin("count = 5"))
	assert.Equal(t, []string{"count = 5 (integer)"}, lineTexts(res))

	v, found, err := vars.NewStore(s).Lookup(ctx, "count")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.DatatypeInteger, v.Datatype)
	assert.Equal(t, "5", v.Value)

	res = d.Dispatch(ctx, admin(`greeting = "hi there"`))
	assert.Equal(t, []string{"greeting = hi there (string)"}, lineTexts(res))

	res = d.Dispatch(ctx, admin("nothing = None"))
	require.Len(t, res.Variables, 1)
	assert.Equal(t, models.DatatypeString, res.Variables[0].Datatype)
}

func TestAssign_CommandNamesAreAssignable(t *testing.T) {
	gen := &fakeGenerator{answer: "42"}
	d, s := newTestDispatcher(t, gen)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx))

	res := d.Dispatch(ctx, admin("ai = 5"))
	assert.Equal(t, []string{"ai = 5 (integer)"}, lineTexts(res))
	assert.Empty(t, gen.prompts)

	res = d.Dispatch(ctx, admin("help = x"))
	assert.Equal(t, []string{"help = x (string)"}, lineTexts(res))
	res = d.Dispatch(ctx, admin("init=1"))
	assert.Equal(t, []string{"init = 1 (integer)"}, lineTexts(res))

	store := vars.NewStore(s)
	for name, want := range map[string]string{"ai": "5", "help": "x", "init": "1"} {
		v, found, err := store.Lookup(ctx, name)
		require.NoError(t, err)
		require.True(t, found, name)
		assert.Equal(t, want, v.Value, name)
	}

	// Comparisons are not assignments.
	res = d.Dispatch(ctx, admin("ai == 5"))
	require.Len(t, gen.prompts, 1)
	assert.NotContains(t, lineTexts(res), "ai = 5 (integer)")
}

func TestAssign_NotInitialized(t *testing.T) {
	d, _ := newTestDispatcher(t, nil)
	res := d.Dispatch(context.Background(), admin("count = 5"))

	assert.Equal(t, models.OutputError, res.Lines[0].Type)
	assert.Contains(t, res.Lines[0].Text, "init")
}

func TestAITools(t *testing.T) {
	d, s := newTestDispatcher(t, nil)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx))

	res := d.Dispatch(ctx, admin("set ai_tool summarize active 0"))
	assert.Equal(t, models.OutputWarning, res.Lines[0].Type)
	assert.Equal(t, sessionlog.Warning, lastEntry(res).Severity)
	assert.Equal(t, "warning", res.Outcome)

	d.Dispatch(ctx, admin(`add ai_tool summarize "text: input" "Summarizes text"`))
	d.Dispatch(ctx, admin("set ai_tool summarize active 0"))
	res = d.Dispatch(ctx, admin(`add_ai_tool summarize "text: input, n: words" "Summarizes text briefly"`))
	assert.Equal(t, sessionlog.Info, lastEntry(res).Severity)

	tool, err := s.GetAITool(ctx, "summarize")
	require.NoError(t, err)
	require.NotNil(t, tool)
	assert.False(t, tool.Active, "upsert keeps the active flag")
	assert.Equal(t, "Summarizes text briefly", tool.Description)

	res = d.Dispatch(ctx, admin("set ai_tool summarize active yes"))
	assert.Contains(t, res.Lines[0].Text, "Usage")
}

func TestAddRole(t *testing.T) {
	d, s := newTestDispatcher(t, nil)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx))

	res := d.Dispatch(ctx, admin("add_role carol analyst use_ai_tools,export_data"))
	assert.Equal(t, sessionlog.Info, lastEntry(res).Severity)

	perms, err := s.PermissionsForUser(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, []string{"export_data", "use_ai_tools"}, perms)

	res = d.Dispatch(ctx, admin("add_role carol analyst fly_planes"))
	assert.Contains(t, res.Lines[0].Text, "Unknown permission")
}

func TestSetSimMode(t *testing.T) {
	d, s := newTestDispatcher(t, nil)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx))

	d.Dispatch(ctx, admin("set sim_mode 0"))
	v, err := s.GetVariable(ctx, "sim_mode")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, models.DatatypeInteger, v.Datatype)
	assert.Equal(t, "0", v.Value)

	res := d.Dispatch(ctx, admin("set sim_mode 2"))
	assert.Equal(t, models.OutputError, res.Lines[0].Type)
}

func TestAI_StoresAnswer(t *testing.T) {
	gen := &fakeGenerator{answer: "Paris"}
	d, s := newTestDispatcher(t, gen)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx))
	d.Dispatch(ctx, admin("country = France"))

	res := d.Dispatch(ctx, admin("ai capital of {country}? and {missing}"))
	assert.Equal(t, []string{"capital of France? and [variable missing not found]"}, gen.prompts)
	assert.Contains(t, lineTexts(res), "Paris")
	assert.Contains(t, lineTexts(res), "Variable 'missing' not found")

	v, err := s.GetVariable(ctx, AIAnswerVar)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "Paris", v.Value)
}

func TestAI_StorageFailureStillShowsAnswer(t *testing.T) {
	d, _ := newTestDispatcher(t, &fakeGenerator{answer: "Paris"})
	res := d.Dispatch(context.Background(), admin("ai capital of France?"))

	require.Len(t, res.Lines, 2)
	assert.Equal(t, "Paris", res.Lines[0].Text)
	assert.Equal(t, models.OutputText, res.Lines[0].Type)
	assert.Equal(t, models.OutputWarning, res.Lines[1].Type)
	assert.Empty(t, res.Variables)
}

func TestAI_GeneratorFailure(t *testing.T) {
	d, _ := newTestDispatcher(t, &fakeGenerator{err: errors.New("timeout")})
	res := d.Dispatch(context.Background(), admin("define entropy"))

	assert.Equal(t, models.OutputError, res.Lines[0].Type)
	assert.Contains(t, res.Lines[0].Text, "timeout")
}

func TestRefine_NeedsQuotedPrompt(t *testing.T) {
	gen := &fakeGenerator{answer: "Better prompt"}
	d, _ := newTestDispatcher(t, gen)
	ctx := context.Background()

	res := d.Dispatch(ctx, admin("refine make it better"))
	assert.Contains(t, res.Lines[0].Text, "Usage")
	assert.Empty(t, gen.prompts)

	res = d.Dispatch(ctx, admin(`refine "make it better"`))
	assert.Equal(t, []string{"Better prompt"}, lineTexts(res))
	require.Len(t, gen.prompts, 1)
	assert.True(t, strings.HasSuffix(gen.prompts[0], "make it better"))
}

func TestPanicRecovery(t *testing.T) {
	d, _ := newTestDispatcher(t, &fakeGenerator{panics: true})
	res := d.Dispatch(context.Background(), admin("ai boom"))

	require.NotEmpty(t, res.Lines)
	last := res.Lines[len(res.Lines)-1]
	assert.Equal(t, models.OutputError, last.Type)
	assert.Equal(t, "Error: generator exploded", last.Text)
	assert.Equal(t, sessionlog.Error, lastEntry(res).Severity)
	assert.Equal(t, res.Log.Len(), len(res.Entries))
}

func TestInit_PartialFailure(t *testing.T) {
	s := newTestStore(t)
	defaults := []models.Variable{
		{Name: "good_one", Datatype: models.DatatypeInteger, Value: "1"},
		{Name: "bad name", Datatype: models.DatatypeString, Value: "x"},
		{Name: "good_two", Datatype: models.DatatypeString, Value: "y"},
	}
	d := New(s, nil, nil, nil, Config{DefaultVariables: defaults})
	ctx := context.Background()

	res := d.Dispatch(ctx, admin("init"))
	require.Len(t, res.Entries, 2)
	assert.Contains(t, res.Entries[0].Text, "bad name")
	assert.Contains(t, res.Entries[1].Text, "1 failure")
	assert.Len(t, res.Variables, 2)

	for _, name := range []string{"good_one", "good_two"} {
		v, err := s.GetVariable(ctx, name)
		require.NoError(t, err)
		assert.NotNil(t, v, name)
	}
}

func TestInit_KeepsExistingValues(t *testing.T) {
	d, s := newTestDispatcher(t, nil)
	ctx := context.Background()

	d.Dispatch(ctx, admin("init"))
	d.Dispatch(ctx, admin("set sim_mode 0"))
	res := d.Dispatch(ctx, admin("init"))
	assert.Equal(t, sessionlog.Info, lastEntry(res).Severity)

	v, err := s.GetVariable(ctx, "sim_mode")
	require.NoError(t, err)
	assert.Equal(t, "0", v.Value)
}

func TestInitDB_SeedsRoles(t *testing.T) {
	d, s := newTestDispatcher(t, nil)
	ctx := context.Background()

	res := d.Dispatch(ctx, Request{UserID: "nobody", Permissions: perm.NewSet(), Command: "init db"})
	assert.Equal(t, sessionlog.Info, lastEntry(res).Severity)

	perms, err := s.PermissionsForUser(ctx, "root")
	require.NoError(t, err)
	assert.ElementsMatch(t, perm.All(), perms)
}

func TestExportLog(t *testing.T) {
	d, _ := newTestDispatcher(t, nil)
	ctx := context.Background()

	res := d.Dispatch(ctx, admin("export log"))
	assert.Empty(t, res.Downloads)
	assert.Equal(t, sessionlog.Warning, lastEntry(res).Severity)

	req := admin("export log")
	req.Log = sessionlog.Log{}.Append(
		sessionlog.InfoEntry(`said "hi"`),
		sessionlog.WarnEntry("careful"),
	)
	res = d.Dispatch(ctx, req)
	require.Len(t, res.Downloads, 1)
	dl := res.Downloads[0]
	assert.Equal(t, "text/csv", dl.ContentType)
	assert.Len(t, strings.Split(dl.Content, "\n"), 3)
	assert.Contains(t, dl.Content, `"said ""hi"""`)
}

func TestExportDB(t *testing.T) {
	d, s := newTestDispatcher(t, nil)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx))
	d.Dispatch(ctx, admin("count = 5"))

	res := d.Dispatch(ctx, admin("export db"))
	require.Len(t, res.Downloads, 1)
	assert.Equal(t, "application/json", res.Downloads[0].ContentType)
	assert.Contains(t, res.Downloads[0].Content, `"variables"`)
}

func TestPersist(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()
	d := New(s, nil, nil, nil, Config{DataDir: dir})
	ctx := context.Background()

	for _, bad := range []string{"../escape.db", "sub/dir.db", "notadb.txt", "..db"} {
		res := d.Dispatch(ctx, admin("persist memory db to "+bad))
		assert.Equal(t, models.OutputError, res.Lines[0].Type, bad)
	}

	res := d.Dispatch(ctx, admin("persist memory db to backup.db"))
	assert.Equal(t, sessionlog.Info, lastEntry(res).Severity, lineTexts(res))
	_, err := os.Stat(filepath.Join(dir, "backup.db"))
	assert.NoError(t, err)

	d.Dispatch(ctx, admin("persist memory db to"))
	_, err = os.Stat(filepath.Join(dir, "simshell_memory.db"))
	assert.NoError(t, err)
}

func TestCreateSQLite(t *testing.T) {
	d, _ := newTestDispatcher(t, nil)
	res := d.Dispatch(context.Background(), admin("create sqlite mydb.db"))

	require.NotEmpty(t, res.Lines)
	assert.Equal(t, "In-memory SQLite database is ready", res.Lines[0].Text)
	assert.Contains(t, res.Lines[1].Text, "mydb.db")
}

func TestHelpAndRequirements(t *testing.T) {
	d, _ := newTestDispatcher(t, nil)
	ctx := context.Background()

	res := d.Dispatch(ctx, admin("help"))
	assert.Greater(t, len(res.Lines), 20)

	res = d.Dispatch(ctx, admin("help add_int_cmd"))
	assert.Equal(t, "add_int_cmd", res.Lines[0].Text)
	assert.Contains(t, lineTexts(res), "  Permission: manage_commands")

	res = d.Dispatch(ctx, admin("help nope"))
	assert.Equal(t, models.OutputWarning, res.Lines[0].Type)

	res = d.Dispatch(ctx, Request{Permissions: perm.NewSet(perm.UseAITools), Command: "show_requirements"})
	joined := strings.Join(lineTexts(res), "\n")
	assert.Contains(t, joined, "use_ai_tools")
	assert.Contains(t, joined, "granted")
	assert.Contains(t, joined, "missing")
}

func TestClearPauseHistory(t *testing.T) {
	d, _ := newTestDispatcher(t, nil)
	ctx := context.Background()

	res := d.Dispatch(ctx, admin("clear"))
	assert.True(t, res.ClearHistory)
	assert.Empty(t, res.Lines)

	res = d.Dispatch(ctx, admin("pause"))
	assert.True(t, res.PauseRequested)

	req := admin("history")
	req.History = []string{"help", "ls"}
	res = d.Dispatch(ctx, req)
	assert.Equal(t, []string{"   1  help", "   2  ls"}, lineTexts(res))
}

func TestAuditRecorded(t *testing.T) {
	d, s := newTestDispatcher(t, nil)
	ctx := context.Background()

	d.Dispatch(ctx, admin("help"))
	d.Dispatch(ctx, Request{UserID: "bob", Permissions: perm.NewSet(), Command: "set sim_mode 1"})

	recs, err := s.ListAudit(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	outcomes := map[string]string{}
	for _, r := range recs {
		outcomes[r.Action] = r.Outcome
		assert.Len(t, r.InputsHash, 64)
	}
	assert.Equal(t, "success", outcomes["help"])
	assert.Equal(t, "denied", outcomes["set_sim_mode"])
}

func TestListPyVars(t *testing.T) {
	d, s := newTestDispatcher(t, nil)
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx))

	res := d.Dispatch(ctx, admin("list py vars"))
	assert.Equal(t, []string{"No variables defined"}, lineTexts(res))

	d.Dispatch(ctx, admin("b = 2.5"))
	d.Dispatch(ctx, admin("a = True"))
	res = d.Dispatch(ctx, admin("list_py_vars"))
	assert.Equal(t, []string{"  a (boolean) = True", "  b (real) = 2.5"}, lineTexts(res))
	assert.Equal(t, "Listed 2 variables", res.Entries[0].Text)
}
