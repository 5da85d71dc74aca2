// Package shell ties classification, the internal interpreter and the
// simulated executors into one interactive session.
package shell

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fentz26/simshell/internal/classifier"
	"github.com/fentz26/simshell/internal/executor"
	"github.com/fentz26/simshell/internal/interp"
	"github.com/fentz26/simshell/internal/models"
	"github.com/fentz26/simshell/internal/oracle"
	"github.com/fentz26/simshell/internal/perm"
	"github.com/fentz26/simshell/internal/sessionlog"
	"github.com/fentz26/simshell/internal/store"
	"github.com/fentz26/simshell/internal/vars"
)

// Sentinel errors for session operations.
var (
	ErrBusy         = errors.New("another command is still running")
	ErrEmptyCommand = errors.New("empty command")
)

// HistoryLimitVar caps the command history when set to a positive integer.
const HistoryLimitVar = "history_limit"

const defaultHistoryLimit = 100

// Response is what one dispatch produced.
type Response struct {
	Classification models.Classification `json:"classification"`
	// Lines starts with the echoed command.
	Lines     []models.OutputLine `json:"lines"`
	Entries   []sessionlog.Entry  `json:"entries"`
	Downloads []models.Download   `json:"downloads,omitempty"`
	// ClearTranscript is set when the transcript was cleared.
	ClearTranscript bool `json:"clear_transcript,omitempty"`
	PauseRequested  bool `json:"pause_requested,omitempty"`
}

// Deps are the collaborators a session dispatches through.
type Deps struct {
	Store     *store.Store
	Oracle    oracle.CategoryOracle
	Interp    *interp.Dispatcher
	Executors *executor.Registry
	Logger    *zap.Logger
}

// Options is the initial session state.
type Options struct {
	UserID      string
	Categories  []models.Category
	OverrideAll bool
}

// Session is one user's shell. Dispatch calls are serialized; a second call
// while one is running fails with ErrBusy.
type Session struct {
	busy sync.Mutex

	mu         sync.RWMutex
	userID     string
	categories []models.Category
	override   bool
	log        sessionlog.Log
	custom     []models.CustomCommand
	history    []string
	transcript []models.OutputLine

	store      *store.Store
	classifier *classifier.Classifier
	interp     *interp.Dispatcher
	executors  *executor.Registry
	resolver   *perm.Resolver
	vars       *vars.Store
	logger     *zap.Logger
	now        func() time.Time
}

// New creates a session.
func New(deps Deps, opts Options) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		userID:     opts.UserID,
		categories: normalizeCategories(opts.Categories),
		override:   opts.OverrideAll,
		store:      deps.Store,
		interp:     deps.Interp,
		executors:  deps.Executors,
		resolver:   perm.NewResolver(deps.Store),
		vars:       vars.NewStore(deps.Store),
		logger:     logger,
		now:        time.Now,
	}
	s.classifier = classifier.New(deps.Oracle,
		classifier.WithCustomNames(s.customNames),
		classifier.WithLogger(logger),
	)
	return s
}

// Dispatch classifies and runs one command line.
func (s *Session) Dispatch(ctx context.Context, command string) (*Response, error) {
	if strings.TrimSpace(command) == "" {
		return nil, ErrEmptyCommand
	}
	if !s.busy.TryLock() {
		return nil, ErrBusy
	}
	defer s.busy.Unlock()

	s.mu.RLock()
	userID := s.userID
	active := append([]models.Category(nil), s.categories...)
	override := s.override
	log := s.log
	custom := append([]models.CustomCommand(nil), s.custom...)
	history := append([]string(nil), s.history...)
	s.mu.RUnlock()

	start := s.now()
	resp := &Response{}
	resp.Lines = append(resp.Lines, s.outputLine(command, models.OutputCommand, "", &start))

	cls := s.classifier.Classify(ctx, command, active)
	resp.Classification = cls

	d := &dispatch{session: s, resp: resp, cat: cls.Category}

	if !cls.Dispatchable() {
		d.warnAs(models.OutputError, fmt.Sprintf("Cannot run command (%s): %s", cls.Category, cls.Reasoning))
		s.commit(command, resp, nil)
		return resp, nil
	}

	if override {
		d.warn("Permission checks bypassed: override all is on")
	}

	perms, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		if errors.Is(err, perm.ErrNotInitialized) {
			d.warn("Permissions not initialized. Run 'init db' to create roles.")
		} else {
			s.logger.Warn("resolving permissions failed", zap.String("user", userID), zap.Error(err))
			d.warn(fmt.Sprintf("Could not resolve permissions: %v", err))
		}
	}

	var newCustom []models.CustomCommand
	if cls.Category == models.CategoryInternal {
		res := s.interp.Dispatch(ctx, interp.Request{
			UserID:      userID,
			Permissions: perms,
			OverrideAll: override,
			Command:     command,
			Log:         log.Append(resp.Entries...),
			Custom:      custom,
			History:     history,
		})
		for _, l := range res.Lines {
			resp.Lines = append(resp.Lines, s.outputLine(l.Text, l.Type, cls.Category, nil))
		}
		resp.Entries = append(resp.Entries, res.Entries...)
		resp.Downloads = res.Downloads
		resp.ClearTranscript = res.ClearHistory
		resp.PauseRequested = res.PauseRequested
		if res.CustomChanged {
			newCustom = res.Custom
			if newCustom == nil {
				newCustom = []models.CustomCommand{}
			}
		}
	} else {
		s.execute(ctx, d, executor.Request{
			UserID:      userID,
			Command:     command,
			Permissions: perms,
			OverrideAll: override,
		})
	}

	s.commit(command, resp, newCustom)
	s.logger.Debug("dispatched command",
		zap.String("category", cls.Category.String()),
		zap.Int("entries", len(resp.Entries)),
		zap.Duration("took", s.now().Sub(start)),
	)
	return resp, nil
}

func (s *Session) execute(ctx context.Context, d *dispatch, req executor.Request) {
	res, err := s.executors.Execute(ctx, d.cat, req)
	switch {
	case errors.Is(err, executor.ErrNoExecutor):
		d.fail(fmt.Sprintf("No executor available for category %s", d.cat))
		return
	case err != nil:
		d.warn(fmt.Sprintf("Command cancelled: %v", err))
		return
	}
	for _, l := range res.Lines {
		d.resp.Lines = append(d.resp.Lines, s.outputLine(l.Text, l.Type, d.cat, nil))
	}
	d.resp.Entries = append(d.resp.Entries, res.Entries...)
}

// commit applies a response to the session state. custom replaces the
// custom command table when non-nil.
func (s *Session) commit(command string, resp *Response, custom []models.CustomCommand) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendLog(resp.Entries...)
	if custom != nil {
		s.custom = custom
	}

	s.history = append(s.history, command)
	if limit := s.historyLimit(); len(s.history) > limit {
		s.history = append([]string(nil), s.history[len(s.history)-limit:]...)
	}

	if resp.ClearTranscript {
		s.transcript = nil
		return
	}
	s.transcript = append(s.transcript, resp.Lines...)
}

// appendLog adds entries to the session log and mirrors them to the
// operational logger. Callers hold s.mu.
func (s *Session) appendLog(entries ...sessionlog.Entry) {
	s.log = s.log.Append(entries...)
	for _, e := range entries {
		fields := []zap.Field{zap.String("user", s.userID), zap.Int("flag", e.Flag)}
		switch e.Severity {
		case sessionlog.Error:
			s.logger.Error(e.Text, fields...)
		case sessionlog.Warning:
			s.logger.Warn(e.Text, fields...)
		default:
			s.logger.Info(e.Text, fields...)
		}
	}
}

func (s *Session) historyLimit() int {
	v, ok, err := s.vars.Lookup(context.Background(), HistoryLimitVar)
	if err != nil || !ok {
		return defaultHistoryLimit
	}
	n, err := strconv.Atoi(v.Value)
	if err != nil || n <= 0 {
		return defaultHistoryLimit
	}
	return n
}

func (s *Session) outputLine(text string, t models.OutputType, cat models.Category, ts *time.Time) models.OutputLine {
	line := models.OutputLine{
		ID:        uuid.New().String(),
		Text:      text,
		Type:      t,
		Category:  cat,
		Timestamp: ts,
	}
	if t == models.OutputError || t == models.OutputWarning {
		flag := sessionlog.FlagNotable
		line.Flag = &flag
	}
	return line
}

// dispatch accumulates session-level lines and entries for one command.
type dispatch struct {
	session *Session
	resp    *Response
	cat     models.Category
}

func (d *dispatch) warn(text string) { d.warnAs(models.OutputWarning, text) }

func (d *dispatch) warnAs(t models.OutputType, text string) {
	d.resp.Lines = append(d.resp.Lines, d.session.outputLine(text, t, d.cat, nil))
	d.resp.Entries = append(d.resp.Entries, sessionlog.WarnEntry(text))
}

func (d *dispatch) fail(text string) {
	d.resp.Lines = append(d.resp.Lines, d.session.outputLine(text, models.OutputError, d.cat, nil))
	d.resp.Entries = append(d.resp.Entries, sessionlog.ErrorEntry(text))
}
