// Package store provides SQLite-backed persistence for simshell.
//
// A Store is the single backing relational store of a session. It is passed
// explicitly to every component that needs it; there is no package-level
// instance.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fentz26/simshell/internal/models"
	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Sentinel errors.
var (
	// ErrNotInitialized indicates the domain schema has not been created yet.
	ErrNotInitialized     = errors.New("database not initialized")
	// ErrReadOnly is returned when a read-only execution tries to write.
	ErrReadOnly           = errors.New("statement modifies the database")
	// ErrMultipleStatements is returned for input holding more than one statement.
	ErrMultipleStatements = errors.New("only one statement per command is allowed")
	// ErrPersistToSelf is returned when a snapshot would overwrite the open database file.
	ErrPersistToSelf      = errors.New("snapshot path is the live database")
)

// MemoryPath is the path value that selects a private in-memory database.
const MemoryPath = ":memory:"

// Store provides access to the simshell SQLite database.
type Store struct {
	db   *sql.DB
	path string
}

// Result is the outcome of a generic Execute call.
type Result struct {
	Columns      []string `json:"columns,omitempty"`
	Rows         [][]any  `json:"rows,omitempty"`
	RowsAffected int64    `json:"rows_affected"`
	InsertedID   int64    `json:"inserted_id,omitempty"`
}

// New opens the store at dbPath. An empty path or MemoryPath opens an
// in-memory database owned by the returned Store.
func New(dbPath string) (*Store, error) {
	dsn := MemoryPath
	if dbPath != "" && dbPath != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
		dsn = dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	} else {
		dbPath = MemoryPath
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// One connection: SQLite has a single writer, and an in-memory database
	// only lives as long as its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Path returns the location the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// InMemory reports whether the store is backed by memory only.
func (s *Store) InMemory() bool {
	return s.path == MemoryPath
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the store's own bookkeeping tables. Domain tables are
// created by EnsureSchema, which the init commands issue.
func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		action TEXT NOT NULL,
		inputs_hash TEXT NOT NULL,
		outcome TEXT NOT NULL,
		details TEXT,
		timestamp DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_log_user_id ON audit_log(user_id);
	`)
	return err
}

// EnsureSchema idempotently creates the domain tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS variables (
		name TEXT PRIMARY KEY,
		datatype TEXT NOT NULL,
		value TEXT,
		min TEXT,
		max TEXT,
		default_value TEXT
	);

	CREATE TABLE IF NOT EXISTS ai_tools (
		name TEXT PRIMARY KEY,
		args_description TEXT,
		description TEXT,
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS roles (
		name TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS permissions (
		name TEXT PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS role_permissions (
		role TEXT NOT NULL,
		permission TEXT NOT NULL,
		PRIMARY KEY (role, permission),
		FOREIGN KEY (role) REFERENCES roles(name),
		FOREIGN KEY (permission) REFERENCES permissions(name)
	);

	CREATE TABLE IF NOT EXISTS user_roles (
		user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		PRIMARY KEY (user_id, role),
		FOREIGN KEY (role) REFERENCES roles(name)
	);

	CREATE INDEX IF NOT EXISTS idx_user_roles_user_id ON user_roles(user_id);
	`
	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// --- Generic query interface ---

// queryer is satisfied by both *sql.DB and *sql.Conn.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Execute runs one arbitrary statement. Row-returning statements fill
// Columns and Rows; everything else reports RowsAffected and InsertedID.
func (s *Store) Execute(ctx context.Context, query string, params ...any) (*Result, error) {
	stmt, err := SingleStatement(query)
	if err != nil {
		return nil, err
	}
	return execOn(ctx, s.db, stmt, params...)
}

// ExecuteReadOnly runs one statement with writes disabled by the engine
// (PRAGMA query_only). Any statement that would modify the database fails
// with ErrReadOnly and leaves it untouched.
func (s *Store) ExecuteReadOnly(ctx context.Context, query string, params ...any) (*Result, error) {
	stmt, err := SingleStatement(query)
	if err != nil {
		return nil, err
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		return nil, fmt.Errorf("enable query_only: %w", err)
	}
	defer conn.ExecContext(context.Background(), "PRAGMA query_only = OFF")

	return execOn(ctx, conn, stmt, params...)
}

func execOn(ctx context.Context, db queryer, query string, params ...any) (*Result, error) {
	if returnsRows(query) {
		return queryOn(ctx, db, query, params...)
	}

	res, err := db.ExecContext(ctx, query, params...)
	if err != nil {
		return nil, classify(err)
	}
	out := &Result{}
	out.RowsAffected, _ = res.RowsAffected()
	out.InsertedID, _ = res.LastInsertId()
	return out, nil
}

func (s *Store) query(ctx context.Context, query string, params ...any) (*Result, error) {
	return queryOn(ctx, s.db, query, params...)
}

func queryOn(ctx context.Context, db queryer, query string, params ...any) (*Result, error) {
	rows, err := db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	out := &Result{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", classify(err))
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out.Rows = append(out.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// SingleStatement trims query and drops one trailing semicolon. It fails
// with ErrMultipleStatements when another statement separator remains
// outside string literals, quoted identifiers and comments.
func SingleStatement(query string) (string, error) {
	q := strings.TrimSpace(query)
	q = strings.TrimSpace(strings.TrimSuffix(q, ";"))

	for i := 0; i < len(q); i++ {
		switch c := q[i]; c {
		case '\'', '"', '`':
			end := strings.IndexByte(q[i+1:], c)
			if end < 0 {
				return q, nil
			}
			i += end + 1
		case '[':
			end := strings.IndexByte(q[i+1:], ']')
			if end < 0 {
				return q, nil
			}
			i += end + 1
		case '-':
			if i+1 < len(q) && q[i+1] == '-' {
				end := strings.IndexByte(q[i:], '\n')
				if end < 0 {
					return q, nil
				}
				i += end
			}
		case '/':
			if i+1 < len(q) && q[i+1] == '*' {
				end := strings.Index(q[i+2:], "*/")
				if end < 0 {
					return q, nil
				}
				i += end + 3
			}
		case ';':
			return "", ErrMultipleStatements
		}
	}
	return q, nil
}

// returnsRows reports whether the statement's leading keyword yields rows.
func returnsRows(query string) bool {
	fields := strings.Fields(strings.TrimLeft(query, "( \t\r\n"))
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH", "PRAGMA", "EXPLAIN", "VALUES":
		return true
	}
	return false
}

// classify maps driver errors onto store sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var serr *sqlite.Error
	if (errors.As(err, &serr) && serr.Code()&0xff == sqlite3.SQLITE_READONLY) ||
		strings.Contains(err.Error(), "readonly database") {
		return fmt.Errorf("%w: %v", ErrReadOnly, err)
	}
	if strings.Contains(err.Error(), "no such table") {
		return fmt.Errorf("%w: %v", ErrNotInitialized, err)
	}
	return err
}

// --- Variable Operations ---

// UpsertVariable inserts a variable or overwrites every field of an existing one.
func (s *Store) UpsertVariable(ctx context.Context, v models.Variable) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO variables (name, datatype, value, min, max, default_value) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
			datatype = excluded.datatype,
			value = excluded.value,
			min = excluded.min,
			max = excluded.max,
			default_value = excluded.default_value`,
		v.Name, string(v.Datatype), v.Value, nullable(v.Min), nullable(v.Max), nullable(v.DefaultValue),
	)
	if err != nil {
		return fmt.Errorf("upsert variable: %w", classify(err))
	}
	return nil
}

// GetVariable returns the named variable, or nil if it does not exist.
func (s *Store) GetVariable(ctx context.Context, name string) (*models.Variable, error) {
	v := &models.Variable{}
	var datatype string
	var value, min, max, def sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT name, datatype, value, min, max, default_value FROM variables WHERE name = ?`,
		name,
	).Scan(&v.Name, &datatype, &value, &min, &max, &def)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query variable: %w", classify(err))
	}
	v.Datatype = models.Datatype(datatype)
	v.Value = value.String
	v.Min = fromNullable(min)
	v.Max = fromNullable(max)
	v.DefaultValue = fromNullable(def)
	return v, nil
}

// ListVariables returns all variables ordered by name.
func (s *Store) ListVariables(ctx context.Context) ([]models.Variable, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, datatype, value, min, max, default_value FROM variables ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("query variables: %w", classify(err))
	}
	defer rows.Close()

	var vars []models.Variable
	for rows.Next() {
		var v models.Variable
		var datatype string
		var value, min, max, def sql.NullString
		if err := rows.Scan(&v.Name, &datatype, &value, &min, &max, &def); err != nil {
			return nil, fmt.Errorf("scan variable: %w", err)
		}
		v.Datatype = models.Datatype(datatype)
		v.Value = value.String
		v.Min = fromNullable(min)
		v.Max = fromNullable(max)
		v.DefaultValue = fromNullable(def)
		vars = append(vars, v)
	}
	return vars, rows.Err()
}

// --- AI Tool Operations ---

// UpsertAITool inserts a tool or updates its descriptions. An existing
// active flag is preserved.
func (s *Store) UpsertAITool(ctx context.Context, tool models.AITool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ai_tools (name, args_description, description, active) VALUES (?, ?, ?, 1)
		 ON CONFLICT(name) DO UPDATE SET
			args_description = excluded.args_description,
			description = excluded.description`,
		tool.Name, tool.ArgsDescription, tool.Description,
	)
	if err != nil {
		return fmt.Errorf("upsert ai tool: %w", classify(err))
	}
	return nil
}

// SetAIToolActive updates the active flag. It reports false if no tool matched.
func (s *Store) SetAIToolActive(ctx context.Context, name string, active bool) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ai_tools SET active = ? WHERE name = ?`,
		boolToInt(active), name,
	)
	if err != nil {
		return false, fmt.Errorf("update ai tool: %w", classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}
	return n > 0, nil
}

// GetAITool returns the named tool, or nil if it does not exist.
func (s *Store) GetAITool(ctx context.Context, name string) (*models.AITool, error) {
	tool := &models.AITool{}
	var args, desc sql.NullString
	var active int

	err := s.db.QueryRowContext(ctx,
		`SELECT name, args_description, description, active FROM ai_tools WHERE name = ?`,
		name,
	).Scan(&tool.Name, &args, &desc, &active)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query ai tool: %w", classify(err))
	}
	tool.ArgsDescription = args.String
	tool.Description = desc.String
	tool.Active = active != 0
	return tool, nil
}

// --- Role Operations ---

// AddRole creates the role if needed, grants it the given permissions and
// assigns it to userID, all in one transaction.
func (s *Store) AddRole(ctx context.Context, userID, role string, permissions []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO roles (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		role, now,
	); err != nil {
		return fmt.Errorf("insert role: %w", classify(err))
	}

	for _, perm := range permissions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO permissions (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, perm,
		); err != nil {
			return fmt.Errorf("insert permission: %w", classify(err))
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO role_permissions (role, permission) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			role, perm,
		); err != nil {
			return fmt.Errorf("grant permission: %w", classify(err))
		}
	}

	if userID != "" {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_roles (user_id, role) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			userID, role,
		); err != nil {
			return fmt.Errorf("assign role: %w", classify(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// PermissionsForUser returns the distinct permission names granted to userID
// through its roles.
func (s *Store) PermissionsForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT rp.permission
		 FROM user_roles ur
		 JOIN role_permissions rp ON rp.role = ur.role
		 WHERE ur.user_id = ?
		 ORDER BY rp.permission`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query permissions: %w", classify(err))
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// --- Audit Operations ---

// WriteAudit writes a decision record.
func (s *Store) WriteAudit(ctx context.Context, userID, action, inputsHash, outcome, details string) (*models.AuditRecord, error) {
	rec := &models.AuditRecord{
		ID:         uuid.New().String(),
		UserID:     userID,
		Action:     action,
		InputsHash: inputsHash,
		Outcome:    outcome,
		Details:    details,
		Timestamp:  time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, user_id, action, inputs_hash, outcome, details, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.Action, rec.InputsHash, rec.Outcome, rec.Details, rec.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert audit: %w", err)
	}
	return rec, nil
}

// ListAudit returns the most recent decision records, newest first.
func (s *Store) ListAudit(ctx context.Context, limit int) ([]models.AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, action, inputs_hash, outcome, details, timestamp FROM audit_log ORDER BY timestamp DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var recs []models.AuditRecord
	for rows.Next() {
		var rec models.AuditRecord
		var details sql.NullString
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Action, &rec.InputsHash, &rec.Outcome, &details, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		rec.Details = details.String
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// --- Persistence ---

// PersistTo writes a consistent copy of the whole database to path,
// replacing any existing file. The copy is built next to path and renamed
// into place, so a failed snapshot leaves the previous one intact.
func (s *Store) PersistTo(ctx context.Context, path string) error {
	if !s.InMemory() && samePath(s.path, path) {
		return ErrPersistToSelf
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create persist directory: %w", err)
	}

	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	quoted := "'" + strings.ReplaceAll(tmp, "'", "''") + "'"
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO "+quoted); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("vacuum into: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

// Dump returns every user table with its rows, keyed by table name.
func (s *Store) Dump(ctx context.Context) (map[string]*Result, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`,
	)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(tables)

	out := make(map[string]*Result, len(tables))
	for _, table := range tables {
		res, err := s.query(ctx, `SELECT * FROM "`+strings.ReplaceAll(table, `"`, `""`)+`"`)
		if err != nil {
			return nil, fmt.Errorf("dump %s: %w", table, err)
		}
		out[table] = res
	}
	return out, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func fromNullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
