package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fentz26/simshell/internal/models"
	"github.com/fentz26/simshell/internal/perm"
	"github.com/fentz26/simshell/internal/store"
)

// SQL runs statements against the shared backing store. It has no
// simulated latency.
type SQL struct {
	store *store.Store
}

// NewSQL creates the sql executor.
func NewSQL(s *store.Store) *SQL {
	return &SQL{store: s}
}

// Category returns sql.
func (q *SQL) Category() models.Category { return models.CategorySQL }

// Execute runs one statement against the store. Without
// execute_sql_modify the statement runs with writes disabled by the
// engine, so only reads can succeed.
func (q *SQL) Execute(ctx context.Context, req Request) (*Result, error) {
	cmd := strings.TrimSpace(req.Command)
	cat := q.Category()

	k := statementKind(cmd)
	if k == kindOther {
		return placeholder(cat, cmd), nil
	}

	var res *store.Result
	var err error
	if perm.Allowed(req.Permissions, perm.ExecuteSQLModify, req.OverrideAll) {
		res, err = q.store.Execute(ctx, cmd)
	} else {
		res, err = q.store.ExecuteReadOnly(ctx, cmd)
	}
	switch {
	case errors.Is(err, store.ErrReadOnly):
		return failed(cat, cmd, fmt.Sprintf("Permission denied: %s required", perm.ExecuteSQLModify)), nil
	case err != nil:
		return failed(cat, cmd, "SQL error: "+err.Error()), nil
	}

	if k == kindModify && res.Columns == nil {
		return ok(cat, cmd, output(fmt.Sprintf("Query OK, %d rows affected", res.RowsAffected))), nil
	}
	lines := FormatTable(res)
	out := make([]Line, len(lines))
	for i, l := range lines {
		out[i] = output(l)
	}
	return ok(cat, cmd, out...), nil
}

type kind int

const (
	kindOther kind = iota
	kindRead
	kindModify
)

func statementKind(cmd string) kind {
	fields := strings.Fields(strings.TrimLeft(cmd, "( \t\r\n"))
	if len(fields) == 0 {
		return kindOther
	}
	switch strings.ToUpper(strings.TrimRight(fields[0], ";")) {
	case "SELECT", "WITH", "PRAGMA", "EXPLAIN", "VALUES":
		return kindRead
	case "INSERT", "UPDATE", "DELETE", "REPLACE", "CREATE", "DROP", "ALTER":
		return kindModify
	}
	return kindOther
}

// FormatTable renders a result as a padded text table followed by a
// "(N rows)" footer.
func FormatTable(res *store.Result) []string {
	widths := make([]int, len(res.Columns))
	for i, c := range res.Columns {
		widths[i] = len(c)
	}
	cells := make([][]string, len(res.Rows))
	for r, row := range res.Rows {
		cells[r] = make([]string, len(row))
		for i, v := range row {
			s := "NULL"
			if v != nil {
				s = fmt.Sprint(v)
			}
			cells[r][i] = s
			if i < len(widths) && len(s) > widths[i] {
				widths[i] = len(s)
			}
		}
	}

	var lines []string
	if len(res.Columns) > 0 {
		lines = append(lines, padRow(res.Columns, widths))
		seps := make([]string, len(widths))
		for i, w := range widths {
			seps[i] = strings.Repeat("-", w)
		}
		lines = append(lines, strings.Join(seps, "-+-"))
	}
	for _, row := range cells {
		lines = append(lines, padRow(row, widths))
	}

	return append(lines, fmt.Sprintf("(%d rows)", len(res.Rows)))
}

func padRow(values []string, widths []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		w := 0
		if i < len(widths) {
			w = widths[i]
		}
		parts[i] = v + strings.Repeat(" ", w-len(v))
	}
	return strings.TrimRight(strings.Join(parts, " | "), " ")
}
