// Package sqlite loads transformed tables into a SQLite database using
// database/sql. Rows are inserted with a prepared statement inside a single
// transaction.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/sheetcsv/internal/core"
	"github.com/JonMunkholm/sheetcsv/internal/sink"

	_ "modernc.org/sqlite"
)

// Open opens a SQLite database. dsn is a file path or ":memory:".
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return db, nil
}

// Options controls a load.
type Options struct {
	Table       string
	CreateTable bool // issue CREATE TABLE IF NOT EXISTS first
	Replace     bool // delete existing rows first
}

// Loader inserts transformed tables into SQLite.
type Loader struct {
	db *sql.DB
}

// NewLoader creates a Loader on db.
func NewLoader(db *sql.DB) *Loader {
	return &Loader{db: db}
}

// Load inserts the plan's selected columns of t into opts.Table and returns
// the number of rows inserted. Either every row is inserted or none is.
func (l *Loader) Load(ctx context.Context, t core.Table, plan core.Plan, opts Options) (int64, error) {
	table := strings.TrimSpace(opts.Table)
	if table == "" {
		return 0, sink.ErrEmptyTableName
	}

	cols := make([]core.Column, len(plan.Columns))
	for j, name := range plan.Columns {
		col, ok := t.Column(name)
		if !ok {
			return 0, &core.ConfigError{Column: name, Err: core.ErrColumnNotFound}
		}
		cols[j] = col
	}

	if opts.CreateTable {
		ddl, err := sink.CreateTableSQL(sink.SQLite, table, plan)
		if err != nil {
			return 0, err
		}
		if _, err := l.db.ExecContext(ctx, ddl); err != nil {
			return 0, fmt.Errorf("sqlite: create table: %w", err)
		}
	}

	names := sink.ColumnNames(plan)
	quoted := make([]string, len(names))
	placeholders := make([]string, len(names))
	for i, n := range names {
		quoted[i] = sink.QuoteIdent(n)
		placeholders[i] = "?"
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		sink.QuoteQualified(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer tx.Rollback()

	if opts.Replace {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+sink.QuoteQualified(table)); err != nil {
			return 0, fmt.Errorf("sqlite: clear table: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return 0, fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(cols))
	var inserted int64
	for i := 0; i < t.Rows(); i++ {
		for j, col := range cols {
			var v core.Value
			if i < len(col.Values) {
				v = col.Values[i]
			}
			args[j] = sqlValue(v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("sqlite: insert row %d: %w", i+1, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return inserted, nil
}

// sqlValue converts a coerced cell to a driver value. Timestamps are stored
// as text in the export layout; booleans as 0/1.
func sqlValue(v core.Value) any {
	switch v.Kind {
	case core.KindInt:
		return v.Int
	case core.KindFloat:
		return v.Float
	case core.KindBool:
		if v.Bool {
			return int64(1)
		}
		return int64(0)
	case core.KindTime:
		return v.Time.Format(core.TimestampLayout)
	case core.KindText:
		return v.Text
	default:
		return nil
	}
}
