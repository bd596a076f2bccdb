// Package postgres loads transformed tables into PostgreSQL with COPY.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/sheetcsv/internal/core"
	"github.com/JonMunkholm/sheetcsv/internal/sink"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DB is the part of *pgxpool.Pool the loader needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// execer is what a load runs its statements on; pgx.Tx satisfies it.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Options controls a load.
type Options struct {
	Table       string // destination, optionally schema-qualified
	CreateTable bool   // issue CREATE TABLE IF NOT EXISTS first
	Truncate    bool   // empty the table before copying
}

// Loader copies transformed tables into PostgreSQL.
type Loader struct {
	db DB
}

// NewLoader creates a Loader on db.
func NewLoader(db DB) *Loader {
	return &Loader{db: db}
}

// Load copies the plan's selected columns of t into opts.Table and returns
// the number of rows copied. t must be the output of core.Transform for plan.
// Table creation, truncation and the copy run in one transaction.
func (l *Loader) Load(ctx context.Context, t core.Table, plan core.Plan, opts Options) (int64, error) {
	table := strings.TrimSpace(opts.Table)
	if table == "" {
		return 0, sink.ErrEmptyTableName
	}

	rows, err := copyRows(t, plan)
	if err != nil {
		return 0, err
	}

	tx, err := l.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin load into %s: %w", table, err)
	}

	n, err := load(ctx, tx, table, plan, rows, opts)
	if err != nil {
		// The table is left as it was, including after a truncate.
		_ = tx.Rollback(ctx)
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit load into %s: %w", table, err)
	}
	return n, nil
}

func load(ctx context.Context, db execer, table string, plan core.Plan, rows [][]any, opts Options) (int64, error) {
	if opts.CreateTable {
		ddl, err := sink.CreateTableSQL(sink.Postgres, table, plan)
		if err != nil {
			return 0, err
		}
		if _, err := db.Exec(ctx, ddl); err != nil {
			return 0, fmt.Errorf("create table %s: %w", table, err)
		}
	}
	if opts.Truncate {
		if _, err := db.Exec(ctx, "TRUNCATE TABLE "+sink.QuoteQualified(table)); err != nil {
			return 0, fmt.Errorf("truncate %s: %w", table, err)
		}
	}

	n, err := db.CopyFrom(ctx, identifier(table), sink.ColumnNames(plan), pgx.CopyFromRows(rows))
	if err != nil {
		return n, fmt.Errorf("copy into %s: %w", table, err)
	}
	return n, nil
}

func identifier(table string) pgx.Identifier {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return pgx.Identifier(parts)
}

// copyRows lays t out row by row as pgtype values.
func copyRows(t core.Table, plan core.Plan) ([][]any, error) {
	cols := make([]core.Column, len(plan.Columns))
	cfgs := make([]core.ColumnConfig, len(plan.Columns))
	for j, name := range plan.Columns {
		col, ok := t.Column(name)
		if !ok {
			return nil, &core.ConfigError{Column: name, Err: core.ErrColumnNotFound}
		}
		cols[j] = col
		cfgs[j] = plan.Configs[name]
	}

	rows := make([][]any, t.Rows())
	for i := range rows {
		row := make([]any, len(cols))
		for j, col := range cols {
			var v core.Value
			if i < len(col.Values) {
				v = col.Values[i]
			}
			row[j] = pgValue(cfgs[j].Type, v)
		}
		rows[i] = row
	}
	return rows, nil
}

// pgValue converts a coerced cell to the pgtype value of its target type.
func pgValue(typ core.TargetType, v core.Value) any {
	switch typ {
	case core.TypeInteger:
		return pgtype.Int4{Int32: int32(v.Int), Valid: v.Kind == core.KindInt}
	case core.TypeBigInteger:
		return pgtype.Int8{Int64: v.Int, Valid: v.Kind == core.KindInt}
	case core.TypeFloat:
		return pgtype.Float8{Float64: v.Float, Valid: v.Kind == core.KindFloat}
	case core.TypeBoolean:
		return pgtype.Bool{Bool: v.Bool, Valid: v.Kind == core.KindBool}
	case core.TypeTimestamp:
		return pgtype.Timestamp{Time: v.Time, Valid: v.Kind == core.KindTime}
	default:
		return pgtype.Text{String: core.FormatValue(v), Valid: true}
	}
}
