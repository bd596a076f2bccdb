// Package sink loads transformed tables into relational databases.
//
// The six target types map onto each dialect's native column types, so a
// table exported as CSV and a table loaded directly end up with the same
// shape. Column names are normalized into plain lowercase identifiers.
package sink

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/JonMunkholm/sheetcsv/internal/core"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Dialect selects the SQL flavor.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case SQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

// ErrEmptyTableName is returned when no destination table is named.
var ErrEmptyTableName = errors.New("sink: table name must not be empty")

// ColumnType returns the SQL type for cfg in dialect d.
func ColumnType(d Dialect, cfg core.ColumnConfig) string {
	if d == SQLite {
		switch cfg.Type {
		case core.TypeInteger, core.TypeBigInteger, core.TypeBoolean:
			return "INTEGER"
		case core.TypeFloat:
			return "REAL"
		default:
			return "TEXT"
		}
	}
	switch cfg.Type {
	case core.TypeInteger:
		return "INTEGER"
	case core.TypeBigInteger:
		return "BIGINT"
	case core.TypeFloat:
		return "DOUBLE PRECISION"
	case core.TypeBoolean:
		return "BOOLEAN"
	case core.TypeTimestamp:
		return "TIMESTAMP"
	default:
		return fmt.Sprintf("VARCHAR(%d)", cfg.EffectiveMaxLength())
	}
}

// QuoteIdent quotes name as an SQL identifier. Both dialects accept double quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteQualified quotes each dot-separated part of a possibly schema-qualified name.
func QuoteQualified(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = QuoteIdent(strings.TrimSpace(p))
	}
	return strings.Join(parts, ".")
}

// Identifier folds a spreadsheet header into a lowercase ASCII identifier:
// accents are dropped, runs of other characters become "_", and a leading
// digit gets a "c_" prefix. "Descrição do Item" becomes "descricao_do_item".
func Identifier(header string) string {
	stripped, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		header,
	)
	if err != nil {
		stripped = header
	}

	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(stripped) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}

	id := b.String()
	switch {
	case id == "":
		return "col"
	case id[0] >= '0' && id[0] <= '9':
		return "c_" + id
	}
	return id
}

// ColumnNames returns one unique identifier per selected plan column, in
// selection order.
func ColumnNames(plan core.Plan) []string {
	names := make([]string, len(plan.Columns))
	used := make(map[string]bool, len(plan.Columns))
	for i, col := range plan.Columns {
		base := Identifier(col)
		id := base
		for n := 1; used[id]; n++ {
			id = fmt.Sprintf("%s_%d", base, n)
		}
		used[id] = true
		names[i] = id
	}
	return names
}

// CreateTableSQL renders CREATE TABLE IF NOT EXISTS for the plan's selected
// columns. All columns are nullable: coercion produces nulls for unparseable
// floats and timestamps.
func CreateTableSQL(d Dialect, table string, plan core.Plan) (string, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return "", ErrEmptyTableName
	}
	if len(plan.Columns) == 0 {
		return "", core.ErrNoColumnsSelected
	}

	names := ColumnNames(plan)
	defs := make([]string, len(plan.Columns))
	for i, col := range plan.Columns {
		cfg, ok := plan.Configs[col]
		if !ok {
			return "", &core.ConfigError{Column: col, Err: core.ErrMissingConfig}
		}
		defs[i] = fmt.Sprintf("    %s %s", QuoteIdent(names[i]), ColumnType(d, cfg))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n)",
		QuoteQualified(table), strings.Join(defs, ",\n")), nil
}
