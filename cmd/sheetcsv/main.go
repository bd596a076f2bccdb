// Command sheetcsv converts a spreadsheet into delimited text, reporting every
// value it had to correct. It can also load the converted table into
// PostgreSQL or SQLite.
//
// Usage:
//
//	sheetcsv -in sales.xlsx                          # inferred types, sales_converted.csv
//	sheetcsv -in sales.xlsx -infer > plan.json       # print the inferred plan
//	sheetcsv -in sales.xlsx -plan plan.json -sep tab -encoding latin1
//	sheetcsv -in sales.xlsx -set Amount=big_integer -set Note=text:40
//	sheetcsv -in legado.xls -sheet Dados -out -
//	sheetcsv -in sales.csv -sqlite sales.db -sqlite-table sales
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/JonMunkholm/sheetcsv/internal/config"
	"github.com/JonMunkholm/sheetcsv/internal/core"
	_ "github.com/JonMunkholm/sheetcsv/internal/core/sources" // Register xlsx, xls and csv
	"github.com/JonMunkholm/sheetcsv/internal/logging"
	"github.com/JonMunkholm/sheetcsv/internal/sink/postgres"
	"github.com/JonMunkholm/sheetcsv/internal/sink/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
)

// errUsage marks bad command lines; main exits 2 for them.
var errUsage = errors.New("usage")

// overrides collects repeated -set flags.
type overrides []string

func (o *overrides) String() string     { return strings.Join(*o, ",") }
func (o *overrides) Set(v string) error { *o = append(*o, v); return nil }

type options struct {
	in            string
	sheet         string
	inputEncoding string
	infer         bool
	plan          string
	columns       string
	set           overrides
	sep           string
	encoding      string
	out           string
	findingsJSON  string

	pgURL    string
	pgTable  string
	sqlite   string
	sqlTable string
	create   bool
	replace  bool
}

func parseFlags(args []string, cfg *config.Config, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("sheetcsv", flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{}
	fs.StringVar(&o.in, "in", "", "input spreadsheet (.xlsx, .xlsm, .xls, .csv, .tsv, .txt)")
	fs.StringVar(&o.sheet, "sheet", "", "workbook sheet; defaults to the first")
	fs.StringVar(&o.inputEncoding, "input-encoding", "", "encoding of text input: utf-8, latin1, cp1252, utf-16")
	fs.BoolVar(&o.infer, "infer", false, "print the inferred plan as JSON and exit")
	fs.StringVar(&o.plan, "plan", "", "plan file (JSON); defaults to the inferred plan")
	fs.StringVar(&o.columns, "columns", "", "comma-separated columns to export, in order")
	fs.Var(&o.set, "set", "column override name=type or name=text:length (repeatable)")
	fs.StringVar(&o.sep, "sep", cfg.Export.Separator, "output separator: comma, semicolon, pipe, tab")
	fs.StringVar(&o.encoding, "encoding", cfg.Export.Encoding, "output encoding: utf-8-sig, utf-8, latin1, iso-8859-1")
	fs.StringVar(&o.out, "out", "", "output file, - for stdout; defaults to <input>_converted.csv")
	fs.StringVar(&o.findingsJSON, "findings-json", "", "also write findings as JSON to this file")
	fs.StringVar(&o.pgURL, "pg-url", cfg.Database.URL, "PostgreSQL URL for -pg-table (default $DATABASE_URL)")
	fs.StringVar(&o.pgTable, "pg-table", "", "copy the converted table into this PostgreSQL table")
	fs.StringVar(&o.sqlite, "sqlite", "", "SQLite database file for -sqlite-table")
	fs.StringVar(&o.sqlTable, "sqlite-table", "", "insert the converted table into this SQLite table")
	fs.BoolVar(&o.create, "create", true, "create the destination table if missing")
	fs.BoolVar(&o.replace, "replace", false, "empty the destination table before loading")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	if o.in == "" {
		fs.Usage()
		return nil, fmt.Errorf("%w: missing -in", errUsage)
	}
	if o.pgTable != "" && o.pgURL == "" {
		return nil, fmt.Errorf("%w: -pg-table needs -pg-url or DATABASE_URL", errUsage)
	}
	if (o.sqlTable == "") != (o.sqlite == "") {
		return nil, fmt.Errorf("%w: -sqlite and -sqlite-table go together", errUsage)
	}
	return o, nil
}

func main() {
	cfg, err := config.LoadWithDotEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "sheetcsv:", err)
		os.Exit(1)
	}
	logging.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, "sheetcsv:", err)
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "sheetcsv:", core.FormatUserError(err))
		slog.Debug("conversion error", "error", err)
		os.Exit(1)
	}
}

// run executes one CLI invocation. Findings and progress go to stderr; the
// converted file goes to -out (or stdout for "-").
func run(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, cfg, stderr)
	if err != nil {
		return err
	}

	service := core.NewService(cfg.ServiceOptions())
	load := core.LoadOptions{Sheet: o.sheet, Encoding: o.inputEncoding}

	if o.infer {
		f, err := os.Open(o.in)
		if err != nil {
			return err
		}
		defer f.Close()
		in, err := service.Inspect(ctx, o.in, f, load)
		if err != nil {
			return err
		}
		for _, c := range in.Columns {
			fmt.Fprintf(stderr, "%-24s %-12s %s\n", c.Name, c.Label, strings.Join(c.Samples, " | "))
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(in.Plan)
	}

	req, err := o.request(load)
	if err != nil {
		return err
	}
	f, err := os.Open(o.in)
	if err != nil {
		return err
	}
	defer f.Close()
	req.Reader = f

	conv, err := service.Convert(ctx, req)
	if err != nil {
		return err
	}
	printFindings(stderr, conv)

	if o.findingsJSON != "" {
		if err := writeFindings(o.findingsJSON, conv.Findings); err != nil {
			return err
		}
	}

	if err := o.export(conv, stdout, stderr); err != nil {
		return err
	}

	if o.pgTable != "" {
		if err := loadPostgres(ctx, cfg, o, conv); err != nil {
			return err
		}
	}
	if o.sqlTable != "" {
		if err := loadSQLite(ctx, o, conv); err != nil {
			return err
		}
	}
	return nil
}

// request builds the conversion request from the plan and override flags.
func (o *options) request(load core.LoadOptions) (core.ConvertRequest, error) {
	req := core.ConvertRequest{FileName: o.in, Load: load}

	if o.plan != "" {
		pf, err := os.Open(o.plan)
		if err != nil {
			return req, err
		}
		plan, err := core.ParsePlan(pf)
		pf.Close()
		if err != nil {
			return req, err
		}
		req.Plan = &plan
	}

	for _, s := range o.set {
		name, cfg, err := core.ParseOverride(s)
		if err != nil {
			return req, err
		}
		if req.Overrides == nil {
			req.Overrides = make(map[string]core.ColumnConfig)
		}
		req.Overrides[name] = cfg
	}

	for _, c := range strings.Split(o.columns, ",") {
		if c = strings.TrimSpace(c); c != "" {
			req.Columns = append(req.Columns, c)
		}
	}
	return req, nil
}

// export writes the converted table to -out. A file is only kept when the
// whole export succeeds.
func (o *options) export(conv *core.Conversion, stdout, stderr io.Writer) error {
	sep, err := core.ParseSeparator(o.sep)
	if err != nil {
		return err
	}
	enc, err := core.ParseEncoding(o.encoding)
	if err != nil {
		return err
	}
	opts := core.ExportOptions{Separator: sep, Encoding: enc}

	if o.out == "-" {
		_, err := conv.Export(stdout, opts)
		return err
	}

	path := o.out
	if path == "" {
		path = conv.OutputName()
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	stats, err := conv.Export(out, opts)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return err
	}
	fmt.Fprintf(stderr, "wrote %s: %d rows, %d bytes, xxh3 %s\n", path, stats.Rows, stats.Bytes, stats.DigestHex())
	return nil
}

func printFindings(w io.Writer, conv *core.Conversion) {
	if len(conv.Findings) == 0 {
		fmt.Fprintln(w, "no corrections needed")
		return
	}
	for _, f := range conv.Findings {
		fmt.Fprintf(w, "%-6s %s: %s\n", strings.ToUpper(string(f.Severity)), f.Column, f.Message)
	}
	s := conv.Summary
	fmt.Fprintf(w, "%d finding(s): %d high, %d medium, %d low; %d value(s) corrected\n",
		len(conv.Findings), s.High, s.Medium, s.Low, s.Values)
}

func writeFindings(path string, findings []core.Finding) error {
	if findings == nil {
		findings = []core.Finding{}
	}
	b, err := json.MarshalIndent(findings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

func loadPostgres(ctx context.Context, cfg *config.Config, o *options, conv *core.Conversion) error {
	poolConfig, err := pgxpool.ParseConfig(o.pgURL)
	if err != nil {
		return fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	n, err := postgres.NewLoader(pool).Load(ctx, conv.Table, conv.Plan, postgres.Options{
		Table:       o.pgTable,
		CreateTable: o.create,
		Truncate:    o.replace,
	})
	if err != nil {
		return err
	}
	slog.Info("loaded into postgres", "table", o.pgTable, "rows", n, "conversion_id", conv.ID.String())
	return nil
}

func loadSQLite(ctx context.Context, o *options, conv *core.Conversion) error {
	db, err := sqlite.Open(ctx, o.sqlite)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := sqlite.NewLoader(db).Load(ctx, conv.Table, conv.Plan, sqlite.Options{
		Table:       o.sqlTable,
		CreateTable: o.create,
		Replace:     o.replace,
	})
	if err != nil {
		return err
	}
	slog.Info("loaded into sqlite", "file", o.sqlite, "table", o.sqlTable, "rows", n, "conversion_id", conv.ID.String())
	return nil
}
