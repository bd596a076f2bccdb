package core

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// TransformOptions tunes Transform.
type TransformOptions struct {
	// Workers bounds how many columns are coerced at once. Zero means
	// GOMAXPROCS.
	Workers int
}

// Transform coerces the selected columns of t according to p.
//
// The plan is validated in full before any column is touched, so a bad
// configuration fails the run with a *ConfigError and no partial output.
// Columns are then coerced in parallel; the result keeps the plan's selection
// order and findings are returned column-then-category.
func Transform(ctx context.Context, t Table, p Plan, opts TransformOptions) (Table, []Finding, error) {
	if err := p.Validate(t); err != nil {
		return Table{}, nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	columns := make([]Column, len(p.Columns))
	perColumn := make([][]Finding, len(p.Columns))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, name := range p.Columns {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			src, _ := t.Column(name)
			out, findings, err := Coerce(src, p.Configs[name])
			if err != nil {
				return err
			}
			columns[i] = out
			perColumn[i] = findings
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Table{}, nil, err
	}

	var findings []Finding
	for _, f := range perColumn {
		findings = append(findings, f...)
	}
	return Table{Columns: columns}, findings, nil
}
