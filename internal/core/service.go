package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/JonMunkholm/sheetcsv/internal/logging"
	"github.com/google/uuid"
)

// DefaultConversionTimeout bounds a single load + transform.
const DefaultConversionTimeout = 2 * time.Minute

// ServiceOptions configures a Service. Zero values select the defaults.
type ServiceOptions struct {
	MaxConcurrent int           // simultaneous conversions
	MaxWait       time.Duration // wait for a free slot before ErrTooManyConversions
	Timeout       time.Duration // per conversion
	Workers       int           // columns coerced in parallel per conversion
	MaxFileSize   int64         // bytes; zero means unlimited
	PreviewRows   int
	SampleSize    int
	History       *History // finished conversions are recorded here when set
}

// Service drives the load, inference and transform steps for any frontend.
// It holds no per-conversion state; every call builds its own plan and table.
type Service struct {
	limiter *ConversionLimiter
	opts    ServiceOptions
}

// NewService creates a Service.
func NewService(opts ServiceOptions) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultConversionTimeout
	}
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = DefaultPreviewRows
	}
	if opts.SampleSize <= 0 {
		opts.SampleSize = DefaultSampleSize
	}
	return &Service{
		limiter: NewConversionLimiter(opts.MaxConcurrent, opts.MaxWait),
		opts:    opts,
	}
}

// History returns the conversion history, or nil when disabled.
func (s *Service) History() *History {
	return s.opts.History
}

// Limiter exposes the conversion limiter for health checks and shutdown.
func (s *Service) Limiter() *ConversionLimiter {
	return s.limiter
}

// Load reads r as a table using the format registered for fileName's extension.
func (s *Service) Load(ctx context.Context, fileName string, r io.Reader, opts LoadOptions) (Table, SourceFormat, error) {
	if r == nil {
		return Table{}, SourceFormat{}, ErrNoFile
	}
	format, err := FormatFor(fileName)
	if err != nil {
		return Table{}, SourceFormat{}, err
	}
	logger := logging.FromContext(ctx)
	if id := ConversionIDFromContext(ctx); id != "" {
		logger = logger.With("conversion_id", id)
	}
	logger.Debug("loading file", "file", fileName, "format", format.Key, "sheet", opts.Sheet)

	t, err := format.Load(ctx, NewSizeLimitedReader(r, s.opts.MaxFileSize), opts)
	if err != nil {
		return Table{}, format, fmt.Errorf("load %s: %w", fileName, err)
	}
	if len(t.Columns) == 0 {
		return Table{}, format, fmt.Errorf("load %s: %w", fileName, ErrEmptyFile)
	}
	return t, format, nil
}

// Inspect loads a file and proposes a configuration for every column,
// together with a few sample values per column.
func (s *Service) Inspect(ctx context.Context, fileName string, r io.Reader, opts LoadOptions) (*Inspection, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	t, format, err := s.Load(ctx, fileName, r, opts)
	if err != nil {
		return nil, err
	}

	in := &Inspection{
		FileName: fileName,
		Format:   format.Key,
		Rows:     t.Rows(),
		Columns:  make([]ColumnInfo, len(t.Columns)),
		Plan:     InferPlan(t),
	}
	for i, c := range t.Columns {
		in.Columns[i] = describeColumn(c, s.opts.SampleSize)
	}

	logging.FromContext(ctx).Debug("file inspected",
		"file", fileName,
		"format", format.Key,
		"rows", in.Rows,
		"columns", len(in.Columns),
	)
	return in, nil
}

// ConvertRequest describes one conversion.
type ConvertRequest struct {
	FileName string
	Reader   io.Reader
	Load     LoadOptions

	// Plan selects and configures columns. Nil means the inferred plan.
	Plan *Plan

	// Overrides replace single column configurations on top of Plan.
	Overrides map[string]ColumnConfig

	// Columns, when set, narrows the selection and fixes its order.
	Columns []string
}

// resolvePlan builds the plan for t: the request's plan or the inferred one,
// then overrides, then the column selection.
func (req ConvertRequest) resolvePlan(t Table) Plan {
	plan := InferPlan(t)
	if req.Plan != nil {
		plan = *req.Plan
	}
	for name, cfg := range req.Overrides {
		plan = plan.Override(name, cfg)
	}
	if len(req.Columns) > 0 {
		plan = plan.Select(req.Columns...)
	}
	return plan
}

// Conversion is a finished transform, ready to be exported.
type Conversion struct {
	ID       uuid.UUID      `json:"id"`
	FileName string         `json:"fileName"`
	Table    Table          `json:"-"`
	Plan     Plan           `json:"plan"`
	Findings []Finding      `json:"findings"`
	Summary  FindingSummary `json:"summary"`
	Preview  Preview        `json:"preview"`
	Duration time.Duration  `json:"durationNs"`
}

// OutputName is the default export file name.
func (c *Conversion) OutputName() string {
	return OutputFileName(c.FileName)
}

// Export writes the transformed table as delimited text.
func (c *Conversion) Export(w io.Writer, opts ExportOptions) (ExportStats, error) {
	return Export(w, c.Table, opts)
}

// Convert loads the file, applies the plan and returns the transformed table
// with its findings. Per-cell problems never fail a conversion; only load
// errors, plan errors and cancellation do.
func (s *Service) Convert(ctx context.Context, req ConvertRequest) (*Conversion, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	id := uuid.New()
	ctx = ContextWithConversionID(ctx, id.String())
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	logger := logging.WithFields(ctx,
		"conversion_id", id.String(),
		"file", req.FileName,
	)
	ip := ClientIPFromContext(ctx)
	if ip != "" {
		logger = logger.With("client_ip", ip)
	}
	start := time.Now()

	t, _, err := s.Load(ctx, req.FileName, req.Reader, req.Load)
	if err != nil {
		logger.Warn("conversion failed", "stage", "load", "error", err)
		return nil, err
	}

	plan := req.resolvePlan(t)

	out, findings, err := Transform(ctx, t, plan, TransformOptions{Workers: s.opts.Workers})
	if err != nil {
		logger.Warn("conversion failed", "stage", "transform", "error", err)
		return nil, err
	}

	conv := &Conversion{
		ID:       id,
		FileName: req.FileName,
		Table:    out,
		Plan:     plan,
		Findings: findings,
		Summary:  Summarize(findings),
		Preview:  buildPreview(out, plan, s.opts.PreviewRows),
		Duration: time.Since(start),
	}

	for _, f := range findings {
		logger.Debug("finding",
			"column", f.Column,
			"category", f.Category,
			"severity", f.Severity,
			"count", f.Count,
		)
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "conversion completed",
		slog.Int("rows", out.Rows()),
		slog.Int("columns", len(out.Columns)),
		slog.Int("findings", len(findings)),
		slog.Int64("duration_ms", conv.Duration.Milliseconds()),
	)
	if s.opts.History != nil {
		s.opts.History.Record(historyEntry(conv, ip))
	}
	return conv, nil
}
