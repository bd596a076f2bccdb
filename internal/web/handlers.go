package web

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/JonMunkholm/sheetcsv/internal/core"
	"github.com/JonMunkholm/sheetcsv/internal/web/templates"
	"github.com/go-chi/chi/v5"
)

// errBadRequest marks malformed forms and parameters.
var errBadRequest = errors.New("invalid request")

// maxFormMemory is how much of a multipart form is kept in memory; the rest
// spills to temporary files.
const maxFormMemory = 32 << 20

// formOverhead allows for the non-file form fields on top of the file itself.
const formOverhead = 1 << 20

// uploadForm is a parsed conversion request.
type uploadForm struct {
	file      multipart.File
	fileName  string
	load      core.LoadOptions
	plan      *core.Plan
	overrides map[string]core.ColumnConfig
	columns   []string
	export    core.ExportOptions
}

// parseUpload reads the multipart form shared by all conversion endpoints.
//
// Fields:
//
//	file             the spreadsheet (required)
//	sheet            workbook sheet, default first
//	input_encoding   encoding of CSV input, default UTF-8
//	input_separator  separator of CSV input, default sniffed
//	plan             plan document (JSON), default inferred
//	set              repeated name=type[:length] overrides
//	columns          comma-separated selection, default all
//	separator        output separator
//	encoding         output encoding
//
// The caller must close form.file.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) (*uploadForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Convert.MaxFileSize+formOverhead)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return nil, core.ErrFileTooLarge
		}
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, core.ErrNoFile
		}
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	form := &uploadForm{file: file, fileName: header.Filename}
	if err := s.parseOptions(r, form); err != nil {
		file.Close()
		return nil, err
	}
	return form, nil
}

func (s *Server) parseOptions(r *http.Request, form *uploadForm) error {
	form.load.Sheet = strings.TrimSpace(r.FormValue("sheet"))
	form.load.Encoding = r.FormValue("input_encoding")
	if v := r.FormValue("input_separator"); v != "" {
		sep, err := core.ParseSeparator(v)
		if err != nil {
			return err
		}
		form.load.Separator = sep
	}

	if doc := strings.TrimSpace(r.FormValue("plan")); doc != "" {
		plan, err := core.ParsePlan(strings.NewReader(doc))
		if err != nil {
			return err
		}
		form.plan = &plan
	}

	for _, v := range setValues(r.MultipartForm.Value["set"]) {
		name, cfg, err := core.ParseOverride(v)
		if err != nil {
			return err
		}
		if form.overrides == nil {
			form.overrides = make(map[string]core.ColumnConfig)
		}
		form.overrides[name] = cfg
	}

	for _, c := range strings.Split(r.FormValue("columns"), ",") {
		if c = strings.TrimSpace(c); c != "" {
			form.columns = append(form.columns, c)
		}
	}

	sepName := r.FormValue("separator")
	if sepName == "" {
		sepName = s.cfg.Export.Separator
	}
	sep, err := core.ParseSeparator(sepName)
	if err != nil {
		return err
	}
	encName := r.FormValue("encoding")
	if encName == "" {
		encName = s.cfg.Export.Encoding
	}
	enc, err := core.ParseEncoding(encName)
	if err != nil {
		return err
	}
	form.export = core.ExportOptions{Separator: sep, Encoding: enc}
	return nil
}

// convert runs a full conversion for a parsed form.
func (s *Server) convert(r *http.Request, form *uploadForm) (*core.Conversion, error) {
	ctx := WithRequestMetadata(r.Context(), r)
	return s.service.Convert(ctx, core.ConvertRequest{
		FileName:  form.fileName,
		Reader:    form.file,
		Load:      form.load,
		Plan:      form.plan,
		Overrides: form.overrides,
		Columns:   form.columns,
	})
}

// handleIndex renders the upload page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	templates.IndexPage(templates.IndexParams{
		Formats:    core.Formats(),
		Separator:  s.cfg.Export.Separator,
		Encoding:   s.cfg.Export.Encoding,
		Encodings:  core.Encodings,
		MaxFileMiB: s.cfg.Convert.MaxFileSize >> 20,
	}).Render(r.Context(), w)
}

// handleHealth reports liveness and conversion slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"conversions": s.service.Limiter().Status(),
	})
}

// formatInfo is the JSON view of a registered source format.
type formatInfo struct {
	Key        string   `json:"key"`
	Label      string   `json:"label"`
	Extensions []string `json:"extensions"`
}

// handleFormats lists input formats and the accepted option values.
func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	formats := make([]formatInfo, 0)
	for _, f := range core.Formats() {
		formats = append(formats, formatInfo{Key: f.Key, Label: f.Label, Extensions: f.Extensions})
	}
	separators := make([]string, 0, len(core.Separators))
	for name := range core.Separators {
		separators = append(separators, name)
	}
	sort.Strings(separators)
	writeJSON(w, http.StatusOK, map[string]any{
		"formats":    formats,
		"types":      core.TargetTypes,
		"encodings":  core.Encodings,
		"separators": separators,
	})
}

// handleInspect loads a file and returns its columns with the inferred plan.
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	form, err := s.parseUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer form.file.Close()

	ctx := WithRequestMetadata(r.Context(), r)
	in, err := s.service.Inspect(ctx, form.fileName, form.file, form.load)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}

// validateResponse is the outcome of a dry-run conversion.
type validateResponse struct {
	*core.Conversion
	OutputName string   `json:"outputName"`
	Messages   []string `json:"messages"`
}

// handleValidate converts without returning the file: findings, summary and
// a preview of the transformed rows.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	form, err := s.parseUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer form.file.Close()

	conv, err := s.convert(r, form)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	resp := validateResponse{
		Conversion: conv,
		OutputName: conv.OutputName(),
		Messages:   make([]string, len(conv.Findings)),
	}
	for i, f := range conv.Findings {
		resp.Messages[i] = findingText(f)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleConvert converts the upload and returns the delimited file.
// Findings are summarized in response headers.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	form, err := s.parseUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer form.file.Close()

	conv, err := s.convert(r, form)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	// Encode fully before writing so an unencodable cell still gets a
	// proper error response.
	var buf bytes.Buffer
	stats, err := conv.Export(&buf, form.export)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	charset := "utf-8"
	if enc := form.export.Encoding; enc == core.EncodingLatin1 || enc == core.EncodingISO8859_1 {
		charset = "iso-8859-1"
	}
	h := w.Header()
	h.Set("Content-Type", "text/csv; charset="+charset)
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": conv.OutputName()}))
	h.Set("Content-Length", strconv.FormatInt(stats.Bytes, 10))
	h.Set("X-Conversion-Id", conv.ID.String())
	h.Set("X-Content-Digest", "xxh3="+stats.DigestHex())
	h.Set("X-Findings-High", strconv.Itoa(conv.Summary.High))
	h.Set("X-Findings-Medium", strconv.Itoa(conv.Summary.Medium))
	h.Set("X-Findings-Low", strconv.Itoa(conv.Summary.Low))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// handleReport converts the upload and renders findings and a preview as HTML.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	form, err := s.parseUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer form.file.Close()

	conv, err := s.convert(r, form)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if isHTMX(r) {
		templates.ReportPartial(conv).Render(r.Context(), w)
		return
	}
	templates.Page("Conversion report", templates.ReportPartial(conv)).Render(r.Context(), w)
}

// handleHistory lists recent conversions, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	h := s.service.History()
	if h == nil {
		writeJSON(w, http.StatusOK, []core.HistoryEntry{})
		return
	}
	writeJSON(w, http.StatusOK, h.List(parseIntParam(r, "limit", 50)))
}

// handleHistoryEntry returns one recorded conversion.
func (s *Server) handleHistoryEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h := s.service.History()
	if h == nil {
		http.NotFound(w, r)
		return
	}
	e, ok := h.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "conversion not found",
			Message: "Conversion not found",
			Code:    "HIST001",
		})
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// findingText renders a finding for display, e.g.
// "Price: 2 value(s) outside the integer range ... [high]".
func findingText(f core.Finding) string {
	return fmt.Sprintf("%s: %s [%s]", f.Column, f.Message, f.Severity)
}

// setValues flattens repeated "set" fields; the HTML form sends them as one
// field with one override per line.
func setValues(fields []string) []string {
	var out []string
	for _, f := range fields {
		for _, line := range strings.Split(f, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				out = append(out, line)
			}
		}
	}
	return out
}
