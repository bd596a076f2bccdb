package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/sheetcsv/internal/config"
	"github.com/JonMunkholm/sheetcsv/internal/core"
	_ "github.com/JonMunkholm/sheetcsv/internal/core/sources"
)

const peopleCSV = "ID,Name\n1,Alice\n3000000000, Bob \n"

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: time.Minute},
		Convert: config.ConvertConfig{
			MaxFileSize:   1 << 20,
			MaxConcurrent: 2,
			MaxWaitTime:   time.Second,
			Timeout:       time.Minute,
		},
		Export:  config.ExportConfig{Separator: "comma", Encoding: "utf-8-sig"},
		History: config.HistoryConfig{Size: 10},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	opts := cfg.ServiceOptions()
	opts.History = core.NewHistory(cfg.History.Size)
	s := NewServer(core.NewService(opts), cfg)
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return s
}

// upload builds a multipart request with a file part and extra fields.
// Repeated keys are written as repeated fields.
func upload(t *testing.T, target, fileName, content string, fields ...[2]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(content))
	}
	for _, f := range fields {
		mw.WriteField(f[0], f[1])
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Status      string             `json:"status"`
		Conversions core.LimiterStatus `json:"conversions"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Conversions.MaxConcurrent != 2 {
		t.Errorf("health = %+v", body)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
}

func TestHandleFormats(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/formats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Formats    []formatInfo `json:"formats"`
		Types      []string     `json:"types"`
		Separators []string     `json:"separators"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	keys := make(map[string]bool)
	for _, f := range body.Formats {
		keys[f.Key] = true
	}
	if !keys["csv"] || !keys["xlsx"] {
		t.Errorf("formats = %+v, want csv and xlsx", body.Formats)
	}
	if len(body.Types) != len(core.TargetTypes) {
		t.Errorf("types = %v", body.Types)
	}
	if strings.Join(body.Separators, ",") != "comma,pipe,semicolon,tab" {
		t.Errorf("separators = %v", body.Separators)
	}
}

func TestHandleConvert(t *testing.T) {
	s := newTestServer(t, testConfig())
	req := upload(t, "/api/convert", "people.csv", peopleCSV,
		[2]string{"separator", "semicolon"},
		[2]string{"encoding", "utf-8"},
	)
	rec := serve(s, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	want := "ID;Name\n1;Alice\n2147483647;Bob\n"
	if got := rec.Body.String(); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}

	h := rec.Header()
	if got := h.Get("Content-Type"); got != "text/csv; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := h.Get("Content-Disposition"); !strings.Contains(got, "people") || !strings.HasPrefix(got, "attachment") {
		t.Errorf("Content-Disposition = %q", got)
	}
	if h.Get("X-Findings-High") != "1" || h.Get("X-Findings-Low") != "1" || h.Get("X-Findings-Medium") != "0" {
		t.Errorf("finding headers = %v", h)
	}
	if !strings.HasPrefix(h.Get("X-Content-Digest"), "xxh3=") {
		t.Errorf("X-Content-Digest = %q", h.Get("X-Content-Digest"))
	}
	id := h.Get("X-Conversion-Id")
	if id == "" {
		t.Fatal("missing X-Conversion-Id")
	}
	if _, ok := s.service.History().Get(id); !ok {
		t.Errorf("conversion %s not recorded in history", id)
	}
}

func TestHandleConvert_Latin1Unencodable(t *testing.T) {
	s := newTestServer(t, testConfig())
	req := upload(t, "/api/convert", "names.csv", "Name\nZoë\n€uro\n",
		[2]string{"encoding", "latin1"},
	)
	rec := serve(s, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body = %s", rec.Code, rec.Body)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(resp.Code, "EXP") {
		t.Errorf("code = %q, want an export error code", resp.Code)
	}
}

func TestHandleConvert_Errors(t *testing.T) {
	tests := []struct {
		name       string
		fileName   string
		content    string
		fields     [][2]string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "no file",
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE",
		},
		{
			name:       "unsupported format",
			fileName:   "people.pdf",
			content:    peopleCSV,
			wantStatus: http.StatusUnsupportedMediaType,
			wantCode:   "FILE",
		},
		{
			name:       "unknown column",
			fileName:   "people.csv",
			content:    peopleCSV,
			fields:     [][2]string{{"columns", "ID,Missing"}},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "CFG004",
		},
		{
			name:       "malformed override",
			fileName:   "people.csv",
			content:    peopleCSV,
			fields:     [][2]string{{"set", "Name"}},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "CFG008",
		},
		{
			name:       "unknown type",
			fileName:   "people.csv",
			content:    peopleCSV,
			fields:     [][2]string{{"set", "Name=money"}},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "CFG001",
		},
		{
			name:       "malformed plan",
			fileName:   "people.csv",
			content:    peopleCSV,
			fields:     [][2]string{{"plan", "{not json"}},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "CFG007",
		},
		{
			name:       "bad separator",
			fileName:   "people.csv",
			content:    peopleCSV,
			fields:     [][2]string{{"separator", "colon"}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "EXP",
		},
		{
			name:       "too large",
			fileName:   "people.csv",
			content:    strings.Repeat("x", 3<<19),
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   "FILE001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, testConfig())
			rec := serve(s, upload(t, "/api/convert", tt.fileName, tt.content, tt.fields...))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body = %s", rec.Code, tt.wantStatus, rec.Body)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if !strings.HasPrefix(resp.Code, tt.wantCode) {
				t.Errorf("code = %q, want prefix %q", resp.Code, tt.wantCode)
			}
			if resp.Message == "" {
				t.Error("empty message")
			}
		})
	}
}

func TestHandleValidate(t *testing.T) {
	s := newTestServer(t, testConfig())
	req := upload(t, "/api/validate", "people.csv", peopleCSV,
		[2]string{"set", "ID=big_integer"},
	)
	rec := serve(s, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var resp struct {
		ID         string              `json:"id"`
		OutputName string              `json:"outputName"`
		Findings   []core.Finding      `json:"findings"`
		Messages   []string            `json:"messages"`
		Preview    core.Preview        `json:"preview"`
		Summary    core.FindingSummary `json:"summary"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.ID == "" || resp.OutputName != "people_converted.csv" {
		t.Errorf("id = %q, outputName = %q", resp.ID, resp.OutputName)
	}
	// big_integer holds 3000000000, so only the whitespace cleanup remains.
	if len(resp.Findings) != 1 || resp.Findings[0].Category != core.CategoryInvalidEncoding {
		t.Fatalf("findings = %+v", resp.Findings)
	}
	if len(resp.Messages) != 1 || !strings.HasPrefix(resp.Messages[0], "Name: ") {
		t.Errorf("messages = %v", resp.Messages)
	}
	if resp.Preview.Total != 2 || resp.Preview.Rows[1][0] != "3000000000" {
		t.Errorf("preview = %+v", resp.Preview)
	}
}

func TestHandleInspect(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := serve(s, upload(t, "/api/inspect", "people.csv", peopleCSV))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var in core.Inspection
	if err := json.NewDecoder(rec.Body).Decode(&in); err != nil {
		t.Fatal(err)
	}
	if in.Format != "csv" || in.Rows != 2 || len(in.Columns) != 2 {
		t.Fatalf("inspection = %+v", in)
	}
	if in.Columns[0].Inferred.Type != core.TypeInteger {
		t.Errorf("ID inferred as %s, want integer", in.Columns[0].Inferred.Type)
	}
	if in.Columns[1].Label != "text[255]" {
		t.Errorf("Name label = %q, want text[255]", in.Columns[1].Label)
	}
}

func TestHandleReport(t *testing.T) {
	s := newTestServer(t, testConfig())

	t.Run("full page", func(t *testing.T) {
		rec := serve(s, upload(t, "/report", "<people>.csv", peopleCSV))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
		}
		body := rec.Body.String()
		for _, want := range []string{"<!DOCTYPE html>", "&lt;people&gt;.csv", "out_of_range", "2147483647"} {
			if !strings.Contains(body, want) {
				t.Errorf("report missing %q", want)
			}
		}
		if strings.Contains(body, "<people>") {
			t.Error("file name not escaped")
		}
	})

	t.Run("htmx partial", func(t *testing.T) {
		req := upload(t, "/report", "people.csv", peopleCSV)
		req.Header.Set("HX-Request", "true")
		rec := serve(s, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if strings.Contains(rec.Body.String(), "<!DOCTYPE html>") {
			t.Error("partial rendered the full layout")
		}
	})

	t.Run("error page", func(t *testing.T) {
		rec := serve(s, upload(t, "/report", "people.pdf", peopleCSV))
		if rec.Code != http.StatusUnsupportedMediaType {
			t.Fatalf("status = %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `class="alert"`) {
			t.Errorf("body = %s", rec.Body)
		}
	})
}

func TestHandleIndex(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{`action="/report"`, `formaction="/api/convert"`, `.xlsx`, `<option value="comma" selected>`} {
		if !strings.Contains(body, want) {
			t.Errorf("index missing %q", want)
		}
	}
}

func TestHistoryEndpoints(t *testing.T) {
	s := newTestServer(t, testConfig())
	for range 3 {
		if rec := serve(s, upload(t, "/api/validate", "people.csv", peopleCSV)); rec.Code != http.StatusOK {
			t.Fatalf("validate status = %d", rec.Code)
		}
	}

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/history?limit=2", nil))
	var entries []core.HistoryEntry
	if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].FileName != "people.csv" || entries[0].Summary.High != 1 {
		t.Errorf("entry = %+v", entries[0])
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/history/"+entries[0].ID, nil))
	if rec.Code != http.StatusOK {
		t.Errorf("get entry status = %d", rec.Code)
	}
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/history/unknown", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown entry status = %d, want 404", rec.Code)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	s := newTestServer(t, cfg)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/formats", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("without key: status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/formats", nil)
	req.Header.Set("X-API-Key", "secret")
	if rec := serve(s, req); rec.Code != http.StatusOK {
		t.Errorf("with key: status = %d, want 200", rec.Code)
	}

	// Pages stay public.
	if rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil)); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2, ConvertLimit: 1}
	s := newTestServer(t, cfg)

	for i := range 2 {
		if rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil)); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{&core.ConfigError{Column: "A", Err: core.ErrColumnNotFound}, http.StatusUnprocessableEntity},
		{core.ErrTooManyConversions, http.StatusServiceUnavailable},
		{fmt.Errorf("load: %w", core.ErrUnsupportedFormat), http.StatusUnsupportedMediaType},
		{core.ErrEmptyFile, http.StatusBadRequest},
		{fmt.Errorf("%w: boundary", errBadRequest), http.StatusBadRequest},
		{fmt.Errorf("decode plan: unexpected EOF"), http.StatusUnprocessableEntity},
		{fmt.Errorf("read csv: bare quote"), http.StatusBadRequest},
		{fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
