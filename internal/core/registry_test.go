package core

import (
	"errors"
	"slices"
	"testing"
)

func TestFormatFor(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		wantKey string
		wantErr error
	}{
		{"registered", "a.lines", "lines", nil},
		{"case insensitive", "A.LiNeS", "lines", nil},
		{"path", "/tmp/dir.v1/a.lines", "lines", nil},
		{"unknown", "a.doc", "", ErrUnsupportedFormat},
		{"no extension", "README", "", ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := FormatFor(tt.file)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if f.Key != tt.wantKey {
				t.Errorf("Key = %q, want %q", f.Key, tt.wantKey)
			}
		})
	}
}

func TestRegister_Duplicates(t *testing.T) {
	mustPanic := func(name string, f SourceFormat) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Errorf("%s: expected panic", name)
			}
		}()
		Register(f)
	}

	mustPanic("duplicate key", SourceFormat{Key: "lines", Extensions: []string{".other"}, Load: loadLines})
	mustPanic("duplicate extension", SourceFormat{Key: "other", Extensions: []string{".LINES"}, Load: loadLines})

	if _, ok := Get("other"); ok {
		t.Error("failed registration left a format behind")
	}
}

func TestFormatsAndExtensions(t *testing.T) {
	if f, ok := Get("lines"); !ok || f.Label == "" {
		t.Fatalf("Get(lines) = %+v, %v", f, ok)
	}
	keys := make([]string, 0)
	for _, f := range Formats() {
		keys = append(keys, f.Key)
	}
	if !slices.IsSorted(keys) || !slices.Contains(keys, "lines") {
		t.Errorf("Formats keys = %v", keys)
	}
	if exts := Extensions(); !slices.Contains(exts, ".lines") {
		t.Errorf("Extensions = %v", exts)
	}
}
