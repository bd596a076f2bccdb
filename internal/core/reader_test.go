package core

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestSizeLimitedReader(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		max     int64
		wantErr bool
	}{
		{name: "unlimited", input: "abcdef", max: 0},
		{name: "under limit", input: "abc", max: 5},
		{name: "exact limit", input: "abcde", max: 5},
		{name: "over limit", input: "abcdef", max: 5, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewSizeLimitedReader(strings.NewReader(tt.input), tt.max)
			got, err := io.ReadAll(r)
			if tt.wantErr {
				if !errors.Is(err, ErrFileTooLarge) {
					t.Fatalf("expected ErrFileTooLarge, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.input {
				t.Errorf("got %q, want %q", got, tt.input)
			}
			if r.BytesRead != int64(len(tt.input)) {
				t.Errorf("BytesRead = %d, want %d", r.BytesRead, len(tt.input))
			}
		})
	}
}
