package core

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func ints(vs ...int64) []Value {
	out := make([]Value, len(vs))
	for i, v := range vs {
		out[i] = Int(v)
	}
	return out
}

func texts(vs ...string) []Value {
	out := make([]Value, len(vs))
	for i, v := range vs {
		out[i] = Text(v)
	}
	return out
}

func TestCoerce_IntegerClamping(t *testing.T) {
	col := NewColumn("Qty", ints(2147483647, 2147483648, -2147483649, 100))

	out, findings, err := Coerce(col, ColumnConfig{Type: TypeInteger})
	if err != nil {
		t.Fatalf("Coerce: %v", err)
	}

	want := ints(2147483647, 2147483647, -2147483648, 100)
	if !reflect.DeepEqual(out.Values, want) {
		t.Errorf("values = %v, want %v", out.Values, want)
	}
	if len(findings) != 1 {
		t.Fatalf("findings = %+v, want exactly one", findings)
	}
	f := findings[0]
	if f.Category != CategoryOutOfRange || f.Count != 2 || f.Column != "Qty" || f.Severity != SeverityHigh {
		t.Errorf("unexpected finding %+v", f)
	}
	if f.Limit != "[-2147483648, 2147483647]" {
		t.Errorf("Limit = %q", f.Limit)
	}
	if !strings.Contains(f.Message, "big_integer") {
		t.Errorf("integer overflow message should suggest big_integer: %q", f.Message)
	}
}

func TestCoerce_IntegerIdempotent(t *testing.T) {
	col := NewColumn("ID", ints(1, -5, 2147483647, -2147483648))

	out, findings, err := Coerce(col, ColumnConfig{Type: TypeInteger})
	if err != nil {
		t.Fatalf("Coerce: %v", err)
	}
	if !reflect.DeepEqual(out, col) {
		t.Errorf("in-range integer column changed:\n got %+v\nwant %+v", out, col)
	}
	if len(findings) != 0 {
		t.Errorf("findings = %+v, want none", findings)
	}
}

func TestCoerce_IntegerSubstitutesZero(t *testing.T) {
	col := NewColumn("N", []Value{Text("12"), Text("abc"), Null(), Text(" 7.9 "), Bool(true), Time(time.Now())})

	out, findings, err := Coerce(col, ColumnConfig{Type: TypeInteger})
	if err != nil {
		t.Fatalf("Coerce: %v", err)
	}
	want := ints(12, 0, 0, 7, 1, 0)
	if !reflect.DeepEqual(out.Values, want) {
		t.Errorf("values = %v, want %v", out.Values, want)
	}
	if len(findings) != 0 {
		t.Errorf("parse failures are not reported, got %+v", findings)
	}
	if out.Kind != KindInt {
		t.Errorf("Kind = %v, want int", out.Kind)
	}
}

func TestCoerce_BigInteger(t *testing.T) {
	col := NewColumn("Big", []Value{Int(3000000000), Text("9223372036854775808"), Text("-1e30")})

	out, findings, err := Coerce(col, ColumnConfig{Type: TypeBigInteger})
	if err != nil {
		t.Fatalf("Coerce: %v", err)
	}
	want := ints(3000000000, BigIntegerMax, BigIntegerMin)
	if !reflect.DeepEqual(out.Values, want) {
		t.Errorf("values = %v, want %v", out.Values, want)
	}
	if len(findings) != 1 || findings[0].Count != 2 {
		t.Fatalf("findings = %+v, want one out_of_range with count 2", findings)
	}
	if strings.Contains(findings[0].Message, "consider") {
		t.Errorf("big_integer message should not suggest a wider type: %q", findings[0].Message)
	}
}

func TestCoerce_Float(t *testing.T) {
	col := NewColumn("Price", []Value{Text("1.5"), Text("x"), Null(), Int(2), Bool(false)})

	out, findings, err := Coerce(col, ColumnConfig{Type: TypeFloat})
	if err != nil {
		t.Fatalf("Coerce: %v", err)
	}
	want := []Value{Float(1.5), Null(), Null(), Float(2), Float(0)}
	if !reflect.DeepEqual(out.Values, want) {
		t.Errorf("values = %v, want %v", out.Values, want)
	}
	if len(findings) != 0 {
		t.Errorf("float coercion never reports, got %+v", findings)
	}
}

func TestCoerce_Boolean(t *testing.T) {
	col := NewColumn("Active", []Value{Text("yes"), Text("no"), Null(), Int(0), Float(2.5), Text("anything")})

	out, findings, err := Coerce(col, ColumnConfig{Type: TypeBoolean})
	if err != nil {
		t.Fatalf("Coerce: %v", err)
	}
	want := []Value{Bool(true), Bool(false), Bool(false), Bool(false), Bool(true), Bool(true)}
	if !reflect.DeepEqual(out.Values, want) {
		t.Errorf("values = %v, want %v", out.Values, want)
	}
	if len(findings) != 0 {
		t.Errorf("boolean coercion never reports, got %+v", findings)
	}
}

func TestCoerce_Timestamp(t *testing.T) {
	ts := time.Date(2023, 6, 1, 9, 30, 0, 0, time.UTC)
	col := NewColumn("When", []Value{Text("2024-01-15"), Text("soon"), Time(ts), Int(45000), Null()})

	out, findings, err := Coerce(col, ColumnConfig{Type: TypeTimestamp})
	if err != nil {
		t.Fatalf("Coerce: %v", err)
	}
	want := []Value{Time(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)), Null(), Time(ts), Null(), Null()}
	if !reflect.DeepEqual(out.Values, want) {
		t.Errorf("values = %v, want %v", out.Values, want)
	}
	if len(findings) != 0 {
		t.Errorf("timestamp coercion never reports, got %+v", findings)
	}
}

func TestCoerce_TextTruncation(t *testing.T) {
	col := NewColumn("Code", texts("abcdefghij", "abc"))

	out, findings, err := Coerce(col, TextConfig(5))
	if err != nil {
		t.Fatalf("Coerce: %v", err)
	}
	if got := out.Values[0].Text; got != "abcde" {
		t.Errorf("truncated value = %q, want %q", got, "abcde")
	}
	if len(findings) != 1 || findings[0].Category != CategoryTruncated || findings[0].Count != 1 {
		t.Fatalf("findings = %+v, want one truncated with count 1", findings)
	}
	if findings[0].Severity != SeverityMedium || findings[0].Limit != "5" {
		t.Errorf("unexpected finding %+v", findings[0])
	}
}

func TestCoerce_TextCountsCharactersNotBytes(t *testing.T) {
	col := NewColumn("Nome", texts("ção日本語", "ação"))

	out, findings, err := Coerce(col, TextConfig(4))
	if err != nil {
		t.Fatalf("Coerce: %v", err)
	}
	if got := out.Values[0].Text; got != "ção日" {
		t.Errorf("value = %q, want %q", got, "ção日")
	}
	if got := out.Values[1].Text; got != "ação" {
		t.Errorf("4-character value should be kept whole, got %q", got)
	}
	if len(findings) != 1 || findings[0].Count != 1 {
		t.Errorf("findings = %+v, want one truncation", findings)
	}
}

func TestCoerce_TextEncodingCleanup(t *testing.T) {
	col := NewColumn("Desc", texts("Test\u200bInvalid", "Clean", "Bell\x07", "ok\tkept\n"))

	out, findings, err := Coerce(col, TextConfig(100))
	if err != nil {
		t.Fatalf("Coerce: %v", err)
	}
	want := texts("TestInvalid", "Clean", "Bell", "ok\tkept")
	if !reflect.DeepEqual(out.Values, want) {
		t.Errorf("values = %+v, want %+v", out.Values, want)
	}
	if len(findings) != 1 {
		t.Fatalf("findings = %+v, want one invalid_encoding", findings)
	}
	f := findings[0]
	if f.Category != CategoryInvalidEncoding || f.Count != 3 || f.Severity != SeverityLow {
		t.Errorf("unexpected finding %+v", f)
	}
}

func TestCoerce_TextFindingOrder(t *testing.T) {
	col := NewColumn("Mixed", texts(" padded and long ", "fine"))

	_, findings, err := Coerce(col, TextConfig(6))
	if err != nil {
		t.Fatalf("Coerce: %v", err)
	}
	if len(findings) != 2 {
		t.Fatalf("findings = %+v, want two", findings)
	}
	if findings[0].Category != CategoryInvalidEncoding || findings[1].Category != CategoryTruncated {
		t.Errorf("categories out of order: %v, %v", findings[0].Category, findings[1].Category)
	}
}

func TestCoerce_TextFromOtherKinds(t *testing.T) {
	col := NewColumn("Any", []Value{Null(), Int(12), Float(2.5), Bool(true), Time(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))})

	out, findings, err := Coerce(col, ColumnConfig{Type: TypeText})
	if err != nil {
		t.Fatalf("Coerce: %v", err)
	}
	want := texts("", "12", "2.5", "true", "2024-01-02 03:04:05")
	if !reflect.DeepEqual(out.Values, want) {
		t.Errorf("values = %+v, want %+v", out.Values, want)
	}
	if len(findings) != 0 {
		t.Errorf("findings = %+v, want none", findings)
	}
}

func TestCoerce_TextFromHugeFloat(t *testing.T) {
	col := NewColumn("Big", []Value{Float(1e300), Float(-2.5e-7)})

	out, findings, err := Coerce(col, TextConfig(10))
	if err != nil {
		t.Fatalf("Coerce: %v", err)
	}
	want := texts("1e+300", "-2.5e-07")
	if !reflect.DeepEqual(out.Values, want) {
		t.Errorf("values = %+v, want %+v", out.Values, want)
	}
	if len(findings) != 0 {
		t.Errorf("findings = %+v, want none", findings)
	}
}

func TestCoerce_DefaultMaxLength(t *testing.T) {
	long := strings.Repeat("x", 300)
	col := NewColumn("Long", texts(long))

	out, findings, err := Coerce(col, ColumnConfig{Type: TypeText})
	if err != nil {
		t.Fatalf("Coerce: %v", err)
	}
	if n := len(out.Values[0].Text); n != DefaultMaxLength {
		t.Errorf("length = %d, want %d", n, DefaultMaxLength)
	}
	if len(findings) != 1 || findings[0].Category != CategoryTruncated {
		t.Errorf("findings = %+v", findings)
	}
}

func TestCoerce_CleanDataHasNoFindings(t *testing.T) {
	tests := []struct {
		name string
		col  Column
		cfg  ColumnConfig
	}{
		{"integers", NewColumn("a", ints(1, 2, 3)), ColumnConfig{Type: TypeInteger}},
		{"ascii text", NewColumn("b", texts("alpha", "beta")), TextConfig(10)},
		{"unicode text", NewColumn("c", texts("café • ñ")), TextConfig(10)},
		{"empty column", NewColumn("d", nil), TextConfig(10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, findings, err := Coerce(tt.col, tt.cfg)
			if err != nil {
				t.Fatalf("Coerce: %v", err)
			}
			if len(findings) != 0 {
				t.Errorf("findings = %+v, want none", findings)
			}
		})
	}
}

func TestCoerce_DoesNotMutateInput(t *testing.T) {
	values := texts("  padded  ", "abcdefghij")
	col := NewColumn("S", values)
	snapshot := append([]Value(nil), values...)

	if _, _, err := Coerce(col, TextConfig(3)); err != nil {
		t.Fatalf("Coerce: %v", err)
	}
	if _, _, err := Coerce(col, ColumnConfig{Type: TypeInteger}); err != nil {
		t.Fatalf("Coerce: %v", err)
	}
	if !reflect.DeepEqual(col.Values, snapshot) {
		t.Errorf("input column modified: %+v", col.Values)
	}
}

func TestCoerce_Deterministic(t *testing.T) {
	col := NewColumn("D", texts("Test\u200bInvalid", strings.Repeat("é", 20), "3000000000"))
	for _, cfg := range []ColumnConfig{TextConfig(5), {Type: TypeInteger}, {Type: TypeFloat}} {
		out1, f1, err1 := Coerce(col, cfg)
		out2, f2, err2 := Coerce(col, cfg)
		if err1 != nil || err2 != nil {
			t.Fatalf("Coerce errors: %v, %v", err1, err2)
		}
		if !reflect.DeepEqual(out1, out2) || !reflect.DeepEqual(f1, f2) {
			t.Errorf("%s: repeated calls differ", cfg.Label())
		}
	}
}

func TestCoerce_ConfigErrors(t *testing.T) {
	col := NewColumn("C", texts("x"))

	tests := []struct {
		name      string
		cfg       ColumnConfig
		wantErr   error
		wantParam string
	}{
		{"unknown type", ColumnConfig{Type: "decimal"}, ErrUnknownTargetType, "type"},
		{"empty type", ColumnConfig{}, ErrUnknownTargetType, "type"},
		{"negative max length", ColumnConfig{Type: TypeText, MaxLength: -1}, ErrInvalidMaxLength, "max_length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Coerce(col, tt.cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("err is %T, want *ConfigError", err)
			}
			if ce.Column != "C" || ce.Param != tt.wantParam {
				t.Errorf("ConfigError = %+v", ce)
			}
		})
	}
}
