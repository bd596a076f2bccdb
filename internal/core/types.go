// Package core provides the business logic for spreadsheet-to-CSV conversion.
// This package has no UI dependencies and can be used by any frontend.
package core

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the underlying runtime representation of a cell or a column.
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindBool
	KindTime
	KindText
)

// String returns the lowercase kind name used in JSON and logs.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for the names String returns.
func (k *Kind) UnmarshalText(b []byte) error {
	for c := KindNull; c <= KindText; c++ {
		if c.String() == string(b) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown kind %q", b)
}

// Value is a single tagged cell. The zero Value is the missing marker.
type Value struct {
	Kind  Kind
	Int   int64
	Float float64
	Bool  bool
	Time  time.Time
	Text  string
}

// Null returns the missing marker.
func Null() Value { return Value{} }

// Int returns an integer cell.
func Int(i int64) Value { return Value{Kind: KindInt, Int: i} }

// Float returns a floating-point cell.
func Float(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// Bool returns a boolean cell.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Time returns a date/time cell.
func Time(t time.Time) Value { return Value{Kind: KindTime, Time: t} }

// Text returns a generic text cell.
func Text(s string) Value { return Value{Kind: KindText, Text: s} }

// IsNull reports whether v is the missing marker.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Column is an ordered sequence of values identified by name.
// Kind is the column's storage representation, used by inference.
type Column struct {
	Name   string
	Kind   Kind
	Values []Value
}

// NewColumn builds a column and derives its storage kind from the values:
//   - all ints with no nulls: int
//   - any float, or ints mixed with nulls: float
//   - all bools with no nulls: bool
//   - times, nulls allowed: time
//   - anything else, including empty or all-null columns: text
func NewColumn(name string, values []Value) Column {
	return Column{Name: name, Kind: detectKind(values), Values: values}
}

func detectKind(values []Value) Kind {
	var nulls, ints, floats, bools, times int
	for _, v := range values {
		switch v.Kind {
		case KindNull:
			nulls++
		case KindInt:
			ints++
		case KindFloat:
			floats++
		case KindBool:
			bools++
		case KindTime:
			times++
		default:
			return KindText
		}
	}

	nonNull := len(values) - nulls
	switch {
	case nonNull == 0:
		return KindText
	case ints == nonNull && nulls == 0:
		return KindInt
	case ints+floats == nonNull:
		return KindFloat
	case bools == nonNull && nulls == 0:
		return KindBool
	case times == nonNull:
		return KindTime
	default:
		return KindText
	}
}

// Len returns the number of values in the column.
func (c Column) Len() int { return len(c.Values) }

// Table is an ordered set of equally long columns.
type Table struct {
	Columns []Column
}

// Column returns the column with the given name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Names returns the column names in order.
func (t Table) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Rows returns the number of rows, taken from the first column.
func (t Table) Rows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return t.Columns[0].Len()
}

// Row returns the values of row i across all columns.
func (t Table) Row(i int) []Value {
	row := make([]Value, len(t.Columns))
	for j, c := range t.Columns {
		if i < len(c.Values) {
			row[j] = c.Values[i]
		}
	}
	return row
}

// TargetType is the database-oriented type an operator declares for a column.
type TargetType string

const (
	TypeInteger    TargetType = "integer"
	TypeBigInteger TargetType = "big_integer"
	TypeFloat      TargetType = "float"
	TypeBoolean    TargetType = "boolean"
	TypeTimestamp  TargetType = "timestamp"
	TypeText       TargetType = "text"
)

// TargetTypes lists every recognized target type in display order.
var TargetTypes = []TargetType{
	TypeText, TypeInteger, TypeBigInteger, TypeFloat, TypeBoolean, TypeTimestamp,
}

// Valid reports whether t is one of the six recognized types.
func (t TargetType) Valid() bool {
	switch t {
	case TypeInteger, TypeBigInteger, TypeFloat, TypeBoolean, TypeTimestamp, TypeText:
		return true
	}
	return false
}

// ParseTargetType resolves a type name. Besides the canonical names it accepts
// int, bigint, bool, datetime and varchar.
func ParseTargetType(s string) (TargetType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "integer", "int", "int4":
		return TypeInteger, nil
	case "big_integer", "bigint", "int8":
		return TypeBigInteger, nil
	case "float", "double", "float8":
		return TypeFloat, nil
	case "boolean", "bool":
		return TypeBoolean, nil
	case "timestamp", "datetime":
		return TypeTimestamp, nil
	case "text", "varchar", "string":
		return TypeText, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTargetType, s)
}

// DefaultMaxLength is applied to text columns whose max length is unset.
const DefaultMaxLength = 255

// ColumnConfig declares how one column is coerced.
// MaxLength applies to text only; zero means DefaultMaxLength.
type ColumnConfig struct {
	Type      TargetType `json:"type"`
	MaxLength int        `json:"max_length,omitempty"`
}

// TextConfig returns a text configuration with the given max length.
func TextConfig(maxLength int) ColumnConfig {
	return ColumnConfig{Type: TypeText, MaxLength: maxLength}
}

// Validate checks the configuration on its own.
func (c ColumnConfig) Validate() error {
	if !c.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTargetType, c.Type)
	}
	if c.Type == TypeText && c.MaxLength < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxLength, c.MaxLength)
	}
	return nil
}

// EffectiveMaxLength returns the max length used for text coercion.
func (c ColumnConfig) EffectiveMaxLength() int {
	if c.MaxLength == 0 {
		return DefaultMaxLength
	}
	return c.MaxLength
}

// Label renders the configuration the way operators see it, e.g. "text[50]".
func (c ColumnConfig) Label() string {
	if c.Type == TypeText {
		return fmt.Sprintf("%s[%d]", c.Type, c.EffectiveMaxLength())
	}
	return string(c.Type)
}

// Severity ranks how lossy a correction was.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Category classifies a correction applied during coercion.
type Category string

const (
	CategoryOutOfRange      Category = "out_of_range"
	CategoryInvalidEncoding Category = "invalid_encoding"
	CategoryTruncated       Category = "truncated"
)

// Finding is an aggregate record of one class of correction applied to a column.
// It describes corrections already present in the output, not open errors.
type Finding struct {
	Column   string   `json:"column"`
	Severity Severity `json:"severity"`
	Category Category `json:"category"`
	Count    int      `json:"count"`
	Message  string   `json:"message"`
	Limit    string   `json:"limit,omitempty"` // bound or max length that triggered it
}
