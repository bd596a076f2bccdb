package core

import "math"

// Integer bounds of the two integer target types.
const (
	IntegerMin    int64 = math.MinInt32
	IntegerMax    int64 = math.MaxInt32
	BigIntegerMin int64 = math.MinInt64
	BigIntegerMax int64 = math.MaxInt64
)

// Coerce converts col to cfg's target type and reports the corrections it
// applied.
//
// Coerce is total over cell content: unparseable, missing, out-of-range,
// dirty or over-long cells are replaced by substitutes and summarized in the
// returned findings. It only fails when cfg itself is invalid. The input
// column is never modified.
func Coerce(col Column, cfg ColumnConfig) (Column, []Finding, error) {
	if err := cfg.Validate(); err != nil {
		return Column{}, nil, configErr(col.Name, err)
	}

	switch cfg.Type {
	case TypeInteger:
		out, n := coerceInt(col, IntegerMin, IntegerMax)
		return out, outOfRangeFindings(col.Name, cfg.Type, n), nil
	case TypeBigInteger:
		out, n := coerceInt(col, BigIntegerMin, BigIntegerMax)
		return out, outOfRangeFindings(col.Name, cfg.Type, n), nil
	case TypeFloat:
		return coerceFloat(col), nil, nil
	case TypeBoolean:
		return coerceBool(col), nil, nil
	case TypeTimestamp:
		return coerceTimestamp(col), nil, nil
	default:
		out, stats := coerceText(col, cfg.EffectiveMaxLength())
		return out, textFindings(col.Name, cfg.EffectiveMaxLength(), stats), nil
	}
}

// coerceInt clamps every numeric cell into [lo, hi]. Cells that are not
// numbers become 0. It returns the number of cells that were outside the
// bound before clamping.
func coerceInt(col Column, lo, hi int64) (Column, int) {
	values := make([]Value, len(col.Values))
	outside := 0
	for i, v := range col.Values {
		n, ok := parseNumber(v)
		if !ok {
			values[i] = Int(0)
			continue
		}
		clamped, out := n.clamp(lo, hi)
		if out {
			outside++
		}
		values[i] = Int(clamped)
	}
	return Column{Name: col.Name, Kind: KindInt, Values: values}, outside
}

// coerceFloat parses each cell as a number; failures become null.
func coerceFloat(col Column) Column {
	values := make([]Value, len(col.Values))
	for i, v := range col.Values {
		if n, ok := parseNumber(v); ok {
			values[i] = Float(n.float())
		}
	}
	return Column{Name: col.Name, Kind: KindFloat, Values: values}
}

func coerceBool(col Column) Column {
	values := make([]Value, len(col.Values))
	for i, v := range col.Values {
		values[i] = Bool(truthy(v))
	}
	return Column{Name: col.Name, Kind: KindBool, Values: values}
}

// coerceTimestamp parses each cell as a date/time; failures become null.
func coerceTimestamp(col Column) Column {
	values := make([]Value, len(col.Values))
	for i, v := range col.Values {
		if t, ok := parseTimestamp(v); ok {
			values[i] = Time(t)
		}
	}
	return Column{Name: col.Name, Kind: KindTime, Values: values}
}

// textStats counts the corrections made while coercing a text column.
type textStats struct {
	cleaned   int // cleaned form differs from the raw text
	truncated int // cleaned form was longer than the max length
}

// coerceText renders, cleans and truncates each cell.
func coerceText(col Column, maxLength int) (Column, textStats) {
	var stats textStats
	values := make([]Value, len(col.Values))
	for i, v := range col.Values {
		raw := FormatValue(v)
		cleaned := CleanText(raw)
		if cleaned != raw {
			stats.cleaned++
		}
		out := truncateRunes(cleaned, maxLength)
		if len(out) != len(cleaned) {
			stats.truncated++
		}
		values[i] = Text(out)
	}
	return Column{Name: col.Name, Kind: KindText, Values: values}, stats
}
