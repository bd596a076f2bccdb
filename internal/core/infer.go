package core

// Infer proposes a default target type from the column's storage kind.
//
// Integer-like columns are always proposed as integer regardless of
// magnitude; values beyond the 32-bit range are handled by clamping and
// reported, and the operator may switch the column to big_integer.
// Empty and all-null columns default to text. Infer never fails.
func Infer(col Column) TargetType {
	switch col.Kind {
	case KindInt:
		return TypeInteger
	case KindFloat:
		return TypeFloat
	case KindBool:
		return TypeBoolean
	case KindTime:
		return TypeTimestamp
	default:
		return TypeText
	}
}

// DefaultConfig returns the inferred configuration for col. Text columns get
// DefaultMaxLength.
func DefaultConfig(col Column) ColumnConfig {
	t := Infer(col)
	if t == TypeText {
		return TextConfig(DefaultMaxLength)
	}
	return ColumnConfig{Type: t}
}

// InferPlan selects every column of t with its inferred configuration.
func InferPlan(t Table) Plan {
	p := Plan{
		Columns: make([]string, 0, len(t.Columns)),
		Configs: make(map[string]ColumnConfig, len(t.Columns)),
	}
	for _, c := range t.Columns {
		p.Columns = append(p.Columns, c.Name)
		p.Configs[c.Name] = DefaultConfig(c)
	}
	return p
}
