package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Plan is the caller-owned conversion configuration: which columns to export,
// in which order, and how each one is coerced. A Plan is rebuilt per run and
// never shared between conversions.
type Plan struct {
	Columns []string                // selected columns in output order
	Configs map[string]ColumnConfig // configuration per column name
}

// Override replaces the configuration of one column, returning a new Plan.
// The receiver is left untouched.
func (p Plan) Override(name string, cfg ColumnConfig) Plan {
	out := p.clone()
	out.Configs[name] = cfg
	return out
}

// Select returns a copy of p exporting only names, in that order.
// Configurations are carried over unchanged.
func (p Plan) Select(names ...string) Plan {
	out := p.clone()
	out.Columns = append([]string(nil), names...)
	return out
}

func (p Plan) clone() Plan {
	out := Plan{
		Columns: append([]string(nil), p.Columns...),
		Configs: make(map[string]ColumnConfig, len(p.Configs)),
	}
	for k, v := range p.Configs {
		out.Configs[k] = v
	}
	return out
}

// Validate checks the plan against t. It returns a *ConfigError naming the
// first offending column.
func (p Plan) Validate(t Table) error {
	if len(p.Columns) == 0 {
		return &ConfigError{Param: "columns", Err: ErrNoColumnsSelected}
	}

	seen := make(map[string]bool, len(p.Columns))
	for _, name := range p.Columns {
		if seen[name] {
			return &ConfigError{Column: name, Err: ErrDuplicateColumn}
		}
		seen[name] = true

		if _, ok := t.Column(name); !ok {
			return &ConfigError{Column: name, Err: ErrColumnNotFound}
		}
		cfg, ok := p.Configs[name]
		if !ok {
			return &ConfigError{Column: name, Err: ErrMissingConfig}
		}
		if err := cfg.Validate(); err != nil {
			return configErr(name, err)
		}
	}
	return nil
}

// planDocument is the JSON form of a Plan. The array order is the selection
// order.
type planDocument struct {
	Columns []planColumn `json:"columns"`
}

type planColumn struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	MaxLength *int   `json:"max_length,omitempty"`
}

// ParsePlan decodes a plan document:
//
//	{"columns": [
//	    {"name": "ID", "type": "integer"},
//	    {"name": "Name", "type": "text", "max_length": 50}
//	]}
//
// An explicit max_length must be positive.
func ParsePlan(r io.Reader) (Plan, error) {
	var doc planDocument
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return Plan{}, fmt.Errorf("decode plan: %w", err)
	}

	p := Plan{
		Columns: make([]string, 0, len(doc.Columns)),
		Configs: make(map[string]ColumnConfig, len(doc.Columns)),
	}
	for _, c := range doc.Columns {
		if c.Name == "" {
			return Plan{}, &ConfigError{Param: "name", Err: fmt.Errorf("column name is empty")}
		}
		t, err := ParseTargetType(c.Type)
		if err != nil {
			return Plan{}, configErr(c.Name, err)
		}
		cfg := ColumnConfig{Type: t}
		if c.MaxLength != nil {
			if *c.MaxLength <= 0 {
				return Plan{}, configErr(c.Name, fmt.Errorf("%w: %d", ErrInvalidMaxLength, *c.MaxLength))
			}
			if t == TypeText {
				cfg.MaxLength = *c.MaxLength
			}
		}
		p.Columns = append(p.Columns, c.Name)
		p.Configs[c.Name] = cfg
	}
	return p, nil
}

// ParsePlanBytes is ParsePlan over a byte slice.
func ParsePlanBytes(b []byte) (Plan, error) {
	return ParsePlan(bytes.NewReader(b))
}

// MarshalJSON encodes p as a plan document, so an inferred plan can be saved,
// edited and fed back to ParsePlan.
func (p Plan) MarshalJSON() ([]byte, error) {
	doc := planDocument{Columns: make([]planColumn, 0, len(p.Columns))}
	for _, name := range p.Columns {
		cfg := p.Configs[name]
		pc := planColumn{Name: name, Type: string(cfg.Type)}
		if cfg.Type == TypeText {
			n := cfg.EffectiveMaxLength()
			pc.MaxLength = &n
		}
		doc.Columns = append(doc.Columns, pc)
	}
	return json.Marshal(doc)
}

// UnmarshalJSON decodes a plan document with the same rules as ParsePlan.
func (p *Plan) UnmarshalJSON(b []byte) error {
	parsed, err := ParsePlanBytes(b)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParseOverride reads a single column setting of the form "name=type",
// "name=text:50" or "name=text[50]". The last '=' separates the name, so
// column names may contain '='.
func ParseOverride(s string) (string, ColumnConfig, error) {
	i := strings.LastIndex(s, "=")
	if i <= 0 {
		return "", ColumnConfig{}, &ConfigError{Param: "override", Err: fmt.Errorf("expected name=type, got %q", s)}
	}
	name, def := strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])

	typeName, length := def, ""
	if j := strings.IndexAny(def, ":["); j >= 0 {
		typeName, length = def[:j], strings.TrimSuffix(def[j+1:], "]")
	}

	t, err := ParseTargetType(typeName)
	if err != nil {
		return "", ColumnConfig{}, configErr(name, err)
	}
	cfg := ColumnConfig{Type: t}
	if length != "" {
		n, err := strconv.Atoi(length)
		if err != nil || n <= 0 {
			return "", ColumnConfig{}, configErr(name, fmt.Errorf("%w: %q", ErrInvalidMaxLength, length))
		}
		if t == TypeText {
			cfg.MaxLength = n
		}
	}
	return name, cfg, nil
}
