package core

// DefaultSampleSize is how many sample values Inspect shows per column.
const DefaultSampleSize = 3

// DefaultPreviewRows is how many transformed rows a Conversion keeps for display.
const DefaultPreviewRows = 10

// ColumnInfo describes one source column and its inferred configuration.
type ColumnInfo struct {
	Name     string       `json:"name"`
	Kind     Kind         `json:"kind"`
	Inferred ColumnConfig `json:"inferred"`
	Label    string       `json:"label"`
	Nulls    int          `json:"nulls"`
	Samples  []string     `json:"samples"`
}

// Inspection is the result of loading a file and inferring its plan.
type Inspection struct {
	FileName string       `json:"fileName"`
	Format   string       `json:"format"`
	Rows     int          `json:"rows"`
	Columns  []ColumnInfo `json:"columns"`
	Plan     Plan         `json:"plan"`
}

// describeColumn builds the inspection entry for c.
func describeColumn(c Column, sampleSize int) ColumnInfo {
	cfg := DefaultConfig(c)
	info := ColumnInfo{
		Name:     c.Name,
		Kind:     c.Kind,
		Inferred: cfg,
		Label:    cfg.Label(),
		Samples:  sampleValues(c, sampleSize),
	}
	for _, v := range c.Values {
		if v.IsNull() {
			info.Nulls++
		}
	}
	return info
}

// sampleValues returns the textual form of the first n non-null values.
func sampleValues(c Column, n int) []string {
	samples := make([]string, 0, n)
	for _, v := range c.Values {
		if len(samples) == n {
			break
		}
		if v.IsNull() {
			continue
		}
		samples = append(samples, FormatValue(v))
	}
	return samples
}

// Preview is the head of a transformed table, ready for display.
type Preview struct {
	Columns []string   `json:"columns"`
	Labels  []string   `json:"labels"` // final type per column, e.g. "text[50]"
	Rows    [][]string `json:"rows"`
	Total   int        `json:"total"`
}

// buildPreview renders the first n rows of t. Labels follow p.
func buildPreview(t Table, p Plan, n int) Preview {
	pv := Preview{
		Columns: t.Names(),
		Labels:  make([]string, len(t.Columns)),
		Total:   t.Rows(),
	}
	for i, c := range t.Columns {
		pv.Labels[i] = p.Configs[c.Name].Label()
	}

	rows := min(n, t.Rows())
	pv.Rows = make([][]string, rows)
	for i := 0; i < rows; i++ {
		row := t.Row(i)
		rec := make([]string, len(row))
		for j, v := range row {
			rec[j] = FormatValue(v)
		}
		pv.Rows[i] = rec
	}
	return pv
}
