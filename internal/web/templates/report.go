package templates

import (
	"context"
	"time"

	"github.com/JonMunkholm/sheetcsv/internal/core"
	"github.com/a-h/templ"
)

// ReportPartial shows the findings and a preview of a finished conversion.
func ReportPartial(conv *core.Conversion) templ.Component {
	return component(func(ctx context.Context, h *html) {
		h.raw(`<h1>`)
		h.text(conv.FileName)
		h.raw(`</h1>`)
		h.rawf(`<p class="hint">%d rows, %d columns, converted in %s. Output: `,
			conv.Preview.Total, len(conv.Preview.Columns), conv.Duration.Round(time.Millisecond))
		h.text(conv.OutputName())
		h.raw(`</p>`)

		findingsTable(h, conv.Findings, conv.Summary)
		previewTable(h, conv.Preview)
		h.raw(`<p><a href="/">Convert another file</a></p>`)
	})
}

func findingsTable(h *html, findings []core.Finding, sum core.FindingSummary) {
	if len(findings) == 0 {
		h.raw(`<div class="ok">No values needed correcting.</div>`)
		return
	}
	h.rawf(`<h2>Corrections</h2><p>%d high, %d medium, %d low; %d values changed.</p>`,
		sum.High, sum.Medium, sum.Low, sum.Values)
	h.raw(`<table><thead><tr><th>Column</th><th>Severity</th><th>Category</th><th>Values</th><th>Detail</th></tr></thead><tbody>`)
	for _, f := range findings {
		h.raw(`<tr><td>`)
		h.text(f.Column)
		h.rawf(`</td><td class="sev-%s">`, templ.EscapeString(string(f.Severity)))
		h.text(string(f.Severity))
		h.raw(`</td><td>`)
		h.text(string(f.Category))
		h.rawf(`</td><td>%d</td><td>`, f.Count)
		h.text(f.Message)
		h.raw(`</td></tr>`)
	}
	h.raw(`</tbody></table>`)
}

func previewTable(h *html, pv core.Preview) {
	h.rawf(`<h2>Preview</h2><p class="hint">First %d of %d rows after conversion.</p>`, len(pv.Rows), pv.Total)
	h.raw(`<table><thead><tr>`)
	for i, name := range pv.Columns {
		h.raw(`<th>`)
		h.text(name)
		if i < len(pv.Labels) {
			h.raw(`<small>`)
			h.text(pv.Labels[i])
			h.raw(`</small>`)
		}
		h.raw(`</th>`)
	}
	h.raw(`</tr></thead><tbody>`)
	for _, row := range pv.Rows {
		h.raw(`<tr>`)
		for _, cell := range row {
			h.raw(`<td>`)
			h.text(cell)
			h.raw(`</td>`)
		}
		h.raw(`</tr>`)
	}
	if len(pv.Rows) == 0 {
		h.rawf(`<tr><td colspan="%d">No rows</td></tr>`, max(len(pv.Columns), 1))
	}
	h.raw(`</tbody></table>`)
}
