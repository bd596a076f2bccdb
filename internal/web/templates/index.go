package templates

import (
	"context"
	"sort"
	"strings"

	"github.com/JonMunkholm/sheetcsv/internal/core"
	"github.com/a-h/templ"
)

// IndexParams feeds the upload page.
type IndexParams struct {
	Formats    []core.SourceFormat
	Separator  string // default output separator name
	Encoding   string // default output encoding
	Encodings  []core.Encoding
	MaxFileMiB int64
}

// separatorLabels orders and labels the output separators offered in the form.
var separatorLabels = []struct{ name, label string }{
	{"comma", "Comma (,)"},
	{"semicolon", "Semicolon (;)"},
	{"tab", "Tab"},
	{"pipe", "Pipe (|)"},
}

// IndexPage is the upload form. The same form posts to the HTML report or,
// through the second button, straight to the download endpoint.
func IndexPage(p IndexParams) templ.Component {
	return Page("Convert a spreadsheet", component(func(ctx context.Context, h *html) {
		var exts []string
		for _, f := range p.Formats {
			exts = append(exts, f.Extensions...)
		}
		sort.Strings(exts)

		h.raw(`<h1>Convert a spreadsheet</h1>`)
		h.raw(`<form method="post" action="/report" enctype="multipart/form-data">`)

		h.raw(`<fieldset><legend>Source</legend><label for="file">File</label>`)
		h.rawf(`<input type="file" id="file" name="file" required accept="%s">`, templ.EscapeString(strings.Join(exts, ",")))
		h.raw(`<p class="hint">Accepted: `)
		for i, f := range p.Formats {
			if i > 0 {
				h.raw(`, `)
			}
			h.text(f.Label)
		}
		h.rawf(`. Up to %d MiB.</p>`, p.MaxFileMiB)
		h.raw(`<label for="sheet">Sheet</label><input type="text" id="sheet" name="sheet" placeholder="first sheet">`)
		h.raw(`<label for="input_encoding">Input encoding (text files)</label>`)
		h.raw(`<select id="input_encoding" name="input_encoding"><option value="">UTF-8</option>`)
		h.raw(`<option value="latin1">Latin-1</option><option value="cp1252">Windows-1252</option><option value="utf-16">UTF-16</option></select>`)
		h.raw(`</fieldset>`)

		h.raw(`<fieldset><legend>Columns</legend>`)
		h.raw(`<label for="columns">Columns to keep</label>`)
		h.raw(`<input type="text" id="columns" name="columns" placeholder="all columns, comma-separated">`)
		h.raw(`<label for="set">Type overrides</label>`)
		h.raw(`<textarea id="set" name="set" rows="2" placeholder="Name=text:50"></textarea>`)
		h.raw(`<p class="hint">One per field: name=type or name=text:length. Types: `)
		for i, t := range core.TargetTypes {
			if i > 0 {
				h.raw(`, `)
			}
			h.text(string(t))
		}
		h.raw(`.</p>`)
		h.raw(`<label for="plan">Plan (JSON, replaces the inferred plan)</label>`)
		h.raw(`<textarea id="plan" name="plan" rows="3"></textarea></fieldset>`)

		h.raw(`<fieldset><legend>Output</legend><label for="separator">Separator</label><select id="separator" name="separator">`)
		for _, s := range separatorLabels {
			option(h, s.name, s.label, s.name == p.Separator)
		}
		h.raw(`</select><label for="encoding">Encoding</label><select id="encoding" name="encoding">`)
		for _, e := range p.Encodings {
			option(h, string(e), string(e), string(e) == p.Encoding)
		}
		h.raw(`</select></fieldset>`)

		h.raw(`<button type="submit">Check</button>`)
		h.raw(`<button type="submit" class="secondary" formaction="/api/convert">Download</button>`)
		h.raw(`</form>`)
	}))
}

func option(h *html, value, label string, selected bool) {
	sel := ""
	if selected {
		sel = " selected"
	}
	h.rawf(`<option value="%s"%s>%s</option>`, templ.EscapeString(value), sel, templ.EscapeString(label))
}
