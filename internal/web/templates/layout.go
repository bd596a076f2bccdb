// Package templates renders the HTML pages of the conversion UI.
//
// Components are plain templ.Components so handlers render them the same
// way whether the request is a full page load or an HTMX swap.
package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// html accumulates writes and keeps the first error, so components can emit
// markup without checking every call.
type html struct {
	w   io.Writer
	err error
}

// raw writes trusted markup.
func (h *html) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

// rawf writes trusted markup built with fmt. Arguments must already be escaped.
func (h *html) rawf(format string, args ...any) {
	if h.err == nil {
		_, h.err = fmt.Fprintf(h.w, format, args...)
	}
}

// text writes escaped text.
func (h *html) text(s string) {
	h.raw(templ.EscapeString(s))
}

// render nests another component.
func (h *html) render(ctx context.Context, c templ.Component) {
	if h.err == nil && c != nil {
		h.err = c.Render(ctx, h.w)
	}
}

// component adapts a body-writing func to templ.Component.
func component(fn func(ctx context.Context, h *html)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		fn(ctx, h)
		return h.err
	})
}

const styles = `
body{font-family:system-ui,sans-serif;margin:0;background:#f6f7f9;color:#1f2933}
header{background:#1f2933;color:#fff;padding:.75rem 1.5rem}
header a{color:#fff;text-decoration:none;font-weight:600}
main{max-width:70rem;margin:1.5rem auto;padding:0 1.5rem}
fieldset{border:1px solid #d2d6dc;border-radius:6px;margin-bottom:1rem;background:#fff}
label{display:block;margin:.5rem 0 .25rem;font-weight:500}
input[type=text],select,textarea{width:100%;padding:.4rem;box-sizing:border-box}
button{padding:.5rem 1rem;margin-right:.5rem;border:0;border-radius:4px;background:#2563eb;color:#fff;cursor:pointer}
button.secondary{background:#4b5563}
table{border-collapse:collapse;width:100%;background:#fff;margin-bottom:1.5rem}
th,td{border:1px solid #e5e7eb;padding:.35rem .5rem;text-align:left;font-size:.9rem}
th small{display:block;color:#6b7280;font-weight:400}
.alert{padding:1rem;border-radius:6px;background:#fef2f2;border:1px solid #fca5a5;margin-bottom:1rem}
.alert .code{color:#6b7280;font-size:.8rem}
.sev-high{color:#b91c1c;font-weight:600}
.sev-medium{color:#b45309;font-weight:600}
.sev-low{color:#4b5563}
.ok{padding:1rem;border-radius:6px;background:#ecfdf5;border:1px solid #6ee7b7;margin-bottom:1rem}
.hint{color:#6b7280;font-size:.85rem}
`

// Page wraps body in the common document layout.
func Page(title string, body templ.Component) templ.Component {
	return component(func(ctx context.Context, h *html) {
		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		h.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.raw(`<title>`)
		h.text(title)
		h.raw(` - sheetcsv</title><style>`)
		h.raw(styles)
		h.raw(`</style></head><body><header><a href="/">sheetcsv</a></header><main id="content">`)
		h.render(ctx, body)
		h.raw(`</main></body></html>`)
	})
}
